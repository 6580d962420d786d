package apperrors

// Error is the error type used across the store. Errors form a tree: an error derived
// with New is Is() its parent, so handlers can match on any ancestor sentinel.
// Derivations return a new value; package level sentinels are never mutated.
type Error interface {
	Error() string
	ErrorAll() string
	New(msg string) Error
	MsgErr(msg string, err ...error) Error
	Msg(msg string) Error
	Prefix(prefix string) Error
	Suffix(suffix string) Error
	Err(err ...error) Error
	Unwrap() []error
	Is(target error) bool
	SetExpandError(expand bool) Error
	SetStatusCode(code int) Error
	StatusCode() int
	SetCode(code string) Error
	Code() string
	WithDetails(details any) Error
	Details() any
}
