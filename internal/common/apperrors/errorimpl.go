package apperrors

import "strings"

// appError implements the apperrors.Error interface
type appError struct {
	msg           string
	base          Error
	wrappedErrors []error
	statuscode    int
	code          string
	details       any
	expandError   bool
	prefix        string
	suffix        string
}

func (e *appError) Error() string {
	msg := e.msg
	if e.prefix != "" {
		msg = e.prefix + ": " + msg
	}
	if e.suffix != "" {
		msg += ": " + e.suffix
	}
	return msg
}

func (e *appError) ErrorAll() string {
	if !e.expandError || len(e.wrappedErrors) == 0 {
		return e.Error()
	}
	causes := make([]string, 0, len(e.wrappedErrors))
	for _, err := range e.wrappedErrors {
		if err != nil {
			causes = append(causes, err.Error())
		}
	}
	return e.Error() + ": " + strings.Join(causes, ";")
}

func (e *appError) Unwrap() []error {
	return e.wrappedErrors
}

// clone returns a copy of e that is still considered the same error by Is.
func (e *appError) clone() *appError {
	c := *e
	c.wrappedErrors = append([]error(nil), e.wrappedErrors...)
	c.base = e
	return &c
}

func (e *appError) New(msg string) Error {
	return &appError{
		msg:        msg,
		statuscode: e.statuscode,
		code:       e.code,
		base:       e,
	}
}

func (e *appError) Msg(msg string) Error {
	c := e.clone()
	c.msg = msg
	return c
}

func (e *appError) Prefix(prefix string) Error {
	c := e.clone()
	c.prefix = prefix
	return c
}

func (e *appError) Suffix(suffix string) Error {
	c := e.clone()
	c.suffix = suffix
	return c
}

func (e *appError) MsgErr(msg string, err ...error) Error {
	c := e.clone()
	c.msg = msg
	c.wrappedErrors = append(c.wrappedErrors, err...)
	return c
}

func (e *appError) Err(err ...error) Error {
	c := e.clone()
	c.wrappedErrors = append(c.wrappedErrors, err...)
	return c
}

func (e *appError) Is(target error) bool {
	if e == target || e.base == target {
		return true
	}
	if e.base != nil && e.base.Is(target) {
		return true
	}
	for _, err := range e.wrappedErrors {
		if err == target {
			return true
		}
	}
	return false
}

func (e *appError) SetExpandError(expand bool) Error {
	c := e.clone()
	c.expandError = expand
	return c
}

// SetStatusCode sets the HTTP status on e in place. It is meant for building sentinels.
func (e *appError) SetStatusCode(code int) Error {
	e.statuscode = code
	return e
}

func (e *appError) StatusCode() int {
	return e.statuscode
}

// SetCode sets the machine readable code on e in place. It is meant for building sentinels.
func (e *appError) SetCode(code string) Error {
	e.code = code
	return e
}

func (e *appError) Code() string {
	return e.code
}

func (e *appError) WithDetails(details any) Error {
	c := e.clone()
	c.details = details
	return c
}

func (e *appError) Details() any {
	return e.details
}

func New(msg string) Error {
	return &appError{
		msg:           msg,
		base:          nil,
		wrappedErrors: nil,
	}
}
