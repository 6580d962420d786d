package contentstore

import (
	"net/http"

	"github.com/vicinaehq/backend/internal/common/apperrors"
)

const (
	CodeNotFound     = "NOT_FOUND"
	CodePutFailed    = "PUT_FAILED"
	CodeGetFailed    = "GET_FAILED"
	CodeDeleteFailed = "DELETE_FAILED"
	CodeURLFailed    = "GET_URL_FAILED"
	CodeExistsFailed = "EXISTS_FAILED"
	CodeInvalidKey   = "INVALID_KEY"
)

var (
	ErrStorage        apperrors.Error = apperrors.New("storage error").SetStatusCode(http.StatusInternalServerError)
	ErrObjectNotFound apperrors.Error = ErrStorage.New("object not found").SetStatusCode(http.StatusNotFound).SetCode(CodeNotFound)
	ErrPutFailed      apperrors.Error = ErrStorage.New("failed to store object").SetCode(CodePutFailed)
	ErrGetFailed      apperrors.Error = ErrStorage.New("failed to read object").SetCode(CodeGetFailed)
	ErrDeleteFailed   apperrors.Error = ErrStorage.New("failed to delete object").SetCode(CodeDeleteFailed)
	ErrURLFailed      apperrors.Error = ErrStorage.New("failed to generate object url").SetCode(CodeURLFailed)
	ErrExistsFailed   apperrors.Error = ErrStorage.New("failed to check object").SetCode(CodeExistsFailed)
	ErrInvalidKey     apperrors.Error = ErrStorage.New("invalid object key").SetStatusCode(http.StatusBadRequest).SetCode(CodeInvalidKey)
)
