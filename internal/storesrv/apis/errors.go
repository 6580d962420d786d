package apis

import (
	"net/http"

	"github.com/vicinaehq/backend/internal/common/apperrors"
)

var (
	ErrAPI               apperrors.Error = apperrors.New("request failed").SetStatusCode(http.StatusBadRequest)
	ErrExtensionNotFound apperrors.Error = ErrAPI.New("extension not found").SetStatusCode(http.StatusNotFound).SetCode("NOT_FOUND")
	ErrFileNotFound      apperrors.Error = ErrAPI.New("file not found").SetStatusCode(http.StatusNotFound).SetCode("NOT_FOUND")
	ErrMissingQuery      apperrors.Error = ErrAPI.New("search query is required").SetCode("MISSING_QUERY")
	ErrMissingFile       apperrors.Error = ErrAPI.New("no file uploaded").SetCode("MISSING_FILE")
	ErrInvalidUpload     apperrors.Error = ErrAPI.New("unable to read upload").SetCode("INVALID_UPLOAD")
	ErrNotReady          apperrors.Error = ErrAPI.New("catalog unavailable").SetStatusCode(http.StatusServiceUnavailable).SetCode("NOT_READY")
)
