package publish

import (
	"net/http"

	"github.com/vicinaehq/backend/internal/common/apperrors"
)

var (
	ErrPublish              apperrors.Error = apperrors.New("publish failed").SetStatusCode(http.StatusInternalServerError)
	ErrPayloadTooLarge      apperrors.Error = ErrPublish.New("archive exceeds the upload size limit").SetStatusCode(http.StatusRequestEntityTooLarge).SetCode("PAYLOAD_TOO_LARGE")
	ErrUnsupportedMediaType apperrors.Error = ErrPublish.New("upload must be a zip archive").SetStatusCode(http.StatusUnsupportedMediaType).SetCode("UNSUPPORTED_MEDIA_TYPE")
	ErrEmptyUpload          apperrors.Error = ErrPublish.New("no archive uploaded").SetStatusCode(http.StatusBadRequest).SetCode("MISSING_FILE")
	ErrAuthorMismatch       apperrors.Error = ErrPublish.New("uploader does not match the manifest author").SetStatusCode(http.StatusBadRequest).SetCode("AUTHOR_MISMATCH")
	ErrStorageWriteFailed   apperrors.Error = ErrPublish.New("failed to store extension files").SetCode("STORAGE_WRITE_FAILED")
)
