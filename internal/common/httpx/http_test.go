package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/vicinaehq/backend/internal/common/apperrors"
)

var errTestNotFound = apperrors.New("extension not found").SetStatusCode(http.StatusNotFound).SetCode("NOT_FOUND")
var errTestStorage = apperrors.New("storage write failed").SetStatusCode(http.StatusInternalServerError).SetCode("STORAGE_WRITE_FAILED")

func serve(h RequestHandler) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	WrapHttpRsp(h).ServeHTTP(rr, req)
	return rr
}

func TestWrapHttpRsp(t *testing.T) {
	t.Run("json response", func(t *testing.T) {
		rr := serve(func(r *http.Request) (*Response, error) {
			return &Response{StatusCode: http.StatusCreated, Response: map[string]string{"name": "clipboard"}, Location: "/v1/x"}, nil
		})
		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		assert.Equal(t, "/v1/x", rr.Header().Get("Location"))
		assert.Equal(t, "clipboard", gjson.Get(rr.Body.String(), "name").String())
	})

	t.Run("raw response", func(t *testing.T) {
		rr := serve(func(r *http.Request) (*Response, error) {
			h := http.Header{}
			h.Set("Content-Disposition", `attachment; filename="x-latest.zip"`)
			return &Response{ContentType: "application/zip", Body: []byte("PK\x03\x04"), Headers: h}, nil
		})
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/zip", rr.Header().Get("Content-Type"))
		assert.Equal(t, "4", rr.Header().Get("Content-Length"))
		assert.Equal(t, `attachment; filename="x-latest.zip"`, rr.Header().Get("Content-Disposition"))
		assert.Equal(t, "PK\x03\x04", rr.Body.String())
	})

	t.Run("client error carries code and details", func(t *testing.T) {
		rr := serve(func(r *http.Request) (*Response, error) {
			return nil, errTestNotFound.WithDetails(map[string][]string{"name": {"required"}})
		})
		require.Equal(t, http.StatusNotFound, rr.Code)
		body := rr.Body.String()
		assert.Equal(t, int64(0), gjson.Get(body, "result").Int())
		assert.Equal(t, "extension not found", gjson.Get(body, "error").String())
		assert.Equal(t, "NOT_FOUND", gjson.Get(body, "code").String())
		assert.Equal(t, "required", gjson.Get(body, "details.name.0").String())
	})

	t.Run("server error is opaque", func(t *testing.T) {
		rr := serve(func(r *http.Request) (*Response, error) {
			return nil, errTestStorage.Err(errors.New("s3: access denied for bucket secret-bucket"))
		})
		require.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "secret-bucket")
		assert.Equal(t, "STORAGE_WRITE_FAILED", gjson.Get(rr.Body.String(), "code").String())
	})

	t.Run("plain error", func(t *testing.T) {
		rr := serve(func(r *http.Request) (*Response, error) {
			return nil, errors.New("boom")
		})
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "boom")
	})

	t.Run("http error", func(t *testing.T) {
		rr := serve(func(r *http.Request) (*Response, error) {
			return nil, ErrUnAuthorized()
		})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
