package apis

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/vicinaehq/backend/internal/common/httpx"
	"github.com/vicinaehq/backend/internal/storesrv/contentstore"
)

// objects can be overwritten by a republish, so caches revalidate with the ETag
const storageCacheControl = "public, max-age=300"

// StorageRouter serves objects of the local content store under /storage/*.
func (s *Service) StorageRouter(r chi.Router) {
	r.Method(http.MethodGet, "/*", httpx.WrapHttpRsp(s.getObject))
}

func (s *Service) getObject(r *http.Request) (*httpx.Response, error) {
	raw := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		// chi matched on the escaped path
		if unescaped, err := url.PathUnescape(raw); err == nil {
			raw = unescaped
		}
	}
	key := contentstore.NormalizeKey(raw)
	if key == "" {
		return nil, ErrFileNotFound
	}
	data, err := s.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, contentstore.ErrObjectNotFound) || errors.Is(err, contentstore.ErrInvalidKey) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}

	sum := sha256.Sum256(data)
	etag := `"` + hex.EncodeToString(sum[:]) + `"`
	contentType := contentstore.ContentTypeFor(key)

	headers := http.Header{}
	headers.Set("ETag", etag)
	headers.Set("Cache-Control", storageCacheControl)
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		return &httpx.Response{
			StatusCode:  http.StatusNotModified,
			ContentType: contentType,
			Body:        []byte{},
			Headers:     headers,
		}, nil
	}

	disposition := "attachment"
	if contentstore.IsInline(contentType) {
		disposition = "inline"
	}
	headers.Set("Content-Disposition", disposition+`; filename="`+path.Base(key)+`"`)
	return &httpx.Response{
		StatusCode:  http.StatusOK,
		ContentType: contentType,
		Body:        data,
		Headers:     headers,
	}, nil
}

func etagMatches(ifNoneMatch, etag string) bool {
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
