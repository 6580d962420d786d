package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetrics(t *testing.T) {
	m := New()

	m.ObservePublish(time.Second, nil)
	m.ObservePublish(time.Second, errors.New("x"))
	m.ObserveDownload(true, false)
	m.ObserveDownload(false, true)
	m.ObserveTrending(3, nil)
	m.ObserveStorage("local", "put", time.Millisecond, errors.New("disk"))

	body := scrape(t, m)
	assert.Contains(t, body, `vicinae_store_publishes_total{outcome="success"} 1`)
	assert.Contains(t, body, `vicinae_store_publishes_total{outcome="error"} 1`)
	assert.Contains(t, body, `vicinae_store_downloads_total{counted="true"} 1`)
	assert.Contains(t, body, `vicinae_store_downloads_unknown_client_total 1`)
	assert.Contains(t, body, `vicinae_store_trending_extensions 3`)
	assert.Contains(t, body, `vicinae_store_storage_errors_total{operation="put",provider="local"} 1`)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePublish(time.Second, nil)
		m.ObserveDownload(true, true)
		m.ObserveStorage("s3", "get", time.Second, nil)
		m.ObserveTrending(1, nil)
		m.SetTrackedExtensions(2)
	})
}

func TestMiddleware(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/v1/store/{author}/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/store/alice/clip", nil))

	body := scrape(t, m)
	assert.Contains(t, body, `route="/v1/store/{author}/{name}"`)
	assert.Contains(t, body, `status="418"`)
}
