package server

import (
	"archive/zip"
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vicinaehq/backend/internal/storesrv/apis"
	"github.com/vicinaehq/backend/internal/storesrv/config"
	"github.com/vicinaehq/backend/internal/storesrv/contentstore"
	"github.com/vicinaehq/backend/internal/storesrv/db/memstore"
	"github.com/vicinaehq/backend/internal/storesrv/downloads"
	"github.com/vicinaehq/backend/internal/storesrv/metrics"
	"github.com/vicinaehq/backend/internal/storesrv/publish"
	"github.com/vicinaehq/backend/internal/storesrv/trending"
)

const (
	testSecret  = "s3cret"
	testBaseURL = "http://store.test"
)

const clipboardManifest = `{
	"name": "clipboard-history",
	"title": "Clipboard History",
	"description": "Browse what you copied",
	"author": "Alice",
	"icon": "icon.png",
	"categories": ["Productivity", "Developer Tools"],
	"platforms": ["linux", "macos"],
	"dependencies": {"@vicinae/api": "^0.8.2"},
	"commands": [
		{"name": "list", "title": "List", "mode": "view", "keywords": ["clip"]},
		{"name": "clear", "title": "Clear", "mode": "no-view"}
	]
}`

const pickerManifest = `{
	"name": "color-picker",
	"title": "Color Picker",
	"description": "Pick colors from the screen",
	"author": "bob",
	"icon": "icon.png",
	"categories": ["Design"],
	"dependencies": {"@vicinae/api": "^0.8.2"},
	"commands": [{"name": "pick", "title": "Pick", "mode": "no-view"}]
}`

type testServer struct {
	srv     *StoreServer
	store   *contentstore.LocalStore
	catalog *memstore.Store
}

func newTestServer(t *testing.T, mutate ...func(*config.ConfigParam)) *testServer {
	t.Helper()
	cfg := &config.ConfigParam{
		BaseURL:    testBaseURL,
		APISecret:  testSecret,
		HandleCORS: true,
	}
	for _, m := range mutate {
		m(cfg)
	}
	config.SetConfig(cfg)

	store, err := contentstore.NewLocalStore(t.TempDir(), cfg.Storage.Local.BaseURL)
	require.NoError(t, err)
	catalog := memstore.New()
	m := metrics.New()
	counter, err := downloads.NewCounter(catalog, 100, 100, m)
	require.NoError(t, err)

	service := apis.NewService(apis.Deps{
		Catalog:   catalog,
		Store:     store,
		Publisher: publish.New(store, catalog, nil, publish.WithMetrics(m), publish.WithMaxUploadSize(cfg.MaxUploadSize)),
		Counter:   counter,
		Ranker:    trending.NewRanker(catalog, trending.DefaultParams(), m),
		Metrics:   m,
		Config:    cfg,
	})
	s, err := CreateNewServer(service, store, m, cfg)
	require.NoError(t, err, "create new server")
	s.MountHandlers()
	return &testServer{srv: s, store: store, catalog: catalog}
}

func (ts *testServer) execute(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	ts.srv.Router.ServeHTTP(rr, req)
	return rr
}

func checkHeader(t *testing.T, h http.Header) {
	expected := "application/json"
	got := h.Get("Content-Type")
	assert.Equal(t, expected, got, "Content-Type expected %s, got %s", expected, got)
	assert.NotEmpty(t, h.Get("X-Request-ID"), "No Request Id")
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func extensionZip(t *testing.T, manifestJSON string) []byte {
	return buildZip(t, map[string]string{
		"package.json":    manifestJSON,
		"assets/icon.png": "icon",
		"README.md":       "# Clipboard History",
		"dist/index.js":   "export default 1",
	})
}

func uploadRequest(t *testing.T, filename string, data []byte, secret string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != nil {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/store/extension/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}
	return req
}

func adminRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+testSecret)
	return req
}

func (ts *testServer) publish(t *testing.T, manifestJSON string) []byte {
	t.Helper()
	data := extensionZip(t, manifestJSON)
	rr := ts.execute(uploadRequest(t, "extension.zip", data, testSecret))
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, rr.Code, rr.Body.String())
	return data
}
