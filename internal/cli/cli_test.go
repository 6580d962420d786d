package cli

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const testAPIKey = "s3cret"

func newStoreServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	requireAdmin := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer "+testAPIKey {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"result":0,"error":"Unauthorized"}`)
			return false
		}
		return true
	}
	mux.HandleFunc("GET /v1/store/list", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "design", r.URL.Query().Get("category"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		io.WriteString(w, `{"extensions":[{"name":"color-picker","title":"Color Picker","author":{"handle":"bob"},"downloadCount":12,"trending":true}],
			"pagination":{"page":2,"limit":1,"total":2,"totalPages":2,"hasNext":false,"hasPrev":true}}`)
	})
	mux.HandleFunc("GET /v1/store/alice/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"result":0,"error":"extension not found","code":"NOT_FOUND"}`)
	})
	mux.HandleFunc("GET /v1/store/alice/clip/download", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="clip-latest.zip"`)
		io.WriteString(w, "PK zip bytes")
	})
	mux.HandleFunc("POST /v1/store/extension/upload", func(w http.ResponseWriter, r *http.Request) {
		if !requireAdmin(w, r) {
			return
		}
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		assert.Equal(t, "clip.zip", header.Filename)
		assert.Equal(t, "zip data", string(data))
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"success":true,"extension":{"key":"alice/clip","title":"Clip","checksum":"abc","isNew":true}}`)
	})
	mux.HandleFunc("PUT /v1/store/alice/clip/kill-list", func(w http.ResponseWriter, r *http.Request) {
		if requireAdmin(w, r) {
			io.WriteString(w, `{"success":true,"message":"alice/clip removed from the store"}`)
		}
	})
	mux.HandleFunc("DELETE /v1/store/alice/clip/kill-list", func(w http.ResponseWriter, r *http.Request) {
		if requireAdmin(w, r) {
			io.WriteString(w, `{"success":true,"message":"alice/clip restored"}`)
		}
	})
	mux.HandleFunc("PUT /v1/store/alice/clip/trending", func(w http.ResponseWriter, r *http.Request) {
		if requireAdmin(w, r) {
			io.WriteString(w, `{"success":true,"message":"alice/clip marked as trending"}`)
		}
	})
	mux.HandleFunc("POST /v1/store/update-trending", func(w http.ResponseWriter, r *http.Request) {
		if requireAdmin(w, r) {
			io.WriteString(w, `{"success":true,"message":"Trending status updated for all extensions","candidates":4,"trending":["a"]}`)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeTestConfig(t *testing.T, server, apiKey string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, (&Config{Version: "1", Server: server, APIKey: apiKey}).WriteConfig(file))
	return file
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	jsonOutput, restoreFlag = false, false
	listCategory, listPage, listLimit, outputFile = "", 0, 0, ""
	configServer, configAPIKey, configFile = "", "", ""

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestListCommand(t *testing.T) {
	srv := newStoreServer(t)
	cfg := writeTestConfig(t, srv.URL, "")

	out, err := runCLI(t, "--config", cfg, "list", "--category", "design", "--page", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "bob/color-picker")
	assert.Contains(t, out, "Page 2 of 2 (2 extensions)")

	out, err = runCLI(t, "--config", cfg, "--json", "list", "--category", "design", "--page", "2")
	require.NoError(t, err)
	assert.Equal(t, int64(12), gjson.Get(out, "extensions.0.downloadCount").Int())
}

func TestServerErrorsAreReported(t *testing.T) {
	srv := newStoreServer(t)
	cfg := writeTestConfig(t, srv.URL, "")

	_, err := runCLI(t, "--config", cfg, "get", "alice/missing")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, "NOT_FOUND", httpErr.Code)
	assert.Equal(t, "extension not found (NOT_FOUND)", err.Error())

	_, err = runCLI(t, "--config", cfg, "get", "not-a-ref")
	assert.ErrorContains(t, err, "expected <author>/<name>")
}

func TestDownloadCommand(t *testing.T) {
	srv := newStoreServer(t)
	cfg := writeTestConfig(t, srv.URL, "")
	target := filepath.Join(t.TempDir(), "out.zip")

	out, err := runCLI(t, "--config", cfg, "download", "alice/clip", "-o", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved "+target)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "PK zip bytes", string(data))
}

func TestAdminCommands(t *testing.T) {
	srv := newStoreServer(t)
	cfg := writeTestConfig(t, srv.URL, testAPIKey)
	archive := filepath.Join(t.TempDir(), "clip.zip")
	require.NoError(t, os.WriteFile(archive, []byte("zip data"), 0o644))

	out, err := runCLI(t, "--config", cfg, "publish", archive)
	require.NoError(t, err)
	assert.Contains(t, out, "Published alice/clip (Clip)")

	out, err = runCLI(t, "--config", cfg, "kill-list", "alice/clip")
	require.NoError(t, err)
	assert.Contains(t, out, "removed from the store")

	out, err = runCLI(t, "--config", cfg, "kill-list", "alice/clip", "--restore")
	require.NoError(t, err)
	assert.Contains(t, out, "alice/clip restored")

	out, err = runCLI(t, "--config", cfg, "trending", "mark", "alice/clip")
	require.NoError(t, err)
	assert.Contains(t, out, "marked as trending")

	out, err = runCLI(t, "--config", cfg, "trending", "update")
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 4 extensions trending")
}

func TestAdminCommandsNeedKey(t *testing.T) {
	srv := newStoreServer(t)

	_, err := runCLI(t, "--config", writeTestConfig(t, srv.URL, ""), "trending", "update")
	assert.ErrorContains(t, err, "api_key is not configured")

	_, err = runCLI(t, "--config", writeTestConfig(t, srv.URL, "wrong"), "trending", "update")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
}

func TestConfigCommands(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")

	out, err := runCLI(t, "--config", file, "config", "create", "--server", "localhost:3000", "--api-key", "k")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration written to "+file)

	out, err = runCLI(t, "--config", file, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Server: http://localhost:3000")
	assert.NotContains(t, out, "API key: k")

	_, err = runCLI(t, "--config", filepath.Join(t.TempDir(), "none.yaml"), "list")
	assert.ErrorContains(t, err, "store-cli config create")
}

func TestHashSecretCommand(t *testing.T) {
	out, err := runCLI(t, "hash-secret", "s3cret")
	require.NoError(t, err)
	assert.Contains(t, out, "$argon2id$v=19$")
}
