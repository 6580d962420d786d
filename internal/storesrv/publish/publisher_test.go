package publish

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/sjson"
	"github.com/vicinaehq/backend/internal/storesrv/archive"
	"github.com/vicinaehq/backend/internal/storesrv/contentstore"
	"github.com/vicinaehq/backend/internal/storesrv/db/memstore"
	"github.com/vicinaehq/backend/internal/storesrv/db/models"
	"github.com/vicinaehq/backend/internal/storesrv/manifest"
)

const testManifest = `{
	"name": "clipboard-history",
	"title": "Clipboard History",
	"description": "Browse what you copied",
	"author": "Alice",
	"icon": "icon.png",
	"categories": ["Productivity", "Developer Tools", "productivity"],
	"platforms": ["linux", "macos"],
	"dependencies": {"@vicinae/api": "^0.8.2"},
	"commands": [
		{"name": "list", "title": "List", "mode": "view", "keywords": ["clip"], "icon": "list@dark.png"},
		{"name": "clear", "title": "Clear", "mode": "no-view"}
	]
}`

type profiles map[string]string

func (p profiles) DisplayName(_ context.Context, handle string) string {
	if n, ok := p[handle]; ok {
		return n
	}
	return handle
}

type fixture struct {
	store   *contentstore.LocalStore
	catalog *memstore.Store
	pub     *Publisher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store, err := contentstore.NewLocalStore(t.TempDir(), "http://localhost:3000/storage")
	require.NoError(t, err)
	catalog := memstore.New()
	return &fixture{
		store:   store,
		catalog: catalog,
		pub:     New(store, catalog, profiles{"Alice": "Alice Liddell"}, opts...),
	}
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
		"package.json":         manifestJSON,
		"assets/icon.png":      "icon",
		"assets/list@dark.png": "dark list icon",
		"README.md":            "# Clipboard History",
		"dist/list.js":         "export default 1",
	})
}

func upload(data []byte) Upload {
	return Upload{Filename: "clipboard-history.zip", ContentType: "application/zip", Data: data}
}

func TestPublishNewExtension(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	data := extensionZip(t, testManifest)

	res, err := f.pub.Publish(ctx, upload(data))
	require.NoError(t, err)

	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), res.Checksum)
	assert.True(t, res.IsNew)
	assert.Equal(t, "alice/clipboard-history", res.Key)
	assert.Equal(t, "Alice Liddell", res.Author.Name)
	assert.Equal(t, "alice", res.Author.Handle)
	assert.Equal(t, "https://avatars.githubusercontent.com/alice", res.Author.AvatarURL)
	assert.Equal(t, "http://localhost:3000/storage/extensions/alice/clipboard-history/latest.zip", res.DownloadURL)

	stored, err := f.store.Get(ctx, "extensions/alice/clipboard-history/latest.zip")
	require.NoError(t, err)
	assert.Equal(t, data, stored)
	for key, want := range map[string]string{
		"extensions/alice/clipboard-history/icon.png":      "icon",
		"extensions/alice/clipboard-history/list@dark.png": "dark list icon",
		"extensions/alice/clipboard-history/README.md":     "# Clipboard History",
	} {
		got, err := f.store.Get(ctx, key)
		require.NoError(t, err, key)
		assert.Equal(t, want, string(got))
	}
	exists, err := f.store.Exists(ctx, "extensions/alice/clipboard-history/dist/list.js")
	require.NoError(t, err)
	assert.False(t, exists, "only icons and the readme are extracted")

	ext, err := f.catalog.GetExtension(ctx, "alice", "clipboard-history")
	require.NoError(t, err)
	assert.Equal(t, res.ID, ext.ID)
	assert.Equal(t, "^0.8.2", ext.APIVersion)
	assert.Equal(t, "extensions/alice/clipboard-history/latest.zip", ext.StorageKey)
	require.NotNil(t, ext.IconLight)
	assert.Equal(t, "extensions/alice/clipboard-history/icon.png", *ext.IconLight)
	require.NotNil(t, ext.ReadmeKey)
	assert.Equal(t, "extensions/alice/clipboard-history/README.md", *ext.ReadmeKey)
	assert.Equal(t, []string{"productivity", "developer-tools"}, ext.CategoryIDs)
	assert.Equal(t, []string{"linux", "macos"}, ext.PlatformIDs)
	require.Len(t, ext.Commands, 2)
	assert.Nil(t, ext.Commands[0].IconLight)
	require.NotNil(t, ext.Commands[0].IconDark)
	assert.Equal(t, "extensions/alice/clipboard-history/list@dark.png", *ext.Commands[0].IconDark)
	assert.Equal(t, "Alice Liddell", ext.Author.Name)

	cats, err := f.catalog.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Developer Tools", cats[0].Name)
	assert.Equal(t, 1, cats[0].Extensions)
}

func TestRepublishPreservesIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.pub.Publish(ctx, upload(extensionZip(t, testManifest)))
	require.NoError(t, err)
	require.NoError(t, f.catalog.IncrementDownloadCount(ctx, first.ID))

	updated, err := sjson.Set(testManifest, "commands", []map[string]string{{"name": "pick", "title": "Pick", "mode": "view"}})
	require.NoError(t, err)
	updated, err = sjson.Set(updated, "title", "Clipboard History 2")
	require.NoError(t, err)
	second, err := f.pub.Publish(ctx, upload(extensionZip(t, updated)))
	require.NoError(t, err)

	assert.False(t, second.IsNew)
	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, first.Checksum, second.Checksum)
	assert.True(t, second.Extension.CreatedAt.Equal(first.Extension.CreatedAt))
	assert.True(t, second.Extension.UpdatedAt.After(first.Extension.UpdatedAt))

	ext, err := f.catalog.GetExtension(ctx, "alice", "clipboard-history")
	require.NoError(t, err)
	assert.Equal(t, "Clipboard History 2", ext.Title)
	assert.Equal(t, second.Checksum, ext.Checksum)
	assert.Equal(t, int64(1), ext.DownloadCount)
	require.Len(t, ext.Commands, 1)
	assert.Equal(t, "pick", ext.Commands[0].Name)
}

func TestPublishRejectsBeforeAnySideEffect(t *testing.T) {
	small := newFixture(t, WithMaxUploadSize(64))
	tests := []struct {
		name string
		f    *fixture
		up   Upload
		want error
	}{
		{"too large", small, upload(extensionZip(t, testManifest)), ErrPayloadTooLarge},
		{"empty", newFixture(t), Upload{Filename: "x.zip"}, ErrEmptyUpload},
		{"not a zip", newFixture(t), Upload{Filename: "x.tar.gz", ContentType: "application/gzip", Data: []byte("gzip")}, ErrUnsupportedMediaType},
		{"zip name but garbage", newFixture(t), Upload{Filename: "x.zip", Data: []byte("garbage")}, archive.ErrInvalidArchive},
		{"missing manifest", newFixture(t), upload(buildZip(t, map[string]string{"README.md": "hi"})), archive.ErrInvalidArchive},
		{"invalid manifest", newFixture(t), upload(buildZip(t, map[string]string{"package.json": `{"name": "X"}`})), manifest.ErrManifestValidationFailed},
		{"author mismatch", newFixture(t), Upload{Filename: "a.zip", Author: "mallory", Data: extensionZip(t, testManifest)}, ErrAuthorMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.f.pub.Publish(context.Background(), tt.up)
			require.ErrorIs(t, err, tt.want)

			entries, err := os.ReadDir(tt.f.store.Root())
			require.NoError(t, err)
			assert.Empty(t, entries, "nothing may be written to the store")
			_, total, err := tt.f.catalog.ListExtensions(context.Background(), models.ExtensionFilter{IncludeKillListed: true})
			require.NoError(t, err)
			assert.Zero(t, total)
			_, err = tt.f.catalog.GetUserByHandle(context.Background(), "alice")
			assert.Error(t, err)
		})
	}
}

func TestPublishDetectsZipByContent(t *testing.T) {
	f := newFixture(t)
	res, err := f.pub.Publish(context.Background(), Upload{Filename: "blob", ContentType: "application/octet-stream", Data: extensionZip(t, testManifest)})
	require.NoError(t, err)
	assert.True(t, res.IsNew)
}

func TestPublishAuthorIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	res, err := f.pub.Publish(context.Background(), Upload{Filename: "a.zip", Author: "ALICE", Data: extensionZip(t, testManifest)})
	require.NoError(t, err)
	assert.Equal(t, "alice", res.Author.Handle)
	_, err = os.Stat(filepath.Join(f.store.Root(), "extensions", "alice", "clipboard-history", "latest.zip"))
	assert.NoError(t, err)
}

type failingStore struct {
	contentstore.Store
	failOn string
}

func (s *failingStore) Put(ctx context.Context, key string, data []byte, opts ...contentstore.PutOption) error {
	if filepath.Base(key) == s.failOn {
		return contentstore.ErrPutFailed.Err(errors.New("disk full"))
	}
	return s.Store.Put(ctx, key, data, opts...)
}

func TestPublishStorageFailure(t *testing.T) {
	f := newFixture(t)
	pub := New(&failingStore{Store: f.store, failOn: "icon.png"}, f.catalog, nil)
	_, err := pub.Publish(context.Background(), upload(extensionZip(t, testManifest)))
	require.ErrorIs(t, err, ErrStorageWriteFailed)
	assert.ErrorIs(t, err, contentstore.ErrPutFailed)

	_, total, lerr := f.catalog.ListExtensions(context.Background(), models.ExtensionFilter{})
	require.NoError(t, lerr)
	assert.Zero(t, total, "the catalog is untouched when storage fails")
}

func TestPublishWithoutProfileLookupUsesHandle(t *testing.T) {
	f := newFixture(t)
	pub := New(f.store, f.catalog, nil)
	res, err := pub.Publish(context.Background(), upload(extensionZip(t, testManifest)))
	require.NoError(t, err)
	assert.Equal(t, "Alice", res.Author.Name)
}

func TestIsZipUpload(t *testing.T) {
	zipData := buildZip(t, map[string]string{"a": "b"})
	assert.True(t, isZipUpload(Upload{Filename: "A.ZIP"}))
	assert.True(t, isZipUpload(Upload{ContentType: "application/zip; charset=binary"}))
	assert.True(t, isZipUpload(Upload{ContentType: "application/x-zip-compressed"}))
	assert.True(t, isZipUpload(Upload{Data: zipData}))
	assert.False(t, isZipUpload(Upload{Filename: "a.txt", ContentType: "text/plain", Data: []byte("hello")}))
}
