package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vicinaehq/backend/internal/storesrv/manifest"
)

const testManifest = `{
	"name": "clipboard-history",
	"title": "Clipboard History",
	"description": "Browse what you copied",
	"author": "Alice",
	"icon": "icon.png",
	"dependencies": {"@vicinae/api": "^0.8.2"},
	"commands": [
		{"name": "list", "title": "List", "mode": "view", "icon": "list@dark.png"},
		{"name": "pick", "title": "Pick", "mode": "view", "icon": "assets/icon.png"},
		{"name": "clear", "title": "Clear", "mode": "no-view", "icon": "missing.png"}
	]
}`

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

var validator = manifest.MustNewValidator()

func newDecomposer() *Decomposer {
	return NewDecomposer(validator, 1<<20)
}

func TestDecompose(t *testing.T) {
	data := buildZip(t, map[string]string{
		"package.json":         testManifest,
		"assets/icon.png":      "png-bytes",
		"assets/list@dark.png": "dark-bytes",
		"README.md":            "# Clipboard",
		"dist/index.js":        "console.log(1)",
	})
	d, err := newDecomposer().Decompose(data)
	require.NoError(t, err)

	assert.Equal(t, "clipboard-history", d.Manifest.Name)
	require.NotNil(t, d.ExtensionIcons.Light)
	require.NotNil(t, d.ExtensionIcons.Dark)
	assert.Equal(t, "icon.png", *d.ExtensionIcons.Light)
	assert.Equal(t, "icon.png", *d.ExtensionIcons.Dark)

	require.Len(t, d.CommandIcons, 3)
	assert.Nil(t, d.CommandIcons[0].Light)
	require.NotNil(t, d.CommandIcons[0].Dark)
	assert.Equal(t, "list@dark.png", *d.CommandIcons[0].Dark)
	require.NotNil(t, d.CommandIcons[1].Light)
	assert.Equal(t, "assets/icon.png", *d.CommandIcons[1].Light)
	assert.Nil(t, d.CommandIcons[2].Light, "icons absent from the archive are dropped")
	assert.Nil(t, d.CommandIcons[2].Dark)

	require.NotNil(t, d.Readme)
	assert.Equal(t, "# Clipboard", string(d.Readme.Data))

	paths := make([]string, 0, len(d.Assets))
	for _, a := range d.Assets {
		paths = append(paths, a.RelPath)
	}
	assert.Equal(t, []string{"icon.png", "list@dark.png", "assets/icon.png", "README.md"}, paths)
	assert.Equal(t, "image/png", d.Assets[0].ContentType)
	assert.Equal(t, "png-bytes", string(d.Assets[0].Data))
}

func TestDecomposeIsDeterministic(t *testing.T) {
	data := buildZip(t, map[string]string{
		"package.json":         testManifest,
		"assets/icon.png":      "png-bytes",
		"assets/list@dark.png": "dark-bytes",
	})
	first, err := newDecomposer().Decompose(data)
	require.NoError(t, err)
	second, err := Decompose(data, validator)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecomposeWithoutOptionalFiles(t *testing.T) {
	data := buildZip(t, map[string]string{"./package.json": testManifest})
	d, err := newDecomposer().Decompose(data)
	require.NoError(t, err)
	assert.Nil(t, d.Readme)
	assert.Empty(t, d.Assets)
	assert.Nil(t, d.ExtensionIcons.Light)
}

func TestDecomposeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"not a zip", []byte("definitely not a zip"), ErrInvalidArchive},
		{"no manifest", buildZip(t, map[string]string{"README.md": "hi"}), ErrMissingManifest},
		{"nested manifest", buildZip(t, map[string]string{"ext/package.json": testManifest}), ErrMissingManifest},
		{"bad manifest", buildZip(t, map[string]string{"package.json": `{"name":`}), manifest.ErrInvalidManifest},
		{"invalid manifest", buildZip(t, map[string]string{"package.json": `{"name": "x"}`}), manifest.ErrManifestValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newDecomposer().Decompose(tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecomposeEntryLimit(t *testing.T) {
	data := buildZip(t, map[string]string{
		"package.json":    testManifest,
		"assets/icon.png": strings.Repeat("x", 4096),
	})
	_, err := NewDecomposer(manifest.MustNewValidator(), 2048).Decompose(data)
	assert.ErrorIs(t, err, ErrEntryTooLarge)
	assert.ErrorIs(t, err, ErrInvalidArchive)
}

// manyIconsArchive has one command per icon, every icon distinct and iconSize bytes long.
func manyIconsArchive(t *testing.T, icons, iconSize int) []byte {
	t.Helper()
	files := map[string]string{}
	commands := make([]string, 0, icons)
	for i := 0; i < icons; i++ {
		icon := fmt.Sprintf("cmd%d.png", i)
		commands = append(commands, fmt.Sprintf(`{"name": "cmd%d", "title": "Command %d", "mode": "view", "icon": %q}`, i, i, icon))
		files["assets/"+icon] = strings.Repeat(string(rune('a'+i%26)), iconSize)
	}
	files["package.json"] = fmt.Sprintf(`{
	"name": "many-icons",
	"title": "Many Icons",
	"description": "One icon per command",
	"author": "alice",
	"dependencies": {"@vicinae/api": "^0.8.2"},
	"commands": [%s]
}`, strings.Join(commands, ","))
	return buildZip(t, files)
}

func TestDecomposeTotalLimit(t *testing.T) {
	const entryLimit = 2048

	// every icon fits the entry limit on its own, together they exceed the archive budget
	_, err := NewDecomposer(validator, entryLimit).Decompose(manyIconsArchive(t, 2*TotalSizeFactor, 1500))
	assert.ErrorIs(t, err, ErrTooMuchContent)
	assert.ErrorIs(t, err, ErrInvalidArchive)

	d, err := NewDecomposer(validator, entryLimit).Decompose(manyIconsArchive(t, 3, 1500))
	require.NoError(t, err)
	assert.Len(t, d.Assets, 3)

	// a zero entry limit disables both bounds
	_, err = NewDecomposer(validator, 0).Decompose(manyIconsArchive(t, 2*TotalSizeFactor, 1500))
	assert.NoError(t, err)
}

func TestIsZip(t *testing.T) {
	assert.True(t, IsZip(buildZip(t, map[string]string{"a": "b"})))
	assert.False(t, IsZip([]byte("PK")))
	assert.False(t, IsZip([]byte("hello")))
}
