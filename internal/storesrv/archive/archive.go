// Package archive splits an uploaded extension archive into its validated manifest and the
// files the store serves on its own: theme icons and the README.
package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/vicinaehq/backend/internal/common/apperrors"
	"github.com/vicinaehq/backend/internal/storesrv/contentstore"
	"github.com/vicinaehq/backend/internal/storesrv/manifest"
)

const (
	ManifestFile = "package.json"
	ReadmeFile   = "README.md"
)

var (
	ErrInvalidArchive  apperrors.Error = apperrors.New("invalid archive").SetStatusCode(http.StatusBadRequest).SetCode("INVALID_ARCHIVE")
	ErrMissingManifest apperrors.Error = ErrInvalidArchive.New("archive must contain " + ManifestFile + " at root")
	ErrEntryTooLarge   apperrors.Error = ErrInvalidArchive.New("archive entry exceeds the size limit")
	ErrTooMuchContent  apperrors.Error = ErrInvalidArchive.New("extracted files exceed the size limit")
)

// Asset is a file extracted from the archive. RelPath is relative to the extension's storage prefix.
type Asset struct {
	RelPath     string
	Data        []byte
	ContentType string
}

// Decomposed icon variants hold storage relative paths, and only for files present in the archive.
type Decomposed struct {
	Manifest       *manifest.Manifest
	ExtensionIcons manifest.IconVariants
	CommandIcons   []manifest.IconVariants // parallel to Manifest.Commands
	Readme         *Asset
	Assets         []Asset // every extracted file, icons first then the README, without duplicates
}

type Decomposer struct {
	validator    *manifest.Validator
	maxEntrySize int64
	maxTotalSize int64
}

// DefaultMaxEntrySize matches the default upload ceiling.
const DefaultMaxEntrySize = 10 << 20

// TotalSizeFactor bounds everything extracted from one archive to this multiple of the entry limit.
const TotalSizeFactor = 4

// Decompose uses DefaultMaxEntrySize as the per-entry bound.
func Decompose(data []byte, v *manifest.Validator) (*Decomposed, error) {
	return NewDecomposer(v, DefaultMaxEntrySize).Decompose(data)
}

// NewDecomposer returns a decomposer that refuses entries whose uncompressed size exceeds
// maxEntrySize, and archives whose extracted files add up to more than TotalSizeFactor times that.
func NewDecomposer(v *manifest.Validator, maxEntrySize int64) *Decomposer {
	d := &Decomposer{validator: v, maxEntrySize: maxEntrySize}
	if maxEntrySize > 0 {
		d.maxTotalSize = TotalSizeFactor * maxEntrySize
	}
	return d
}

// Decompose is deterministic and free of side effects: the same bytes always yield the same result.
func (d *Decomposer) Decompose(data []byte) (*Decomposed, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, ErrInvalidArchive.MsgErr("unable to read zip archive", err)
	}
	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := cleanEntryName(f.Name)
		if _, dup := entries[name]; !dup {
			entries[name] = f
		}
	}

	mf, ok := entries[ManifestFile]
	if !ok {
		return nil, ErrMissingManifest
	}
	var extracted int64
	raw, err := d.read(mf, &extracted)
	if err != nil {
		return nil, err
	}
	m, err := d.validator.Validate(raw)
	if err != nil {
		return nil, err
	}

	out := &Decomposed{Manifest: m}
	seen := map[string]bool{}
	extract := func(ref *string) (*string, error) {
		if ref == nil {
			return nil, nil
		}
		f, ok := entries[manifest.AssetArchivePath(*ref)]
		if !ok {
			return nil, nil
		}
		p := contentstore.NormalizeKey(*ref)
		if p == "" {
			return nil, nil
		}
		if !seen[p] {
			content, err := d.read(f, &extracted)
			if err != nil {
				return nil, err
			}
			seen[p] = true
			out.Assets = append(out.Assets, Asset{RelPath: p, Data: content, ContentType: contentstore.ContentTypeFor(p)})
		}
		return &p, nil
	}
	resolve := func(ref *string) (manifest.IconVariants, error) {
		variants := manifest.ParseIcon(ref)
		light, err := extract(variants.Light)
		if err != nil {
			return manifest.IconVariants{}, err
		}
		dark, err := extract(variants.Dark)
		if err != nil {
			return manifest.IconVariants{}, err
		}
		return manifest.IconVariants{Light: light, Dark: dark}, nil
	}

	if out.ExtensionIcons, err = resolve(m.Icon); err != nil {
		return nil, err
	}
	out.CommandIcons = make([]manifest.IconVariants, len(m.Commands))
	for i, cmd := range m.Commands {
		if out.CommandIcons[i], err = resolve(cmd.Icon); err != nil {
			return nil, err
		}
	}

	if f, ok := entries[ReadmeFile]; ok {
		content, err := d.read(f, &extracted)
		if err != nil {
			return nil, err
		}
		readme := Asset{RelPath: ReadmeFile, Data: content, ContentType: "text/markdown"}
		out.Readme = &readme
		if !seen[ReadmeFile] {
			out.Assets = append(out.Assets, readme)
		}
	}
	return out, nil
}

// read extracts f and adds its size to extracted, the running total of the archive.
func (d *Decomposer) read(f *zip.File, extracted *int64) ([]byte, error) {
	if d.maxEntrySize > 0 && f.UncompressedSize64 > uint64(d.maxEntrySize) {
		return nil, ErrEntryTooLarge.Msg("archive entry too large: " + f.Name)
	}
	limit := d.maxEntrySize
	if d.maxTotalSize > 0 {
		left := d.maxTotalSize - *extracted
		if f.UncompressedSize64 > uint64(max(left, 0)) {
			return nil, ErrTooMuchContent.Msg("archive content too large at: " + f.Name)
		}
		if limit <= 0 || left < limit {
			limit = left
		}
	}
	rc, err := f.Open()
	if err != nil {
		return nil, ErrInvalidArchive.MsgErr("unable to open archive entry: "+f.Name, err)
	}
	defer rc.Close()
	var r io.Reader = rc
	if limit > 0 {
		// the header size can lie
		r = io.LimitReader(rc, limit+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, ErrInvalidArchive.MsgErr("unable to read archive entry: "+f.Name, err)
	}
	size := int64(len(content))
	if d.maxEntrySize > 0 && size > d.maxEntrySize {
		return nil, ErrEntryTooLarge.Msg("archive entry too large: " + f.Name)
	}
	if d.maxTotalSize > 0 && *extracted+size > d.maxTotalSize {
		return nil, ErrTooMuchContent.Msg("archive content too large at: " + f.Name)
	}
	*extracted += size
	return content, nil
}

func cleanEntryName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	for strings.HasPrefix(name, "./") {
		name = name[2:]
	}
	return strings.TrimLeft(name, "/")
}

// IsZip reports whether data starts with a zip local file or end of central directory signature.
func IsZip(data []byte) bool {
	return bytes.HasPrefix(data, []byte("PK\x03\x04")) || bytes.HasPrefix(data, []byte("PK\x05\x06"))
}
