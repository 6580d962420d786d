package contentstore

import (
	"path"
	"strings"
)

const (
	extensionsPrefix = "extensions"
	ArchiveFileName  = "latest.zip"
)

// NormalizeKey strips leading slashes and removes empty, "." and ".." segments so the
// result is always a relative path below the store root. Backslashes are treated as
// separators. The empty string is returned when nothing addressable remains.
func NormalizeKey(key string) string {
	key = strings.ReplaceAll(key, "\\", "/")
	segments := strings.Split(key, "/")
	kept := segments[:0]
	for _, s := range segments {
		if s == "" || s == "." || s == ".." {
			continue
		}
		kept = append(kept, s)
	}
	return strings.Join(kept, "/")
}

func normalize(key string) (string, error) {
	k := NormalizeKey(key)
	if k == "" {
		return "", ErrInvalidKey.Msg("invalid object key: " + key)
	}
	return k, nil
}

// ExtensionPrefix is the directory that holds every object of an extension.
func ExtensionPrefix(author, name string) string {
	return path.Join(extensionsPrefix, strings.ToLower(author), name)
}

// ArchiveKey is where the latest archive of an extension lives.
func ArchiveKey(author, name string) string {
	return path.Join(ExtensionPrefix(author, name), ArchiveFileName)
}

// AssetKey is where an extracted archive file is stored, relPath being relative to the extension.
func AssetKey(author, name, relPath string) string {
	return path.Join(ExtensionPrefix(author, name), NormalizeKey(relPath))
}
