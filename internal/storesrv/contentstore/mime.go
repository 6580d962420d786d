package contentstore

import (
	"mime"
	"path"
	"strings"
)

// pinned so results do not depend on the host mime database
var contentTypes = map[string]string{
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".webp":  "image/webp",
	".ico":   "image/x-icon",
	".zip":   "application/zip",
	".tar":   "application/x-tar",
	".gz":    "application/gzip",
	".txt":   "text/plain",
	".md":    "text/markdown",
	".json":  "application/json",
	".xml":   "application/xml",
	".pdf":   "application/pdf",
	".html":  "text/html",
	".css":   "text/css",
	".js":    "application/javascript",
	".ts":    "application/typescript",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".mp4":   "video/mp4",
	".webm":  "video/webm",
	".mp3":   "audio/mpeg",
	".wav":   "audio/wav",
	".ogg":   "audio/ogg",
}

const defaultContentType = "application/octet-stream"

// ContentTypeFor guesses a content type from the file extension of p.
func ContentTypeFor(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return defaultContentType
	}
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return defaultContentType
}

// IsInline reports whether a browser should render the content type instead of downloading it.
func IsInline(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || contentType == "text/markdown"
}
