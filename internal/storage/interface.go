package storage

import (
	"context"
	"io"
	"path"
	"strings"
)

// MediaStorage stores prompt media such as preview images and videos.
type MediaStorage interface {
	// Upload writes an object under key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Exists checks if an object exists.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes an object.
	Delete(ctx context.Context, key string) error

	// GetURL returns the public URL of an object.
	GetURL(key string) string
}

// IsObjectKey reports whether ref is a storage key rather than an absolute
// URL, a data URI or a site-rooted path.
func IsObjectKey(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "/") {
		return false
	}
	lower := strings.ToLower(ref)
	return !strings.HasPrefix(lower, "http://") &&
		!strings.HasPrefix(lower, "https://") &&
		!strings.HasPrefix(lower, "data:")
}

// MediaKey builds the object key for a prompt's media file.
func MediaKey(promptID, filename string) string {
	return path.Join("prompts", promptID, path.Base(filename))
}

// ContentTypeFor guesses a media content type from a file extension.
func ContentTypeFor(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}
