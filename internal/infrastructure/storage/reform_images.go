// Package storage holds reference images attached to reform requests.
package storage

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reformshop/backend/internal/domain/shared"
)

// reformImagePrefix namespaces every reference image key in the bucket
const reformImagePrefix = "reform-images/"

// imageExtensions maps the accepted upload content types to object key
// extensions. Anything else is rejected before a presigned URL is issued.
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// PresignedURL is a time-limited URL for direct browser access to one object
type PresignedURL struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReformImageStorage issues presigned access to reform reference images.
// Uploads and downloads go straight from the browser to the object store;
// the backend only mints URLs and tracks keys.
type ReformImageStorage interface {
	// PresignUpload mints a PUT URL for a new object under the given key
	PresignUpload(ctx context.Context, key, contentType string) (PresignedURL, error)
	// PresignDownload mints a GET URL for an existing object
	PresignDownload(ctx context.Context, key string) (PresignedURL, error)
	// Delete removes the object, if present
	Delete(ctx context.Context, key string) error
	// Exists reports whether the object is present
	Exists(ctx context.Context, key string) (bool, error)
}

// NewReformImageKey allocates a fresh object key for an upload with the
// given content type.
func NewReformImageKey(contentType string) (string, error) {
	ext, ok := imageExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", shared.NewDomainError("UNSUPPORTED_IMAGE_TYPE", "reference images must be JPEG, PNG or WebP")
	}
	return reformImagePrefix + uuid.NewString() + ext, nil
}

// IsReformImageKey reports whether a key belongs to the reform image
// namespace. Handlers use it to reject presign requests for foreign keys.
func IsReformImageKey(key string) bool {
	return strings.HasPrefix(key, reformImagePrefix) && len(key) > len(reformImagePrefix)
}
