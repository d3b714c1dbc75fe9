// Package asset validates binary uploads and builds deterministic storage
// keys. It is pure logic aside from the random filename token.
package asset

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"ideamint/internal/util"
)

var (
	// ErrInvalidType indicates the declared content type is not on the
	// allow-list for the target bucket.
	ErrInvalidType = errors.New("unsupported content type")
	// ErrTooLarge indicates the file exceeds the bucket's size ceiling.
	ErrTooLarge = errors.New("file too large")
)

// Well-known buckets.
const (
	BucketAssets   = "ai-assets"
	BucketAvatars  = "user-avatars"
	BucketMetadata = "nft-metadata"
)

// UploadContext describes where an upload may land and what it may contain.
// Folder defaults to the acting user's identifier when unset.
type UploadContext struct {
	Bucket       string
	Folder       string
	AllowedTypes []string
	MaxSizeBytes int64
}

// Descriptor is the validated placement for an upload.
type Descriptor struct {
	Bucket      string
	StorageKey  string
	ContentType string
	SizeBytes   int64
}

const (
	maxContentBytes = 50 << 20
	maxImageBytes   = 5 << 20
)

var previewImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// ContentUpload is the upload context for product content files.
func ContentUpload() UploadContext {
	return UploadContext{
		Bucket: BucketAssets,
		AllowedTypes: []string{
			"image/*", "application/pdf",
			"audio/mpeg", "audio/wav",
			"video/mp4", "video/webm",
		},
		MaxSizeBytes: maxContentBytes,
	}
}

// PreviewUpload is the upload context for product preview images.
func PreviewUpload() UploadContext {
	return UploadContext{
		Bucket:       BucketAssets,
		Folder:       "previews",
		AllowedTypes: previewImageTypes,
		MaxSizeBytes: maxImageBytes,
	}
}

// AvatarUpload is the upload context for user avatars.
func AvatarUpload() UploadContext {
	return UploadContext{
		Bucket:       BucketAvatars,
		AllowedTypes: previewImageTypes,
		MaxSizeBytes: maxImageBytes,
	}
}

// Validate checks the declared content type and size against the context and
// returns the storage placement. The key is folder/<token>.<ext> with a fresh
// random token per call, so keys are never reused.
func Validate(ctx UploadContext, actorID, contentType string, sizeBytes int64) (Descriptor, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if !typeAllowed(ctx.AllowedTypes, contentType) {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrInvalidType, contentType)
	}
	if ctx.MaxSizeBytes > 0 && sizeBytes > ctx.MaxSizeBytes {
		return Descriptor{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, sizeBytes, ctx.MaxSizeBytes)
	}
	folder := strings.TrimSpace(ctx.Folder)
	if folder == "" {
		folder = strings.TrimSpace(actorID)
	}
	if folder == "" {
		folder = "temp"
	}
	name := util.NewID() + "." + extensionFor(contentType)
	return Descriptor{
		Bucket:      ctx.Bucket,
		StorageKey:  path.Join(folder, name),
		ContentType: contentType,
		SizeBytes:   sizeBytes,
	}, nil
}

func typeAllowed(allowed []string, contentType string) bool {
	if contentType == "" {
		return false
	}
	for _, t := range allowed {
		if t == contentType {
			return true
		}
		if suffix, ok := strings.CutSuffix(t, "/*"); ok && strings.HasPrefix(contentType, suffix+"/") {
			return true
		}
	}
	return false
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return "jpg"
	case "audio/mpeg":
		return "mp3"
	case "audio/wav":
		return "wav"
	}
	if _, sub, ok := strings.Cut(contentType, "/"); ok && sub != "" {
		return sanitizeExt(sub)
	}
	return "bin"
}

func sanitizeExt(sub string) string {
	var b strings.Builder
	for _, r := range sub {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "bin"
	}
	return b.String()
}
