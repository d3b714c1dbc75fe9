package asset

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateRejectsUnsupportedType(t *testing.T) {
	_, err := Validate(ContentUpload(), "user-1", "application/zip", 1024)
	if !errors.Is(err, ErrInvalidType) {
		t.Fatalf("err = %v, want ErrInvalidType", err)
	}
}

func TestValidateRejectsOversizedPreview(t *testing.T) {
	_, err := Validate(PreviewUpload(), "user-1", "image/png", 6<<20)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
}

func TestValidateAcceptsImageWildcard(t *testing.T) {
	desc, err := Validate(ContentUpload(), "user-1", "image/png", 4<<20)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if desc.Bucket != BucketAssets {
		t.Fatalf("bucket = %q, want %q", desc.Bucket, BucketAssets)
	}
	if !strings.HasPrefix(desc.StorageKey, "user-1/") {
		t.Fatalf("key = %q, want user-1/ prefix", desc.StorageKey)
	}
	if !strings.HasSuffix(desc.StorageKey, ".png") {
		t.Fatalf("key = %q, want .png suffix", desc.StorageKey)
	}
}

func TestValidateKeyIsFreshPerCall(t *testing.T) {
	a, err := Validate(ContentUpload(), "user-1", "application/pdf", 100)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	b, err := Validate(ContentUpload(), "user-1", "application/pdf", 100)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if a.StorageKey == b.StorageKey {
		t.Fatalf("two uploads mapped to the same key %q", a.StorageKey)
	}
}

func TestValidateFolderFallsBackToTemp(t *testing.T) {
	desc, err := Validate(ContentUpload(), "  ", "application/pdf", 100)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.HasPrefix(desc.StorageKey, "temp/") {
		t.Fatalf("key = %q, want temp/ prefix", desc.StorageKey)
	}
}

func TestPreviewUploadUsesPreviewsFolder(t *testing.T) {
	desc, err := Validate(PreviewUpload(), "user-1", "image/webp", 100)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.HasPrefix(desc.StorageKey, "previews/") {
		t.Fatalf("key = %q, want previews/ prefix", desc.StorageKey)
	}
}

func TestExtensionMapping(t *testing.T) {
	cases := map[string]string{
		"image/jpeg": "jpg",
		"audio/mpeg": "mp3",
		"audio/wav":  "wav",
		"video/mp4":  "mp4",
	}
	for contentType, want := range cases {
		if got := extensionFor(contentType); got != want {
			t.Errorf("extensionFor(%q) = %q, want %q", contentType, got, want)
		}
	}
}
