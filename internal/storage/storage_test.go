package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestObjectKey_KeepsFolderAndLowercaseExtension(t *testing.T) {
	key := ObjectKey("cakeapp/cakes", "Birthday.JPG")

	if !strings.HasPrefix(key, "cakeapp/cakes/") {
		t.Errorf("key = %q, want prefix cakeapp/cakes/", key)
	}
	if !strings.HasSuffix(key, ".jpg") {
		t.Errorf("key = %q, want suffix .jpg", key)
	}
	if strings.Contains(key, "Birthday") {
		t.Errorf("key = %q, should not contain the original file name", key)
	}
}

func TestObjectKey_IsUnique(t *testing.T) {
	a := ObjectKey(FolderShops, "a.png")
	b := ObjectKey(FolderShops, "a.png")
	if a == b {
		t.Errorf("expected distinct keys, got %q twice", a)
	}
}

func TestObjectKey_EmptyFolder(t *testing.T) {
	key := ObjectKey("", "x.png")
	if strings.Contains(key, "/") {
		t.Errorf("key = %q, want no folder separator", key)
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"a.jpg", "image/jpeg"},
		{"a.JPEG", "image/jpeg"},
		{"a.png", "image/png"},
		{"a.gif", "image/gif"},
		{"a.webp", "image/webp"},
		{"a.bin", "application/octet-stream"},
		{"noext", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := ContentType(tt.filename); got != tt.want {
				t.Errorf("ContentType(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}

func TestPublicURL(t *testing.T) {
	got := PublicURL("https://cdn.example.com/", "cakeapp", "cakeapp/cakes/x.png")
	want := "https://cdn.example.com/cakeapp/cakeapp/cakes/x.png"
	if got != want {
		t.Errorf("PublicURL = %q, want %q", got, want)
	}
}

func TestUpload_EmptyData_ReturnsErrEmptyObject(t *testing.T) {
	// 空データはクライアントに到達する前に拒否される
	m := &MinIOUploader{bucket: "cakeapp"}
	if _, err := m.Upload(context.Background(), nil, "a.png", FolderCakes); !errors.Is(err, ErrEmptyObject) {
		t.Errorf("MinIO Upload error = %v, want ErrEmptyObject", err)
	}

	g := &GCSUploader{bucket: "cakeapp"}
	if _, err := g.Upload(context.Background(), []byte{}, "a.png", FolderCakes); !errors.Is(err, ErrEmptyObject) {
		t.Errorf("GCS Upload error = %v, want ErrEmptyObject", err)
	}
}
