package objectstore

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"veriscan/internal/ports"
)

func setupFSStore(t *testing.T) *FSStore {
	t.Helper()

	store, err := NewFSStore(t.TempDir(), "http://localhost:8080", []byte("test-secret"))
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	return store
}

func TestFSStoreUploadAndRead(t *testing.T) {
	store := setupFSStore(t)
	ctx := context.Background()

	ref, err := store.Upload(ctx, "owner-a", "camera_1.jpg", []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if ref.Key != "owner-a/camera_1.jpg" {
		t.Fatalf("Upload() key = %q", ref.Key)
	}
	if ref.Size != int64(len("jpeg-bytes")) {
		t.Fatalf("Upload() size = %d", ref.Size)
	}

	payload, err := store.ReadObject(ctx, "owner-a", "camera_1.jpg")
	if err != nil {
		t.Fatalf("ReadObject() error = %v", err)
	}
	if string(payload) != "jpeg-bytes" {
		t.Fatalf("ReadObject() = %q", payload)
	}
}

func TestFSStoreNeverOverwrites(t *testing.T) {
	store := setupFSStore(t)
	ctx := context.Background()

	if _, err := store.Upload(ctx, "owner-a", "camera_1.jpg", []byte("first")); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if _, err := store.Upload(ctx, "owner-a", "camera_1.jpg", []byte("second")); !errors.Is(err, ports.ErrObjectExists) {
		t.Fatalf("Upload(existing) error = %v, want ErrObjectExists", err)
	}

	payload, err := store.ReadObject(ctx, "owner-a", "camera_1.jpg")
	if err != nil {
		t.Fatalf("ReadObject() error = %v", err)
	}
	if string(payload) != "first" {
		t.Fatalf("ReadObject() = %q, want original payload intact", payload)
	}
}

func TestFSStoreSignedURLRoundTrip(t *testing.T) {
	store := setupFSStore(t)
	ctx := context.Background()

	if _, err := store.Upload(ctx, "owner-a", "camera_1.jpg", []byte("jpeg-bytes")); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	signed, err := store.SignedURL(ctx, "owner-a", "camera_1.jpg", time.Minute)
	if err != nil {
		t.Fatalf("SignedURL() error = %v", err)
	}
	if !strings.HasPrefix(signed, "http://localhost:8080/objects/owner-a/camera_1.jpg?") {
		t.Fatalf("SignedURL() = %q", signed)
	}

	parsed, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	expires, err := strconv.ParseInt(parsed.Query().Get("exp"), 10, 64)
	if err != nil {
		t.Fatalf("parse exp: %v", err)
	}
	sig := parsed.Query().Get("sig")

	if err := store.Verify("owner-a/camera_1.jpg", expires, sig); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if err := store.Verify("owner-b/camera_1.jpg", expires, sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("Verify(other key) error = %v, want ErrBadSignature", err)
	}
	if err := store.Verify("owner-a/camera_1.jpg", expires, "deadbeef"); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("Verify(bad sig) error = %v, want ErrBadSignature", err)
	}
}

func TestFSStoreSignedURLExpiry(t *testing.T) {
	store := setupFSStore(t)

	expired := time.Now().Add(-time.Minute).Unix()
	sig := store.sign("owner-a/camera_1.jpg", expired)

	if err := store.Verify("owner-a/camera_1.jpg", expired, sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("Verify(expired) error = %v, want ErrBadSignature", err)
	}
}

func TestFSStoreSignedURLMissingObject(t *testing.T) {
	store := setupFSStore(t)

	if _, err := store.SignedURL(context.Background(), "owner-a", "missing.jpg", time.Minute); !errors.Is(err, ports.ErrObjectNotFound) {
		t.Fatalf("SignedURL(missing) error = %v, want ErrObjectNotFound", err)
	}
}

func TestFSStoreDelete(t *testing.T) {
	store := setupFSStore(t)
	ctx := context.Background()

	if _, err := store.Upload(ctx, "owner-a", "camera_1.jpg", []byte("jpeg-bytes")); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if err := store.Delete(ctx, "owner-a", "camera_1.jpg"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "owner-a", "camera_1.jpg"); !errors.Is(err, ports.ErrObjectNotFound) {
		t.Fatalf("Delete(again) error = %v, want ErrObjectNotFound", err)
	}
}

func TestFSStoreRejectsBadKeys(t *testing.T) {
	store := setupFSStore(t)
	ctx := context.Background()

	if _, err := store.Upload(ctx, "", "camera_1.jpg", []byte("x")); !errors.Is(err, ports.ErrNotAuthenticated) {
		t.Fatalf("Upload(no owner) error = %v, want ErrNotAuthenticated", err)
	}
	if _, err := store.Upload(ctx, "owner-a", "../escape.jpg", []byte("x")); err == nil {
		t.Fatalf("Upload(path separator) expected error")
	}
	if _, err := store.Upload(ctx, "owner/../b", "camera_1.jpg", []byte("x")); err == nil {
		t.Fatalf("Upload(owner with separator) expected error")
	}
}
