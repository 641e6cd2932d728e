package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeBlobStore records calls and can corrupt fetched content to exercise
// the round-trip verification.
type fakeBlobStore struct {
	objects    map[string][]byte
	corrupt    bool
	removed    []string
	signedErr  error
	lastKey    string
	uploadFail bool
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (s *fakeBlobStore) Upload(_ context.Context, key string, content []byte, _ string) error {
	if s.uploadFail {
		return context.DeadlineExceeded
	}
	s.lastKey = key
	s.objects[key] = append([]byte(nil), content...)
	return nil
}

func (s *fakeBlobStore) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if s.signedErr != nil {
		return "", s.signedErr
	}
	return "signed://" + key, nil
}

func (s *fakeBlobStore) PublicURL(key string) string {
	return "public://" + key
}

func (s *fakeBlobStore) Fetch(_ context.Context, url string) ([]byte, error) {
	key := strings.TrimPrefix(strings.TrimPrefix(url, "signed://"), "public://")
	content := append([]byte(nil), s.objects[key]...)
	if s.corrupt && len(content) > 0 {
		content[0] ^= 0xFF
	}
	return content, nil
}

func (s *fakeBlobStore) Remove(_ context.Context, key string) error {
	s.removed = append(s.removed, key)
	delete(s.objects, key)
	return nil
}

func TestUploadRoundTrip(t *testing.T) {
	store := newFakeBlobStore()
	u := NewUploader(store, zap.NewNop(), time.Hour, false, time.Second)

	content := []byte("%PDF-1.4 round trip")
	url, err := u.Upload(context.Background(), content, "invoice.pdf", "application/pdf", "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(url, "signed://") {
		t.Errorf("expected signed URL, got %q", url)
	}
	if len(store.removed) != 0 {
		t.Errorf("nothing should be removed on success, got %v", store.removed)
	}
}

func TestUploadCorruptionRollsBack(t *testing.T) {
	store := newFakeBlobStore()
	store.corrupt = true
	u := NewUploader(store, zap.NewNop(), time.Hour, false, time.Second)

	_, err := u.Upload(context.Background(), []byte("%PDF-1.4 x"), "invoice.pdf", "application/pdf", "")
	if err == nil {
		t.Fatal("corrupted round trip must fail")
	}
	if len(store.removed) != 1 {
		t.Fatalf("corrupted object must be removed, removed=%v", store.removed)
	}
	if _, ok := store.objects[store.lastKey]; ok {
		t.Error("object should be gone after rollback")
	}
}

func TestUploadSignedURLFallsBackToPublic(t *testing.T) {
	store := newFakeBlobStore()
	store.signedErr = context.DeadlineExceeded
	u := NewUploader(store, zap.NewNop(), time.Hour, false, time.Second)

	url, err := u.Upload(context.Background(), []byte("%PDF-1.4 y"), "invoice.pdf", "application/pdf", "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(url, "public://") {
		t.Errorf("expected public fallback URL, got %q", url)
	}
}

func TestUploadPublicBucket(t *testing.T) {
	store := newFakeBlobStore()
	u := NewUploader(store, zap.NewNop(), time.Hour, true, time.Second)

	url, err := u.Upload(context.Background(), []byte("%PDF-1.4 z"), "invoice.pdf", "application/pdf", "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(url, "public://") {
		t.Errorf("expected public URL, got %q", url)
	}
}

func TestUploadEmptyContentRejected(t *testing.T) {
	u := NewUploader(newFakeBlobStore(), zap.NewNop(), time.Hour, false, time.Second)
	if _, err := u.Upload(context.Background(), nil, "x.pdf", "application/pdf", ""); err == nil {
		t.Fatal("empty content must be rejected")
	}
	if _, err := u.UploadRaw(context.Background(), nil, "x.pdf", "application/pdf"); err == nil {
		t.Fatal("empty content must be rejected by the raw path too")
	}
}

func TestObjectKeySanitization(t *testing.T) {
	u := NewUploader(newFakeBlobStore(), zap.NewNop(), time.Hour, false, time.Second)

	key := u.objectKey("my invoice (final)?.pdf")
	if !strings.HasPrefix(key, "invoice_") {
		t.Errorf("key = %q", key)
	}
	if strings.ContainsAny(key, " ()?") {
		t.Errorf("unsafe characters leaked into key: %q", key)
	}
	if !strings.HasSuffix(key, ".pdf") {
		t.Errorf("extension should survive sanitization: %q", key)
	}

	if k2 := u.objectKey("my invoice (final)?.pdf"); k2 == key {
		t.Errorf("two keys for the same filename should differ: %q", key)
	}

	if key := u.objectKey(""); !strings.Contains(key, "attachment") {
		t.Errorf("empty filename should fall back to a default: %q", key)
	}
}
