package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"
)

// unsafeChars matches filename characters replaced before upload.
var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9.-]`)

// Uploader persists validated attachment bytes to object storage and
// verifies the upload round-trip before the key is allowed to appear on a
// persisted invoice.
type Uploader struct {
	store        BlobStore
	logger       *zap.Logger
	signedURLTTL time.Duration
	publicBucket bool
	callTimeout  time.Duration
}

// NewUploader creates a new uploader. When publicBucket is false, a signed
// URL is resolved for the uploaded object; otherwise the public URL is used.
func NewUploader(store BlobStore, logger *zap.Logger, signedURLTTL time.Duration, publicBucket bool, callTimeout time.Duration) *Uploader {
	if signedURLTTL <= 0 {
		signedURLTTL = time.Hour
	}
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &Uploader{
		store:        store,
		logger:       logger,
		signedURLTTL: signedURLTTL,
		publicBucket: publicBucket,
		callTimeout:  callTimeout,
	}
}

// Upload stores content under a sanitized, collision-resistant key, resolves
// a retrievable URL, re-fetches the object and confirms byte-for-byte
// equivalence (length plus checksum) with the original. On any mismatch the
// object is deleted and an error returned; a partially-corrupted upload must
// never be referenced by an invoice. checksum is the pre-upload SHA-256 from
// validation; pass "" to have it computed here.
func (u *Uploader) Upload(ctx context.Context, content []byte, filename, contentType, checksum string) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("refusing to upload empty content for %q", filename)
	}
	if checksum == "" {
		checksum = Checksum(content)
	}

	key := u.objectKey(filename)

	upCtx, cancel := context.WithTimeout(ctx, u.callTimeout)
	defer cancel()
	if err := u.store.Upload(upCtx, key, content, contentType); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	url, err := u.resolveURL(ctx, key)
	if err != nil {
		u.remove(ctx, key)
		return "", err
	}

	if err := u.verify(ctx, url, len(content), checksum); err != nil {
		u.logger.Error("Upload verification failed, rolling back",
			zap.String("key", key),
			zap.Error(err))
		u.remove(ctx, key)
		return "", fmt.Errorf("verify %s: %w", key, err)
	}

	u.logger.Info("Attachment uploaded and verified",
		zap.String("key", key),
		zap.Int("size", len(content)),
		zap.String("checksum", checksum))

	return url, nil
}

// UploadRaw stores content without verification. Used by the orchestrator's
// best-effort fallback path that preserves the original artifact when no
// attachment survives validation.
func (u *Uploader) UploadRaw(ctx context.Context, content []byte, filename, contentType string) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("refusing to upload empty content for %q", filename)
	}
	key := u.objectKey(filename)

	upCtx, cancel := context.WithTimeout(ctx, u.callTimeout)
	defer cancel()
	if err := u.store.Upload(upCtx, key, content, contentType); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return u.resolveURL(ctx, key)
}

// objectKey builds "invoice_<timestamp>_<rand>_<safeName>". The random suffix
// guards against same-millisecond collisions under concurrent uploads.
func (u *Uploader) objectKey(filename string) string {
	if filename == "" {
		filename = "attachment"
	}
	safe := unsafeChars.ReplaceAllString(filename, "_")

	var rb [2]byte
	suffix := "0000"
	if _, err := rand.Read(rb[:]); err == nil {
		suffix = hex.EncodeToString(rb[:])
	}

	return fmt.Sprintf("invoice_%d_%s_%s", time.Now().UnixMilli(), suffix, safe)
}

func (u *Uploader) resolveURL(ctx context.Context, key string) (string, error) {
	if u.publicBucket {
		return u.store.PublicURL(key), nil
	}

	urlCtx, cancel := context.WithTimeout(ctx, u.callTimeout)
	defer cancel()
	url, err := u.store.SignedURL(urlCtx, key, u.signedURLTTL)
	if err != nil {
		// Fall back to the public URL rather than discarding the upload.
		u.logger.Warn("Signed URL resolution failed, falling back to public URL",
			zap.String("key", key),
			zap.Error(err))
		return u.store.PublicURL(key), nil
	}
	return url, nil
}

func (u *Uploader) verify(ctx context.Context, url string, wantSize int, wantChecksum string) error {
	fetchCtx, cancel := context.WithTimeout(ctx, u.callTimeout)
	defer cancel()

	fetched, err := u.store.Fetch(fetchCtx, url)
	if err != nil {
		return fmt.Errorf("re-fetch: %w", err)
	}
	if len(fetched) != wantSize {
		return fmt.Errorf("size mismatch: uploaded %d bytes, fetched %d", wantSize, len(fetched))
	}
	if got := Checksum(fetched); got != wantChecksum {
		return fmt.Errorf("checksum mismatch: want %s, got %s", wantChecksum, got)
	}
	return nil
}

func (u *Uploader) remove(ctx context.Context, key string) {
	rmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.callTimeout)
	defer cancel()
	if err := u.store.Remove(rmCtx, key); err != nil {
		u.logger.Error("Failed to remove object after verification failure",
			zap.String("key", key),
			zap.Error(err))
	}
}
