package storage

import (
	"bytes"
	"context"
	"io"
	"time"

	"archivecore.io/core/internal/domain"
)

// Cipher is the subset of authcore.Cipher the encrypting backend needs,
// narrowed to avoid an import cycle between storage and authcore.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Encrypted wraps a Backend, encrypting payloads at rest with cipher
// (§4.6 Encryption at rest). Keys, versions and listings pass through
// unchanged; only object bytes are transformed.
type Encrypted struct {
	inner  Backend
	cipher Cipher
}

// NewEncrypted wraps inner so every Put/Get round-trips through cipher.
func NewEncrypted(inner Backend, cipher Cipher) *Encrypted {
	return &Encrypted{inner: inner, cipher: cipher}
}

func (e *Encrypted) Put(ctx context.Context, key string, data io.Reader, contentType string, metadata map[string]string, storageClass string) (PutResult, error) {
	plain, err := io.ReadAll(data)
	if err != nil {
		return PutResult{}, err
	}
	cipherBytes, err := e.cipher.Encrypt(plain)
	if err != nil {
		return PutResult{}, err
	}
	return e.inner.Put(ctx, key, bytes.NewReader(cipherBytes), contentType, metadata, storageClass)
}

func (e *Encrypted) Get(ctx context.Context, key, versionID string) (io.ReadCloser, map[string]string, error) {
	rc, meta, err := e.inner.Get(ctx, key, versionID)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()
	cipherBytes, err := io.ReadAll(rc)
	if err != nil {
		return nil, nil, err
	}
	plain, err := e.cipher.Decrypt(cipherBytes)
	if err != nil {
		return nil, nil, err
	}
	return io.NopCloser(bytes.NewReader(plain)), meta, nil
}

func (e *Encrypted) Delete(ctx context.Context, key, versionID string) error {
	return e.inner.Delete(ctx, key, versionID)
}

func (e *Encrypted) List(ctx context.Context, prefix string, limit, offset int) ([]domain.ObjectDescriptor, error) {
	return e.inner.List(ctx, prefix, limit, offset)
}

func (e *Encrypted) Exists(ctx context.Context, key string) (bool, error) {
	return e.inner.Exists(ctx, key)
}

func (e *Encrypted) Copy(ctx context.Context, srcKey, dstKey string) error {
	return e.inner.Copy(ctx, srcKey, dstKey)
}

func (e *Encrypted) ListVersions(ctx context.Context, key string) ([]domain.Version, error) {
	return e.inner.ListVersions(ctx, key)
}

func (e *Encrypted) URL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	return e.inner.URL(ctx, key, expiresIn)
}

func (e *Encrypted) Name() domain.StorageBackend { return e.inner.Name() }
