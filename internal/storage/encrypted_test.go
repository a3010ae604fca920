package storage_test

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archivecore.io/core/internal/storage"
	"archivecore.io/core/internal/storage/fsbackend"
)

type fakeCipher struct{}

func (fakeCipher) Encrypt(plaintext []byte) ([]byte, error) {
	out := make([]byte, len(plaintext))
	for i, b := range plaintext {
		out[i] = b ^ 0x5A
	}
	return out, nil
}

func (fakeCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	return fakeCipher{}.Encrypt(ciphertext)
}

func TestEncryptedRoundTripsPayloadThroughCipher(t *testing.T) {
	inner, err := fsbackend.New(filepath.Join(t.TempDir(), "objects"), 5)
	require.NoError(t, err)

	enc := storage.NewEncrypted(inner, fakeCipher{})
	ctx := context.Background()

	plaintext := []byte("confidential page contents")
	_, err = enc.Put(ctx, "owner/2026/invoice/batch/page.json", bytes.NewReader(plaintext), "application/json", nil, "")
	require.NoError(t, err)

	rc, _, err := enc.Get(ctx, "owner/2026/invoice/batch/page.json", "")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncryptedStoresCiphertextNotPlaintext(t *testing.T) {
	inner, err := fsbackend.New(filepath.Join(t.TempDir(), "objects"), 5)
	require.NoError(t, err)

	enc := storage.NewEncrypted(inner, fakeCipher{})
	ctx := context.Background()
	plaintext := []byte("plain")
	_, err = enc.Put(ctx, "k", bytes.NewReader(plaintext), "text/plain", nil, "")
	require.NoError(t, err)

	rc, _, err := inner.Get(ctx, "k", "")
	require.NoError(t, err)
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, raw)
}
