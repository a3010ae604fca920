package authcore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

// Cipher encrypts and decrypts object payloads with AES-256-GCM and a
// per-object random nonce, grounded on the teacher's
// security/enc_dec_env.go file-encryption helpers but adapted to keep
// multiple key generations in memory so key rotation re-encrypts
// lazily, on next write, instead of requiring an offline migration
// (§4.6 Encryption at rest).
type Cipher struct {
	mu      sync.RWMutex
	keys    map[uint32]cipher.AEAD
	current uint32
}

// LoadMasterKey reads a 32-byte AES-256 key from a restricted file.
// The file must exist and be readable only by its owner; callers are
// expected to have created it with 0600 permissions.
func LoadMasterKey(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat master key file: %w", err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf("master key file %s must not be group- or world-readable", path)
	}
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read master key file: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// NewCipher builds a Cipher whose sole, current key generation is key.
func NewCipher(key []byte) (*Cipher, error) {
	c := &Cipher{keys: map[uint32]cipher.AEAD{}}
	if err := c.addGeneration(1, key); err != nil {
		return nil, err
	}
	c.current = 1
	return c, nil
}

func (c *Cipher) addGeneration(gen uint32, key []byte) error {
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("build aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("build gcm mode: %w", err)
	}
	c.keys[gen] = aead
	return nil
}

// Rotate introduces a new current key generation. Payloads encrypted
// under earlier generations remain decryptable; they are re-encrypted
// under the new generation the next time they are written (§4.6).
func (c *Cipher) Rotate(newKey []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.current + 1
	if err := c.addGeneration(next, newKey); err != nil {
		return err
	}
	c.current = next
	return nil
}

// CurrentGeneration reports the active key generation, for callers
// deciding whether a stored payload needs re-encrypting on next write.
func (c *Cipher) CurrentGeneration() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// wire format: 4-byte big-endian key generation, 12-byte GCM nonce,
// then ciphertext+tag.
const genHeaderLen = 4

// Encrypt seals plaintext under the current key generation with a
// fresh random nonce.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	c.mu.RLock()
	aead := c.keys[c.current]
	gen := c.current
	c.mu.RUnlock()

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, genHeaderLen, genHeaderLen+len(nonce)+len(plaintext)+aead.Overhead())
	binary.BigEndian.PutUint32(out, gen)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext produced by Encrypt, looking up the key
// generation recorded in its header; generations older than the
// current one are still honoured so rotation never breaks existing
// payloads.
func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < genHeaderLen {
		return nil, fmt.Errorf("ciphertext too short")
	}
	gen := binary.BigEndian.Uint32(ciphertext[:genHeaderLen])

	c.mu.RLock()
	aead, ok := c.keys[gen]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown key generation %d", gen)
	}

	rest := ciphertext[genHeaderLen:]
	if len(rest) < aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ct := rest[:aead.NonceSize()], rest[aead.NonceSize():]
	return aead.Open(nil, nonce, ct, nil)
}

// NeedsReencryption reports whether ciphertext was sealed under an
// older key generation than the current one.
func (c *Cipher) NeedsReencryption(ciphertext []byte) bool {
	if len(ciphertext) < genHeaderLen {
		return false
	}
	gen := binary.BigEndian.Uint32(ciphertext[:genHeaderLen])
	return gen != c.CurrentGeneration()
}
