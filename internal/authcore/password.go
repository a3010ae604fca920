package authcore

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/argon2"

	"archivecore.io/core/internal/domain"
)

// argon2Params fixes the KDF's cost parameters. They are baked into
// the encoded hash so a future rotation can tune them without
// invalidating hashes minted under the old parameters.
type argon2Params struct {
	memoryKiB  uint32
	iterations uint32
	threads    uint8
	saltLen    uint32
	keyLen     uint32
}

var defaultArgon2Params = argon2Params{
	memoryKiB:  64 * 1024,
	iterations: 3,
	threads:    4,
	saltLen:    16,
	keyLen:     32,
}

const (
	// MinPasswordLength is the minimum accepted password length (§3 User).
	MinPasswordLength = 8
)

// HashPassword derives an argon2id hash for password using a fresh
// random salt, per §9's mandated replacement for the source's SHA-256
// scheme. The encoded form carries the parameters and salt so
// ValidatePassword never needs them passed separately.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", domain.ErrWeakPassword
	}
	p := defaultArgon2Params
	salt := make([]byte, p.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate password salt: %w", err)
	}
	return encodeHash(p, salt, password), nil
}

// ValidatePassword reports whether password matches the encoded
// argon2id hash produced by HashPassword, using a constant-time
// comparison against the derived key.
func ValidatePassword(password, encoded string) error {
	p, salt, want, err := decodeHash(encoded)
	if err != nil {
		return err
	}
	got := argon2.IDKey([]byte(password), salt, p.iterations, p.memoryKiB, p.threads, p.keyLen)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return domain.ErrInvalidCredentials
	}
	return nil
}

func encodeHash(p argon2Params, salt []byte, password string) string {
	key := argon2.IDKey([]byte(password), salt, p.iterations, p.memoryKiB, p.threads, p.keyLen)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		p.memoryKiB, p.iterations, p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

func decodeHash(encoded string) (argon2Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return argon2Params{}, nil, nil, fmt.Errorf("malformed password hash")
	}
	var p argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memoryKiB, &p.iterations, &p.threads); err != nil {
		return argon2Params{}, nil, nil, fmt.Errorf("malformed password hash parameters: %w", err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return argon2Params{}, nil, nil, fmt.Errorf("malformed password hash salt: %w", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return argon2Params{}, nil, nil, fmt.Errorf("malformed password hash key: %w", err)
	}
	p.keyLen = uint32(len(key))
	return p, salt, key, nil
}

var (
	hasUpper   = regexp.MustCompile(`[A-Z]`)
	hasLower   = regexp.MustCompile(`[a-z]`)
	hasNumber  = regexp.MustCompile(`[0-9]`)
	hasSpecial = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`)
)

// CheckPasswordStrength validates password length, and, when
// requireStrong is set, that it mixes case, digits and punctuation.
func CheckPasswordStrength(password string, requireStrong bool) error {
	if len(password) < MinPasswordLength {
		return domain.ErrWeakPassword
	}
	if !requireStrong {
		return nil
	}
	if !hasUpper.MatchString(password) || !hasLower.MatchString(password) ||
		!hasNumber.MatchString(password) || !hasSpecial.MatchString(password) {
		return domain.ErrWeakPassword
	}
	return nil
}
