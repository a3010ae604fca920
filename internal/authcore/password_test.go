package authcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndValidatePasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NoError(t, ValidatePassword("correct horse battery staple", hash))
}

func TestValidatePasswordRejectsWrongPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.Error(t, ValidatePassword("wrong password", hash))
}

func TestHashPasswordProducesDistinctSaltsPerCall(t *testing.T) {
	h1, err := HashPassword("same password")
	require.NoError(t, err)
	h2, err := HashPassword("same password")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
	assert.NoError(t, ValidatePassword("same password", h1))
	assert.NoError(t, ValidatePassword("same password", h2))
}

func TestCheckPasswordStrengthEnforcesMinLength(t *testing.T) {
	assert.Error(t, CheckPasswordStrength("short", false))
	assert.NoError(t, CheckPasswordStrength("longenough", false))
}

func TestCheckPasswordStrengthRequiresMixWhenStrongRequested(t *testing.T) {
	assert.Error(t, CheckPasswordStrength("alllowercase", true))
	assert.NoError(t, CheckPasswordStrength("Str0ng!Pass", true))
}
