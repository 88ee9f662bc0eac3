package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name          string
		password      string
		shouldFail    bool
		errorContains string
	}{
		{
			name:       "letters and digits",
			password:   "thrift2024",
			shouldFail: false,
		},
		{
			name:       "exactly minimum length",
			password:   "abcdefg1",
			shouldFail: false,
		},
		{
			name:          "too short",
			password:      "abc1234",
			shouldFail:    true,
			errorContains: "at least 8 characters",
		},
		{
			name:          "missing digit",
			password:      "onlyletters",
			shouldFail:    true,
			errorContains: "one digit",
		},
		{
			name:          "missing letter",
			password:      "1234567890",
			shouldFail:    true,
			errorContains: "one letter",
		},
		{
			name:       "symbols are allowed",
			password:   "p@ss-w0rd!",
			shouldFail: false,
		},
		{
			name:          "six non-ASCII characters spanning eleven bytes",
			password:      "ééééé1",
			shouldFail:    true,
			errorContains: "at least 8 characters",
		},
		{
			name:       "eight non-ASCII characters",
			password:   "ééééééé1",
			shouldFail: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)

			if !tt.shouldFail {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			var pve *PasswordValidationError
			require.ErrorAs(t, err, &pve)
			assert.Contains(t, strings.Join(pve.Errors, "; "), tt.errorContains)
		})
	}
}

func TestValidatePassword_ByteCeiling(t *testing.T) {
	assert.ErrorIs(t, ValidatePassword(strings.Repeat("a1", 40)), ErrPasswordTooLong)

	// 36 two-byte runes plus a digit: 37 characters but 73 bytes
	assert.ErrorIs(t, ValidatePassword(strings.Repeat("é", 36)+"1"), ErrPasswordTooLong)

	// exactly 72 bytes is still hashable
	assert.NoError(t, ValidatePassword(strings.Repeat("a1", 36)))
}

func TestHashAndComparePassword(t *testing.T) {
	BcryptCost = bcrypt.MinCost
	defer func() { BcryptCost = 12 }()

	hash, err := HashPassword("thrift2024")
	require.NoError(t, err)
	assert.NotEqual(t, "thrift2024", hash)

	assert.NoError(t, ComparePassword(hash, "thrift2024"))
	assert.Error(t, ComparePassword(hash, "thrift2025"))

	other, err := HashPassword("thrift2024")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "hashes must be salted per call")
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}

func TestGenerateResetCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateResetCode()
		require.NoError(t, err)
		require.Len(t, code, ResetCodeDigits)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "code %q must be numeric", code)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestHashResetCode(t *testing.T) {
	assert.Equal(t, HashResetCode("123456"), HashResetCode("123456"))
	assert.NotEqual(t, HashResetCode("123456"), HashResetCode("123457"))
	assert.Len(t, HashResetCode("123456"), 64)
}
