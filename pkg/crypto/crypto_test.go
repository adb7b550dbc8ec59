package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordIsSalted(t *testing.T) {
	first, err := HashPassword("p")
	require.NoError(t, err)
	second, err := HashPassword("p")
	require.NoError(t, err)

	// Salt baru tiap pemanggilan: hash tidak boleh identik
	assert.NotEqual(t, first, second)
	assert.True(t, VerifyPassword("p", first))
	assert.True(t, VerifyPassword("p", second))
}

func TestHashPasswordNotPlaintext(t *testing.T) {
	hashed, err := HashPassword("rahasia123")
	require.NoError(t, err)
	assert.NotEqual(t, "rahasia123", hashed)
	assert.NotContains(t, hashed, "rahasia123")
}

func TestVerifyPasswordMismatch(t *testing.T) {
	hashed, err := HashPassword("p")
	require.NoError(t, err)

	assert.False(t, VerifyPassword("q", hashed))
	assert.False(t, VerifyPassword("", hashed))
	assert.False(t, VerifyPassword("P", hashed))
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	// Hash rusak atau kosong tidak boleh panic, cukup false
	assert.False(t, VerifyPassword("p", ""))
	assert.False(t, VerifyPassword("p", "bukan-hash-bcrypt"))
	assert.False(t, VerifyPassword("p", "$2a$10$tooshort"))
}
