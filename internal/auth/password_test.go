package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAPIKey_RoundTrip(t *testing.T) {
	key := "admin-key-0123456789abcdef"

	hash, err := HashAPIKey(key)

	require.NoError(t, err)
	assert.NotEqual(t, key, hash)
	assert.True(t, CheckAPIKey(key, hash))
	assert.False(t, CheckAPIKey(key+"x", hash))
}

func TestHashAPIKey_TooShort(t *testing.T) {
	_, err := HashAPIKey("short")

	assert.ErrorIs(t, err, ErrKeyTooShort)
}

func TestCheckAPIKey_Empty(t *testing.T) {
	assert.False(t, CheckAPIKey("", "$2a$12$abc"))
	assert.False(t, CheckAPIKey("some-key", ""))
	assert.False(t, CheckAPIKey("some-key", "not-a-bcrypt-hash"))
}
