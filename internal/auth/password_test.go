package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	// The hash is salted: two hashes of the same password differ.
	other, err := HashPassword("hunter2hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other)

	assert.NotEqual(t, "hunter2hunter2", hash)
}

func TestComparePassword(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	require.NoError(t, err)

	assert.True(t, ComparePassword("hunter2hunter2", hash))
	assert.False(t, ComparePassword("wrongpass99", hash))
	assert.False(t, ComparePassword("", hash))
	assert.False(t, ComparePassword("hunter2hunter2", "not-a-hash"))
}
