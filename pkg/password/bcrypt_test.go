package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcrypt(t *testing.T) {
	t.Parallel()
	h := NewBcrypt(bcrypt.MinCost)

	hash, err := h.Hash("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hash)

	assert.True(t, h.Verify("s3cret!", hash))
	assert.False(t, h.Verify("wrong", hash))
	assert.False(t, h.Verify("s3cret!", ""))
	assert.False(t, h.Verify("", "not-a-hash"))
}
