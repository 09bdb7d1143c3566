package accounts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPasswordHasher(t *testing.T) {
	hasher := NewPasswordHasher(4)

	hash, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$2"), "bcrypt format")
	require.NotContains(t, hash, "correct horse")

	require.True(t, hasher.Verify(hash, "correct horse battery staple"))
	require.False(t, hasher.Verify(hash, "wrong"))
	require.False(t, hasher.Verify("not-a-hash", "anything"))
}

func TestPasswordHasherCostFallback(t *testing.T) {
	h := NewPasswordHasher(99)
	require.Equal(t, DefaultBcryptCost, h.cost)
	h = NewPasswordHasher(0)
	require.Equal(t, DefaultBcryptCost, h.cost)
}
