package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueInvite(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	issued, err := Issue(KindInvite, now)
	require.NoError(t, err)

	require.Len(t, issued.Raw, RawLength)
	require.True(t, ValidFormat(issued.Raw))
	require.Equal(t, HashRaw(issued.Raw), issued.Hash)
	require.NotEqual(t, issued.Raw, issued.Hash)
	require.Equal(t, now.Add(7*24*time.Hour), issued.ExpiresAt)
}

func TestIssueResetTTL(t *testing.T) {
	now := time.Now()
	issued, err := Issue(KindReset, now)
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Hour), issued.ExpiresAt)
}

func TestIssueUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		issued, err := Issue(KindReset, time.Now())
		require.NoError(t, err)
		require.False(t, seen[issued.Raw], "duplicate raw token")
		seen[issued.Raw] = true
	}
}

func TestValidFormat(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{"0123456789ab", true},
		{"abcdefabcdef", true},
		{"", false},
		{"0123456789a", false},
		{"0123456789abc", false},
		{"0123456789AB", false},
		{"0123456789ag", false},
		{"../../../../", false},
		{"'; DROP TABLE", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ValidFormat(tc.raw), "raw=%q", tc.raw)
	}
}
