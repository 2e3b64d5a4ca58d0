package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

func TestSum(t *testing.T) {
	expect := blake3.Sum256([]byte("onetwo"))
	require.Equal(t, expect, Sum([]byte("one"), []byte("two")))
	require.Equal(t, expect, Sum([]byte("onetwo")))
	require.NotEqual(t, expect, Sum([]byte("one")))

	// a pooled hasher must not leak state into the next sum
	require.Equal(t, blake3.Sum256(nil), Sum())
}

func TestDigestIsNotSum(t *testing.T) {
	require.NotEqual(t, Digest([]byte("a")), Sum([]byte("a")))
}
