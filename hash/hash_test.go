package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

func TestSum(t *testing.T) {
	expected := blake3.Sum256([]byte("foobar"))
	require.Equal(t, expected, Sum([]byte("foo"), []byte("bar")))
	// pooled hashers are reset
	require.Equal(t, expected, Sum([]byte("foobar")))
	require.NotEqual(t, expected, Sum([]byte("foo")))
}
