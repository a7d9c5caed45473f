package integrity

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasherIncrementalMatchesSumFile(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	h := NewHasher()
	_, err := h.Write(data[:10])
	require.NoError(t, err)
	_, err = h.Write(data[10:])
	require.NoError(t, err)

	want, err := SumFile(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, want, h.Sum())
}

func TestSumFileDiffersForDifferentContent(t *testing.T) {
	a, err := SumFile(bytes.NewReader([]byte("a")))
	require.NoError(t, err)
	b, err := SumFile(bytes.NewReader([]byte("b")))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
