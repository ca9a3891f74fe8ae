package keyhash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumIsDeterministic(t *testing.T) {
	a, err := Sum([]byte("alice"), 2)
	require.NoError(t, err)
	b, err := Sum([]byte("alice"), 2)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Sum([]byte("bob"), 2)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSumLength(t *testing.T) {
	fp, err := Sum([]byte("k"), 3)
	require.NoError(t, err)
	assert.Len(t, fp, 2*3)
}

func TestSumRejectsNonPositiveNumCol(t *testing.T) {
	_, err := Sum([]byte("k"), 0)
	assert.Error(t, err)
}

func TestSumRejectsOversizeKey(t *testing.T) {
	// numCol=1 -> 4-byte fingerprint field, a 6-byte key can't fit.
	_, err := Sum([]byte("toobig"), 1)
	assert.Error(t, err)
}

func TestSumPadsShortKeysIdentically(t *testing.T) {
	// "tall1" and "tall1\x00" must hash the same once padded, since the
	// padded field is what gets hashed either way.
	short, err := Sum([]byte("tall1"), 4)
	require.NoError(t, err)
	padded, err := Sum([]byte("tall1\x00"), 4)
	require.NoError(t, err)
	assert.Equal(t, short, padded)
}

func TestSumExtendsPastOneDigestBlock(t *testing.T) {
	// numCol=9 needs 18 chunks, i.e. 36 bytes, past one 32-byte SHA-256
	// digest: the re-hash extension path must still produce a full,
	// non-degenerate fingerprint.
	fp, err := Sum([]byte("carol"), 9)
	require.NoError(t, err)
	assert.Len(t, fp, 18)

	seen := map[uint16]int{}
	for _, v := range fp {
		seen[v]++
	}
	assert.Greater(t, len(seen), 1, "extended fingerprint should not collapse to a single repeated value")
}

func TestSlotPair(t *testing.T) {
	fp, err := Sum([]byte("dave"), 2)
	require.NoError(t, err)
	lo0, hi0 := fp.SlotPair(0)
	assert.Equal(t, fp[0], lo0)
	assert.Equal(t, fp[1], hi0)
	lo1, hi1 := fp.SlotPair(1)
	assert.Equal(t, fp[2], lo1)
	assert.Equal(t, fp[3], hi1)
}
