package dbenc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iasenovets/keywordpir/internal/pirparams"
)

func testParams(t *testing.T, n int) *pirparams.Params {
	t.Helper()
	p, err := pirparams.New(pirparams.Config{
		LogN:             13,
		PlaintextModulus: pirparams.DefaultPlaintextModulus,
		LogQ:             []int{54, 54, 54},
		LogP:             []int{54},
		ModSwitchDepth:   1,
		KeywordBits:      64,
		ObjectSizeBytes:  32,
		NumberOfItems:    n,
	})
	require.NoError(t, err)
	return p
}

func TestShardPopulateKeysRejectsOvercapacity(t *testing.T) {
	p := testParams(t, 10)
	s := NewShard(p)
	tooMany := make([][]byte, p.NumRow*p.Half()+1)
	for i := range tooMany {
		tooMany[i] = KeyFromUint64(uint64(i+1), p.KeywordBits)
	}
	err := s.PopulateKeys(tooMany)
	assert.Error(t, err)
}

func TestShardResolveIndexFindsAndMisses(t *testing.T) {
	p := testParams(t, 10)
	s := NewShard(p)
	keys, values := GenerateTable(p.KeywordBits, p.ObjectSizeBytes, 5)
	require.NoError(t, s.PopulateKeys(keys))
	require.NoError(t, s.PopulateValues(values))

	for i, k := range keys {
		assert.Equal(t, i, s.ResolveIndex(k))
	}
	assert.Equal(t, InvalidIndex, s.ResolveIndex(KeyFromUint64(999, p.KeywordBits)))
}

func TestChunkAtPadsPastValueLength(t *testing.T) {
	val := []byte{0xAB, 0xCD}
	// within bounds: first 16-bit chunk of a 2-byte half
	assert.Equal(t, uint64(0xABCD), chunkAt(val, 0, 0, 2))
	// past the half's length: padding identity
	assert.Equal(t, uint64(1), chunkAt(val, 0, 1, 2))
	// nil value: always padding identity
	assert.Equal(t, uint64(1), chunkAt(nil, 0, 0, 2))
}

func TestInvalidKeyBytesWidth(t *testing.T) {
	assert.Len(t, invalidKeyBytes(64), 8)
	assert.Len(t, invalidKeyBytes(63), 8)
	assert.Len(t, invalidKeyBytes(65), 9)
}

func TestKeyFromUint64RoundWidth(t *testing.T) {
	b := KeyFromUint64(1, 64)
	assert.Len(t, b, 8)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1}, b)
}
