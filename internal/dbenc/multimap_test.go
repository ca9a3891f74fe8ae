package dbenc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMultiMapRejectsOverfrequentKey(t *testing.T) {
	p := testParams(t, 10)
	k := KeyFromUint64(1, p.KeywordBits)
	v := syntheticValue(1, p.ObjectSizeBytes)

	// key occurs 3 times but M=2: must error, not silently wrap.
	keys := [][]byte{k, k, k}
	values := [][]byte{v, v, v}
	_, err := BuildMultiMap(p, 2, keys, values)
	assert.Error(t, err)
}

func TestBuildMultiMapPlacesEachDuplicateInADistinctShard(t *testing.T) {
	p := testParams(t, 10)
	k1 := KeyFromUint64(1, p.KeywordBits)
	k2 := KeyFromUint64(2, p.KeywordBits)
	v1 := syntheticValue(1, p.ObjectSizeBytes)
	v2 := syntheticValue(2, p.ObjectSizeBytes)

	keys := [][]byte{k1, k1, k2}
	values := [][]byte{v1, v1, v2}
	mm, err := BuildMultiMap(p, 2, keys, values)
	require.NoError(t, err)
	require.Len(t, mm.Shards, 2)

	idx := mm.ResolveIndex(k1)
	assert.NotEqual(t, InvalidIndex, idx[0])
	assert.NotEqual(t, InvalidIndex, idx[1])

	idx2 := mm.ResolveIndex(k2)
	present := 0
	for _, i := range idx2 {
		if i != InvalidIndex {
			present++
		}
	}
	assert.Equal(t, 1, present, "a keyword occurring once must be present in exactly one shard")
}

func TestBuildMultiMapRejectsMismatchedLengths(t *testing.T) {
	p := testParams(t, 10)
	_, err := BuildMultiMap(p, 1, [][]byte{{1}}, [][]byte{})
	assert.Error(t, err)
}

func TestBuildMultiMapRejectsNonPositiveM(t *testing.T) {
	p := testParams(t, 10)
	_, err := BuildMultiMap(p, 0, nil, nil)
	assert.Error(t, err)
}
