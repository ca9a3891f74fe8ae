package pirclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iasenovets/keywordpir/internal/dbenc"
	"github.com/iasenovets/keywordpir/internal/pirparams"
)

func testParams(t *testing.T) *pirparams.Params {
	t.Helper()
	p, err := pirparams.New(pirparams.Config{
		LogN:             13,
		PlaintextModulus: pirparams.DefaultPlaintextModulus,
		LogQ:             []int{54, 54, 54},
		LogP:             []int{54},
		ModSwitchDepth:   1,
		KeywordBits:      64,
		ObjectSizeBytes:  32,
		NumberOfItems:    10,
	})
	require.NoError(t, err)
	return p
}

func TestGenKeysProducesUsableKeySet(t *testing.T) {
	p := testParams(t)
	ks, err := GenKeys(p)
	require.NoError(t, err)
	assert.NotNil(t, ks.SecretKey)
	assert.NotNil(t, ks.RelinKey)
	assert.NotEmpty(t, ks.GaloisKeys)
}

func TestRotationStepsAlwaysIncludesZero(t *testing.T) {
	p := testParams(t)
	steps := RotationSteps(p)
	found := false
	for _, s := range steps {
		if s == 0 {
			found = true
		}
	}
	assert.True(t, found)
}

func TestKeyBundleRoundTrip(t *testing.T) {
	p := testParams(t)
	ks, err := GenKeys(p)
	require.NoError(t, err)

	data, err := MarshalEvaluationKeys(ks.RelinKey, ks.GaloisKeys)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	rlk, gks, err := UnmarshalEvaluationKeys(data)
	require.NoError(t, err)
	assert.NotNil(t, rlk)
	assert.Len(t, gks, len(ks.GaloisKeys))
}

func TestQueryMakeProducesEncryptedOneQuery(t *testing.T) {
	p := testParams(t)
	ks, err := GenKeys(p)
	require.NoError(t, err)

	target := dbenc.KeyFromUint64(1, p.KeywordBits)
	ct, err := QueryMake(p, ks, target)
	require.NoError(t, err)
	assert.NotNil(t, ct)

	data, err := ct.MarshalBinary()
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestReconstructFillsZeroForInvalidIndex(t *testing.T) {
	p := testParams(t)
	ks, err := GenKeys(p)
	require.NoError(t, err)

	oneCt, err := OneCiphertext(p, ks)
	require.NoError(t, err)
	raw, err := oneCt.MarshalBinary()
	require.NoError(t, err)

	out, err := Reconstruct(p, ks, [][]byte{raw}, []int{dbenc.InvalidIndex})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, make([]byte, p.ObjectSizeBytes), out[0])
}

func TestReconstructRejectsLengthMismatch(t *testing.T) {
	p := testParams(t)
	ks, err := GenKeys(p)
	require.NoError(t, err)
	_, err = Reconstruct(p, ks, [][]byte{{1, 2, 3}}, []int{0, 1})
	assert.Error(t, err)
}

func TestRotateLeftWrapsAround(t *testing.T) {
	vec := []uint64{1, 2, 3, 4}
	assert.Equal(t, []uint64{2, 3, 4, 1}, rotateLeft(vec, 1))
	assert.Equal(t, []uint64{1, 2, 3, 4}, rotateLeft(vec, 0))
	assert.Equal(t, []uint64{1, 2, 3, 4}, rotateLeft(vec, 4))
	// negative-equivalent rotation via modulo wraparound
	assert.Equal(t, []uint64{4, 1, 2, 3}, rotateLeft(vec, -1))
}

func TestWriteChunksPacksBigEndianPairs(t *testing.T) {
	dst := make([]byte, 4)
	writeChunks(dst, []uint64{0xABCD, 0x1234}, 2)
	assert.Equal(t, []byte{0xAB, 0xCD, 0x12, 0x34}, dst)
}
