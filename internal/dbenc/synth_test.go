package dbenc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyntheticValueDeterministicAndSized(t *testing.T) {
	a := syntheticValue(7, 32)
	b := syntheticValue(7, 32)
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)

	c := syntheticValue(8, 32)
	assert.NotEqual(t, a, c)
}

func TestGenerateTableNoDuplicateKeys(t *testing.T) {
	keys, values := GenerateTable(64, 16, 50)
	assert.Len(t, keys, 50)
	assert.Len(t, values, 50)

	seen := map[string]bool{}
	for _, k := range keys {
		assert.False(t, seen[string(k)], "GenerateTable must not repeat a keyword")
		seen[string(k)] = true
	}
}

func TestFakeHashTruncatesToRequestedLength(t *testing.T) {
	short := fakeHash("x", 10)
	assert.Len(t, short, 10)

	long := fakeHash("x", 100) // exceeds one SHA-256 hex digest (64 chars)
	assert.Len(t, long, 100)
}
