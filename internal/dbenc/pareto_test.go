package dbenc

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopulateParetoReachesRequestedTotal(t *testing.T) {
	p := testParams(t, 500)
	rng := rand.New(rand.NewSource(42))
	w, err := PopulatePareto(p, 1.5, 8, 500, rng)
	require.NoError(t, err)

	total := 0
	for _, f := range w.Frequencies {
		assert.GreaterOrEqual(t, f, 1)
		assert.LessOrEqual(t, f, 8)
		total += f
	}
	assert.GreaterOrEqual(t, total, 500)
	assert.Equal(t, len(w.Keys), len(w.Frequencies))
	assert.Equal(t, len(w.Values), len(w.Frequencies))

	maxFreq := 0
	for _, f := range w.Frequencies {
		if f > maxFreq {
			maxFreq = f
		}
	}
	assert.Equal(t, maxFreq, w.M)
}

func TestPopulateParetoRejectsInvalidInputs(t *testing.T) {
	p := testParams(t, 10)
	rng := rand.New(rand.NewSource(1))
	_, err := PopulatePareto(p, 0, 8, 10, rng)
	assert.Error(t, err)
	_, err = PopulatePareto(p, 1.5, 0, 10, rng)
	assert.Error(t, err)
	_, err = PopulatePareto(p, 1.5, 8, 0, rng)
	assert.Error(t, err)
}

func TestExpandReplicatesPerFrequency(t *testing.T) {
	w := &ParetoWorkload{
		Keys:        [][]byte{{1}, {2}},
		Values:      [][]byte{{10}, {20}},
		Frequencies: []int{3, 1},
		M:           3,
	}
	keys, values := w.Expand()
	assert.Len(t, keys, 4)
	assert.Len(t, values, 4)
	if diff := cmp.Diff([][]byte{{1}, {1}, {1}, {2}}, keys); diff != "" {
		t.Errorf("expanded keys mismatch (-want +got):\n%s", diff)
	}
}
