package dbenc

import (
	"fmt"
	"log"
	"math"
	"math/rand"

	"github.com/montanaflynn/stats"
	"golang.org/x/exp/slices"

	"github.com/iasenovets/keywordpir/internal/pirparams"
)

// ParetoWorkload is the result of sampling a duplicate-keyword
// frequency distribution: one entry per distinct keyword, holding its
// synthetic id, its (shared across all copies) value bytes, and its
// sampled frequency.
type ParetoWorkload struct {
	Keys        [][]byte
	Values      [][]byte
	Frequencies []int
	M           int // shard count, max_k f_k
}

// PopulatePareto samples keyword frequencies from a discrete Pareto
// tail f = floor(U^(-1/alpha)) clipped to maxValue, accumulating
// distinct keywords until their total occurrence count reaches n, per
// spec §4.2. rng lets callers reproduce a workload deterministically
// in tests.
func PopulatePareto(p *pirparams.Params, alpha float64, maxValue, n int, rng *rand.Rand) (*ParetoWorkload, error) {
	if alpha <= 0 {
		return nil, fmt.Errorf("dbenc: pareto alpha must be positive, got %f", alpha)
	}
	if maxValue <= 0 {
		return nil, fmt.Errorf("dbenc: pareto max_value must be positive, got %d", maxValue)
	}
	if n <= 0 {
		return nil, fmt.Errorf("dbenc: n must be positive, got %d", n)
	}

	var freqs []int
	total := 0
	for id := uint64(1); total < n; id++ {
		u := rng.Float64()
		if u <= 0 {
			u = 1e-9
		}
		f := int(math.Floor(math.Pow(u, -1/alpha)))
		if f < 1 {
			f = 1
		}
		if f > maxValue {
			f = maxValue
		}
		freqs = append(freqs, f)
		total += f
	}

	M := slices.Max(freqs)

	keys := make([][]byte, len(freqs))
	values := make([][]byte, len(freqs))
	for i := range freqs {
		keys[i] = KeyFromUint64(uint64(i+1), p.KeywordBits)
		values[i] = syntheticValue(uint64(i+1), p.ObjectSizeBytes)
	}

	floats := make([]float64, len(freqs))
	for i, f := range freqs {
		floats[i] = float64(f)
	}
	mean, _ := stats.Mean(stats.Float64Data(floats))
	p99, _ := stats.Percentile(stats.Float64Data(floats), 99)
	log.Printf("[INFO] dbenc: pareto workload alpha=%.2f max_value=%d distinct=%d total=%d M=%d mean_freq=%.2f p99_freq=%.2f",
		alpha, maxValue, len(freqs), total, M, mean, p99)

	return &ParetoWorkload{Keys: keys, Values: values, Frequencies: freqs, M: M}, nil
}

// Expand replicates each keyword f_k times into a flat (keys, values)
// list suitable for BuildMultiMap's round-robin placement.
func (w *ParetoWorkload) Expand() (keys, values [][]byte) {
	for i, f := range w.Frequencies {
		for j := 0; j < f; j++ {
			keys = append(keys, w.Keys[i])
			values = append(values, w.Values[i])
		}
	}
	return keys, values
}
