package pirserver

import (
	"context"
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"

	"github.com/iasenovets/keywordpir/internal/dbenc"
	"github.com/iasenovets/keywordpir/internal/hethread"
)

// Process2 is stage 3 of the pipeline (spec §4.4): uses one shard's
// row_selector to extract the matched row's value from that shard's
// value plaintexts, via a divide-and-conquer sum over value columns
// fanned out across NUM_PIR_THREAD workers.
func (sc *ServerContext) Process2(ctx context.Context, shard *dbenc.Shard, rowSelector []*rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	p := sc.Params
	chunksPerHalf := p.PirNumColumnsPerObj / 2
	if chunksPerHalf <= 0 {
		return nil, fmt.Errorf("pirserver: shard has no value columns to extract")
	}

	numPirThread := 1 << floorLog2(chunksPerHalf)
	if numPirThread > 32 {
		numPirThread = 32
	}
	if numPirThread > chunksPerHalf {
		numPirThread = chunksPerHalf
	}
	k := chunksPerHalf / numPirThread

	partials := make([]*rlwe.Ciphertext, numPirThread)
	err := sc.Pool.Run(ctx, numPirThread, numPirThread, func(eval *bgv.Evaluator, w int) error {
		start := w * k
		end := start + k - 1
		if w == numPirThread-1 {
			end = chunksPerHalf - 1 // last worker absorbs any remainder
		}

		sum, err := sc.getSum(eval, shard, rowSelector, start, end)
		if err != nil {
			return fmt.Errorf("worker %d range [%d,%d]: get_sum: %w", w, start, end, err)
		}

		result, err := rotateBySetBits(eval, p.HE, sum, -start)
		if err != nil {
			return fmt.Errorf("worker %d: post-rotate by -%d: %w", w, start, err)
		}
		partials[w] = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	eval := sc.evaluator()
	answer := partials[0].CopyNew()
	for i := 1; i < len(partials); i++ {
		if err := eval.Add(answer, partials[i], answer); err != nil {
			return nil, fmt.Errorf("pirserver: reducing worker partials: %w", err)
		}
	}
	return answer, nil
}

// getSum computes Σ_j row_selector[j] ⊙ V[pir_num_query_ciphertext*col+j]
// for col in [start,end] as a balanced divide-and-conquer rotate-fold,
// per spec §4.4 stage 3 item 1.
func (sc *ServerContext) getSum(eval *bgv.Evaluator, shard *dbenc.Shard, rowSelector []*rlwe.Ciphertext, start, end int) (*rlwe.Ciphertext, error) {
	p := sc.Params
	count := end - start + 1
	if count == 1 {
		col := start
		var sum *rlwe.Ciphertext
		for j := 0; j < p.NumRow; j++ {
			idx := p.PirNumQueryCiphertext*col + j
			term := rlwe.NewCiphertext(p.HE, 1, rowSelector[j].Level())
			if err := eval.Mul(rowSelector[j], shard.V[idx], term); err != nil {
				return nil, fmt.Errorf("leaf col %d, row-batch %d: mul: %w", col, j, err)
			}
			if sum == nil {
				sum = term
				continue
			}
			if err := eval.Add(sum, term, sum); err != nil {
				return nil, fmt.Errorf("leaf col %d, row-batch %d: add: %w", col, j, err)
			}
		}
		return sum, nil
	}

	mid := nextPow2(count) / 2
	left, err := sc.getSum(eval, shard, rowSelector, start, start+mid-1)
	if err != nil {
		return nil, err
	}
	right, err := sc.getSum(eval, shard, rowSelector, start+mid, end)
	if err != nil {
		return nil, err
	}
	rotated, err := hethread.RotateColumns(eval, p.HE, right, -mid)
	if err != nil {
		return nil, fmt.Errorf("internal node [%d,%d]: rotate right half by -%d: %w", start, end, mid, err)
	}
	out := rlwe.NewCiphertext(p.HE, 1, left.Level())
	if err := eval.Add(left, rotated, out); err != nil {
		return nil, fmt.Errorf("internal node [%d,%d]: add halves: %w", start, end, err)
	}
	return out, nil
}

// rotateBySetBits applies by as a sum of signed powers of two, one
// rotation per set bit, composing to a single rotation by `by`. This
// lets the Galois key set stay limited to powers of two (spec §4.1,
// §4.4 stage 3 item 2) instead of needing one key per possible shift.
func rotateBySetBits(eval *bgv.Evaluator, params bgv.Parameters, ct *rlwe.Ciphertext, by int) (*rlwe.Ciphertext, error) {
	if by == 0 {
		return ct.CopyNew(), nil
	}
	neg := by < 0
	mag := by
	if neg {
		mag = -by
	}
	out := ct
	bit := 0
	for mag > 0 {
		if mag&1 != 0 {
			step := 1 << bit
			if neg {
				step = -step
			}
			rotated, err := hethread.RotateColumns(eval, params, out, step)
			if err != nil {
				return nil, fmt.Errorf("rotate by set bit %d (step %d): %w", bit, step, err)
			}
			out = rotated
		}
		mag >>= 1
		bit++
	}
	return out, nil
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func floorLog2(n int) int {
	k := 0
	for n > 1 {
		n >>= 1
		k++
	}
	return k
}
