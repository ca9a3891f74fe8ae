package hethread

import (
	"context"
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"
)

// GaloisElements returns the set of Galois elements a caller needs keys
// for: one per rotation step in steps, plus the row-swap ("conjugate")
// element if withConjugate is set. Galois key generation is the
// client's job (internal/pirclient); the server only ever consumes the
// resulting rlwe.EvaluationKeySet.
func GaloisElements(params bgv.Parameters, steps []int, withConjugate bool) []uint64 {
	els := params.GaloisElements(steps)
	if withConjugate {
		els = append(els, params.GaloisElementOrderTwoOrthogonalSubgroup())
	}
	return els
}

// RotateColumns cyclically shifts both CRT rows of ctIn left by k
// slots (negative k shifts right), the within-row rotation the query
// expansion and PIR-extraction folding stages both use to realign
// column blocks before a dyadic product or an accumulate-add.
func RotateColumns(eval *bgv.Evaluator, params bgv.Parameters, ctIn *rlwe.Ciphertext, k int) (*rlwe.Ciphertext, error) {
	if k == 0 {
		return ctIn.CopyNew(), nil
	}
	galEl := params.GaloisElement(k)
	ctOut := rlwe.NewCiphertext(params, ctIn.Degree(), ctIn.Level())
	if err := eval.Automorphism(ctIn, galEl, ctOut); err != nil {
		return nil, fmt.Errorf("hethread: rotate columns by %d: %w", k, err)
	}
	return ctOut, nil
}

// ConjugateRows swaps the two CRT rows of ctIn (BGV's row-swap
// automorphism), used by the column-tree reduction's conjugate-fold
// step to combine the matching-bit accumulator across both rows into
// a single one-hot row selector.
func ConjugateRows(eval *bgv.Evaluator, params bgv.Parameters, ctIn *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	galEl := params.GaloisElementOrderTwoOrthogonalSubgroup()
	ctOut := rlwe.NewCiphertext(params, ctIn.Degree(), ctIn.Level())
	if err := eval.Automorphism(ctIn, galEl, ctOut); err != nil {
		return nil, fmt.Errorf("hethread: conjugate rows: %w", err)
	}
	return ctOut, nil
}

// RelinearizeInPlace reduces a freshly multiplied degree-2 ciphertext
// back to degree 1, in place, without allocating. Stage 2's squarings
// relinearize through eval.MulRelin directly rather than through this
// wrapper.
func RelinearizeInPlace(eval *bgv.Evaluator, ct *rlwe.Ciphertext) error {
	if err := eval.Relinearize(ct, ct); err != nil {
		return fmt.Errorf("hethread: relinearize: %w", err)
	}
	return nil
}

// ModSwitchToNext drops the last prime of ctIn's modulus chain,
// trading noise budget for ciphertext size. It is applied ModSwitchDepth
// times in a row to each squared column result in stage 2, and to the
// client's one_ct before upload.
func ModSwitchToNext(eval *bgv.Evaluator, ctIn *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	ctOut := ctIn.CopyNew()
	if err := eval.Rescale(ctIn, ctOut); err != nil {
		return nil, fmt.Errorf("hethread: mod switch: %w", err)
	}
	return ctOut, nil
}

// TreeMultiply reduces cts pairwise (a balanced binary tree of
// MulRelin calls) down to a single ciphertext, run across numThreads
// goroutines level by level. Used by stage 2's column-accumulator
// reduction: NumCol per-column match indicators multiplied down to one.
func TreeMultiply(ctx context.Context, p *Pool, cts []*rlwe.Ciphertext, numThreads int) (*rlwe.Ciphertext, error) {
	if len(cts) == 0 {
		return nil, fmt.Errorf("hethread: TreeMultiply called with no ciphertexts")
	}
	level := cts
	for len(level) > 1 {
		next := make([]*rlwe.Ciphertext, (len(level)+1)/2)
		pairs := len(level) / 2
		err := p.Run(ctx, pairs, numThreads, func(eval *bgv.Evaluator, idx int) error {
			out := rlwe.NewCiphertext(p.params, 1, level[2*idx].Level())
			if err := eval.MulRelin(level[2*idx], level[2*idx+1], out); err != nil {
				return err
			}
			next[idx] = out
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("hethread: tree multiply: %w", err)
		}
		if len(level)%2 == 1 {
			next[len(next)-1] = level[len(level)-1]
		}
		level = next
	}
	return level[0], nil
}
