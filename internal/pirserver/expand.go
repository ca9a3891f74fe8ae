package pirserver

import (
	"context"
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"

	"github.com/iasenovets/keywordpir/internal/hethread"
)

// QueryExpand is stage 1 of the pipeline (spec §4.4): turns the
// client's single query ciphertext into NUM_COL expanded ciphertexts,
// EQ[c], each holding column c's fingerprint pair replicated across
// the whole half-row. One worker task per column; tasks are
// independent and share no mutable state.
func (sc *ServerContext) QueryExpand(ctx context.Context, qCt *rlwe.Ciphertext) ([]*rlwe.Ciphertext, error) {
	p := sc.Params
	half := p.Half()
	blockWidth := half / p.NumCol
	if blockWidth == 0 {
		return nil, fmt.Errorf("pirserver: N/2=%d too small for NumCol=%d column blocks", half, p.NumCol)
	}

	enc := bgv.NewEncoder(p.HE)
	masks := make([]*rlwe.Plaintext, p.NumCol)
	for c := 0; c < p.NumCol; c++ {
		vec := make([]uint64, p.N())
		start := c * blockWidth
		end := start + blockWidth
		if end > half {
			end = half
		}
		for s := start; s < end; s++ {
			vec[s] = 1
			vec[s+half] = 1
		}
		pt := bgv.NewPlaintext(p.HE, qCt.Level())
		if err := enc.Encode(vec, pt); err != nil {
			return nil, fmt.Errorf("pirserver: encoding column %d mask: %w", c, err)
		}
		masks[c] = pt
	}

	eq := make([]*rlwe.Ciphertext, p.NumCol)
	err := sc.Pool.Run(ctx, p.NumCol, p.NumCol, func(eval *bgv.Evaluator, c int) error {
		out := rlwe.NewCiphertext(p.HE, 1, qCt.Level())
		if err := eval.Mul(qCt, masks[c], out); err != nil {
			return fmt.Errorf("masking column %d: %w", c, err)
		}
		for i := blockWidth; i < half; i *= 2 {
			rotated, err := hethread.RotateColumns(eval, p.HE, out, i)
			if err != nil {
				return fmt.Errorf("replicate-rotate column %d by %d: %w", c, i, err)
			}
			if err := eval.Add(out, rotated, out); err != nil {
				return fmt.Errorf("replicate-add column %d: %w", c, err)
			}
		}
		eq[c] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return eq, nil
}
