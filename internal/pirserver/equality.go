package pirserver

import (
	"context"
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"

	"github.com/iasenovets/keywordpir/internal/dbenc"
	"github.com/iasenovets/keywordpir/internal/hethread"
)

// Process1 is stage 2 of the pipeline (spec §4.4): for each row-batch
// of one shard, homomorphically tests every column's fingerprint
// against the expanded query and folds the per-column results into a
// single one-hot row_selector ciphertext. The outer fan-out is over
// row-batches (NumRowThread in spec §5 terms); each task owns its
// output slot in the returned slice, so no locking is needed.
func (sc *ServerContext) Process1(ctx context.Context, eq []*rlwe.Ciphertext, shard *dbenc.Shard) ([]*rlwe.Ciphertext, error) {
	p := sc.Params
	rowSelector := make([]*rlwe.Ciphertext, p.NumRow)

	err := sc.Pool.Run(ctx, p.NumRow, p.NumRow, func(eval *bgv.Evaluator, r int) error {
		colResult := make([]*rlwe.Ciphertext, p.NumCol)
		for c := 0; c < p.NumCol; c++ {
			sub := rlwe.NewCiphertext(p.HE, 1, eq[c].Level())
			if err := eval.Sub(eq[c], shard.FP[r][c], sub); err != nil {
				return fmt.Errorf("row %d col %d: subtract fingerprint: %w", r, c, err)
			}

			for sq := 0; sq < p.EqualitySquarings; sq++ {
				if err := eval.MulRelin(sub, sub, sub); err != nil {
					return fmt.Errorf("row %d col %d: square %d/%d: %w", r, c, sq+1, p.EqualitySquarings, err)
				}
			}

			for i := 0; i < p.ModSwitchDepth; i++ {
				next, err := hethread.ModSwitchToNext(eval, sub)
				if err != nil {
					return fmt.Errorf("row %d col %d: mod switch %d/%d: %w", r, c, i+1, p.ModSwitchDepth, err)
				}
				sub = next
			}

			colMatch := rlwe.NewCiphertext(p.HE, 1, sub.Level())
			if err := eval.Sub(sc.OneCt, sub, colMatch); err != nil {
				return fmt.Errorf("row %d col %d: one_ct - sub: %w", r, c, err)
			}
			colResult[c] = colMatch
		}

		reduced, err := hethread.TreeMultiply(ctx, sc.Pool, colResult, 1)
		if err != nil {
			return fmt.Errorf("row %d: column tree reduce: %w", r, err)
		}

		conjugated, err := hethread.ConjugateRows(eval, p.HE, reduced)
		if err != nil {
			return fmt.Errorf("row %d: conjugate fold: %w", r, err)
		}
		folded := rlwe.NewCiphertext(p.HE, 1, reduced.Level())
		if err := eval.MulRelin(reduced, conjugated, folded); err != nil {
			return fmt.Errorf("row %d: fold multiply: %w", r, err)
		}

		rowSelector[r] = folded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rowSelector, nil
}
