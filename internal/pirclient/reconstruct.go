package pirclient

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"

	"github.com/iasenovets/keywordpir/internal/dbenc"
	"github.com/iasenovets/keywordpir/internal/hethread"
	"github.com/iasenovets/keywordpir/internal/pirparams"
)

// Reconstruct undoes the server's cross-shard packing (spec §4.4's
// final step, `pirserver.ServerContext.PackCrossShard`) and decrypts
// each shard's value bytes, per spec §4.3/§8.
//
// answerStream[s] is PackCrossShard's running total through shard s:
// answerStream[0] = A[0], and for s>0, answerStream[s] =
// rotate(answerStream[s-1], -obj_size/4) + A[s], where A[s] is shard
// s's raw extraction answer. Reconstruct recovers each A[s] by
// subtracting the rotated previous entry homomorphically before
// decrypting, mirroring PackCrossShard's own rotation in reverse.
//
// shardIndices is the per-shard row the target occupied (e.g.
// dbenc.MultiMap.ResolveIndex's output, or a caller's own deterministic
// placement knowledge — see dbenc.SequentialRow for the single-shard
// synthetic table). When shardIndices[s] == dbenc.InvalidIndex, the
// shard's answer is expected to decode to an all-zero value and is not
// decrypted at all.
func Reconstruct(p *pirparams.Params, ks *KeySet, answerStream [][]byte, shardIndices []int) ([][]byte, error) {
	if len(answerStream) != len(shardIndices) {
		return nil, fmt.Errorf("pirclient: %d answer ciphertexts but %d shard indices", len(answerStream), len(shardIndices))
	}

	dec := bgv.NewDecryptor(p.HE, ks.SecretKey)
	enc := bgv.NewEncoder(p.HE)
	eval := bgv.NewEvaluator(p.HE, EvaluationKeySet(ks.RelinKey, ks.GaloisKeys))
	half := p.Half()
	window := p.ObjectSizeBytes / 4
	chunkBytes := p.ObjectSizeBytes / 4 // quarter-object chunk count per half, per spec §4.3

	stream := make([]*rlwe.Ciphertext, len(answerStream))
	for s, raw := range answerStream {
		ct := rlwe.NewCiphertext(p.HE, 1, p.HE.MaxLevel())
		if err := ct.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("pirclient: shard %d: unmarshal answer: %w", s, err)
		}
		stream[s] = ct
	}

	out := make([][]byte, len(answerStream))
	for s := range stream {
		if shardIndices[s] == dbenc.InvalidIndex {
			out[s] = make([]byte, p.ObjectSizeBytes)
			continue
		}

		answerCt := stream[s]
		if s > 0 {
			rotatedPrev, err := rotateBySetBits(eval, p.HE, stream[s-1], -window)
			if err != nil {
				return nil, fmt.Errorf("pirclient: shard %d: undo cross-shard rotate: %w", s, err)
			}
			undone := rlwe.NewCiphertext(p.HE, 1, answerCt.Level())
			if err := eval.Sub(answerCt, rotatedPrev, undone); err != nil {
				return nil, fmt.Errorf("pirclient: shard %d: undo cross-shard add: %w", s, err)
			}
			answerCt = undone
		}

		pt := dec.DecryptNew(answerCt)
		vec := make([]uint64, p.N())
		if err := enc.Decode(pt, vec); err != nil {
			return nil, fmt.Errorf("pirclient: shard %d: decode answer: %w", s, err)
		}

		rot := shardIndices[s] % half
		lower := rotateLeft(vec[:half], rot)
		upper := rotateLeft(vec[half:], rot)

		value := make([]byte, p.ObjectSizeBytes)
		writeChunks(value[:p.ObjectSizeBytes/2], lower, chunkBytes)
		writeChunks(value[p.ObjectSizeBytes/2:], upper, chunkBytes)
		out[s] = value
	}
	return out, nil
}

// rotateBySetBits mirrors pirserver's rotation helper of the same name:
// it composes a rotation by an arbitrary offset from signed
// powers-of-two steps, so the client only ever needs the same
// power-of-two Galois keys it already generated for QueryMake/Process2
// (see RotationSteps), never a key for the exact cross-shard window.
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
				return nil, fmt.Errorf("pirclient: rotate by set bit %d (step %d): %w", bit, step, err)
			}
			out = rotated
		}
		mag >>= 1
		bit++
	}
	return out, nil
}

func rotateLeft(vec []uint64, by int) []uint64 {
	n := len(vec)
	if n == 0 {
		return vec
	}
	by = ((by % n) + n) % n
	out := make([]uint64, n)
	copy(out, vec[by:])
	copy(out[n-by:], vec[:by])
	return out
}

// writeChunks unpacks 16-bit big-endian slot values back into dst's
// bytes, two bytes per slot, stopping once dst is filled.
func writeChunks(dst []byte, slots []uint64, chunkCount int) {
	for c := 0; c < chunkCount && 2*c+1 < len(dst); c++ {
		v := slots[c]
		dst[2*c] = byte(v >> 8)
		dst[2*c+1] = byte(v)
	}
}
