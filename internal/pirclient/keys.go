// Package pirclient implements the client half of the protocol: key
// generation, one-hot query encoding, and answer reconstruction.
// Grounded on the teacher's internal/cpir (GenKeys/EncryptQueryBase64/
// DecryptResult), generalized from its flat single-ciphertext lookup to
// the column-fingerprint query and multi-shard answer the full
// pipeline requires.
package pirclient

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"

	"github.com/iasenovets/keywordpir/internal/hethread"
	"github.com/iasenovets/keywordpir/internal/pirparams"
)

// Debug mirrors the teacher's global trace switch (internal/cpir.Debug).
var Debug = false

// KeySet holds everything the client keeps private plus what it
// uploads: the secret key never leaves the client; RelinKey and
// GaloisKeys are serialized and sent via SendKeys.
type KeySet struct {
	Params    *pirparams.Params
	SecretKey *rlwe.SecretKey
	RelinKey  *rlwe.RelinearizationKey
	GaloisKeys []*rlwe.GaloisKey

	// steps records the rotation step set (RotationSteps' output)
	// GaloisKeys were generated for.
	steps []int
}

// RotationSteps returns the rotation-step set spec §4.1 requires:
// {0} union the within-half-row doubling steps the query-expansion
// replicate loop uses, union the negative powers of two Process2's
// per-worker folding needs.
func RotationSteps(p *pirparams.Params) []int {
	steps := map[int]struct{}{0: {}}

	block := p.N() / (2 * p.NumCol)
	for i := block; i < p.N()/2; i *= 2 {
		steps[i] = struct{}{}
	}

	for k := 1; k < p.PirNumColumnsPerObj/2; k *= 2 {
		steps[-k] = struct{}{}
	}
	// also cover the mid-point rotations get_sum's internal nodes use,
	// which are powers of two up to the next-power-of-two half of the
	// largest worker range (spec §4.4 stage 3 item 1's "-mid" rotate).
	for k := 1; k < p.PirNumColumnsPerObj; k *= 2 {
		steps[-k] = struct{}{}
	}

	out := make([]int, 0, len(steps))
	for s := range steps {
		out = append(out, s)
	}
	return out
}

// GenKeys produces a fresh symmetric key, a relinearization key, and
// Galois keys for the rotation set the pipeline requires.
func GenKeys(p *pirparams.Params) (*KeySet, error) {
	kgen := rlwe.NewKeyGenerator(p.HE)
	sk := kgen.GenSecretKeyNew()
	rlk := kgen.GenRelinearizationKeyNew(sk)

	steps := RotationSteps(p)
	galEls := hethread.GaloisElements(p.HE, steps, true)
	gks := kgen.GenGaloisKeysNew(galEls, sk)

	if Debug {
		fmt.Printf("[DBG] GenKeys: %d rotation steps, %d galois keys, maxSlots=%d\n", len(steps), len(gks), p.N())
	}

	return &KeySet{
		Params:     p,
		SecretKey:  sk,
		RelinKey:   rlk,
		GaloisKeys: gks,
		steps:      steps,
	}, nil
}

// EvaluationKeySet builds the rlwe.EvaluationKeySetInterface the
// server-side evaluator is constructed with, from uploaded keys.
func EvaluationKeySet(rlk *rlwe.RelinearizationKey, gks []*rlwe.GaloisKey) rlwe.EvaluationKeySetInterface {
	return rlwe.NewMemEvaluationKeySet(rlk, gks...)
}

// OneCiphertext encrypts the all-ones slot vector and modulus-switches
// it down D_ms times to the compact level the server uses for
// database encoding and the equality-check's "one_ct - sub" step.
func OneCiphertext(p *pirparams.Params, ks *KeySet) (*rlwe.Ciphertext, error) {
	enc := bgv.NewEncoder(p.HE)
	encryptor := bgv.NewEncryptor(p.HE, ks.SecretKey)

	ones := make([]uint64, p.N())
	for i := range ones {
		ones[i] = 1
	}
	pt := bgv.NewPlaintext(p.HE, p.HE.MaxLevel())
	if err := enc.Encode(ones, pt); err != nil {
		return nil, fmt.Errorf("pirclient: encoding one-vector: %w", err)
	}
	ct, err := encryptor.EncryptNew(pt)
	if err != nil {
		return nil, fmt.Errorf("pirclient: encrypting one-vector: %w", err)
	}

	eval := bgv.NewEvaluator(p.HE, nil)
	for i := 0; i < p.ModSwitchDepth; i++ {
		next, err := hethread.ModSwitchToNext(eval, ct)
		if err != nil {
			return nil, fmt.Errorf("pirclient: mod-switching one_ct (step %d/%d): %w", i+1, p.ModSwitchDepth, err)
		}
		ct = next
	}
	return ct, nil
}
