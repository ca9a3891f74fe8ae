package hethread

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"

	"github.com/iasenovets/keywordpir/internal/pirparams"
)

func testHE(t *testing.T) bgv.Parameters {
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
	return p.HE
}

func encryptOnes(t *testing.T, params bgv.Parameters, sk *rlwe.SecretKey) *rlwe.Ciphertext {
	t.Helper()
	enc := bgv.NewEncoder(params)
	ones := make([]uint64, params.MaxSlots())
	for i := range ones {
		ones[i] = 1
	}
	pt := bgv.NewPlaintext(params, params.MaxLevel())
	require.NoError(t, enc.Encode(ones, pt))
	encryptor := bgv.NewEncryptor(params, sk)
	ct, err := encryptor.EncryptNew(pt)
	require.NoError(t, err)
	return ct
}

func TestRotateColumnsByZeroCopies(t *testing.T) {
	params := testHE(t)
	kgen := rlwe.NewKeyGenerator(params)
	sk := kgen.GenSecretKeyNew()
	ct := encryptOnes(t, params, sk)

	eval := bgv.NewEvaluator(params, nil)
	out, err := RotateColumns(eval, params, ct, 0)
	require.NoError(t, err)
	assert.NotSame(t, ct, out)
}

func TestGaloisElementsIncludesConjugate(t *testing.T) {
	params := testHE(t)
	steps := []int{0, 1, 2}
	withoutConj := GaloisElements(params, steps, false)
	withConj := GaloisElements(params, steps, true)
	assert.Len(t, withConj, len(withoutConj)+1)
}

func TestPoolRunExecutesEveryTask(t *testing.T) {
	params := testHE(t)
	kgen := rlwe.NewKeyGenerator(params)
	sk := kgen.GenSecretKeyNew()
	rlk := kgen.GenRelinearizationKeyNew(sk)
	evk := rlwe.NewMemEvaluationKeySet(rlk)

	pool := New(params, evk, 4)

	n := 8
	done := make([]bool, n)
	var mu sync.Mutex
	err := pool.Run(context.Background(), n, 4, func(eval *bgv.Evaluator, idx int) error {
		mu.Lock()
		done[idx] = true
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	for i, d := range done {
		assert.True(t, d, "task %d did not run", i)
	}
}

func TestPoolRunPropagatesTaskError(t *testing.T) {
	params := testHE(t)
	kgen := rlwe.NewKeyGenerator(params)
	sk := kgen.GenSecretKeyNew()
	rlk := kgen.GenRelinearizationKeyNew(sk)
	evk := rlwe.NewMemEvaluationKeySet(rlk)

	pool := New(params, evk, 2)
	wantErr := errors.New("boom")
	err := pool.Run(context.Background(), 4, 2, func(eval *bgv.Evaluator, idx int) error {
		if idx == 0 {
			return wantErr
		}
		return nil
	})
	assert.Error(t, err)
}

func TestPoolRunNoOpOnZeroTasks(t *testing.T) {
	params := testHE(t)
	pool := New(params, nil, 2)
	err := pool.Run(context.Background(), 0, 2, func(eval *bgv.Evaluator, idx int) error {
		t.Fatal("task should never run for n=0")
		return nil
	})
	assert.NoError(t, err)
}
