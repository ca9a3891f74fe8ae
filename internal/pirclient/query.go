package pirclient

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"

	"github.com/iasenovets/keywordpir/internal/keyhash"
	"github.com/iasenovets/keywordpir/internal/pirparams"
)

// QueryMake hashes target's padded key and builds the one-query
// ciphertext Q_ct per spec §4.3: for each column c, the lower half
// holds the first fingerprint chunk replicated across c's assigned
// slot block, the upper half the second chunk.
func QueryMake(p *pirparams.Params, ks *KeySet, target []byte) (*rlwe.Ciphertext, error) {
	fp, err := keyhash.Sum(target, p.NumCol)
	if err != nil {
		return nil, fmt.Errorf("pirclient: hashing target keyword: %w", err)
	}

	half := p.Half()
	blockWidth := half / p.NumCol
	vec := make([]uint64, p.N())
	for c := 0; c < p.NumCol; c++ {
		lo, hi := fp.SlotPair(c)
		start := c * blockWidth
		end := start + blockWidth
		if end > half {
			end = half
		}
		for s := start; s < end; s++ {
			vec[s] = uint64(lo)
			vec[s+half] = uint64(hi)
		}
	}

	if Debug {
		fmt.Printf("[DBG] QueryMake: target=%x NumCol=%d blockWidth=%d\n", target, p.NumCol, blockWidth)
	}

	enc := bgv.NewEncoder(p.HE)
	pt := bgv.NewPlaintext(p.HE, p.HE.MaxLevel())
	if err := enc.Encode(vec, pt); err != nil {
		return nil, fmt.Errorf("pirclient: encoding query vector: %w", err)
	}

	encryptor := bgv.NewEncryptor(p.HE, ks.SecretKey)
	ct, err := encryptor.EncryptNew(pt)
	if err != nil {
		return nil, fmt.Errorf("pirclient: encrypting query: %w", err)
	}
	return ct, nil
}
