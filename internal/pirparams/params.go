// Package pirparams fixes the cryptographic parameter contract shared
// between client and server: polynomial degree, plaintext modulus,
// coefficient-modulus chain, modulus-switch depth, and the
// keyword/value bit widths that the database encoder and the client's
// query encoder both derive their column counts from.
package pirparams

import (
	"encoding/json"
	"fmt"

	"github.com/tuneinsight/lattigo/v6/schemes/bgv"
)

// PlainBit is the bit width of one fingerprint/value chunk. The
// reference plaintext modulus t = 65537 = 2^16+1 makes PlainBit = 16
// the natural choice: it is both the CRT chunk width and the exponent
// used by the Fermat-little-theorem equality check (see
// EqualitySquarings).
const PlainBit = 16

// DefaultPlaintextModulus is the NTT-friendly prime t = 2^PlainBit+1.
const DefaultPlaintextModulus = 65537

// Config is the user-facing literal used to build a Params value. It
// mirrors the knobs spec.md §3 names explicitly.
type Config struct {
	LogN             int    // ring degree exponent; N = 1<<LogN
	PlaintextModulus uint64 // t, must be NTT-friendly (1 mod 2N)
	LogQ             []int  // ciphertext modulus chain, in bits
	LogP             []int  // auxiliary primes for key-switching, in bits
	ModSwitchDepth   int    // D_ms
	KeywordBits      int    // key_size
	ObjectSizeBytes  int    // obj_size
	NumberOfItems    int    // n, logical table size
}

// Params is the resolved, shared parameter contract: the BGV
// (BFV-equivalent) HE parameters plus the derived widths every other
// package keys its layout off of.
type Params struct {
	HE bgv.Parameters

	LogQ             []int
	LogP             []int
	PlaintextModulus uint64

	ModSwitchDepth  int
	KeywordBits     int
	ObjectSizeBytes int
	NumberOfItems   int

	// NumCol = ceil(key_size / (2*PlainBit)): number of 16-bit slot
	// pairs needed to cover one SHA-256 derived fingerprint.
	NumCol int

	// PirNumColumnsPerObj = 2*ceil((obj_size/2)*8 / PlainBit): plaintext
	// slots consumed per stored value, split across the two CRT rows.
	PirNumColumnsPerObj int

	// NumRow = ceil(n / (N/2)): row-batches needed to cover the table.
	NumRow int

	// PirDBRows = ceil(n/N) * PirNumColumnsPerObj: value-plaintext row count.
	PirDBRows int

	// PirNumQueryCiphertext = ceil(n/(N/2)): number of row batches that
	// Stage-3 workers fold per value column.
	PirNumQueryCiphertext int

	// EqualitySquarings is the repeated-squaring count in stage 2's
	// Fermat-little-theorem equality test: 2^EqualitySquarings == -1
	// (mod t). Derived, not hard-wired, per spec §9 open question 3.
	EqualitySquarings int
}

// N returns the ring degree (total CRT slot count, 2 rows of N/2).
func (p *Params) N() int { return p.HE.MaxSlots() }

// Half returns N/2, the width of one CRT row.
func (p *Params) Half() int { return p.N() / 2 }

// New builds the shared Params contract from a Config, validating the
// invariants spec.md §3 requires before any key material is generated.
func New(cfg Config) (*Params, error) {
	if cfg.PlaintextModulus == 0 {
		cfg.PlaintextModulus = DefaultPlaintextModulus
	}
	if cfg.ModSwitchDepth <= 0 {
		return nil, fmt.Errorf("pirparams: ModSwitchDepth must be positive, got %d", cfg.ModSwitchDepth)
	}
	if cfg.KeywordBits <= 0 {
		return nil, fmt.Errorf("pirparams: KeywordBits must be positive, got %d", cfg.KeywordBits)
	}
	if cfg.ObjectSizeBytes <= 0 {
		return nil, fmt.Errorf("pirparams: ObjectSizeBytes must be positive, got %d", cfg.ObjectSizeBytes)
	}
	if cfg.NumberOfItems <= 0 {
		return nil, fmt.Errorf("pirparams: NumberOfItems must be positive, got %d", cfg.NumberOfItems)
	}
	if len(cfg.LogQ)-cfg.ModSwitchDepth <= 1 {
		return nil, fmt.Errorf("pirparams: coeff modulus chain (%d primes) too short for ModSwitchDepth=%d, need > 1 prime left", len(cfg.LogQ), cfg.ModSwitchDepth)
	}

	lit := bgv.ParametersLiteral{
		LogN:             cfg.LogN,
		LogQ:             cfg.LogQ,
		LogP:             cfg.LogP,
		PlaintextModulus: cfg.PlaintextModulus,
	}
	he, err := bgv.NewParametersFromLiteral(lit)
	if err != nil {
		return nil, fmt.Errorf("pirparams: building BGV parameters: %w", err)
	}

	squarings, err := equalitySquarings(cfg.PlaintextModulus)
	if err != nil {
		return nil, err
	}

	p := &Params{
		HE:               he,
		LogQ:             cfg.LogQ,
		LogP:             cfg.LogP,
		PlaintextModulus: cfg.PlaintextModulus,
		ModSwitchDepth:   cfg.ModSwitchDepth,
		KeywordBits:      cfg.KeywordBits,
		ObjectSizeBytes:  cfg.ObjectSizeBytes,
		NumberOfItems:    cfg.NumberOfItems,
	}

	n := p.N()
	p.NumCol = ceilDiv(cfg.KeywordBits, 2*PlainBit)
	p.PirNumColumnsPerObj = 2 * ceilDiv((cfg.ObjectSizeBytes/2)*8, PlainBit)
	p.NumRow = ceilDiv(cfg.NumberOfItems, n/2)
	p.PirDBRows = ceilDiv(cfg.NumberOfItems, n) * p.PirNumColumnsPerObj
	p.PirNumQueryCiphertext = ceilDiv(cfg.NumberOfItems, n/2)
	p.EqualitySquarings = squarings

	if p.NumCol == 0 {
		return nil, fmt.Errorf("pirparams: derived NumCol=0, KeywordBits too small")
	}
	if (n / 2) < p.NumCol {
		return nil, fmt.Errorf("pirparams: ring too small: N/2=%d slots cannot hold NumCol=%d column blocks", n/2, p.NumCol)
	}
	if p.PirNumColumnsPerObj/2 <= 0 {
		return nil, fmt.Errorf("pirparams: derived PirNumColumnsPerObj=0, ObjectSizeBytes too small")
	}

	return p, nil
}

// equalitySquarings finds the smallest k with x^(2^k) == -1 (mod t)
// for x a generator of the squaring orbit used by stage 2 (spec §9
// open question 3): repeated squaring of (a-b) raises it to t-1, which
// is 1 when a==b and uniform-random otherwise only if t-1 is itself a
// power of two, i.e. t = 2^k + 1 (a Fermat prime). k = log2(t-1).
func equalitySquarings(t uint64) (int, error) {
	if t < 2 {
		return 0, fmt.Errorf("pirparams: plaintext modulus %d too small", t)
	}
	m := t - 1
	k := 0
	for m > 1 {
		if m&1 != 0 {
			return 0, fmt.Errorf("pirparams: plaintext modulus %d is not of the form 2^k+1, cannot derive equality-check squaring count", t)
		}
		m >>= 1
		k++
	}
	return k, nil
}

func ceilDiv(a, b int) int {
	if a <= 0 || b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// wireParams is the JSON-serializable projection of Params used for
// the ReceiveParams() RPC (spec §6): the HE backend's own literal plus
// the derived widths, so the client never has to re-derive them.
type wireParams struct {
	LogN             int    `json:"log_n"`
	PlaintextModulus uint64 `json:"plaintext_modulus"`
	LogQ             []int  `json:"log_q"`
	LogP             []int  `json:"log_p"`
	ModSwitchDepth   int    `json:"mod_switch_depth"`
	KeywordBits      int    `json:"keyword_bits"`
	ObjectSizeBytes  int    `json:"object_size_bytes"`
	NumberOfItems    int    `json:"number_of_items"`
}

// Marshal serializes the parameter contract for the ReceiveParams RPC.
func (p *Params) Marshal() ([]byte, error) {
	return json.Marshal(wireParams{
		LogN:             p.HE.LogN(),
		PlaintextModulus: p.PlaintextModulus,
		LogQ:             p.LogQ,
		LogP:             p.LogP,
		ModSwitchDepth:   p.ModSwitchDepth,
		KeywordBits:      p.KeywordBits,
		ObjectSizeBytes:  p.ObjectSizeBytes,
		NumberOfItems:    p.NumberOfItems,
	})
}

// Unmarshal loads a parameter contract sent by ReceiveParams and
// rebuilds the derived widths, exactly mirroring New's derivation so
// client and server never disagree on layout.
func Unmarshal(data []byte) (*Params, error) {
	var w wireParams
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("pirparams: decoding wire params: %w", err)
	}
	return New(Config{
		LogN:             w.LogN,
		PlaintextModulus: w.PlaintextModulus,
		LogQ:             w.LogQ,
		LogP:             w.LogP,
		ModSwitchDepth:   w.ModSwitchDepth,
		KeywordBits:      w.KeywordBits,
		ObjectSizeBytes:  w.ObjectSizeBytes,
		NumberOfItems:    w.NumberOfItems,
	})
}
