// Package dbenc builds the NTT-domain fingerprint and value plaintexts
// the server pipeline queries against, and implements the Pareto
// frequency sampler that spreads duplicate keywords round-robin across
// multi-map shards. Grounded on the teacher's database-setup idiom
// (`initLedger`/`gen_records`/`CalcSlotsPerRec`): synthetic record
// generation plus the same bracketed `[INFO]`/`[DEBUG]`/`[WARN]`
// logging, now producing BGV plaintexts instead of a flat byte packing.
package dbenc

import (
	"bytes"
	"fmt"
	"log"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"

	"github.com/iasenovets/keywordpir/internal/keyhash"
	"github.com/iasenovets/keywordpir/internal/pirparams"
)

// InvalidKey is the sentinel keyword value used to pad unused slots of
// a shard: real keys are assumed to start at 1 when the synthetic
// integer-key generator is used.
const InvalidKey uint64 = 0

// InvalidIndex marks the absence of a key within one shard.
const InvalidIndex = -1

// Shard is one key-unique sub-database: a NumRow x NumCol matrix of
// fingerprint plaintexts and a flat array of value plaintexts indexed
// by (column, row-batch).
type Shard struct {
	Params *pirparams.Params

	// FP[r][c] holds, for row-batch r and column c, the fingerprint
	// chunk pair of every key in that row-batch's N/2 slots.
	FP [][]*rlwe.Plaintext

	// V is flat, indexed as V[PirNumQueryCiphertext*col+j] for value
	// column col in [0, PirNumColumnsPerObj/2) and row-batch j in
	// [0, PirNumQueryCiphertext).
	V []*rlwe.Plaintext

	// keys records the logical key occupying each row, in row order,
	// for ResolveIndex's linear scan. Rows beyond len(keys) are
	// implicitly InvalidKey padding.
	keys [][]byte
}

// NewShard allocates an empty shard's plaintext backing store.
func NewShard(p *pirparams.Params) *Shard {
	s := &Shard{Params: p}
	s.FP = make([][]*rlwe.Plaintext, p.NumRow)
	for r := range s.FP {
		s.FP[r] = make([]*rlwe.Plaintext, p.NumCol)
	}
	chunksPerHalf := p.PirNumColumnsPerObj / 2
	s.V = make([]*rlwe.Plaintext, chunksPerHalf*p.PirNumQueryCiphertext)
	return s
}

// PopulateKeys hashes each key in keys into its row's fingerprint and
// encodes FP[r][c] for every row-batch/column pair, per spec §4.2.
// keys shorter than the shard's full capacity (NumRow*N/2) are padded
// with InvalidKey-derived filler rows.
func (s *Shard) PopulateKeys(keys [][]byte) error {
	p := s.Params
	half := p.Half()
	totalRows := p.NumRow * half
	if len(keys) > totalRows {
		return fmt.Errorf("dbenc: %d keys exceed shard capacity %d rows", len(keys), totalRows)
	}
	s.keys = keys

	enc := bgv.NewEncoder(p.HE)
	mats := make([][][]uint64, p.NumRow)
	for r := range mats {
		mats[r] = make([][]uint64, p.NumCol)
		for c := range mats[r] {
			mats[r][c] = make([]uint64, p.N())
		}
	}

	for row := 0; row < totalRows; row++ {
		key := invalidKeyBytes(p.KeywordBits)
		if row < len(keys) {
			key = keys[row]
		}
		fp, err := keyhash.Sum(key, p.NumCol)
		if err != nil {
			return fmt.Errorf("dbenc: hashing row %d: %w", row, err)
		}
		r := row / half
		slot := row % half
		for c := 0; c < p.NumCol; c++ {
			lo, hi := fp.SlotPair(c)
			mats[r][c][slot] = uint64(lo)
			mats[r][c][slot+half] = uint64(hi)
		}
	}

	for r := range mats {
		for c := range mats[r] {
			pt := bgv.NewPlaintext(p.HE, p.HE.MaxLevel())
			if err := enc.Encode(mats[r][c], pt); err != nil {
				return fmt.Errorf("dbenc: encoding FP[%d][%d]: %w", r, c, err)
			}
			s.FP[r][c] = pt
		}
	}
	log.Printf("[INFO] dbenc: populated %d keys into %d row-batches x %d columns", len(keys), p.NumRow, p.NumCol)
	return nil
}

// PopulateValues packs values into the flat V plaintexts, per spec
// §4.2: each value's bytes split into two halves (one per CRT row),
// each half chunked into PLAIN_BIT-wide slots. Slots beyond a value's
// actual length, and rows beyond len(values), are set to 1.
func (s *Shard) PopulateValues(values [][]byte) error {
	p := s.Params
	half := p.Half()
	totalRows := p.NumRow * half
	if len(values) > totalRows {
		return fmt.Errorf("dbenc: %d values exceed shard capacity %d rows", len(values), totalRows)
	}

	chunksPerHalf := p.PirNumColumnsPerObj / 2
	bytesPerHalf := p.ObjectSizeBytes / 2

	mats := make([][]uint64, chunksPerHalf*p.PirNumQueryCiphertext)
	for i := range mats {
		mats[i] = make([]uint64, p.N())
		for k := range mats[i] {
			mats[i][k] = 1
		}
	}

	for row := 0; row < totalRows; row++ {
		r := row / half
		slot := row % half
		if r >= p.PirNumQueryCiphertext {
			continue // row-batch beyond this shard's value plaintext range
		}
		var val []byte
		if row < len(values) {
			val = values[row]
		}
		for col := 0; col < chunksPerHalf; col++ {
			idx := p.PirNumQueryCiphertext*col + r
			lo := chunkAt(val, 0, col, bytesPerHalf)
			hi := chunkAt(val, bytesPerHalf, col, len(val)-bytesPerHalf)
			mats[idx][slot] = lo
			mats[idx][slot+half] = hi
		}
	}

	enc := bgv.NewEncoder(p.HE)
	for i, mat := range mats {
		pt := bgv.NewPlaintext(p.HE, p.HE.MaxLevel())
		if err := enc.Encode(mat, pt); err != nil {
			return fmt.Errorf("dbenc: encoding V[%d]: %w", i, err)
		}
		s.V[i] = pt
	}
	log.Printf("[INFO] dbenc: populated %d values (%d bytes each) into %d value plaintexts", len(values), p.ObjectSizeBytes, len(s.V))
	return nil
}

// chunkAt reads the 16-bit big-endian chunk `col` from half[offset:offset+n]
// of val, returning 1 (the padding identity) past the half's real length.
func chunkAt(val []byte, offset, col, halfLen int) uint64 {
	if halfLen < 0 {
		halfLen = 0
	}
	byteOff := col * pirparams.PlainBit / 8
	if offset+byteOff+1 >= offset+halfLen || offset+byteOff >= len(val) {
		return 1
	}
	hi := uint64(val[offset+byteOff])
	lo := uint64(0)
	if offset+byteOff+1 < len(val) && byteOff+1 < halfLen {
		lo = uint64(val[offset+byteOff+1])
	}
	return hi<<8 | lo
}

// ResolveIndex linearly scans this shard's keys for an exact match,
// returning the matching row index or InvalidIndex.
func (s *Shard) ResolveIndex(key []byte) int {
	for i, k := range s.keys {
		if bytes.Equal(k, key) {
			return i
		}
	}
	return InvalidIndex
}

// invalidKeyBytes returns the canonical zero-key padding for a
// keyword field of keywordBits bits, matching InvalidKey=0.
func invalidKeyBytes(keywordBits int) []byte {
	return make([]byte, (keywordBits+7)/8)
}

// KeyFromUint64 encodes a synthetic integer key id into the canonical
// big-endian byte form PopulateKeys/ResolveIndex expect, matching the
// "keys in the real table start at 1" convention spec §3 describes.
func KeyFromUint64(id uint64, keywordBits int) []byte {
	width := (keywordBits + 7) / 8
	b := make([]byte, width)
	for i := width - 1; i >= 0 && id > 0; i-- {
		b[i] = byte(id)
		id >>= 8
	}
	return b
}
