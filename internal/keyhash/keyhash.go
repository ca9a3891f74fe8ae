// Package keyhash turns a raw keyword into the fixed-width fingerprint
// the query encoder and the database encoder both derive their
// equality-check columns from. Grounded on the teacher's own
// `utils.FakeHash` debug fingerprinting idiom (SHA-256 + hex), adapted
// here to a real digest used for correctness rather than log output.
package keyhash

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// domainTag separates keyword fingerprints from any other SHA-256 use
// in this module, so a collision elsewhere can never alias a keyword.
const domainTag = "keywordpir/keyhash/v1"

// Fingerprint is a keyword's fixed-width digest, split into 16-bit
// chunks: one chunk per (row, column) slot pair the equality check
// compares against. len(Fingerprint) == 2*NumCol.
type Fingerprint []uint16

// Sum pads key to the byte width numCol requires, hashes it with a
// fixed domain tag, and slices the digest into 2*numCol 16-bit chunks.
// Two different byte strings "tall1" vs "tall1\x00" both get padded to
// the same field, so padding happens before hashing, matching the
// server's column-bound encoding.
func Sum(key []byte, numCol int) (Fingerprint, error) {
	if numCol <= 0 {
		return nil, fmt.Errorf("keyhash: numCol must be positive, got %d", numCol)
	}

	needed := 4 * numCol // PLAIN_BIT=16 -> 2 bytes/chunk, 2 chunks/col
	padded := make([]byte, needed)
	n := copy(padded, key)
	if n < len(key) {
		return nil, fmt.Errorf("keyhash: key of %d bytes exceeds %d-byte fingerprint field (numCol=%d)", len(key), needed, numCol)
	}

	h := sha256.New()
	h.Write([]byte(domainTag))
	h.Write(padded)
	digest := h.Sum(nil)

	out := make(Fingerprint, 2*numCol)
	off := 0
	for i := range out {
		if off+2 > len(digest) {
			// Past the 32-byte digest once numCol grows past 8
			// columns (2*numCol*2 > 32); re-hash the previous digest
			// to keep extending without repeating the same bytes.
			h2 := sha256.New()
			h2.Write(digest)
			digest = h2.Sum(nil)
			off = 0
		}
		out[i] = binary.BigEndian.Uint16(digest[off : off+2])
		off += 2
	}
	return out, nil
}

// SlotPair returns the (evenSlot, oddSlot) values the column-th block
// of the equality check compares in CRT rows 0 and 1 respectively.
func (f Fingerprint) SlotPair(column int) (uint16, uint16) {
	return f[2*column], f[2*column+1]
}
