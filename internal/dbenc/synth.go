package dbenc

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
)

// synthFamilies mirrors the teacher's gen_records malware-themed filler
// fields, repurposed here as deterministic synthetic value payloads.
var synthFamilies = []string{"Emotet", "WannaCry", "Ryuk", "AgentTesla", "Pegasus", "TrickBot"}

// syntheticValue deterministically derives obj_size bytes of filler
// content for synthetic id, in the teacher's FakeHash style (SHA-256
// digest, extended by re-hashing, then hex-truncated to length).
func syntheticValue(id uint64, objSize int) []byte {
	label := fmt.Sprintf("%s-%d", synthFamilies[id%uint64(len(synthFamilies))], id)
	hexStr := fakeHash(label, objSize)
	out := make([]byte, objSize)
	copy(out, hexStr)
	return out
}

// fakeHash extends a SHA-256 digest by repeated re-hashing until it
// covers `length` hex characters, truncating to exactly that many.
// Grounded on the teacher's utils.FakeHash (off_chain_pir_server
// internal/utils), adapted from debug-print filler to a real
// deterministic synthetic-value generator.
func fakeHash(base string, length int) string {
	if length <= 0 {
		return ""
	}
	hash := sha256.Sum256([]byte(base))
	hexStr := hex.EncodeToString(hash[:])
	for len(hexStr) < length {
		base += "x"
		h := sha256.Sum256([]byte(base))
		hexStr += hex.EncodeToString(h[:])
	}
	return hexStr[:length]
}

// SequentialRow returns the zero-based row a GenerateTable keyword
// occupies in its single shard, given the synthetic integer id
// KeyFromUint64 encoded into it, or InvalidIndex when id falls outside
// the table's [1,n] range. This placement is public precisely because
// GenerateTable's construction is itself public and deterministic (ids
// inserted in order, no duplicates, M=1); it is not a general answer to
// "where does my keyword live" for a round-robin multi-map built from
// an arbitrary workload, where placement depends on insertion order
// the client never observes.
func SequentialRow(id uint64, n int) int {
	if id < 1 || id > uint64(n) {
		return InvalidIndex
	}
	return int(id - 1)
}

// SequentialID recovers the synthetic integer id packed into key by
// KeyFromUint64, its inverse.
func SequentialID(key []byte) uint64 {
	var id uint64
	for _, b := range key {
		id = id<<8 | uint64(b)
	}
	return id
}

// GenerateTable builds a synthetic single-table workload of n distinct
// sequential-id keywords (no duplicates, M=1), suitable for the
// single-shard correctness scenarios in spec §8 (S1, S4).
func GenerateTable(keywordBits, objSize, n int) (keys, values [][]byte) {
	keys = make([][]byte, n)
	values = make([][]byte, n)
	for i := 0; i < n; i++ {
		id := uint64(i + 1)
		keys[i] = KeyFromUint64(id, keywordBits)
		values[i] = syntheticValue(id, objSize)
	}
	log.Printf("[INFO] dbenc: generated synthetic table of %d records (key_size=%d bits, obj_size=%d bytes)", n, keywordBits, objSize)
	return keys, values
}
