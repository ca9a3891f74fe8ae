package dbenc

import (
	"fmt"
	"log"

	"github.com/iasenovets/keywordpir/internal/pirparams"
)

// MultiMap is M parallel key-unique shards built from a keyword
// frequency workload: keyword k's f_k duplicate copies are placed
// round-robin one per shard, per spec §3/§4.2.
type MultiMap struct {
	Params *pirparams.Params
	Shards []*Shard
}

// ResolveIndex returns, for each shard in order, the row index key
// occupies in that shard, or InvalidIndex if the shard doesn't hold it.
func (mm *MultiMap) ResolveIndex(key []byte) []int {
	out := make([]int, len(mm.Shards))
	for i, sh := range mm.Shards {
		out[i] = sh.ResolveIndex(key)
	}
	return out
}

// BuildMultiMap assigns each (key, value) pair to shards round-robin
// per duplicate key occurrence (keys sharing an id appear once per
// shard, in the order they're encountered in the input), pads the
// remainder of every shard with InvalidKey rows, and populates both
// the fingerprint and value plaintexts for each shard.
//
// M is the shard count; the caller (PopulatePareto, or an explicit
// multi-map test fixture) has already decided it as max_k f_k.
func BuildMultiMap(p *pirparams.Params, M int, keys [][]byte, values [][]byte) (*MultiMap, error) {
	if M <= 0 {
		return nil, fmt.Errorf("dbenc: multimap shard count M must be positive, got %d", M)
	}
	if len(keys) != len(values) {
		return nil, fmt.Errorf("dbenc: %d keys but %d values", len(keys), len(values))
	}

	shardKeys := make([][][]byte, M)
	shardValues := make([][][]byte, M)

	seen := map[string]int{} // key -> occurrences placed so far
	for i, k := range keys {
		ks := string(k)
		occurrence := seen[ks]
		if occurrence >= M {
			return nil, fmt.Errorf("dbenc: key %x occurs more than M=%d times", k, M)
		}
		seen[ks] = occurrence + 1
		shardKeys[occurrence] = append(shardKeys[occurrence], k)
		shardValues[occurrence] = append(shardValues[occurrence], values[i])
	}

	mm := &MultiMap{Params: p, Shards: make([]*Shard, M)}
	for s := 0; s < M; s++ {
		sh := NewShard(p)
		if err := sh.PopulateKeys(shardKeys[s]); err != nil {
			return nil, fmt.Errorf("dbenc: shard %d: %w", s, err)
		}
		if err := sh.PopulateValues(shardValues[s]); err != nil {
			return nil, fmt.Errorf("dbenc: shard %d: %w", s, err)
		}
		mm.Shards[s] = sh
	}
	log.Printf("[INFO] dbenc: built multi-map with M=%d shards from %d (key,value) pairs", M, len(keys))
	return mm, nil
}
