// Package pirserver implements the three-stage server pipeline: query
// expansion, homomorphic equality check, and PIR extraction, run
// against one or more dbenc multi-map shards. Grounded on the
// teacher's pir_rest_server_ms.go pirQuery (request-scoped, mutex
// guarded ciphertext-times-plaintext evaluation), generalized from a
// single MulNew call into the full rotate/square/reduce pipeline spec
// §4.4 describes, and re-architected per spec §9 into an explicit
// ServerContext instead of package-level globals.
package pirserver

import (
	"context"
	"fmt"
	"log"
	"runtime"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"

	"github.com/iasenovets/keywordpir/internal/dbenc"
	"github.com/iasenovets/keywordpir/internal/hethread"
	"github.com/iasenovets/keywordpir/internal/pirparams"
)

// TotalMachineThread bounds the product of outer and inner fan-out
// across one query, per spec §5. Defaults to GOMAXPROCS; overridable
// for benchmarking on constrained hardware.
var TotalMachineThread = runtime.GOMAXPROCS(0)

// ServerContext is the per-request, per-client state the pipeline
// needs: the shared parameter contract, the client's uploaded
// evaluation keys and one_ct, and a worker pool sized to
// TotalMachineThread. It owns no global mutable state — every field is
// either read-only after construction or exclusively owned by one
// worker's output slot, per spec §9.
type ServerContext struct {
	Params *pirparams.Params
	Pool   *hethread.Pool
	OneCt  *rlwe.Ciphertext

	MultiMap *dbenc.MultiMap
}

// NewServerContext builds a request-scoped context from the client's
// uploaded key material, the shard set it will query against, and the
// one_ct that compacts comparison results down to the database's
// working modulus level.
func NewServerContext(p *pirparams.Params, evk rlwe.EvaluationKeySetInterface, oneCt *rlwe.Ciphertext, mm *dbenc.MultiMap) (*ServerContext, error) {
	if oneCt == nil {
		return nil, fmt.Errorf("pirserver: one_ct is required before serving queries")
	}
	if mm == nil || len(mm.Shards) == 0 {
		return nil, fmt.Errorf("pirserver: multi-map must have at least one shard")
	}
	pool := hethread.New(p.HE, evk, TotalMachineThread)
	log.Printf("[INFO] pirserver: context ready: NumCol=%d NumRow=%d shards=%d TotalMachineThread=%d",
		p.NumCol, p.NumRow, len(mm.Shards), TotalMachineThread)
	return &ServerContext{Params: p, Pool: pool, OneCt: oneCt, MultiMap: mm}, nil
}

func (sc *ServerContext) evaluator() *bgv.Evaluator { return sc.Pool.Base() }

// Query runs the full three-stage pipeline for a single serialized
// query ciphertext and returns the cross-shard-packed answer stream,
// one serialized ciphertext per shard, per spec §4.4/§6.
func (sc *ServerContext) Query(ctx context.Context, qssBytes []byte) ([][]byte, error) {
	qCt := rlwe.NewCiphertext(sc.Params.HE, 1, sc.Params.HE.MaxLevel())
	if err := qCt.UnmarshalBinary(qssBytes); err != nil {
		return nil, fmt.Errorf("pirserver: decoding query ciphertext: %w", err)
	}

	eq, err := sc.QueryExpand(ctx, qCt)
	if err != nil {
		return nil, fmt.Errorf("pirserver: stage 1 (query expand): %w", err)
	}

	selectors := make([][]*rlwe.Ciphertext, len(sc.MultiMap.Shards))
	for s, shard := range sc.MultiMap.Shards {
		sel, err := sc.Process1(ctx, eq, shard)
		if err != nil {
			return nil, fmt.Errorf("pirserver: stage 2 (equality check), shard %d: %w", s, err)
		}
		selectors[s] = sel
	}

	answers := make([]*rlwe.Ciphertext, len(sc.MultiMap.Shards))
	for s, shard := range sc.MultiMap.Shards {
		a, err := sc.Process2(ctx, shard, selectors[s])
		if err != nil {
			return nil, fmt.Errorf("pirserver: stage 3 (pir extraction), shard %d: %w", s, err)
		}
		answers[s] = a
	}

	return sc.PackCrossShard(answers)
}

// PackCrossShard implements spec §4.4's final step: emit A[0]; for
// each subsequent shard, rotate the running result right by
// obj_size/4 and add A[s]; append each updated ciphertext to the
// stream. Validates the precondition spec §9 open question 2 calls
// out: obj_size/4 must fit within N/2 so shard windows stay disjoint.
// Exported so callers that time each pipeline stage themselves (e.g.
// cmd/benchmark) can still produce the same wire-compatible stream
// pirclient.Reconstruct expects, instead of returning raw per-shard
// answers.
func (sc *ServerContext) PackCrossShard(answers []*rlwe.Ciphertext) ([][]byte, error) {
	p := sc.Params
	window := p.ObjectSizeBytes / 4
	if window <= 0 || window > p.Half() {
		return nil, fmt.Errorf("pirserver: cross-shard packing precondition violated: obj_size/4=%d must be in (0, N/2=%d]", window, p.Half())
	}
	if window*len(answers) > p.Half() {
		return nil, fmt.Errorf("pirserver: cross-shard packing precondition violated: %d shards x window %d exceeds N/2=%d", len(answers), window, p.Half())
	}

	eval := sc.evaluator()
	stream := make([][]byte, len(answers))

	running := answers[0].CopyNew()
	b, err := running.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("pirserver: marshal shard 0 answer: %w", err)
	}
	stream[0] = b

	for s := 1; s < len(answers); s++ {
		rotated, err := rotateBySetBits(eval, p.HE, running, -window)
		if err != nil {
			return nil, fmt.Errorf("pirserver: cross-shard rotate before shard %d: %w", s, err)
		}
		if err := eval.Add(rotated, answers[s], rotated); err != nil {
			return nil, fmt.Errorf("pirserver: cross-shard add shard %d: %w", s, err)
		}
		running = rotated
		b, err := running.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("pirserver: marshal shard %d answer: %w", s, err)
		}
		stream[s] = b
	}
	return stream, nil
}
