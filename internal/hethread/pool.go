// Package hethread wraps the lattigo BGV evaluator with a fixed-size
// worker pool. The thread count is an explicit argument of Pool.Run
// and TreeMultiply only; the single-ciphertext wrappers (RotateColumns,
// ConjugateRows, RelinearizeInPlace, ModSwitchToNext) take none and
// run on the caller's goroutine. Lattigo's evaluator does not expose
// RNS-level threading hooks, so nothing here parallelises inside one
// homomorphic operation; the pool fans independent ciphertext/column
// tasks out across goroutines instead.
//
// No worker-pool library appears anywhere in the retrieved reference
// pack; every concurrent piece of the teacher repo is plain `sync`
// (WaitGroup, RWMutex), so this package follows that idiom rather than
// reaching for an external scheduler.
package hethread

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"
)

// Pool runs independent BGV evaluator tasks across a bounded number of
// goroutines. A Pool is safe for concurrent use by multiple callers;
// each Evaluator it hands out is a ShallowCopy, since lattigo
// evaluators are not safe to share across goroutines.
type Pool struct {
	params  bgv.Parameters
	evk     rlwe.EvaluationKeySetInterface
	base    *bgv.Evaluator
	maxProc int
}

// New builds a Pool around the given evaluation-key set (relinearization
// key plus whatever Galois keys the caller's rotation set requires).
// maxProc bounds the number of goroutines any single Run call may use;
// 0 means runtime.GOMAXPROCS(0), mirroring TOTAL_MACHINE_THREAD.
func New(params bgv.Parameters, evk rlwe.EvaluationKeySetInterface, maxProc int) *Pool {
	if maxProc <= 0 {
		maxProc = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		params:  params,
		evk:     evk,
		base:    bgv.NewEvaluator(params, evk),
		maxProc: maxProc,
	}
}

// evaluator returns a private evaluator copy for one goroutine. Lattigo
// evaluators carry scratch buffers that are not goroutine-safe, so each
// worker gets its own shallow copy of the shared base evaluator.
func (p *Pool) evaluator() *bgv.Evaluator {
	return p.base.ShallowCopy()
}

// Task is one unit of evaluator work; it receives a private Evaluator
// and the task's index within the batch passed to Run.
type Task func(eval *bgv.Evaluator, idx int) error

// Run executes n independent tasks using up to numThreads goroutines
// (clamped to the pool's maxProc), returning the first error
// encountered. If ctx is cancelled before all tasks complete, Run
// drains outstanding goroutines and returns ctx.Err() as is.
func (p *Pool) Run(ctx context.Context, n, numThreads int, task Task) error {
	if n == 0 {
		return nil
	}
	if numThreads <= 0 || numThreads > p.maxProc {
		numThreads = p.maxProc
	}
	if numThreads > n {
		numThreads = n
	}

	jobs := make(chan int, n)
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	errs := make(chan error, n)
	var wg sync.WaitGroup
	wg.Add(numThreads)
	for w := 0; w < numThreads; w++ {
		go func() {
			defer wg.Done()
			eval := p.evaluator()
			for idx := range jobs {
				select {
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				default:
				}
				if err := task(eval, idx); err != nil {
					errs <- fmt.Errorf("hethread: task %d: %w", idx, err)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Base returns the pool's shared (unshallow-copied) evaluator, for
// single-threaded callers that just need one evaluator without the Run
// scaffolding.
func (p *Pool) Base() *bgv.Evaluator { return p.base }
