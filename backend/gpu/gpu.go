// Package gpu simulates an asynchronous compute-stream engine: the kind of
// backend a real GPU or FPGA device plugin would provide, where
// updateTransitionMatrices and updatePartials enqueue work on a device
// stream and return before the work has executed. The arithmetic itself is
// delegated to backend/scalar's engine; this package's job is the stream
// scheduling, completion tracking for waitForPartials, and fault isolation
// around a flaky device.
//
// The scheduling here (a single worker goroutine draining an ordered
// command queue, sync.Cond for completion waits) is ordinary Go concurrency
// idiom rather than a vendor-specific device API (see DESIGN.md).
package gpu

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/phyloeval/phyloeval"
	"github.com/phyloeval/phyloeval/backend/scalar"
)

// Backend is the simulated async device engine. Not safe for concurrent use
// by multiple goroutines calling its methods simultaneously beyond the
// enqueue/wait contract the phyloeval package already serializes through.
type Backend struct {
	inner  *scalar.Backend
	dataMu sync.Mutex // serializes access to inner between the worker and synchronous setters

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []command
	closed  bool
	wg      sync.WaitGroup
	nextGen int64
	doneGen int64
	destGen map[int]int64
	lastErr error

	breaker *gobreaker.CircuitBreaker[any]
}

type command struct {
	gen int64
	run func() error
}

// New constructs a not-yet-allocated gpu Backend and starts its worker
// goroutine.
func New() *Backend {
	b := &Backend{
		inner:   scalar.New(),
		destGen: make(map[int]int64),
	}
	b.cond = sync.NewCond(&b.mu)
	b.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name: "phyloeval-gpu-stream",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	b.wg.Add(1)
	go b.run()
	return b
}

func (b *Backend) CreateBuffers(sizing phyloeval.Sizing) error {
	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	return b.inner.CreateBuffers(sizing)
}

func (b *Backend) Synchronous() bool { return false }

func (b *Backend) EffectiveFlags() phyloeval.Flag {
	return phyloeval.FlagPrecisionDouble | phyloeval.FlagSyncAsynchronous | phyloeval.FlagDeviceGPU
}

func (b *Backend) SetPartials(bufferIndex int, in []float64) error {
	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	return b.inner.SetPartials(bufferIndex, in)
}

func (b *Backend) GetPartials(bufferIndex int, out []float64) error {
	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	return b.inner.GetPartials(bufferIndex, out)
}

func (b *Backend) SetTipStates(tipIndex int, in []int) error {
	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	return b.inner.SetTipStates(tipIndex, in)
}

func (b *Backend) SetEigenDecomposition(eigenIndex int, u, uInv, eigenvalues []float64) error {
	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	return b.inner.SetEigenDecomposition(eigenIndex, u, uInv, eigenvalues)
}

func (b *Backend) SetCategoryRates(rates []float64) error {
	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	return b.inner.SetCategoryRates(rates)
}

func (b *Backend) SetTransitionMatrix(matrixIndex int, in []float64) error {
	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	return b.inner.SetTransitionMatrix(matrixIndex, in)
}

func (b *Backend) GetLogScaleFactors(scalingIndex int, out []float64) error {
	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	return b.inner.GetLogScaleFactors(scalingIndex, out)
}

// UpdateTransitionMatrices enqueues the matrix computation on the device
// stream and returns immediately; the caller must call WaitForPartials
// before reading results that depend on it.
func (b *Backend) UpdateTransitionMatrices(eigenIndex int, probIdx, d1Idx, d2Idx []int, edgeLengths []float64) error {
	b.enqueue(nil, func() error {
		b.dataMu.Lock()
		defer b.dataMu.Unlock()
		return b.inner.UpdateTransitionMatrices(eigenIndex, probIdx, d1Idx, d2Idx, edgeLengths)
	})
	return nil
}

// UpdatePartials enqueues the peeling recursion for ops on the device
// stream and returns immediately.
func (b *Backend) UpdatePartials(ops []phyloeval.PartialsOperation, rescale bool) error {
	dests := make([]int, len(ops))
	for i, op := range ops {
		dests[i] = op.Dest
	}
	b.enqueue(dests, func() error {
		b.dataMu.Lock()
		defer b.dataMu.Unlock()
		return b.inner.UpdatePartials(ops, rescale)
	})
	return nil
}

// WaitForPartials blocks until every command that wrote one of destIndices
// has drained off the stream, then returns the first error (if any)
// encountered since the last WaitForPartials call. An empty destIndices
// waits for the entire stream to drain.
func (b *Backend) WaitForPartials(destIndices []int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var target int64
	if len(destIndices) == 0 {
		target = b.nextGen
	} else {
		for _, d := range destIndices {
			if g, ok := b.destGen[d]; ok && g > target {
				target = g
			}
		}
	}
	for b.doneGen < target {
		b.cond.Wait()
	}
	err := b.lastErr
	b.lastErr = nil
	return err
}

func (b *Backend) CalculateRootLogLikelihoods(roots []phyloeval.RootBuffer, outSiteLogL []float64) error {
	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	return b.inner.CalculateRootLogLikelihoods(roots, outSiteLogL)
}

func (b *Backend) CalculateEdgeLogLikelihoods(edges []phyloeval.EdgeBuffer, weights, freqs []float64, scalingIndices []int, outL, outD1, outD2 []float64) error {
	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	return b.inner.CalculateEdgeLogLikelihoods(edges, weights, freqs, scalingIndices, outL, outD1, outD2)
}

func (b *Backend) Finalize() error {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
	b.wg.Wait()

	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	return b.inner.Finalize()
}

func (b *Backend) enqueue(dests []int, run func() error) {
	b.mu.Lock()
	b.nextGen++
	gen := b.nextGen
	for _, d := range dests {
		b.destGen[d] = gen
	}
	b.queue = append(b.queue, command{gen: gen, run: run})
	b.cond.Broadcast()
	b.mu.Unlock()
}

func (b *Backend) run() {
	defer b.wg.Done()
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		cmd := b.queue[0]
		b.queue = b.queue[1:]
		depth := len(b.queue)
		b.mu.Unlock()

		logrus.Debugf("gpu stream: dispatching gen %d (%d behind it in queue)", cmd.gen, depth)
		_, err := b.breaker.Execute(func() (interface{}, error) {
			return nil, cmd.run()
		})
		if err != nil {
			logrus.Warnf("gpu stream: gen %d failed: %v", cmd.gen, err)
			err = fmt.Errorf("gpu stream: gen %d: %w: %w", cmd.gen, phyloeval.ErrUnidentifiedException, err)
		}

		b.mu.Lock()
		b.doneGen = cmd.gen
		if err != nil && b.lastErr == nil {
			b.lastErr = err
		}
		b.cond.Broadcast()
		b.mu.Unlock()
	}
}
