// Package epoch implements the shell's epoch clock (spec.md component B):
// it maps block heights to monotonic epoch numbers and fires the PoS
// fold-pipeline hook at epoch boundaries. Grounded in the teacher's
// consensus.EpochProcessorState, generalized from slot-count thresholds to
// the shell's dual time-and-height threshold.
package epoch

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrNilHook       = errors.New("epoch: nil boundary hook")
	ErrNonMonotonic  = errors.New("epoch: block height or time went backwards")
)

// Number is a monotonic epoch counter.
type Number uint64

// BoundaryHook is invoked once, synchronously, when the clock crosses into a
// new epoch. It must not return until the PoS fold-pipeline work for the new
// epoch is durable, since Commit processes the transition (spec.md §4.B).
type BoundaryHook func(previous, next Number, height uint64) error

// Params are the clock's two advancement thresholds (spec.md §6
// configuration: min_epoch_duration, min_epoch_blocks).
type Params struct {
	MinDuration time.Duration
	MinBlocks   uint64
}

// DefaultParams mirrors the spec's stated defaults.
func DefaultParams() Params {
	return Params{MinDuration: 86400 * time.Second, MinBlocks: 4}
}

// Clock tracks the current epoch and the height/time at which it began.
// Safe for concurrent reads; Advance must only be called from the shell's
// single Commit path (spec.md §5: "only the shell's main task writes").
type Clock struct {
	mu sync.RWMutex

	params Params

	current      Number
	startHeight  uint64
	startTime    time.Time
	lastHeight   uint64
	lastTime     time.Time

	hook BoundaryHook
}

// New creates a clock starting at epoch 0, anchored at genesisHeight and
// genesisTime. hook is invoked on every epoch boundary crossed by Advance.
func New(params Params, genesisHeight uint64, genesisTime time.Time, hook BoundaryHook) (*Clock, error) {
	if hook == nil {
		return nil, ErrNilHook
	}
	return &Clock{
		params:      params,
		startHeight: genesisHeight,
		startTime:   genesisTime,
		lastHeight:  genesisHeight,
		lastTime:    genesisTime,
		hook:        hook,
	}, nil
}

// Current returns the epoch the clock currently occupies.
func (c *Clock) Current() Number {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// StartHeight returns the block height at which the current epoch began.
func (c *Clock) StartHeight() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startHeight
}

// Advance is called once per Commit with the block just committed. It
// crosses at most one epoch boundary per call, matching the shell's
// strictly-sequential block processing (spec.md §5).
func (c *Clock) Advance(height uint64, blockTime time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if height < c.lastHeight || blockTime.Before(c.lastTime) {
		return ErrNonMonotonic
	}
	c.lastHeight = height
	c.lastTime = blockTime

	elapsedBlocks := height - c.startHeight
	elapsedTime := blockTime.Sub(c.startTime)

	if elapsedTime <= c.params.MinDuration || elapsedBlocks <= c.params.MinBlocks {
		return nil
	}

	previous := c.current
	next := previous + 1

	// Run the hook while still holding the lock: Commit is already the
	// shell's sole writer, and the hook must be durable before Advance
	// returns (spec.md §4.B "transitions are processed at Commit").
	if err := c.hook(previous, next, height); err != nil {
		return err
	}

	c.current = next
	c.startHeight = height
	c.startTime = blockTime
	return nil
}
