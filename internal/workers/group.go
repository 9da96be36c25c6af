// Package workers provides a barrier-synchronized group of long-lived
// workers that process caller-defined blocks of work in lockstep under a
// controller's direction.
//
// Worker functions follow this shape:
//
//	func work(arg *workers.Arg) {
//		ctx := arg.Context.(*sharedState)
//		for {
//			// process the current block using arg.Index
//			if arg.LastBlock() {
//				return // graceful: this was the declared final block
//			}
//			if arg.BlockFinish() {
//				return // immediate stop requested
//			}
//		}
//	}
//
// The controller attaches the function and shared context, spawns the
// group, then alternates preparing the next block with NextBlock until it
// declares the last one and joins.
package workers

import (
	"sync"

	"github.com/mimecast/linescan/internal/constants"
	"github.com/mimecast/linescan/internal/errors"
)

// lastBlock tri-state: keep going, finish the current block then stop, or
// stop without finishing.
const (
	blockContinue int32 = iota
	blockLast
	blockHalt
)

// controlBlock is the shared synchronization state. Neither worker
// functions nor the controller touch it directly.
type controlBlock struct {
	mu        sync.Mutex
	blockDone sync.Cond // workers -> controller: activeCt hit zero
	startNext sync.Cond // controller -> workers: generation advanced

	threadCt  int
	activeCt  int
	gen       uint64 // barrier generation, advanced per released block
	spawnCt   uint64 // how many times the group has been spawned
	lastBlock int32
	// curLast is the lastBlock intent latched when the current block was
	// released, so a DeclareLastBlock racing a block in flight only takes
	// effect at the next barrier release.
	curLast bool
}

// Arg is what each worker receives: its stable index and the caller-owned
// shared context, plus a handle to the group's control block.
type Arg struct {
	// Index is the worker's stable index in [0, thread count).
	Index int
	// Context is the shared, caller-owned state attached via SetEntry.
	Context interface{}

	cb *controlBlock
}

// Entry is the worker function run by every member of the group.
type Entry func(arg *Arg)

// Group is a phased worker pool. The zero value is inert; size it with
// SetThreadCount, attach work with SetEntry, then Spawn/NextBlock/Join.
// A joined group may be reconfigured and spawned again.
type Group struct {
	cb      controlBlock
	entry   Entry
	args    []Arg
	wg      sync.WaitGroup
	active  bool
	spawned bool // condvars initialized
}

// New returns an inert group.
func New() *Group {
	return &Group{}
}

// SetThreadCount sizes the group, clamping n to
// [constants.MinWorkers, constants.MaxWorkers]. Must not be called while
// the group is active.
func (g *Group) SetThreadCount(n int) error {
	if g.active {
		return errors.Wrap(errors.ErrGroupActive, "cannot resize")
	}
	if n < constants.MinWorkers {
		n = constants.MinWorkers
	}
	if n > constants.MaxWorkers {
		n = constants.MaxWorkers
	}
	g.cb.threadCt = n
	g.args = make([]Arg, n)
	return nil
}

// ThreadCount returns the configured worker count.
func (g *Group) ThreadCount() int {
	return g.cb.threadCt
}

// SetEntry attaches the worker function and the shared caller-owned
// context, and resets the termination flag to "continue".
func (g *Group) SetEntry(fn Entry, context interface{}) error {
	if g.active {
		return errors.Wrap(errors.ErrGroupActive, "cannot reconfigure")
	}
	g.entry = fn
	g.cb.lastBlock = blockContinue
	for i := range g.args {
		g.args[i] = Arg{Index: i, Context: context, cb: &g.cb}
	}
	return nil
}

// DeclareLastBlock marks the block the workers are about to run (or are
// running) as the final one: each worker finishes it and exits instead of
// waiting at the barrier. Call it before the Spawn or NextBlock that
// releases the final block.
func (g *Group) DeclareLastBlock() {
	g.cb.mu.Lock()
	if g.cb.lastBlock == blockContinue {
		g.cb.lastBlock = blockLast
	}
	g.cb.mu.Unlock()
}

// Spawn creates the worker goroutines; every worker immediately runs the
// entry function on the first block. Fails if the group is unsized,
// unconfigured or already active.
func (g *Group) Spawn() error {
	if g.active {
		return errors.Wrap(errors.ErrGroupActive, "already spawned")
	}
	if g.cb.threadCt == 0 || g.entry == nil {
		return errors.Wrap(errors.ErrInvalidArgument, "group not configured")
	}
	if !g.spawned {
		g.cb.blockDone.L = &g.cb.mu
		g.cb.startNext.L = &g.cb.mu
		g.spawned = true
	}
	g.cb.mu.Lock()
	g.cb.activeCt = g.cb.threadCt
	g.cb.spawnCt++
	g.cb.curLast = g.cb.lastBlock != blockContinue
	g.cb.mu.Unlock()

	g.active = true
	g.wg.Add(g.cb.threadCt)
	for i := range g.args {
		arg := &g.args[i]
		go func() {
			defer g.wg.Done()
			g.entry(arg)
		}()
	}
	return nil
}

// WaitForBlock blocks the controller until every worker has finished the
// current block and is parked at the barrier (or has exited).
func (g *Group) WaitForBlock() {
	g.cb.mu.Lock()
	for g.cb.activeCt > 0 {
		g.cb.blockDone.Wait()
	}
	g.cb.mu.Unlock()
}

// NextBlock waits for the current block to complete on all workers, then
// releases them into the next one. The shared context must be updated for
// the next block before calling this; no worker observes it until the
// barrier opens.
func (g *Group) NextBlock() error {
	if !g.active {
		return errors.Wrap(errors.ErrGroupInactive, "no block in flight")
	}
	g.cb.mu.Lock()
	for g.cb.activeCt > 0 {
		g.cb.blockDone.Wait()
	}
	g.cb.activeCt = g.cb.threadCt
	g.cb.gen++
	g.cb.curLast = g.cb.lastBlock != blockContinue
	g.cb.startNext.Broadcast()
	g.cb.mu.Unlock()
	return nil
}

// HaltNow requests immediate termination: workers parked at the barrier
// return from BlockFinish with true without running another block; workers
// mid-block observe it via Halted or at their next BlockFinish.
func (g *Group) HaltNow() {
	g.cb.mu.Lock()
	g.cb.lastBlock = blockHalt
	g.cb.startNext.Broadcast()
	g.cb.mu.Unlock()
}

// Join waits for all workers to exit, after the declared last block
// completed (graceful) or after HaltNow. The group becomes inactive and
// may be reconfigured and spawned again.
func (g *Group) Join() {
	g.wg.Wait()
	g.cb.mu.Lock()
	g.cb.activeCt = 0
	g.cb.mu.Unlock()
	g.active = false
}

// Cleanup releases group resources. Safe on a joined or never-spawned
// group.
func (g *Group) Cleanup() {
	if g.active {
		g.HaltNow()
		g.Join()
	}
	g.entry = nil
	g.args = nil
	g.cb.threadCt = 0
}

// SpawnCount reports how many times the group has been spawned.
func (g *Group) SpawnCount() uint64 {
	g.cb.mu.Lock()
	defer g.cb.mu.Unlock()
	return g.cb.spawnCt
}

// LastBlock reports whether the block currently running was declared the
// final one. Workers use it to exit gracefully after finishing the block
// instead of re-entering the barrier.
func (a *Arg) LastBlock() bool {
	a.cb.mu.Lock()
	defer a.cb.mu.Unlock()
	return a.cb.curLast || a.cb.lastBlock == blockHalt
}

// Halted reports whether immediate termination was requested. Workers may
// poll it mid-block to abandon work early.
func (a *Arg) Halted() bool {
	a.cb.mu.Lock()
	defer a.cb.mu.Unlock()
	return a.cb.lastBlock == blockHalt
}

// BlockFinish is the block barrier: it signals that this worker is done
// with the current block, then waits for the controller's go-ahead for the
// next one. Returns true when the worker must stop immediately instead of
// processing another block.
func (a *Arg) BlockFinish() bool {
	cb := a.cb
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.activeCt--
	if cb.activeCt == 0 {
		cb.blockDone.Broadcast()
	}
	gen := cb.gen
	for cb.gen == gen && cb.lastBlock != blockHalt {
		cb.startNext.Wait()
	}
	return cb.lastBlock == blockHalt
}
