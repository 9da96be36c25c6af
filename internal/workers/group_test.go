package workers

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/mimecast/linescan/internal/errors"
	"github.com/mimecast/linescan/internal/testutil"
)

// blockState is the shared context for the lockstep tests. The controller
// owns block; workers only read it, and only between barrier releases.
type blockState struct {
	block  int
	counts []int64
}

func countingEntry(arg *Arg) {
	st := arg.Context.(*blockState)
	for {
		atomic.AddInt64(&st.counts[st.block], 1)
		if arg.LastBlock() {
			return
		}
		if arg.BlockFinish() {
			return
		}
	}
}

func TestGroupLockstepBlocks(t *testing.T) {
	const threads = 4
	const blocks = 6

	g := New()
	testutil.AssertNoError(t, g.SetThreadCount(threads))
	st := &blockState{counts: make([]int64, blocks)}
	testutil.AssertNoError(t, g.SetEntry(countingEntry, st))
	testutil.AssertNoError(t, g.Spawn())

	for b := 1; b < blocks; b++ {
		g.WaitForBlock()
		st.block = b
		if b == blocks-1 {
			g.DeclareLastBlock()
		}
		testutil.AssertNoError(t, g.NextBlock())
	}
	g.Join()

	for b := 0; b < blocks; b++ {
		if got := atomic.LoadInt64(&st.counts[b]); got != threads {
			t.Errorf("block %d: expected %d worker visits, got %d", b, threads, got)
		}
	}
}

// Every worker gets a stable index in [0, thread count), each exactly once.
func TestGroupWorkerIndices(t *testing.T) {
	const threads = 8

	seen := make([]int64, threads)
	g := New()
	testutil.AssertNoError(t, g.SetThreadCount(threads))
	testutil.AssertNoError(t, g.SetEntry(func(arg *Arg) {
		hits := arg.Context.([]int64)
		atomic.AddInt64(&hits[arg.Index], 1)
	}, seen))
	g.DeclareLastBlock()
	testutil.AssertNoError(t, g.Spawn())
	g.Join()

	for i, n := range seen {
		if n != 1 {
			t.Errorf("worker index %d visited %d times, expected once", i, n)
		}
	}
}

func TestGroupHaltNow(t *testing.T) {
	const threads = 3

	g := New()
	testutil.AssertNoError(t, g.SetThreadCount(threads))
	st := &blockState{counts: make([]int64, 1)}
	testutil.AssertNoError(t, g.SetEntry(countingEntry, st))
	testutil.AssertNoError(t, g.Spawn())

	g.WaitForBlock()
	g.HaltNow()

	done := make(chan struct{})
	go func() {
		g.Join()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not exit after HaltNow")
	}

	// Only the first block ran; nobody was released into a second one.
	testutil.AssertEqual(t, int64(threads), atomic.LoadInt64(&st.counts[0]))
}

func TestGroupHaltedMidBlock(t *testing.T) {
	g := New()
	testutil.AssertNoError(t, g.SetThreadCount(2))

	exited := make(chan struct{}, 2)
	testutil.AssertNoError(t, g.SetEntry(func(arg *Arg) {
		for !arg.Halted() {
			time.Sleep(time.Millisecond)
		}
		exited <- struct{}{}
	}, nil))
	testutil.AssertNoError(t, g.Spawn())

	time.Sleep(10 * time.Millisecond)
	g.HaltNow()
	g.Join()

	testutil.AssertEqual(t, 2, len(exited))
}

func TestGroupRespawn(t *testing.T) {
	const threads = 2

	g := New()
	testutil.AssertNoError(t, g.SetThreadCount(threads))

	for round := 0; round < 2; round++ {
		st := &blockState{counts: make([]int64, 1)}
		testutil.AssertNoError(t, g.SetEntry(countingEntry, st))
		g.DeclareLastBlock()
		testutil.AssertNoError(t, g.Spawn())
		g.Join()

		testutil.AssertEqual(t, int64(threads), atomic.LoadInt64(&st.counts[0]))
	}
	testutil.AssertEqual(t, uint64(2), g.SpawnCount())
}

func TestGroupThreadCountClamping(t *testing.T) {
	g := New()
	testutil.AssertNoError(t, g.SetThreadCount(0))
	if g.ThreadCount() < 1 {
		t.Errorf("thread count %d not clamped up", g.ThreadCount())
	}
	testutil.AssertNoError(t, g.SetThreadCount(1 << 20))
	if g.ThreadCount() > 512 {
		t.Errorf("thread count %d not clamped down", g.ThreadCount())
	}
}

func TestGroupActiveReconfigureRejected(t *testing.T) {
	g := New()
	testutil.AssertNoError(t, g.SetThreadCount(2))
	testutil.AssertNoError(t, g.SetEntry(func(arg *Arg) {
		for {
			if arg.BlockFinish() {
				return
			}
		}
	}, nil))
	testutil.AssertNoError(t, g.Spawn())
	g.WaitForBlock()

	if err := g.SetThreadCount(4); !errors.Is(err, errors.ErrGroupActive) {
		t.Errorf("resize while active: expected ErrGroupActive, got %v", err)
	}
	if err := g.SetEntry(func(*Arg) {}, nil); !errors.Is(err, errors.ErrGroupActive) {
		t.Errorf("reconfigure while active: expected ErrGroupActive, got %v", err)
	}
	if err := g.Spawn(); !errors.Is(err, errors.ErrGroupActive) {
		t.Errorf("double spawn: expected ErrGroupActive, got %v", err)
	}

	g.HaltNow()
	g.Join()
}

func TestGroupInactiveNextBlock(t *testing.T) {
	g := New()
	if err := g.NextBlock(); !errors.Is(err, errors.ErrGroupInactive) {
		t.Errorf("expected ErrGroupInactive, got %v", err)
	}
}

func TestGroupUnconfiguredSpawn(t *testing.T) {
	g := New()
	if err := g.Spawn(); !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestGroupCleanup(t *testing.T) {
	// Never spawned.
	New().Cleanup()

	// Active: Cleanup halts and joins.
	g := New()
	testutil.AssertNoError(t, g.SetThreadCount(2))
	testutil.AssertNoError(t, g.SetEntry(func(arg *Arg) {
		for {
			if arg.BlockFinish() {
				return
			}
		}
	}, nil))
	testutil.AssertNoError(t, g.Spawn())
	g.WaitForBlock()
	g.Cleanup()

	testutil.AssertEqual(t, 0, g.ThreadCount())
}
