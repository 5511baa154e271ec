package jop

import "testing"

// testCluster builds a single-core cluster with a small backing memory,
// no actual microcode (the core stays halted throughout so only its
// memory controller runs), suitable for driving MemoryController Issue*
// calls directly and pumping Cluster.Tick until they settle.
func testCluster(t *testing.T) (*Cluster, *Core) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.CpuCount = 1
	cfg.MainMemSize = 1 << 14
	cfg.LineCacheSets = 16
	cfg.LineCacheWays = 2
	cfg.ReadLatencyMin, cfg.ReadLatencyMax = 1, 1
	cfg.RefreshInterval, cfg.RefreshDuration = 1_000_000, 0

	cl := NewCluster(cfg, nil)
	core := cl.Cores[0]
	core.SetHalted(true)
	return cl, core
}

func pumpUntilIdle(t *testing.T, cl *Cluster, core *Core, maxCycles int) {
	t.Helper()
	for i := 0; core.Mem.Busy(); i++ {
		if i >= maxCycles {
			t.Fatalf("memory controller still busy (state=%s) after %d cycles", core.Mem.State(), maxCycles)
		}
		if err := cl.Tick(); err != nil {
			t.Fatalf("cluster.Tick: %v", err)
		}
	}
}

func TestMemCtlLoadStoreRoundTrip(t *testing.T) {
	cl, core := testCluster(t)

	if !core.Mem.IssueStore(0x100, 0xABCDEF01) {
		t.Fatal("IssueStore rejected on an idle controller")
	}
	pumpUntilIdle(t, cl, core, 100)

	if !core.Mem.IssueLoad(0x100) {
		t.Fatal("IssueLoad rejected on an idle controller")
	}
	pumpUntilIdle(t, cl, core, 100)

	if core.Mem.DIN != 0xABCDEF01 {
		t.Errorf("got %#x, want %#x", core.Mem.DIN, 0xABCDEF01)
	}
}

func TestMemCtlGetfieldPutfieldRoundTrip(t *testing.T) {
	cl, core := testCluster(t)

	const handleAddr = 0x200
	const bodyPtr = 0x300
	cl.WriteMemory(handleAddr, bodyPtr)

	if !core.Mem.IssuePutfield(handleAddr, 2, 0xCAFEBABE) {
		t.Fatal("IssuePutfield rejected")
	}
	pumpUntilIdle(t, cl, core, 100)

	if !core.Mem.IssueGetfield(handleAddr, 2) {
		t.Fatal("IssueGetfield rejected")
	}
	pumpUntilIdle(t, cl, core, 100)

	if core.Mem.DIN != 0xCAFEBABE {
		t.Errorf("got %#x, want %#x", core.Mem.DIN, 0xCAFEBABE)
	}
}

func TestMemCtlGetfieldNullPointer(t *testing.T) {
	cl, core := testCluster(t)

	if !core.Mem.IssueGetfield(0, 0) {
		t.Fatal("IssueGetfield rejected")
	}
	pumpUntilIdle(t, cl, core, 100)

	if core.Mem.LastException() != ExceptionNullPointer {
		t.Errorf("got %s, want NullPointer", core.Mem.LastException())
	}
}

func TestMemCtlIaloadBounds(t *testing.T) {
	cl, core := testCluster(t)

	const handleAddr = 0x400
	const bodyPtr = 0x500
	const length = 4
	cl.WriteMemory(handleAddr, bodyPtr)
	cl.WriteMemory(bodyPtr, length) // array length word

	if !core.Mem.IssueIastore(handleAddr, 3, 0x11112222) {
		t.Fatal("IssueIastore rejected")
	}
	pumpUntilIdle(t, cl, core, 100)
	if core.Mem.LastException() != ExceptionNone {
		t.Fatalf("iastore at index==length-1 unexpectedly faulted: %s", core.Mem.LastException())
	}

	if !core.Mem.IssueIaload(handleAddr, 3) {
		t.Fatal("IssueIaload rejected")
	}
	pumpUntilIdle(t, cl, core, 100)
	if core.Mem.DIN != 0x11112222 {
		t.Errorf("got %#x, want %#x", core.Mem.DIN, 0x11112222)
	}

	if !core.Mem.IssueIaload(handleAddr, 4) { // index == length: must raise OOB
		t.Fatal("IssueIaload rejected")
	}
	pumpUntilIdle(t, cl, core, 100)
	if core.Mem.LastException() != ExceptionOutOfBounds {
		t.Errorf("got %s, want OutOfBounds", core.Mem.LastException())
	}
}

func TestMemCtlBcFillAndCopy(t *testing.T) {
	cl, core := testCluster(t)

	const codeAddr = 0x600
	cl.WriteMemory(codeAddr, 0x60000000) // iadd, no operand

	if !core.Mem.IssueBcFill(codeAddr, 1) {
		t.Fatal("IssueBcFill rejected")
	}
	pumpUntilIdle(t, cl, core, 100)

	core.Fetch.CodeBase = codeAddr
	core.Fetch.Jump(0)
	op, _, miss := core.Fetch.Peek()
	if miss || op != 96 {
		t.Fatalf("got op=%d miss=%v after BC_FILL, want op=96 miss=false", op, miss)
	}

	const src, dst = 0x700, 0x710
	for i := uint32(0); i < 4; i++ {
		cl.WriteMemory(src+i, 0x1000+i)
	}
	if !core.Mem.IssueCopy(src, dst, 4) {
		t.Fatal("IssueCopy rejected")
	}
	pumpUntilIdle(t, cl, core, 200)

	// The copy writes through the write-back line cache, which ReadMemory
	// bypasses, so read the words back through the memory controller.
	for i := uint32(0); i < 4; i++ {
		if !core.Mem.IssueLoad(dst + i) {
			t.Fatal("IssueLoad rejected")
		}
		pumpUntilIdle(t, cl, core, 100)
		if got := core.Mem.DIN; got != 0x1000+i {
			t.Errorf("copy word %d: got %#x, want %#x", i, got, 0x1000+i)
		}
	}
}

func TestMemCtlGetstaticPutstaticSnoops(t *testing.T) {
	cl, core := testCluster(t)

	snooped := false
	cl.Snoop.Subscribe(func(p SnoopPulse) { snooped = true })

	if !core.Mem.IssuePutstatic(0x800, 0x99) {
		t.Fatal("IssuePutstatic rejected")
	}
	pumpUntilIdle(t, cl, core, 100)
	if !snooped {
		t.Error("putstatic did not broadcast on the snoop bus")
	}

	if !core.Mem.IssueGetstatic(0x800) {
		t.Fatal("IssueGetstatic rejected")
	}
	pumpUntilIdle(t, cl, core, 100)
	if core.Mem.DIN != 0x99 {
		t.Errorf("got %#x, want 0x99", core.Mem.DIN)
	}
}
