package jop

import "testing"

func smallCfg() Config {
	cfg := DefaultConfig()
	cfg.CpuCount = 1
	cfg.MainMemSize = 1 << 12
	cfg.LineCacheSets = 8
	cfg.LineCacheWays = 2
	return cfg
}

func TestClusterMemoryReadWriteRoundTrip(t *testing.T) {
	cl := NewCluster(smallCfg(), nil)
	cl.WriteMemory(0x10, 0x12345678)
	if got := cl.ReadMemory(0x10); got != 0x12345678 {
		t.Errorf("got %#x, want 0x12345678", got)
	}
	// Overwriting must observe the new value, not the old.
	cl.WriteMemory(0x10, 0xAAAA)
	if got := cl.ReadMemory(0x10); got != 0xAAAA {
		t.Errorf("got %#x, want 0xaaaa after overwrite", got)
	}
}

func TestClusterReadMemoryOutOfRangeReturnsZero(t *testing.T) {
	cl := NewCluster(smallCfg(), nil)
	if got := cl.ReadMemory(uint32(smallCfg().MainMemSize) + 1000); got != 0 {
		t.Errorf("got %#x, want 0 for an out-of-range read", got)
	}
}

func TestClusterLoadImage(t *testing.T) {
	cl := NewCluster(smallCfg(), nil)
	descriptor := uint32(7)<<10 | 2
	data := buildImage(0xCAFEBABE, 2, descriptor)
	img, err := ParseImage(data, 0, 0)
	if err != nil {
		t.Fatalf("ParseImage: %v", err)
	}

	cl.LoadImage(img)

	if got := cl.ReadMemory(0); got != 0xCAFEBABE {
		t.Errorf("got word0=%#x, want 0xcafebabe after LoadImage", got)
	}
	if cl.Cores[0].Fetch.CodeBase != 7 {
		t.Errorf("got CodeBase=%d, want 7 (the descriptor's code_start)", cl.Cores[0].Fetch.CodeBase)
	}
	if cl.Cores[0].Fetch.JPC != 0 {
		t.Errorf("got JPC=%d, want 0 after LoadImage", cl.Cores[0].Fetch.JPC)
	}
}

func TestClusterBreakpointLifecycle(t *testing.T) {
	cl := NewCluster(smallCfg(), nil)
	if cl.HasBreakpoint(0, 5) {
		t.Fatal("a fresh cluster must have no breakpoints armed")
	}
	cl.SetBreakpoint(0, 5)
	if !cl.HasBreakpoint(0, 5) {
		t.Fatal("SetBreakpoint did not arm the breakpoint")
	}
	cl.ClearBreakpoint(0, 5)
	if cl.HasBreakpoint(0, 5) {
		t.Fatal("ClearBreakpoint did not disarm the breakpoint")
	}
}

func TestClusterTickHaltsOnBreakpointWithoutRetiring(t *testing.T) {
	cl := NewCluster(smallCfg(), nil)
	core := cl.Cores[0]
	cl.SetBreakpoint(0, core.MicroPC) // breaks at the fresh core's current microPC (0)

	if err := cl.Tick(); err != nil {
		t.Fatalf("cl.Tick: %v", err)
	}
	if !core.Halted() {
		t.Fatal("core did not halt on an armed breakpoint")
	}
	if core.HaltReason() != HaltBreakpoint {
		t.Errorf("got reason=%v, want HaltBreakpoint", core.HaltReason())
	}
	if core.CycleCount() != 0 {
		t.Errorf("got cycleCount=%d, want 0 (the breakpointed microinstruction must not retire)", core.CycleCount())
	}
}

func TestClusterHaltResumeStepMicroReasons(t *testing.T) {
	cl := NewCluster(smallCfg(), nil)
	core := cl.Cores[0]

	cl.Halt(0)
	if !core.Halted() || core.HaltReason() != HaltManual {
		t.Fatalf("got halted=%v reason=%v, want halted=true reason=HaltManual", core.Halted(), core.HaltReason())
	}

	cl.Resume(0)
	if core.Halted() {
		t.Fatal("Resume did not clear the halted input")
	}

	cl.Halt(0)
	if err := cl.StepMicro(0); err != nil {
		t.Fatalf("StepMicro: %v", err)
	}
	if !core.Halted() {
		t.Fatal("StepMicro did not re-halt the core afterward")
	}
	if core.HaltReason() != HaltStep {
		t.Errorf("got reason=%v, want HaltStep", core.HaltReason())
	}
	if core.CycleCount() != 1 {
		t.Errorf("got cycleCount=%d, want exactly 1 after a single StepMicro", core.CycleCount())
	}
}
