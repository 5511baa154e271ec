package jop

import "github.com/pkg/errors"

// busStarveLimit bounds how many consecutive cycles a source may sit at the
// head of the arbiter's rotation with unserviced work before this is
// treated as a simulator-fatal arbiter starvation.
const busStarveLimit = 1_000_000

// maxStackDepth sizes the stack cache's dedicated spill backing range.
const maxStackDepth = 1024

// Cluster wires one or more Cores to the shared bus fabric: the arbiter,
// line cache, DRAM model, snoop bus, and the two SMP coordination units
// (CMP_SYNC and the IHLU). It owns every shared peripheral and steps them
// in dependency order once per cycle, generalized to however many cores
// Config.CpuCount asks for.
type Cluster struct {
	cfg Config

	Cores   []*Core
	Arbiter *Arbiter
	Cache   *LineCache
	Dram    *DRAMModel
	Snoop   *SnoopBus
	Sync    *CmpSync
	Ihlu    *IHLU

	ports []*BusPort

	busBusy bool
	busReq  BmbRequest

	breakpoints []map[uint16]bool

	cycle uint64
}

// NewCluster builds a cluster per cfg, sharing one microcode ROM image and
// jump table across every core.
func NewCluster(cfg Config, microcode []MicroWord) *Cluster {
	dram := NewDRAMModel(cfg.MainMemSize, cfg)
	cache := NewLineCache(cfg.LineCacheSets, cfg.LineCacheWays, dram)
	snoop := &SnoopBus{}
	cache.ConnectSnoop(snoop)
	arb := NewArbiter(cfg.CpuCount, busStarveLimit)
	jt := BuildJumpTable(cfg.JumpTable)

	cl := &Cluster{
		cfg:     cfg,
		Arbiter: arb,
		Cache:   cache,
		Dram:    dram,
		Snoop:   snoop,
		Sync:    NewCmpSync(),
		Ihlu:    NewIHLU(cfg.IhluSlots),
	}

	for i := 0; i < cfg.CpuCount; i++ {
		port := NewBusPort(arb, i)
		fetch := NewFetchUnit()
		io := NewIOBlock(i, cfg.ClkFreqHz, cfg.UartBaud)
		mem := NewMemoryController(port, fetch, io, snoop, cfg.BurstLen)

		core := NewCore(i, microcode, jt, multiplierLatency)
		core.Fetch = fetch
		core.Mem = mem
		core.IO = io
		if cfg.UseStackCache {
			core.Stack = NewStackCache(cfg.StackCacheBankWords, maxStackDepth)
		}

		cl.Cores = append(cl.Cores, core)
		cl.ports = append(cl.ports, port)
		cl.breakpoints = append(cl.breakpoints, make(map[uint16]bool, cfg.NumBreakpoints))
	}
	return cl
}

// SetBreakpoint arms a microcode-PC breakpoint on the given core, as used
// by the debug protocol's SET_BREAKPOINT request.
func (cl *Cluster) SetBreakpoint(core int, addr uint16) { cl.breakpoints[core][addr] = true }

// ClearBreakpoint disarms a previously-set breakpoint.
func (cl *Cluster) ClearBreakpoint(core int, addr uint16) { delete(cl.breakpoints[core], addr) }

// HasBreakpoint reports whether addr is currently armed on the given core.
func (cl *Cluster) HasBreakpoint(core int, addr uint16) bool { return cl.breakpoints[core][addr] }

// ReadMemory reads one word directly out of backing DRAM, bypassing the
// line cache — the debug protocol's READ_MEMORY request is a passive probe
// and is not required to observe cache coherency traffic.
func (cl *Cluster) ReadMemory(addr uint32) uint32 {
	if int(addr) < 0 || int(addr) >= len(cl.Dram.mem) {
		return 0
	}
	return cl.Dram.mem[addr]
}

// WriteMemory writes one word directly into backing DRAM, bypassing the
// line cache (debug protocol's WRITE_MEMORY request).
func (cl *Cluster) WriteMemory(addr uint32, v uint32) {
	if int(addr) >= 0 && int(addr) < len(cl.Dram.mem) {
		cl.Dram.mem[addr] = v
	}
}

// Halt asserts the given core's halted input (debug protocol HALT request).
func (cl *Cluster) Halt(core int) { cl.Cores[core].SetHaltedReason(true, HaltManual) }

// Resume clears the given core's halted input (debug protocol RESUME
// request).
func (cl *Cluster) Resume(core int) { cl.Cores[core].SetHalted(false) }

// StepMicro resumes the given core for exactly one cycle — even if it is
// sitting on an armed breakpoint — and halts that core again afterward
// (debug protocol STEP_MICRO request). Every core ticks in lockstep, so
// stepping one core necessarily steps the whole cluster by one cycle.
func (cl *Cluster) StepMicro(core int) error {
	c := cl.Cores[core]
	c.SetHalted(false)
	// A breakpoint at the current PC is disarmed for this one cycle so it
	// does not catch the step itself.
	pc := c.MicroPC
	armed := cl.breakpoints[core][pc]
	delete(cl.breakpoints[core], pc)
	err := cl.Tick()
	if armed {
		cl.breakpoints[core][pc] = true
	}
	if err != nil {
		return err
	}
	c.SetHaltedReason(true, HaltStep)
	return nil
}

// multiplierLatency is the fixed pipeline depth of the hardware multiplier.
const multiplierLatency = 3

// LoadImage copies a parsed program image into the cluster's backing DRAM
// and points every core's fetch unit at its code base.
func (cl *Cluster) LoadImage(img *JopImage) {
	img.CopyInto(cl.Dram.mem)
	for _, c := range cl.Cores {
		c.Fetch.CodeBase = img.Descriptor.CodeStart
		c.Fetch.Jump(0)
	}
}

// Tick advances the shared bus fabric and every core by one cycle, in
// leaves-first order: DRAM, then the line cache's in-flight DMA, then the
// arbiter's admission of a new request, then each core (whose own Tick
// steps its memory controller before evaluating the pipeline). Stepping
// the shared peripherals first means each core's Tick always observes
// already-settled bus state.
func (cl *Cluster) Tick() error {
	cl.cycle++

	cl.Dram.Tick()
	cl.Cache.Tick()

	if cl.busBusy {
		if cl.Cache.Completed() {
			cl.finishBusOp()
		}
	} else if req, ok := cl.Arbiter.Issue(); ok {
		cl.serviceRequest(req)
	}

	cl.Arbiter.Tick()
	if src := cl.Arbiter.CheckStarvation(); src >= 0 {
		return errors.Errorf("cluster: bus arbiter starvation on source %d", src)
	}

	for i, core := range cl.Cores {
		cl.resolveLock(i, core)
		if !core.Halted() && cl.breakpoints[i][core.MicroPC] {
			core.SetHaltedReason(true, HaltBreakpoint)
			continue
		}
		if err := core.Tick(core.SP); err != nil {
			return errors.Wrapf(err, "cluster: core %d", i)
		}
	}
	return nil
}

// serviceRequest admits one arbiter-selected request into the line cache.
// A hit (or an accepted write) resolves and delivers this same cycle; a
// miss leaves the bus busy until the cache's fetch/write-back DMA
// finishes, keeping only one miss outstanding at a time.
func (cl *Cluster) serviceRequest(req BmbRequest) {
	data, hit, ok := cl.Cache.Request(req)
	if !ok {
		// Should not happen: Issue() only pops a request when the bus was
		// idle, and the cache only refuses while pending != nil.
		return
	}
	if hit {
		cl.deliver(req, data)
		return
	}
	cl.busBusy = true
	cl.busReq = req
}

func (cl *Cluster) finishBusOp() {
	data := cl.Cache.PendingResult(cl.busReq.Address)
	cl.deliver(cl.busReq, data)
	cl.busBusy = false
}

func (cl *Cluster) deliver(req BmbRequest, data uint32) {
	cl.ports[req.Source].deliver(BmbResponse{Data: data, Source: req.Source})
	if req.Opcode == BmbRead {
		cl.Arbiter.Complete(req.Source)
	}
}

// resolveLock services a core's pending CMP_SYNC/IHLU request against the
// cluster's shared lock tables. A granted request releases the requester
// immediately; a denied one leaves it halted until whichever core
// currently holds the lock exits or unlocks and this core is next in the
// FIFO.
func (cl *Cluster) resolveLock(i int, core *Core) {
	op, handle, ok := core.IO.TakeLockRequest()
	if !ok {
		return
	}
	switch op {
	case LockOpCmpSyncEnter:
		if cl.Sync.Enter(i) {
			core.IO.GrantLock()
		} else {
			core.SetHalted(true)
		}
	case LockOpCmpSyncExit:
		core.SetHalted(false)
		if next, granted := cl.Sync.Exit(i); granted {
			cl.Cores[next].IO.GrantLock()
			cl.Cores[next].SetHalted(false)
		}
	case LockOpIhluLock:
		if cl.Ihlu.Lock(i, handle) {
			core.IO.GrantLock()
		} else {
			core.SetHalted(true)
		}
	case LockOpIhluUnlock:
		core.SetHalted(false)
		if next, granted := cl.Ihlu.Unlock(i, handle); granted {
			cl.Cores[next].IO.GrantLock()
			cl.Cores[next].SetHalted(false)
		}
	}
}

// Run steps the cluster until cfg.MaxCycles have elapsed (0 means run until
// a core or the debug engine stops it externally, or until an error — a
// simulator-fatal condition — is returned).
func (cl *Cluster) Run() error {
	for cl.cfg.MaxCycles == 0 || cl.cycle < cl.cfg.MaxCycles {
		if err := cl.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// Cycle returns the number of cycles ticked so far.
func (cl *Cluster) Cycle() uint64 { return cl.cycle }

// Done reports whether the configured cycle budget has been reached (a
// MaxCycles of 0 means unbounded, so Done is always false).
func (cl *Cluster) Done() bool { return cl.cfg.MaxCycles != 0 && cl.cycle >= cl.cfg.MaxCycles }

// Snapshot captures enough state to diagnose a simulator-fatal condition
// originating from the given core.
func (cl *Cluster) Snapshot(coreID int) DiagnosticSnapshot {
	c := cl.Cores[coreID]
	pc, _, _, _, jpc := c.ReadDebug()
	return DiagnosticSnapshot{
		Cycle:      cl.cycle,
		CoreID:     coreID,
		LastPC:     pc,
		LastJPC:    jpc,
		MCState:    c.Mem.State(),
		CacheState: "n/a",
	}
}
