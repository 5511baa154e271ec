package jop

// Core is one JOP stack-machine pipeline: the microcoded engine, its two
// stacks (A/B registers and stack RAM), wired to a bytecode fetch unit, a
// jump table, a memory controller, an I/O block, and optionally a stack
// cache. A Core generalizes the shape of a single hardwired pipeline
// (registers plus a directly-indexed instruction table and a Clock()-style
// stepping function) to a microcoded stack machine instead of a fixed
// decoder.
type Core struct {
	ID int

	// A is top-of-stack, B is always ram[sp].
	A, B uint32
	RAM  [256]uint32
	SP   int

	MicroPC   uint16
	Microcode []MicroWord
	JumpTab   JumpTable

	Mul *Multiplier

	Fetch *FetchUnit
	Mem   *MemoryController
	IO    *IOBlock
	Stack *StackCache // nil if Config.UseStackCache is false

	halted     bool
	haltReason HaltReason
	cycleCount uint64

	// pendingFetch/pendingDFetch latch the jopfetch/jopdfetch escape bits
	// decoded from the microinstruction that just retired, consumed at the
	// start of the next tick rather than the one that set them, matching
	// the two-phase evaluate/commit discipline every other component in
	// this package follows.
	pendingFetch  bool
	pendingDFetch bool

	lastRetiredPC  uint16
	lastRetiredJPC uint32
}

// NewCore builds a core around the given microcode ROM and jump table; the
// caller wires Fetch/Mem/IO/Stack afterward, since the cluster that owns
// all of them is itself constructed after its cores.
func NewCore(id int, microcode []MicroWord, jt JumpTable, mulLatency int) *Core {
	return &Core{
		ID:        id,
		Microcode: microcode,
		JumpTab:   jt,
		Mul:       NewMultiplier(mulLatency),
	}
}

// Halted reports whether the debug engine or CMP_SYNC/IHLU contention has
// asserted this core's halted input: a core waiting on a lock is stalled
// by asserting its own halted input rather than by any external clock gate.
func (c *Core) Halted() bool { return c.halted }

// SetHalted drives this core's halted input with no reason recorded
// (lock contention and RESUME use this form; the debug engine uses
// SetHaltedReason so HALTED responses can report why).
func (c *Core) SetHalted(h bool) {
	c.halted = h
	if !h {
		c.haltReason = HaltNone
	}
}

// SetHaltedReason asserts (or, with HaltNone, clears) this core's halted
// input and records the reason the debug engine should report in its next
// HALTED/STATUS response.
func (c *Core) SetHaltedReason(h bool, reason HaltReason) {
	c.halted = h
	c.haltReason = reason
}

// HaltReason returns the reason this core is currently halted, or HaltNone
// if it is running or was last halted with no reason recorded.
func (c *Core) HaltReason() HaltReason { return c.haltReason }

// CycleCount returns the number of cycles this core has been ticked,
// including stalled and halted cycles.
func (c *Core) CycleCount() uint64 { return c.cycleCount }

// push implements the stack discipline backing a bytecode-level push:
// ram[++sp] <- A, then A <- new.
func (c *Core) push(newA uint32) {
	c.SP++
	c.ramWrite(c.SP, c.A)
	c.A = newA
	c.B = c.ramRead(c.SP)
}

// pop implements A <- ram[sp--].
func (c *Core) pop() {
	c.A = c.ramRead(c.SP)
	c.SP--
	c.B = c.ramRead(c.SP)
}

// ramRead/ramWrite address the full stack-RAM window push/pop grow into.
// Addresses inside the always-resident low 256 words — the microcode
// scratch slots and every shallow frame — go straight to RAM, exactly as
// every other accessor in this package (RAMAt, VP, Tick's RamWE/EnB
// commit) already assumes. Addresses beyond that are serviced by the
// stack cache's rotating banks when one is wired (Config.UseStackCache),
// which is spec.md §4.4's "larger virtual window behind a smaller
// always-resident RAM" overflow path: recursion deep enough to push past
// slot 255 is exactly the condition that must rotate banks and is
// therefore exactly where the mandatory vp+0 regression invariant
// (§4.4/§9 Open Question 3) needs to be exercised on push/pop's real
// path, not only in the stack cache's own standalone tests.
func (c *Core) ramRead(addr int) uint32 {
	if addr >= 0 && addr < len(c.RAM) {
		return c.RAM[addr]
	}
	if c.Stack == nil {
		return c.RAM[addr&0xFF]
	}
	if c.Stack.Resolve(addr) < 0 {
		c.rotateStack(addr)
	}
	return c.Stack.Read(addr)
}

func (c *Core) ramWrite(addr int, v uint32) {
	if addr >= 0 && addr < len(c.RAM) {
		c.RAM[addr] = v
		return
	}
	if c.Stack == nil {
		c.RAM[addr&0xFF] = v
		return
	}
	if c.Stack.Resolve(addr) < 0 {
		c.rotateStack(addr)
	}
	c.Stack.Write(addr, v)
}

// rotateStack drives the stack cache's spill/fill DMA synchronously to
// bring the bank covering addr into residency, the same sequence
// stackcache_test.go's rotation harness exercises: NewBase is applied at
// the one safe point in the state machine — after the evicted bank's OLD
// data has been spilled out, but before the fill reads the NEW address's
// data back in — which is exactly the ordering the historical vp+0 bug
// got wrong.
func (c *Core) rotateStack(addr int) {
	sc := c.Stack
	sc.BeginRotation(addr)
	target := sc.targetBank
	for sc.Busy() {
		if sc.state == scFillStart {
			sc.NewBase(target, addr)
		}
		sc.Tick()
	}
	sc.SetActive(target)
}

// lmuxSelect resolves the amux/lmux source chain for the given
// microinstruction: lmux picks among {ALU result, ram[rd_addr], operand,
// DIN, multiplier result, bytecode-stream byte}, and A is written from
// amux, which is lmux when the microinstruction selects an external source
// and the raw ALU result otherwise.
func (c *Core) lmuxSelect(w MicroWord, ramRdAddr int) uint32 {
	switch w.AluSel() {
	case AluStackRamRd:
		return c.RAM[ramRdAddr&0xFF]
	case AluOperand:
		return c.Fetch.Operand
	case AluDin:
		return c.Mem.DIN
	case AluMulResult:
		if c.Mul.Ready() {
			return c.Mul.Low()
		}
		return 0
	case AluBytecode:
		return uint32(c.Fetch.Opcode)
	default:
		return aluEval(w.AluSel(), c.A, c.B)
	}
}

// Tick advances the pipeline by one cycle. ramRdAddr is the stack-RAM read
// address this microinstruction encodes (an immediate field or sp,
// depending on the microcode); it is supplied by the caller because the
// encoding of that field is a microcode-ROM convention, not something this
// component decides on its own.
func (c *Core) Tick(ramRdAddr int) error {
	c.cycleCount++

	// A busy memory controller freezes microPC and every register: A, B,
	// and RAM must hold until the in-flight bus operation resolves.
	if c.Mem.Busy() {
		if err := c.Mem.Step(); err != nil {
			return err
		}
		return nil
	}
	if err := c.Mem.Step(); err != nil {
		return err
	}

	if c.halted {
		return nil
	}

	// jopfetch/jopdfetch asserted by the previous retired microinstruction
	// are serviced before this cycle's microinstruction is fetched: the
	// current microPC is replaced by the jump-table entry for the decoded
	// opcode, and jopdfetch additionally advances JPC past it.
	if c.pendingFetch {
		opcode, operand, miss := c.Fetch.Peek()
		if miss {
			// A JBC miss stalls at the jopfetch cycle. The memory
			// controller is idle here (the busy case already returned
			// above), so kick off the BC_FILL it needs to service the
			// miss; once Mem.Busy() reports true, subsequent ticks freeze
			// here until the fill lands and the miss clears.
			c.Mem.IssueBcFillOnMiss()
			return nil
		}
		c.Fetch.Opcode, c.Fetch.Operand = opcode, operand
		c.MicroPC = c.JumpTab[opcode] &^ fpuHardwareBit
		if c.pendingDFetch {
			c.Fetch.Advance(opcode)
		}
		c.pendingFetch, c.pendingDFetch = false, false

		// An armed exception is taken at this jopfetch boundary: it
		// replaces the jump-table entry with a fixed microcode entry point.
		if c.IO.TakeExceptionArm() {
			c.MicroPC = exceptionEntryPC
		}
	}

	w := c.currentWord()

	// Evaluate phase: compute everything from current state.
	aluResult := aluEval(w.AluSel(), c.A, c.B)
	var newA uint32
	if isSourceSelect(w.AluSel()) {
		newA = c.lmuxSelect(w, ramRdAddr)
	} else {
		newA = aluResult
	}

	var nextPC uint16
	switch w.NextSel() {
	case NextPCBranch:
		taken := (c.A != 0) == w.BranchPolarity()
		if taken {
			nextPC = uint16(signExtend(c.Fetch.Operand, 16)) + c.MicroPC
		} else {
			nextPC = c.MicroPC + 1
		}
	default:
		nextPC = c.MicroPC + 1
	}

	c.Mul.Tick()

	// Commit phase: A/B/RAM/MicroPC all take effect together, so every
	// enable this cycle observes the same pre-commit state.
	c.lastRetiredPC, c.lastRetiredJPC = c.MicroPC, c.Fetch.JPC
	if w.RamWE() {
		c.RAM[c.SP&0xFF] = c.A
	}
	if w.EnA() {
		c.A = newA
	}
	if w.EnB() {
		c.B = c.RAM[c.SP&0xFF]
	}
	c.MicroPC = nextPC

	// jopfetch/jopdfetch never fire on the same microinstruction as a
	// memory-controller stall; latch them here for the next cycle.
	c.pendingFetch = w.JopFetch()
	c.pendingDFetch = w.JopDFetch()

	if c.IO != nil {
		c.IO.Tick()
	}
	return nil
}

// exceptionEntryPC is the fixed microcode entry an armed exception
// redirects to.
const exceptionEntryPC = 0x3FE

func isSourceSelect(fn AluFunc) bool {
	switch fn {
	case AluStackRamRd, AluOperand, AluDin, AluMulResult, AluBytecode:
		return true
	default:
		return false
	}
}

func (c *Core) currentWord() MicroWord {
	if int(c.MicroPC) >= len(c.Microcode) {
		return 0
	}
	return c.Microcode[c.MicroPC]
}

// ReadDebug exposes non-intrusive state for the debug engine: microPC, A,
// B, sp, and the current Java PC.
func (c *Core) ReadDebug() (pc uint16, a, b uint32, sp int, jpc uint32) {
	return c.MicroPC, c.A, c.B, c.SP, c.Fetch.JPC
}

// RAMAt returns stack RAM slot i, for debug reads and tests.
func (c *Core) RAMAt(i int) uint32 { return c.RAM[i&0xFF] }

// VP returns stack RAM slot 1, the variable base pointer microcode
// reserves per the fixed slot map (slot 0 = mp, slot 1 = vp, slot 2 = sp).
func (c *Core) VP() uint32 { return c.RAM[1] }
