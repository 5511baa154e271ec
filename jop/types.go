package jop

import "fmt"

// ExceptionType is the value written into I/O register 4 when the memory
// controller or microcode engine detects a hardware-level error
// condition.
type ExceptionType uint32

const (
	ExceptionNone ExceptionType = iota
	ExceptionNullPointer
	ExceptionOutOfBounds
	ExceptionBusError
	ExceptionDivideByZero
)

func (e ExceptionType) String() string {
	switch e {
	case ExceptionNullPointer:
		return "NullPointer"
	case ExceptionOutOfBounds:
		return "OutOfBounds"
	case ExceptionBusError:
		return "BusError"
	case ExceptionDivideByZero:
		return "DivideByZero"
	default:
		return "None"
	}
}

// HaltReason records why a core's halted input is currently asserted, for
// the debug engine's HALTED/STATUS responses.
type HaltReason uint8

const (
	HaltNone HaltReason = iota
	HaltManual
	HaltBreakpoint
	HaltStep
	HaltException
)

func (r HaltReason) String() string {
	switch r {
	case HaltManual:
		return "MANUAL"
	case HaltBreakpoint:
		return "BREAKPOINT"
	case HaltStep:
		return "STEP"
	case HaltException:
		return "EXCEPTION"
	default:
		return "NONE"
	}
}

// BmbOpcode distinguishes a BMB request's direction.
type BmbOpcode uint8

const (
	BmbRead BmbOpcode = iota
	BmbWrite
)

// BmbRequest is one entry of the memory bus's request stream.
type BmbRequest struct {
	Address uint32
	Opcode  BmbOpcode
	Data    uint32
	Mask    uint16 // byte mask at the cache level; 1 bit = preserve that byte
	Source  int
}

// BmbResponse is one entry of the memory bus's response stream. Read
// responses return in FIFO order per source; Error reports a bus fault
// the memory controller turns into ExceptionBusError.
type BmbResponse struct {
	Data   uint32
	Source int
	Error  bool
}

// SnoopPulse is the 1-cycle broadcast emitted by iastore/putfield (and,
// by default, putstatic) and consumed by every core's line cache.
type SnoopPulse struct {
	Valid   bool
	IsArray bool
	Handle  uint32
	Index   uint32
	Addr    uint32
}

// DiagnosticSnapshot captures enough state to reproduce a simulator-fatal
// condition: arbiter starvation, a cache protocol violation, or a
// stack-cache vp+0 corruption. These are never hardware-surfaced; they
// are Go errors the harness reports and exits 2 on.
type DiagnosticSnapshot struct {
	Cycle      uint64
	CoreID     int
	LastPC     uint16
	LastJPC    uint32
	MCState    MCState
	CacheState string
}

func (d *DiagnosticSnapshot) String() string {
	return fmt.Sprintf("cycle=%d core=%d microPC=%#x jpc=%#x mcState=%s cache=%s",
		d.Cycle, d.CoreID, d.LastPC, d.LastJPC, d.MCState, d.CacheState)
}
