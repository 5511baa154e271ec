package jop

import "github.com/pkg/errors"

// MCState names the memory controller's state machine states. Numeric
// values are implementation-private.
type MCState int

const (
	McIdle MCState = iota
	McRdWait
	McWrWait
	McHRead
	McHWait
	McHCalc
	McHAcc
	McHData
	McBcChk
	McBcR1
	McBcLoop
	McBcCmd
	McAcCmd
	McAcWait
	McCpSet
	McCpRd
	McCpRdw
	McCpWr
	McCpStop
	McGsRd
	McPsWr
	McNpExc
	McAbExc
	McLast
)

func (s MCState) String() string {
	names := [...]string{
		"IDLE", "RD_WAIT", "WR_WAIT", "H_READ", "H_WAIT", "H_CALC", "H_ACC",
		"H_DATA", "BC_CHK", "BC_R1", "BC_LOOP", "BC_CMD", "AC_CMD", "AC_WAIT",
		"CP_SET", "CP_RD", "CP_RDW", "CP_WR", "CP_STOP", "GS_RD", "PS_WR",
		"NP_EXC", "AB_EXC", "LAST",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "UNKNOWN"
}

// mcOp identifies which bytecode-level memory operation is in flight.
type mcOp int

const (
	opNone mcOp = iota
	opStmwaRd
	opStmwaWr
	opGetfield
	opPutfield
	opIaload
	opIastore
	opBcFill
	opCopy
	opGetstatic
	opPutstatic
)

// MemoryController is the state machine executing bytecode-level memory
// operations: by far the largest and most stateful component in the
// pipeline. One exists per core; all share the cluster's
// Arbiter/LineCache/DRAMModel through this controller's BusPort.
type MemoryController struct {
	state MCState
	op    mcOp

	port  *BusPort
	fetch *FetchUnit
	io    *IOBlock
	snoop *SnoopBus

	burstLen int

	// Operands latched when an operation is issued.
	addr    uint32
	data    uint32
	handle  uint32
	index   int32
	length  int
	copyDst uint32

	// Scratch used while an op is mid-flight.
	bodyPtr    uint32
	bcWords    []uint32
	bcWordsGot int
	copyI      int
	settleLeft int

	// DIN is the word the last completed read op produced, held stable
	// until the next read op's response overwrites it; it is one of the
	// lmux sources microcode polls.
	DIN uint32

	lastExc ExceptionType
}

// NewMemoryController wires a controller to its bus port, the core's
// fetch unit (for BC_FILL) and I/O block (for the exception register),
// and the shared snoop bus.
func NewMemoryController(port *BusPort, fetch *FetchUnit, io *IOBlock, snoop *SnoopBus, burstLen int) *MemoryController {
	return &MemoryController{port: port, fetch: fetch, io: io, snoop: snoop, burstLen: burstLen}
}

// Busy reports memBusy: the microcode engine must freeze while this is
// true.
func (m *MemoryController) Busy() bool { return m.state != McIdle }

// issue rejects a new operation while one is already in flight; every
// Issue* method below is a thin wrapper that calls this first.
func (m *MemoryController) issue(op mcOp, first MCState) bool {
	if m.state != McIdle {
		return false
	}
	m.op = op
	m.state = first
	return true
}

// IssueLoad starts stmra/ldmrd: a single-word read at addr.
func (m *MemoryController) IssueLoad(addr uint32) bool {
	if !m.issue(opStmwaRd, McRdWait) {
		return false
	}
	m.addr = addr
	m.port.Submit(BmbRequest{Address: addr, Opcode: BmbRead})
	return true
}

// IssueStore starts stmwa/stmwd: a single-word write.
func (m *MemoryController) IssueStore(addr, data uint32) bool {
	if !m.issue(opStmwaWr, McWrWait) {
		return false
	}
	m.addr, m.data = addr, data
	m.port.Submit(BmbRequest{Address: addr, Opcode: BmbWrite, Data: data})
	return true
}

// IssueGetstatic starts getstatic: a single-word read at an absolute
// address.
func (m *MemoryController) IssueGetstatic(addr uint32) bool {
	if !m.issue(opGetstatic, McGsRd) {
		return false
	}
	m.addr = addr
	m.port.Submit(BmbRequest{Address: addr, Opcode: BmbRead})
	return true
}

// IssuePutstatic starts putstatic: a single-word write at an absolute
// address. Broadcasts on the snoop bus too, matching the safe default for
// an unmonitored opcode.
func (m *MemoryController) IssuePutstatic(addr, data uint32) bool {
	if !m.issue(opPutstatic, McPsWr) {
		return false
	}
	m.addr, m.data = addr, data
	m.port.Submit(BmbRequest{Address: addr, Opcode: BmbWrite, Data: data})
	if m.snoop != nil {
		m.snoop.Publish(SnoopPulse{Addr: addr})
	}
	return true
}

// IssueGetfield starts getfield: handle in handleAddr, index in idx.
func (m *MemoryController) IssueGetfield(handleAddr uint32, idx int32) bool {
	return m.issueHandleOp(opGetfield, handleAddr, idx, 0)
}

// IssuePutfield starts putfield: handle, index, and the value to store.
func (m *MemoryController) IssuePutfield(handleAddr uint32, idx int32, value uint32) bool {
	return m.issueHandleOp(opPutfield, handleAddr, idx, value)
}

// IssueIaload starts iaload: bounds-checked array read.
func (m *MemoryController) IssueIaload(handleAddr uint32, idx int32) bool {
	return m.issueHandleOp(opIaload, handleAddr, idx, 0)
}

// IssueIastore starts iastore: bounds-checked array write, also snooped.
func (m *MemoryController) IssueIastore(handleAddr uint32, idx int32, value uint32) bool {
	return m.issueHandleOp(opIastore, handleAddr, idx, value)
}

func (m *MemoryController) issueHandleOp(op mcOp, handleAddr uint32, idx int32, value uint32) bool {
	if !m.issue(op, McHRead) {
		return false
	}
	m.handle, m.index, m.data = handleAddr, idx, value
	if handleAddr == 0 {
		// NullPointer is detected at H_CALC, but a zero handle is already
		// known to be null before any bus access: short-circuit straight
		// there next Step() rather than waste a cycle issuing a read
		// destined to fault.
		m.state = McHCalc
		return true
	}
	// handle slot 0 holds the pointer to the object body.
	m.port.Submit(BmbRequest{Address: handleAddr + 0, Opcode: BmbRead})
	return true
}

// IssueBcFillOnMiss starts a BC_FILL for the fetch unit's most recently
// reported miss, sized to this controller's configured burst length
// (burstLen<=0 still fills exactly one word, a demand fill). It is the
// automatic trigger spec.md §4.2/§4.3 require on a tagged JBC miss; it is a
// no-op while an operation is already in flight, so the caller may call it
// again on a later idle cycle without double-issuing.
func (m *MemoryController) IssueBcFillOnMiss() bool {
	words := m.burstLen
	if words <= 0 {
		words = 1
	}
	return m.IssueBcFill(m.fetch.MissAddress(), words)
}

// IssueBcFill starts a BC_FILL: streams length words starting at codeAddr
// into the JBC. A demand fill (burstLen==0) still fills exactly one word.
func (m *MemoryController) IssueBcFill(codeAddr uint32, words int) bool {
	if words <= 0 {
		words = 1
	}
	if !m.issue(opBcFill, McBcChk) {
		return false
	}
	m.addr = codeAddr
	m.length = words
	m.bcWords = make([]uint32, 0, words)
	m.bcWordsGot = 0
	return true
}

// IssueCopy starts a GC-assist word-block move: length words from src to
// dst, read through the cache and written with a full (zero-mask) write.
func (m *MemoryController) IssueCopy(src, dst uint32, length int) bool {
	if !m.issue(opCopy, McCpSet) {
		return false
	}
	m.addr, m.copyDst, m.length, m.copyI = src, dst, length, 0
	return true
}

// Step advances the state machine by one cycle. Call once per cycle,
// after polling the bus port for any response that arrived. Returns an
// error only for a simulator-fatal bus protocol issue; a hardware-level
// condition (NullPointer etc.) is reported via the I/O block's exception
// register, not a Go error.
func (m *MemoryController) Step() error {
	switch m.state {
	case McIdle:
		return nil

	case McRdWait:
		if resp, ok := m.port.Poll(); ok {
			if resp.Error {
				m.fault(ExceptionBusError)
				return nil
			}
			m.DIN = resp.Data
			m.state = McIdle
		}
	case McWrWait:
		if _, ok := m.port.Poll(); ok {
			m.state = McIdle
		}
	case McGsRd:
		if resp, ok := m.port.Poll(); ok {
			m.DIN = resp.Data
			m.state = McIdle
		}
	case McPsWr:
		if _, ok := m.port.Poll(); ok {
			m.state = McIdle
		}

	case McHRead:
		m.state = McHWait
	case McHWait:
		if m.handle == 0 {
			m.state = McHCalc
			return nil
		}
		if resp, ok := m.port.Poll(); ok {
			m.bodyPtr = resp.Data
			m.state = McHCalc
		}
	case McHCalc:
		if m.handle == 0 {
			m.fault(ExceptionNullPointer)
			m.state = McNpExc
			return nil
		}
		if m.op == opIaload || m.op == opIastore {
			// length word at heap_ptr[0]; body (element 0) at heap_ptr[1].
			if m.index < 0 {
				m.fault(ExceptionOutOfBounds)
				m.state = McAbExc
				return nil
			}
			m.port.Submit(BmbRequest{Address: m.bodyPtr, Opcode: BmbRead})
			m.state = McAcCmd
			return nil
		}
		// getfield/putfield: heap[handle_ptr + index], no bounds check.
		eff := m.bodyPtr + uint32(m.index)
		if m.op == opGetfield {
			m.port.Submit(BmbRequest{Address: eff, Opcode: BmbRead})
		} else {
			m.port.Submit(BmbRequest{Address: eff, Opcode: BmbWrite, Data: m.data})
			if m.snoop != nil {
				m.snoop.Publish(SnoopPulse{IsArray: false, Handle: m.handle, Index: uint32(m.index), Addr: eff})
			}
		}
		m.state = McHAcc
	case McHAcc:
		m.state = McHData
	case McHData:
		if resp, ok := m.port.Poll(); ok {
			if m.op == opGetfield {
				m.DIN = resp.Data
			}
			m.state = McIdle
		}

	case McAcCmd:
		if resp, ok := m.port.Poll(); ok {
			length := resp.Data
			if uint32(m.index) >= length {
				m.fault(ExceptionOutOfBounds)
				m.state = McAbExc
				return nil
			}
			eff := m.bodyPtr + 1 + uint32(m.index)
			if m.op == opIaload {
				m.port.Submit(BmbRequest{Address: eff, Opcode: BmbRead})
			} else {
				m.port.Submit(BmbRequest{Address: eff, Opcode: BmbWrite, Data: m.data})
				if m.snoop != nil {
					m.snoop.Publish(SnoopPulse{IsArray: true, Handle: m.handle, Index: uint32(m.index), Addr: eff})
				}
			}
			m.state = McAcWait
		}
	case McAcWait:
		if resp, ok := m.port.Poll(); ok {
			if m.op == opIaload {
				m.DIN = resp.Data
			}
			m.state = McIdle
		}

	case McBcChk:
		m.state = McBcR1
	case McBcR1:
		m.port.Submit(BmbRequest{Address: m.addr + uint32(m.bcWordsGot), Opcode: BmbRead})
		m.state = McBcLoop
	case McBcLoop:
		if resp, ok := m.port.Poll(); ok {
			m.bcWords = append(m.bcWords, resp.Data)
			m.bcWordsGot++
			if m.bcWordsGot < m.length {
				m.port.Submit(BmbRequest{Address: m.addr + uint32(m.bcWordsGot), Opcode: BmbRead})
				m.state = McBcLoop
			} else {
				m.state = McBcCmd
			}
		}
	case McBcCmd:
		// The words were read starting at m.addr, so they land at that
		// same address in the JBC.
		m.fetch.jbc.Fill(m.addr, m.bcWords)
		m.fetch.miss = false
		m.state = McIdle

	case McCpSet:
		if m.length <= 0 {
			m.state = McCpStop
			return nil
		}
		m.state = McCpRd
	case McCpRd:
		if m.copyI > 0 {
			// Take the previous word's write ack first, so the read-data
			// poll in McCpRdw cannot pick it up instead.
			if _, ok := m.port.Poll(); !ok {
				return nil
			}
		}
		m.port.Submit(BmbRequest{Address: m.addr + uint32(m.copyI), Opcode: BmbRead})
		m.state = McCpRdw
	case McCpRdw:
		if resp, ok := m.port.Poll(); ok {
			m.data = resp.Data
			m.state = McCpWr
		}
	case McCpWr:
		m.port.Submit(BmbRequest{Address: m.copyDst + uint32(m.copyI), Opcode: BmbWrite, Data: m.data, Mask: 0})
		m.copyI++
		if m.copyI < m.length {
			m.state = McCpRd
		} else {
			m.state = McCpStop
		}
	case McCpStop:
		if m.length > 0 {
			// Wait for the last word's write ack.
			if _, ok := m.port.Poll(); !ok {
				return nil
			}
		}
		m.state = McIdle

	case McNpExc, McAbExc:
		m.state = McLast
	case McLast:
		m.state = McIdle

	default:
		return errors.Errorf("memory controller: unhandled state %s", m.state)
	}
	return nil
}

// fault writes the given exception type into the I/O block's exception
// register synchronously with retiring the offending microinstruction,
// and records it for diagnostics.
func (m *MemoryController) fault(e ExceptionType) {
	m.lastExc = e
	if m.io != nil {
		m.io.RaiseException(e)
	}
}

// LastException returns the most recent hardware exception this
// controller raised (ExceptionNone if none has).
func (m *MemoryController) LastException() ExceptionType { return m.lastExc }

// State exposes the current MCState, for diagnostics and tests.
func (m *MemoryController) State() MCState { return m.state }
