package jop

import "testing"

func TestBuildJumpTableSimulationIsIdentity(t *testing.T) {
	jt := BuildJumpTable(JumpTableSimulation)
	for i, pc := range jt {
		if pc != uint16(i) {
			t.Fatalf("opcode %d maps to %d, want %d under the simulation variant", i, pc, i)
		}
	}
}

func TestBuildJumpTableSerialTrapsNonBootOpcodes(t *testing.T) {
	jt := BuildJumpTable(JumpTableSerial)

	for _, op := range bootOpcodes {
		if jt[op] != uint16(op) {
			t.Errorf("boot opcode %d got entry %d, want %d (untrapped)", op, jt[op], op)
		}
	}

	// iastore (79) is not in the boot set and must trap.
	if jt[79] != downloadHandlerPC {
		t.Errorf("got %d for a non-boot opcode, want downloadHandlerPC", jt[79])
	}
}

func TestBuildJumpTableFpuRoutesFloatOpcodes(t *testing.T) {
	jt := BuildJumpTable(JumpTableSimulationFpu)

	if jt[98] != uint16(98)|fpuHardwareBit {
		t.Errorf("got %#x, want opcode 98 routed to the hardware-FPU entry", jt[98])
	}
	// An opcode outside the FPU set must still resolve to the identity
	// mapping, same as the plain simulation variant.
	if jt[96] != 96 {
		t.Errorf("got %d for iadd, want 96 (unaffected by the fpu variant)", jt[96])
	}
}
