package jop

import "testing"

func TestFetchUnitMissUntilFilled(t *testing.T) {
	f := NewFetchUnit()
	f.CodeBase = 0
	f.JPC = 0

	if _, _, miss := f.Peek(); !miss {
		t.Fatal("cold JBC reported a hit before any fill")
	}

	// bipush (16) takes a 1-byte operand; word encodes opcode, operand,
	// then padding.
	f.FillMiss([]uint32{0x10050000})

	op, operand, miss := f.Peek()
	if miss {
		t.Fatal("JBC still reports a miss after FillMiss covered the address")
	}
	if op != 0x10 || operand != 0x05 {
		t.Errorf("got opcode=%#x operand=%#x, want opcode=0x10 operand=0x05", op, operand)
	}
}

func TestFetchUnitAdvanceAtomicWithOperandLength(t *testing.T) {
	f := NewFetchUnit()
	f.FillMiss([]uint32{0x11000200}) // sipush (17), 2-byte operand 0x0002
	op, operand, miss := f.Peek()
	if miss || op != 17 || operand != 2 {
		t.Fatalf("got op=%d operand=%d miss=%v, want op=17 operand=2 miss=false", op, operand, miss)
	}
	f.Advance(op)
	if f.JPC != 3 { // 1 opcode byte + 2 operand bytes
		t.Errorf("got JPC=%d, want 3", f.JPC)
	}
}

func TestFetchUnitZeroOperandOpcodeAdvancesByOne(t *testing.T) {
	f := NewFetchUnit()
	f.FillMiss([]uint32{0x60000000}) // iadd (96), no operand
	op, _, miss := f.Peek()
	if miss || op != 96 {
		t.Fatalf("got op=%d miss=%v, want op=96", op, miss)
	}
	f.Advance(op)
	if f.JPC != 1 {
		t.Errorf("got JPC=%d, want 1", f.JPC)
	}
}

func TestFetchUnitJump(t *testing.T) {
	f := NewFetchUnit()
	f.JPC = 100
	f.Jump(42)
	if f.JPC != 42 {
		t.Errorf("got JPC=%d, want 42", f.JPC)
	}
}

func TestJBCLineBoundaryMiss(t *testing.T) {
	var j JBC
	// Filling only the first word of a line must not satisfy a read that
	// straddles into the next, unfilled, line.
	j.Fill(0, []uint32{0x01020304})
	if _, miss := j.Read(0); miss {
		t.Fatal("byte 0 of a filled line reported a miss")
	}
	if _, miss := j.Read(jbcLineBytes); !miss {
		t.Fatal("byte in an unfilled neighboring line did not report a miss")
	}
}
