package jop

// JumpTable maps a Java opcode (0-255) to a microcode entry PC. Two
// variants are used in production: "simulation" (all opcodes enabled) and
// "serial" (boot-only opcodes enabled, everything else traps to a
// download handler). simulation_fpu additionally routes float/double
// opcodes to hardware-FPU microcode entries instead of the microcoded
// software-float routine.
type JumpTable [256]uint16

// downloadHandlerPC is the fixed microcode entry every non-boot opcode
// traps to under the serial jump table variant.
const downloadHandlerPC = 0x3FF

// bootOpcodes lists the opcodes a fresh core needs before it has received
// and linked a program image over the serial boot protocol: just enough
// stack/constant/branch/return machinery to run the bootstrap loader.
var bootOpcodes = []byte{
	0 /* nop */, 3, 4, 5, 6, 7, 8, /* iconst_* */
	16 /* bipush */, 17 /* sipush */, 21 /* iload */, 54, /* istore */
	96 /* iadd */, 100 /* isub */, 167 /* goto */, 177, /* return */
	178, 179, /* get/putstatic */
	209, 213, /* jopsys_invoke, jopsys_cmpsync_exit (boot needs no lock) */
}

// BuildJumpTable constructs the jump table for the requested variant. The
// entry microcode PC for opcode N is conventionally N itself scaled by a
// per-opcode microcode routine slot count; this repository uses one
// reserved slot per opcode (entry == opcode) and lets the microcode ROM
// place each opcode's routine at that index — a flat, directly-indexed
// table rather than a computed jump.
func BuildJumpTable(variant JumpTableVariant) JumpTable {
	var jt JumpTable
	for i := range jt {
		jt[i] = uint16(i)
	}
	switch variant {
	case JumpTableSerial:
		boot := make(map[byte]bool, len(bootOpcodes))
		for _, op := range bootOpcodes {
			boot[op] = true
		}
		for i := range jt {
			if !boot[byte(i)] {
				jt[i] = downloadHandlerPC
			}
		}
	case JumpTableSimulationFpu:
		for _, op := range []byte{98, 99, 102, 103, 106, 107, 110, 111, 114, 115} {
			jt[op] = uint16(op) | fpuHardwareBit
		}
	}
	return jt
}

// fpuHardwareBit flags a jump-table entry as routing to a hardware-FPU
// microcode routine rather than the microcoded software one, under the
// simulation_fpu variant.
const fpuHardwareBit = 1 << 12
