package jop

// FpuMode selects how floating point bytecodes are handled.
type FpuMode int

const (
	FpuOff FpuMode = iota
	FpuMicrocode
	FpuHardware
)

func (m FpuMode) String() string {
	switch m {
	case FpuMicrocode:
		return "microcode"
	case FpuHardware:
		return "hardware"
	default:
		return "off"
	}
}

// ParseFpuMode parses the -fpu_mode flag value.
func ParseFpuMode(s string) FpuMode {
	switch s {
	case "microcode":
		return FpuMicrocode
	case "hardware":
		return FpuHardware
	default:
		return FpuOff
	}
}

// JumpTableVariant selects which 256-entry opcode->microPC table a core boots with.
type JumpTableVariant int

const (
	JumpTableSimulation JumpTableVariant = iota
	JumpTableSimulationFpu
	JumpTableSerial
)

// ParseJumpTableVariant parses the -jump_table flag value.
func ParseJumpTableVariant(s string) JumpTableVariant {
	switch s {
	case "simulation_fpu":
		return JumpTableSimulationFpu
	case "serial":
		return JumpTableSerial
	default:
		return JumpTableSimulation
	}
}

// Config enumerates the recognised configuration options for a Cluster.
// Every knob is passed explicitly; nothing is read from a global or a
// singleton.
type Config struct {
	AddressWidth int // bits of a main memory word address
	MainMemSize  int // words of backing main memory

	BurstLen int // BC_FILL burst length in words; 0 = single-word demand fill

	UseStackCache bool
	UseIhlu       bool

	FpuMode    FpuMode
	JumpTable  JumpTableVariant
	UartBaud   int
	ClkFreqHz  int
	CpuCount   int
	MaxCycles  uint64

	ReadLatencyMin  int
	ReadLatencyMax  int
	RefreshInterval int
	RefreshDuration int

	NumBreakpoints int

	// IhluSlots sizes the indirect-handle lock unit's associative table.
	IhluSlots int
	// StackCacheBankWords sizes each of the three stack-cache banks.
	StackCacheBankWords int
	// LineCacheSets is the number of sets in the line cache (direct-mapped
	// when LineCacheWays==1, 2-way LRU when LineCacheWays==2).
	LineCacheSets int
	LineCacheWays int

	// DramSeed seeds the DRAM model's latency PRNG so test runs are
	// deterministic even though the hardware's timing is not.
	DramSeed int64
}

// DefaultConfig returns the configuration for a standard single-core
// simulation run using the "simulation" jump table variant.
func DefaultConfig() Config {
	return Config{
		AddressWidth:        24,
		MainMemSize:         1 << 20,
		BurstLen:            4,
		UseStackCache:       true,
		UseIhlu:             true,
		FpuMode:             FpuOff,
		JumpTable:           JumpTableSimulation,
		UartBaud:            115200,
		ClkFreqHz:           100_000_000,
		CpuCount:            1,
		MaxCycles:           0,
		ReadLatencyMin:      4,
		ReadLatencyMax:      12,
		RefreshInterval:     1500,
		RefreshDuration:     9,
		NumBreakpoints:      8,
		IhluSlots:           16,
		StackCacheBankWords: 192,
		LineCacheSets:       128,
		LineCacheWays:       2,
		DramSeed:            1,
	}
}
