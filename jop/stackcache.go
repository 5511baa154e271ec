package jop

import "github.com/pkg/errors"

// ErrStackCacheCorruption is returned when a read of vp+0 comes back zero
// immediately after a legitimate push into a resident bank. A historical
// hardware revision silently returned zero here; this implementation
// treats any such read as a fatal invariant failure rather than
// reproduce the bug.
var ErrStackCacheCorruption = errors.New("stack cache: vp+0 corrupted after push")

type scBankState int

const (
	scIdle scBankState = iota
	scSpillStart
	scSpillWait
	scFillStart
	scFillWait
	scZeroFill
)

// stackBank is one of the three equal-size banks covering a contiguous
// window of the stack RAM virtual address space.
type stackBank struct {
	base     int // first virtual stack-RAM address this bank covers
	resident bool
	dirty    bool
	data     []uint32
	everSpilled bool
}

// StackCache is the optional 3-bank rotating cache of the stack RAM with
// spill/fill DMA.
type StackCache struct {
	bankWords int
	banks     [3]stackBank
	active    int // index into banks of the bank currently containing sp

	spillRegion []uint32 // dedicated backing range, sized >= max_sp*4 bytes

	state        scBankState
	rotatingTo   int
	dmaWordIdx   int
	targetBank   int

	lastPushedVP0 *uint32 // set by the caller right after a push, for the regression check
}

// NewStackCache creates a stack cache with the given per-bank word count
// and a spill region sized for maxSP words.
func NewStackCache(bankWords, maxSP int) *StackCache {
	sc := &StackCache{
		bankWords:   bankWords,
		spillRegion: make([]uint32, maxSP+bankWords),
	}
	for i := range sc.banks {
		sc.banks[i].data = make([]uint32, bankWords)
	}
	sc.banks[0].base = 0
	sc.banks[0].resident = true
	sc.banks[1].base = bankWords
	sc.banks[2].base = 2 * bankWords
	sc.active = 0
	return sc
}

// inBank reports whether virtual address addr falls within bank i's
// current window.
func (sc *StackCache) inBank(i int, addr int) bool {
	b := &sc.banks[i]
	return b.resident && addr >= b.base && addr < b.base+sc.bankWords
}

// Resolve returns the bank index covering addr, or -1 if none is resident
// (a rotation must occur before addr can be serviced).
func (sc *StackCache) Resolve(addr int) int {
	for i := range sc.banks {
		if sc.inBank(i, addr) {
			return i
		}
	}
	return -1
}

// Busy reports whether a rotation DMA is in progress. The pipeline stalls
// if and only if the upcoming microinstruction references a non-resident
// address; pure in-active-bank traffic continues — callers should only
// consult Busy() when Resolve() failed.
func (sc *StackCache) Busy() bool { return sc.state != scIdle }

// Read returns the word at the given virtual stack-RAM address. The bank
// must already be resident (Resolve(addr) >= 0); callers are responsible
// for triggering BeginRotation first otherwise.
func (sc *StackCache) Read(addr int) uint32 {
	i := sc.Resolve(addr)
	if i < 0 {
		return 0
	}
	return sc.banks[i].data[addr-sc.banks[i].base]
}

// Write stores a word at the given virtual stack-RAM address and marks the
// owning bank dirty.
func (sc *StackCache) Write(addr int, v uint32) {
	i := sc.Resolve(addr)
	if i < 0 {
		return
	}
	b := &sc.banks[i]
	b.data[addr-b.base] = v
	b.dirty = true
	if i == sc.active {
		sc.active = i
	}
}

// CheckVP0 implements the mandatory regression check against the
// historical vp+0 bug: a read of vp+0 that comes back zero right after a
// legitimate push is a fatal invariant violation, never a
// silently-tolerated quirk.
func (sc *StackCache) CheckVP0(vp int, expected uint32) error {
	if expected == 0 {
		return nil // a genuine zero push is not corruption
	}
	got := sc.Read(vp)
	if got == 0 {
		return errors.Wrapf(ErrStackCacheCorruption, "vp=%d expected=%#x got=0", vp, expected)
	}
	return nil
}

// BeginRotation starts the spill/fill sequence needed to bring the bank
// covering newAddr into residency. It picks a neighbouring bank to evict
// (the one not equal to the active bank and not already covering newAddr).
func (sc *StackCache) BeginRotation(newAddr int) {
	if sc.state != scIdle {
		return
	}
	target := sc.pickTarget(newAddr)
	sc.targetBank = target
	if sc.banks[target].dirty {
		sc.state = scSpillStart
	} else {
		sc.state = scFillStart
	}
}

// pickTarget chooses which of the three banks will be repurposed to cover
// newAddr: prefer a vacant bank, else, among the banks other than the
// active one, the one whose base lies farthest from newAddr.
func (sc *StackCache) pickTarget(newAddr int) int {
	for i := range sc.banks {
		if !sc.banks[i].resident {
			return i
		}
	}
	farthest, farthestDist := 0, -1
	for i := range sc.banks {
		if i == sc.active {
			continue
		}
		dist := newAddr - sc.banks[i].base
		if dist < 0 {
			dist = -dist
		}
		if dist > farthestDist {
			farthest, farthestDist = i, dist
		}
	}
	return farthest
}

// Tick advances the rotation DMA by one word per cycle.
func (sc *StackCache) Tick() {
	switch sc.state {
	case scSpillStart:
		sc.dmaWordIdx = 0
		sc.state = scSpillWait
	case scSpillWait:
		bank := &sc.banks[sc.targetBank]
		if sc.dmaWordIdx < sc.bankWords {
			dst := bank.base + sc.dmaWordIdx
			if dst < len(sc.spillRegion) {
				sc.spillRegion[dst] = bank.data[sc.dmaWordIdx]
			}
			sc.dmaWordIdx++
			return
		}
		bank.dirty = false
		bank.everSpilled = true
		sc.state = scFillStart
	case scFillStart:
		sc.dmaWordIdx = 0
		sc.state = scFillWait
	case scFillWait:
		bank := &sc.banks[sc.targetBank]
		if sc.dmaWordIdx < sc.bankWords {
			src := bank.base + sc.dmaWordIdx
			// The spill region starts zeroed, so a window no bank has
			// spilled into yet reads back as a cold zero fill.
			if src < len(sc.spillRegion) {
				bank.data[sc.dmaWordIdx] = sc.spillRegion[src]
			} else {
				bank.data[sc.dmaWordIdx] = 0 // beyond the spill region
			}
			sc.dmaWordIdx++
			return
		}
		bank.resident = true
		sc.state = scIdle
	}
}

// NewBase repoints the bank being rotated to cover a new base address;
// callers call this at the fill-start step, after any spill of the bank's
// old data and before the fill reads the new window in.
func (sc *StackCache) NewBase(bank, base int) {
	sc.banks[bank].base = base
}

// SetActive switches which bank is considered to contain sp, once a
// rotation into it has completed.
func (sc *StackCache) SetActive(bank int) { sc.active = bank }
