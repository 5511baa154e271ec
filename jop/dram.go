package jop

import "math/rand"

// dramOp is an in-flight DRAM command, tracked so reads can be delayed by a
// variable latency while writes and later reads to the same address still
// observe global program order: a read-after-write to the same word
// returns the written value.
type dramOp struct {
	req       BmbRequest
	cyclesLeft int
}

// DRAMModel is the behavioral stand-in for a vendor DRAM controller. It
// exposes the same request/response stream shape the line cache talks to
// everywhere else in this package, rather than raw controller wire names
// that belong to a hardware bus binding this simulator does not need.
type DRAMModel struct {
	mem []uint32

	readLatencyMin int
	readLatencyMax int

	refreshInterval int
	refreshDuration int
	cycleInInterval int
	refreshing      bool

	inFlight []dramOp
	rng      *rand.Rand
}

// NewDRAMModel creates a DRAM model backing memSizeWords words, applying
// the latency/refresh parameters from Config.
func NewDRAMModel(memSizeWords int, cfg Config) *DRAMModel {
	return &DRAMModel{
		mem:             make([]uint32, memSizeWords),
		readLatencyMin:  cfg.ReadLatencyMin,
		readLatencyMax:  cfg.ReadLatencyMax,
		refreshInterval: cfg.RefreshInterval,
		refreshDuration: cfg.RefreshDuration,
		rng:             rand.New(rand.NewSource(cfg.DramSeed)),
	}
}

// Ready reports whether the adapter currently accepts a new command. It is
// held false for refreshDuration cycles every refreshInterval cycles.
func (d *DRAMModel) Ready() bool {
	return !d.refreshing
}

// Submit accepts a command if Ready() and returns whether it was accepted.
// Writes complete with an immediate handshake; a write is applied to
// memory right away so any later read — even one that beats a slower
// in-flight read back — observes it, preserving program order.
func (d *DRAMModel) Submit(req BmbRequest) bool {
	if !d.Ready() {
		return false
	}
	switch req.Opcode {
	case BmbWrite:
		d.applyWrite(req)
		d.inFlight = append(d.inFlight, dramOp{req: req, cyclesLeft: 0})
	case BmbRead:
		lat := d.readLatencyMin
		if d.readLatencyMax > d.readLatencyMin {
			lat += d.rng.Intn(d.readLatencyMax - d.readLatencyMin + 1)
		}
		d.inFlight = append(d.inFlight, dramOp{req: req, cyclesLeft: lat})
	}
	return true
}

func (d *DRAMModel) applyWrite(req BmbRequest) {
	idx := int(req.Address)
	if idx < 0 || idx >= len(d.mem) {
		return
	}
	if req.Mask == 0 {
		d.mem[idx] = req.Data
		return
	}
	merged := d.mem[idx]
	for byteIdx := uint(0); byteIdx < 4; byteIdx++ {
		if req.Mask&(1<<byteIdx) != 0 {
			continue // mask bit set: preserve this byte
		}
		shift := byteIdx * 8
		merged = (merged &^ (0xFF << shift)) | (req.Data & (0xFF << shift))
	}
	d.mem[idx] = merged
}

// Tick advances the refresh clock and every in-flight read's latency
// countdown by one cycle.
func (d *DRAMModel) Tick() {
	d.cycleInInterval++
	if !d.refreshing && d.cycleInInterval >= d.refreshInterval {
		d.refreshing = true
		d.cycleInInterval = 0
	} else if d.refreshing && d.cycleInInterval >= d.refreshDuration {
		d.refreshing = false
		d.cycleInInterval = 0
	}

	for i := range d.inFlight {
		if d.inFlight[i].cyclesLeft > 0 {
			d.inFlight[i].cyclesLeft--
		}
	}
}

// Poll returns a completed response, if any op at the head of the
// in-flight queue has finished its latency. A read's value is taken from
// memory here, at Poll time, while writes apply to memory at Submit time;
// a read therefore also reflects any same-address write submitted after
// it but before it is polled.
func (d *DRAMModel) Poll() (BmbResponse, bool) {
	if len(d.inFlight) == 0 {
		return BmbResponse{}, false
	}
	head := &d.inFlight[0]
	if head.cyclesLeft > 0 {
		return BmbResponse{}, false
	}
	var data uint32
	if head.req.Opcode == BmbRead {
		idx := int(head.req.Address)
		if idx >= 0 && idx < len(d.mem) {
			data = d.mem[idx]
		}
	}
	resp := BmbResponse{Data: data, Source: head.req.Source}
	d.inFlight = d.inFlight[1:]
	return resp, true
}
