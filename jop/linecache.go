package jop

// lineWords is the number of 32-bit words per cache line: a 128-bit line
// width, modelled throughout as 4 words.
const lineWords = 4

// cacheLine holds one line's data plus its tag/valid/dirty state.
type cacheLine struct {
	valid bool
	dirty bool
	tag   uint32
	data  [lineWords]uint32
}

// LineCache is the optional cache sitting between the CPU bus and the
// DRAM/backing memory. It is write-back, write-allocate, with a byte-mask
// merge convention on partial writes (mask bit 1 = "do not overwrite this
// byte"; full write = all zeros). Direct-mapped when Ways==1, 2-way LRU
// otherwise.
type LineCache struct {
	sets int
	ways int
	data [][]cacheLine
	lru  [][]int // per set, way index 0 = most recently used

	backend *DRAMModel

	// pending tracks a miss in progress: a dirty victim's write-back must
	// complete before the new line is fetched.
	pending     *pendingMiss
	snoop       *SnoopBus
	snoopOffset int
}

type pendingMissStage int

const (
	stageNone pendingMissStage = iota
	stageWriteBack
	stageFetch
)

type pendingMiss struct {
	stage         pendingMissStage
	set           int
	way           int
	newTag        uint32
	addr          uint32
	wordIdx       int // next word to submit for write-back or fetch
	fillCollected int // words collected back from the backend so far
	ackCollected  int // write-back acks drained so far
	origReq       BmbRequest
	isWrite       bool
}

// NewLineCache creates a cache of the given shape backed by a DRAMModel.
func NewLineCache(sets, ways int, backend *DRAMModel) *LineCache {
	if ways < 1 {
		ways = 1
	}
	c := &LineCache{
		sets:    sets,
		ways:    ways,
		data:    make([][]cacheLine, sets),
		lru:     make([][]int, sets),
		backend: backend,
	}
	for s := 0; s < sets; s++ {
		c.data[s] = make([]cacheLine, ways)
		c.lru[s] = make([]int, ways)
		for w := range c.lru[s] {
			c.lru[s][w] = w
		}
	}
	return c
}

// ConnectSnoop wires the snoop bus this cache listens on for invalidation
// pulses, which the cores' memory controllers publish on snooped stores.
func (c *LineCache) ConnectSnoop(bus *SnoopBus) {
	c.snoop = bus
	c.snoopOffset = bus.Subscribe(c.onSnoop)
}

func (c *LineCache) lineAddr(addr uint32) (set int, tag uint32, wordOff int) {
	lineAddr := addr / lineWords
	wordOff = int(addr % lineWords)
	set = int(lineAddr) % c.sets
	tag = lineAddr / uint32(c.sets)
	return
}

func (c *LineCache) onSnoop(p SnoopPulse) {
	if !p.Valid {
		return
	}
	set, tag, _ := c.lineAddr(p.Addr)
	for w := 0; w < c.ways; w++ {
		line := &c.data[set][w]
		if line.valid && line.tag == tag {
			// Invalidate unconditionally, even if dirty: a dirty
			// snooped-out line's data is assumed to have been superseded by
			// the writer whose store triggered this pulse.
			line.valid = false
			line.dirty = false
		}
	}
}

func (c *LineCache) findWay(set int, tag uint32) int {
	for w := 0; w < c.ways; w++ {
		if c.data[set][w].valid && c.data[set][w].tag == tag {
			return w
		}
	}
	return -1
}

func (c *LineCache) touchLRU(set, way int) {
	order := c.lru[set]
	for i, w := range order {
		if w == way {
			copy(order[1:i+1], order[:i])
			order[0] = way
			return
		}
	}
}

func (c *LineCache) victimWay(set int) int {
	for w := 0; w < c.ways; w++ {
		if !c.data[set][w].valid {
			return w
		}
	}
	return c.lru[set][c.ways-1]
}

// Request submits a frontend request. ok reports whether the cache
// accepted it this cycle (one outstanding miss at a time); the caller must
// hold and retry if not. hit reports whether it completed immediately: a
// read or write to a resident line does; a miss of either kind, including
// a write to a non-resident line, returns hit=false and completes via Tick.
func (c *LineCache) Request(req BmbRequest) (data uint32, hit, ok bool) {
	if c.pending != nil {
		return 0, false, false
	}

	set, tag, wordOff := c.lineAddr(req.Address)
	way := c.findWay(set, tag)
	if way >= 0 {
		c.touchLRU(set, way)
		line := &c.data[set][way]
		if req.Opcode == BmbRead {
			return line.data[wordOff], true, true
		}
		c.mergeWrite(&line.data[wordOff], req.Data, req.Mask)
		line.dirty = true
		return 0, true, true
	}

	// Miss: start eviction (if needed) then fetch.
	victim := c.victimWay(set)
	c.pending = &pendingMiss{
		set: set, way: victim, newTag: tag, addr: req.Address,
		origReq: req, isWrite: req.Opcode == BmbWrite,
	}
	if c.data[set][victim].valid && c.data[set][victim].dirty {
		c.pending.stage = stageWriteBack
	} else {
		c.pending.stage = stageFetch
	}
	return 0, false, true
}

func (c *LineCache) mergeWrite(word *uint32, data uint32, mask uint16) {
	if mask == 0 {
		*word = data
		return
	}
	merged := *word
	for b := uint(0); b < 4; b++ {
		if mask&(1<<b) != 0 {
			continue
		}
		shift := b * 8
		merged = (merged &^ (0xFF << shift)) | (data & (0xFF << shift))
	}
	*word = merged
}

// Tick drives the in-progress miss's write-back/fetch DMA against the
// DRAM backend. Completed reports when the originally-requested word is
// ready: the line is then resident, a write miss has already been merged
// into it, and PendingResult returns the word at the original address.
func (c *LineCache) Tick() {
	if c.pending == nil {
		return
	}
	p := c.pending
	switch p.stage {
	case stageWriteBack:
		line := &c.data[p.set][p.way]
		lineBase := (line.tag*uint32(c.sets) + uint32(p.set)) * lineWords
		if p.wordIdx < lineWords {
			if c.backend.Submit(BmbRequest{Address: lineBase + uint32(p.wordIdx), Opcode: BmbWrite, Data: line.data[p.wordIdx]}) {
				p.wordIdx++
			}
			return
		}
		// Submit above enqueued lineWords separate write acks on the
		// backend's FIFO; every one of them must be drained here before
		// moving to the fetch stage, or the leftover acks sit at the head
		// of the queue and get consumed by fillAppend instead of real
		// read data.
		for p.ackCollected < lineWords {
			if _, ok := c.backend.Poll(); !ok {
				return
			}
			p.ackCollected++
		}
		line.dirty = false
		line.valid = false
		p.stage = stageFetch
		p.wordIdx = 0
	case stageFetch:
		lineBase := (p.newTag*uint32(c.sets) + uint32(p.set)) * lineWords
		if p.wordIdx < lineWords {
			if c.backend.Submit(BmbRequest{Address: lineBase + uint32(p.wordIdx), Opcode: BmbRead}) {
				p.wordIdx++
			}
			return
		}
		resp, ok := c.backend.Poll()
		if !ok {
			return
		}
		c.fillAppend(&c.data[p.set][p.way], resp.Data)
	}
}

// fillAppend appends the next word collected back from the backend (in
// submission order, which the DRAM model preserves per source) into the
// line being filled, finishing the miss once all lineWords are in.
func (c *LineCache) fillAppend(line *cacheLine, data uint32) {
	n := c.pending.fillCollected
	line.data[n] = data
	c.pending.fillCollected = n + 1
	if n+1 == lineWords {
		line.valid = true
		line.dirty = false
		line.tag = c.pending.newTag
		c.finishMiss()
	}
}

func (c *LineCache) finishMiss() {
	c.touchLRU(c.pending.set, c.pending.way)
	if c.pending.isWrite {
		line := &c.data[c.pending.set][c.pending.way]
		_, _, off := c.lineAddr(c.pending.addr)
		c.mergeWrite(&line.data[off], c.pending.origReq.Data, c.pending.origReq.Mask)
		line.dirty = true
	}
	c.pending = nil
}

// Completed reports whether the miss that made the last Request return
// ok=true,hit=false has now finished filling its line.
func (c *LineCache) Completed() bool { return c.pending == nil }

// PendingResult returns the value at the original miss address, valid
// only once Completed() is true and the access was a read.
func (c *LineCache) PendingResult(addr uint32) uint32 {
	set, tag, off := c.lineAddr(addr)
	way := c.findWay(set, tag)
	if way < 0 {
		return 0
	}
	return c.data[set][way].data[off]
}
