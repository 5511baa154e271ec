package jop

// Arbiter is the N:1 round-robin arbiter sitting between the per-core
// memory controllers and the shared line cache / DRAM adapter. It is
// non-starving: sources are served in rotation, and a source that has
// nothing pending this cycle simply yields its turn without consuming one.
//
// Requests from the same source are never reordered by the arbiter, and
// responses carry the originating source so the cache can route them back.
type Arbiter struct {
	sourceCount int
	pending     [][]BmbRequest // one FIFO of not-yet-issued requests per source
	inFlight    []int          // outstanding reads per source, for the protocol check
	next        int            // round-robin cursor
	starveLimit int
	starveCount []int
}

// NewArbiter creates an arbiter serving the given number of sources
// (typically the cpu_count). starveLimit is the cycle budget before a
// source with a pending request that never gets issued is treated as a
// simulator-fatal arbiter starvation.
func NewArbiter(sourceCount, starveLimit int) *Arbiter {
	return &Arbiter{
		sourceCount: sourceCount,
		pending:     make([][]BmbRequest, sourceCount),
		inFlight:    make([]int, sourceCount),
		starveLimit: starveLimit,
		starveCount: make([]int, sourceCount),
	}
}

// Submit enqueues a request from the given source. Writes may pipeline;
// the caller (memory controller) is responsible for not submitting a
// write that must not reorder past a later read with an overlapping
// address.
func (a *Arbiter) Submit(source int, req BmbRequest) {
	req.Source = source
	a.pending[source] = append(a.pending[source], req)
	if req.Opcode == BmbRead {
		a.inFlight[source]++
	}
}

// Issue picks the next request to forward to the backend (cache/DRAM) this
// cycle, round-robin across sources with pending work. It returns ok=false
// if no source has anything pending.
func (a *Arbiter) Issue() (req BmbRequest, ok bool) {
	for i := 0; i < a.sourceCount; i++ {
		idx := (a.next + i) % a.sourceCount
		if len(a.pending[idx]) > 0 {
			req = a.pending[idx][0]
			a.pending[idx] = a.pending[idx][1:]
			a.next = (idx + 1) % a.sourceCount
			a.starveCount[idx] = 0
			return req, true
		}
	}
	return BmbRequest{}, false
}

// Tick advances the starvation clock for every source with pending work
// that was not issued this cycle. CheckStarvation should be called after
// Tick to detect a hung source.
func (a *Arbiter) Tick() {
	for i := 0; i < a.sourceCount; i++ {
		if len(a.pending[i]) > 0 {
			a.starveCount[i]++
		}
	}
}

// CheckStarvation reports the first source that has exceeded the
// configured starvation budget, or -1 if none has.
func (a *Arbiter) CheckStarvation() int {
	if a.starveLimit <= 0 {
		return -1
	}
	for i, c := range a.starveCount {
		if c > a.starveLimit {
			return i
		}
	}
	return -1
}

// BusPort is a single source's handle onto the shared arbiter: a place to
// submit requests and a FIFO of responses routed back to it. Giving each
// memory controller its own port, rather than a shared pointer into the
// cache, keeps the bus genuinely single-threaded-by-construction.
type BusPort struct {
	arb    *Arbiter
	source int
	inbox  []BmbResponse
}

// NewBusPort creates a port bound to the given arbiter and source id.
func NewBusPort(arb *Arbiter, source int) *BusPort {
	return &BusPort{arb: arb, source: source}
}

// Submit enqueues a request on this port's source.
func (p *BusPort) Submit(req BmbRequest) {
	req.Source = p.source
	p.arb.Submit(p.source, req)
}

// Poll pops the next delivered response for this port, if any.
func (p *BusPort) Poll() (BmbResponse, bool) {
	if len(p.inbox) == 0 {
		return BmbResponse{}, false
	}
	r := p.inbox[0]
	p.inbox = p.inbox[1:]
	return r, true
}

// deliver is called by the Cluster once the shared cache/DRAM completes a
// request originating from this port's source.
func (p *BusPort) deliver(r BmbResponse) {
	p.inbox = append(p.inbox, r)
}

// Complete records that a response has been delivered for the given
// source, clearing one outstanding read. It returns false if the source
// had no outstanding read — a cache line protocol violation.
func (a *Arbiter) Complete(source int) bool {
	if a.inFlight[source] <= 0 {
		return false
	}
	a.inFlight[source]--
	return true
}
