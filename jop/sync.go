package jop

// CmpSync is the single global re-entrant mutex unit for SMP, CMP_SYNC. A
// core already owning the lock is granted re-entry without halting; other
// requesters queue FIFO and are granted in order as the owner exits.
type CmpSync struct {
	owner   int
	held    bool
	waiters []int
}

const noOwner = -1

// NewCmpSync creates an unlocked global mutex.
func NewCmpSync() *CmpSync { return &CmpSync{owner: noOwner} }

// Enter requests the lock on behalf of cpuID. granted reports whether the
// lock was acquired immediately (including the re-entrant case); if not,
// cpuID has been queued and the caller must assert that core's halted
// input until a later Enter/Exit sequence grants it.
func (c *CmpSync) Enter(cpuID int) (granted bool) {
	if !c.held {
		c.held = true
		c.owner = cpuID
		return true
	}
	if c.owner == cpuID {
		return true // re-entrant by design
	}
	for _, w := range c.waiters {
		if w == cpuID {
			return false
		}
	}
	c.waiters = append(c.waiters, cpuID)
	return false
}

// Exit releases the lock held by cpuID (a no-op if cpuID is not the
// owner) and returns the next core to grant, if any waiter was queued.
func (c *CmpSync) Exit(cpuID int) (next int, granted bool) {
	if c.owner != cpuID {
		return 0, false
	}
	if len(c.waiters) == 0 {
		c.held = false
		c.owner = noOwner
		return 0, false
	}
	next = c.waiters[0]
	c.waiters = c.waiters[1:]
	c.owner = next
	return next, true
}

// Waiting reports whether cpuID is presently queued on the lock.
func (c *CmpSync) Waiting(cpuID int) bool {
	for _, w := range c.waiters {
		if w == cpuID {
			return true
		}
	}
	return false
}

// ihluSlot is one entry of the indirect-handle lock unit's associative
// table: whether the slot is in use, its current owner, the object handle
// it is locking, and a re-entrancy count.
type ihluSlot struct {
	valid  bool
	owner  int
	handle uint32
	count  int
}

// IHLU is the optional indirect-handle lock unit: a small associative
// table of per-object monitors. Each Lock/Unlock call resolves at once;
// nothing limits how many resolve in one cycle, and Cluster.Tick resolves
// one pending request per core each cycle.
type IHLU struct {
	slots   []ihluSlot
	waiters map[uint32][]int // FIFO of cores waiting on a given handle
}

// NewIHLU creates an IHLU with the given associative-table size.
func NewIHLU(slots int) *IHLU {
	return &IHLU{slots: make([]ihluSlot, slots), waiters: make(map[uint32][]int)}
}

func (h *IHLU) findSlot(handle uint32) int {
	for i := range h.slots {
		if h.slots[i].valid && h.slots[i].handle == handle {
			return i
		}
	}
	return -1
}

func (h *IHLU) freeSlot() int {
	for i := range h.slots {
		if !h.slots[i].valid {
			return i
		}
	}
	return -1
}

// Lock attempts to acquire the monitor for the given object handle on
// behalf of cpuID. granted is false if the core must halt and wait, or if
// the table is full (treated the same as contention: the caller retries).
func (h *IHLU) Lock(cpuID int, handle uint32) (granted bool) {
	if i := h.findSlot(handle); i >= 0 {
		s := &h.slots[i]
		if s.owner == cpuID {
			s.count++
			return true
		}
		h.waiters[handle] = appendIfAbsent(h.waiters[handle], cpuID)
		return false
	}
	if i := h.freeSlot(); i >= 0 {
		h.slots[i] = ihluSlot{valid: true, owner: cpuID, handle: handle, count: 1}
		return true
	}
	h.waiters[handle] = appendIfAbsent(h.waiters[handle], cpuID)
	return false
}

// Unlock releases one level of cpuID's hold on handle's monitor. If the
// hold count reaches zero the slot is freed and the next waiter (if any)
// is reported so the caller can grant it.
func (h *IHLU) Unlock(cpuID int, handle uint32) (nextWaiter int, granted bool) {
	i := h.findSlot(handle)
	if i < 0 || h.slots[i].owner != cpuID {
		return 0, false
	}
	s := &h.slots[i]
	if s.count > 1 {
		s.count--
		return 0, false
	}
	*s = ihluSlot{}
	q := h.waiters[handle]
	if len(q) == 0 {
		return 0, false
	}
	next := q[0]
	h.waiters[handle] = q[1:]
	h.slots[i] = ihluSlot{valid: true, owner: next, handle: handle, count: 1}
	return next, true
}

// Holds reports whether cpuID currently holds any IHLU monitor. A core
// holding at least one IHLU lock is exempt from a global gcHalt so the
// GC's stop-the-world barrier cannot deadlock on an in-flight monitor.
func (h *IHLU) Holds(cpuID int) bool {
	for _, s := range h.slots {
		if s.valid && s.owner == cpuID {
			return true
		}
	}
	return false
}

func appendIfAbsent(q []int, v int) []int {
	for _, x := range q {
		if x == v {
			return q
		}
	}
	return append(q, v)
}
