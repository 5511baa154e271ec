package jop

// SnoopBus is the broadcast channel carrying cache-invalidation hints.
// Every core's line cache subscribes; the memory controller publishes a
// pulse on iastore (mandatory, arrays may be large and aliased) and on
// putfield/putstatic (advisory: broadcast unconditionally and let the
// cache ignore it if the address isn't resident).
type SnoopBus struct {
	subscribers []func(SnoopPulse)
}

// Subscribe registers a listener and returns its subscriber index.
func (b *SnoopBus) Subscribe(fn func(SnoopPulse)) int {
	b.subscribers = append(b.subscribers, fn)
	return len(b.subscribers) - 1
}

// Publish broadcasts a single-cycle pulse to every subscriber.
func (b *SnoopBus) Publish(p SnoopPulse) {
	p.Valid = true
	for _, fn := range b.subscribers {
		fn(p)
	}
}
