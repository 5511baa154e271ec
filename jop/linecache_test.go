package jop

import "testing"

func testDram() *DRAMModel {
	cfg := DefaultConfig()
	cfg.ReadLatencyMin, cfg.ReadLatencyMax = 1, 1
	cfg.RefreshInterval, cfg.RefreshDuration = 1_000_000, 0
	return NewDRAMModel(256, cfg)
}

func driveRequest(t *testing.T, c *LineCache, dram *DRAMModel, req BmbRequest) (data uint32, hit bool) {
	t.Helper()
	data, hit, ok := c.Request(req)
	if !ok {
		t.Fatal("cache rejected a request while idle")
	}
	if hit {
		return data, true
	}
	for i := 0; !c.Completed(); i++ {
		if i > 100 {
			t.Fatal("cache miss never completed")
		}
		dram.Tick()
		c.Tick()
	}
	return c.PendingResult(req.Address), false
}

func TestLineCacheMissThenHit(t *testing.T) {
	dram := testDram()
	c := NewLineCache(4, 2, dram)

	_, hit := driveRequest(t, c, dram, BmbRequest{Address: 10, Opcode: BmbWrite, Data: 0xAABBCCDD})
	if hit {
		t.Fatal("first access to a cold line reported a hit")
	}

	data, hit := driveRequest(t, c, dram, BmbRequest{Address: 10, Opcode: BmbRead})
	if !hit {
		t.Fatal("access after a fill should hit")
	}
	if data != 0xAABBCCDD {
		t.Errorf("got %#x, want 0xaabbccdd", data)
	}
}

func TestLineCacheByteMaskMerge(t *testing.T) {
	dram := testDram()
	c := NewLineCache(4, 2, dram)

	driveRequest(t, c, dram, BmbRequest{Address: 0, Opcode: BmbWrite, Data: 0xAABBCCDD})

	// Mask bit set means "preserve this byte": preserve bytes 2 and 3,
	// overwrite bytes 0 and 1 with 0x11, 0x22.
	data, hit, ok := c.Request(BmbRequest{Address: 0, Opcode: BmbWrite, Data: 0x99991122, Mask: 0b1100})
	if !ok || !hit {
		t.Fatalf("got ok=%v hit=%v, want a cache hit on the resident line", ok, hit)
	}
	_ = data

	got, hit := driveRequest(t, c, dram, BmbRequest{Address: 0, Opcode: BmbRead})
	if !hit {
		t.Fatal("read-back after a masked write should hit")
	}
	if got != 0xAABB1122 {
		t.Errorf("got %#x, want 0xaabb1122 (high bytes preserved, low bytes overwritten)", got)
	}
}

func TestLineCacheSnoopInvalidatesLine(t *testing.T) {
	dram := testDram()
	c := NewLineCache(4, 2, dram)
	bus := &SnoopBus{}
	c.ConnectSnoop(bus)

	driveRequest(t, c, dram, BmbRequest{Address: 20, Opcode: BmbWrite, Data: 0x42})
	if _, hit := driveRequest(t, c, dram, BmbRequest{Address: 20, Opcode: BmbRead}); !hit {
		t.Fatal("line should be resident before the snoop pulse")
	}

	bus.Publish(SnoopPulse{Addr: 20})

	_, hit, ok := c.Request(BmbRequest{Address: 20, Opcode: BmbRead})
	if !ok {
		t.Fatal("cache rejected a request while idle")
	}
	if hit {
		t.Fatal("a snoop-invalidated line must miss on the next access")
	}
}

func TestLineCacheDirtyEvictionWritesBack(t *testing.T) {
	dram := testDram()
	c := NewLineCache(1, 1, dram) // one set, one way: any new tag evicts the resident line

	driveRequest(t, c, dram, BmbRequest{Address: 1, Opcode: BmbWrite, Data: 0xCAFE})
	// lineWords==4, so address 4 falls in the next line and collides in
	// this single-line cache, forcing eviction of the dirty line above.
	driveRequest(t, c, dram, BmbRequest{Address: 4, Opcode: BmbRead})

	if dram.mem[1] != 0xCAFE {
		t.Errorf("evicted dirty line was not written back: dram.mem[1] = %#x, want 0xcafe", dram.mem[1])
	}
}

func TestLineCacheOneOutstandingMissAtATime(t *testing.T) {
	dram := testDram()
	c := NewLineCache(4, 2, dram)

	_, _, ok := c.Request(BmbRequest{Address: 50, Opcode: BmbRead})
	if !ok {
		t.Fatal("first miss should be accepted")
	}
	if _, _, ok := c.Request(BmbRequest{Address: 60, Opcode: BmbRead}); ok {
		t.Fatal("a second request while a miss is in flight must be rejected")
	}
}
