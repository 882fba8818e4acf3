package memarena

import "testing"

func TestAllocBumpsWithinBlock(t *testing.T) {
	a := New(1024)
	p1 := a.Alloc(32)
	p2 := a.Alloc(32)
	if &p1[0] == &p2[0] {
		t.Fatalf("expected distinct allocations")
	}
	stats := a.Stats()
	if stats.Blocks != 1 {
		t.Fatalf("expected single block, got %d", stats.Blocks)
	}
}

func TestAllocGrowsNewBlockWhenExhausted(t *testing.T) {
	a := New(64)
	a.Alloc(48)
	a.Alloc(48) // does not fit in remaining space, must grow
	stats := a.Stats()
	if stats.Blocks != 2 {
		t.Fatalf("expected growth to a second block, got %d blocks", stats.Blocks)
	}
}

func TestLargeAllocationBypassesBlocks(t *testing.T) {
	a := New(128)
	buf := a.Alloc(MaxSmall + 1)
	if len(buf) != MaxSmall+1 {
		t.Fatalf("wrong size: %d", len(buf))
	}
	stats := a.Stats()
	if stats.Blocks != 1 {
		t.Fatalf("large alloc should not create arena blocks, got %d", stats.Blocks)
	}
	if stats.LargeBytes != MaxSmall+1 {
		t.Fatalf("expected large bytes tracked, got %d", stats.LargeBytes)
	}
}

func TestFreeLargeReusesSlot(t *testing.T) {
	a := New(128)
	buf1 := a.Alloc(MaxSmall + 10)
	if !a.FreeLarge(buf1) {
		t.Fatalf("expected FreeLarge to succeed")
	}
	buf2 := a.Alloc(MaxSmall + 20)
	_ = buf2
	// the freed slot should be reused rather than appended, i.e. at most
	// one slot remains after the list is walked.
	if len(a.large) != 1 {
		t.Fatalf("expected freed slot reuse, got %d slots", len(a.large))
	}
}

func TestFreeLargeNoopOnSmall(t *testing.T) {
	a := New(128)
	buf := a.Alloc(8)
	if a.FreeLarge(buf) {
		t.Fatalf("FreeLarge should not match a small allocation")
	}
}

func TestDestroyReleasesEverything(t *testing.T) {
	a := New(128)
	a.Alloc(8)
	a.Alloc(MaxSmall + 1)
	a.Destroy()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Alloc after Destroy to panic")
		}
	}()
	a.Alloc(1)
}
