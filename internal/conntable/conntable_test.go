package conntable

import "testing"

func TestGetConnectionBindsFDAndPairsEvents(t *testing.T) {
	tbl := New(4)
	c, ok := tbl.GetConnection(7)
	if !ok {
		t.Fatalf("expected a free slot")
	}
	if c.FD != 7 {
		t.Fatalf("expected fd 7, got %d", c.FD)
	}
	if c.Read == nil || c.Write == nil {
		t.Fatalf("expected paired read/write cells")
	}
}

func TestTableExhaustion(t *testing.T) {
	tbl := New(1)
	_, ok := tbl.GetConnection(1)
	if !ok {
		t.Fatalf("expected first connection to succeed")
	}
	_, ok = tbl.GetConnection(2)
	if ok {
		t.Fatalf("expected table of capacity 1 to be exhausted")
	}
	if tbl.Free() != 0 {
		t.Fatalf("expected 0 free slots, got %d", tbl.Free())
	}
}

func TestFreeConnectionSetsFDToMinusOneAndTogglesGeneration(t *testing.T) {
	tbl := New(2)
	c, _ := tbl.GetConnection(5)
	readGenBefore := c.Read.generation
	writeGenBefore := c.Write.generation

	tbl.FreeConnection(c)

	if c.FD != -1 {
		t.Fatalf("expected fd == -1 after free, got %d", c.FD)
	}
	if c.Read.generation == readGenBefore {
		t.Fatalf("expected read generation to change on free")
	}
	if c.Write.generation == writeGenBefore {
		t.Fatalf("expected write generation to change on free")
	}
}

func TestResolveDetectsStaleTag(t *testing.T) {
	tbl := New(2)
	c, _ := tbl.GetConnection(5)
	staleTag := c.Read.Tag()

	tbl.FreeConnection(c)
	c2, _ := tbl.GetConnection(9) // recycles the same slot

	// the stale tag captured before free must not resolve to the new
	// connection bound to the recycled slot.
	_, _, ok := tbl.Resolve(staleTag, false)
	if ok {
		t.Fatalf("stale tag must not resolve after slot reuse")
	}

	freshTag := c2.Read.Tag()
	gotConn, gotEv, ok := tbl.Resolve(freshTag, false)
	if !ok || gotConn != c2 || gotEv != c2.Read {
		t.Fatalf("fresh tag must resolve to the new connection")
	}
}

func TestFreeConnectionReusesSlotViaFreeList(t *testing.T) {
	tbl := New(1)
	c, _ := tbl.GetConnection(1)
	tbl.FreeConnection(c)
	if tbl.Free() != 1 {
		t.Fatalf("expected slot back on free list")
	}
	_, ok := tbl.GetConnection(2)
	if !ok {
		t.Fatalf("expected freed slot to be reusable")
	}
}

func TestDoubleFreePanics(t *testing.T) {
	tbl := New(1)
	c, _ := tbl.GetConnection(1)
	tbl.FreeConnection(c)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double free")
		}
	}()
	tbl.FreeConnection(c)
}
