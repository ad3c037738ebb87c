package modbusx

import "testing"

func TestRegisterCacheSetAndGet(t *testing.T) {
	c := NewRegisterCache()
	c.SetRegisters(1, 100, []uint16{10, 20, 30})

	got := c.GetRegisters(1, 100, 3)
	want := []uint16{10, 20, 30}
	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRegisterCacheGetOmitsMissingAddresses(t *testing.T) {
	c := NewRegisterCache()
	c.SetRegisters(1, 100, []uint16{10})

	got := c.GetRegisters(1, 100, 3)
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1 (missing addresses omitted, not zero-filled)", len(got))
	}
	if got[0] != 10 {
		t.Errorf("got[0] = %d, want 10", got[0])
	}
}

func TestRegisterCacheGetUnknownUnit(t *testing.T) {
	c := NewRegisterCache()
	got := c.GetRegisters(9, 0, 2)
	if len(got) != 0 {
		t.Errorf("len(got) = %d, want 0 for an unknown unit", len(got))
	}
}

func TestRegisterCacheSetOverwritesOverlappingBlock(t *testing.T) {
	c := NewRegisterCache()
	c.SetRegisters(1, 0, []uint16{1, 2, 3})
	c.SetRegisters(1, 1, []uint16{20, 30})

	got := c.GetRegisters(1, 0, 3)
	want := []uint16{1, 20, 30}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
