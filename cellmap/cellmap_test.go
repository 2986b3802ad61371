package cellmap

import "testing"

func TestNewSizing(t *testing.T) {
	m := New(100, 50, 10)
	if m.Width() != 10 || m.Height() != 5 {
		t.Fatalf("New(100,50,10) size = (%d,%d), want (10,5)", m.Width(), m.Height())
	}

	m2 := New(101, 51, 10)
	if m2.Width() != 11 || m2.Height() != 6 {
		t.Fatalf("New(101,51,10) size = (%d,%d), want (11,6) [ceil division]", m2.Width(), m2.Height())
	}
}

func TestInsertDropContains(t *testing.T) {
	m := New(100, 100, 10)
	m.Insert(2, 3, 42)
	m.Insert(2, 3, 43)

	if !m.Contains(2, 3, 42) {
		t.Error("Contains(2,3,42) = false, want true")
	}
	if got := m.Cell(2, 3); len(got) != 2 {
		t.Errorf("Cell(2,3) = %v, want 2 entries", got)
	}

	m.Drop(2, 3, 42)
	if m.Contains(2, 3, 42) {
		t.Error("Contains(2,3,42) after Drop = true, want false")
	}
	if got := m.Cell(2, 3); len(got) != 1 || got[0] != 43 {
		t.Errorf("Cell(2,3) after drop = %v, want [43]", got)
	}
}

func TestInMapBounds(t *testing.T) {
	m := New(100, 100, 10)
	if !m.InMap(0, 0) || !m.InMap(9, 9) {
		t.Error("InMap boundary cells should be in map")
	}
	if m.InMap(-1, 0) || m.InMap(0, 10) {
		t.Error("InMap out-of-range cells should not be in map")
	}
}

func TestCellIndex(t *testing.T) {
	m := New(100, 100, 10)
	cx, cy := m.CellIndex(35.5, 92.0)
	if cx != 3 || cy != 9 {
		t.Errorf("CellIndex(35.5,92.0) = (%d,%d), want (3,9)", cx, cy)
	}
}

func TestInsertOutOfBoundsIsNoop(t *testing.T) {
	m := New(10, 10, 10)
	m.Insert(5, 5, 1) // out of bounds for a 1x1 grid
	if m.Cell(5, 5) != nil {
		t.Error("Insert out of bounds should not create a cell")
	}
}
