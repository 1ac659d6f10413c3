package fcw

import "testing"

func TestHungarianAssignSimple(t *testing.T) {
	// Diagonal is clearly cheapest.
	cost := [][]float32{
		{0.1, 0.9},
		{0.9, 0.1},
	}
	got := HungarianAssign(cost)
	if got[0] != 0 || got[1] != 1 {
		t.Errorf("assignments = %v, want [0 1]", got)
	}
}

func TestHungarianAssignPicksGlobalOptimum(t *testing.T) {
	// Greedy matching takes (0,0) at cost 0.1 and is then forced into
	// (1,1) at 0.9, total 1.0. The optimal pairing is the anti-diagonal
	// at 0.2 + 0.3 = 0.5.
	cost := [][]float32{
		{0.1, 0.2},
		{0.3, 0.9},
	}
	got := HungarianAssign(cost)
	if got[0] != 1 || got[1] != 0 {
		t.Errorf("assignments = %v, want [1 0]", got)
	}
}

func TestHungarianAssignForbidden(t *testing.T) {
	cost := [][]float32{
		{hungarianInf, hungarianInf},
		{0.2, hungarianInf},
	}
	got := HungarianAssign(cost)
	if got[0] != -1 {
		t.Errorf("row 0 assigned %d, want -1 (all entries forbidden)", got[0])
	}
	if got[1] != 0 {
		t.Errorf("row 1 assigned %d, want 0", got[1])
	}
}

func TestHungarianAssignRectangular(t *testing.T) {
	t.Run("more rows than columns", func(t *testing.T) {
		cost := [][]float32{
			{0.5},
			{0.1},
			{0.9},
		}
		got := HungarianAssign(cost)
		assigned := 0
		for i, col := range got {
			if col == 0 {
				assigned++
				if i != 1 {
					t.Errorf("column 0 went to row %d, want row 1 (cheapest)", i)
				}
			} else if col != -1 {
				t.Errorf("row %d assigned invalid column %d", i, col)
			}
		}
		if assigned != 1 {
			t.Errorf("column 0 assigned %d times, want exactly once", assigned)
		}
	})

	t.Run("more columns than rows", func(t *testing.T) {
		cost := [][]float32{
			{0.9, 0.1, 0.5},
		}
		got := HungarianAssign(cost)
		if len(got) != 1 || got[0] != 1 {
			t.Errorf("assignments = %v, want [1]", got)
		}
	})
}

func TestHungarianAssignEmpty(t *testing.T) {
	if got := HungarianAssign(nil); got != nil {
		t.Errorf("HungarianAssign(nil) = %v, want nil", got)
	}
	got := HungarianAssign([][]float32{{}, {}})
	if len(got) != 2 || got[0] != -1 || got[1] != -1 {
		t.Errorf("zero-column assignments = %v, want [-1 -1]", got)
	}
}

func TestHungarianAssignNoDoubleAssignment(t *testing.T) {
	cost := [][]float32{
		{0.2, 0.3, 0.4, 0.1},
		{0.1, 0.2, 0.3, 0.4},
		{0.4, 0.1, 0.2, 0.3},
		{0.3, 0.4, 0.1, 0.2},
	}
	got := HungarianAssign(cost)
	seen := make(map[int]int)
	for i, col := range got {
		if col < 0 {
			t.Errorf("row %d unassigned in fully feasible matrix", i)
			continue
		}
		if prev, dup := seen[col]; dup {
			t.Errorf("column %d assigned to both rows %d and %d", col, prev, i)
		}
		seen[col] = i
	}
}
