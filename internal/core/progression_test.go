package core

import "testing"

func TestAward(t *testing.T) {
	cases := []struct {
		level, xp, amount int
		wantLevel, wantXP int
		wantUp            bool
	}{
		{5, 100, 50, 5, 150, false},
		{5, 960, 50, 6, 0, true},   // rollover at threshold
		{5, 950, 50, 6, 0, true},   // exactly the threshold
		{5, 0, 0, 5, 0, false},
		{5, 999, 1, 6, 0, true},
		// Overflow beyond one level is discarded, never compounded.
		{5, 0, 2500, 6, 0, true},
	}
	for i, tc := range cases {
		level, xp, up := Award(tc.level, tc.xp, tc.amount)
		if level != tc.wantLevel || xp != tc.wantXP || up != tc.wantUp {
			t.Fatalf("case %d: Award(%d,%d,%d) = (%d,%d,%v), want (%d,%d,%v)",
				i, tc.level, tc.xp, tc.amount, level, xp, up, tc.wantLevel, tc.wantXP, tc.wantUp)
		}
	}
}

func TestAwardInvariant(t *testing.T) {
	// XP is always below the threshold after any award.
	level, xp := 1, 0
	for i := 0; i < 100; i++ {
		level, xp, _ = Award(level, xp, XPPerExpense)
		if xp >= XPThreshold {
			t.Fatalf("iteration %d: xp %d >= threshold %d", i, xp, XPThreshold)
		}
	}
	if level <= 1 {
		t.Fatalf("expected level to grow, still %d", level)
	}
}
