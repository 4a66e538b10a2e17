package core

// Award applies an XP gain to a (level, xp) pair. Crossing XPThreshold bumps
// the level by one and resets xp to zero; overflow XP beyond the threshold is
// discarded, so a single large award never grants more than one level.
func Award(level, xp, amount int) (newLevel, newXP int, levelUp bool) {
	xp += amount
	if xp >= XPThreshold {
		return level + 1, 0, true
	}
	return level, xp, false
}
