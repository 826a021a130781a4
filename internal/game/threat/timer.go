package threat

import (
	"time"

	"github.com/hexfray/hexfray/internal/game/attr"
)

const (
	// baseWindow is the reaction window before any scaling.
	baseWindow = time.Second
	// minWindow floors the window regardless of attribute extremes.
	minWindow = 250 * time.Millisecond
	// maxGapMultiplier caps the level-gap bonus.
	maxGapMultiplier = 3.0
)

// GapMultiplier scales the reaction window by the defender/attacker level
// gap. Higher-level defenders facing weaker attackers get proportionally
// longer windows; being outleveled is never a penalty.
//
// Postcondition: Returns a value in [1.0, 3.0].
func GapMultiplier(defenderLevel, attackerLevel int) float64 {
	gap := defenderLevel - attackerLevel
	if gap <= 0 {
		return 1.0
	}
	m := 1.0 + 0.15*float64(gap)
	if m > maxGapMultiplier {
		return maxGapMultiplier
	}
	return m
}

// TimerDuration computes the reaction window for a threat landing on a
// defender: base 1s scaled by the defender's Instinct (1 + instinct/1000)
// and the level-gap multiplier, floored at 250ms.
//
// All threats from one attacker onto one defender get identical windows
// regardless of the originating ability, so reaction timing never
// carries per-ability quirks.
func TimerDuration(def attr.Attributes, defenderLevel, attackerLevel int) time.Duration {
	instinct := 1.0 + float64(def.Instinct)/1000.0
	d := time.Duration(float64(baseWindow) * instinct * GapMultiplier(defenderLevel, attackerLevel))
	if d < minWindow {
		return minWindow
	}
	return d
}
