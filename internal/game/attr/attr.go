// Package attr provides actor attributes and the derived stats the combat
// core consumes: queue capacity, reaction timer scaling, attack cadence,
// evasion chance, and resource maxima.
package attr

import "time"

// Attributes holds the six derived attribute values for an actor.
// Values are the post-scaling derived numbers, not raw investment counts.
type Attributes struct {
	Might    int
	Grace    int
	Vitality int
	Focus    int
	Instinct int
	Presence int
}

// CommitmentTier is a discrete build-identity tier derived from the share
// of the total attribute budget committed to one attribute.
type CommitmentTier int

const (
	T0 CommitmentTier = iota // baseline, no identity
	T1                       // >= 30% of budget
	T2                       // >= 45% of budget
	T3                       // >= 60% of budget
)

// TierFor computes the commitment tier for one derived value against a
// total budget. Pure: it does not care which attribute produced the value.
//
// Postcondition: Returns T0 when budget is 0.
func TierFor(value, budget int) CommitmentTier {
	if budget <= 0 {
		return T0
	}
	pct := float64(value) / float64(budget) * 100.0
	switch {
	case pct >= 60.0:
		return T3
	case pct >= 45.0:
		return T2
	case pct >= 30.0:
		return T1
	default:
		return T0
	}
}

// TotalBudget sums the six derived values. It is the denominator for all
// commitment tier calculations.
func (a Attributes) TotalBudget() int {
	return a.Might + a.Grace + a.Vitality + a.Focus + a.Instinct + a.Presence
}

// FocusTier returns the commitment tier of the Focus attribute.
func (a Attributes) FocusTier() CommitmentTier {
	return TierFor(a.Focus, a.TotalBudget())
}

// QueueCapacity maps the Focus commitment tier to reaction queue slots.
//
// Postcondition: Returns a value in [1, 4].
func (a Attributes) QueueCapacity() int {
	switch a.FocusTier() {
	case T3:
		return 4
	case T2:
		return 3
	case T1:
		return 2
	default:
		return 1
	}
}

// CadenceInterval maps the Presence commitment tier to the passive attack
// interval. Higher commitment attacks faster.
func (a Attributes) CadenceInterval() time.Duration {
	switch TierFor(a.Presence, a.TotalBudget()) {
	case T3:
		return 750 * time.Millisecond
	case T2:
		return time.Second
	case T1:
		return 1500 * time.Millisecond
	default:
		return 2 * time.Second
	}
}

// EvasionChance maps the Grace commitment tier to the chance an expired
// threat resolves as a miss.
//
// Postcondition: Returns one of 0, 0.10, 0.20, 0.30.
func (a Attributes) EvasionChance() float64 {
	switch TierFor(a.Grace, a.TotalBudget()) {
	case T3:
		return 0.30
	case T2:
		return 0.20
	case T1:
		return 0.10
	default:
		return 0
	}
}

// MaxHealth derives maximum health from Vitality: 100 + 3.8 per point.
func (a Attributes) MaxHealth() float64 {
	return 100.0 + float64(a.Vitality)*3.8
}

// MaxStamina derives maximum stamina from Vitality: 100 + 3.0 per point.
func (a Attributes) MaxStamina() float64 {
	return 100.0 + float64(a.Vitality)*3.0
}

// StaminaRegen is the stamina regeneration rate in points per second.
func (a Attributes) StaminaRegen() float64 {
	return 10.0
}
