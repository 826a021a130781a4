// Package ability defines the closed ability enumeration and the static
// lookup tables that drive validation: stamina costs, ranges, recovery
// durations, and synergy trigger categories.
package ability

// Type identifies what a combat actor intends to do.
// The zero value (Unknown) is intentionally invalid.
type Type int

const (
	Unknown    Type = iota // zero value; intentionally invalid
	AutoAttack             // passive area melee, own cadence, no lockout
	Overpower              // heavy strike
	Lunge                  // gap closer
	Knockback              // push, punishes the newest threat
	Counter                // negates the oldest threat, reflects
	Dodge                  // defensive, clears the queue
	Volley                 // ranged, used by NPCs
)

// String returns the lowercase name of the ability.
// Postcondition: returns "unknown" for unrecognized values.
func (t Type) String() string {
	switch t {
	case AutoAttack:
		return "autoattack"
	case Overpower:
		return "overpower"
	case Lunge:
		return "lunge"
	case Knockback:
		return "knockback"
	case Counter:
		return "counter"
	case Dodge:
		return "dodge"
	case Volley:
		return "volley"
	default:
		return "unknown"
	}
}

// Valid reports whether t is a member of the closed enumeration.
func (t Type) Valid() bool {
	return t > Unknown && t <= Volley
}

// RecoveryDuration returns the universal lockout in seconds started by a
// successful use of t. AutoAttack runs on its own cadence and carries no
// lockout.
func (t Type) RecoveryDuration() float64 {
	switch t {
	case Overpower:
		return 3.0
	case Lunge:
		return 2.0
	case Knockback, Dodge:
		return 1.0
	case Counter:
		return 1.5
	case Volley:
		return 4.0
	default:
		return 0
	}
}

// StaminaCost returns the flat stamina cost of t. Dodge is percentage
// based and handled by DodgeCost instead.
func (t Type) StaminaCost() float64 {
	switch t {
	case Overpower:
		return 40.0
	case Knockback, Counter:
		return 30.0
	case Lunge:
		return 20.0
	default:
		return 0
	}
}

// DodgeCost returns the stamina cost of Dodge: 15% of the actor's maximum.
func DodgeCost(maxStamina float64) float64 {
	return maxStamina * 0.15
}

// Range bounds for an ability in hex distance. min > 0 means the ability
// cannot target the caster's own hex.
func (t Type) Range() (min, max int) {
	switch t {
	case AutoAttack, Overpower:
		return 1, 1
	case Knockback:
		return 1, 2
	case Lunge:
		return 1, 4
	case Volley:
		return 1, 10
	default:
		return 0, 0
	}
}

// BaseDamage returns the outgoing threat damage created by t, or 0 for
// abilities that do not create threats directly.
func (t Type) BaseDamage() float64 {
	switch t {
	case Overpower:
		return 80.0
	case Lunge:
		return 40.0
	case AutoAttack, Volley:
		return 20.0
	default:
		return 0
	}
}

// Trigger is a synergy trigger category. Abilities sharing a category
// fire the same synergy rules.
type Trigger int

const (
	TriggerNone Trigger = iota
	TriggerGapCloser
	TriggerHeavyStrike
	TriggerPush
	TriggerDefensive
)

// SynergyTrigger returns the trigger category for t, or TriggerNone for
// abilities that start no combos.
func (t Type) SynergyTrigger() Trigger {
	switch t {
	case Lunge:
		return TriggerGapCloser
	case Overpower:
		return TriggerHeavyStrike
	case Knockback:
		return TriggerPush
	case Dodge:
		return TriggerDefensive
	default:
		return TriggerNone
	}
}

// SynergyRule declares that using any ability with the given trigger
// category unlocks the target ability Reduction seconds before the
// lockout would otherwise expire.
type SynergyRule struct {
	Trigger   Trigger
	Target    Type
	Reduction float64
}

// Rules is the static synergy table. Multiple rules may share a trigger;
// each installs at most one unlock grant for its target ability.
var Rules = []SynergyRule{
	{Trigger: TriggerGapCloser, Target: Overpower, Reduction: 0.5},
	{Trigger: TriggerHeavyStrike, Target: Knockback, Reduction: 1.0},
}
