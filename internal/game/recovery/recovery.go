// Package recovery implements the universal ability lockout timer and the
// synergy grants that let specific follow-up abilities bypass it early.
//
// Like the threat package, everything here is pure and deterministic:
// both the server pass and the client predictor run the identical code
// against the same triggering events, so the two copies stay consistent
// by construction and this state never crosses the wire.
package recovery

import "github.com/hexfray/hexfray/internal/game/ability"

// GlobalRecovery is the per-actor "all abilities locked" timer. A new
// ability use always replaces any existing instance; lockouts never stack.
//
// Invariant: 0 <= Remaining <= Duration.
type GlobalRecovery struct {
	Remaining   float64
	Duration    float64
	TriggeredBy ability.Type
}

// New creates a full lockout of the given duration in seconds.
func New(duration float64, triggeredBy ability.Type) GlobalRecovery {
	return GlobalRecovery{Remaining: duration, Duration: duration, TriggeredBy: triggeredBy}
}

// IsActive reports whether the lockout still holds.
func (r GlobalRecovery) IsActive() bool { return r.Remaining > 0 }

// Tick advances the timer by dt seconds, clamping at zero.
//
// Postcondition: Remaining never drops below 0.
func (r *GlobalRecovery) Tick(dt float64) {
	r.Remaining -= dt
	if r.Remaining < 0 {
		r.Remaining = 0
	}
}

// SynergyUnlock grants one ability early access during a lockout.
// At most one grant exists per target ability; the latest overwrites.
type SynergyUnlock struct {
	Ability     ability.Type
	UnlockAt    float64
	TriggeredBy ability.Type
}

// IsUnlocked reports whether the grant applies at the given lockout
// remaining. Monotonic: once unlocked at remaining r, it stays unlocked
// for every smaller remaining.
func (s SynergyUnlock) IsUnlocked(remaining float64) bool {
	return remaining <= s.UnlockAt
}

// Set is the per-actor collection of synergy grants, keyed by the ability
// they unlock.
type Set map[ability.Type]SynergyUnlock

// Apply installs the synergy grants triggered by a use of used, given the
// just-installed recovery. Each matching rule computes
// unlockAt = max(0, remaining - reduction) and overwrites any prior grant
// for the rule's target ability.
func (s Set) Apply(used ability.Type, rec GlobalRecovery) {
	trigger := used.SynergyTrigger()
	if trigger == ability.TriggerNone {
		return
	}
	for _, rule := range ability.Rules {
		if rule.Trigger != trigger {
			continue
		}
		unlockAt := rec.Remaining - rule.Reduction
		if unlockAt < 0 {
			unlockAt = 0
		}
		s[rule.Target] = SynergyUnlock{
			Ability:     rule.Target,
			UnlockAt:    unlockAt,
			TriggeredBy: used,
		}
	}
}

// CanUse reports whether ab is usable under the given lockout state.
// AutoAttack is exempt from the lockout entirely. With no active
// recovery every ability is usable; under an active recovery only a
// matching, reached synergy grant lets an ability through.
func CanUse(ab ability.Type, rec *GlobalRecovery, grants Set) bool {
	if ab == ability.AutoAttack {
		return true
	}
	if rec == nil || !rec.IsActive() {
		return true
	}
	grant, ok := grants[ab]
	return ok && grant.IsUnlocked(rec.Remaining)
}

// Sweep removes every grant when the owner has no active recovery,
// preventing stale grants from surviving into an unrelated future
// lockout. Returns the number removed.
func (s Set) Sweep(rec *GlobalRecovery) int {
	if rec != nil && rec.IsActive() {
		return 0
	}
	n := len(s)
	for k := range s {
		delete(s, k)
	}
	return n
}
