// Package threat implements the bounded per-actor reaction queue: timed
// incoming-damage threats that must be reacted to before they expire.
//
// Everything in this package is a pure function over queue values. The
// same code runs inside the authoritative server pass and the client
// predictor, so nothing here may touch clocks, randomness, or I/O.
package threat

import (
	"time"

	"github.com/hexfray/hexfray/internal/game/ability"
	"github.com/hexfray/hexfray/internal/game/attr"
)

// DamageType classifies a threat for typed clears and mitigation.
type DamageType int

const (
	Physical DamageType = iota
	Magic
)

// String returns "physical" or "magic".
func (d DamageType) String() string {
	if d == Magic {
		return "magic"
	}
	return "physical"
}

// Threat is one pending incoming-damage instance. Immutable once created:
// it is destroyed by resolution, dismissal, eviction, or clear, never
// mutated in place.
type Threat struct {
	// Source is the actor id of the attacker.
	Source string `msgpack:"src"`
	// Damage is the base damage applied if the threat resolves.
	Damage float64 `msgpack:"dmg"`
	// Type is the damage classification.
	Type DamageType `msgpack:"typ"`
	// InsertedAt is the elapsed game time at creation.
	InsertedAt time.Duration `msgpack:"at"`
	// TimerDuration is the reaction window length.
	TimerDuration time.Duration `msgpack:"dur"`
	// Ability is the originating ability, or ability.Unknown when the
	// threat came from a passive attack.
	Ability ability.Type `msgpack:"abl"`
	// PrecisionMod scales the attacker's precision into the damage roll.
	// Builders must set it; 1.0 means no modifier. The zero value
	// nullifies resolved damage.
	PrecisionMod float64 `msgpack:"pre"`
}

// ExpiresAt returns the elapsed game time at which the threat resolves.
func (t Threat) ExpiresAt() time.Duration {
	return t.InsertedAt + t.TimerDuration
}

// Queue is a bounded reaction queue, oldest threat first.
//
// Invariant: len(Threats) <= Capacity at all times. Capacity may be
// recomputed from attributes, but existing contents are never silently
// truncated; only explicit operations remove entries.
type Queue struct {
	Threats  []Threat `msgpack:"threats"`
	Capacity int      `msgpack:"cap"`
}

// NewQueue creates an empty queue with the given capacity.
//
// Precondition: capacity must be in [1, 4].
func NewQueue(capacity int) *Queue {
	if capacity < 1 || capacity > 4 {
		panic("threat.NewQueue: capacity must be in [1, 4]")
	}
	return &Queue{Capacity: capacity}
}

// Capacity maps attributes to queue slots via the Focus commitment tier.
//
// Postcondition: Returns a value in [1, 4].
func Capacity(a attr.Attributes) int {
	return a.QueueCapacity()
}

// Len returns the number of queued threats.
func (q *Queue) Len() int { return len(q.Threats) }

// IsEmpty reports whether the queue has no threats.
func (q *Queue) IsEmpty() bool { return len(q.Threats) == 0 }

// IsFull reports whether an insert would evict.
func (q *Queue) IsFull() bool { return len(q.Threats) >= q.Capacity }

// Oldest returns the front threat.
//
// Postcondition: Returns (threat, true) if non-empty, zero value and
// false otherwise.
func (q *Queue) Oldest() (Threat, bool) {
	if len(q.Threats) == 0 {
		return Threat{}, false
	}
	return q.Threats[0], true
}

// Newest returns the back threat.
func (q *Queue) Newest() (Threat, bool) {
	if len(q.Threats) == 0 {
		return Threat{}, false
	}
	return q.Threats[len(q.Threats)-1], true
}

// Insert appends t. If the queue is full the oldest threat is evicted
// and returned; the caller must resolve it immediately through the same
// damage path used for timer expiry. Overflow bypasses the reaction
// window entirely so queue-flooding can never suppress damage.
//
// Postcondition: len <= Capacity; t is the newest entry; returns nil if
// nothing was evicted.
func (q *Queue) Insert(t Threat) *Threat {
	var evicted *Threat
	if q.IsFull() {
		old := q.Threats[0]
		q.Threats = append(q.Threats[:0], q.Threats[1:]...)
		evicted = &old
	}
	q.Threats = append(q.Threats, t)
	return evicted
}

// CheckExpired returns all threats whose window has closed at now.
// Pure and non-mutating: removal is the caller's separate step.
//
// Postcondition: Two calls with the same now return identical results;
// queue length is unchanged.
func (q *Queue) CheckExpired(now time.Duration) []Threat {
	var expired []Threat
	for _, t := range q.Threats {
		if now >= t.ExpiresAt() {
			expired = append(expired, t)
		}
	}
	return expired
}

// RemoveExpired drops every threat whose window has closed at now and
// returns them in original order.
func (q *Queue) RemoveExpired(now time.Duration) []Threat {
	var removed []Threat
	kept := q.Threats[:0]
	for _, t := range q.Threats {
		if now >= t.ExpiresAt() {
			removed = append(removed, t)
		} else {
			kept = append(kept, t)
		}
	}
	q.Threats = kept
	return removed
}

// RemoveOldestFrom removes the oldest threat whose Source equals source.
// Used when an authoritative damage application names its attacker.
func (q *Queue) RemoveOldestFrom(source string) (Threat, bool) {
	for i, t := range q.Threats {
		if t.Source == source {
			q.Threats = append(q.Threats[:i], q.Threats[i+1:]...)
			return t, true
		}
	}
	return Threat{}, false
}

// RemoveNewest removes and returns the back threat.
func (q *Queue) RemoveNewest() (Threat, bool) {
	if len(q.Threats) == 0 {
		return Threat{}, false
	}
	t := q.Threats[len(q.Threats)-1]
	q.Threats = q.Threats[:len(q.Threats)-1]
	return t, true
}

// RemoveOldest removes and returns the front threat.
func (q *Queue) RemoveOldest() (Threat, bool) {
	if len(q.Threats) == 0 {
		return Threat{}, false
	}
	t := q.Threats[0]
	q.Threats = append(q.Threats[:0], q.Threats[1:]...)
	return t, true
}
