// Package actor provides the central actor store: combat-relevant state
// for every player and NPC in an arena, keyed by a stable opaque id.
package actor

import (
	"time"

	"github.com/hexfray/hexfray/internal/game/attr"
	"github.com/hexfray/hexfray/internal/game/hex"
	"github.com/hexfray/hexfray/internal/game/recovery"
	"github.com/hexfray/hexfray/internal/game/threat"
)

// Faction separates opposing sides. AutoAttack area hits and NPC
// targeting only ever cross faction lines; there is no friendly fire.
type Faction int

const (
	FactionPlayer Faction = iota
	FactionHostile
)

// Resource is a depletable pool following the state/max/regen pattern.
type Resource struct {
	State float64 `msgpack:"state"`
	Max   float64 `msgpack:"max"`
	Regen float64 `msgpack:"regen"`
}

// Spend deducts amount if available.
//
// Postcondition: Returns false and leaves State unchanged when
// State < amount.
func (r *Resource) Spend(amount float64) bool {
	if r.State < amount {
		return false
	}
	r.State -= amount
	return true
}

// Tick regenerates the resource by dt seconds, clamping at Max.
func (r *Resource) Tick(dt float64) {
	r.State += r.Regen * dt
	if r.State > r.Max {
		r.State = r.Max
	}
}

// Actor is one combat participant. All three reaction entities (queue,
// recovery, synergy grants) are exclusively owned by the actor record;
// cross-actor effects are expressed as emitted commands, never direct
// mutation of another actor.
type Actor struct {
	// ID is a stable opaque identifier (uuid for players, template id
	// plus uuid suffix for NPCs).
	ID string
	// Name is the display name (for logging).
	Name string
	// Faction is the actor's side.
	Faction Faction
	// Level feeds the reaction window gap multiplier.
	Level int
	// Loc is the actor's hex.
	Loc hex.Hex
	// Attrs are the derived attribute values.
	Attrs attr.Attributes
	// Health and Stamina are the actor's resource pools.
	Health  Resource
	Stamina Resource
	// Queue is the bounded reaction queue.
	Queue *threat.Queue
	// Recovery is the active lockout, nil when none.
	Recovery *recovery.GlobalRecovery
	// Synergies holds the active early-unlock grants.
	Synergies recovery.Set
	// Dead marks a terminal state; dead actors ignore ability input
	// silently and cannot be targeted.
	Dead bool
	// RespawnAt is the elapsed time at which a dead player returns to
	// the arena. Zero when no respawn is pending.
	RespawnAt time.Duration
	// NextCadence is the elapsed time of the next passive attack
	// (NPC actors only).
	NextCadence time.Duration
}

// New creates a live actor with pools and queue derived from attrs.
//
// Precondition: id must be non-empty.
func New(id, name string, faction Faction, level int, loc hex.Hex, attrs attr.Attributes) *Actor {
	maxHP := attrs.MaxHealth()
	maxSP := attrs.MaxStamina()
	return &Actor{
		ID:        id,
		Name:      name,
		Faction:   faction,
		Level:     level,
		Loc:       loc,
		Attrs:     attrs,
		Health:    Resource{State: maxHP, Max: maxHP},
		Stamina:   Resource{State: maxSP, Max: maxSP, Regen: attrs.StaminaRegen()},
		Queue:     threat.NewQueue(attrs.QueueCapacity()),
		Synergies: make(recovery.Set),
	}
}

// IsDead reports whether the actor is in a terminal state.
func (a *Actor) IsDead() bool { return a.Dead }

// Respawn returns the actor to the arena at loc with full pools and a
// cleared reaction state.
//
// Postcondition: Dead is false; the queue is empty; no lockout or
// grants survive; RespawnAt is reset.
func (a *Actor) Respawn(loc hex.Hex) {
	a.Health.State = a.Health.Max
	a.Stamina.State = a.Stamina.Max
	a.Loc = loc
	a.Queue.Apply(threat.Clear{Kind: threat.ClearAll})
	a.Recovery = nil
	for k := range a.Synergies {
		delete(a.Synergies, k)
	}
	a.Dead = false
	a.RespawnAt = 0
}

// ApplyDamage reduces health, marking the actor dead at zero.
//
// Postcondition: Health.State >= 0.
func (a *Actor) ApplyDamage(damage float64) {
	a.Health.State -= damage
	if a.Health.State <= 0 {
		a.Health.State = 0
		a.Dead = true
	}
}
