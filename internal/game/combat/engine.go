// Package combat runs the server-authoritative combat pass: ability
// handler pipelines over the actor store, the per-tick resolution of
// expired threats, and the command buffer that defers cross-actor
// effects until the originating handler completes.
package combat

import (
	"time"

	"go.uber.org/zap"

	"github.com/hexfray/hexfray/internal/game/ability"
	"github.com/hexfray/hexfray/internal/game/actor"
	"github.com/hexfray/hexfray/internal/game/hex"
	"github.com/hexfray/hexfray/internal/game/threat"
	"github.com/hexfray/hexfray/internal/protocol"
)

// respawnDelay is how long a dead player waits before returning to the
// arena origin with full pools.
const respawnDelay = 5 * time.Second

// Source yields the random draws the engine needs. A local interface
// keeps the engine deterministic under test.
type Source interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
}

// Engine executes ability requests and the per-tick pass for one arena.
//
// The engine is intentionally single-threaded: one authoritative pass per
// simulation tick, handler invocations strictly ordered between passes.
// Cross-actor mutations (reflections, cadence threats landing on peers)
// go through the command buffer and are applied after the current
// handler finishes, so no handler ever observes a peer's mid-flight
// mutation.
type Engine struct {
	store   *actor.Store
	rng     Source
	logger  *zap.Logger
	elapsed time.Duration

	// pending holds deferred cross-actor commands for the current pass.
	pending []command
}

type command struct {
	target string
	threat threat.Threat
}

// NewEngine creates an engine over the given store.
//
// Precondition: store, rng, and logger must be non-nil.
func NewEngine(store *actor.Store, rng Source, logger *zap.Logger) *Engine {
	return &Engine{store: store, rng: rng, logger: logger}
}

// Elapsed returns the authoritative elapsed game time.
func (e *Engine) Elapsed() time.Duration { return e.elapsed }

// SetElapsed moves the engine clock without running a pass. The server
// never calls this; the client predictor uses it to pin its mirrored
// engine to the estimated server clock before predicting.
func (e *Engine) SetElapsed(t time.Duration) { e.elapsed = t }

// Store exposes the underlying actor store.
func (e *Engine) Store() *actor.Store { return e.store }

// Tick advances the simulation by dt and returns the authoritative
// events produced. Order within the pass is fixed: recovery timers,
// synergy sweep, respawns, NPC cadence, threat expiry, resource regen.
func (e *Engine) Tick(dt time.Duration) []protocol.Event {
	e.elapsed += dt
	secs := dt.Seconds()
	var events []protocol.Event

	for _, a := range e.store.All() {
		if a.Recovery != nil {
			a.Recovery.Tick(secs)
			if !a.Recovery.IsActive() {
				a.Recovery = nil
			}
		}
		a.Synergies.Sweep(a.Recovery)
	}

	events = append(events, e.respawns()...)
	events = append(events, e.npcCadence()...)

	for _, a := range e.store.All() {
		if a.Dead {
			continue
		}
		for _, th := range a.Queue.RemoveExpired(e.elapsed) {
			events = append(events, e.resolveThreat(a, th, false)...)
		}
	}

	for _, a := range e.store.All() {
		if !a.Dead {
			a.Stamina.Tick(secs)
		}
	}

	events = append(events, e.flush()...)
	return events
}

// respawns returns every dead player whose respawn timer has run out to
// the arena origin. The clear precedes the resource sync so clients
// empty the mirrored queue before reviving the actor.
func (e *Engine) respawns() []protocol.Event {
	var events []protocol.Event
	for _, a := range e.store.All() {
		if !a.Dead || a.RespawnAt == 0 || e.elapsed < a.RespawnAt {
			continue
		}
		a.Respawn(hex.Hex{})
		hp, sp, loc := a.Health.State, a.Stamina.State, a.Loc
		events = append(events,
			protocol.ClearQueue{Actor: a.ID, Clear: threat.Clear{Kind: threat.ClearAll}},
			protocol.Incremental{Actor: a.ID, Health: &hp, Stamina: &sp, Loc: &loc},
		)
		e.logger.Info("actor respawned", zap.String("actor", a.ID))
	}
	return events
}

// npcCadence fires the passive attack of every hostile actor whose
// cadence interval has elapsed, targeting the lowest-id adjacent
// opposing actor. Passive attacks carry no lockout.
func (e *Engine) npcCadence() []protocol.Event {
	var events []protocol.Event
	for _, npc := range e.store.All() {
		if npc.Dead || npc.Faction != actor.FactionHostile {
			continue
		}
		if e.elapsed < npc.NextCadence {
			continue
		}
		npc.NextCadence = e.elapsed + npc.Attrs.CadenceInterval()
		target := e.adjacentOpponent(npc)
		if target == nil {
			continue
		}
		events = append(events, e.dealThreat(npc, target, ability.AutoAttack.BaseDamage(), threat.Physical, ability.AutoAttack)...)
	}
	return events
}

func (e *Engine) adjacentOpponent(a *actor.Actor) *actor.Actor {
	for _, other := range e.store.All() {
		if other.Dead || other.Faction == a.Faction {
			continue
		}
		if a.Loc.FlatDistance(other.Loc) <= 1 {
			return other
		}
	}
	return nil
}

// dealThreat builds a threat from src onto dst and inserts it, resolving
// any overflow eviction immediately through the expiry damage path.
func (e *Engine) dealThreat(src, dst *actor.Actor, damage float64, dt threat.DamageType, ab ability.Type) []protocol.Event {
	th := threat.Threat{
		Source:        src.ID,
		Damage:        damage,
		Type:          dt,
		InsertedAt:    e.elapsed,
		TimerDuration: threat.TimerDuration(dst.Attrs, dst.Level, src.Level),
		Ability:       ab,
		PrecisionMod:  1.0,
	}
	events := []protocol.Event{protocol.InsertThreat{Actor: dst.ID, Threat: th}}
	if evicted := dst.Queue.Insert(th); evicted != nil {
		// Overflow bypasses the reaction window entirely.
		events = append(events, e.resolveThreat(dst, *evicted, true)...)
	}
	return events
}

// resolveThreat applies a threat that left the queue by expiry or
// overflow: a single shared damage path. Grace-tier evasion can turn the
// resolution into a miss, but the threat is consumed either way.
// overflow tags evictions so analytics can separate them from expiries.
func (e *Engine) resolveThreat(target *actor.Actor, th threat.Threat, overflow bool) []protocol.Event {
	if target.Dead {
		return nil
	}
	if e.rng.Float64() < target.Attrs.EvasionChance() {
		e.logger.Debug("threat evaded",
			zap.String("actor", target.ID),
			zap.String("source", th.Source),
		)
		return []protocol.Event{protocol.ApplyDamage{
			Actor:    target.ID,
			Source:   th.Source,
			Damage:   0,
			Health:   target.Health.State,
			Evaded:   true,
			Overflow: overflow,
		}}
	}
	dmg := th.Damage * th.PrecisionMod
	target.ApplyDamage(dmg)
	if target.Dead && target.Faction == actor.FactionPlayer {
		target.RespawnAt = e.elapsed + respawnDelay
	}
	e.logger.Debug("threat resolved",
		zap.String("actor", target.ID),
		zap.String("source", th.Source),
		zap.Float64("damage", dmg),
		zap.Float64("health", target.Health.State),
	)
	return []protocol.Event{protocol.ApplyDamage{
		Actor:    target.ID,
		Source:   th.Source,
		Damage:   dmg,
		Health:   target.Health.State,
		Overflow: overflow,
	}}
}

// deferThreat enqueues a cross-actor threat insertion for application
// after the current handler completes.
func (e *Engine) deferThreat(target string, th threat.Threat) {
	e.pending = append(e.pending, command{target: target, threat: th})
}

// flush applies and drains the command buffer. Commands applied here may
// themselves defer more commands (an overflow reflection, for instance),
// so the buffer drains until empty.
func (e *Engine) flush() []protocol.Event {
	var events []protocol.Event
	for len(e.pending) > 0 {
		cmds := e.pending
		e.pending = nil
		for _, c := range cmds {
			target, ok := e.store.Get(c.target)
			if !ok || target.Dead {
				continue
			}
			events = append(events, protocol.InsertThreat{Actor: target.ID, Threat: c.threat})
			if evicted := target.Queue.Insert(c.threat); evicted != nil {
				events = append(events, e.resolveThreat(target, *evicted, true)...)
			}
		}
	}
	return events
}
