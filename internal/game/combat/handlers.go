package combat

import (
	"go.uber.org/zap"

	"github.com/hexfray/hexfray/internal/game/ability"
	"github.com/hexfray/hexfray/internal/game/actor"
	"github.com/hexfray/hexfray/internal/game/hex"
	"github.com/hexfray/hexfray/internal/game/recovery"
	"github.com/hexfray/hexfray/internal/game/threat"
	"github.com/hexfray/hexfray/internal/protocol"
)

// UseAbility runs the server-authoritative pipeline for one ability
// request. Checks short-circuit in a fixed order: terminal state
// (silent), lockout, stamina, targeting/range. On success the handler
// commits atomically: resources, domain effect, success event, fresh
// lockout, synergy grants. The command buffer is flushed before
// returning so cross-actor effects land in the same event batch.
func (e *Engine) UseAbility(actorID string, ab ability.Type, targetLoc *hex.Hex) []protocol.Event {
	a, ok := e.store.Get(actorID)
	if !ok || a.Dead {
		// Terminal state: silent no-op, no event.
		return nil
	}
	if !ab.Valid() {
		return nil
	}

	if !recovery.CanUse(ab, a.Recovery, a.Synergies) {
		return e.fail(a, ab, protocol.OnCooldown)
	}

	var events []protocol.Event
	switch ab {
	case ability.AutoAttack:
		events = e.handleAutoAttack(a, targetLoc)
	case ability.Overpower:
		events = e.handleStrike(a, ability.Overpower, targetLoc)
	case ability.Lunge:
		events = e.handleLunge(a, targetLoc)
	case ability.Knockback:
		events = e.handleKnockback(a)
	case ability.Counter:
		events = e.handleCounter(a)
	case ability.Dodge:
		events = e.handleDodge(a)
	case ability.Volley:
		events = e.handleStrike(a, ability.Volley, targetLoc)
	}

	return append(events, e.flush()...)
}

// fail emits the single terminal failure event for a rejected attempt.
func (e *Engine) fail(a *actor.Actor, ab ability.Type, reason protocol.FailReason) []protocol.Event {
	e.logger.Debug("ability rejected",
		zap.String("actor", a.ID),
		zap.String("ability", ab.String()),
		zap.String("reason", reason.String()),
	)
	return []protocol.Event{protocol.AbilityFailed{Actor: a.ID, Ability: int(ab), Reason: reason}}
}

// commit finalizes a successful use: success event mirror, lockout
// replacement, synergy grants. AutoAttack is exempt from the lockout and
// installs nothing.
func (e *Engine) commit(a *actor.Actor, ab ability.Type, targetLoc *hex.Hex) []protocol.Event {
	used := protocol.AbilityUsed{Actor: a.ID, Ability: int(ab), TargetLoc: targetLoc}
	if ab == ability.AutoAttack {
		return []protocol.Event{used}
	}
	rec := recovery.New(ab.RecoveryDuration(), ab)
	a.Recovery = &rec
	a.Synergies.Apply(ab, rec)
	return []protocol.Event{used}
}

// staminaSync mirrors the caster's stamina after a spend.
func staminaSync(a *actor.Actor) protocol.Event {
	s := a.Stamina.State
	return protocol.Incremental{Actor: a.ID, Stamina: &s}
}

// targetAt resolves the opposing actors on the requested hex, bounded by
// the ability's range from the caster. Target acquisition proper (facing
// cones, tier locks) lives outside this core; the request already names
// the hex.
func (e *Engine) targetAt(a *actor.Actor, ab ability.Type, targetLoc *hex.Hex) ([]*actor.Actor, *protocol.FailReason) {
	if targetLoc == nil {
		r := protocol.NoTargets
		return nil, &r
	}
	minR, maxR := ab.Range()
	dist := a.Loc.FlatDistance(*targetLoc)
	if dist < minR || dist > maxR {
		r := protocol.OutOfRange
		return nil, &r
	}
	targets := e.store.OpposingAtHex(*targetLoc, a.Faction)
	if len(targets) == 0 {
		r := protocol.NoTargets
		return nil, &r
	}
	return targets, nil
}

// handleAutoAttack hits every opposing actor on the target hex
// simultaneously. Free, lockout-exempt, melee range.
func (e *Engine) handleAutoAttack(a *actor.Actor, targetLoc *hex.Hex) []protocol.Event {
	targets, reason := e.targetAt(a, ability.AutoAttack, targetLoc)
	if reason != nil {
		return e.fail(a, ability.AutoAttack, *reason)
	}
	var events []protocol.Event
	for _, t := range targets {
		events = append(events, e.dealThreat(a, t, ability.AutoAttack.BaseDamage(), threat.Physical, ability.AutoAttack)...)
	}
	return append(events, e.commit(a, ability.AutoAttack, targetLoc)...)
}

// handleStrike covers the single-target outgoing-threat abilities
// (Overpower, Volley): range check, stamina gate, one new threat against
// the first opposing actor on the hex.
func (e *Engine) handleStrike(a *actor.Actor, ab ability.Type, targetLoc *hex.Hex) []protocol.Event {
	cost := ab.StaminaCost()
	if a.Stamina.State < cost {
		return e.fail(a, ab, protocol.InsufficientStamina)
	}
	targets, reason := e.targetAt(a, ab, targetLoc)
	if reason != nil {
		return e.fail(a, ab, *reason)
	}
	a.Stamina.Spend(cost)
	events := []protocol.Event{staminaSync(a)}
	events = append(events, e.dealThreat(a, targets[0], ab.BaseDamage(), threat.Physical, ab)...)
	return append(events, e.commit(a, ab, targetLoc)...)
}

// handleLunge closes the gap: the caster moves to the target's nearest
// neighbor hex and lands a threat.
func (e *Engine) handleLunge(a *actor.Actor, targetLoc *hex.Hex) []protocol.Event {
	if a.Stamina.State < ability.Lunge.StaminaCost() {
		return e.fail(a, ability.Lunge, protocol.InsufficientStamina)
	}
	targets, reason := e.targetAt(a, ability.Lunge, targetLoc)
	if reason != nil {
		return e.fail(a, ability.Lunge, *reason)
	}
	a.Stamina.Spend(ability.Lunge.StaminaCost())
	target := targets[0]
	dest := hex.ClosestNeighbor(a.Loc, target.Loc)
	a.Loc = dest
	loc := dest
	events := []protocol.Event{
		staminaSync(a),
		protocol.Incremental{Actor: a.ID, Loc: &loc},
	}
	events = append(events, e.dealThreat(a, target, ability.Lunge.BaseDamage(), threat.Physical, ability.Lunge)...)
	return append(events, e.commit(a, ability.Lunge, targetLoc)...)
}

// handleKnockback punishes the most recent attacker: reads the newest
// threat, displaces its source one hex directly away from the caster,
// and removes exactly that threat from the back of the queue.
func (e *Engine) handleKnockback(a *actor.Actor) []protocol.Event {
	if a.Stamina.State < ability.Knockback.StaminaCost() {
		return e.fail(a, ability.Knockback, protocol.InsufficientStamina)
	}
	newest, ok := a.Queue.Newest()
	if !ok {
		return e.fail(a, ability.Knockback, protocol.NoTargets)
	}
	attacker, ok := e.store.Get(newest.Source)
	if !ok || attacker.Dead {
		return e.fail(a, ability.Knockback, protocol.NoTargets)
	}
	minR, maxR := ability.Knockback.Range()
	dist := a.Loc.FlatDistance(attacker.Loc)
	if dist < minR || dist > maxR {
		return e.fail(a, ability.Knockback, protocol.OutOfRange)
	}
	a.Stamina.Spend(ability.Knockback.StaminaCost())

	pushed := hex.PushDestination(a.Loc, attacker.Loc)
	attacker.Loc = pushed
	a.Queue.RemoveNewest()

	loc := pushed
	return append([]protocol.Event{
		staminaSync(a),
		protocol.Incremental{Actor: attacker.ID, Loc: &loc},
		protocol.ClearQueue{Actor: a.ID, Clear: threat.Clear{Kind: threat.ClearLast, N: 1}},
	}, e.commit(a, ability.Knockback, nil)...)
}

// handleCounter negates the oldest threat unconditionally and, when the
// original attacker is still alive, present, and adjacent, reflects half
// the negated damage back into the attacker's own queue. A missing
// attacker silently forfeits the reflection; the negation stands.
func (e *Engine) handleCounter(a *actor.Actor) []protocol.Event {
	if a.Stamina.State < ability.Counter.StaminaCost() {
		return e.fail(a, ability.Counter, protocol.InsufficientStamina)
	}
	oldest, ok := a.Queue.Oldest()
	if !ok {
		return e.fail(a, ability.Counter, protocol.NoTargets)
	}
	a.Stamina.Spend(ability.Counter.StaminaCost())

	a.Queue.RemoveOldest()
	events := []protocol.Event{
		staminaSync(a),
		protocol.ClearQueue{Actor: a.ID, Clear: threat.Clear{Kind: threat.ClearFirst, N: 1}},
	}

	if attacker, ok := e.store.Get(oldest.Source); ok && !attacker.Dead && a.Loc.FlatDistance(attacker.Loc) == 1 {
		e.deferThreat(attacker.ID, threat.Threat{
			Source:        a.ID,
			Damage:        oldest.Damage * 0.5,
			Type:          oldest.Type,
			InsertedAt:    e.elapsed,
			TimerDuration: threat.TimerDuration(attacker.Attrs, attacker.Level, a.Level),
			Ability:       ability.Counter,
			PrecisionMod:  1.0,
		})
	}

	return append(events, e.commit(a, ability.Counter, nil)...)
}

// handleDodge clears the entire queue when it is non-empty and the
// caster can pay the percentage-based cost.
func (e *Engine) handleDodge(a *actor.Actor) []protocol.Event {
	if a.Stamina.State < ability.DodgeCost(a.Stamina.Max) {
		return e.fail(a, ability.Dodge, protocol.InsufficientStamina)
	}
	if a.Queue.IsEmpty() {
		return e.fail(a, ability.Dodge, protocol.NoTargets)
	}
	a.Stamina.Spend(ability.DodgeCost(a.Stamina.Max))
	a.Queue.Apply(threat.Clear{Kind: threat.ClearAll})
	return append([]protocol.Event{
		staminaSync(a),
		protocol.ClearQueue{Actor: a.ID, Clear: threat.Clear{Kind: threat.ClearAll}},
	}, e.commit(a, ability.Dodge, nil)...)
}
