package client

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hexfray/hexfray/internal/game/ability"
	"github.com/hexfray/hexfray/internal/game/actor"
	"github.com/hexfray/hexfray/internal/game/combat"
	"github.com/hexfray/hexfray/internal/game/hex"
	"github.com/hexfray/hexfray/internal/game/recovery"
	"github.com/hexfray/hexfray/internal/game/threat"
	"github.com/hexfray/hexfray/internal/protocol"
)

// dedupWindow is the maximum insertion-time skew under which a predicted
// threat and an authoritative one are considered the same.
const dedupWindow = 50 * time.Millisecond

// predictionTTL bounds how long an unconfirmed prediction stays in the
// ledger: the dedup window plus a generous round-trip allowance.
const predictionTTL = dedupWindow + 2*time.Second

// predictedInsert records one locally predicted threat insertion awaiting
// its authoritative confirmation.
type predictedInsert struct {
	target string
	threat threat.Threat
}

// Predictor mirrors the authoritative simulation on the client. Local
// input runs through the identical pure engines immediately; authoritative
// broadcasts are then deduplicated against what was already predicted and
// otherwise applied as new state.
//
// There is no rollback: a rejected prediction leaves the mirror as-is and
// the server's corrective broadcasts resynchronize it lazily.
//
// All methods serialize through one mutex: the read loop applying
// broadcasts and the input loop predicting share the mirror.
type Predictor struct {
	localID string
	store   *actor.Store
	engine  *combat.Engine
	clock   *Clock
	logger  *zap.Logger

	mu        sync.Mutex
	predicted []predictedInsert
}

// NewPredictor creates a predictor for the local actor id over a mirrored
// store.
//
// Precondition: store, clock, and logger must be non-nil.
func NewPredictor(localID string, store *actor.Store, clock *Clock, logger *zap.Logger) *Predictor {
	return &Predictor{
		localID: localID,
		store:   store,
		engine:  combat.NewEngine(store, zeroSource{}, logger),
		clock:   clock,
		logger:  logger,
	}
}

// zeroSource never evades. Evasion is an authoritative roll; predicting a
// miss the server lands would only widen divergence, and health is
// presentation-only on the client anyway.
type zeroSource struct{}

func (zeroSource) Float64() float64 { return 1.0 }

// Store exposes the mirrored actor store (for rendering).
func (p *Predictor) Store() *actor.Store { return p.store }

// PredictUseAbility optimistically executes an ability for the local
// actor against the mirror and records any predicted threat insertions
// for later deduplication. It never waits for the server.
func (p *Predictor) PredictUseAbility(ab ability.Type, targetLoc *hex.Hex) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.engine.SetElapsed(p.clock.Now())
	events := p.engine.UseAbility(p.localID, ab, targetLoc)
	for _, ev := range events {
		if ins, ok := ev.(protocol.InsertThreat); ok {
			p.predicted = append(p.predicted, predictedInsert{target: ins.Actor, threat: ins.Threat})
		}
	}
	p.logger.Debug("predicted ability",
		zap.String("ability", ab.String()),
		zap.Int("events", len(events)),
	)
}

// Apply reconciles one authoritative event against the mirror.
func (p *Predictor) Apply(ev protocol.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch ev := ev.(type) {
	case protocol.InsertThreat:
		p.applyInsert(ev)
	case protocol.ApplyDamage:
		p.applyDamage(ev)
	case protocol.ClearQueue:
		p.applyClear(ev)
	case protocol.AbilityUsed:
		p.applyUsed(ev)
	case protocol.Incremental:
		p.applyIncremental(ev)
	case protocol.AbilityFailed:
		// Terminal for that attempt; corrective events follow if the
		// mirror predicted a success.
		p.logger.Debug("ability failed",
			zap.String("actor", ev.Actor),
			zap.String("reason", ev.Reason.String()),
		)
	}
}

// applyInsert deduplicates an authoritative insertion against predicted
// ones: same target, same source, same damage, insertion times within
// the dedup window. A match discards the authoritative duplicate; no
// match appends (covers effects the client could not have predicted).
func (p *Predictor) applyInsert(ev protocol.InsertThreat) {
	for i, pred := range p.predicted {
		if pred.target != ev.Actor || pred.threat.Source != ev.Threat.Source {
			continue
		}
		if pred.threat.Damage != ev.Threat.Damage {
			continue
		}
		skew := pred.threat.InsertedAt - ev.Threat.InsertedAt
		if skew < 0 {
			skew = -skew
		}
		if skew < dedupWindow {
			p.predicted = append(p.predicted[:i], p.predicted[i+1:]...)
			return
		}
	}
	a, ok := p.store.Get(ev.Actor)
	if !ok {
		return
	}
	// Evictions here resolve on the server; the matching ApplyDamage
	// will snap health, so the local evicted copy is just dropped.
	a.Queue.Insert(ev.Threat)
}

// applyDamage removes the oldest queue entry from the reported source and
// snaps health to the server value. Local health prediction is
// presentation-only, never authoritative.
func (p *Predictor) applyDamage(ev protocol.ApplyDamage) {
	a, ok := p.store.Get(ev.Actor)
	if !ok {
		return
	}
	a.Queue.RemoveOldestFrom(ev.Source)
	a.Health.State = ev.Health
	if a.Health.State <= 0 {
		a.Health.State = 0
		a.Dead = true
	}
}

func (p *Predictor) applyClear(ev protocol.ClearQueue) {
	if a, ok := p.store.Get(ev.Actor); ok {
		a.Queue.Apply(ev.Clear)
	}
}

// applyUsed derives recovery and synergy state locally. This state never
// crosses the wire: both sides run the identical pure functions against
// the same event stream, so the copies agree by construction. Reapplying
// the local actor's own confirmed use is idempotent.
func (p *Predictor) applyUsed(ev protocol.AbilityUsed) {
	a, ok := p.store.Get(ev.Actor)
	if !ok {
		return
	}
	ab := ability.Type(ev.Ability)
	if ab == ability.AutoAttack {
		return
	}
	rec := recovery.New(ab.RecoveryDuration(), ab)
	a.Recovery = &rec
	a.Synergies.Apply(ab, rec)
}

func (p *Predictor) applyIncremental(ev protocol.Incremental) {
	a, ok := p.store.Get(ev.Actor)
	if !ok {
		return
	}
	if ev.Stamina != nil {
		a.Stamina.State = *ev.Stamina
	}
	if ev.Health != nil {
		a.Health.State = *ev.Health
		// A positive snap is a respawn: the server only raises health
		// on a dead actor when it returns to the arena.
		if a.Dead && a.Health.State > 0 {
			a.Dead = false
		}
	}
	if ev.Loc != nil {
		a.Loc = *ev.Loc
	}
}

// Advance ticks the mirrored recoveries and expiry estimates. Client-side
// expiry is advisory: expired threats are only trimmed locally once the
// authoritative ApplyDamage arrives, so Advance ticks recovery state and
// sweeps synergies but leaves queues alone.
func (p *Predictor) Advance(dt time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	secs := dt.Seconds()
	for _, a := range p.store.All() {
		if a.Recovery != nil {
			a.Recovery.Tick(secs)
			if !a.Recovery.IsActive() {
				a.Recovery = nil
			}
		}
		a.Synergies.Sweep(a.Recovery)
	}
	p.prunePredictions()
}

// prunePredictions drops ledger entries whose confirmation can no longer
// arrive: a rejected prediction produces AbilityFailed instead of an
// InsertThreat, so its entry would otherwise wait forever.
//
// Precondition: the caller holds mu.
func (p *Predictor) prunePredictions() {
	now := p.clock.Now()
	kept := p.predicted[:0]
	for _, pred := range p.predicted {
		if now-pred.threat.InsertedAt <= predictionTTL {
			kept = append(kept, pred)
		}
	}
	p.predicted = kept
}

// PendingPredictions returns the number of predicted insertions still
// awaiting authoritative confirmation.
func (p *Predictor) PendingPredictions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.predicted)
}
