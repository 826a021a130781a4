package sqlite

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event kinds tracked by the analytics writer.
const (
	EventAbilityUsed   = "ability_used"
	EventAbilityFailed = "ability_failed"
	EventDamageDealt   = "damage_dealt"
	EventDamageEvaded  = "damage_evaded"
	EventOverflow      = "queue_overflow"
	EventDeath         = "death"
	EventSessionStart  = "session_start"
	EventSessionEnd    = "session_end"
)

// Analytics batches combat events and persists them from a background
// goroutine so the simulation loop never blocks on disk.
type Analytics struct {
	store  *Store
	logger *zap.Logger

	events chan CombatEventRow
	stop   chan struct{}
	wg     sync.WaitGroup

	flushEvery time.Duration
	batchSize  int
}

// NewAnalytics creates and starts the analytics background writer.
//
// Precondition: store and logger must be non-nil; flushEvery must be positive; batchSize must be >= 1.
// Postcondition: Returns a running Analytics whose Stop must be called to flush remaining events.
func NewAnalytics(store *Store, logger *zap.Logger, flushEvery time.Duration, batchSize int) *Analytics {
	a := &Analytics{
		store:      store,
		logger:     logger,
		events:     make(chan CombatEventRow, 1024),
		stop:       make(chan struct{}),
		flushEvery: flushEvery,
		batchSize:  batchSize,
	}
	a.wg.Add(1)
	go a.writer()
	return a
}

// Track enqueues an event for async persistence. It never blocks: when
// the buffer is full the event is dropped rather than stalling the
// simulation loop.
func (a *Analytics) Track(kind, actor, source, ability string, value float64) {
	select {
	case a.events <- CombatEventRow{
		Kind:      kind,
		Actor:     actor,
		Source:    source,
		Ability:   ability,
		Value:     value,
		CreatedAt: time.Now().UTC(),
	}:
	default:
		a.logger.Warn("analytics buffer full, dropping event",
			zap.String("kind", kind),
		)
	}
}

// Stop drains the queue, flushes remaining events, and stops the writer.
func (a *Analytics) Stop() {
	close(a.stop)
	a.wg.Wait()
}

func (a *Analytics) writer() {
	defer a.wg.Done()

	batch := make([]CombatEventRow, 0, a.batchSize)
	ticker := time.NewTicker(a.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case evt := <-a.events:
			batch = append(batch, evt)
			if len(batch) >= a.batchSize {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-a.stop:
			// Drain whatever arrived before Stop.
			for {
				select {
				case evt := <-a.events:
					batch = append(batch, evt)
				default:
					if len(batch) > 0 {
						a.flush(batch)
					}
					return
				}
			}
		}
	}
}

func (a *Analytics) flush(batch []CombatEventRow) {
	if err := a.store.InsertEvents(batch); err != nil {
		a.logger.Error("flushing analytics batch",
			zap.Int("events", len(batch)),
			zap.Error(err),
		)
		return
	}
	a.logger.Debug("flushed analytics batch",
		zap.Int("events", len(batch)),
	)
}
