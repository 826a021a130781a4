// Package client implements the predictor/reconciler half of the combat
// core: an optimistic mirror of the authoritative simulation that reacts
// to input immediately and converges on the server's broadcasts.
package client

import (
	"sync"
	"time"
)

// rttSmoothing is the exponential moving average weight for new RTT
// samples.
const rttSmoothing = 0.125

// Clock estimates the server's elapsed game time from the join handshake
// plus smoothed round-trip latency. Client-side expiry comparisons built
// on it are advisory; only the server's resolutions are ground truth.
type Clock struct {
	mu     sync.Mutex
	nowFn  func() time.Time
	base   time.Time
	offset time.Duration
	rtt    time.Duration
}

// NewClock seeds the estimator from the handshake: the server's elapsed
// time as reported in the welcome message, observed at local time now.
func NewClock(handshakeElapsed time.Duration) *Clock {
	c := &Clock{nowFn: time.Now}
	c.base = c.nowFn()
	c.offset = handshakeElapsed
	return c
}

// Now returns the estimated server elapsed game time.
func (c *Clock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset + c.nowFn().Sub(c.base)
}

// RTT returns the smoothed round-trip estimate.
func (c *Clock) RTT() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rtt
}

// Observe folds in one ping/pong exchange: sentAt and receivedAt are
// local times, serverElapsed is the server clock in the pong. The sample
// RTT is smoothed with an exponential moving average and the offset is
// re-anchored assuming symmetric latency.
func (c *Clock) Observe(sentAt, receivedAt time.Time, serverElapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sample := receivedAt.Sub(sentAt)
	if sample < 0 {
		sample = 0
	}
	if c.rtt == 0 {
		c.rtt = sample
	} else {
		c.rtt = time.Duration(float64(c.rtt)*(1-rttSmoothing) + float64(sample)*rttSmoothing)
	}

	// The pong left the server rtt/2 before we received it.
	atReceive := serverElapsed + c.rtt/2
	c.base = receivedAt
	c.offset = atReceive
}
