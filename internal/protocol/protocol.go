// Package protocol defines the wire messages exchanged between the game
// server and clients, and the msgpack envelope that frames them.
//
// Events flow one way: the server broadcasts authoritative events on the
// reliable-ordered channel and clients apply them. Requests flow the
// other way. Recovery and synergy state never appear here; both sides
// derive them locally from UseAbility events.
package protocol

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/hexfray/hexfray/internal/game/attr"
	"github.com/hexfray/hexfray/internal/game/hex"
	"github.com/hexfray/hexfray/internal/game/threat"
)

// Client -> server message types.
const (
	MsgJoin       = "join"
	MsgUseAbility = "use"
	MsgPing       = "ping"
)

// Server -> client message types.
const (
	MsgWelcome       = "welcome"
	MsgInsertThreat  = "threat"
	MsgApplyDamage   = "damage"
	MsgClearQueue    = "clear"
	MsgAbilityFailed = "fail"
	MsgAbilityUsed   = "used"
	MsgIncremental   = "incr"
	MsgPong          = "pong"
	MsgError         = "error"
)

// Envelope wraps every outgoing message with a type tag.
type Envelope struct {
	T string `msgpack:"t"`
	D []byte `msgpack:"d,omitempty"`
}

// Pack encodes a payload into an Envelope and marshals the whole frame.
//
// Postcondition: Returns a non-empty frame or a non-nil error.
func Pack(t string, payload any) ([]byte, error) {
	d, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", t, err)
	}
	frame, err := msgpack.Marshal(Envelope{T: t, D: d})
	if err != nil {
		return nil, fmt.Errorf("framing %s: %w", t, err)
	}
	return frame, nil
}

// Unpack decodes a frame into its envelope. The payload stays raw so the
// dispatcher can decode it once the type tag is known.
func Unpack(frame []byte) (Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	return env, nil
}

// Decode unmarshals an envelope payload into out.
func Decode(env Envelope, out any) error {
	if err := msgpack.Unmarshal(env.D, out); err != nil {
		return fmt.Errorf("decoding %s payload: %w", env.T, err)
	}
	return nil
}

// FailReason enumerates terminal validation failures.
type FailReason int

const (
	OnCooldown FailReason = iota
	InsufficientStamina
	NoTargets
	OutOfRange
)

// String returns the reason in snake case for logs and analytics.
func (r FailReason) String() string {
	switch r {
	case OnCooldown:
		return "on_cooldown"
	case InsufficientStamina:
		return "insufficient_stamina"
	case NoTargets:
		return "no_targets"
	case OutOfRange:
		return "out_of_range"
	default:
		return "unknown"
	}
}

// JoinRequest starts a session. Ticket is a signed join ticket issued out
// of band.
type JoinRequest struct {
	Ticket string `msgpack:"ticket"`
	Name   string `msgpack:"name"`
}

// Welcome confirms a join. It carries the clock handshake (the server's
// elapsed game time at send, which seeds the client's clock estimator)
// and the actor snapshot the client mirrors.
type Welcome struct {
	ActorID   string          `msgpack:"actor"`
	Attrs     attr.Attributes `msgpack:"attrs"`
	Level     int             `msgpack:"level"`
	Loc       hex.Hex         `msgpack:"loc"`
	ElapsedMs int64           `msgpack:"elapsed"`
	TickEvery time.Duration   `msgpack:"tick"`
}

// UseAbilityRequest asks the server to execute an ability. TargetLoc is
// optional; abilities that read the queue ignore it.
type UseAbilityRequest struct {
	Ability   int      `msgpack:"ability"`
	TargetLoc *hex.Hex `msgpack:"loc,omitempty"`
}

// Ping carries the client send time for RTT estimation.
type Ping struct {
	SentMs int64 `msgpack:"sent"`
}

// Pong echoes the ping and adds the server's elapsed game time.
type Pong struct {
	SentMs    int64 `msgpack:"sent"`
	ElapsedMs int64 `msgpack:"elapsed"`
}

// InsertThreat is the authoritative "a threat entered this queue" event.
type InsertThreat struct {
	Actor  string        `msgpack:"actor"`
	Threat threat.Threat `msgpack:"threat"`
}

// ApplyDamage is the authoritative damage application. Health is the
// server-side post-damage value clients must snap to. Overflow marks a
// resolution forced by queue eviction rather than timer expiry.
type ApplyDamage struct {
	Actor    string  `msgpack:"actor"`
	Source   string  `msgpack:"source"`
	Damage   float64 `msgpack:"damage"`
	Health   float64 `msgpack:"health"`
	Evaded   bool    `msgpack:"evaded"`
	Overflow bool    `msgpack:"overflow,omitempty"`
}

// ClearQueue mirrors a typed clear applied to an actor's queue.
type ClearQueue struct {
	Actor string       `msgpack:"actor"`
	Clear threat.Clear `msgpack:"clear"`
}

// AbilityFailed reports a rejected ability use. Never retried
// automatically; the actor must re-issue input.
type AbilityFailed struct {
	Actor   string     `msgpack:"actor"`
	Ability int        `msgpack:"ability"`
	Reason  FailReason `msgpack:"reason"`
}

// AbilityUsed mirrors a successful UseAbility request. Clients derive
// recovery and synergy state from this event locally.
type AbilityUsed struct {
	Actor     string   `msgpack:"actor"`
	Ability   int      `msgpack:"ability"`
	TargetLoc *hex.Hex `msgpack:"loc,omitempty"`
}

// Incremental syncs one resource or location component.
type Incremental struct {
	Actor   string   `msgpack:"actor"`
	Stamina *float64 `msgpack:"stamina,omitempty"`
	Health  *float64 `msgpack:"health,omitempty"`
	Loc     *hex.Hex `msgpack:"loc,omitempty"`
}
