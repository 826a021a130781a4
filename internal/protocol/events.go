package protocol

// Event is implemented by every server -> client payload so the combat
// engine can emit them and transports can frame them without a type
// switch.
type Event interface {
	EventType() string
}

// EventType returns the wire type tag for the event.
func (InsertThreat) EventType() string { return MsgInsertThreat }

// EventType returns the wire type tag for the event.
func (ApplyDamage) EventType() string { return MsgApplyDamage }

// EventType returns the wire type tag for the event.
func (ClearQueue) EventType() string { return MsgClearQueue }

// EventType returns the wire type tag for the event.
func (AbilityFailed) EventType() string { return MsgAbilityFailed }

// EventType returns the wire type tag for the event.
func (AbilityUsed) EventType() string { return MsgAbilityUsed }

// EventType returns the wire type tag for the event.
func (Incremental) EventType() string { return MsgIncremental }

// DecodeEvent decodes an envelope carrying a broadcast event into its
// concrete type. Non-event envelopes (welcome, pong) return (nil, nil)
// so callers can handle them separately.
func DecodeEvent(env Envelope) (Event, error) {
	switch env.T {
	case MsgInsertThreat:
		var ev InsertThreat
		return ev, Decode(env, &ev)
	case MsgApplyDamage:
		var ev ApplyDamage
		return ev, Decode(env, &ev)
	case MsgClearQueue:
		var ev ClearQueue
		return ev, Decode(env, &ev)
	case MsgAbilityFailed:
		var ev AbilityFailed
		return ev, Decode(env, &ev)
	case MsgAbilityUsed:
		var ev AbilityUsed
		return ev, Decode(env, &ev)
	case MsgIncremental:
		var ev Incremental
		return ev, Decode(env, &ev)
	default:
		return nil, nil
	}
}
