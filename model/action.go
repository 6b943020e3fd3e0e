package model

import (
	"fmt"
	"strings"
)

// ActionKind is the type of an emitted client event.
type ActionKind string

const (
	ActionPing      ActionKind = "ping"
	ActionSubscribe ActionKind = "subscribe"
	ActionPublish   ActionKind = "publish"
)

// ParseActionKind maps a record value onto an ActionKind.
func ParseActionKind(s string) (ActionKind, error) {
	switch k := ActionKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ActionPing, ActionSubscribe, ActionPublish:
		return k, nil
	default:
		return "", fmt.Errorf("unknown action type %q", s)
	}
}

// Action is one event in a client trace. Topic, Geofence and PayloadSize
// are only set for the kinds that carry them.
type Action struct {
	TimestampMs int64
	Location    Location
	Kind        ActionKind
	Topic       string
	Geofence    *Geofence
	PayloadSize *int
}

// NewPing builds a ping action.
func NewPing(ts int64, loc Location) Action {
	return Action{TimestampMs: ts, Location: loc, Kind: ActionPing}
}

// NewSubscribe builds a subscribe action; geofence may be nil.
func NewSubscribe(ts int64, loc Location, topic string, geofence *Geofence) Action {
	return Action{TimestampMs: ts, Location: loc, Kind: ActionSubscribe, Topic: topic, Geofence: geofence}
}

// NewPublish builds a publish action; geofence may be nil.
func NewPublish(ts int64, loc Location, topic string, geofence *Geofence, payloadSize int) Action {
	size := payloadSize
	return Action{
		TimestampMs: ts,
		Location:    loc,
		Kind:        ActionPublish,
		Topic:       topic,
		Geofence:    geofence,
		PayloadSize: &size,
	}
}
