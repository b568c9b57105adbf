package engine

import "mercury/domain/market"

type EventType uint8

const (
	EventNewOrder EventType = iota
	EventCancelOrder
)

// Event is the envelope carried through the intake ring: a tag, both
// payload variants inline, and the arrival timestamp. It is a plain value
// so ring slots copy it without allocation or indirection.
type Event struct {
	Type    EventType
	New     market.NewOrder
	Cancel  market.CancelOrder
	Arrival market.Timestamp
}

// NewOrderEvent wraps a new-order instruction with its arrival time.
func NewOrderEvent(o market.NewOrder, ts market.Timestamp) Event {
	return Event{Type: EventNewOrder, New: o, Arrival: ts}
}

// CancelEvent wraps a cancel instruction with its arrival time.
func CancelEvent(c market.CancelOrder, ts market.Timestamp) Event {
	return Event{Type: EventCancelOrder, Cancel: c, Arrival: ts}
}
