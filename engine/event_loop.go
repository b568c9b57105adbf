package engine

import (
	"sync/atomic"

	"mercury/infra/ring"
	"mercury/metrics"
)

// EventLoop drives the consumer side of the intake ring: pop, dispatch,
// repeat. The loop busy-spins; this trades a core for latency, which is the
// point of the SPSC design.
//
// Shutdown contract: the producer stops pushing, waits until Empty()
// reports true, then calls SetWaitForDone and joins. The loop re-drains
// once after observing the flag, so even a push racing the flag store is
// handled rather than stranded.
type EventLoop struct {
	engine      *MatchingEngine
	waitForDone atomic.Bool
}

func NewEventLoop(e *MatchingEngine) *EventLoop {
	return &EventLoop{engine: e}
}

// Handle joins the consumer goroutine spawned by RunAsync.
type Handle struct {
	done chan struct{}
}

func (h *Handle) Join() { <-h.done }

// RunAsync starts the consumer goroutine and returns its join handle.
func (l *EventLoop) RunAsync(buf *ring.Buffer[Event]) *Handle {
	h := &Handle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		l.Run(buf)
	}()
	return h
}

// Run consumes until SetWaitForDone, then drains whatever is left.
func (l *EventLoop) Run(buf *ring.Buffer[Event]) {
	for !l.waitForDone.Load() {
		metrics.RingDepth.Set(float64(buf.Len()))
		l.drain(buf)
	}
	l.drain(buf)
	metrics.RingDepth.Set(0)
}

// SetWaitForDone asks the loop to exit once the ring is drained.
func (l *EventLoop) SetWaitForDone() {
	l.waitForDone.Store(true)
}

func (l *EventLoop) drain(buf *ring.Buffer[Event]) {
	for {
		ev, ok := buf.Pop()
		if !ok {
			return
		}
		switch ev.Type {
		case EventNewOrder:
			l.engine.HandleNewOrder(ev.New, ev.Arrival)
		case EventCancelOrder:
			l.engine.HandleCancel(ev.Cancel)
		}
	}
}
