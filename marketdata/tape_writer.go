package marketdata

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"mercury/domain/market"
)

// TapeWriter decouples the matching loop from outbox durability. The sink
// it exposes only enqueues on a channel; a dedicated goroutine performs the
// pebble writes. If the channel fills, trades are dropped from the tape
// (never from matching) and counted in the log.
type TapeWriter struct {
	outbox  *Outbox
	ch      chan market.Trade
	nextSeq uint64
	dropped uint64
}

func NewTapeWriter(outbox *Outbox, buffer int) *TapeWriter {
	return &TapeWriter{
		outbox: outbox,
		ch:     make(chan market.Trade, buffer),
	}
}

// Sink returns the trade handler to register on the publisher. It never
// blocks the caller.
func (w *TapeWriter) Sink() TradeHandler {
	return func(t market.Trade) {
		select {
		case w.ch <- t:
		default:
			w.dropped++
			log.Warn().Uint64("dropped", w.dropped).Msg("tape channel full, trade not journaled")
		}
	}
}

// Run drains the channel into the outbox until the tomb dies, then flushes
// whatever is already queued.
func (w *TapeWriter) Run(t *tomb.Tomb) error {
	for {
		select {
		case trade := <-w.ch:
			w.append(trade)
		case <-t.Dying():
			for {
				select {
				case trade := <-w.ch:
					w.append(trade)
				default:
					return nil
				}
			}
		}
	}
}

func (w *TapeWriter) append(trade market.Trade) {
	w.nextSeq++
	if err := w.outbox.Append(w.nextSeq, EncodeTrade(trade)); err != nil {
		log.Error().Err(err).Uint64("seq", w.nextSeq).Msg("outbox append failed")
	}
}
