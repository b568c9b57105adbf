// Simulation entry point: drives a randomized order stream for a handful
// of symbols through the SPSC ring into the matching engine and reports
// end-to-end throughput. This is the producer side of the shutdown
// contract: quiesce, wait for empty, set the flag, join.
package main

import (
	"flag"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mercury/domain/market"
	"mercury/engine"
	"mercury/infra/ring"
	"mercury/infra/sequence"
	"mercury/marketdata"
)

var symbols = []market.SymbolId{"XAUUSD", "EURUSD", "BTCUSD"}

type generator struct {
	rng  *rand.Rand
	seq  *sequence.Sequencer
	live []market.OrderId // ids eligible for cancellation
}

func newGenerator(seed int64) *generator {
	return &generator{
		rng: rand.New(rand.NewSource(seed)),
		seq: sequence.New(0),
	}
}

func (g *generator) next(ts market.Timestamp) engine.Event {
	// Half the stream is cancels once enough orders exist.
	if len(g.live) > 0 && g.rng.Intn(2) == 1 {
		id := g.live[g.rng.Intn(len(g.live))]
		return engine.CancelEvent(market.CancelOrder{Id: id}, ts)
	}

	id := market.OrderId(g.seq.Next())
	o := market.NewOrder{
		Id:     id,
		Trader: market.TraderId(g.rng.Intn(10_000) + 1),
		Symbol: symbols[g.rng.Intn(len(symbols))],
		Side:   market.Side(g.rng.Intn(2)),
		Type:   market.Limit,
		Tif:    market.Day,
		Price:  market.Price(g.rng.Intn(21) + 90),
		Qty:    market.Quantity(g.rng.Intn(500) + 1),
	}
	// A slice of the flow is market orders sweeping the book.
	if g.rng.Intn(10) == 0 {
		o.Type = market.Market
		o.Price = 0
	}
	g.live = append(g.live, id)
	if len(g.live) > 1<<16 {
		g.live = g.live[1<<14:]
	}
	return engine.NewOrderEvent(o, ts)
}

func main() {
	events := flag.Uint64("events", 1_000_000, "number of events to push")
	capacity := flag.Uint64("ring", 8192, "ring capacity (power of two)")
	seed := flag.Int64("seed", 42, "rng seed")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	pub := marketdata.NewPublisher()
	var trades, quotes uint64
	pub.OnTrade(func(market.Trade) { trades++ })
	pub.OnTopOfBook(func(market.TopOfBook) { quotes++ })

	eng := engine.New(pub)
	for _, s := range symbols {
		eng.AddSymbol(s)
	}

	buf, err := ring.New[engine.Event](*capacity)
	if err != nil {
		log.Fatal().Err(err).Msg("ring")
	}

	loop := engine.NewEventLoop(eng)
	task := loop.RunAsync(buf)

	gen := newGenerator(*seed)
	start := time.Now()

	remaining := *events
	for remaining > 0 {
		ts := market.Timestamp(time.Since(start).Nanoseconds())
		ev := gen.next(ts)
		for !buf.Push(ev) {
			// ring full: spin until the consumer catches up
		}
		remaining--
	}

	// Producer has quiesced; hand the tail to the consumer and join.
	for !buf.Empty() {
	}
	loop.SetWaitForDone()
	task.Join()

	elapsed := time.Since(start)
	log.Info().
		Uint64("events", *events).
		Uint64("trades", trades).
		Uint64("quotes", quotes).
		Dur("elapsed", elapsed).
		Float64("events_per_sec", float64(*events)/elapsed.Seconds()).
		Msg("simulation complete")
}
