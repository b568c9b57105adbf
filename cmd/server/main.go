// Demo venue: runs the matching core against a synthetic order stream and
// serves the resulting market data over websocket, Kafka and /metrics.
// Order entry is the in-process producer; the outward surfaces are
// subscribe-only.
package main

import (
	"flag"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"mercury/api/ws"
	"mercury/domain/market"
	"mercury/engine"
	"mercury/infra/ring"
	"mercury/infra/sequence"
	"mercury/jobs/broadcaster"
	"mercury/marketdata"
	"mercury/metrics"
)

func main() {
	listen := flag.String("listen", ":8080", "http listen address (/ws and /metrics)")
	symbolsArg := flag.String("symbols", "XAUUSD,EURUSD,BTCUSD", "comma-separated symbols")
	capacity := flag.Uint64("ring", 8192, "ring capacity (power of two)")
	depth := flag.Int("depth", 5, "depth levels published per side")
	rate := flag.Int("rate", 2000, "synthetic events per second")
	brokers := flag.String("kafka", "", "comma-separated Kafka brokers (empty disables Kafka)")
	tapeTopic := flag.String("tape-topic", "mercury.trades", "Kafka topic for the trade tape")
	feedTopic := flag.String("feed-topic", "mercury.quotes", "Kafka topic for top-of-book")
	outboxDir := flag.String("outbox", "./outbox", "trade outbox directory")
	seed := flag.Int64("seed", time.Now().UnixNano(), "rng seed")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var symbols []market.SymbolId
	for _, s := range strings.Split(*symbolsArg, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, market.SymbolId(s))
		}
	}
	if len(symbols) == 0 {
		log.Fatal().Msg("no symbols configured")
	}

	// --- Market data fan-out ---

	depthCache := marketdata.NewDepthCache()
	wsServer := ws.NewServer(depthCache, *depth)

	jobs := &tomb.Tomb{}

	var tapeSink marketdata.TradeHandler
	var feedSink marketdata.TopOfBookHandler
	var outbox *marketdata.Outbox
	var feed *marketdata.FeedWriter
	var bc *broadcaster.Broadcaster

	if *brokers != "" {
		var err error
		outbox, err = marketdata.OpenOutbox(*outboxDir)
		if err != nil {
			log.Fatal().Err(err).Msg("outbox")
		}
		tape := marketdata.NewTapeWriter(outbox, 1<<14)
		tapeSink = tape.Sink()
		jobs.Go(func() error { return tape.Run(jobs) })

		brokerList := strings.Split(*brokers, ",")
		bc, err = broadcaster.New(outbox, brokerList, *tapeTopic, 250*time.Millisecond)
		if err != nil {
			log.Fatal().Err(err).Msg("broadcaster")
		}
		jobs.Go(func() error { return bc.Run(jobs) })

		feed = marketdata.NewFeedWriter(brokerList, *feedTopic, 1<<12)
		feedSink = feed.Sink()
		jobs.Go(func() error { return feed.Run(jobs) })
	}

	pub := marketdata.NewPublisher()
	pub.OnTrade(func(t market.Trade) {
		if tapeSink != nil {
			tapeSink(t)
		}
		wsServer.BroadcastTrade(t)
	})
	pub.OnTopOfBook(func(tob market.TopOfBook) {
		if feedSink != nil {
			feedSink(tob)
		}
		wsServer.BroadcastTopOfBook(tob)
	})
	pub.OnDepthSnapshot(func(symbol market.SymbolId, bids, asks []market.BookLevel) {
		depthCache.Update(symbol, bids, asks)
		wsServer.BroadcastDepth(symbol, bids, asks)
	})

	// --- Matching core ---

	eng := engine.New(pub, engine.WithDepthPublishing(*depth))
	for _, s := range symbols {
		eng.AddSymbol(s)
	}

	buf, err := ring.New[engine.Event](*capacity)
	if err != nil {
		log.Fatal().Err(err).Msg("ring")
	}
	loop := engine.NewEventLoop(eng)
	task := loop.RunAsync(buf)

	// --- HTTP surfaces ---

	mux := http.NewServeMux()
	mux.Handle("/ws", wsServer)
	mux.Handle("/metrics", metrics.Handler())
	httpSrv := &http.Server{Addr: *listen, Handler: mux}
	go func() {
		log.Info().Str("addr", *listen).Msg("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server")
		}
	}()

	// --- Synthetic producer ---

	stop := make(chan struct{})
	producerDone := make(chan struct{})
	go produce(buf, symbols, *rate, *seed, stop, producerDone)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	// Shutdown order matters: quiesce the producer, drain the ring, stop
	// the consumer, then tear down the fan-out.
	close(stop)
	<-producerDone
	for !buf.Empty() {
		time.Sleep(time.Millisecond)
	}
	loop.SetWaitForDone()
	task.Join()

	if *brokers != "" {
		jobs.Kill(nil)
		_ = jobs.Wait()
	}
	if feed != nil {
		_ = feed.Close()
	}
	if bc != nil {
		_ = bc.Close()
	}
	if outbox != nil {
		_ = outbox.Close()
	}
	_ = httpSrv.Close()
}

// produce pushes randomized order flow at the configured rate. It is the
// single producer; nothing else may touch the ring's push side.
func produce(buf *ring.Buffer[engine.Event], symbols []market.SymbolId, rate int, seed int64, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	rng := rand.New(rand.NewSource(seed))
	seq := sequence.New(0)
	var live []market.OrderId
	start := time.Now()

	if rate <= 0 {
		rate = 1
	}
	interval := time.Second / time.Duration(rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ts := market.Timestamp(time.Since(start).Nanoseconds())
			var ev engine.Event
			if len(live) > 0 && rng.Intn(3) == 0 {
				ev = engine.CancelEvent(market.CancelOrder{Id: live[rng.Intn(len(live))]}, ts)
			} else {
				id := market.OrderId(seq.Next())
				live = append(live, id)
				if len(live) > 1<<14 {
					live = live[1<<12:]
				}
				ev = engine.NewOrderEvent(market.NewOrder{
					Id:     id,
					Trader: market.TraderId(rng.Intn(1000) + 1),
					Symbol: symbols[rng.Intn(len(symbols))],
					Side:   market.Side(rng.Intn(2)),
					Type:   market.Limit,
					Tif:    market.Day,
					Price:  market.Price(rng.Intn(21) + 90),
					Qty:    market.Quantity(rng.Intn(500) + 1),
				}, ts)
			}
			for !buf.Push(ev) {
				select {
				case <-stop:
					return
				default:
				}
			}
		}
	}
}
