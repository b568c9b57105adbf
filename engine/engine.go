// Package engine routes order flow across per-symbol books and publishes
// the resulting market data. All state here belongs to the consumer
// goroutine of the event loop; nothing is synchronized.
package engine

import (
	"github.com/rs/zerolog/log"

	"mercury/domain/book"
	"mercury/domain/market"
	"mercury/marketdata"
	"mercury/metrics"
)

const defaultPoolSize = 1 << 16

// MatchingEngine owns the set of books and a global order→symbol index so
// cancels route without naming a symbol. The index holds exactly the orders
// currently resting somewhere.
type MatchingEngine struct {
	books        map[market.SymbolId]*book.OrderBook
	orderSymbols map[market.OrderId]market.SymbolId
	pub          *marketdata.Publisher
	pool         *book.OrderPool
	depth        int
}

type Option func(*MatchingEngine)

// WithDepthPublishing makes the engine publish an aggregated depth snapshot
// of the touched symbol, `levels` deep per side, after every handled event.
func WithDepthPublishing(levels int) Option {
	return func(e *MatchingEngine) { e.depth = levels }
}

// WithPoolSize overrides the resting-order pool capacity.
func WithPoolSize(n int) Option {
	return func(e *MatchingEngine) { e.pool = book.NewOrderPool(n) }
}

func New(pub *marketdata.Publisher, opts ...Option) *MatchingEngine {
	e := &MatchingEngine{
		books:        make(map[market.SymbolId]*book.OrderBook),
		orderSymbols: make(map[market.OrderId]market.SymbolId),
		pub:          pub,
		pool:         book.NewOrderPool(defaultPoolSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddSymbol creates an empty book for the symbol. Idempotent.
func (e *MatchingEngine) AddSymbol(symbol market.SymbolId) {
	if _, ok := e.books[symbol]; ok {
		return
	}
	e.books[symbol] = book.NewOrderBook(symbol, e.pool)
}

// HandleNewOrder matches an incoming order and rests any Limit+Day
// residual. Orders for unknown symbols are dropped.
func (e *MatchingEngine) HandleNewOrder(o market.NewOrder, ts market.Timestamp) {
	metrics.EventsTotal.WithLabelValues("new_order").Inc()

	b, ok := e.books[o.Symbol]
	if !ok {
		metrics.UnknownSymbolDrops.Inc()
		log.Debug().Str("symbol", string(o.Symbol)).Uint64("order", uint64(o.Id)).
			Msg("drop order for unknown symbol")
		return
	}

	incoming := e.pool.Get()
	*incoming = book.Order{
		Id:        o.Id,
		Trader:    o.Trader,
		Remaining: o.Qty,
		Price:     o.Price,
		Side:      o.Side,
		Arrival:   ts,
	}

	// Market orders cross every level: swap the price for the signed
	// extreme. The sentinel never leaks into trades, which print at the
	// resting price.
	if o.Type == market.Market {
		if o.Side == market.Buy {
			incoming.Price = market.MaxPrice
		} else {
			incoming.Price = market.MinPrice
		}
	}

	trades, residual := b.MatchIncoming(incoming, ts)

	for _, t := range trades {
		metrics.TradesTotal.Inc()
		e.pub.PublishTrade(t)
		// Mirror the book's own index: a resting order seen in a trade
		// and no longer in the book is fully filled.
		if !b.Has(t.RestingId) {
			delete(e.orderSymbols, t.RestingId)
		}
	}

	// Only Limit+Day residuals rest. IOC and FOK discard the remainder;
	// market orders never rest regardless of tif.
	if o.Type == market.Limit && o.Tif == market.Day && residual > 0 {
		b.AddOrder(incoming)
		e.orderSymbols[o.Id] = o.Symbol
		metrics.OrdersRested.Inc()
	} else {
		e.pool.Put(incoming)
	}

	e.publishQuotes(b)
}

// HandleCancel removes a resting order, routing by the order→symbol index.
// Unknown ids are a no-op.
func (e *MatchingEngine) HandleCancel(c market.CancelOrder) {
	metrics.EventsTotal.WithLabelValues("cancel").Inc()

	symbol, ok := e.orderSymbols[c.Id]
	if !ok {
		metrics.CancelMisses.Inc()
		return
	}
	b := e.books[symbol]
	if !b.CancelOrder(c.Id) {
		// Index said resting but the book disagrees; drop the stale entry.
		log.Warn().Uint64("order", uint64(c.Id)).Str("symbol", string(symbol)).
			Msg("order index out of sync with book")
		delete(e.orderSymbols, c.Id)
		metrics.CancelMisses.Inc()
		return
	}
	delete(e.orderSymbols, c.Id)
	e.publishQuotes(b)
}

// Resting reports whether an order currently rests, and where.
func (e *MatchingEngine) Resting(id market.OrderId) (market.SymbolId, bool) {
	symbol, ok := e.orderSymbols[id]
	return symbol, ok
}

// Book returns the book for a symbol, nil if the symbol is unknown.
func (e *MatchingEngine) Book(symbol market.SymbolId) *book.OrderBook {
	return e.books[symbol]
}

// publishQuotes emits top-of-book and, if configured, a depth snapshot.
// Top-of-book goes out only when both sides are populated: downstream
// consumers expect a two-sided quote, and one-sided states are transient.
func (e *MatchingEngine) publishQuotes(b *book.OrderBook) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if okBid && okAsk {
		e.pub.PublishTopOfBook(market.TopOfBook{
			Symbol:  b.Symbol(),
			BestBid: bid,
			BestAsk: ask,
			Valid:   true,
		})
	}
	if e.depth > 0 {
		e.pub.PublishDepth(b.Symbol(), b.Bids(e.depth), b.Asks(e.depth))
	}
}
