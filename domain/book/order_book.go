package book

import "mercury/domain/market"

// OrderBook holds one symbol's liquidity: a bid ladder and an ask ladder of
// price levels, plus an id index pointing at the resting node itself so
// cancellation never scans.
//
// The book is single-writer. Everything here runs on the engine's consumer
// goroutine and needs no locks.
type OrderBook struct {
	symbol market.SymbolId
	bids   *RBTree
	asks   *RBTree
	index  map[market.OrderId]*Order
	pool   *OrderPool
}

// NewOrderBook creates an empty book. The pool may be shared across books;
// the book returns filled and cancelled orders to it.
func NewOrderBook(symbol market.SymbolId, pool *OrderPool) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		bids:   NewRBTree(),
		asks:   NewRBTree(),
		index:  make(map[market.OrderId]*Order),
		pool:   pool,
	}
}

func (b *OrderBook) Symbol() market.SymbolId { return b.symbol }

// AddOrder rests an order at the tail of its price level. No matching
// happens here; the caller matches first and rests the residual.
// Precondition: o.Remaining > 0. A reused id overwrites the index mapping
// and orphans the earlier node; id uniqueness is the producer's contract.
func (b *OrderBook) AddOrder(o *Order) {
	ladder := b.asks
	if o.Side == market.Buy {
		ladder = b.bids
	}
	ladder.UpsertLevel(o.Price).Enqueue(o)
	b.index[o.Id] = o
}

// CancelOrder unlinks a resting order in O(1). Returns false for unknown
// ids; that is a no-op, not an error.
func (b *OrderBook) CancelOrder(id market.OrderId) bool {
	o, ok := b.index[id]
	if !ok {
		return false
	}
	lvl := o.level
	lvl.Unlink(o)
	if lvl.Empty() {
		b.dropLevel(o.Side, lvl.Price)
	}
	delete(b.index, id)
	b.pool.Put(o)
	return true
}

// MatchIncoming sweeps the opposite side with the aggressor while prices
// cross, best level first, oldest order first within a level. Trades print
// at the resting price. Returns the trades in generation order and the
// unfilled residual; the aggressor's Remaining is left at that residual.
func (b *OrderBook) MatchIncoming(incoming *Order, ts market.Timestamp) ([]market.Trade, market.Quantity) {
	var trades []market.Trade

	for incoming.Remaining > 0 {
		var lvl *PriceLevel
		if incoming.Side == market.Buy {
			lvl = b.asks.MinLevel()
		} else {
			lvl = b.bids.MaxLevel()
		}
		if lvl == nil {
			break
		}
		if !crosses(incoming.Side, incoming.Price, lvl.Price) {
			break
		}

		resting := lvl.Head()
		traded := min(incoming.Remaining, resting.Remaining)
		trades = append(trades, market.Trade{
			RestingId:     resting.Id,
			IncomingId:    incoming.Id,
			Symbol:        b.symbol,
			AggressorSide: incoming.Side,
			Price:         resting.Price,
			Qty:           traded,
			MatchTime:     ts,
		})

		incoming.Remaining -= traded
		resting.Remaining -= traded
		lvl.TotalQty -= traded

		if resting.Remaining == 0 {
			lvl.Unlink(resting)
			delete(b.index, resting.Id)
			b.pool.Put(resting)
			if lvl.Empty() {
				b.dropLevel(incoming.Side.Opposite(), lvl.Price)
			}
		}
	}

	return trades, incoming.Remaining
}

// Has reports whether an order currently rests in this book.
func (b *OrderBook) Has(id market.OrderId) bool {
	_, ok := b.index[id]
	return ok
}

// RestingCount returns the number of resting orders.
func (b *OrderBook) RestingCount() int { return len(b.index) }

// BestBid returns the highest bid level, aggregated.
func (b *OrderBook) BestBid() (market.BookLevel, bool) {
	lvl := b.bids.MaxLevel()
	if lvl == nil {
		return market.BookLevel{}, false
	}
	return lvl.Level(), true
}

// BestAsk returns the lowest ask level, aggregated.
func (b *OrderBook) BestAsk() (market.BookLevel, bool) {
	lvl := b.asks.MinLevel()
	if lvl == nil {
		return market.BookLevel{}, false
	}
	return lvl.Level(), true
}

// Bids returns up to depth bid levels, best first.
func (b *OrderBook) Bids(depth int) []market.BookLevel {
	out := make([]market.BookLevel, 0, depth)
	b.bids.ForEachDescending(func(lvl *PriceLevel) bool {
		if len(out) == depth {
			return false
		}
		out = append(out, lvl.Level())
		return true
	})
	return out
}

// Asks returns up to depth ask levels, best first.
func (b *OrderBook) Asks(depth int) []market.BookLevel {
	out := make([]market.BookLevel, 0, depth)
	b.asks.ForEachAscending(func(lvl *PriceLevel) bool {
		if len(out) == depth {
			return false
		}
		out = append(out, lvl.Level())
		return true
	})
	return out
}

func (b *OrderBook) dropLevel(side market.Side, price market.Price) {
	if side == market.Buy {
		b.bids.DeleteLevel(price)
	} else {
		b.asks.DeleteLevel(price)
	}
}

func crosses(aggressor market.Side, limit, resting market.Price) bool {
	if aggressor == market.Buy {
		return limit >= resting
	}
	return limit <= resting
}
