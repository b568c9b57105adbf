// Package marketdata carries everything the engine emits: the synchronous
// sink publisher on the hot path, and the plumbing that moves those events
// off-box (trade outbox, top-of-book feed, depth cache).
package marketdata

import "mercury/domain/market"

// TradeHandler receives every match, in generation order.
type TradeHandler func(market.Trade)

// TopOfBookHandler receives two-sided quote updates.
type TopOfBookHandler func(market.TopOfBook)

// DepthHandler receives aggregated depth snapshots, best level first.
type DepthHandler func(symbol market.SymbolId, bids, asks []market.BookLevel)

// Publisher fans engine output into up to three sinks. Registration replaces
// any prior sink; absent sinks are a no-op.
//
// Sinks run synchronously on the engine's consumer goroutine. A blocking
// sink stalls matching; sinks that need to do real work should hand off to
// their own goroutine and return.
type Publisher struct {
	onTrade TradeHandler
	onTOB   TopOfBookHandler
	onDepth DepthHandler
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// OnTrade registers the trade sink. Call before the event loop starts.
func (p *Publisher) OnTrade(h TradeHandler) { p.onTrade = h }

// OnTopOfBook registers the top-of-book sink. Call before the event loop starts.
func (p *Publisher) OnTopOfBook(h TopOfBookHandler) { p.onTOB = h }

// OnDepthSnapshot registers the depth sink. Call before the event loop starts.
func (p *Publisher) OnDepthSnapshot(h DepthHandler) { p.onDepth = h }

func (p *Publisher) PublishTrade(t market.Trade) {
	if p.onTrade != nil {
		p.onTrade(t)
	}
}

func (p *Publisher) PublishTopOfBook(tob market.TopOfBook) {
	if p.onTOB != nil {
		p.onTOB(tob)
	}
}

func (p *Publisher) PublishDepth(symbol market.SymbolId, bids, asks []market.BookLevel) {
	if p.onDepth != nil {
		p.onDepth(symbol, bids, asks)
	}
}
