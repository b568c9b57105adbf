package marketdata

import (
	"sync"

	"github.com/tidwall/btree"

	"mercury/domain/market"
)

// DepthCache keeps the latest aggregated depth per symbol, sorted best
// level first, so late subscribers can be primed with a full picture
// instead of waiting for the next snapshot.
//
// Unlike the book itself this is shared state: the engine's sink writes it
// and websocket handlers read it, hence the lock.
type DepthCache struct {
	mu    sync.RWMutex
	views map[market.SymbolId]*depthView
}

type depthView struct {
	bids *btree.BTreeG[market.BookLevel]
	asks *btree.BTreeG[market.BookLevel]
}

func newDepthView() *depthView {
	return &depthView{
		bids: btree.NewBTreeG(func(a, b market.BookLevel) bool { return a.Price > b.Price }),
		asks: btree.NewBTreeG(func(a, b market.BookLevel) bool { return a.Price < b.Price }),
	}
}

func NewDepthCache() *DepthCache {
	return &DepthCache{views: make(map[market.SymbolId]*depthView)}
}

// Sink returns the depth handler to register on the publisher.
func (c *DepthCache) Sink() DepthHandler {
	return c.Update
}

// Update replaces the cached view of one symbol.
func (c *DepthCache) Update(symbol market.SymbolId, bids, asks []market.BookLevel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	view, ok := c.views[symbol]
	if !ok {
		view = newDepthView()
		c.views[symbol] = view
	}
	view.bids.Clear()
	view.asks.Clear()
	for _, lvl := range bids {
		view.bids.Set(lvl)
	}
	for _, lvl := range asks {
		view.asks.Set(lvl)
	}
}

// Top returns up to n levels per side, best first. Empty slices for
// unknown symbols.
func (c *DepthCache) Top(symbol market.SymbolId, n int) (bids, asks []market.BookLevel) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	view, ok := c.views[symbol]
	if !ok {
		return nil, nil
	}
	bids = firstN(view.bids, n)
	asks = firstN(view.asks, n)
	return bids, asks
}

// Symbols lists every symbol seen so far.
func (c *DepthCache) Symbols() []market.SymbolId {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]market.SymbolId, 0, len(c.views))
	for symbol := range c.views {
		out = append(out, symbol)
	}
	return out
}

func firstN(tr *btree.BTreeG[market.BookLevel], n int) []market.BookLevel {
	out := make([]market.BookLevel, 0, n)
	tr.Scan(func(lvl market.BookLevel) bool {
		if len(out) == n {
			return false
		}
		out = append(out, lvl)
		return true
	})
	return out
}
