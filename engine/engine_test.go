package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mercury/domain/market"
	"mercury/marketdata"
)

type capture struct {
	trades []market.Trade
	tobs   []market.TopOfBook
	depths []market.SymbolId
	order  []string // interleaving of callback kinds
}

func newTestEngine(t *testing.T, opts ...Option) (*MatchingEngine, *capture) {
	t.Helper()
	rec := &capture{}
	pub := marketdata.NewPublisher()
	pub.OnTrade(func(tr market.Trade) {
		rec.trades = append(rec.trades, tr)
		rec.order = append(rec.order, "trade")
	})
	pub.OnTopOfBook(func(tob market.TopOfBook) {
		rec.tobs = append(rec.tobs, tob)
		rec.order = append(rec.order, "tob")
	})
	pub.OnDepthSnapshot(func(symbol market.SymbolId, bids, asks []market.BookLevel) {
		rec.depths = append(rec.depths, symbol)
	})
	e := New(pub, opts...)
	e.AddSymbol("XAUUSD")
	return e, rec
}

func limitDay(id market.OrderId, side market.Side, price market.Price, qty market.Quantity) market.NewOrder {
	return market.NewOrder{
		Id: id, Trader: market.TraderId(id), Symbol: "XAUUSD",
		Side: side, Type: market.Limit, Tif: market.Day, Price: price, Qty: qty,
	}
}

func TestPartialFillRestsResidual(t *testing.T) {
	e, rec := newTestEngine(t)

	e.HandleNewOrder(limitDay(1, market.Sell, 100, 10), 1)
	require.Empty(t, rec.trades)
	require.Empty(t, rec.tobs) // one-sided book, no quote

	e.HandleNewOrder(limitDay(2, market.Buy, 100, 30), 2)
	require.Len(t, rec.trades, 1)
	require.Equal(t, market.Trade{
		RestingId: 1, IncomingId: 2, Symbol: "XAUUSD",
		AggressorSide: market.Buy, Price: 100, Qty: 10, MatchTime: 2,
	}, rec.trades[0])

	// Residual 20 rests as the bid; the ask side emptied, so still no quote.
	require.Empty(t, rec.tobs)
	_, ok := e.Resting(2)
	require.True(t, ok)
	_, ok = e.Resting(1)
	require.False(t, ok)

	bid, ok := e.Book("XAUUSD").BestBid()
	require.True(t, ok)
	require.Equal(t, market.BookLevel{Price: 100, Qty: 20}, bid)
}

func TestQuoteRequiresBothSides(t *testing.T) {
	e, rec := newTestEngine(t)

	e.HandleNewOrder(limitDay(1, market.Buy, 99, 1), 1)
	require.Empty(t, rec.tobs)

	e.HandleNewOrder(limitDay(2, market.Sell, 100, 1), 2)
	require.Len(t, rec.tobs, 1)
	require.Equal(t, market.TopOfBook{
		Symbol:  "XAUUSD",
		BestBid: market.BookLevel{Price: 99, Qty: 1},
		BestAsk: market.BookLevel{Price: 100, Qty: 1},
		Valid:   true,
	}, rec.tobs[0])
}

func TestMarketOrderSweepsAndNeverRests(t *testing.T) {
	e, rec := newTestEngine(t)
	e.HandleNewOrder(limitDay(1, market.Sell, 100, 5), 1)
	e.HandleNewOrder(limitDay(2, market.Sell, 101, 5), 2)
	e.HandleNewOrder(limitDay(3, market.Sell, 102, 5), 3)

	e.HandleNewOrder(market.NewOrder{
		Id: 4, Trader: 4, Symbol: "XAUUSD", Side: market.Buy,
		Type: market.Market, Tif: market.Day, Qty: 12,
	}, 4)

	require.Len(t, rec.trades, 3)
	for _, tr := range rec.trades {
		// The crossing sentinel must never leak into printed prices.
		require.Less(t, tr.Price, market.Price(1000))
	}
	require.Equal(t, market.Price(100), rec.trades[0].Price)
	require.Equal(t, market.Price(101), rec.trades[1].Price)
	require.Equal(t, market.Price(102), rec.trades[2].Price)
	require.Equal(t, market.Quantity(2), rec.trades[2].Qty)

	_, ok := e.Resting(4)
	require.False(t, ok)
	ask, _ := e.Book("XAUUSD").BestAsk()
	require.Equal(t, market.BookLevel{Price: 102, Qty: 3}, ask)
}

func TestMarketSellUsesLowSentinel(t *testing.T) {
	e, rec := newTestEngine(t)
	e.HandleNewOrder(limitDay(1, market.Buy, 99, 10), 1)

	e.HandleNewOrder(market.NewOrder{
		Id: 2, Trader: 2, Symbol: "XAUUSD", Side: market.Sell,
		Type: market.Market, Tif: market.Day, Qty: 4,
	}, 2)

	require.Len(t, rec.trades, 1)
	require.Equal(t, market.Price(99), rec.trades[0].Price)
	require.Equal(t, market.Sell, rec.trades[0].AggressorSide)
}

func TestIOCDiscardsResidual(t *testing.T) {
	e, rec := newTestEngine(t)
	e.HandleNewOrder(limitDay(1, market.Sell, 100, 5), 1)

	e.HandleNewOrder(market.NewOrder{
		Id: 2, Trader: 2, Symbol: "XAUUSD", Side: market.Buy,
		Type: market.Limit, Tif: market.IOC, Price: 100, Qty: 8,
	}, 2)

	require.Len(t, rec.trades, 1)
	require.Equal(t, market.Quantity(5), rec.trades[0].Qty)
	_, ok := e.Resting(2)
	require.False(t, ok)
	require.Zero(t, e.Book("XAUUSD").RestingCount())
}

func TestFOKBehavesAsIOC(t *testing.T) {
	e, _ := newTestEngine(t)

	e.HandleNewOrder(market.NewOrder{
		Id: 1, Trader: 1, Symbol: "XAUUSD", Side: market.Buy,
		Type: market.Limit, Tif: market.FOK, Price: 100, Qty: 5,
	}, 1)

	_, ok := e.Resting(1)
	require.False(t, ok)
	require.Zero(t, e.Book("XAUUSD").RestingCount())
}

func TestUnknownSymbolDropped(t *testing.T) {
	e, rec := newTestEngine(t)

	e.HandleNewOrder(market.NewOrder{
		Id: 1, Trader: 1, Symbol: "NOPE", Side: market.Buy,
		Type: market.Limit, Tif: market.Day, Price: 100, Qty: 5,
	}, 1)

	require.Empty(t, rec.trades)
	require.Empty(t, rec.tobs)
	_, ok := e.Resting(1)
	require.False(t, ok)
}

func TestAddSymbolIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	e.HandleNewOrder(limitDay(1, market.Buy, 99, 5), 1)
	e.AddSymbol("XAUUSD")
	require.Equal(t, 1, e.Book("XAUUSD").RestingCount())
}

func TestCancelLifecycle(t *testing.T) {
	e, rec := newTestEngine(t)
	e.HandleNewOrder(limitDay(7, market.Buy, 99, 40), 1)

	e.HandleCancel(market.CancelOrder{Id: 7})
	_, ok := e.Resting(7)
	require.False(t, ok)
	require.Zero(t, e.Book("XAUUSD").RestingCount())
	require.Empty(t, rec.tobs) // book emptied, nothing to quote

	// Second cancel is a silent no-op.
	e.HandleCancel(market.CancelOrder{Id: 7})
	require.Zero(t, e.Book("XAUUSD").RestingCount())
}

func TestCancelPublishesFreshQuote(t *testing.T) {
	e, rec := newTestEngine(t)
	e.HandleNewOrder(limitDay(1, market.Buy, 99, 5), 1)
	e.HandleNewOrder(limitDay(2, market.Buy, 98, 5), 2)
	e.HandleNewOrder(limitDay(3, market.Sell, 101, 5), 3)
	require.Len(t, rec.tobs, 1)

	e.HandleCancel(market.CancelOrder{Id: 1})
	require.Len(t, rec.tobs, 2)
	require.Equal(t, market.BookLevel{Price: 98, Qty: 5}, rec.tobs[1].BestBid)
}

func TestFullFillClearsEngineIndex(t *testing.T) {
	e, _ := newTestEngine(t)
	e.HandleNewOrder(limitDay(1, market.Sell, 100, 10), 1)
	_, ok := e.Resting(1)
	require.True(t, ok)

	e.HandleNewOrder(limitDay(2, market.Buy, 100, 10), 2)
	_, ok = e.Resting(1)
	require.False(t, ok)
	_, ok = e.Resting(2)
	require.False(t, ok)

	// A cancel for the filled order routes nowhere.
	e.HandleCancel(market.CancelOrder{Id: 1})
}

func TestTradesPrecedeQuote(t *testing.T) {
	e, rec := newTestEngine(t)
	e.HandleNewOrder(limitDay(1, market.Sell, 100, 5), 1)
	e.HandleNewOrder(limitDay(2, market.Sell, 101, 5), 2)
	e.HandleNewOrder(limitDay(3, market.Buy, 90, 1), 3)
	rec.order = nil

	e.HandleNewOrder(limitDay(4, market.Buy, 100, 3), 4)

	// The event produced one trade and a two-sided quote, in that order.
	require.Equal(t, []string{"trade", "tob"}, rec.order)
}

func TestDepthPublishing(t *testing.T) {
	e, rec := newTestEngine(t, WithDepthPublishing(2))
	e.HandleNewOrder(limitDay(1, market.Buy, 99, 5), 1)

	require.Equal(t, []market.SymbolId{"XAUUSD"}, rec.depths)
}
