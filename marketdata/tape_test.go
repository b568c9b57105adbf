package marketdata

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mercury/domain/market"
)

func TestTradeRoundTrip(t *testing.T) {
	in := market.Trade{
		RestingId:     42,
		IncomingId:    4242,
		Symbol:        "BTCUSD",
		AggressorSide: market.Sell,
		Price:         65123,
		Qty:           7,
		MatchTime:     1_234_567_890,
	}
	out, err := DecodeTrade(EncodeTrade(in))
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestTradeNegativePrice(t *testing.T) {
	// Spread instruments trade at negative ticks; zigzag must carry them.
	in := market.Trade{
		RestingId: 1, IncomingId: 2, Symbol: "CLZ6-CLF7",
		AggressorSide: market.Buy, Price: -350, Qty: 10, MatchTime: 9,
	}
	out, err := DecodeTrade(EncodeTrade(in))
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeTrade([]byte{0xff})
	require.Error(t, err)
}

func TestDecodeEmptyIsZeroTrade(t *testing.T) {
	out, err := DecodeTrade(nil)
	require.NoError(t, err)
	require.Equal(t, market.Trade{}, out)
}
