package marketdata

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"mercury/domain/market"
)

// Trade tape wire format: a protobuf message encoded by hand with
// protowire, so any language with a protobuf runtime can consume the topic
// against the equivalent schema. Prices and quantities are sint64 (zigzag);
// ids and timestamps are uint64.
const (
	tapeFieldRestingId  protowire.Number = 1
	tapeFieldIncomingId protowire.Number = 2
	tapeFieldSymbol     protowire.Number = 3
	tapeFieldAggressor  protowire.Number = 4
	tapeFieldPrice      protowire.Number = 5
	tapeFieldQty        protowire.Number = 6
	tapeFieldMatchTime  protowire.Number = 7
)

// EncodeTrade serializes a trade for the outbox and the Kafka tape.
func EncodeTrade(t market.Trade) []byte {
	b := make([]byte, 0, 64)
	b = protowire.AppendTag(b, tapeFieldRestingId, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.RestingId))
	b = protowire.AppendTag(b, tapeFieldIncomingId, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.IncomingId))
	b = protowire.AppendTag(b, tapeFieldSymbol, protowire.BytesType)
	b = protowire.AppendString(b, string(t.Symbol))
	b = protowire.AppendTag(b, tapeFieldAggressor, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.AggressorSide))
	b = protowire.AppendTag(b, tapeFieldPrice, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(t.Price)))
	b = protowire.AppendTag(b, tapeFieldQty, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(t.Qty)))
	b = protowire.AppendTag(b, tapeFieldMatchTime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.MatchTime))
	return b
}

// DecodeTrade parses a tape record. Unknown fields are skipped so the
// format can grow without breaking old readers.
func DecodeTrade(b []byte) (market.Trade, error) {
	var t market.Trade
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return t, fmt.Errorf("tape: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return t, fmt.Errorf("tape: bad varint: %w", protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case tapeFieldRestingId:
				t.RestingId = market.OrderId(v)
			case tapeFieldIncomingId:
				t.IncomingId = market.OrderId(v)
			case tapeFieldAggressor:
				t.AggressorSide = market.Side(v)
			case tapeFieldPrice:
				t.Price = market.Price(protowire.DecodeZigZag(v))
			case tapeFieldQty:
				t.Qty = market.Quantity(protowire.DecodeZigZag(v))
			case tapeFieldMatchTime:
				t.MatchTime = market.Timestamp(v)
			}
		case typ == protowire.BytesType && num == tapeFieldSymbol:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return t, fmt.Errorf("tape: bad symbol: %w", protowire.ParseError(n))
			}
			b = b[n:]
			t.Symbol = market.SymbolId(v)
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return t, fmt.Errorf("tape: bad field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return t, nil
}
