package marketdata

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Outbox is the durable hand-off between matching and the Kafka tape: every
// trade is written here first, and the broadcaster drains pending records
// at its own pace. Delivery is at-least-once; records are deleted only
// after the broker acknowledges them.
//
// -------------------- State --------------------

type OutboxState uint8

const (
	StateNew OutboxState = iota
	StateSent
)

func (s OutboxState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

// record layout: [state:1][attempts:4][payload...]
const recordHeaderSize = 5

var errShortRecord = errors.New("outbox: record too short")

func encodeRecord(state OutboxState, attempts uint32, payload []byte) []byte {
	buf := make([]byte, recordHeaderSize+len(payload))
	buf[0] = byte(state)
	binary.BigEndian.PutUint32(buf[1:5], attempts)
	copy(buf[recordHeaderSize:], payload)
	return buf
}

func decodeRecord(b []byte) (OutboxState, uint32, []byte, error) {
	if len(b) < recordHeaderSize {
		return 0, 0, nil, errShortRecord
	}
	return OutboxState(b[0]), binary.BigEndian.Uint32(b[1:5]), b[recordHeaderSize:], nil
}

// -------------------- Outbox --------------------

type Outbox struct {
	db *pebble.DB
}

func OpenOutbox(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open outbox: %w", err)
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Append stores a new pending record under seq. Called off the hot path by
// the tape writer goroutine, never by the matching loop.
func (o *Outbox) Append(seq uint64, payload []byte) error {
	return o.db.Set(keyFor(seq), encodeRecord(StateNew, 0, payload), pebble.Sync)
}

// MarkSent flags a record as in flight, bumping its attempt count.
func (o *Outbox) MarkSent(seq uint64, payload []byte, attempts uint32) error {
	return o.db.Set(keyFor(seq), encodeRecord(StateSent, attempts, payload), pebble.Sync)
}

// MarkAcked removes an acknowledged record.
func (o *Outbox) MarkAcked(seq uint64) error {
	return o.db.Delete(keyFor(seq), pebble.Sync)
}

// Pending returns how many records await acknowledgement.
func (o *Outbox) Pending() (int, error) {
	n := 0
	err := o.Scan(func(uint64, OutboxState, uint32, []byte) error {
		n++
		return nil
	})
	return n, err
}

// Scan iterates every record in seq order. The broadcaster uses it to pick
// up NEW records and to retry SENT records left over from a crash.
func (o *Outbox) Scan(fn func(seq uint64, state OutboxState, attempts uint32, payload []byte) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		state, attempts, payload, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if err := fn(seq, state, attempts, payload); err != nil {
			return err
		}
	}
	return iter.Error()
}

// -------------------- Keys --------------------

const keyPrefix = "trade/"

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	if _, err := fmt.Sscanf(string(b[len(keyPrefix):]), "%d", &seq); err != nil {
		return 0, fmt.Errorf("outbox: bad key %q: %w", b, err)
	}
	return seq, nil
}
