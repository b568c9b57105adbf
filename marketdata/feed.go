package marketdata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	tomb "gopkg.in/tomb.v2"

	"mercury/domain/market"
)

// FeedWriter publishes top-of-book updates to a Kafka topic, keyed by
// symbol so each instrument's quotes stay ordered within a partition.
// Like the tape writer, the registered sink only enqueues; the broker
// round-trip happens on the feed goroutine.
type FeedWriter struct {
	writer *kafka.Writer
	ch     chan market.TopOfBook
}

func NewFeedWriter(brokers []string, topic string, buffer int) *FeedWriter {
	return &FeedWriter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
		ch: make(chan market.TopOfBook, buffer),
	}
}

// Sink returns the top-of-book handler to register on the publisher.
// Quotes are droppable: a newer one always follows.
func (w *FeedWriter) Sink() TopOfBookHandler {
	return func(tob market.TopOfBook) {
		select {
		case w.ch <- tob:
		default:
		}
	}
}

// Run publishes queued quotes until the tomb dies.
func (w *FeedWriter) Run(t *tomb.Tomb) error {
	ctx := t.Context(context.Background())
	for {
		select {
		case tob := <-w.ch:
			w.publish(ctx, tob)
		case <-t.Dying():
			return nil
		}
	}
}

func (w *FeedWriter) publish(ctx context.Context, tob market.TopOfBook) {
	value, err := json.Marshal(tob)
	if err != nil {
		log.Error().Err(err).Msg("marshal top-of-book")
		return
	}
	err = w.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(tob.Symbol),
		Value: value,
	})
	if err != nil {
		log.Error().Err(err).Str("symbol", string(tob.Symbol)).Msg("feed publish failed")
	}
}

func (w *FeedWriter) Close() error {
	return w.writer.Close()
}
