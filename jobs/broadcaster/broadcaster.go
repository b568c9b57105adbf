// Package broadcaster drains the trade outbox onto the Kafka tape topic.
// It is the only component that talks to the broker for trades; matching
// never waits on Kafka.
package broadcaster

import (
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"mercury/marketdata"
	"mercury/metrics"
)

type Broadcaster struct {
	outbox   *marketdata.Outbox
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
}

func New(outbox *marketdata.Outbox, brokers []string, topic string, interval time.Duration) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		outbox:   outbox,
		producer: producer,
		topic:    topic,
		interval: interval,
	}, nil
}

// Run scans the outbox on a ticker until the tomb dies. Records are
// republished until the broker acknowledges; consumers must tolerate
// duplicates (the tape is at-least-once, keyed by outbox seq).
func (b *Broadcaster) Run(t *tomb.Tomb) error {
	log.Info().Str("topic", b.topic).Msg("broadcaster started")
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.Dying():
			return nil
		case <-ticker.C:
			b.drainOnce()
		}
	}
}

func (b *Broadcaster) drainOnce() {
	err := b.outbox.Scan(func(seq uint64, state marketdata.OutboxState, attempts uint32, payload []byte) error {
		// Mark SENT before publishing so a crash between the two steps
		// re-sends rather than loses.
		if err := b.outbox.MarkSent(seq, payload, attempts+1); err != nil {
			return err
		}

		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.StringEncoder(strconv.FormatUint(seq, 10)),
			Value: sarama.ByteEncoder(payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			log.Warn().Err(err).Uint64("seq", seq).Uint32("attempts", attempts+1).
				Msg("tape publish failed, will retry")
			return nil
		}

		metrics.OutboxPublished.Inc()
		return b.outbox.MarkAcked(seq)
	})
	if err != nil {
		log.Error().Err(err).Msg("outbox scan failed")
	}
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
