package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

type Producer struct {
	sync sarama.SyncProducer
}

func NewProducer(brokers []string, cfg *sarama.Config) (*Producer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	cfg.Net.MaxOpenRequests = 1
	sp, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &Producer{sync: sp}, nil
}

func (p *Producer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := p.sync.SendMessage(buildMessage(topic, key, payload, headers))
	return err
}

func (p *Producer) Close() error {
	if p.sync == nil {
		return nil
	}
	return p.sync.Close()
}

func buildMessage(topic, key string, payload []byte, headers map[string]string) *sarama.ProducerMessage {
	var hs []sarama.RecordHeader
	for k, v := range headers {
		hs = append(hs, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	return &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(payload),
		Headers: hs,
	}
}

// Loopback hands published messages straight to a handler. It stands in for
// a broker when none is configured so that consumers still see every event.
type Loopback struct {
	Handler MessageHandler

	mu      sync.Mutex
	offsets map[string]int64
}

func (l *Loopback) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	if l.Handler == nil {
		return nil
	}
	l.mu.Lock()
	if l.offsets == nil {
		l.offsets = make(map[string]int64)
	}
	offset := l.offsets[topic]
	l.offsets[topic] = offset + 1
	l.mu.Unlock()

	msg := &sarama.ConsumerMessage{
		Topic:     topic,
		Key:       []byte(key),
		Value:     payload,
		Offset:    offset,
		Timestamp: time.Now().UTC(),
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, &sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	return l.Handler.Handle(ctx, msg)
}

// Header returns the value of a record header or "".
func Header(msg *sarama.ConsumerMessage, key string) string {
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}
