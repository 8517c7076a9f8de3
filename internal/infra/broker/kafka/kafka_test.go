package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
)

func TestBuildMessageCopiesHeaders(t *testing.T) {
	msg := buildMessage("pricing.events.v1", "l1", []byte("{}"), map[string]string{"ce-id": "e1"})
	if msg.Topic != "pricing.events.v1" || len(msg.Headers) != 1 {
		t.Fatalf("unexpected message %+v", msg)
	}
	key, _ := msg.Key.Encode()
	if string(key) != "l1" {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestLoopbackDeliversWithOffsets(t *testing.T) {
	var got []*sarama.ConsumerMessage
	lb := &Loopback{Handler: MessageHandlerFunc(func(_ context.Context, msg *sarama.ConsumerMessage) error {
		got = append(got, msg)
		return nil
	})}
	for i := 0; i < 2; i++ {
		if err := lb.Publish(context.Background(), "t", "k", []byte("x"), map[string]string{"ce-id": "e"}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if len(got) != 2 || got[1].Offset != 1 {
		t.Fatalf("unexpected deliveries %+v", got)
	}
	if Header(got[0], "ce-id") != "e" {
		t.Fatal("header not delivered")
	}
}

func TestDeliverRetriesThenGivesUp(t *testing.T) {
	calls := 0
	flaky := MessageHandlerFunc(func(context.Context, *sarama.ConsumerMessage) error {
		calls++
		if calls < 2 {
			return errors.New("cache unavailable")
		}
		return nil
	})
	if err := deliver(context.Background(), flaky, &sarama.ConsumerMessage{}); err != nil || calls != 2 {
		t.Fatalf("expected success on second attempt, got %v after %d calls", err, calls)
	}

	calls = 0
	broken := MessageHandlerFunc(func(context.Context, *sarama.ConsumerMessage) error {
		calls++
		return errors.New("bad payload")
	})
	if err := deliver(context.Background(), broken, &sarama.ConsumerMessage{}); err == nil || calls != handleAttempts {
		t.Fatalf("expected failure after %d attempts, got %v after %d", handleAttempts, err, calls)
	}
}
