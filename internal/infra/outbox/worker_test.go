package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	appoutbox "homestay/internal/app/outbox"
	"homestay/internal/infra/outbox"
	"homestay/internal/infra/storage/memory"
)

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	fail error
	sent []published
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.fail != nil {
		return p.fail
	}
	p.sent = append(p.sent, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func addRecord(t *testing.T, box *memory.Outbox, id, name string) {
	t.Helper()
	err := box.Add(context.Background(), appoutbox.EventRecord{
		ID:         id,
		Name:       name,
		Payload:    []byte(`{"listing_id":"l1"}`),
		OccurredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Aggregate:  "l1",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
}

func TestWorkerDrainPublishesCloudEvents(t *testing.T) {
	box := memory.NewOutbox()
	addRecord(t, box, "e1", "pricing.tag_saved")
	addRecord(t, box, "e2", "reservation.created")

	producer := &fakeProducer{}
	w := &outbox.Worker{Source: box, Producer: producer, TopicPrefix: "homestay."}
	if err := w.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(producer.sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(producer.sent))
	}
	first := producer.sent[0]
	if first.topic != "homestay.pricing.events.v1" || first.key != "l1" {
		t.Fatalf("unexpected routing %s/%s", first.topic, first.key)
	}
	var evt map[string]any
	if err := json.Unmarshal(first.payload, &evt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt["type"] != "pricing.tag_saved.v1" || evt["source"] != "app://homestay" || evt["id"] != "e1" {
		t.Fatalf("unexpected envelope %v", evt)
	}
	if first.headers["content-type"] != "application/cloudevents+json" {
		t.Fatalf("unexpected headers %v", first.headers)
	}
	if pending := box.Pending(); len(pending) != 0 {
		t.Fatalf("expected empty outbox, got %v", pending)
	}
}

func TestWorkerKeepsFailedRecords(t *testing.T) {
	box := memory.NewOutbox()
	addRecord(t, box, "e1", "listing.created")

	w := &outbox.Worker{Source: box, Producer: &fakeProducer{fail: errors.New("broker down")}, Backoff: []time.Duration{time.Hour}}
	if err := w.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if pending := box.Pending(); len(pending) != 1 {
		t.Fatalf("failed record must stay queued, got %v", pending)
	}

	producer := &fakeProducer{}
	w.Producer = producer
	if err := w.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(producer.sent) != 0 {
		t.Fatal("record must wait for its backoff before retry")
	}
}

func TestWorkerRequiresDependencies(t *testing.T) {
	w := &outbox.Worker{}
	if err := w.Run(context.Background()); !errors.Is(err, outbox.ErrWorkerNotConfigured) {
		t.Fatalf("expected ErrWorkerNotConfigured, got %v", err)
	}
}

func TestTopicRouting(t *testing.T) {
	if got := outbox.Topic("", "reservation.status_changed"); got != "reservation.events.v1" {
		t.Fatalf("unexpected topic %s", got)
	}
	w := &outbox.Worker{TopicPrefix: "dev."}
	got := w.Topics("listing.updated", "listing.deleted", "photo.uploaded")
	if len(got) != 2 || got[0] != "dev.listing.events.v1" || got[1] != "dev.photo.events.v1" {
		t.Fatalf("unexpected topics %v", got)
	}
}

func TestWorkerSkipsMalformedPayload(t *testing.T) {
	box := memory.NewOutbox()
	if err := box.Add(context.Background(), appoutbox.EventRecord{ID: "bad", Name: "listing.updated", Payload: []byte("{"), Aggregate: "l1"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	addRecord(t, box, "e2", "listing.updated")

	producer := &fakeProducer{}
	w := &outbox.Worker{Source: box, Producer: producer, Backoff: []time.Duration{time.Hour}}
	if err := w.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(producer.sent) != 1 || producer.sent[0].headers["ce-id"] != "e2" {
		t.Fatalf("expected only e2 to be published, got %+v", producer.sent)
	}
}
