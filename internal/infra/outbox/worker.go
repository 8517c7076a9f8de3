package outbox

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
)

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

const (
	defaultInterval = 500 * time.Millisecond
	defaultRetry    = 5 * time.Second
)

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Worker relays outbox records to a Producer as CloudEvents. It polls every
// Interval and additionally whenever Wake fires. Store errors are logged and
// the next poll tries again. Records of one aggregate
// share a message key, so a partitioned broker keeps their order.
type Worker struct {
	Source      Source
	Producer    Producer
	Logger      *slog.Logger
	Wake        <-chan struct{}
	Interval    time.Duration
	TopicPrefix string
	SourceURI   string
	ID          string
	// Backoff is indexed by the number of failed attempts; the last entry
	// repeats.
	Backoff []time.Duration
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Source == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = "outbox-" + uuid.NewString()
	}
	interval := w.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := w.Drain(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if w.Logger != nil {
				w.Logger.ErrorContext(ctx, "outbox drain failed", "worker", w.ID, "err", err)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-w.Wake:
		}
	}
}

// Drain publishes records until none is due. A broker failure ends the
// pass; the record is rescheduled and picked up by a later one.
func (w *Worker) Drain(ctx context.Context) error {
	for ctx.Err() == nil {
		doc, err := w.Source.Claim(ctx, w.id())
		if err != nil || doc == nil {
			return err
		}
		more, err := w.relay(ctx, doc)
		if err != nil || !more {
			return err
		}
	}
	return ctx.Err()
}

func (w *Worker) relay(ctx context.Context, doc *EventDocument) (bool, error) {
	body, headers, err := encodeEnvelope(doc, w.source())
	if err != nil {
		w.reschedule(ctx, doc, err)
		return true, nil
	}
	if err := w.Producer.Publish(ctx, Topic(w.TopicPrefix, doc.Name), doc.Aggregate, body, headers); err != nil {
		w.reschedule(ctx, doc, err)
		return false, nil
	}
	return true, w.Source.MarkSent(ctx, doc.ID)
}

func (w *Worker) reschedule(ctx context.Context, doc *EventDocument, cause error) {
	next := time.Now().Add(w.retryDelay(doc.Attempts))
	if w.Logger != nil {
		w.Logger.WarnContext(ctx, "outbox publish failed",
			"event_id", doc.ID, "event", doc.Name, "attempts", doc.Attempts+1, "retry_at", next, "err", cause)
	}
	if err := w.Source.MarkFailed(ctx, doc.ID, next, cause.Error()); err != nil && w.Logger != nil {
		w.Logger.ErrorContext(ctx, "outbox reschedule failed", "event_id", doc.ID, "err", err)
	}
}

func (w *Worker) retryDelay(attempts int) time.Duration {
	switch {
	case len(w.Backoff) == 0:
		return defaultRetry
	case attempts < len(w.Backoff):
		return w.Backoff[attempts]
	default:
		return w.Backoff[len(w.Backoff)-1]
	}
}

func (w *Worker) id() string {
	if w.ID == "" {
		return "outbox-worker"
	}
	return w.ID
}

func (w *Worker) source() string {
	if w.SourceURI == "" {
		return defaultSource
	}
	return w.SourceURI
}

// Topics lists, without repeats, the topics the given events are published to.
func (w *Worker) Topics(names ...string) []string {
	var out []string
	for _, n := range names {
		if t := Topic(w.TopicPrefix, n); !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
