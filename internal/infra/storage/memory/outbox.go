package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "homestay/internal/app/outbox"
	"homestay/internal/app/uow"
	infraoutbox "homestay/internal/infra/outbox"
)

// Outbox keeps event records in memory. Records added inside a write unit
// become visible only when that unit commits.
type Outbox struct {
	mu      sync.Mutex
	records []*infraoutbox.EventDocument
	notify  chan struct{}
}

func NewOutbox() *Outbox {
	return &Outbox{notify: make(chan struct{}, 1)}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if unit, ok := uow.FromContext(ctx); ok {
		if mu, ok := unit.(*Unit); ok && !mu.readOnly {
			mu.staged = append(mu.staged, record)
			return nil
		}
	}
	o.append([]appoutbox.EventRecord{record})
	return nil
}

// Flush wakes a relay waiting on Ready.
func (o *Outbox) Flush(context.Context) error {
	select {
	case o.notify <- struct{}{}:
	default:
	}
	return nil
}

// Ready is signalled after each successful command.
func (o *Outbox) Ready() <-chan struct{} { return o.notify }

func (o *Outbox) append(records []appoutbox.EventRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now().UTC()
	for _, r := range records {
		o.records = append(o.records, &infraoutbox.EventDocument{
			ID:          r.ID,
			Name:        r.Name,
			Payload:     append([]byte(nil), r.Payload...),
			OccurredAt:  r.OccurredAt,
			Aggregate:   r.Aggregate,
			Headers:     r.Headers,
			State:       infraoutbox.StateNew,
			NextAttempt: now,
		})
	}
}

// Claim hands out the oldest record due for delivery.
func (o *Outbox) Claim(_ context.Context, workerID string) (*infraoutbox.EventDocument, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now().UTC()
	for _, doc := range o.records {
		if (doc.State == infraoutbox.StateNew || doc.State == infraoutbox.StateFailed) && !doc.NextAttempt.After(now) {
			doc.State = infraoutbox.StateClaimed
			doc.ClaimedBy = workerID
			doc.ClaimedAt = now
			cp := *doc
			return &cp, nil
		}
	}
	return nil, nil
}

func (o *Outbox) MarkSent(_ context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, doc := range o.records {
		if doc.ID == id {
			o.records = append(o.records[:i], o.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (o *Outbox) MarkFailed(_ context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, doc := range o.records {
		if doc.ID == id {
			doc.State = infraoutbox.StateFailed
			doc.NextAttempt = next
			doc.LastError = errMsg
			doc.Attempts++
		}
	}
	return nil
}

// Pending returns the names of records not yet delivered, oldest first.
func (o *Outbox) Pending() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.records))
	for _, doc := range o.records {
		out = append(out, doc.Name)
	}
	return out
}

var (
	_ appoutbox.Outbox   = (*Outbox)(nil)
	_ infraoutbox.Source = (*Outbox)(nil)
)
