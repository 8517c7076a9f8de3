package outbox

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	cloudEventsVersion = "1.0"
	cloudEventsJSON    = "application/cloudevents+json"
	defaultSource      = "app://homestay"
)

// cloudEvent is the structured-mode CloudEvents 1.0 envelope written to the
// broker. Data carries the outbox payload untouched.
type cloudEvent struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Subject         string          `json:"subject,omitempty"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	TraceParent     string          `json:"traceparent,omitempty"`
	Data            json.RawMessage `json:"data"`
}

func encodeEnvelope(doc *EventDocument, source string) ([]byte, map[string]string, error) {
	if !json.Valid(doc.Payload) {
		return nil, nil, fmt.Errorf("outbox: event %s has a malformed payload", doc.ID)
	}
	body, err := json.Marshal(cloudEvent{
		SpecVersion:     cloudEventsVersion,
		ID:              doc.ID,
		Type:            doc.Name + ".v1",
		Source:          source,
		Subject:         doc.Aggregate,
		Time:            doc.OccurredAt.UTC(),
		DataContentType: "application/json",
		TraceParent:     doc.Headers["traceparent"],
		Data:            doc.Payload,
	})
	if err != nil {
		return nil, nil, err
	}
	headers := make(map[string]string, len(doc.Headers)+3)
	for k, v := range doc.Headers {
		headers[k] = v
	}
	headers["content-type"] = cloudEventsJSON
	headers["ce-id"] = doc.ID
	headers["ce-type"] = doc.Name
	return body, headers, nil
}

// Topic maps an event name such as "pricing.tag_saved" to its versioned
// topic, "pricing.events.v1", behind prefix.
func Topic(prefix, eventName string) string {
	family, _, _ := strings.Cut(eventName, ".")
	return prefix + family + ".events.v1"
}
