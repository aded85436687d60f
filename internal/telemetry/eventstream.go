package telemetry

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// EventStream publishes training-data lifecycle events (in this module,
// trainingdata.Graph's record-creation events) to a NATS JetStream subject
// for distributed consumption. Publishing is strictly additive and
// best-effort — a publish failure is logged and otherwise ignored, never
// propagated to the caller; JetStream is supplementary, not a prerequisite.
//
// A nil *EventStream is valid and turns every Publish call into a no-op, so
// callers can construct the core without JetStream configured at all.
type EventStream struct {
	js      nats.JetStreamContext
	subject string
	log     *slog.Logger
}

// NewEventStream wraps an already-connected JetStream context. Pass nil js
// to get a no-op stream.
func NewEventStream(js nats.JetStreamContext, subject string, log *slog.Logger) *EventStream {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &EventStream{js: js, subject: subject, log: log}
}

// LifecycleEvent is the JSON payload published for a single training-data
// record event.
type LifecycleEvent struct {
	Kind      string    `json:"kind"` // e.g. "klass.make", "compile.make"
	Key       string    `json:"key,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publish best-effort publishes an event. Safe to call on a nil *EventStream
// or one with a nil JetStream context.
func (es *EventStream) Publish(evt LifecycleEvent) {
	if es == nil || es.js == nil {
		return
	}
	evt.Timestamp = evt.Timestamp.UTC()
	data, err := json.Marshal(evt)
	if err != nil {
		es.log.Warn("eventstream: marshal failed", "kind", evt.Kind, "error", err)
		return
	}
	if _, err := es.js.Publish(es.subject, data); err != nil {
		es.log.Warn("eventstream: publish failed", "subject", es.subject, "error", err)
	}
}
