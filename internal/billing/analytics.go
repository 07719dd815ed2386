package billing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/physioflow/billing/pkg/logger"
)

// Domain event names emitted to the analytics sink.
const (
	EventSubscriptionCompleted = "subscription_completed"
	EventSubscriptionCancelled = "subscription_cancelled"
)

// Event is a domain analytics event.
type Event struct {
	Name       string
	UserID     uuid.UUID
	Properties map[string]string
	OccurredAt time.Time
}

// Tracker buffers domain events and delivers them on Flush. The webhook
// handler flushes synchronously before answering 200, which bounds event
// loss on process restart to the current request.
type Tracker interface {
	Track(event Event)
	Flush(ctx context.Context) error
}

// LogTracker is a Tracker that drains buffered events to structured logs,
// where the log pipeline forwards them to the analytics warehouse.
type LogTracker struct {
	mu  sync.Mutex
	buf []Event
	log *slog.Logger
}

func NewLogTracker(log *slog.Logger) *LogTracker {
	return &LogTracker{log: log}
}

func (t *LogTracker) Track(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, event)
}

func (t *LogTracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	events := t.buf
	t.buf = nil
	t.mu.Unlock()

	for _, e := range events {
		attrs := []any{
			logger.Event(e.Name),
			logger.UserID(e.UserID),
			slog.Time("occurred_at", e.OccurredAt),
		}
		for k, v := range e.Properties {
			attrs = append(attrs, slog.String(k, v))
		}
		t.log.InfoContext(ctx, "analytics event", attrs...)
	}
	return nil
}

// NoopTracker discards all events. Used where analytics is disabled.
type NoopTracker struct{}

func (NoopTracker) Track(Event)                 {}
func (NoopTracker) Flush(context.Context) error { return nil }
