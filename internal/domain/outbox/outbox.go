package outbox

import (
	"time"

	"github.com/google/uuid"
)

// defaultMaxRetries bounds how often the worker retries publishing an entry
// before parking it as failed.
const defaultMaxRetries = 5

// Entry is a transactional-outbox record: domain events are committed to the
// outbox table alongside the writes that produced them and published to the
// event stream asynchronously by the worker.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       map[string]any
	Status        Status
	RetryCount    int
	MaxRetries    int
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// NewRefundEvent creates a pending outbox entry for a refund-aggregate event.
func NewRefundEvent(refundID uuid.UUID, eventType string, payload map[string]any) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: "refund",
		AggregateID:   refundID,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusPending,
		MaxRetries:    defaultMaxRetries,
		CreatedAt:     time.Now(),
	}
}
