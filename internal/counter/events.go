package counter

import (
	"context"
	"errors"
	"time"
)

type EventType string

const (
	EventBillIssued EventType = "counter.bill.issued"
	EventKOTIssued  EventType = "counter.kot.issued"
	EventReset      EventType = "counter.reset"
)

// Event is published after a number has been issued or counters were reset.
type Event struct {
	Type       EventType   `json:"type"`
	BranchID   string      `json:"branchId,omitempty"`
	Category   Category    `json:"category,omitempty"`
	Date       string      `json:"date"`
	Number     string      `json:"number,omitempty"`
	Value      int64       `json:"value,omitempty"`
	Reset      *ResetAudit `json:"reset,omitempty"`
	Before     []Snapshot  `json:"before,omitempty"`
	OccurredAt time.Time   `json:"occurredAt"`
}

// RoutingKey is the topic the event is published under.
func (e Event) RoutingKey() string {
	return string(e.Type)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Publishers fans an event out to every publisher and joins their errors.
type Publishers []Publisher

func (p Publishers) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, pub := range p {
		if pub == nil {
			continue
		}
		if err := pub.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
