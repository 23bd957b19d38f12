package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"hotelpos-billing-services/internal/counter"

	"go.uber.org/zap"
)

type fakeArchiver struct {
	events []counter.Event
	err    error
}

func (f *fakeArchiver) ArchiveReset(ctx context.Context, event counter.Event) (string, error) {
	f.events = append(f.events, event)
	return "counters/resets/2024-05-17/all-1.pdf", f.err
}

func encode(t *testing.T, event counter.Event) []byte {
	t.Helper()
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func TestProcessCounterEvent(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	archiver := &fakeArchiver{}
	if err := ProcessCounterEvent(ctx, archiver, logger, encode(t, counter.Event{Type: counter.EventBillIssued, Number: "001"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(archiver.events) != 0 {
		t.Fatalf("issue events must not be archived")
	}

	reset := counter.Event{
		Type:  counter.EventReset,
		Date:  "2024-05-17",
		Reset: &counter.ResetAudit{Date: "2024-05-17", RowsReset: 2, Actor: "ops"},
	}
	if err := ProcessCounterEvent(ctx, archiver, logger, encode(t, reset)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(archiver.events) != 1 || archiver.events[0].Reset.RowsReset != 2 {
		t.Fatalf("expected reset to be archived, got %+v", archiver.events)
	}

	failing := &fakeArchiver{err: errors.New("bucket unavailable")}
	if err := ProcessCounterEvent(ctx, failing, logger, encode(t, reset)); err == nil {
		t.Fatalf("expected archive failure to be retried")
	}

	if err := ProcessCounterEvent(ctx, nil, logger, encode(t, reset)); err != nil {
		t.Fatalf("expected disabled archiver to ack, got %v", err)
	}
	if err := ProcessCounterEvent(ctx, archiver, logger, []byte("{not json")); err != nil {
		t.Fatalf("expected malformed message to be dropped, got %v", err)
	}
}

type localFeed struct {
	events []counter.Event
}

func (l *localFeed) Publish(ctx context.Context, event counter.Event) error {
	l.events = append(l.events, event)
	return nil
}

func TestForwardKOTEvent(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()
	feed := &localFeed{}

	messages := [][]byte{
		encode(t, counter.Event{Type: counter.EventBillIssued, BranchID: "b1", Number: "001"}),
		encode(t, counter.Event{Type: counter.EventKOTIssued, BranchID: "b1", Number: "KOT-004", Value: 4}),
		encode(t, counter.Event{Type: counter.EventReset, Date: "2024-05-17"}),
		[]byte("{not json"),
	}
	for _, body := range messages {
		if err := ForwardKOTEvent(ctx, feed, logger, body); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(feed.events) != 1 || feed.events[0].Number != "KOT-004" || feed.events[0].BranchID != "b1" {
		t.Fatalf("expected only the KOT event to reach the feed, got %+v", feed.events)
	}
}
