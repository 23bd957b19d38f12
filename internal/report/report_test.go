package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"hotelpos-billing-services/internal/counter"
)

type memoryObjects struct {
	keys     []string
	metadata []map[string]string
}

func (m *memoryObjects) SaveReport(ctx context.Context, key string, pdf []byte, metadata map[string]string) error {
	m.keys = append(m.keys, key)
	m.metadata = append(m.metadata, metadata)
	return nil
}

func TestRenderCounters(t *testing.T) {
	rows := []counter.Snapshot{
		{Counter: counter.Counter{BranchID: "b1", Category: counter.CategoryRestaurant, Date: "2024-05-17", LastBillNumber: 12, LastInvoiceNumber: 12, LastKOTNumber: 9}},
		{Counter: counter.Counter{BranchID: "b1", Category: counter.CategoryTempleMeals, Date: "2024-05-17", LastBillNumber: 3, LastInvoiceNumber: 3}},
	}
	buf, err := RenderCounters(Header{Title: "Counters", Date: "2024-05-17"}, rows)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected PDF output")
	}

	empty, err := RenderCounters(Header{Title: "Counters", Date: "2024-05-17"}, nil)
	if err != nil || empty.Len() == 0 {
		t.Fatalf("expected empty report to render, got %v", err)
	}
}

func TestArchiveReset(t *testing.T) {
	objects := &memoryObjects{}
	archiver := &Archiver{
		Store: objects,
		Now:   func() time.Time { return time.UnixMilli(1715940000000) },
	}

	event := counter.Event{
		Type:     counter.EventReset,
		BranchID: "branch/1",
		Date:     "2024-05-17",
		Reset:    &counter.ResetAudit{Date: "2024-05-17", BranchID: "branch/1", RowsReset: 1, Actor: "ops", Reason: "training day"},
		Before: []counter.Snapshot{
			{Counter: counter.Counter{BranchID: "branch/1", Category: counter.CategoryRestaurant, Date: "2024-05-17", LastBillNumber: 5, LastInvoiceNumber: 5}},
		},
	}

	key, err := archiver.ArchiveReset(context.Background(), event)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	expectedKey := "counters/resets/2024-05-17/branch_1-1715940000000.pdf"
	if len(objects.keys) != 1 || objects.keys[0] != expectedKey {
		t.Fatalf("expected key %s, got %v", expectedKey, objects.keys)
	}
	if key != expectedKey {
		t.Fatalf("unexpected key %s", key)
	}
	if objects.metadata[0]["actor"] != "ops" || objects.metadata[0]["rows-reset"] != "1" {
		t.Fatalf("unexpected metadata %v", objects.metadata[0])
	}

	if _, err := archiver.ArchiveReset(context.Background(), counter.Event{Type: counter.EventKOTIssued}); err == nil {
		t.Fatalf("expected non-reset event to be rejected")
	}
}
