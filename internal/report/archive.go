package report

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hotelpos-billing-services/internal/counter"
)

// ReportSaver is the part of the object store the archiver needs.
type ReportSaver interface {
	SaveReport(ctx context.Context, key string, pdf []byte, metadata map[string]string) error
}

// Archiver stores the pre-reset state of counters as a PDF so that every
// administrative reset leaves a record of the numbers it discarded.
type Archiver struct {
	Store ReportSaver
	Now   func() time.Time
}

func ResetArchivePrefix(date string) string {
	return fmt.Sprintf("counters/resets/%s/", date)
}

func (a *Archiver) ArchiveReset(ctx context.Context, event counter.Event) (string, error) {
	if event.Type != counter.EventReset {
		return "", fmt.Errorf("not a reset event: %s", event.Type)
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	generated := now().UTC()

	scope := "all"
	if event.BranchID != "" {
		scope = sanitizeKeyPart(event.BranchID)
	}

	buf, err := RenderCounters(Header{
		Title:       "Counter reset",
		Date:        event.Date,
		BranchID:    event.BranchID,
		GeneratedAt: generated,
		Reset:       event.Reset,
	}, event.Before)
	if err != nil {
		return "", fmt.Errorf("render reset report: %w", err)
	}

	key := fmt.Sprintf("%s%s-%d.pdf", ResetArchivePrefix(event.Date), scope, generated.UnixMilli())
	metadata := map[string]string{"date": event.Date}
	if event.Reset != nil {
		metadata["actor"] = event.Reset.Actor
		metadata["rows-reset"] = strconv.FormatInt(event.Reset.RowsReset, 10)
	}
	if err := a.Store.SaveReport(ctx, key, buf.Bytes(), metadata); err != nil {
		return "", err
	}
	return key, nil
}

func sanitizeKeyPart(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, value)
}
