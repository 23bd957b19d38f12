package counter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"hotelpos-billing-services/internal/utils"

	"go.uber.org/zap"
)

const (
	defaultMaxAttempts = 3
	defaultOpTimeout   = 5 * time.Second
)

var errRaceRetriesExhausted = errors.New("creation race retries exhausted")

type Config struct {
	// Timezone is the reporting timezone that decides which calendar day a
	// number belongs to. Empty or "Local" uses the server timezone.
	Timezone    string
	MaxAttempts int
	OpTimeout   time.Duration
	Publisher   Publisher
	// EventBuffer bounds the events waiting for the publisher. PublishTimeout
	// bounds a single publish.
	EventBuffer    int
	PublishTimeout time.Duration
	Now            func() time.Time
}

// Service hands out bill, invoice and KOT numbers. It keeps no state of its
// own between calls; every guarantee comes from the Store's atomic increment.
type Service struct {
	store       Store
	logger      *zap.Logger
	events      *dispatcher
	location    *time.Location
	now         func() time.Time
	maxAttempts int
	opTimeout   time.Duration
}

func NewService(store Store, logger *zap.Logger, cfg Config) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		store:       store,
		logger:      logger,
		location:    utils.LoadLocation(cfg.Timezone),
		now:         cfg.Now,
		maxAttempts: cfg.MaxAttempts,
		opTimeout:   cfg.OpTimeout,
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.maxAttempts <= 0 {
		svc.maxAttempts = defaultMaxAttempts
	}
	if svc.opTimeout <= 0 {
		svc.opTimeout = defaultOpTimeout
	}
	if cfg.Publisher != nil {
		svc.events = newDispatcher(cfg.Publisher, logger, cfg.EventBuffer, cfg.PublishTimeout)
	}
	return svc
}

// Close flushes queued events to the publisher, giving up when ctx ends.
// Numbers issued after Close still work but publish nothing.
func (s *Service) Close(ctx context.Context) error {
	if s.events == nil {
		return nil
	}
	return s.events.close(ctx)
}

// Today returns the current day key in the reporting timezone.
func (s *Service) Today() string {
	return utils.DateInLocation(s.now(), s.location)
}

// NextBillNumber issues the next bill number for the branch and category,
// formatted as a zero-padded 3-digit string.
func (s *Service) NextBillNumber(ctx context.Context, branchID string, category string) (string, error) {
	return s.nextBill(ctx, branchID, category)
}

// NextInvoiceNumber shares the bill sequence; bill and invoice numbers of a
// row are always equal.
func (s *Service) NextInvoiceNumber(ctx context.Context, branchID string, category string) (string, error) {
	return s.nextBill(ctx, branchID, category)
}

func (s *Service) nextBill(ctx context.Context, branchID string, category string) (string, error) {
	cat, err := ParseCategory(category)
	if err != nil {
		return "", err
	}
	branchID, err = normalizeBranch(branchID)
	if err != nil {
		return "", err
	}

	key := Key{BranchID: branchID, Category: cat, Date: s.Today()}
	value, err := s.issue(ctx, key, FieldBill)
	if err != nil {
		return "", err
	}

	number := FormatBillNumber(value)
	s.publish(ctx, Event{
		Type:     EventBillIssued,
		BranchID: key.BranchID,
		Category: key.Category,
		Date:     key.Date,
		Number:   number,
		Value:    value,
	})
	return number, nil
}

// NextKOTNumber issues the next kitchen order ticket number for the branch.
// KOT numbers are branch-wide and live on the branch's Restaurant row.
func (s *Service) NextKOTNumber(ctx context.Context, branchID string) (string, error) {
	branchID, err := normalizeBranch(branchID)
	if err != nil {
		return "", err
	}

	key := Key{BranchID: branchID, Category: kotCategory, Date: s.Today()}
	value, err := s.issue(ctx, key, FieldKOT)
	if err != nil {
		return "", err
	}

	number := FormatKOTNumber(value)
	s.publish(ctx, Event{
		Type:     EventKOTIssued,
		BranchID: key.BranchID,
		Date:     key.Date,
		Number:   number,
		Value:    value,
	})
	return number, nil
}

func (s *Service) issue(ctx context.Context, key Key, field Field) (int64, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		value, err := s.increment(ctx, key, field)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrDuplicateKey) {
			s.logger.Error("counter increment failed",
				keyFields(key, field, zap.Int("attempt", attempt), zap.Error(err))...,
			)
			return 0, persistenceFailure(fmt.Sprintf("%s number not issued", field), err)
		}

		// Another writer created the row first. Re-read it so the next
		// attempt goes down the increment path.
		existing, found, getErr := s.get(ctx, key)
		if getErr != nil {
			s.logger.Error("counter re-fetch after creation race failed",
				keyFields(key, field, zap.Int("attempt", attempt), zap.Error(getErr))...,
			)
			return 0, persistenceFailure(fmt.Sprintf("%s number not issued", field), getErr)
		}
		s.logger.Warn("counter creation race, retrying increment",
			keyFields(key, field,
				zap.Int("attempt", attempt),
				zap.Bool("rowFound", found),
				zap.Int64("lastBillNumber", existing.LastBillNumber),
				zap.Int64("lastKotNumber", existing.LastKOTNumber),
			)...,
		)
	}

	s.logger.Error("counter creation race retries exhausted",
		keyFields(key, field, zap.Int("maxAttempts", s.maxAttempts))...,
	)
	return 0, persistenceFailure(fmt.Sprintf("%s number not issued after %d attempts", field, s.maxAttempts), errRaceRetriesExhausted)
}

func (s *Service) increment(ctx context.Context, key Key, field Field) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.store.Increment(ctx, key, field)
}

func (s *Service) get(ctx context.Context, key Key) (Counter, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.store.Get(ctx, key)
}

// CurrentCounter returns the row for (branch, category, date) without
// changing it. A missing row yields a zero snapshot that is not persisted.
// An empty date means today.
func (s *Service) CurrentCounter(ctx context.Context, branchID string, category string, date string) (Snapshot, error) {
	cat, err := ParseCategory(category)
	if err != nil {
		return Snapshot{}, err
	}
	branchID, err = normalizeBranch(branchID)
	if err != nil {
		return Snapshot{}, err
	}
	day, err := s.resolveDate(date)
	if err != nil {
		return Snapshot{}, err
	}

	key := Key{BranchID: branchID, Category: cat, Date: day}
	row, found, err := s.get(ctx, key)
	if err != nil {
		return Snapshot{}, persistenceFailure("failed to read counter", err)
	}
	if !found {
		return newSnapshot(Counter{BranchID: key.BranchID, Category: key.Category, Date: key.Date}, false), nil
	}
	return newSnapshot(row, true), nil
}

// CurrentCounters lists every persisted row of the branch for the date,
// ordered by category.
func (s *Service) CurrentCounters(ctx context.Context, branchID string, date string) ([]Snapshot, error) {
	branchID, err := normalizeBranch(branchID)
	if err != nil {
		return nil, err
	}
	day, err := s.resolveDate(date)
	if err != nil {
		return nil, err
	}

	rows, err := s.list(ctx, Filter{Date: day, BranchID: branchID})
	if err != nil {
		return nil, persistenceFailure("failed to list counters", err)
	}
	return snapshots(rows), nil
}

// ListCounters returns every row matching filter, for reports.
func (s *Service) ListCounters(ctx context.Context, filter Filter) ([]Snapshot, error) {
	day, err := s.resolveDate(filter.Date)
	if err != nil {
		return nil, err
	}
	filter.Date = day
	rows, err := s.list(ctx, filter)
	if err != nil {
		return nil, persistenceFailure("failed to list counters", err)
	}
	return snapshots(rows), nil
}

func (s *Service) list(ctx context.Context, filter Filter) ([]Counter, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.store.List(ctx, filter)
}

// Reset is the administrative path that zeroes counters. It is the only
// operation that lowers a counter and is never used while issuing numbers.
func (s *Service) Reset(ctx context.Context, req ResetRequest) (ResetResult, error) {
	if strings.TrimSpace(req.Date) == "" {
		return ResetResult{}, newError(CodeInvalidDate, "date is required for a reset", nil)
	}
	day, err := ParseDate(req.Date)
	if err != nil {
		return ResetResult{}, err
	}
	filter := Filter{Date: day, BranchID: strings.TrimSpace(req.BranchID)}
	if strings.TrimSpace(req.Category) != "" {
		cat, err := ParseCategory(req.Category)
		if err != nil {
			return ResetResult{}, err
		}
		filter.Category = cat
	}

	before, err := s.list(ctx, filter)
	if err != nil {
		return ResetResult{}, persistenceFailure("failed to read counters before reset", err)
	}

	actor := strings.TrimSpace(req.Actor)
	if actor == "" {
		actor = "unknown"
	}
	audit := ResetAudit{
		Date:      filter.Date,
		BranchID:  filter.BranchID,
		Category:  filter.Category,
		SkipKOT:   req.SkipKOT,
		Actor:     actor,
		Reason:    strings.TrimSpace(req.Reason),
		CreatedAt: s.now().UTC(),
	}

	ctx2, cancel := context.WithTimeout(ctx, s.opTimeout)
	rows, err := s.store.Reset(ctx2, filter, req.SkipKOT, audit)
	cancel()
	if err != nil {
		s.logger.Error("counter reset failed",
			zap.String("date", filter.Date),
			zap.String("branchId", filter.BranchID),
			zap.String("category", string(filter.Category)),
			zap.Error(err),
		)
		return ResetResult{}, persistenceFailure("failed to reset counters", err)
	}
	audit.RowsReset = rows

	s.logger.Info("counters reset",
		zap.String("date", filter.Date),
		zap.String("branchId", filter.BranchID),
		zap.String("category", string(filter.Category)),
		zap.Bool("skipKot", req.SkipKOT),
		zap.Int64("rowsReset", rows),
		zap.String("actor", actor),
	)

	result := ResetResult{RowsReset: rows, Before: snapshots(before)}
	s.publish(ctx, Event{
		Type:     EventReset,
		BranchID: filter.BranchID,
		Category: filter.Category,
		Date:     filter.Date,
		Reset:    &audit,
		Before:   result.Before,
	})
	return result, nil
}

func (s *Service) resolveDate(date string) (string, error) {
	if strings.TrimSpace(date) == "" {
		return s.Today(), nil
	}
	return ParseDate(date)
}

func (s *Service) publish(ctx context.Context, event Event) {
	if s.events == nil {
		return
	}
	event.OccurredAt = s.now().UTC()
	if !s.events.enqueue(ctx, event) {
		s.logger.Warn("counter event dropped",
			zap.String("type", string(event.Type)),
			zap.String("branchId", event.BranchID),
			zap.String("number", event.Number),
		)
	}
}

func normalizeBranch(branchID string) (string, error) {
	branchID = strings.TrimSpace(branchID)
	if branchID == "" {
		return "", ErrInvalidBranch
	}
	return branchID, nil
}

func snapshots(rows []Counter) []Snapshot {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].BranchID != rows[j].BranchID {
			return rows[i].BranchID < rows[j].BranchID
		}
		return categoryOrder(rows[i].Category) < categoryOrder(rows[j].Category)
	})
	out := make([]Snapshot, 0, len(rows))
	for _, row := range rows {
		out = append(out, newSnapshot(row, true))
	}
	return out
}

func keyFields(key Key, field Field, extra ...zap.Field) []zap.Field {
	fields := []zap.Field{
		zap.String("branchId", key.BranchID),
		zap.String("category", string(key.Category)),
		zap.String("date", key.Date),
		zap.String("field", field.String()),
	}
	return append(fields, extra...)
}
