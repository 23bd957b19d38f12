package counter

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps counters in process. The mutex plays the part of the
// database's single-row atomicity, so it only coordinates callers that share
// one process; use it for development and tests.
type MemoryStore struct {
	mu     sync.Mutex
	rows   map[Key]*Counter
	resets []ResetAudit
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[Key]*Counter), now: time.Now}
}

func (m *MemoryStore) Increment(ctx context.Context, key Key, field Field) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	row, ok := m.rows[key]
	if !ok {
		row = &Counter{BranchID: key.BranchID, Category: key.Category, Date: key.Date, CreatedAt: now}
		m.rows[key] = row
	}
	row.UpdatedAt = now

	switch field {
	case FieldKOT:
		row.LastKOTNumber++
		return row.LastKOTNumber, nil
	default:
		row.LastBillNumber++
		row.LastInvoiceNumber = row.LastBillNumber
		return row.LastBillNumber, nil
	}
}

func (m *MemoryStore) Get(ctx context.Context, key Key) (Counter, bool, error) {
	if err := ctx.Err(); err != nil {
		return Counter{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[key]
	if !ok {
		return Counter{}, false, nil
	}
	return *row, true, nil
}

func (m *MemoryStore) List(ctx context.Context, filter Filter) ([]Counter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Counter, 0)
	for _, row := range m.rows {
		if filter.Matches(*row) {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *MemoryStore) Reset(ctx context.Context, filter Filter, skipKOT bool, audit ResetAudit) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	var n int64
	for _, row := range m.rows {
		if !filter.Matches(*row) {
			continue
		}
		row.LastBillNumber = 0
		row.LastInvoiceNumber = 0
		if !skipKOT {
			row.LastKOTNumber = 0
		}
		row.UpdatedAt = now
		n++
	}
	audit.RowsReset = n
	m.resets = append(m.resets, audit)
	return n, nil
}

// Resets returns the audit records of every reset applied so far.
func (m *MemoryStore) Resets() []ResetAudit {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ResetAudit, len(m.resets))
	copy(out, m.resets)
	return out
}
