package counter

import "context"

// Store persists counter rows. Increment must be a single atomic
// increment-or-create per call; the service never reads a row and writes it
// back in two steps.
type Store interface {
	// Increment advances field on the row for key, creating the row when it
	// does not exist, and returns the new value of field. A store that lost a
	// creation race returns ErrDuplicateKey.
	Increment(ctx context.Context, key Key, field Field) (int64, error)
	Get(ctx context.Context, key Key) (Counter, bool, error)
	List(ctx context.Context, filter Filter) ([]Counter, error)
	// Reset zeroes the bill and invoice numbers (and the KOT number unless
	// skipKOT) of every row matching filter and records audit.
	Reset(ctx context.Context, filter Filter, skipKOT bool, audit ResetAudit) (int64, error)
}
