package counter

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-day key of a counter row.
const DateLayout = "2006-01-02"

// Field selects which sequence of a counter row an increment advances.
type Field int

const (
	// FieldBill advances the bill sequence; the invoice number follows it.
	FieldBill Field = iota
	FieldKOT
)

func (f Field) String() string {
	switch f {
	case FieldBill:
		return "bill"
	case FieldKOT:
		return "kot"
	}
	return "unknown"
}

// Key identifies one counter row.
type Key struct {
	BranchID string
	Category Category
	Date     string
}

// Counter is the persisted state of one (branch, category, date) row.
type Counter struct {
	BranchID          string    `json:"branchId" bson:"branchId"`
	Category          Category  `json:"category" bson:"category"`
	Date              string    `json:"date" bson:"date"`
	LastBillNumber    int64     `json:"lastBillNumber" bson:"lastBillNumber"`
	LastInvoiceNumber int64     `json:"lastInvoiceNumber" bson:"lastInvoiceNumber"`
	LastKOTNumber     int64     `json:"lastKotNumber" bson:"lastKOTNumber"`
	CreatedAt         time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Snapshot is a read-only view of a counter with the numbers the next calls
// would hand out.
type Snapshot struct {
	Counter
	Persisted         bool   `json:"persisted"`
	NextBillNumber    string `json:"nextBillNumber"`
	NextInvoiceNumber string `json:"nextInvoiceNumber"`
	NextKOTNumber     string `json:"nextKotNumber,omitempty"`
}

func newSnapshot(c Counter, persisted bool) Snapshot {
	s := Snapshot{
		Counter:           c,
		Persisted:         persisted,
		NextBillNumber:    FormatBillNumber(c.LastBillNumber + 1),
		NextInvoiceNumber: FormatBillNumber(c.LastInvoiceNumber + 1),
	}
	if c.Category == kotCategory {
		s.NextKOTNumber = FormatKOTNumber(c.LastKOTNumber + 1)
	}
	return s
}

// Filter selects counter rows for listing and administrative resets. Date is
// required; empty BranchID and Category match every branch and category.
type Filter struct {
	Date     string
	BranchID string
	Category Category
}

func (f Filter) Matches(c Counter) bool {
	if c.Date != f.Date {
		return false
	}
	if f.BranchID != "" && c.BranchID != f.BranchID {
		return false
	}
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	return true
}

// ResetRequest describes an administrative reset.
type ResetRequest struct {
	Date     string
	BranchID string
	Category string
	SkipKOT  bool
	Actor    string
	Reason   string
}

// ResetAudit is the record a store keeps for every reset it applies.
type ResetAudit struct {
	Date      string    `json:"date" bson:"date"`
	BranchID  string    `json:"branchId,omitempty" bson:"branchId,omitempty"`
	Category  Category  `json:"category,omitempty" bson:"category,omitempty"`
	SkipKOT   bool      `json:"skipKot" bson:"skipKot"`
	RowsReset int64     `json:"rowsReset" bson:"rowsReset"`
	Actor     string    `json:"actor" bson:"actor"`
	Reason    string    `json:"reason,omitempty" bson:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

type ResetResult struct {
	RowsReset int64      `json:"rowsReset"`
	Before    []Snapshot `json:"before"`
}

func FormatBillNumber(n int64) string {
	return fmt.Sprintf("%03d", n)
}

func FormatKOTNumber(n int64) string {
	return "KOT-" + fmt.Sprintf("%03d", n)
}

// ParseDate validates a YYYY-MM-DD day key.
func ParseDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return "", newError(CodeInvalidDate, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", value), err)
	}
	return t.Format(DateLayout), nil
}
