package report

import (
	"bytes"
	"fmt"
	"time"

	"hotelpos-billing-services/internal/counter"

	"github.com/phpdave11/gofpdf"
)

// Header describes what a counter report covers.
type Header struct {
	Title       string
	Date        string
	BranchID    string
	GeneratedAt time.Time
	Reset       *counter.ResetAudit
}

var counterColumns = []struct {
	title string
	width float64
	align string
}{
	{"Branch", 48, "L"},
	{"Category", 34, "L"},
	{"Date", 24, "L"},
	{"Last bill", 20, "R"},
	{"Last invoice", 22, "R"},
	{"Last KOT", 18, "R"},
}

// RenderCounters draws the snapshots as a table and returns the PDF bytes.
func RenderCounters(h Header, rows []counter.Snapshot) (*bytes.Buffer, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, h.Title, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Business date: %s", h.Date), "", 1, "C", false, 0, "")
	if h.BranchID != "" {
		pdf.CellFormat(0, 5, fmt.Sprintf("Branch: %s", h.BranchID), "", 1, "C", false, 0, "")
	}
	generated := h.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	pdf.CellFormat(0, 5, fmt.Sprintf("Generated: %s", generated.UTC().Format(time.RFC3339)), "", 1, "C", false, 0, "")

	if h.Reset != nil {
		pdf.Ln(2)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, "Reset", "B", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 5, fmt.Sprintf("By: %s", h.Reset.Actor), "", 1, "L", false, 0, "")
		scope := "all categories"
		if h.Reset.Category != "" {
			scope = string(h.Reset.Category)
		}
		pdf.CellFormat(0, 5, fmt.Sprintf("Scope: %s, KOT kept: %t", scope, h.Reset.SkipKOT), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("Rows reset: %d", h.Reset.RowsReset), "", 1, "L", false, 0, "")
		if h.Reset.Reason != "" {
			pdf.MultiCell(0, 4, fmt.Sprintf("Reason: %s", h.Reset.Reason), "", "L", false)
		}
	}

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 9)
	for _, col := range counterColumns {
		pdf.CellFormat(col.width, 6, col.title, "B", 0, col.align, false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	if len(rows) == 0 {
		pdf.CellFormat(0, 6, "No counters for this day.", "", 1, "L", false, 0, "")
	}
	for _, row := range rows {
		values := []string{
			row.BranchID,
			string(row.Category),
			row.Date,
			counter.FormatBillNumber(row.LastBillNumber),
			counter.FormatBillNumber(row.LastInvoiceNumber),
			"-",
		}
		if row.Category == counter.CategoryRestaurant {
			values[5] = counter.FormatKOTNumber(row.LastKOTNumber)
		}
		for i, col := range counterColumns {
			pdf.CellFormat(col.width, 5, values[i], "", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
