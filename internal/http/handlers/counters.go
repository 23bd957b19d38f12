package handlers

import (
	"net/http"
	"strings"

	"hotelpos-billing-services/pkg/response"
)

type issueCounterRequest struct {
	Category string `json:"category"`
}

type issuedNumber struct {
	Number string `json:"number"`
}

// IssueBillNumber hands out the next bill number for the branch and category.
func (h *Handler) IssueBillNumber(w http.ResponseWriter, r *http.Request) {
	var body issueCounterRequest
	if err := decodeBody(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	number, err := h.Counters.NextBillNumber(r.Context(), readPathString(r, "branchId"), body.Category)
	if err != nil {
		h.writeCounterError(w, r, err)
		return
	}
	response.Created(w, issuedNumber{Number: number})
}

func (h *Handler) IssueInvoiceNumber(w http.ResponseWriter, r *http.Request) {
	var body issueCounterRequest
	if err := decodeBody(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	number, err := h.Counters.NextInvoiceNumber(r.Context(), readPathString(r, "branchId"), body.Category)
	if err != nil {
		h.writeCounterError(w, r, err)
		return
	}
	response.Created(w, issuedNumber{Number: number})
}

// IssueKOTNumber takes no body: KOT numbers are shared by the whole branch.
func (h *Handler) IssueKOTNumber(w http.ResponseWriter, r *http.Request) {
	number, err := h.Counters.NextKOTNumber(r.Context(), readPathString(r, "branchId"))
	if err != nil {
		h.writeCounterError(w, r, err)
		return
	}
	response.Created(w, issuedNumber{Number: number})
}

// CurrentCounters returns one snapshot when a category is given, otherwise
// every row of the branch for the day.
func (h *Handler) CurrentCounters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	branchID := readPathString(r, "branchId")
	query := r.URL.Query()
	category := query.Get("category")
	date := strings.TrimSpace(query.Get("date"))

	if category != "" {
		snapshot, err := h.Counters.CurrentCounter(ctx, branchID, category, date)
		if err != nil {
			h.writeCounterError(w, r, err)
			return
		}
		response.Success(w, snapshot)
		return
	}

	rows, err := h.Counters.CurrentCounters(ctx, branchID, date)
	if err != nil {
		h.writeCounterError(w, r, err)
		return
	}
	response.Success(w, rows)
}
