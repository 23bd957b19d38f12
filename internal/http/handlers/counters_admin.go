package handlers

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"hotelpos-billing-services/internal/counter"
	"hotelpos-billing-services/internal/middleware"
	"hotelpos-billing-services/internal/report"
	"hotelpos-billing-services/internal/storage"
	"hotelpos-billing-services/pkg/response"

	"go.uber.org/zap"
)

type resetCountersRequest struct {
	Date     string `json:"date"`
	BranchID string `json:"branchId"`
	Category string `json:"category"`
	SkipKOT  bool   `json:"skipKot"`
	Reason   string `json:"reason"`
}

// AdminResetCounters zeroes the counters matching the request. The router
// guards it with super admin access and the reset PIN.
func (h *Handler) AdminResetCounters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body resetCountersRequest
	if err := decodeBody(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if strings.TrimSpace(body.Reason) == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "A reason is required to reset counters")
		return
	}

	actor := "unknown"
	if authCtx, ok := middleware.GetAuthContext(ctx); ok {
		actor = authCtx.Actor()
	}

	result, err := h.Counters.Reset(ctx, counter.ResetRequest{
		Date:     body.Date,
		BranchID: body.BranchID,
		Category: body.Category,
		SkipKOT:  body.SkipKOT,
		Actor:    actor,
		Reason:   body.Reason,
	})
	if err != nil {
		h.writeCounterError(w, r, err)
		return
	}

	response.Success(w, map[string]any{
		"rowsReset": result.RowsReset,
		"before":    result.Before,
	})
}

// AdminCountersReport renders the counters of a day as a PDF.
func (h *Handler) AdminCountersReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	filter := counter.Filter{
		Date:     strings.TrimSpace(query.Get("date")),
		BranchID: strings.TrimSpace(query.Get("branchId")),
	}

	rows, err := h.Counters.ListCounters(ctx, filter)
	if err != nil {
		h.writeCounterError(w, r, err)
		return
	}
	date := filter.Date
	if date == "" {
		date = h.Counters.Today()
	}

	buf, err := report.RenderCounters(report.Header{
		Title:       "Daily counters",
		Date:        date,
		BranchID:    filter.BranchID,
		GeneratedAt: time.Now(),
	}, rows)
	if err != nil {
		h.Logger.Error("counter report render failed", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "REPORT_FAILED", "Failed to render report")
		return
	}

	name := "counters_" + sanitizeFilename(date)
	if filter.BranchID != "" {
		name += "_" + sanitizeFilename(filter.BranchID)
	}
	response.PDF(w, name+".pdf", buf.Bytes())
}

type archivedReport struct {
	storage.ArchivedObject
	URL string `json:"url"`
}

// AdminResetArchives lists the reset reports archived for a day, newest
// first, each with a short-lived download link.
func (h *Handler) AdminResetArchives(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Archives == nil {
		response.Error(w, http.StatusServiceUnavailable, "ARCHIVE_DISABLED", "Report archive is not configured")
		return
	}

	date, err := counter.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		h.writeCounterError(w, r, err)
		return
	}

	objects, err := h.Archives.ListReports(ctx, report.ResetArchivePrefix(date))
	if err != nil {
		h.Logger.Error("list reset archives failed", zap.String("date", date), zap.Error(err))
		response.Error(w, http.StatusBadGateway, "ARCHIVE_UNAVAILABLE", "Failed to list archived reports")
		return
	}
	sort.Slice(objects, func(i, j int) bool {
		if !objects[i].LastModified.Equal(objects[j].LastModified) {
			return objects[i].LastModified.After(objects[j].LastModified)
		}
		return objects[i].Key > objects[j].Key
	})

	items := make([]archivedReport, 0, len(objects))
	for _, obj := range objects {
		link, err := h.Archives.DownloadURL(ctx, obj.Key)
		if err != nil {
			h.Logger.Warn("sign archive link failed", zap.String("key", obj.Key), zap.Error(err))
			continue
		}
		items = append(items, archivedReport{ArchivedObject: obj, URL: link})
	}
	response.Success(w, items)
}
