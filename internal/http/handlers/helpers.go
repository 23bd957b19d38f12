package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"

	"hotelpos-billing-services/internal/counter"
	"hotelpos-billing-services/internal/middleware"
	"hotelpos-billing-services/pkg/response"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func readPathString(r *http.Request, key string) string {
	return strings.TrimSpace(chi.URLParam(r, key))
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeCounterError maps service errors to the API envelope. Anything that is
// not a counter.Error is an internal error.
func (h *Handler) writeCounterError(w http.ResponseWriter, r *http.Request, err error) {
	var cerr *counter.Error
	if errors.As(err, &cerr) {
		if cerr.Code == counter.CodePersistenceFailure {
			h.Logger.Error("counter request failed",
				zap.String("path", r.URL.Path),
				zap.String("requestId", middleware.RequestIDFromContext(r.Context())),
				zap.Error(err),
			)
			response.Error(w, cerr.StatusCode(), string(cerr.Code), "Counter is temporarily unavailable, no number was issued")
			return
		}
		response.Error(w, cerr.StatusCode(), string(cerr.Code), cerr.Message)
		return
	}
	h.Logger.Error("unexpected counter error", zap.String("path", r.URL.Path), zap.Error(err))
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
}

var filenameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func sanitizeFilename(value string) string {
	return strings.Trim(filenameUnsafe.ReplaceAllString(value, "_"), "_")
}
