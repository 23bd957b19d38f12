package handlers

import (
	"net/http"

	"hotelpos-billing-services/pkg/response"

	"go.uber.org/zap"
)

// Readiness fails while the event broker connection is down. Without a broker
// the service is always ready.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.Broker != nil {
		if err := h.Broker.Ping(); err != nil {
			h.Logger.Warn("readiness check failed", zap.String("dependency", "rabbitmq"), zap.Error(err))
			response.Error(w, http.StatusServiceUnavailable, "NOT_READY", "Event broker unavailable")
			return
		}
	}
	response.Success(w, map[string]string{"status": "ready"})
}
