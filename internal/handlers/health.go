package handlers

import (
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/pliu/pairchat/internal/store"
)

type HealthHandler struct {
	Store store.Store
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Health check failed")
		writeMessage(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
