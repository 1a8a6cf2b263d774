// health.go — health check.
package handlers

import (
	"encoding/json"
	"net/http"
)

// pingResponse — ответ health check.
type pingResponse struct {
	Status string `json:"status"`
}

// Ping — GET /ping
// Константный payload, без аутентификации и побочных эффектов.
func (h *Handler) Ping(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(pingResponse{Status: "ok"})
}
