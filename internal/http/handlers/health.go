package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if a.Pool != nil {
		resp["pipeline"] = a.Pool.Stats()
	}
	a.json(w, http.StatusOK, resp)
}
