package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

type modelsResponse struct {
	Models []string          `json:"models"`
	States map[string]string `json:"states,omitempty"`
}

// Models lists the fallback order, first model first, with breaker state
// when a breaker is configured.
func (a *App) Models(w http.ResponseWriter, r *http.Request) {
	resp := modelsResponse{Models: a.gen.Models()}
	if a.breakers != nil {
		resp.States = a.breakers.States(resp.Models)
	}
	a.json(w, http.StatusOK, resp)
}
