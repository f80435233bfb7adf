package api

import "net/http"

// NewRouter binds the handler's routes onto a ServeMux.
func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/proposals", methodOnly(http.MethodPost, h.CreateProposal))
	mux.HandleFunc("/v1/decisions", methodOnly(http.MethodPost, h.RecordDecision))
	mux.HandleFunc("/v1/playbooks/", methodOnly(http.MethodPost, h.TriggerRun))
	mux.HandleFunc("/v1/runs/", methodOnly(http.MethodPost, h.RunAction))
	mux.HandleFunc("/v1/outbox", methodOnly(http.MethodGet, h.PollOutbox))
	mux.HandleFunc("/v1/outbox/", methodOnly(http.MethodPost, h.AckOutbox))
	mux.HandleFunc("/healthz", methodOnly(http.MethodGet, h.Health))
	return mux
}

func methodOnly(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		next(w, r)
	}
}
