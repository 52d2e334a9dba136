package server

import "net/http"

// healthz is a liveness probe: the process is up and serving.
func (a *API) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// readyz reports whether the process can do useful work: the database must
// answer a ping. Subscriber count is informational only; zero subscribers is
// a valid steady state.
func (a *API) readyz(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	code := http.StatusOK

	dbState := "ok"
	if err := a.store.Ping(); err != nil {
		dbState = err.Error()
		status = "down"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": map[string]any{
			"database":    dbState,
			"subscribers": a.hub.Count(),
		},
	})
}
