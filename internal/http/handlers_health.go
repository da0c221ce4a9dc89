package httpx

import (
	"io"
	"net/http"
)

const (
	healthResponse = `{"status":"ok"}`
	rootResponse   = `{"service":"aoi-api","status":"ok"}`
)

// healthHandler answers readiness/liveness probes.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeStatic(w, r, healthResponse)
}

// rootHandler identifies the service on the bare root path.
func rootHandler(w http.ResponseWriter, r *http.Request) {
	writeStatic(w, r, rootResponse)
}

func writeStatic(w http.ResponseWriter, r *http.Request, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	// A failed write means the client is gone.
	_, _ = io.WriteString(w, body)
}
