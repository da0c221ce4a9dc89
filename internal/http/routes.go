package httpx

import (
	"log/slog"
	"net/http"

	"github.com/sentinel-aoi/aoi-api/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Ingest *service.IngestService
	Status *service.StatusService
	// MaxUploadBytes bounds submission size; zero means the handler default.
	MaxUploadBytes int64
	Logger         *slog.Logger // Logger for request logging and panic recovery (optional)
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	detectHandlers := &DetectHandlers{Svc: services.Ingest, MaxUploadBytes: services.MaxUploadBytes}
	resultHandlers := &ResultHandlers{Svc: services.Status}

	mux.HandleFunc("POST /api/v1/detect", detectHandlers.Submit)
	mux.HandleFunc("GET /api/v1/results/{task_id}", resultHandlers.GetResult)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /{$}", http.HandlerFunc(rootHandler))

	var handler http.Handler = mux
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}
