package httpx

import (
	"errors"
	"net/http"

	apperrors "github.com/sentinel-aoi/aoi-api/internal/errors"
	"github.com/sentinel-aoi/aoi-api/internal/service"
)

// ResultHandlers provides HTTP handlers for status polling.
type ResultHandlers struct {
	Svc *service.StatusService
}

// GetResult handles HTTP requests to poll the state of a submitted job. The
// answer is always one of the four poll statuses; callers poll until a
// terminal one appears.
func (h *ResultHandlers) GetResult(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("task_id")
	if jobID == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_path",
			Err:     errors.New("task id is required"),
		})
		return
	}

	report, err := h.Svc.GetStatus(r.Context(), jobID)
	if err != nil {
		switch {
		case apperrors.IsValidation(err):
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation_failed", Err: err})
		default:
			WriteError(w, ErrorParams{
				Code:    http.StatusInternalServerError,
				ErrCode: "status_failed",
				Err:     errors.New("failed to read job status"),
			})
		}
		return
	}

	WriteJSON(w, http.StatusOK, report)
}
