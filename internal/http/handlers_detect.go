// Package httpx provides HTTP handlers and utilities for the inspection pipeline API.
package httpx

import (
	"errors"
	"io"
	"net/http"

	apperrors "github.com/sentinel-aoi/aoi-api/internal/errors"
	"github.com/sentinel-aoi/aoi-api/internal/service"
)

// multipartFormField is the form field carrying the uploaded frame.
const multipartFormField = "file"

// DetectHandlers provides HTTP handlers for frame submission.
type DetectHandlers struct {
	Svc *service.IngestService
	// MaxUploadBytes bounds how much of an upload is read into memory.
	MaxUploadBytes int64
}

// Submit handles HTTP requests to submit a frame for detection. It
// acknowledges acceptance into the queue; detection itself runs asynchronously.
func (h *DetectHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile(multipartFormField)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_upload",
			Err:     errors.New("multipart field 'file' is required"),
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_upload", Err: err})
		return
	}

	result, err := h.Svc.Submit(r.Context(), service.SubmitRequest{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeSubmitError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

func writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.IsValidation(err):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation_failed", Err: err})
	case apperrors.IsStorageUnavailable(err):
		WriteError(w, ErrorParams{
			Code:    http.StatusServiceUnavailable,
			ErrCode: "storage_unavailable",
			Err:     errors.New("artifact storage is unavailable"),
		})
	default:
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "submit_failed",
			Err:     errors.New("failed to accept submission"),
		})
	}
}
