// Package detector provides inference collaborator adapters.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sentinel-aoi/aoi-api/internal/core"
	"github.com/sentinel-aoi/aoi-api/internal/domain/model"
)

// maxResponseBodyBytes caps how much of the sidecar's response is read; a
// detection list for one frame is small and anything larger is broken.
const maxResponseBodyBytes = 1 << 20

// HTTPDetectorOptions configures an HTTPDetector.
type HTTPDetectorOptions struct {
	// URL is the inference endpoint the image is posted to. Required.
	URL string
	// HTTPClient is optional; the default has no timeout because the caller
	// bounds each call with the per-job execution budget context.
	HTTPClient *http.Client
}

// HTTPDetector posts image bytes to an inference sidecar and decodes the
// detection list from its JSON response.
type HTTPDetector struct {
	url  string
	http *http.Client
}

// NewHTTPDetector constructs an HTTPDetector.
func NewHTTPDetector(opts HTTPDetectorOptions) (*HTTPDetector, error) {
	if opts.URL == "" {
		return nil, errors.New("detector url is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 2 * time.Minute}
	}
	return &HTTPDetector{url: opts.URL, http: hc}, nil
}

// inferResponse is the sidecar's wire shape.
type inferResponse struct {
	Detections []model.Detection `json:"detections"`
}

// Detect runs one inference round trip under the caller's context.
func (d *HTTPDetector) Detect(ctx context.Context, imageData []byte) ([]model.Detection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send inference request: %w", err)
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if readErr != nil {
		if closeErr := resp.Body.Close(); closeErr != nil {
			return nil, errors.Join(
				fmt.Errorf("read inference response: %w", readErr),
				fmt.Errorf("close response body: %w", closeErr),
			)
		}
		return nil, fmt.Errorf("read inference response: %w", readErr)
	}
	if closeErr := resp.Body.Close(); closeErr != nil {
		return nil, fmt.Errorf("close response body: %w", closeErr)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference returned status %d", resp.StatusCode)
	}

	var out inferResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}
	if err := model.ValidateDetections(out.Detections); err != nil {
		return nil, fmt.Errorf("invalid inference response: %w", err)
	}
	if out.Detections == nil {
		out.Detections = []model.Detection{}
	}
	return out.Detections, nil
}

var _ core.Detector = (*HTTPDetector)(nil)
