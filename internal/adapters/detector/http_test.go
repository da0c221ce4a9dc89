package detector

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-aoi/aoi-api/internal/domain/model"
)

func TestNewHTTPDetectorRequiresURL(t *testing.T) {
	_, err := NewHTTPDetector(HTTPDetectorOptions{})
	require.Error(t, err)
}

func TestHTTPDetectorDetect(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"detections":[{"label":"scratch","confidence":0.92,"bbox":[10,20,30,40]}]}`))
	}))
	defer srv.Close()

	d, err := NewHTTPDetector(HTTPDetectorOptions{URL: srv.URL})
	require.NoError(t, err)

	dets, err := d.Detect(context.Background(), []byte("imagebytes"))
	require.NoError(t, err)

	assert.Equal(t, "application/octet-stream", gotContentType)
	assert.Equal(t, []byte("imagebytes"), gotBody)
	require.Len(t, dets, 1)
	assert.Equal(t, "scratch", dets[0].Label)
	assert.Equal(t, 0.92, dets[0].Confidence)
	assert.Equal(t, model.BBox{10, 20, 30, 40}, dets[0].BBox)
}

func TestHTTPDetectorDetectEmptyList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"detections":null}`))
	}))
	defer srv.Close()

	d, err := NewHTTPDetector(HTTPDetectorOptions{URL: srv.URL})
	require.NoError(t, err)

	dets, err := d.Detect(context.Background(), []byte("imagebytes"))
	require.NoError(t, err)
	assert.NotNil(t, dets)
	assert.Empty(t, dets)
}

func TestHTTPDetectorDetectNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d, err := NewHTTPDetector(HTTPDetectorOptions{URL: srv.URL})
	require.NoError(t, err)

	_, err = d.Detect(context.Background(), []byte("imagebytes"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestHTTPDetectorDetectMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"detections":`))
	}))
	defer srv.Close()

	d, err := NewHTTPDetector(HTTPDetectorOptions{URL: srv.URL})
	require.NoError(t, err)

	_, err = d.Detect(context.Background(), []byte("imagebytes"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode inference response")
}

func TestHTTPDetectorDetectInvalidDetections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"detections":[{"label":"scratch","confidence":1.5,"bbox":[10,20,30,40]}]}`))
	}))
	defer srv.Close()

	d, err := NewHTTPDetector(HTTPDetectorOptions{URL: srv.URL})
	require.NoError(t, err)

	_, err = d.Detect(context.Background(), []byte("imagebytes"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid inference response")
}

func TestHTTPDetectorDetectCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"detections":[]}`))
	}))
	defer srv.Close()

	d, err := NewHTTPDetector(HTTPDetectorOptions{URL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = d.Detect(ctx, []byte("imagebytes"))
	require.ErrorIs(t, err, context.Canceled)
}
