package model

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrInspectionNotFound is returned when no durable record exists for a job ID.
var ErrInspectionNotFound = errors.New("inspection record not found")

// InspectionRecord represents a durably persisted detection result.
// Exactly one record exists per job that reached the succeeded state;
// duplicate completion attempts upsert onto the same row.
type InspectionRecord struct {
	JobID       string          `json:"job_id"       db:"job_id"`
	Filename    string          `json:"filename"     db:"filename"`
	ArtifactRef string          `json:"artifact_ref" db:"artifact_ref"`
	Detections  json.RawMessage `json:"detections"   db:"detections"`
	RecordedAt  time.Time       `json:"recorded_at"  db:"recorded_at"`
}

// DecodeDetections unmarshals the stored detections blob.
func (r *InspectionRecord) DecodeDetections() ([]Detection, error) {
	if len(r.Detections) == 0 {
		return []Detection{}, nil
	}
	var out []Detection
	if err := json.Unmarshal(r.Detections, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return []Detection{}, nil
	}
	return out, nil
}
