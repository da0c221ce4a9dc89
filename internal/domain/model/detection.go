package model

import (
	"errors"
	"fmt"
)

// BBox is an axis-aligned bounding box in source-image pixel coordinates,
// encoded on the wire as [x1, y1, x2, y2].
type BBox [4]float64

// Detection is one object found by the inference collaborator.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// Validate checks the detection value invariants: confidence in [0,1] and a
// non-degenerate box with x1<x2, y1<y2.
func (d *Detection) Validate() error {
	if d.Label == "" {
		return errors.New("label is required")
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0,1]", d.Confidence)
	}
	if d.BBox[0] >= d.BBox[2] {
		return fmt.Errorf("bbox x1 %v must be less than x2 %v", d.BBox[0], d.BBox[2])
	}
	if d.BBox[1] >= d.BBox[3] {
		return fmt.Errorf("bbox y1 %v must be less than y2 %v", d.BBox[1], d.BBox[3])
	}
	return nil
}

// ValidateDetections validates a slice of detections, reporting the first
// invalid entry by index.
func ValidateDetections(ds []Detection) error {
	for i := range ds {
		if err := ds[i].Validate(); err != nil {
			return fmt.Errorf("detection %d: %w", i, err)
		}
	}
	return nil
}
