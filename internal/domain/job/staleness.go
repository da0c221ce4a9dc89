package job

import (
	"errors"
	"time"
)

// ErrInvalidThreshold indicates the configured staleness threshold is not positive.
var ErrInvalidThreshold = errors.New("staleness threshold must be positive")

// StalenessPolicy decides whether a dequeued job is still worth running.
// Inference on a frame is only useful within a bounded freshness window;
// spending a worker on a stale frame deepens the backlog instead of draining it.
type StalenessPolicy struct {
	threshold time.Duration
}

// NewStalenessPolicy constructs a StalenessPolicy with the provided threshold.
func NewStalenessPolicy(threshold time.Duration) (*StalenessPolicy, error) {
	if threshold <= 0 {
		return nil, ErrInvalidThreshold
	}
	return &StalenessPolicy{threshold: threshold}, nil
}

// Threshold returns the configured staleness threshold.
func (p *StalenessPolicy) Threshold() time.Duration {
	if p == nil {
		return 0
	}
	return p.threshold
}

// AdmissionDecision captures the outcome of evaluating a job's queue delay.
type AdmissionDecision struct {
	Latency time.Duration
	Drop    bool
}

// Evaluate computes the queue latency and decides admission. A job strictly
// over the threshold is dropped; a job at or under it proceeds to inference.
func (p *StalenessPolicy) Evaluate(submittedAt, now time.Time) AdmissionDecision {
	latency := now.Sub(submittedAt)
	return AdmissionDecision{
		Latency: latency,
		Drop:    latency > p.threshold,
	}
}
