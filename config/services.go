package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP ingestion and status server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeDetectRunner runs the detection worker pool.
	ServiceModeDetectRunner ServiceMode = "detect-runner"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeDetectRunner}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeDetectRunner:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, detect-runner)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// DetectorConfig contains detection worker pool and inference configuration.
type DetectorConfig struct {
	// URL is the endpoint of the inference sidecar the workers post images to.
	URL string `env:"DETECTOR_URL" envDefault:"http://localhost:9090/infer"`

	// Workers is the fixed size of the detection worker pool.
	Workers int `env:"DETECTOR_WORKERS" envDefault:"4"`

	// StalenessThresholdSeconds is the maximum tolerated queue delay before a
	// job is dropped at dequeue time instead of being processed.
	StalenessThresholdSeconds int `env:"DETECTOR_STALENESS_THRESHOLD_SECONDS" envDefault:"5"`

	// TimeLimitSeconds is the hard wall-clock budget for one job's execution.
	TimeLimitSeconds int `env:"DETECTOR_TIME_LIMIT_SECONDS" envDefault:"60"`
}

// Sanitize applies guardrails to detector configuration values.
func (d *DetectorConfig) Sanitize() {
	if d.Workers <= 0 {
		d.Workers = 4
	}
	if d.StalenessThresholdSeconds <= 0 {
		d.StalenessThresholdSeconds = 5
	}
	if d.TimeLimitSeconds <= 0 {
		d.TimeLimitSeconds = 60
	}
}

// StalenessThreshold returns the staleness threshold as a duration.
func (d *DetectorConfig) StalenessThreshold() time.Duration {
	return time.Duration(d.StalenessThresholdSeconds) * time.Second
}

// TimeLimit returns the per-job execution budget as a duration.
func (d *DetectorConfig) TimeLimit() time.Duration {
	return time.Duration(d.TimeLimitSeconds) * time.Second
}

// QueueConfig contains job queue configuration.
type QueueConfig struct {
	// Driver selects the queue implementation: "redis" (default) or "memory".
	// The memory queue is for development and tests only; it does not survive
	// a restart and cannot be shared between processes.
	Driver string `env:"QUEUE_DRIVER" envDefault:"redis"`

	// Key is the Redis list key carrying job descriptors.
	Key string `env:"QUEUE_KEY" envDefault:"aoi:jobs"`

	// TaskRetention is how long transient task state is kept after the last
	// update before the tracker garbage-collects it.
	TaskRetention time.Duration `env:"QUEUE_TASK_RETENTION" envDefault:"1h"`
}

// Sanitize applies guardrails to queue configuration values.
func (q *QueueConfig) Sanitize() {
	switch strings.ToLower(strings.TrimSpace(q.Driver)) {
	case "memory":
		q.Driver = "memory"
	default:
		q.Driver = "redis"
	}
	if q.Key == "" {
		q.Key = "aoi:jobs"
	}
	if q.TaskRetention <= 0 {
		q.TaskRetention = time.Hour
	}
}
