// Package mocks provides mock implementations for testing the inspection pipeline.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockQueue := mocks.NewMockJobQueue(ctrl)
//	mockQueue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return("job-id", nil)
package mocks

// Generate mock for JobQueue interface from internal/core package.
// This creates MockJobQueue with methods for all JobQueue interface methods:
// Enqueue, Dequeue, SetState, GetState, StashResult
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_queue_mock.go github.com/sentinel-aoi/aoi-api/internal/core JobQueue

// Generate mock for InspectionRepository interface from internal/core package.
// This creates MockInspectionRepository with methods for all InspectionRepository interface methods:
// Upsert, GetByJobID
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=inspection_repository_mock.go github.com/sentinel-aoi/aoi-api/internal/core InspectionRepository

// Generate mock for BlobStore interface from internal/core package.
// This creates MockBlobStore with methods for all BlobStore interface methods:
// Put, Get
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=blob_store_mock.go github.com/sentinel-aoi/aoi-api/internal/core BlobStore

// Generate mock for Detector interface from internal/core package.
// This creates MockDetector with methods for all Detector interface methods:
// Detect
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=detector_mock.go github.com/sentinel-aoi/aoi-api/internal/core Detector
