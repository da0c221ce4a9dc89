package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/sentinel-aoi/aoi-api/internal/data/pgxutil"
	"github.com/sentinel-aoi/aoi-api/internal/domain/model"
	apperrors "github.com/sentinel-aoi/aoi-api/internal/errors"
)

var (
	// ErrInspectionsNotConfigured is returned when the repository has no database.
	ErrInspectionsNotConfigured = errors.New("inspection repository not configured")
	// ErrJobIDRequired is returned when a job ID is missing.
	ErrJobIDRequired = errors.New("job id is required")
)

// InspectionRepo provides Postgres persistence for completed inspection records.
type InspectionRepo struct {
	DB *sql.DB
}

// NewInspectionRepo constructs an InspectionRepo.
func NewInspectionRepo(db *sql.DB) *InspectionRepo {
	return &InspectionRepo{DB: db}
}

// Upsert stores or updates the inspection record for a job. The write is
// idempotent on job_id: concurrent or repeated completion attempts land on
// the same row.
func (r *InspectionRepo) Upsert(ctx context.Context, rec *model.InspectionRecord) error {
	if r == nil || r.DB == nil {
		return ErrInspectionsNotConfigured
	}
	if rec == nil || strings.TrimSpace(rec.JobID) == "" {
		return ErrJobIDRequired
	}
	detections := rec.Detections
	if len(detections) == 0 {
		detections = []byte(`[]`)
	}
	const query = `
		INSERT INTO inspections (job_id, filename, artifact_ref, detections, recorded_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (job_id)
		DO UPDATE SET
			filename = EXCLUDED.filename,
			artifact_ref = EXCLUDED.artifact_ref,
			detections = EXCLUDED.detections;`
	if _, err := r.DB.ExecContext(ctx, query, rec.JobID, rec.Filename, rec.ArtifactRef, detections); err != nil {
		return fmt.Errorf("upsert inspections: %w", apperrors.MapDBError(err))
	}
	return nil
}

// GetByJobID retrieves the inspection record for a given job ID.
func (r *InspectionRepo) GetByJobID(ctx context.Context, jobID string) (*model.InspectionRecord, error) {
	if r == nil || r.DB == nil {
		return nil, ErrInspectionsNotConfigured
	}
	if jobID == "" {
		return nil, ErrJobIDRequired
	}

	const query = `
		SELECT job_id, filename, artifact_ref, detections, recorded_at
		FROM inspections
		WHERE job_id = $1`

	var rec *model.InspectionRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, jobID)
		if err != nil {
			return err
		}
		defer rows.Close()
		record, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.InspectionRecord])
		if err != nil {
			return err
		}
		rec = &record
		return nil
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrInspectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get inspections: %w", apperrors.MapDBError(err))
	}
	return rec, nil
}
