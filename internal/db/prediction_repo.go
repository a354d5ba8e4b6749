package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"rainbowcast/internal/types"
)

// PredictionRepository provides data access for the predictions table, the
// persisted history of served predictions used for statistics and auditing.
type PredictionRepository struct {
	db DBTX
}

// NewPredictionRepository creates a PredictionRepository backed by the given
// database connection (pool or transaction).
func NewPredictionRepository(db DBTX) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// predictionColumns is the standard column set for prediction queries.
const predictionColumns = `id, created_at, probability, predicted_class, weather_data, model_version`

// scanPrediction scans a single prediction row. Column order must match
// predictionColumns.
func scanPrediction(row pgx.Row) (*types.PredictionRecord, error) {
	var rec types.PredictionRecord
	err := row.Scan(
		&rec.ID,
		&rec.CreatedAt,
		&rec.Probability,
		&rec.PredictedClass,
		&rec.WeatherData,
		&rec.ModelVersion,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Save inserts a prediction record. A missing ID is generated here rather
// than in the database so the caller can log it even when the insert fails.
func (r *PredictionRepository) Save(ctx context.Context, rec *types.PredictionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	const q = `
		INSERT INTO predictions (id, created_at, probability, predicted_class, weather_data, model_version)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, q,
		rec.ID,
		rec.CreatedAt,
		rec.Probability,
		rec.PredictedClass,
		rec.WeatherData,
		rec.ModelVersion,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "inserting prediction record", err)
	}
	return nil
}

// Recent returns the most recently created prediction records, newest first.
func (r *PredictionRepository) Recent(ctx context.Context, limit int) ([]*types.PredictionRecord, error) {
	const q = `
		SELECT ` + predictionColumns + `
		FROM predictions
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, q, limit)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "querying recent predictions", err)
	}
	defer rows.Close()

	return collectPredictions(rows)
}

// ListSince returns prediction records created at or after the cutoff, newest
// first, bounded by limit.
func (r *PredictionRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]*types.PredictionRecord, error) {
	const q = `
		SELECT ` + predictionColumns + `
		FROM predictions
		WHERE created_at >= $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, q, since, limit)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "querying predictions since cutoff", err)
	}
	defer rows.Close()

	return collectPredictions(rows)
}

// ListOlderThan returns prediction records created before the cutoff, oldest
// first, bounded by limit. Used by the retention job to page through records
// due for archival.
func (r *PredictionRepository) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*types.PredictionRecord, error) {
	const q = `
		SELECT ` + predictionColumns + `
		FROM predictions
		WHERE created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := r.db.Query(ctx, q, cutoff, limit)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "querying predictions older than cutoff", err)
	}
	defer rows.Close()

	return collectPredictions(rows)
}

// DeleteByIDs removes the identified prediction records and returns the
// number deleted. Used by the retention job after a page has been archived, so
// records inserted mid-run are never deleted unarchived.
func (r *PredictionRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	const q = `DELETE FROM predictions WHERE id = ANY($1)`

	tag, err := r.db.Exec(ctx, q, ids)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "deleting archived prediction records", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteOlderThan removes prediction records created before the cutoff and
// returns the number deleted.
func (r *PredictionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM predictions WHERE created_at < $1`

	tag, err := r.db.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "deleting old prediction records", err)
	}
	return tag.RowsAffected(), nil
}

func collectPredictions(rows pgx.Rows) ([]*types.PredictionRecord, error) {
	var records []*types.PredictionRecord
	for rows.Next() {
		rec, err := scanPrediction(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "scanning prediction record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "iterating prediction records", err)
	}
	return records, nil
}
