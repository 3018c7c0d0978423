package db

import (
	"context"
	"time"

	"sunsetcast/internal/types"
)

// Schema creates the predictions table. One row per (latitude, longitude,
// sunset_time); the uniqueness constraint makes re-insertion of recomputed
// predictions idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS predictions (
	id               BIGSERIAL PRIMARY KEY,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	latitude         DOUBLE PRECISION NOT NULL,
	longitude        DOUBLE PRECISION NOT NULL,
	sunset_time      TIMESTAMPTZ NOT NULL,
	data_type        TEXT NOT NULL,
	cloud_cover      DOUBLE PRECISION NOT NULL,
	cloud_low        DOUBLE PRECISION NOT NULL,
	cloud_mid        DOUBLE PRECISION NOT NULL,
	cloud_high       DOUBLE PRECISION NOT NULL,
	humidity         DOUBLE PRECISION NOT NULL,
	visibility       DOUBLE PRECISION NOT NULL,
	vpd              DOUBLE PRECISION NOT NULL,
	dust             DOUBLE PRECISION NOT NULL,
	pm2_5            DOUBLE PRECISION NOT NULL,
	pm10             DOUBLE PRECISION NOT NULL,
	aod              DOUBLE PRECISION NOT NULL,
	predicted_score  INTEGER NOT NULL,
	rating           TEXT NOT NULL,
	CONSTRAINT predictions_location_sunset_key UNIQUE (latitude, longitude, sunset_time)
);`

// StoredPrediction is one persisted prediction row.
type StoredPrediction struct {
	ID         int64                  `json:"id"`
	CreatedAt  time.Time              `json:"created_at"`
	Location   types.Location         `json:"location"`
	DataType   types.DataType         `json:"data_type"`
	Prediction types.SunsetPrediction `json:"prediction"`
}

// PredictionRepository provides data access for the predictions table.
type PredictionRepository struct {
	db DBTX
}

// NewPredictionRepository creates a repository backed by the given database
// connection (pool or transaction).
func NewPredictionRepository(db DBTX) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// EnsureSchema creates the predictions table when it does not exist.
func (r *PredictionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "creating predictions schema", err)
	}
	return nil
}

// Insert stores one prediction. Re-inserting a row for the same
// (latitude, longitude, sunset_time) is a no-op; Insert reports whether a new
// row was written.
func (r *PredictionRepository) Insert(ctx context.Context, loc types.Location, dt types.DataType, p types.SunsetPrediction) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO predictions
		 (latitude, longitude, sunset_time, data_type,
		  cloud_cover, cloud_low, cloud_mid, cloud_high,
		  humidity, visibility, vpd, dust, pm2_5, pm10, aod,
		  predicted_score, rating)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT ON CONSTRAINT predictions_location_sunset_key DO NOTHING`,
		loc.Lat,
		loc.Lon,
		p.SunsetTime,
		string(dt),
		p.Factors.CloudCover,
		p.Factors.CloudLow,
		p.Factors.CloudMid,
		p.Factors.CloudHigh,
		p.Factors.Humidity,
		p.Factors.VisibilityM,
		p.Factors.VPD,
		p.Factors.Dust,
		p.Factors.PM25,
		p.Factors.PM10,
		p.Factors.AOD,
		p.Score,
		string(p.Rating),
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "inserting prediction", err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertTimeline stores every entry of a timeline and returns the number of
// newly written rows. Entries that already exist are skipped silently.
func (r *PredictionRepository) InsertTimeline(ctx context.Context, tl *types.Timeline) (int, error) {
	var written int
	for _, entry := range tl.Entries {
		ok, err := r.Insert(ctx, tl.Location, entry.DataType, entry.Prediction)
		if err != nil {
			return written, err
		}
		if ok {
			written++
		}
	}
	return written, nil
}

// predictionColumns is the standard column set for prediction reads. The
// order must match scanPrediction.
const predictionColumns = `p.id, p.created_at, p.latitude, p.longitude, p.sunset_time, p.data_type,
	p.cloud_cover, p.cloud_low, p.cloud_mid, p.cloud_high,
	p.humidity, p.visibility, p.vpd, p.dust, p.pm2_5, p.pm10, p.aod,
	p.predicted_score, p.rating`

// ListByLocation returns the most recent stored predictions for a coordinate
// pair, newest sunset first. limit caps the result size; values outside
// [1,100] are clamped.
func (r *PredictionRepository) ListByLocation(ctx context.Context, lat, lon float64, limit int) ([]StoredPrediction, error) {
	if limit < 1 || limit > 100 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+predictionColumns+`
		 FROM predictions p
		 WHERE p.latitude = $1 AND p.longitude = $2
		 ORDER BY p.sunset_time DESC
		 LIMIT $3`,
		lat, lon, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "listing predictions", err)
	}
	defer rows.Close()

	var out []StoredPrediction
	for rows.Next() {
		var sp StoredPrediction
		var dataType, rating string
		err := rows.Scan(
			&sp.ID,
			&sp.CreatedAt,
			&sp.Location.Lat,
			&sp.Location.Lon,
			&sp.Prediction.SunsetTime,
			&dataType,
			&sp.Prediction.Factors.CloudCover,
			&sp.Prediction.Factors.CloudLow,
			&sp.Prediction.Factors.CloudMid,
			&sp.Prediction.Factors.CloudHigh,
			&sp.Prediction.Factors.Humidity,
			&sp.Prediction.Factors.VisibilityM,
			&sp.Prediction.Factors.VPD,
			&sp.Prediction.Factors.Dust,
			&sp.Prediction.Factors.PM25,
			&sp.Prediction.Factors.PM10,
			&sp.Prediction.Factors.AOD,
			&sp.Prediction.Score,
			&rating,
		)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "scanning prediction row", err)
		}
		sp.DataType = types.DataType(dataType)
		sp.Prediction.Rating = types.Rating(rating)
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "iterating prediction rows", err)
	}
	return out, nil
}
