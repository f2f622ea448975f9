package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/roamio/atlas/internal/usage/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() usagedomain.Repository {
	return &repo{}
}

func (r *repo) IncrementUsage(ctx context.Context, db *gorm.DB, candidate *usagedomain.UsageMetrics) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO usage_metrics (
			id, user_id, month, year,
			regions_created, places_created, checkins_count,
			images_uploaded, storage_used_mb, api_calls_count,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, month, year)
		DO UPDATE SET regions_created = usage_metrics.regions_created + EXCLUDED.regions_created,
		              places_created  = usage_metrics.places_created + EXCLUDED.places_created,
		              checkins_count  = usage_metrics.checkins_count + EXCLUDED.checkins_count,
		              images_uploaded = usage_metrics.images_uploaded + EXCLUDED.images_uploaded,
		              storage_used_mb = usage_metrics.storage_used_mb + EXCLUDED.storage_used_mb,
		              api_calls_count = usage_metrics.api_calls_count + EXCLUDED.api_calls_count,
		              updated_at      = EXCLUDED.updated_at`,
		candidate.ID,
		candidate.UserID,
		candidate.Month,
		candidate.Year,
		candidate.RegionsCreated,
		candidate.PlacesCreated,
		candidate.CheckinsCount,
		candidate.ImagesUploaded,
		candidate.StorageUsedMB,
		candidate.APICallsCount,
		candidate.CreatedAt,
		candidate.UpdatedAt,
	).Error
}

func (r *repo) FindBucket(ctx context.Context, db *gorm.DB, userID snowflake.ID, month, year int) (*usagedomain.UsageMetrics, error) {
	var row usagedomain.UsageMetrics
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, month, year,
		        regions_created, places_created, checkins_count,
		        images_uploaded, storage_used_mb, api_calls_count,
		        created_at, updated_at
		 FROM usage_metrics
		 WHERE user_id = ? AND month = ? AND year = ?`,
		userID,
		month,
		year,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

type totalsRow struct {
	Buckets        int
	RegionsCreated int
	PlacesCreated  int
	CheckinsCount  int
	ImagesUploaded int
	StorageUsedMB  float64 `gorm:"column:storage_used_mb"`
	APICallsCount  int
}

func (t totalsRow) totals() usagedomain.Totals {
	return usagedomain.Totals{
		RegionsCreated: t.RegionsCreated,
		PlacesCreated:  t.PlacesCreated,
		CheckinsCount:  t.CheckinsCount,
		ImagesUploaded: t.ImagesUploaded,
		StorageUsedMB:  t.StorageUsedMB,
		APICallsCount:  t.APICallsCount,
	}
}

func (r *repo) SumYear(ctx context.Context, db *gorm.DB, userID snowflake.ID, year int) (usagedomain.Totals, int, error) {
	var row totalsRow
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS buckets,
		        COALESCE(SUM(regions_created), 0) AS regions_created,
		        COALESCE(SUM(places_created), 0) AS places_created,
		        COALESCE(SUM(checkins_count), 0) AS checkins_count,
		        COALESCE(SUM(images_uploaded), 0) AS images_uploaded,
		        COALESCE(SUM(storage_used_mb), 0) AS storage_used_mb,
		        COALESCE(SUM(api_calls_count), 0) AS api_calls_count
		 FROM usage_metrics
		 WHERE user_id = ? AND year = ?`,
		userID,
		year,
	).Scan(&row).Error
	if err != nil {
		return usagedomain.Totals{}, 0, err
	}
	return row.totals(), row.Buckets, nil
}

func (r *repo) ListBuckets(ctx context.Context, db *gorm.DB, userID snowflake.ID, beforeKey, limit int) ([]usagedomain.UsageMetrics, error) {
	if limit <= 0 {
		limit = 12
	}

	query := `SELECT id, user_id, month, year,
	                 regions_created, places_created, checkins_count,
	                 images_uploaded, storage_used_mb, api_calls_count,
	                 created_at, updated_at
	          FROM usage_metrics
	          WHERE user_id = ?`
	args := []any{userID}
	if beforeKey > 0 {
		query += ` AND (year * 100 + month) < ?`
		args = append(args, beforeKey)
	}
	query += ` ORDER BY year DESC, month DESC LIMIT ?`
	args = append(args, limit)

	var rows []usagedomain.UsageMetrics
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type planTotalsRow struct {
	totalsRow
	UserCount int
}

func (r *repo) AggregateByPlan(ctx context.Context, db *gorm.DB, plan string, startKey, endKey int) (usagedomain.Totals, int, error) {
	var row planTotalsRow
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(DISTINCT m.user_id) AS user_count,
		        COALESCE(SUM(m.regions_created), 0) AS regions_created,
		        COALESCE(SUM(m.places_created), 0) AS places_created,
		        COALESCE(SUM(m.checkins_count), 0) AS checkins_count,
		        COALESCE(SUM(m.images_uploaded), 0) AS images_uploaded,
		        COALESCE(SUM(m.storage_used_mb), 0) AS storage_used_mb,
		        COALESCE(SUM(m.api_calls_count), 0) AS api_calls_count
		 FROM usage_metrics m
		 LEFT JOIN subscriptions s ON s.user_id = m.user_id
		 WHERE COALESCE(s.plan, 'free') = ?
		   AND (m.year * 100 + m.month) BETWEEN ? AND ?`,
		plan,
		startKey,
		endKey,
	).Scan(&row).Error
	if err != nil {
		return usagedomain.Totals{}, 0, err
	}
	return row.totals(), row.UserCount, nil
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *usagedomain.UsageEvent) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO usage_events (id, user_id, event_type, metadata, correlation_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.UserID,
		event.EventType,
		event.Metadata,
		event.CorrelationID,
		event.CreatedAt,
	).Error
}
