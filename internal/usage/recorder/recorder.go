// Package recorder turns product events into usage increments without ever
// failing the action that produced them.
package recorder

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/roamio/atlas/internal/clock"
	"github.com/roamio/atlas/internal/metricspush"
	obsmetrics "github.com/roamio/atlas/internal/observability/metrics"
	usagedomain "github.com/roamio/atlas/internal/usage/domain"
	"github.com/roamio/atlas/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventType enumerates the product actions the recorder understands.
type EventType string

const (
	EventRegionCreated  EventType = "region_created"
	EventPlaceCreated   EventType = "place_created"
	EventCheckinCreated EventType = "checkin_created"
	EventImageUploaded  EventType = "image_uploaded"
	EventAPICall        EventType = "api_call"
)

// Event is one product action to meter. SizeKB only applies to
// image_uploaded.
type Event struct {
	Type     EventType      `json:"type"`
	SizeKB   float64        `json:"size_kb,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Meter   usagedomain.Service
	Repo    usagedomain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Recorder struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	meter   usagedomain.Service
	repo    usagedomain.Repository
	metrics *obsmetrics.Metrics
}

func NewRecorder(p Params) *Recorder {
	return &Recorder{
		db:      p.DB,
		log:     p.Log.Named("usage.recorder"),
		genID:   p.GenID,
		clock:   p.Clock,
		meter:   p.Meter,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

// Record meters one product event. It never returns an error: the caller's
// primary write already committed, so failures here are logged, counted and
// dropped.
func (r *Recorder) Record(ctx context.Context, userID string, event Event) {
	ctx, cid := correlation.EnsureCorrelationID(ctx)
	log := r.log.With(
		zap.String("correlation_id", cid),
		zap.String("user_id", userID),
		zap.String("event_type", string(event.Type)),
	)

	deltas, ok := deltasFor(event)
	if !ok {
		log.Warn("usage event dropped", zap.String("reason", "unknown_event_type"))
		r.metrics.RecordUsageEventDropped(ctx, string(event.Type), "unknown_event_type")
		return
	}
	if event.SizeKB < 0 {
		log.Warn("usage event dropped", zap.String("reason", "negative_size_kb"))
		r.metrics.RecordUsageEventDropped(ctx, string(event.Type), "negative_size_kb")
		return
	}

	summary, err := r.meter.RecordUsage(ctx, userID, deltas)
	if err != nil {
		log.Warn("usage event dropped", zap.String("reason", "meter_rejected"), zap.Error(err))
		r.metrics.RecordUsageEventDropped(ctx, string(event.Type), "meter_rejected")
		return
	}

	r.metrics.RecordUsageEvent(ctx, string(event.Type))
	metricspush.RecordUsageEvent(string(event.Type))

	r.appendAudit(ctx, log, summary.UserID, event, cid)
}

// deltasFor maps an event onto bucket increments. The bool reports whether
// the event type is known.
func deltasFor(event Event) (usagedomain.Deltas, bool) {
	switch event.Type {
	case EventRegionCreated:
		return usagedomain.Deltas{RegionsCreated: 1}, true
	case EventPlaceCreated:
		return usagedomain.Deltas{PlacesCreated: 1}, true
	case EventCheckinCreated:
		return usagedomain.Deltas{CheckinsCount: 1}, true
	case EventImageUploaded:
		return usagedomain.Deltas{ImagesUploaded: 1, StorageUsedMB: event.SizeKB / 1024}, true
	case EventAPICall:
		return usagedomain.Deltas{APICallsCount: 1}, true
	default:
		return usagedomain.Deltas{}, false
	}
}

// appendAudit writes the insert-only trail behind the aggregates. The bucket
// increment already landed, so an audit failure is only logged.
func (r *Recorder) appendAudit(ctx context.Context, log *zap.Logger, userID snowflake.ID, event Event, cid string) {
	row := &usagedomain.UsageEvent{
		ID:            r.genID.Generate(),
		UserID:        userID,
		EventType:     string(event.Type),
		CorrelationID: cid,
		CreatedAt:     r.clock.Now(),
	}
	if event.Metadata != nil {
		row.Metadata = datatypes.JSONMap(event.Metadata)
	}
	if err := r.repo.InsertEvent(ctx, r.db, row); err != nil {
		log.Warn("usage audit row not written", zap.Error(err))
	}
}
