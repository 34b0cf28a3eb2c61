package store

import (
	"context"
	"errors"
	"time"

	"github.com/frontsight/frontsight/internal/models"
)

// ErrNotFound is returned when a project id or API key resolves to nothing.
var ErrNotFound = errors.New("not found")

// Granularity selects the time-bucket width for grouped counts.
type Granularity string

const (
	GranularityHour Granularity = "hour"
	GranularityDay  Granularity = "day"
)

// BucketCount is one row of a grouped count: events of one type within one
// time bucket.
type BucketCount struct {
	Bucket    string
	EventType models.EventType
	Count     int64
}

// ProjectStore is the durable table of projects with unique API keys.
type ProjectStore interface {
	CreateProject(ctx context.Context, p models.Project) (models.Project, error)
	GetProject(ctx context.Context, id int64) (models.Project, error)
	GetProjectByKey(ctx context.Context, apiKey string) (models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	UpdateProject(ctx context.Context, p models.Project) error
	DeleteProject(ctx context.Context, id int64) error
}

// EventStore is the durable append-only table of events. All query methods
// take the conjunctive filter set produced by EventFilters or
// TimeRangeFilters; every filter set is project-scoped.
type EventStore interface {
	// InsertEvent persists an event, assigning its id and received_at.
	InsertEvent(ctx context.Context, e models.Event) (models.Event, error)
	// QueryEvents returns one page of matching events ordered by
	// occurred_at descending.
	QueryEvents(ctx context.Context, filters []Filter, offset, limit int) ([]models.Event, error)
	CountEvents(ctx context.Context, filters []Filter) (int64, error)
	// CountDistinctUsers counts distinct non-null user_id values.
	CountDistinctUsers(ctx context.Context, filters []Filter) (int64, error)
	// LatestOccurrence returns the max occurred_at, or nil when no event matches.
	LatestOccurrence(ctx context.Context, filters []Filter) (*time.Time, error)
	// CountByType returns per-type counts; types with no matches are absent.
	CountByType(ctx context.Context, filters []Filter) (map[string]int64, error)
	// GroupCountEvents returns (bucket, event_type, count) rows ordered by
	// ascending bucket key.
	GroupCountEvents(ctx context.Context, filters []Filter, g Granularity) ([]BucketCount, error)
}
