package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/frontsight/frontsight/internal/models"
	"github.com/frontsight/frontsight/internal/store"
)

// Pagination bounds for event listing. Out-of-range requests are clamped,
// not rejected.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// EventService orchestrates event ingestion, filtered listing, and the
// aggregation queries behind the stats endpoints. It is stateless: every
// call re-executes its queries against the store.
type EventService struct {
	events store.EventStore
}

func NewEventService(events store.EventStore) *EventService {
	return &EventService{events: events}
}

// RecordEvent persists one event for a resolved project. The project id is
// always injected from the project, never taken from the payload, and
// occurred_at defaults to ingestion time. Payload contents are opaque.
func (s *EventService) RecordEvent(ctx context.Context, project models.Project, in models.EventCreate) (models.Event, error) {
	eventType, ok := models.ParseEventType(in.EventType)
	if !ok {
		return models.Event{}, fmt.Errorf("event_type %q: %w", in.EventType, ErrInvalidArgument)
	}

	occurredAt := time.Now().UTC()
	if in.OccurredAt != nil {
		occurredAt = in.OccurredAt.UTC()
	}

	return s.events.InsertEvent(ctx, models.Event{
		ProjectID:   project.ID,
		EventType:   eventType,
		Name:        in.Name,
		Message:     in.Message,
		Payload:     in.Payload,
		UserID:      in.UserID,
		SessionID:   in.SessionID,
		PageURL:     in.PageURL,
		UserAgent:   in.UserAgent,
		Environment: in.Environment,
		Release:     in.Release,
		OccurredAt:  occurredAt,
	})
}

// ListEvents runs a count query and a page query over the same conjunctive
// filter set. Items are ordered by occurred_at descending; Total is the
// full matching count, not the page size.
func (s *EventService) ListEvents(ctx context.Context, projectID int64, params models.EventQueryParams) (models.EventPage, error) {
	filters := store.EventFilters(projectID, params)

	total, err := s.events.CountEvents(ctx, filters)
	if err != nil {
		return models.EventPage{}, err
	}

	page := clampPage(params.Page)
	pageSize := clampPageSize(params.PageSize)

	items, err := s.events.QueryEvents(ctx, filters, (page-1)*pageSize, pageSize)
	if err != nil {
		return models.EventPage{}, err
	}

	return models.EventPage{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func clampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func clampPageSize(size int) int {
	if size == 0 {
		return DefaultPageSize
	}
	if size < 1 {
		return 1
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}

// Summary computes the aggregate statistics for a project over an optional
// time range: total count, distinct non-null user count, latest occurrence,
// and per-type counts with zero-count types omitted.
//
// The four sub-aggregates are independent reads, so a concurrent insert
// between them can skew total_events against counts_by_type by the number
// of events inserted mid-computation. That window is accepted.
func (s *EventService) Summary(ctx context.Context, projectID int64, start, end *time.Time) (models.Summary, error) {
	filters := store.TimeRangeFilters(projectID, start, end)

	total, err := s.events.CountEvents(ctx, filters)
	if err != nil {
		return models.Summary{}, err
	}
	uniqueUsers, err := s.events.CountDistinctUsers(ctx, filters)
	if err != nil {
		return models.Summary{}, err
	}
	latest, err := s.events.LatestOccurrence(ctx, filters)
	if err != nil {
		return models.Summary{}, err
	}
	counts, err := s.events.CountByType(ctx, filters)
	if err != nil {
		return models.Summary{}, err
	}

	return models.Summary{
		TotalEvents:  total,
		UniqueUsers:  uniqueUsers,
		LatestEvent:  latest,
		CountsByType: counts,
	}, nil
}

// Timeseries groups matching events by (time bucket, event type) and
// reshapes the rows into one entry per non-empty bucket, in ascending
// bucket order. Unlike Summary, every bucket's counts map carries all event
// types, zeroes included. Empty buckets within the range are not emitted.
func (s *EventService) Timeseries(ctx context.Context, projectID int64, start, end *time.Time, granularity string) ([]models.TimeseriesBucket, error) {
	g := store.Granularity(granularity)
	if g != store.GranularityHour && g != store.GranularityDay {
		return nil, fmt.Errorf("granularity %q: %w", granularity, ErrInvalidArgument)
	}

	filters := store.TimeRangeFilters(projectID, start, end)
	rows, err := s.events.GroupCountEvents(ctx, filters, g)
	if err != nil {
		return nil, err
	}

	buckets := map[string]map[string]int64{}
	for _, row := range rows {
		counts, ok := buckets[row.Bucket]
		if !ok {
			counts = make(map[string]int64, len(models.EventTypes()))
			for _, t := range models.EventTypes() {
				counts[string(t)] = 0
			}
			buckets[row.Bucket] = counts
		}
		counts[string(row.EventType)] += row.Count
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]models.TimeseriesBucket, 0, len(keys))
	for _, k := range keys {
		counts := buckets[k]
		var total int64
		for _, c := range counts {
			total += c
		}
		out = append(out, models.TimeseriesBucket{Bucket: k, Counts: counts, Total: total})
	}
	return out, nil
}
