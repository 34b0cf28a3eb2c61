package store

import (
	"strings"
	"time"

	"github.com/frontsight/frontsight/internal/models"
)

// Filter is a single conjunctive predicate over event columns, expressed as
// a SQL fragment with `?` placeholders. The store rebinds placeholders for
// its dialect before executing.
type Filter struct {
	Expr string
	Args []any
}

// EventFilters translates listing query parameters into the ordered
// predicate set: project scope first, then one equality per present scalar
// field, then the occurred_at range bounds, then the case-insensitive
// substring search across name/message/page_url. Absent fields contribute
// nothing, so an empty parameter bag selects every event of the project.
func EventFilters(projectID int64, p models.EventQueryParams) []Filter {
	filters := []Filter{{Expr: "project_id = ?", Args: []any{projectID}}}
	if p.EventType != nil {
		filters = append(filters, Filter{Expr: "event_type = ?", Args: []any{string(*p.EventType)}})
	}
	if p.UserID != nil {
		filters = append(filters, Filter{Expr: "user_id = ?", Args: []any{*p.UserID}})
	}
	if p.SessionID != nil {
		filters = append(filters, Filter{Expr: "session_id = ?", Args: []any{*p.SessionID}})
	}
	if p.Environment != nil {
		filters = append(filters, Filter{Expr: "environment = ?", Args: []any{*p.Environment}})
	}
	if p.Release != nil {
		filters = append(filters, Filter{Expr: `"release" = ?`, Args: []any{*p.Release}})
	}
	if p.OccurredFrom != nil {
		filters = append(filters, Filter{Expr: "occurred_at >= ?", Args: []any{p.OccurredFrom.UTC()}})
	}
	if p.OccurredTo != nil {
		filters = append(filters, Filter{Expr: "occurred_at <= ?", Args: []any{p.OccurredTo.UTC()}})
	}
	if p.Search != nil {
		like := "%" + strings.ToLower(*p.Search) + "%"
		filters = append(filters, Filter{
			Expr: "(LOWER(name) LIKE ? OR LOWER(COALESCE(message, '')) LIKE ? OR LOWER(COALESCE(page_url, '')) LIKE ?)",
			Args: []any{like, like, like},
		})
	}
	return filters
}

// TimeRangeFilters is the filter set used by the aggregation queries:
// project scope plus optional occurred_at bounds.
func TimeRangeFilters(projectID int64, start, end *time.Time) []Filter {
	filters := []Filter{{Expr: "project_id = ?", Args: []any{projectID}}}
	if start != nil {
		filters = append(filters, Filter{Expr: "occurred_at >= ?", Args: []any{start.UTC()}})
	}
	if end != nil {
		filters = append(filters, Filter{Expr: "occurred_at <= ?", Args: []any{end.UTC()}})
	}
	return filters
}

// whereClause joins filters into a WHERE fragment and its flattened args.
func whereClause(filters []Filter) (string, []any) {
	exprs := make([]string, 0, len(filters))
	var args []any
	for _, f := range filters {
		exprs = append(exprs, f.Expr)
		args = append(args, f.Args...)
	}
	return strings.Join(exprs, " AND "), args
}
