package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/frontsight/frontsight/internal/models"
)

// Schema files are embedded so the service can self-bootstrap its database.
//
//go:embed schema_sqlite.sql
var schemaSQLite string

//go:embed schema_postgres.sql
var schemaPostgres string

// Dialect identifies the SQL backend behind a SQLStore.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStore implements ProjectStore and EventStore over sqlx. It serves two
// dialects: SQLite for local development and tests, Postgres for production.
type SQLStore struct {
	db      *sqlx.DB
	dialect Dialect
}

var (
	_ ProjectStore = (*SQLStore)(nil)
	_ EventStore   = (*SQLStore)(nil)
)

// Open connects to the database named by dbURL and fails fast if it is
// unreachable. Supported URL forms: "postgres://..." (pgx) and
// "sqlite://path" or a bare file path (go-sqlite3).
func Open(dbURL string) (*SQLStore, error) {
	driver, dsn, dialect := resolveDSN(dbURL)

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if dialect == DialectSQLite {
		// SQLite allows a single writer; one pooled connection also keeps
		// :memory: databases coherent across calls.
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLStore{db: db, dialect: dialect}, nil
}

func resolveDSN(dbURL string) (driver, dsn string, dialect Dialect) {
	if strings.HasPrefix(dbURL, "postgres://") || strings.HasPrefix(dbURL, "postgresql://") {
		return "pgx", dbURL, DialectPostgres
	}
	path := strings.TrimPrefix(dbURL, "sqlite://")
	if !strings.Contains(path, "?") {
		path += "?_foreign_keys=on"
	}
	return "sqlite3", path, DialectSQLite
}

// Dialect reports which SQL backend the store is connected to.
func (s *SQLStore) Dialect() Dialect { return s.dialect }

// EnsureSchema applies the embedded schema. Safe to run multiple times.
func (s *SQLStore) EnsureSchema() error {
	schema := schemaSQLite
	if s.dialect == DialectPostgres {
		schema = schemaPostgres
	}
	_, err := s.db.Exec(schema)
	return err
}

// Ping is used by the readiness endpoint to validate DB connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close shuts down the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// insertID runs an INSERT and returns the assigned auto-increment id.
// Postgres has no LastInsertId, so it appends RETURNING id instead.
func (s *SQLStore) insertID(ctx context.Context, query string, args []any) (int64, error) {
	if s.dialect == DialectPostgres {
		var id int64
		err := s.db.QueryRowContext(ctx, s.db.Rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// --- ProjectStore ---

func (s *SQLStore) CreateProject(ctx context.Context, p models.Project) (models.Project, error) {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	id, err := s.insertID(ctx, `
		INSERT INTO projects (name, description, api_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		[]any{p.Name, p.Description, p.APIKey, p.CreatedAt, p.UpdatedAt})
	if err != nil {
		return models.Project{}, fmt.Errorf("insert project: %w", err)
	}
	p.ID = id
	return p, nil
}

const projectColumns = "id, name, description, api_key, created_at, updated_at"

func (s *SQLStore) GetProject(ctx context.Context, id int64) (models.Project, error) {
	var p models.Project
	err := s.db.GetContext(ctx, &p,
		s.db.Rebind("SELECT "+projectColumns+" FROM projects WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *SQLStore) GetProjectByKey(ctx context.Context, apiKey string) (models.Project, error) {
	var p models.Project
	err := s.db.GetContext(ctx, &p,
		s.db.Rebind("SELECT "+projectColumns+" FROM projects WHERE api_key = ?"), apiKey)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, fmt.Errorf("api key: %w", ErrNotFound)
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("get project by key: %w", err)
	}
	return p, nil
}

func (s *SQLStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	projects := []models.Project{}
	err := s.db.SelectContext(ctx, &projects,
		"SELECT "+projectColumns+" FROM projects ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func (s *SQLStore) UpdateProject(ctx context.Context, p models.Project) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE projects SET name = ?, description = ?, api_key = ?, updated_at = ?
		WHERE id = ?`),
		p.Name, p.Description, p.APIKey, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("project %d: %w", p.ID, ErrNotFound)
	}
	return nil
}

// DeleteProject removes a project and cascade-deletes its events in the
// same transaction.
func (s *SQLStore) DeleteProject(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.db.Rebind("DELETE FROM events WHERE project_id = ?"), id); err != nil {
		return fmt.Errorf("delete project events: %w", err)
	}
	res, err := tx.ExecContext(ctx, s.db.Rebind("DELETE FROM projects WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// --- EventStore ---

const eventColumns = `id, project_id, event_type, name, message, payload,
	user_id, session_id, page_url, user_agent, environment, "release",
	occurred_at, received_at`

func (s *SQLStore) InsertEvent(ctx context.Context, e models.Event) (models.Event, error) {
	e.ReceivedAt = time.Now().UTC()
	if e.Payload == nil {
		e.Payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return models.Event{}, fmt.Errorf("marshal payload: %w", err)
	}

	id, err := s.insertID(ctx, `
		INSERT INTO events (project_id, event_type, name, message, payload,
			user_id, session_id, page_url, user_agent, environment, "release",
			occurred_at, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		[]any{e.ProjectID, string(e.EventType), e.Name, e.Message, string(payloadJSON),
			e.UserID, e.SessionID, e.PageURL, e.UserAgent, e.Environment, e.Release,
			e.OccurredAt.UTC(), e.ReceivedAt})
	if err != nil {
		return models.Event{}, fmt.Errorf("insert event: %w", err)
	}
	e.ID = id
	e.OccurredAt = e.OccurredAt.UTC()
	return e, nil
}

func (s *SQLStore) QueryEvents(ctx context.Context, filters []Filter, offset, limit int) ([]models.Event, error) {
	where, args := whereClause(filters)
	query := `SELECT ` + eventColumns + ` FROM events WHERE ` + where + `
		ORDER BY occurred_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var e models.Event
		var payload []byte
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.EventType, &e.Name, &e.Message, &payload,
			&e.UserID, &e.SessionID, &e.PageURL, &e.UserAgent, &e.Environment, &e.Release,
			&e.OccurredAt, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload for event %d: %w", e.ID, err)
		}
		e.OccurredAt = e.OccurredAt.UTC()
		e.ReceivedAt = e.ReceivedAt.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLStore) CountEvents(ctx context.Context, filters []Filter) (int64, error) {
	where, args := whereClause(filters)
	var count int64
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind("SELECT COUNT(*) FROM events WHERE "+where), args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

func (s *SQLStore) CountDistinctUsers(ctx context.Context, filters []Filter) (int64, error) {
	where, args := whereClause(filters)
	var count int64
	err := s.db.QueryRowContext(ctx, s.db.Rebind(
		"SELECT COUNT(DISTINCT user_id) FROM events WHERE "+where+" AND user_id IS NOT NULL"),
		args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count distinct users: %w", err)
	}
	return count, nil
}

func (s *SQLStore) LatestOccurrence(ctx context.Context, filters []Filter) (*time.Time, error) {
	where, args := whereClause(filters)
	var v any
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind("SELECT MAX(occurred_at) FROM events WHERE "+where), args...).Scan(&v)
	if err != nil {
		return nil, fmt.Errorf("latest occurrence: %w", err)
	}
	return scanTimestamp(v)
}

func (s *SQLStore) CountByType(ctx context.Context, filters []Filter) (map[string]int64, error) {
	where, args := whereClause(filters)
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(
		"SELECT event_type, COUNT(*) FROM events WHERE "+where+" GROUP BY event_type"),
		args...)
	if err != nil {
		return nil, fmt.Errorf("count by type: %w", err)
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var eventType string
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, err
		}
		counts[eventType] = count
	}
	return counts, rows.Err()
}

func (s *SQLStore) GroupCountEvents(ctx context.Context, filters []Filter, g Granularity) ([]BucketCount, error) {
	where, args := whereClause(filters)
	query := "SELECT " + s.bucketExpr(g) + " AS bucket, event_type, COUNT(*) FROM events WHERE " +
		where + " GROUP BY bucket, event_type ORDER BY bucket, event_type"

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("group count events: %w", err)
	}
	defer rows.Close()

	var out []BucketCount
	for rows.Next() {
		var bc BucketCount
		if err := rows.Scan(&bc.Bucket, &bc.EventType, &bc.Count); err != nil {
			return nil, err
		}
		out = append(out, bc)
	}
	return out, rows.Err()
}

// bucketExpr derives the lexically sortable time-bucket key for occurred_at:
// "YYYY-MM-DD HH:00:00" for hourly buckets, "YYYY-MM-DD" for daily. All
// stored timestamps are UTC, so buckets are UTC on both dialects.
func (s *SQLStore) bucketExpr(g Granularity) string {
	if s.dialect == DialectPostgres {
		if g == GranularityHour {
			return "to_char(occurred_at AT TIME ZONE 'UTC', 'YYYY-MM-DD HH24:00:00')"
		}
		return "to_char(occurred_at AT TIME ZONE 'UTC', 'YYYY-MM-DD')"
	}
	if g == GranularityHour {
		return "strftime('%Y-%m-%d %H:00:00', occurred_at)"
	}
	return "strftime('%Y-%m-%d', occurred_at)"
}

// scanTimestamp normalizes a MAX(occurred_at) result. Aggregate expressions
// lose the column's declared type on SQLite, so the driver may hand back the
// raw stored string rather than a time.Time.
func scanTimestamp(v any) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		u := t.UTC()
		return &u, nil
	case string:
		return parseTimestamp(t)
	case []byte:
		return parseTimestamp(string(t))
	}
	return nil, fmt.Errorf("unexpected timestamp type %T", v)
}

// parseTimestamp tries the timestamp formats the drivers are known to emit.
func parseTimestamp(s string) (*time.Time, error) {
	formats := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07:00",
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			u := t.UTC()
			return &u, nil
		}
	}
	return nil, fmt.Errorf("cannot parse timestamp: %s", s)
}
