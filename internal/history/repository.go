// Package history stores every camera firing in the firings table and
// reads it back for the status API.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/sunspy/internal/camera"
	"github.com/nerrad567/sunspy/internal/schedule"
)

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 500
)

// Record is one row of firing history.
type Record struct {
	ID         string        `json:"id"`
	EventID    string        `json:"event_id"`
	CameraID   int           `json:"camera_id"`
	CameraName string        `json:"camera_name"`
	Action     camera.Action `json:"action"`
	Expression string        `json:"expression"`
	Deadline   time.Time     `json:"deadline"`
	FiredAt    time.Time     `json:"fired_at"`
	StatusCode int           `json:"status_code"`
	Error      string        `json:"error,omitempty"`
	DryRun     bool          `json:"dry_run"`
}

// FromFiring converts a scheduler firing into a Record.
func FromFiring(f schedule.Firing) Record {
	r := Record{
		ID:         f.ID,
		EventID:    f.EventID,
		CameraID:   f.CameraID,
		CameraName: f.CameraName,
		Action:     f.Action,
		Expression: f.Expression,
		Deadline:   f.Deadline,
		FiredAt:    f.FiredAt,
		StatusCode: f.StatusCode,
		DryRun:     f.DryRun,
	}
	if f.Err != nil {
		r.Error = f.Err.Error()
	}
	return r
}

// Filter selects which records List returns.
type Filter struct {
	CameraID int       // optional
	Since    time.Time // optional: fired at or after
	Limit    int       // default 50, max 500
	Offset   int
}

// ListResult is one page of records, most recent first.
type ListResult struct {
	Records []Record `json:"firings"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// Repository reads and writes firing history.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores firing history in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts r. ID and FiredAt are filled in when empty.
func (s *SQLiteRepository) Create(ctx context.Context, r *Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.FiredAt.IsZero() {
		r.FiredAt = time.Now().UTC()
	}
	if !r.Action.Valid() {
		return fmt.Errorf("inserting firing: %w: %d", camera.ErrInvalidAction, r.Action)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO firings (id, event_id, camera_id, camera_name, action, expression, deadline, fired_at, status_code, error, dry_run)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.EventID, r.CameraID, r.CameraName, r.Action.String(), r.Expression,
		formatTime(r.Deadline), formatTime(r.FiredAt),
		r.StatusCode, nullableString(r.Error), boolToInt(r.DryRun),
	)
	if err != nil {
		return fmt.Errorf("inserting firing: %w", err)
	}
	return nil
}

// Prune deletes records fired before cutoff and returns how many went.
func (s *SQLiteRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM firings WHERE fired_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("pruning firings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning firings: %w", err)
	}
	return n, nil
}

// List returns records matching filter, most recent first.
func (s *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.CameraID > 0 {
		conditions = append(conditions, "camera_id = ?")
		args = append(args, filter.CameraID)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "fired_at >= ?")
		args = append(args, formatTime(filter.Since))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM firings " + where //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting firings: %w", err)
	}

	query := `SELECT id, event_id, camera_id, camera_name, action, expression, deadline, fired_at, status_code, error, dry_run
		FROM firings ` + where + ` ORDER BY fired_at DESC, rowid DESC LIMIT ? OFFSET ?` //nolint:gosec // WHERE built from parameterised conditions
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying firings: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating firings: %w", err)
	}

	return &ListResult{Records: records, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var r Record
	var action, deadline, firedAt string
	var errText sql.NullString
	var dryRun int

	if err := rows.Scan(&r.ID, &r.EventID, &r.CameraID, &r.CameraName, &action, &r.Expression,
		&deadline, &firedAt, &r.StatusCode, &errText, &dryRun); err != nil {
		return Record{}, fmt.Errorf("scanning firing: %w", err)
	}

	if err := r.Action.UnmarshalText([]byte(action)); err != nil {
		return Record{}, fmt.Errorf("firing %s: %w", r.ID, err)
	}
	var err error
	if r.Deadline, err = parseTime(deadline); err != nil {
		return Record{}, err
	}
	if r.FiredAt, err = parseTime(firedAt); err != nil {
		return Record{}, err
	}
	r.Error = errText.String
	r.DryRun = dryRun != 0
	return r, nil
}

// Timestamps are stored as UTC RFC 3339 with nanoseconds so that string
// order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing firing timestamp %q: %w", s, err)
	}
	return t, nil
}

// nullableString maps "" to NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
