package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/spotcanvas/internal/models"
	"github.com/desertthunder/spotcanvas/internal/shared"
)

// FetchLogRepository persists [models.FetchLog] entries. Entries are never updated.
type FetchLogRepository struct {
	db *sql.DB
}

func NewFetchLogRepository(db *sql.DB) *FetchLogRepository {
	return &FetchLogRepository{db: db}
}

// Create appends an entry with a generated ID
func (r *FetchLogRepository) Create(entry *models.FetchLog) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	entry.SetID(shared.GenerateID())

	query := `
		INSERT INTO fetch_log (id, track_uri, outcome, detail, fetched_at)
		VALUES (?, ?, ?, ?, ?)
	`

	if _, err := r.db.Exec(query, entry.ID(), entry.TrackURI(), string(entry.Outcome()), entry.Detail(), entry.FetchedAt()); err != nil {
		return fmt.Errorf("failed to insert fetch log: %w", err)
	}

	return nil
}

// Record is shorthand for creating an entry from a lookup outcome.
func (r *FetchLogRepository) Record(trackURI string, outcome models.Outcome, detail string) error {
	return r.Create(models.NewFetchLog(trackURI, outcome, detail))
}

// Recent returns up to limit entries, newest first. A non-positive limit returns all entries.
func (r *FetchLogRepository) Recent(limit int) ([]*models.FetchLog, error) {
	query := "SELECT id, track_uri, outcome, detail, fetched_at FROM fetch_log ORDER BY fetched_at DESC, rowid DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return r.query(query, args...)
}

// ListByTrack returns every entry for a track, oldest first.
func (r *FetchLogRepository) ListByTrack(trackURI string) ([]*models.FetchLog, error) {
	query := "SELECT id, track_uri, outcome, detail, fetched_at FROM fetch_log WHERE track_uri = ? ORDER BY fetched_at ASC, rowid ASC"
	return r.query(query, trackURI)
}

// Clear removes all entries and returns how many were deleted.
func (r *FetchLogRepository) Clear() (int64, error) {
	result, err := r.db.Exec("DELETE FROM fetch_log")
	if err != nil {
		return 0, fmt.Errorf("failed to clear fetch log: %w", err)
	}
	return result.RowsAffected()
}

func (r *FetchLogRepository) query(query string, args ...any) ([]*models.FetchLog, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetch log: %w", err)
	}
	defer rows.Close()

	var entries []*models.FetchLog
	for rows.Next() {
		var (
			id        string
			trackURI  string
			outcome   string
			detail    sql.NullString
			fetchedAt time.Time
		)
		if err := rows.Scan(&id, &trackURI, &outcome, &detail, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fetch log: %w", err)
		}

		entry := models.NewFetchLog(trackURI, models.Outcome(outcome), detail.String)
		entry.SetID(id)
		entry.SetFetchedAt(fetchedAt)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}
