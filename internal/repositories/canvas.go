package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotcanvas/internal/canvas"
	"github.com/desertthunder/spotcanvas/internal/models"
	"github.com/desertthunder/spotcanvas/internal/shared"
)

const canvasColumns = "id, sequence, track_uri, mp4_url, canvas_uri, created_at, updated_at, deleted_at"

// CanvasRepository implements models.Repository[*models.PersistedCanvas].
//
// Canvases are unique by track URI. Soft-deleted rows keep that slot until [CanvasRepository.Upsert]
// revives them or [CanvasRepository.Purge] removes them.
type CanvasRepository struct {
	db *sql.DB
}

// NewCanvasRepository creates a new CanvasRepository with the given database connection
func NewCanvasRepository(db *sql.DB) *CanvasRepository {
	return &CanvasRepository{db: db}
}

// Create inserts a new [models.PersistedCanvas] with generated ID and sequence
func (r *CanvasRepository) Create(c *models.PersistedCanvas) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "canvases")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	c.SetID(shared.GenerateID())
	c.SetSequence(sequence)

	query := `
		INSERT INTO canvases (id, sequence, track_uri, mp4_url, canvas_uri, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, c.ID(), sequence, c.TrackURI(), c.MP4URL(), c.CanvasURI(), c.CreatedAt(), c.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert canvas: %w", err)
	}

	return nil
}

// Upsert inserts c or, when its track URI is already stored, overwrites the URLs in place
// and clears any soft delete. The stored ID and sequence win over the ones on c.
func (r *CanvasRepository) Upsert(c *models.PersistedCanvas) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "canvases")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now()
	query := `
		INSERT INTO canvases (id, sequence, track_uri, mp4_url, canvas_uri, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (track_uri) DO UPDATE SET
			mp4_url = excluded.mp4_url,
			canvas_uri = excluded.canvas_uri,
			updated_at = excluded.updated_at,
			deleted_at = NULL
	`

	if _, err := r.db.Exec(query, shared.GenerateID(), sequence, c.TrackURI(), c.MP4URL(), c.CanvasURI(), now, now); err != nil {
		return fmt.Errorf("failed to upsert canvas: %w", err)
	}

	stored, err := r.GetByTrackURI(c.TrackURI())
	if err != nil {
		return err
	}
	*c = *stored
	return nil
}

// Get retrieves a canvas by ID, excluding soft-deleted canvases
func (r *CanvasRepository) Get(id string) (*models.PersistedCanvas, error) {
	query := "SELECT " + canvasColumns + " FROM canvases WHERE id = ? AND deleted_at IS NULL"
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByTrackURI retrieves the canvas cached for a track.
//
// Returns an error wrapping [shared.ErrCacheMiss] when the track has no live row.
func (r *CanvasRepository) GetByTrackURI(trackURI string) (*models.PersistedCanvas, error) {
	query := "SELECT " + canvasColumns + " FROM canvases WHERE track_uri = ? AND deleted_at IS NULL"
	return r.scanOne(r.db.QueryRow(query, trackURI))
}

// Update modifies the URLs of an existing canvas
func (r *CanvasRepository) Update(c *models.PersistedCanvas) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	c.SetUpdatedAt(now)

	query := `
		UPDATE canvases
		SET mp4_url = ?, canvas_uri = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, c.MP4URL(), c.CanvasURI(), now, c.ID())
	if err != nil {
		return fmt.Errorf("failed to update canvas: %w", err)
	}

	return expectAffected(result, "canvas not found or already deleted: "+c.ID())
}

// Delete soft-deletes a canvas by ID
func (r *CanvasRepository) Delete(id string) error {
	query := `
		UPDATE canvases
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete canvas: %w", err)
	}

	return expectAffected(result, "canvas not found or already deleted: "+id)
}

// List retrieves canvases ordered by sequence.
//
// Supported criteria: "include_deleted" (bool) and "limit" (int).
func (r *CanvasRepository) List(criteria map[string]any) ([]*models.PersistedCanvas, error) {
	query := "SELECT " + canvasColumns + " FROM canvases"
	args := []any{}

	if includeDeleted, _ := criteria["include_deleted"].(bool); !includeDeleted {
		query += " WHERE deleted_at IS NULL"
	}

	query += " ORDER BY sequence ASC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query canvases: %w", err)
	}
	defer rows.Close()

	var canvases []*models.PersistedCanvas
	for rows.Next() {
		c, err := scanCanvas(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan canvas: %w", err)
		}
		canvases = append(canvases, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return canvases, nil
}

// Purge hard-deletes every canvas, live or soft-deleted, and returns how many rows were removed.
func (r *CanvasRepository) Purge() (int64, error) {
	result, err := r.db.Exec("DELETE FROM canvases")
	if err != nil {
		return 0, fmt.Errorf("failed to purge canvases: %w", err)
	}
	return result.RowsAffected()
}

// scanOne scans a single [sql.Row] into a [models.PersistedCanvas]
func (r *CanvasRepository) scanOne(row *sql.Row) (*models.PersistedCanvas, error) {
	c, err := scanCanvas(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan canvas: %w", err)
	}
	return c, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCanvas(s scanner) (*models.PersistedCanvas, error) {
	var (
		id        string
		sequence  int
		trackURI  string
		mp4URL    string
		canvasURI sql.NullString
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	if err := s.Scan(&id, &sequence, &trackURI, &mp4URL, &canvasURI, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}

	c := models.NewPersistedCanvas(sequence, canvas.Canvas{TrackURI: trackURI, MP4URL: mp4URL})
	c.SetID(id)
	if canvasURI.Valid {
		uri := canvasURI.String
		c.SetCanvasURI(&uri)
	}
	c.SetCreatedAt(createdAt)
	c.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		c.SetDeletedAt(&deletedAt.Time)
	}

	return c, nil
}

func expectAffected(result sql.Result, notFound string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return errors.New(notFound)
	}
	return nil
}
