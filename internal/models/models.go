package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/spotcanvas/internal/canvas"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// PersistedCanvas is a canvas stored in the local cache.
type PersistedCanvas struct {
	id        string
	sequence  int
	trackURI  string
	mp4URL    string
	canvasURI *string
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewPersistedCanvas builds an unsaved [PersistedCanvas] from a fetched canvas.
func NewPersistedCanvas(sequence int, c canvas.Canvas) *PersistedCanvas {
	now := time.Now()
	return &PersistedCanvas{
		sequence:  sequence,
		trackURI:  c.TrackURI,
		mp4URL:    c.MP4URL,
		canvasURI: c.URI,
		createdAt: now,
		updatedAt: now,
	}
}

func (p *PersistedCanvas) ID() string { return p.id }
func (p *PersistedCanvas) Sequence() int { return p.sequence }
func (p *PersistedCanvas) TrackURI() string { return p.trackURI }
func (p *PersistedCanvas) MP4URL() string { return p.mp4URL }
func (p *PersistedCanvas) CanvasURI() *string { return p.canvasURI }
func (p *PersistedCanvas) CreatedAt() time.Time { return p.createdAt }
func (p *PersistedCanvas) UpdatedAt() time.Time { return p.updatedAt }
func (p *PersistedCanvas) DeletedAt() *time.Time { return p.deletedAt }

func (p *PersistedCanvas) SetID(id string) { p.id = id }
func (p *PersistedCanvas) SetSequence(seq int) { p.sequence = seq }
func (p *PersistedCanvas) SetMP4URL(url string) { p.mp4URL = url }
func (p *PersistedCanvas) SetCanvasURI(uri *string) { p.canvasURI = uri }
func (p *PersistedCanvas) SetCreatedAt(t time.Time) { p.createdAt = t }
func (p *PersistedCanvas) SetUpdatedAt(t time.Time) { p.updatedAt = t }
func (p *PersistedCanvas) SetDeletedAt(t *time.Time) { p.deletedAt = t }

// Validate requires a track URI and an MP4 URL.
func (p *PersistedCanvas) Validate() error {
	if strings.TrimSpace(p.trackURI) == "" {
		return errors.New("track URI is required")
	}
	if strings.TrimSpace(p.mp4URL) == "" {
		return fmt.Errorf("mp4 URL is required for %s", p.trackURI)
	}
	return nil
}

// Canvas converts back to the client type.
func (p *PersistedCanvas) Canvas() canvas.Canvas {
	return canvas.Canvas{MP4URL: p.mp4URL, URI: p.canvasURI, TrackURI: p.trackURI}
}

// Outcome classifies a single canvas lookup.
type Outcome string

const (
	OutcomeFound    Outcome = "found"
	OutcomeCached   Outcome = "cached"
	OutcomeNotFound Outcome = "not_found"
	OutcomeError    Outcome = "error"
	OutcomeSkipped  Outcome = "skipped"
)

func (o Outcome) valid() bool {
	switch o {
	case OutcomeFound, OutcomeCached, OutcomeNotFound, OutcomeError, OutcomeSkipped:
		return true
	}
	return false
}

// FetchLog records one lookup. Entries are append-only, so UpdatedAt equals CreatedAt.
type FetchLog struct {
	id        string
	trackURI  string
	outcome   Outcome
	detail    string
	fetchedAt time.Time
}

func NewFetchLog(trackURI string, outcome Outcome, detail string) *FetchLog {
	return &FetchLog{trackURI: trackURI, outcome: outcome, detail: detail, fetchedAt: time.Now()}
}

// OutcomeFor maps a fetch error to its [Outcome].
func OutcomeFor(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeFound
	case errors.Is(err, canvas.ErrNotFound):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}

func (f *FetchLog) ID() string { return f.id }
func (f *FetchLog) TrackURI() string { return f.trackURI }
func (f *FetchLog) Outcome() Outcome { return f.outcome }
func (f *FetchLog) Detail() string { return f.detail }
func (f *FetchLog) FetchedAt() time.Time { return f.fetchedAt }
func (f *FetchLog) CreatedAt() time.Time { return f.fetchedAt }
func (f *FetchLog) UpdatedAt() time.Time { return f.fetchedAt }

func (f *FetchLog) SetID(id string) { f.id = id }
func (f *FetchLog) SetFetchedAt(t time.Time) { f.fetchedAt = t }

func (f *FetchLog) Validate() error {
	if strings.TrimSpace(f.trackURI) == "" {
		return errors.New("track URI is required")
	}
	if !f.outcome.valid() {
		return fmt.Errorf("unknown outcome %q", f.outcome)
	}
	return nil
}
