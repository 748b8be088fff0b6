package repositories

import (
	"errors"
	"fmt"

	"github.com/desertthunder/spotcanvas/internal/canvas"
	"github.com/desertthunder/spotcanvas/internal/models"
	"github.com/desertthunder/spotcanvas/internal/shared"
)

// CanvasCacheAdapter implements tasks.CanvasCache using CanvasRepository.
type CanvasCacheAdapter struct {
	repo *CanvasRepository
}

// NewCanvasCacheAdapter creates a new CanvasCacheAdapter with the given repository
func NewCanvasCacheAdapter(repo *CanvasRepository) *CanvasCacheAdapter {
	return &CanvasCacheAdapter{repo: repo}
}

// Lookup returns the cached canvas for trackURI, or an error wrapping [shared.ErrCacheMiss].
func (a *CanvasCacheAdapter) Lookup(trackURI string) (*canvas.Canvas, error) {
	stored, err := a.repo.GetByTrackURI(trackURI)
	if errors.Is(err, shared.ErrCacheMiss) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrCacheUnavailable, err)
	}

	c := stored.Canvas()
	return &c, nil
}

// Store caches c, replacing whatever was stored for the same track.
func (a *CanvasCacheAdapter) Store(c *canvas.Canvas) error {
	if c == nil {
		return nil
	}
	if err := a.repo.Upsert(models.NewPersistedCanvas(0, *c)); err != nil {
		return fmt.Errorf("failed to cache canvas: %w", err)
	}
	return nil
}
