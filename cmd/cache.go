package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotcanvas/internal/repositories"
	"github.com/desertthunder/spotcanvas/internal/ui"
)

type cachedCanvas struct {
	TrackURI  string    `json:"track_uri"`
	MP4URL    string    `json:"mp4_url"`
	CanvasURI *string   `json:"uri"`
	UpdatedAt time.Time `json:"updated_at"`
}

type fetchEntry struct {
	TrackURI  string    `json:"track_uri"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CacheList prints cached canvases, or the lookup history with --history.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.store()
	if err != nil {
		return err
	}

	limit := cmd.Int("limit")
	if cmd.Bool("history") {
		entries, err := repositories.NewFetchLogRepository(db).Recent(limit)
		if err != nil {
			return err
		}

		out := make([]fetchEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, fetchEntry{TrackURI: e.TrackURI(), Outcome: string(e.Outcome()), Detail: e.Detail(), FetchedAt: e.FetchedAt()})
		}
		if cmd.Bool("json") {
			return r.writeJSON(out, cmd.Bool("pretty"))
		}

		r.writePlainHeader("Recent lookups")
		for _, e := range out {
			r.writePlain("%s  %-9s %s %s\n", e.FetchedAt.Local().Format(time.DateTime), e.Outcome, e.TrackURI, ui.Styles.Help(e.Detail))
		}
		r.writePlainln("%d entries", len(out))
		return nil
	}

	canvases, err := repositories.NewCanvasRepository(db).List(map[string]any{"limit": limit})
	if err != nil {
		return err
	}

	out := make([]cachedCanvas, 0, len(canvases))
	for _, c := range canvases {
		out = append(out, cachedCanvas{TrackURI: c.TrackURI(), MP4URL: c.MP4URL(), CanvasURI: c.CanvasURI(), UpdatedAt: c.UpdatedAt()})
	}
	if cmd.Bool("json") {
		return r.writeJSON(out, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Cached canvases")
	for i, c := range out {
		r.writePlain("%d. %s\n   %s\n", i+1, c.TrackURI, ui.Styles.OK(c.MP4URL))
	}
	r.writePlainln("%d canvases", len(out))
	return nil
}

// CacheClear removes every cached canvas and the lookup history.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	db, err := r.store()
	if err != nil {
		return err
	}

	canvases, err := repositories.NewCanvasRepository(db).Purge()
	if err != nil {
		return err
	}
	entries, err := repositories.NewFetchLogRepository(db).Clear()
	if err != nil {
		return err
	}

	r.logger.Info("cache cleared", "canvases", canvases, "history", entries)
	return r.writePlain("%s\n", ui.Styles.OK("✓ Cache cleared"))
}
