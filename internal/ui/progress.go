package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/desertthunder/spotcanvas/internal/models"
	"github.com/desertthunder/spotcanvas/internal/tasks"
)

// PrintProgress writes each update to w until updates is closed.
func PrintProgress(w io.Writer, updates <-chan tasks.ProgressUpdate) {
	for u := range updates {
		fmt.Fprintln(w, RenderUpdate(u))
	}
}

// RenderUpdate styles a single update by phase and outcome.
func RenderUpdate(u tasks.ProgressUpdate) string {
	switch u.Phase {
	case tasks.Dispatch:
		return Styles.Title(u.Message)
	case tasks.Halted:
		return Styles.Warn(u.Message)
	}

	res, ok := u.Data.(tasks.TrackResult)
	if !ok {
		return u.Message
	}
	switch res.Outcome {
	case models.OutcomeFound, models.OutcomeCached:
		return Styles.OK(u.Message)
	case models.OutcomeNotFound, models.OutcomeSkipped:
		return Styles.Help(u.Message)
	default:
		return Styles.Err(u.Message)
	}
}

// Summary renders the tally of a batch run in a bordered box.
func Summary(r *tasks.BatchResult) string {
	lines := []string{
		Styles.Title("Batch summary"),
		fmt.Sprintf("Tracks:    %d", r.Total),
		Styles.OK(fmt.Sprintf("Found:     %d", r.Found)),
		Styles.OK(fmt.Sprintf("Cached:    %d", r.Cached)),
		Styles.Help(fmt.Sprintf("No canvas: %d", r.NotFound)),
	}
	if r.Failed > 0 {
		lines = append(lines, Styles.Err(fmt.Sprintf("Failed:    %d", r.Failed)))
	}
	if r.Skipped > 0 {
		lines = append(lines, Styles.Warn(fmt.Sprintf("Skipped:   %d", r.Skipped)))
	}
	return Styles.Box(strings.Join(lines, "\n"))
}
