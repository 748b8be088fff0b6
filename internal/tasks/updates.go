package tasks

import (
	"fmt"

	"github.com/desertthunder/spotcanvas/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data, a [TrackResult] for completed lookups
}

// Operation phase enumeration
type Phase int

const (
	Dispatch Phase = iota
	LookupComplete
	Halted
)

func (p Phase) String() string {
	switch p {
	case Dispatch:
		return "dispatch"
	case LookupComplete:
		return "lookup_complete"
	case Halted:
		return "halted"
	default:
		return ""
	}
}

func dispatchUpdate(total, workers int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Dispatch,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Fetching %d canvases with %d workers...", total, workers),
	}
}

func lookupUpdate(step, total int, res TrackResult) ProgressUpdate {
	var msg string
	switch res.Outcome {
	case models.OutcomeFound:
		msg = fmt.Sprintf("[%d/%d] ✓ %s", step, total, res.TrackURI)
	case models.OutcomeCached:
		msg = fmt.Sprintf("[%d/%d] ✓ %s (cached)", step, total, res.TrackURI)
	case models.OutcomeNotFound:
		msg = fmt.Sprintf("[%d/%d] - %s: no canvas", step, total, res.TrackURI)
	default:
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.TrackURI, res.Error)
	}

	return ProgressUpdate{
		Phase:   LookupComplete,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    res,
	}
}

func haltedUpdate(step, total int, reason error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Halted,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Stopped dispatching: %v", reason),
	}
}
