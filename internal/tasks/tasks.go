package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/spotcanvas/internal/canvas"
	"github.com/desertthunder/spotcanvas/internal/models"
	"github.com/desertthunder/spotcanvas/internal/shared"
)

const (
	DefaultWorkers   = 4
	MaxWorkers       = 10
	DefaultRateLimit = 2.0
)

// ErrSkipped marks tracks that were never dispatched.
var ErrSkipped = errors.New("skipped")

// Fetcher retrieves a canvas for one track. [*canvas.Client] implements it.
type Fetcher interface {
	FetchCanvas(ctx context.Context, trackURI, accessToken string) (*canvas.Canvas, error)
}

// CanvasCache stores canvases between runs.
//
// Lookup returns an error wrapping [shared.ErrCacheMiss] when nothing is stored for the track.
type CanvasCache interface {
	Lookup(trackURI string) (*canvas.Canvas, error)
	Store(c *canvas.Canvas) error
}

// FetchRecorder receives the outcome of every lookup.
type FetchRecorder interface {
	Record(trackURI string, outcome models.Outcome, detail string) error
}

// TrackResult is the outcome of looking up one track.
type TrackResult struct {
	TrackURI string
	Canvas   *canvas.Canvas // nil unless Outcome is found or cached
	Outcome  models.Outcome
	Error    error
}

// BatchOpts contains configuration for batch canvas lookups.
type BatchOpts struct {
	NumWorkers int     // Concurrent workers (default: 4, max: 10)
	RateLimit  float64 // Pathfinder requests per second (default: 2)
	NoCache    bool    // Skip cache lookups; fresh results are still stored
}

// BatchResult summarizes a batch run. Results keep the order of the input URIs.
type BatchResult struct {
	Total    int
	Found    int
	Cached   int
	NotFound int
	Failed   int
	Skipped  int
	Results  []TrackResult
	Halt     error // first rate limit error, if dispatch stopped early
}

// Canvases returns the canvases of found and cached results in input order.
func (r *BatchResult) Canvases() []canvas.Canvas {
	out := make([]canvas.Canvas, 0, r.Found+r.Cached)
	for _, res := range r.Results {
		if res.Canvas != nil {
			out = append(out, *res.Canvas)
		}
	}
	return out
}

func (r *BatchResult) tally(res TrackResult) {
	switch res.Outcome {
	case models.OutcomeFound:
		r.Found++
	case models.OutcomeCached:
		r.Cached++
	case models.OutcomeNotFound:
		r.NotFound++
	case models.OutcomeSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
}

// CanvasEngine coordinates the cache, the fetch history and a [Fetcher].
// The cache and recorder are optional.
type CanvasEngine struct {
	cache    CanvasCache
	recorder FetchRecorder
	logger   *log.Logger
}

// NewCanvasEngine creates a CanvasEngine. Any argument may be nil.
func NewCanvasEngine(cache CanvasCache, recorder FetchRecorder, logger *log.Logger) *CanvasEngine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &CanvasEngine{cache: cache, recorder: recorder, logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *CanvasEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Fetch looks up a single track, consulting the cache unless skipCache is set.
func (e *CanvasEngine) Fetch(ctx context.Context, fetcher Fetcher, trackURI, token string, skipCache bool) TrackResult {
	res := e.lookup(ctx, fetcher, trackURI, token, skipCache)
	e.record(res)
	return res
}

func (e *CanvasEngine) lookup(ctx context.Context, fetcher Fetcher, trackURI, token string, skipCache bool) TrackResult {
	if !skipCache {
		if c, ok := e.cached(trackURI); ok {
			return TrackResult{TrackURI: trackURI, Canvas: c, Outcome: models.OutcomeCached}
		}
	}

	c, err := fetcher.FetchCanvas(ctx, trackURI, token)
	if err != nil {
		return TrackResult{TrackURI: trackURI, Outcome: models.OutcomeFor(err), Error: err}
	}

	if e.cache != nil {
		if err := e.cache.Store(c); err != nil {
			e.logger.Warn("failed to cache canvas", "track_uri", trackURI, "error", err)
		}
	}
	return TrackResult{TrackURI: trackURI, Canvas: c, Outcome: models.OutcomeFound}
}

func (e *CanvasEngine) cached(trackURI string) (*canvas.Canvas, bool) {
	if e.cache == nil {
		return nil, false
	}

	c, err := e.cache.Lookup(trackURI)
	switch {
	case err == nil && c != nil:
		return c, true
	case err != nil && !errors.Is(err, shared.ErrCacheMiss):
		e.logger.Warn("cache lookup failed", "track_uri", trackURI, "error", err)
	}
	return nil, false
}

func (e *CanvasEngine) record(res TrackResult) {
	if e.recorder == nil {
		return
	}

	var detail string
	if res.Error != nil {
		detail = res.Error.Error()
	}
	if err := e.recorder.Record(res.TrackURI, res.Outcome, detail); err != nil {
		e.logger.Warn("failed to record fetch", "track_uri", res.TrackURI, "error", err)
	}
}

type indexedResult struct {
	index int
	TrackResult
}

// BatchFetch looks up many tracks concurrently with rate limiting and progress tracking.
//
// Cache hits do not consume rate limiter tokens. The first [canvas.ErrRateLimited] response stops
// dispatch; requests already in flight finish and every track still waiting on a request is reported as skipped.
// Rate limited requests are never retried. Cancelling ctx also marks undispatched tracks skipped
// and BatchFetch then returns the partial result together with the context error.
func (e *CanvasEngine) BatchFetch(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	fetcher Fetcher,
	token string,
	uris []string,
	opts BatchOpts,
) (*BatchResult, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("%w: fetcher not initialized", shared.ErrInvalidArgument)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = DefaultWorkers
	}
	if opts.NumWorkers > MaxWorkers {
		opts.NumWorkers = MaxWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}

	result := &BatchResult{Total: len(uris), Results: make([]TrackResult, len(uris))}
	for i, uri := range uris {
		result.Results[i] = TrackResult{TrackURI: uri, Outcome: models.OutcomeSkipped, Error: ErrSkipped}
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	var (
		halted   atomic.Bool
		haltOnce sync.Once
		haltErr  error
	)
	halt := func(err error) {
		haltOnce.Do(func() {
			haltErr = err
			halted.Store(true)
		})
	}

	jobs := make(chan int)
	results := make(chan indexedResult, opts.NumWorkers)

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				res := e.batchLookup(ctx, limiter, fetcher, uris[idx], token, opts.NoCache, halted.Load)
				if errors.Is(res.Error, canvas.ErrRateLimited) {
					halt(res.Error)
				}
				results <- indexedResult{index: idx, TrackResult: res}
			}
		}()
	}

	go func() {
		defer close(jobs)
		e.sendProgress(prog, dispatchUpdate(len(uris), opts.NumWorkers))
		for idx := range uris {
			if halted.Load() {
				return
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- idx:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results[res.index] = res.TrackResult
		e.sendProgress(prog, lookupUpdate(completed, len(uris), res.TrackResult))
	}

	if haltErr != nil {
		result.Halt = haltErr
		e.sendProgress(prog, haltedUpdate(completed, len(uris), haltErr))
		e.logger.Warn("batch halted by rate limit", "completed", completed, "total", len(uris), "error", haltErr)
	}

	for i := range result.Results {
		res := &result.Results[i]
		if res.Outcome == models.OutcomeSkipped {
			switch {
			case haltErr != nil:
				res.Error = fmt.Errorf("%w: %w", ErrSkipped, haltErr)
			case ctx.Err() != nil:
				res.Error = fmt.Errorf("%w: %w", ErrSkipped, ctx.Err())
			}
		}
		result.tally(*res)
		e.record(*res)
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// batchLookup runs one dispatched lookup. A halt observed after dispatch still skips the track,
// since the request has not been issued yet.
func (e *CanvasEngine) batchLookup(
	ctx context.Context,
	limiter *rate.Limiter,
	fetcher Fetcher,
	trackURI, token string,
	skipCache bool,
	halted func() bool,
) TrackResult {
	if !skipCache {
		if c, ok := e.cached(trackURI); ok {
			return TrackResult{TrackURI: trackURI, Canvas: c, Outcome: models.OutcomeCached}
		}
	}

	skipped := TrackResult{TrackURI: trackURI, Outcome: models.OutcomeSkipped, Error: ErrSkipped}
	if halted() {
		return skipped
	}
	if err := limiter.Wait(ctx); err != nil {
		return skipped
	}
	if halted() {
		return skipped
	}

	return e.lookup(ctx, fetcher, trackURI, token, true)
}
