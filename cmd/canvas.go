package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotcanvas/internal/canvas"
	"github.com/desertthunder/spotcanvas/internal/formatter"
	"github.com/desertthunder/spotcanvas/internal/models"
	"github.com/desertthunder/spotcanvas/internal/shared"
	"github.com/desertthunder/spotcanvas/internal/tasks"
	"github.com/desertthunder/spotcanvas/internal/ui"
)

// CanvasGet fetches the canvas for a single track, optionally saving or opening the video.
func (r *Runner) CanvasGet(ctx context.Context, cmd *cli.Command) error {
	arg := cmd.StringArg("track")
	if arg == "" {
		return fmt.Errorf("%w: track", shared.ErrMissingArgument)
	}

	trackURI, err := canvas.NormalizeTrackURI(arg)
	if err != nil {
		return err
	}

	token, err := r.config.ResolveAccessToken(cmd.String("token"))
	if err != nil {
		return err
	}

	r.logger.Debug("fetching canvas", "track_uri", trackURI, "no_cache", cmd.Bool("no-cache"))

	res := r.engine().Fetch(ctx, r.client, trackURI, token, cmd.Bool("no-cache"))
	if errors.Is(res.Error, canvas.ErrNotFound) {
		if cmd.Bool("json") {
			return r.writeJSON(map[string]any{"track_uri": trackURI, "canvas": nil}, cmd.Bool("pretty"))
		}
		return r.writePlain("%s\n", ui.Styles.Help("No canvas available for "+trackURI))
	}
	if res.Error != nil {
		return res.Error
	}

	c := res.Canvas
	if cmd.Bool("json") {
		if err := r.writeJSON(c, cmd.Bool("pretty")); err != nil {
			return err
		}
	} else {
		r.writeCanvas(*c, res.Outcome)
	}

	if target := cmd.String("download"); target != "" {
		path := formatter.DownloadPath(target, *c)
		n, err := formatter.DownloadCanvas(ctx, r.httpClient, c.MP4URL, path)
		if err != nil {
			return err
		}
		r.logger.Info("canvas downloaded", "path", path, "bytes", n)
	}

	if cmd.Bool("open") {
		if err := r.openURL(c.MP4URL); err != nil {
			return err
		}
	}

	return nil
}

func (r *Runner) writeCanvas(c canvas.Canvas, outcome models.Outcome) {
	r.writePlainHeader("Canvas")
	r.writePlain("Track:  %s\n", c.TrackURI)
	r.writePlain("Video:  %s\n", ui.Styles.OK(c.MP4URL))
	if c.URI != nil {
		r.writePlain("Canvas: %s\n", *c.URI)
	}
	if outcome == models.OutcomeCached {
		r.writePlain("%s\n", ui.Styles.Help("(from cache)"))
	}
}

// CanvasBatch fetches canvases for every track in a file and writes a report.
//
// A rate limit response stops the run early; the report still contains everything fetched so far
// and the rate limit error is returned afterwards.
func (r *Runner) CanvasBatch(ctx context.Context, cmd *cli.Command) error {
	uris, err := r.readTrackFile(cmd.String("file"))
	if err != nil {
		return err
	}
	if len(uris) == 0 {
		return fmt.Errorf("%w: no tracks in %s", shared.ErrInvalidArgument, cmd.String("file"))
	}

	format := cmd.String("format")
	if _, err := formatter.Format(format, nil); err != nil {
		return err
	}

	token, err := r.config.ResolveAccessToken(cmd.String("token"))
	if err != nil {
		return err
	}

	opts := tasks.BatchOpts{
		NumWorkers: r.config.Batch.Workers,
		RateLimit:  r.config.Batch.RateLimit,
		NoCache:    cmd.Bool("no-cache"),
	}
	if w := cmd.Int("workers"); w > 0 {
		opts.NumWorkers = w
	}
	if rl := cmd.Float("rate"); rl > 0 {
		opts.RateLimit = rl
	}
	if opts.NumWorkers > tasks.MaxWorkers {
		r.logger.Warn("worker count capped", "requested", opts.NumWorkers, "max", tasks.MaxWorkers)
	}

	var progress chan tasks.ProgressUpdate
	done := make(chan struct{})
	if cmd.Bool("quiet") {
		close(done)
	} else {
		progress = make(chan tasks.ProgressUpdate, 100)
		go func() {
			defer close(done)
			ui.PrintProgress(os.Stderr, progress)
		}()
	}

	result, runErr := r.engine().BatchFetch(ctx, progress, r.client, token, uris, opts)
	if progress != nil {
		close(progress)
	}
	<-done

	if result == nil {
		return runErr
	}

	fmt.Fprintln(os.Stderr, ui.Summary(result))

	if err := r.writeReport(format, cmd.String("output"), result.Canvases()); err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}
	return result.Halt
}

func (r *Runner) writeReport(format, output string, canvases []canvas.Canvas) error {
	if output != "" {
		if err := formatter.WriteFile(format, canvases, output); err != nil {
			return err
		}
		r.logger.Info("report written", "path", output, "canvases", len(canvases))
		return nil
	}

	data, err := formatter.Format(format, canvases)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		return r.writePlain("\n")
	}
	return nil
}

// readTrackFile reads track references from path, or stdin when path is "-".
func (r *Runner) readTrackFile(path string) ([]string, error) {
	var in io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open track file: %w", err)
		}
		defer f.Close()
		in = f
	}

	return r.parseTracks(in)
}

// parseTracks normalizes one track per line, dropping duplicates.
// Lines that are not track references are logged and skipped.
func (r *Runner) parseTracks(in io.Reader) ([]string, error) {
	var (
		uris []string
		seen = map[string]bool{}
	)

	scanner := bufio.NewScanner(in)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		uri, err := canvas.NormalizeTrackURI(text)
		if err != nil {
			r.logger.Warn("skipping line", "line", line, "error", err)
			continue
		}
		if seen[uri] {
			continue
		}
		seen[uri] = true
		uris = append(uris, uri)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read track file: %w", err)
	}
	return uris, nil
}
