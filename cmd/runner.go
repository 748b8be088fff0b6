package main

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotcanvas/internal/canvas"
	"github.com/desertthunder/spotcanvas/internal/repositories"
	"github.com/desertthunder/spotcanvas/internal/shared"
	"github.com/desertthunder/spotcanvas/internal/tasks"
	"github.com/desertthunder/spotcanvas/internal/ui"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	client     *canvas.Client
	logger     *log.Logger
	output     io.Writer
	openURL    func(string) error
	db         *sql.DB
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Client     *canvas.Client
	Logger     *log.Logger
	Output     io.Writer
	OpenURL    func(string) error
	DB         *sql.DB
}

// NewRunner creates a new Runner with the provided configuration.
//
// Without an explicit Client, one is built from the config and seeded with the saved client-token
// while that token is still valid.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Config.HTTP.Timeout()}
	}
	if opts.OpenURL == nil {
		opts.OpenURL = shared.OpenBrowser
	}
	if opts.Client == nil {
		opts.Client = newCanvasClient(opts.Config, opts.HTTPClient, opts.Logger)
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		client:     opts.Client,
		logger:     opts.Logger,
		output:     opts.Output,
		openURL:    opts.OpenURL,
		db:         opts.DB,
	}
}

func newCanvasClient(config *shared.Config, httpClient *http.Client, logger *log.Logger) *canvas.Client {
	client := canvas.New(canvas.Options{
		Config:         config.Canvas.Query(),
		HTTPClient:     httpClient,
		Logger:         shared.WithLogger(logger, "component", "canvas"),
		ClientTokenURL: config.Canvas.ClientTokenURL,
	})

	if ttl, ok := config.Credentials.Spotify.ClientTokenTTL(time.Now()); ok {
		client.Credentials().Set(config.Credentials.Spotify.ClientToken, ttl)
		logger.Debug("seeded client-token from config", "expires_in", ttl)
	}
	return client
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		canvasCommand, tokenCommand, cacheCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Close releases the database handle, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// store opens and migrates the cache database on first use.
func (r *Runner) store() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenMigrated(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrCacheUnavailable, err)
	}
	r.db = db
	return db, nil
}

// engine builds a [tasks.CanvasEngine] backed by the cache database.
// An unavailable database degrades to uncached lookups.
func (r *Runner) engine() *tasks.CanvasEngine {
	db, err := r.store()
	if err != nil {
		r.logger.Warn("continuing without canvas cache", "error", err)
		return tasks.NewCanvasEngine(nil, nil, r.logger)
	}

	cache := repositories.NewCanvasCacheAdapter(repositories.NewCanvasRepository(db))
	return tasks.NewCanvasEngine(cache, repositories.NewFetchLogRepository(db), r.logger)
}

// saveConfig persists the in-memory config to the path it was loaded from.
func (r *Runner) saveConfig() error {
	if r.config == nil {
		return fmt.Errorf("%w: no config loaded", shared.ErrMissingConfig)
	}
	if r.configPath == "" {
		return fmt.Errorf("%w: config path not set", shared.ErrMissingConfig)
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return err
	}
	r.logger.Info("config saved", "path", r.configPath)
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", ui.Styles.Title(title))
	r.writePlain("═══════════════════════════════════════\n")
}
