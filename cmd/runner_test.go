package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotcanvas/internal/canvas"
	"github.com/desertthunder/spotcanvas/internal/shared"
	tu "github.com/desertthunder/spotcanvas/internal/testing"
)

// fakePathfinder answers client-token requests and canvas queries. Tracks listed in canvases get a canvas.
type fakePathfinder struct {
	canvases    map[string]string
	rateLimited map[string]bool
	tokenCalls  atomic.Int32
	queryCalls  atomic.Int32
}

func newFakePathfinder(t *testing.T, canvases map[string]string) (*fakePathfinder, *httptest.Server) {
	t.Helper()

	f := &fakePathfinder{canvases: canvases, rateLimited: map[string]bool{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/clienttoken", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"granted_token":{"token":"client-token-abcdefgh1234","expires_after_seconds":3600}}`)
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		f.queryCalls.Add(1)

		var body struct {
			Variables struct {
				TrackURI string `json:"trackUri"`
			} `json:"variables"`
		}
		if err := decodeBody(r, &body); err != nil {
			t.Errorf("failed to decode query: %v", err)
		}

		if f.rateLimited[body.Variables.TrackURI] {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if url, ok := f.canvases[body.Variables.TrackURI]; ok {
			fmt.Fprintf(w, `{"data":{"trackUnion":{"canvas":{"url":%q,"uri":"spotify:canvas:1"}}}}`, url)
			return
		}
		fmt.Fprint(w, `{"data":{"trackUnion":{"canvas":null}}}`)
	})
	mux.HandleFunc("/video.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		fmt.Fprint(w, "mp4-bytes")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestRunner wires a Runner against srv with an in-memory cache.
func newTestRunner(t *testing.T, srv *httptest.Server, output *bytes.Buffer) *Runner {
	t.Helper()

	config := shared.DefaultConfig()
	config.Credentials.Spotify.AccessToken = "user-token"
	config.Canvas.EndpointURL = srv.URL + "/query"
	config.Canvas.ClientTokenURL = srv.URL + "/clienttoken"
	config.Batch.RateLimit = 1000

	t.Setenv("SPOTIFY_TOKEN", "")

	return NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: filepath.Join(t.TempDir(), "config.toml"),
		HTTPClient: srv.Client(),
		Logger:     shared.NewLogger(&bytes.Buffer{}),
		Output:     output,
		OpenURL:    func(string) error { return nil },
		DB:         setupTestDB(t),
	})
}

func run(r *Runner, args ...string) error {
	app := &cli.Command{
		Name:     "spotcanvas",
		Commands: r.register(),
		Writer:   &bytes.Buffer{},
	}
	return app.Run(context.Background(), append([]string{"spotcanvas"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			client := canvas.New(canvas.Options{})

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Client:     client,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.client != client {
				t.Error("expected client to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.client == nil {
				t.Error("expected canvas client to be built")
			}
		})

		t.Run("httpClient uses configured timeout", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.HTTP.TimeoutSeconds = 7

			runner := NewRunner(RunnerOpts{Config: config})
			if runner.httpClient.Timeout != 7*time.Second {
				t.Errorf("expected 7s timeout, got %v", runner.httpClient.Timeout)
			}
		})

		t.Run("seeds a valid client token from config", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Credentials.Spotify.ClientToken = "saved-client-token"
			config.Credentials.Spotify.ClientTokenExpiresAt = time.Now().Add(time.Hour).Unix()

			runner := NewRunner(RunnerOpts{Config: config})
			if _, ok := runner.client.Credentials().ExpiresAt(); !ok {
				t.Error("expected client token to be seeded")
			}
		})

		t.Run("skips an expired client token", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Credentials.Spotify.ClientToken = "saved-client-token"
			config.Credentials.Spotify.ClientTokenExpiresAt = time.Now().Add(-time.Hour).Unix()

			runner := NewRunner(RunnerOpts{Config: config})
			if _, ok := runner.client.Credentials().ExpiresAt(); ok {
				t.Error("expected expired client token to be ignored")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got := output.String(); got != "{\"key\":\"value\"}\n" {
				t.Errorf("expected compact JSON, got %q", got)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(map[string]any{"ch": make(chan int)}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if !errors.Is(err, tu.ErrInjected) || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("writePlainln surrounds text with newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlainln("%d canvases", 3); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "\n3 canvases\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			if err := runner.writePlain("test"); err == nil {
				t.Error("expected write error")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		commands := NewRunner(RunnerOpts{}).register()

		want := []string{"canvas", "token", "cache", "setup"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, name := range want {
			if commands[i].Name != name {
				t.Errorf("command %d: expected %s, got %s", i, name, commands[i].Name)
			}
		}
	})

	t.Run("saveConfig", func(t *testing.T) {
		t.Run("saves config successfully", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			runner := NewRunner(RunnerOpts{ConfigPath: path, Logger: shared.NewLogger(&bytes.Buffer{})})
			runner.config.Credentials.Spotify.AccessToken = "saved-token"

			if err := runner.saveConfig(); err != nil {
				t.Fatalf("saveConfig() error = %v", err)
			}

			loaded, err := shared.LoadConfig(path)
			if err != nil {
				t.Fatalf("failed to reload config: %v", err)
			}
			if loaded.Credentials.Spotify.AccessToken != "saved-token" {
				t.Errorf("expected saved token, got %q", loaded.Credentials.Spotify.AccessToken)
			}
		})

		t.Run("handles empty configPath", func(t *testing.T) {
			if err := NewRunner(RunnerOpts{}).saveConfig(); !errors.Is(err, shared.ErrMissingConfig) {
				t.Errorf("expected ErrMissingConfig, got %v", err)
			}
		})

		t.Run("handles SaveConfig failure", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "missing", "config.toml")
			if err := NewRunner(RunnerOpts{ConfigPath: path}).saveConfig(); err == nil {
				t.Error("expected error writing into a missing directory")
			}
		})
	})

	t.Run("parseTracks", func(t *testing.T) {
		input := strings.Join([]string{
			"# favourites",
			"spotify:track:72Xn6x8xqegX64AKeJDsZt",
			"",
			"https://open.spotify.com/track/72Xn6x8xqegX64AKeJDsZt?si=abc",
			"https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC",
			"not a track",
		}, "\n")

		uris, err := NewRunner(RunnerOpts{Logger: shared.NewLogger(&bytes.Buffer{})}).parseTracks(strings.NewReader(input))
		if err != nil {
			t.Fatalf("parseTracks() error = %v", err)
		}

		want := []string{"spotify:track:72Xn6x8xqegX64AKeJDsZt", "spotify:track:4uLU6hMCjMI75M1A2tKUQC"}
		if len(uris) != len(want) {
			t.Fatalf("expected %v, got %v", want, uris)
		}
		for i := range want {
			if uris[i] != want[i] {
				t.Errorf("uri %d: expected %s, got %s", i, want[i], uris[i])
			}
		}
	})

	t.Run("Close", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{DB: setupTestDB(t)})
		if err := runner.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if err := runner.Close(); err != nil {
			t.Errorf("expected second Close to be a no-op, got %v", err)
		}
	})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
