package canvas

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	// DefaultPathfinderURL is the Pathfinder GraphQL endpoint.
	DefaultPathfinderURL = "https://api-partner.spotify.com/pathfinder/v2/query"
	// DefaultCanvasHash is the last known persisted-query hash for the canvas operation.
	// Spotify rotates it without notice; see [ErrHashOutdated].
	DefaultCanvasHash    = "575138ab27cd5c1b3e54da54d0a7cc8d85485402de26340c2145f0f6bb5e7a9f"
	DefaultOperationName = "canvas"
)

// Canvas is a playable canvas video for a track.
type Canvas struct {
	MP4URL   string  `json:"mp4_url"`
	URI      *string `json:"uri"`
	TrackURI string  `json:"track_uri"`
}

// Config identifies the Pathfinder query. It is copied into the [Client].
type Config struct {
	EndpointURL   string
	OperationName string
	QueryHash     string
}

// DefaultConfig returns the configuration known to work against Pathfinder.
func DefaultConfig() Config {
	return Config{
		EndpointURL:   DefaultPathfinderURL,
		OperationName: DefaultOperationName,
		QueryHash:     DefaultCanvasHash,
	}
}

// withDefaults fills empty fields from [DefaultConfig].
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.EndpointURL == "" {
		c.EndpointURL = d.EndpointURL
	}
	if c.OperationName == "" {
		c.OperationName = d.OperationName
	}
	if c.QueryHash == "" {
		c.QueryHash = d.QueryHash
	}
	return c
}

// Options configures a [Client]. Zero values fall back to defaults.
type Options struct {
	Config         Config
	HTTPClient     Doer
	Logger         *log.Logger
	ClientTokenURL string
	Now            func() time.Time
}

// Client fetches canvases. It owns its [CredentialCache] and is safe for concurrent use.
type Client struct {
	http   Doer
	creds  *CredentialCache
	config Config
	logger *log.Logger
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}

	return &Client{
		http:   opts.HTTPClient,
		creds:  NewCredentialCache(opts.ClientTokenURL, opts.Now, opts.Logger),
		config: opts.Config.withDefaults(),
		logger: opts.Logger,
	}
}

// Config returns a copy of the client's query configuration.
func (c *Client) Config() Config { return c.config }

// Credentials returns the client's credential cache.
func (c *Client) Credentials() *CredentialCache { return c.creds }

// FetchCanvas fetches the canvas video for trackURI (e.g. "spotify:track:...")
// using accessToken as the bearer token.
//
// It performs exactly one Pathfinder request, preceded by a client-token refresh
// when the cached one has expired. Nothing is retried.
func (c *Client) FetchCanvas(ctx context.Context, trackURI, accessToken string) (*Canvas, error) {
	logger := c.logger.With("request_id", uuid.New().String(), "track_uri", trackURI)
	logger.Debug("starting canvas fetch")

	clientToken, err := c.creds.Get(ctx, c.http)
	if err != nil {
		logger.Error("failed to get client-token", "error", err)
		return nil, err
	}

	if !validHeaderValue(accessToken) {
		return nil, invalidInput("invalid access token: contains characters not allowed in a header")
	}
	if !validHeaderValue(clientToken) {
		return nil, invalidInput("invalid client token: contains characters not allowed in a header")
	}

	body, err := BuildRequestBody(trackURI, c.config)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return nil, invalidInput("endpoint url: %v", err)
	}
	(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(req)
	req.Header.Set("client-token", clientToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Error("canvas request failed", "error", err)
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil, networkError(readErr)
		}
		respBody = nil
	}

	result, err := DecodeResponse(trackURI, resp.StatusCode, resp.Header, respBody)
	if err != nil {
		c.logOutcome(logger, err)
		return nil, err
	}

	logger.Info("canvas fetched", "canvas_url", result.MP4URL)
	return result, nil
}

func (c *Client) logOutcome(logger *log.Logger, err error) {
	var cerr *Error
	if !errors.As(err, &cerr) {
		logger.Error("canvas decode failed", "error", err)
		return
	}

	switch cerr.Kind {
	case KindRateLimited:
		logger.Warn("rate limited by Spotify API", "retry_after", cerr.RetryAfter)
	case KindNotFound:
		logger.Debug("no usable canvas in response")
	case KindHashOutdated:
		logger.Error("persisted query hash rejected", "hash", c.config.QueryHash)
	case KindSpotifyAPI:
		logger.Error("GraphQL request failed", "status", cerr.Status, "response", cerr.Message)
	default:
		logger.Error("canvas decode failed", "error", err)
	}
}

// validHeaderValue rejects control characters other than horizontal tab.
func validHeaderValue(v string) bool {
	for i := 0; i < len(v); i++ {
		b := v[i]
		if (b < 0x20 && b != '\t') || b == 0x7f {
			return false
		}
	}
	return true
}

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}
