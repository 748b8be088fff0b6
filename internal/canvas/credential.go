package canvas

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultClientTokenURL issues the short-lived client-token required by Pathfinder.
	DefaultClientTokenURL = "https://clienttoken.spotify.com/v1/clienttoken"

	// Known client ID of the Spotify Web Player.
	webPlayerClientID = "d8a5ed958d274c2e8ee717e6a4b0971d"
	webClientVersion  = "1.2.42.432.g3121"

	// expiryMargin is subtracted from every granted lifetime.
	expiryMargin = 60 * time.Second
)

// Doer issues a single HTTP request. [*http.Client] satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type credential struct {
	token     string
	expiresAt time.Time
}

type clientTokenRequest struct {
	ClientData clientData `json:"client_data"`
}

type clientData struct {
	ClientVersion string    `json:"client_version"`
	ClientID      string    `json:"client_id"`
	JSSDKData     jsSDKData `json:"js_sdk_data"`
}

type jsSDKData struct {
	DeviceBrand string `json:"device_brand"`
	DeviceModel string `json:"device_model"`
	OS          string `json:"os"`
	OSVersion   string `json:"os_version"`
	DeviceID    string `json:"device_id"`
	DeviceType  string `json:"device_type"`
}

type grantedToken struct {
	Token                  string `json:"token"`
	ExpiresAfterSeconds    *int64 `json:"expires_after_seconds"`
	ExpiresAfterSecondsAlt *int64 `json:"expiresAfterSeconds"`
}

// clientTokenResponse accepts both the snake_case keys the endpoint sends and camelCase.
type clientTokenResponse struct {
	GrantedToken    *grantedToken `json:"granted_token"`
	GrantedTokenAlt *grantedToken `json:"grantedToken"`
}

func (r clientTokenResponse) granted() (string, int64, bool) {
	g := r.GrantedToken
	if g == nil {
		g = r.GrantedTokenAlt
	}
	if g == nil || g.Token == "" {
		return "", 0, false
	}
	switch {
	case g.ExpiresAfterSeconds != nil:
		return g.Token, *g.ExpiresAfterSeconds, true
	case g.ExpiresAfterSecondsAlt != nil:
		return g.Token, *g.ExpiresAfterSecondsAlt, true
	default:
		return g.Token, 0, true
	}
}

// CredentialCache holds one client-token and renews it when it expires.
//
// Safe for concurrent use. Check-and-refresh runs under a one-slot semaphore so
// concurrent callers collapse onto a single in-flight refresh, and callers waiting
// for the slot still observe their own context cancellation.
type CredentialCache struct {
	tokenURL string
	now      func() time.Time
	logger   *log.Logger
	sem      chan struct{}
	cred     *credential
}

// NewCredentialCache creates an empty cache issuing tokens from tokenURL.
//
// tokenURL defaults to [DefaultClientTokenURL], now to [time.Now].
func NewCredentialCache(tokenURL string, now func() time.Time, logger *log.Logger) *CredentialCache {
	if tokenURL == "" {
		tokenURL = DefaultClientTokenURL
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &CredentialCache{
		tokenURL: tokenURL,
		now:      now,
		logger:   logger,
		sem:      make(chan struct{}, 1),
	}
}

func (c *CredentialCache) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CredentialCache) release() { <-c.sem }

// Get returns a valid client-token, fetching a fresh one through doer when the
// cached one is missing or expired.
func (c *CredentialCache) Get(ctx context.Context, doer Doer) (string, error) {
	if err := c.acquire(ctx); err != nil {
		return "", networkError(err)
	}
	defer c.release()

	if c.cred != nil && c.now().Before(c.cred.expiresAt) {
		return c.cred.token, nil
	}

	return c.refresh(ctx, doer)
}

// Set seeds the cache with an externally obtained token.
func (c *CredentialCache) Set(token string, expiresInSeconds int64) {
	c.sem <- struct{}{}
	defer c.release()

	c.cred = &credential{token: token, expiresAt: expiry(c.now(), expiresInSeconds)}
}

// Invalidate drops the cached token so the next [CredentialCache.Get] refreshes.
func (c *CredentialCache) Invalidate() {
	c.sem <- struct{}{}
	defer c.release()

	c.cred = nil
}

// ExpiresAt returns the expiry of the cached token, or false if none is held.
func (c *CredentialCache) ExpiresAt() (time.Time, bool) {
	c.sem <- struct{}{}
	defer c.release()

	if c.cred == nil {
		return time.Time{}, false
	}
	return c.cred.expiresAt, true
}

// refresh must be called with the semaphore held.
func (c *CredentialCache) refresh(ctx context.Context, doer Doer) (string, error) {
	deviceID, err := generateDeviceID()
	if err != nil {
		return "", &Error{Kind: KindTokenFetchFailed, Message: fmt.Sprintf("failed to generate device id: %v", err)}
	}

	payload, err := json.Marshal(clientTokenRequest{
		ClientData: clientData{
			ClientVersion: webClientVersion,
			ClientID:      webPlayerClientID,
			JSSDKData: jsSDKData{
				DeviceBrand: "Apple",
				DeviceModel: "MacBookPro",
				OS:          "Mac OS",
				OSVersion:   "10.15.7",
				DeviceID:    deviceID,
				DeviceType:  "computer",
			},
		},
	})
	if err != nil {
		return "", jsonError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, bytes.NewReader(payload))
	if err != nil {
		return "", invalidInput("client token url: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("requesting client token", "url", c.tokenURL)

	resp, err := doer.Do(req)
	if err != nil {
		return "", networkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", &Error{
			Kind:    KindTokenFetchFailed,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("Status: %d, Body: %s", resp.StatusCode, string(body)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", networkError(err)
	}

	var decoded clientTokenResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", jsonError(err)
	}

	token, seconds, ok := decoded.granted()
	if !ok {
		return "", jsonError(fmt.Errorf("client token response missing granted_token.token"))
	}

	c.cred = &credential{token: token, expiresAt: expiry(c.now(), seconds)}
	c.logger.Debug("client token refreshed", "expires_at", c.cred.expiresAt)

	return token, nil
}

// expiry returns now + max(seconds-60, 0).
func expiry(now time.Time, seconds int64) time.Time {
	lifetime := time.Duration(seconds)*time.Second - expiryMargin
	if lifetime < 0 {
		lifetime = 0
	}
	return now.Add(lifetime)
}

func generateDeviceID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
