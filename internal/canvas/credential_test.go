package canvas

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestExpiry(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	tc := []struct {
		name    string
		seconds int64
		want    time.Time
	}{
		{name: "one hour", seconds: 3600, want: now.Add(3540 * time.Second)},
		{name: "just above margin", seconds: 61, want: now.Add(time.Second)},
		{name: "exactly margin", seconds: 60, want: now},
		{name: "below margin", seconds: 30, want: now},
		{name: "zero", seconds: 0, want: now},
		{name: "negative", seconds: -5, want: now},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := expiry(now, tt.seconds); !got.Equal(tt.want) {
				t.Errorf("expiry(%d) = %v, want %v", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestCredentialCache(t *testing.T) {
	t.Run("Get", func(t *testing.T) {
		t.Run("returns cached token without network I/O", func(t *testing.T) {
			clock := newFakeClock()
			cache := NewCredentialCache("http://unused.invalid", clock.Now, nil)
			cache.Set("seeded", 3600)

			doer := doerFunc(func(*http.Request) (*http.Response, error) {
				t.Fatal("expected no request for a valid cached token")
				return nil, nil
			})

			token, err := cache.Get(context.Background(), doer)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if token != "seeded" {
				t.Errorf("expected token 'seeded', got %s", token)
			}
		})

		t.Run("fetches when empty", func(t *testing.T) {
			f, srv := newFakeSpotify(t)
			cache := NewCredentialCache(srv.URL+"/clienttoken", nil, nil)

			token, err := cache.Get(context.Background(), srv.Client())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if token != "client-token-1" {
				t.Errorf("expected client-token-1, got %s", token)
			}
			if got := f.tokenCalls.Load(); got != 1 {
				t.Errorf("expected 1 token request, got %d", got)
			}

			if _, err := cache.Get(context.Background(), srv.Client()); err != nil {
				t.Fatalf("expected no error on second call, got %v", err)
			}
			if got := f.tokenCalls.Load(); got != 1 {
				t.Errorf("expected cached token to be reused, got %d requests", got)
			}
		})

		t.Run("sends web player client data", func(t *testing.T) {
			var captured clientTokenRequest
			doer := doerFunc(func(r *http.Request) (*http.Response, error) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.Header.Get("Accept") != "application/json" {
					t.Errorf("expected Accept: application/json, got %q", r.Header.Get("Accept"))
				}
				if err := decodeJSONBody(r, &captured); err != nil {
					t.Fatalf("failed to decode request: %v", err)
				}
				return jsonResponse(http.StatusOK, `{"granted_token":{"token":"t","expires_after_seconds":3600}}`), nil
			})

			cache := NewCredentialCache("", nil, nil)
			if _, err := cache.Get(context.Background(), doer); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			cd := captured.ClientData
			if cd.ClientID != webPlayerClientID {
				t.Errorf("expected client id %s, got %s", webPlayerClientID, cd.ClientID)
			}
			if cd.ClientVersion == "" {
				t.Error("expected client version to be set")
			}
			if cd.JSSDKData.DeviceType != "computer" {
				t.Errorf("expected device type computer, got %s", cd.JSSDKData.DeviceType)
			}
			if len(cd.JSSDKData.DeviceID) != 32 {
				t.Errorf("expected 32 hex chars device id, got %q", cd.JSSDKData.DeviceID)
			}
			if _, err := hex.DecodeString(cd.JSSDKData.DeviceID); err != nil {
				t.Errorf("expected hex device id, got %v", err)
			}
		})

		t.Run("regenerates device id on every refresh", func(t *testing.T) {
			f, srv := newFakeSpotify(t)
			f.set(func(f *fakeSpotify) { f.expiresIn = 60 })
			cache := NewCredentialCache(srv.URL+"/clienttoken", nil, nil)

			for i := 0; i < 2; i++ {
				if _, err := cache.Get(context.Background(), srv.Client()); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
			}

			if got := f.tokenCalls.Load(); got != 2 {
				t.Fatalf("expected expiry <= margin to force a refresh each call, got %d requests", got)
			}
			f.set(func(f *fakeSpotify) {
				if f.deviceIDs[0] == f.deviceIDs[1] {
					t.Errorf("expected distinct device ids, got %s twice", f.deviceIDs[0])
				}
			})
		})

		t.Run("refreshes once the clock passes expiry", func(t *testing.T) {
			f, srv := newFakeSpotify(t)
			f.set(func(f *fakeSpotify) { f.expiresIn = 120 })
			clock := newFakeClock()
			cache := NewCredentialCache(srv.URL+"/clienttoken", clock.Now, nil)

			if _, err := cache.Get(context.Background(), srv.Client()); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			clock.Advance(59 * time.Second)
			if _, err := cache.Get(context.Background(), srv.Client()); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got := f.tokenCalls.Load(); got != 1 {
				t.Fatalf("expected token to still be valid, got %d requests", got)
			}

			clock.Advance(time.Second)
			f.set(func(f *fakeSpotify) { f.token = "client-token-2" })
			token, err := cache.Get(context.Background(), srv.Client())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if token != "client-token-2" {
				t.Errorf("expected refreshed token, got %s", token)
			}
			if got := f.tokenCalls.Load(); got != 2 {
				t.Errorf("expected 2 token requests, got %d", got)
			}
		})

		t.Run("fails with status and body on non-2xx", func(t *testing.T) {
			f, srv := newFakeSpotify(t)
			f.set(func(f *fakeSpotify) { f.tokenStatus = http.StatusBadRequest })
			cache := NewCredentialCache(srv.URL+"/clienttoken", nil, nil)

			_, err := cache.Get(context.Background(), srv.Client())
			if !errors.Is(err, ErrTokenFetchFailed) {
				t.Fatalf("expected ErrTokenFetchFailed, got %v", err)
			}

			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if cerr.Status != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", cerr.Status)
			}
			if !strings.Contains(cerr.Message, "400") || !strings.Contains(cerr.Message, "token denied") {
				t.Errorf("expected message with status and body, got %q", cerr.Message)
			}
			if _, ok := cache.ExpiresAt(); ok {
				t.Error("expected no credential to be cached after failure")
			}
		})

		t.Run("accepts camelCase response keys", func(t *testing.T) {
			clock := newFakeClock()
			doer := doerFunc(func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `{"grantedToken":{"token":"camel","expiresAfterSeconds":600}}`), nil
			})

			cache := NewCredentialCache("", clock.Now, nil)
			token, err := cache.Get(context.Background(), doer)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if token != "camel" {
				t.Errorf("expected token camel, got %s", token)
			}
			if exp, _ := cache.ExpiresAt(); !exp.Equal(clock.Now().Add(540 * time.Second)) {
				t.Errorf("expected expiry now+540s, got %v", exp)
			}
		})

		t.Run("rejects response without token", func(t *testing.T) {
			doer := doerFunc(func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `{"response_type":"RESPONSE_CHALLENGES_RESPONSE"}`), nil
			})

			_, err := NewCredentialCache("", nil, nil).Get(context.Background(), doer)
			if !errors.Is(err, ErrJSON) {
				t.Errorf("expected ErrJSON, got %v", err)
			}
		})

		t.Run("wraps transport errors", func(t *testing.T) {
			cause := errors.New("connection refused")
			doer := doerFunc(func(*http.Request) (*http.Response, error) { return nil, cause })

			_, err := NewCredentialCache("", nil, nil).Get(context.Background(), doer)
			if !errors.Is(err, ErrNetwork) {
				t.Errorf("expected ErrNetwork, got %v", err)
			}
			if !errors.Is(err, cause) {
				t.Errorf("expected cause to be wrapped, got %v", err)
			}
		})

		t.Run("concurrent callers share one refresh", func(t *testing.T) {
			f, srv := newFakeSpotify(t)
			f.set(func(f *fakeSpotify) { f.tokenDelay = 50 * time.Millisecond })
			cache := NewCredentialCache(srv.URL+"/clienttoken", nil, nil)

			var wg sync.WaitGroup
			tokens := make([]string, 10)
			errs := make([]error, 10)
			for i := range tokens {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					tokens[i], errs[i] = cache.Get(context.Background(), srv.Client())
				}(i)
			}
			wg.Wait()

			for i := range tokens {
				if errs[i] != nil {
					t.Fatalf("caller %d: expected no error, got %v", i, errs[i])
				}
				if tokens[i] != "client-token-1" {
					t.Errorf("caller %d: expected client-token-1, got %s", i, tokens[i])
				}
			}
			if got := f.tokenCalls.Load(); got != 1 {
				t.Errorf("expected 1 token request, got %d", got)
			}
		})

		t.Run("waiting caller honours cancellation", func(t *testing.T) {
			cache := NewCredentialCache("", nil, nil)
			cache.sem <- struct{}{}
			defer cache.release()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := cache.Get(ctx, doerFunc(func(*http.Request) (*http.Response, error) {
				t.Fatal("expected no request")
				return nil, nil
			}))
			if !errors.Is(err, ErrNetwork) || !errors.Is(err, context.Canceled) {
				t.Errorf("expected network error wrapping context.Canceled, got %v", err)
			}
		})
	})

	t.Run("Set", func(t *testing.T) {
		t.Run("applies the expiry margin", func(t *testing.T) {
			clock := newFakeClock()
			cache := NewCredentialCache("", clock.Now, nil)
			cache.Set("manual", 300)

			exp, ok := cache.ExpiresAt()
			if !ok {
				t.Fatal("expected credential to be cached")
			}
			if !exp.Equal(clock.Now().Add(240 * time.Second)) {
				t.Errorf("expected expiry now+240s, got %v", exp)
			}
		})

		t.Run("short lifetime is already expired", func(t *testing.T) {
			f, srv := newFakeSpotify(t)
			cache := NewCredentialCache(srv.URL+"/clienttoken", nil, nil)
			cache.Set("manual", 60)

			token, err := cache.Get(context.Background(), srv.Client())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if token != "client-token-1" {
				t.Errorf("expected refreshed token, got %s", token)
			}
			if got := f.tokenCalls.Load(); got != 1 {
				t.Errorf("expected 1 token request, got %d", got)
			}
		})
	})

	t.Run("Invalidate", func(t *testing.T) {
		cache := NewCredentialCache("", nil, nil)
		cache.Set("manual", 3600)
		cache.Invalidate()

		if _, ok := cache.ExpiresAt(); ok {
			t.Error("expected cache to be empty after Invalidate")
		}
	})
}
