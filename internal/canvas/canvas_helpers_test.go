package canvas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSpotify serves both the client-token and the Pathfinder endpoint.
type fakeSpotify struct {
	tokenCalls atomic.Int32
	queryCalls atomic.Int32

	mu          sync.Mutex
	tokenStatus int
	token       string
	expiresIn   int64
	tokenDelay  time.Duration
	deviceIDs   []string
	queryStatus int
	queryBody   string
	queryHeader http.Header
	lastHeader  http.Header
	lastBody    []byte
}

func newFakeSpotify(t *testing.T) (*fakeSpotify, *httptest.Server) {
	t.Helper()

	f := &fakeSpotify{
		tokenStatus: http.StatusOK,
		token:       "client-token-1",
		expiresIn:   3600,
		queryStatus: http.StatusOK,
		queryBody:   `{"data":{"trackUnion":{"canvas":{"url":"https://x/y.mp4"}}}}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/clienttoken", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)

		var req clientTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode client token request: %v", err)
		}

		f.mu.Lock()
		f.deviceIDs = append(f.deviceIDs, req.ClientData.JSSDKData.DeviceID)
		status, token, expiresIn, delay := f.tokenStatus, f.token, f.expiresIn, f.tokenDelay
		f.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			fmt.Fprint(w, "token denied")
			return
		}
		fmt.Fprintf(w, `{"response_type":"RESPONSE_GRANTED_TOKEN_RESPONSE","granted_token":{"token":%q,"expires_after_seconds":%d,"refresh_after_seconds":1209600}}`, token, expiresIn)
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		f.queryCalls.Add(1)

		body, _ := io.ReadAll(r.Body)

		f.mu.Lock()
		f.lastHeader = r.Header.Clone()
		f.lastBody = body
		status, respBody, header := f.queryStatus, f.queryBody, f.queryHeader
		f.mu.Unlock()

		for k, vs := range header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(status)
		fmt.Fprint(w, respBody)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeSpotify) set(fn func(f *fakeSpotify)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func newTestClient(srv *httptest.Server, now func() time.Time) *Client {
	return New(Options{
		Config: Config{
			EndpointURL:   srv.URL + "/query",
			OperationName: "canvas",
			QueryHash:     "H",
		},
		HTTPClient:     srv.Client(),
		ClientTokenURL: srv.URL + "/clienttoken",
		Now:            now,
	})
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// doerFunc adapts a function to [Doer].
type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func decodeJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}
