package canvas

import (
	"fmt"
	"time"
)

// Kind classifies a canvas failure.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindJSON
	KindMissingAccessToken
	KindSpotifyAPI
	KindRateLimited
	KindTokenExpired // reserved: nothing triggers it yet
	KindNotFound
	KindTokenFetchFailed
	KindHashOutdated
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindJSON:
		return "json"
	case KindMissingAccessToken:
		return "missing_access_token"
	case KindSpotifyAPI:
		return "spotify_api"
	case KindRateLimited:
		return "rate_limited"
	case KindTokenExpired:
		return "token_expired"
	case KindNotFound:
		return "not_found"
	case KindTokenFetchFailed:
		return "token_fetch_failed"
	case KindHashOutdated:
		return "hash_outdated"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the single error type returned by this package.
//
// Only the fields relevant to Kind are populated:
//   - Status, Message: [KindSpotifyAPI]
//   - Message: [KindTokenFetchFailed], [KindInvalidInput]
//   - TrackURI: [KindNotFound]
//   - RetryAfter: [KindRateLimited], nil when the provider sent no usable Retry-After
//   - Err: underlying cause for [KindNetwork] and [KindJSON]
type Error struct {
	Kind       Kind
	Status     int
	Message    string
	TrackURI   string
	RetryAfter *time.Duration
	Err        error
}

// Sentinels for use with [errors.Is]. Matching is by [Kind] only.
var (
	ErrNetwork            = &Error{Kind: KindNetwork}
	ErrJSON               = &Error{Kind: KindJSON}
	ErrMissingAccessToken = &Error{Kind: KindMissingAccessToken}
	ErrSpotifyAPI         = &Error{Kind: KindSpotifyAPI}
	ErrRateLimited        = &Error{Kind: KindRateLimited}
	ErrTokenExpired       = &Error{Kind: KindTokenExpired}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrTokenFetchFailed   = &Error{Kind: KindTokenFetchFailed}
	ErrHashOutdated       = &Error{Kind: KindHashOutdated}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
)

func (e *Error) Error() string {
	switch e.Kind {
	case KindNetwork:
		return fmt.Sprintf("network error: %v", e.Err)
	case KindJSON:
		return fmt.Sprintf("failed to serialize/deserialize JSON: %v", e.Err)
	case KindMissingAccessToken:
		return "missing access token, please provide a valid access token"
	case KindSpotifyAPI:
		return fmt.Sprintf("spotify API error: %d - %s", e.Status, e.Message)
	case KindRateLimited:
		if e.RetryAfter != nil {
			return fmt.Sprintf("rate limited, retry after %dms", e.RetryAfter.Milliseconds())
		}
		return "rate limited, retry after unspecified delay"
	case KindTokenExpired:
		return "token expired, refresh required"
	case KindNotFound:
		return fmt.Sprintf("canvas not found for track: %s", e.TrackURI)
	case KindTokenFetchFailed:
		return fmt.Sprintf("token fetch failed: %s", e.Message)
	case KindHashOutdated:
		return "persisted query hash outdated, update the canvas query_hash"
	case KindInvalidInput:
		return fmt.Sprintf("invalid input: %s", e.Message)
	default:
		return fmt.Sprintf("canvas error (%s)", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an [*Error] of the same [Kind].
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// RetryAfterMs returns the provider's requested back-off in milliseconds.
func (e *Error) RetryAfterMs() (int64, bool) {
	if e.RetryAfter == nil {
		return 0, false
	}
	return e.RetryAfter.Milliseconds(), true
}

func networkError(err error) *Error { return &Error{Kind: KindNetwork, Err: err} }

func jsonError(err error) *Error { return &Error{Kind: KindJSON, Err: err} }

func notFound(trackURI string) *Error { return &Error{Kind: KindNotFound, TrackURI: trackURI} }

func invalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}
