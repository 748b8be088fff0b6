package canvas

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type persistedQuery struct {
	Version    int    `json:"version"`
	SHA256Hash string `json:"sha256Hash"`
}

type queryExtensions struct {
	PersistedQuery persistedQuery `json:"persistedQuery"`
}

type queryVariables struct {
	TrackURI string `json:"trackUri"`
}

type queryRequest struct {
	OperationName string          `json:"operationName"`
	Variables     queryVariables  `json:"variables"`
	Extensions    queryExtensions `json:"extensions"`
}

type graphResponse struct {
	Data   *graphData   `json:"data"`
	Errors []graphError `json:"errors"`
}

type graphData struct {
	TrackUnion *trackUnion `json:"trackUnion"`
}

type trackUnion struct {
	Canvas *canvasData `json:"canvas"`
}

type canvasData struct {
	URL *string `json:"url"`
	URI *string `json:"uri"`
}

type graphError struct {
	Message string `json:"message"`
}

// canvasShape is the outcome of walking data.trackUnion.canvas.
type canvasShape int

const (
	shapeMissing canvasShape = iota
	shapeEmpty
	shapeURIOnly
	shapeFound
)

func (s canvasShape) String() string {
	switch s {
	case shapeEmpty:
		return "empty"
	case shapeURIOnly:
		return "uri_only"
	case shapeFound:
		return "found"
	default:
		return "missing"
	}
}

// extracted is the tagged result of a decode, before mapping to a [Canvas].
type extracted struct {
	shape canvasShape
	url   string
	uri   *string
}

func (g graphResponse) extract() extracted {
	if g.Data == nil || g.Data.TrackUnion == nil || g.Data.TrackUnion.Canvas == nil {
		return extracted{shape: shapeMissing}
	}

	cd := g.Data.TrackUnion.Canvas
	switch {
	case cd.URL != nil:
		return extracted{shape: shapeFound, url: *cd.URL, uri: cd.URI}
	case cd.URI != nil:
		return extracted{shape: shapeURIOnly, uri: cd.URI}
	default:
		return extracted{shape: shapeEmpty}
	}
}

// persistedQueryMissing reports whether the provider no longer knows the query hash.
func (g graphResponse) persistedQueryMissing() bool {
	for _, e := range g.Errors {
		if strings.Contains(strings.ToLower(e.Message), "persistedquerynotfound") {
			return true
		}
	}
	return false
}

// BuildRequestBody encodes the persisted-query envelope for a canvas lookup.
func BuildRequestBody(trackURI string, cfg Config) ([]byte, error) {
	body, err := json.Marshal(queryRequest{
		OperationName: cfg.OperationName,
		Variables:     queryVariables{TrackURI: trackURI},
		Extensions: queryExtensions{
			PersistedQuery: persistedQuery{Version: 1, SHA256Hash: cfg.QueryHash},
		},
	})
	if err != nil {
		return nil, jsonError(err)
	}
	return body, nil
}

// DecodeResponse classifies a Pathfinder response and extracts the canvas.
//
// Classification order: 429, other non-2xx, malformed JSON, then the canvas shape.
// A canvas carrying a URI but no URL is reported as [ErrNotFound].
func DecodeResponse(trackURI string, status int, header http.Header, body []byte) (*Canvas, error) {
	if status == http.StatusTooManyRequests {
		return nil, &Error{Kind: KindRateLimited, RetryAfter: parseRetryAfter(header)}
	}

	if status < 200 || status >= 300 {
		return nil, &Error{Kind: KindSpotifyAPI, Status: status, Message: string(body)}
	}

	var resp graphResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, jsonError(err)
	}

	ex := resp.extract()
	switch ex.shape {
	case shapeFound:
		return &Canvas{MP4URL: ex.url, URI: ex.uri, TrackURI: trackURI}, nil
	case shapeMissing:
		if resp.persistedQueryMissing() {
			return nil, &Error{Kind: KindHashOutdated}
		}
		return nil, notFound(trackURI)
	default:
		return nil, notFound(trackURI)
	}
}

// parseRetryAfter reads Retry-After as whole seconds.
func parseRetryAfter(header http.Header) *time.Duration {
	if header == nil {
		return nil
	}
	v := strings.TrimSpace(header.Get("Retry-After"))
	if v == "" {
		return nil
	}
	secs, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return nil
	}
	d := time.Duration(secs) * time.Second
	return &d
}
