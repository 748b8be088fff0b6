// Package canvas fetches Spotify canvas videos through the Pathfinder GraphQL API.
//
// # Credentials
//
// Every Pathfinder request carries two tokens: the caller's long-lived access token
// (Authorization: Bearer) and a short-lived client-token. [CredentialCache] obtains the
// client-token from the client-token endpoint, keeps it until 60 seconds before its
// granted lifetime ends and renews it on demand.
//
// # Protocol
//
// Canvases are requested with a persisted query: only the operation name and the
// SHA-256 hash of a query registered by Spotify are sent ([BuildRequestBody]). The hash
// changes when Spotify redeploys its web player; [ErrHashOutdated] signals that
// [Config].QueryHash needs a manual update.
//
// [DecodeResponse] classifies the response:
//   - 429: [ErrRateLimited] with the Retry-After delay when present
//   - other non-2xx: [ErrSpotifyAPI] with status and body
//   - malformed body: [ErrJSON]
//   - data.trackUnion.canvas with a url: [Canvas]
//   - anything else: [ErrNotFound]
//
// # Errors
//
// All failures are [*Error] values. Use [errors.Is] with the exported sentinels to
// match a [Kind]. [ErrTokenExpired] is reserved and not produced yet.
package canvas
