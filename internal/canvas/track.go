package canvas

import (
	"net/url"
	"regexp"
	"strings"
)

const trackURIPrefix = "spotify:track:"

var trackIDPattern = regexp.MustCompile(`^[0-9A-Za-z]{22}$`)

// NormalizeTrackURI accepts a track URI, an open.spotify.com track link or a bare
// track ID and returns the "spotify:track:ID" form.
func NormalizeTrackURI(s string) (string, error) {
	s = strings.TrimSpace(s)

	var id string
	switch {
	case strings.HasPrefix(s, trackURIPrefix):
		id = strings.TrimPrefix(s, trackURIPrefix)
	case strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://"):
		u, err := url.Parse(s)
		if err != nil {
			return "", invalidInput("track link %q: %v", s, err)
		}
		if u.Host != "open.spotify.com" {
			return "", invalidInput("track link %q: unexpected host %s", s, u.Host)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		// Localized links look like /intl-de/track/ID.
		if len(parts) == 3 && strings.HasPrefix(parts[0], "intl-") {
			parts = parts[1:]
		}
		if len(parts) != 2 || parts[0] != "track" {
			return "", invalidInput("track link %q: not a track", s)
		}
		id = parts[1]
	default:
		id = s
	}

	if !trackIDPattern.MatchString(id) {
		return "", invalidInput("track id %q: expected 22 base62 characters", id)
	}
	return trackURIPrefix + id, nil
}
