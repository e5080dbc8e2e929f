package catalog

import "strings"

// ExtractTrackID pulls a bare catalog track ID out of the accepted input
// forms: a plain ID, an open.spotify.com track URL (with or without query
// parameters), or a spotify:track: URI.
func ExtractTrackID(input string) string {
	input = strings.TrimSpace(input)

	if idx := strings.Index(input, "open.spotify.com/track/"); idx != -1 {
		rest := input[idx+len("open.spotify.com/track/"):]
		rest = strings.SplitN(rest, "?", 2)[0]
		return strings.SplitN(rest, "/", 2)[0]
	}

	if strings.HasPrefix(input, "spotify:track:") {
		parts := strings.Split(input, ":")
		return parts[len(parts)-1]
	}

	return input
}
