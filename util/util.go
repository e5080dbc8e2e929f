package util

import (
	"strings"

	spot "github.com/zmb3/spotify/v2"
)

// GetThumb returns the 300x300 album image URL, or empty when the album has
// none at that size.
func GetThumb(a spot.SimpleAlbum) string {
	for _, img := range a.Images {
		if img.Height == 300 && img.Width == 300 {
			return img.URL
		}
	}
	return ""
}

// ConcatArtists returns a comma-separated list of artist names
func ConcatArtists(artists []spot.SimpleArtist) string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}
