package catalog

import "testing"

func TestExtractTrackID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare id", "5SuOikwiRyPMVoIQDJUgSV", "5SuOikwiRyPMVoIQDJUgSV"},
		{"padded id", "  5SuOikwiRyPMVoIQDJUgSV ", "5SuOikwiRyPMVoIQDJUgSV"},
		{"track url", "https://open.spotify.com/track/5SuOikwiRyPMVoIQDJUgSV", "5SuOikwiRyPMVoIQDJUgSV"},
		{"track url with query", "https://open.spotify.com/track/5SuOikwiRyPMVoIQDJUgSV?si=abc123", "5SuOikwiRyPMVoIQDJUgSV"},
		{"track url with trailing path", "https://open.spotify.com/track/5SuOikwiRyPMVoIQDJUgSV/extra", "5SuOikwiRyPMVoIQDJUgSV"},
		{"uri", "spotify:track:5SuOikwiRyPMVoIQDJUgSV", "5SuOikwiRyPMVoIQDJUgSV"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractTrackID(tt.input); got != tt.want {
				t.Errorf("ExtractTrackID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
