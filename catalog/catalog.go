package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	spot "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/chartlab/auricle/auricle"
	"github.com/chartlab/auricle/config"
	"github.com/chartlab/auricle/util"
	"go.uber.org/zap"
)

// AudioFeatures is the audio-analysis subset of a catalog track. Absent when
// the features endpoint is unavailable (it requires extended quota approval).
type AudioFeatures struct {
	Danceability     float64
	Energy           float64
	Valence          float64
	Acousticness     float64
	Instrumentalness float64
	Loudness         float64
	Tempo            float64
	Mode             int
}

// RawTrack is a catalog track: metadata always, features when the catalog
// granted access to them.
type RawTrack struct {
	ID         string
	Title      string
	Artist     string
	Album      string
	AlbumImage string
	PreviewURL string
	SpotifyURL string
	Popularity int
	DurationMs int
	Explicit   bool

	Features *AudioFeatures
}

// Identity converts catalog metadata into a song identity.
func (t *RawTrack) Identity() auricle.SongIdentity {
	return auricle.SongIdentity{
		TrackID:    t.ID,
		Title:      t.Title,
		Artist:     t.Artist,
		Album:      t.Album,
		AlbumImage: t.AlbumImage,
		PreviewURL: t.PreviewURL,
		SpotifyURL: t.SpotifyURL,
	}
}

// Client is the external catalog surface the resolver depends on. Any
// non-success other than not-found surfaces as upstream_unavailable.
type Client interface {
	// FetchByID returns the track's metadata, with audio features attached
	// when the catalog allows fetching them.
	FetchByID(ctx context.Context, id string) (*RawTrack, error)
	// SearchByTitleArtist returns candidate tracks, metadata only.
	SearchByTitleArtist(ctx context.Context, title, artist string) ([]RawTrack, error)
	// Ready reports whether the client holds usable credentials.
	Ready() bool
}

const searchLimit = 5

// SpotifyCatalog implements Client against the Spotify Web API using the
// client-credentials flow.
type SpotifyCatalog struct {
	log     *zap.SugaredLogger
	client  *spot.Client
	timeout time.Duration
}

// NewSpotifyCatalog builds a catalog client. A nil spot.Client yields a
// client that reports upstream_unavailable on every call, which keeps the
// manual path serving when no credentials are configured.
func NewSpotifyCatalog(log *zap.SugaredLogger, client *spot.Client, timeout time.Duration) *SpotifyCatalog {
	return &SpotifyCatalog{log: log, client: client, timeout: timeout}
}

func (c *SpotifyCatalog) Ready() bool { return c.client != nil }

func (c *SpotifyCatalog) FetchByID(ctx context.Context, id string) (*RawTrack, error) {
	if c.client == nil {
		return nil, auricle.NewError(auricle.KindUpstreamUnavailable, "catalog credentials not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	full, err := c.client.GetTrack(ctx, spot.ID(id))
	if err != nil {
		return nil, mapCatalogErr(err, fmt.Sprintf("fetch track %s", id))
	}
	track := fromFullTrack(full)

	feats, err := c.client.GetAudioFeatures(ctx, spot.ID(id))
	if err != nil || len(feats) == 0 || feats[0] == nil {
		// Metadata still usable; the resolver falls back to title/artist.
		c.log.Warnw("Catalog audio features unavailable", "track_id", id, "error", err)
		return track, nil
	}
	f := feats[0]
	track.Features = &AudioFeatures{
		Danceability:     float64(f.Danceability),
		Energy:           float64(f.Energy),
		Valence:          float64(f.Valence),
		Acousticness:     float64(f.Acousticness),
		Instrumentalness: float64(f.Instrumentalness),
		Loudness:         float64(f.Loudness),
		Tempo:            float64(f.Tempo),
		Mode:             int(f.Mode),
	}
	return track, nil
}

func (c *SpotifyCatalog) SearchByTitleArtist(ctx context.Context, title, artist string) ([]RawTrack, error) {
	if c.client == nil {
		return nil, auricle.NewError(auricle.KindUpstreamUnavailable, "catalog credentials not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	query := strings.TrimSpace(title + " " + artist)
	results, err := c.client.Search(ctx, query, spot.SearchTypeTrack, spot.Limit(searchLimit))
	if err != nil {
		return nil, mapCatalogErr(err, fmt.Sprintf("search %q", query))
	}

	var out []RawTrack
	if results.Tracks != nil {
		for i := range results.Tracks.Tracks {
			out = append(out, *fromFullTrack(&results.Tracks.Tracks[i]))
		}
	}
	return out, nil
}

func fromFullTrack(t *spot.FullTrack) *RawTrack {
	return &RawTrack{
		ID:         string(t.ID),
		Title:      t.Name,
		Artist:     util.ConcatArtists(t.Artists),
		Album:      t.Album.Name,
		AlbumImage: util.GetThumb(t.Album),
		PreviewURL: t.PreviewURL,
		SpotifyURL: t.ExternalURLs["spotify"],
		Popularity: int(t.Popularity),
		DurationMs: int(t.Duration),
		Explicit:   t.Explicit,
	}
}

// mapCatalogErr collapses catalog failures into the domain taxonomy:
// not-found stays distinguishable so resolution can fall through, everything
// else (auth, quota, transport) is one opaque unavailable condition.
func mapCatalogErr(err error, op string) error {
	var se spot.Error
	if errors.As(err, &se) && se.Status == http.StatusNotFound {
		return auricle.WrapError(auricle.KindNotFound, err, "%s", op)
	}
	return auricle.WrapError(auricle.KindUpstreamUnavailable, err, "%s", op)
}

// ProvideCatalog builds the Spotify-backed catalog client. Missing
// credentials are not fatal; the client simply reports unavailable.
func ProvideCatalog(cfg config.Config, logger *zap.SugaredLogger) Client {
	if cfg.SpotifyID == "" || cfg.SpotifySecret == "" {
		logger.Warn("Spotify credentials not configured; catalog lookups disabled")
		return NewSpotifyCatalog(logger, nil, cfg.CatalogTimeout)
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.SpotifyID,
		ClientSecret: cfg.SpotifySecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	// The oauth2 transport refreshes the token as needed.
	httpClient := creds.Client(context.Background())
	return NewSpotifyCatalog(logger, spot.New(httpClient), cfg.CatalogTimeout)
}

var Options = ProvideCatalog
