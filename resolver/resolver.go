package resolver

import (
	"context"
	"strings"

	"github.com/chartlab/auricle/auricle"
	"github.com/chartlab/auricle/catalog"
	"github.com/chartlab/auricle/config"
	"github.com/chartlab/auricle/featurestore"
	"go.uber.org/zap"
)

// Request is one of the three accepted resolution shapes. The set is sealed;
// Resolve matches it exhaustively.
type Request interface {
	requestShape()
}

// ByTrack resolves from a catalog identifier, URL or URI.
type ByTrack struct {
	Input string
}

// ByTitleArtist resolves from a free-text title and artist pair.
type ByTitleArtist struct {
	Title  string
	Artist string
}

// Manual resolves from caller-supplied features. DurationMs, Danceability,
// Energy and Mood are the minimal required set; the boolean-style fields are
// optional overrides.
type Manual struct {
	Title  string
	Artist string

	DurationMs   *float64
	Danceability *float64
	Energy       *float64
	Mood         *float64

	Acoustic     *bool
	Instrumental *bool
	Explicit     *bool
}

func (ByTrack) requestShape()       {}
func (ByTitleArtist) requestShape() {}
func (Manual) requestShape()        {}

// Resolver turns a resolution request into a complete, ordered feature
// vector, trying local lookup, then the external catalog, then formula-based
// inference, in fixed precedence.
type Resolver struct {
	log     *zap.SugaredLogger
	store   *featurestore.Store
	catalog catalog.Client
	formula config.Formula
}

// New builds a resolver over the store and catalog client.
func New(log *zap.SugaredLogger, store *featurestore.Store, cat catalog.Client, formula config.Formula) *Resolver {
	return &Resolver{log: log, store: store, catalog: cat, formula: formula}
}

// strategy is one step of the precedence chain. A not_found error means "try
// the next strategy"; any other error aborts resolution.
type strategy struct {
	name string
	run  func(ctx context.Context) (auricle.ResolvedFeatures, auricle.ResolutionPath, error)
}

// Resolve produces a complete ResolvedFeatures for the request, or a domain
// error from the taxonomy. The strategy order is fixed and auditable.
func (r *Resolver) Resolve(ctx context.Context, req Request) (auricle.ResolvedFeatures, auricle.ResolutionPath, error) {
	var chain []strategy

	switch q := req.(type) {
	case ByTrack:
		id := catalog.ExtractTrackID(q.Input)
		chain = []strategy{
			{"store-by-id", func(ctx context.Context) (auricle.ResolvedFeatures, auricle.ResolutionPath, error) {
				return r.storeByID(id)
			}},
			{"catalog-fetch", func(ctx context.Context) (auricle.ResolvedFeatures, auricle.ResolutionPath, error) {
				return r.catalogFetch(ctx, id)
			}},
		}
	case ByTitleArtist:
		chain = []strategy{
			{"store-by-title-artist", func(ctx context.Context) (auricle.ResolvedFeatures, auricle.ResolutionPath, error) {
				return r.storeByTitleArtist(q.Title, q.Artist, nil)
			}},
			{"catalog-search", func(ctx context.Context) (auricle.ResolvedFeatures, auricle.ResolutionPath, error) {
				return r.searchThenFetch(ctx, q.Title, q.Artist)
			}},
		}
	case Manual:
		chain = []strategy{
			{"manual-inferred", func(ctx context.Context) (auricle.ResolvedFeatures, auricle.ResolutionPath, error) {
				return r.manual(q)
			}},
		}
	}

	var lastErr error
	for _, s := range chain {
		rf, path, err := s.run(ctx)
		if err == nil {
			r.log.Infow("Resolved features", "strategy", s.name, "path", path,
				"title", rf.Identity.Title, "artist", rf.Identity.Artist)
			return rf, path, nil
		}
		lastErr = err
		if !auricle.IsKind(err, auricle.KindNotFound) {
			return auricle.ResolvedFeatures{}, "", err
		}
	}
	if lastErr == nil {
		lastErr = auricle.NewError(auricle.KindNotFound, "no resolution strategy applicable")
	}
	return auricle.ResolvedFeatures{}, "", lastErr
}

func (r *Resolver) storeByID(id string) (auricle.ResolvedFeatures, auricle.ResolutionPath, error) {
	if rf, ok := r.store.LookupByID(id); ok {
		return rf, auricle.PathStoreHit, nil
	}
	return auricle.ResolvedFeatures{}, "", auricle.NewError(auricle.KindNotFound, "track %s not in local store", id)
}

// catalogFetch pulls the track from the catalog. With full features the
// vector is exact and cached; with metadata only, resolution falls through to
// the title/artist path using the derived names.
func (r *Resolver) catalogFetch(ctx context.Context, id string) (auricle.ResolvedFeatures, auricle.ResolutionPath, error) {
	track, err := r.catalog.FetchByID(ctx, id)
	if err != nil {
		return auricle.ResolvedFeatures{}, "", err
	}

	if track.Features != nil {
		rf := exactFromTrack(track)
		r.store.Add(rf, track.Popularity)
		return rf, auricle.PathCatalogFetch, nil
	}

	// Features endpoint denied or empty; the metadata still names the song.
	rf, path, err := r.storeByTitleArtist(track.Title, track.Artist, track)
	if err == nil {
		return rf, path, nil
	}
	if !auricle.IsKind(err, auricle.KindNotFound) {
		return auricle.ResolvedFeatures{}, "", err
	}
	return r.searchThenFetch(ctx, track.Title, track.Artist)
}

// storeByTitleArtist looks up the normalized composite key, merging catalog
// metadata into the identity when a fetch preceded the lookup.
func (r *Resolver) storeByTitleArtist(title, artist string, meta *catalog.RawTrack) (auricle.ResolvedFeatures, auricle.ResolutionPath, error) {
	rf, ok := r.store.LookupByTitleArtist(title, artist)
	if !ok {
		return auricle.ResolvedFeatures{}, "", auricle.NewError(auricle.KindNotFound,
			"%q by %q not in local store", title, artist)
	}
	if meta != nil {
		rf.Identity = mergeIdentity(rf.Identity, meta)
	}
	return rf, auricle.PathStoreHit, nil
}

// searchThenFetch asks the catalog for candidates and takes the first one
// that is either known to the store or fetchable with full features.
func (r *Resolver) searchThenFetch(ctx context.Context, title, artist string) (auricle.ResolvedFeatures, auricle.ResolutionPath, error) {
	candidates, err := r.catalog.SearchByTitleArtist(ctx, title, artist)
	if err != nil {
		return auricle.ResolvedFeatures{}, "", err
	}

	for i := range candidates {
		cand := &candidates[i]
		if rf, ok := r.store.LookupByTitleArtist(cand.Title, cand.Artist); ok {
			rf.Identity = mergeIdentity(rf.Identity, cand)
			return rf, auricle.PathStoreHit, nil
		}

		track, err := r.catalog.FetchByID(ctx, cand.ID)
		if err != nil || track.Features == nil {
			if err != nil {
				r.log.Warnw("Candidate fetch failed", "track_id", cand.ID, "error", err)
			}
			continue
		}
		rf := exactFromTrack(track)
		r.store.Add(rf, track.Popularity)
		return rf, auricle.PathCatalogFetch, nil
	}

	return auricle.ResolvedFeatures{}, "", auricle.NewError(auricle.KindNotFound,
		"%q by %q not found in store or catalog", title, artist)
}

// manual builds a vector from the minimal required set, defaulting the
// optional fields to dataset medians and inferring loudness, tempo and mode
// from the versioned formulas. Total for any inputs in range; no external
// calls.
func (r *Resolver) manual(q Manual) (auricle.ResolvedFeatures, auricle.ResolutionPath, error) {
	var missing []string
	for _, f := range []struct {
		name string
		val  *float64
	}{
		{"duration_ms", q.DurationMs},
		{"danceability", q.Danceability},
		{"energy", q.Energy},
		{"mood", q.Mood},
	} {
		if f.val == nil {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return auricle.ResolvedFeatures{}, "", auricle.NewError(auricle.KindIncompleteInput,
			"missing required fields: %s", strings.Join(missing, ", "))
	}

	f := r.formula
	var rf auricle.ResolvedFeatures

	set := func(i int, val float64, prov auricle.Provenance) {
		rf.Vector[i] = val
		rf.Provenance[i] = prov
	}
	setBool := func(i int, override *bool, median float64) {
		if override != nil {
			v := 0.0
			if *override {
				v = 1.0
			}
			set(i, v, auricle.ProvenanceUser)
			return
		}
		set(i, median, auricle.ProvenanceInferred)
	}

	set(auricle.FeatDurationMs, *q.DurationMs, auricle.ProvenanceUser)
	set(auricle.FeatDanceability, *q.Danceability, auricle.ProvenanceUser)
	set(auricle.FeatEnergy, *q.Energy, auricle.ProvenanceUser)
	set(auricle.FeatValence, *q.Mood, auricle.ProvenanceUser)

	setBool(auricle.FeatAcousticness, q.Acoustic, f.MedianAcousticness)
	setBool(auricle.FeatInstrumentalness, q.Instrumental, f.MedianInstrumentalness)
	setBool(auricle.FeatExplicit, q.Explicit, f.MedianExplicit)

	set(auricle.FeatLoudness, f.LoudnessEnergySlope*(*q.Energy)+f.LoudnessIntercept, auricle.ProvenanceInferred)
	set(auricle.FeatTempo, f.TempoEnergySlope*(*q.Energy)+f.TempoDanceSlope*(*q.Danceability)+f.TempoIntercept, auricle.ProvenanceInferred)

	mode := 0.0
	if *q.Mood > f.ModeMoodThreshold {
		mode = 1.0
	}
	set(auricle.FeatMode, mode, auricle.ProvenanceInferred)

	title := q.Title
	if title == "" {
		title = "Untitled Song"
	}
	rf.Identity = auricle.SongIdentity{Title: title, Artist: q.Artist}

	return rf, auricle.PathManualInferred, nil
}

func exactFromTrack(t *catalog.RawTrack) auricle.ResolvedFeatures {
	f := t.Features
	rf := auricle.ResolvedFeatures{
		Identity: t.Identity(),
		Vector: auricle.FeatureVector{
			float64(t.DurationMs),
			f.Danceability,
			f.Energy,
			f.Valence,
			f.Acousticness,
			f.Instrumentalness,
			boolToFloat(t.Explicit),
			f.Loudness,
			f.Tempo,
			float64(f.Mode),
		},
	}
	for i := range rf.Provenance {
		rf.Provenance[i] = auricle.ProvenanceExact
	}
	return rf
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func mergeIdentity(id auricle.SongIdentity, meta *catalog.RawTrack) auricle.SongIdentity {
	if id.TrackID == "" {
		id.TrackID = meta.ID
	}
	if id.Album == "" {
		id.Album = meta.Album
	}
	if id.AlbumImage == "" {
		id.AlbumImage = meta.AlbumImage
	}
	if id.PreviewURL == "" {
		id.PreviewURL = meta.PreviewURL
	}
	if id.SpotifyURL == "" {
		id.SpotifyURL = meta.SpotifyURL
	}
	return id
}

// ProvideResolver wires the resolver from its collaborators.
func ProvideResolver(
	logger *zap.SugaredLogger,
	store *featurestore.Store,
	cat catalog.Client,
	coef config.Coefficients,
) *Resolver {
	return New(logger, store, cat, coef.Formula)
}

var Options = ProvideResolver
