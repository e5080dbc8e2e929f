package auricle

import (
	"strings"
	"time"
)

// NumFeatures is the fixed length of a FeatureVector.
const NumFeatures = 10

// Positional indexes into a FeatureVector. The order matches the training
// order of the scoring artifact; consumers must trust positions, never names.
const (
	FeatDurationMs = iota
	FeatDanceability
	FeatEnergy
	FeatValence
	FeatAcousticness
	FeatInstrumentalness
	FeatExplicit
	FeatLoudness
	FeatTempo
	FeatMode
)

var featureNames = [NumFeatures]string{
	"duration_ms",
	"danceability",
	"energy",
	"valence",
	"acousticness",
	"instrumentalness",
	"explicit",
	"loudness",
	"tempo",
	"mode",
}

// FeatureNames returns the canonical feature names in training order.
func FeatureNames() [NumFeatures]string {
	return featureNames
}

// FeatureVector is the ordered ten-field input to the scoring artifact.
//
// Positions, in order:
//   - DurationMs is the duration of the track in milliseconds.
//     Example: 230666
//   - Danceability describes how suitable a track is for dancing based on a
//     combination of musical elements including tempo, rhythm stability, beat
//     strength, and overall regularity. 0.0 is least danceable, 1.0 most.
//     Example: 0.676
//   - Energy is a perceptual measure of intensity and activity from 0.0 to 1.0.
//     Example: 0.461
//   - Valence is a measure from 0.0 to 1.0 describing the musical positiveness
//     conveyed by a track ("mood" in request payloads).
//     Example: 0.715
//   - Acousticness is a confidence measure from 0.0 to 1.0 of whether the
//     track is acoustic.
//   - Instrumentalness predicts whether a track contains no vocals, 0.0 to 1.0.
//   - Explicit is 1 when the track is flagged explicit, otherwise 0.
//   - Loudness is the overall loudness of a track in decibels (dB), typically
//     between -60 and 0.
//     Example: -6.746
//   - Tempo is the overall estimated tempo in beats per minute (BPM).
//     Example: 87.917
//   - Mode indicates the modality of a track. Major is 1, minor is 0.
type FeatureVector [NumFeatures]float64

// Named returns the vector keyed by feature name, for response payloads and
// logs. Scoring always goes through the positional form.
func (v FeatureVector) Named() map[string]float64 {
	m := make(map[string]float64, NumFeatures)
	for i, name := range featureNames {
		m[name] = v[i]
	}
	return m
}

// Provenance records where a single feature value came from.
type Provenance string

const (
	// ProvenanceExact marks a value read from the reference dataset or the
	// catalog's audio analysis.
	ProvenanceExact Provenance = "exact"
	// ProvenanceUser marks a value supplied directly by the caller.
	ProvenanceUser Provenance = "user-provided"
	// ProvenanceInferred marks a value defaulted or computed by formula.
	ProvenanceInferred Provenance = "inferred"
)

// ResolvedFeatures is a complete feature vector plus per-field provenance and
// the identity it was resolved for. It is never passed to scoring partially
// populated; every field carries exactly one provenance tag.
type ResolvedFeatures struct {
	Identity   SongIdentity
	Vector     FeatureVector
	Provenance [NumFeatures]Provenance
}

// ProvenanceSummary returns the provenance tags keyed by feature name.
func (r ResolvedFeatures) ProvenanceSummary() map[string]string {
	m := make(map[string]string, NumFeatures)
	for i, name := range featureNames {
		m[name] = string(r.Provenance[i])
	}
	return m
}

// SongIdentity identifies a song by catalog ID and/or title and artist.
// Catalog metadata fields are carried along when known so responses can show
// them; they play no part in identity comparison.
type SongIdentity struct {
	TrackID    string `json:"track_id,omitempty"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	AlbumImage string `json:"album_image,omitempty"`
	PreviewURL string `json:"preview_url,omitempty"`
	SpotifyURL string `json:"spotify_url,omitempty"`
	Genre      string `json:"genre,omitempty"`
}

// NormalizeKey builds the case- and whitespace-insensitive composite key used
// for title/artist lookups.
func NormalizeKey(title, artist string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "\x1f" + strings.ToLower(strings.TrimSpace(artist))
}

// Key returns the identity's normalized composite lookup key.
func (s SongIdentity) Key() string {
	return NormalizeKey(s.Title, s.Artist)
}

// SameSong reports whether two identities refer to the same song: track IDs
// match exactly, or the normalized (title, artist) pairs match.
func (s SongIdentity) SameSong(o SongIdentity) bool {
	if s.TrackID != "" && o.TrackID != "" {
		return s.TrackID == o.TrackID
	}
	return s.Key() == o.Key()
}

// Label is the binary prediction outcome.
type Label string

const (
	LabelHit  Label = "HIT"
	LabelFlop Label = "FLOP"
)

// LabelFor maps a hit flag to its label.
func LabelFor(hit bool) Label {
	if hit {
		return LabelHit
	}
	return LabelFlop
}

// GroundTruth is the popularity-derived label for a song present in the
// reference dataset. Immutable once loaded; never produced by user requests.
type GroundTruth struct {
	Hit        bool `json:"hit"`
	Popularity int  `json:"popularity"`
}

// Label returns the ground-truth outcome label.
func (g GroundTruth) Label() Label {
	return LabelFor(g.Hit)
}

// ResolutionPath records which strategy produced the feature vector.
type ResolutionPath string

const (
	PathStoreHit       ResolutionPath = "store-hit"
	PathCatalogFetch   ResolutionPath = "catalog-fetch"
	PathManualInferred ResolutionPath = "manual-inferred"
)

// PredictionRecord is the durable, append-only outcome of one resolution
// request. Created once, never mutated.
type PredictionRecord struct {
	ID                    string            `json:"id"`
	RawLabel              Label             `json:"model_prediction"`
	RawConfidence         float64           `json:"model_confidence"`
	FinalLabel            Label             `json:"prediction"`
	FinalConfidence       float64           `json:"confidence"`
	Adjusted              bool              `json:"adjusted_by_dataset"`
	GroundTruthLabel      *Label            `json:"dataset_label,omitempty"`
	GroundTruthPopularity *int              `json:"dataset_popularity,omitempty"`
	Provenance            map[string]string `json:"provenance"`
	Path                  ResolutionPath    `json:"resolution_path"`
	ModelVersion          string            `json:"model_version"`
	ReconcilerVersion     string            `json:"reconciler_version"`
	CreatedAt             time.Time         `json:"created_at"`
}

// AuditEntry is an immutable snapshot of one request and its full response
// (or failure), written even when no PredictionRecord exists.
type AuditEntry struct {
	ID              string    `json:"id"`
	PredictionID    string    `json:"prediction_id,omitempty"`
	RequestPayload  []byte    `json:"request_payload"`
	ResponsePayload []byte    `json:"response_payload"`
	FailureKind     string    `json:"failure_kind,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
