package featurestore

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/chartlab/auricle/auricle"
	"github.com/chartlab/auricle/config"
	"go.uber.org/zap"
)

// Entry is one known song: its identity, feature vector and popularity.
// Entries loaded from the reference dataset carry a ground-truth label;
// entries added after a catalog fetch do not.
type Entry struct {
	Identity   auricle.SongIdentity
	Vector     auricle.FeatureVector
	Popularity int
	HasTruth   bool

	seq int
}

// Store is the in-memory, load-once index over the reference dataset, keyed
// by catalog ID and by normalized (title, artist). It is the single source of
// ground truth for known songs.
//
// The index is populated once at startup; all later access is read-only apart
// from appends of newly fetched songs, which are synchronized and
// first-writer-wins on identical keys.
type Store struct {
	log          *zap.SugaredLogger
	hitThreshold int

	loadOnce sync.Once
	loadErr  error

	mu    sync.RWMutex
	byID  map[string]*Entry
	byKey map[string]*Entry
	next  int
}

// NewStore builds an empty store. hitThreshold is the popularity cutoff that
// turns a dataset row into a HIT label.
func NewStore(log *zap.SugaredLogger, hitThreshold int) *Store {
	return &Store{
		log:          log,
		hitThreshold: hitThreshold,
		byID:         make(map[string]*Entry),
		byKey:        make(map[string]*Entry),
	}
}

// LoadOnce parses the reference dataset CSV into memory exactly once per
// process; subsequent calls are no-ops returning the first outcome. On
// failure the store stays empty: the process keeps serving requests with
// user-provided or inferred features, and reconciliation degrades to "no
// ground truth available".
func (s *Store) LoadOnce(path string) error {
	s.loadOnce.Do(func() {
		s.loadErr = s.load(path)
	})
	return s.loadErr
}

func (s *Store) load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read dataset header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"track_name", "artists", "popularity", "duration_ms",
		"danceability", "energy", "valence", "acousticness", "instrumentalness",
		"explicit", "loudness", "tempo", "mode"} {
		if _, ok := col[required]; !ok {
			return fmt.Errorf("dataset missing column %q", required)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rows, skipped int
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read dataset row %d: %w", rows+1, err)
		}
		e, err := s.entryFromRow(col, rec)
		if err != nil {
			skipped++
			continue
		}
		s.insertLocked(e, true)
		rows++
	}

	s.log.Infow("Loaded reference dataset", "path", path, "rows", rows, "skipped", skipped)
	return nil
}

func (s *Store) entryFromRow(col map[string]int, rec []string) (*Entry, error) {
	get := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	num := func(name string) (float64, error) {
		return strconv.ParseFloat(get(name), 64)
	}

	var v auricle.FeatureVector
	var err error
	for i, name := range [...]string{"duration_ms", "danceability", "energy", "valence",
		"acousticness", "instrumentalness", "explicit", "loudness", "tempo", "mode"} {
		if name == "explicit" {
			// Dataset exports carry explicit as True/False or 0/1.
			v[i] = parseBoolish(get(name))
			continue
		}
		if v[i], err = num(name); err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
	}

	pop, err := strconv.Atoi(get("popularity"))
	if err != nil {
		return nil, fmt.Errorf("column popularity: %w", err)
	}

	return &Entry{
		Identity: auricle.SongIdentity{
			TrackID: get("track_id"),
			Title:   get("track_name"),
			Artist:  get("artists"),
			Album:   get("album_name"),
			Genre:   get("track_genre"),
		},
		Vector:     v,
		Popularity: pop,
		HasTruth:   true,
	}, nil
}

func parseBoolish(s string) float64 {
	switch strings.ToLower(s) {
	case "true", "1", "1.0":
		return 1
	default:
		return 0
	}
}

// insertLocked files an entry under both keys. On a composite-key collision
// the entry with the higher popularity wins; ties keep the first-seen entry.
// Appends after load never displace an existing entry.
func (s *Store) insertLocked(e *Entry, fromDataset bool) {
	e.seq = s.next
	s.next++

	if id := e.Identity.TrackID; id != "" {
		if _, exists := s.byID[id]; !exists {
			s.byID[id] = e
		}
	}

	key := e.Identity.Key()
	prev, exists := s.byKey[key]
	switch {
	case !exists:
		s.byKey[key] = e
	case fromDataset && e.Popularity > prev.Popularity:
		s.byKey[key] = e
	}
}

// Add appends a song discovered through a catalog fetch, so later lookups hit
// locally instead of going back out. The entry carries no ground truth.
// First-writer-wins: a concurrent identical-key add keeps the existing entry.
func (s *Store) Add(rf auricle.ResolvedFeatures, popularity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id := rf.Identity.TrackID; id != "" {
		if _, exists := s.byID[id]; exists {
			return
		}
	}
	s.insertLocked(&Entry{
		Identity:   rf.Identity,
		Vector:     rf.Vector,
		Popularity: popularity,
	}, false)
}

// LookupByID returns the features for an exact catalog ID match. All fields
// carry exact provenance.
func (s *Store) LookupByID(id string) (auricle.ResolvedFeatures, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byID[id]
	if !ok {
		return auricle.ResolvedFeatures{}, false
	}
	return e.resolved(), true
}

// LookupByTitleArtist returns the features for a normalized composite-key
// match.
func (s *Store) LookupByTitleArtist(title, artist string) (auricle.ResolvedFeatures, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byKey[auricle.NormalizeKey(title, artist)]
	if !ok {
		return auricle.ResolvedFeatures{}, false
	}
	return e.resolved(), true
}

// GroundTruthFor returns the dataset label for the identity, when the song
// was loaded from the reference dataset. Catalog-added songs have none.
func (s *Store) GroundTruthFor(identity auricle.SongIdentity) (auricle.GroundTruth, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e *Entry
	if identity.TrackID != "" {
		e = s.byID[identity.TrackID]
	}
	if e == nil {
		e = s.byKey[identity.Key()]
	}
	if e == nil || !e.HasTruth {
		return auricle.GroundTruth{}, false
	}
	return auricle.GroundTruth{
		Hit:        e.Popularity >= s.hitThreshold,
		Popularity: e.Popularity,
	}, true
}

// Contains reports whether a normalized (title, artist) pair is known.
func (s *Store) Contains(title, artist string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byKey[auricle.NormalizeKey(title, artist)]
	return ok
}

// Search returns up to limit entries whose title or artist contains the query
// (case-insensitive), ordered by popularity descending.
func (s *Store) Search(query string, limit int) []Entry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	s.mu.RLock()
	var out []Entry
	for _, e := range s.byKey {
		if strings.Contains(strings.ToLower(e.Identity.Title), q) ||
			strings.Contains(strings.ToLower(e.Identity.Artist), q) {
			out = append(out, *e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Popularity != out[j].Popularity {
			return out[i].Popularity > out[j].Popularity
		}
		return out[i].seq < out[j].seq
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Len reports how many distinct composite keys are indexed.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

func (e *Entry) resolved() auricle.ResolvedFeatures {
	rf := auricle.ResolvedFeatures{
		Identity: e.Identity,
		Vector:   e.Vector,
	}
	for i := range rf.Provenance {
		rf.Provenance[i] = auricle.ProvenanceExact
	}
	return rf
}

// ProvideStore builds the store and loads the reference dataset. A missing or
// malformed dataset is logged and the process continues degraded.
func ProvideStore(cfg config.Config, logger *zap.SugaredLogger) *Store {
	s := NewStore(logger, cfg.HitThreshold)
	if err := s.LoadOnce(cfg.DatasetPath); err != nil {
		logger.Errorw("Reference dataset unavailable, serving without ground truth", "error", err)
	}
	return s
}

var Options = ProvideStore
