package featurestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chartlab/auricle/auricle"
	"github.com/chartlab/auricle/logger"
)

const testCSV = `track_id,track_name,artists,album_name,popularity,duration_ms,danceability,energy,valence,acousticness,instrumentalness,explicit,loudness,tempo,mode,track_genre
5SuOikwiRyPMVoIQDJUgSV,Comedy,Gen Hoshino,Comedy,73,230666,0.676,0.461,0.715,0.0322,0.000001,False,-6.746,87.917,0,acoustic
4qPNDBW1i3p13qLCt0Ki3A,Ghost,Justin Bieber,Justice,40,153190,0.677,0.741,0.441,0.328,0,False,-5.569,153.96,1,pop
1dup1kO1Q6rrr1MBCrGgVZ,Ghost,Justin Bieber,Justice Deluxe,85,153190,0.677,0.741,0.441,0.328,0,False,-5.569,153.96,1,pop
`

func writeDataset(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reference_tracks.csv")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadedStore(t *testing.T) *Store {
	t.Helper()
	log, _ := logger.NewTestLogger()
	s := NewStore(log, 50)
	if err := s.LoadOnce(writeDataset(t, testCSV)); err != nil {
		t.Fatalf("LoadOnce: %v", err)
	}
	return s
}

func TestLookupByID(t *testing.T) {
	s := loadedStore(t)

	rf, ok := s.LookupByID("5SuOikwiRyPMVoIQDJUgSV")
	if !ok {
		t.Fatal("expected hit for known track ID")
	}
	if rf.Identity.Title != "Comedy" {
		t.Errorf("title = %q, want Comedy", rf.Identity.Title)
	}
	if rf.Vector[auricle.FeatDurationMs] != 230666 {
		t.Errorf("duration = %v, want 230666", rf.Vector[auricle.FeatDurationMs])
	}
	for i, p := range rf.Provenance {
		if p != auricle.ProvenanceExact {
			t.Errorf("provenance[%d] = %q, want exact", i, p)
		}
	}

	if _, ok := s.LookupByID("nope"); ok {
		t.Error("expected miss for unknown track ID")
	}
}

func TestLookupByTitleArtistNormalizes(t *testing.T) {
	s := loadedStore(t)

	rf, ok := s.LookupByTitleArtist("  comedy ", "GEN HOSHINO")
	if !ok {
		t.Fatal("expected normalized lookup to hit")
	}
	if rf.Identity.TrackID != "5SuOikwiRyPMVoIQDJUgSV" {
		t.Errorf("track id = %q", rf.Identity.TrackID)
	}
}

func TestCollisionKeepsHighestPopularity(t *testing.T) {
	s := loadedStore(t)

	// Two "Ghost by Justin Bieber" rows; popularity 85 must win over 40.
	rf, ok := s.LookupByTitleArtist("Ghost", "Justin Bieber")
	if !ok {
		t.Fatal("expected hit")
	}
	if rf.Identity.TrackID != "1dup1kO1Q6rrr1MBCrGgVZ" {
		t.Errorf("collision resolved to %q, want the higher-popularity entry", rf.Identity.TrackID)
	}
}

func TestGroundTruth(t *testing.T) {
	s := loadedStore(t)

	truth, ok := s.GroundTruthFor(auricle.SongIdentity{Title: "Comedy", Artist: "Gen Hoshino"})
	if !ok {
		t.Fatal("expected ground truth for dataset song")
	}
	if !truth.Hit || truth.Popularity != 73 {
		t.Errorf("truth = %+v, want hit with popularity 73", truth)
	}

	truth, ok = s.GroundTruthFor(auricle.SongIdentity{TrackID: "4qPNDBW1i3p13qLCt0Ki3A"})
	if !ok {
		t.Fatal("expected ground truth by track ID")
	}
	if truth.Hit {
		t.Error("popularity 40 should be below the hit threshold")
	}

	if _, ok := s.GroundTruthFor(auricle.SongIdentity{Title: "Unknown", Artist: "Nobody"}); ok {
		t.Error("expected no ground truth for unknown song")
	}
}

func TestAddHasNoGroundTruth(t *testing.T) {
	s := loadedStore(t)

	rf := auricle.ResolvedFeatures{
		Identity: auricle.SongIdentity{TrackID: "new123", Title: "New Song", Artist: "Somebody"},
	}
	s.Add(rf, 90)

	if _, ok := s.LookupByID("new123"); !ok {
		t.Fatal("expected added song to be indexed")
	}
	if _, ok := s.GroundTruthFor(rf.Identity); ok {
		t.Error("catalog-added song must not carry ground truth")
	}
}

func TestAddFirstWriterWins(t *testing.T) {
	s := loadedStore(t)

	first := auricle.ResolvedFeatures{
		Identity: auricle.SongIdentity{TrackID: "dup1", Title: "Dup", Artist: "A"},
		Vector:   auricle.FeatureVector{1000},
	}
	second := auricle.ResolvedFeatures{
		Identity: auricle.SongIdentity{TrackID: "dup1", Title: "Dup", Artist: "A"},
		Vector:   auricle.FeatureVector{2000},
	}
	s.Add(first, 10)
	s.Add(second, 99)

	rf, _ := s.LookupByID("dup1")
	if rf.Vector[auricle.FeatDurationMs] != 1000 {
		t.Error("second add for the same key must not displace the first")
	}
}

func TestLoadOnceIsOnce(t *testing.T) {
	log, _ := logger.NewTestLogger()
	s := NewStore(log, 50)
	path := writeDataset(t, testCSV)
	if err := s.LoadOnce(path); err != nil {
		t.Fatal(err)
	}
	n := s.Len()

	// A second call must be a no-op even with a different source.
	if err := s.LoadOnce(filepath.Join(t.TempDir(), "missing.csv")); err != nil {
		t.Fatalf("second LoadOnce returned %v", err)
	}
	if s.Len() != n {
		t.Error("second LoadOnce changed the index")
	}
}

func TestLoadMissingFileDegrades(t *testing.T) {
	log, _ := logger.NewTestLogger()
	s := NewStore(log, 50)

	if err := s.LoadOnce(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("expected error for missing dataset")
	}
	// The store stays usable, just empty.
	if s.Len() != 0 {
		t.Error("failed load must leave the store empty")
	}
	if _, ok := s.LookupByTitleArtist("Comedy", "Gen Hoshino"); ok {
		t.Error("empty store must miss")
	}
}

func TestSearchOrdersByPopularity(t *testing.T) {
	s := loadedStore(t)

	results := s.Search("ghost", 10)
	if len(results) == 0 {
		t.Fatal("expected results for ghost")
	}
	for i := 1; i < len(results); i++ {
		if results[i].Popularity > results[i-1].Popularity {
			t.Error("results not ordered by popularity descending")
		}
	}
}
