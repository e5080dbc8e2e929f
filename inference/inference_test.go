package inference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chartlab/auricle/auricle"
	"github.com/chartlab/auricle/logger"
)

// One tree splitting on valence at 0.5: low valence leans FLOP (80/20),
// high valence leans HIT (30/70).
const testArtifact = `{
  "name": "hit_song_forest",
  "version": "forest-test-1",
  "feature_order": ["duration_ms","danceability","energy","valence","acousticness","instrumentalness","explicit","loudness","tempo","mode"],
  "trees": [
    {
      "feature": [3, -2, -2],
      "threshold": [0.5, 0, 0],
      "children_left": [1, -1, -1],
      "children_right": [2, -1, -1],
      "value": [[110, 90], [80, 20], [30, 70]]
    }
  ]
}`

func writeArtifact(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	log, _ := logger.NewTestLogger()
	e := NewEngine(log, writeArtifact(t, testArtifact))
	if err := e.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return e
}

func TestScoreLabels(t *testing.T) {
	e := testEngine(t)

	var happy auricle.FeatureVector
	happy[auricle.FeatValence] = 0.9
	label, conf, err := e.Score(happy)
	if err != nil {
		t.Fatal(err)
	}
	if label != auricle.LabelHit {
		t.Errorf("label = %v, want HIT", label)
	}
	if conf != 70.0 {
		t.Errorf("confidence = %v, want 70.0", conf)
	}

	var sad auricle.FeatureVector
	sad[auricle.FeatValence] = 0.1
	label, conf, err = e.Score(sad)
	if err != nil {
		t.Fatal(err)
	}
	if label != auricle.LabelFlop {
		t.Errorf("label = %v, want FLOP", label)
	}
	if conf != 80.0 {
		t.Errorf("confidence = %v, want 80.0", conf)
	}
}

func TestScoreIsPure(t *testing.T) {
	e := testEngine(t)

	v := auricle.FeatureVector{230666, 0.676, 0.461, 0.715, 0.0322, 0.000001, 0, -6.746, 87.917, 0}
	firstLabel, firstConf, err := e.Score(v)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 100; i++ {
		label, conf, err := e.Score(v)
		if err != nil {
			t.Fatal(err)
		}
		if label != firstLabel || conf != firstConf {
			t.Fatalf("call %d: (%v, %v) != (%v, %v)", i, label, conf, firstLabel, firstConf)
		}
	}
}

func TestLoadMissingArtifact(t *testing.T) {
	log, _ := logger.NewTestLogger()
	e := NewEngine(log, filepath.Join(t.TempDir(), "missing.json"))

	err := e.Load()
	if err == nil {
		t.Fatal("expected error for missing artifact")
	}
	if !auricle.IsKind(err, auricle.KindArtifactUnavailable) {
		t.Errorf("kind = %v, want artifact_unavailable", auricle.KindOf(err))
	}

	// The failure is sticky; Score never retries the load.
	if _, _, err := e.Score(auricle.FeatureVector{}); err == nil {
		t.Error("Score must fail when the artifact never loaded")
	}
}

func TestLoadRejectsWrongFeatureOrder(t *testing.T) {
	bad := `{
	  "name": "bad",
	  "version": "v0",
	  "feature_order": ["tempo","danceability","energy","valence","acousticness","instrumentalness","explicit","loudness","duration_ms","mode"],
	  "trees": [{"feature":[-2],"threshold":[0],"children_left":[-1],"children_right":[-1],"value":[[1,1]]}]
	}`
	log, _ := logger.NewTestLogger()
	e := NewEngine(log, writeArtifact(t, bad))

	if err := e.Load(); !auricle.IsKind(err, auricle.KindArtifactUnavailable) {
		t.Errorf("expected artifact_unavailable for shuffled feature order, got %v", err)
	}
}

func TestConfidenceRounding(t *testing.T) {
	// Leaf 2/3 hit share: 66.666...% must round to 66.67.
	artifact := `{
	  "name": "round",
	  "version": "v0",
	  "feature_order": ["duration_ms","danceability","energy","valence","acousticness","instrumentalness","explicit","loudness","tempo","mode"],
	  "trees": [{"feature":[-2],"threshold":[0],"children_left":[-1],"children_right":[-1],"value":[[1,2]]}]
	}`
	log, _ := logger.NewTestLogger()
	e := NewEngine(log, writeArtifact(t, artifact))
	if err := e.Load(); err != nil {
		t.Fatal(err)
	}

	_, conf, err := e.Score(auricle.FeatureVector{})
	if err != nil {
		t.Fatal(err)
	}
	if conf != 66.67 {
		t.Errorf("confidence = %v, want 66.67", conf)
	}
}
