package predict

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chartlab/auricle/auricle"
	"github.com/chartlab/auricle/catalog"
	"github.com/chartlab/auricle/config"
	"github.com/chartlab/auricle/featurestore"
	"github.com/chartlab/auricle/inference"
	"github.com/chartlab/auricle/logger"
	"github.com/chartlab/auricle/reconcile"
	"github.com/chartlab/auricle/resolver"
)

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

const testCSV = `track_id,track_name,artists,album_name,popularity,duration_ms,danceability,energy,valence,acousticness,instrumentalness,explicit,loudness,tempo,mode,track_genre
5SuOikwiRyPMVoIQDJUgSV,Comedy,Gen Hoshino,Comedy,73,230666,0.676,0.461,0.715,0.0322,0.000001,False,-6.746,87.917,0,acoustic
`

type nopStore struct{}

func (nopStore) UpsertSong(context.Context, auricle.SongIdentity, auricle.FeatureVector, *int) (int64, error) {
	return 1, nil
}

func (nopStore) InsertPrediction(context.Context, int64, auricle.PredictionRecord) error {
	return nil
}

func (nopStore) InsertAuditLog(context.Context, auricle.AuditEntry) error {
	return nil
}

type offlineCatalog struct{}

func (offlineCatalog) Ready() bool { return false }

func (offlineCatalog) FetchByID(context.Context, string) (*catalog.RawTrack, error) {
	return nil, auricle.NewError(auricle.KindUpstreamUnavailable, "offline")
}

func (offlineCatalog) SearchByTitleArtist(context.Context, string, string) ([]catalog.RawTrack, error) {
	return nil, auricle.NewError(auricle.KindUpstreamUnavailable, "offline")
}

func newHandler(t *testing.T) *PredictHandler {
	t.Helper()
	log, _ := logger.NewTestLogger()

	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.json")
	if err := os.WriteFile(modelPath, []byte(testArtifact), 0o644); err != nil {
		t.Fatal(err)
	}
	datasetPath := filepath.Join(dir, "dataset.csv")
	if err := os.WriteFile(datasetPath, []byte(testCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	engine := inference.NewEngine(log, modelPath)
	if err := engine.Load(); err != nil {
		t.Fatal(err)
	}
	features := featurestore.NewStore(log, 50)
	if err := features.LoadOnce(datasetPath); err != nil {
		t.Fatal(err)
	}

	coef := config.DefaultCoefficients()
	res := resolver.New(log, features, offlineCatalog{}, coef.Formula)
	rec := reconcile.New(log, res, engine, features, nopStore{}, coef.Blend)
	return NewPredictHandler(log, rec)
}

func doPredict(t *testing.T, h *PredictHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestManualPrediction(t *testing.T) {
	h := newHandler(t)

	rr := doPredict(t, h, `{
		"title": "Brand New",
		"artist": "Nobody",
		"duration_ms": 230666,
		"danceability": 0.676,
		"energy": 0.461,
		"mood": 0.715
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp reconcile.Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Prediction != auricle.LabelHit {
		t.Errorf("prediction = %v, want HIT", resp.Prediction)
	}
	if resp.Adjusted {
		t.Error("unknown song must not report adjusted_by_dataset")
	}
	if resp.PredictionID == "" {
		t.Error("response must carry a prediction id")
	}
}

func TestDatasetSongIsAdjusted(t *testing.T) {
	h := newHandler(t)

	rr := doPredict(t, h, `{
		"title": "Comedy",
		"artist": "Gen Hoshino",
		"duration_minutes": 3.84443,
		"danceability": 0.676,
		"energy": 0.461,
		"mood": 0.715
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp reconcile.Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Adjusted || !resp.InDataset {
		t.Error("dataset song must be adjusted")
	}
	if resp.DatasetPopularity == nil || *resp.DatasetPopularity != 73 {
		t.Error("dataset popularity missing")
	}
}

func TestMissingMoodIsBadRequest(t *testing.T) {
	h := newHandler(t)

	rr := doPredict(t, h, `{"duration_ms": 230666, "danceability": 0.676, "energy": 0.461}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}

	var resp struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Kind != string(auricle.KindIncompleteInput) {
		t.Errorf("kind = %q, want incomplete_input", resp.Kind)
	}
	if !strings.Contains(resp.Error, "mood") {
		t.Errorf("error must name the missing field, got %q", resp.Error)
	}
}

func TestEmptyBodyIsBadRequest(t *testing.T) {
	h := newHandler(t)

	rr := doPredict(t, h, `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestInvalidJSONIsBadRequest(t *testing.T) {
	h := newHandler(t)

	rr := doPredict(t, h, `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestOfflineCatalogIsBadGateway(t *testing.T) {
	h := newHandler(t)

	rr := doPredict(t, h, `{"track_id": "4uLU6hMCjMI75M1A2tKUQC"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
}

func TestGetIsMethodNotAllowed(t *testing.T) {
	h := newHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/predict", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
}

func TestShapePrecedence(t *testing.T) {
	duration := 230666.0
	tests := []struct {
		name string
		req  PredictRequest
		want string
	}{
		{"track id wins", PredictRequest{TrackID: "abc", Title: "x", Artist: "y"}, "track"},
		{"url alias", PredictRequest{SpotifyURL: "https://open.spotify.com/track/abc"}, "track"},
		{"title and artist", PredictRequest{Title: "x", Artist: "y"}, "title-artist"},
		{"manual fields win over bare title", PredictRequest{Title: "x", DurationMs: &duration}, "manual"},
		{"manual with title and artist", PredictRequest{Title: "x", Artist: "y", DurationMs: &duration}, "manual"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			shape, ok := tc.req.shape()
			if !ok {
				t.Fatal("expected a shape")
			}
			var got string
			switch shape.(type) {
			case resolver.ByTrack:
				got = "track"
			case resolver.ByTitleArtist:
				got = "title-artist"
			case resolver.Manual:
				got = "manual"
			}
			if got != tc.want {
				t.Errorf("shape = %s, want %s", got, tc.want)
			}
		})
	}

	if _, ok := (&PredictRequest{Title: "x"}).shape(); ok {
		t.Error("bare title must not produce a shape")
	}
}
