package reconcile

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/chartlab/auricle/auricle"
	"github.com/chartlab/auricle/config"
	"github.com/chartlab/auricle/featurestore"
	"github.com/chartlab/auricle/inference"
	"github.com/chartlab/auricle/resolver"
	"go.uber.org/zap"
)

// Store is the durable sink for songs, predictions and audit entries. Writes
// are assumed durable once acknowledged.
type Store interface {
	UpsertSong(ctx context.Context, identity auricle.SongIdentity, vector auricle.FeatureVector, popularity *int) (int64, error)
	InsertPrediction(ctx context.Context, songID int64, rec auricle.PredictionRecord) error
	InsertAuditLog(ctx context.Context, entry auricle.AuditEntry) error
}

// Archiver mirrors audit entries to a secondary document store.
type Archiver interface {
	Archive(ctx context.Context, entry auricle.AuditEntry) error
}

// Publisher gets each completed prediction for live observers.
type Publisher interface {
	Publish(rec auricle.PredictionRecord, identity auricle.SongIdentity)
}

// stage tracks the per-request state machine. Terminal states are
// stagePersisted and stageFailed.
type stage string

const (
	stageResolving   stage = "resolving"
	stageScoring     stage = "scoring"
	stageReconciling stage = "reconciling"
	stagePersisted   stage = "persisted"
	stageFailed      stage = "failed"
)

// Response is the full success payload for one prediction request.
type Response struct {
	Prediction        auricle.Label          `json:"prediction"`
	Confidence        float64                `json:"confidence"`
	ModelPrediction   auricle.Label          `json:"model_prediction"`
	ModelConfidence   float64                `json:"model_confidence"`
	Adjusted          bool                   `json:"adjusted_by_dataset"`
	InDataset         bool                   `json:"in_dataset"`
	DatasetLabel      *auricle.Label         `json:"dataset_label,omitempty"`
	DatasetPopularity *int                   `json:"dataset_popularity,omitempty"`
	Song              auricle.SongIdentity   `json:"song"`
	Features          map[string]float64     `json:"features"`
	Provenance        map[string]string      `json:"provenance"`
	ResolutionPath    auricle.ResolutionPath `json:"resolution_path"`
	PredictionID      string                 `json:"prediction_id"`
	SongID            int64                  `json:"song_id"`
}

// Reconciler runs the Resolve -> Score -> Reconcile -> Persist pipeline for
// one request, adjusting raw model output with known ground truth and
// emitting the immutable audit record either way.
type Reconciler struct {
	log      *zap.SugaredLogger
	resolver *resolver.Resolver
	engine   *inference.Engine
	features *featurestore.Store
	store    Store
	archive  Archiver
	feed     Publisher
	blend    config.Blend
}

// New builds a reconciler. archive and feed may be nil.
func New(
	log *zap.SugaredLogger,
	res *resolver.Resolver,
	engine *inference.Engine,
	features *featurestore.Store,
	store Store,
	blend config.Blend,
) *Reconciler {
	return &Reconciler{
		log:      log,
		resolver: res,
		engine:   engine,
		features: features,
		store:    store,
		blend:    blend,
	}
}

// WithArchive attaches a secondary audit sink.
func (r *Reconciler) WithArchive(a Archiver) *Reconciler {
	r.archive = a
	return r
}

// WithFeed attaches a live prediction publisher.
func (r *Reconciler) WithFeed(p Publisher) *Reconciler {
	r.feed = p
	return r
}

// Predict drives the full pipeline. Any stage failure writes an AuditEntry
// capturing the attempted input and the failure kind, creates no
// PredictionRecord, and returns the error for the request boundary to map.
func (r *Reconciler) Predict(ctx context.Context, req resolver.Request, rawRequest []byte) (*Response, error) {
	st := stageResolving
	rf, path, err := r.resolver.Resolve(ctx, req)
	if err != nil {
		return nil, r.fail(ctx, st, rawRequest, err)
	}

	st = stageScoring
	rawLabel, rawConf, err := r.engine.Score(rf.Vector)
	if err != nil {
		return nil, r.fail(ctx, st, rawRequest, err)
	}

	st = stageReconciling
	rec := auricle.PredictionRecord{
		ID:                uuid.New().String(),
		RawLabel:          rawLabel,
		RawConfidence:     rawConf,
		FinalLabel:        rawLabel,
		FinalConfidence:   rawConf,
		Provenance:        rf.ProvenanceSummary(),
		Path:              path,
		ModelVersion:      r.engine.Version(),
		ReconcilerVersion: r.blend.Version,
		CreatedAt:         time.Now().UTC(),
	}

	truth, hasTruth := r.features.GroundTruthFor(rf.Identity)
	var popularity *int
	if hasTruth {
		agree := truth.Label() == rawLabel
		label := truth.Label()
		pop := truth.Popularity

		rec.FinalLabel = label
		rec.FinalConfidence = blendConfidence(r.blend, rawConf, agree)
		rec.Adjusted = true
		rec.GroundTruthLabel = &label
		rec.GroundTruthPopularity = &pop
		popularity = &pop

		if !agree {
			r.log.Warnw("Model disagrees with dataset label",
				"model", rawLabel, "dataset", label,
				"raw_confidence", rawConf, "final_confidence", rec.FinalConfidence,
				"popularity", pop)
		}
	}

	songID, err := r.store.UpsertSong(ctx, rf.Identity, rf.Vector, popularity)
	if err != nil {
		return nil, r.fail(ctx, st, rawRequest, err)
	}
	if err := r.store.InsertPrediction(ctx, songID, rec); err != nil {
		return nil, r.fail(ctx, st, rawRequest, err)
	}

	resp := &Response{
		Prediction:        rec.FinalLabel,
		Confidence:        rec.FinalConfidence,
		ModelPrediction:   rec.RawLabel,
		ModelConfidence:   rec.RawConfidence,
		Adjusted:          rec.Adjusted,
		InDataset:         hasTruth,
		DatasetLabel:      rec.GroundTruthLabel,
		DatasetPopularity: rec.GroundTruthPopularity,
		Song:              rf.Identity,
		Features:          rf.Vector.Named(),
		Provenance:        rec.Provenance,
		ResolutionPath:    path,
		PredictionID:      rec.ID,
		SongID:            songID,
	}

	st = stagePersisted
	r.audit(ctx, auricle.AuditEntry{
		ID:              uuid.New().String(),
		PredictionID:    rec.ID,
		RequestPayload:  rawRequest,
		ResponsePayload: mustMarshal(resp),
		CreatedAt:       rec.CreatedAt,
	})

	if r.feed != nil {
		r.feed.Publish(rec, rf.Identity)
	}

	r.log.Infow("Prediction persisted",
		"stage", st, "prediction_id", rec.ID, "song_id", songID,
		"label", rec.FinalLabel, "confidence", rec.FinalConfidence,
		"adjusted", rec.Adjusted, "path", path)
	return resp, nil
}

// fail records the terminal Failed state: one AuditEntry, no
// PredictionRecord.
func (r *Reconciler) fail(ctx context.Context, at stage, rawRequest []byte, cause error) error {
	kind := auricle.KindOf(cause)
	if kind == "" {
		kind = "internal"
	}
	r.log.Errorw("Prediction failed", "stage", at, "state", stageFailed, "kind", kind, "error", cause)

	r.audit(ctx, auricle.AuditEntry{
		ID:              uuid.New().String(),
		RequestPayload:  rawRequest,
		ResponsePayload: mustMarshal(map[string]string{"error": cause.Error()}),
		FailureKind:     string(kind),
		CreatedAt:       time.Now().UTC(),
	})
	return cause
}

func (r *Reconciler) audit(ctx context.Context, entry auricle.AuditEntry) {
	if err := r.store.InsertAuditLog(ctx, entry); err != nil {
		r.log.Errorw("Failed to write audit entry", "audit_id", entry.ID, "error", err)
	}
	if r.archive != nil {
		if err := r.archive.Archive(ctx, entry); err != nil {
			r.log.Warnw("Failed to archive audit entry", "audit_id", entry.ID, "error", err)
		}
	}
}

// blendConfidence is the documented, versioned reconciliation blend. When the
// model agrees with ground truth, confidence moves part way toward the high
// anchor, never below the raw value. On disagreement it moves toward the low
// anchor, never above the raw value.
func blendConfidence(b config.Blend, raw float64, agree bool) float64 {
	var out float64
	switch {
	case agree && raw < b.AgreeAnchor:
		out = raw + b.AgreeWeight*(b.AgreeAnchor-raw)
	case !agree && raw > b.DisagreeAnchor:
		out = raw - b.DisagreeWeight*(raw-b.DisagreeAnchor)
	default:
		out = raw
	}
	return math.Round(out*100) / 100
}

func mustMarshal(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return []byte(`{}`)
	}
	return raw
}
