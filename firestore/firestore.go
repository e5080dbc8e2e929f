package firestore

import (
	"context"
	"encoding/json"
	"time"

	fs "cloud.google.com/go/firestore"
	"github.com/chartlab/auricle/auricle"
	"github.com/chartlab/auricle/config"
	"go.uber.org/zap"
)

const auditCollection = "prediction_audit"

// AuditDoc is the document form of an audit entry. Payloads are stored as
// decoded JSON so they stay queryable in the console.
type AuditDoc struct {
	PredictionID string         `firestore:"prediction_id,omitempty"`
	Request      map[string]any `firestore:"request"`
	Response     map[string]any `firestore:"response"`
	FailureKind  string         `firestore:"failure_kind,omitempty"`
	CreatedAt    time.Time      `firestore:"created_at"`
}

// Archive mirrors audit entries into Firestore for offline debugging.
type Archive struct {
	client *fs.Client
	log    *zap.SugaredLogger
}

// Archive writes one audit entry, keyed by its ID.
func (a *Archive) Archive(ctx context.Context, entry auricle.AuditEntry) error {
	doc := AuditDoc{
		PredictionID: entry.PredictionID,
		Request:      decodeLoose(entry.RequestPayload),
		Response:     decodeLoose(entry.ResponsePayload),
		FailureKind:  entry.FailureKind,
		CreatedAt:    entry.CreatedAt,
	}
	_, err := a.client.Collection(auditCollection).Doc(entry.ID).Set(ctx, doc)
	return err
}

func decodeLoose(raw []byte) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"raw": string(raw)}
	}
	return m
}

// ProvideArchive provides the Firestore audit archive, or nil when no project
// is configured. The archive is best-effort; the relational audit log remains
// the source of record.
func ProvideArchive(cfg config.Config, logger *zap.SugaredLogger) *Archive {
	if cfg.FirestoreProject == "" {
		return nil
	}
	client, err := fs.NewClient(context.Background(), cfg.FirestoreProject)
	if err != nil {
		logger.Errorw("Failed to create Firestore client, audit archive disabled", "error", err)
		return nil
	}
	return &Archive{client: client, log: logger}
}

var Options = ProvideArchive
