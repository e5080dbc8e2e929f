package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/chartlab/auricle/auricle"
	"go.uber.org/zap"
)

// Store persists Song, Prediction and AuditLog rows. Songs are upserted by
// catalog identity; predictions and audit entries are insert-only.
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// NewStore builds a Store over an open database handle.
func NewStore(db *sql.DB, log *zap.SugaredLogger) *Store {
	return &Store{db: db, log: log}
}

// UpsertSong writes the song row and returns its row ID. Songs with a catalog
// track ID conflict on it and update in place; songs without one always
// insert a fresh row.
func (s *Store) UpsertSong(ctx context.Context, identity auricle.SongIdentity, v auricle.FeatureVector, popularity *int) (int64, error) {
	var id int64
	var err error

	if identity.TrackID != "" {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO songs (
				track_id, track_name, artists, album_name, track_genre, popularity,
				duration_ms, danceability, energy, valence, acousticness,
				instrumentalness, explicit, loudness, tempo, mode, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,NOW())
			ON CONFLICT (track_id) DO UPDATE SET
				track_name = EXCLUDED.track_name,
				artists = EXCLUDED.artists,
				album_name = EXCLUDED.album_name,
				popularity = COALESCE(EXCLUDED.popularity, songs.popularity),
				duration_ms = EXCLUDED.duration_ms,
				danceability = EXCLUDED.danceability,
				energy = EXCLUDED.energy,
				valence = EXCLUDED.valence,
				acousticness = EXCLUDED.acousticness,
				instrumentalness = EXCLUDED.instrumentalness,
				explicit = EXCLUDED.explicit,
				loudness = EXCLUDED.loudness,
				tempo = EXCLUDED.tempo,
				mode = EXCLUDED.mode
			RETURNING id`,
			identity.TrackID, identity.Title, identity.Artist, identity.Album,
			identity.Genre, popularity,
			int64(v[auricle.FeatDurationMs]), v[auricle.FeatDanceability],
			v[auricle.FeatEnergy], v[auricle.FeatValence], v[auricle.FeatAcousticness],
			v[auricle.FeatInstrumentalness], v[auricle.FeatExplicit] == 1,
			v[auricle.FeatLoudness], v[auricle.FeatTempo], int(v[auricle.FeatMode]),
		).Scan(&id)
	} else {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO songs (
				track_name, artists, album_name, track_genre, popularity,
				duration_ms, danceability, energy, valence, acousticness,
				instrumentalness, explicit, loudness, tempo, mode, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,NOW())
			RETURNING id`,
			identity.Title, identity.Artist, identity.Album, identity.Genre, popularity,
			int64(v[auricle.FeatDurationMs]), v[auricle.FeatDanceability],
			v[auricle.FeatEnergy], v[auricle.FeatValence], v[auricle.FeatAcousticness],
			v[auricle.FeatInstrumentalness], v[auricle.FeatExplicit] == 1,
			v[auricle.FeatLoudness], v[auricle.FeatTempo], int(v[auricle.FeatMode]),
		).Scan(&id)
	}

	if err != nil {
		return 0, fmt.Errorf("upsert song: %w", err)
	}
	return id, nil
}

// InsertPrediction appends one prediction row. Rows are never updated.
func (s *Store) InsertPrediction(ctx context.Context, songID int64, rec auricle.PredictionRecord) error {
	provenance, err := json.Marshal(rec.Provenance)
	if err != nil {
		return fmt.Errorf("marshal provenance: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO predictions (
			id, song_id, prediction, confidence, model_prediction,
			model_confidence, adjusted_by_dataset, dataset_label,
			dataset_popularity, resolution_path, provenance,
			model_version, reconciler_version, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		rec.ID, songID, string(rec.FinalLabel), rec.FinalConfidence,
		string(rec.RawLabel), rec.RawConfidence, rec.Adjusted,
		labelOrNil(rec.GroundTruthLabel), rec.GroundTruthPopularity,
		string(rec.Path), provenance,
		rec.ModelVersion, rec.ReconcilerVersion, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// InsertAuditLog appends one audit row. The prediction reference is null for
// failed requests.
func (s *Store) InsertAuditLog(ctx context.Context, entry auricle.AuditEntry) error {
	predictionID := sql.NullString{String: entry.PredictionID, Valid: entry.PredictionID != ""}
	failureKind := sql.NullString{String: entry.FailureKind, Valid: entry.FailureKind != ""}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prediction_audit_log (
			id, prediction_id, request_payload, response_payload,
			failure_kind, created_at
		) VALUES ($1,$2,$3,$4,$5,$6)`,
		entry.ID, predictionID, entry.RequestPayload, entry.ResponsePayload,
		failureKind, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func labelOrNil(l *auricle.Label) *string {
	if l == nil {
		return nil
	}
	s := string(*l)
	return &s
}

// ProvideStore provides the persistence layer over the postgres client.
func ProvideStore(db *sql.DB, logger *zap.SugaredLogger) *Store {
	return NewStore(db, logger)
}

var StoreOptions = ProvideStore
