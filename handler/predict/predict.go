package predict

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/chartlab/auricle/auricle"
	"github.com/chartlab/auricle/reconcile"
	"github.com/chartlab/auricle/resolver"
	"go.uber.org/zap"
)

const msPerMinute = 60000

// PredictHandler is an http.Handler for the prediction endpoint.
type PredictHandler struct {
	log        *zap.SugaredLogger
	reconciler *reconcile.Reconciler
}

func (*PredictHandler) Pattern() string {
	return "/predict"
}

// NewPredictHandler builds a new PredictHandler.
func NewPredictHandler(log *zap.SugaredLogger, reconciler *reconcile.Reconciler) *PredictHandler {
	return &PredictHandler{
		log:        log,
		reconciler: reconciler,
	}
}

// PredictRequest accepts all three request shapes: a catalog track reference,
// a title/artist pair, or manual features. Shape precedence follows field
// presence: track reference, then title+artist, then manual.
type PredictRequest struct {
	TrackID    string `json:"track_id"`
	URL        string `json:"url"`
	TrackURL   string `json:"track_url"`
	SpotifyURL string `json:"spotify_url"`

	Title  string `json:"title"`
	Artist string `json:"artist"`

	DurationMs      *float64 `json:"duration_ms"`
	DurationMinutes *float64 `json:"duration_minutes"`
	Danceability    *float64 `json:"danceability"`
	Energy          *float64 `json:"energy"`
	Mood            *float64 `json:"mood"`
	Acoustic        *bool    `json:"is_acoustic"`
	Instrumental    *bool    `json:"is_instrumental"`
	Explicit        *bool    `json:"is_explicit"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Predict hit or flop for a song
// @Summary Predict hit or flop
// @Description Predict whether a song will be a hit from a catalog track reference, a title/artist pair, or manual audio features
// @Accept json
// @Produce json
// @Param request body PredictRequest true "Prediction request"
// @Success 200 {object} reconcile.Response
// @Router /predict [post]
func (h *PredictHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required", "")
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body", "")
		return
	}
	var req PredictRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON format", "")
		return
	}

	shape, ok := req.shape()
	if !ok {
		writeError(w, http.StatusBadRequest,
			"provide a track_id/url, a title and artist, or manual features (duration, danceability, energy, mood)",
			string(auricle.KindIncompleteInput))
		return
	}

	resp, err := h.reconciler.Predict(r.Context(), shape, raw)
	if err != nil {
		status, kind := statusFor(err)
		writeError(w, status, err.Error(), kind)
		return
	}

	json.NewEncoder(w).Encode(resp)
}

// shape picks the resolution request in the documented precedence order.
func (req *PredictRequest) shape() (resolver.Request, bool) {
	trackInput := firstNonEmpty(req.TrackID, req.URL, req.TrackURL, req.SpotifyURL)
	if trackInput != "" {
		return resolver.ByTrack{Input: trackInput}, true
	}

	hasManual := req.DurationMs != nil || req.DurationMinutes != nil ||
		req.Danceability != nil || req.Energy != nil || req.Mood != nil

	if req.Title != "" && req.Artist != "" && !hasManual {
		return resolver.ByTitleArtist{Title: req.Title, Artist: req.Artist}, true
	}

	if hasManual {
		duration := req.DurationMs
		if duration == nil && req.DurationMinutes != nil {
			ms := *req.DurationMinutes * msPerMinute
			duration = &ms
		}
		return resolver.Manual{
			Title:        req.Title,
			Artist:       req.Artist,
			DurationMs:   duration,
			Danceability: req.Danceability,
			Energy:       req.Energy,
			Mood:         req.Mood,
			Acoustic:     req.Acoustic,
			Instrumental: req.Instrumental,
			Explicit:     req.Explicit,
		}, true
	}

	return nil, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func statusFor(err error) (int, string) {
	var de *auricle.Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError, ""
	}
	switch de.Kind {
	case auricle.KindNotFound:
		return http.StatusNotFound, string(de.Kind)
	case auricle.KindIncompleteInput:
		return http.StatusBadRequest, string(de.Kind)
	case auricle.KindUpstreamUnavailable:
		return http.StatusBadGateway, string(de.Kind)
	default:
		return http.StatusInternalServerError, string(de.Kind)
	}
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg, Kind: kind})
}
