package search

import (
	"encoding/json"
	"net/http"

	"github.com/chartlab/auricle/featurestore"
	"go.uber.org/zap"
)

const datasetSearchLimit = 20

// DatasetSearchHandler searches the in-memory reference dataset directly.
// Every result has full audio features available.
type DatasetSearchHandler struct {
	log   *zap.SugaredLogger
	store *featurestore.Store
}

func (*DatasetSearchHandler) Pattern() string {
	return "/dataset/search"
}

// NewDatasetSearchHandler builds a new DatasetSearchHandler.
func NewDatasetSearchHandler(log *zap.SugaredLogger, store *featurestore.Store) *DatasetSearchHandler {
	return &DatasetSearchHandler{
		log:   log,
		store: store,
	}
}

type DatasetTrack struct {
	ID         string `json:"id,omitempty"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	Genre      string `json:"genre,omitempty"`
	Popularity int    `json:"popularity"`
	InDataset  bool   `json:"in_dataset"`
}

type DatasetResponse struct {
	Results []DatasetTrack `json:"results"`
	Query   string         `json:"query"`
	Source  string         `json:"source"`
}

// Search the reference dataset
// @Summary Search the reference dataset
// @Description Search songs in the reference dataset by title or artist
// @Produce json
// @Success 200 {object} DatasetResponse
// @Router /dataset/search [get]
// @Param q query string true "Search query"
func (h *DatasetSearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	query := r.URL.Query().Get("q")
	if query == "" && r.Body != nil {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			query = req.Query
		}
	}
	if query == "" {
		http.Error(w, `{"error":"missing search query"}`, http.StatusBadRequest)
		return
	}

	entries := h.store.Search(query, datasetSearchLimit)

	resp := DatasetResponse{Query: query, Source: "dataset", Results: make([]DatasetTrack, 0, len(entries))}
	for _, e := range entries {
		resp.Results = append(resp.Results, DatasetTrack{
			ID:         e.Identity.TrackID,
			Title:      e.Identity.Title,
			Artist:     e.Identity.Artist,
			Album:      e.Identity.Album,
			Genre:      e.Identity.Genre,
			Popularity: e.Popularity,
			InDataset:  true,
		})
	}

	json.NewEncoder(w).Encode(resp)
}
