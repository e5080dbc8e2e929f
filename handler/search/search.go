package search

import (
	"encoding/json"
	"net/http"

	"golang.org/x/exp/slices"

	"github.com/chartlab/auricle/catalog"
	"github.com/chartlab/auricle/featurestore"
	"go.uber.org/zap"
)

// SearchHandler proxies free-text search to the catalog, flagging which
// results the reference dataset knows about.
type SearchHandler struct {
	log     *zap.SugaredLogger
	catalog catalog.Client
	store   *featurestore.Store
}

func (*SearchHandler) Pattern() string {
	return "/spotify/search"
}

// NewSearchHandler builds a new SearchHandler.
func NewSearchHandler(log *zap.SugaredLogger, cat catalog.Client, store *featurestore.Store) *SearchHandler {
	return &SearchHandler{
		log:     log,
		catalog: cat,
		store:   store,
	}
}

type Request struct {
	Query string `json:"query"`
}

type Response struct {
	Results []Track `json:"results"`
	Query   string  `json:"query"`
}

type Track struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	AlbumImage string `json:"album_image,omitempty"`
	Popularity int    `json:"popularity"`
	Explicit   bool   `json:"explicit"`
	InDataset  bool   `json:"in_dataset"`
}

// Search the catalog
// @Summary Search the catalog
// @Description Search for tracks, dataset-known results first
// @Accept json
// @Produce json
// @Success 200 {object} Response
// @Router /spotify/search [post]
// @Param query query string true "Search query"
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	candidates, err := h.catalog.SearchByTitleArtist(r.Context(), query, "")
	if err != nil {
		h.log.Errorw("Catalog search failed", "query", query, "error", err)
		http.Error(w, `{"error":"search unavailable"}`, http.StatusBadGateway)
		return
	}

	resp := Response{Query: query, Results: make([]Track, 0, len(candidates))}
	for _, c := range candidates {
		resp.Results = append(resp.Results, Track{
			ID:         c.ID,
			Title:      c.Title,
			Artist:     c.Artist,
			Album:      c.Album,
			AlbumImage: c.AlbumImage,
			Popularity: c.Popularity,
			Explicit:   c.Explicit,
			InDataset:  h.store.Contains(c.Title, c.Artist),
		})
	}

	// Dataset-known tracks first, then by popularity.
	slices.SortStableFunc(resp.Results, func(a, b Track) int {
		if a.InDataset != b.InDataset {
			if a.InDataset {
				return -1
			}
			return 1
		}
		return b.Popularity - a.Popularity
	})

	json.NewEncoder(w).Encode(resp)
}
