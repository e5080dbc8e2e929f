package health

import (
	"encoding/json"
	"net/http"

	"github.com/chartlab/auricle/catalog"
	"github.com/chartlab/auricle/featurestore"
	"github.com/chartlab/auricle/inference"
	"go.uber.org/zap"
)

// HealthHandler reports readiness of the server and its collaborators.
type HealthHandler struct {
	log     *zap.SugaredLogger
	store   *featurestore.Store
	engine  *inference.Engine
	catalog catalog.Client
}

func (*HealthHandler) Pattern() string {
	return "/health"
}

// NewHealthHandler builds a new HealthHandler.
func NewHealthHandler(log *zap.SugaredLogger, store *featurestore.Store, engine *inference.Engine, cat catalog.Client) *HealthHandler {
	return &HealthHandler{
		log:     log,
		store:   store,
		engine:  engine,
		catalog: cat,
	}
}

type Response struct {
	Server       bool   `json:"server"`
	Catalog      bool   `json:"catalog"`
	DatasetSongs int    `json:"dataset_songs"`
	ModelVersion string `json:"model_version"`
}

// Health check
// @Summary Health check
// @Description Report readiness of the server, catalog, dataset and model
// @Produce json
// @Success 200 {object} Response
// @Router /health [get]
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.log.Info("health check")

	resp := Response{
		Server:       true,
		Catalog:      h.catalog.Ready(),
		DatasetSongs: h.store.Len(),
		ModelVersion: h.engine.Version(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
