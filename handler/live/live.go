package live

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/chartlab/auricle/auricle"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, you should validate the origin of the request
		return true
	},
}

// Update is one completed prediction pushed to feed subscribers.
type Update struct {
	PredictionID string         `json:"prediction_id"`
	Title        string         `json:"title"`
	Artist       string         `json:"artist"`
	Prediction   auricle.Label  `json:"prediction"`
	Confidence   float64        `json:"confidence"`
	Adjusted     bool           `json:"adjusted_by_dataset"`
	Path         string         `json:"resolution_path"`
}

// Hub fans completed predictions out to connected WebSocket clients. Slow or
// broken clients are dropped rather than blocking the pipeline.
type Hub struct {
	log *zap.SugaredLogger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHub builds an empty hub.
func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{log: log, clients: make(map[*websocket.Conn]struct{})}
}

func (*Hub) Pattern() string {
	return "/predictions/live"
}

// ServeHTTP upgrades the connection and parks it in the client set until the
// peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorw("Error upgrading connection to WebSocket", "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Infow("Live feed client connected", "clients", n)

	// Reads only serve to detect disconnects; the feed is one-way.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish sends the prediction to every connected client.
func (h *Hub) Publish(rec auricle.PredictionRecord, identity auricle.SongIdentity) {
	update := Update{
		PredictionID: rec.ID,
		Title:        identity.Title,
		Artist:       identity.Artist,
		Prediction:   rec.FinalLabel,
		Confidence:   rec.FinalConfidence,
		Adjusted:     rec.Adjusted,
		Path:         string(rec.Path),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(update); err != nil {
			h.log.Warnw("Dropping live feed client", "error", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn.Close()
	delete(h.clients, conn)
}

// NewLiveHandler builds the hub.
func NewLiveHandler(log *zap.SugaredLogger) *Hub {
	return NewHub(log)
}

var Options = NewLiveHandler
