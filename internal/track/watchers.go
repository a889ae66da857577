package track

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/ride-dispatch/internal/models"
)

// WatcherHub holds the websocket connections of riders watching a trip.
// Each ride can have any number of watchers; a broken connection is
// dropped on the first failed write.
type WatcherHub struct {
	mu       sync.RWMutex
	watchers map[string][]*watcherConn
	logger   *slog.Logger
}

type watcherConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *watcherConn) send(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

func NewWatcherHub(logger *slog.Logger) *WatcherHub {
	return &WatcherHub{watchers: make(map[string][]*watcherConn), logger: logger}
}

func (h *WatcherHub) Add(rideID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.watchers[rideID] = append(h.watchers[rideID], &watcherConn{conn: conn})
}

func (h *WatcherHub) Broadcast(rideID string, u models.RideUpdate) {
	h.mu.RLock()
	conns := h.watchers[rideID]
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	var dead []*watcherConn
	for _, c := range conns {
		if err := c.send(u); err != nil {
			if h.logger != nil {
				h.logger.Debug("watcher send failed", "ride_id", rideID, "error", err)
			}
			dead = append(dead, c)
		}
	}
	if len(dead) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.watchers[rideID][:0]
	for _, c := range h.watchers[rideID] {
		broken := false
		for _, d := range dead {
			if c == d {
				broken = true
				break
			}
		}
		if !broken {
			kept = append(kept, c)
		} else {
			_ = c.conn.Close()
		}
	}
	h.watchers[rideID] = kept
}
