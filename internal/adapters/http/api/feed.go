// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/streetfix/streetfix/internal/domain/model"
	"github.com/streetfix/streetfix/pkg/logger"
	"github.com/streetfix/streetfix/pkg/metrics"
)

// Websocket keepalive tuning.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
	// Browser clients come from a separately hosted frontend.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// feedCommand is the single client-to-server message: switch sort order.
type feedCommand struct {
	Sort string `json:"sort"`
}

// FeedHandler streams live sorted report snapshots over a websocket.
// Each connection owns one view engine; local sort switches re-render
// without a server round trip to the store.
type FeedHandler struct {
	deps Dependencies
}

// NewFeedHandler creates a new feed handler.
func NewFeedHandler(deps Dependencies) *FeedHandler {
	return &FeedHandler{deps: deps}
}

// HandleFeed handles GET /ws/reports?sort=votes-high|votes-low requests.
func (h *FeedHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	const op = "api.feed"
	lg := logger.Get().Named("feed")

	order, err := model.ParseSortOrder(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	eng, snapshots, err := h.deps.SubscribeReports(r.Context(), order)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		eng.Unsubscribe()
		lg.Warn(r.Context(), "upgrade failed", logger.Error(err))
		return
	}

	metrics.IncWSClients()
	defer metrics.DecWSClients()
	defer eng.Unsubscribe()
	defer conn.Close()

	// Reader: consume sort commands and enforce pong deadlines.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			var cmd feedCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			order, err := model.ParseSortOrder(cmd.Sort)
			if err != nil {
				lg.Debug(r.Context(), "ignoring bad sort command",
					logger.String("sort", cmd.Sort),
				)
				continue
			}
			eng.SetSortOrder(order)
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
