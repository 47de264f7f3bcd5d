package api

import (
	"errors"
	"net/http"
	"time"

	"algotrader/internal/stream"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const feedWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// rosterFeed pushes the current roster, then every new snapshot. Slow
// clients only ever see the latest one.
func (h ApiHandler) rosterFeed(c *gin.Context) {
	if h.Roster == nil {
		returnErrorJsonCode(errors.New("no live session"), c, 503)
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger().Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	log := h.logger().With("remote", conn.RemoteAddr().String())

	write := func(snapshot stream.RosterSnapshot) error {
		conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
		return conn.WriteJSON(rosterEntries(snapshot, snapshot.Symbols()))
	}
	if err := write(h.Roster.Snapshot()); err != nil {
		log.Debugw("roster feed closed", "error", err)
		return
	}

	failed := make(chan struct{})
	sub, err := h.Roster.Subscribe(1, func(snapshot stream.RosterSnapshot) {
		select {
		case <-failed:
			return
		default:
		}
		if err := write(snapshot); err != nil {
			log.Debugw("roster feed write failed", "error", err)
			close(failed)
		}
	})
	if err != nil {
		log.Warnw("failed to subscribe roster feed", "error", err)
		return
	}
	defer h.Roster.Unsubscribe(sub)

	// reads only detect the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-closed:
	case <-failed:
	case <-sub.Done():
	}
	log.Debugw("roster feed closed")
}
