// README: WebSocket transport adapter binding a connection to a dispatch session.
package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ridesim/internal/modules/dispatch"
	"ridesim/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
)

type SocketHandler struct {
	dispatch *dispatch.Service
	upgrader websocket.Upgrader
}

// NewSocketHandler builds the /ws handler. checkOrigin may be nil to accept
// any origin.
func NewSocketHandler(svc *dispatch.Service, checkOrigin func(r *http.Request) bool) *SocketHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &SocketHandler{
		dispatch: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (h *SocketHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade: %v", err)
		return
	}

	sess := h.dispatch.Open(c.Request.Context(), types.ID(uuid.NewString()))
	go writePump(conn, sess)
	readPump(conn, sess)
	sess.Close()
}

// readPump feeds inbound frames to the session until the connection fails.
func readPump(conn *websocket.Conn, sess *dispatch.Session) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: session %s read: %v", sess.ID(), err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		cmd, err := decodeCommand(data)
		if err != nil {
			log.Printf("ws: session %s dropped frame: %v", sess.ID(), err)
			continue
		}
		if err := sess.Handle(cmd); err != nil {
			log.Printf("ws: session %s dropped %T: %v", sess.ID(), cmd, err)
		}
	}
}

// writePump is the only writer on conn. It closes the connection once the
// session ends, which in turn stops readPump.
func writePump(conn *websocket.Conn, sess *dispatch.Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case ev := <-sess.Events():
			data, err := encodeEvent(ev)
			if err != nil {
				log.Printf("ws: session %s encode %s: %v", sess.ID(), ev.Type(), err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				sess.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				sess.Close()
				return
			}
		case <-sess.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
