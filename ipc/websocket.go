package ipc

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mitchellh/mapstructure"
	"github.com/normen/goxlr-daemon/notify"
	"github.com/normen/goxlr-daemon/state"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var errUnknownMethod = errors.New("unknown method")

// wsRequest is a client message, decoded from the generic JSON object.
type wsRequest struct {
	MsgID  string `mapstructure:"msgID"`
	Method string `mapstructure:"method"`
	Target string `mapstructure:"target"`
	Value  *int32 `mapstructure:"value"`
}

// wsMessage is sent to the client. Replies echo the request msgID, pushed
// updates carry a fresh one.
type wsMessage struct {
	MsgID   string   `json:"msgID"`
	Method  string   `json:"method"`
	Success bool     `json:"success"`
	Payload any      `json:"payload,omitempty"`
	Error   *wsError `json:"error,omitempty"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already answered the request
		zap.S().Debugf("Websocket upgrade: %v", err)
		return
	}
	sub := s.backend.Subscribe()
	zap.S().Debugf("Websocket client %s subscribed as %s", conn.RemoteAddr(), sub.ID)

	replies := make(chan wsMessage, 16)
	ctx, cancel := context.WithCancel(context.Background())
	go s.writeLoop(conn, sub.C, replies, cancel)

	defer func() {
		cancel()
		sub.Close()
		zap.S().Debugf("Websocket client %s gone", conn.RemoteAddr())
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		var raw map[string]any
		if err := conn.ReadJSON(&raw); err != nil {
			return
		}
		var req wsRequest
		var reply wsMessage
		if err := mapstructure.Decode(raw, &req); err != nil {
			reply = failure(req, http.StatusBadRequest, err)
		} else {
			reply = s.serve(ctx, req)
		}
		select {
		case replies <- reply:
		case <-ctx.Done():
			return
		}
	}
}

// serve answers one request.
func (s *Server) serve(ctx context.Context, req wsRequest) wsMessage {
	switch req.Method {
	case "snapshot":
		return wsMessage{MsgID: req.MsgID, Method: req.Method, Success: true, Payload: s.backend.Snapshot()}
	case "get", "set":
	default:
		return failure(req, http.StatusBadRequest, errUnknownMethod)
	}
	t, err := state.ParseTarget(req.Target)
	if err != nil {
		return failure(req, http.StatusNotFound, err)
	}
	if req.Method == "set" {
		if req.Value == nil {
			return failure(req, http.StatusBadRequest, errors.New("missing value"))
		}
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		if err := s.backend.SetState(ctx, t, *req.Value); err != nil {
			return failure(req, statusOf(err), err)
		}
	}
	v, err := s.backend.GetState(t)
	if err != nil {
		return failure(req, statusOf(err), err)
	}
	return wsMessage{MsgID: req.MsgID, Method: req.Method, Success: true, Payload: newTargetState(t, v)}
}

func failure(req wsRequest, code int, err error) wsMessage {
	return wsMessage{
		MsgID:  req.MsgID,
		Method: req.Method,
		Error:  &wsError{Code: code, Message: err.Error()},
	}
}

// writeLoop pumps replies and change batches to the socket until either the
// subscription or the connection ends.
func (s *Server) writeLoop(conn *websocket.Conn, batches <-chan notify.Batch, replies <-chan wsMessage, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		conn.Close()
	}()
	write := func(m wsMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(m) == nil
	}
	for {
		select {
		case b, more := <-batches:
			if !more {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "daemon stopped"))
				return
			}
			if !write(wsMessage{MsgID: uuid.NewString(), Method: "update", Success: true, Payload: b}) {
				return
			}
		case m := <-replies:
			if !write(m) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
