package wsrouter

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
)

type message struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type HandlerFunc func(ctx context.Context, conn *websocket.Conn, data json.RawMessage) error

// WSRouter dispatches inbound {action, data} frames to per-action handlers.
type WSRouter struct {
	routes map[string]HandlerFunc
}

func New() *WSRouter {
	return &WSRouter{routes: make(map[string]HandlerFunc)}
}

func (r *WSRouter) Handle(action string, handler HandlerFunc) {
	r.routes[action] = handler
}

// ServeConn reads frames from conn until the connection fails. A malformed
// frame or a handler error produces an error frame on the connection and the
// loop continues; only a read error ends it.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg message
		if err := json.Unmarshal(raw, &msg); err != nil {
			r.writeError(conn, "Invalid message format")
			continue
		}

		handler, exists := r.routes[msg.Action]
		if !exists {
			r.writeError(conn, "Unknown message action")
			continue
		}

		ctx := AppendActionToCtx(ctx, msg.Action)
		if err := handler(ctx, conn, msg.Data); err != nil {
			r.writeError(conn, err.Error())
		}
	}
}

func (r *WSRouter) writeError(conn *websocket.Conn, text string) {
	conn.WriteJSON(message{Action: "error", Data: mustMarshal(errorPayload{Message: text})})
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
