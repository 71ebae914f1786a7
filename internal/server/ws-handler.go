package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/goparty/client/internal/protocol"
	"github.com/goparty/client/internal/storage"
	"github.com/goparty/client/pkg/validator"
	"github.com/goparty/client/pkg/wsrouter"
)

const (
	maxMessageSize = 1 << 20
	writeWait      = 10 * time.Second
)

type wsHandler struct {
	upgrader     websocket.Upgrader
	store        storage.Storage
	validate     *validator.Validator
	logger       *slog.Logger
	router       *wsrouter.WSRouter
	membersLimit int32

	mu    sync.Mutex
	rooms map[string]*room
	conns map[*websocket.Conn]string
}

func newWSHandler(store storage.Storage, membersLimit int, logger *slog.Logger) *wsHandler {
	h := &wsHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		store:        store,
		validate:     validator.NewValidator(),
		logger:       logger,
		membersLimit: int32(membersLimit),
		rooms:        make(map[string]*room),
		conns:        make(map[*websocket.Conn]string),
	}

	router := wsrouter.New()
	router.Handle(protocol.ActionCreateRoom, h.handleCreateRoom)
	router.Handle(protocol.ActionJoinRoom, h.handleJoinRoom)
	router.Handle(protocol.ActionLeaveRoom, h.handleLeaveRoom)
	router.Handle(protocol.ActionPing, h.handlePing)
	router.Handle(protocol.ActionPlayerState, h.handlePlayerState)
	router.Handle(protocol.ActionUpdateTimestamp, h.handleUpdateTimestamp)
	router.Handle(protocol.ActionChatMessage, h.handleChatMessage)
	h.router = router

	return h
}

func (h *wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to upgrade connection", "error", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	h.mu.Lock()
	h.conns[conn] = ""
	h.mu.Unlock()

	h.logger.InfoContext(r.Context(), "client connected", "remote_addr", conn.RemoteAddr().String())

	defer h.handleDisconnect(r.Context(), conn)
	h.router.ServeConn(r.Context(), conn)
}

func (h *wsHandler) handleCreateRoom(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) error {
	var input protocol.CreateRoomData
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("invalid create room request: %w", err)
	}
	if errs, ok := h.validate.Validate(input); !ok {
		return fmt.Errorf("invalid create room request: %s", errs[0].Message)
	}
	if input.Timestamp.End <= input.Timestamp.Start ||
		input.Timestamp.Current < input.Timestamp.Start ||
		input.Timestamp.Current > input.Timestamp.End {
		return errors.New("invalid create room request: invalid timestamp window")
	}

	id := uuid.New().String()
	rm := newRoom(id, input.Email, input.VideoSource, input.Timestamp, h.membersLimit)

	peer := protocol.Peer{
		Email:      input.Email,
		JoinedAt:   time.Now(),
		Connection: conn.RemoteAddr().String(),
		LastPing:   time.Now(),
	}
	if err := rm.addPeer(peer); err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	h.mu.Lock()
	h.rooms[id] = rm
	h.conns[conn] = input.Email
	h.mu.Unlock()

	h.persistRoom(ctx, rm)
	h.logger.InfoContext(ctx, "room created", "room_id", id, "created_by", input.Email)

	h.broadcastUserJoined(ctx, rm, peer)
	return nil
}

func (h *wsHandler) handleJoinRoom(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) error {
	var input protocol.JoinRoomData
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("invalid join room data: %w", err)
	}
	if errs, ok := h.validate.Validate(input); !ok {
		return fmt.Errorf("invalid join room data: %s", errs[0].Message)
	}

	rm, err := h.getRoom(input.RoomID)
	if err != nil {
		return errors.New("Room not found")
	}

	peer := protocol.Peer{
		Email:      input.Email,
		JoinedAt:   time.Now(),
		Connection: conn.RemoteAddr().String(),
		LastPing:   time.Now(),
	}
	if err := rm.addPeer(peer); err != nil {
		switch {
		case errors.Is(err, ErrRoomFull):
			return errors.New("Room is full")
		case errors.Is(err, ErrRoomInactive):
			return errors.New("Room is not active")
		case errors.Is(err, ErrPeerExists):
			return errors.New("Already in room")
		default:
			return fmt.Errorf("failed to join room: %w", err)
		}
	}

	h.mu.Lock()
	h.conns[conn] = input.Email
	h.mu.Unlock()

	h.persistRoom(ctx, rm)
	h.logger.InfoContext(ctx, "peer joined room", "room_id", input.RoomID, "email", input.Email)

	h.broadcastUserJoined(ctx, rm, peer)
	return nil
}

func (h *wsHandler) handleLeaveRoom(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) error {
	var input protocol.LeaveRoomData
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("invalid leave room data: %w", err)
	}
	if errs, ok := h.validate.Validate(input); !ok {
		return fmt.Errorf("invalid leave room data: %s", errs[0].Message)
	}

	h.leaveRoom(ctx, input.RoomID, input.Email)
	return nil
}

func (h *wsHandler) handlePing(ctx context.Context, _ *websocket.Conn, raw json.RawMessage) error {
	var input protocol.PingData
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("invalid ping data: %w", err)
	}

	h.mu.Lock()
	rooms := make([]*room, 0, len(h.rooms))
	for _, rm := range h.rooms {
		rooms = append(rooms, rm)
	}
	h.mu.Unlock()

	for _, rm := range rooms {
		rm.touchPeer(input.Email)
	}
	return nil
}

func (h *wsHandler) handlePlayerState(ctx context.Context, _ *websocket.Conn, raw json.RawMessage) error {
	var input protocol.PlayerStateData
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("invalid player state data: %w", err)
	}
	if errs, ok := h.validate.Validate(input); !ok {
		return fmt.Errorf("invalid player state data: %s", errs[0].Message)
	}

	rm, err := h.getRoom(input.RoomID)
	if err != nil {
		return errors.New("Room not found")
	}

	h.broadcast(ctx, rm, protocol.Message{
		Action: protocol.ActionUpdatePlayerState,
		Data: map[string]any{
			"email": input.Email,
			"state": input.Paused,
			"room":  input.RoomID,
		},
	})
	return nil
}

func (h *wsHandler) handleUpdateTimestamp(ctx context.Context, _ *websocket.Conn, raw json.RawMessage) error {
	var input protocol.VideoSyncData
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("invalid update timestamp data: %w", err)
	}
	if errs, ok := h.validate.Validate(input); !ok {
		return fmt.Errorf("invalid update timestamp data: %s", errs[0].Message)
	}

	rm, err := h.getRoom(input.RoomID)
	if err != nil {
		return errors.New("Room not found")
	}

	h.broadcast(ctx, rm, protocol.Message{
		Action: protocol.ActionUpdateTimestamp,
		Data: map[string]any{
			"email":     input.Email,
			"timestamp": input.Timestamp,
			"seeking":   input.Seeking,
			"room":      input.RoomID,
		},
	})
	return nil
}

func (h *wsHandler) handleChatMessage(ctx context.Context, _ *websocket.Conn, raw json.RawMessage) error {
	var input protocol.ChatMessage
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("invalid chat message data: %w", err)
	}
	if errs, ok := h.validate.Validate(input); !ok {
		return fmt.Errorf("invalid chat message data: %s", errs[0].Message)
	}

	rm, err := h.getRoom(input.RoomID)
	if err != nil {
		return errors.New("Room not found")
	}

	h.broadcast(ctx, rm, protocol.Message{
		Action: protocol.ActionChatMessage,
		Data:   input,
	})
	return nil
}

func (h *wsHandler) handleDisconnect(ctx context.Context, conn *websocket.Conn) {
	h.mu.Lock()
	email, known := h.conns[conn]
	rooms := make(map[string]*room, len(h.rooms))
	for id, rm := range h.rooms {
		rooms[id] = rm
	}
	h.mu.Unlock()

	if known && email != "" {
		for id, rm := range rooms {
			if rm.hasPeer(email) {
				h.leaveRoom(ctx, id, email)
			}
		}
	}

	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()

	h.logger.InfoContext(ctx, "client disconnected", "email", email)
}

// leaveRoom removes the peer and either deletes the emptied room or
// broadcasts user_left to the remaining peers.
func (h *wsHandler) leaveRoom(ctx context.Context, roomID, email string) {
	rm, err := h.getRoom(roomID)
	if err != nil {
		return
	}

	if err := rm.removePeer(email); err != nil {
		h.logger.WarnContext(ctx, "failed to remove peer", "room_id", roomID, "email", email, "error", err)
		return
	}

	if rm.isEmpty() {
		rm.close()
		h.mu.Lock()
		delete(h.rooms, roomID)
		h.mu.Unlock()
		if err := h.store.Delete(ctx, "room:"+roomID); err != nil {
			h.logger.WarnContext(ctx, "failed to delete room", "room_id", roomID, "error", err)
		}
		h.logger.InfoContext(ctx, "room closed", "room_id", roomID)
		return
	}

	h.persistRoom(ctx, rm)
	h.broadcast(ctx, rm, protocol.Message{
		Action: protocol.ActionUserLeft,
		Data: map[string]any{
			"email": email,
			"peers": rm.snapshot().Peers,
			"room":  rm.snapshot(),
		},
	})
}

func (h *wsHandler) getRoom(id string) (*room, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return rm, nil
}

func (h *wsHandler) persistRoom(ctx context.Context, rm *room) {
	snapshot := rm.snapshot()
	data, err := json.Marshal(snapshot)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal room", "room_id", snapshot.ID, "error", err)
		return
	}
	if err := h.store.Set(ctx, "room:"+snapshot.ID, string(data)); err != nil {
		h.logger.WarnContext(ctx, "failed to persist room", "room_id", snapshot.ID, "error", err)
	}
}

func (h *wsHandler) broadcastUserJoined(ctx context.Context, rm *room, joined protocol.Peer) {
	snapshot := rm.snapshot()
	h.broadcast(ctx, rm, protocol.Message{
		Action: protocol.ActionUserJoined,
		Data: map[string]any{
			"peer":  joined,
			"peers": snapshot.Peers,
			"room":  snapshot,
		},
	})
}

// broadcast fans a message out to every connection whose email is a peer of
// the room. Write failures are logged and skipped; the peer's own read loop
// notices the dead connection.
func (h *wsHandler) broadcast(ctx context.Context, rm *room, msg protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal broadcast", "action", msg.Action, "error", err)
		return
	}

	members := make(map[string]bool)
	for _, email := range rm.peerEmails() {
		members[email] = true
	}

	h.mu.Lock()
	targets := make([]*websocket.Conn, 0, len(h.conns))
	for conn, email := range h.conns {
		if members[email] {
			targets = append(targets, conn)
		}
	}
	h.mu.Unlock()

	for _, conn := range targets {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.WarnContext(ctx, "failed to broadcast", "action", msg.Action, "error", err)
		}
	}
}
