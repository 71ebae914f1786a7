package protocol

import (
	"encoding/json"
	"time"
)

// Wire actions. Client and server exchange text frames of the form
// {"action": "...", "data": {...}}.
const (
	ActionCreateRoom  = "create_room"
	ActionJoinRoom    = "join_room"
	ActionLeaveRoom   = "leave_room"
	ActionPing        = "ping"
	ActionPlayerState = "player_state"

	ActionUserJoined        = "user_joined"
	ActionUserLeft          = "user_left"
	ActionUpdatePlayerState = "update_player_state"
	ActionUpdateTimestamp   = "update_timestamp"
	ActionChatMessage       = "chat_message"
	ActionError             = "error"
)

type Message struct {
	Action string `json:"action"`
	Data   any    `json:"data"`
}

type envelope struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// Timestamp is the playback window of a room in seconds.
type Timestamp struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Current float64 `json:"current"`
}

type Peer struct {
	Email      string    `json:"email"`
	JoinedAt   time.Time `json:"joined_at"`
	Connection string    `json:"connection"`
	LastPing   time.Time `json:"last_ping"`
}

type RoomStatus int32

const (
	RoomStatusActive RoomStatus = iota
	RoomStatusInactive
	RoomStatusClosed
)

func (s RoomStatus) String() string {
	switch s {
	case RoomStatusActive:
		return "active"
	case RoomStatusInactive:
		return "inactive"
	case RoomStatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Room is the server-owned room snapshot. The client keeps a read-only copy
// that is replaced wholesale on user_joined.
type Room struct {
	ID          string          `json:"id"`
	URL         string          `json:"url"`
	VideoSource string          `json:"video_source"`
	Timestamp   Timestamp       `json:"timestamp"`
	CreatedBy   string          `json:"created_by"`
	CreatedOn   time.Time       `json:"created_on"`
	MaxCapacity int32           `json:"max_capacity"`
	Status      RoomStatus      `json:"status"`
	Peers       map[string]Peer `json:"peers"`
}

type ChatMessage struct {
	ID        string `json:"id"`
	Message   string `json:"message" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Timestamp string `json:"timestamp"`
	RoomID    string `json:"room_id" validate:"required"`
}

// Outbound payloads. Field names match the wire shapes the server validates.
type CreateRoomData struct {
	VideoSource string    `json:"video_source" validate:"required,url"`
	Email       string    `json:"email" validate:"required,email"`
	Timestamp   Timestamp `json:"timestamp"`
}

type JoinRoomData struct {
	RoomID string `json:"room_id" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
}

type LeaveRoomData struct {
	RoomID string `json:"room_id" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
}

// PlayerStateData is sent as "paused" but echoed back by the server
// under the "state" key of update_player_state.
type PlayerStateData struct {
	RoomID string `json:"room_id" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
	Paused bool   `json:"paused"`
}

type VideoSyncData struct {
	RoomID    string  `json:"room_id" validate:"required"`
	Email     string  `json:"email" validate:"required,email"`
	Timestamp float64 `json:"timestamp"`
	Seeking   bool    `json:"seeking"`
}

type PingData struct {
	Email string `json:"email" validate:"required,email"`
}
