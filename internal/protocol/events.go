package protocol

import (
	"encoding/json"
	"fmt"
)

// Event is one decoded inbound frame. The set of variants is closed;
// frames with an unrecognized action decode to UnknownEvent so that newer
// servers do not break older clients.
type Event interface{ isEvent() }

type UserJoinedEvent struct {
	Peer  Peer
	Peers map[string]Peer
	Room  Room
}

type UserLeftEvent struct {
	Email string
}

type PlayerStateEvent struct {
	Email  string
	Paused bool
}

type TimestampEvent struct {
	Email     string
	Timestamp float64
	Seeking   bool
}

type ChatMessageEvent struct {
	Message ChatMessage
}

type ErrorEvent struct {
	Message string
}

type UnknownEvent struct {
	Action string
}

func (UserJoinedEvent) isEvent()  {}
func (UserLeftEvent) isEvent()    {}
func (PlayerStateEvent) isEvent() {}
func (TimestampEvent) isEvent()   {}
func (ChatMessageEvent) isEvent() {}
func (ErrorEvent) isEvent()       {}
func (UnknownEvent) isEvent()     {}

type userJoinedPayload struct {
	Peer  Peer            `json:"peer"`
	Peers map[string]Peer `json:"peers"`
	Room  Room            `json:"room"`
}

type userLeftPayload struct {
	Email string `json:"email"`
}

type playerStatePayload struct {
	Email string `json:"email"`
	State bool   `json:"state"`
}

type timestampPayload struct {
	Email     string  `json:"email"`
	Timestamp float64 `json:"timestamp"`
	Seeking   bool    `json:"seeking"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// DecodeFrame parses one inbound text frame. A non-nil error means the frame
// is malformed and must be dropped by the caller; it is never fatal to the
// connection.
func DecodeFrame(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal frame: %w", err)
	}

	switch env.Action {
	case ActionUserJoined:
		var p userJoinedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Action, err)
		}
		return UserJoinedEvent{Peer: p.Peer, Peers: p.Peers, Room: p.Room}, nil
	case ActionUserLeft:
		var p userLeftPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Action, err)
		}
		return UserLeftEvent{Email: p.Email}, nil
	case ActionUpdatePlayerState:
		var p playerStatePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Action, err)
		}
		return PlayerStateEvent{Email: p.Email, Paused: p.State}, nil
	case ActionUpdateTimestamp:
		var p timestampPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Action, err)
		}
		return TimestampEvent{Email: p.Email, Timestamp: p.Timestamp, Seeking: p.Seeking}, nil
	case ActionChatMessage:
		var p ChatMessage
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Action, err)
		}
		return ChatMessageEvent{Message: p}, nil
	case ActionError:
		var p errorPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Action, err)
		}
		return ErrorEvent{Message: p.Message}, nil
	default:
		return UnknownEvent{Action: env.Action}, nil
	}
}
