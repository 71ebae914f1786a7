package session

import (
	"context"
	"strconv"
	"time"

	"github.com/goparty/client/internal/identity"
	"github.com/goparty/client/internal/notification"
	"github.com/goparty/client/internal/playback"
	"github.com/goparty/client/internal/protocol"
)

// chatTimeLayout mirrors the client-formatted timestamp existing room
// members display, e.g. "1/2/2006, 3:04:05 PM".
const chatTimeLayout = "1/2/2006, 3:04:05 PM"

// Default timestamp window for a newly created room.
var defaultTimestamp = protocol.Timestamp{Start: 0, End: 100, Current: 0}

func (s *Session) handleCreateRoom(ctx context.Context, videoURL string) {
	ident, ok := s.requireIdentity(ctx)
	if !ok {
		return
	}

	data := protocol.CreateRoomData{
		VideoSource: videoURL,
		Email:       ident.Email,
		Timestamp:   defaultTimestamp,
	}
	if !s.validateOutbound(ctx, data) {
		return
	}

	// Optimistic local update, replaced by the server's user_joined echo.
	s.currentVideo = videoURL

	s.send(ctx, protocol.ActionCreateRoom, data)
}

func (s *Session) handleJoinRoom(ctx context.Context, roomID string) {
	ident, ok := s.requireIdentity(ctx)
	if !ok {
		return
	}

	data := protocol.JoinRoomData{
		RoomID: roomID,
		Email:  ident.Email,
	}
	if !s.validateOutbound(ctx, data) {
		return
	}

	s.send(ctx, protocol.ActionJoinRoom, data)
}

func (s *Session) handleLeaveRoom(ctx context.Context) {
	ident, ok := s.requireIdentity(ctx)
	if !ok {
		return
	}
	if s.room.ID == "" {
		s.notifier.Notify(ctx, notification.Error("Error", "No active room to leave"))
		return
	}

	s.send(ctx, protocol.ActionLeaveRoom, protocol.LeaveRoomData{
		RoomID: s.room.ID,
		Email:  ident.Email,
	})
	s.reset()
}

func (s *Session) handleSendChat(ctx context.Context, text string) {
	ident, ok := s.requireIdentity(ctx)
	if !ok {
		return
	}
	if s.room.ID == "" {
		s.notifier.Notify(ctx, notification.Error("Error", "No active room"))
		return
	}

	// The id is derived from the local message count; it is not globally
	// unique across peers.
	data := protocol.ChatMessage{
		ID:        strconv.Itoa(len(s.chat) + 1),
		Message:   text,
		Email:     ident.Email,
		Timestamp: time.Now().Format(chatTimeLayout),
		RoomID:    s.room.ID,
	}
	if !s.validateOutbound(ctx, data) {
		return
	}

	s.send(ctx, protocol.ActionChatMessage, data)
}

// handleSeek moves the local player and broadcasts the new position. The
// broadcast is sent with seeking=false so peers outside the tolerance window
// follow immediately.
func (s *Session) handleSeek(ctx context.Context, seconds float64) {
	ident, ok := s.requireIdentity(ctx)
	if !ok {
		return
	}
	if s.room.ID == "" {
		s.notifier.Notify(ctx, notification.Error("Error", "No active room"))
		return
	}

	s.player.SetCurrentTime(seconds)

	s.send(ctx, protocol.ActionUpdateTimestamp, protocol.VideoSyncData{
		RoomID:    s.room.ID,
		Email:     ident.Email,
		Timestamp: seconds,
		Seeking:   false,
	})
}

// publishPlayerState re-broadcasts a local pause/play transition so peers
// can follow it. There is no origin tag: a peer's re-application of an
// identical value is a harmless no-op at its player.
func (s *Session) publishPlayerState(ctx context.Context, st playback.State) {
	if s.room.ID == "" {
		return
	}
	ident, ok := s.identities.Current()
	if !ok {
		return
	}

	s.send(ctx, protocol.ActionPlayerState, protocol.PlayerStateData{
		RoomID: s.room.ID,
		Email:  ident.Email,
		Paused: st.Paused,
	})
}

func (s *Session) requireIdentity(ctx context.Context) (identity.Identity, bool) {
	ident, ok := s.identities.Current()
	if !ok {
		s.notifier.Notify(ctx, notification.Error("Error", "Please log in first"))
		return identity.Identity{}, false
	}
	return ident, true
}

func (s *Session) validateOutbound(ctx context.Context, data any) bool {
	errs, ok := s.validate.Validate(data)
	if !ok {
		s.notifier.Notify(ctx, notification.Error("Error", errs[0].Message))
		return false
	}
	return true
}
