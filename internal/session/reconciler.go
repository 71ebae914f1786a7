package session

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goparty/client/internal/notification"
	"github.com/goparty/client/internal/protocol"
)

// handleFrame parses one inbound frame and applies it. A malformed frame is
// dropped and logged; it never tears the session down.
func (s *Session) handleFrame(ctx context.Context, raw []byte) {
	event, err := protocol.DecodeFrame(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "dropping malformed frame", "error", err)
		return
	}

	switch event := event.(type) {
	case protocol.UserJoinedEvent:
		s.applyUserJoined(ctx, event)
	case protocol.UserLeftEvent:
		s.applyUserLeft(ctx, event)
	case protocol.PlayerStateEvent:
		s.corrector.ApplyPlayerState(event.Paused)
	case protocol.TimestampEvent:
		s.corrector.ApplyTimestamp(event.Timestamp, event.Seeking)
	case protocol.ChatMessageEvent:
		s.applyChatMessage(event)
	case protocol.ErrorEvent:
		s.notifier.Notify(ctx, notification.Error("Error", event.Message))
	case protocol.UnknownEvent:
		s.logger.DebugContext(ctx, "ignoring unknown action", "action", event.Action)
	}
}

// applyUserJoined replaces the peer set and room wholesale with the event's
// snapshot. Full resync keeps the state correct even if earlier join/leave
// events were missed.
func (s *Session) applyUserJoined(ctx context.Context, event protocol.UserJoinedEvent) {
	peers := make([]protocol.Peer, 0, len(event.Peers))
	for _, peer := range event.Peers {
		peers = append(peers, peer)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].Email < peers[j].Email })

	s.peers = peers
	s.room = event.Room
	s.currentVideo = event.Room.VideoSource

	s.notifier.Notify(ctx, notification.Info("User Joined",
		fmt.Sprintf("%s joined the room", localPart(event.Peer.Email))))
}

// applyUserLeft removes the departed peer. Peers are matched by the local
// part of the email only, so addresses that differ only by domain collide.
func (s *Session) applyUserLeft(ctx context.Context, event protocol.UserLeftEvent) {
	departed := localPart(event.Email)

	kept := make([]protocol.Peer, 0, len(s.peers))
	for _, peer := range s.peers {
		if localPart(peer.Email) != departed {
			kept = append(kept, peer)
		}
	}
	s.peers = kept

	if s.room.Peers != nil {
		delete(s.room.Peers, event.Email)
	}

	s.notifier.Notify(ctx, notification.Info("User Left",
		fmt.Sprintf("%s left the room", departed)))
}

// applyChatMessage appends unconditionally: arrival order is display order,
// and there is no id-based dedup.
func (s *Session) applyChatMessage(event protocol.ChatMessageEvent) {
	s.chat = append(s.chat, event.Message)
}

// reset tears the local room state down to empty.
func (s *Session) reset() {
	s.room = protocol.Room{}
	s.peers = nil
	s.chat = nil
	s.currentVideo = ""
}

func localPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
