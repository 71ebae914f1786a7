package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/goparty/client/internal/connection"
	"github.com/goparty/client/internal/identity"
	"github.com/goparty/client/internal/notification"
	"github.com/goparty/client/internal/playback"
	"github.com/goparty/client/internal/protocol"
	"github.com/goparty/client/pkg/validator"
)

const defaultPingInterval = 10 * time.Second

type iConnection interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, v any) error
	State() connection.State
	Frames() <-chan []byte
}

type iIdentityProvider interface {
	Current() (identity.Identity, bool)
}

type Config struct {
	// PingInterval is the keepalive interval while connected. Zero means
	// defaultPingInterval.
	PingInterval time.Duration
}

// Snapshot is a read-only copy of the session state for the view layer.
type Snapshot struct {
	Room         protocol.Room
	Peers        []protocol.Peer
	Chat         []protocol.ChatMessage
	CurrentVideo string
	Connection   connection.State
}

type intent interface{ isIntent() }

type createRoomIntent struct{ videoURL string }
type joinRoomIntent struct{ roomID string }
type leaveRoomIntent struct{}
type chatIntent struct{ text string }
type seekIntent struct{ seconds float64 }
type snapshotIntent struct{ reply chan Snapshot }

func (createRoomIntent) isIntent() {}
func (joinRoomIntent) isIntent()   {}
func (leaveRoomIntent) isIntent()  {}
func (chatIntent) isIntent()       {}
func (seekIntent) isIntent()       {}
func (snapshotIntent) isIntent()   {}

// Session owns the room, peer and chat state. All mutation happens on the
// Run loop, which consumes inbound frames, user intents and local player
// transitions from channels, so no two events are ever applied concurrently.
type Session struct {
	conn       iConnection
	identities iIdentityProvider
	player     playback.Player
	corrector  *playback.Corrector
	notifier   notification.Notifier
	validate   *validator.Validator
	logger     *slog.Logger

	pingInterval time.Duration

	inbox    chan intent
	playerCh chan playback.State

	// Owned by the Run loop.
	room         protocol.Room
	peers        []protocol.Peer
	chat         []protocol.ChatMessage
	currentVideo string
}

func New(
	conn iConnection,
	identities iIdentityProvider,
	player playback.Player,
	corrector *playback.Corrector,
	notifier notification.Notifier,
	validate *validator.Validator,
	logger *slog.Logger,
	cfg *Config,
) *Session {
	pingInterval := defaultPingInterval
	if cfg != nil && cfg.PingInterval > 0 {
		pingInterval = cfg.PingInterval
	}

	return &Session{
		conn:         conn,
		identities:   identities,
		player:       player,
		corrector:    corrector,
		notifier:     notifier,
		validate:     validate,
		logger:       logger,
		pingInterval: pingInterval,
		inbox:        make(chan intent, 64),
		playerCh:     make(chan playback.State, 16),
	}
}

// Run drives the session until ctx is done or the frame stream closes.
func (s *Session) Run(ctx context.Context) error {
	unsubscribe := s.player.Subscribe(func(st playback.State) {
		select {
		case s.playerCh <- st:
		default:
		}
	})
	defer unsubscribe()

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-s.conn.Frames():
			if !ok {
				return nil
			}
			s.handleFrame(ctx, raw)
		case in := <-s.inbox:
			s.handleIntent(ctx, in)
		case st := <-s.playerCh:
			s.publishPlayerState(ctx, st)
		case <-ticker.C:
			s.sendPing(ctx)
		}
	}
}

// CreateRoom, JoinRoom, LeaveRoom and SendChat enqueue user intents for the
// Run loop. Validation failures surface through the notifier, never as
// returned errors.

func (s *Session) CreateRoom(videoURL string) {
	s.inbox <- createRoomIntent{videoURL: videoURL}
}

func (s *Session) JoinRoom(roomID string) {
	s.inbox <- joinRoomIntent{roomID: roomID}
}

func (s *Session) LeaveRoom() {
	s.inbox <- leaveRoomIntent{}
}

func (s *Session) SendChat(text string) {
	s.inbox <- chatIntent{text: text}
}

func (s *Session) Seek(seconds float64) {
	s.inbox <- seekIntent{seconds: seconds}
}

// Snapshot returns a copy of the current state. It must only be called while
// Run is active.
func (s *Session) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	s.inbox <- snapshotIntent{reply: reply}
	return <-reply
}

func (s *Session) handleIntent(ctx context.Context, in intent) {
	switch in := in.(type) {
	case createRoomIntent:
		s.handleCreateRoom(ctx, in.videoURL)
	case joinRoomIntent:
		s.handleJoinRoom(ctx, in.roomID)
	case leaveRoomIntent:
		s.handleLeaveRoom(ctx)
	case chatIntent:
		s.handleSendChat(ctx, in.text)
	case seekIntent:
		s.handleSeek(ctx, in.seconds)
	case snapshotIntent:
		in.reply <- s.snapshot()
	}
}

func (s *Session) snapshot() Snapshot {
	room := s.room
	if s.room.Peers != nil {
		room.Peers = make(map[string]protocol.Peer, len(s.room.Peers))
		for email, peer := range s.room.Peers {
			room.Peers[email] = peer
		}
	}

	peers := make([]protocol.Peer, len(s.peers))
	copy(peers, s.peers)
	chat := make([]protocol.ChatMessage, len(s.chat))
	copy(chat, s.chat)

	return Snapshot{
		Room:         room,
		Peers:        peers,
		Chat:         chat,
		CurrentVideo: s.currentVideo,
		Connection:   s.conn.State(),
	}
}

func (s *Session) send(ctx context.Context, action string, data any) {
	if err := s.conn.Send(ctx, protocol.Message{Action: action, Data: data}); err != nil {
		s.logger.WarnContext(ctx, "send failed", "action", action, "error", err)
	}
}

func (s *Session) sendPing(ctx context.Context) {
	if s.conn.State() != connection.StateConnected {
		return
	}
	ident, ok := s.identities.Current()
	if !ok {
		return
	}
	s.send(ctx, protocol.ActionPing, protocol.PingData{Email: ident.Email})
}
