package server

import (
	"errors"
	"sync"
	"time"

	"github.com/goparty/client/internal/protocol"
)

var (
	ErrRoomFull     = errors.New("room is at maximum capacity")
	ErrRoomInactive = errors.New("room is inactive")
	ErrPeerExists   = errors.New("peer already exists in room")
	ErrPeerNotFound = errors.New("peer not found in room")
	ErrRoomNotFound = errors.New("room not found")
)

const defaultMaxCapacity = 10

// room is the server-side state of one watch party. The protocol.Room
// snapshot it produces is what clients cache.
type room struct {
	mu          sync.Mutex
	id          string
	url         string
	videoSource string
	timestamp   protocol.Timestamp
	createdBy   string
	createdOn   time.Time
	maxCapacity int32
	status      protocol.RoomStatus
	peers       map[string]protocol.Peer
}

func newRoom(id, createdBy, videoSource string, timestamp protocol.Timestamp, maxCapacity int32) *room {
	if maxCapacity <= 0 {
		maxCapacity = defaultMaxCapacity
	}

	return &room{
		id:          id,
		videoSource: videoSource,
		timestamp:   timestamp,
		createdBy:   createdBy,
		createdOn:   time.Now(),
		maxCapacity: maxCapacity,
		status:      protocol.RoomStatusActive,
		peers:       make(map[string]protocol.Peer),
	}
}

func (r *room) addPeer(peer protocol.Peer) error {
	if peer.Email == "" {
		return errors.New("email is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != protocol.RoomStatusActive {
		return ErrRoomInactive
	}
	if len(r.peers) >= int(r.maxCapacity) {
		return ErrRoomFull
	}
	if _, exists := r.peers[peer.Email]; exists {
		return ErrPeerExists
	}

	r.peers[peer.Email] = peer
	return nil
}

func (r *room) removePeer(email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[email]; !exists {
		return ErrPeerNotFound
	}
	delete(r.peers, email)
	return nil
}

func (r *room) touchPeer(email string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	peer, exists := r.peers[email]
	if !exists {
		return false
	}
	peer.LastPing = time.Now()
	r.peers[email] = peer
	return true
}

func (r *room) hasPeer(email string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.peers[email]
	return exists
}

func (r *room) isEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers) == 0
}

func (r *room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = protocol.RoomStatusClosed
	r.peers = make(map[string]protocol.Peer)
}

// peerEmails returns the emails of all current peers.
func (r *room) peerEmails() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	emails := make([]string, 0, len(r.peers))
	for email := range r.peers {
		emails = append(emails, email)
	}
	return emails
}

// snapshot returns the wire-shaped copy of the room.
func (r *room) snapshot() protocol.Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	peers := make(map[string]protocol.Peer, len(r.peers))
	for email, peer := range r.peers {
		peers[email] = peer
	}

	return protocol.Room{
		ID:          r.id,
		URL:         r.url,
		VideoSource: r.videoSource,
		Timestamp:   r.timestamp,
		CreatedBy:   r.createdBy,
		CreatedOn:   r.createdOn,
		MaxCapacity: r.maxCapacity,
		Status:      r.status,
		Peers:       peers,
	}
}
