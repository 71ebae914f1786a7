package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goparty/client/internal/protocol"
	"github.com/goparty/client/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(storage.NewMemory(), logger, Config{MembersLimit: 3})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]string) {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	resp, out := postJSON(t, ts.URL+"/api/v1/register", map[string]string{
		"email": "alice@example.com", "username": "alice", "password": "correcthorse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", out["username"])
	assert.NotEmpty(t, out["id"])
	require.NotEmpty(t, out["token"])
	firstToken := out["token"]

	// Duplicate registration conflicts.
	resp, out = postJSON(t, ts.URL+"/api/v1/register", map[string]string{
		"email": "alice@example.com", "username": "alice", "password": "correcthorse",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "user already exists", out["error"])

	// Login rotates the token.
	resp, out = postJSON(t, ts.URL+"/api/v1/login", map[string]string{
		"email": "alice@example.com", "password": "correcthorse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, out["token"])
	assert.NotEqual(t, firstToken, out["token"])

	resp, out = postJSON(t, ts.URL+"/api/v1/login", map[string]string{
		"email": "alice@example.com", "password": "wrongpassword",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid credentials", out["error"])
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)

	resp, out := postJSON(t, ts.URL+"/api/v1/register", map[string]string{
		"email": "not-an-email", "username": "alice", "password": "correcthorse",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, out["error"])

	resp, _ = postJSON(t, ts.URL+"/api/v1/register", map[string]string{
		"email": "alice@example.com", "username": "alice", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetUserOmitsSecrets(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := postJSON(t, ts.URL+"/api/v1/register", map[string]string{
		"email": "alice@example.com", "username": "alice", "password": "correcthorse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	httpResp, err := http.Get(ts.URL + "/api/v1/user?email=alice@example.com")
	require.NoError(t, err)
	defer httpResp.Body.Close()
	require.Equal(t, http.StatusOK, httpResp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&out))
	assert.Equal(t, "alice", out["username"])
	assert.NotContains(t, out, "token")
	assert.NotContains(t, out, "password_hash")

	httpResp, err = http.Get(ts.URL + "/api/v1/user?email=ghost@example.com")
	require.NoError(t, err)
	httpResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, httpResp.StatusCode)
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialWS(t *testing.T, ts *httptest.Server) *wsClient {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(action string, data any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(protocol.Message{Action: action, Data: data}))
}

type receivedFrame struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

func (c *wsClient) recv() receivedFrame {
	c.t.Helper()

	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := c.conn.ReadMessage()
	require.NoError(c.t, err)

	var frame receivedFrame
	require.NoError(c.t, json.Unmarshal(raw, &frame))
	return frame
}

func (c *wsClient) recvAction(action string) json.RawMessage {
	c.t.Helper()
	frame := c.recv()
	require.Equal(c.t, action, frame.Action)
	return frame.Data
}

func TestRoomLifecycleOverWebsocket(t *testing.T) {
	ts := newTestServer(t)

	alice := dialWS(t, ts)
	alice.send(protocol.ActionCreateRoom, protocol.CreateRoomData{
		VideoSource: "https://v.example/movie.mp4",
		Email:       "alice@example.com",
		Timestamp:   protocol.Timestamp{Start: 0, End: 100, Current: 0},
	})

	var created struct {
		Peer  protocol.Peer            `json:"peer"`
		Peers map[string]protocol.Peer `json:"peers"`
		Room  protocol.Room            `json:"room"`
	}
	require.NoError(t, json.Unmarshal(alice.recvAction(protocol.ActionUserJoined), &created))
	require.NotEmpty(t, created.Room.ID)
	assert.Equal(t, "alice@example.com", created.Peer.Email)
	assert.Len(t, created.Peers, 1)
	assert.Equal(t, "https://v.example/movie.mp4", created.Room.VideoSource)
	roomID := created.Room.ID

	bob := dialWS(t, ts)
	bob.send(protocol.ActionJoinRoom, protocol.JoinRoomData{RoomID: roomID, Email: "bob@example.com"})

	// Both members see the join with the full peer set.
	for _, c := range []*wsClient{alice, bob} {
		var joined struct {
			Peer  protocol.Peer            `json:"peer"`
			Peers map[string]protocol.Peer `json:"peers"`
		}
		require.NoError(t, json.Unmarshal(c.recvAction(protocol.ActionUserJoined), &joined))
		assert.Equal(t, "bob@example.com", joined.Peer.Email)
		assert.Len(t, joined.Peers, 2)
	}

	// Chat fans out to everyone, sender included.
	bob.send(protocol.ActionChatMessage, protocol.ChatMessage{
		ID: "1", Message: "hello", Email: "bob@example.com", Timestamp: "1/2/2026, 3:04:05 PM", RoomID: roomID,
	})
	for _, c := range []*wsClient{alice, bob} {
		var chat protocol.ChatMessage
		require.NoError(t, json.Unmarshal(c.recvAction(protocol.ActionChatMessage), &chat))
		assert.Equal(t, "hello", chat.Message)
		assert.Equal(t, "bob@example.com", chat.Email)
	}

	// A pause broadcast comes back under the "state" key.
	alice.send(protocol.ActionPlayerState, protocol.PlayerStateData{RoomID: roomID, Email: "alice@example.com", Paused: true})
	for _, c := range []*wsClient{alice, bob} {
		var state struct {
			Email string `json:"email"`
			State bool   `json:"state"`
			Room  string `json:"room"`
		}
		require.NoError(t, json.Unmarshal(c.recvAction(protocol.ActionUpdatePlayerState), &state))
		assert.Equal(t, "alice@example.com", state.Email)
		assert.True(t, state.State)
		assert.Equal(t, roomID, state.Room)
	}

	// Seek broadcast.
	alice.send(protocol.ActionUpdateTimestamp, protocol.VideoSyncData{RoomID: roomID, Email: "alice@example.com", Timestamp: 42.5, Seeking: false})
	for _, c := range []*wsClient{alice, bob} {
		var sync struct {
			Email     string  `json:"email"`
			Timestamp float64 `json:"timestamp"`
			Seeking   bool    `json:"seeking"`
		}
		require.NoError(t, json.Unmarshal(c.recvAction(protocol.ActionUpdateTimestamp), &sync))
		assert.Equal(t, 42.5, sync.Timestamp)
		assert.False(t, sync.Seeking)
	}

	// Bob leaves; alice is told who left and keeps the trimmed peer set.
	bob.send(protocol.ActionLeaveRoom, protocol.LeaveRoomData{RoomID: roomID, Email: "bob@example.com"})
	var left struct {
		Email string                   `json:"email"`
		Peers map[string]protocol.Peer `json:"peers"`
	}
	require.NoError(t, json.Unmarshal(alice.recvAction(protocol.ActionUserLeft), &left))
	assert.Equal(t, "bob@example.com", left.Email)
	assert.Len(t, left.Peers, 1)
}

func TestJoinErrors(t *testing.T) {
	ts := newTestServer(t)

	client := dialWS(t, ts)
	client.send(protocol.ActionJoinRoom, protocol.JoinRoomData{RoomID: "no-such-room", Email: "alice@example.com"})

	var errData struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(client.recvAction(protocol.ActionError), &errData))
	assert.Equal(t, "Room not found", errData.Message)
}

func TestRoomFull(t *testing.T) {
	ts := newTestServer(t)

	alice := dialWS(t, ts)
	alice.send(protocol.ActionCreateRoom, protocol.CreateRoomData{
		VideoSource: "https://v.example/movie.mp4",
		Email:       "u0@example.com",
		Timestamp:   protocol.Timestamp{Start: 0, End: 100, Current: 0},
	})
	var created struct {
		Room protocol.Room `json:"room"`
	}
	require.NoError(t, json.Unmarshal(alice.recvAction(protocol.ActionUserJoined), &created))
	roomID := created.Room.ID

	// MembersLimit is 3: two more fit, the fourth is rejected.
	for _, email := range []string{"u1@example.com", "u2@example.com"} {
		c := dialWS(t, ts)
		c.send(protocol.ActionJoinRoom, protocol.JoinRoomData{RoomID: roomID, Email: email})
		c.recvAction(protocol.ActionUserJoined)
	}

	last := dialWS(t, ts)
	last.send(protocol.ActionJoinRoom, protocol.JoinRoomData{RoomID: roomID, Email: "u3@example.com"})
	var errData struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(last.recvAction(protocol.ActionError), &errData))
	assert.Equal(t, "Room is full", errData.Message)
}

func TestMalformedAndUnknownFrames(t *testing.T) {
	ts := newTestServer(t)
	client := dialWS(t, ts)

	require.NoError(t, client.conn.WriteMessage(websocket.TextMessage, []byte("{{{")))
	var errData struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(client.recvAction(protocol.ActionError), &errData))
	assert.Equal(t, "Invalid message format", errData.Message)

	client.send("no_such_action", map[string]string{})
	require.NoError(t, json.Unmarshal(client.recvAction(protocol.ActionError), &errData))
	assert.Equal(t, "Unknown message action", errData.Message)
}

func TestCreateRoomRejectsBadTimestampWindow(t *testing.T) {
	ts := newTestServer(t)
	client := dialWS(t, ts)

	client.send(protocol.ActionCreateRoom, protocol.CreateRoomData{
		VideoSource: "https://v.example/movie.mp4",
		Email:       "alice@example.com",
		Timestamp:   protocol.Timestamp{Start: 100, End: 0, Current: 0},
	})

	var errData struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(client.recvAction(protocol.ActionError), &errData))
	assert.Contains(t, errData.Message, "invalid timestamp window")
}

func TestDisconnectRemovesPeer(t *testing.T) {
	ts := newTestServer(t)

	alice := dialWS(t, ts)
	alice.send(protocol.ActionCreateRoom, protocol.CreateRoomData{
		VideoSource: "https://v.example/movie.mp4",
		Email:       "alice@example.com",
		Timestamp:   protocol.Timestamp{Start: 0, End: 100, Current: 0},
	})
	var created struct {
		Room protocol.Room `json:"room"`
	}
	require.NoError(t, json.Unmarshal(alice.recvAction(protocol.ActionUserJoined), &created))
	roomID := created.Room.ID

	bob := dialWS(t, ts)
	bob.send(protocol.ActionJoinRoom, protocol.JoinRoomData{RoomID: roomID, Email: "bob@example.com"})
	alice.recvAction(protocol.ActionUserJoined)
	bob.recvAction(protocol.ActionUserJoined)

	// Dropping the socket is treated as leaving.
	bob.conn.Close()

	var left struct {
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(alice.recvAction(protocol.ActionUserLeft), &left))
	assert.Equal(t, "bob@example.com", left.Email)
}
