package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "identity.json")
	store := NewStore(path)

	_, ok := store.Current()
	assert.False(t, ok)

	ident := Identity{ID: "u-1", Username: "alice", Email: "alice@example.com", Token: "tok-1"}
	require.NoError(t, store.Save(ident))

	got, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, ident, got)

	// A fresh store reads the same identity back from disk.
	fresh := NewStore(path)
	got, ok = fresh.Current()
	require.True(t, ok)
	assert.Equal(t, ident, got)

	require.NoError(t, store.Clear())
	_, ok = store.Current()
	assert.False(t, ok)
	_, ok = NewStore(path).Current()
	assert.False(t, ok)
}

func TestStoreClearWithoutFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "identity.json"))
	assert.NoError(t, store.Clear())
}

func TestStoreIgnoresCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, ok := NewStore(path).Current()
	assert.False(t, ok)
}

func TestAuthClientLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/login", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req["password"] != "hunter22" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid email or password"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"id": "u-1", "username": "alice", "email": req["email"], "token": "tok-1",
		})
	}))
	defer srv.Close()

	client := NewAuthClient(srv.URL)

	ident, err := client.Login(context.Background(), "alice@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "u-1", Username: "alice", Email: "alice@example.com", Token: "tok-1"}, ident)

	_, err = client.Login(context.Background(), "alice@example.com", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email or password")
}

func TestAuthClientRegister(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/register", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(map[string]string{
			"id": "u-2", "username": req["username"], "email": req["email"], "token": "tok-2",
		})
	}))
	defer srv.Close()

	ident, err := NewAuthClient(srv.URL).Register(context.Background(), "bob@example.com", "bob", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "u-2", ident.ID)
	assert.Equal(t, "bob", ident.Username)
	assert.Equal(t, "tok-2", ident.Token)
}
