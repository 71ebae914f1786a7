package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/goparty/client/internal/identity"
	"github.com/goparty/client/internal/playback"
	"github.com/goparty/client/internal/session"
)

// repl is the terminal view layer: it translates typed commands into session
// intents and renders snapshots. It never mutates session state directly.
type repl struct {
	sess       *session.Session
	identities *identity.Store
	auth       *identity.AuthClient
	player     playback.Player
	logger     *slog.Logger
}

func newREPL(sess *session.Session, identities *identity.Store, auth *identity.AuthClient, player playback.Player, logger *slog.Logger) *repl {
	return &repl{
		sess:       sess,
		identities: identities,
		auth:       auth,
		player:     player,
		logger:     logger,
	}
}

const replHelp = `commands:
  register <email> <username> <password>
  login <email> <password>
  logout
  create <video-url>
  join <room-id>
  leave
  say <message>
  play | pause
  seek <seconds>
  status
  quit`

func (r *repl) run(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, replHelp)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		switch cmd {
		case "register":
			fields := strings.Fields(rest)
			if len(fields) != 3 {
				fmt.Fprintln(out, "usage: register <email> <username> <password>")
				continue
			}
			r.register(ctx, out, fields[0], fields[1], fields[2])
		case "login":
			fields := strings.Fields(rest)
			if len(fields) != 2 {
				fmt.Fprintln(out, "usage: login <email> <password>")
				continue
			}
			r.login(ctx, out, fields[0], fields[1])
		case "logout":
			if err := r.identities.Clear(); err != nil {
				fmt.Fprintf(out, "logout failed: %v\n", err)
			} else {
				fmt.Fprintln(out, "logged out")
			}
		case "create":
			if rest == "" {
				fmt.Fprintln(out, "usage: create <video-url>")
				continue
			}
			r.sess.CreateRoom(rest)
		case "join":
			if rest == "" {
				fmt.Fprintln(out, "usage: join <room-id>")
				continue
			}
			r.sess.JoinRoom(rest)
		case "leave":
			r.sess.LeaveRoom()
		case "say":
			if rest == "" {
				fmt.Fprintln(out, "usage: say <message>")
				continue
			}
			r.sess.SendChat(rest)
		case "play":
			r.player.Play()
		case "pause":
			r.player.Pause()
		case "seek":
			seconds, err := strconv.ParseFloat(rest, 64)
			if err != nil {
				fmt.Fprintln(out, "usage: seek <seconds>")
				continue
			}
			r.sess.Seek(seconds)
		case "status":
			r.printStatus(out)
		case "help":
			fmt.Fprintln(out, replHelp)
		case "quit", "exit":
			return nil
		default:
			fmt.Fprintf(out, "unknown command %q (try help)\n", cmd)
		}
	}

	return scanner.Err()
}

func (r *repl) register(ctx context.Context, out io.Writer, email, username, password string) {
	ident, err := r.auth.Register(ctx, email, username, password)
	if err != nil {
		fmt.Fprintf(out, "register failed: %v\n", err)
		return
	}
	if err := r.identities.Save(ident); err != nil {
		fmt.Fprintf(out, "failed to save identity: %v\n", err)
		return
	}
	fmt.Fprintf(out, "registered as %s\n", ident.Email)
}

func (r *repl) login(ctx context.Context, out io.Writer, email, password string) {
	ident, err := r.auth.Login(ctx, email, password)
	if err != nil {
		fmt.Fprintf(out, "login failed: %v\n", err)
		return
	}
	if err := r.identities.Save(ident); err != nil {
		fmt.Fprintf(out, "failed to save identity: %v\n", err)
		return
	}
	fmt.Fprintf(out, "logged in as %s\n", ident.Email)
}

func (r *repl) printStatus(out io.Writer) {
	snapshot := r.sess.Snapshot()

	fmt.Fprintf(out, "connection: %s\n", snapshot.Connection)
	if ident, ok := r.identities.Current(); ok {
		fmt.Fprintf(out, "identity:   %s\n", ident.Email)
	} else {
		fmt.Fprintln(out, "identity:   (not logged in)")
	}

	if snapshot.Room.ID == "" {
		fmt.Fprintln(out, "room:       (none)")
		return
	}

	fmt.Fprintf(out, "room:       %s\n", snapshot.Room.ID)
	fmt.Fprintf(out, "video:      %s\n", snapshot.CurrentVideo)
	fmt.Fprintf(out, "position:   %.1fs\n", r.player.CurrentTime())
	fmt.Fprintf(out, "peers (%d):\n", len(snapshot.Peers))
	for _, peer := range snapshot.Peers {
		fmt.Fprintf(out, "  %s (joined %s)\n", peer.Email, peer.JoinedAt.Format("15:04:05"))
	}
	if len(snapshot.Chat) > 0 {
		fmt.Fprintln(out, "chat:")
		for _, msg := range snapshot.Chat {
			fmt.Fprintf(out, "  [%s] %s: %s\n", msg.Timestamp, msg.Email, msg.Message)
		}
	}
}
