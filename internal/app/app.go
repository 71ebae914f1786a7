package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goparty/client/internal/connection"
	"github.com/goparty/client/internal/identity"
	"github.com/goparty/client/internal/notification"
	"github.com/goparty/client/internal/playback"
	"github.com/goparty/client/internal/session"
	"github.com/goparty/client/pkg/ctxlogger"
	"github.com/goparty/client/pkg/validator"
)

type AppConfig struct {
	ServerURL      string        `json:"server_url"`
	APIURL         string        `json:"api_url"`
	LogLevel       string        `json:"log_level"`
	IdentityPath   string        `json:"identity_path"`
	ReconnectDelay time.Duration `json:"reconnect_delay"`
	PingInterval   time.Duration `json:"ping_interval"`
	DriftTolerance float64       `json:"drift_tolerance"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.ServerURL == "" {
		return fmt.Errorf("server url must be set")
	}
	if cfg.APIURL == "" {
		return fmt.Errorf("api url must be set")
	}
	if cfg.IdentityPath == "" {
		return fmt.Errorf("identity path must be set")
	}
	return nil
}

// Run wires the client together and drives it until interrupted.
func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		log.Fatal(err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}),
	}
	logger := slog.New(h)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	identities := identity.NewStore(cfg.IdentityPath)
	auth := identity.NewAuthClient(cfg.APIURL)
	notifier := newConsoleNotifier(logger)

	player := playback.NewHeadless()
	corrector := playback.NewCorrector(player, cfg.DriftTolerance, logger)

	manager := connection.NewManager(connection.Config{
		URL:            cfg.ServerURL,
		ReconnectDelay: cfg.ReconnectDelay,
	}, notifier, logger)
	defer manager.Close()

	sess := session.New(manager, identities, player, corrector, notifier, validator.NewValidator(), logger, &session.Config{
		PingInterval: cfg.PingInterval,
	})

	if err := manager.Connect(ctx); err != nil {
		logger.WarnContext(ctx, "initial connect failed, retrying in background", "error", err)
	}

	sessionDone := make(chan error, 1)
	go func() {
		sessionDone <- sess.Run(ctx)
	}()

	repl := newREPL(sess, identities, auth, player, logger)
	replDone := make(chan error, 1)
	go func() {
		replDone <- repl.run(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-replDone:
		return err
	case err := <-sessionDone:
		return err
	}
}

// consoleNotifier prints notifications for the interactive user and mirrors
// them into the structured log.
type consoleNotifier struct {
	logger *slog.Logger
}

func newConsoleNotifier(logger *slog.Logger) *consoleNotifier {
	return &consoleNotifier{logger: logger}
}

func (cn *consoleNotifier) Notify(ctx context.Context, n notification.Notification) {
	fmt.Printf("[%s] %s: %s\n", n.Severity, n.Title, n.Description)

	level := slog.LevelInfo
	if n.Severity == notification.SeverityError {
		level = slog.LevelError
	}
	cn.logger.Log(ctx, level, n.Title, "description", n.Description)
}
