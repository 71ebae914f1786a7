package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/goparty/client/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	serverURL = configVar[string]{
		envKey:       "GOPARTY_SERVER_URL",
		flagKey:      "server-url",
		defaultValue: "ws://localhost:8080/ws",
	}
	apiURL = configVar[string]{
		envKey:       "GOPARTY_API_URL",
		flagKey:      "api-url",
		defaultValue: "http://localhost:8080",
	}
	logLevel = configVar[string]{
		envKey:       "GOPARTY_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	identityPath = configVar[string]{
		envKey:       "GOPARTY_IDENTITY_PATH",
		flagKey:      "identity-path",
		defaultValue: defaultIdentityPath(),
	}
	reconnectDelay = configVar[time.Duration]{
		envKey:       "GOPARTY_RECONNECT_DELAY",
		flagKey:      "reconnect-delay",
		defaultValue: 5 * time.Second,
	}
	pingInterval = configVar[time.Duration]{
		envKey:       "GOPARTY_PING_INTERVAL",
		flagKey:      "ping-interval",
		defaultValue: 10 * time.Second,
	}
	driftTolerance = configVar[float64]{
		envKey:       "GOPARTY_DRIFT_TOLERANCE",
		flagKey:      "drift-tolerance",
		defaultValue: 2.0,
	}
)

func defaultIdentityPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".goparty/identity.json"
	}
	return filepath.Join(home, ".goparty", "identity.json")
}

func loadAppConfig() *app.AppConfig {
	pflag.String(serverURL.flagKey, serverURL.defaultValue, "Websocket endpoint of the party server")
	pflag.String(apiURL.flagKey, apiURL.defaultValue, "Base URL of the party REST API")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.String(identityPath.flagKey, identityPath.defaultValue, "Path of the cached identity file")
	pflag.Duration(reconnectDelay.flagKey, reconnectDelay.defaultValue, "Delay before reconnecting after an abnormal closure")
	pflag.Duration(pingInterval.flagKey, pingInterval.defaultValue, "Keepalive ping interval")
	pflag.Float64(driftTolerance.flagKey, driftTolerance.defaultValue, "Playback drift tolerance in seconds")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(serverURL.flagKey, serverURL.envKey)
	viper.BindEnv(apiURL.flagKey, apiURL.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(identityPath.flagKey, identityPath.envKey)
	viper.BindEnv(reconnectDelay.flagKey, reconnectDelay.envKey)
	viper.BindEnv(pingInterval.flagKey, pingInterval.envKey)
	viper.BindEnv(driftTolerance.flagKey, driftTolerance.envKey)

	viper.SetDefault(serverURL.flagKey, serverURL.defaultValue)
	viper.SetDefault(apiURL.flagKey, apiURL.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(identityPath.flagKey, identityPath.defaultValue)
	viper.SetDefault(reconnectDelay.flagKey, reconnectDelay.defaultValue)
	viper.SetDefault(pingInterval.flagKey, pingInterval.defaultValue)
	viper.SetDefault(driftTolerance.flagKey, driftTolerance.defaultValue)

	return &app.AppConfig{
		ServerURL:      viper.GetString(serverURL.flagKey),
		APIURL:         viper.GetString(apiURL.flagKey),
		LogLevel:       viper.GetString(logLevel.flagKey),
		IdentityPath:   viper.GetString(identityPath.flagKey),
		ReconnectDelay: viper.GetDuration(reconnectDelay.flagKey),
		PingInterval:   viper.GetDuration(pingInterval.flagKey),
		DriftTolerance: viper.GetFloat64(driftTolerance.flagKey),
	}
}

func main() {
	godotenv.Load()

	ctx := context.Background()
	appConfig := loadAppConfig()

	if err := app.Run(ctx, appConfig); err != nil {
		log.Fatal(err)
	}
}
