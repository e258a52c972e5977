package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cinestream/watchparty/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	secret = configVar[string]{
		envKey:       "SERVER_SECRET",
		flagKey:      "secret",
		defaultValue: "",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 8080,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	presenceBackend = configVar[string]{
		envKey:       "SERVER_PRESENCE_BACKEND",
		flagKey:      "presence-backend",
		defaultValue: app.PresenceBackendMemory,
	}
	presenceTTL = configVar[time.Duration]{
		envKey:       "SERVER_PRESENCE_TTL",
		flagKey:      "presence-ttl",
		defaultValue: 24 * time.Hour,
	}
	wsMaxMessageSize = configVar[int64]{
		envKey:       "SERVER_WS_MAX_MESSAGE_SIZE",
		flagKey:      "ws-max-message-size",
		defaultValue: 4096,
	}
	wsSendBuffer = configVar[int]{
		envKey:       "SERVER_WS_SEND_BUFFER",
		flagKey:      "ws-send-buffer",
		defaultValue: 256,
	}
	wsPingInterval = configVar[time.Duration]{
		envKey:       "SERVER_WS_PING_INTERVAL",
		flagKey:      "ws-ping-interval",
		defaultValue: 54 * time.Second,
	}
	wsPongWait = configVar[time.Duration]{
		envKey:       "SERVER_WS_PONG_WAIT",
		flagKey:      "ws-pong-wait",
		defaultValue: 60 * time.Second,
	}
	wsWriteWait = configVar[time.Duration]{
		envKey:       "SERVER_WS_WRITE_WAIT",
		flagKey:      "ws-write-wait",
		defaultValue: 10 * time.Second,
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.String(secret.flagKey, secret.defaultValue, "Secret used to sign and verify identity tokens (required, at least 16 bytes)")
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.String(presenceBackend.flagKey, presenceBackend.defaultValue, "Presence backend (memory or redis)")
	pflag.Duration(presenceTTL.flagKey, presenceTTL.defaultValue, "Expiry of presence keys in redis")
	pflag.Int64(wsMaxMessageSize.flagKey, wsMaxMessageSize.defaultValue, "Maximum size of an inbound websocket message in bytes")
	pflag.Int(wsSendBuffer.flagKey, wsSendBuffer.defaultValue, "Outbound queue length per connection")
	pflag.Duration(wsPingInterval.flagKey, wsPingInterval.defaultValue, "Interval between websocket pings")
	pflag.Duration(wsPongWait.flagKey, wsPongWait.defaultValue, "Time a connection may stay silent before it is dropped")
	pflag.Duration(wsWriteWait.flagKey, wsWriteWait.defaultValue, "Deadline for a single websocket write")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(secret.flagKey, secret.envKey)
	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(presenceBackend.flagKey, presenceBackend.envKey)
	viper.BindEnv(presenceTTL.flagKey, presenceTTL.envKey)
	viper.BindEnv(wsMaxMessageSize.flagKey, wsMaxMessageSize.envKey)
	viper.BindEnv(wsSendBuffer.flagKey, wsSendBuffer.envKey)
	viper.BindEnv(wsPingInterval.flagKey, wsPingInterval.envKey)
	viper.BindEnv(wsPongWait.flagKey, wsPongWait.envKey)
	viper.BindEnv(wsWriteWait.flagKey, wsWriteWait.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(secret.flagKey, secret.defaultValue)
	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(presenceBackend.flagKey, presenceBackend.defaultValue)
	viper.SetDefault(presenceTTL.flagKey, presenceTTL.defaultValue)
	viper.SetDefault(wsMaxMessageSize.flagKey, wsMaxMessageSize.defaultValue)
	viper.SetDefault(wsSendBuffer.flagKey, wsSendBuffer.defaultValue)
	viper.SetDefault(wsPingInterval.flagKey, wsPingInterval.defaultValue)
	viper.SetDefault(wsPongWait.flagKey, wsPongWait.defaultValue)
	viper.SetDefault(wsWriteWait.flagKey, wsWriteWait.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	config := &app.AppConfig{
		Secret:           viper.GetString(secret.flagKey),
		Host:             viper.GetString(host.flagKey),
		Port:             viper.GetInt(port.flagKey),
		LogLevel:         viper.GetString(logLevel.flagKey),
		PresenceBackend:  viper.GetString(presenceBackend.flagKey),
		PresenceTTL:      viper.GetDuration(presenceTTL.flagKey),
		RedisPort:        viper.GetInt(redisPort.flagKey),
		RedisHost:        viper.GetString(redisHost.flagKey),
		RedisPassword:    viper.GetString(redisPassword.flagKey),
		WSMaxMessageSize: viper.GetInt64(wsMaxMessageSize.flagKey),
		WSSendBuffer:     viper.GetInt(wsSendBuffer.flagKey),
		WSPingInterval:   viper.GetDuration(wsPingInterval.flagKey),
		WSPongWait:       viper.GetDuration(wsPongWait.flagKey),
		WSWriteWait:      viper.GetDuration(wsWriteWait.flagKey),
	}

	return config
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
