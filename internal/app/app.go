package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cinestream/watchparty/internal/controller"
	"github.com/cinestream/watchparty/internal/hub"
	connInmemory "github.com/cinestream/watchparty/internal/repository/connection/inmemory"
	"github.com/cinestream/watchparty/internal/repository/presence"
	presenceInmemory "github.com/cinestream/watchparty/internal/repository/presence/inmemory"
	presenceRedis "github.com/cinestream/watchparty/internal/repository/presence/redis"
	roomInmemory "github.com/cinestream/watchparty/internal/repository/room/inmemory"
	"github.com/cinestream/watchparty/internal/service/notification"
	"github.com/cinestream/watchparty/internal/service/watchparty"
	"github.com/cinestream/watchparty/pkg/ctxlogger"
	"github.com/cinestream/watchparty/pkg/identity"
	"github.com/cinestream/watchparty/pkg/redisclient"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	PresenceBackendMemory = "memory"
	PresenceBackendRedis  = "redis"
)

type AppConfig struct {
	Secret           string        `json:"-"`
	Host             string        `json:"host"`
	Port             int           `json:"port"`
	LogLevel         string        `json:"log_level"`
	PresenceBackend  string        `json:"presence_backend"`
	PresenceTTL      time.Duration `json:"presence_ttl"`
	RedisPort        int           `json:"redis_port"`
	RedisHost        string        `json:"redis_host"`
	RedisPassword    string        `json:"-"`
	WSMaxMessageSize int64         `json:"ws_max_message_size"`
	WSSendBuffer     int           `json:"ws_send_buffer"`
	WSPingInterval   time.Duration `json:"ws_ping_interval"`
	WSPongWait       time.Duration `json:"ws_pong_wait"`
	WSWriteWait      time.Duration `json:"ws_write_wait"`
}

func (cfg *AppConfig) Validate() error {
	if err := validation.ValidateStruct(cfg,
		validation.Field(&cfg.Secret, validation.Required, validation.Length(16, 0)),
		validation.Field(&cfg.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&cfg.LogLevel, validation.Required),
		validation.Field(&cfg.PresenceBackend, validation.Required, validation.In(PresenceBackendMemory, PresenceBackendRedis)),
		validation.Field(&cfg.PresenceTTL, validation.When(cfg.PresenceBackend == PresenceBackendRedis, validation.Required)),
		validation.Field(&cfg.RedisHost, validation.When(cfg.PresenceBackend == PresenceBackendRedis, validation.Required)),
		validation.Field(&cfg.RedisPort, validation.When(cfg.PresenceBackend == PresenceBackendRedis, validation.Required, validation.Max(65535))),
		validation.Field(&cfg.WSMaxMessageSize, validation.Required, validation.Min(int64(1))),
		validation.Field(&cfg.WSSendBuffer, validation.Required, validation.Min(1)),
		validation.Field(&cfg.WSPingInterval, validation.Required),
		validation.Field(&cfg.WSPongWait, validation.Required),
		validation.Field(&cfg.WSWriteWait, validation.Required),
	); err != nil {
		return err
	}

	if cfg.WSPingInterval >= cfg.WSPongWait {
		return errors.New("ws ping interval must be shorter than ws pong wait")
	}

	return nil
}

func (cfg *AppConfig) clientConfig() hub.Config {
	return hub.Config{
		SendBuffer:     cfg.WSSendBuffer,
		MaxMessageSize: cfg.WSMaxMessageSize,
		PingInterval:   cfg.WSPingInterval,
		PongWait:       cfg.WSPongWait,
		WriteWait:      cfg.WSWriteWait,
	}
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

type iPresenceRepo interface {
	AddParticipant(context.Context, *presence.AddParticipantParams) error
	RemoveParticipant(context.Context, *presence.RemoveParticipantParams) error
	GetParticipants(ctx context.Context, roomID string) ([]presence.Participant, error)
	CountParticipants(ctx context.Context, roomID string) (int, error)
	IncrOnline(context.Context) (int64, error)
	DecrOnline(context.Context) (int64, error)
	GetOnline(context.Context) (int64, error)
}

type server struct {
	handler http.Handler
	hub     *hub.Hub
	closers []func() error
}

func (s *server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newServer(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (*server, error) {
	s := &server{}

	var presenceRepo iPresenceRepo
	switch cfg.PresenceBackend {
	case PresenceBackendRedis:
		rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
			Port:     cfg.RedisPort,
			Host:     cfg.RedisHost,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		s.closers = append(s.closers, rc.Close)
		presenceRepo = presenceRedis.NewRepo(rc, cfg.PresenceTTL, logger)
	default:
		presenceRepo = presenceInmemory.NewRepo()
	}

	s.hub = hub.New(logger)
	watchPartyService := watchparty.NewService(
		roomInmemory.NewRepo(logger),
		connInmemory.NewRepo(logger),
		presenceRepo,
		s.hub,
		logger,
	)
	notificationService := notification.NewService(presenceRepo, s.hub, logger)

	c := controller.NewController(
		watchPartyService,
		notificationService,
		s.hub,
		identity.NewTokens(cfg.Secret),
		cfg.clientConfig(),
		logger,
	)
	s.handler = c.GetMux()

	return s, nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(os.Stdout, cfg.LogLevel)
	if err != nil {
		return err
	}

	s, err := newServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.close()

	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: s.handler}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		// hijacked websocket connections are not tracked by Shutdown
		s.hub.CloseAll()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server",
		"address", server.Addr,
		"presence_backend", cfg.PresenceBackend,
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
