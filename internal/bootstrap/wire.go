package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	logx "voxchat/pkg/logger"

	"voxchat/internal/audio"
	"voxchat/internal/config"
	"voxchat/internal/conversation"
	"voxchat/internal/events"
	"voxchat/internal/ports"
	"voxchat/internal/relay"
	"voxchat/internal/remote"
	"voxchat/internal/retry"
	"voxchat/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.TurnController
	Config     config.Config
	SessionID  string
	Bus        *events.Bus
	Relay      *relay.Server

	redis *redis.Client
}

// Close releases the bus and the redis connection, if any.
func (s Services) Close() error {
	var errs []error
	if s.Bus != nil {
		errs = append(errs, s.Bus.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	return errors.Join(errs...)
}

// Build wires all backend dependencies for the current runtime. ctx bounds
// the lifetime of the status relay.
func Build(ctx context.Context, eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Environment(), Level: cfg.LogLevel})

	services := Services{Config: cfg, SessionID: uuid.NewString()}

	var store ports.ConversationStore = conversation.NewMemoryStore()
	if cfg.Conversation.RedisURL != "" {
		client, err := openRedis(ctx, cfg.Conversation.RedisURL)
		if err != nil {
			return Services{}, fmt.Errorf("connect conversation store: %w", err)
		}
		services.redis = client
		store = conversation.NewRedisStore(client, services.SessionID, cfg.Conversation.RedisTTL)
		logx.Info().Str("session", services.SessionID).Msg("conversation history stored in redis")
	}

	services.Bus = events.NewBus()
	sink := events.NewFanout(eventSink, services.Bus)

	recorder := audio.NewRecorder(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
		cfg.Audio.ChunkSize,
	)

	services.Controller = usecase.NewTurnController(
		recorder,
		remote.NewClient(remote.Config{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout}),
		store,
		conversation.NewSpeechCache(cfg.Conversation.SpeechCacheTTL),
		audio.NewFFPlayPlayer(cfg.Audio.PlayerCommand),
		sink,
		usecase.Config{
			Language: cfg.DefaultLanguage(),
			Policy:   retry.NewPolicy(),
		},
	)

	if cfg.Relay.Addr != "" {
		services.Relay = startRelay(ctx, services.Bus, cfg.Relay.Addr)
	}

	return services, nil
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.DialTimeout = 5 * time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func startRelay(ctx context.Context, source relay.Source, addr string) *relay.Server {
	srv := relay.NewServer(source)
	go func() {
		if err := srv.ListenAndServe(ctx, addr); err != nil {
			logx.Error().Err(err).Str("addr", addr).Msg("status relay stopped")
		}
	}()
	return srv
}
