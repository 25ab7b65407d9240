package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pliu/pairchat/internal/auth"
	"github.com/pliu/pairchat/internal/chat"
	"github.com/pliu/pairchat/internal/config"
	"github.com/pliu/pairchat/internal/email"
	"github.com/pliu/pairchat/internal/handlers"
	"github.com/pliu/pairchat/internal/metrics"
	"github.com/pliu/pairchat/internal/notify"
	"github.com/pliu/pairchat/internal/notify/fcm"
	"github.com/pliu/pairchat/internal/store/sqlstore"
	"github.com/pliu/pairchat/internal/ws"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if cfg.Format == "console" {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// Initialize Database
	st, err := sqlstore.New(cfg.Database.Driver, cfg.Database.DSN, log)
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	var gateway notify.PushGateway
	if cfg.Push.GatewayURL != "" {
		gateway = fcm.NewClient(log, cfg.Push.GatewayURL, cfg.Push.ServerKey, cfg.Push.Timeout)
	} else {
		log.Warn().Msg("No push gateway configured, notifications will only be logged")
	}
	dispatcher := notify.NewDispatcher(st, gateway, cfg.ServiceName, log, m)

	svc := chat.NewService(st, dispatcher, log, m)
	svc.NotifyTimeout = cfg.Push.NotifyTimeout

	// Initialize WebSocket Hub
	hub := ws.NewHub(log, m)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		hub.SetRelay(ws.NewRedisRelay(rdb, cfg.Redis.Channel, log))
	}
	svc.AddListener(hub)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	router := handlers.NewRouter(handlers.RouterConfig{
		Store:          st,
		Chat:           svc,
		Tokens:         auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Mailer:         email.NewSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, cfg.ServiceName, log),
		Log:            log,
		Metrics:        m,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		AuthRateLimit:  cfg.HTTP.AuthRateLimit,
		AuthRateBurst:  cfg.HTTP.AuthRateBurst,
		Live:           hub,
		MetricsHandler: promhttp.Handler(),
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Str("db_driver", cfg.Database.Driver).Msg("Starting server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err = <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Server did not shut down cleanly")
	}
	stopHub()
	svc.Wait()
	return nil
}
