package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/pliu/pairchat/internal/auth"
	"github.com/pliu/pairchat/internal/chat"
	"github.com/pliu/pairchat/internal/metrics"
	"github.com/pliu/pairchat/internal/middleware"
	"github.com/pliu/pairchat/internal/store"
)

type RouterConfig struct {
	Store   store.Store
	Chat    *chat.Service
	Tokens  *auth.Tokens
	Mailer  VerificationMailer
	Log     zerolog.Logger
	Metrics *metrics.Metrics

	AllowedOrigins []string
	// AuthRateLimit is the sustained requests per second allowed per client
	// IP on the unauthenticated routes. Zero disables limiting.
	AuthRateLimit float64
	AuthRateBurst int

	// Live serves authenticated websocket connections, if set.
	Live http.Handler
	// MetricsHandler is mounted on /metrics, if set.
	MetricsHandler http.Handler
}

// NewRouter builds the HTTP API. CORS wraps the router rather than running as
// route middleware so preflight requests reach it.
func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := &AuthHandler{Store: cfg.Store, Tokens: cfg.Tokens}
	userHandler := &UserHandler{Store: cfg.Store}
	verifyHandler := &VerifyHandler{Store: cfg.Store, Mailer: cfg.Mailer}
	chatHandler := &ChatHandler{Chat: cfg.Chat}
	contactHandler := &ContactHandler{Chat: cfg.Chat}
	healthHandler := &HealthHandler{Store: cfg.Store}

	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(cfg.Log), middleware.LoggingMiddleware, middleware.MetricsMiddleware(cfg.Metrics))

	r.HandleFunc("/healthz", healthHandler.Health).Methods("GET")
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler).Methods("GET")
	}

	public := r.NewRoute().Subrouter()
	if cfg.AuthRateLimit > 0 {
		public.Use(middleware.RateLimit(cfg.AuthRateLimit, cfg.AuthRateBurst))
	}
	public.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	public.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
	public.HandleFunc("/verify/request", verifyHandler.Request).Methods("POST")
	public.HandleFunc("/verify/confirm", verifyHandler.Confirm).Methods("POST")

	private := r.NewRoute().Subrouter()
	private.Use(middleware.AuthMiddleware(cfg.Tokens))
	private.HandleFunc("/users/me", userHandler.Me).Methods("GET")
	private.HandleFunc("/users", userHandler.List).Methods("GET")
	private.HandleFunc("/users/me/push-token", userHandler.SetPushToken).Methods("PATCH")
	private.HandleFunc("/users/me/profile-image", userHandler.SetProfileImage).Methods("PATCH")
	private.HandleFunc("/chatrooms", chatHandler.CreateRoom).Methods("POST")
	private.HandleFunc("/chatrooms", chatHandler.ListRooms).Methods("GET")
	private.HandleFunc("/messages", chatHandler.SendMessage).Methods("POST")
	private.HandleFunc("/messages/{roomId}/messages", chatHandler.ListMessages).Methods("GET")
	private.HandleFunc("/contacts", contactHandler.Add).Methods("POST")
	private.HandleFunc("/contacts", contactHandler.List).Methods("GET")
	private.HandleFunc("/contacts/{contactId}", contactHandler.Remove).Methods("DELETE")
	if cfg.Live != nil {
		private.Handle("/ws", cfg.Live).Methods("GET")
	}

	if len(cfg.AllowedOrigins) > 0 {
		return middleware.CORS(cfg.AllowedOrigins)(r)
	}
	return r
}
