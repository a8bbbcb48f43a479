package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/voicekey/voicekey/internal/analysis"
	"github.com/voicekey/voicekey/internal/api/handlers"
	"github.com/voicekey/voicekey/internal/api/middleware"
	"github.com/voicekey/voicekey/internal/auth"
	"github.com/voicekey/voicekey/internal/cache"
	"github.com/voicekey/voicekey/internal/config"
	"github.com/voicekey/voicekey/internal/engine"
	"github.com/voicekey/voicekey/internal/enroll"
	"github.com/voicekey/voicekey/internal/queue"
	"github.com/voicekey/voicekey/internal/similarity"
	"github.com/voicekey/voicekey/internal/store"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	jwt   *auth.JWTMiddleware
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		jwt:   auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Initialize services
	profileStore := store.NewProfileStore(rt.db, cache.NewCache(rt.redis))
	scorer := similarity.NewScorer(rt.cfg.Matching.MinSampleDuration)
	gateway := analysis.NewGateway(rt.cfg.Analysis)
	queueClient := queue.NewClient(rt.cfg.Redis)

	eng := engine.New(profileStore, scorer, gateway, rt.cfg.Matching)
	enrollSvc := enroll.NewService(profileStore, scorer, gateway, queueClient, rt.cfg.Matching)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		// Authentication
		authH := handlers.NewAuthenticateHandler(eng)
		r.Post("/authenticate", authH.Authenticate)

		// Profile routes
		profileH := handlers.NewProfileHandler(profileStore, enrollSvc)
		r.Route("/profiles", func(r chi.Router) {
			r.Post("/", profileH.Create)
			r.Get("/", profileH.List)
			r.Get("/{id}", profileH.Get)
			r.Delete("/{id}", profileH.Deactivate)
			r.Get("/{id}/attempts", profileH.Attempts)
			r.Post("/{id}/sessions", profileH.StartSession)
		})

		// Enrollment session routes
		sessionH := handlers.NewSessionHandler(profileStore, enrollSvc)
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/{id}", sessionH.Get)
			r.Post("/{id}/samples", sessionH.AddSample)
			r.Delete("/{id}", sessionH.Abandon)
		})

		// Admin routes
		adminH := handlers.NewAdminHandler(profileStore)
		r.Route("/admin", func(r chi.Router) {
			r.Get("/stats", adminH.Stats)
			r.Get("/attempts", adminH.RecentAttempts)
		})
	})

	return r
}
