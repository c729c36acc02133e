// Package server is the composition root: it opens storage, builds the
// services and handlers, mounts the routes and runs the HTTP server with
// graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/sakif/game-reviews/internal/auth"
	"github.com/sakif/game-reviews/internal/catalog"
	"github.com/sakif/game-reviews/internal/config"
	"github.com/sakif/game-reviews/internal/events"
	"github.com/sakif/game-reviews/internal/handler"
	"github.com/sakif/game-reviews/internal/middleware"
	"github.com/sakif/game-reviews/internal/repository"
	pgRepo "github.com/sakif/game-reviews/internal/repository/postgres"
	sqliteRepo "github.com/sakif/game-reviews/internal/repository/sqlite"
	"github.com/sakif/game-reviews/internal/session"
	"github.com/sakif/game-reviews/internal/service"
)

// Server owns every long-lived resource: database, session store
// connection, broker channel. Close releases them in reverse order.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	closers []func() error
}

type stores struct {
	users     repository.UserRepository
	reviews   repository.ReviewRepository
	favorites repository.FavoriteRepository
}

// New wires the application from cfg. Optional backends (Redis, RabbitMQ,
// IGDB) are skipped when unconfigured; the token secret and the database
// are not optional.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}

	if err := s.setup(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) setup(ctx context.Context) error {
	cfg := s.config

	tokens, err := auth.NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token issuer: %w", err)
	}
	passwords, err := auth.NewCredentialStore(cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("creating credential store: %w", err)
	}
	elevation := auth.NewElevationGuard(cfg.AdminBootstrapSecret)
	if !elevation.Enabled() {
		s.logger.Info("ADMIN_BOOTSTRAP_SECRET not set, admin elevation disabled")
	}

	st, err := s.openStorage(ctx)
	if err != nil {
		return err
	}

	sessionStore, err := s.openSessionStore(ctx)
	if err != nil {
		return err
	}
	sessions := session.NewManager(sessionStore, session.Options{
		TTL:    cfg.SessionTTL,
		Secure: cfg.CookieSecure,
	}, s.logger)

	publisher := s.openPublisher()

	var games handler.GameCatalog
	if cfg.CatalogEnabled() {
		c, err := catalog.New(ctx, catalog.Config{
			ClientID:       cfg.TwitchClientID,
			ClientSecret:   cfg.TwitchClientSecret,
			AppAccessToken: cfg.TwitchAppAccessToken,
			BaseURL:        cfg.IGDBBaseURL,
			TokenURL:       cfg.TwitchTokenURL,
		})
		if err != nil {
			return fmt.Errorf("creating catalog client: %w", err)
		}
		games = c
	} else {
		s.logger.Warn("Twitch credentials not set, /games will return 503")
	}

	accounts := service.NewAccountService(st.users, st.reviews, st.favorites, passwords, elevation, publisher, s.logger)
	authService := service.NewAuthService(st.users, passwords, tokens, s.logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s.routes(routeDeps{
		accounts: handler.NewAccountHandler(accounts, sessions, s.logger),
		auth:     handler.NewAuthHandler(authService, sessions, s.logger),
		games:    handler.NewGamesHandler(games, st.users, st.reviews, st.favorites, sessions, s.logger),
		guard:    auth.NewGuard(tokens, st.users, sessions, s.logger),
		sessions: sessions,
		metrics:  middleware.NewMetrics(reg),
		limiter:  middleware.NewRateLimiter(rate.Limit(cfg.AuthRateLimit), cfg.AuthRateBurst),
	})
	return nil
}

func (s *Server) openStorage(ctx context.Context) (stores, error) {
	switch s.config.DBDriver {
	case "postgres":
		db, err := pgRepo.Open(ctx, s.config.DatabaseURL)
		if err != nil {
			return stores{}, fmt.Errorf("opening postgres: %w", err)
		}
		s.closers = append(s.closers, db.Close)
		return stores{users: db.Users(), reviews: db.Reviews(), favorites: db.Favorites()}, nil
	default:
		db, err := sqliteRepo.New(s.config.DBPath)
		if err != nil {
			return stores{}, fmt.Errorf("opening database: %w", err)
		}
		s.closers = append(s.closers, db.Close)
		return stores{users: db.Users(), reviews: db.Reviews(), favorites: db.Favorites()}, nil
	}
}

func (s *Server) openSessionStore(ctx context.Context) (session.Store, error) {
	if s.config.RedisAddr == "" {
		s.logger.Info("REDIS_ADDR not set, sessions kept in memory")
		return session.NewMemoryStore(), nil
	}
	rdb, err := session.NewRedisClient(ctx, s.config.RedisAddr, s.config.RedisPassword, s.config.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	s.closers = append(s.closers, rdb.Close)
	return session.NewRedisStore(rdb), nil
}

// openPublisher never fails the boot: events are best effort, so a broker
// that is down at startup only disables them.
func (s *Server) openPublisher() events.Publisher {
	if s.config.AMQPURL == "" {
		return events.Nop{}
	}
	p, err := events.DialRabbit(s.config.AMQPURL, s.config.AMQPExchange)
	if err != nil {
		s.logger.Warn("rabbitmq unavailable, account events disabled", slog.String("error", err.Error()))
		return events.Nop{}
	}
	s.closers = append(s.closers, p.Close)
	return p
}

type routeDeps struct {
	accounts *handler.AccountHandler
	auth     *handler.AuthHandler
	games    *handler.GamesHandler
	guard    *auth.Guard
	sessions *session.Manager
	metrics  *middleware.Metrics
	limiter  *middleware.RateLimiter
}

// routes mounts:
//
//	GET    /metrics, /healthz
//	GET    /, /me, /flashes, /logout
//	POST   /login, /register              (rate limited)
//	GET    /games, /games/search, /games/{id}
//	POST   /games/{id}/favorite           (signed in)
//	GET    /admin                         (admin)
//	GET    /profiles/{id}, /profiles/{id}/edit
//	PUT    /profiles/{id}
//	DELETE /profiles/{id}                 (self or admin)
//
// MethodOverride runs before routing so form posts carrying _method=PUT or
// _method=DELETE reach the profile routes.
func (s *Server) routes(d routeDeps) {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(d.metrics.Middleware)
	r.Use(middleware.MethodOverride)

	r.Handle("/metrics", d.metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Group(func(r chi.Router) {
		r.Use(d.sessions.Middleware)

		r.Get("/", d.auth.HandleMe)
		r.Get("/me", d.auth.HandleMe)
		r.Get("/flashes", d.auth.HandleFlashes)
		r.Get("/logout", d.auth.HandleLogout)

		r.With(d.limiter.Middleware).Post("/login", d.auth.HandleLogin)
		r.With(d.limiter.Middleware).Post("/register", d.accounts.HandleRegister)

		r.Get("/games", d.games.HandlePopular)
		r.Get("/games/search", d.games.HandleSearch)
		r.Get("/games/{id}", d.games.HandleShow)

		r.Group(func(r chi.Router) {
			r.Use(d.guard.RequireAuth)

			r.With(d.guard.RequireAdmin).Get("/admin", d.accounts.HandleListUsers)
			r.Post("/games/{id}/favorite", d.games.HandleAddFavorite)

			r.Route("/profiles/{id}", func(r chi.Router) {
				r.Use(d.guard.RequireSelfOrAdmin)
				r.Get("/", d.accounts.HandleShow)
				r.Get("/edit", d.accounts.HandleEdit)
				r.Put("/", d.accounts.HandleUpdate)
				r.Delete("/", d.accounts.HandleDelete)
			})
		})
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases resources in reverse order of acquisition.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds and closes every backend.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("db_driver", s.config.DBDriver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
