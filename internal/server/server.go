package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/tripdesk/apiserver/config"
	"github.com/tripdesk/apiserver/internal/auth"
	"github.com/tripdesk/apiserver/internal/cache"
	"github.com/tripdesk/apiserver/internal/handlers"
	"github.com/tripdesk/apiserver/internal/metrics"
	"github.com/tripdesk/apiserver/internal/mq"
	"github.com/tripdesk/apiserver/internal/notify"
	"github.com/tripdesk/apiserver/internal/services"
)

const shutdownTimeout = 15 * time.Second

// Server wraps the HTTP server, its router and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	repos      Repositories
	redis      *redis.Client
	broker     *mq.MQ
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
}

// New wires every dependency from cfg. Connections opened before a failure
// are closed again.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (srv *Server, err error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	s := &Server{logger: logger}
	defer func() {
		if err != nil {
			s.closeAll()
		}
	}()

	if s.repos, err = OpenRepositories(ctx, cfg); err != nil {
		return nil, err
	}
	if s.redis, err = cache.NewClient(ctx, cfg.Redis); err != nil {
		return nil, err
	}
	if s.broker, err = mq.Open(ctx, cfg); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var revocations auth.RevocationList = auth.NewMemoryRevocationList()
	serviceOpts := []services.Option{services.WithMetrics(m)}
	if s.redis != nil {
		revocations = auth.NewRedisRevocationList(s.redis)
		serviceOpts = append(serviceOpts, services.WithLookupCache(cache.NewLookupCache(s.redis, cfg.Redis.LookupTTL)))
	}

	s.dispatcher = notify.NewDispatcher(s.repos.Notifications, logger,
		notify.WithPublisher(s.broker, cfg.MQ.NotificationsChannel),
		notify.WithMetrics(m),
	)

	r := s.repos
	s.router = handlers.NewRouter(handlers.Dependencies{
		Users:         services.NewUserService(r.Users, r.Travelers, r.Tx, logger, serviceOpts...),
		Travelers:     services.NewTravelerService(r.Travelers, r.Users, r.TripRequests, r.Tx, logger, serviceOpts...),
		Destinations:  services.NewDestinationService(r.Destinations, r.TripRequests, logger, serviceOpts...),
		TripRequests:  services.NewTripRequestService(r.TripRequests, r.Travelers, r.Destinations, s.dispatcher, logger, serviceOpts...),
		Notifications: services.NewNotificationService(r.Notifications),
		Issuer:        auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Revocations:   revocations,
		Pages: handlers.Paginator{
			DefaultSize: cfg.Pagination.DefaultSize,
			MaxSize:     cfg.Pagination.MaxSize,
		},
		Metrics:        m,
		Logger:         logger,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and pending notification deliveries,
// then closes the connections.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.dispatcher.Wait()
	s.closeAll()
	return err
}

func (s *Server) closeAll() {
	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			s.logger.Warn("closing broker", "error", err)
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if err := s.repos.Close(); err != nil {
		s.logger.Warn("closing database", "error", err)
	}
}
