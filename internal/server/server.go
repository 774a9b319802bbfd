package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ghusn/apiserver/config"
	"github.com/ghusn/apiserver/internal/db"
	"github.com/ghusn/apiserver/internal/handlers"
	"github.com/ghusn/apiserver/internal/mail"
	"github.com/ghusn/apiserver/internal/mq"
	"github.com/ghusn/apiserver/internal/services"
	"github.com/ghusn/apiserver/internal/store"
	"github.com/ghusn/apiserver/internal/token"
	"github.com/ghusn/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server wraps the HTTP server, router and the background mail pipeline.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	dispatcher *mail.Dispatcher
	logger     *zap.Logger

	stopWorker context.CancelFunc
	workerDone sync.WaitGroup
}

// New wires storage, the account service, mail dispatch and the router.
// With the local queue backend the mail worker runs in this process;
// otherwise a separate mailer process consumes the queue.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{logger: logger}

	users, roles, err := s.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s.queue, err = mq.Open(ctx, cfg)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("open mq: %w", err)
	}

	if s.queue.IsLocal() {
		worker, err := mail.NewConfiguredWorker(ctx, cfg, s.queue, logger)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("mail worker: %w", err)
		}
		s.startWorker(worker)
	}

	s.dispatcher = mail.NewDispatcher(s.queue, cfg.Mail.Channel, mail.DispatcherOptions{
		QueueSize: cfg.Mail.QueueSize,
		Workers:   cfg.Mail.Workers,
	}, logger)

	codec := token.NewCodec([]byte(cfg.SecretKey), token.WithDefaultTTL(cfg.TokenTTL))
	accounts := services.NewAccountService(users, codec, s.dispatcher,
		services.WithRoles(roles),
		services.WithTokenTTL(cfg.TokenTTL),
		services.WithSessionTTL(cfg.SessionTTL),
		services.WithLogger(logger.Named("accounts")),
	)

	s.router = NewRouter(accounts, logger)

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

// NewRouter builds the HTTP routes for accounts.
func NewRouter(accounts *services.AccountService, logger *zap.Logger) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		handlers.RequestLogger(logger),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, accounts, logger)
	})
	router.Route("/users/me", func(r chi.Router) {
		handlers.UserRouter(r, accounts, logger)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, flushes queued notifications and
// releases every connection.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) openStore(ctx context.Context, cfg config.Config) (services.UserRepository, services.RoleRepository, error) {
	if cfg.Database.Driver == config.DBDriverMemory {
		s.logger.Warn("using in-memory user store; accounts are lost on restart")
		roles := store.NewMemoryRoleRepository(
			types.Role{ID: 1, Name: "User", Default: true},
			types.Role{ID: 2, Name: "Administrator"},
		)
		return store.NewMemoryUserRepository(), roles, nil
	}

	conn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	s.db = conn
	return store.NewUserRepository(conn), store.NewRoleRepository(conn), nil
}

func (s *Server) startWorker(worker *mail.Worker) {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopWorker = cancel
	s.workerDone.Add(1)
	go func() {
		defer s.workerDone.Done()
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, mq.ErrClosed) {
			s.logger.Error("mail worker stopped", zap.Error(err))
		}
	}()
}

func (s *Server) close() {
	if s.dispatcher != nil {
		s.dispatcher.Close()
	}
	if s.stopWorker != nil {
		s.stopWorker()
		s.workerDone.Wait()
	}
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			s.logger.Warn("close mq", zap.Error(err))
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
