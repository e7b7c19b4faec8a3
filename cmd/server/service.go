package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/piliapp/pili/internal/chat"
	"github.com/piliapp/pili/internal/config"
	"github.com/piliapp/pili/internal/llm"
	"github.com/piliapp/pili/internal/mcp"
	"github.com/piliapp/pili/internal/memory"
	"github.com/piliapp/pili/internal/middleware"
	"github.com/piliapp/pili/internal/routes"
	"github.com/piliapp/pili/internal/server"
	"github.com/piliapp/pili/internal/sessions"
	"github.com/piliapp/pili/pkg/handlers"
	"github.com/piliapp/pili/pkg/lifecycle"
	"github.com/piliapp/pili/pkg/logging"
)

// Service coordinates the lifecycle of all subsystems.
type Service struct {
	cfg    *config.Config
	lc     *lifecycle.Coordinator
	logger *slog.Logger

	memory memory.System
	cache  *sessions.Cache
	server server.System
}

// NewService creates and initializes the service with all subsystems.
func NewService(cfg *config.Config) (*Service, error) {
	logger := logging.New(&cfg.Logging)
	lc := lifecycle.New()

	store, err := buildStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	mem := memory.NewService(store, &cfg.Memory, logger)
	completions := llm.New(&cfg.LLM, logger)

	build := sessions.DefaultBuilder(&cfg.MCP, &cfg.Sessions, &cfg.LLM, completions, logger)
	cache, err := sessions.NewCache(cfg.Sessions.Capacity, build, logger)
	if err != nil {
		return nil, err
	}

	chatSvc := chat.NewService(cache, mem, logger)
	chatHandler := chat.NewHandler(chatSvc, logger)

	gateway := mcp.NewClient(&cfg.MCP, logger)

	routeSys := routes.New(logger)
	routeSys.RegisterRoute(routes.Route{
		Method:  "GET",
		Pattern: "/healthz",
		Handler: func(w http.ResponseWriter, r *http.Request) {
			handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		},
	})
	routeSys.RegisterRoute(routes.Route{
		Method:  "GET",
		Pattern: "/readyz",
		Handler: func(w http.ResponseWriter, r *http.Request) {
			if !lc.Ready() {
				handlers.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
				return
			}

			count, err := gateway.Ping(r.Context())
			if err != nil {
				handlers.RespondJSON(w, http.StatusOK, map[string]any{
					"status":  "degraded",
					"gateway": "unreachable",
				})
				return
			}

			handlers.RespondJSON(w, http.StatusOK, map[string]any{
				"status":     "ready",
				"tool_count": count,
			})
		},
	})
	routeSys.RegisterGroup(chatHandler.Routes())

	handler := middleware.Logger(logger)(middleware.CORS(&cfg.CORS)(middleware.TrimSlash()(routeSys.Build())))
	serverSys := server.New(&cfg.Server, handler, logger, cfg.ShutdownTimeoutDuration())

	return &Service{
		cfg:    cfg,
		lc:     lc,
		logger: logger,
		memory: mem,
		cache:  cache,
		server: serverSys,
	}, nil
}

// Start begins all subsystems and returns when they are ready.
func (s *Service) Start() error {
	s.logger.Info("starting service")

	if err := s.memory.Start(s.lc); err != nil {
		return fmt.Errorf("memory start failed: %w", err)
	}

	if err := s.server.Start(s.lc); err != nil {
		return fmt.Errorf("server start failed: %w", err)
	}

	s.lc.OnShutdown(func() {
		<-s.lc.Context().Done()
		s.cache.ClearAll()
	})

	s.lc.WaitForStartup()
	s.logger.Info("service started", "addr", s.cfg.Server.Addr())
	return nil
}

// Shutdown gracefully stops all subsystems within the configured timeout.
func (s *Service) Shutdown() error {
	s.logger.Info("initiating shutdown")
	return s.lc.Shutdown(s.cfg.ShutdownTimeoutDuration())
}

// buildStore selects the memory backend: postgres when configured, the
// in-process store otherwise.
func buildStore(cfg *config.Config, logger *slog.Logger) (memory.Store, error) {
	if cfg.Memory.Backend != config.MemoryBackendPostgres {
		logger.Info("using in-process conversation store")
		return memory.NewMemStore(), nil
	}

	db, err := sql.Open("pgx", cfg.Database.Dsn())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetimeDuration())

	store := memory.NewPostgresStore(db)
	if err := store.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.Info("using postgres conversation store", "host", cfg.Database.Host, "name", cfg.Database.Name)
	return store, nil
}
