package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gatehouse-io/gatehouse/internal/apikeys"
	"github.com/gatehouse-io/gatehouse/internal/app"
	"github.com/gatehouse-io/gatehouse/internal/assignments"
	"github.com/gatehouse-io/gatehouse/internal/groups"
	"github.com/gatehouse-io/gatehouse/internal/observability"
	"github.com/gatehouse-io/gatehouse/internal/orgs"
	"github.com/gatehouse-io/gatehouse/internal/permissions"
	"github.com/gatehouse-io/gatehouse/internal/platform/cache"
	"github.com/gatehouse-io/gatehouse/internal/platform/db"
	"github.com/gatehouse-io/gatehouse/internal/roles"
	"github.com/gatehouse-io/gatehouse/internal/users"
	"github.com/gatehouse-io/gatehouse/internal/webhooks"
	"github.com/gatehouse-io/gatehouse/jobs"
)

// roleStore exposes the two repositories behind the resolver's read
// interfaces as one store.
type roleStore struct {
	direct *assignments.Repository
	groups *groups.Repository
}

func (s roleStore) QueryDirectRoles(ctx context.Context, userID, applicationID string) ([]permissions.DirectRoleAssignment, error) {
	return s.direct.QueryDirectRoles(ctx, userID, applicationID)
}

func (s roleStore) QueryGroupMemberships(ctx context.Context, userID, applicationID string) ([]permissions.GroupMembership, error) {
	return s.groups.QueryGroupMemberships(ctx, userID, applicationID)
}

func (s roleStore) GetGroup(ctx context.Context, groupID string) (permissions.Group, bool, error) {
	return s.groups.GetGroup(ctx, groupID)
}

func (s roleStore) GetGroupRole(ctx context.Context, groupID string, env permissions.Environment) (permissions.GroupRoleAssignment, bool, error) {
	return s.groups.GetGroupRole(ctx, groupID, env)
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	queue, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job queue", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()

	webhooksRepo := webhooks.NewRepository(pool)
	webhooksService := webhooks.NewService(webhooksRepo, queue, logger)
	webhooksHandler := webhooks.NewHandler(logger, webhooksService)

	orgsRepo := orgs.NewRepository(pool)
	orgsService := orgs.NewService(orgsRepo)
	orgsHandler := orgs.NewHandler(logger, orgsService)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService)

	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo)
	rolesHandler := roles.NewHandler(logger, rolesService)

	assignmentsRepo := assignments.NewRepository(pool)
	assignmentsService := assignments.NewService(assignmentsRepo, rolesService, webhooksService, logger)
	assignmentsHandler := assignments.NewHandler(logger, assignmentsService)

	groupsRepo := groups.NewRepository(pool)
	groupsService := groups.NewService(groupsRepo, rolesService, webhooksService, logger)
	groupsHandler := groups.NewHandler(logger, groupsService)

	resolver := permissions.NewResolver(
		roleStore{direct: assignmentsRepo, groups: groupsRepo},
		permissions.WithGroupLookupLimit(cfg.GroupLookupLimit),
	)
	permissionsHandler := permissions.NewHandler(logger, resolver, metrics)

	apikeysRepo := apikeys.NewRepository(pool)
	apikeysService := apikeys.NewService(apikeysRepo)
	apikeysHandler := apikeys.NewHandler(logger, apikeysService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		OrgsHandler:        orgsHandler,
		UsersHandler:       usersHandler,
		RolesHandler:       rolesHandler,
		AssignmentsHandler: assignmentsHandler,
		GroupsHandler:      groupsHandler,
		PermissionsHandler: permissionsHandler,
		APIKeysHandler:     apikeysHandler,
		WebhooksHandler:    webhooksHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
