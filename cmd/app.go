package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"sql-sandbox/configs"
	"sql-sandbox/internal/assignment"
	"sql-sandbox/internal/classifier"
	"sql-sandbox/internal/hint"
	"sql-sandbox/internal/sandbox"
	"sql-sandbox/internal/sqlproxy"
	"sql-sandbox/pkg/db"
	"sql-sandbox/pkg/logger"
	"sql-sandbox/pkg/middleware"
	"sql-sandbox/pkg/redis"
	"sql-sandbox/pkg/res"
)

// SandboxDB and CatalogDB tell the two pools apart in the container.
type SandboxDB struct{ *db.Db }

type CatalogDB struct{ *db.Db }

// coreModule provides every component shared by serve and mcp.
var coreModule = fx.Options(
	fx.Provide(
		configs.LoadConfig,
		logger.NewFromConfig,
		newSandboxDB,
		newCatalogDB,
		newRedis,
		newClassifier,
		newSandbox,
		newAssignmentService,
		newHintService,
		newQueryService,
	),
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),
)

func newSandboxDB(lc fx.Lifecycle, conf *configs.Config, log *zap.Logger) (SandboxDB, error) {
	conn, err := db.NewConnection(context.Background(), conf.Sandbox.DbConfig)
	if err != nil {
		return SandboxDB{}, fmt.Errorf("sandbox database: %w", err)
	}
	lc.Append(fx.StopHook(conn.Close))
	log.Info("sandbox database connected", zap.String("dialect", string(conn.Dialect)))
	return SandboxDB{conn}, nil
}

func newCatalogDB(lc fx.Lifecycle, conf *configs.Config, log *zap.Logger) (CatalogDB, error) {
	conn, err := db.NewConnection(context.Background(), conf.Catalog)
	if err != nil {
		return CatalogDB{}, fmt.Errorf("catalog database: %w", err)
	}
	lc.Append(fx.StopHook(conn.Close))
	log.Info("catalog database connected", zap.String("dialect", string(conn.Dialect)))
	return CatalogDB{conn}, nil
}

func newRedis(lc fx.Lifecycle, conf *configs.Config, log *zap.Logger) (*redis.Redisdb, error) {
	rdb, err := redis.NewRedis(context.Background(), conf.Redis)
	if err != nil {
		return nil, err
	}
	if !rdb.Enabled() {
		log.Info("redis not configured, catalog cache disabled")
	}
	lc.Append(fx.StopHook(rdb.Close))
	return rdb, nil
}

func newClassifier(conf *configs.Config) *classifier.Classifier {
	return classifier.New(conf.Sandbox.ForbiddenKeywords...)
}

func newSandbox(conn SandboxDB, conf *configs.Config, log *zap.Logger) (*sandbox.Sandbox, error) {
	return sandbox.New(conn.Db, log, conf.Sandbox.CountLimit)
}

func newAssignmentService(conn CatalogDB, cache *redis.Redisdb, conf *configs.Config, log *zap.Logger) *assignment.Service {
	return assignment.NewService(assignment.NewRepository(conn.Db), cache, conf.Catalog.CacheTTL, log)
}

func newHintService(conf *configs.Config, catalog *assignment.Service, log *zap.Logger) *hint.Service {
	gen := hint.NewChatClient(conf.Hint, &http.Client{})
	return hint.NewService(gen, catalog, conf.Hint, log)
}

func newQueryService(cl *classifier.Classifier, sb *sandbox.Sandbox, catalog *assignment.Service, conf *configs.Config, log *zap.Logger) *sqlproxy.Service {
	return sqlproxy.NewService(cl, sb, catalog, conf.Sandbox, log)
}

type AppDeps struct {
	fx.In

	Config    *configs.Config
	Log       *zap.Logger
	Queries   *sqlproxy.Service
	Catalog   *assignment.Service
	Hints     *hint.Service
	SandboxDB SandboxDB
	CatalogDB CatalogDB
}

// App builds the HTTP handler: API routes, health and metrics behind the
// shared middleware chain.
func App(deps AppDeps) http.Handler {
	router := http.NewServeMux()

	sqlproxy.NewController(router, sqlproxy.ControllerDeps{Service: deps.Queries, Log: deps.Log})
	assignment.NewController(router, assignment.ControllerDeps{Service: deps.Catalog, Log: deps.Log})
	hint.NewController(router, hint.ControllerDeps{Service: deps.Hints, Log: deps.Log})

	router.Handle("GET /metrics", promhttp.Handler())
	router.Handle("GET /healthz", healthz(deps.SandboxDB.Db, deps.CatalogDB.Db))

	mws := []middleware.Middleware{
		middleware.RequestID,
		middleware.Recover(deps.Log),
		middleware.CORS(deps.Config.Server.CORSOrigin),
		middleware.AccessLog(deps.Log),
		middleware.Metrics,
	}
	if rpm := deps.Config.Server.RateLimitPerMinute; rpm > 0 {
		mws = append(mws, middleware.NewRateLimiter(rpm).Middleware)
	}
	return middleware.Chain(router, mws...)
}

func healthz(pools ...*db.Db) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, p := range pools {
			if err := p.PingContext(ctx); err != nil {
				res.Json(w, map[string]string{"status": "unavailable", "dialect": string(p.Dialect)}, http.StatusServiceUnavailable)
				return
			}
		}
		res.Json(w, map[string]string{"status": "ok"}, http.StatusOK)
	}
}

// runApp starts app, waits for a signal or a shutdown request and stops it,
// returning start and stop errors instead of exiting.
func runApp(app *fx.App) error {
	startCtx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	<-app.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	return app.Stop(stopCtx)
}
