// Package server wires the pool server together: PostgreSQL storage and
// migrations, the receipt archive, metrics, the gRPC API and the draw
// scheduler. Run blocks until a signal or context cancellation and then shuts
// everything down.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophpool/internal/logging"
	"github.com/dmitrijs2005/gophpool/internal/pool"
	"github.com/dmitrijs2005/gophpool/internal/server/archive"
	"github.com/dmitrijs2005/gophpool/internal/server/config"
	"github.com/dmitrijs2005/gophpool/internal/server/draw"
	"github.com/dmitrijs2005/gophpool/internal/server/metrics"
	"github.com/dmitrijs2005/gophpool/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophpool/internal/server/services"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/gophpool/internal/server/grpc"
)

// Seams for tests.
var (
	openDB                = repomanager.Open
	newRepositoryManager  = func() repomanager.RepositoryManager { return repomanager.NewPostgresRepositoryManager() }
	newReceiptArchive     = func(ctx context.Context, c *config.Config) (services.ReceiptArchive, error) { return archive.NewS3Archive(ctx, c) }
	shutdownGraceDuration = 10 * time.Second
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	metrics *metrics.Metrics

	poolService *services.PoolService
	authService *services.AuthService
	grpcServer  *gs.GRPCServer

	redis     *redis.Client
	scheduler *draw.Scheduler
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app, err := newApp(ctx, c, logger, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger, db *sql.DB) (*App, error) {
	m := newRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger, db: db, metrics: metrics.New()}

	opts := []services.Option{services.WithRecorder(app.metrics)}
	if c.S3Bucket != "" {
		a, err := newReceiptArchive(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("receipt archive: %w", err)
		}
		opts = append(opts, services.WithArchive(a))
	} else {
		logger.Warn(ctx, "receipt archive disabled, no S3 bucket configured")
	}

	ps, err := services.NewPoolService(db, m, c, logger, opts...)
	if err != nil {
		return nil, err
	}
	app.poolService = ps
	app.authService = services.NewAuthService(c, logger)

	app.grpcServer = gs.NewGRPCServer(c.EndpointAddrGRPC, logger, app.poolService, app.authService,
		gs.WithRateLimit(c.RateLimit, c.RateBurst),
		gs.WithUnaryInterceptor(app.metrics.UnaryServerInterceptor()),
	)

	if c.DrawSchedule != "" {
		if err := app.initScheduler(); err != nil {
			return nil, err
		}
	}
	return app, nil
}

func (app *App) initScheduler() error {
	var operator pool.Identity
	if app.config.OperatorIdentity != "" {
		id, err := pool.ParseIdentity(app.config.OperatorIdentity)
		if err != nil {
			return fmt.Errorf("operator identity: %w", err)
		}
		operator = id
	}

	var locker draw.Locker
	if app.config.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
		locker = draw.NewRedisLocker(app.redis)
	}

	app.scheduler = draw.NewScheduler(app.poolService, locker, app.config.DrawSchedule, operator, app.config.DrawLockTTL, app.logger)
	return nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case s := <-sigs:
			app.logger.Info(ctx, "shutting down", "signal", s.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpcServer.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server stopped", "error", err)
		cancelFunc()
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())
	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGraceDuration)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "metrics server listening", "address", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "metrics server stopped", "error", err)
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startMetricsServer(ctx, cancelFunc)
		}()
	}

	if app.scheduler != nil {
		if err := app.scheduler.Start(ctx); err != nil {
			app.logger.Error(ctx, "draw scheduler not started", "error", err)
			cancelFunc()
		}
	}

	wg.Wait()

	if app.scheduler != nil {
		app.scheduler.Stop()
	}
	app.close()
	app.logger.Info(context.Background(), "app stopped")
}

func (app *App) close() {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(context.Background(), "close redis", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(context.Background(), "close db", "error", err)
	}
}
