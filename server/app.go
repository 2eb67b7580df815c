package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"irdinv/config"
	"irdinv/internal/bulkimport"
	"irdinv/internal/contacts"
	"irdinv/internal/db"
	"irdinv/internal/health"
	"irdinv/internal/inventory"
	"irdinv/internal/logs"
	"irdinv/internal/metrics"
	"irdinv/internal/middleware"
	"irdinv/internal/repo"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type App struct {
	cfg        *config.Config
	Router     *mux.Router
	httpServer *http.Server

	db       *gorm.DB
	runner   *db.TxRunner
	Importer *bulkimport.Importer
}

// Initialize opens the database, migrates it and builds the router.
func (a *App) Initialize(cfg *config.Config) error {
	a.cfg = cfg

	// 1) Логи
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	// 2) БД + миграции
	d, err := db.Open(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("db open failed: %w", err)
	}
	a.db = d
	if err := db.Migrate(a.db, a.cfg.Database.DropLegacyIndexes); err != nil {
		return fmt.Errorf("db migrate failed: %w", err)
	}

	mode, err := db.ParseTxMode(a.cfg.Database.Transactions)
	if err != nil {
		return err
	}
	a.runner = db.NewTxRunner(a.db, db.WithTxMode(mode))

	// 3) Ядро: резолвер типов, линковщик IRD↔Equipment, bulk-импорт
	store := repo.NewStore(a.db)
	types := inventory.NewTypeResolver(store)
	linker := inventory.NewLinker(a.runner, store, types)
	a.Importer = bulkimport.NewImporter(a.runner, store, types)

	// 4) Роутер + middleware
	a.Router = mux.NewRouter()
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(middleware.LoggerMW)

	// 5) Health + metrics
	health.RegisterRoutesWithDB(a.Router, a.db) // /healthz и /readyz
	a.Router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// 6) API v1; bulk до /irds/{id}, хотя id и так только цифры
	bulkimport.NewHTTP(a.Importer, a.cfg.Import.MaxUploadBytes()).RegisterRoutes(a.Router)
	inventory.NewHTTP(linker, store).RegisterRoutes(a.Router)
	inventory.NewTypesHTTP(a.db, store).RegisterRoutes(a.Router)
	contacts.NewHTTP(contacts.NewRepo(a.db)).RegisterRoutes(a.Router)

	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		logs.Logger.Debugf("route: %-6v %s", methods, path)
		return nil
	})
	return nil
}

// Run serves HTTP until ctx is cancelled or SIGINT/SIGTERM arrives, then
// shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if a.Router == nil || a.cfg == nil {
		return ErrNotInitialized
	}
	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.httpServer = &http.Server{
		Addr:         bind,
		Handler:      a.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second, // bulk-импорт бывает долгим
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logs.Logger.Warnf("http shutdown: %v", err)
	}
	return a.Close()
}

// Close releases the database pool.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var ErrNotInitialized = &initError{"server not initialized (call Initialize(cfg) first)"}

type initError struct{ s string }

func (e *initError) Error() string { return e.s }
