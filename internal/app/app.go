package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"photolabels/internal/config"
	"photolabels/internal/labels"
	"photolabels/internal/logger"
	"photolabels/internal/repository/sqlite"
	"photolabels/internal/route"
	"photolabels/internal/service"
	"photolabels/internal/service/ai"
	"photolabels/internal/service/inference"
	"photolabels/internal/service/storage"
	"photolabels/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config           *config.Config
	logger           *logger.Logger
	db               *sqlite.DB
	cycleRepo        *sqlite.CycleRepository
	detectorServices []*ai.DetectorService
	pool             *inference.Pool
	journal          *storage.JournalBuffer
	hubService       *websocket.HubService
	manager          *service.Manager
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	table, err := labels.Load(cfg.LabelsPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	cycleRepo := sqlite.NewCycleRepository(db)

	detectorServices := make([]*ai.DetectorService, 0, cfg.ProcessingWorkers)
	detectors := make([]inference.Detector, 0, cfg.ProcessingWorkers)
	for i := 0; i < cfg.ProcessingWorkers; i++ {
		ds := ai.NewDetectorService(cfg, table, log) // one net per worker
		if !ds.Ready() {
			log.Warning("⚠️  Detector %d has no network; its cycles will fail with an inference error", i)
		}
		detectorServices = append(detectorServices, ds)
		detectors = append(detectors, ds)
	}
	pool := inference.NewPool(detectors, cfg.QueueSize, log)

	journal := storage.NewJournalBuffer(cycleRepo, log)
	hub := websocket.NewHubService(log)
	mng := service.NewManager(pool, hub, journal, log)

	return &App{
		config:           cfg,
		logger:           log,
		db:               db,
		cycleRepo:        cycleRepo,
		detectorServices: detectorServices,
		pool:             pool,
		journal:          journal,
		hubService:       hub,
		manager:          mng,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts everything down in
// dependency order.
func (a *App) Run(ctx context.Context) error {
	background, stopBackground := context.WithCancel(context.Background())
	journalDone := make(chan struct{})
	go func() {
		a.journal.Run(background)
		close(journalDone)
	}()
	go a.hubService.Run(background)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: route.SetupRoutes(a.manager, a.config, a.logger, a.cycleRepo),
	}

	fmt.Printf("🚀 Photo Label Server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("🤖 AI Model: %s\n", a.config.ModelPath)
	fmt.Printf("👷 Workers: %d\n", a.config.ProcessingWorkers)
	fmt.Printf("🗄️  Database: %s\n", a.config.DatabasePath)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	var err error
	select {
	case err = <-serveErr:
	case <-ctx.Done():
		a.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err = server.Shutdown(shutdownCtx)
		cancel()
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	a.manager.Stop()
	a.pool.Stop()
	stopBackground()
	<-journalDone

	for _, ds := range a.detectorServices {
		if closeErr := ds.Close(); closeErr != nil {
			a.logger.Warning("Error closing detector: %v", closeErr)
		}
	}
	if closeErr := a.db.Close(); closeErr != nil {
		a.logger.Error("Error closing database: %v", closeErr)
	}
	return err
}
