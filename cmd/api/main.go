package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcclellann/hpgLedger/pkg/config"
	"github.com/mcclellann/hpgLedger/pkg/ledger"
	"github.com/mcclellann/hpgLedger/pkg/models"
	"github.com/mcclellann/hpgLedger/pkg/seed"
	"github.com/mcclellann/hpgLedger/pkg/store"
	"github.com/mcclellann/hpgLedger/pkg/tax"
	"github.com/sirupsen/logrus"
)

// bootstrap loads the persisted snapshot and merges the seed catalog into it.
// A missing seed file is not an error; the built-in presets are used then.
func bootstrap(s store.Storage, seedFile string, logger *logrus.Logger) (models.Snapshot, []models.LineItem, error) {
	snap, err := s.Load()
	if err != nil {
		return models.Snapshot{}, nil, err
	}

	cat, err := seed.Load(seedFile)
	if errors.Is(err, fs.ErrNotExist) {
		logger.WithField("seed_file", seedFile).Info("No seed catalog, starting from stored state")
		return snap, tax.DefaultPresets, nil
	}
	if err != nil {
		return models.Snapshot{}, nil, err
	}

	snap, added := seed.Import(snap, cat)
	if added > 0 {
		if err := s.Save(snap); err != nil {
			return models.Snapshot{}, nil, err
		}
	}
	logger.WithFields(logrus.Fields{"seed_file": seedFile, "added": added}).Info("Seed catalog imported")

	presets := cat.Presets
	if len(presets) == 0 {
		presets = tax.DefaultPresets
	}
	return snap, presets, nil
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	sqliteStore, err := store.NewSQLiteStore(cfg.DBPath, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize SQLite store: %v", err)
	}
	defer sqliteStore.Close()

	snap, presets, err := bootstrap(sqliteStore, cfg.SeedFile, logger)
	if err != nil {
		logger.Fatalf("Failed to load ledger state: %v", err)
	}

	l := ledger.NewLedger(snap, logger, ledger.WithCommit(sqliteStore.Save))
	server := NewServer(l, sqliteStore, presets, logger)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Routes(),
	}

	go func() {
		logger.Infof("Server starting on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("Shutdown failed: %v", err)
	}
}
