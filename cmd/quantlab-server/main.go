package main

import (
	"log"
	"os"

	"quantlab/internal/api"
	"quantlab/internal/config"
	"quantlab/internal/store"
	"quantlab/internal/strategy"
	"quantlab/internal/strategy/builtins"
	"quantlab/internal/util"
)

func main() {
	cfgPath := "config/quantlab.yaml"
	if p := os.Getenv("QUANTLAB_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	bars := store.NewParquetStore(cfg.Storage.DataDir)
	results, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open result store: %v", err)
	}
	defer results.Close()

	registry := strategy.NewRegistry()
	builtins.RegisterAll(registry)

	server := api.NewServer(cfg, registry, bars, results, logger)
	if err := server.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
