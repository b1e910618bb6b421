package main

import (
	"log"
	"time"

	"gatehouse/internal/engine/codes"
	"gatehouse/internal/engine/stepup"
	"gatehouse/internal/pkg/logger"
	"gatehouse/internal/platform/config"
	"gatehouse/internal/platform/database"
	"gatehouse/internal/workers"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	globalDB, err := database.NewGlobalDB(cfg.Database.Global)
	if err != nil {
		log.Fatalf("Failed to connect to global DB: %v", err)
	}
	defer globalDB.Close()

	sweeper := workers.NewSweeper(
		stepup.NewRepository(globalDB),
		codes.NewRepository(globalDB),
	)

	log.Println("Starting background workers...")

	go runRelayTokenSweeper(sweeper)
	go runCodeBatchSweeper(sweeper)

	// Keep process alive
	select {}
}

func runRelayTokenSweeper(s *workers.Sweeper) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.SweepRelayTokens()
	}
}

func runCodeBatchSweeper(s *workers.Sweeper) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		s.SweepCodeBatches()
	}
}
