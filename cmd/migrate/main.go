package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/calcutta-sim/internal/models"
	"github.com/stitts-dev/calcutta-sim/internal/optimizer"
	"github.com/stitts-dev/calcutta-sim/internal/services"
	"github.com/stitts-dev/calcutta-sim/pkg/config"
	"github.com/stitts-dev/calcutta-sim/pkg/database"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down|seed]")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	command := os.Args[1]

	switch command {
	case "up":
		if err := models.AutoMigrate(db.DB); err != nil {
			logrus.Fatalf("Failed to run migrations: %v", err)
		}
		logrus.Info("Migrations completed successfully")

	case "down":
		if err := models.DropTables(db.DB); err != nil {
			logrus.Fatalf("Failed to drop tables: %v", err)
		}
		logrus.Info("Tables dropped successfully")

	case "seed":
		if err := seedData(db, cfg); err != nil {
			logrus.Fatalf("Failed to seed data: %v", err)
		}
		logrus.Info("Data seeded successfully")

	default:
		log.Fatalf("Unknown command: %s", command)
	}
}

// seedData stores one run per strategy over a small sample field
func seedData(db *database.DB, cfg *config.Config) error {
	allocation, err := services.NewAllocationService(services.NewRunRepository(db, nil), nil, nil, services.AllocationServiceConfig{
		DefaultStrategy: cfg.DefaultStrategy,
		GreedyStep:      cfg.GreedyStep,
		GreedyMaxWork:   cfg.GreedyMaxWork,
		DPMaxStates:     cfg.DPMaxStates,
		Timeout:         cfg.AllocationTimeoutDuration(),
	})
	if err != nil {
		return err
	}

	req := services.AllocationRequest{
		Constraints: optimizer.ConstraintsInput{Budget: 100, MinBid: 1, MaxPerTeam: 40, MinTeams: 3, MaxTeams: 8},
		Candidates: []optimizer.Candidate{
			{TeamKey: "houston", ExpectedTeamPoints: 820, PredictedTeamTotalBids: 64},
			{TeamKey: "uconn", ExpectedTeamPoints: 790, PredictedTeamTotalBids: 71},
			{TeamKey: "purdue", ExpectedTeamPoints: 610, PredictedTeamTotalBids: 48},
			{TeamKey: "arizona", ExpectedTeamPoints: 480, PredictedTeamTotalBids: 37},
			{TeamKey: "tennessee", ExpectedTeamPoints: 455, PredictedTeamTotalBids: 29},
			{TeamKey: "creighton", ExpectedTeamPoints: 300, PredictedTeamTotalBids: 18},
			{TeamKey: "gonzaga", ExpectedTeamPoints: 260, PredictedTeamTotalBids: 22},
			{TeamKey: "nc_state", ExpectedTeamPoints: 90, PredictedTeamTotalBids: 3},
			{TeamKey: "oakland", ExpectedTeamPoints: 45, PredictedTeamTotalBids: 2},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for _, strategy := range optimizer.Strategies() {
		req.Strategy = string(strategy)
		result, err := allocation.Allocate(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to seed %s run: %w", strategy, err)
		}
		logrus.WithFields(logrus.Fields{
			"run_id":      result.RunID,
			"strategy":    strategy,
			"total_value": result.Portfolio.TotalValue,
		}).Info("Seeded allocation run")
	}
	return nil
}
