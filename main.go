package main

import (
	"github.com/joho/godotenv"
	"github.com/pyala/promptbattle/battle"
	"github.com/pyala/promptbattle/config"
	"github.com/pyala/promptbattle/generation"
	"github.com/pyala/promptbattle/logger"
	"github.com/pyala/promptbattle/monitor"
	"github.com/pyala/promptbattle/persistence"
	"github.com/pyala/promptbattle/server"
	"github.com/pyala/promptbattle/timer"
)

func main() {
	// Initialize logger
	logger.Init(false)

	// .env is optional, real deployments set the environment directly
	if err := godotenv.Load(); err != nil {
		logger.Log.Debugf("no .env file loaded: %v", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	var db persistence.Database
	switch cfg.Database.Driver {
	case "sql":
		db, err = persistence.NewPostgres(
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.DBName,
		)
	default:
		db, err = persistence.NewGormPostgres(
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.DBName,
		)
	}
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Log.Info("Database connection successful.")

	// Metrics endpoint
	mon := monitor.NewMonitor("promptbattle")
	if cfg.Server.MetricsAddress != "" {
		mon.StartServer(cfg.Server.MetricsAddress)
	}

	// Shared countdown timers
	timers := timer.NewManager()
	defer timers.Stop()

	// Image generation client
	generator := generation.NewClient(generation.Config{
		BaseURL:    cfg.Generation.BaseURL,
		Model:      cfg.Generation.Model,
		Token:      cfg.Generation.Token,
		OutputDir:  cfg.Generation.OutputDir,
		PublicPath: cfg.Generation.PublicPath,
	})

	timeoutPolicy := battle.TimeoutPermissive
	if cfg.Battle.StrictTimeout {
		timeoutPolicy = battle.TimeoutStrict
	}

	// Initialize Battle Server
	battleServer := server.NewGameServer(server.Config{
		Addr:     cfg.Server.HTTPAddress,
		RPCAddr:  cfg.Server.RPCAddress,
		ImageDir: cfg.Generation.OutputDir,
		Battle: battle.Config{
			TimeLimit: cfg.Battle.TimeLimit,
			Timeout:   timeoutPolicy,
		},
	}, db, generator, timers, mon)

	// Start Server
	logger.Log.Infof("Starting battle server on %s", cfg.Server.HTTPAddress)
	if err := battleServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
