package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/rawblock/muling-engine/internal/api"
	"github.com/rawblock/muling-engine/internal/db"
	"github.com/rawblock/muling-engine/internal/engine"
	"github.com/rawblock/muling-engine/internal/metrics"
)

func main() {
	log.Println("Starting Muling Detection Engine (transaction graph forensics)...")

	// ─── Configuration ──────────────────────────────────────────────────
	// The engine runs standalone; the database archive is optional and the
	// process degrades gracefully when DATABASE_URL is unset or the
	// connection fails.
	// ────────────────────────────────────────────────────────────────────

	var dbConn *db.PostgresStore
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		conn, err := db.Connect(dbURL)
		if err != nil {
			log.Printf("Warning: Failed to connect to PostgreSQL, continuing without report archive. Error: %v", err)
		} else {
			dbConn = conn
			defer dbConn.Close()
			if err := dbConn.InitSchema(); err != nil {
				log.Printf("Warning: DB schema init failed: %v", err)
			}
		}
	} else {
		log.Println("DATABASE_URL not set, running without report archive")
	}

	cfg := configFromEnv()
	eng := engine.New(cfg)

	collector := metrics.NewCollector()

	// Setup WebSocket hub for ring alerts
	wsHub := api.NewHub()
	go wsHub.Run()

	maxConcurrent := getEnvInt("MAX_CONCURRENT_ANALYSES", 4)
	r := api.SetupRouter(eng, dbConn, wsHub, collector, maxConcurrent)

	port := getEnvOrDefault("PORT", "5340")

	log.Printf("Engine running on :%s\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// configFromEnv starts from the reference defaults and applies any
// per-tunable environment overrides.
func configFromEnv() engine.Config {
	cfg := engine.DefaultConfig()

	cfg.Cycle.MaxLength = getEnvInt("CYCLE_LENGTH_BOUND", cfg.Cycle.MaxLength)
	cfg.Cycle.MaxCycles = getEnvInt("MAX_CYCLES", cfg.Cycle.MaxCycles)

	if hours := getEnvInt("SMURFING_WINDOW_HOURS", 0); hours > 0 {
		cfg.Smurfing.Window = time.Duration(hours) * time.Hour
	}
	cfg.Smurfing.MinCounterparties = getEnvInt("SMURFING_MIN_COUNTERPARTIES", cfg.Smurfing.MinCounterparties)

	cfg.ShellChain.MaxDepth = getEnvInt("SHELL_MAX_DEPTH", cfg.ShellChain.MaxDepth)
	cfg.ShellChain.MinHops = getEnvInt("SHELL_MIN_HOPS", cfg.ShellChain.MinHops)
	cfg.ShellChain.IntermediateDegreeMax = getEnvInt("SHELL_INTERMEDIATE_DEGREE_MAX", cfg.ShellChain.IntermediateDegreeMax)
	cfg.ShellChain.MaxChains = getEnvInt("MAX_CHAINS", cfg.ShellChain.MaxChains)

	cfg.Scoring.ReportMinScore = getEnvInt("REPORT_MIN_SCORE", cfg.Scoring.ReportMinScore)
	cfg.Scoring.VizMaxNodes = getEnvInt("VIZ_MAX_NODES", cfg.Scoring.VizMaxNodes)

	return cfg
}

// getEnvOrDefault returns the env var value or a safe default for
// non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt parses an integer env var, keeping the fallback on absence or
// parse failure.
func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using default %d", key, val, fallback)
		return fallback
	}
	return parsed
}
