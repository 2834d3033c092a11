// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/mochibot/kokoro/internal/config"
	"github.com/mochibot/kokoro/internal/database"
	"github.com/mochibot/kokoro/internal/diary"
	"github.com/mochibot/kokoro/internal/emotion"
	"github.com/mochibot/kokoro/internal/engine"
	"github.com/mochibot/kokoro/internal/journal"
	"github.com/mochibot/kokoro/internal/llm"
	"github.com/mochibot/kokoro/internal/quota"
	"github.com/mochibot/kokoro/internal/server"
	"github.com/mochibot/kokoro/internal/tools"
	"github.com/mochibot/kokoro/internal/trigger"
	"github.com/mochibot/kokoro/pkg/scheduler"
)

// Version is set at build time via ldflags (e.g. -X main.Version={{.Version}}).
var Version = "dev"

func main() {
	// CRITICAL: MCP servers must ONLY output JSON-RPC to stdout
	// Redirect all logging to stderr
	log.SetOutput(os.Stderr)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// Optional .env for provider API keys
	_ = godotenv.Load()

	httpMode := flag.Bool("http", false, "Run in HTTP server mode (default: stdio for MCP)")
	configPath := flag.String("config", "", "Path to config file")
	dbType := flag.String("db-type", "", "Database type (sqlite or postgres)")
	dbPath := flag.String("db-path", "", "Database path (for sqlite)")
	dbDSN := flag.String("db-dsn", "", "Database DSN (for postgres)")
	tablesDir := flag.String("tables", "", "Directory holding the YAML reference tables")
	port := flag.Int("port", 0, "Server port (HTTP mode only)")
	createCompanion := flag.String("create-companion", "", "Create a companion profile for a principal and exit")
	role := flag.String("role", string(database.RoleLively), "Companion role for --create-companion (lively or calm)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Kokoro MCP Server\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Server Mode:\n")
		fmt.Fprintf(os.Stderr, "  %s                                Start MCP server (stdio)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --http                         Start streamable HTTP server\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nSetup:\n")
		fmt.Fprintf(os.Stderr, "  %s --create-companion <principal> Create a companion profile and exit\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  DB_TYPE            Database type (sqlite or postgres)\n")
		fmt.Fprintf(os.Stderr, "  DB_PATH            SQLite database path\n")
		fmt.Fprintf(os.Stderr, "  DB_DSN             PostgreSQL connection string\n")
		fmt.Fprintf(os.Stderr, "  PORT               Server port (HTTP mode only)\n")
		fmt.Fprintf(os.Stderr, "  <provider keys>    One variable per configured provider (api_key_env)\n")
	}

	flag.Parse()

	// Load configuration
	var cfg *config.Config
	var err error

	if *configPath != "" {
		cfg, err = config.LoadFromPath(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config from %s: %v", *configPath, err)
		}
		log.Printf("Loaded configuration from %s", *configPath)
	} else {
		cfg, err = config.Load()
		if err != nil {
			log.Fatalf("Failed to load default config: %v", err)
		}
		log.Printf("Loaded configuration from ~/%s", config.DefaultConfigDir)
	}

	applyEnvOverrides(cfg)
	applyCLIOverrides(cfg, *dbType, *dbPath, *dbDSN, *tablesDir, *port)

	log.Printf("Configuration: database=%s", cfg.Database.Type)

	// Connect database; gorm logs route through slog on stderr
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	store := emotion.NewGormStore(db)

	// SETUP MODE: create a companion profile and exit
	if *createCompanion != "" {
		runCreateCompanion(store, *createCompanion, *role)
		return
	}

	// Load the reference tables
	tables, err := config.LoadTables(cfg.Tables.Dir)
	if err != nil {
		log.Fatalf("Failed to load reference tables from %s: %v", cfg.Tables.Dir, err)
	}
	log.Printf("Loaded %d event types, %d trigger rules", len(tables.EventTypes), len(tables.TriggerRules))

	// Daily quota
	tracker, err := quota.NewTracker(db, cfg.Quota.MinDaily, cfg.Quota.MaxDaily,
		rand.New(rand.NewSource(time.Now().UnixNano())), time.Now, logger)
	if err != nil {
		log.Fatalf("Failed to initialize quota tracker: %v", err)
	}

	// Trigger evaluation
	contacts := trigger.NewGormContacts(db)
	matcher := trigger.NewSyncMatcher(contacts)
	evaluator := trigger.NewEvaluator(tables, tracker, matcher,
		rand.New(rand.NewSource(time.Now().UnixNano())), logger)

	// Emotion ledger
	ledger := emotion.NewLedger(store, logger)

	// LLM failover and generation pipeline
	manager := llm.NewManager(llm.BuildRegistry(cfg.Providers), cfg.Generation.MaxSwitchesPerRequest, logger)
	enabled := 0
	for _, p := range cfg.Providers {
		if p.Enabled {
			enabled++
		}
	}
	var generator diary.Generator
	if enabled > 0 {
		generator = manager
		log.Printf("LLM providers enabled: %d", enabled)
	} else {
		log.Println("No LLM providers enabled, diaries come from templates")
	}

	pipeline, err := diary.NewPipeline(tables, generator,
		time.Duration(cfg.Generation.RequestTimeoutSeconds)*time.Second,
		rand.New(rand.NewSource(time.Now().UnixNano())), logger)
	if err != nil {
		log.Fatalf("Failed to build generation pipeline: %v", err)
	}

	// Optional git-backed archive
	var jnl *journal.Journal
	if cfg.Journal.Enabled {
		jnl, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			log.Fatalf("Failed to open journal at %s: %v", cfg.Journal.Path, err)
		}
		log.Printf("Journal archive at %s", cfg.Journal.Path)
	}

	eng := engine.New(tables, evaluator, ledger, pipeline, db, jnl, logger)
	defer func() {
		if err := eng.Close(10 * time.Second); err != nil {
			log.Printf("Engine shutdown: %v", err)
		}
	}()

	// Midnight quota rollover for idle processes
	sched := scheduler.NewScheduler(tracker, time.Minute, logger)
	sched.Start()
	defer sched.Stop()

	toolCtx := tools.NewToolContext(eng, contacts, tracker, manager)
	srv := server.NewMCPServer(cfg, Version, toolCtx)

	if *httpMode {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("HTTP server starting on %s", addr)
		if err := srv.ServeHTTP(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
		return
	}

	log.Println("MCP server ready (stdio mode) - 5 tools registered")
	if err := srv.ServeStdio(); err != nil {
		log.Fatalf("MCP server error: %v", err)
	}
}

// runCreateCompanion provisions an emotion profile for a principal
func runCreateCompanion(store *emotion.GormStore, principalID, role string) {
	r := database.Role(role)
	if r != database.RoleLively && r != database.RoleCalm {
		log.Fatalf("Invalid role '%s' (want 'lively' or 'calm')", role)
	}

	profile, err := store.Create(principalID, r)
	if err != nil {
		log.Fatalf("Failed to create companion: %v", err)
	}
	log.Printf("Companion created for '%s' (role: %s, x=%d y=%d intimacy=%d)",
		principalID, profile.Role, profile.XValue, profile.YValue, profile.Intimacy)
}

// applyEnvOverrides applies environment variable overrides to configuration
func applyEnvOverrides(cfg *config.Config) {
	if dbType := getEnv("DB_TYPE", "KOKORO_DB_TYPE"); dbType != "" {
		cfg.Database.Type = dbType
		log.Printf("Database type from ENV: %s", dbType)
	}

	if dbPath := getEnv("DB_PATH", "KOKORO_DB_PATH"); dbPath != "" {
		cfg.Database.SQLitePath = dbPath
		log.Printf("Database path from ENV")
	}

	if dbDSN := getEnv("DB_DSN", "KOKORO_DB_DSN"); dbDSN != "" {
		cfg.Database.PostgresDSN = dbDSN
		log.Printf("Database DSN from ENV (hidden)")
	}

	if portStr := getEnv("PORT", "KOKORO_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Server.Port = port
			log.Printf("Port from ENV: %d", port)
		}
	}
}

// applyCLIOverrides applies command-line flag overrides to configuration
func applyCLIOverrides(cfg *config.Config, dbType, dbPath, dbDSN, tablesDir string, port int) {
	if dbType != "" {
		cfg.Database.Type = dbType
		log.Printf("Database type from CLI: %s", dbType)
	}

	if dbPath != "" {
		cfg.Database.SQLitePath = dbPath
		log.Printf("Database path from CLI")
	}

	if dbDSN != "" {
		cfg.Database.PostgresDSN = dbDSN
		log.Printf("Database DSN from CLI (hidden)")
	}

	if tablesDir != "" {
		cfg.Tables.Dir = tablesDir
		log.Printf("Tables directory from CLI: %s", tablesDir)
	}

	if port > 0 {
		cfg.Server.Port = port
		log.Printf("Port from CLI: %d", port)
	}
}

// getEnv tries multiple environment variable names and returns the first non-empty value
func getEnv(names ...string) string {
	for _, name := range names {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}
