package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricewatch/config"
	"pricewatch/fetcher"
	"pricewatch/httputil"
	"pricewatch/identity"
	"pricewatch/logging"
	"pricewatch/notifier"
	"pricewatch/reconciler"
	"pricewatch/scheduler"
	"pricewatch/server"
	"pricewatch/storage"
	"pricewatch/workers"
)

var (
	runOnce = flag.Bool("run-once", false, "Run one price check batch and exit")
)

// store is the full persistence surface main wires together. Both the
// Postgres and SQLite stores satisfy it.
type store interface {
	reconciler.Store
	server.RunHistory
	workers.ImageStore
	Close()
}

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("pricewatch.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting pricewatch...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Loaded %d site configs", len(cfg.Sites))
	for id, site := range cfg.Sites {
		log.Printf("  - %s (%s)", site.Name, id)
	}

	clients := httputil.NewClients(cfg.Fetcher.ProxyURL)

	ctx := context.Background()

	var (
		st  store
		dir reconciler.Directory
	)

	switch cfg.Database.Driver {
	case "sqlite":
		sqliteStore, err := storage.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			log.Fatalf("Failed to open SQLite: %v", err)
		}
		log.Printf("SQLite database: %s", cfg.Database.Path)
		st = sqliteStore
		// Owner emails come from the local users table.
		dir = sqliteStore
	default:
		pgStore, err := storage.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Database.URL))
		st = pgStore
		dir = identity.NewSupabaseDirectory(&cfg.Supabase, clients.API)
	}
	defer st.Close()

	router := fetcher.NewRouter(cfg, clients)
	defer router.Close()

	alerts := notifier.NewResendNotifier(&cfg.Resend, clients.API)

	rec := reconciler.New(st, router, alerts, dir,
		cfg.Fetcher.ItemTimeout, time.Duration(cfg.Fetcher.DelayMS)*time.Millisecond)

	if *runOnce {
		log.Println("Running price check...")
		result, err := rec.RunBatch(ctx)
		if err != nil {
			log.Fatalf("Price check failed: %v", err)
		}
		log.Printf("Price check complete: %d checked, %d updated, %d failed, %d changes, %d alerts",
			result.Total, result.Updated, result.Failed, result.PriceChanges, result.AlertsSent)
		return
	}

	// Daemon mode
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(&cfg.Scheduler, rec)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	if cfg.S3.MirrorImages {
		uploader, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("Failed to configure S3: %v", err)
		}
		imageWorker := workers.NewImageWorker(st, uploader)
		go imageWorker.Run(ctx, 20, 10*time.Minute)
		log.Println("Image worker started")
	}

	srv := server.New(&cfg.Server, rec, st)
	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start HTTP server: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Goodbye!")
}

// maskConnectionString masks the password in a connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
