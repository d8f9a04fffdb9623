package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"stardrift.io/internal/persistence/journal"
	"stardrift.io/internal/server"
	"stardrift.io/internal/sim/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		dbPath     = flag.String("db", "./data/galaxy.db", "sqlite database path")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		journalDir = flag.String("journal", "", "tick journal directory (empty to disable)")
		seed       = flag.Int64("seed", 1337, "system generation seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	var jw *journal.Writer
	if *journalDir != "" {
		jw = journal.NewWriter(*journalDir)
		defer jw.Close()
	}

	srv, err := server.New(server.Config{
		Addr:    *addr,
		DBPath:  *dbPath,
		Seed:    *seed,
		Tune:    tune,
		Journal: jw,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
	}()

	if err := srv.Run(context.Background(), stop); err != nil {
		logger.Fatalf("server: %v", err)
	}
}
