package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/pinkbeam/platform/pkg/search"
	"github.com/sirupsen/logrus"
)

var (
	dbURL   = flag.String("db-url", getEnv("DATABASE_URL", "postgres://localhost/pinkbeam?sslmode=disable"), "PostgreSQL connection URL")
	timeout = flag.Duration("timeout", 10*time.Minute, "Overall indexing timeout")
	verbose = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	log.Info("Rebuilding search vectors")
	start := time.Now()

	indexer := search.NewIndexer(db, nil)
	stats, err := indexer.IndexAll(ctx)
	if err != nil {
		log.WithError(err).Error("Indexing failed")
		os.Exit(1)
	}

	log.WithFields(logrus.Fields{
		"projects":   stats.Projects,
		"clients":    stats.Clients,
		"tickets":    stats.Tickets,
		"blog_posts": stats.BlogPosts,
		"total":      stats.Total(),
		"elapsed":    time.Since(start).Round(time.Millisecond).String(),
	}).Info("Indexing complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
