package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/pinkbeam/platform/pkg/config"
	"github.com/pinkbeam/platform/pkg/email"
	"github.com/pinkbeam/platform/pkg/followup"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var (
	dbURL    = flag.String("db-url", getEnv("DATABASE_URL", "postgres://localhost/pinkbeam?sslmode=disable"), "PostgreSQL connection URL")
	schedule = flag.String("schedule", "0 * * * *", "Cron schedule for follow-up scans (default: hourly)")
	runOnce  = flag.Bool("run-once", false, "Run one scan and exit (for testing and backfills)")
)

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	emailCfg := config.LoadEmailConfig()
	client := email.NewClient(emailCfg, nil)
	dispatcher := email.NewDispatcher(client, emailCfg, nil, nil)
	scanner := followup.NewScanner(db, dispatcher, nil, nil)

	if *runOnce {
		sent, err := scanner.Run(context.Background())
		if err != nil {
			log.Fatalf("Follow-up scan failed: %v", err)
		}
		log.Infof("Follow-up scan complete, %d emails sent", sent)
		return
	}

	c := cron.New()
	_, err = c.AddFunc(*schedule, func() {
		sent, err := scanner.Run(context.Background())
		if err != nil {
			log.WithError(err).Error("Follow-up scan failed")
			return
		}
		log.Infof("Follow-up scan complete, %d emails sent", sent)
	})
	if err != nil {
		log.Fatalf("Failed to schedule follow-up scans: %v", err)
	}

	c.Start()
	log.Infof("Follow-up scheduler started, schedule: %s", *schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info("Shutting down gracefully...")

	ctx := c.Stop()
	<-ctx.Done()
	log.Info("Scheduler stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
