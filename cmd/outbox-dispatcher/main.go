package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mmdatafocus/ridelake_backend/config"
	"github.com/mmdatafocus/ridelake_backend/models"
	"github.com/mmdatafocus/ridelake_backend/workflow"
	"github.com/sirupsen/logrus"
)

// Long-lived outbox dispatcher: claims pending batch events and publishes
// them to Pub/Sub until interrupted.
func main() {
	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Best effort: a missing topic otherwise surfaces as publish failures on
	// every claimed event.
	if topic := strings.TrimSpace(os.Getenv("PUBSUB_TOPIC")); topic != "" {
		if client, err := config.GetClient(sigCtx); err != nil {
			config.LogError(logger, "main.go", "main", "Init pubsub client", topic, err)
		} else if _, err := config.CreateTopicIfNotExists(client, topic); err != nil {
			config.LogError(logger, "main.go", "main", "Ensure pubsub topic", topic, err)
		}
	}

	dispatcher := workflow.NewOutboxDispatcher(db, logger)
	logger.WithFields(logrus.Fields{
		"field":         "OutboxDispatcher",
		"dispatcher_id": dispatcher.DispatcherID,
	}).Info("outbox dispatcher started")

	dispatcher.Run(sigCtx)

	logger.WithFields(logrus.Fields{"field": "OutboxDispatcher"}).Info("outbox dispatcher stopped")
}
