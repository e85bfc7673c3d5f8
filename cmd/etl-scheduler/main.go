package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mmdatafocus/ridelake_backend/config"
	"github.com/mmdatafocus/ridelake_backend/models"
	"github.com/mmdatafocus/ridelake_backend/sheetsource"
	"github.com/mmdatafocus/ridelake_backend/utils"
	"github.com/mmdatafocus/ridelake_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultScheduleHour = 22

// Daily full-pipeline scheduler. Runs every day at SCHEDULE_HOUR:00 local
// time; --once runs a single pass immediately and exits with the run's
// status code.
func main() {
	once := flag.Bool("once", false, "Run one pipeline pass immediately and exit")
	flag.Parse()

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
	config.ConnectRedisWithRetry()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	source, err := sheetsource.NewRowSource(sigCtx, logger)
	if err != nil {
		config.LogError(logger, "main.go", "main", "Create row source", nil, err)
		os.Exit(1)
	}

	if *once {
		status := runPipeline(sigCtx, db, logger, source)
		switch status {
		case models.BatchStatusCompleted:
			os.Exit(0)
		case models.BatchStatusCompletedWithWarnings:
			os.Exit(2)
		default:
			os.Exit(1)
		}
	}

	hour := scheduleHour()
	logger.WithFields(logrus.Fields{
		"field": "scheduler",
		"hour":  hour,
	}).Info("scheduler started")

	for {
		next := nextRunAt(time.Now(), hour)
		logger.WithFields(logrus.Fields{
			"field":    "scheduler",
			"next_run": next.Format(time.RFC3339),
		}).Info("waiting for next scheduled run")

		select {
		case <-sigCtx.Done():
			logger.WithFields(logrus.Fields{"field": "scheduler"}).Info("scheduler stopped")
			return
		case <-time.After(time.Until(next)):
		}

		runPipeline(sigCtx, db, logger, source)
	}
}

func scheduleHour() int {
	raw := strings.TrimSpace(os.Getenv("SCHEDULE_HOUR"))
	if raw == "" {
		return defaultScheduleHour
	}
	hour, err := strconv.Atoi(raw)
	if err != nil || hour < 0 || hour > 23 {
		return defaultScheduleHour
	}
	return hour
}

// nextRunAt returns today's run time, or tomorrow's when it already passed.
func nextRunAt(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func runPipeline(ctx context.Context, db *gorm.DB, logger *logrus.Logger, source sheetsource.RowSource) models.BatchStatus {
	pipeline := workflow.NewEtlPipeline(db, logger, source, models.EtlLayerAll)
	summary, err := pipeline.Run(utils.SetActorInContext(ctx, "scheduler"))
	if err != nil {
		config.LogError(logger, "main.go", "runPipeline", "Run pipeline", nil, err)
		return models.BatchStatusFailed
	}
	return summary.Status
}
