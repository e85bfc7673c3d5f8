package main

import (
	"context"
	"errors"
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
)

// One-shot pipeline run. Exit codes: 0 completed clean, 2 completed with
// warnings, 1 failed.
func main() {
	layerFlag := flag.String("layer", "all", "Layer to run: bronze, silver, gold, or all")
	force := flag.Bool("force", false, "Run even when the last scheduled run is recent")
	flag.Parse()

	layer, err := models.ParseEtlLayer(strings.TrimSpace(*layerFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid --layer %q: %v\n", *layerFlag, err)
		os.Exit(1)
	}

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

	if *force {
		logger.WithFields(logrus.Fields{"field": "etl"}).Warn("--force set; schedule guards are ignored")
	} else if last, ok := recentRun(); ok {
		logger.WithFields(logrus.Fields{
			"field":       "etl",
			"last_run_id": last.RunId,
			"last_status": last.Status,
		}).Warn("a recent run already exists; pass --force to run anyway")
		os.Exit(0)
	}

	// The source is only reached during the bronze layer.
	var source sheetsource.RowSource
	if layer == models.EtlLayerBronze || layer == models.EtlLayerAll {
		source, err = sheetsource.NewRowSource(sigCtx, logger)
		if err != nil {
			config.LogError(logger, "main.go", "main", "Create row source", nil, err)
			os.Exit(1)
		}
	}

	pipeline := workflow.NewEtlPipeline(db, logger, source, layer)
	summary, err := pipeline.Run(utils.SetActorInContext(sigCtx, "cli"))
	if err != nil {
		if errors.Is(err, utils.ErrPipelineLocked) {
			fmt.Fprintln(os.Stderr, "another pipeline run holds the lock")
		}
		config.LogError(logger, "main.go", "main", "Run pipeline", string(layer), err)
		os.Exit(1)
	}

	if report, reportErr := workflow.BuildRunReport(sigCtx, db, summary.RunId); reportErr == nil {
		workflow.LogRunReport(logger, report)
	} else {
		config.LogError(logger, "main.go", "main", "Build run report", summary.RunId, reportErr)
	}

	switch summary.Status {
	case models.BatchStatusCompleted:
		os.Exit(0)
	case models.BatchStatusCompletedWithWarnings:
		os.Exit(2)
	default:
		os.Exit(1)
	}
}

// recentRun reports whether the cached last summary started within the
// cooldown window (RUN_COOLDOWN_MINUTES, default 60). A cache miss, or Redis
// being down, never blocks a run.
func recentRun() (models.BatchRunSummary, bool) {
	var last models.BatchRunSummary
	found, err := config.GetRedisObject(models.LastRunSummaryRedisKey, &last)
	if err != nil || !found {
		return models.BatchRunSummary{}, false
	}
	cooldown := time.Duration(60) * time.Minute
	if raw := strings.TrimSpace(os.Getenv("RUN_COOLDOWN_MINUTES")); raw != "" {
		if n, convErr := strconv.Atoi(raw); convErr == nil && n >= 0 {
			cooldown = time.Duration(n) * time.Minute
		}
	}
	return last, time.Since(last.StartedAt) < cooldown
}
