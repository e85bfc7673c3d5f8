package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/ridelake_backend/config"
	"github.com/mmdatafocus/ridelake_backend/models"
	"github.com/mmdatafocus/ridelake_backend/sheetsource"
	"github.com/mmdatafocus/ridelake_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	pipelineLockKey = "lock:etl:pipeline"
	pipelineLockTTL = 30 * time.Minute
)

var tracer = otel.Tracer("ridelake-etl")

// EtlPipeline runs the bronze, silver, and gold layers for one batch. A
// Redis lock serializes whole-pipeline runs; within a run, entities fail
// independently and never block each other.
type EtlPipeline struct {
	DB            *gorm.DB
	Logger        *logrus.Logger
	Source        sheetsource.RowSource
	Layer         models.EtlLayer
	RunId         string
	CorrelationId string
}

func NewEtlPipeline(db *gorm.DB, logger *logrus.Logger, source sheetsource.RowSource, layer models.EtlLayer) *EtlPipeline {
	return &EtlPipeline{
		DB:            db,
		Logger:        logger,
		Source:        source,
		Layer:         layer,
		RunId:         models.NewRunId(time.Now()),
		CorrelationId: uuid.NewString(),
	}
}

// Run executes the selected layers and closes the batch with a terminal
// status. The returned error covers hard setup failures (lock held, batch
// row collision); everything downstream lands in the summary status instead.
func (p *EtlPipeline) Run(ctx context.Context) (models.BatchRunSummary, error) {
	ctx = utils.SetCorrelationIdInContext(ctx, p.CorrelationId)
	ctx, span := tracer.Start(ctx, "etl.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", p.RunId),
		attribute.String("layer", string(p.Layer)),
	)

	lock, err := utils.AcquireRunLock(ctx, pipelineLockKey, pipelineLockTTL, "MainWorkflow.go", "Run")
	if err != nil {
		return models.BatchRunSummary{}, err
	}
	if lock != nil {
		defer func() { _ = lock.Release(context.Background()) }()
	}

	run, err := models.BeginBatchRun(ctx, p.DB, p.RunId, p.Layer, p.CorrelationId)
	if err != nil {
		return models.BatchRunSummary{}, err
	}

	p.Logger.WithFields(logrus.Fields{
		"run_id":         p.RunId,
		"layer":          p.Layer,
		"correlation_id": p.CorrelationId,
	}).Info("pipeline started")

	summary := models.BatchRunSummary{
		RunId:         p.RunId,
		Layer:         p.Layer,
		Status:        models.BatchStatusRunning,
		StartedAt:     run.StartedAt,
		Entities:      make(map[models.EntityType]models.EntityRunStats),
		CorrelationId: p.CorrelationId,
	}
	failed := make(map[models.EntityType]bool)

	if p.Layer == models.EtlLayerBronze || p.Layer == models.EtlLayerAll {
		p.runBronze(ctx, &summary, failed)
	}

	var published []models.EntityType
	if p.Layer == models.EtlLayerSilver || p.Layer == models.EtlLayerAll {
		published = p.runSilver(ctx, &summary, failed)
	}

	goldFailed := false
	if p.shouldRunGold(published) {
		goldFailed = p.runGold(ctx, &summary)
	}

	status := p.deriveStatus(&summary, failed, goldFailed)
	summary.Status = status

	totalInput, totalValid, totalRejected := 0, 0, 0
	for _, stats := range summary.Entities {
		totalInput += stats.InputRows
		totalValid += stats.ValidRows
		totalRejected += stats.RejectedRows
	}
	summary.TotalInput = totalInput
	summary.TotalValid = totalValid
	summary.TotalRejected = totalRejected

	// Closing the run and enqueueing its event commit together, so a
	// published event always matches a closed batch row.
	err = p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := run.Complete(ctx, tx, status, totalInput, totalValid, totalRejected); err != nil {
			return err
		}
		summary.CompletedAt = run.CompletedAt
		if config.BatchEventsEnabled() {
			if _, err := models.EnqueueBatchEvent(ctx, tx, summary); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(p.Logger, "MainWorkflow.go", "Run", "Close batch run", p.RunId, err)
		return summary, err
	}

	if err := config.SetRedisObject(models.LastRunSummaryRedisKey, summary, 0); err != nil {
		config.LogError(p.Logger, "MainWorkflow.go", "Run", "Cache run summary", p.RunId, err)
	}

	p.Logger.WithFields(logrus.Fields{
		"run_id":         p.RunId,
		"status":         status,
		"total_input":    totalInput,
		"total_valid":    totalValid,
		"total_rejected": totalRejected,
		"warnings":       len(summary.Warnings),
	}).Info("pipeline finished")
	return summary, nil
}

func (p *EtlPipeline) runBronze(ctx context.Context, summary *models.BatchRunSummary, failed map[models.EntityType]bool) {
	loader := &BronzeLoader{DB: p.DB, Logger: p.Logger, Source: p.Source, RunId: p.RunId}
	counts, failures := loader.LoadAll(ctx)
	for _, entity := range models.AllEntityTypes {
		if err, ok := failures[entity]; ok {
			failed[entity] = true
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("bronze load failed for %s: %v", entity, err))
			continue
		}
		summary.Entities[entity] = models.EntityRunStats{InputRows: int(counts[entity])}
	}
}

// runSilver builds and validates every entity whose bronze load survived and
// returns the entities whose silver relation was published this run.
func (p *EtlPipeline) runSilver(ctx context.Context, summary *models.BatchRunSummary, failed map[models.EntityType]bool) []models.EntityType {
	builder := &SilverBuilder{DB: p.DB, Logger: p.Logger, RunId: p.RunId}
	var published []models.EntityType

	for _, entity := range models.AllEntityTypes {
		if failed[entity] {
			p.Logger.WithFields(logrus.Fields{
				"run_id": p.RunId,
				"entity": entity,
			}).Warn("silver skipped, bronze load failed")
			continue
		}

		baseCount, err := builder.BuildBase(ctx, entity)
		if err != nil {
			failed[entity] = true
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("silver base build failed for %s: %v", entity, err))
			continue
		}

		accepted, rejected, err := builder.Validate(ctx, entity)
		if err != nil {
			failed[entity] = true
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("silver validation failed for %s: %v", entity, err))
			continue
		}

		summary.Entities[entity] = models.EntityRunStats{
			InputRows:    int(baseCount),
			ValidRows:    int(accepted),
			RejectedRows: int(rejected),
		}
		published = append(published, entity)
	}

	if len(published) > 0 {
		if failedChecks := builder.RunDqChecks(ctx, published); failedChecks > 0 {
			p.Logger.WithFields(logrus.Fields{
				"run_id":        p.RunId,
				"failed_checks": failedChecks,
			}).Warn("dq battery found violations")
		}
	}
	return published
}

func (p *EtlPipeline) shouldRunGold(published []models.EntityType) bool {
	switch p.Layer {
	case models.EtlLayerGold:
		return true
	case models.EtlLayerAll:
		return len(published) > 0
	default:
		return false
	}
}

// runGold rebuilds the aggregates, reconciles silver against gold, and
// exports when enabled. Returns true when the build itself failed.
func (p *EtlPipeline) runGold(ctx context.Context, summary *models.BatchRunSummary) bool {
	gold := &GoldBuilder{DB: p.DB, Logger: p.Logger, RunId: p.RunId}

	goldFailed := false
	if err := gold.Build(ctx); err != nil {
		goldFailed = true
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("gold build failed: %v", err))
	}

	// Reconciliation still runs against whatever gold tables exist, so drift
	// against a stale build is recorded rather than hidden.
	results, err := gold.Reconcile(ctx)
	if err != nil {
		summary.Warnings = append(summary.Warnings, err.Error())
	}
	for _, result := range results {
		if !result.WithinTolerance {
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("reconciliation drift on %s: diff=%s", result.CheckName, result.Diff.String()))
		}
	}

	if !goldFailed && config.GoldExportEnabled() {
		if err := gold.ExportTables(ctx); err != nil {
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("gold export failed: %v", err))
			config.LogError(p.Logger, "MainWorkflow.go", "runGold", "Export gold tables", p.RunId, err)
		}
	}
	return goldFailed
}

// deriveStatus maps the run outcome onto a terminal batch status. Partial
// entity failures and reconciliation drift degrade to warnings; the run only
// fails when the gold build fails or no entity survived at all.
func (p *EtlPipeline) deriveStatus(summary *models.BatchRunSummary, failed map[models.EntityType]bool, goldFailed bool) models.BatchStatus {
	if goldFailed {
		return models.BatchStatusFailed
	}
	if p.Layer != models.EtlLayerGold && len(failed) == len(models.AllEntityTypes) {
		return models.BatchStatusFailed
	}
	if len(summary.Warnings) > 0 {
		return models.BatchStatusCompletedWithWarnings
	}
	return models.BatchStatusCompleted
}
