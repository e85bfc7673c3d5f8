package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/ridelake_backend/utils"
	"gorm.io/gorm"
)

// EtlBatchRun is one pipeline invocation. run_id doubles as the primary key,
// so a second invocation claiming the same second fails the insert instead
// of silently sharing a run.
type EtlBatchRun struct {
	RunId         string      `gorm:"primaryKey;size:50" json:"run_id"`
	Status        BatchStatus `gorm:"size:40;not null;index" json:"status"`
	Layer         EtlLayer    `gorm:"size:20;not null" json:"layer"`
	StartedAt     time.Time   `gorm:"not null" json:"started_at"`
	CompletedAt   *time.Time  `json:"completed_at"`
	TotalInput    int         `gorm:"default:0" json:"total_input"`
	TotalValid    int         `gorm:"default:0" json:"total_valid"`
	TotalRejected int         `gorm:"default:0" json:"total_rejected"`
	CorrelationId string      `gorm:"size:64;index" json:"correlation_id"`
	TriggeredBy   string      `gorm:"size:40" json:"triggered_by"`
	CreatedAt     time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (EtlBatchRun) TableName() string {
	return "etl_batch_runs"
}

// NewRunId returns the batch token for now: YYYYMMDD_HHMMSS.
func NewRunId(now time.Time) string {
	return now.Format("20060102_150405")
}

// BeginBatchRun records the start of a pipeline invocation.
func BeginBatchRun(ctx context.Context, db *gorm.DB, runId string, layer EtlLayer, correlationId string) (*EtlBatchRun, error) {
	actor, ok := utils.GetActorFromContext(ctx)
	if !ok || actor == "" {
		actor = "manual"
	}
	run := EtlBatchRun{
		RunId:         runId,
		Status:        BatchStatusRunning,
		Layer:         layer,
		StartedAt:     time.Now(),
		CorrelationId: correlationId,
		TriggeredBy:   actor,
	}
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, fmt.Errorf("batch run %s already exists: %w", runId, err)
		}
		return nil, err
	}
	return &run, nil
}

// Complete closes the run with its terminal status and totals.
func (r *EtlBatchRun) Complete(ctx context.Context, db *gorm.DB, status BatchStatus, totalInput, totalValid, totalRejected int) error {
	now := time.Now()
	r.Status = status
	r.CompletedAt = &now
	r.TotalInput = totalInput
	r.TotalValid = totalValid
	r.TotalRejected = totalRejected
	return db.WithContext(ctx).Model(&EtlBatchRun{}).
		Where("run_id = ?", r.RunId).
		Updates(map[string]interface{}{
			"status":         status,
			"completed_at":   &now,
			"total_input":    totalInput,
			"total_valid":    totalValid,
			"total_rejected": totalRejected,
		}).Error
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// EntityRunStats is the per-entity slice of a batch summary.
type EntityRunStats struct {
	InputRows    int `json:"input_rows"`
	ValidRows    int `json:"valid_rows"`
	RejectedRows int `json:"rejected_rows"`
}

// BatchRunSummary is the run digest cached in Redis and carried on batch
// events. Entities are keyed by entity name; Warnings lists per-entity
// failures and out-of-tolerance reconciliation checks.
type BatchRunSummary struct {
	RunId         string                        `json:"run_id"`
	Layer         EtlLayer                      `json:"layer"`
	Status        BatchStatus                   `json:"status"`
	StartedAt     time.Time                     `json:"started_at"`
	CompletedAt   *time.Time                    `json:"completed_at,omitempty"`
	Entities      map[EntityType]EntityRunStats `json:"entities"`
	TotalInput    int                           `json:"total_input"`
	TotalValid    int                           `json:"total_valid"`
	TotalRejected int                           `json:"total_rejected"`
	Warnings      []string                      `json:"warnings,omitempty"`
	CorrelationId string                        `json:"correlation_id"`
}

// LastRunSummaryRedisKey caches the most recent BatchRunSummary.
const LastRunSummaryRedisKey = "etl:last_run_summary"
