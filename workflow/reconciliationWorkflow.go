package workflow

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/ridelake_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RunReport is the audit digest of one batch: the run row plus every lineage
// step, data quality result, and reconciliation check it recorded.
type RunReport struct {
	Run             models.EtlBatchRun
	Steps           []models.AuditEtlLog
	DqResults       []models.AuditDqResult
	ReconResults    []models.AuditReconResult
	RejectedByTable map[string]int64
}

// BuildRunReport assembles the report for runId from the audit tables.
func BuildRunReport(ctx context.Context, db *gorm.DB, runId string) (*RunReport, error) {
	report := RunReport{RejectedByTable: make(map[string]int64)}

	if err := db.WithContext(ctx).Where("run_id = ?", runId).First(&report.Run).Error; err != nil {
		return nil, fmt.Errorf("failed to read batch run %s: %w", runId, err)
	}
	if err := db.WithContext(ctx).Where("run_id = ?", runId).
		Order("id ASC").Find(&report.Steps).Error; err != nil {
		return nil, fmt.Errorf("failed to read etl log for %s: %w", runId, err)
	}
	if err := db.WithContext(ctx).Where("run_id = ?", runId).
		Order("table_name ASC, id ASC").Find(&report.DqResults).Error; err != nil {
		return nil, fmt.Errorf("failed to read dq results for %s: %w", runId, err)
	}
	if err := db.WithContext(ctx).Where("run_id = ?", runId).
		Order("check_name ASC").Find(&report.ReconResults).Error; err != nil {
		return nil, fmt.Errorf("failed to read recon results for %s: %w", runId, err)
	}

	type rejectedCount struct {
		TableName string
		Total     int64
	}
	var counts []rejectedCount
	err := db.WithContext(ctx).Model(&models.AuditRejectedRow{}).
		Select("table_name, COUNT(*) AS total").
		Where("run_id = ?", runId).
		Group("table_name").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count rejected rows for %s: %w", runId, err)
	}
	for _, c := range counts {
		report.RejectedByTable[c.TableName] = c.Total
	}

	return &report, nil
}

// LogRunReport writes the digest to the log, one line per recorded check.
func LogRunReport(logger *logrus.Logger, report *RunReport) {
	if logger == nil || report == nil {
		return
	}

	logger.WithFields(logrus.Fields{
		"run_id":         report.Run.RunId,
		"status":         report.Run.Status,
		"layer":          report.Run.Layer,
		"total_input":    report.Run.TotalInput,
		"total_valid":    report.Run.TotalValid,
		"total_rejected": report.Run.TotalRejected,
	}).Info("run report")

	for _, step := range report.Steps {
		logger.WithFields(logrus.Fields{
			"run_id":   report.Run.RunId,
			"step":     step.StepExecuted,
			"table":    step.Table,
			"input":    step.InputRowCount,
			"output":   step.OutputRowCount,
			"rejected": step.RejectedRowCount,
		}).Info("run report: step")
	}

	for _, dq := range report.DqResults {
		fields := logrus.Fields{
			"run_id":   report.Run.RunId,
			"table":    dq.Table,
			"check":    dq.CheckName,
			"bad_rows": dq.BadRowCount,
		}
		if dq.PassFail {
			logger.WithFields(fields).Info("run report: dq check passed")
		} else {
			logger.WithFields(fields).Warn("run report: dq check failed")
		}
	}

	for _, recon := range report.ReconResults {
		fields := logrus.Fields{
			"run_id": report.Run.RunId,
			"check":  recon.CheckName,
			"diff":   recon.Diff.String(),
		}
		if recon.WithinTolerance {
			logger.WithFields(fields).Info("run report: reconciliation OK")
		} else {
			logger.WithFields(fields).Warn("run report: reconciliation OUT OF TOLERANCE")
		}
	}
}
