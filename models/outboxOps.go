package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Operator-facing views over the event outbox. The dispatcher owns the row
// lifecycle; these helpers only inspect it and requeue terminal rows.

// OutboxQueueSummary is a per-status census of the outbox.
type OutboxQueueSummary struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
}

// GetOutboxQueueSummary counts outbox rows by publish status.
func GetOutboxQueueSummary(ctx context.Context, db *gorm.DB) (OutboxQueueSummary, error) {
	var rows []struct {
		PublishStatus string
		Total         int64
	}
	err := db.WithContext(ctx).
		Model(&EtlEventRecord{}).
		Select("publish_status, COUNT(*) AS total").
		Group("publish_status").
		Scan(&rows).Error
	if err != nil {
		return OutboxQueueSummary{}, err
	}

	var summary OutboxQueueSummary
	for _, row := range rows {
		switch row.PublishStatus {
		case OutboxPublishStatusPending:
			summary.Pending = row.Total
		case OutboxPublishStatusProcessing:
			summary.Processing = row.Total
		case OutboxPublishStatusSent:
			summary.Sent = row.Total
		case OutboxPublishStatusFailed:
			summary.Failed = row.Total
		case OutboxPublishStatusDead:
			summary.Dead = row.Total
		}
	}
	return summary, nil
}

// RequeueDeadEvents puts DEAD outbox rows back in front of the dispatcher,
// optionally scoped to one run. Attempts restart from zero; without that the
// dispatcher would re-mark the row DEAD on its next claim.
func RequeueDeadEvents(ctx context.Context, db *gorm.DB, runId string) (int64, error) {
	now := time.Now().UTC()
	q := db.WithContext(ctx).
		Model(&EtlEventRecord{}).
		Where("publish_status = ?", OutboxPublishStatusDead)
	if runId != "" {
		q = q.Where("run_id = ?", runId)
	}

	res := q.Updates(map[string]interface{}{
		"publish_status":     OutboxPublishStatusPending,
		"publish_attempts":   0,
		"next_attempt_at":    &now,
		"locked_at":          nil,
		"locked_by":          nil,
		"last_publish_error": nil,
	})
	return res.RowsAffected, res.Error
}
