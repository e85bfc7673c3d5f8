package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/ridelake_backend/config"
	"github.com/mmdatafocus/ridelake_backend/utils"
	"gorm.io/gorm"
)

// EtlEventRecord is the transactional outbox for batch lifecycle events.
// Rows are written in the same transaction that closes the batch run; the
// dispatcher publishes them to Pub/Sub after commit.
type EtlEventRecord struct {
	ID            int          `gorm:"primaryKey;index:idx_event_dispatch,priority:3" json:"id"`
	RunId         string       `gorm:"size:50;not null;index" json:"run_id"`
	EventType     EtlEventType `gorm:"size:60;not null" json:"event_type"`
	Payload       []byte       `gorm:"type:blob" json:"payload"`
	CorrelationId string       `gorm:"size:64;index" json:"correlation_id"`

	// Publish metadata (publish happens after commit via dispatcher).
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_event_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_event_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (EtlEventRecord) TableName() string {
	return "etl_event_records"
}

func ConvertToEtlEventMessage(record EtlEventRecord) config.EtlEventMessage {
	return config.EtlEventMessage{
		ID:            record.ID,
		RunId:         record.RunId,
		EventType:     string(record.EventType),
		OccurredAt:    record.CreatedAt,
		Payload:       record.Payload,
		CorrelationId: record.CorrelationId,
	}
}

// EnqueueBatchEvent stages one lifecycle event for the finished run. The
// summary travels as the event payload so consumers do not have to query
// the audit tables for the common case.
func EnqueueBatchEvent(ctx context.Context, tx *gorm.DB, summary BatchRunSummary) (*EtlEventRecord, error) {
	eventType, ok := EventTypeForBatchStatus(summary.Status)
	if !ok {
		return nil, nil
	}
	payload, err := utils.MarshalToJSON(summary)
	if err != nil {
		return nil, err
	}
	record := EtlEventRecord{
		RunId:         summary.RunId,
		EventType:     eventType,
		Payload:       []byte(payload),
		CorrelationId: summary.CorrelationId,
		PublishStatus: OutboxPublishStatusPending,
	}
	if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}
