package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Append-only audit trail, keyed by run_id. Nothing here is ever updated or
// deleted by the pipeline.

// AuditRejectedRow is one record that failed validation, with the full typed
// field values as a JSON document and every violated reason joined into one
// string.
type AuditRejectedRow struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	Table     string    `gorm:"column:table_name;size:100;not null;index" json:"table_name"`
	Record    string    `gorm:"type:json;not null" json:"record"`
	Reason    string    `gorm:"type:text;not null" json:"reason"`
	RunId     string    `gorm:"size:50;not null;index" json:"run_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (AuditRejectedRow) TableName() string {
	return "audit_rejected_rows"
}

// AuditDqResult is the outcome of one data quality check over a published
// silver relation. Report-only, a failed check never blocks publishing.
type AuditDqResult struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	Table       string    `gorm:"column:table_name;size:100;not null;index" json:"table_name"`
	CheckName   string    `gorm:"size:200;not null" json:"check_name"`
	PassFail    bool      `gorm:"not null" json:"pass_fail"`
	BadRowCount int       `gorm:"default:0" json:"bad_row_count"`
	RunId       string    `gorm:"size:50;not null;index" json:"run_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (AuditDqResult) TableName() string {
	return "audit_dq_results"
}

// AuditEtlLog is one lineage entry per pipeline step per entity: row counts
// in and out plus a bounded, order-independent content fingerprint of the
// published relation. The checksum is nullable, a fingerprint failure is
// logged and the counts recorded anyway.
type AuditEtlLog struct {
	ID               int       `gorm:"primaryKey" json:"id"`
	RunId            string    `gorm:"size:50;not null;index" json:"run_id"`
	RunTimestamp     time.Time `gorm:"not null" json:"run_timestamp"`
	StepExecuted     string    `gorm:"size:100;not null" json:"step_executed"`
	Table            string    `gorm:"column:table_name;size:100" json:"table_name"`
	InputRowCount    int       `json:"input_row_count"`
	OutputRowCount   int       `json:"output_row_count"`
	RejectedRowCount int       `json:"rejected_row_count"`
	DataChecksum     *string   `gorm:"size:64" json:"data_checksum"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (AuditEtlLog) TableName() string {
	return "audit_etl_log"
}

// AuditReconResult is one named scalar comparison between the validated
// silver relations and the gold aggregates. Diff is gold minus silver.
type AuditReconResult struct {
	ID              int             `gorm:"primaryKey" json:"id"`
	RunId           string          `gorm:"size:50;not null;index" json:"run_id"`
	CheckName       string          `gorm:"size:200;not null" json:"check_name"`
	LhsValue        decimal.Decimal `gorm:"type:decimal(20,6)" json:"lhs_value"`
	RhsValue        decimal.Decimal `gorm:"type:decimal(20,6)" json:"rhs_value"`
	Diff            decimal.Decimal `gorm:"type:decimal(20,6)" json:"diff"`
	WithinTolerance bool            `gorm:"not null" json:"within_tolerance"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (AuditReconResult) TableName() string {
	return "audit_recon_results"
}
