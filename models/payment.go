package models

import (
	"time"

	"github.com/mmdatafocus/ridelake_backend/utils"
	"github.com/shopspring/decimal"
)

// BronzePayment is one staged payment row as fetched from the source.
type BronzePayment struct {
	ID            int                 `gorm:"primaryKey" json:"id"`
	PaymentId     *string             `gorm:"size:64;index" json:"payment_id"`
	TripId        *string             `gorm:"size:64" json:"trip_id"`
	PaymentDate   *time.Time          `gorm:"type:date" json:"payment_date"`
	PaymentMethod *string             `gorm:"size:100" json:"payment_method"`
	AmountUsd     decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"amount_usd"`
	TipUsd        decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"tip_usd"`
	Status        *string             `gorm:"size:50" json:"status"`
	AuthCode      *string             `gorm:"size:100" json:"auth_code"`
}

func (BronzePayment) TableName() string {
	return "bronze_payments"
}

// NewBronzePaymentFromRow maps one source row: payment_id, trip_id,
// payment_date, payment_method, amount_usd, tip_usd, status, auth_code.
func NewBronzePaymentFromRow(row []string) BronzePayment {
	return BronzePayment{
		PaymentId:     utils.RawCell(row, 0),
		TripId:        utils.RawCell(row, 1),
		PaymentDate:   utils.ParseLenientDate(utils.CellAt(row, 2)),
		PaymentMethod: utils.RawCell(row, 3),
		AmountUsd:     utils.ParseLenientDecimal(utils.CellAt(row, 4)),
		TipUsd:        utils.ParseLenientDecimal(utils.CellAt(row, 5)),
		Status:        utils.RawCell(row, 6),
		AuthCode:      utils.RawCell(row, 7),
	}
}

// SilverPayment is the typed, cleaned payment record.
type SilverPayment struct {
	PaymentId     string              `gorm:"primaryKey;size:64" json:"payment_id"`
	TripId        *string             `gorm:"size:64;index" json:"trip_id"`
	PaymentDate   *time.Time          `gorm:"type:date" json:"payment_date"`
	PaymentMethod *string             `gorm:"size:100" json:"payment_method"`
	AmountUsd     decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"amount_usd"`
	TipUsd        decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"tip_usd"`
	Status        *string             `gorm:"size:50" json:"status"`
	AuthCode      *string             `gorm:"size:100" json:"auth_code"`
}

func (SilverPayment) TableName() string {
	return "silver_payments"
}

// ToSilverBase cleans string fields and title-cases the status. The payment
// method is only trimmed here, synonym folding happens right before
// validation. Returns false when payment_id is blank.
func (b *BronzePayment) ToSilverBase() (SilverPayment, bool) {
	id := utils.CleanString(utils.DereferencePtr(b.PaymentId))
	if id == nil {
		return SilverPayment{}, false
	}
	return SilverPayment{
		PaymentId:     *id,
		TripId:        utils.CleanString(utils.DereferencePtr(b.TripId)),
		PaymentDate:   b.PaymentDate,
		PaymentMethod: utils.CleanString(utils.DereferencePtr(b.PaymentMethod)),
		AmountUsd:     b.AmountUsd,
		TipUsd:        b.TipUsd,
		Status:        utils.CleanTitle(utils.DereferencePtr(b.Status)),
		AuthCode:      utils.CleanString(utils.DereferencePtr(b.AuthCode)),
	}, true
}

// DedupSilverPayments keeps the most recent payment_date per payment_id.
func DedupSilverPayments(records []SilverPayment) []SilverPayment {
	return dedupLatest(records,
		func(r *SilverPayment) string { return r.PaymentId },
		func(r *SilverPayment) *time.Time { return r.PaymentDate },
	)
}

// ApplyPaymentMethodNormalization rewrites a recognizable synonym to its
// canonical method so the closed-set rule and downstream grouping see a
// single spelling. Unrecognized values stay as loaded and fail the rule.
// Applied before rule evaluation to every record, accepted or not, so the
// rejection audit also shows the canonical method where one exists.
func (p *SilverPayment) ApplyPaymentMethodNormalization() {
	norm := NormalizePaymentMethod(p.PaymentMethod)
	if IsKnownPaymentMethod(norm) {
		p.PaymentMethod = &norm
	}
}

// PaymentValidationRules returns the payment rule set in declaration order.
// The closed-set rule evaluates the normalized method, so it expects
// ApplyPaymentMethodNormalization to run first only for the write-back; the
// verdict is the same either way.
func PaymentValidationRules() []RowRule[SilverPayment] {
	return []RowRule[SilverPayment]{
		{
			Reason: "Missing trip_id",
			Failed: func(rec *SilverPayment) bool { return rec.TripId == nil },
		},
		{
			Reason: "Negative amount_usd",
			Failed: func(rec *SilverPayment) bool {
				return utils.ZeroIfNull(rec.AmountUsd).IsNegative()
			},
		},
		{
			Reason: "Negative tip_usd",
			Failed: func(rec *SilverPayment) bool {
				return utils.ZeroIfNull(rec.TipUsd).IsNegative()
			},
		},
		{
			Reason: "Unknown payment_method",
			Failed: func(rec *SilverPayment) bool {
				return !IsKnownPaymentMethod(NormalizePaymentMethod(rec.PaymentMethod))
			},
		},
	}
}
