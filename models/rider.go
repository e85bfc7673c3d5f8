package models

import (
	"time"

	"github.com/mmdatafocus/ridelake_backend/utils"
	"github.com/shopspring/decimal"
)

// BronzeRider is one staged rider row as fetched from the source.
type BronzeRider struct {
	ID                   int                 `gorm:"primaryKey" json:"id"`
	RiderId              *string             `gorm:"size:64;index" json:"rider_id"`
	RiderName            *string             `gorm:"size:255" json:"rider_name"`
	Email                *string             `gorm:"size:255" json:"email"`
	SignupDate           *time.Time          `gorm:"type:date" json:"signup_date"`
	HomeCity             *string             `gorm:"size:255" json:"home_city"`
	RiderRating          decimal.NullDecimal `gorm:"type:decimal(10,4)" json:"rider_rating"`
	DefaultPaymentMethod *string             `gorm:"size:100" json:"default_payment_method"`
	IsVerified           *bool               `json:"is_verified"`
}

func (BronzeRider) TableName() string {
	return "bronze_riders"
}

// NewBronzeRiderFromRow maps one source row: rider_id, rider_name, email,
// signup_date, home_city, rider_rating, default_payment_method, is_verified.
func NewBronzeRiderFromRow(row []string) BronzeRider {
	return BronzeRider{
		RiderId:              utils.RawCell(row, 0),
		RiderName:            utils.RawCell(row, 1),
		Email:                utils.RawCell(row, 2),
		SignupDate:           utils.ParseLenientDate(utils.CellAt(row, 3)),
		HomeCity:             utils.RawCell(row, 4),
		RiderRating:          utils.ParseLenientDecimal(utils.CellAt(row, 5)),
		DefaultPaymentMethod: utils.RawCell(row, 6),
		IsVerified:           utils.ParseLenientBool(utils.CellAt(row, 7)),
	}
}

// SilverRider is the typed, cleaned rider record.
type SilverRider struct {
	RiderId              string              `gorm:"primaryKey;size:64" json:"rider_id"`
	RiderName            *string             `gorm:"size:255" json:"rider_name"`
	Email                *string             `gorm:"size:255" json:"email"`
	SignupDate           *time.Time          `gorm:"type:date" json:"signup_date"`
	HomeCity             *string             `gorm:"size:255" json:"home_city"`
	RiderRating          decimal.NullDecimal `gorm:"type:decimal(10,4)" json:"rider_rating"`
	DefaultPaymentMethod *string             `gorm:"size:100" json:"default_payment_method"`
	IsVerified           *bool               `json:"is_verified"`
}

func (SilverRider) TableName() string {
	return "silver_riders"
}

// ToSilverBase cleans string fields, lower-cases the email and title-cases
// the home city. Returns false when rider_id is blank.
func (b *BronzeRider) ToSilverBase() (SilverRider, bool) {
	id := utils.CleanString(utils.DereferencePtr(b.RiderId))
	if id == nil {
		return SilverRider{}, false
	}
	return SilverRider{
		RiderId:              *id,
		RiderName:            utils.CleanString(utils.DereferencePtr(b.RiderName)),
		Email:                utils.CleanLower(utils.DereferencePtr(b.Email)),
		SignupDate:           b.SignupDate,
		HomeCity:             utils.CleanTitle(utils.DereferencePtr(b.HomeCity)),
		RiderRating:          nullRatingOutsideRange(b.RiderRating),
		DefaultPaymentMethod: utils.CleanString(utils.DereferencePtr(b.DefaultPaymentMethod)),
		IsVerified:           b.IsVerified,
	}, true
}

// DedupSilverRiders keeps the most recent signup per rider_id.
func DedupSilverRiders(records []SilverRider) []SilverRider {
	return dedupLatest(records,
		func(r *SilverRider) string { return r.RiderId },
		func(r *SilverRider) *time.Time { return r.SignupDate },
	)
}

// RiderValidationRules returns the rider rule set in declaration order.
func RiderValidationRules() []RowRule[SilverRider] {
	return []RowRule[SilverRider]{
		{
			Reason: "Invalid email",
			Failed: func(rec *SilverRider) bool {
				return rec.Email == nil || !utils.IsValidEmail(*rec.Email)
			},
		},
		{
			Reason: "Rider rating out of range (0-5)",
			Failed: func(rec *SilverRider) bool {
				return ratingOutOfRange(rec.RiderRating)
			},
		},
	}
}
