package models

import (
	"time"

	"github.com/mmdatafocus/ridelake_backend/utils"
	"github.com/shopspring/decimal"
)

// BronzeDriver is one staged driver row as fetched from the source. String
// columns keep their raw values; numeric, date and boolean columns are
// parsed leniently at load time (unparseable becomes NULL). The surrogate id
// preserves input order so deduplication stays deterministic.
type BronzeDriver struct {
	ID            int                 `gorm:"primaryKey" json:"id"`
	DriverId      *string             `gorm:"size:64;index" json:"driver_id"`
	DriverName    *string             `gorm:"size:255" json:"driver_name"`
	Email         *string             `gorm:"size:255" json:"email"`
	Dob           *time.Time          `gorm:"type:date" json:"dob"`
	SignupDate    *time.Time          `gorm:"type:date" json:"signup_date"`
	DriverRating  decimal.NullDecimal `gorm:"type:decimal(10,4)" json:"driver_rating"`
	City          *string             `gorm:"size:255" json:"city"`
	LicenseNumber *string             `gorm:"size:100" json:"license_number"`
	IsActive      *bool               `json:"is_active"`
}

func (BronzeDriver) TableName() string {
	return "bronze_drivers"
}

// NewBronzeDriverFromRow maps one position-significant source row onto the
// staged schema: driver_id, driver_name, email, dob, signup_date,
// driver_rating, city, license_number, is_active.
func NewBronzeDriverFromRow(row []string) BronzeDriver {
	return BronzeDriver{
		DriverId:      utils.RawCell(row, 0),
		DriverName:    utils.RawCell(row, 1),
		Email:         utils.RawCell(row, 2),
		Dob:           utils.ParseLenientDate(utils.CellAt(row, 3)),
		SignupDate:    utils.ParseLenientDate(utils.CellAt(row, 4)),
		DriverRating:  utils.ParseLenientDecimal(utils.CellAt(row, 5)),
		City:          utils.RawCell(row, 6),
		LicenseNumber: utils.RawCell(row, 7),
		IsActive:      utils.ParseLenientBool(utils.CellAt(row, 8)),
	}
}

// SilverDriver is the typed, cleaned driver record. DriverId is never blank,
// rows without it never reach this type.
type SilverDriver struct {
	DriverId      string              `gorm:"primaryKey;size:64" json:"driver_id"`
	DriverName    *string             `gorm:"size:255" json:"driver_name"`
	Email         *string             `gorm:"size:255" json:"email"`
	Dob           *time.Time          `gorm:"type:date" json:"dob"`
	SignupDate    *time.Time          `gorm:"type:date" json:"signup_date"`
	DriverRating  decimal.NullDecimal `gorm:"type:decimal(10,4)" json:"driver_rating"`
	City          *string             `gorm:"size:255" json:"city"`
	LicenseNumber *string             `gorm:"size:100" json:"license_number"`
	IsActive      *bool               `json:"is_active"`
}

func (SilverDriver) TableName() string {
	return "silver_drivers"
}

// ToSilverBase applies field-level cleaning: trims every string, lower-cases
// the email and treats ratings outside 0..5 as unknown. Returns false when
// the natural identifier is blank; such rows cannot be attributed and are
// dropped, not rejected.
func (b *BronzeDriver) ToSilverBase() (SilverDriver, bool) {
	id := utils.CleanString(utils.DereferencePtr(b.DriverId))
	if id == nil {
		return SilverDriver{}, false
	}
	return SilverDriver{
		DriverId:      *id,
		DriverName:    utils.CleanString(utils.DereferencePtr(b.DriverName)),
		Email:         utils.CleanLower(utils.DereferencePtr(b.Email)),
		Dob:           b.Dob,
		SignupDate:    b.SignupDate,
		DriverRating:  nullRatingOutsideRange(b.DriverRating),
		City:          utils.CleanString(utils.DereferencePtr(b.City)),
		LicenseNumber: utils.CleanString(utils.DereferencePtr(b.LicenseNumber)),
		IsActive:      b.IsActive,
	}, true
}

// DedupSilverDrivers keeps the most recent signup per driver_id.
func DedupSilverDrivers(records []SilverDriver) []SilverDriver {
	return dedupLatest(records,
		func(r *SilverDriver) string { return r.DriverId },
		func(r *SilverDriver) *time.Time { return r.SignupDate },
	)
}

// DriverValidationRules returns the driver rule set in declaration order.
// A missing rating passes the range rule; a missing email or license does
// not pass theirs.
func DriverValidationRules() []RowRule[SilverDriver] {
	return []RowRule[SilverDriver]{
		{
			Reason: "Invalid email",
			Failed: func(rec *SilverDriver) bool {
				return rec.Email == nil || !utils.IsValidEmail(*rec.Email)
			},
		},
		{
			Reason: "Missing license number",
			Failed: func(rec *SilverDriver) bool {
				return rec.LicenseNumber == nil
			},
		},
		{
			Reason: "Driver rating out of range (0-5)",
			Failed: func(rec *SilverDriver) bool {
				return ratingOutOfRange(rec.DriverRating)
			},
		},
	}
}

var maxRating = decimal.NewFromInt(5)

// nullRatingOutsideRange nulls ratings outside 0..5 during cleaning.
func nullRatingOutsideRange(rating decimal.NullDecimal) decimal.NullDecimal {
	if rating.Valid && ratingOutOfRange(rating) {
		return decimal.NullDecimal{}
	}
	return rating
}

func ratingOutOfRange(rating decimal.NullDecimal) bool {
	if !rating.Valid {
		return false
	}
	return rating.Decimal.IsNegative() || rating.Decimal.GreaterThan(maxRating)
}
