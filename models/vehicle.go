package models

import (
	"fmt"
	"time"

	"github.com/mmdatafocus/ridelake_backend/utils"
)

// BronzeVehicle is one staged vehicle row as fetched from the source.
type BronzeVehicle struct {
	ID               int        `gorm:"primaryKey" json:"id"`
	VehicleId        *string    `gorm:"size:64;index" json:"vehicle_id"`
	DriverId         *string    `gorm:"size:64" json:"driver_id"`
	Make             *string    `gorm:"size:100" json:"make"`
	Model            *string    `gorm:"size:100" json:"model"`
	Year             *int       `json:"year"`
	Plate            *string    `gorm:"size:50" json:"plate"`
	Capacity         *int       `json:"capacity"`
	Color            *string    `gorm:"size:50" json:"color"`
	RegistrationDate *time.Time `gorm:"type:date" json:"registration_date"`
	IsActive         *bool      `json:"is_active"`
}

func (BronzeVehicle) TableName() string {
	return "bronze_vehicles"
}

// NewBronzeVehicleFromRow maps one source row: vehicle_id, driver_id, make,
// model, year, plate, capacity, color, registration_date, is_active.
func NewBronzeVehicleFromRow(row []string) BronzeVehicle {
	return BronzeVehicle{
		VehicleId:        utils.RawCell(row, 0),
		DriverId:         utils.RawCell(row, 1),
		Make:             utils.RawCell(row, 2),
		Model:            utils.RawCell(row, 3),
		Year:             utils.ParseLenientInt(utils.CellAt(row, 4)),
		Plate:            utils.RawCell(row, 5),
		Capacity:         utils.ParseLenientInt(utils.CellAt(row, 6)),
		Color:            utils.RawCell(row, 7),
		RegistrationDate: utils.ParseLenientDate(utils.CellAt(row, 8)),
		IsActive:         utils.ParseLenientBool(utils.CellAt(row, 9)),
	}
}

// SilverVehicle is the typed, cleaned vehicle record.
type SilverVehicle struct {
	VehicleId        string     `gorm:"primaryKey;size:64" json:"vehicle_id"`
	DriverId         *string    `gorm:"size:64;index" json:"driver_id"`
	Make             *string    `gorm:"size:100" json:"make"`
	Model            *string    `gorm:"size:100" json:"model"`
	Year             *int       `json:"year"`
	Plate            *string    `gorm:"size:50" json:"plate"`
	Capacity         *int       `json:"capacity"`
	Color            *string    `gorm:"size:50" json:"color"`
	RegistrationDate *time.Time `gorm:"type:date" json:"registration_date"`
	IsActive         *bool      `json:"is_active"`
}

func (SilverVehicle) TableName() string {
	return "silver_vehicles"
}

// ToSilverBase cleans string fields: make, model and color are title-cased,
// the plate is upper-cased. Returns false when vehicle_id is blank.
func (b *BronzeVehicle) ToSilverBase() (SilverVehicle, bool) {
	id := utils.CleanString(utils.DereferencePtr(b.VehicleId))
	if id == nil {
		return SilverVehicle{}, false
	}
	return SilverVehicle{
		VehicleId:        *id,
		DriverId:         utils.CleanString(utils.DereferencePtr(b.DriverId)),
		Make:             utils.CleanTitle(utils.DereferencePtr(b.Make)),
		Model:            utils.CleanTitle(utils.DereferencePtr(b.Model)),
		Year:             b.Year,
		Plate:            utils.CleanUpper(utils.DereferencePtr(b.Plate)),
		Capacity:         b.Capacity,
		Color:            utils.CleanTitle(utils.DereferencePtr(b.Color)),
		RegistrationDate: b.RegistrationDate,
		IsActive:         b.IsActive,
	}, true
}

// DedupSilverVehicles keeps the most recent registration per vehicle_id.
func DedupSilverVehicles(records []SilverVehicle) []SilverVehicle {
	return dedupLatest(records,
		func(r *SilverVehicle) string { return r.VehicleId },
		func(r *SilverVehicle) *time.Time { return r.RegistrationDate },
	)
}

// VehicleValidationRules returns the vehicle rule set in declaration order.
// The year window tracks the wall clock with an upper bound of current year
// plus one. Missing year or capacity counts as zero and fails its range rule.
func VehicleValidationRules() []RowRule[SilverVehicle] {
	maxYear := time.Now().Year() + 1
	return []RowRule[SilverVehicle]{
		{
			Reason: "Missing driver_id",
			Failed: func(rec *SilverVehicle) bool {
				return rec.DriverId == nil
			},
		},
		{
			Reason: fmt.Sprintf("Invalid year (1980-%d)", maxYear),
			Failed: func(rec *SilverVehicle) bool {
				year := utils.DereferencePtr(rec.Year)
				return year < 1980 || year > maxYear
			},
		},
		{
			Reason: "Capacity out of range (1-8)",
			Failed: func(rec *SilverVehicle) bool {
				capacity := utils.DereferencePtr(rec.Capacity)
				return capacity < 1 || capacity > 8
			},
		},
		{
			Reason: "Invalid plate",
			Failed: func(rec *SilverVehicle) bool {
				return rec.Plate == nil || !utils.IsValidPlate(*rec.Plate)
			},
		},
	}
}
