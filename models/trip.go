package models

import (
	"time"

	"github.com/mmdatafocus/ridelake_backend/utils"
	"github.com/shopspring/decimal"
)

// BronzeTrip is one staged trip row as fetched from the source.
type BronzeTrip struct {
	ID              int                 `gorm:"primaryKey" json:"id"`
	TripId          *string             `gorm:"size:64;index" json:"trip_id"`
	RiderId         *string             `gorm:"size:64" json:"rider_id"`
	DriverId        *string             `gorm:"size:64" json:"driver_id"`
	VehicleId       *string             `gorm:"size:64" json:"vehicle_id"`
	RequestTs       *time.Time          `json:"request_ts"`
	PickupTs        *time.Time          `json:"pickup_ts"`
	DropoffTs       *time.Time          `json:"dropoff_ts"`
	PickupLocation  *string             `gorm:"size:255" json:"pickup_location"`
	DropLocation    *string             `gorm:"size:255" json:"drop_location"`
	DistanceKm      decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"distance_km"`
	DurationMin     decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"duration_min"`
	WaitTimeMinutes decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"wait_time_minutes"`
	SurgeMultiplier decimal.NullDecimal `gorm:"type:decimal(8,4)" json:"surge_multiplier"`
	BaseFareUsd     decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"base_fare_usd"`
	TaxUsd          decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"tax_usd"`
	TipUsd          decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"tip_usd"`
	TotalFareUsd    decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"total_fare_usd"`
	Status          *string             `gorm:"size:50" json:"status"`
}

func (BronzeTrip) TableName() string {
	return "bronze_trips"
}

// NewBronzeTripFromRow maps one source row: trip_id, rider_id, driver_id,
// vehicle_id, request_ts, pickup_ts, dropoff_ts, pickup_location,
// drop_location, distance_km, duration_min, wait_time_minutes,
// surge_multiplier, base_fare_usd, tax_usd, tip_usd, total_fare_usd, status.
func NewBronzeTripFromRow(row []string) BronzeTrip {
	return BronzeTrip{
		TripId:          utils.RawCell(row, 0),
		RiderId:         utils.RawCell(row, 1),
		DriverId:        utils.RawCell(row, 2),
		VehicleId:       utils.RawCell(row, 3),
		RequestTs:       utils.ParseLenientTimestamp(utils.CellAt(row, 4)),
		PickupTs:        utils.ParseLenientTimestamp(utils.CellAt(row, 5)),
		DropoffTs:       utils.ParseLenientTimestamp(utils.CellAt(row, 6)),
		PickupLocation:  utils.RawCell(row, 7),
		DropLocation:    utils.RawCell(row, 8),
		DistanceKm:      utils.ParseLenientDecimal(utils.CellAt(row, 9)),
		DurationMin:     utils.ParseLenientDecimal(utils.CellAt(row, 10)),
		WaitTimeMinutes: utils.ParseLenientDecimal(utils.CellAt(row, 11)),
		SurgeMultiplier: utils.ParseLenientDecimal(utils.CellAt(row, 12)),
		BaseFareUsd:     utils.ParseLenientDecimal(utils.CellAt(row, 13)),
		TaxUsd:          utils.ParseLenientDecimal(utils.CellAt(row, 14)),
		TipUsd:          utils.ParseLenientDecimal(utils.CellAt(row, 15)),
		TotalFareUsd:    utils.ParseLenientDecimal(utils.CellAt(row, 16)),
		Status:          utils.RawCell(row, 17),
	}
}

// SilverTrip is the typed, cleaned trip record.
type SilverTrip struct {
	TripId          string              `gorm:"primaryKey;size:64" json:"trip_id"`
	RiderId         *string             `gorm:"size:64;index" json:"rider_id"`
	DriverId        *string             `gorm:"size:64;index" json:"driver_id"`
	VehicleId       *string             `gorm:"size:64;index" json:"vehicle_id"`
	RequestTs       *time.Time          `json:"request_ts"`
	PickupTs        *time.Time          `json:"pickup_ts"`
	DropoffTs       *time.Time          `json:"dropoff_ts"`
	PickupLocation  *string             `gorm:"size:255" json:"pickup_location"`
	DropLocation    *string             `gorm:"size:255" json:"drop_location"`
	DistanceKm      decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"distance_km"`
	DurationMin     decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"duration_min"`
	WaitTimeMinutes decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"wait_time_minutes"`
	SurgeMultiplier decimal.NullDecimal `gorm:"type:decimal(8,4)" json:"surge_multiplier"`
	BaseFareUsd     decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"base_fare_usd"`
	TaxUsd          decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"tax_usd"`
	TipUsd          decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"tip_usd"`
	TotalFareUsd    decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"total_fare_usd"`
	Status          *string             `gorm:"size:50" json:"status"`
}

func (SilverTrip) TableName() string {
	return "silver_trips"
}

// ToSilverBase cleans string fields and title-cases the status. Returns
// false when trip_id is blank.
func (b *BronzeTrip) ToSilverBase() (SilverTrip, bool) {
	id := utils.CleanString(utils.DereferencePtr(b.TripId))
	if id == nil {
		return SilverTrip{}, false
	}
	return SilverTrip{
		TripId:          *id,
		RiderId:         utils.CleanString(utils.DereferencePtr(b.RiderId)),
		DriverId:        utils.CleanString(utils.DereferencePtr(b.DriverId)),
		VehicleId:       utils.CleanString(utils.DereferencePtr(b.VehicleId)),
		RequestTs:       b.RequestTs,
		PickupTs:        b.PickupTs,
		DropoffTs:       b.DropoffTs,
		PickupLocation:  utils.CleanString(utils.DereferencePtr(b.PickupLocation)),
		DropLocation:    utils.CleanString(utils.DereferencePtr(b.DropLocation)),
		DistanceKm:      b.DistanceKm,
		DurationMin:     b.DurationMin,
		WaitTimeMinutes: b.WaitTimeMinutes,
		SurgeMultiplier: b.SurgeMultiplier,
		BaseFareUsd:     b.BaseFareUsd,
		TaxUsd:          b.TaxUsd,
		TipUsd:          b.TipUsd,
		TotalFareUsd:    b.TotalFareUsd,
		Status:          utils.CleanTitle(utils.DereferencePtr(b.Status)),
	}, true
}

// DedupSilverTrips keeps the most recent request per trip_id.
func DedupSilverTrips(records []SilverTrip) []SilverTrip {
	return dedupLatest(records,
		func(r *SilverTrip) string { return r.TripId },
		func(r *SilverTrip) *time.Time { return r.RequestTs },
	)
}

// fareSumTolerance absorbs float noise from upstream spreadsheets. It is a
// representation tolerance, not a business one.
var fareSumTolerance = decimal.New(1, -6)

// TripValidationRules returns the trip rule set in declaration order.
// Missing numeric fields count as zero, so they pass the non-negative rules
// and contribute nothing to the fare identity.
func TripValidationRules() []RowRule[SilverTrip] {
	rules := []RowRule[SilverTrip]{
		{
			Reason: "Missing rider_id",
			Failed: func(rec *SilverTrip) bool { return rec.RiderId == nil },
		},
		{
			Reason: "Missing driver_id",
			Failed: func(rec *SilverTrip) bool { return rec.DriverId == nil },
		},
		{
			Reason: "Missing vehicle_id",
			Failed: func(rec *SilverTrip) bool { return rec.VehicleId == nil },
		},
		{
			Reason: "pickup_ts before request_ts",
			Failed: func(rec *SilverTrip) bool {
				return rec.PickupTs != nil && rec.RequestTs != nil && rec.PickupTs.Before(*rec.RequestTs)
			},
		},
		{
			Reason: "dropoff_ts before pickup_ts",
			Failed: func(rec *SilverTrip) bool {
				return rec.DropoffTs != nil && rec.PickupTs != nil && rec.DropoffTs.Before(*rec.PickupTs)
			},
		},
	}

	nonNegatives := []struct {
		label string
		field func(rec *SilverTrip) decimal.NullDecimal
	}{
		{"distance_km", func(rec *SilverTrip) decimal.NullDecimal { return rec.DistanceKm }},
		{"duration_min", func(rec *SilverTrip) decimal.NullDecimal { return rec.DurationMin }},
		{"wait_time_minutes", func(rec *SilverTrip) decimal.NullDecimal { return rec.WaitTimeMinutes }},
		{"base_fare_usd", func(rec *SilverTrip) decimal.NullDecimal { return rec.BaseFareUsd }},
		{"tax_usd", func(rec *SilverTrip) decimal.NullDecimal { return rec.TaxUsd }},
		{"tip_usd", func(rec *SilverTrip) decimal.NullDecimal { return rec.TipUsd }},
		{"total_fare_usd", func(rec *SilverTrip) decimal.NullDecimal { return rec.TotalFareUsd }},
	}
	for _, nn := range nonNegatives {
		field := nn.field
		rules = append(rules, RowRule[SilverTrip]{
			Reason: "Negative " + nn.label,
			Failed: func(rec *SilverTrip) bool {
				return utils.ZeroIfNull(field(rec)).IsNegative()
			},
		})
	}

	rules = append(rules, RowRule[SilverTrip]{
		Reason: "total_fare_usd != base+tax+tip",
		Failed: func(rec *SilverTrip) bool {
			sum := utils.ZeroIfNull(rec.BaseFareUsd).
				Add(utils.ZeroIfNull(rec.TaxUsd)).
				Add(utils.ZeroIfNull(rec.TipUsd))
			return sum.Sub(utils.ZeroIfNull(rec.TotalFareUsd)).Abs().GreaterThan(fareSumTolerance)
		},
	})
	return rules
}
