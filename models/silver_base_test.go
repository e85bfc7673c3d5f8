package models

import (
	"testing"
)

func TestNewBronzeDriverFromRow_ShortRowBecomesNulls(t *testing.T) {
	// Trailing blank cells are omitted by both source providers.
	row := []string{"D1", "alice smith"}
	b := NewBronzeDriverFromRow(row)

	if b.DriverId == nil || *b.DriverId != "D1" {
		t.Fatalf("DriverId expected D1, got %v", b.DriverId)
	}
	if b.DriverName == nil || *b.DriverName != "alice smith" {
		t.Fatalf("DriverName expected raw value, got %v", b.DriverName)
	}
	if b.Email != nil || b.Dob != nil || b.SignupDate != nil || b.City != nil || b.LicenseNumber != nil {
		t.Fatalf("missing cells must stage as NULL: %+v", b)
	}
	if b.DriverRating.Valid {
		t.Fatalf("missing rating must be invalid, got %v", b.DriverRating.Decimal)
	}
	if b.IsActive != nil {
		t.Fatalf("missing is_active must be nil, got %v", *b.IsActive)
	}
}

func TestNewBronzeDriverFromRow_SoftFieldFailures(t *testing.T) {
	row := []string{"D1", "Alice", "a@x.com", "not-a-date", "2020-01-15", "lots", "Austin", "L-1", "maybe"}
	b := NewBronzeDriverFromRow(row)

	if b.Dob != nil {
		t.Fatalf("unparseable dob must be NULL, got %v", *b.Dob)
	}
	if b.SignupDate == nil || b.SignupDate.Year() != 2020 {
		t.Fatalf("signup_date expected 2020-01-15, got %v", b.SignupDate)
	}
	if b.DriverRating.Valid {
		t.Fatalf("unparseable rating must be invalid")
	}
	if b.IsActive != nil {
		t.Fatalf("unrecognized boolean must be NULL")
	}
}

func TestBronzeDriverToSilverBase(t *testing.T) {
	raw := BronzeDriver{
		DriverId:      strp("  D1  "),
		DriverName:    strp(" Alice Smith "),
		Email:         strp(" Alice.SMITH@Example.COM "),
		DriverRating:  nd("4.5"),
		City:          strp(" Austin "),
		LicenseNumber: strp(" LIC-1 "),
	}
	rec, ok := raw.ToSilverBase()
	if !ok {
		t.Fatalf("expected conversion to succeed")
	}
	if rec.DriverId != "D1" {
		t.Fatalf("DriverId expected trimmed D1, got %q", rec.DriverId)
	}
	if rec.Email == nil || *rec.Email != "alice.smith@example.com" {
		t.Fatalf("email must be lower-cased, got %v", rec.Email)
	}
	if rec.City == nil || *rec.City != "Austin" {
		t.Fatalf("city expected Austin, got %v", rec.City)
	}
	if !rec.DriverRating.Valid || rec.DriverRating.Decimal.String() != "4.5" {
		t.Fatalf("in-range rating must survive, got %v", rec.DriverRating)
	}
}

func TestBronzeDriverToSilverBase_BlankIdDropsRow(t *testing.T) {
	for _, id := range []*string{nil, strp(""), strp("   ")} {
		raw := BronzeDriver{DriverId: id}
		if _, ok := raw.ToSilverBase(); ok {
			t.Fatalf("blank driver_id %v must drop the row", id)
		}
	}
}

func TestBronzeDriverToSilverBase_OutOfRangeRatingNulled(t *testing.T) {
	raw := BronzeDriver{DriverId: strp("D1"), DriverRating: nd("9.9")}
	rec, ok := raw.ToSilverBase()
	if !ok {
		t.Fatalf("expected conversion to succeed")
	}
	if rec.DriverRating.Valid {
		t.Fatalf("rating outside 0-5 must be nulled, got %v", rec.DriverRating.Decimal)
	}

	raw.DriverRating = nd("-0.5")
	rec, _ = raw.ToSilverBase()
	if rec.DriverRating.Valid {
		t.Fatalf("negative rating must be nulled, got %v", rec.DriverRating.Decimal)
	}
}

func TestBronzeVehicleToSilverBase_CaseNormalization(t *testing.T) {
	raw := BronzeVehicle{
		VehicleId: strp("V1"),
		DriverId:  strp(" D1 "),
		Make:      strp(" toyota "),
		Model:     strp("gran TURISMO"),
		Plate:     strp(" ka-0123 "),
		Color:     strp("BLUE"),
	}
	rec, ok := raw.ToSilverBase()
	if !ok {
		t.Fatalf("expected conversion to succeed")
	}
	if rec.Make == nil || *rec.Make != "Toyota" {
		t.Fatalf("make expected Toyota, got %v", rec.Make)
	}
	if rec.Model == nil || *rec.Model != "Gran Turismo" {
		t.Fatalf("model expected Gran Turismo, got %v", rec.Model)
	}
	if rec.Plate == nil || *rec.Plate != "KA-0123" {
		t.Fatalf("plate expected KA-0123, got %v", rec.Plate)
	}
	if rec.Color == nil || *rec.Color != "Blue" {
		t.Fatalf("color expected Blue, got %v", rec.Color)
	}
}

func TestBronzeTripFromRow_FullWidth(t *testing.T) {
	row := []string{
		"T1", "R1", "D1", "V1",
		"2023-06-15 08:00:00", "06/15/2023 08:05:00", "2023-06-15 08:30:00",
		"Downtown", "Airport",
		"12.3", "25", "4.5", "1.25",
		"10.00", "1.00", "2.00", "13.00",
		"completed",
	}
	b := NewBronzeTripFromRow(row)
	if b.TripId == nil || *b.TripId != "T1" {
		t.Fatalf("TripId expected T1, got %v", b.TripId)
	}
	if b.RequestTs == nil || b.PickupTs == nil || b.DropoffTs == nil {
		t.Fatalf("timestamps must parse: %+v", b)
	}
	if b.PickupTs.Minute() != 5 {
		t.Fatalf("pickup minute expected 5, got %d", b.PickupTs.Minute())
	}
	if !b.TotalFareUsd.Valid || b.TotalFareUsd.Decimal.String() != "13" {
		t.Fatalf("total fare expected 13, got %v", b.TotalFareUsd)
	}

	rec, ok := b.ToSilverBase()
	if !ok {
		t.Fatalf("expected conversion to succeed")
	}
	if rec.Status == nil || *rec.Status != "Completed" {
		t.Fatalf("status expected Completed, got %v", rec.Status)
	}
}

func TestBronzePaymentToSilverBase_MethodOnlyTrimmed(t *testing.T) {
	raw := BronzePayment{
		PaymentId:     strp("P1"),
		TripId:        strp("T1"),
		PaymentMethod: strp("  GPay  "),
		Status:        strp("settled"),
	}
	rec, ok := raw.ToSilverBase()
	if !ok {
		t.Fatalf("expected conversion to succeed")
	}
	// Synonym folding happens right before validation, not here.
	if rec.PaymentMethod == nil || *rec.PaymentMethod != "GPay" {
		t.Fatalf("method expected trimmed GPay, got %v", rec.PaymentMethod)
	}
	if rec.Status == nil || *rec.Status != "Settled" {
		t.Fatalf("status expected Settled, got %v", rec.Status)
	}
}
