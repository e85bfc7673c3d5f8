package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func strp(s string) *string { return &s }

func nd(s string) decimal.NullDecimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func tsPtr(value string) *time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", value)
	if err != nil {
		panic(err)
	}
	return &t
}

func validTrip() SilverTrip {
	return SilverTrip{
		TripId:       "T1",
		RiderId:      strp("R1"),
		DriverId:     strp("D1"),
		VehicleId:    strp("V1"),
		RequestTs:    tsPtr("2023-06-15 08:00:00"),
		PickupTs:     tsPtr("2023-06-15 08:05:00"),
		DropoffTs:    tsPtr("2023-06-15 08:30:00"),
		BaseFareUsd:  nd("10.00"),
		TaxUsd:       nd("1.00"),
		TipUsd:       nd("2.00"),
		TotalFareUsd: nd("13.00"),
	}
}

func TestTripRules_FareIdentityExactSumAccepted(t *testing.T) {
	trip := validTrip()
	reasons := EvaluateRowRules(&trip, TripValidationRules())
	if len(reasons) != 0 {
		t.Fatalf("expected acceptance, got reasons %v", reasons)
	}
}

func TestTripRules_FareIdentityOffByHalfCentRejected(t *testing.T) {
	trip := validTrip()
	trip.TotalFareUsd = nd("13.005")
	reasons := EvaluateRowRules(&trip, TripValidationRules())
	if len(reasons) != 1 {
		t.Fatalf("expected exactly one reason, got %v", reasons)
	}
	if reasons[0] != "total_fare_usd != base+tax+tip" {
		t.Fatalf("unexpected reason %q", reasons[0])
	}
}

func TestTripRules_MissingNumericFieldsPassNonNegative(t *testing.T) {
	// Null fare components count as zero: they pass the non-negative rules
	// and the identity still holds when total is also null.
	trip := validTrip()
	trip.BaseFareUsd = decimal.NullDecimal{}
	trip.TaxUsd = decimal.NullDecimal{}
	trip.TipUsd = decimal.NullDecimal{}
	trip.TotalFareUsd = decimal.NullDecimal{}
	trip.DistanceKm = decimal.NullDecimal{}
	reasons := EvaluateRowRules(&trip, TripValidationRules())
	if len(reasons) != 0 {
		t.Fatalf("expected acceptance, got reasons %v", reasons)
	}
}

func TestTripRules_ReasonsInDeclarationOrder(t *testing.T) {
	trip := validTrip()
	trip.RiderId = nil
	trip.VehicleId = nil
	trip.PickupTs = tsPtr("2023-06-15 07:00:00") // before request
	trip.TipUsd = nd("-2.00")
	trip.TotalFareUsd = nd("9.00") // 10 + 1 - 2 = 9, identity holds

	reasons := EvaluateRowRules(&trip, TripValidationRules())
	expected := []string{
		"Missing rider_id",
		"Missing vehicle_id",
		"pickup_ts before request_ts",
		"Negative tip_usd",
	}
	if len(reasons) != len(expected) {
		t.Fatalf("expected %d reasons, got %v", len(expected), reasons)
	}
	for i := range expected {
		if reasons[i] != expected[i] {
			t.Fatalf("reason %d expected %q, got %q", i, expected[i], reasons[i])
		}
	}
	joined := JoinReasons(reasons)
	if joined != "Missing rider_id; Missing vehicle_id; pickup_ts before request_ts; Negative tip_usd" {
		t.Fatalf("unexpected joined reason string %q", joined)
	}
}

func TestTripRules_DropoffBeforePickupRejected(t *testing.T) {
	trip := validTrip()
	trip.DropoffTs = tsPtr("2023-06-15 08:01:00")
	reasons := EvaluateRowRules(&trip, TripValidationRules())
	if len(reasons) != 1 || reasons[0] != "dropoff_ts before pickup_ts" {
		t.Fatalf("expected dropoff ordering rejection, got %v", reasons)
	}
}

func TestDriverRules(t *testing.T) {
	valid := SilverDriver{
		DriverId:      "D1",
		Email:         strp("d1@example.com"),
		LicenseNumber: strp("LIC-001"),
		DriverRating:  nd("4.8"),
	}
	if reasons := EvaluateRowRules(&valid, DriverValidationRules()); len(reasons) != 0 {
		t.Fatalf("expected acceptance, got %v", reasons)
	}

	cases := []struct {
		name     string
		mutate   func(rec *SilverDriver)
		expected string
	}{
		{"missing email", func(rec *SilverDriver) { rec.Email = nil }, "Invalid email"},
		{"malformed email", func(rec *SilverDriver) { rec.Email = strp("not-an-address") }, "Invalid email"},
		{"missing license", func(rec *SilverDriver) { rec.LicenseNumber = nil }, "Missing license number"},
		{"rating above 5", func(rec *SilverDriver) { rec.DriverRating = nd("5.1") }, "Driver rating out of range (0-5)"},
		{"negative rating", func(rec *SilverDriver) { rec.DriverRating = nd("-1") }, "Driver rating out of range (0-5)"},
	}
	for _, tc := range cases {
		rec := valid
		tc.mutate(&rec)
		reasons := EvaluateRowRules(&rec, DriverValidationRules())
		if len(reasons) != 1 || reasons[0] != tc.expected {
			t.Fatalf("%s: expected [%q], got %v", tc.name, tc.expected, reasons)
		}
	}

	// A null rating is not out of range.
	noRating := valid
	noRating.DriverRating = decimal.NullDecimal{}
	if reasons := EvaluateRowRules(&noRating, DriverValidationRules()); len(reasons) != 0 {
		t.Fatalf("null rating must pass the range rule, got %v", reasons)
	}
}

func TestVehicleRules(t *testing.T) {
	maxYear := time.Now().Year() + 1
	year := 2020
	capacity := 4
	valid := SilverVehicle{
		VehicleId: "V1",
		DriverId:  strp("D1"),
		Year:      &year,
		Capacity:  &capacity,
		Plate:     strp("KA-0123"),
	}
	if reasons := EvaluateRowRules(&valid, VehicleValidationRules()); len(reasons) != 0 {
		t.Fatalf("expected acceptance, got %v", reasons)
	}

	oldYear := 1975
	rec := valid
	rec.Year = &oldYear
	reasons := EvaluateRowRules(&rec, VehicleValidationRules())
	expected := fmt.Sprintf("Invalid year (1980-%d)", maxYear)
	if len(reasons) != 1 || reasons[0] != expected {
		t.Fatalf("1975 model year: expected [%q], got %v", expected, reasons)
	}

	nextYear := maxYear
	rec = valid
	rec.Year = &nextYear
	if reasons := EvaluateRowRules(&rec, VehicleValidationRules()); len(reasons) != 0 {
		t.Fatalf("next model year must be accepted, got %v", reasons)
	}

	cases := []struct {
		name     string
		mutate   func(rec *SilverVehicle)
		expected string
	}{
		{"missing driver", func(rec *SilverVehicle) { rec.DriverId = nil }, "Missing driver_id"},
		{"missing year", func(rec *SilverVehicle) { rec.Year = nil }, expected},
		{"capacity zero", func(rec *SilverVehicle) { c := 0; rec.Capacity = &c }, "Capacity out of range (1-8)"},
		{"capacity nine", func(rec *SilverVehicle) { c := 9; rec.Capacity = &c }, "Capacity out of range (1-8)"},
		{"missing capacity", func(rec *SilverVehicle) { rec.Capacity = nil }, "Capacity out of range (1-8)"},
		{"missing plate", func(rec *SilverVehicle) { rec.Plate = nil }, "Invalid plate"},
		{"plate too short", func(rec *SilverVehicle) { rec.Plate = strp("AB") }, "Invalid plate"},
		{"plate bad chars", func(rec *SilverVehicle) { rec.Plate = strp("KA 0123!") }, "Invalid plate"},
	}
	for _, tc := range cases {
		rec := valid
		tc.mutate(&rec)
		reasons := EvaluateRowRules(&rec, VehicleValidationRules())
		if len(reasons) != 1 || reasons[0] != tc.expected {
			t.Fatalf("%s: expected [%q], got %v", tc.name, tc.expected, reasons)
		}
	}
}

func TestRiderRules(t *testing.T) {
	valid := SilverRider{
		RiderId:     "R1",
		Email:       strp("r1@example.com"),
		RiderRating: nd("4.2"),
	}
	if reasons := EvaluateRowRules(&valid, RiderValidationRules()); len(reasons) != 0 {
		t.Fatalf("expected acceptance, got %v", reasons)
	}

	rec := valid
	rec.Email = strp("missing-at-sign")
	rec.RiderRating = nd("6")
	reasons := EvaluateRowRules(&rec, RiderValidationRules())
	expected := []string{"Invalid email", "Rider rating out of range (0-5)"}
	if len(reasons) != len(expected) {
		t.Fatalf("expected %d reasons, got %v", len(expected), reasons)
	}
	for i := range expected {
		if reasons[i] != expected[i] {
			t.Fatalf("reason %d expected %q, got %q", i, expected[i], reasons[i])
		}
	}
}

func TestPaymentRules(t *testing.T) {
	valid := SilverPayment{
		PaymentId:     "P1",
		TripId:        strp("T1"),
		PaymentMethod: strp("Card"),
		AmountUsd:     nd("13.00"),
		TipUsd:        nd("2.00"),
	}
	if reasons := EvaluateRowRules(&valid, PaymentValidationRules()); len(reasons) != 0 {
		t.Fatalf("expected acceptance, got %v", reasons)
	}

	cases := []struct {
		name     string
		mutate   func(rec *SilverPayment)
		expected string
	}{
		{"missing trip", func(rec *SilverPayment) { rec.TripId = nil }, "Missing trip_id"},
		{"negative amount", func(rec *SilverPayment) { rec.AmountUsd = nd("-1") }, "Negative amount_usd"},
		{"negative tip", func(rec *SilverPayment) { rec.TipUsd = nd("-0.01") }, "Negative tip_usd"},
		{"unknown method", func(rec *SilverPayment) { rec.PaymentMethod = strp("Bartering") }, "Unknown payment_method"},
		{"missing method", func(rec *SilverPayment) { rec.PaymentMethod = nil }, "Unknown payment_method"},
	}
	for _, tc := range cases {
		rec := valid
		tc.mutate(&rec)
		reasons := EvaluateRowRules(&rec, PaymentValidationRules())
		if len(reasons) != 1 || reasons[0] != tc.expected {
			t.Fatalf("%s: expected [%q], got %v", tc.name, tc.expected, reasons)
		}
	}

	// A synonym the normalizer recognizes is already acceptable before the
	// write-back happens.
	gpay := valid
	gpay.PaymentMethod = strp("GPay")
	if reasons := EvaluateRowRules(&gpay, PaymentValidationRules()); len(reasons) != 0 {
		t.Fatalf("GPay must pass the closed-set rule, got %v", reasons)
	}
}

func TestApplyPaymentMethodNormalization_WriteBack(t *testing.T) {
	cases := []struct {
		raw      string
		expected string
	}{
		{"GPay", "UPI"},
		{"credit card", "Card"},
		{" PAYTM ", "Wallet"},
		{"cash", "Cash"},
		// Unrecognized methods keep their loaded value so the rejection
		// audit shows what actually arrived.
		{"Bartering", "Bartering"},
	}
	for _, tc := range cases {
		rec := SilverPayment{PaymentId: "P1", PaymentMethod: strp(tc.raw)}
		rec.ApplyPaymentMethodNormalization()
		if rec.PaymentMethod == nil || *rec.PaymentMethod != tc.expected {
			t.Fatalf("normalize(%q) expected %q, got %v", tc.raw, tc.expected, rec.PaymentMethod)
		}
	}

	nilMethod := SilverPayment{PaymentId: "P1"}
	nilMethod.ApplyPaymentMethodNormalization()
	if nilMethod.PaymentMethod != nil {
		t.Fatalf("nil method must stay nil, got %q", *nilMethod.PaymentMethod)
	}
}
