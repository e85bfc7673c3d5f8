package models

import (
	"errors"
	"strings"

	"github.com/mmdatafocus/ridelake_backend/utils"
)

type EntityType string

const (
	EntityTypeDrivers  EntityType = "drivers"
	EntityTypeVehicles EntityType = "vehicles"
	EntityTypeRiders   EntityType = "riders"
	EntityTypeTrips    EntityType = "trips"
	EntityTypePayments EntityType = "payments"
)

// AllEntityTypes is the canonical processing order. Parents come before
// children so referential checks run against already-published tables.
var AllEntityTypes = []EntityType{
	EntityTypeDrivers,
	EntityTypeVehicles,
	EntityTypeRiders,
	EntityTypeTrips,
	EntityTypePayments,
}

func ParseEntityType(s string) (EntityType, error) {
	entityTypes := map[string]EntityType{
		"drivers":  EntityTypeDrivers,
		"vehicles": EntityTypeVehicles,
		"riders":   EntityTypeRiders,
		"trips":    EntityTypeTrips,
		"payments": EntityTypePayments,
	}

	t, ok := entityTypes[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", errors.New("invalid entity type")
	}
	return t, nil
}

func (t EntityType) BronzeTable() string {
	return "bronze_" + string(t)
}

func (t EntityType) SilverTable() string {
	return "silver_" + string(t)
}

// SilverBaseTable is the deduplicated pre-validation relation for t.
func (t EntityType) SilverBaseTable() string {
	return t.SilverTable() + "_base"
}

// KeyColumn is the natural-key column of t's silver relations.
func (t EntityType) KeyColumn() string {
	switch t {
	case EntityTypeDrivers:
		return "driver_id"
	case EntityTypeVehicles:
		return "vehicle_id"
	case EntityTypeRiders:
		return "rider_id"
	case EntityTypeTrips:
		return "trip_id"
	case EntityTypePayments:
		return "payment_id"
	}
	return "id"
}

type EtlLayer string

const (
	EtlLayerBronze EtlLayer = "bronze"
	EtlLayerSilver EtlLayer = "silver"
	EtlLayerGold   EtlLayer = "gold"
	EtlLayerAll    EtlLayer = "all"
)

func ParseEtlLayer(s string) (EtlLayer, error) {
	etlLayers := map[string]EtlLayer{
		"bronze": EtlLayerBronze,
		"silver": EtlLayerSilver,
		"gold":   EtlLayerGold,
		"all":    EtlLayerAll,
	}

	l, ok := etlLayers[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", errors.New("invalid etl layer")
	}
	return l, nil
}

type BatchStatus string

const (
	BatchStatusRunning               BatchStatus = "RUNNING"
	BatchStatusCompleted             BatchStatus = "COMPLETED"
	BatchStatusCompletedWithWarnings BatchStatus = "COMPLETED_WITH_WARNINGS"
	BatchStatusFailed                BatchStatus = "FAILED"
)

type EtlEventType string

const (
	EtlEventTypeBatchCompleted             EtlEventType = "BATCH_COMPLETED"
	EtlEventTypeBatchCompletedWithWarnings EtlEventType = "BATCH_COMPLETED_WITH_WARNINGS"
	EtlEventTypeBatchFailed                EtlEventType = "BATCH_FAILED"
)

// EventTypeForBatchStatus maps a terminal batch status to the event published
// on the outbox. RUNNING is not a terminal status and maps to nothing.
func EventTypeForBatchStatus(status BatchStatus) (EtlEventType, bool) {
	switch status {
	case BatchStatusCompleted:
		return EtlEventTypeBatchCompleted, true
	case BatchStatusCompletedWithWarnings:
		return EtlEventTypeBatchCompletedWithWarnings, true
	case BatchStatusFailed:
		return EtlEventTypeBatchFailed, true
	default:
		return "", false
	}
}

type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "Card"
	PaymentMethodCash   PaymentMethod = "Cash"
	PaymentMethodWallet PaymentMethod = "Wallet"
	PaymentMethodUPI    PaymentMethod = "UPI"
)

// paymentMethodSynonyms maps lowercased raw provider strings onto the closed
// set of payment methods. Everything else passes through as Title Case and
// fails the closed-set rule downstream.
var paymentMethodSynonyms = map[string]PaymentMethod{
	"credit card": PaymentMethodCard,
	"debit card":  PaymentMethodCard,
	"card":        PaymentMethodCard,
	"mastercard":  PaymentMethodCard,
	"visa":        PaymentMethodCard,
	"apple pay":   PaymentMethodCard,
	"cash":        PaymentMethodCash,
	"wallet":      PaymentMethodWallet,
	"paytm":       PaymentMethodWallet,
	"upi":         PaymentMethodUPI,
	"upi id":      PaymentMethodUPI,
	"gpay":        PaymentMethodUPI,
	"google pay":  PaymentMethodUPI,
	"phonepe":     PaymentMethodUPI,
}

// NormalizePaymentMethod folds raw payment_method strings into the closed
// set. nil or blank input stays empty, which is never a known method.
func NormalizePaymentMethod(raw *string) string {
	if raw == nil {
		return ""
	}
	cleaned := strings.ToLower(strings.TrimSpace(*raw))
	if cleaned == "" {
		return ""
	}
	if method, ok := paymentMethodSynonyms[cleaned]; ok {
		return string(method)
	}
	return utils.TitleCase(cleaned)
}

func IsKnownPaymentMethod(s string) bool {
	switch PaymentMethod(s) {
	case PaymentMethodCard, PaymentMethodCash, PaymentMethodWallet, PaymentMethodUPI:
		return true
	default:
		return false
	}
}
