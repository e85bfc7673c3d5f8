package workflow

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/mmdatafocus/ridelake_backend/config"
	"github.com/mmdatafocus/ridelake_backend/models"
	"github.com/mmdatafocus/ridelake_backend/sheetsource"
	"github.com/mmdatafocus/ridelake_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BronzeLoader refreshes the bronze staging tables from the raw source.
// Every fetched row lands as-is; nothing is cleaned, dropped, or rejected at
// this layer.
type BronzeLoader struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Source sheetsource.RowSource
	RunId  string
}

// LoadAll refreshes every bronze table. Entities fail independently; counts
// only holds entities that loaded.
func (l *BronzeLoader) LoadAll(ctx context.Context) (map[models.EntityType]int64, map[models.EntityType]error) {
	counts := make(map[models.EntityType]int64)
	failures := make(map[models.EntityType]error)
	for _, entity := range models.AllEntityTypes {
		n, err := l.LoadEntity(ctx, entity)
		if err != nil {
			failures[entity] = err
			continue
		}
		counts[entity] = n
	}
	return counts, failures
}

// LoadEntity replaces one bronze table with the current source rows. The
// DELETE and INSERT run in one transaction so a failed load leaves the
// previous staging intact.
func (l *BronzeLoader) LoadEntity(ctx context.Context, entity models.EntityType) (int64, error) {
	rows, err := l.Source.FetchRows(ctx, entity)
	if err != nil {
		config.LogError(l.Logger, "BronzeWorkflow.go", "LoadEntity", "Fetch "+string(entity), l.RunId, err)
		return 0, err
	}

	l.snapshotRawCsv(ctx, entity, rows)

	table := entity.BronzeTable()
	err = l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
		return stageBronzeRows(tx, entity, rows)
	})
	if err != nil {
		config.LogError(l.Logger, "BronzeWorkflow.go", "LoadEntity", "Refresh "+table, l.RunId, err)
		return 0, err
	}

	count := int64(len(rows))
	l.Logger.WithFields(logrus.Fields{
		"run_id": l.RunId,
		"table":  table,
		"rows":   count,
	}).Info("bronze load complete")
	return count, nil
}

func stageBronzeRows(tx *gorm.DB, entity models.EntityType, rows [][]string) error {
	switch entity {
	case models.EntityTypeDrivers:
		records := make([]models.BronzeDriver, 0, len(rows))
		for _, row := range rows {
			records = append(records, models.NewBronzeDriverFromRow(row))
		}
		return createBronzeRows(tx, records)
	case models.EntityTypeVehicles:
		records := make([]models.BronzeVehicle, 0, len(rows))
		for _, row := range rows {
			records = append(records, models.NewBronzeVehicleFromRow(row))
		}
		return createBronzeRows(tx, records)
	case models.EntityTypeRiders:
		records := make([]models.BronzeRider, 0, len(rows))
		for _, row := range rows {
			records = append(records, models.NewBronzeRiderFromRow(row))
		}
		return createBronzeRows(tx, records)
	case models.EntityTypeTrips:
		records := make([]models.BronzeTrip, 0, len(rows))
		for _, row := range rows {
			records = append(records, models.NewBronzeTripFromRow(row))
		}
		return createBronzeRows(tx, records)
	case models.EntityTypePayments:
		records := make([]models.BronzePayment, 0, len(rows))
		for _, row := range rows {
			records = append(records, models.NewBronzePaymentFromRow(row))
		}
		return createBronzeRows(tx, records)
	default:
		return fmt.Errorf("unknown entity %s", entity)
	}
}

func createBronzeRows[T any](tx *gorm.DB, records []T) error {
	if len(records) == 0 {
		return nil
	}
	return tx.CreateInBatches(records, insertBatchSize).Error
}

// snapshotRawCsv keeps a verbatim copy of the fetched rows for replay and
// audit. Snapshot failures never fail the load.
func (l *BronzeLoader) snapshotRawCsv(ctx context.Context, entity models.EntityType, rows [][]string) {
	path := filepath.Join("data", "raw_csv", l.RunId, string(entity)+".csv")
	if err := utils.WriteCsvFile(path, nil, rows); err != nil {
		config.LogError(l.Logger, "BronzeWorkflow.go", "snapshotRawCsv", "Write snapshot", path, err)
		return
	}
	if !config.ArchiveToGCSEnabled() {
		return
	}
	objectKey := fmt.Sprintf("raw_csv/%s/%s.csv", l.RunId, entity)
	if err := utils.ArchiveFileToGCS(ctx, objectKey, path); err != nil {
		config.LogError(l.Logger, "BronzeWorkflow.go", "snapshotRawCsv", "Archive to GCS", objectKey, err)
	}
}
