package workflow

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Published tables are never mutated in place. Each rebuild stages into a
// "<table>__next" twin and swaps it in with an atomic RENAME, so readers only
// ever see the previous complete build or the new one.

const (
	shadowSuffix    = "__next"
	trashSuffix     = "__old"
	insertBatchSize = 500
)

func shadowName(table string) string {
	return table + shadowSuffix
}

func dropTableIfExists(db *gorm.DB, table string) error {
	return db.Exec("DROP TABLE IF EXISTS " + table).Error
}

// prepareShadowTable (re)creates an empty staging twin of table with the
// schema of model.
func prepareShadowTable(db *gorm.DB, table string, model interface{}) (string, error) {
	shadow := shadowName(table)
	if err := dropTableIfExists(db, shadow); err != nil {
		return "", fmt.Errorf("failed to reset %s: %w", shadow, err)
	}
	if err := db.Table(shadow).AutoMigrate(model); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", shadow, err)
	}
	return shadow, nil
}

// swapInShadowTable publishes table's staged twin. The old build is renamed
// aside in the same statement so the table never disappears mid-swap, then
// dropped. An advisory lock pins concurrent publishes of the same table.
func swapInShadowTable(db *gorm.DB, table string) error {
	shadow := shadowName(table)
	trash := table + trashSuffix

	return db.Connection(func(conn *gorm.DB) error {
		if err := acquireSwapLock(conn, table); err != nil {
			return err
		}
		defer releaseSwapLock(conn, table)

		if err := dropTableIfExists(conn, trash); err != nil {
			return fmt.Errorf("failed to clear %s: %w", trash, err)
		}

		if conn.Migrator().HasTable(table) {
			swap := fmt.Sprintf("RENAME TABLE %s TO %s, %s TO %s", table, trash, shadow, table)
			if err := conn.Exec(swap).Error; err != nil {
				return fmt.Errorf("failed to swap in %s: %w", shadow, err)
			}
			return dropTableIfExists(conn, trash)
		}

		// First build: nothing to retire.
		if err := conn.Exec(fmt.Sprintf("RENAME TABLE %s TO %s", shadow, table)).Error; err != nil {
			return fmt.Errorf("failed to publish %s: %w", shadow, err)
		}
		return nil
	})
}

// publishRows stages records into table's shadow twin and swaps it in.
func publishRows[T any](ctx context.Context, db *gorm.DB, table string, records []T) error {
	shadow, err := prepareShadowTable(db.WithContext(ctx), table, new(T))
	if err != nil {
		return err
	}
	if len(records) > 0 {
		if err := db.WithContext(ctx).Table(shadow).CreateInBatches(records, insertBatchSize).Error; err != nil {
			return fmt.Errorf("failed to stage rows for %s: %w", table, err)
		}
	}
	return swapInShadowTable(db.WithContext(ctx), table)
}
