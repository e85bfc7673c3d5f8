package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmdatafocus/ridelake_backend/config"
	"github.com/mmdatafocus/ridelake_backend/models"
	"github.com/sirupsen/logrus"
)

// Fixed data quality battery run after validation. Every check counts bad
// rows in a published silver relation; zero bad rows passes. Results land in
// audit_dq_results and nowhere else: the battery reports, it never deletes
// rows or blocks publishing.

type dqCheck struct {
	name  string
	query string
	// tables the query reads besides the checked one
	needs []string
}

func entityDqChecks(entity models.EntityType) []dqCheck {
	table := entity.SilverTable()
	checks := []dqCheck{{
		name: "pk_uniqueness",
		query: fmt.Sprintf("SELECT COUNT(*) - COUNT(DISTINCT %s) FROM %s",
			entity.KeyColumn(), table),
	}}

	switch entity {
	case models.EntityTypeDrivers, models.EntityTypeRiders:
		checks = append(checks, dqCheck{
			name: "email_uniqueness",
			query: fmt.Sprintf("SELECT COUNT(email) - COUNT(DISTINCT email) FROM %s",
				table),
		})
	case models.EntityTypeVehicles:
		checks = append(checks, fkCheck(table, "driver_id", models.EntityTypeDrivers))
	case models.EntityTypeTrips:
		checks = append(checks,
			fkCheck(table, "rider_id", models.EntityTypeRiders),
			fkCheck(table, "driver_id", models.EntityTypeDrivers),
			fkCheck(table, "vehicle_id", models.EntityTypeVehicles),
		)
	case models.EntityTypePayments:
		checks = append(checks, fkCheck(table, "trip_id", models.EntityTypeTrips))
	}
	return checks
}

// fkCheck counts non-null references in table.column that resolve to no row
// in the target relation.
func fkCheck(table, column string, target models.EntityType) dqCheck {
	targetTable := target.SilverTable()
	targetKey := target.KeyColumn()
	return dqCheck{
		name: "fk_" + strings.TrimSuffix(column, "_id"),
		query: fmt.Sprintf(
			"SELECT COUNT(*) FROM %s s LEFT JOIN %s t ON s.%s = t.%s WHERE s.%s IS NOT NULL AND t.%s IS NULL",
			table, targetTable, column, targetKey, column, targetKey),
		needs: []string{targetTable},
	}
}

// RunDqChecks executes the battery for the given entities and records one
// audit_dq_results row per executed check. Checks whose relations are not
// published yet are skipped with a warning. Returns the number of failed
// checks.
func (b *SilverBuilder) RunDqChecks(ctx context.Context, entities []models.EntityType) int {
	failed := 0
	for _, entity := range entities {
		table := entity.SilverTable()
		if !b.DB.Migrator().HasTable(table) {
			b.Logger.WithFields(logrus.Fields{
				"run_id": b.RunId,
				"table":  table,
			}).Warn("dq checks skipped, table not published")
			continue
		}

		for _, check := range entityDqChecks(entity) {
			if missing := b.missingDependency(check); missing != "" {
				b.Logger.WithFields(logrus.Fields{
					"run_id": b.RunId,
					"table":  table,
					"check":  check.name,
				}).Warn("dq check skipped, " + missing + " not published")
				continue
			}

			var badRows int64
			if err := b.DB.WithContext(ctx).Raw(check.query).Scan(&badRows).Error; err != nil {
				config.LogError(b.Logger, "DqChecks.go", "RunDqChecks", "Run "+check.name, table, err)
				continue
			}

			passed := badRows == 0
			if !passed {
				failed++
				b.Logger.WithFields(logrus.Fields{
					"run_id":   b.RunId,
					"table":    table,
					"check":    check.name,
					"bad_rows": badRows,
				}).Warn("dq check failed")
			}

			result := models.AuditDqResult{
				Table:       table,
				CheckName:   check.name,
				PassFail:    passed,
				BadRowCount: int(badRows),
				RunId:       b.RunId,
			}
			if err := b.DB.WithContext(ctx).Create(&result).Error; err != nil {
				config.LogError(b.Logger, "DqChecks.go", "RunDqChecks", "Insert dq result", check.name, err)
			}
		}
	}
	return failed
}

func (b *SilverBuilder) missingDependency(check dqCheck) string {
	for _, t := range check.needs {
		if !b.DB.Migrator().HasTable(t) {
			return t
		}
	}
	return ""
}
