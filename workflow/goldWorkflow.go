package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mmdatafocus/ridelake_backend/config"
	"github.com/mmdatafocus/ridelake_backend/models"
	"github.com/mmdatafocus/ridelake_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// GoldBuilder rebuilds the BI-ready aggregate tables and the flattened
// dashboard from the validated silver relations, then reconciles the two
// layers with named scalar checks.
type GoldBuilder struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	RunId  string
}

type goldBuild struct {
	table     string
	selectSQL string
}

// goldTableBuilds returns the gold relations in build order. Each statement
// is the SELECT half of a CREATE TABLE ... AS into the shadow twin.
func goldTableBuilds() []goldBuild {
	return []goldBuild{
		{
			table: "gold_driver_stats",
			selectSQL: `
WITH global_avgs AS (
    SELECT
        AVG(tip_usd) AS global_avg_tip_usd
    FROM silver_trips
    WHERE tip_usd IS NOT NULL
)
SELECT
    d.driver_id,
    COUNT(t.trip_id) AS total_trips,
    COALESCE(SUM(p.amount_usd), 0) AS total_earnings_usd,
    AVG(t.total_fare_usd) AS avg_trip_fare_usd,
    AVG(t.tip_usd) AS avg_tip_usd,
    AVG(t.tip_usd / NULLIF(t.total_fare_usd, 0)) AS avg_tip_rate,
    AVG(t.tip_usd > 0) AS tip_take_rate,
    g.global_avg_tip_usd
FROM silver_drivers d
LEFT JOIN silver_trips t ON t.driver_id = d.driver_id
LEFT JOIN silver_payments p ON p.trip_id = t.trip_id
CROSS JOIN global_avgs g
GROUP BY d.driver_id, g.global_avg_tip_usd`,
		},
		{
			table: "gold_vehicle_stats",
			selectSQL: `
SELECT
    v.vehicle_id,
    v.driver_id,
    COUNT(t.trip_id) AS total_trips,
    COALESCE(SUM(p.amount_usd), 0) AS total_revenue_usd,
    AVG(t.duration_min) AS avg_duration_min,
    AVG(t.distance_km) AS avg_distance_km
FROM silver_vehicles v
LEFT JOIN silver_trips t ON t.vehicle_id = v.vehicle_id
LEFT JOIN silver_payments p ON p.trip_id = t.trip_id
GROUP BY v.vehicle_id, v.driver_id`,
		},
		{
			table: "gold_rider_stats",
			selectSQL: `
SELECT
    r.rider_id,
    COUNT(t.trip_id) AS total_trips,
    COALESCE(SUM(p.amount_usd), 0) AS total_spend_usd,
    AVG(t.total_fare_usd) AS avg_trip_fare_usd,
    DATE(MIN(t.request_ts)) AS first_trip_date,
    DATE(MAX(t.request_ts)) AS last_trip_date
FROM silver_riders r
LEFT JOIN silver_trips t ON t.rider_id = r.rider_id
LEFT JOIN silver_payments p ON p.trip_id = t.trip_id
GROUP BY r.rider_id`,
		},
		{
			table: "gold_daily_kpis",
			selectSQL: `
WITH trip_dates AS (
    SELECT
        t.trip_id,
        DATE(COALESCE(t.dropoff_ts, t.pickup_ts, t.request_ts)) AS trip_date,
        t.driver_id,
        t.rider_id
    FROM silver_trips t
)
SELECT
    td.trip_date,
    COUNT(td.trip_id) AS trips,
    COUNT(DISTINCT td.driver_id) AS active_drivers,
    COUNT(DISTINCT td.rider_id) AS active_riders,
    COALESCE(SUM(p.amount_usd), 0) AS total_revenue_usd,
    AVG(p.amount_usd) AS avg_revenue_per_trip_usd
FROM trip_dates td
LEFT JOIN silver_payments p ON p.trip_id = td.trip_id
GROUP BY td.trip_date
ORDER BY td.trip_date`,
		},
		{
			// Payments are pre-aggregated so the dashboard stays one row per trip.
			table: "gold_dashboard",
			selectSQL: `
WITH pay_agg AS (
    SELECT trip_id,
           SUM(amount_usd) AS fare_usd,
           SUM(tip_usd) AS tip_usd_payment,
           MAX(payment_method) AS payment_method,
           MAX(status) AS payment_status
    FROM silver_payments
    GROUP BY trip_id
)
SELECT
    t.trip_id,
    DATE(COALESCE(t.dropoff_ts, t.pickup_ts, t.request_ts)) AS trip_date,
    t.request_ts, t.pickup_ts, t.dropoff_ts,
    t.driver_id,
    t.vehicle_id,
    t.rider_id,
    t.pickup_location,
    t.drop_location,
    t.distance_km,
    t.duration_min,
    t.wait_time_minutes,
    t.surge_multiplier,
    t.base_fare_usd,
    t.tax_usd,
    t.tip_usd,
    t.total_fare_usd,
    p.payment_method,
    p.fare_usd,
    p.tip_usd_payment,
    p.payment_status,
    v.make, v.model, v.year, v.capacity, v.color,
    d.city AS driver_city
FROM silver_trips t
LEFT JOIN pay_agg p ON p.trip_id = t.trip_id
LEFT JOIN silver_vehicles v ON v.vehicle_id = t.vehicle_id
LEFT JOIN silver_drivers d ON d.driver_id = t.driver_id`,
		},
	}
}

func goldTables() []string {
	builds := goldTableBuilds()
	tables := make([]string, 0, len(builds))
	for _, b := range builds {
		tables = append(tables, b.table)
	}
	return tables
}

// Build rebuilds every gold table in order. A failed table aborts the layer;
// already swapped tables keep their new build.
func (g *GoldBuilder) Build(ctx context.Context) error {
	for _, build := range goldTableBuilds() {
		if err := g.buildTable(ctx, build.table, build.selectSQL); err != nil {
			config.LogError(g.Logger, "GoldWorkflow.go", "Build", "Build "+build.table, g.RunId, err)
			return err
		}

		var count int64
		if err := g.DB.WithContext(ctx).Table(build.table).Count(&count).Error; err == nil {
			g.Logger.WithFields(logrus.Fields{
				"run_id": g.RunId,
				"table":  build.table,
				"rows":   count,
			}).Info("gold table published")
		}
	}
	return nil
}

func (g *GoldBuilder) buildTable(ctx context.Context, table, selectSQL string) error {
	db := g.DB.WithContext(ctx)
	shadow := shadowName(table)
	if err := dropTableIfExists(db, shadow); err != nil {
		return fmt.Errorf("failed to reset %s: %w", shadow, err)
	}
	if err := db.Exec("CREATE TABLE " + shadow + " AS " + selectSQL).Error; err != nil {
		return fmt.Errorf("failed to build %s: %w", table, err)
	}
	return swapInShadowTable(db, table)
}

type reconCheck struct {
	name      string
	lhsSQL    string
	rhsSQL    string
	tables    []string
	tolerance decimal.Decimal
}

// reconChecks compares silver (lhs) against gold (rhs). Diff is rhs minus
// lhs; a check passes when |diff| stays within its tolerance.
func reconChecks() []reconCheck {
	return []reconCheck{
		{
			name:      "trips_count_vs_dashboard_count",
			lhsSQL:    "SELECT COUNT(*) FROM silver_trips",
			rhsSQL:    "SELECT COUNT(*) FROM gold_dashboard",
			tables:    []string{"silver_trips", "gold_dashboard"},
			tolerance: decimal.Zero,
		},
		{
			name:      "tips_sum_vs_dashboard_sum",
			lhsSQL:    "SELECT COALESCE(SUM(tip_usd), 0) FROM silver_trips",
			rhsSQL:    "SELECT COALESCE(SUM(tip_usd), 0) FROM gold_dashboard",
			tables:    []string{"silver_trips", "gold_dashboard"},
			tolerance: decimal.New(1, -2),
		},
		{
			name:      "drivers_count_vs_driver_stats",
			lhsSQL:    "SELECT COUNT(DISTINCT driver_id) FROM silver_drivers",
			rhsSQL:    "SELECT COUNT(DISTINCT driver_id) FROM gold_driver_stats",
			tables:    []string{"silver_drivers", "gold_driver_stats"},
			tolerance: decimal.Zero,
		},
		{
			name:      "riders_count_vs_rider_stats",
			lhsSQL:    "SELECT COUNT(DISTINCT rider_id) FROM silver_riders",
			rhsSQL:    "SELECT COUNT(DISTINCT rider_id) FROM gold_rider_stats",
			tables:    []string{"silver_riders", "gold_rider_stats"},
			tolerance: decimal.Zero,
		},
	}
}

// Reconcile runs every check, records one audit_recon_results row per check
// that could execute, and returns the recorded results. Drift never fails the
// call; the error only reports checks that could not run at all.
func (g *GoldBuilder) Reconcile(ctx context.Context) ([]models.AuditReconResult, error) {
	checks := reconChecks()
	results := make([]models.AuditReconResult, 0, len(checks))
	skipped := 0

	for _, check := range checks {
		if missing := g.missingReconTable(check); missing != "" {
			g.Logger.WithFields(logrus.Fields{
				"run_id": g.RunId,
				"check":  check.name,
			}).Warn("reconciliation check skipped, " + missing + " not published")
			skipped++
			continue
		}

		lhs, err := g.scalarDecimal(ctx, check.lhsSQL)
		if err != nil {
			config.LogError(g.Logger, "GoldWorkflow.go", "Reconcile", "Read lhs for "+check.name, g.RunId, err)
			skipped++
			continue
		}
		rhs, err := g.scalarDecimal(ctx, check.rhsSQL)
		if err != nil {
			config.LogError(g.Logger, "GoldWorkflow.go", "Reconcile", "Read rhs for "+check.name, g.RunId, err)
			skipped++
			continue
		}

		diff := rhs.Sub(lhs)
		within := diff.Abs().LessThanOrEqual(check.tolerance)
		result := models.AuditReconResult{
			RunId:           g.RunId,
			CheckName:       check.name,
			LhsValue:        lhs,
			RhsValue:        rhs,
			Diff:            diff,
			WithinTolerance: within,
		}
		if err := g.DB.WithContext(ctx).Create(&result).Error; err != nil {
			config.LogError(g.Logger, "GoldWorkflow.go", "Reconcile", "Insert recon result", check.name, err)
		}
		results = append(results, result)

		fields := logrus.Fields{
			"run_id": g.RunId,
			"check":  check.name,
			"lhs":    lhs.String(),
			"rhs":    rhs.String(),
			"diff":   diff.String(),
		}
		if within {
			g.Logger.WithFields(fields).Info("reconciliation check passed")
		} else {
			g.Logger.WithFields(fields).Warn("reconciliation check out of tolerance")
		}
	}

	if skipped > 0 {
		return results, fmt.Errorf("reconciliation incomplete: %d of %d checks did not run", skipped, len(checks))
	}
	return results, nil
}

func (g *GoldBuilder) missingReconTable(check reconCheck) string {
	for _, t := range check.tables {
		if !g.DB.Migrator().HasTable(t) {
			return t
		}
	}
	return ""
}

func (g *GoldBuilder) scalarDecimal(ctx context.Context, query string) (decimal.Decimal, error) {
	var value decimal.NullDecimal
	if err := g.DB.WithContext(ctx).Raw(query).Scan(&value).Error; err != nil {
		return decimal.Zero, err
	}
	if !value.Valid {
		return decimal.Zero, nil
	}
	return value.Decimal, nil
}

// ExportTables writes every gold table as CSV plus one combined XLSX
// workbook under data/gold_exports/<run_id>/, optionally archiving the CSVs
// to GCS.
func (g *GoldBuilder) ExportTables(ctx context.Context) error {
	dir := filepath.Join("data", "gold_exports", g.RunId)

	workbook := excelize.NewFile()
	defer workbook.Close()
	firstSheet := true

	for _, table := range goldTables() {
		header, rows, err := g.readTable(ctx, table)
		if err != nil {
			return err
		}

		csvPath := filepath.Join(dir, table+".csv")
		if err := utils.WriteCsvFile(csvPath, header, rows); err != nil {
			return fmt.Errorf("failed to export %s: %w", table, err)
		}
		if config.ArchiveToGCSEnabled() {
			objectKey := fmt.Sprintf("gold_exports/%s/%s.csv", g.RunId, table)
			if err := utils.ArchiveFileToGCS(ctx, objectKey, csvPath); err != nil {
				config.LogError(g.Logger, "GoldWorkflow.go", "ExportTables", "Archive to GCS", objectKey, err)
			}
		}

		sheet := strings.TrimPrefix(table, "gold_")
		if firstSheet {
			if err := workbook.SetSheetName("Sheet1", sheet); err != nil {
				return err
			}
			firstSheet = false
		} else {
			if _, err := workbook.NewSheet(sheet); err != nil {
				return err
			}
		}
		if err := writeExportSheet(workbook, sheet, header, rows); err != nil {
			return fmt.Errorf("failed to fill sheet %s: %w", sheet, err)
		}

		g.Logger.WithFields(logrus.Fields{
			"run_id": g.RunId,
			"table":  table,
			"rows":   len(rows),
		}).Info("gold table exported")
	}

	workbookPath := filepath.Join(dir, "gold_tables.xlsx")
	if err := workbook.SaveAs(workbookPath); err != nil {
		return fmt.Errorf("failed to save %s: %w", workbookPath, err)
	}
	if config.ArchiveToGCSEnabled() {
		objectKey := fmt.Sprintf("gold_exports/%s/gold_tables.xlsx", g.RunId)
		if err := utils.ArchiveFileToGCS(ctx, objectKey, workbookPath); err != nil {
			config.LogError(g.Logger, "GoldWorkflow.go", "ExportTables", "Archive workbook to GCS", objectKey, err)
		} else {
			g.Logger.WithFields(logrus.Fields{
				"run_id": g.RunId,
				"url":    utils.BuildObjectAccessURL(objectKey),
			}).Info("gold workbook archived")
		}
	}
	return nil
}

func (g *GoldBuilder) readTable(ctx context.Context, table string) ([]string, [][]string, error) {
	rows, err := g.DB.WithContext(ctx).Raw("SELECT * FROM " + table).Rows()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]string
	raw := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make([]string, len(columns))
		for i, v := range raw {
			row[i] = exportCell(v)
		}
		out = append(out, row)
	}
	return columns, out, rows.Err()
}

func exportCell(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(value)
	case time.Time:
		return value.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(value)
	}
}

func writeExportSheet(f *excelize.File, sheet string, header []string, rows [][]string) error {
	for col, name := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}
	return nil
}
