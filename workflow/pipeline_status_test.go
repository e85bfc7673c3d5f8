package workflow

import (
	"strings"
	"testing"

	"github.com/mmdatafocus/ridelake_backend/models"
)

// NOTE: These tests are intentionally DB-free. They pin the status and
// battery semantics the orchestrator relies on:
// - gold failure is the only layer failure that fails the whole batch
// - per-entity failures degrade to warnings until every entity is gone
// - the DQ battery shape per entity is fixed
//
// Full DB integration coverage lives in etl_pipeline_integration_test.go.

func allFailed() map[models.EntityType]bool {
	failed := make(map[models.EntityType]bool, len(models.AllEntityTypes))
	for _, entity := range models.AllEntityTypes {
		failed[entity] = true
	}
	return failed
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name       string
		layer      models.EtlLayer
		warnings   []string
		failed     map[models.EntityType]bool
		goldFailed bool
		expected   models.BatchStatus
	}{
		{
			name:     "clean run completes",
			layer:    models.EtlLayerAll,
			expected: models.BatchStatusCompleted,
		},
		{
			name:       "gold failure fails the batch",
			layer:      models.EtlLayerAll,
			goldFailed: true,
			warnings:   []string{"gold build failed"},
			expected:   models.BatchStatusFailed,
		},
		{
			name:     "one failed entity degrades to warnings",
			layer:    models.EtlLayerAll,
			failed:   map[models.EntityType]bool{models.EntityTypeTrips: true},
			warnings: []string{"trips: fetch failed"},
			expected: models.BatchStatusCompletedWithWarnings,
		},
		{
			name:     "every entity failed fails the batch",
			layer:    models.EtlLayerAll,
			failed:   allFailed(),
			warnings: []string{"all gone"},
			expected: models.BatchStatusFailed,
		},
		{
			name:     "reconciliation drift degrades to warnings",
			layer:    models.EtlLayerAll,
			warnings: []string{"reconciliation drift on tips_sum_vs_dashboard_sum: diff=0.02"},
			expected: models.BatchStatusCompletedWithWarnings,
		},
		{
			// A gold-only run has no entity work, the empty failed map must
			// not read as "everything failed".
			name:     "gold-only run completes",
			layer:    models.EtlLayerGold,
			expected: models.BatchStatusCompleted,
		},
	}
	for _, tc := range cases {
		p := &EtlPipeline{Layer: tc.layer}
		summary := models.BatchRunSummary{Warnings: tc.warnings}
		failed := tc.failed
		if failed == nil {
			failed = map[models.EntityType]bool{}
		}
		if got := p.deriveStatus(&summary, failed, tc.goldFailed); got != tc.expected {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.expected, got)
		}
	}
}

func TestShouldRunGold(t *testing.T) {
	gold := &EtlPipeline{Layer: models.EtlLayerGold}
	if !gold.shouldRunGold(nil) {
		t.Fatalf("a gold-only run must always build gold")
	}

	all := &EtlPipeline{Layer: models.EtlLayerAll}
	if all.shouldRunGold(nil) {
		t.Fatalf("a full run with no published entity must skip gold")
	}
	if !all.shouldRunGold([]models.EntityType{models.EntityTypeDrivers}) {
		t.Fatalf("a full run with published entities must build gold")
	}

	silver := &EtlPipeline{Layer: models.EtlLayerSilver}
	if silver.shouldRunGold([]models.EntityType{models.EntityTypeDrivers}) {
		t.Fatalf("a silver-only run must not build gold")
	}
}

func TestEntityDqChecks_BatteryShape(t *testing.T) {
	cases := []struct {
		entity   models.EntityType
		expected []string
	}{
		{models.EntityTypeDrivers, []string{"pk_uniqueness", "email_uniqueness"}},
		{models.EntityTypeVehicles, []string{"pk_uniqueness", "fk_driver"}},
		{models.EntityTypeRiders, []string{"pk_uniqueness", "email_uniqueness"}},
		{models.EntityTypeTrips, []string{"pk_uniqueness", "fk_rider", "fk_driver", "fk_vehicle"}},
		{models.EntityTypePayments, []string{"pk_uniqueness", "fk_trip"}},
	}
	for _, tc := range cases {
		checks := entityDqChecks(tc.entity)
		if len(checks) != len(tc.expected) {
			t.Fatalf("%s: expected %d checks, got %d", tc.entity, len(tc.expected), len(checks))
		}
		for i, name := range tc.expected {
			if checks[i].name != name {
				t.Fatalf("%s check %d expected %s, got %s", tc.entity, i, name, checks[i].name)
			}
		}
	}
}

func TestEntityDqChecks_FkQueriesTargetSilverTables(t *testing.T) {
	checks := entityDqChecks(models.EntityTypeTrips)
	for _, check := range checks[1:] {
		if !strings.Contains(check.query, "FROM silver_trips s LEFT JOIN silver_") {
			t.Fatalf("%s query must left-join a silver relation: %s", check.name, check.query)
		}
		if !strings.Contains(check.query, "IS NOT NULL") || !strings.Contains(check.query, "IS NULL") {
			t.Fatalf("%s query must count non-null orphans only: %s", check.name, check.query)
		}
		if len(check.needs) != 1 {
			t.Fatalf("%s must declare its referenced table, got %v", check.name, check.needs)
		}
	}
}

func TestReconChecks_FixedBattery(t *testing.T) {
	checks := reconChecks()
	expected := []struct {
		name      string
		tolerance string
	}{
		{"trips_count_vs_dashboard_count", "0"},
		{"tips_sum_vs_dashboard_sum", "0.01"},
		{"drivers_count_vs_driver_stats", "0"},
		{"riders_count_vs_rider_stats", "0"},
	}
	if len(checks) != len(expected) {
		t.Fatalf("expected %d checks, got %d", len(expected), len(checks))
	}
	for i, tc := range expected {
		if checks[i].name != tc.name {
			t.Fatalf("check %d expected %s, got %s", i, tc.name, checks[i].name)
		}
		if checks[i].tolerance.String() != tc.tolerance {
			t.Fatalf("%s tolerance expected %s, got %s", tc.name, tc.tolerance, checks[i].tolerance.String())
		}
	}
}

func TestGoldTableBuilds_CoverAllGoldTables(t *testing.T) {
	builds := goldTableBuilds()
	expected := []string{
		"gold_driver_stats",
		"gold_vehicle_stats",
		"gold_rider_stats",
		"gold_daily_kpis",
		"gold_dashboard",
	}
	if len(builds) != len(expected) {
		t.Fatalf("expected %d gold tables, got %d", len(expected), len(builds))
	}
	for i, table := range expected {
		if builds[i].table != table {
			t.Fatalf("build %d expected %s, got %s", i, table, builds[i].table)
		}
		if !strings.HasPrefix(strings.TrimSpace(builds[i].selectSQL), "SELECT") &&
			!strings.HasPrefix(strings.TrimSpace(builds[i].selectSQL), "WITH") {
			t.Fatalf("%s build must be a plain SELECT or CTE, got %q", table, builds[i].selectSQL[:40])
		}
	}
	if tables := goldTables(); len(tables) != len(expected) {
		t.Fatalf("goldTables() out of sync with builds: %v", tables)
	}
}

func TestShadowNaming(t *testing.T) {
	if got := shadowName("silver_trips"); got != "silver_trips__next" {
		t.Fatalf("shadow name wrong: %s", got)
	}
}
