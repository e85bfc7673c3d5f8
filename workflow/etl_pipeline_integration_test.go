package workflow_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/ridelake_backend/config"
	"github.com/mmdatafocus/ridelake_backend/models"
	"github.com/mmdatafocus/ridelake_backend/workflow"
	"github.com/shopspring/decimal"
)

// fakeRowSource feeds fixed raw rows, header already stripped, the same
// contract the sheet providers honor.
type fakeRowSource struct {
	rows map[models.EntityType][][]string
}

func (s *fakeRowSource) FetchRows(_ context.Context, entity models.EntityType) ([][]string, error) {
	return s.rows[entity], nil
}

func fixtureSource() *fakeRowSource {
	return &fakeRowSource{rows: map[models.EntityType][][]string{
		models.EntityTypeDrivers: {
			// D1 twice: the 2021 signup must win deduplication.
			{"D1", "alice smith", "Alice@Example.com", "1990-03-04", "2020-01-01", "4.8", "Austin", "LIC-1", "true"},
			{"D1", "Alice Smith", "alice@example.com", "1990-03-04", "2021-06-01", "4.9", "Austin", "LIC-1", "true"},
			{"D2", "Bob Lee", "bob@example.com", "1985-11-20", "2019-05-10", "4.5", "Dallas", "LIC-2", "yes"},
			// rejected: malformed email
			{"D3", "Carol None", "not-an-email", "1992-07-07", "2022-02-02", "4.1", "Austin", "LIC-3", "1"},
		},
		models.EntityTypeVehicles: {
			{"V1", "D1", "toyota", "camry", "2020", "KA-0123", "4", "blue", "2020-02-01", "true"},
			{"V2", "D2", "honda", "civic", "2018", "TX-9876", "4", "black", "2018-06-15", "true"},
			// rejected: model year below 1980
			{"V3", "D1", "ford", "pinto", "1975", "TX-0001", "4", "red", "1975-01-01", "false"},
		},
		models.EntityTypeRiders: {
			{"R1", "Rita Ray", "rita@example.com", "2021-01-01", "austin", "4.7", "GPay", "yes"},
			{"R2", "Sam Po", "sam@example.com", "2020-09-09", "dallas", "4.2", "cash", "no"},
		},
		models.EntityTypeTrips: {
			{"T1", "R1", "D1", "V1", "2023-06-15 08:00:00", "2023-06-15 08:05:00", "2023-06-15 08:30:00",
				"Downtown", "Airport", "12.5", "25", "5", "1.0", "10.00", "1.00", "2.00", "13.00", "completed"},
			{"T2", "R2", "D2", "V2", "2023-06-16 18:00:00", "2023-06-16 18:04:00", "2023-06-16 18:40:00",
				"Mall", "Home", "8.2", "36", "4", "1.2", "8.00", "0.50", "0", "8.50", "completed"},
			// rejected: fare identity off by half a cent
			{"T3", "R1", "D2", "V2", "2023-06-17 10:00:00", "2023-06-17 10:03:00", "2023-06-17 10:20:00",
				"Park", "Office", "5.0", "17", "3", "1.0", "10.00", "1.00", "2.00", "13.005", "completed"},
		},
		models.EntityTypePayments: {
			{"P1", "T1", "2023-06-15", "GPay", "13.00", "2.00", "settled", "AUTH-1"},
			{"P2", "T2", "2023-06-16", "cash", "8.50", "0", "settled", ""},
			// accepted, but its trip is rejected: fk_trip must count it
			{"P3", "T3", "2023-06-17", "credit card", "13.00", "2.00", "settled", "AUTH-3"},
			// rejected: negative amount
			{"P4", "T2", "2023-06-16", "cash", "-5.00", "0", "settled", ""},
		},
	}}
}

func TestEtlPipelineFullRun(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "ridelake_test")
	t.Setenv("GOLD_EXPORT", "false")
	t.Setenv("ARCHIVE_TO_GCS", "false")

	// Raw CSV snapshots land under the working directory.
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir to temp dir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}
	models.MigrateTable()

	logger := config.GetLogger()
	source := fixtureSource()

	pipeline := workflow.NewEtlPipeline(db, logger, source, models.EtlLayerAll)
	summary, err := pipeline.Run(ctx)
	if err != nil {
		t.Fatalf("pipeline run: %v", err)
	}

	// DQ violations are report-only, so the fk_trip orphan must not degrade
	// the status.
	if summary.Status != models.BatchStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (warnings: %v)", summary.Status, summary.Warnings)
	}
	if summary.TotalInput != 15 || summary.TotalValid != 11 || summary.TotalRejected != 4 {
		t.Fatalf("totals expected 15/11/4, got %d/%d/%d",
			summary.TotalInput, summary.TotalValid, summary.TotalRejected)
	}
	drivers := summary.Entities[models.EntityTypeDrivers]
	if drivers.InputRows != 3 || drivers.ValidRows != 2 || drivers.RejectedRows != 1 {
		t.Fatalf("driver stats expected 3/2/1, got %+v", drivers)
	}

	// Bronze keeps every staged row, duplicates included.
	var bronzeDrivers int64
	if err := db.Table("bronze_drivers").Count(&bronzeDrivers).Error; err != nil {
		t.Fatalf("count bronze_drivers: %v", err)
	}
	if bronzeDrivers != 4 {
		t.Fatalf("bronze_drivers expected 4 rows, got %d", bronzeDrivers)
	}

	// Dedup kept the 2021 signup and validation dropped D3.
	var d1 models.SilverDriver
	if err := db.Where("driver_id = ?", "D1").First(&d1).Error; err != nil {
		t.Fatalf("fetch silver D1: %v", err)
	}
	if d1.SignupDate == nil || d1.SignupDate.Format("2006-01-02") != "2021-06-01" {
		t.Fatalf("D1 signup expected 2021-06-01, got %v", d1.SignupDate)
	}
	if !d1.DriverRating.Valid || !d1.DriverRating.Decimal.Equal(decimal.RequireFromString("4.9")) {
		t.Fatalf("D1 rating expected 4.9, got %v", d1.DriverRating)
	}
	if d1.Email == nil || *d1.Email != "alice@example.com" {
		t.Fatalf("D1 email expected lower-cased, got %v", d1.Email)
	}
	var silverDrivers int64
	if err := db.Model(&models.SilverDriver{}).Count(&silverDrivers).Error; err != nil {
		t.Fatalf("count silver_drivers: %v", err)
	}
	if silverDrivers != 2 {
		t.Fatalf("silver_drivers expected 2 rows, got %d", silverDrivers)
	}

	// The accepted GPay payment carries the canonical method.
	var p1 models.SilverPayment
	if err := db.Where("payment_id = ?", "P1").First(&p1).Error; err != nil {
		t.Fatalf("fetch silver P1: %v", err)
	}
	if p1.PaymentMethod == nil || *p1.PaymentMethod != "UPI" {
		t.Fatalf("P1 method expected UPI, got %v", p1.PaymentMethod)
	}

	// One rejection per planted bad row, reasons attributed.
	var rejected []models.AuditRejectedRow
	if err := db.Where("run_id = ?", summary.RunId).Order("table_name ASC").Find(&rejected).Error; err != nil {
		t.Fatalf("fetch rejected rows: %v", err)
	}
	if len(rejected) != 4 {
		t.Fatalf("expected 4 rejected rows, got %d", len(rejected))
	}
	reasonByTable := map[string]string{}
	for _, r := range rejected {
		reasonByTable[r.Table] = r.Reason
	}
	if reasonByTable["silver_drivers"] != "Invalid email" {
		t.Fatalf("driver rejection reason wrong: %q", reasonByTable["silver_drivers"])
	}
	expectedYearReason := fmt.Sprintf("Invalid year (1980-%d)", time.Now().Year()+1)
	if reasonByTable["silver_vehicles"] != expectedYearReason {
		t.Fatalf("vehicle rejection reason expected %q, got %q", expectedYearReason, reasonByTable["silver_vehicles"])
	}
	if reasonByTable["silver_trips"] != "total_fare_usd != base+tax+tip" {
		t.Fatalf("trip rejection reason wrong: %q", reasonByTable["silver_trips"])
	}
	if reasonByTable["silver_payments"] != "Negative amount_usd" {
		t.Fatalf("payment rejection reason wrong: %q", reasonByTable["silver_payments"])
	}
	// The rejected trip document preserves its typed fields.
	for _, r := range rejected {
		if r.Table != "silver_trips" {
			continue
		}
		var doc map[string]interface{}
		if err := json.Unmarshal([]byte(r.Record), &doc); err != nil {
			t.Fatalf("rejected trip record is not JSON: %v", err)
		}
		if doc["trip_id"] != "T3" {
			t.Fatalf("rejected trip expected T3, got %v", doc["trip_id"])
		}
	}

	// The battery ran per published entity; only fk_trip found orphans.
	var dqResults []models.AuditDqResult
	if err := db.Where("run_id = ?", summary.RunId).Find(&dqResults).Error; err != nil {
		t.Fatalf("fetch dq results: %v", err)
	}
	if len(dqResults) != 12 {
		t.Fatalf("expected 12 dq results, got %d", len(dqResults))
	}
	for _, dq := range dqResults {
		if dq.CheckName == "fk_trip" {
			if dq.PassFail || dq.BadRowCount != 1 {
				t.Fatalf("fk_trip expected 1 orphan, got %+v", dq)
			}
			continue
		}
		if !dq.PassFail {
			t.Fatalf("unexpected dq failure: %+v", dq)
		}
	}

	// Both fixture trips survived, so silver and gold agree everywhere.
	var reconResults []models.AuditReconResult
	if err := db.Where("run_id = ?", summary.RunId).Find(&reconResults).Error; err != nil {
		t.Fatalf("fetch recon results: %v", err)
	}
	if len(reconResults) != 4 {
		t.Fatalf("expected 4 recon results, got %d", len(reconResults))
	}
	for _, rec := range reconResults {
		if !rec.WithinTolerance || !rec.Diff.IsZero() {
			t.Fatalf("recon %s expected zero diff, got %+v", rec.CheckName, rec)
		}
	}

	for table, expected := range map[string]int64{
		"gold_dashboard":    2,
		"gold_driver_stats": 2,
		"gold_rider_stats":  2,
		"gold_daily_kpis":   2,
	} {
		var n int64
		if err := db.Table(table).Count(&n).Error; err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != expected {
			t.Fatalf("%s expected %d rows, got %d", table, expected, n)
		}
	}

	// Lineage: one base step and one validation step per entity.
	var steps []models.AuditEtlLog
	if err := db.Where("run_id = ?", summary.RunId).Order("id ASC").Find(&steps).Error; err != nil {
		t.Fatalf("fetch etl log: %v", err)
	}
	if len(steps) != 10 {
		t.Fatalf("expected 10 lineage steps, got %d", len(steps))
	}
	for _, step := range steps {
		if step.OutputRowCount > 0 && step.DataChecksum == nil {
			t.Fatalf("step %s published rows but has no checksum", step.StepExecuted)
		}
	}

	// The run closed and its event is staged on the outbox in one commit.
	var run models.EtlBatchRun
	if err := db.Where("run_id = ?", summary.RunId).First(&run).Error; err != nil {
		t.Fatalf("fetch batch run: %v", err)
	}
	if run.Status != models.BatchStatusCompleted || run.CompletedAt == nil {
		t.Fatalf("batch run not closed: %+v", run)
	}
	if run.TriggeredBy != "manual" {
		t.Fatalf("expected triggered_by manual, got %q", run.TriggeredBy)
	}
	var events []models.EtlEventRecord
	if err := db.Where("run_id = ?", summary.RunId).Find(&events).Error; err != nil {
		t.Fatalf("fetch outbox events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(events))
	}
	if events[0].EventType != models.EtlEventTypeBatchCompleted ||
		events[0].PublishStatus != models.OutboxPublishStatusPending {
		t.Fatalf("outbox event wrong: %+v", events[0])
	}
	var payload models.BatchRunSummary
	if err := json.Unmarshal(events[0].Payload, &payload); err != nil {
		t.Fatalf("event payload is not a summary: %v", err)
	}
	if payload.RunId != summary.RunId || payload.Status != models.BatchStatusCompleted {
		t.Fatalf("event payload mismatch: %+v", payload)
	}

	// The latest summary is cached for the CLI cooldown guard.
	raw, err := config.GetRedisDB().Get(ctx, models.LastRunSummaryRedisKey).Result()
	if err != nil {
		t.Fatalf("read cached summary: %v", err)
	}
	var cached models.BatchRunSummary
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		t.Fatalf("cached summary is not json: %v", err)
	}
	if cached.RunId != summary.RunId {
		t.Fatalf("cached summary run mismatch: %s != %s", cached.RunId, summary.RunId)
	}

	// Replay on unchanged input: published content, and therefore the base
	// fingerprints, must not move.
	time.Sleep(1100 * time.Millisecond) // run ids have second resolution
	rerun := workflow.NewEtlPipeline(db, logger, source, models.EtlLayerAll)
	rerunSummary, err := rerun.Run(ctx)
	if err != nil {
		t.Fatalf("pipeline rerun: %v", err)
	}
	if rerunSummary.Status != models.BatchStatusCompleted {
		t.Fatalf("rerun expected COMPLETED, got %s", rerunSummary.Status)
	}

	if err := db.Model(&models.SilverDriver{}).Count(&silverDrivers).Error; err != nil {
		t.Fatalf("recount silver_drivers: %v", err)
	}
	if silverDrivers != 2 {
		t.Fatalf("rerun must replace, not append: silver_drivers has %d rows", silverDrivers)
	}

	var baseSteps []models.AuditEtlLog
	if err := db.Where("step_executed = ?", "create_base_trips").Order("id ASC").Find(&baseSteps).Error; err != nil {
		t.Fatalf("fetch base steps: %v", err)
	}
	if len(baseSteps) != 2 {
		t.Fatalf("expected 2 create_base_trips steps, got %d", len(baseSteps))
	}
	first, second := baseSteps[0].DataChecksum, baseSteps[1].DataChecksum
	if first == nil || second == nil || *first != *second {
		t.Fatalf("replay fingerprint drifted: %v vs %v", first, second)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("ridelake-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("ridelake-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=ridelake_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
