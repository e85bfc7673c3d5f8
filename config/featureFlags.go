package config

import (
	"os"
	"strings"
)

// GoldExportEnabled turns on CSV/XLSX export of the gold tables after a
// successful gold build. Exports land under data/gold_exports/<run_id>/.
//
// Set via env:
// - GOLD_EXPORT=true
func GoldExportEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("GOLD_EXPORT")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// ArchiveToGCSEnabled uploads raw CSV snapshots and gold exports to the
// bucket named by GCS_BUCKET after writing them locally. Requires GCS
// credentials (GCS_CREDENTIALS_JSON or Application Default Credentials).
//
// Set via env:
// - ARCHIVE_TO_GCS=true
func ArchiveToGCSEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ARCHIVE_TO_GCS")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// BatchEventsEnabled controls whether batch lifecycle events are written to
// the outbox at the end of a run. Disable for local one-shot runs without
// Pub/Sub infrastructure.
//
// Set via env:
// - BATCH_EVENTS=false (default true)
func BatchEventsEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("BATCH_EVENTS")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
