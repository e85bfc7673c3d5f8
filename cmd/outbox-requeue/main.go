package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/ridelake_backend/config"
	"github.com/mmdatafocus/ridelake_backend/models"
)

// Maintenance tool: inspect the event outbox and put DEAD rows back in
// front of the dispatcher after the underlying publish problem is fixed.
func main() {
	runId := flag.String("run", "", "Optional: limit requeue to one run id")
	dryRun := flag.Bool("dry-run", true, "Show queue summary only (no writes)")
	confirm := flag.String("confirm", "", "Type REQUEUE to proceed when dry-run=false")
	flag.Parse()

	if !*dryRun && strings.TrimSpace(*confirm) != "REQUEUE" {
		fmt.Fprintln(os.Stderr, "set --confirm=REQUEUE to proceed")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx := context.Background()

	summary, err := models.GetOutboxQueueSummary(ctx, db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "queue summary failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("outbox: pending=%d processing=%d sent=%d failed=%d dead=%d\n",
		summary.Pending, summary.Processing, summary.Sent, summary.Failed, summary.Dead)

	if *dryRun {
		if summary.Dead > 0 {
			fmt.Println("rerun with --dry-run=false --confirm=REQUEUE to requeue dead events")
		}
		return
	}

	requeued, err := models.RequeueDeadEvents(ctx, db, strings.TrimSpace(*runId))
	if err != nil {
		fmt.Fprintf(os.Stderr, "requeue failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("requeued %d dead events\n", requeued)
}
