package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/pharmasync_backend/config"
	"bitbucket.org/mmdatafocus/pharmasync_backend/models"
)

// Maintenance tool to reset a partially-applied import back to "compared" so
// the retained failed ChangeRecords can be re-applied, without touching the
// audit trail.
func main() {
	importId := flag.String("import-id", "", "Required: import id to requeue")
	dryRun := flag.Bool("dry-run", true, "Show state only (no writes)")
	confirm := flag.String("confirm", "", "Type REQUEUE to proceed when dry-run=false")
	flag.Parse()

	if strings.TrimSpace(*importId) == "" {
		fmt.Fprintln(os.Stderr, "--import-id is required")
		os.Exit(1)
	}
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

	var batch models.ImportBatch
	if err := db.Where("import_id = ?", *importId).Take(&batch).Error; err != nil {
		fmt.Fprintf(os.Stderr, "import not found: %v\n", err)
		os.Exit(1)
	}

	var pending int64
	if err := db.Model(&models.ChangeRecord{}).Where("import_id = ?", *importId).Count(&pending).Error; err != nil {
		fmt.Fprintf(os.Stderr, "count pending changes: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("import %s status=%s pending_changes=%d\n", batch.ImportId, batch.Status, pending)

	if *dryRun {
		fmt.Println("dry-run: no changes made")
		return
	}

	if batch.Status != models.ImportStatusPartiallyApplied && batch.Status != models.ImportStatusApplied {
		fmt.Fprintf(os.Stderr, "import is %s; only applied or partially-applied imports can be requeued\n", batch.Status)
		os.Exit(1)
	}
	if pending == 0 {
		fmt.Fprintln(os.Stderr, "no pending changes to requeue")
		os.Exit(1)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		return models.SetImportStatus(tx, *importId, models.ImportStatusCompared)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "requeue failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("import %s reset to %s\n", *importId, models.ImportStatusCompared)
}
