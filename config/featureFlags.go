package config

import (
	"os"
	"strings"
)

// ApplyDryRun makes the apply stage compute and log mutation batches without
// dispatching them to the shop catalog. Pending changes stay in place.
//
// Set via env:
// - APPLY_DRY_RUN=true
func ApplyDryRun() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("APPLY_DRY_RUN")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// EnableSyncPushEndpoint controls the Pub/Sub push endpoint for reconciliation runs.
// Enabled by default; disable on instances that should only serve the REST surface.
//
// Set via env:
// - ENABLE_SYNC_PUSH_ENDPOINT=false
func EnableSyncPushEndpoint() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ENABLE_SYNC_PUSH_ENDPOINT")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
