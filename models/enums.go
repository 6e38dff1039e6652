package models

// ImportBatch statuses. The status is the single source of truth for which
// pipeline stage last completed for the import.
const (
	ImportStatusRaw              = "raw"
	ImportStatusNormalized       = "normalized"
	ImportStatusCompared         = "compared"
	ImportStatusApplied          = "applied"
	ImportStatusPartiallyApplied = "partially-applied"
	ImportStatusFailed           = "failed"
)

const (
	ApplyLogStatusSuccess = "success"
	ApplyLogStatusError   = "error"
	ApplyLogStatusSkipped = "skipped"
)

const (
	RunTriggeredManual = "manual"
	RunTriggeredRetry  = "retry"
	RunTriggeredSystem = "system"
)

// Field names carried by ChangeRecord diffs.
const (
	FieldQuantity       = "quantity"
	FieldPrice          = "price"
	FieldCost           = "cost"
	FieldCompareAtPrice = "compare_at_price"
	FieldExpiryDate     = "expiry_date"
)

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)
