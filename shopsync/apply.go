package shopsync

import (
	"context"
	"errors"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/pharmasync_backend/catalog"
	"bitbucket.org/mmdatafocus/pharmasync_backend/config"
	"bitbucket.org/mmdatafocus/pharmasync_backend/models"
	"bitbucket.org/mmdatafocus/pharmasync_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ApplyResult struct {
	Selected  int `json:"selected"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// RunApply drains the selected pending ChangeRecords (all pending when
// changeIds is empty), groups their mutations into aliased calls and applies
// them through the shared limiter.
//
// Per-item failures never abort the run: every selected record gets exactly
// one ApplyLogEntry, successful and skipped records leave the pending store,
// failed records stay for retry. The import ends as "applied" only when no
// selected record failed, otherwise "partially-applied".
func (s *Service) RunApply(ctx context.Context, importId string, changeIds []uint) (*ApplyResult, error) {
	logger := config.GetLogger()
	db := config.GetDB().WithContext(ctx)

	batch, err := models.GetImportBatch(ctx, importId)
	if err != nil {
		return nil, err
	}
	switch batch.Status {
	case models.ImportStatusCompared, models.ImportStatusPartiallyApplied:
	default:
		return nil, ErrImportNotReady
	}

	var records []models.ChangeRecord
	query := db.Where("import_id = ?", importId)
	if len(changeIds) > 0 {
		query = query.Where("id IN ?", changeIds)
	}
	if err := query.Order("id").Find(&records).Error; err != nil {
		return nil, err
	}

	errsByIdx := make([][]string, len(records))
	skipped := make([]bool, len(records))

	var fieldItems []catalog.VariantFieldUpdate
	var fieldIdx []int
	var invItems []catalog.InventoryAdjustment
	var invIdx []int
	var metaItems []catalog.MetafieldSet
	var metaIdx []int

	locationId := strings.TrimSpace(os.Getenv("SHOP_LOCATION_ID"))

	for i := range records {
		rec := &records[i]
		if rec.Missing {
			// Products absent from the shop need a separate creation workflow.
			skipped[i] = true
			continue
		}
		fields := rec.Fields()

		update := catalog.VariantFieldUpdate{VariantId: rec.VariantId}
		hasUpdate := false
		if delta, ok := fields[models.FieldPrice]; ok {
			if v, err := decimal.NewFromString(delta.New); err == nil {
				update.Price = &v
				hasUpdate = true
			}
		}
		if delta, ok := fields[models.FieldCompareAtPrice]; ok {
			if v, err := decimal.NewFromString(delta.New); err == nil {
				update.CompareAtPrice = &v
				hasUpdate = true
			}
		}
		if delta, ok := fields[models.FieldCost]; ok {
			if v, err := decimal.NewFromString(delta.New); err == nil {
				update.Cost = &v
				hasUpdate = true
			}
		}
		if hasUpdate {
			fieldItems = append(fieldItems, update)
			fieldIdx = append(fieldIdx, i)
		}

		if delta, ok := fields[models.FieldQuantity]; ok {
			if locationId == "" {
				return nil, errors.New("SHOP_LOCATION_ID is required to apply quantity changes")
			}
			oldQty, _ := strconv.Atoi(delta.Old)
			newQty, _ := strconv.Atoi(delta.New)
			if newQty != oldQty {
				invItems = append(invItems, catalog.InventoryAdjustment{
					InventoryItemId: rec.InventoryItemId,
					LocationId:      locationId,
					Delta:           newQty - oldQty,
				})
				invIdx = append(invIdx, i)
			}
		}

		if delta, ok := fields[models.FieldExpiryDate]; ok {
			metaItems = append(metaItems, catalog.MetafieldSet{OwnerId: rec.VariantId, Value: delta.New})
			metaIdx = append(metaIdx, i)
		}
	}

	dryRun, _ := utils.GetDryRunFromContext(ctx)
	if dryRun || config.ApplyDryRun() {
		logger.WithFields(logrus.Fields{
			"import_id":             importId,
			"field_updates":         len(fieldItems),
			"inventory_adjustments": len(invItems),
			"metafield_sets":        len(metaItems),
		}).Info("dry run: computed mutation batches without dispatching")
		return &ApplyResult{Selected: len(records)}, nil
	}

	dispatchAliased(ctx, s.Exec, fieldItems, fieldIdx, "u", catalog.BuildVariantUpdateMutation, errsByIdx)
	dispatchAliased(ctx, s.Exec, invItems, invIdx, "a", catalog.BuildInventoryAdjustMutation, errsByIdx)
	dispatchAliased(ctx, s.Exec, metaItems, metaIdx, "m", catalog.BuildMetafieldSetMutation, errsByIdx)

	outcomes, status, result := finalizeApply(importId, records, skipped, errsByIdx)

	err = db.Transaction(func(tx *gorm.DB) error {
		for i := range outcomes {
			if err := tx.Create(&outcomes[i].entry).Error; err != nil {
				return err
			}
			if outcomes[i].remove {
				if err := tx.Delete(&models.ChangeRecord{}, records[i].ID).Error; err != nil {
					return err
				}
			}
		}
		if err := models.SetImportStatus(tx, importId, status); err != nil {
			return err
		}
		return models.MarkImportFinished(tx, importId, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyOutcome is the per-record result of an apply run: the audit entry to
// write and whether the record leaves the pending store.
type applyOutcome struct {
	entry  models.ApplyLogEntry
	remove bool
}

// finalizeApply turns dispatch results into audit entries, removal decisions,
// the final import status and the run counters. Only records whose entry is an
// error stay pending; the import ends "applied" when nothing failed.
func finalizeApply(importId string, records []models.ChangeRecord, skipped []bool, errsByIdx [][]string) ([]applyOutcome, string, *ApplyResult) {
	result := &ApplyResult{Selected: len(records)}
	outcomes := make([]applyOutcome, 0, len(records))

	for i := range records {
		rec := &records[i]
		entry := models.ApplyLogEntry{ImportId: importId, Minsan: rec.Minsan}
		remove := true

		switch {
		case skipped[i]:
			entry.Status = models.ApplyLogStatusSkipped
			entry.Details = "missing on remote catalog; requires product creation"
			result.Skipped++
		case len(errsByIdx[i]) == 0:
			entry.Status = models.ApplyLogStatusSuccess
			entry.Details = "applied: " + strings.Join(appliedFieldNames(rec), ", ")
			result.Succeeded++
		default:
			entry.Status = models.ApplyLogStatusError
			entry.Details = strings.Join(errsByIdx[i], "; ")
			result.Failed++
			remove = false
		}

		outcomes = append(outcomes, applyOutcome{entry: entry, remove: remove})
	}

	status := models.ImportStatusApplied
	if result.Failed > 0 {
		status = models.ImportStatusPartiallyApplied
	}
	return outcomes, status, result
}

// dispatchAliased sends one mutation shape in chunks of MaxMutationBatch.
// idxs[k] is the ChangeRecord index behind items[k]; failures (of the whole
// call or of single aliased operations) are attributed back through errsByIdx.
func dispatchAliased[T any](ctx context.Context, exec catalog.Executor, items []T, idxs []int, prefix string, build func([]T) (string, error), errsByIdx [][]string) {
	for start := 0; start < len(items); start += catalog.MaxMutationBatch {
		end := min(start+catalog.MaxMutationBatch, len(items))
		chunk := items[start:end]
		chunkIdx := idxs[start:end]

		doc, err := build(chunk)
		if err != nil {
			failChunk(chunkIdx, errsByIdx, err)
			continue
		}
		data, err := exec.Execute(ctx, doc)
		if err != nil {
			failChunk(chunkIdx, errsByIdx, err)
			continue
		}
		userErrs, err := catalog.DecodeAliasedUserErrors(data, prefix, len(chunk))
		if err != nil {
			failChunk(chunkIdx, errsByIdx, err)
			continue
		}
		for k, errs := range userErrs {
			for _, ue := range errs {
				errsByIdx[chunkIdx[k]] = append(errsByIdx[chunkIdx[k]], ue.Message)
			}
		}
	}
}

func failChunk(chunkIdx []int, errsByIdx [][]string, err error) {
	for _, i := range chunkIdx {
		errsByIdx[i] = append(errsByIdx[i], err.Error())
	}
}

func appliedFieldNames(rec *models.ChangeRecord) []string {
	fields := rec.Fields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
