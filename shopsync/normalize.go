package shopsync

import (
	"context"

	"bitbucket.org/mmdatafocus/pharmasync_backend/config"
	"bitbucket.org/mmdatafocus/pharmasync_backend/models"
	"bitbucket.org/mmdatafocus/pharmasync_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// NormalizeRows aggregates an import's RawRows into one NormalizedProduct per
// distinct Minsan, in first-seen row order (re-running on the same rows yields
// an identical set). Rows without a Minsan are skipped and logged as warnings.
//
// Aggregation rules:
//   - quantity: sum of per-row quantities, the final sum clamped at zero
//     (sum-then-clamp: mixed positive/negative lots net before clamping)
//   - cost: arithmetic mean of per-row average costs
//   - expiry: earliest parseable date in the group
//   - last cost / last cost date: from the row with the newest last-cost date
//   - supplier, list price, VAT: from the first row of the group
func NormalizeRows(logger *logrus.Logger, importId string, rows []models.RawRow) []models.NormalizedProduct {
	type aggregate struct {
		product  models.NormalizedProduct
		qtySum   int
		costSum  decimal.Decimal
		costRows int64
	}

	var order []string
	groups := make(map[string]*aggregate)

	for _, row := range rows {
		if row.Minsan == "" {
			config.LogWarn(logger, "shopsync", "NormalizeRows", "row without product identifier skipped",
				map[string]interface{}{"import_id": importId, "ean": row.Ean, "lot": row.Lot}, "skipping extract row")
			continue
		}

		group, ok := groups[row.Minsan]
		if !ok {
			group = &aggregate{
				product: models.NormalizedProduct{
					ImportId:     importId,
					Minsan:       row.Minsan,
					Supplier:     row.Supplier,
					LastCost:     row.LastCost,
					LastCostDate: row.LastCostDate,
					ListPrice:    row.ListPrice,
					VatRate:      row.VatRate,
				},
			}
			groups[row.Minsan] = group
			order = append(order, row.Minsan)
		}

		group.qtySum += row.Qty
		group.costSum = group.costSum.Add(row.AvgCost)
		group.costRows++

		group.product.Expiry = utils.FindOldestDate(group.product.Expiry, row.Expiry)
		if row.LastCostDate != nil &&
			(group.product.LastCostDate == nil || row.LastCostDate.After(*group.product.LastCostDate)) {
			group.product.LastCost = row.LastCost
			group.product.LastCostDate = row.LastCostDate
		}
	}

	products := make([]models.NormalizedProduct, 0, len(order))
	for _, minsan := range order {
		group := groups[minsan]
		product := group.product

		// A batch of wholly negative return-lots must not go below zero.
		product.Qty = group.qtySum
		if product.Qty < 0 {
			product.Qty = 0
		}
		if group.costRows > 0 {
			product.AvgCost = group.costSum.Div(decimal.NewFromInt(group.costRows))
		}
		products = append(products, product)
	}
	return products
}

// RunNormalize loads the import's RawRows, aggregates them and replaces the
// stored NormalizedProduct set. Moves the import to "normalized".
func RunNormalize(ctx context.Context, importId string) error {
	logger := config.GetLogger()
	db := config.GetDB().WithContext(ctx)

	batch, err := models.GetImportBatch(ctx, importId)
	if err != nil {
		return err
	}
	if batch.Status == models.ImportStatusFailed {
		return ErrImportNotReady
	}

	var rows []models.RawRow
	if err := db.Where("import_id = ?", importId).Order("id").Find(&rows).Error; err != nil {
		return err
	}

	products := NormalizeRows(logger, importId, rows)

	if err := models.ReplaceNormalizedProducts(db, importId, products); err != nil {
		return err
	}
	return models.SetImportStatus(db, importId, models.ImportStatusNormalized)
}
