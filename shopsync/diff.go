package shopsync

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/pharmasync_backend/catalog"
	"bitbucket.org/mmdatafocus/pharmasync_backend/config"
	"bitbucket.org/mmdatafocus/pharmasync_backend/models"
	"github.com/shopspring/decimal"
)

// Money comparisons treat a difference at or below this as equal; the remote
// stores prices with two decimals.
var defaultTolerance = decimal.NewFromFloat(0.01)

// MarkupLookup resolves the supplier markup percent used for price derivation.
type MarkupLookup func(ctx context.Context, supplier string) (decimal.Decimal, error)

// TargetPrice derives the proposed sale price:
// avg cost × (1 + markup%/100) × (1 + VAT%/100), rounded to 2 decimals.
// The derived price, not the raw file price, is what gets compared and proposed.
func TargetPrice(avgCost, markupPercent, vatPercent decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	price := avgCost.
		Mul(decimal.NewFromInt(1).Add(markupPercent.Div(hundred))).
		Mul(decimal.NewFromInt(1).Add(vatPercent.Div(hundred)))
	return price.Round(2)
}

// ComputeChanges compares each normalized product against its remote
// counterpart and returns one ChangeRecord per product with at least one
// differing field. Products absent from the remote map yield a record with
// the missing flag and no field comparisons.
func ComputeChanges(ctx context.Context, markupFor MarkupLookup, products []models.NormalizedProduct, remote map[string]catalog.RemoteRecord) ([]models.ChangeRecord, error) {
	var records []models.ChangeRecord

	for _, product := range products {
		rec, found := remote[product.Minsan]
		if !found {
			records = append(records, models.ChangeRecord{
				ImportId: product.ImportId,
				Minsan:   product.Minsan,
				Missing:  true,
			})
			continue
		}

		markup, err := markupFor(ctx, product.Supplier)
		if err != nil {
			return nil, fmt.Errorf("markup lookup for supplier %q: %w", product.Supplier, err)
		}
		target := TargetPrice(product.AvgCost, markup, product.VatRate)

		fields := make(map[string]models.FieldDelta)

		if product.Qty != rec.Qty {
			fields[models.FieldQuantity] = models.FieldDelta{
				Old: strconv.Itoa(rec.Qty),
				New: strconv.Itoa(product.Qty),
			}
		}
		if exceedsTolerance(rec.Price, target) {
			fields[models.FieldPrice] = models.FieldDelta{
				Old: rec.Price.StringFixed(2),
				New: target.StringFixed(2),
			}
		}
		if exceedsTolerance(rec.Cost, product.AvgCost) {
			fields[models.FieldCost] = models.FieldDelta{
				Old: rec.Cost.StringFixed(2),
				New: product.AvgCost.Round(2).StringFixed(2),
			}
		}
		if exceedsTolerance(rec.CompareAtPrice, product.ListPrice) {
			fields[models.FieldCompareAtPrice] = models.FieldDelta{
				Old: rec.CompareAtPrice.StringFixed(2),
				New: product.ListPrice.StringFixed(2),
			}
		}
		if product.Expiry != nil {
			expiry := product.Expiry.Format(time.DateOnly)
			if expiry != rec.Expiry {
				fields[models.FieldExpiryDate] = models.FieldDelta{Old: rec.Expiry, New: expiry}
			}
		}

		if len(fields) == 0 {
			continue
		}

		change := models.ChangeRecord{
			ImportId:        product.ImportId,
			Minsan:          product.Minsan,
			VariantId:       rec.VariantId,
			ProductId:       rec.ProductId,
			InventoryItemId: rec.InventoryItemId,
		}
		change.SetFields(fields)
		records = append(records, change)
	}

	return records, nil
}

func exceedsTolerance(old, new decimal.Decimal) bool {
	return old.Sub(new).Abs().GreaterThan(defaultTolerance)
}

// RunDiff fetches the remote state for the import's normalized products,
// computes the change set and replaces the stored ChangeRecords. Moves the
// import to "compared". A fetch failure aborts the run with the status
// unchanged; no partial remote state is used.
func (s *Service) RunDiff(ctx context.Context, importId string) error {
	db := config.GetDB().WithContext(ctx)

	batch, err := models.GetImportBatch(ctx, importId)
	if err != nil {
		return err
	}
	switch batch.Status {
	case models.ImportStatusNormalized, models.ImportStatusCompared, models.ImportStatusPartiallyApplied, models.ImportStatusApplied:
	default:
		return ErrImportNotReady
	}

	var products []models.NormalizedProduct
	if err := db.Where("import_id = ?", importId).Order("id").Find(&products).Error; err != nil {
		return err
	}

	minsans := make([]string, 0, len(products))
	for _, p := range products {
		minsans = append(minsans, p.Minsan)
	}

	remote, err := catalog.FetchRemoteRecords(ctx, s.Exec, minsans)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteFetch, err)
	}

	records, err := ComputeChanges(ctx, s.MarkupFor, products, remote)
	if err != nil {
		return err
	}

	if err := models.ReplaceChangeRecords(db, importId, records); err != nil {
		return err
	}
	return models.SetImportStatus(db, importId, models.ImportStatusCompared)
}
