package models

import (
	"context"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/pharmasync_backend/config"
	"github.com/shopspring/decimal"
)

const markupCacheKey = "supplierMarkupMap"

// SupplierMarkup is the per-supplier percentage applied on top of average cost
// (plus VAT) to derive the target sale price. Managed elsewhere; the pipeline
// only reads it.
type SupplierMarkup struct {
	ID            uint            `gorm:"primary_key" json:"id"`
	Supplier      string          `gorm:"uniqueIndex;size:100;not null" json:"supplier"`
	MarkupPercent decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"markup_percent"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetSupplierMarkup returns the markup percent for a supplier, redis-cached.
// Unknown suppliers fall back to DEFAULT_MARKUP_PERCENT (0 when unset).
func GetSupplierMarkup(ctx context.Context, supplier string) (decimal.Decimal, error) {
	markups := make(map[string]string)
	exists, err := config.GetRedisObject(markupCacheKey, &markups)
	if err != nil {
		return decimal.Zero, err
	}
	if !exists {
		db := config.GetDB()
		var rows []SupplierMarkup
		if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
			return decimal.Zero, err
		}
		for _, row := range rows {
			markups[strings.ToUpper(strings.TrimSpace(row.Supplier))] = row.MarkupPercent.String()
		}
		if err := config.SetRedisObject(markupCacheKey, &markups, 10*time.Minute); err != nil {
			return decimal.Zero, err
		}
	}

	if raw, ok := markups[strings.ToUpper(strings.TrimSpace(supplier))]; ok {
		if pct, err := decimal.NewFromString(raw); err == nil {
			return pct, nil
		}
	}
	return defaultMarkupPercent(), nil
}

// InvalidateMarkupCache drops the cached markup map after the table changes.
func InvalidateMarkupCache() error {
	return config.RemoveRedisKey(markupCacheKey)
}

func defaultMarkupPercent() decimal.Decimal {
	v := strings.TrimSpace(os.Getenv("DEFAULT_MARKUP_PERCENT"))
	if v == "" {
		return decimal.Zero
	}
	pct, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return pct
}
