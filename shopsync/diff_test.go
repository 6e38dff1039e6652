package shopsync

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/pharmasync_backend/catalog"
	"bitbucket.org/mmdatafocus/pharmasync_backend/models"
	"github.com/shopspring/decimal"
)

func fixedMarkup(percent string) MarkupLookup {
	pct := decimal.RequireFromString(percent)
	return func(ctx context.Context, supplier string) (decimal.Decimal, error) {
		return pct, nil
	}
}

func TestTargetPrice(t *testing.T) {
	tests := []struct {
		avgCost string
		markup  string
		vat     string
		want    string
	}{
		// 4.10 × 1.20 × 1.10 = 5.412 → 5.41
		{"4.10", "20", "10", "5.41"},
		{"10.00", "0", "0", "10.00"},
		{"1.00", "50", "22", "1.83"},
		{"0", "30", "10", "0.00"},
	}

	for _, tt := range tests {
		got := TargetPrice(
			decimal.RequireFromString(tt.avgCost),
			decimal.RequireFromString(tt.markup),
			decimal.RequireFromString(tt.vat),
		)
		if got.StringFixed(2) != tt.want {
			t.Errorf("TargetPrice(%s, %s%%, %s%%) = %s, want %s", tt.avgCost, tt.markup, tt.vat, got, tt.want)
		}
	}
}

func TestComputeChangesScenario(t *testing.T) {
	// Two lots: qty 10 and -3, costs 4.00 and 4.20.
	rows := []models.RawRow{
		{Minsan: "024840074", Supplier: "ALFA", Qty: 10, AvgCost: decimal.RequireFromString("4.00"),
			VatRate: decimal.RequireFromString("10")},
		{Minsan: "024840074", Supplier: "ALFA", Qty: -3, AvgCost: decimal.RequireFromString("4.20"),
			VatRate: decimal.RequireFromString("10")},
	}
	products := NormalizeRows(testLogger(), "imp-1", rows)

	remote := map[string]catalog.RemoteRecord{
		"024840074": {
			Sku:       "024840074",
			VariantId: "gid://shop/Variant/1",
			Qty:       7,
			Price:     decimal.RequireFromString("5.00"),
			Cost:      decimal.RequireFromString("4.10"),
		},
	}

	records, err := ComputeChanges(context.Background(), fixedMarkup("20"), products, remote)
	if err != nil {
		t.Fatalf("ComputeChanges() err = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	fields := records[0].Fields()
	// Qty matches (10-3 = 7) so no quantity delta.
	if _, ok := fields[models.FieldQuantity]; ok {
		t.Error("quantity delta present for equal quantities")
	}
	// Avg cost 4.10 matches remote cost exactly.
	if _, ok := fields[models.FieldCost]; ok {
		t.Error("cost delta present within tolerance")
	}
	// Target price 4.10 × 1.20 × 1.10 = 5.41 vs remote 5.00.
	priceDelta, ok := fields[models.FieldPrice]
	if !ok {
		t.Fatal("price delta missing")
	}
	if priceDelta.Old != "5.00" || priceDelta.New != "5.41" {
		t.Errorf("price delta = %+v, want 5.00 -> 5.41", priceDelta)
	}
}

func TestComputeChangesToleranceBoundary(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		wantChange bool
	}{
		{"exact match", "5.41", false},
		{"within tolerance", "5.42", false},
		{"at tolerance", "5.40", false},
		{"beyond tolerance", "5.43", true},
		{"beyond tolerance below", "5.39", true},
	}

	products := []models.NormalizedProduct{{
		ImportId: "imp-1",
		Minsan:   "024840074",
		Qty:      1,
		AvgCost:  decimal.RequireFromString("4.10"),
		VatRate:  decimal.RequireFromString("10"),
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := map[string]catalog.RemoteRecord{
				"024840074": {
					Sku:   "024840074",
					Qty:   1,
					Price: decimal.RequireFromString(tt.remote),
					Cost:  decimal.RequireFromString("4.10"),
				},
			}
			records, err := ComputeChanges(context.Background(), fixedMarkup("20"), products, remote)
			if err != nil {
				t.Fatalf("ComputeChanges() err = %v", err)
			}
			got := false
			if len(records) == 1 {
				_, got = records[0].Fields()[models.FieldPrice]
			}
			if got != tt.wantChange {
				t.Errorf("remote %s: price delta = %v, want %v", tt.remote, got, tt.wantChange)
			}
		})
	}
}

func TestComputeChangesMissingProduct(t *testing.T) {
	products := []models.NormalizedProduct{{
		ImportId: "imp-1",
		Minsan:   "000000000",
		Qty:      4,
	}}

	records, err := ComputeChanges(context.Background(), fixedMarkup("20"), products, map[string]catalog.RemoteRecord{})
	if err != nil {
		t.Fatalf("ComputeChanges() err = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if !records[0].Missing {
		t.Error("missing flag not set for absent product")
	}
	if len(records[0].Fields()) != 0 {
		t.Errorf("missing product must carry no field deltas, got %v", records[0].Fields())
	}
}

func TestComputeChangesExpiry(t *testing.T) {
	products := []models.NormalizedProduct{{
		ImportId: "imp-1",
		Minsan:   "024840074",
		Qty:      1,
		Expiry:   date("2027-05-31"),
	}}

	remote := map[string]catalog.RemoteRecord{
		"024840074": {Sku: "024840074", Qty: 1, Expiry: "2026-11-30"},
	}

	records, err := ComputeChanges(context.Background(), fixedMarkup("0"), products, remote)
	if err != nil {
		t.Fatalf("ComputeChanges() err = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	delta, ok := records[0].Fields()[models.FieldExpiryDate]
	if !ok {
		t.Fatal("expiry delta missing")
	}
	if delta.Old != "2026-11-30" || delta.New != "2027-05-31" {
		t.Errorf("expiry delta = %+v", delta)
	}
}

func TestComputeChangesNoExpiryNoDelta(t *testing.T) {
	// A product without a parseable expiry never proposes clearing the remote one.
	products := []models.NormalizedProduct{{
		ImportId: "imp-1",
		Minsan:   "024840074",
		Qty:      1,
	}}
	remote := map[string]catalog.RemoteRecord{
		"024840074": {Sku: "024840074", Qty: 1, Expiry: "2026-11-30"},
	}

	records, err := ComputeChanges(context.Background(), fixedMarkup("0"), products, remote)
	if err != nil {
		t.Fatalf("ComputeChanges() err = %v", err)
	}
	for _, rec := range records {
		if _, ok := rec.Fields()[models.FieldExpiryDate]; ok {
			t.Error("expiry delta proposed from a product without expiry")
		}
	}
}
