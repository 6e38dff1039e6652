package catalog

import (
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestBuildVariantLookupQuery(t *testing.T) {
	doc, err := BuildVariantLookupQuery([]string{"024840074", "935621793"})
	if err != nil {
		t.Fatalf("BuildVariantLookupQuery() err = %v", err)
	}
	if !strings.Contains(doc, `sku:024840074 OR sku:935621793`) {
		t.Errorf("search term missing from document:\n%s", doc)
	}
	if !strings.Contains(doc, "productVariants(first: 2") {
		t.Errorf("first count missing from document:\n%s", doc)
	}
}

func TestBuildVariantLookupQueryLimits(t *testing.T) {
	if _, err := BuildVariantLookupQuery(nil); err == nil {
		t.Error("empty batch must be rejected")
	}

	big := make([]string, MaxLookupBatch+1)
	for i := range big {
		big[i] = fmt.Sprintf("sku%d", i)
	}
	if _, err := BuildVariantLookupQuery(big); err == nil {
		t.Errorf("batch of %d must be rejected", len(big))
	}

	if _, err := BuildVariantLookupQuery([]string{`"`}); err == nil {
		t.Error("identifier that sanitizes to empty must be rejected")
	}
}

func TestBuildVariantUpdateMutation(t *testing.T) {
	doc, err := BuildVariantUpdateMutation([]VariantFieldUpdate{
		{VariantId: "gid://shop/Variant/1", Price: dec("5.41"), Cost: dec("4.10")},
		{VariantId: "gid://shop/Variant/2", CompareAtPrice: dec("9.90")},
	})
	if err != nil {
		t.Fatalf("BuildVariantUpdateMutation() err = %v", err)
	}
	for _, want := range []string{"u0:", "u1:", `price: "5.41"`, `inventoryItem: {cost: "4.10"}`, `compareAtPrice: "9.90"`} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}
}

func TestBuildVariantUpdateMutationRejectsEmptyUpdate(t *testing.T) {
	if _, err := BuildVariantUpdateMutation([]VariantFieldUpdate{{VariantId: "gid://shop/Variant/1"}}); err == nil {
		t.Error("update without fields must be rejected")
	}
	if _, err := BuildVariantUpdateMutation([]VariantFieldUpdate{{Price: dec("1.00")}}); err == nil {
		t.Error("update without variant id must be rejected")
	}
}

func TestBuildInventoryAdjustMutation(t *testing.T) {
	doc, err := BuildInventoryAdjustMutation([]InventoryAdjustment{
		{InventoryItemId: "gid://shop/InventoryItem/1", LocationId: "gid://shop/Location/9", Delta: -3},
	})
	if err != nil {
		t.Fatalf("BuildInventoryAdjustMutation() err = %v", err)
	}
	if !strings.Contains(doc, "availableDelta: -3") {
		t.Errorf("delta missing from document:\n%s", doc)
	}
	if !strings.Contains(doc, "a0:") {
		t.Errorf("alias missing from document:\n%s", doc)
	}
}

func TestBuildMetafieldSetMutation(t *testing.T) {
	doc, err := BuildMetafieldSetMutation([]MetafieldSet{
		{OwnerId: "gid://shop/Variant/1", Value: "2027-05-31"},
	})
	if err != nil {
		t.Fatalf("BuildMetafieldSetMutation() err = %v", err)
	}
	for _, want := range []string{"m0:", `value: "2027-05-31"`, `type: "date"`, `namespace: "inventory"`} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}
}

func TestMutationBatchLimit(t *testing.T) {
	items := make([]MetafieldSet, MaxMutationBatch+1)
	for i := range items {
		items[i] = MetafieldSet{OwnerId: fmt.Sprintf("gid://shop/Variant/%d", i), Value: "2027-01-01"}
	}
	if _, err := BuildMetafieldSetMutation(items); err == nil {
		t.Errorf("batch of %d must be rejected", len(items))
	}
	if _, err := BuildMetafieldSetMutation(items[:MaxMutationBatch]); err != nil {
		t.Errorf("batch of %d must be accepted: %v", MaxMutationBatch, err)
	}
}
