package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// Structural limits of the shop API: batched lookups take tens of identifiers
// per call, mutations allow up to 10 aliased operations per call.
const (
	MaxLookupBatch   = 40
	MaxMutationBatch = 10
)

const (
	expiryMetafieldNamespace = "inventory"
	expiryMetafieldKey       = "expiry_date"
)

// VariantFieldUpdate sets price / compare-at price / cost on one variant.
// Nil fields are left untouched.
type VariantFieldUpdate struct {
	VariantId      string
	Price          *decimal.Decimal
	CompareAtPrice *decimal.Decimal
	Cost           *decimal.Decimal
}

// InventoryAdjustment applies a signed on-hand delta at one location.
type InventoryAdjustment struct {
	InventoryItemId string
	LocationId      string
	Delta           int
}

// MetafieldSet writes the expiry metafield on one owner (product/variant).
type MetafieldSet struct {
	OwnerId string
	Value   string
}

// BuildVariantLookupQuery builds one batched lookup for up to MaxLookupBatch
// product identifiers. Identifier sets and batch size are validated before any
// payload text is assembled.
func BuildVariantLookupQuery(skus []string) (string, error) {
	if len(skus) == 0 {
		return "", errors.New("empty identifier batch")
	}
	if len(skus) > MaxLookupBatch {
		return "", fmt.Errorf("identifier batch %d exceeds limit %d", len(skus), MaxLookupBatch)
	}

	terms := make([]string, 0, len(skus))
	for _, sku := range skus {
		clean := sanitizeIdentifier(sku)
		if clean == "" {
			return "", fmt.Errorf("invalid product identifier %q", sku)
		}
		terms = append(terms, "sku:"+clean)
	}
	search := strings.Join(terms, " OR ")

	doc := fmt.Sprintf(`query {
  productVariants(first: %d, query: %s) {
    edges {
      node {
        id
        sku
        price
        compareAtPrice
        inventoryQuantity
        product { id }
        inventoryItem { id unitCost { amount } }
        metafield(namespace: %s, key: %s) { value }
      }
    }
  }
}`, len(skus), strconv.Quote(search), strconv.Quote(expiryMetafieldNamespace), strconv.Quote(expiryMetafieldKey))

	return validateDocument(doc)
}

// BuildVariantUpdateMutation builds one aliased field-update call for up to
// MaxMutationBatch variants. Alias order matches input order, so per-item
// userErrors map back to their originating change.
func BuildVariantUpdateMutation(items []VariantFieldUpdate) (string, error) {
	if err := checkMutationBatch(len(items)); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("mutation {\n")
	for i, item := range items {
		if item.VariantId == "" {
			return "", fmt.Errorf("variant update %d: missing variant id", i)
		}
		fields := []string{"id: " + strconv.Quote(item.VariantId)}
		if item.Price != nil {
			fields = append(fields, "price: "+strconv.Quote(item.Price.StringFixed(2)))
		}
		if item.CompareAtPrice != nil {
			fields = append(fields, "compareAtPrice: "+strconv.Quote(item.CompareAtPrice.StringFixed(2)))
		}
		if item.Cost != nil {
			fields = append(fields, "inventoryItem: {cost: "+strconv.Quote(item.Cost.StringFixed(2))+"}")
		}
		if len(fields) == 1 {
			return "", fmt.Errorf("variant update %d: no fields to set", i)
		}
		fmt.Fprintf(&b, "  u%d: productVariantUpdate(input: {%s}) { userErrors { field message } }\n", i, strings.Join(fields, ", "))
	}
	b.WriteString("}")

	return validateDocument(b.String())
}

// BuildInventoryAdjustMutation builds one aliased quantity-delta call for up
// to MaxMutationBatch inventory items.
func BuildInventoryAdjustMutation(items []InventoryAdjustment) (string, error) {
	if err := checkMutationBatch(len(items)); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("mutation {\n")
	for i, item := range items {
		if item.InventoryItemId == "" || item.LocationId == "" {
			return "", fmt.Errorf("inventory adjustment %d: missing inventory item or location id", i)
		}
		fmt.Fprintf(&b, "  a%d: inventoryAdjustQuantity(input: {inventoryItemId: %s, locationId: %s, availableDelta: %d}) { userErrors { field message } }\n",
			i, strconv.Quote(item.InventoryItemId), strconv.Quote(item.LocationId), item.Delta)
	}
	b.WriteString("}")

	return validateDocument(b.String())
}

// BuildMetafieldSetMutation builds one aliased expiry-metafield call for up to
// MaxMutationBatch owners.
func BuildMetafieldSetMutation(items []MetafieldSet) (string, error) {
	if err := checkMutationBatch(len(items)); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("mutation {\n")
	for i, item := range items {
		if item.OwnerId == "" {
			return "", fmt.Errorf("metafield set %d: missing owner id", i)
		}
		fmt.Fprintf(&b, "  m%d: metafieldsSet(metafields: [{ownerId: %s, namespace: %s, key: %s, type: \"date\", value: %s}]) { userErrors { field message } }\n",
			i, strconv.Quote(item.OwnerId), strconv.Quote(expiryMetafieldNamespace), strconv.Quote(expiryMetafieldKey), strconv.Quote(item.Value))
	}
	b.WriteString("}")

	return validateDocument(b.String())
}

func checkMutationBatch(n int) error {
	if n == 0 {
		return errors.New("empty mutation batch")
	}
	if n > MaxMutationBatch {
		return fmt.Errorf("mutation batch %d exceeds limit %d", n, MaxMutationBatch)
	}
	return nil
}

// validateDocument parses the assembled document so a malformed batch is
// rejected before it ever reaches the wire.
func validateDocument(doc string) (string, error) {
	if _, err := parser.ParseQuery(&ast.Source{Name: "shop", Input: doc}); err != nil {
		return "", fmt.Errorf("invalid graphql document: %w", err)
	}
	return doc, nil
}

func sanitizeIdentifier(sku string) string {
	clean := strings.TrimSpace(sku)
	clean = strings.ReplaceAll(clean, `"`, "")
	clean = strings.ReplaceAll(clean, " ", "")
	return clean
}
