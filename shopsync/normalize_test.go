package shopsync

import (
	"io"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/pharmasync_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	t = t.UTC()
	return &t
}

func TestNormalizeRowsAggregatesLots(t *testing.T) {
	rows := []models.RawRow{
		{Minsan: "024840074", Supplier: "ALFA", Qty: 5, AvgCost: decimal.RequireFromString("4.00"),
			ListPrice: decimal.RequireFromString("7.90"), VatRate: decimal.RequireFromString("10"),
			Expiry: date("2027-05-31"), Lot: "L1"},
		{Minsan: "024840074", Supplier: "ALFA", Qty: -2, AvgCost: decimal.RequireFromString("4.20"),
			Expiry: date("2026-11-30"), Lot: "L2"},
	}

	products := NormalizeRows(testLogger(), "imp-1", rows)
	if len(products) != 1 {
		t.Fatalf("got %d products, want 1", len(products))
	}

	p := products[0]
	if p.Qty != 3 {
		t.Errorf("Qty = %d, want 3 (5 + -2)", p.Qty)
	}
	if !p.AvgCost.Equal(decimal.RequireFromString("4.10")) {
		t.Errorf("AvgCost = %s, want 4.10", p.AvgCost)
	}
	if p.Expiry == nil || !p.Expiry.Equal(*date("2026-11-30")) {
		t.Errorf("Expiry = %v, want earliest lot expiry 2026-11-30", p.Expiry)
	}
	if p.Supplier != "ALFA" || !p.ListPrice.Equal(decimal.RequireFromString("7.90")) {
		t.Errorf("first-row fields not carried: %+v", p)
	}
}

func TestNormalizeRowsSumThenClamp(t *testing.T) {
	tests := []struct {
		name string
		qtys []int
		want int
	}{
		{"mixed lots net before clamping", []int{5, -2}, 3},
		{"net negative clamps to zero", []int{-5, -2}, 0},
		{"negative then positive", []int{-4, 10}, 6},
		{"all zero", []int{0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := make([]models.RawRow, 0, len(tt.qtys))
			for _, q := range tt.qtys {
				rows = append(rows, models.RawRow{Minsan: "935621793", Qty: q})
			}
			products := NormalizeRows(testLogger(), "imp-1", rows)
			if len(products) != 1 {
				t.Fatalf("got %d products, want 1", len(products))
			}
			if products[0].Qty != tt.want {
				t.Errorf("Qty = %d, want %d", products[0].Qty, tt.want)
			}
		})
	}
}

func TestNormalizeRowsSkipsRowsWithoutIdentifier(t *testing.T) {
	rows := []models.RawRow{
		{Minsan: "", Qty: 9, Ean: "8001234567890"},
		{Minsan: "024840074", Qty: 1},
	}

	products := NormalizeRows(testLogger(), "imp-1", rows)
	if len(products) != 1 {
		t.Fatalf("got %d products, want 1", len(products))
	}
	if products[0].Minsan != "024840074" || products[0].Qty != 1 {
		t.Errorf("unexpected product: %+v", products[0])
	}
}

func TestNormalizeRowsMissingExpiryIgnored(t *testing.T) {
	rows := []models.RawRow{
		{Minsan: "024840074", Qty: 1, Expiry: nil},
		{Minsan: "024840074", Qty: 1, Expiry: date("2027-01-31")},
		{Minsan: "024840074", Qty: 1, Expiry: nil},
	}

	products := NormalizeRows(testLogger(), "imp-1", rows)
	if len(products) != 1 {
		t.Fatalf("got %d products, want 1", len(products))
	}
	if products[0].Expiry == nil || !products[0].Expiry.Equal(*date("2027-01-31")) {
		t.Errorf("Expiry = %v, want 2027-01-31 (nil expiries ignored)", products[0].Expiry)
	}
}

func TestNormalizeRowsNewestLastCostWins(t *testing.T) {
	rows := []models.RawRow{
		{Minsan: "024840074", Qty: 1, LastCost: decimal.RequireFromString("3.80"), LastCostDate: date("2026-01-10")},
		{Minsan: "024840074", Qty: 1, LastCost: decimal.RequireFromString("4.05"), LastCostDate: date("2026-03-02")},
	}

	products := NormalizeRows(testLogger(), "imp-1", rows)
	if !products[0].LastCost.Equal(decimal.RequireFromString("4.05")) {
		t.Errorf("LastCost = %s, want 4.05 from the newest dated row", products[0].LastCost)
	}
}

func TestNormalizeRowsDeterministicOrder(t *testing.T) {
	rows := []models.RawRow{
		{Minsan: "B", Qty: 1},
		{Minsan: "A", Qty: 1},
		{Minsan: "B", Qty: 1},
		{Minsan: "C", Qty: 1},
	}

	first := NormalizeRows(testLogger(), "imp-1", rows)
	second := NormalizeRows(testLogger(), "imp-1", rows)

	want := []string{"B", "A", "C"}
	for i, minsan := range want {
		if first[i].Minsan != minsan {
			t.Errorf("first run order[%d] = %s, want %s (first-seen order)", i, first[i].Minsan, minsan)
		}
		if second[i].Minsan != first[i].Minsan {
			t.Errorf("re-run order diverged at %d", i)
		}
	}
}
