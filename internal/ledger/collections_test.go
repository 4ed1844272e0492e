package ledger

import (
	"testing"

	"github.com/shopspring/decimal"

	"supermart/internal/domain"
	"supermart/internal/store"
)

func TestCatalogSearchPrefersExactBarcode(t *testing.T) {
	c := NewCatalog(store.DefaultProducts())

	hits := c.Search("0123456789012")
	if len(hits) != 1 || hits[0].ID != "p-2" {
		t.Fatalf("expected exact barcode hit on p-2, got %+v", hits)
	}

	hits = c.Search("bread")
	if len(hits) != 1 || hits[0].ID != "p-3" {
		t.Fatalf("expected name match on p-3, got %+v", hits)
	}

	hits = c.Search("dairy")
	if len(hits) != 1 || hits[0].ID != "p-2" {
		t.Fatalf("expected category match on p-2, got %+v", hits)
	}

	if got := c.Search(""); len(got) != 3 {
		t.Fatalf("expected empty query to list all, got %d", len(got))
	}
}

func TestCatalogLowStockAndRestock(t *testing.T) {
	c := NewCatalog(store.DefaultProducts())
	c.AdjustStock("p-3", -15)

	low := c.LowStock(10)
	if len(low) != 1 || low[0].ID != "p-3" {
		t.Fatalf("expected p-3 low on stock, got %+v", low)
	}
	if n := c.Restock([]string{"p-3", "ghost"}, 60); n != 1 {
		t.Fatalf("expected one restocked product, got %d", n)
	}
	if p, _ := c.Get("p-3"); p.Stock != 60 {
		t.Fatalf("expected stock 60, got %d", p.Stock)
	}
}

func TestCatalogGetReturnsCopies(t *testing.T) {
	sale := decimal.RequireFromString("2.50")
	c := NewCatalog([]domain.Product{{ID: "x", Name: "Soap", Price: decimal.RequireFromString("3.00"), SalePrice: &sale}})

	p, _ := c.Get("x")
	*p.SalePrice = decimal.RequireFromString("0.01")

	again, _ := c.Get("x")
	if !again.SalePrice.Equal(decimal.RequireFromString("2.50")) {
		t.Fatalf("catalog leaked internal pointer, sale price now %s", again.SalePrice)
	}
}

func TestJournalStatusMachine(t *testing.T) {
	j := NewJournal([]domain.Receipt{
		{ID: "REF-A", Status: domain.StatusPending},
		{ID: "REF-B", Status: domain.StatusPaid},
	})

	if _, ok := j.SetStatus("REF-B", domain.StatusPending); ok {
		t.Fatalf("PAID must not move back to PENDING")
	}
	change, ok := j.SetStatus("REF-A", domain.StatusPaid)
	if !ok || change.From != domain.StatusPending || change.To != domain.StatusPaid {
		t.Fatalf("unexpected transition %+v ok=%v", change, ok)
	}
	if _, ok := j.SetStatus("REF-A", domain.StatusCancelled); !ok {
		t.Fatalf("PAID must be cancellable")
	}
	if _, ok := j.SetStatus("REF-A", domain.StatusCancelled); ok {
		t.Fatalf("CANCELLED is terminal")
	}
	if _, ok := j.SetStatus("REF-missing", domain.StatusPaid); ok {
		t.Fatalf("unknown receipt must report no transition")
	}

	list := j.List()
	if list[0].ID != "REF-B" {
		t.Fatalf("expected newest first, got %s", list[0].ID)
	}
}

func TestDebtorLedgerCreditDebit(t *testing.T) {
	l := NewDebtorLedger(nil)
	d := l.Credit("Hana", decimal.RequireFromString("10.00"), "", "", fixedNow)
	if d.Location != domain.UnknownDebtorLocation || d.Phone != domain.UnknownDebtorPhone {
		t.Fatalf("expected default contact details, got %+v", d)
	}

	l.Credit("HANA", decimal.RequireFromString("5.00"), "Elsewhere", "123", fixedNow)
	got, _ := l.FindByName("hana")
	if !got.TotalOwed.Equal(decimal.RequireFromString("15.00")) || got.Location != domain.UnknownDebtorLocation {
		t.Fatalf("unexpected debtor after second credit %+v", got)
	}

	if !l.Debit("Hana", decimal.RequireFromString("100"), fixedNow) {
		t.Fatalf("expected debit to match")
	}
	got, _ = l.Get(d.ID)
	if !got.TotalOwed.IsZero() {
		t.Fatalf("expected clamped balance, got %s", got.TotalOwed)
	}
	if l.Debit("nobody", decimal.RequireFromString("1"), fixedNow) {
		t.Fatalf("expected debit miss to be a no-op")
	}
}

func TestDebtorSearchAndOrdering(t *testing.T) {
	l := NewDebtorLedger(nil)
	l.Credit("Ivan", decimal.RequireFromString("1.00"), "Harbor Rd", "", fixedNow)
	l.Credit("Jade", decimal.RequireFromString("9.00"), "Main St", "", fixedNow)

	list := l.List()
	if list[0].Name != "Jade" {
		t.Fatalf("expected largest balance first, got %s", list[0].Name)
	}
	if hits := l.Search("harbor"); len(hits) != 1 || hits[0].Name != "Ivan" {
		t.Fatalf("expected location match, got %+v", hits)
	}
}

func TestEffectiveUnitPriceFallsBackToRegularPrice(t *testing.T) {
	zero := decimal.Zero
	p := domain.Product{Price: decimal.RequireFromString("0.99"), SalePrice: &zero}
	unit, discount := EffectiveUnitPrice(p, 100)
	if !unit.Equal(decimal.RequireFromString("0.99")) || discount != nil {
		t.Fatalf("expected regular price without discount, got %s %v", unit, discount)
	}

	p.QuantityDiscount = &domain.QuantityDiscount{Threshold: 10, Percentage: decimal.RequireFromString("10")}
	unit, discount = EffectiveUnitPrice(p, 10)
	if !unit.Equal(decimal.RequireFromString("0.89")) || discount == nil {
		t.Fatalf("expected 0.89 after 10%% discount, got %s", unit)
	}
}
