package ledger

import (
	"github.com/shopspring/decimal"

	"supermart/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// basePrice is the sale price when one is set and positive, else the regular price.
func basePrice(p domain.Product) decimal.Decimal {
	if p.SalePrice != nil && p.SalePrice.IsPositive() {
		return *p.SalePrice
	}
	return p.Price
}

// EffectiveUnitPrice returns the unit price charged for qty units of p and the
// discount percentage applied, if any. Prices are rounded to cents.
func EffectiveUnitPrice(p domain.Product, qty int) (decimal.Decimal, *decimal.Decimal) {
	base := basePrice(p)
	rule := p.QuantityDiscount
	if rule == nil || rule.Threshold < 1 || !rule.Percentage.IsPositive() || qty < rule.Threshold {
		return base.Round(2), nil
	}
	pct := decimal.Min(rule.Percentage, hundred)
	factor := hundred.Sub(pct).Div(hundred)
	return base.Mul(factor).Round(2), &pct
}

// lineItem snapshots the product as it is sold; later edits to p never reach it.
func lineItem(p domain.Product, qty int) domain.ReceiptItem {
	unit, discount := EffectiveUnitPrice(p, qty)
	return domain.ReceiptItem{
		ProductID:       p.ID,
		Name:            p.Name,
		Category:        p.Category,
		UnitPrice:       unit,
		Quantity:        qty,
		LineTotal:       unit.Mul(decimal.NewFromInt(int64(qty))),
		DiscountApplied: discount,
	}
}

func sumLines(items []domain.ReceiptItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal)
	}
	return total
}
