package ledger

import (
	"strings"

	"supermart/internal/domain"
)

// Catalog holds product definitions and stock levels.
type Catalog struct {
	products []domain.Product
}

func NewCatalog(products []domain.Product) *Catalog {
	c := &Catalog{products: make([]domain.Product, 0, len(products))}
	for _, p := range products {
		c.products = append(c.products, cloneProduct(p))
	}
	return c
}

func (c *Catalog) clone() *Catalog {
	return NewCatalog(c.products)
}

func (c *Catalog) List() []domain.Product {
	out := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, cloneProduct(p))
	}
	return out
}

func (c *Catalog) Get(id string) (domain.Product, bool) {
	idx := c.index(id)
	if idx < 0 {
		return domain.Product{}, false
	}
	return cloneProduct(c.products[idx]), true
}

// AdjustStock applies delta to the product's stock, clamping at zero. Unknown
// ids are skipped and reported as false.
func (c *Catalog) AdjustStock(id string, delta int) bool {
	idx := c.index(id)
	if idx < 0 {
		return false
	}
	c.products[idx].Stock = clampStock(c.products[idx].Stock + delta)
	return true
}

// Upsert replaces the product with the same id or appends it.
func (c *Catalog) Upsert(p domain.Product) {
	p = cloneProduct(p)
	p.Stock = clampStock(p.Stock)
	if idx := c.index(p.ID); idx >= 0 {
		c.products[idx] = p
		return
	}
	c.products = append(c.products, p)
}

func (c *Catalog) Remove(id string) bool {
	idx := c.index(id)
	if idx < 0 {
		return false
	}
	c.products = append(c.products[:idx], c.products[idx+1:]...)
	return true
}

func (c *Catalog) Edit(id string, patch domain.ProductPatch) (domain.Product, bool) {
	idx := c.index(id)
	if idx < 0 {
		return domain.Product{}, false
	}
	p := c.products[idx]
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Category != nil {
		p.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.ClearSalePrice {
		p.SalePrice = nil
	} else if patch.SalePrice != nil {
		sale := *patch.SalePrice
		p.SalePrice = &sale
	}
	if patch.ClearDiscount {
		p.QuantityDiscount = nil
	} else if patch.QuantityDiscount != nil {
		rule := *patch.QuantityDiscount
		p.QuantityDiscount = &rule
	}
	if patch.Stock != nil {
		p.Stock = clampStock(*patch.Stock)
	}
	if patch.Barcode != nil {
		p.Barcode = strings.TrimSpace(*patch.Barcode)
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Image != nil {
		p.Image = *patch.Image
	}
	c.products[idx] = p
	return cloneProduct(p), true
}

func (c *Catalog) FindByBarcode(code string) (domain.Product, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Product{}, false
	}
	for _, p := range c.products {
		if p.Barcode == code {
			return cloneProduct(p), true
		}
	}
	return domain.Product{}, false
}

// Search returns the exact barcode match when there is one, otherwise every
// product whose name, category or barcode contains the query.
func (c *Catalog) Search(query string) []domain.Product {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.List()
	}
	if p, ok := c.FindByBarcode(query); ok {
		return []domain.Product{p}
	}
	needle := strings.ToLower(query)
	out := make([]domain.Product, 0)
	for _, p := range c.products {
		if strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Category), needle) ||
			strings.Contains(p.Barcode, query) {
			out = append(out, cloneProduct(p))
		}
	}
	return out
}

func (c *Catalog) LowStock(threshold int) []domain.Product {
	out := make([]domain.Product, 0)
	for _, p := range c.products {
		if p.Stock <= threshold {
			out = append(out, cloneProduct(p))
		}
	}
	return out
}

// Restock sets the stock of every listed product to newStock and returns how
// many were found.
func (c *Catalog) Restock(ids []string, newStock int) int {
	updated := 0
	for _, id := range ids {
		if idx := c.index(id); idx >= 0 {
			c.products[idx].Stock = clampStock(newStock)
			updated++
		}
	}
	return updated
}

func (c *Catalog) index(id string) int {
	if id == "" {
		return -1
	}
	for i := range c.products {
		if c.products[i].ID == id {
			return i
		}
	}
	return -1
}

func clampStock(stock int) int {
	if stock < 0 {
		return 0
	}
	return stock
}

func cloneProduct(src domain.Product) domain.Product {
	dup := src
	if src.SalePrice != nil {
		sale := *src.SalePrice
		dup.SalePrice = &sale
	}
	if src.QuantityDiscount != nil {
		rule := *src.QuantityDiscount
		dup.QuantityDiscount = &rule
	}
	return dup
}
