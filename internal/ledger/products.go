package ledger

import (
	"context"
	"fmt"
	"log"
	"strings"

	"supermart/internal/domain"
	"supermart/internal/store"
	"supermart/internal/xid"
)

// Product maintenance only touches the catalog, so it persists the products
// collection alone.

func (e *Engine) UpsertProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	p = normalizeProduct(p)
	if err := validateProduct(p); err != nil {
		return domain.Product{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	catalog := e.catalog.clone()
	if p.ID == "" {
		p.ID = xid.New("p")
	}
	catalog.Upsert(p)
	if err := e.commitCatalog(ctx, catalog); err != nil {
		return domain.Product{}, err
	}
	saved, _ := catalog.Get(p.ID)
	return saved, nil
}

// AddProducts appends a batch of new products, assigning ids and barcodes
// where they are missing. Invalid entries are skipped.
func (e *Engine) AddProducts(ctx context.Context, products []domain.Product) ([]domain.Product, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	catalog := e.catalog.clone()
	added := make([]domain.Product, 0, len(products))
	for _, p := range products {
		p = normalizeProduct(p)
		if err := validateProduct(p); err != nil {
			log.Printf("[ledger] WARN: skipping product %q: %v", p.Name, err)
			continue
		}
		p.ID = xid.New("p")
		if p.Barcode == "" {
			p.Barcode = xid.Barcode(12)
		}
		catalog.Upsert(p)
		added = append(added, cloneProduct(p))
	}
	if len(added) == 0 {
		return added, nil
	}
	if err := e.commitCatalog(ctx, catalog); err != nil {
		return nil, err
	}
	return added, nil
}

func (e *Engine) EditProduct(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	catalog := e.catalog.clone()
	edited, ok := catalog.Edit(id, patch)
	if !ok {
		return domain.Product{}, store.ErrNotFound
	}
	if err := validateProduct(edited); err != nil {
		return domain.Product{}, err
	}
	if err := e.commitCatalog(ctx, catalog); err != nil {
		return domain.Product{}, err
	}
	return edited, nil
}

// RemoveProduct deletes the product. Receipts keep their line snapshots.
func (e *Engine) RemoveProduct(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	catalog := e.catalog.clone()
	if !catalog.Remove(id) {
		return store.ErrNotFound
	}
	return e.commitCatalog(ctx, catalog)
}

// AdjustStock applies delta to a product's stock. Unknown ids are a no-op.
func (e *Engine) AdjustStock(ctx context.Context, id string, delta int) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	catalog := e.catalog.clone()
	if !catalog.AdjustStock(id, delta) {
		return false, nil
	}
	if err := e.commitCatalog(ctx, catalog); err != nil {
		return false, err
	}
	return true, nil
}

// RestockLowStock sets the stock of the given products, or of every product at
// or below threshold when ids is empty.
func (e *Engine) RestockLowStock(ctx context.Context, ids []string, newStock int, threshold int) (int, error) {
	if newStock < 0 {
		return 0, fmt.Errorf("%w: stock must not be negative", store.ErrInvalidTransaction)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	catalog := e.catalog.clone()
	if len(ids) == 0 {
		for _, p := range catalog.LowStock(threshold) {
			ids = append(ids, p.ID)
		}
	}
	updated := catalog.Restock(ids, newStock)
	if updated == 0 {
		return 0, nil
	}
	if err := e.commitCatalog(ctx, catalog); err != nil {
		return 0, err
	}
	return updated, nil
}

func (e *Engine) commitCatalog(ctx context.Context, catalog *Catalog) error {
	err := e.store.SaveAll(context.WithoutCancel(ctx), store.Document{Name: store.Products, Value: catalog.products})
	if err != nil {
		return fmt.Errorf("persist products: %w", err)
	}
	e.catalog = catalog
	e.revision++
	return nil
}

func normalizeProduct(p domain.Product) domain.Product {
	p = cloneProduct(p)
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	p.Barcode = strings.TrimSpace(p.Barcode)
	p.Stock = clampStock(p.Stock)
	return p
}

func validateProduct(p domain.Product) error {
	if p.Name == "" {
		return fmt.Errorf("%w: product name is required", store.ErrInvalidTransaction)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", store.ErrInvalidTransaction)
	}
	if p.SalePrice != nil && p.SalePrice.IsNegative() {
		return fmt.Errorf("%w: sale price must not be negative", store.ErrInvalidTransaction)
	}
	if rule := p.QuantityDiscount; rule != nil {
		if rule.Threshold < 1 {
			return fmt.Errorf("%w: discount threshold must be at least 1", store.ErrInvalidTransaction)
		}
		if !rule.Percentage.IsPositive() || rule.Percentage.GreaterThan(hundred) {
			return fmt.Errorf("%w: discount percentage must be within (0, 100]", store.ErrInvalidTransaction)
		}
	}
	return nil
}
