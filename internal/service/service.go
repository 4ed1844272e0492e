package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"supermart/internal/assistant"
	"supermart/internal/cache"
	"supermart/internal/domain"
	"supermart/internal/ledger"
	"supermart/internal/portal"
	"supermart/internal/sheetsync"
	"supermart/internal/store"
	"supermart/internal/xid"
)

var ErrForbidden = errors.New("admin role required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	ledger     *ledger.Engine
	portal     *portal.Portal
	assistant  *assistant.Assistant
	summaries  cache.SummaryCache
	summaryTTL time.Duration
	location   *time.Location
	now        func() time.Time
}

type Option func(*Service)

func WithSummaryCache(c cache.SummaryCache, ttl time.Duration) Option {
	return func(s *Service) {
		if c != nil {
			s.summaries = c
		}
		s.summaryTTL = ttl
	}
}

// WithLocation sets the time zone used for analytics period boundaries.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(engine *ledger.Engine, p *portal.Portal, asst *assistant.Assistant, opts ...Option) *Service {
	if asst == nil {
		asst = assistant.New(assistant.Unavailable{}, 0, 0)
	}
	s := &Service{
		ledger:     engine,
		portal:     p,
		assistant:  asst,
		summaries:  cache.NoopSummaryCache{},
		summaryTTL: 30 * time.Second,
		location:   time.UTC,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SheetSyncHook forwards completed sales to the spreadsheet URL currently
// configured in settings.
func SheetSyncHook(p *portal.Portal, n *sheetsync.Notifier) ledger.SaleHook {
	return func(receipt domain.Receipt) {
		n.SaleCompleted(receipt, p.Settings().SpreadsheetURL)
	}
}

func (s *Service) ListProducts(query string) []domain.Product {
	if strings.TrimSpace(query) == "" {
		return s.ledger.Products()
	}
	return s.ledger.SearchProducts(query)
}

func (s *Service) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	p.ID = ""
	if strings.TrimSpace(p.Barcode) == "" {
		p.Barcode = xid.Barcode(12)
	}
	created, err := s.ledger.UpsertProduct(ctx, p)
	if err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%s,stock=%d", created.Name, created.Price.StringFixed(2), created.Stock))
	return created, nil
}

func (s *Service) EditProduct(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	updated, err := s.ledger.EditProduct(ctx, strings.TrimSpace(id), patch)
	if err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "product_edit", "product", updated.ID, fmt.Sprintf("price=%s,stock=%d", updated.Price.StringFixed(2), updated.Stock))
	return updated, nil
}

func (s *Service) RemoveProduct(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.ledger.RemoveProduct(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.logAudit(ctx, "product_remove", "product", id, "")
	return nil
}

// GenerateProducts asks the assistant for a batch of products and adds the
// usable ones to the catalog. Generation runs before the ledger is touched.
func (s *Service) GenerateProducts(ctx context.Context, req domain.GenerateProductsRequest) ([]domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	drafts, err := s.assistant.GenerateProducts(ctx, req.Category, req.Count)
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(drafts))
	for _, d := range drafts {
		products = append(products, domain.Product{
			Name:        d.Name,
			Category:    d.Category,
			Price:       d.Price,
			Stock:       d.Stock,
			Description: d.Description,
		})
	}
	added, err := s.ledger.AddProducts(ctx, products)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "product_generate", "catalog", req.Category, fmt.Sprintf("added=%d", len(added)))
	return added, nil
}

// Restock sets the stock of the listed products, or of every low-stock
// product when none are listed.
func (s *Service) Restock(ctx context.Context, req domain.RestockRequest) (int, error) {
	if err := requireAdmin(ctx); err != nil {
		return 0, err
	}
	threshold := s.portal.Settings().LowStockThreshold
	updated, err := s.ledger.RestockLowStock(ctx, req.ProductIDs, req.NewStock, threshold)
	if err != nil {
		return 0, err
	}
	s.logAudit(ctx, "restock", "catalog", "", fmt.Sprintf("products=%d,new_stock=%d", updated, req.NewStock))
	return updated, nil
}

func (s *Service) LowStock() []domain.Product {
	return s.ledger.LowStock(s.portal.Settings().LowStockThreshold)
}

// CompleteSale records a sale for the acting cashier. PAID sales must name an
// enabled payment method; PENDING sales are always labelled as deferred.
func (s *Service) CompleteSale(ctx context.Context, req domain.SaleRequest) (domain.Receipt, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Receipt{}, ErrForbidden
	}
	req.CashierID = actor.UserID

	status := strings.ToUpper(strings.TrimSpace(req.Status))
	switch status {
	case domain.StatusPending:
		req.PaymentMethod = domain.DeferredPaymentLabel
	case "", domain.StatusPaid:
		method, ok := s.portal.PaymentMethod(req.PaymentMethod)
		if !ok {
			return domain.Receipt{}, fmt.Errorf("%w: payment method %q is not enabled", store.ErrInvalidTransaction, req.PaymentMethod)
		}
		req.PaymentMethod = method.Label
	}

	receipt, err := s.ledger.CompleteSale(ctx, req)
	if err != nil {
		return domain.Receipt{}, err
	}
	s.logAudit(ctx, "sale_complete", "receipt", receipt.ID, fmt.Sprintf("status=%s,total=%s,customer=%s", receipt.Status, receipt.Total.StringFixed(2), receipt.CustomerName))
	return receipt, nil
}

func (s *Service) Receipts() []domain.Receipt {
	return s.ledger.Receipts()
}

func (s *Service) Receipt(id string) (domain.Receipt, error) {
	r, ok := s.ledger.Receipt(strings.TrimSpace(id))
	if !ok {
		return domain.Receipt{}, store.ErrNotFound
	}
	return r, nil
}

func (s *Service) CancelReceipt(ctx context.Context, id string) (domain.CancelResponse, error) {
	resp, err := s.ledger.CancelReceipt(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.CancelResponse{}, err
	}
	if resp.Receipt == nil {
		return domain.CancelResponse{}, store.ErrNotFound
	}
	if resp.Applied {
		s.logAudit(ctx, "receipt_cancel", "receipt", resp.Receipt.ID, fmt.Sprintf("from=%s,total=%s", resp.Change.From, resp.Receipt.Total.StringFixed(2)))
	}
	return resp, nil
}

func (s *Service) Debtors(query string) []domain.Debtor {
	if strings.TrimSpace(query) == "" {
		return s.ledger.Debtors()
	}
	return s.ledger.SearchDebtors(query)
}

func (s *Service) ClearDebt(ctx context.Context, debtorID string) (domain.ClearDebtResponse, error) {
	resp, err := s.ledger.ClearDebt(ctx, strings.TrimSpace(debtorID))
	if err != nil {
		return domain.ClearDebtResponse{}, err
	}
	if resp.Debtor == nil {
		return domain.ClearDebtResponse{}, store.ErrNotFound
	}
	s.logAudit(ctx, "debt_clear", "debtor", resp.Debtor.ID, fmt.Sprintf("receipts=%d", len(resp.Transitions)))
	return resp, nil
}

func (s *Service) RemoveDebtor(ctx context.Context, debtorID string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	removed, err := s.ledger.RemoveDebtor(ctx, strings.TrimSpace(debtorID))
	if err != nil {
		return err
	}
	if !removed {
		return store.ErrNotFound
	}
	s.logAudit(ctx, "debtor_remove", "debtor", debtorID, "")
	return nil
}

func (s *Service) DebtorStatement(debtorID string) (domain.DebtorStatement, error) {
	return s.ledger.Statement(strings.TrimSpace(debtorID))
}

func (s *Service) AuditBalances() domain.BalanceAudit {
	return s.ledger.AuditBalances()
}

func (s *Service) ReconcileDebtor(ctx context.Context, debtorID string) (domain.BalanceDrift, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.BalanceDrift{}, err
	}
	drift, err := s.ledger.ReconcileDebtor(ctx, strings.TrimSpace(debtorID))
	if err != nil {
		return domain.BalanceDrift{}, err
	}
	s.logAudit(ctx, "debtor_reconcile", "debtor", drift.DebtorID, fmt.Sprintf("recorded=%s,computed=%s", drift.Recorded.StringFixed(2), drift.Computed.StringFixed(2)))
	return drift, nil
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Email: "system", Role: "system"}
	}
	log.Printf("[audit] actor=%s role=%s action=%s entity=%s/%s %s", actor.Email, actor.Role, action, entityType, entityID, detail)
}
