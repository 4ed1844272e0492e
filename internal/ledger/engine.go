package ledger

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"supermart/internal/domain"
	"supermart/internal/store"
	"supermart/internal/xid"
)

var (
	ErrEmptyCart        = fmt.Errorf("%w: cart is empty", store.ErrInvalidTransaction)
	ErrInvalidQuantity  = fmt.Errorf("%w: quantity must be at least 1", store.ErrInvalidTransaction)
	ErrUnknownProduct   = fmt.Errorf("%w: unknown product", store.ErrInvalidTransaction)
	ErrInvalidStatus    = fmt.Errorf("%w: sale status must be PAID or PENDING", store.ErrInvalidTransaction)
	ErrCustomerRequired = fmt.Errorf("%w: deferred payment requires customer name and location", store.ErrInvalidTransaction)
	ErrPaymentRequired  = fmt.Errorf("%w: payment method is required", store.ErrInvalidTransaction)
)

// SaleHook observes receipts after they were persisted.
type SaleHook func(receipt domain.Receipt)

// TransitionHook observes receipt status changes after they were persisted.
type TransitionHook func(change domain.Transition)

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithSaleHook(hook SaleHook) Option {
	return func(e *Engine) {
		if hook != nil {
			e.saleHooks = append(e.saleHooks, hook)
		}
	}
}

func WithTransitionHook(hook TransitionHook) Option {
	return func(e *Engine) {
		if hook != nil {
			e.transitionHooks = append(e.transitionHooks, hook)
		}
	}
}

// Engine is the ledger session. It owns the catalog, the debtor ledger and the
// receipt journal and is the only place where they change together.
//
// Every mutation runs on copies of the three collections. The copies are
// persisted in one save pass and swapped in only when that pass succeeds, so a
// failed save leaves the session exactly as it was.
type Engine struct {
	mu       sync.RWMutex
	store    store.Store
	catalog  *Catalog
	debtors  *DebtorLedger
	journal  *Journal
	revision uint64
	now      func() time.Time

	saleHooks       []SaleHook
	transitionHooks []TransitionHook
}

type books struct {
	catalog *Catalog
	debtors *DebtorLedger
	journal *Journal
}

// Open loads the three collections, writing first-run defaults where a
// collection has never been saved.
func Open(ctx context.Context, s store.Store, opts ...Option) (*Engine, error) {
	var (
		products []domain.Product
		receipts []domain.Receipt
		debtors  []domain.Debtor
	)
	if err := store.LoadOrInit(ctx, s, store.Products, &products, func() { products = store.DefaultProducts() }); err != nil {
		return nil, err
	}
	if err := store.LoadOrInit(ctx, s, store.Receipts, &receipts, func() { receipts = []domain.Receipt{} }); err != nil {
		return nil, err
	}
	if err := store.LoadOrInit(ctx, s, store.Debtors, &debtors, func() { debtors = []domain.Debtor{} }); err != nil {
		return nil, err
	}

	e := &Engine{
		store:   s,
		catalog: NewCatalog(products),
		debtors: NewDebtorLedger(debtors),
		journal: NewJournal(receipts),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	log.Printf("[ledger] session opened: %d products, %d receipts, %d debtors", len(products), len(receipts), len(debtors))
	return e, nil
}

// CompleteSale prices the cart, appends the receipt, takes the sold units out
// of stock and, for deferred payment, credits the customer's debt.
func (e *Engine) CompleteSale(ctx context.Context, req domain.SaleRequest) (domain.Receipt, error) {
	lines, err := mergeCart(req.Cart)
	if err != nil {
		return domain.Receipt{}, err
	}

	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if status == "" {
		status = domain.StatusPaid
	}
	if status != domain.StatusPaid && status != domain.StatusPending {
		return domain.Receipt{}, ErrInvalidStatus
	}

	customer := domain.CustomerInfo{
		Name:     strings.TrimSpace(req.Customer.Name),
		Location: strings.TrimSpace(req.Customer.Location),
		Phone:    strings.TrimSpace(req.Customer.Phone),
	}
	if status == domain.StatusPending && (customer.Name == "" || customer.Location == "") {
		return domain.Receipt{}, ErrCustomerRequired
	}

	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		if status != domain.StatusPending {
			return domain.Receipt{}, ErrPaymentRequired
		}
		method = domain.DeferredPaymentLabel
	}

	e.mu.Lock()
	b := e.books()
	at := e.now()

	items := make([]domain.ReceiptItem, 0, len(lines))
	for _, line := range lines {
		product, ok := b.catalog.Get(line.ProductID)
		if !ok {
			e.mu.Unlock()
			return domain.Receipt{}, fmt.Errorf("%w: %s", ErrUnknownProduct, line.ProductID)
		}
		items = append(items, lineItem(product, line.Quantity))
	}

	receipt := domain.Receipt{
		ID:               e.receiptID(b.journal),
		CreatedAt:        at,
		Items:            items,
		Total:            sumLines(items),
		CustomerName:     defaultString(customer.Name, domain.WalkInCustomer),
		CustomerLocation: customer.Location,
		CustomerPhone:    customer.Phone,
		PaymentMethod:    method,
		Status:           status,
		CashierID:        req.CashierID,
	}

	if status == domain.StatusPending {
		debtor := b.debtors.Credit(customer.Name, receipt.Total, customer.Location, customer.Phone, at)
		receipt.DebtorID = debtor.ID
	}
	b.journal.Append(receipt)
	for _, item := range receipt.Items {
		b.catalog.AdjustStock(item.ProductID, -item.Quantity)
	}

	if err := e.commit(ctx, b); err != nil {
		e.mu.Unlock()
		return domain.Receipt{}, err
	}
	hooks := e.saleHooks
	e.mu.Unlock()

	log.Printf("[ledger] sale %s status=%s total=%s items=%d", receipt.ID, receipt.Status, receipt.Total.StringFixed(2), len(receipt.Items))
	for _, hook := range hooks {
		hook(cloneReceipt(receipt))
	}
	return cloneReceipt(receipt), nil
}

// CancelReceipt marks a receipt CANCELLED, returns its units to stock and, when
// it was still PENDING, takes its total off the customer's debt. Unknown or
// already cancelled receipts are left alone.
func (e *Engine) CancelReceipt(ctx context.Context, receiptID string) (domain.CancelResponse, error) {
	e.mu.Lock()
	receipt, ok := e.journal.Get(receiptID)
	if !ok {
		e.mu.Unlock()
		return domain.CancelResponse{}, nil
	}
	if receipt.Status == domain.StatusCancelled {
		e.mu.Unlock()
		return domain.CancelResponse{Receipt: &receipt}, nil
	}

	b := e.books()
	at := e.now()
	change, ok := b.journal.SetStatus(receiptID, domain.StatusCancelled)
	if !ok {
		e.mu.Unlock()
		return domain.CancelResponse{Receipt: &receipt}, nil
	}
	for _, item := range receipt.Items {
		b.catalog.AdjustStock(item.ProductID, item.Quantity)
	}
	if change.From == domain.StatusPending {
		reverseDebt(b.debtors, receipt, at)
	}

	if err := e.commit(ctx, b); err != nil {
		e.mu.Unlock()
		return domain.CancelResponse{}, err
	}
	hooks := e.transitionHooks
	e.mu.Unlock()

	receipt.Status = change.To
	log.Printf("[ledger] receipt %s cancelled (%s -> %s)", receipt.ID, change.From, change.To)
	e.notifyTransitions(hooks, change)
	return domain.CancelResponse{Receipt: &receipt, Applied: true, Change: &change}, nil
}

// ClearDebt marks every PENDING receipt of the debtor PAID and zeroes the
// balance. The receipts are not summed against the balance; AuditBalances
// reports any difference between the two.
func (e *Engine) ClearDebt(ctx context.Context, debtorID string) (domain.ClearDebtResponse, error) {
	e.mu.Lock()
	debtor, ok := e.debtors.Get(debtorID)
	if !ok {
		e.mu.Unlock()
		return domain.ClearDebtResponse{Transitions: []domain.Transition{}}, nil
	}

	pending := e.journal.PendingFor(debtor)
	if debtor.TotalOwed.IsZero() && len(pending) == 0 {
		e.mu.Unlock()
		return domain.ClearDebtResponse{Debtor: &debtor, Transitions: []domain.Transition{}}, nil
	}

	b := e.books()
	at := e.now()
	changes := make([]domain.Transition, 0, len(pending))
	for _, r := range pending {
		if change, ok := b.journal.SetStatus(r.ID, domain.StatusPaid); ok {
			changes = append(changes, change)
		}
	}
	b.debtors.Clear(debtorID, at)

	if err := e.commit(ctx, b); err != nil {
		e.mu.Unlock()
		return domain.ClearDebtResponse{}, err
	}
	cleared, _ := e.debtors.Get(debtorID)
	hooks := e.transitionHooks
	e.mu.Unlock()

	log.Printf("[ledger] debt cleared for %s (%d receipts settled)", debtor.Name, len(changes))
	e.notifyTransitions(hooks, changes...)
	return domain.ClearDebtResponse{Debtor: &cleared, Transitions: changes}, nil
}

// RemoveDebtor deletes the debtor record. Receipts are not touched.
func (e *Engine) RemoveDebtor(ctx context.Context, debtorID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.debtors.Get(debtorID); !ok {
		return false, nil
	}
	b := e.books()
	b.debtors.Remove(debtorID)
	if err := e.commit(ctx, b); err != nil {
		return false, err
	}
	return true, nil
}

// AuditBalances recomputes every debtor's balance from the journal and
// reports where the recorded balance has drifted.
func (e *Engine) AuditBalances() domain.BalanceAudit {
	e.mu.RLock()
	defer e.mu.RUnlock()

	audit := domain.BalanceAudit{
		Drifts:         []domain.BalanceDrift{},
		OrphanReceipts: []string{},
		CheckedAt:      e.now(),
	}
	debtors := e.debtors.List()
	audit.DebtorsChecked = len(debtors)
	for _, d := range debtors {
		computed := sumReceipts(e.journal.PendingFor(d))
		if !computed.Equal(d.TotalOwed) {
			audit.Drifts = append(audit.Drifts, domain.BalanceDrift{
				DebtorID: d.ID,
				Name:     d.Name,
				Recorded: d.TotalOwed,
				Computed: computed,
				Delta:    d.TotalOwed.Sub(computed),
			})
		}
	}

	for _, r := range e.journal.receipts {
		if r.Status != domain.StatusPending {
			continue
		}
		audit.PendingReceipts++
		if !e.attributed(r) {
			audit.OrphanReceipts = append(audit.OrphanReceipts, r.ID)
		}
	}
	return audit
}

// ReconcileDebtor resets a debtor's balance to the sum of its PENDING
// receipts. The returned drift is zero-valued when nothing changed.
func (e *Engine) ReconcileDebtor(ctx context.Context, debtorID string) (domain.BalanceDrift, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	debtor, ok := e.debtors.Get(debtorID)
	if !ok {
		return domain.BalanceDrift{}, store.ErrNotFound
	}
	computed := sumReceipts(e.journal.PendingFor(debtor))
	drift := domain.BalanceDrift{
		DebtorID: debtor.ID,
		Name:     debtor.Name,
		Recorded: debtor.TotalOwed,
		Computed: computed,
		Delta:    debtor.TotalOwed.Sub(computed),
	}
	if computed.Equal(debtor.TotalOwed) {
		return drift, nil
	}

	b := e.books()
	b.debtors.SetBalance(debtorID, computed, e.now())
	if err := e.commit(ctx, b); err != nil {
		return domain.BalanceDrift{}, err
	}
	log.Printf("[ledger] reconciled %s: %s -> %s", debtor.Name, debtor.TotalOwed.StringFixed(2), computed.StringFixed(2))
	return drift, nil
}

// Statement lists the debtor's outstanding receipts and their flattened items.
func (e *Engine) Statement(debtorID string) (domain.DebtorStatement, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	debtor, ok := e.debtors.Get(debtorID)
	if !ok {
		return domain.DebtorStatement{}, store.ErrNotFound
	}
	receipts := e.journal.PendingFor(debtor)
	items := make([]domain.ReceiptItem, 0)
	for _, r := range receipts {
		items = append(items, r.Items...)
	}
	return domain.DebtorStatement{
		Debtor:      debtor,
		Receipts:    receipts,
		Items:       items,
		PendingSum:  sumReceipts(receipts),
		GeneratedAt: e.now(),
	}, nil
}

func (e *Engine) Products() []domain.Product {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.catalog.List()
}

func (e *Engine) Product(id string) (domain.Product, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.catalog.Get(id)
}

func (e *Engine) SearchProducts(query string) []domain.Product {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.catalog.Search(query)
}

func (e *Engine) LowStock(threshold int) []domain.Product {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.catalog.LowStock(threshold)
}

func (e *Engine) Receipts() []domain.Receipt {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.journal.List()
}

func (e *Engine) Receipt(id string) (domain.Receipt, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.journal.Get(id)
}

func (e *Engine) PendingReceipts(customerName string) []domain.Receipt {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.journal.FindPendingByCustomer(customerName)
}

func (e *Engine) Debtors() []domain.Debtor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.debtors.List()
}

func (e *Engine) SearchDebtors(query string) []domain.Debtor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.debtors.Search(query)
}

func (e *Engine) Debtor(id string) (domain.Debtor, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.debtors.Get(id)
}

func (e *Engine) DebtorByName(name string) (domain.Debtor, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.debtors.FindByName(name)
}

// Revision increases with every committed change.
func (e *Engine) Revision() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.revision
}

func (e *Engine) books() books {
	return books{
		catalog: e.catalog.clone(),
		debtors: e.debtors.clone(),
		journal: e.journal.clone(),
	}
}

// commit persists all three collections in one pass and swaps them in.
// Ledger operations are not cancellable once started, so the caller's
// cancellation does not reach the store.
func (e *Engine) commit(ctx context.Context, b books) error {
	err := e.store.SaveAll(context.WithoutCancel(ctx),
		store.Document{Name: store.Products, Value: b.catalog.products},
		store.Document{Name: store.Receipts, Value: b.journal.receipts},
		store.Document{Name: store.Debtors, Value: b.debtors.debtors},
	)
	if err != nil {
		log.Printf("[ledger] WARN: persist failed, session unchanged: %v", err)
		return fmt.Errorf("persist ledger: %w", err)
	}
	e.catalog, e.debtors, e.journal = b.catalog, b.debtors, b.journal
	e.revision++
	return nil
}

func (e *Engine) receiptID(j *Journal) string {
	for {
		id := xid.Receipt()
		if !j.Has(id) {
			return id
		}
	}
}

func (e *Engine) attributed(r domain.Receipt) bool {
	if r.DebtorID != "" {
		_, ok := e.debtors.Get(r.DebtorID)
		return ok
	}
	_, ok := e.debtors.FindByName(r.CustomerName)
	return ok
}

func (e *Engine) notifyTransitions(hooks []TransitionHook, changes ...domain.Transition) {
	for _, change := range changes {
		for _, hook := range hooks {
			hook(change)
		}
	}
}

// reverseDebt debits the receipt's debtor by id, or by name for receipts
// written before debtor ids were recorded.
func reverseDebt(debtors *DebtorLedger, r domain.Receipt, at time.Time) {
	if r.DebtorID != "" {
		debtors.DebitByID(r.DebtorID, r.Total, at)
		return
	}
	if r.CustomerName != "" {
		debtors.Debit(r.CustomerName, r.Total, at)
	}
}

// mergeCart validates the cart and folds repeated products into one line.
func mergeCart(cart []domain.CartLine) ([]domain.CartLine, error) {
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}
	merged := make([]domain.CartLine, 0, len(cart))
	seen := make(map[string]int, len(cart))
	for _, line := range cart {
		id := strings.TrimSpace(line.ProductID)
		if id == "" {
			return nil, ErrUnknownProduct
		}
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, id)
		}
		if idx, ok := seen[id]; ok {
			merged[idx].Quantity += line.Quantity
			continue
		}
		seen[id] = len(merged)
		merged = append(merged, domain.CartLine{ProductID: id, Quantity: line.Quantity})
	}
	return merged, nil
}

func sumReceipts(receipts []domain.Receipt) decimal.Decimal {
	total := decimal.Zero
	for _, r := range receipts {
		total = total.Add(r.Total)
	}
	return total
}
