package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"supermart/internal/assistant"
	"supermart/internal/domain"
	"supermart/internal/ledger"
	"supermart/internal/portal"
	"supermart/internal/service"
	"supermart/internal/store/memory"
)

// newTestAPI builds a full API over an in-memory store so handler tests
// exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()
	ctx := context.Background()

	repo := memory.NewSeeded()
	p, err := portal.Open(ctx, repo, portal.WithHashCost(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("open portal: %v", err)
	}
	engine, err := ledger.Open(ctx, repo)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	svc := service.New(engine, p, assistant.New(assistant.Unavailable{}, time.Second, 0))
	auth := NewAuthManager("test-secret-key-that-is-long-enough", time.Hour, svc)

	return New(svc, auth, "*")
}

type session struct {
	token string
	csrf  string
}

func login(t *testing.T, api *API, email string, password string) session {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Email: email, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("login %s failed, status %d: %s", email, res.Code, res.Body.String())
	}

	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		t.Fatalf("expected access token in login response")
	}
	return session{token: payload.AccessToken, csrf: fetchCSRFToken(t, api)}
}

func loginAsAdmin(t *testing.T, api *API) session {
	return login(t, api, "admin@supermart.ai", "admin123")
}

func loginAsStaff(t *testing.T, api *API) session {
	return login(t, api, "john@supermart.ai", "cashier123")
}

func (s session) do(t *testing.T, api *API, method string, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("X-CSRF-Token", s.csrf)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res
}

func decodeBody[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	body, _ := json.Marshal(domain.LoginRequest{Email: "admin@supermart.ai", Password: "nope"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleRegisterSignsIn(t *testing.T) {
	api := newTestAPI(t)
	body, _ := json.Marshal(domain.RegisterRequest{Name: "Mia", Email: "mia@supermart.ai", Password: "secret1"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	resp := decodeBody[domain.LoginResponse](t, rec)
	if resp.User.Role != domain.RoleStaff || resp.AccessToken == "" {
		t.Fatalf("unexpected register response %+v", resp)
	}

	dup := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	dupRec := httptest.NewRecorder()
	api.Handler().ServeHTTP(dupRec, dup)
	if dupRec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", dupRec.Code)
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProductsSearch(t *testing.T) {
	api := newTestAPI(t)
	staff := loginAsStaff(t, api)

	res := staff.do(t, api, http.MethodGet, "/api/v1/products?q=milk", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := decodeBody[struct {
		Products []domain.Product `json:"products"`
	}](t, res)
	if len(body.Products) != 1 || body.Products[0].ID != "p-2" {
		t.Fatalf("unexpected products %+v", body.Products)
	}
}

func TestProductCreateIsAdminOnly(t *testing.T) {
	api := newTestAPI(t)
	product := domain.Product{Name: "Green Tea", Category: "Drinks", Price: decimal.RequireFromString("2.25"), Stock: 12}

	if res := loginAsStaff(t, api).do(t, api, http.MethodPost, "/api/v1/products", product); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", res.Code)
	}
	res := loginAsAdmin(t, api).do(t, api, http.MethodPost, "/api/v1/products", product)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d (%s)", res.Code, res.Body.String())
	}
}

func TestSaleCancelFlow(t *testing.T) {
	api := newTestAPI(t)
	staff := loginAsStaff(t, api)

	sale := domain.SaleRequest{
		Cart:     []domain.CartLine{{ProductID: "p-2", Quantity: 2}},
		Customer: domain.CustomerInfo{Name: "Bob", Location: "Main St"},
		Status:   domain.StatusPending,
	}
	res := staff.do(t, api, http.MethodPost, "/api/v1/sales", sale)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", res.Code, res.Body.String())
	}
	receipt := decodeBody[domain.SaleResponse](t, res).Receipt
	if !receipt.Total.Equal(decimal.RequireFromString("6.98")) || receipt.DebtorID == "" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	res = staff.do(t, api, http.MethodGet, "/api/v1/receipts/"+receipt.ID+"/voucher", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected voucher 200, got %d", res.Code)
	}

	res = staff.do(t, api, http.MethodPost, "/api/v1/receipts/"+receipt.ID+"/cancel", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected cancel 200, got %d", res.Code)
	}
	cancel := decodeBody[domain.CancelResponse](t, res)
	if !cancel.Applied || cancel.Change == nil || cancel.Change.From != domain.StatusPending {
		t.Fatalf("unexpected cancel response %+v", cancel)
	}

	res = staff.do(t, api, http.MethodGet, "/api/v1/debtors?q=bob", nil)
	debtors := decodeBody[struct {
		Debtors []domain.Debtor `json:"debtors"`
	}](t, res).Debtors
	if len(debtors) != 1 || !debtors[0].TotalOwed.IsZero() {
		t.Fatalf("expected Bob's debt reversed, got %+v", debtors)
	}

	if res := staff.do(t, api, http.MethodPost, "/api/v1/receipts/REF-MISSING/cancel", nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown receipt, got %d", res.Code)
	}
}

func TestSaleValidationErrorsAreBadRequest(t *testing.T) {
	api := newTestAPI(t)
	staff := loginAsStaff(t, api)

	res := staff.do(t, api, http.MethodPost, "/api/v1/sales", domain.SaleRequest{PaymentMethod: "Cash Payment"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty cart, got %d", res.Code)
	}
}

func TestClearDebtAndStatement(t *testing.T) {
	api := newTestAPI(t)
	staff := loginAsStaff(t, api)

	res := staff.do(t, api, http.MethodPost, "/api/v1/sales", domain.SaleRequest{
		Cart:     []domain.CartLine{{ProductID: "p-3", Quantity: 1}},
		Customer: domain.CustomerInfo{Name: "Cara", Location: "Dock"},
		Status:   domain.StatusPending,
	})
	debtorID := decodeBody[domain.SaleResponse](t, res).Receipt.DebtorID

	res = staff.do(t, api, http.MethodGet, "/api/v1/debtors/"+debtorID+"/statement", nil)
	statement := decodeBody[domain.DebtorStatement](t, res)
	if len(statement.Receipts) != 1 || !statement.PendingSum.Equal(decimal.RequireFromString("5.99")) {
		t.Fatalf("unexpected statement %+v", statement)
	}

	res = staff.do(t, api, http.MethodPost, "/api/v1/debtors/"+debtorID+"/clear", nil)
	cleared := decodeBody[domain.ClearDebtResponse](t, res)
	if cleared.Debtor == nil || !cleared.Debtor.TotalOwed.IsZero() || len(cleared.Transitions) != 1 {
		t.Fatalf("unexpected clear response %+v", cleared)
	}

	if res := staff.do(t, api, http.MethodGet, "/api/v1/debtors/audit", nil); res.Code != http.StatusForbidden {
		t.Fatalf("expected audit to be admin only, got %d", res.Code)
	}
	audit := decodeBody[domain.BalanceAudit](t, loginAsAdmin(t, api).do(t, api, http.MethodGet, "/api/v1/debtors/audit", nil))
	if len(audit.Drifts) != 0 {
		t.Fatalf("expected consistent books, got %+v", audit.Drifts)
	}
}

func TestExportEndpoints(t *testing.T) {
	api := newTestAPI(t)
	staff := loginAsStaff(t, api)
	staff.do(t, api, http.MethodPost, "/api/v1/sales", domain.SaleRequest{
		Cart:          []domain.CartLine{{ProductID: "p-1", Quantity: 4}},
		PaymentMethod: "Cash Payment",
	})

	res := staff.do(t, api, http.MethodGet, "/api/v1/export/receipts.csv", nil)
	if res.Code != http.StatusOK || !strings.HasPrefix(res.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("unexpected csv response %d %s", res.Code, res.Header().Get("Content-Type"))
	}
	if !strings.Contains(res.Body.String(), `"4x Organic Bananas"`) {
		t.Fatalf("expected sale in csv, got %s", res.Body.String())
	}
	if !strings.Contains(res.Header().Get("Content-Disposition"), "supermart-receipts-") {
		t.Fatalf("expected attachment file name, got %q", res.Header().Get("Content-Disposition"))
	}

	res = staff.do(t, api, http.MethodGet, "/api/v1/export/receipts.xlsx", nil)
	if res.Code != http.StatusOK || res.Header().Get("Content-Type") != xlsxContentType || res.Body.Len() == 0 {
		t.Fatalf("unexpected xlsx response %d", res.Code)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	api := newTestAPI(t)
	staff := loginAsStaff(t, api)
	staff.do(t, api, http.MethodPost, "/api/v1/sales", domain.SaleRequest{
		Cart:          []domain.CartLine{{ProductID: "p-2", Quantity: 1}},
		PaymentMethod: "Credit/Debit Card",
	})

	res := staff.do(t, api, http.MethodGet, "/api/v1/analytics/summary?range=day", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	summary := decodeBody[domain.SalesSummary](t, res)
	if summary.Range != "DAY" || summary.Transactions != 1 || !summary.TotalRevenue.Equal(decimal.RequireFromString("3.49")) {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestGenerateProductsUnavailable(t *testing.T) {
	api := newTestAPI(t)
	res := loginAsAdmin(t, api).do(t, api, http.MethodPost, "/api/v1/products/generate", domain.GenerateProductsRequest{Category: "Snacks", Count: 3})
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 when generation fails, got %d", res.Code)
	}
}

func TestUserManagementEndpoints(t *testing.T) {
	api := newTestAPI(t)
	admin := loginAsAdmin(t, api)

	if res := loginAsStaff(t, api).do(t, api, http.MethodGet, "/api/v1/users", nil); res.Code != http.StatusForbidden {
		t.Fatalf("expected staff refused, got %d", res.Code)
	}
	if res := admin.do(t, api, http.MethodDelete, "/api/v1/users/u-1", nil); res.Code != http.StatusBadRequest {
		t.Fatalf("expected self-removal refused, got %d", res.Code)
	}
	res := admin.do(t, api, http.MethodPost, "/api/v1/users/u-2/role", nil)
	if res.Code != http.StatusOK || decodeBody[domain.PublicUser](t, res).Role != domain.RoleAdmin {
		t.Fatalf("expected u-2 promoted, got %d", res.Code)
	}
}

func TestRoleChangeAppliesToLiveToken(t *testing.T) {
	api := newTestAPI(t)
	staff := loginAsStaff(t, api)
	admin := loginAsAdmin(t, api)

	if res := admin.do(t, api, http.MethodPost, "/api/v1/users/u-2/role", nil); res.Code != http.StatusOK {
		t.Fatalf("promote: %d", res.Code)
	}
	if res := staff.do(t, api, http.MethodGet, "/api/v1/users", nil); res.Code != http.StatusOK {
		t.Fatalf("expected promoted token to reach admin route, got %d", res.Code)
	}

	if res := admin.do(t, api, http.MethodDelete, "/api/v1/users/u-2", nil); res.Code != http.StatusOK {
		t.Fatalf("remove: %d", res.Code)
	}
	if res := staff.do(t, api, http.MethodGet, "/api/v1/products", nil); res.Code != http.StatusUnauthorized {
		t.Fatalf("expected removed account to lose access, got %d", res.Code)
	}
}

func TestChatEndpoints(t *testing.T) {
	api := newTestAPI(t)
	staff := loginAsStaff(t, api)

	res := staff.do(t, api, http.MethodPost, "/api/v1/chat/messages", domain.ChatPostRequest{Text: "Restock aisle 4"})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	res = staff.do(t, api, http.MethodGet, "/api/v1/chat/messages?limit=10", nil)
	messages := decodeBody[struct {
		Messages []domain.ChatMessage `json:"messages"`
	}](t, res).Messages
	if len(messages) != 1 || messages[0].SenderName != "John Cashier" {
		t.Fatalf("unexpected messages %+v", messages)
	}

	res = staff.do(t, api, http.MethodPost, "/api/v1/chat/autocorrect", domain.ChatPostRequest{Text: "teh shelf"})
	text := decodeBody[domain.TextResponse](t, res)
	if text.Text != "teh shelf" || !text.Fallback {
		t.Fatalf("expected fallback to original text, got %+v", text)
	}
}
