package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"supermart/internal/assistant"
	"supermart/internal/domain"
	"supermart/internal/portal"
	"supermart/internal/service"
	"supermart/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *clientLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		log.Fatalf("[httpapi] csrf secret: %v", err)
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newClientLimiter(5, 5),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	return a.csrfTokenForHour(time.Now().UTC().Truncate(time.Hour).Unix())
}

// validateCSRFToken accepts tokens from the current or previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	current := time.Now().UTC().Truncate(time.Hour).Unix()
	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current-3600)))
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("POST /api/v1/auth/register", a.handleRegister)
	mux.HandleFunc("GET /api/v1/auth/csrf-token", a.handleCSRFToken)

	mux.HandleFunc("GET /api/v1/me", a.requireAuth(a.handleMe))
	mux.HandleFunc("PATCH /api/v1/me", a.requireAuth(a.handleProfileUpdate))

	mux.HandleFunc("GET /api/v1/products", a.requireAuth(a.handleProductList))
	mux.HandleFunc("POST /api/v1/products", a.requireAuth(a.handleProductCreate))
	mux.HandleFunc("GET /api/v1/products/low-stock", a.requireAuth(a.handleLowStock))
	mux.HandleFunc("POST /api/v1/products/generate", a.requireAuth(a.handleProductGenerate))
	mux.HandleFunc("POST /api/v1/products/restock", a.requireAuth(a.handleRestock))
	mux.HandleFunc("PATCH /api/v1/products/{id}", a.requireAuth(a.handleProductEdit))
	mux.HandleFunc("DELETE /api/v1/products/{id}", a.requireAuth(a.handleProductRemove))

	mux.HandleFunc("POST /api/v1/sales", a.requireAuth(a.handleSale))
	mux.HandleFunc("GET /api/v1/receipts", a.requireAuth(a.handleReceiptList))
	mux.HandleFunc("GET /api/v1/receipts/{id}", a.requireAuth(a.handleReceipt))
	mux.HandleFunc("POST /api/v1/receipts/{id}/cancel", a.requireAuth(a.handleReceiptCancel))
	mux.HandleFunc("GET /api/v1/receipts/{id}/voucher", a.requireAuth(a.handleVoucher))

	mux.HandleFunc("GET /api/v1/debtors", a.requireAuth(a.handleDebtorList))
	mux.HandleFunc("GET /api/v1/debtors/audit", a.requireAuth(a.handleDebtorAudit, domain.RoleAdmin))
	mux.HandleFunc("DELETE /api/v1/debtors/{id}", a.requireAuth(a.handleDebtorRemove))
	mux.HandleFunc("POST /api/v1/debtors/{id}/clear", a.requireAuth(a.handleDebtClear))
	mux.HandleFunc("GET /api/v1/debtors/{id}/statement", a.requireAuth(a.handleDebtorStatement))
	mux.HandleFunc("POST /api/v1/debtors/{id}/reconcile", a.requireAuth(a.handleDebtorReconcile))

	mux.HandleFunc("GET /api/v1/analytics/summary", a.requireAuth(a.handleSummary))
	mux.HandleFunc("GET /api/v1/export/receipts.csv", a.requireAuth(a.handleExportCSV))
	mux.HandleFunc("GET /api/v1/export/receipts.xlsx", a.requireAuth(a.handleExportXLSX))

	mux.HandleFunc("GET /api/v1/settings", a.requireAuth(a.handleSettings))
	mux.HandleFunc("PATCH /api/v1/settings", a.requireAuth(a.handleSettingsUpdate))

	mux.HandleFunc("GET /api/v1/users", a.requireAuth(a.handleUserList, domain.RoleAdmin))
	mux.HandleFunc("POST /api/v1/users", a.requireAuth(a.handleUserCreate, domain.RoleAdmin))
	mux.HandleFunc("DELETE /api/v1/users/{id}", a.requireAuth(a.handleUserRemove, domain.RoleAdmin))
	mux.HandleFunc("POST /api/v1/users/{id}/role", a.requireAuth(a.handleUserRole, domain.RoleAdmin))

	mux.HandleFunc("GET /api/v1/chat/messages", a.requireAuth(a.handleChatList))
	mux.HandleFunc("POST /api/v1/chat/messages", a.requireAuth(a.handleChatPost))
	mux.HandleFunc("POST /api/v1/chat/translate", a.requireAuth(a.handleTranslate))
	mux.HandleFunc("POST /api/v1/chat/suggest", a.requireAuth(a.handleSuggest))
	mux.HandleFunc("POST /api/v1/chat/autocorrect", a.requireAuth(a.handleAutocorrect))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		if errors.Is(err, portal.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRegister creates a staff account and signs it in.
func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many attempts"))
		return
	}

	var req domain.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := a.service.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp, err := a.auth.Issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleCSRFToken returns a stateless token for the X-CSRF-Token header.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

var csrfExemptPaths = []string{
	"/api/v1/auth/login",
	"/api/v1/auth/register",
}

// checkCSRF enforces the CSRF token on state-changing methods.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := service.ActorFromContext(r.Context())
	user, ok := a.service.User(actor.UserID)
	if !ok {
		writeError(w, http.StatusNotFound, store.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	var req domain.ProfileUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := a.service.UpdateProfile(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleProductList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"products": a.service.ListProducts(r.URL.Query().Get("q"))})
}

func (a *API) handleProductCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.Product
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"products": a.service.LowStock()})
}

func (a *API) handleProductGenerate(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateProductsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	products, err := a.service.GenerateProducts(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"products": products})
}

func (a *API) handleRestock(w http.ResponseWriter, r *http.Request) {
	var req domain.RestockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	updated, err := a.service.Restock(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
}

func (a *API) handleProductEdit(w http.ResponseWriter, r *http.Request) {
	var patch domain.ProductPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	product, err := a.service.EditProduct(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) handleProductRemove(w http.ResponseWriter, r *http.Request) {
	if err := a.service.RemoveProduct(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": true})
}

func (a *API) handleSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	receipt, err := a.service.CompleteSale(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.SaleResponse{Receipt: receipt})
}

func (a *API) handleReceiptList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"receipts": a.service.Receipts()})
}

func (a *API) handleReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := a.service.Receipt(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (a *API) handleReceiptCancel(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.CancelReceipt(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleVoucher(w http.ResponseWriter, r *http.Request) {
	voucher, err := a.service.Voucher(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, voucher)
}

func (a *API) handleDebtorList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"debtors": a.service.Debtors(r.URL.Query().Get("q"))})
}

func (a *API) handleDebtorAudit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.service.AuditBalances())
}

func (a *API) handleDebtorRemove(w http.ResponseWriter, r *http.Request) {
	if err := a.service.RemoveDebtor(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": true})
}

func (a *API) handleDebtClear(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.ClearDebt(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleDebtorStatement(w http.ResponseWriter, r *http.Request) {
	statement, err := a.service.DebtorStatement(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statement)
}

func (a *API) handleDebtorReconcile(w http.ResponseWriter, r *http.Request) {
	drift, err := a.service.ReconcileDebtor(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drift)
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.service.Summary(r.Context(), r.URL.Query().Get("range"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	data, name := a.service.ExportReceiptsCSV()
	writeAttachment(w, "text/csv; charset=utf-8", name, data)
}

func (a *API) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	data, name, err := a.service.ExportReceiptsXLSX()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeAttachment(w, xlsxContentType, name, data)
}

func (a *API) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.service.Settings())
}

func (a *API) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	var patch domain.SettingsPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	settings, err := a.service.UpdateSettings(r.Context(), patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (a *API) handleUserList(w http.ResponseWriter, r *http.Request) {
	users, err := a.service.Users(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.UserCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := a.service.AddUser(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleUserRemove(w http.ResponseWriter, r *http.Request) {
	if err := a.service.RemoveUser(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": true})
}

func (a *API) handleUserRole(w http.ResponseWriter, r *http.Request) {
	user, err := a.service.ToggleRole(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleChatList(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	writeJSON(w, http.StatusOK, map[string]any{"messages": a.service.Messages(limit)})
}

func (a *API) handleChatPost(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatPostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	msg, err := a.service.PostMessage(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (a *API) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req domain.TranslateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, a.service.Translate(r.Context(), req))
}

func (a *API) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req domain.SuggestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, a.service.SuggestReply(r.Context(), req))
}

func (a *API) handleAutocorrect(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatPostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, a.service.Autocorrect(r.Context(), req))
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// writeServiceError maps service and store sentinels to status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, store.ErrInvalidTransaction):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, assistant.ErrGenerationFailed):
		writeError(w, http.StatusUnprocessableEntity, assistant.ErrGenerationFailed)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx details stay in the server log.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAttachment(w http.ResponseWriter, contentType string, name string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
