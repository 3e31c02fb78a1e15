package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/metrics"
	"posledger/backend/internal/service"
	"posledger/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager,
// real Service and a private metrics registry.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	registry := prometheus.NewRegistry()
	recorder := metrics.New(registry)
	svc := service.New(repo, nil, recorder)
	auth := NewAuthManager("test-secret-key", time.Hour, "123456", repo)

	return New(svc, auth, "*", recorder, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, token string, csrf string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("encode payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func coffeeItems(qty int) []domain.SaleItem {
	return []domain.SaleItem{{ProductID: "prd-coffee", Name: "Iced Coffee", Price: decimal.NewFromInt(55), Quantity: qty}}
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodGet, "/healthz", "", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{Username: "admin", Password: "wrongpassword"})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodGet, "/api/v1/products", "", "", nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_CashierReadsAdminWrites(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	cashier := login(t, api, "cashier", "cashier123")
	admin := login(t, api, "admin", "admin123")
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", cashier, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var list struct {
		Products []domain.Product `json:"products"`
	}
	decodeBody(t, rec, &list)
	if len(list.Products) != 10 {
		t.Fatalf("expected 10 seeded products, got %d", len(list.Products))
	}

	create := domain.ProductCreateRequest{Name: "Mango Sticky Rice", Category: "dessert", Price: decimal.NewFromInt(60), Cost: decimal.NewFromInt(25), Stock: 10}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products", cashier, csrf, create)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier product create, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products", admin, csrf, create)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPatch, "/api/v1/products/prd-missing", admin, csrf, map[string]any{"stock": 4})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPatch, "/api/v1/products/prd-coffee", admin, csrf, map[string]any{"stock": -4})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative stock, got %d", rec.Code)
	}
}

func TestCheckoutFlowCreatesCustomerAndPoints(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, api, "cashier", "cashier123")
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/checkout/quote", token, csrf, domain.QuoteRequest{Items: coffeeItems(2)})
	if rec.Code != http.StatusOK {
		t.Fatalf("quote expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var quote domain.Quote
	decodeBody(t, rec, &quote)
	if !quote.TotalAmount.Equal(decimal.NewFromInt(110)) || quote.PointsEarned != 11 {
		t.Fatalf("unexpected quote %+v", quote)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, csrf, domain.RecordSaleRequest{
		Items:          coffeeItems(2),
		CustomerName:   "Malee",
		CustomerPhone:  "0812345678",
		Subtotal:       quote.Subtotal,
		DiscountAmount: quote.DiscountAmount,
		PointsEarned:   quote.PointsEarned,
		TotalAmount:    quote.TotalAmount,
		PaymentMethod:  domain.PaymentEWallet,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("sale expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var recorded domain.RecordSaleResponse
	decodeBody(t, rec, &recorded)
	if recorded.SaleID == "" || recorded.CustomerID == "" {
		t.Fatalf("unexpected sale response %+v", recorded)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/customers/search?phone=0812345678", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search expected 200, got %d", rec.Code)
	}
	var found struct {
		Customer domain.Customer `json:"customer"`
	}
	decodeBody(t, rec, &found)
	if found.Customer.ID != recorded.CustomerID || found.Customer.Points != 11 {
		t.Fatalf("unexpected customer %+v", found.Customer)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/customers/"+recorded.CustomerID+"/points", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("points expected 200, got %d", rec.Code)
	}
	var history domain.PointsHistoryResponse
	decodeBody(t, rec, &history)
	if history.Balance != 11 || len(history.Transactions) != 1 || history.Transactions[0].SaleID != recorded.SaleID {
		t.Fatalf("unexpected points history %+v", history)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales/"+recorded.SaleID, token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get sale expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/customers/"+recorded.CustomerID+"/history", token, "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), recorded.SaleID) {
		t.Fatalf("expected purchase history with the sale, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRecordSaleErrorStatuses(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, api, "cashier", "cashier123")
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, csrf, domain.RecordSaleRequest{
		Items:       coffeeItems(2),
		Subtotal:    decimal.NewFromInt(100),
		TotalAmount: decimal.NewFromInt(100),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for subtotal mismatch, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, csrf, domain.RecordSaleRequest{
		Items:       coffeeItems(0),
		Subtotal:    decimal.Zero,
		TotalAmount: decimal.Zero,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero quantity, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, csrf, domain.RecordSaleRequest{
		Items:       coffeeItems(500),
		Subtotal:    decimal.NewFromInt(27500),
		TotalAmount: decimal.NewFromInt(27500),
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for insufficient stock, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales/sale-missing", token, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sale, got %d", rec.Code)
	}
}

func TestCustomerEndpoints(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	cashier := login(t, api, "cashier", "cashier123")
	admin := login(t, api, "admin", "admin123")
	csrf := fetchCSRFToken(t, api)

	create := domain.CustomerCreateRequest{Name: "Niran", Phone: "0898765432"}
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/customers", cashier, csrf, create)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Customer domain.Customer `json:"customer"`
	}
	decodeBody(t, rec, &created)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/customers", cashier, csrf, create)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate phone, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/customers", cashier, csrf, domain.CustomerCreateRequest{Name: "Bad", Phone: "12345"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed phone, got %d", rec.Code)
	}

	path := "/api/v1/customers/" + created.Customer.ID
	rec = doJSON(t, handler, http.MethodPatch, path, cashier, csrf, map[string]any{"notes": "prefers e-receipt"})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "prefers e-receipt") {
		t.Fatalf("expected patched customer, got %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodPatch, path, cashier, csrf, map[string]any{"membership_level": "Platinum"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for tier write, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/customers/search?q=nir", cashier, "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), created.Customer.ID) {
		t.Fatalf("expected search hit, got %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodDelete, path, cashier, csrf, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier delete, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodDelete, path, admin, csrf, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin delete, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, path, cashier, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestPointsAdjustmentNeedsAdminOrManagerPIN(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	cashier := login(t, api, "cashier", "cashier123")
	admin := login(t, api, "admin", "admin123")
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/customers", cashier, csrf, domain.CustomerCreateRequest{Name: "Ploy", Phone: "0861112222"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create customer failed: %d", rec.Code)
	}
	var created struct {
		Customer domain.Customer `json:"customer"`
	}
	decodeBody(t, rec, &created)
	path := "/api/v1/customers/" + created.Customer.ID + "/points"

	rec = doJSON(t, handler, http.MethodPost, path, cashier, csrf, domain.PointsAdjustRequest{Points: 20, Description: "birthday"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without manager pin, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"points":20,"description":"birthday"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cashier)
	req.Header.Set("X-CSRF-Token", csrf)
	req.Header.Set(managerPINHeader, "123456")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 with manager pin, got %d (body: %s)", res.Code, res.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, path, admin, csrf, domain.PointsAdjustRequest{Points: -50, Description: "reversal"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 below zero balance, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, path, admin, csrf, domain.PointsAdjustRequest{Points: 5})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without description, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/points/expire", admin, csrf, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for expire, got %d", rec.Code)
	}
	var expired domain.PointsExpireResponse
	decodeBody(t, rec, &expired)
	if expired.Processed != 0 {
		t.Fatalf("expected nothing due, got %+v", expired)
	}
}

func TestReportsAreAdminOnly(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	cashier := login(t, api, "cashier", "cashier123")
	admin := login(t, api, "admin", "admin123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/reports/sales", cashier, "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/sales?reportType=revenue", admin, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var report domain.SalesReport
	decodeBody(t, rec, &report)
	if report.ReportType != domain.ReportRevenue || report.TotalTransactions != 0 {
		t.Fatalf("unexpected empty report %+v", report)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/sales?startDate=2026-03-10&endDate=2026-03-01", admin, "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/drill-down?type=weekly", admin, "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown drill-down, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/drill-down?type=date&date=2026-03-10", admin, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for date drill-down, got %d", rec.Code)
	}
}

func TestMetricsEndpointExposesRequests(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	doJSON(t, handler, http.MethodGet, "/healthz", "", "", nil)
	rec := doJSON(t, handler, http.MethodGet, "/metrics", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "posledger_http_request_duration_seconds") {
		t.Fatalf("expected request histogram in metrics output")
	}
}

func TestCashierAccountsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	admin := login(t, api, "admin", "admin123")
	csrf := fetchCSRFToken(t, api)

	req := domain.CashierCreateRequest{Username: "Register2", Password: "pass1234"}
	if rec := doJSON(t, handler, http.MethodPost, "/api/v1/users/cashiers", admin, csrf, req); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, handler, http.MethodPost, "/api/v1/users/cashiers", admin, csrf, req); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate username, got %d", rec.Code)
	}
	if rec := doJSON(t, handler, http.MethodPost, "/api/v1/users/cashiers", admin, csrf, domain.CashierCreateRequest{Username: "reg3", Password: "x"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short password, got %d", rec.Code)
	}

	cashier := login(t, api, "register2", "pass1234")
	if rec := doJSON(t, handler, http.MethodGet, "/api/v1/users/cashiers", cashier, "", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier listing staff, got %d", rec.Code)
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/users/cashiers", admin, "", nil)
	var listed struct {
		Cashiers []domain.CashierUser `json:"cashiers"`
	}
	decodeBody(t, rec, &listed)
	names := make([]string, 0, len(listed.Cashiers))
	for _, c := range listed.Cashiers {
		names = append(names, c.Username)
	}
	if strings.Join(names, ",") != "cashier,register2" {
		t.Fatalf("unexpected cashier list %v", names)
	}
}
