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

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"habibdukan/backend/internal/domain"
	"habibdukan/backend/internal/metrics"
	"habibdukan/backend/internal/service"
	"habibdukan/backend/internal/store/memory"
)

const (
	testOwnerPassword   = "owner-pass-123"
	testCashierPassword = "cashier-pass-1"
)

// newTestAPI builds a full API over the seeded in-memory store so handler
// tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, service.Options{Location: time.UTC, ShopName: "Habib Dukan Test"})
	auth, err := NewAuthManager("test-secret-key", time.Hour,
		Account{Username: "owner", Password: mustHashPassword(t, testOwnerPassword), Role: domain.RoleOwner},
		Account{Username: "cashier", Password: mustHashPassword(t, testCashierPassword), Role: domain.RoleCashier},
	)
	if err != nil {
		t.Fatalf("new auth manager: %v", err)
	}

	api, err := New(svc, auth, Options{AllowedOrigin: "*", Metrics: metrics.New()})
	if err != nil {
		t.Fatalf("new api: %v", err)
	}
	return api
}

// mustHashPassword generates a cheap bcrypt hash or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

// session holds what a logged-in client sends on every request.
type session struct {
	token string
	csrf  string
}

func login(t *testing.T, api *API, username string, password string) session {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("%s login failed, status %d: %s", username, res.Code, res.Body.String())
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

func loginAsOwner(t *testing.T, api *API) session {
	return login(t, api, "owner", testOwnerPassword)
}

func loginAsCashier(t *testing.T, api *API) session {
	return login(t, api, "cashier", testCashierPassword)
}

func (s session) do(t *testing.T, api *API, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			encoded, err := json.Marshal(body)
			if err != nil {
				t.Fatalf("encode body: %v", err)
			}
			raw = string(encoded)
		}
		reader = strings.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	if s.csrf != "" {
		req.Header.Set("X-CSRF-Token", s.csrf)
	}
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res
}

func decodeBody[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v (status %d)", err, res.Code)
	}
	return out
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	res := session{}.do(t, api, http.MethodGet, "/healthz", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := decodeBody[map[string]any](t, res)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)

	res := session{}.do(t, api, http.MethodPost, "/api/v1/auth/login",
		domain.LoginRequest{Username: "owner", Password: testOwnerPassword})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}
	body := decodeBody[map[string]any](t, res)
	if body["accessToken"] == nil || body["accessToken"] == "" {
		t.Fatalf("expected accessToken in response, got %v", body)
	}
	if body["role"] != domain.RoleOwner {
		t.Fatalf("expected owner role, got %v", body["role"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	res := session{}.do(t, api, http.MethodPost, "/api/v1/auth/login",
		domain.LoginRequest{Username: "owner", Password: "wrongpassword"})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", res.Code, res.Body.String())
	}

	res = session{}.do(t, api, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "owner"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password, got %d", res.Code)
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	res := session{}.do(t, api, http.MethodGet, "/api/v1/products", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}

	res = session{token: "not-a-jwt"}.do(t, api, http.MethodGet, "/api/v1/products", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", res.Code)
	}
}

func TestHandleProducts_ListNewestFirst(t *testing.T) {
	api := newTestAPI(t)
	cashier := loginAsCashier(t, api)

	res := cashier.do(t, api, http.MethodGet, "/api/v1/products", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}
	products := decodeBody[[]domain.Product](t, res)
	if len(products) != 8 {
		t.Fatalf("expected 8 seeded products, got %d", len(products))
	}
	if products[0].ProductNumber != "HD-008" {
		t.Fatalf("expected newest product first, got %s", products[0].ProductNumber)
	}

	res = cashier.do(t, api, http.MethodGet, "/api/v1/products?sort=sideways", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sort, got %d", res.Code)
	}
}

func TestCreateProduct(t *testing.T) {
	api := newTestAPI(t)
	owner := loginAsOwner(t, api)
	cashier := loginAsCashier(t, api)

	payload := map[string]any{
		"productNumber": "hd-100",
		"name":          "Green Tea 200g",
		"category":      "Beverages",
		"costPrice":     300,
		"retailPrice":   360,
		"stock":         15,
	}

	if res := cashier.do(t, api, http.MethodPost, "/api/v1/products", payload); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", res.Code)
	}

	res := owner.do(t, api, http.MethodPost, "/api/v1/products", payload)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	created := decodeBody[map[string]domain.Product](t, res)["product"]
	if created.ProductNumber != "HD-100" || created.Unit != "pcs" {
		t.Fatalf("unexpected product %+v", created)
	}

	res = owner.do(t, api, http.MethodPost, "/api/v1/products", payload)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate, got %d", res.Code)
	}
	if msg := decodeBody[map[string]string](t, res)["error"]; !strings.Contains(msg, "already exists") {
		t.Fatalf("expected duplicate message, got %q", msg)
	}

	payload["productNumber"] = "HD-101"
	payload["name"] = "Negative"
	payload["costPrice"] = -1
	res = owner.do(t, api, http.MethodPost, "/api/v1/products", payload)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative cost, got %d", res.Code)
	}
	if msg := decodeBody[map[string]string](t, res)["error"]; !strings.Contains(msg, "costPrice") {
		t.Fatalf("expected error to name costPrice, got %q", msg)
	}

	res = owner.do(t, api, http.MethodPost, "/api/v1/products", `{"productNumber":"X","sku":"nope"}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", res.Code)
	}
}

func TestProductSearch(t *testing.T) {
	api := newTestAPI(t)
	cashier := loginAsCashier(t, api)

	res := cashier.do(t, api, http.MethodGet, "/api/v1/products/search?q=hd-00", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := decodeBody[[]domain.Product](t, res); len(got) != 8 {
		t.Fatalf("expected 8 matches, got %d", len(got))
	}

	if res := cashier.do(t, api, http.MethodGet, "/api/v1/products/search?q=zzz", nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when nothing matches, got %d", res.Code)
	}
	if res := cashier.do(t, api, http.MethodGet, "/api/v1/products/search?q=", nil); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty query, got %d", res.Code)
	}
}

func TestProductByID(t *testing.T) {
	api := newTestAPI(t)
	owner := loginAsOwner(t, api)
	cashier := loginAsCashier(t, api)

	res := cashier.do(t, api, http.MethodGet, "/api/v1/products/prd_seed_001", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	if res := cashier.do(t, api, http.MethodPatch, "/api/v1/products/prd_seed_001", map[string]any{"stock": 1}); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier patch, got %d", res.Code)
	}

	res = owner.do(t, api, http.MethodPatch, "/api/v1/products/prd_seed_001", map[string]any{"stock": 55, "retailPrice": 1800})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}
	updated := decodeBody[map[string]domain.Product](t, res)["product"]
	if updated.Stock != 55 || !updated.RetailPrice.Equal(decimal.NewFromInt(1800)) {
		t.Fatalf("unexpected update result %+v", updated)
	}

	if res := owner.do(t, api, http.MethodPatch, "/api/v1/products/prd_seed_001", map[string]any{"stock": -3}); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative stock, got %d", res.Code)
	}

	if res := owner.do(t, api, http.MethodDelete, "/api/v1/products/prd_seed_002", nil); res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if res := owner.do(t, api, http.MethodGet, "/api/v1/products/prd_seed_002", nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", res.Code)
	}
}

func TestLowStockOwnerOnly(t *testing.T) {
	api := newTestAPI(t)

	if res := loginAsCashier(t, api).do(t, api, http.MethodGet, "/api/v1/products/low-stock", nil); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", res.Code)
	}

	res := loginAsOwner(t, api).do(t, api, http.MethodGet, "/api/v1/products/low-stock", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := decodeBody[struct {
		Threshold   int                        `json:"threshold"`
		Suggestions []domain.RestockSuggestion `json:"suggestions"`
	}](t, res)
	if body.Threshold != 10 || len(body.Suggestions) != 2 {
		t.Fatalf("expected 2 low-stock suggestions at threshold 10, got %+v", body)
	}
	if body.Suggestions[0].ProductNumber != "HD-006" {
		t.Fatalf("expected lowest stock first, got %s", body.Suggestions[0].ProductNumber)
	}
}

func TestCommitSale_EndToEnd(t *testing.T) {
	api := newTestAPI(t)
	cashier := loginAsCashier(t, api)

	res := cashier.do(t, api, http.MethodPost, "/api/v1/sales", map[string]any{
		"items":         []map[string]any{{"productId": "prd_seed_005", "quantity": 3, "price": 250}},
		"paymentMethod": "Card",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	sale := decodeBody[map[string]domain.Sale](t, res)["sale"]
	checks := map[string][2]decimal.Decimal{
		"subtotal":    {sale.Subtotal, decimal.NewFromInt(750)},
		"tax":         {sale.Tax, decimal.NewFromInt(75)},
		"totalAmount": {sale.TotalAmount, decimal.NewFromInt(825)},
		"totalProfit": {sale.TotalProfit, decimal.NewFromInt(120)},
	}
	for name, pair := range checks {
		if !pair[0].Equal(pair[1]) {
			t.Fatalf("expected %s %s, got %s", name, pair[1], pair[0])
		}
	}
	if sale.PaymentMethod != domain.PaymentCard {
		t.Fatalf("expected Card, got %s", sale.PaymentMethod)
	}

	res = cashier.do(t, api, http.MethodGet, "/api/v1/products/prd_seed_005", nil)
	if product := decodeBody[map[string]domain.Product](t, res)["product"]; product.Stock != 5 {
		t.Fatalf("expected stock 5 after sale, got %d", product.Stock)
	}

	res = cashier.do(t, api, http.MethodGet, "/api/v1/sales/"+sale.ID, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for sale lookup, got %d", res.Code)
	}
	if res := cashier.do(t, api, http.MethodGet, "/api/v1/sales/sale_missing", nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sale, got %d", res.Code)
	}
}

func TestCommitSale_CallerErrors(t *testing.T) {
	api := newTestAPI(t)
	cashier := loginAsCashier(t, api)

	cases := []struct {
		name    string
		body    any
		message string
	}{
		{"empty cart", map[string]any{"items": []any{}}, "no items provided"},
		{"insufficient stock", map[string]any{"items": []map[string]any{{"productId": "prd_seed_006", "quantity": 6, "price": 450}}}, "not enough stock for Washing Powder 1kg"},
		{"unknown product", map[string]any{"items": []map[string]any{{"productId": "prd_nope", "quantity": 1, "price": 10}}}, "product not found"},
		{"zero quantity", map[string]any{"items": []map[string]any{{"productId": "prd_seed_001", "quantity": 0, "price": 10}}}, "quantity"},
		{"bad payment method", map[string]any{"items": []map[string]any{{"productId": "prd_seed_001", "quantity": 1, "price": 10}}, "paymentMethod": "Cheque"}, "paymentMethod"},
		{"malformed json", `{"items": [`, "invalid request body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := cashier.do(t, api, http.MethodPost, "/api/v1/sales", tc.body)
			if res.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (body: %s)", res.Code, res.Body.String())
			}
			if msg := decodeBody[map[string]string](t, res)["error"]; !strings.Contains(msg, tc.message) {
				t.Fatalf("expected error containing %q, got %q", tc.message, msg)
			}
		})
	}

	res := cashier.do(t, api, http.MethodGet, "/api/v1/products/prd_seed_006", nil)
	if product := decodeBody[map[string]domain.Product](t, res)["product"]; product.Stock != 5 {
		t.Fatalf("expected stock unchanged at 5, got %d", product.Stock)
	}
}

func TestSaleInvoice(t *testing.T) {
	api := newTestAPI(t)
	cashier := loginAsCashier(t, api)

	res := cashier.do(t, api, http.MethodPost, "/api/v1/sales", map[string]any{
		"items": []map[string]any{{"productId": "prd_seed_001", "quantity": 1, "price": 1750}},
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	sale := decodeBody[map[string]domain.Sale](t, res)["sale"]

	res = cashier.do(t, api, http.MethodGet, "/api/v1/sales/"+sale.ID+"/invoice", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html invoice, got %q", ct)
	}
	html := res.Body.String()
	for _, want := range []string{"Habib Dukan Test", "Basmati Rice 5kg", "Rs 1,925.00"} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected invoice to contain %q", want)
		}
	}

	res = cashier.do(t, api, http.MethodGet, "/api/v1/sales/"+sale.ID+"/invoice?format=text", nil)
	if !strings.Contains(res.Body.String(), "Invoice: "+sale.ID) {
		t.Fatalf("expected plain text invoice, got %s", res.Body.String())
	}
}

func TestReports(t *testing.T) {
	api := newTestAPI(t)
	owner := loginAsOwner(t, api)
	cashier := loginAsCashier(t, api)

	if res := cashier.do(t, api, http.MethodGet, "/api/v1/reports", nil); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", res.Code)
	}

	res := owner.do(t, api, http.MethodGet, "/api/v1/reports", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if cc := res.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Fatalf("expected no-store cache control, got %q", cc)
	}
	if strings.TrimSpace(res.Body.String()) != "[]" {
		t.Fatalf("expected empty list before any sale, got %s", res.Body.String())
	}

	cashier.do(t, api, http.MethodPost, "/api/v1/sales", map[string]any{
		"items": []map[string]any{{"productId": "prd_seed_003", "quantity": 2, "price": 165}},
	})

	today := time.Now().UTC().Format("2006-01-02")
	res = owner.do(t, api, http.MethodGet, "/api/v1/reports?startDate="+today+"&endDate="+today, nil)
	report := decodeBody[[]domain.DailySales](t, res)
	if len(report) != 1 || !report[0].TotalSales.Equal(decimal.NewFromInt(330)) || !report[0].TotalProfit.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected report %+v", report)
	}

	res = owner.do(t, api, http.MethodGet, "/api/v1/reports?format=csv", nil)
	if ct := res.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected csv, got %q", ct)
	}
	if !strings.Contains(res.Body.String(), today+",330.00,50.00") {
		t.Fatalf("expected csv row for today, got %s", res.Body.String())
	}

	for _, query := range []string{"?startDate=" + today, "?startDate=2024-13-01&endDate=2024-13-02", "?startDate=2024-03-05&endDate=2024-03-01"} {
		if res := owner.do(t, api, http.MethodGet, "/api/v1/reports"+query, nil); res.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", query, res.Code)
		}
	}

	res = owner.do(t, api, http.MethodGet, "/api/v1/reports/summary", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for summary, got %d", res.Code)
	}
	summary := decodeBody[domain.SalesSummary](t, res)
	if summary.Days != 7 || summary.ActiveDays != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestExpenses(t *testing.T) {
	api := newTestAPI(t)
	owner := loginAsOwner(t, api)
	cashier := loginAsCashier(t, api)

	for _, amount := range []any{0, -10} {
		res := cashier.do(t, api, http.MethodPost, "/api/v1/expenses", map[string]any{"amount": amount, "category": "Utilities"})
		if res.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for amount %v, got %d", amount, res.Code)
		}
	}

	res := cashier.do(t, api, http.MethodPost, "/api/v1/expenses", map[string]any{
		"amount": 1200.5, "description": "Electricity bill", "category": "Utilities",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}

	if res := cashier.do(t, api, http.MethodGet, "/api/v1/expenses", nil); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier expense report, got %d", res.Code)
	}

	res = owner.do(t, api, http.MethodGet, "/api/v1/expenses", nil)
	report := decodeBody[[]domain.DailyExpense](t, res)
	if len(report) != 1 || !report[0].TotalExpense.Equal(decimal.RequireFromString("1200.5")) {
		t.Fatalf("unexpected expense report %+v", report)
	}
}

func TestDashboard(t *testing.T) {
	api := newTestAPI(t)
	cashier := loginAsCashier(t, api)

	res := cashier.do(t, api, http.MethodGet, "/api/v1/dashboard", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if cc := res.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Fatalf("expected no-store cache control, got %q", cc)
	}
	body := decodeBody[map[string]any](t, res)
	for _, key := range []string{"totalProducts", "totalStock", "lowStockCount", "todaysSales", "totalProfit"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("expected %s in dashboard, got %v", key, body)
		}
	}
	if body["totalProducts"] != float64(8) || body["lowStockCount"] != float64(2) {
		t.Fatalf("unexpected dashboard %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	session{}.do(t, api, http.MethodGet, "/healthz", nil)

	res := session{}.do(t, api, http.MethodGet, "/metrics", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `habibdukan_http_requests_total{method="GET",route="/healthz",status="200"}`) {
		t.Fatalf("expected request counter for /healthz in metrics output")
	}
}
