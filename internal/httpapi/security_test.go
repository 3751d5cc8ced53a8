package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ledgerpos/backend/internal/domain"
)

func TestManagerPINLimiterIsScopedPerResource(t *testing.T) {
	api := newTestAPI(t)
	c := newAdminClient(t, api)
	wrong := map[string]string{"manager_pin": "000000"}

	for attempt := 1; attempt <= 8; attempt++ {
		rec := c.do(http.MethodPost, "/api/v1/sales/sale-missing/delete", wrong)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("sale attempt %d: expected 403, got %d", attempt, rec.Code)
		}
	}
	if rec := c.do(http.MethodPost, "/api/v1/sales/sale-missing/delete", wrong); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected sale deletes to be limited, got %d", rec.Code)
	}

	if rec := c.do(http.MethodPost, "/api/v1/purchases/pur-missing/delete", wrong); rec.Code != http.StatusForbidden {
		t.Fatalf("purchase deletes share the sale limit: got %d", rec.Code)
	}
	rec := c.do(http.MethodPost, "/api/v1/purchases/pur-missing/delete", map[string]string{"manager_pin": "123456"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown purchase with the right pin, got %d", rec.Code)
	}
}

func TestCSRFTokenRequiredExceptOnLogin(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)

	login, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "admin123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(login))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login without csrf token: expected 200, got %d", rec.Code)
	}

	for _, path := range []string{"/api/v1/purchases", "/api/v1/sales", "/api/v1/customers/cust-x/payments"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s without csrf token: expected 403, got %d", path, rec.Code)
		}
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/stock", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("reads need no csrf token: expected 200, got %d", rec.Code)
	}
}

func TestCSRFTokenAcceptsPreviousHourOnly(t *testing.T) {
	api := newTestAPI(t)
	current := time.Now().UTC().Truncate(time.Hour).Unix()

	if !api.validateCSRFToken(api.csrfTokenForHour(current - 3600)) {
		t.Fatalf("expected token from the previous hour to be accepted")
	}
	if api.validateCSRFToken(api.csrfTokenForHour(current - 2*3600)) {
		t.Fatalf("expected token from two hours ago to be rejected")
	}

	other := newTestAPI(t)
	if other.validateCSRFToken(api.generateCSRFToken()) {
		t.Fatalf("expected token signed by another instance to be rejected")
	}
}

func TestDeletePurchaseReportsStockDetail(t *testing.T) {
	api := newTestAPI(t)
	c := newAdminClient(t, api)
	purchase := c.purchase("Pen", 5, "5", "10")
	pen := purchase.Lines[0].ProductID

	rec := c.do(http.MethodPost, "/api/v1/sales", map[string]any{
		"customer": map[string]any{"name": "Asha"},
		"lines":    []map[string]any{{"product_id": pen, "quantity": 3}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("sale: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	sale := decodeBody[domain.Invoice](t, rec)

	rec = c.do(http.MethodPost, "/api/v1/purchases/"+purchase.ID+"/delete", map[string]string{"manager_pin": "123456"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 while sold stock depends on the purchase, got %d", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["product_id"] != pen || body["available"] != float64(2) || body["requested"] != float64(5) {
		t.Fatalf("unexpected stock detail: %v", body)
	}

	if rec := c.do(http.MethodPost, "/api/v1/sales/"+sale.ID+"/delete", map[string]string{"manager_pin": "123456"}); rec.Code != http.StatusOK {
		t.Fatalf("delete sale: expected 200, got %d", rec.Code)
	}
	if rec := c.do(http.MethodPost, "/api/v1/purchases/"+purchase.ID+"/delete", map[string]string{"manager_pin": "123456"}); rec.Code != http.StatusOK {
		t.Fatalf("delete purchase after sale reversal: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec := c.do(http.MethodPost, "/api/v1/purchases/"+purchase.ID+"/delete", map[string]string{"manager_pin": "123456"}); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestCashierReadsProductButCannotRemoveIt(t *testing.T) {
	api := newTestAPI(t)
	admin := newAdminClient(t, api)
	pen := admin.purchase("Pen", 2, "5", "10").Lines[0].ProductID

	cashier := &client{t: t, handler: api.Handler(), token: loginAs(t, api, "cashier", "cashier123"), csrf: fetchCSRFToken(t, api)}

	rec := cashier.do(http.MethodGet, "/api/v1/products/"+pen, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cashier product read: expected 200, got %d", rec.Code)
	}
	if got := decodeBody[map[string]domain.Product](t, rec)["product"]; got.ID != pen || got.Name != "Pen" {
		t.Fatalf("unexpected product: %+v", got)
	}

	if rec := cashier.do(http.MethodPost, "/api/v1/products/"+pen+"/remove", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("cashier remove: expected 403, got %d", rec.Code)
	}
	if rec := cashier.do(http.MethodPost, "/api/v1/products", map[string]any{"name": "Ink"}); rec.Code != http.StatusForbidden {
		t.Fatalf("cashier add: expected 403, got %d", rec.Code)
	}
	if rec := admin.do(http.MethodPost, "/api/v1/products/"+pen+"/remove", nil); rec.Code != http.StatusOK {
		t.Fatalf("admin remove: expected 200, got %d", rec.Code)
	}
}

func TestSaleQuantityAboveLimitRejected(t *testing.T) {
	api := newTestAPI(t)
	c := newAdminClient(t, api)
	pen := c.purchase("Pen", 10, "5", "10").Lines[0].ProductID

	rec := c.do(http.MethodPost, "/api/v1/sales", map[string]any{
		"customer": map[string]any{"name": "Asha"},
		"lines": []map[string]any{
			{"product_id": pen, "quantity": 4611686018427387904},
			{"product_id": pen, "quantity": 4611686018427387904},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
	fields := decodeBody[struct {
		Fields map[string]string `json:"fields"`
	}](t, rec).Fields
	if fields["lines[0].quantity"] != "lte" {
		t.Fatalf("expected lte on first line quantity, got %v", fields)
	}

	stock := decodeBody[domain.StockProjection](t, c.do(http.MethodGet, "/api/v1/stock/"+pen, nil))
	if stock.InStock != 10 {
		t.Fatalf("expected stock untouched at 10, got %d", stock.InStock)
	}
}

func TestPreflightAdvertisesAllowedMethods(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sales", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET,POST,OPTIONS" {
		t.Fatalf("unexpected allowed methods %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "X-CSRF-Token") {
		t.Fatalf("expected X-CSRF-Token in allowed headers, got %q", got)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("expected security headers on preflight")
	}
}

func fetchCSRFToken(t *testing.T, api *API) string {
	t.Helper()
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("csrf token: expected 200, got %d", rec.Code)
	}
	token := decodeBody[map[string]string](t, rec)["csrf_token"]
	if token == "" {
		t.Fatalf("empty csrf token")
	}
	return token
}

func loginAs(t *testing.T, api *API, username string, password string) string {
	t.Helper()
	payload, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d", username, rec.Code)
	}
	return decodeBody[domain.LoginResponse](t, rec).AccessToken
}

func loginAsAdmin(t *testing.T, api *API) string {
	t.Helper()
	return loginAs(t, api, "admin", "admin123")
}
