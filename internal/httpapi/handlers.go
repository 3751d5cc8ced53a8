package httpapi

import (
	"errors"
	"net/http"
	"time"

	"ledgerpos/backend/internal/domain"
	"ledgerpos/backend/internal/service"
)

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a token clients send back in X-CSRF-Token on every
// POST except login.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"csrf_token": a.generateCSRFToken()})
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products := a.service.ListProducts(r.Context(), parseBool(r.URL.Query().Get("include_inactive")))
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		if !requireRole(w, r, "admin") {
			return
		}

		var req domain.ProductCreateRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		product, err := a.service.AddProduct(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	productID, action, ok := resourcePath(r.URL.Path, "/api/v1/products/")
	if !ok || productID == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		product, err := a.service.GetProduct(r.Context(), productID)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case action == "remove" && r.Method == http.MethodPost:
		if !requireRole(w, r, "admin") {
			return
		}
		product, err := a.service.RemoveProduct(r.Context(), productID)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case action == "" || action == "remove":
		writeMethodNotAllowed(w)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown product action"))
	}
}

func (a *API) handleStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	stock := a.service.ProjectAllStock(r.Context(), parseBool(r.URL.Query().Get("include_inactive")))
	writeJSON(w, http.StatusOK, map[string]any{"stock": stock})
}

func (a *API) handleStockItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	productID, action, ok := resourcePath(r.URL.Path, "/api/v1/stock/")
	if !ok || action != "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}

	projection, err := a.service.ProjectStock(r.Context(), productID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projection)
}

func (a *API) handlePurchases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 500)
		writeJSON(w, http.StatusOK, map[string]any{"purchases": a.service.ListPurchases(r.Context(), limit)})
	case http.MethodPost:
		var req domain.PurchaseRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		purchase, err := a.service.RecordPurchase(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, purchase)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handlePurchaseActions(w http.ResponseWriter, r *http.Request) {
	purchaseID, action, ok := resourcePath(r.URL.Path, "/api/v1/purchases/")
	if !ok || purchaseID == "" {
		writeError(w, http.StatusBadRequest, errors.New("purchase id required"))
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		purchase, err := a.service.GetPurchase(r.Context(), purchaseID)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, purchase)
	case action == "delete" && r.Method == http.MethodPost:
		if !a.checkManagerPIN(w, r, "purchase") {
			return
		}
		removed, err := a.service.DeletePurchase(r.Context(), purchaseID)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": removed})
	case action == "" || action == "delete":
		writeMethodNotAllowed(w)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown purchase action"))
	}
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		limit := parsePositiveLimit(query.Get("limit"), 50, 500)
		sales := a.service.ListSales(r.Context(), query.Get("customer_id"), limit)
		writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
	case http.MethodPost:
		var req domain.SaleRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		invoice, err := a.service.FinalizeSale(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, invoice)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	saleID, action, ok := resourcePath(r.URL.Path, "/api/v1/sales/")
	if !ok || saleID == "" {
		writeError(w, http.StatusBadRequest, errors.New("sale id required"))
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		invoice, err := a.service.GetInvoice(r.Context(), saleID)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, invoice)
	case action == "delete" && r.Method == http.MethodPost:
		if !a.checkManagerPIN(w, r, "sale") {
			return
		}
		removed, err := a.service.DeleteSale(r.Context(), saleID)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": removed})
	case action == "" || action == "delete":
		writeMethodNotAllowed(w)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown sale action"))
	}
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	if name := query.Get("name"); name != "" {
		customer, err := a.service.FindCustomer(r.Context(), name, query.Get("phone"))
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": a.service.ListCustomers(r.Context())})
}

func (a *API) handleCustomerActions(w http.ResponseWriter, r *http.Request) {
	customerID, action, ok := resourcePath(r.URL.Path, "/api/v1/customers/")
	if !ok || customerID == "" {
		writeError(w, http.StatusBadRequest, errors.New("customer id required"))
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		customer, err := a.service.GetCustomer(r.Context(), customerID)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"customer": customer,
			"sales":    a.service.ListSales(r.Context(), customerID, 0),
			"payments": a.service.ListPayments(r.Context(), customerID),
		})
	case action == "payments" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"payments": a.service.ListPayments(r.Context(), customerID)})
	case action == "payments" && r.Method == http.MethodPost:
		var req domain.PaymentRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		req.CustomerID = customerID
		resp, err := a.service.RecordPayment(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	case action == "" || action == "payments":
		writeMethodNotAllowed(w)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown customer action"))
	}
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, a.service.DashboardSummary(r.Context()))
}

func (a *API) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	report, err := a.service.Reconcile(r.Context(), false)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleCashiers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"cashiers": a.auth.ListCashiers(r.Context())})
	case http.MethodPost:
		var req domain.CashierCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		cashier, err := a.auth.CreateCashier(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"cashier": cashier})
	default:
		writeMethodNotAllowed(w)
	}
}

// requireRole narrows a route that admits several roles for one method.
func requireRole(w http.ResponseWriter, r *http.Request, roles ...string) bool {
	actor, ok := service.ActorFromContext(r.Context())
	if !ok || !isRoleAllowed(actor.Role, roles) {
		writeError(w, http.StatusForbidden, errors.New("forbidden role"))
		return false
	}
	return true
}

// checkManagerPIN reads a DeleteRequest body and checks its PIN, rate
// limited per client and scope. It writes the error response itself.
func (a *API) checkManagerPIN(w http.ResponseWriter, r *http.Request, scope string) bool {
	var req domain.DeleteRequest
	if !decodeRequest(w, r, &req) {
		return false
	}
	if !a.pinLimiter.Allow("pin:" + scope + ":" + clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many manager pin attempts"))
		return false
	}
	if !a.auth.ValidateManagerPIN(req.ManagerPIN) {
		writeError(w, http.StatusForbidden, errors.New("invalid manager pin"))
		return false
	}
	return true
}
