package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"habibdukan/backend/internal/domain"
	"habibdukan/backend/internal/service"
)

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		order, err := service.ParseSortOrder(r.URL.Query().Get("sort"))
		if err != nil {
			a.respondError(w, r, err)
			return
		}
		products, err := a.service.ListProducts(r.Context(), order)
		if err != nil {
			a.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, products)
	case http.MethodPost:
		if !requireOwner(w, r) {
			return
		}

		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := a.validateRequest(req); err != nil {
			a.respondError(w, r, err)
			return
		}

		product, err := a.service.CreateProduct(r.Context(), req)
		if err != nil {
			a.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	products, err := a.service.SearchProducts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	suggestions, err := a.service.RestockSuggestions(r.Context())
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"threshold":   service.LowStockThreshold,
		"suggestions": suggestions,
	})
}

func (a *API) handleProductByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		product, err := a.service.GetProduct(r.Context(), id)
		if err != nil {
			a.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case http.MethodPatch:
		if !requireOwner(w, r) {
			return
		}

		var req domain.ProductUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := a.validateRequest(req); err != nil {
			a.respondError(w, r, err)
			return
		}

		updated, err := a.service.UpdateProduct(r.Context(), id, req)
		if err != nil {
			a.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": updated})
	case http.MethodDelete:
		if !requireOwner(w, r) {
			return
		}
		if err := a.service.DeleteProduct(r.Context(), id); err != nil {
			a.respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.CommitSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.validateRequest(req); err != nil {
		a.respondError(w, r, err)
		return
	}

	sale, err := a.service.CommitSale(r.Context(), req)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
}

func (a *API) handleSaleByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	sale, err := a.service.GetSale(r.Context(), r.PathValue("id"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleInvoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	invoice, err := a.service.BuildInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))) {
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(invoice.PreviewText))
	case "json":
		writeJSON(w, http.StatusOK, invoice)
	default:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(invoiceToPrintableHTML(invoice, a.logger)))
	}
}

func (a *API) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	report, err := a.service.DailySalesReport(r.Context(), query.Get("startDate"), query.Get("endDate"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	noStore(w)
	if strings.EqualFold(strings.TrimSpace(query.Get("format")), "csv") {
		body, err := dailySalesToCSV(report)
		if err != nil {
			a.respondError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reportFilename(query.Get("startDate"), query.Get("endDate"))))
		_, _ = w.Write(body)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	summary, err := a.service.SalesSummary(r.Context(), query.Get("startDate"), query.Get("endDate"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	noStore(w)
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !requireOwner(w, r) {
			return
		}
		query := r.URL.Query()
		report, err := a.service.DailyExpenseReport(r.Context(), query.Get("startDate"), query.Get("endDate"))
		if err != nil {
			a.respondError(w, r, err)
			return
		}
		noStore(w)
		writeJSON(w, http.StatusOK, report)
	case http.MethodPost:
		var req domain.ExpenseCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := a.validateRequest(req); err != nil {
			a.respondError(w, r, err)
			return
		}

		expense, err := a.service.CreateExpense(r.Context(), req)
		if err != nil {
			a.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"expense": expense})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	dashboard, err := a.service.DashboardSnapshot(r.Context())
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	noStore(w)
	writeJSON(w, http.StatusOK, dashboard)
}
