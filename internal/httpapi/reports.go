package httpapi

import (
	"net/http"

	"posledger/backend/internal/domain"
)

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	report, err := a.service.SalesReport(r.Context(), domain.ReportQuery{
		StartDate:  query.Get("startDate"),
		EndDate:    query.Get("endDate"),
		ReportType: query.Get("reportType"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleDrillDown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	result, err := a.service.DrillDown(r.Context(), domain.DrillDownQuery{
		Type:        query.Get("type"),
		Date:        query.Get("date"),
		ProductName: query.Get("productName"),
		StartDate:   query.Get("startDate"),
		EndDate:     query.Get("endDate"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
