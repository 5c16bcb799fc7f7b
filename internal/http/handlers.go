package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"kharcha/internal/services"
	"kharcha/internal/storage"
)

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateExpense(w, r)
	case http.MethodGet:
		s.handleListExpenses(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed."})
	}
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body."})
		return
	}

	req := services.CreateExpenseRequest{
		IdempotencyKey: asString(body["idempotencyKey"]),
		Amount:         stringValue(body["amount"]),
		Category:       asString(body["category"]),
		Description:    asString(body["description"]),
		Date:           asString(body["date"]),
	}

	expense, wasExisting, err := s.expenses.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	if !wasExisting {
		s.categories.Invalidate()
	}

	status := http.StatusCreated
	if wasExisting {
		status = http.StatusOK
	}
	writeJSON(w, status, toExpenseResponse(expense))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter := storage.ListFilter{
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		DateDesc: r.URL.Query().Get("sort") == "date_desc",
	}

	expenses, err := s.expenses.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]expenseResponse, 0, len(expenses))
	for i := range expenses {
		out = append(out, toExpenseResponse(&expenses[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed."})
		return
	}

	summary, err := s.expenses.Summary(r.Context(), strings.TrimSpace(r.URL.Query().Get("category")))
	if err != nil {
		writeError(w, err)
		return
	}

	type categoryTotal struct {
		Category        string `json:"category"`
		Total           string `json:"total"`
		TotalMinorUnits int64  `json:"totalMinorUnits"`
	}
	resp := struct {
		Total           string          `json:"total"`
		TotalMinorUnits int64           `json:"totalMinorUnits"`
		ByCategory      []categoryTotal `json:"byCategory"`
	}{
		Total:           summary.Total.String(),
		TotalMinorUnits: summary.Total.Paise,
		ByCategory:      make([]categoryTotal, 0, len(summary.ByCategory)),
	}
	for _, ct := range summary.ByCategory {
		resp.ByCategory = append(resp.ByCategory, categoryTotal{
			Category:        ct.Category,
			Total:           ct.Total.String(),
			TotalMinorUnits: ct.Total.Paise,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed."})
		return
	}

	categories, err := s.categories.Get(func() ([]string, error) {
		return s.expenses.Categories(r.Context())
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type healthResponse struct {
		OK       bool   `json:"ok"`
		Database string `json:"database"`
	}
	if err := s.expenses.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError,
			healthResponse{OK: false, Database: "disconnected"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{OK: true, Database: "connected"})
}
