package main

import (
	"net/http"

	"github.com/Simplici0/candle.works/internal/store"
)

type transactionRequest struct {
	OccurredOn  string  `json:"occurred_on" validate:"required,datetime=2006-01-02"`
	Type        string  `json:"type" validate:"required,oneof=income expense"`
	Category    string  `json:"category" validate:"max=64"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	ProductID   *int64  `json:"product_id" validate:"omitempty,gt=0"`
	Quantity    int     `json:"quantity" validate:"gte=0"`
}

func (s *server) handleTransactionsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	txs, err := s.store.ListTransactions(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// handleTransactionsCreate records a ledger entry. An income naming a product
// and a quantity is a sale and takes the goods out of stock.
func (s *server) handleTransactionsCreate(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t := store.Transaction{
		OccurredOn:  req.OccurredOn,
		Type:        req.Type,
		Category:    req.Category,
		Description: req.Description,
		Amount:      req.Amount,
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
	}
	id, err := s.store.CreateTransaction(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t.ID = id
	writeJSON(w, http.StatusCreated, t)
}

func (s *server) handleTransactionsDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	summary, err := s.store.MonthlySummary(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
