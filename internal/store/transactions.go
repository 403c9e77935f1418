package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Transaction types.
const (
	Income  = "income"
	Expense = "expense"
)

// Transaction is one entry of the business ledger. A sale is an income that
// names a product and a quantity.
type Transaction struct {
	ID          int64   `json:"id"`
	OccurredOn  string  `json:"occurred_on"`
	Type        string  `json:"type"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	ProductID   *int64  `json:"product_id"`
	Quantity    int     `json:"quantity"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

// IsSale reports whether recording t takes goods out of stock.
func (t Transaction) IsSale() bool {
	return t.Type == Income && t.ProductID != nil && t.Quantity > 0
}

func (t Transaction) Validate() error {
	if _, err := time.Parse(dateLayout, t.OccurredOn); err != nil {
		return invalidf("occurred_on must be YYYY-MM-DD")
	}
	if t.Type != Income && t.Type != Expense {
		return invalidf("type must be %q or %q", Income, Expense)
	}
	if !nonNegative(t.Amount) || t.Amount == 0 {
		return invalidf("amount must be positive")
	}
	if t.Quantity < 0 {
		return invalidf("quantity must be non-negative")
	}
	return nil
}

// CreateTransaction records t. A sale also removes the sold quantity from the
// product's stock; both happen or neither does.
func (s *Store) CreateTransaction(ctx context.Context, t Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		switch {
		case t.IsSale():
			if _, err := updateStockTx(ctx, tx, *t.ProductID, -t.Quantity); err != nil {
				return err
			}
		case t.ProductID != nil:
			if err := productExistsTx(ctx, tx, *t.ProductID); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (occurred_on, type, category, description, amount, product_id, quantity)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, t.OccurredOn, t.Type, strings.TrimSpace(t.Category), t.Description, t.Amount, t.ProductID, t.Quantity)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("insert transaction id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ListTransactions returns transactions between from and to inclusive, newest
// first. Either bound may be empty.
func (s *Store) ListTransactions(ctx context.Context, from, to string) ([]Transaction, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, occurred_on, type, category, description, amount, product_id, quantity, created_at
		FROM transactions
		WHERE (? = '' OR occurred_on >= ?)
		  AND (? = '' OR occurred_on <= ?)
		ORDER BY occurred_on DESC, id DESC
	`, from, from, to, to)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]Transaction, 0)
	for rows.Next() {
		var (
			t         Transaction
			productID sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.OccurredOn, &t.Type, &t.Category, &t.Description, &t.Amount, &productID, &t.Quantity, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if productID.Valid {
			t.ProductID = &productID.Int64
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

// DeleteTransaction removes a ledger entry. Stock taken by a sale is not returned.
func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return checkAffected(res, fmt.Sprintf("delete transaction %d", id))
}

// MonthSummary totals one calendar month.
type MonthSummary struct {
	Month   string  `json:"month"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Net     float64 `json:"net"`
}

// MonthlySummary totals income and expense per month between from and to
// inclusive, oldest month first.
func (s *Store) MonthlySummary(ctx context.Context, from, to string) ([]MonthSummary, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(occurred_on, 1, 7) AS month, type, amount
		FROM transactions
		WHERE (? = '' OR occurred_on >= ?)
		  AND (? = '' OR occurred_on <= ?)
		ORDER BY month
	`, from, from, to, to)
	if err != nil {
		return nil, fmt.Errorf("query monthly summary: %w", err)
	}
	defer rows.Close()

	type totals struct{ income, expense decimal.Decimal }
	var (
		months []string
		byKey  = map[string]*totals{}
	)
	for rows.Next() {
		var (
			month, typ string
			amount     float64
		)
		if err := rows.Scan(&month, &typ, &amount); err != nil {
			return nil, fmt.Errorf("scan monthly summary: %w", err)
		}
		t, ok := byKey[month]
		if !ok {
			t = &totals{}
			byKey[month] = t
			months = append(months, month)
		}
		if typ == Income {
			t.income = t.income.Add(decimal.NewFromFloat(amount))
		} else {
			t.expense = t.expense.Add(decimal.NewFromFloat(amount))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly summary: %w", err)
	}

	summary := make([]MonthSummary, 0, len(months))
	for _, month := range months {
		t := byKey[month]
		summary = append(summary, MonthSummary{
			Month:   month,
			Income:  t.income.Round(2).InexactFloat64(),
			Expense: t.expense.Round(2).InexactFloat64(),
			Net:     t.income.Sub(t.expense).Round(2).InexactFloat64(),
		})
	}
	return summary, nil
}

func checkRange(from, to string) error {
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, d); err != nil {
			return invalidf("date %q must be YYYY-MM-DD", d)
		}
	}
	if from != "" && to != "" && from > to {
		return invalidf("from %s is after to %s", from, to)
	}
	return nil
}
