package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Simplici0/candle.works/internal/pricing"
)

// Product is a catalog item with its Bill of Materials.
type Product struct {
	ID            int64              `json:"id"`
	SKU           string             `json:"sku"`
	Name          string             `json:"name"`
	Description   string             `json:"description"`
	Lines         []pricing.BOMLine  `json:"lines"`
	ManualWeightG *float64           `json:"manual_weight_g"`
	SellingPrice  *float64           `json:"selling_price"`
	Stock         int                `json:"stock"`
	Shipping      map[string]float64 `json:"shipping"`
	CreatedAt     string             `json:"created_at,omitempty"`
	UpdatedAt     string             `json:"updated_at,omitempty"`
}

// Validate checks the record invariants: a SKU and name, at most one line per
// kind, and no negative or non-finite numbers.
func (p Product) Validate() error {
	if strings.TrimSpace(p.SKU) == "" {
		return invalidf("sku is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return invalidf("name is required")
	}
	seen := make(map[pricing.ComponentKind]bool, len(p.Lines))
	for _, l := range p.Lines {
		if !l.Kind.Valid() {
			return invalidf("unknown component kind %d", int(l.Kind))
		}
		if seen[l.Kind] {
			return invalidf("more than one %s line", l.Kind)
		}
		seen[l.Kind] = true
		if !nonNegative(l.Amount) || !nonNegative(l.Rate) || l.Quantity < 0 {
			return invalidf("%s line has a negative or invalid value", l.Kind)
		}
	}
	if p.ManualWeightG != nil && !nonNegative(*p.ManualWeightG) {
		return invalidf("manual_weight_g must be non-negative")
	}
	if p.SellingPrice != nil && !nonNegative(*p.SellingPrice) {
		return invalidf("selling_price must be non-negative")
	}
	if p.Stock < 0 {
		return invalidf("stock must be non-negative")
	}
	for market, cost := range p.Shipping {
		if market == "" || !nonNegative(cost) {
			return invalidf("shipping for market %q must be non-negative", market)
		}
	}
	return nil
}

func nonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

const productColumns = `id, sku, name, description, manual_weight_g, selling_price, stock, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var (
		p      Product
		weight sql.NullFloat64
		price  sql.NullFloat64
	)
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &weight, &price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Product{}, err
	}
	if weight.Valid {
		p.ManualWeightG = &weight.Float64
	}
	if price.Valid {
		p.SellingPrice = &price.Float64
	}
	p.Lines = []pricing.BOMLine{}
	p.Shipping = map[string]float64{}
	return p, nil
}

// GetProduct loads one product with its lines and shipping costs.
func (s *Store) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, fmt.Errorf("product %d: %w", id, ErrNotFound)
		}
		return Product{}, fmt.Errorf("query product: %w", err)
	}

	byID := map[int64]*Product{p.ID: &p}
	if err := s.attachLines(ctx, byID, `WHERE product_id = ?`, id); err != nil {
		return Product{}, err
	}
	if err := s.attachShipping(ctx, byID, `WHERE product_id = ?`, id); err != nil {
		return Product{}, err
	}
	return p, nil
}

// ListProducts returns every product ordered by name.
func (s *Store) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	byID := make(map[int64]*Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	if err := s.attachLines(ctx, byID, ``); err != nil {
		return nil, err
	}
	if err := s.attachShipping(ctx, byID, ``); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) attachLines(ctx context.Context, byID map[int64]*Product, where string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, kind, name, attribute, amount, rate, quantity
		FROM product_bom_lines
		`+where, args...)
	if err != nil {
		return fmt.Errorf("query bom lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID int64
			kind      string
			l         pricing.BOMLine
		)
		if err := rows.Scan(&productID, &kind, &l.Name, &l.Attribute, &l.Amount, &l.Rate, &l.Quantity); err != nil {
			return fmt.Errorf("scan bom line: %w", err)
		}
		k, err := pricing.ParseKind(kind)
		if err != nil {
			return fmt.Errorf("product %d: %w", productID, err)
		}
		l.Kind = k
		if p, ok := byID[productID]; ok {
			p.Lines = append(p.Lines, l)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate bom lines: %w", err)
	}

	for _, p := range byID {
		sort.SliceStable(p.Lines, func(i, j int) bool { return p.Lines[i].Kind < p.Lines[j].Kind })
	}
	return nil
}

func (s *Store) attachShipping(ctx context.Context, byID map[int64]*Product, where string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, `SELECT product_id, market_id, cost FROM product_shipping `+where, args...)
	if err != nil {
		return fmt.Errorf("query product shipping: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID int64
			market    string
			cost      float64
		)
		if err := rows.Scan(&productID, &market, &cost); err != nil {
			return fmt.Errorf("scan product shipping: %w", err)
		}
		if p, ok := byID[productID]; ok {
			p.Shipping[market] = cost
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate product shipping: %w", err)
	}
	return nil
}

// UpsertProduct inserts the product when ID is zero and updates it otherwise.
// Lines and shipping costs are replaced wholesale. Stock is only set on insert;
// afterwards it changes through UpdateStock.
func (s *Store) UpsertProduct(ctx context.Context, p Product) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	id := p.ID
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if id == 0 {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO products (sku, name, description, manual_weight_g, selling_price, stock)
				VALUES (?, ?, ?, ?, ?, ?)
			`, strings.TrimSpace(p.SKU), strings.TrimSpace(p.Name), p.Description, nullable(p.ManualWeightG), nullable(p.SellingPrice), p.Stock)
			if err != nil {
				return wrapWrite(err, "insert product")
			}
			if id, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("insert product id: %w", err)
			}
		} else {
			res, err := tx.ExecContext(ctx, `
				UPDATE products
				SET
					sku = ?,
					name = ?,
					description = ?,
					manual_weight_g = ?,
					selling_price = ?,
					updated_at = CURRENT_TIMESTAMP
				WHERE id = ?
			`, strings.TrimSpace(p.SKU), strings.TrimSpace(p.Name), p.Description, nullable(p.ManualWeightG), nullable(p.SellingPrice), id)
			if err != nil {
				return wrapWrite(err, "update product")
			}
			if err := checkAffected(res, fmt.Sprintf("update product %d", id)); err != nil {
				return err
			}
		}
		return replaceChildren(ctx, tx, id, p)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func replaceChildren(ctx context.Context, tx *sql.Tx, id int64, p Product) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM product_bom_lines WHERE product_id = ?`, id); err != nil {
		return fmt.Errorf("clear bom lines: %w", err)
	}
	for _, l := range p.Lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO product_bom_lines (product_id, kind, name, attribute, amount, rate, quantity)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, l.Kind.String(), l.Name, l.Attribute, l.Amount, l.Rate, l.Quantity); err != nil {
			return fmt.Errorf("insert %s line: %w", l.Kind, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_shipping WHERE product_id = ?`, id); err != nil {
		return fmt.Errorf("clear product shipping: %w", err)
	}
	for market, cost := range p.Shipping {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO product_shipping (product_id, market_id, cost) VALUES (?, ?, ?)
		`, id, market, cost); err != nil {
			return fmt.Errorf("insert shipping for %s: %w", market, err)
		}
	}
	return nil
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// DeleteProduct removes a product together with its lines, shipping and images.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return checkAffected(res, fmt.Sprintf("delete product %d", id))
}

// UpdateStock adds delta to the product's stock and returns the new level.
func (s *Store) UpdateStock(ctx context.Context, id int64, delta int) (int, error) {
	var stock int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		stock, err = updateStockTx(ctx, tx, id, delta)
		return err
	})
	return stock, err
}

func updateStockTx(ctx context.Context, tx *sql.Tx, id int64, delta int) (int, error) {
	var stock int
	if err := tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = ?`, id).Scan(&stock); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("product %d: %w", id, ErrNotFound)
		}
		return 0, fmt.Errorf("query stock: %w", err)
	}
	next := stock + delta
	if next < 0 {
		return stock, fmt.Errorf("product %d has %d, cannot remove %d: %w", id, stock, -delta, ErrInsufficientStock)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE products SET stock = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, next, id); err != nil {
		return stock, fmt.Errorf("update stock: %w", err)
	}
	return next, nil
}

func productExistsTx(ctx context.Context, tx *sql.Tx, id int64) error {
	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM products WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check product: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return nil
}
