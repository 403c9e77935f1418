package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Simplici0/candle.works/internal/pricing"
)

// Material units.
const (
	UnitGram = "g"
	UnitEach = "unit"
)

// Material is a raw material in stock. Gram materials are costed per kilogram,
// everything else per unit, matching the BOM line of the same kind.
type Material struct {
	ID           int64                 `json:"id"`
	Name         string                `json:"name"`
	Kind         pricing.ComponentKind `json:"kind"`
	Unit         string                `json:"unit"`
	CostPerUnit  float64               `json:"cost_per_unit"`
	StockQty     float64               `json:"stock_qty"`
	ReorderLevel float64               `json:"reorder_level"`
	Supplier     string                `json:"supplier"`
	Notes        string                `json:"notes"`
	Active       bool                  `json:"active"`
	CreatedAt    string                `json:"created_at,omitempty"`
	UpdatedAt    string                `json:"updated_at,omitempty"`
}

// UnitFor returns the stock unit that matches kind k.
func UnitFor(k pricing.ComponentKind) string {
	if k.Unit().AmountUnit == "g" {
		return UnitGram
	}
	return UnitEach
}

func (m Material) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return invalidf("material name is required")
	}
	if !m.Kind.Valid() || m.Kind == pricing.Labor {
		return invalidf("material kind %q is not a stockable component", m.Kind)
	}
	if m.Unit != UnitGram && m.Unit != UnitEach {
		return invalidf("unit must be %q or %q", UnitGram, UnitEach)
	}
	if !nonNegative(m.CostPerUnit) || !nonNegative(m.StockQty) || !nonNegative(m.ReorderLevel) {
		return invalidf("material %q has a negative or invalid value", m.Name)
	}
	return nil
}

const materialColumns = `id, name, kind, unit, cost_per_unit, stock_qty, reorder_level, supplier, notes, active, created_at, updated_at`

func scanMaterial(row rowScanner) (Material, error) {
	var (
		m    Material
		kind string
	)
	if err := row.Scan(&m.ID, &m.Name, &kind, &m.Unit, &m.CostPerUnit, &m.StockQty, &m.ReorderLevel, &m.Supplier, &m.Notes, &m.Active, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return Material{}, err
	}
	k, err := pricing.ParseKind(kind)
	if err != nil {
		return Material{}, err
	}
	m.Kind = k
	return m, nil
}

func (s *Store) CreateMaterial(ctx context.Context, m Material) (int64, error) {
	if m.Unit == "" {
		m.Unit = UnitFor(m.Kind)
	}
	if err := m.Validate(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO materials (name, kind, unit, cost_per_unit, stock_qty, reorder_level, supplier, notes, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, strings.TrimSpace(m.Name), m.Kind.String(), m.Unit, m.CostPerUnit, m.StockQty, m.ReorderLevel, m.Supplier, m.Notes, m.Active)
	if err != nil {
		return 0, wrapWrite(err, "insert material")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert material id: %w", err)
	}
	return id, nil
}

// UpdateMaterial rewrites everything but the stock quantity.
func (s *Store) UpdateMaterial(ctx context.Context, m Material) error {
	if m.Unit == "" {
		m.Unit = UnitFor(m.Kind)
	}
	if err := m.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE materials
		SET
			name = ?,
			kind = ?,
			unit = ?,
			cost_per_unit = ?,
			reorder_level = ?,
			supplier = ?,
			notes = ?,
			active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, strings.TrimSpace(m.Name), m.Kind.String(), m.Unit, m.CostPerUnit, m.ReorderLevel, m.Supplier, m.Notes, m.Active, m.ID)
	if err != nil {
		return wrapWrite(err, "update material")
	}
	return checkAffected(res, fmt.Sprintf("update material %d", m.ID))
}

func (s *Store) GetMaterial(ctx context.Context, id int64) (Material, error) {
	m, err := scanMaterial(s.db.QueryRowContext(ctx, `SELECT `+materialColumns+` FROM materials WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Material{}, fmt.Errorf("material %d: %w", id, ErrNotFound)
		}
		return Material{}, fmt.Errorf("query material: %w", err)
	}
	return m, nil
}

// ListMaterials returns materials ordered by name. Inactive
// materials are included only when includeInactive is set.
func (s *Store) ListMaterials(ctx context.Context, includeInactive bool) ([]Material, error) {
	return s.queryMaterials(ctx, `
		SELECT `+materialColumns+`
		FROM materials
		WHERE (? OR active)
		ORDER BY name COLLATE NOCASE
	`, includeInactive)
}

// ListLowStock returns active materials at or below their reorder level.
func (s *Store) ListLowStock(ctx context.Context) ([]Material, error) {
	return s.queryMaterials(ctx, `
		SELECT `+materialColumns+`
		FROM materials
		WHERE active AND stock_qty <= reorder_level
		ORDER BY name COLLATE NOCASE
	`)
}

func (s *Store) queryMaterials(ctx context.Context, query string, args ...any) ([]Material, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query materials: %w", err)
	}
	defer rows.Close()

	materials := make([]Material, 0)
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		materials = append(materials, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate materials: %w", err)
	}
	return materials, nil
}

// AdjustMaterialStock adds delta to the material's stock and returns the new quantity.
func (s *Store) AdjustMaterialStock(ctx context.Context, id int64, delta float64) (float64, error) {
	var qty float64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT stock_qty FROM materials WHERE id = ?`, id).Scan(&qty); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("material %d: %w", id, ErrNotFound)
			}
			return fmt.Errorf("query material stock: %w", err)
		}
		next := qty + delta
		if next < 0 {
			return fmt.Errorf("material %d has %g, cannot remove %g: %w", id, qty, -delta, ErrInsufficientStock)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE materials SET stock_qty = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, next, id); err != nil {
			return fmt.Errorf("update material stock: %w", err)
		}
		qty = next
		return nil
	})
	if err != nil {
		return 0, err
	}
	return qty, nil
}

// SetMaterialCosts updates the cost of materials by name. Names that do not
// exist are reported back and left alone.
func (s *Store) SetMaterialCosts(ctx context.Context, costs map[string]float64) (updated int, unknown []string, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for name, cost := range costs {
			if !nonNegative(cost) {
				return invalidf("cost for %q must be non-negative", name)
			}
			res, err := tx.ExecContext(ctx, `
				UPDATE materials SET cost_per_unit = ?, updated_at = CURRENT_TIMESTAMP WHERE name = ?
			`, cost, strings.TrimSpace(name))
			if err != nil {
				return fmt.Errorf("update cost for %q: %w", name, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("update cost for %q: %w", name, err)
			}
			if n == 0 {
				unknown = append(unknown, name)
				continue
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	sort.Strings(unknown)
	return updated, unknown, nil
}
