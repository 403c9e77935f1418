package seed

import (
	"database/sql"
	"fmt"

	"github.com/Simplici0/candle.works/internal/pricing"
	"github.com/Simplici0/candle.works/internal/store"
)

const demoSKU = "DEMO-8OZ"

// Config selects what the startup seed writes.
type Config struct {
	// DemoProduct adds a fully costed sample candle.
	DemoProduct bool
	LaborRate   float64
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

type starterMaterial struct {
	name         string
	kind         pricing.ComponentKind
	costPerUnit  float64
	reorderLevel float64
	notes        string
}

// Gram materials are priced per kg, the rest per unit.
var starterMaterials = []starterMaterial{
	{name: "Soy wax 464", kind: pricing.Wax, costPerUnit: 10, reorderLevel: 2000},
	{name: "Fragrance oil (generic)", kind: pricing.Fragrance, costPerUnit: 50, reorderLevel: 250},
	{name: "Cotton wick CD-10", kind: pricing.Wick, costPerUnit: 0.10, reorderLevel: 50},
	{name: "Amber jar 8oz", kind: pricing.PrimaryContainer, costPerUnit: 1.40, reorderLevel: 24},
	{name: "Gypsum (vessel casting)", kind: pricing.SecondaryContainer, costPerUnit: 20, reorderLevel: 1000},
	{name: "Kraft box", kind: pricing.Box, costPerUnit: 0.50, reorderLevel: 24},
	{name: "Tissue wrap", kind: pricing.Wrap, costPerUnit: 0.25, reorderLevel: 50},
	{name: "Business card", kind: pricing.BusinessCard, costPerUnit: 0.10, reorderLevel: 100, notes: "printed in batches of 500"},
}

// Run executes the startup seed in an idempotent way.
func Run(db *sql.DB, cfg Config) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	for _, m := range starterMaterials {
		if err := ensureMaterial(tx, m, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}
	if cfg.DemoProduct {
		if err := ensureDemoProduct(tx, cfg.LaborRate, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensureMaterial(tx *sql.Tx, m starterMaterial, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM materials WHERE name = ? LIMIT 1)`, m.name).Scan(&exists); err != nil {
		return fmt.Errorf("check material %q existence: %w", m.name, err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`
		INSERT INTO materials (name, kind, unit, cost_per_unit, stock_qty, reorder_level, notes, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.name, m.kind.String(), store.UnitFor(m.kind), m.costPerUnit, 0, m.reorderLevel, m.notes, true); err != nil {
		return fmt.Errorf("insert material %q: %w", m.name, err)
	}
	stats.Inserts++
	return nil
}

func ensureDemoProduct(tx *sql.Tx, laborRate float64, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM products WHERE sku = ? LIMIT 1)`, demoSKU).Scan(&exists); err != nil {
		return fmt.Errorf("check demo product existence: %w", err)
	}
	if exists {
		return nil
	}

	res, err := tx.Exec(`
		INSERT INTO products (sku, name, description)
		VALUES (?, ?, ?)
	`, demoSKU, "Demo candle 8oz", "Sample product with every component filled in.")
	if err != nil {
		return fmt.Errorf("insert demo product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert demo product id: %w", err)
	}

	lines := []pricing.BOMLine{
		{Kind: pricing.Wax, Name: "Soy wax 464", Amount: 100, Rate: 10, Quantity: 1},
		{Kind: pricing.Fragrance, Name: "Fragrance oil (generic)", Attribute: "lavender", Amount: 10, Rate: 50, Quantity: 1},
		{Kind: pricing.Wick, Name: "Cotton wick CD-10", Rate: 0.10, Quantity: 1},
		{Kind: pricing.PrimaryContainer, Name: "Amber jar 8oz", Rate: 1.40, Quantity: 1},
		{Kind: pricing.SecondaryContainer, Name: "Gypsum (vessel casting)", Amount: 50, Rate: 20, Quantity: 1},
		{Kind: pricing.Box, Name: "Kraft box", Rate: 0.50, Quantity: 1},
		{Kind: pricing.Wrap, Name: "Tissue wrap", Rate: 0.25, Quantity: 1},
		{Kind: pricing.BusinessCard, Name: "Business card", Rate: 0.10, Quantity: 1},
		{Kind: pricing.Labor, Amount: 15, Rate: laborRate, Quantity: 1},
	}
	for _, l := range lines {
		if _, err := tx.Exec(`
			INSERT INTO product_bom_lines (product_id, kind, name, attribute, amount, rate, quantity)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, l.Kind.String(), l.Name, l.Attribute, l.Amount, l.Rate, l.Quantity); err != nil {
			return fmt.Errorf("insert demo %s line: %w", l.Kind, err)
		}
	}
	stats.Inserts++
	return nil
}
