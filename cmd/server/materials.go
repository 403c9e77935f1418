package main

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/Simplici0/candle.works/internal/catalog"
	"github.com/Simplici0/candle.works/internal/pricing"
	"github.com/Simplici0/candle.works/internal/store"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxUploadBytes  = 16 << 20
)

type materialRequest struct {
	Name         string  `json:"name" validate:"required,max=120"`
	Kind         string  `json:"kind" validate:"required"`
	CostPerUnit  float64 `json:"cost_per_unit" validate:"gte=0"`
	StockQty     float64 `json:"stock_qty" validate:"gte=0"`
	ReorderLevel float64 `json:"reorder_level" validate:"gte=0"`
	Supplier     string  `json:"supplier"`
	Notes        string  `json:"notes"`
	Active       *bool   `json:"active"`
}

func (m materialRequest) material(id int64) (store.Material, error) {
	kind, err := pricing.ParseKind(m.Kind)
	if err != nil {
		return store.Material{}, badRequestf("%v", err)
	}
	active := true
	if m.Active != nil {
		active = *m.Active
	}
	return store.Material{
		ID:           id,
		Name:         m.Name,
		Kind:         kind,
		Unit:         store.UnitFor(kind),
		CostPerUnit:  m.CostPerUnit,
		StockQty:     m.StockQty,
		ReorderLevel: m.ReorderLevel,
		Supplier:     m.Supplier,
		Notes:        m.Notes,
		Active:       active,
	}, nil
}

type materialStockRequest struct {
	Delta *float64 `json:"delta" validate:"required"`
}

func (s *server) handleMaterialsList(w http.ResponseWriter, r *http.Request) {
	materials, err := s.store.ListMaterials(r.Context(), queryFlag(r, "all"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, materials)
}

func (s *server) handleMaterialsGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondMaterial(w, r, http.StatusOK, id)
}

func (s *server) handleMaterialsLowStock(w http.ResponseWriter, r *http.Request) {
	materials, err := s.store.ListLowStock(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, materials)
}

func (s *server) handleMaterialsCreate(w http.ResponseWriter, r *http.Request) {
	var req materialRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := req.material(0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.store.CreateMaterial(r.Context(), m)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondMaterial(w, r, http.StatusCreated, id)
}

// handleMaterialsUpdate rewrites a material. The stock quantity only moves
// through the stock endpoint.
func (s *server) handleMaterialsUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req materialRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := req.material(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.UpdateMaterial(r.Context(), m); err != nil {
		writeError(w, r, err)
		return
	}
	s.respondMaterial(w, r, http.StatusOK, id)
}

func (s *server) handleMaterialsStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req materialStockRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	qty, err := s.store.AdjustMaterialStock(r.Context(), id, *req.Delta)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"stock_qty": qty})
}

func (s *server) respondMaterial(w http.ResponseWriter, r *http.Request, status int, id int64) {
	m, err := s.store.GetMaterial(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, m)
}

func (s *server) handleMaterialsExport(w http.ResponseWriter, r *http.Request) {
	materials, err := s.store.ListMaterials(r.Context(), true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := catalog.ExportMaterialsXLSX(&buf, materials); err != nil {
		writeError(w, r, err)
		return
	}
	writeWorkbook(w, "materials.xlsx", buf.Bytes())
}

type materialsImportResponse struct {
	Updated int      `json:"updated"`
	Unknown []string `json:"unknown"`
}

// handleMaterialsImport reads an edited price list from the request body and
// applies the costs it carries.
func (s *server) handleMaterialsImport(w http.ResponseWriter, r *http.Request) {
	prices, err := catalog.ReadMaterialPrices(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	updated, unknown, err := s.store.SetMaterialCosts(r.Context(), prices)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if unknown == nil {
		unknown = []string{}
	}
	writeJSON(w, http.StatusOK, materialsImportResponse{Updated: updated, Unknown: unknown})
}
