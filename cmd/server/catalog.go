package main

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/hlog"

	"github.com/Simplici0/candle.works/internal/catalog"
	"github.com/Simplici0/candle.works/internal/store"
)

type catalogImportResponse struct {
	catalog.Import
	// Saved and Existing are filled only when the import is saved.
	Saved    []int64  `json:"saved,omitempty"`
	Existing []string `json:"existing,omitempty"`
}

// handleCatalogImport parses an Etsy listings CSV from the request body.
// With ?save=true the products are stored; SKUs already in the catalog are
// left untouched and reported back.
func (s *server) handleCatalogImport(w http.ResponseWriter, r *http.Request) {
	imp, err := catalog.ImportEtsyCSV(http.MaxBytesReader(w, r.Body, maxUploadBytes), catalog.DefaultTemplate(s.settings.LaborRate))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	resp := catalogImportResponse{Import: imp}
	if !queryFlag(r, "save") {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	ctx := r.Context()
	for _, p := range imp.Products {
		id, err := s.store.UpsertProduct(ctx, p)
		switch {
		case errors.Is(err, store.ErrDuplicate):
			resp.Existing = append(resp.Existing, p.SKU)
		case err != nil:
			writeError(w, r, fmt.Errorf("save %s: %w", p.SKU, err))
			return
		default:
			resp.Saved = append(resp.Saved, id)
		}
	}
	hlog.FromRequest(r).Info().
		Int("saved", len(resp.Saved)).
		Int("existing", len(resp.Existing)).
		Int("skipped", len(imp.Skipped)).
		Msg("catalog imported")
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleCatalogExport(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	rows := make([]catalog.Row, 0, len(products))
	for _, p := range products {
		sess := s.newSession()
		rows = append(rows, catalog.Row{
			SKU:    p.SKU,
			Name:   p.Name,
			Stock:  p.Stock,
			Result: sess.Load(p),
		})
	}

	var buf bytes.Buffer
	if err := catalog.ExportXLSX(&buf, s.markets(), rows); err != nil {
		writeError(w, r, err)
		return
	}
	writeWorkbook(w, "catalog.xlsx", buf.Bytes())
}

func writeWorkbook(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
