package main

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/candle.works/internal/pricing"
	"github.com/Simplici0/candle.works/internal/store"
)

const maxImageBytes = 8 << 20

type productRequest struct {
	SKU           string             `json:"sku" validate:"required,max=64"`
	Name          string             `json:"name" validate:"required,max=140"`
	Description   string             `json:"description"`
	Lines         []pricing.BOMLine  `json:"lines"`
	ManualWeightG *float64           `json:"manual_weight_g" validate:"omitempty,gte=0"`
	SellingPrice  *float64           `json:"selling_price" validate:"omitempty,gte=0"`
	Stock         int                `json:"stock" validate:"gte=0"`
	Shipping      map[string]float64 `json:"shipping" validate:"dive,keys,required,endkeys,gte=0"`
}

func (p productRequest) product(id int64) store.Product {
	return store.Product{
		ID:            id,
		SKU:           p.SKU,
		Name:          p.Name,
		Description:   p.Description,
		Lines:         p.Lines,
		ManualWeightG: p.ManualWeightG,
		SellingPrice:  p.SellingPrice,
		Stock:         p.Stock,
		Shipping:      p.Shipping,
	}
}

type stockRequest struct {
	Delta *int `json:"delta" validate:"required"`
}

func (s *server) handleProductsList(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *server) handleProductsCreate(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.store.UpsertProduct(r.Context(), req.product(0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondProduct(w, r, http.StatusCreated, id)
}

func (s *server) handleProductGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondProduct(w, r, http.StatusOK, id)
}

// handleProductUpdate replaces the product. Stock in the body is ignored;
// it changes through the stock endpoint and sales.
func (s *server) handleProductUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req productRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.store.UpsertProduct(r.Context(), req.product(id)); err != nil {
		writeError(w, r, err)
		return
	}
	s.respondProduct(w, r, http.StatusOK, id)
}

func (s *server) handleProductDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.DeleteProduct(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleProductStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req stockRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	stock, err := s.store.UpdateStock(r.Context(), id, *req.Delta)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"stock": stock})
}

func (s *server) respondProduct(w http.ResponseWriter, r *http.Request, status int, id int64) {
	p, err := s.store.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, p)
}

func (s *server) handleImagesList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	images, err := s.store.ListProductImages(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, images)
}

// handleImageUpload takes a multipart form with the photo in the "image" field.
func (s *server) handleImageUpload(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, badRequestf("image field: %v", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, badRequestf("read image: %v", err))
		return
	}
	img, err := s.store.AddProductImage(r.Context(), id, header.Filename, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

func (s *server) handleImageGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	img, err := s.store.GetProductImage(r.Context(), id, chi.URLParam(r, "imageID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": img.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

func (s *server) handleImageDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.DeleteProductImage(r.Context(), id, chi.URLParam(r, "imageID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
