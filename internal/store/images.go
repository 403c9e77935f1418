package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrNotImage is returned when uploaded bytes are not a recognised image.
var ErrNotImage = errors.New("not an image")

// Image is a product photo. Data is omitted from listings.
type Image struct {
	ID          string `json:"id"`
	ProductID   int64  `json:"product_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
	CreatedAt   string `json:"created_at"`
}

// AddProductImage stores data as an image of the product. The content type is
// sniffed from the bytes, the filename extension is not trusted.
func (s *Store) AddProductImage(ctx context.Context, productID int64, filename string, data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, fmt.Errorf("empty upload: %w", ErrNotImage)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return Image{}, fmt.Errorf("detected %s: %w", mt.String(), ErrNotImage)
	}

	img := Image{
		ID:          uuid.NewString(),
		ProductID:   productID,
		Filename:    cleanFilename(filename, mt.Extension()),
		ContentType: mt.String(),
		Data:        data,
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := productExistsTx(ctx, tx, productID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO product_images (id, product_id, filename, content_type, data)
			VALUES (?, ?, ?, ?, ?)
		`, img.ID, img.ProductID, img.Filename, img.ContentType, img.Data); err != nil {
			return fmt.Errorf("insert image: %w", err)
		}
		return tx.QueryRowContext(ctx, `SELECT created_at FROM product_images WHERE id = ?`, img.ID).Scan(&img.CreatedAt)
	})
	if err != nil {
		return Image{}, err
	}
	return img, nil
}

func cleanFilename(name, ext string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == "" {
		return "image" + ext
	}
	return name
}

// ListProductImages returns image metadata for a product, oldest first.
func (s *Store) ListProductImages(ctx context.Context, productID int64) ([]Image, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, filename, content_type, created_at
		FROM product_images
		WHERE product_id = ?
		ORDER BY created_at, id
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	images := make([]Image, 0)
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.ProductID, &img.Filename, &img.ContentType, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return images, nil
}

// GetProductImage returns one image including its bytes.
func (s *Store) GetProductImage(ctx context.Context, productID int64, id string) (Image, error) {
	var img Image
	err := s.db.QueryRowContext(ctx, `
		SELECT id, product_id, filename, content_type, data, created_at
		FROM product_images
		WHERE product_id = ? AND id = ?
	`, productID, id).Scan(&img.ID, &img.ProductID, &img.Filename, &img.ContentType, &img.Data, &img.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Image{}, fmt.Errorf("image %s: %w", id, ErrNotFound)
		}
		return Image{}, fmt.Errorf("query image: %w", err)
	}
	return img, nil
}

func (s *Store) DeleteProductImage(ctx context.Context, productID int64, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM product_images WHERE product_id = ? AND id = ?`, productID, id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return checkAffected(res, "delete image "+id)
}
