package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Order is a single stored order.
// DB columns: row_id, order_id, batch_id, latitude, longitude, subtotal,
//
//	ordered_at, address, geohash, created_at
type Order struct {
	RowID     uuid.UUID  `json:"-"`
	ID        string     `json:"id"`
	BatchID   *uuid.UUID `json:"batch_id,omitempty"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Subtotal  float64    `json:"subtotal"`
	Timestamp string     `json:"timestamp"`
	Address   string     `json:"address,omitempty"`
	Geohash   string     `json:"geohash,omitempty"`
	CreatedAt time.Time  `json:"created_at,omitzero"`
}

// NewOrderID returns an operator-facing id of the form ORD-XXXXXXXX.
func NewOrderID() string {
	id := uuid.New()
	return fmt.Sprintf("ORD-%s", strings.ToUpper(id.String()[:8]))
}

// ImportBatch is one all-or-nothing bulk submission.
// DB columns: id, filename, row_count, fingerprint, status, created_at, updated_at
type ImportBatch struct {
	ID          uuid.UUID `json:"batch_id"`
	Filename    string    `json:"filename"`
	RowCount    int       `json:"row_count"`
	Fingerprint string    `json:"fingerprint"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ImportResult is what the order-storage collaborator reports for a batch.
type ImportResult struct {
	BatchID  string          `json:"batch_id,omitempty"`
	Imported int             `json:"imported"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// Pagination holds pagination metadata.
type Pagination struct {
	Page         int `json:"page"`
	PageSize     int `json:"page_size"`
	TotalResults int `json:"total_results"`
	TotalPages   int `json:"total_pages"`
}

// NewPagination clamps page into range and computes the page count.
func NewPagination(page, pageSize, total int) Pagination {
	if pageSize <= 0 {
		pageSize = 50
	}
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	return Pagination{Page: page, PageSize: pageSize, TotalResults: total, TotalPages: totalPages}
}

// Bounds returns the half-open slice range [lo, hi) for the current page.
func (p Pagination) Bounds() (lo, hi int) {
	lo = (p.Page - 1) * p.PageSize
	hi = lo + p.PageSize
	if lo > p.TotalResults {
		lo = p.TotalResults
	}
	if hi > p.TotalResults {
		hi = p.TotalResults
	}
	return lo, hi
}
