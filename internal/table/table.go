// Package table maps document names to per-document vector tables.
//
// A table is identified by the hex SHA-256 of the document name and has a
// fixed schema: id (int32 page number), text (chunk) and vector (float32 of
// a fixed dimension). Tables are append-only and never dropped.
package table

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog/log"

	"page-rag/internal/models"
)

// Backend is a vector storage engine that holds one table per id.
type Backend interface {
	// CreateTable creates an empty table. It returns models.ErrTableExists
	// if a table with that id is already present.
	CreateTable(ctx context.Context, id string, dimension int) error

	// OpenTable opens an existing table. It returns models.ErrTableNotFound
	// if no table with that id exists.
	OpenTable(ctx context.Context, id string) (Handle, error)
}

// Handle is an open table in a Backend.
type Handle interface {
	// Dimension is the vector length the table was created with, or 0 when
	// the backend cannot tell.
	Dimension() int
	Insert(ctx context.Context, row models.Row) error
	Search(ctx context.Context, vector []float32, limit int) ([]models.Match, error)
	Count(ctx context.Context) (int, error)
}

// ID derives the table id for a document name.
func ID(documentName string) string {
	sum := sha256.Sum256([]byte(documentName))
	return hex.EncodeToString(sum[:])
}

// Manager creates and opens document tables on one Backend.
type Manager struct {
	backend   Backend
	dimension int
}

// NewManager wraps an already connected backend.
func NewManager(backend Backend, dimension int) (*Manager, error) {
	if backend == nil {
		return nil, models.ErrConnectionUnavailable
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dimension)
	}
	return &Manager{backend: backend, dimension: dimension}, nil
}

func (m *Manager) Dimension() int { return m.dimension }

// CreateTable creates the empty table for documentName.
func (m *Manager) CreateTable(ctx context.Context, documentName string) error {
	id := ID(documentName)
	if err := m.backend.CreateTable(ctx, id, m.dimension); err != nil {
		return fmt.Errorf("failed to create table %s for %q: %w", id, documentName, err)
	}
	return nil
}

// OpenTable opens the table for documentName.
func (m *Manager) OpenTable(ctx context.Context, documentName string) (*Table, error) {
	id := ID(documentName)
	h, err := m.backend.OpenTable(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to open table %s for %q: %w", id, documentName, err)
	}
	dim := h.Dimension()
	if dim == 0 {
		dim = m.dimension
	} else if dim != m.dimension {
		log.Warn().Str("table", id).Int("stored", dim).Int("configured", m.dimension).
			Msg("Table dimension differs from configuration, using stored dimension")
	}
	return &Table{id: id, name: documentName, dimension: dim, handle: h}, nil
}

// Table is an open document table.
type Table struct {
	id        string
	name      string
	dimension int
	handle    Handle
}

func (t *Table) ID() string     { return t.id }
func (t *Table) Name() string   { return t.name }
func (t *Table) Dimension() int { return t.dimension }

// Append stores one row. Vectors of the wrong length are rejected with
// models.ErrSchemaMismatch before reaching the backend.
func (t *Table) Append(ctx context.Context, row models.Row) error {
	if len(row.Vector) != t.dimension {
		return fmt.Errorf("%w: vector has %d values, table %s expects %d", models.ErrSchemaMismatch, len(row.Vector), t.id, t.dimension)
	}
	if err := t.handle.Insert(ctx, row); err != nil {
		return fmt.Errorf("failed to append row to table %s: %w", t.id, err)
	}
	return nil
}

// Nearest returns up to limit rows closest to vector, best first.
func (t *Table) Nearest(ctx context.Context, vector []float32, limit int) ([]models.Match, error) {
	if len(vector) != t.dimension {
		return nil, fmt.Errorf("%w: query vector has %d values, table %s expects %d", models.ErrSchemaMismatch, len(vector), t.id, t.dimension)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("search limit must be positive, got %d", limit)
	}
	matches, err := t.handle.Search(ctx, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search table %s: %w", t.id, err)
	}
	return matches, nil
}

func (t *Table) Count(ctx context.Context) (int, error) {
	return t.handle.Count(ctx)
}
