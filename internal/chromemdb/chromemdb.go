package chromemdb

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"page-rag/internal/helper"
	"page-rag/internal/models"
	"page-rag/internal/table"
)

const (
	pageKey      = "id"
	kindKey      = "kind"
	dimensionKey = "dimension"

	kindRow    = "row"
	kindSchema = "schema"

	// schemaDocID holds the table dimension. chromem keeps collection
	// metadata private, so the dimension is stored as a document.
	schemaDocID = "__schema__"
)

// VectorDBManager keeps one chromem collection per document table.
type VectorDBManager struct {
	db       *chromem.DB
	dbPath   string
	compress bool

	// chromem overwrites on CreateCollection, so create-if-absent is done under mu
	mu sync.Mutex
}

// NewVectorDBManager opens a persistent database under dbPath, or an
// in-memory one when dbPath is empty.
func NewVectorDBManager(dbPath string, compress bool) (*VectorDBManager, error) {
	var db *chromem.DB
	if dbPath == "" {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(dbPath); err != nil {
			return nil, err
		}
		var err error
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return &VectorDBManager{
		db:       db,
		dbPath:   dbPath,
		compress: compress,
	}, nil
}

// CreateTable creates an empty collection named id and records its dimension.
func (m *VectorDBManager) CreateTable(ctx context.Context, id string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d", dimension)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db.GetCollection(id, nil) != nil {
		return models.ErrTableExists
	}
	metadata := map[string]string{dimensionKey: strconv.Itoa(dimension)}
	c, err := m.db.CreateCollection(id, metadata, nil)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	marker := make([]float32, dimension)
	marker[0] = 1
	schema := chromem.Document{
		ID:        schemaDocID,
		Metadata:  map[string]string{kindKey: kindSchema, dimensionKey: strconv.Itoa(dimension)},
		Embedding: marker,
	}
	if err := c.AddDocument(ctx, schema); err != nil {
		_ = m.db.DeleteCollection(id)
		return fmt.Errorf("failed to record table dimension: %w", err)
	}
	log.Debug().Str("table", id).Int("dimension", dimension).Msg("Created collection")
	return nil
}

// OpenTable returns the collection named id.
func (m *VectorDBManager) OpenTable(ctx context.Context, id string) (table.Handle, error) {
	c := m.db.GetCollection(id, nil)
	if c == nil {
		return nil, models.ErrTableNotFound
	}

	h := &collection{c: c}
	if schema, err := c.GetByID(ctx, schemaDocID); err == nil {
		dim, err := strconv.Atoi(schema.Metadata[dimensionKey])
		if err != nil {
			return nil, fmt.Errorf("%w: collection %s has dimension %q", models.ErrSchemaMismatch, id, schema.Metadata[dimensionKey])
		}
		h.dimension = dim
		h.hasSchema = true
	}
	return h, nil
}

// export to file
func (m *VectorDBManager) Export(filePath, encryptionKey string, ids ...string) error {
	if filePath == "" {
		return fmt.Errorf("file path is required")
	}
	log.Debug().Str("file", filePath).Bool("compress", m.compress).Strs("tables", ids).Msg("Exporting collections")
	if err := m.db.ExportToFile(filePath, m.compress, encryptionKey, ids...); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// import from file
func (m *VectorDBManager) Import(filePath, encryptionKey string, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.ImportFromFile(filePath, encryptionKey, ids...); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	return nil
}

type collection struct {
	c         *chromem.Collection
	dimension int
	hasSchema bool
}

func (c *collection) Dimension() int { return c.dimension }

// Insert stores row. Zero vectors are rejected since chromem normalizes
// every embedding and would store NaNs.
func (c *collection) Insert(ctx context.Context, row models.Row) error {
	if isZero(row.Vector) {
		return fmt.Errorf("%w: zero vector cannot be normalized", models.ErrSchemaMismatch)
	}
	docID, err := helper.GenerateUUID()
	if err != nil {
		return err
	}
	doc := chromem.Document{
		ID:      docID,
		Content: row.Text,
		Metadata: map[string]string{
			kindKey: kindRow,
			pageKey: strconv.FormatInt(int64(row.ID), 10),
		},
		Embedding: row.Vector,
	}
	if err := c.c.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	return nil
}

// Search queries rows by cosine similarity. chromem rejects nResults above
// the document count, so the limit is clamped and an empty collection yields no rows.
func (c *collection) Search(ctx context.Context, vector []float32, limit int) ([]models.Match, error) {
	if isZero(vector) {
		return nil, fmt.Errorf("%w: zero query vector", models.ErrSchemaMismatch)
	}
	rows, _ := c.Count(ctx)
	n := min(limit, rows)
	if n == 0 {
		return nil, nil
	}
	results, err := c.c.QueryEmbedding(ctx, vector, n, map[string]string{kindKey: kindRow}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	matches := make([]models.Match, 0, len(results))
	for _, r := range results {
		page, err := strconv.ParseInt(r.Metadata[pageKey], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: document %s has page id %q", models.ErrSchemaMismatch, r.ID, r.Metadata[pageKey])
		}
		matches = append(matches, models.Match{ID: int32(page), Text: r.Content})
	}
	return matches, nil
}

// Count returns the number of rows, not counting the schema document.
func (c *collection) Count(_ context.Context) (int, error) {
	n := c.c.Count()
	if c.hasSchema {
		n--
	}
	return n, nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
