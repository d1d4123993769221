package chromemdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"page-rag/internal/models"
	"page-rag/internal/table"
)

func unit(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}

func TestVectorDBManager_Tables(t *testing.T) {
	ctx := context.Background()
	m, err := NewVectorDBManager("", false)
	if err != nil {
		t.Fatalf("NewVectorDBManager: %v", err)
	}

	if _, err := m.OpenTable(ctx, "t1"); !errors.Is(err, models.ErrTableNotFound) {
		t.Fatalf("OpenTable on missing table: error = %v", err)
	}
	if err := m.CreateTable(ctx, "t1", 4); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := m.CreateTable(ctx, "t1", 4); !errors.Is(err, models.ErrTableExists) {
		t.Fatalf("duplicate CreateTable: error = %v", err)
	}

	h, err := m.OpenTable(ctx, "t1")
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}
	got, err := h.Search(ctx, unit(4, 0), 1)
	if err != nil {
		t.Fatalf("Search on empty table: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Search on empty table returned %v", got)
	}

	rows := []models.Row{
		{ID: 1, Text: "alpha", Vector: unit(4, 0)},
		{ID: 2, Text: "beta", Vector: unit(4, 1)},
		{ID: 2, Text: "gamma", Vector: unit(4, 2)},
	}
	for _, r := range rows {
		if err := h.Insert(ctx, r); err != nil {
			t.Fatalf("Insert(%s): %v", r.Text, err)
		}
	}
	if n, _ := h.Count(ctx); n != 3 {
		t.Fatalf("Count = %d, want 3", n)
	}

	got, err = h.Search(ctx, []float32{0.1, 0.2, 0.9, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Text != "gamma" || got[0].ID != 2 {
		t.Fatalf("Search = %+v, want gamma on page 2", got)
	}

	got, err = h.Search(ctx, unit(4, 0), 10)
	if err != nil {
		t.Fatalf("Search with large limit: %v", err)
	}
	if len(got) != 3 || got[0].Text != "alpha" {
		t.Fatalf("Search = %+v, want 3 rows led by alpha", got)
	}
}

func TestVectorDBManager_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "chromem")

	m, err := NewVectorDBManager(dir, false)
	if err != nil {
		t.Fatalf("NewVectorDBManager: %v", err)
	}
	if err := m.CreateTable(ctx, "doc", 2); err != nil {
		t.Fatal(err)
	}
	h, _ := m.OpenTable(ctx, "doc")
	if err := h.Insert(ctx, models.Row{ID: 5, Text: "persisted", Vector: []float32{0, 1}}); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewVectorDBManager(dir, false)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	h, err = reopened.OpenTable(ctx, "doc")
	if err != nil {
		t.Fatalf("OpenTable after reopen: %v", err)
	}
	if h.Dimension() != 2 {
		t.Fatalf("Dimension after reopen = %d, want 2", h.Dimension())
	}
	got, err := h.Search(ctx, []float32{0, 1}, 1)
	if err != nil || len(got) != 1 || got[0].ID != 5 || got[0].Text != "persisted" {
		t.Fatalf("Search after reopen = %+v, %v", got, err)
	}
	if err := reopened.CreateTable(ctx, "doc", 2); !errors.Is(err, models.ErrTableExists) {
		t.Fatalf("CreateTable after reopen: error = %v, want ErrTableExists", err)
	}
}

func TestVectorDBManager_ExportImport(t *testing.T) {
	ctx := context.Background()
	src, _ := NewVectorDBManager("", false)
	if err := src.CreateTable(ctx, "doc", 2); err != nil {
		t.Fatal(err)
	}
	h, _ := src.OpenTable(ctx, "doc")
	if err := h.Insert(ctx, models.Row{ID: 9, Text: "exported", Vector: []float32{1, 0}}); err != nil {
		t.Fatal(err)
	}

	file := filepath.Join(t.TempDir(), "doc.gob")
	if err := src.Export(file, ""); err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst, _ := NewVectorDBManager("", false)
	if err := dst.Import(file, ""); err != nil {
		t.Fatalf("Import: %v", err)
	}
	h, err := dst.OpenTable(ctx, "doc")
	if err != nil {
		t.Fatalf("OpenTable after import: %v", err)
	}
	if n, _ := h.Count(ctx); n != 1 {
		t.Fatalf("Count after import = %d, want 1", n)
	}
}

func TestVectorDBManager_DimensionFixedAtCreation(t *testing.T) {
	ctx := context.Background()
	m, _ := NewVectorDBManager("", false)

	created, _ := table.NewManager(m, 4)
	if err := created.CreateTable(ctx, "book.pdf"); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	reopened, _ := table.NewManager(m, 3)
	tbl, err := reopened.OpenTable(ctx, "book.pdf")
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}
	if tbl.Dimension() != 4 {
		t.Fatalf("Dimension = %d, want 4", tbl.Dimension())
	}
	err = tbl.Append(ctx, models.Row{ID: 1, Text: "short", Vector: []float32{1, 0, 0}})
	if !errors.Is(err, models.ErrSchemaMismatch) {
		t.Fatalf("Append 3 floats into 4-dim table: error = %v, want ErrSchemaMismatch", err)
	}
	if n, _ := tbl.Count(ctx); n != 0 {
		t.Fatalf("Count = %d, want 0", n)
	}
}

func TestVectorDBManager_ZeroVector(t *testing.T) {
	ctx := context.Background()
	m, _ := NewVectorDBManager("", false)
	if err := m.CreateTable(ctx, "t", 3); err != nil {
		t.Fatal(err)
	}
	h, _ := m.OpenTable(ctx, "t")

	if err := h.Insert(ctx, models.Row{ID: 1, Text: "blank", Vector: []float32{0, 0, 0}}); !errors.Is(err, models.ErrSchemaMismatch) {
		t.Fatalf("Insert zero vector: error = %v, want ErrSchemaMismatch", err)
	}
	if n, _ := h.Count(ctx); n != 0 {
		t.Fatalf("Count = %d, want 0", n)
	}
	if _, err := h.Search(ctx, []float32{0, 0, 0}, 1); !errors.Is(err, models.ErrSchemaMismatch) {
		t.Fatalf("Search zero vector: error = %v, want ErrSchemaMismatch", err)
	}
}
