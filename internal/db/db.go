package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"page-rag/internal/config"
	"page-rag/internal/models"
	"page-rag/internal/table"
)

const (
	duplicateTable = "42P07"

	// maxIdentLen is NAMEDATALEN-1; postgres truncates longer identifiers.
	maxIdentLen    = 63
	relationPrefix = "p_"
)

// relationName maps a table id to the relation that stores it. Every query
// goes through it so create, open, insert and search agree on the name.
func relationName(id string) string {
	name := relationPrefix + id
	if len(name) > maxIdentLen {
		name = name[:maxIdentLen]
	}
	return name
}

// pageRow is the bun model for a document table. The table name is given
// per query through ModelTableExpr.
type pageRow struct {
	bun.BaseModel `bun:"table:pages,alias:p"`
	ID            int32           `bun:"id,notnull"`
	Text          string          `bun:"text,notnull"`
	Vector        pgvector.Vector `bun:"vector,notnull"`
}

// Store is a table.Backend on Postgres with the pgvector extension.
type Store struct {
	db *bun.DB
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens dsn with the configured driver: bun's pgdriver or lib/pq.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case config.DriverPQ:
		return sql.Open("postgres", cfg.DSN)
	case config.DriverPG, "":
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN))), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// NewStore wraps db and makes sure the vector extension is installed.
func NewStore(ctx context.Context, db *bun.DB) (*Store, error) {
	if err := InitDB(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// dimension returns the declared length of the vector column of rel, and
// ok == false when rel does not exist.
func (s *Store) dimension(ctx context.Context, rel string) (dim int, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT a.atttypmod FROM pg_attribute a
		WHERE a.attrelid = CAST(to_regclass(?) AS oid) AND a.attname = 'vector' AND NOT a.attisdropped`,
		rel).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return dim, true, nil
}

// CreateTable creates the table for id with a vector(dimension) column.
func (s *Store) CreateTable(ctx context.Context, id string, dimension int) error {
	rel := relationName(id)
	_, err := s.db.ExecContext(ctx,
		`CREATE TABLE ? (id integer NOT NULL, text text NOT NULL, vector vector(?) NOT NULL)`,
		bun.Ident(rel), bun.Safe(strconv.Itoa(dimension)))
	if err != nil {
		if isDuplicateTable(err) {
			return models.ErrTableExists
		}
		return fmt.Errorf("failed to create table: %w", err)
	}
	log.Debug().Str("table", id).Str("relation", rel).Int("dimension", dimension).Msg("Created postgres table")
	return nil
}

func (s *Store) OpenTable(ctx context.Context, id string) (table.Handle, error) {
	rel := relationName(id)
	dim, ok, err := s.dimension(ctx, rel)
	if err != nil {
		return nil, fmt.Errorf("failed to look up table: %w", err)
	}
	if !ok {
		return nil, models.ErrTableNotFound
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: relation %s has no vector dimension", models.ErrSchemaMismatch, rel)
	}
	return &handle{db: s.db, rel: rel, dimension: dim}, nil
}

func isDuplicateTable(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == duplicateTable
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == duplicateTable
	}
	return false
}

type handle struct {
	db        *bun.DB
	rel       string
	dimension int
}

func (h *handle) Dimension() int { return h.dimension }

func (h *handle) Insert(ctx context.Context, row models.Row) error {
	r := &pageRow{
		ID:     row.ID,
		Text:   row.Text,
		Vector: pgvector.NewVector(row.Vector),
	}
	_, err := h.db.NewInsert().Model(r).ModelTableExpr("?", bun.Ident(h.rel)).Exec(ctx)
	return err
}

func (h *handle) Search(ctx context.Context, vector []float32, limit int) ([]models.Match, error) {
	var rows []pageRow
	err := h.db.NewSelect().
		Model(&rows).
		ModelTableExpr("? AS p", bun.Ident(h.rel)).
		Column("id", "text").
		OrderExpr("vector <-> ?", pgvector.NewVector(vector)).
		Limit(limit).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	matches := make([]models.Match, len(rows))
	for i, r := range rows {
		matches[i] = models.Match{ID: r.ID, Text: r.Text}
	}
	return matches, nil
}

func (h *handle) Count(ctx context.Context) (int, error) {
	return h.db.NewSelect().TableExpr("?", bun.Ident(h.rel)).Count(ctx)
}
