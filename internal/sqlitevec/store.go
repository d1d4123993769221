package sqlitevec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/rs/zerolog/log"

	"page-rag/internal/models"
	"page-rag/internal/table"
)

var (
	tableIDPattern  = regexp.MustCompile(`^[0-9a-zA-Z_]+$`)
	vectorCheckSize = regexp.MustCompile(`length\(vector\) = (\d+)`)
)

// Store is a table.Backend backed by one SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens the SQLite database at path. ":memory:" (or "") gives a
// private in-memory database held on a single connection.
func NewStore(path string) (*Store, error) {
	if err := registerFunctions(); err != nil {
		return nil, fmt.Errorf("failed to register vector functions: %w", err)
	}
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		pragmas := []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
			"PRAGMA busy_timeout = 5000",
		}
		for _, p := range pragmas {
			if _, err := db.Exec(p); err != nil {
				db.Close()
				return nil, fmt.Errorf("pragma failed: %w", err)
			}
		}
	}

	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error { return s.db.Close() }
func (s *Store) Path() string { return s.path }

func quote(id string) (string, error) {
	if !tableIDPattern.MatchString(id) {
		return "", fmt.Errorf("invalid table id %q", id)
	}
	return `"` + id + `"`, nil
}

type querier interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// schema returns the CREATE statement of table id, or ok == false when it
// does not exist.
func (s *Store) schema(ctx context.Context, q querier, id string) (ddl string, ok bool, err error) {
	err = q.QueryRowContext(ctx, `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, id).Scan(&ddl)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return ddl, true, nil
}

// dimensionOf reads the vector length out of the CHECK constraint.
func dimensionOf(ddl string) (int, bool) {
	m := vectorCheckSize.FindStringSubmatch(ddl)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n%4 != 0 {
		return 0, false
	}
	return n / 4, true
}

// CreateTable creates the table for id with a vector length check.
func (s *Store) CreateTable(ctx context.Context, id string, dimension int) error {
	name, err := quote(id)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, ok, err := s.schema(ctx, tx, id)
	if err != nil {
		return fmt.Errorf("failed to look up table: %w", err)
	}
	if ok {
		return models.ErrTableExists
	}

	ddl := fmt.Sprintf(`CREATE TABLE %s (
    id INTEGER NOT NULL,
    text TEXT NOT NULL,
    vector BLOB NOT NULL CHECK (length(vector) = %d)
)`, name, dimension*4)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Debug().Str("table", id).Int("dimension", dimension).Msg("Created sqlite table")
	return nil
}

// OpenTable checks that id exists and returns a handle to it.
func (s *Store) OpenTable(ctx context.Context, id string) (table.Handle, error) {
	name, err := quote(id)
	if err != nil {
		return nil, err
	}
	ddl, ok, err := s.schema(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up table: %w", err)
	}
	if !ok {
		return nil, models.ErrTableNotFound
	}
	dim, ok := dimensionOf(ddl)
	if !ok {
		return nil, fmt.Errorf("%w: table %s has no vector length check", models.ErrSchemaMismatch, id)
	}
	return &handle{db: s.db, name: name, dimension: dim}, nil
}

type handle struct {
	db        *sql.DB
	name      string
	dimension int
}

func (h *handle) Dimension() int { return h.dimension }

func (h *handle) Insert(ctx context.Context, row models.Row) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO `+h.name+` (id, text, vector) VALUES (?, ?, ?)`,
		row.ID, row.Text, EncodeVector(row.Vector))
	if err != nil {
		return fmt.Errorf("failed to insert row: %w", err)
	}
	return nil
}

func (h *handle) Search(ctx context.Context, vector []float32, limit int) ([]models.Match, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, text FROM `+h.name+` ORDER BY vec_l2(vector, ?) ASC LIMIT ?`,
		EncodeVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer rows.Close()

	var matches []models.Match
	for rows.Next() {
		var m models.Match
		if err := rows.Scan(&m.ID, &m.Text); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

func (h *handle) Count(ctx context.Context) (int, error) {
	var n int
	if err := h.db.QueryRowContext(ctx, `SELECT count(*) FROM `+h.name).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
