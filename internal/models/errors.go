package models

import "errors"

// Sentinel errors shared by the storage backends and the pipelines.
var (
	// ErrConnectionUnavailable is returned when a component is built without a storage handle.
	ErrConnectionUnavailable = errors.New("storage connection unavailable")

	// ErrTableNotFound is returned when opening a table that was never created.
	ErrTableNotFound = errors.New("table not found")

	// ErrTableExists is returned when creating a table that already exists.
	ErrTableExists = errors.New("table already exists")

	// ErrEmbeddingFailed wraps transport, status and decoding failures of the embedding service.
	ErrEmbeddingFailed = errors.New("embedding request failed")

	// ErrEmptyResult is returned when a nearest-neighbor search yields no rows.
	ErrEmptyResult = errors.New("empty result set")

	// ErrSchemaMismatch is returned when a row does not fit the table schema.
	ErrSchemaMismatch = errors.New("schema mismatch")
)
