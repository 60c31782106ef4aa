// Package postgres stores chunk vectors in PostgreSQL with the pgvector
// extension and answers cosine-similarity queries in the database.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
)

// DefaultTable is the table used when Config.Table is empty.
const DefaultTable = "paperlens_vectors"

// Config configures the store.
type Config struct {
	// DSN is the PostgreSQL connection string.
	DSN string

	// Table is the vector table name (default paperlens_vectors).
	Table string

	// Dimensions is the vector size fixed in the column type.
	Dimensions int
}

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore implements driven.VectorStore on pgvector.
type VectorStore struct {
	pool  *pgxpool.Pool
	table string
	dims  int
}

// NewVectorStore connects, verifies the connection and creates the
// table and indexes if needed.
func NewVectorStore(ctx context.Context, cfg Config) (*VectorStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: postgres DSN is required", domain.ErrInvalidInput)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", domain.ErrInvalidInput)
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if !validIdentifier(cfg.Table) {
		return nil, fmt.Errorf("%w: invalid table name %q", domain.ErrInvalidInput, cfg.Table)
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &VectorStore{pool: pool, table: cfg.Table, dims: cfg.Dimensions}
	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *VectorStore) initialize(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;

		CREATE TABLE IF NOT EXISTS %[1]s (
			chunk_id    TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			section     TEXT NOT NULL,
			generation  BIGINT NOT NULL,
			embedding   vector(%[2]d) NOT NULL
		);

		CREATE INDEX IF NOT EXISTS %[1]s_document_idx ON %[1]s (document_id);
		CREATE INDEX IF NOT EXISTS %[1]s_section_idx ON %[1]s (section);
		CREATE INDEX IF NOT EXISTS %[1]s_embedding_idx ON %[1]s
			USING hnsw (embedding vector_cosine_ops);
	`, s.table, s.dims))
	if err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}
	return nil
}

// Upsert inserts or replaces vectors in a single batch.
func (s *VectorStore) Upsert(ctx context.Context, records []driven.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	query := fmt.Sprintf(`
		INSERT INTO %s (chunk_id, document_id, section, generation, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chunk_id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			section = EXCLUDED.section,
			generation = EXCLUDED.generation,
			embedding = EXCLUDED.embedding
	`, s.table)
	for _, r := range records {
		if r.ChunkID == "" {
			return fmt.Errorf("%w: empty chunk id", domain.ErrInvalidInput)
		}
		if len(r.Vector) != s.dims {
			return fmt.Errorf("%w: chunk %s has %d dimensions, table has %d",
				domain.ErrDimensionMismatch, r.ChunkID, len(r.Vector), s.dims)
		}
		batch.Queue(query, r.ChunkID, r.Metadata.DocumentID, string(r.Metadata.Section),
			r.Metadata.Generation, pgvector.NewVector(r.Vector))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting vectors: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing vectors: %w", err)
	}
	return nil
}

// Query returns up to k hits ordered by cosine distance.
func (s *VectorStore) Query(ctx context.Context, vector []float32, k int, filter *driven.VectorFilter) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(vector) != s.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, table has %d",
			domain.ErrDimensionMismatch, len(vector), s.dims)
	}

	where, args := filterClause(filter, pgvector.NewVector(vector), k)
	query := fmt.Sprintf(`
		SELECT chunk_id, document_id, section, generation,
		       1 - (embedding <=> $1) AS similarity
		FROM %s
		%s
		ORDER BY embedding <=> $1, chunk_id
		LIMIT $2
	`, s.table, where)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit
	for rows.Next() {
		var hit driven.VectorHit
		var section string
		if err := rows.Scan(&hit.ChunkID, &hit.Metadata.DocumentID, &section,
			&hit.Metadata.Generation, &hit.Similarity); err != nil {
			return nil, fmt.Errorf("scanning vector hit: %w", err)
		}
		hit.Metadata.Section = domain.ParseSectionLabel(section)
		hit.Metadata.ChunkID = hit.ChunkID
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vector hits: %w", err)
	}
	return hits, nil
}

// Delete removes every vector of a document.
func (s *VectorStore) Delete(ctx context.Context, documentID string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE document_id = $1", s.table), documentID)
	if err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	return nil
}

// Remove removes specific chunk vectors.
func (s *VectorStore) Remove(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE chunk_id = ANY($1)", s.table), chunkIDs)
	if err != nil {
		return fmt.Errorf("removing vectors: %w", err)
	}
	return nil
}

// Count returns the number of stored vectors.
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return n, nil
}

// Close closes the connection pool.
func (s *VectorStore) Close() error {
	s.pool.Close()
	return nil
}

// filterClause builds the WHERE clause. $1 is the query vector and $2
// the limit; filter parameters follow.
func filterClause(filter *driven.VectorFilter, vec pgvector.Vector, k int) (string, []any) {
	args := []any{vec, k}
	if filter == nil {
		return "", args
	}
	var conds []string
	if len(filter.DocumentIDs) > 0 {
		args = append(args, filter.DocumentIDs)
		conds = append(conds, fmt.Sprintf("document_id = ANY($%d)", len(args)))
	}
	if len(filter.Sections) > 0 {
		sections := make([]string, len(filter.Sections))
		for i, l := range filter.Sections {
			sections[i] = string(l)
		}
		args = append(args, sections)
		conds = append(conds, fmt.Sprintf("section = ANY($%d)", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func validIdentifier(name string) bool {
	if name == "" || len(name) > 63 {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
