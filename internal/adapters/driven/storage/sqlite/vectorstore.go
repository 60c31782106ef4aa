package sqlite

import (
	"context"
	"fmt"

	"github.com/custodia-labs/paperlens/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
)

// VectorStore persists vectors in SQLite and answers queries from an
// exact in-process index loaded on open.
type VectorStore struct {
	store *Store
	index *memory.VectorStore
}

var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore loads the stored vectors and returns a write-through store.
func (s *Store) VectorStore(ctx context.Context, dims int) (*VectorStore, error) {
	index := memory.NewVectorStore(dims)

	rows, err := s.db.QueryContext(ctx, `SELECT chunk_id, document_id, section, generation, embedding FROM vectors`)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var records []driven.VectorRecord
	for rows.Next() {
		var rec driven.VectorRecord
		var section string
		var blob []byte
		if err := rows.Scan(&rec.ChunkID, &rec.Metadata.DocumentID, &section, &rec.Metadata.Generation, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector: %w", err)
		}
		rec.Metadata.Section = domain.ParseSectionLabel(section)
		rec.Vector = bytesToFloat32Slice(blob)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}

	if err := index.Upsert(ctx, records); err != nil {
		return nil, fmt.Errorf("loading vectors: %w", err)
	}
	return &VectorStore{store: s, index: index}, nil
}

// Upsert writes vectors to the database, then to the index.
func (v *VectorStore) Upsert(ctx context.Context, records []driven.VectorRecord) error {
	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (chunk_id, document_id, section, generation, embedding)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			document_id = excluded.document_id,
			section = excluded.section,
			generation = excluded.generation,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.ChunkID, r.Metadata.DocumentID, string(r.Metadata.Section),
			r.Metadata.Generation, float32SliceToBytes(r.Vector)); err != nil {
			return fmt.Errorf("saving vector: %w", err)
		}
	}

	// Validate against the index before committing so a dimension
	// mismatch leaves the database untouched.
	if err := v.index.Upsert(ctx, records); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Query searches the in-process index.
func (v *VectorStore) Query(ctx context.Context, vector []float32, k int, filter *driven.VectorFilter) ([]driven.VectorHit, error) {
	return v.index.Query(ctx, vector, k, filter)
}

// Delete removes every vector of a document.
func (v *VectorStore) Delete(ctx context.Context, documentID string) error {
	if _, err := v.store.db.ExecContext(ctx, "DELETE FROM vectors WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	return v.index.Delete(ctx, documentID)
}

// Remove removes specific chunk vectors.
func (v *VectorStore) Remove(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	if _, err := v.store.db.ExecContext(ctx,
		"DELETE FROM vectors WHERE chunk_id IN ("+placeholders(len(chunkIDs))+")", stringArgs(chunkIDs)...); err != nil {
		return fmt.Errorf("removing vectors: %w", err)
	}
	return v.index.Remove(ctx, chunkIDs)
}

// Count returns the number of indexed vectors.
func (v *VectorStore) Count(ctx context.Context) (int, error) {
	return v.index.Count(ctx)
}

// Close releases the index. The database is closed by Store.Close.
func (v *VectorStore) Close() error {
	return v.index.Close()
}
