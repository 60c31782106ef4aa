package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const chunkColumns = `id, document_id, generation, section, section_index, ordinal,
	content, start_offset, end_offset, page, embedding, anchor`

// SaveDocument stores or replaces a document and its sections.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.ErrInvalidInput
	}
	authorsJSON, err := json.Marshal(nonNil(doc.Authors))
	if err != nil {
		return fmt.Errorf("marshalling authors: %w", err)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, uri, title, doi, arxiv_id, authors, generation, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			uri = excluded.uri,
			title = excluded.title,
			doi = excluded.doi,
			arxiv_id = excluded.arxiv_id,
			authors = excluded.authors,
			generation = excluded.generation,
			ingested_at = excluded.ingested_at
	`, doc.ID, doc.URI, doc.Title, doc.DOI, doc.ArxivID, string(authorsJSON),
		doc.Generation, doc.IngestedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM sections WHERE document_id = ?", doc.ID); err != nil {
		return fmt.Errorf("clearing sections: %w", err)
	}
	for i, sec := range doc.Sections {
		spansJSON, err := json.Marshal(sec.Spans)
		if err != nil {
			return fmt.Errorf("marshalling spans: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sections (document_id, position, label, heading, content, start_offset, end_offset, spans)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, doc.ID, i, string(sec.Label), sec.Heading, sec.Text, sec.Start, sec.End, string(spansJSON)); err != nil {
			return fmt.Errorf("saving section: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SaveChunks stores chunks.
func (s *documentStore) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (`+chunkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			generation = excluded.generation,
			section = excluded.section,
			section_index = excluded.section_index,
			ordinal = excluded.ordinal,
			content = excluded.content,
			start_offset = excluded.start_offset,
			end_offset = excluded.end_offset,
			page = excluded.page,
			embedding = excluded.embedding,
			anchor = excluded.anchor
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if chunk.ID == "" || chunk.DocumentID == "" {
			return domain.ErrInvalidInput
		}
		var anchor sql.NullString
		if chunk.Anchor != nil {
			anchorJSON, err := json.Marshal(chunk.Anchor)
			if err != nil {
				return fmt.Errorf("marshalling anchor: %w", err)
			}
			anchor = sql.NullString{String: string(anchorJSON), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Generation,
			string(chunk.Section), chunk.SectionIndex, chunk.Ordinal, chunk.Text,
			chunk.Start, chunk.End, chunk.Page, float32SliceToBytes(chunk.Embedding), anchor); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetDocument retrieves a document and its sections by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, uri, title, doi, arxiv_id, authors, generation, ingested_at
		FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row)
	if err != nil {
		return nil, err
	}
	if doc.Sections, err = s.sections(ctx, id); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetChunks retrieves all chunks of a document, all generations.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+chunkColumns+`
		FROM chunks WHERE document_id = ?
		ORDER BY generation, ordinal
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *documentStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, id)
	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return chunk, err
}

// DeleteChunks removes chunks by ID.
func (s *documentStore) DeleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE id IN ("+placeholders(len(ids))+")", stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// DeleteDocument removes a document, its sections and its chunks.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ListDocuments returns every document ordered by title. Sections are
// not loaded.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, uri, title, doi, arxiv_id, authors, generation, ingested_at
		FROM documents ORDER BY title, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// SaveStatus stores the ingestion status of a document.
func (s *documentStore) SaveStatus(ctx context.Context, status *domain.IngestionStatus) error {
	if status == nil || status.DocumentID == "" {
		return domain.ErrInvalidInput
	}
	failuresJSON, err := json.Marshal(nonNil(status.ChunkFailures))
	if err != nil {
		return fmt.Errorf("marshalling chunk failures: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO ingestion_status (document_id, uri, title, state, sections, chunks_total,
			chunks_indexed, chunk_failures, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			uri = excluded.uri,
			title = excluded.title,
			state = excluded.state,
			sections = excluded.sections,
			chunks_total = excluded.chunks_total,
			chunks_indexed = excluded.chunks_indexed,
			chunk_failures = excluded.chunk_failures,
			error = excluded.error,
			updated_at = excluded.updated_at
	`, status.DocumentID, status.URI, status.Title, string(status.State), status.Sections,
		status.ChunksTotal, status.ChunksIndexed, string(failuresJSON), status.Error,
		status.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("saving status: %w", err)
	}
	return nil
}

// GetStatus retrieves the ingestion status of a document.
func (s *documentStore) GetStatus(ctx context.Context, documentID string) (*domain.IngestionStatus, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT document_id, uri, title, state, sections, chunks_total, chunks_indexed,
			chunk_failures, error, updated_at
		FROM ingestion_status WHERE document_id = ?
	`, documentID)
	st, err := scanStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return st, err
}

// ListStatus returns every ingestion status, most recent first.
func (s *documentStore) ListStatus(ctx context.Context) ([]domain.IngestionStatus, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT document_id, uri, title, state, sections, chunks_total, chunks_indexed,
			chunk_failures, error, updated_at
		FROM ingestion_status ORDER BY updated_at DESC, document_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying status: %w", err)
	}
	defer rows.Close()

	var list []domain.IngestionStatus //nolint:prealloc // size unknown from query
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status: %w", err)
	}

	return list, nil
}

func (s *documentStore) sections(ctx context.Context, documentID string) ([]domain.Section, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT label, heading, content, start_offset, end_offset, spans
		FROM sections WHERE document_id = ? ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying sections: %w", err)
	}
	defer rows.Close()

	var sections []domain.Section //nolint:prealloc // size unknown from query
	for rows.Next() {
		var sec domain.Section
		var label, spansJSON string
		if err := rows.Scan(&label, &sec.Heading, &sec.Text, &sec.Start, &sec.End, &spansJSON); err != nil {
			return nil, fmt.Errorf("scanning section: %w", err)
		}
		sec.Label = domain.ParseSectionLabel(label)
		if err := json.Unmarshal([]byte(spansJSON), &sec.Spans); err != nil {
			return nil, fmt.Errorf("unmarshaling spans: %w", err)
		}
		sections = append(sections, sec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sections: %w", err)
	}
	return sections, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*domain.Document, error) {
	var doc domain.Document
	var authorsJSON string
	var ingestedAt int64

	if err := row.Scan(&doc.ID, &doc.URI, &doc.Title, &doc.DOI, &doc.ArxivID,
		&authorsJSON, &doc.Generation, &ingestedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.IngestedAt = time.Unix(0, ingestedAt).UTC()

	if err := json.Unmarshal([]byte(authorsJSON), &doc.Authors); err != nil {
		return nil, fmt.Errorf("unmarshaling authors: %w", err)
	}
	if len(doc.Authors) == 0 {
		doc.Authors = nil
	}
	return &doc, nil
}

func scanChunk(row scanner) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var section string
	var embeddingBlob []byte
	var anchor sql.NullString

	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Generation, &section,
		&chunk.SectionIndex, &chunk.Ordinal, &chunk.Text, &chunk.Start, &chunk.End,
		&chunk.Page, &embeddingBlob, &anchor); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Section = domain.ParseSectionLabel(section)
	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)

	if anchor.Valid && anchor.String != "" {
		chunk.Anchor = &domain.FigureAnchor{}
		if err := json.Unmarshal([]byte(anchor.String), chunk.Anchor); err != nil {
			return nil, fmt.Errorf("unmarshaling anchor: %w", err)
		}
	}

	return &chunk, nil
}

func scanStatus(row scanner) (*domain.IngestionStatus, error) {
	var st domain.IngestionStatus
	var state, failuresJSON string
	var updatedAt int64

	if err := row.Scan(&st.DocumentID, &st.URI, &st.Title, &state, &st.Sections,
		&st.ChunksTotal, &st.ChunksIndexed, &failuresJSON, &st.Error, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning status: %w", err)
	}
	st.State = domain.IngestionState(state)
	st.UpdatedAt = time.Unix(0, updatedAt).UTC()

	if err := json.Unmarshal([]byte(failuresJSON), &st.ChunkFailures); err != nil {
		return nil, fmt.Errorf("unmarshaling chunk failures: %w", err)
	}
	if len(st.ChunkFailures) == 0 {
		st.ChunkFailures = nil
	}
	return &st, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
