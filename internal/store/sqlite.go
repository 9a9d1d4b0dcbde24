package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/glinthq/onboardrag/internal/errors"
	"github.com/glinthq/onboardrag/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS tags (
	tagid      TEXT PRIMARY KEY,
	tagname    TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	documentid      TEXT PRIMARY KEY,
	documenttitle   TEXT NOT NULL,
	documentcontent TEXT NOT NULL,
	tagid           TEXT REFERENCES tags(tagid) ON DELETE SET NULL,
	author          TEXT NOT NULL DEFAULT '',
	page_count      INTEGER NOT NULL DEFAULT 0,
	word_count      INTEGER NOT NULL DEFAULT 0,
	metadata        TEXT NOT NULL DEFAULT '{}',
	uploadedat      TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS document_chunks (
	chunkid     TEXT PRIMARY KEY,
	documentid  TEXT NOT NULL REFERENCES documents(documentid) ON DELETE CASCADE,
	chunk_text  TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	token_count INTEGER NOT NULL,
	embedding   TEXT,
	metadata    TEXT NOT NULL DEFAULT '{}',
	created_at  TIMESTAMP NOT NULL,
	UNIQUE(documentid, chunk_index)
);

CREATE INDEX IF NOT EXISTS idx_chunks_documentid ON document_chunks(documentid);

CREATE VIEW IF NOT EXISTS document_list AS
SELECT
	d.documentid,
	d.documenttitle,
	d.author,
	d.tagid,
	COALESCE(t.tagname, '') AS tagname,
	d.page_count,
	d.word_count,
	d.metadata,
	d.uploadedat,
	(SELECT COUNT(*) FROM document_chunks c WHERE c.documentid = d.documentid) AS chunk_count
FROM documents d
LEFT JOIN tags t ON t.tagid = d.tagid;
`

// SQLiteStore implements Store on a single SQLite database file.
// WAL mode plus a single writer connection keeps concurrent readers cheap
// while avoiding lock contention on writes.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	fileLock *flock.Flock

	// replaceLocks serializes ReplaceChunks per document id.
	mu           sync.Mutex
	replaceLocks map[string]*sync.Mutex
}

var _ Store = (*SQLiteStore)(nil)

// Open creates or opens the store under dataDir. An empty dataDir opens an
// in-memory database for tests. On-disk stores take an exclusive flock on the
// data directory so two processes never share one database file.
func Open(dataDir string) (*SQLiteStore, error) {
	s := &SQLiteStore{replaceLocks: make(map[string]*sync.Mutex)}

	dsn := ":memory:"
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, errors.StoreError("create data directory", err)
		}

		s.fileLock = flock.New(filepath.Join(dataDir, ".lock"))
		locked, err := s.fileLock.TryLock()
		if err != nil {
			return nil, errors.StoreError("acquire data directory lock", err)
		}
		if !locked {
			return nil, errors.Newf(errors.KindStore,
				"data directory %s is locked by another process", dataDir)
		}

		s.path = filepath.Join(dataDir, "onboardrag.db")
		dsn = s.path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		s.unlock()
		return nil, errors.StoreError("open database", err)
	}

	// Single writer prevents SQLITE_BUSY under concurrent ingestion.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores DSN pragmas, so set them via statements.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			s.unlock()
			return nil, errors.StoreError("set pragma", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		s.unlock()
		return nil, errors.StoreError("initialize schema", err)
	}

	s.db = db
	slog.Debug("store opened", slog.String("path", s.path))
	return s, nil
}

// Close releases the database and the data-directory lock.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	s.unlock()
	if err != nil {
		return errors.StoreError("close database", err)
	}
	return nil
}

func (s *SQLiteStore) unlock() {
	if s.fileLock != nil {
		_ = s.fileLock.Unlock()
	}
}

// InsertDocument creates a document row.
func (s *SQLiteStore) InsertDocument(ctx context.Context, doc *model.Document) error {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return errors.StoreError("encode document metadata", err)
	}

	var tagID any
	if doc.TagID != "" {
		tagID = doc.TagID
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents
			(documentid, documenttitle, documentcontent, tagid, author,
			 page_count, word_count, metadata, uploadedat)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Content, tagID, doc.Author,
		doc.PageCount, doc.WordCount, string(meta), doc.UploadedAt.UTC())
	if err != nil {
		return errors.StoreError("insert document", err)
	}
	return nil
}

// GetDocument loads one document including its stored content.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT documentid, documenttitle, documentcontent, COALESCE(tagid, ''),
		       author, page_count, word_count, metadata, uploadedat
		FROM documents WHERE documentid = ?`, id)

	doc := &model.Document{}
	var meta string
	err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.TagID,
		&doc.Author, &doc.PageCount, &doc.WordCount, &meta, &doc.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.KindNotFound, "document %s not found", id)
	}
	if err != nil {
		return nil, errors.StoreError("load document", err)
	}
	if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
		return nil, errors.StoreError("decode document metadata", err)
	}
	return doc, nil
}

// DeleteDocument removes a document; the foreign key cascades to its chunks.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE documentid = ?`, id)
	if err != nil {
		return errors.StoreError("delete document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.StoreError("delete document", err)
	}
	if n == 0 {
		return errors.Newf(errors.KindNotFound, "document %s not found", id)
	}
	return nil
}

// ListDocumentsWithStats returns all documents from the list view, newest
// first. Content is omitted.
func (s *SQLiteStore) ListDocumentsWithStats(ctx context.Context) ([]*model.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT documentid, documenttitle, author, tagid, tagname,
		       page_count, word_count, metadata, uploadedat, chunk_count
		FROM document_list
		ORDER BY uploadedat DESC, documentid ASC`)
	if err != nil {
		return nil, errors.StoreError("list documents", err)
	}
	defer rows.Close()

	var docs []*model.Document
	for rows.Next() {
		doc := &model.Document{}
		var tagID sql.NullString
		var meta string
		err := rows.Scan(&doc.ID, &doc.Title, &doc.Author, &tagID, &doc.TagName,
			&doc.PageCount, &doc.WordCount, &meta, &doc.UploadedAt, &doc.ChunkCount)
		if err != nil {
			return nil, errors.StoreError("scan document row", err)
		}
		doc.TagID = tagID.String
		if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
			return nil, errors.StoreError("decode document metadata", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreError("list documents", err)
	}
	return docs, nil
}

// BulkInsertChunks inserts all chunks transactionally.
func (s *SQLiteStore) BulkInsertChunks(ctx context.Context, documentID string, chunks []*model.Chunk) error {
	return s.withTx(ctx, "bulk insert chunks", func(tx *sql.Tx) error {
		return insertChunksTx(ctx, tx, documentID, chunks)
	})
}

// ReplaceChunks deletes a document's chunks and inserts the new set in one
// transaction. Calls for the same document serialize through a keyed mutex so
// two reprocess runs never interleave their delete and insert phases.
func (s *SQLiteStore) ReplaceChunks(ctx context.Context, documentID string, chunks []*model.Chunk) error {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	return s.withTx(ctx, "replace chunks", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM document_chunks WHERE documentid = ?`, documentID); err != nil {
			return err
		}
		return insertChunksTx(ctx, tx, documentID, chunks)
	})
}

func (s *SQLiteStore) documentLock(documentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.replaceLocks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		s.replaceLocks[documentID] = lock
	}
	return lock
}

func insertChunksTx(ctx context.Context, tx *sql.Tx, documentID string, chunks []*model.Chunk) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks
			(chunkid, documentid, chunk_text, chunk_index, token_count,
			 embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		meta, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return err
		}

		var embedding any
		if chunk.Embedded() {
			enc, err := json.Marshal(chunk.Embedding)
			if err != nil {
				return err
			}
			embedding = string(enc)
		}

		createdAt := chunk.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		_, err = stmt.ExecContext(ctx, chunk.ID, documentID, chunk.Text,
			chunk.Index, chunk.TokenCount, embedding, string(meta), createdAt.UTC())
		if err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn in a transaction, retrying once when SQLite reports the
// database as busy or locked.
func (s *SQLiteStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(100 * time.Millisecond):
			case <-ctx.Done():
				return errors.StoreError(op, ctx.Err())
			}
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			lastErr = err
			continue
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			if isBusy(err) {
				lastErr = err
				continue
			}
			return errors.StoreError(op, err)
		}
		if err := tx.Commit(); err != nil {
			if isBusy(err) {
				lastErr = err
				continue
			}
			return errors.StoreError(op, err)
		}
		return nil
	}
	return errors.StoreError(op, lastErr)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database is busy")
}

// ScanEmbeddedChunks streams every embedded chunk in (documentid,
// chunk_index) order without materializing the full set.
func (s *SQLiteStore) ScanEmbeddedChunks(ctx context.Context, fn func(chunk *model.Chunk) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunkid, documentid, chunk_text, chunk_index, token_count,
		       embedding, metadata, created_at
		FROM document_chunks
		WHERE embedding IS NOT NULL
		ORDER BY documentid ASC, chunk_index ASC`)
	if err != nil {
		return errors.StoreError("scan embedded chunks", err)
	}
	defer rows.Close()

	for rows.Next() {
		chunk := &model.Chunk{}
		var embedding, meta string
		err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Text, &chunk.Index,
			&chunk.TokenCount, &embedding, &meta, &chunk.CreatedAt)
		if err != nil {
			return errors.StoreError("scan chunk row", err)
		}
		if err := json.Unmarshal([]byte(embedding), &chunk.Embedding); err != nil {
			return errors.StoreError("decode chunk embedding", err)
		}
		if err := json.Unmarshal([]byte(meta), &chunk.Metadata); err != nil {
			return errors.StoreError("decode chunk metadata", err)
		}
		if err := fn(chunk); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.StoreError("scan embedded chunks", err)
	}
	return nil
}

// CountEmbeddedChunks reports how many of a document's chunks are embedded.
func (s *SQLiteStore) CountEmbeddedChunks(ctx context.Context, documentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM document_chunks
		WHERE documentid = ? AND embedding IS NOT NULL`, documentID).Scan(&n)
	if err != nil {
		return 0, errors.StoreError("count embedded chunks", err)
	}
	return n, nil
}

// CreateTag inserts a tag, returning the existing tag on a name clash.
func (s *SQLiteStore) CreateTag(ctx context.Context, name string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Validation("tag name is required")
	}

	tag := &model.Tag{ID: model.NewID(), Name: name}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (tagid, tagname, created_at) VALUES (?, ?, ?)
		ON CONFLICT(tagname) DO NOTHING`,
		tag.ID, tag.Name, time.Now().UTC())
	if err != nil {
		return nil, errors.StoreError("create tag", err)
	}

	// Re-read to pick up the surviving row on conflict.
	row := s.db.QueryRowContext(ctx, `SELECT tagid, tagname FROM tags WHERE tagname = ?`, name)
	if err := row.Scan(&tag.ID, &tag.Name); err != nil {
		return nil, errors.StoreError("load tag", err)
	}
	return tag, nil
}

// ListTags returns all tags ordered by name.
func (s *SQLiteStore) ListTags(ctx context.Context) ([]*model.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tagid, tagname FROM tags ORDER BY tagname ASC`)
	if err != nil {
		return nil, errors.StoreError("list tags", err)
	}
	defer rows.Close()

	var tags []*model.Tag
	for rows.Next() {
		tag := &model.Tag{}
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, errors.StoreError("scan tag row", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreError("list tags", err)
	}
	return tags, nil
}

// CorpusStats computes the aggregates behind the stats surface.
func (s *SQLiteStore) CorpusStats(ctx context.Context) (*CorpusStats, error) {
	stats := &CorpusStats{TypeDistribution: make(map[string]int)}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(word_count), 0) FROM documents`).
		Scan(&stats.TotalDocuments, &stats.TotalWords)
	if err != nil {
		return nil, errors.StoreError("count documents", err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_chunks`).
		Scan(&stats.TotalChunks)
	if err != nil {
		return nil, errors.StoreError("count chunks", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT documentid) FROM document_chunks
		WHERE embedding IS NOT NULL`).
		Scan(&stats.DocumentsWithEmbeddings)
	if err != nil {
		return nil, errors.StoreError("count embedded documents", err)
	}

	if stats.TotalDocuments > 0 {
		stats.AvgChunksPerDocument = float64(stats.TotalChunks) / float64(stats.TotalDocuments)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(json_extract(metadata, '$.documentType'), 'general'), COUNT(*)
		FROM documents
		GROUP BY 1`)
	if err != nil {
		return nil, errors.StoreError("document type distribution", err)
	}
	defer rows.Close()
	for rows.Next() {
		var docType string
		var count int
		if err := rows.Scan(&docType, &count); err != nil {
			return nil, errors.StoreError("scan type distribution", err)
		}
		stats.TypeDistribution[docType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreError("document type distribution", err)
	}

	recent, err := s.db.QueryContext(ctx, `
		SELECT documentid, documenttitle, uploadedat, chunk_count
		FROM document_list
		ORDER BY uploadedat DESC, documentid ASC
		LIMIT 5`)
	if err != nil {
		return nil, errors.StoreError("recent uploads", err)
	}
	defer recent.Close()
	for recent.Next() {
		var upload RecentUpload
		err := recent.Scan(&upload.DocumentID, &upload.Title, &upload.UploadedAt, &upload.ChunkCount)
		if err != nil {
			return nil, errors.StoreError("scan recent upload", err)
		}
		stats.RecentUploads = append(stats.RecentUploads, upload)
	}
	if err := recent.Err(); err != nil {
		return nil, errors.StoreError("recent uploads", err)
	}

	return stats, nil
}
