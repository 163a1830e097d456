// Package store implements the storage query contract of the classification
// pipeline over PostgreSQL + pgvector: content items, analysis requests, and
// the annotation records that track each classification attempt.
//
// Claiming is a single INSERT guarded by a partial unique index; a conflict
// means another runner already holds the pair and is reported as
// ErrAlreadyClaimed, never as a read-then-write race.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/textlens/textlens/internal/log"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OpenPool creates a pgx connection pool with pgvector types registered on
// every connection.
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// Store provides database access for the classification pipeline.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     querier
	logger log.Logger
}

// New creates a Store backed by the given pool.
func New(pool *pgxpool.Pool, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: pool, logger: logger}
}

const contentItemCols = `id, kind, title, description, body, feed_id, owner_id,
	embedding, created_at, updated_at`

// RequestByID loads an analysis request.
func (s *Store) RequestByID(ctx context.Context, id uuid.UUID) (*AnalysisRequest, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, category, examples, active, feed_id, document_id, created_at, updated_at
		FROM analysis_requests
		WHERE id = $1`, id)

	var (
		r        AnalysisRequest
		examples []byte
		feedID   pgtype.UUID
		docID    pgtype.UUID
	)
	err := row.Scan(&r.ID, &r.Name, &r.Category, &examples, &r.Active,
		&feedID, &docID, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning analysis request: %w", err)
	}

	if feedID.Valid {
		r.FeedID = feedID.Bytes
	}
	if docID.Valid {
		r.DocumentID = docID.Bytes
	}
	if len(examples) > 0 {
		if err := json.Unmarshal(examples, &r.Examples); err != nil {
			return nil, fmt.Errorf("parsing request examples: %w", err)
		}
	}

	return &r, nil
}

// UnannotatedItems returns the content items in the request's scope that have
// no annotation record for the request; claimed, completed, and failed
// records all count as attempted. The source variant is dispatched
// explicitly; an unknown variant is a programming error.
func (s *Store) UnannotatedItems(ctx context.Context, src Source, requestID uuid.UUID) ([]ContentItem, error) {
	const scopeQuery = `
		SELECT ` + contentItemCols + `
		FROM content_items c
		WHERE %s
		  AND NOT EXISTS (
			SELECT 1 FROM annotation_records a
			WHERE a.content_item_id = c.id AND a.request_id = $2
		  )
		ORDER BY c.created_at, c.id`

	var rows pgx.Rows
	var err error
	switch v := src.(type) {
	case FeedSource:
		rows, err = s.db.Query(ctx, fmt.Sprintf(scopeQuery, "c.feed_id = $1"), v.FeedID, requestID)
	case DocumentSource:
		rows, err = s.db.Query(ctx, fmt.Sprintf(scopeQuery, "c.id = $1"), v.DocumentID, requestID)
	default:
		return nil, fmt.Errorf("unsupported source variant %T", src)
	}
	if err != nil {
		return nil, fmt.Errorf("querying unannotated items: %w", err)
	}
	defer rows.Close()

	return scanContentItems(rows)
}

// Claim atomically reserves an item for a request by inserting its annotation
// record. A unique-constraint conflict means another runner got there first
// (or the pair already completed) and is returned as ErrAlreadyClaimed.
func (s *Store) Claim(ctx context.Context, itemID, requestID uuid.UUID) (uuid.UUID, error) {
	var recordID uuid.UUID
	err := s.db.QueryRow(ctx, `
		INSERT INTO annotation_records (content_item_id, request_id)
		VALUES ($1, $2)
		RETURNING id`, itemID, requestID).Scan(&recordID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return uuid.Nil, ErrAlreadyClaimed
		}
		return uuid.Nil, fmt.Errorf("claiming item %s: %w", itemID, err)
	}

	s.logger.Debug("claimed item", "item_id", itemID, "request_id", requestID, "record_id", recordID)
	return recordID, nil
}

// Complete transitions a claimed record to completed. The response IS NULL
// guard makes terminal states immutable: completing or failing a record twice
// returns ErrRecordFinalized.
func (s *Store) Complete(ctx context.Context, recordID uuid.UUID, response json.RawMessage) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE annotation_records
		SET response = $2, updated_at = now()
		WHERE id = $1 AND response IS NULL`, recordID, response)
	if err != nil {
		return fmt.Errorf("completing record %s: %w", recordID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordFinalized
	}
	return nil
}

// Fail transitions a claimed record to failed, storing the error payload.
func (s *Store) Fail(ctx context.Context, recordID uuid.UUID, message string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE annotation_records
		SET response = jsonb_build_object('error', $2::text), updated_at = now()
		WHERE id = $1 AND response IS NULL`, recordID, message)
	if err != nil {
		return fmt.Errorf("failing record %s: %w", recordID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordFinalized
	}
	return nil
}

// Neighbors returns the k stored items closest to vec by cosine distance,
// each with the category and response of its most recent completed annotation
// when one exists. Error-bearing records never contribute a response. Ties on
// distance break by item id, so results are reproducible for a fixed store.
func (s *Store) Neighbors(ctx context.Context, vec []float32, k int, labeledOnly bool) ([]Neighbor, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.title, c.description, COALESCE(r.category, ''), a.response
		FROM content_items c
		LEFT JOIN LATERAL (
			SELECT ar.response, ar.request_id
			FROM annotation_records ar
			WHERE ar.content_item_id = c.id
			  AND ar.response IS NOT NULL
			  AND NOT ar.response ? 'error'
			  AND (NOT $3::bool OR ar.labeled)
			ORDER BY ar.updated_at DESC, ar.id
			LIMIT 1
		) a ON true
		LEFT JOIN analysis_requests r ON r.id = a.request_id
		WHERE c.embedding IS NOT NULL
		ORDER BY c.embedding <=> $1, c.id
		LIMIT $2`, pgvector.NewVector(vec), k, labeledOnly)
	if err != nil {
		return nil, fmt.Errorf("querying neighbors: %w", err)
	}
	defer rows.Close()

	var out []Neighbor
	for rows.Next() {
		var n Neighbor
		var response []byte
		if err := rows.Scan(&n.Title, &n.Description, &n.Category, &response); err != nil {
			return nil, fmt.Errorf("scanning neighbor: %w", err)
		}
		if len(response) > 0 {
			n.Response = json.RawMessage(response)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading neighbors: %w", err)
	}

	return out, nil
}

// BackfillEmbedding stores the embedding vector for a content item. This is
// the only ContentItem mutation the pipeline performs.
func (s *Store) BackfillEmbedding(ctx context.Context, itemID uuid.UUID, vec []float32) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE content_items
		SET embedding = $2, updated_at = now()
		WHERE id = $1`, itemID, pgvector.NewVector(vec))
	if err != nil {
		return fmt.Errorf("backfilling embedding for %s: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// SetLabeled marks a record as human-confirmed (or clears the mark), making
// it eligible for labeled-only retrieval.
func (s *Store) SetLabeled(ctx context.Context, recordID uuid.UUID, labeled bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE annotation_records
		SET labeled = $2, updated_at = now()
		WHERE id = $1`, recordID, labeled)
	if err != nil {
		return fmt.Errorf("labeling record %s: %w", recordID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordFinalized
	}
	return nil
}

// ResetFailed deletes the error-bearing records of a request so a subsequent
// run may re-attempt those items. This is the explicit operator clear; the
// pipeline itself never retries failed records.
func (s *Store) ResetFailed(ctx context.Context, requestID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM annotation_records
		WHERE request_id = $1 AND response ? 'error'`, requestID)
	if err != nil {
		return 0, fmt.Errorf("resetting failed records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RecordsByRequest returns every annotation record of a request, oldest first.
func (s *Store) RecordsByRequest(ctx context.Context, requestID uuid.UUID) ([]AnnotationRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, content_item_id, request_id, response, labeled, created_at, updated_at
		FROM annotation_records
		WHERE request_id = $1
		ORDER BY created_at, id`, requestID)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []AnnotationRecord
	for rows.Next() {
		var rec AnnotationRecord
		var response []byte
		if err := rows.Scan(&rec.ID, &rec.ContentItemID, &rec.RequestID,
			&response, &rec.Labeled, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if len(response) > 0 {
			rec.Response = json.RawMessage(response)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}

	return out, nil
}

func scanContentItems(rows pgx.Rows) ([]ContentItem, error) {
	var out []ContentItem
	for rows.Next() {
		var (
			c       ContentItem
			feedID  pgtype.UUID
			ownerID pgtype.Text
			emb     *pgvector.Vector
		)
		if err := rows.Scan(&c.ID, &c.Kind, &c.Title, &c.Description, &c.Body,
			&feedID, &ownerID, &emb, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning content item: %w", err)
		}
		if feedID.Valid {
			c.FeedID = feedID.Bytes
		}
		c.OwnerID = ownerID.String
		if emb != nil {
			c.Embedding = emb.Slice()
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading content items: %w", err)
	}

	return out, nil
}
