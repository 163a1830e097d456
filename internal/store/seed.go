package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Creation helpers for the entities the external ingestion and request layers
// own. The pipeline never calls these in production; they exist to express the
// collaborator write contract and to build fixtures in tests and tooling.

// CreateFeed inserts a feed and returns its id.
func (s *Store) CreateFeed(ctx context.Context, title, url string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `
		INSERT INTO feeds (title, url)
		VALUES ($1, $2)
		RETURNING id`, title, url).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating feed: %w", err)
	}
	return id, nil
}

// CreateContentItem inserts a content item. Embedding may be nil; the
// pipeline backfills it on the first run that needs it.
func (s *Store) CreateContentItem(ctx context.Context, item ContentItem) (uuid.UUID, error) {
	var (
		feedID  any
		ownerID any
		emb     any
	)
	if item.FeedID != uuid.Nil {
		feedID = item.FeedID
	}
	if item.OwnerID != "" {
		ownerID = item.OwnerID
	}
	if item.Embedding != nil {
		emb = pgvector.NewVector(item.Embedding)
	}

	var id uuid.UUID
	err := s.db.QueryRow(ctx, `
		INSERT INTO content_items (kind, title, description, body, feed_id, owner_id, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		item.Kind, item.Title, item.Description, item.Body, feedID, ownerID, emb).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating content item: %w", err)
	}
	return id, nil
}

// CreateAnalysisRequest inserts an analysis request scoped by src.
func (s *Store) CreateAnalysisRequest(ctx context.Context, name, category string,
	examples []FewShotExample, src Source) (uuid.UUID, error) {

	var feedID, docID any
	switch v := src.(type) {
	case FeedSource:
		feedID = v.FeedID
	case DocumentSource:
		docID = v.DocumentID
	default:
		return uuid.Nil, fmt.Errorf("unsupported source variant %T", src)
	}

	var examplesJSON any
	if len(examples) > 0 {
		data, err := json.Marshal(examples)
		if err != nil {
			return uuid.Nil, fmt.Errorf("marshaling examples: %w", err)
		}
		examplesJSON = data
	}

	var id uuid.UUID
	err := s.db.QueryRow(ctx, `
		INSERT INTO analysis_requests (name, category, examples, feed_id, document_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`, name, category, examplesJSON, feedID, docID).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating analysis request: %w", err)
	}
	return id, nil
}

// SetRequestActive flips the active flag that gates new claims.
func (s *Store) SetRequestActive(ctx context.Context, requestID uuid.UUID, active bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE analysis_requests
		SET active = $2, updated_at = now()
		WHERE id = $1`, requestID, active)
	if err != nil {
		return fmt.Errorf("updating request active flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}
