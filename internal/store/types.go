package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ContentItem kinds.
const (
	KindArticle  = "article"
	KindDocument = "document"
)

// ContentItem is a classifiable unit: a crawled article or an uploaded
// document. Immutable to this pipeline except for embedding backfill.
type ContentItem struct {
	ID          uuid.UUID
	Kind        string
	Title       string
	Description string
	Body        string
	FeedID      uuid.UUID // zero unless Kind == article
	OwnerID     string    // empty unless Kind == document
	Embedding   []float32 // nil until backfilled
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Text returns the text the pipeline classifies and embeds for this item:
// the title for articles, the body for documents.
func (c *ContentItem) Text() string {
	if c.Kind == KindDocument && c.Body != "" {
		return c.Body
	}
	return c.Title
}

// FewShotExample is a user-supplied exemplar attached to an analysis request.
type FewShotExample struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// AnalysisRequest is a user-defined classification task. Read-only to the
// pipeline except that the active flag gates new claims.
type AnalysisRequest struct {
	ID         uuid.UUID
	Name       string
	Category   string
	Examples   []FewShotExample
	Active     bool
	FeedID     uuid.UUID // zero unless feed-scoped
	DocumentID uuid.UUID // zero unless document-scoped
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Source is the tagged scope variant of an analysis request. Adding a new
// source kind means adding a type here and a case in every switch, checked at
// compile time instead of probing optional fields at run time.
type Source interface {
	isSource()
}

// FeedSource scopes a request to every article of one feed.
type FeedSource struct {
	FeedID uuid.UUID
}

// DocumentSource scopes a request to a single uploaded document.
type DocumentSource struct {
	DocumentID uuid.UUID
}

func (FeedSource) isSource()     {}
func (DocumentSource) isSource() {}

// Source returns the request's scope variant, or nil if the row is malformed.
// A CHECK constraint rejects rows with neither feed nor document set, so nil
// only appears for hand-built values.
func (r *AnalysisRequest) Source() Source {
	switch {
	case r.FeedID != uuid.Nil:
		return FeedSource{FeedID: r.FeedID}
	case r.DocumentID != uuid.Nil:
		return DocumentSource{DocumentID: r.DocumentID}
	default:
		return nil
	}
}

// RecordState is the derived state of an annotation record.
type RecordState string

const (
	StateClaimed   RecordState = "claimed"   // response IS NULL
	StateCompleted RecordState = "completed" // response holds a classification
	StateFailed    RecordState = "failed"    // response holds {"error": ...}
)

// AnnotationRecord tracks one classification attempt for a
// (ContentItem, AnalysisRequest) pair.
type AnnotationRecord struct {
	ID            uuid.UUID
	ContentItemID uuid.UUID
	RequestID     uuid.UUID
	Response      json.RawMessage // nil while claimed
	Labeled       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// State derives the record's position in the claim state machine.
func (a *AnnotationRecord) State() RecordState {
	if len(a.Response) == 0 {
		return StateClaimed
	}
	var probe struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(a.Response, &probe); err == nil && probe.Error != nil {
		return StateFailed
	}
	return StateCompleted
}

// Neighbor is one retrieved similarity tuple: a previously stored item, with
// the category and response of its most recent completed annotation when one
// exists.
type Neighbor struct {
	Title       string
	Description string
	Category    string          // empty when no completed annotation
	Response    json.RawMessage // nil when no completed annotation
}
