package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/upb/llm-gateway/models"
)

// KnowledgeBaseRepository persists knowledge bases
type KnowledgeBaseRepository interface {
	Create(ctx context.Context, kb *models.KnowledgeBase) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.KnowledgeBase, error)
	List(ctx context.Context) ([]*models.KnowledgeBase, error)
}

// DocumentRepository persists uploaded documents
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	// GetByID returns the document including its raw content
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	// ListByKB returns document metadata without content
	ListByKB(ctx context.Context, kbID uuid.UUID) ([]*models.Document, error)
}

// MarkdownRepository persists converted markdown files
type MarkdownRepository interface {
	Create(ctx context.Context, md *models.MarkdownFile) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.MarkdownFile, error)
	ListByDoc(ctx context.Context, docID uuid.UUID) ([]*models.MarkdownFile, error)
	ListByDocs(ctx context.Context, docIDs []uuid.UUID) ([]*models.MarkdownFile, error)
	UpdateSummary(ctx context.Context, id uuid.UUID, summary string) error
}

// Repositories bundles every repository the service layer needs
type Repositories struct {
	KnowledgeBases KnowledgeBaseRepository
	Documents      DocumentRepository
	Markdown       MarkdownRepository
}
