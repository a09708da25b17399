package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/llm-gateway/models"
	"github.com/upb/llm-gateway/repositories"
	"github.com/upb/llm-gateway/services"
	"go.uber.org/zap"
)

// DocumentRepository implements repositories.DocumentRepository
type DocumentRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *DB, logger *zap.Logger) repositories.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores an uploaded document including its raw content
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (id, kb_id, filename, suffix, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		doc.ID,
		doc.KBID,
		doc.Filename,
		doc.Suffix,
		doc.Content,
		doc.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	r.logger.Debug("document created",
		zap.String("id", doc.ID.String()),
		zap.String("filename", doc.Filename),
		zap.Int("size", len(doc.Content)))
	return nil
}

// GetByID retrieves a document by ID including its raw content
func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	query := `
		SELECT id, kb_id, filename, suffix, content, created_at
		FROM documents
		WHERE id = $1
	`

	doc := &models.Document{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID,
		&doc.KBID,
		&doc.Filename,
		&doc.Suffix,
		&doc.Content,
		&doc.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.NewNotFoundError("Document not found")
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

// ListByKB retrieves document metadata for a knowledge base, without content
func (r *DocumentRepository) ListByKB(ctx context.Context, kbID uuid.UUID) ([]*models.Document, error) {
	query := `
		SELECT id, kb_id, filename, suffix, created_at
		FROM documents
		WHERE kb_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, kbID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var list []*models.Document
	for rows.Next() {
		doc := &models.Document{}
		if err := rows.Scan(&doc.ID, &doc.KBID, &doc.Filename, &doc.Suffix, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		list = append(list, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	return list, nil
}
