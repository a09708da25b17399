package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/upb/llm-gateway/models"
	"github.com/upb/llm-gateway/repositories"
	"github.com/upb/llm-gateway/services"
	"go.uber.org/zap"
)

// MarkdownRepository implements repositories.MarkdownRepository
type MarkdownRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewMarkdownRepository creates a new markdown repository
func NewMarkdownRepository(db *DB, logger *zap.Logger) repositories.MarkdownRepository {
	return &MarkdownRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a converted markdown file
func (r *MarkdownRepository) Create(ctx context.Context, md *models.MarkdownFile) error {
	query := `
		INSERT INTO markdown_files (id, doc_id, content, summary, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		md.ID,
		md.DocID,
		md.Content,
		md.Summary,
		md.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create markdown file: %w", err)
	}

	r.logger.Debug("markdown file created", zap.String("id", md.ID.String()))
	return nil
}

// GetByID retrieves a markdown file by ID
func (r *MarkdownRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.MarkdownFile, error) {
	query := `
		SELECT id, doc_id, content, summary, created_at
		FROM markdown_files
		WHERE id = $1
	`

	md := &models.MarkdownFile{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&md.ID,
		&md.DocID,
		&md.Content,
		&md.Summary,
		&md.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.NewNotFoundError("Markdown file not found")
		}
		return nil, fmt.Errorf("failed to get markdown file: %w", err)
	}

	return md, nil
}

// ListByDoc retrieves all markdown files derived from one document
func (r *MarkdownRepository) ListByDoc(ctx context.Context, docID uuid.UUID) ([]*models.MarkdownFile, error) {
	query := `
		SELECT id, doc_id, content, summary, created_at
		FROM markdown_files
		WHERE doc_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to list markdown files: %w", err)
	}
	defer rows.Close()

	return scanMarkdownRows(rows)
}

// ListByDocs retrieves all markdown files derived from a set of documents
func (r *MarkdownRepository) ListByDocs(ctx context.Context, docIDs []uuid.UUID) ([]*models.MarkdownFile, error) {
	if len(docIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, doc_id, content, summary, created_at
		FROM markdown_files
		WHERE doc_id = ANY($1)
		ORDER BY created_at DESC
	`

	ids := make([]string, len(docIDs))
	for i, id := range docIDs {
		ids[i] = id.String()
	}

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list markdown files: %w", err)
	}
	defer rows.Close()

	return scanMarkdownRows(rows)
}

// UpdateSummary stores the generated summary of a markdown file
func (r *MarkdownRepository) UpdateSummary(ctx context.Context, id uuid.UUID, summary string) error {
	query := `
		UPDATE markdown_files
		SET summary = $2
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, summary)
	if err != nil {
		return fmt.Errorf("failed to update summary: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check summary update: %w", err)
	}
	if affected == 0 {
		return services.NewNotFoundError("Markdown file not found")
	}

	return nil
}

func scanMarkdownRows(rows *sql.Rows) ([]*models.MarkdownFile, error) {
	var list []*models.MarkdownFile
	for rows.Next() {
		md := &models.MarkdownFile{}
		if err := rows.Scan(&md.ID, &md.DocID, &md.Content, &md.Summary, &md.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan markdown file: %w", err)
		}
		list = append(list, md)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate markdown files: %w", err)
	}

	return list, nil
}
