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

// KnowledgeBaseRepository implements repositories.KnowledgeBaseRepository
type KnowledgeBaseRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewKnowledgeBaseRepository creates a new knowledge-base repository
func NewKnowledgeBaseRepository(db *DB, logger *zap.Logger) repositories.KnowledgeBaseRepository {
	return &KnowledgeBaseRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new knowledge base
func (r *KnowledgeBaseRepository) Create(ctx context.Context, kb *models.KnowledgeBase) error {
	query := `
		INSERT INTO knowledge_bases (id, name, description, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query,
		kb.ID,
		kb.Name,
		kb.Description,
		kb.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create knowledge base: %w", err)
	}

	r.logger.Debug("knowledge base created", zap.String("id", kb.ID.String()))
	return nil
}

// GetByID retrieves a knowledge base by ID
func (r *KnowledgeBaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.KnowledgeBase, error) {
	query := `
		SELECT id, name, description, created_at
		FROM knowledge_bases
		WHERE id = $1
	`

	kb := &models.KnowledgeBase{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&kb.ID,
		&kb.Name,
		&kb.Description,
		&kb.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.NewNotFoundError("Knowledge base not found")
		}
		return nil, fmt.Errorf("failed to get knowledge base: %w", err)
	}

	return kb, nil
}

// List retrieves all knowledge bases, newest first
func (r *KnowledgeBaseRepository) List(ctx context.Context) ([]*models.KnowledgeBase, error) {
	query := `
		SELECT id, name, description, created_at
		FROM knowledge_bases
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge bases: %w", err)
	}
	defer rows.Close()

	var list []*models.KnowledgeBase
	for rows.Next() {
		kb := &models.KnowledgeBase{}
		if err := rows.Scan(&kb.ID, &kb.Name, &kb.Description, &kb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge base: %w", err)
		}
		list = append(list, kb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate knowledge bases: %w", err)
	}

	return list, nil
}
