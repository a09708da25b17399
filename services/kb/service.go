// Package kb implements knowledge base and document management on top of
// the postgres repositories and the external markdown converter.
package kb

import (
	"archive/zip"
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/llm-gateway/models"
	"github.com/upb/llm-gateway/repositories"
	"github.com/upb/llm-gateway/services"
	"github.com/upb/llm-gateway/services/convert"
	"go.uber.org/zap"
)

const summaryLength = 100

// Service coordinates knowledge base operations
type Service struct {
	kbRepo  repositories.KnowledgeBaseRepository
	docRepo repositories.DocumentRepository
	mdRepo  repositories.MarkdownRepository
	convert convert.Converter
	logger  *zap.Logger
}

// NewService creates a knowledge base service
func NewService(repos *repositories.Repositories, converter convert.Converter, logger *zap.Logger) *Service {
	return &Service{
		kbRepo:  repos.KnowledgeBases,
		docRepo: repos.Documents,
		mdRepo:  repos.Markdown,
		convert: converter,
		logger:  logger,
	}
}

// CreateKnowledgeBase creates a new knowledge base and returns its ID
func (s *Service) CreateKnowledgeBase(ctx context.Context, name, description string) (*models.KnowledgeBase, error) {
	if strings.TrimSpace(name) == "" {
		return nil, services.NewInvalidRequestError("knowledge base name must not be empty")
	}

	kb := &models.KnowledgeBase{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.kbRepo.Create(ctx, kb); err != nil {
		return nil, err
	}

	s.logger.Info("knowledge base created",
		zap.String("kb_id", kb.ID.String()),
		zap.String("name", kb.Name))
	return kb, nil
}

// ListKnowledgeBases returns all knowledge bases
func (s *Service) ListKnowledgeBases(ctx context.Context) ([]*models.KnowledgeBase, error) {
	return s.kbRepo.List(ctx)
}

// UploadDocument stores a document under the given knowledge base
func (s *Service) UploadDocument(ctx context.Context, kbID uuid.UUID, filename string, content []byte) (*models.Document, error) {
	if _, err := s.kbRepo.GetByID(ctx, kbID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(filename) == "" {
		return nil, services.NewInvalidRequestError("filename must not be empty")
	}

	doc := &models.Document{
		ID:        uuid.New(),
		KBID:      kbID,
		Filename:  filename,
		Suffix:    strings.TrimPrefix(filepath.Ext(filename), "."),
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("document uploaded",
		zap.String("kb_id", kbID.String()),
		zap.String("doc_id", doc.ID.String()),
		zap.String("filename", filename),
		zap.Int("size", len(content)))
	return doc, nil
}

// ListDocuments returns the documents of a knowledge base without their content
func (s *Service) ListDocuments(ctx context.Context, kbID uuid.UUID) ([]*models.Document, error) {
	if _, err := s.kbRepo.GetByID(ctx, kbID); err != nil {
		return nil, err
	}
	return s.docRepo.ListByKB(ctx, kbID)
}

// GetDocument returns a document with its content, verifying it belongs to
// the given knowledge base.
func (s *Service) GetDocument(ctx context.Context, kbID, docID uuid.UUID) (*models.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.KBID != kbID {
		return nil, services.NewForbiddenError("Document does not belong to the knowledge base")
	}
	return doc, nil
}

// ConvertDocument runs the document through the markdown converter and
// stores the result.
func (s *Service) ConvertDocument(ctx context.Context, kbID, docID uuid.UUID) (*models.MarkdownFile, error) {
	doc, err := s.GetDocument(ctx, kbID, docID)
	if err != nil {
		return nil, err
	}

	markdown, err := s.convert.Convert(ctx, doc.Filename, doc.Content)
	if err != nil {
		return nil, err
	}

	md := &models.MarkdownFile{
		ID:        uuid.New(),
		DocID:     doc.ID,
		Content:   markdown,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.mdRepo.Create(ctx, md); err != nil {
		return nil, err
	}

	s.logger.Info("document converted",
		zap.String("doc_id", doc.ID.String()),
		zap.String("md_id", md.ID.String()))
	return md, nil
}

// ListMarkdown returns the markdown files of all documents in a knowledge base
func (s *Service) ListMarkdown(ctx context.Context, kbID uuid.UUID) ([]*models.MarkdownFile, error) {
	docs, err := s.ListDocuments(ctx, kbID)
	if err != nil {
		return nil, err
	}

	docIDs := make([]uuid.UUID, len(docs))
	for i, doc := range docs {
		docIDs[i] = doc.ID
	}
	return s.mdRepo.ListByDocs(ctx, docIDs)
}

// GetMarkdown returns one markdown file, verifying its document belongs to
// the given knowledge base.
func (s *Service) GetMarkdown(ctx context.Context, kbID, mdID uuid.UUID) (*models.MarkdownFile, error) {
	md, err := s.mdRepo.GetByID(ctx, mdID)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetDocument(ctx, kbID, md.DocID); err != nil {
		return nil, err
	}
	return md, nil
}

// GenerateSummary produces and stores a summary for a markdown file.
// TODO: replace the truncation with an LLM-generated summary once the relay
// exposes an internal completion path.
func (s *Service) GenerateSummary(ctx context.Context, kbID, mdID uuid.UUID) (*models.MarkdownFile, error) {
	md, err := s.GetMarkdown(ctx, kbID, mdID)
	if err != nil {
		return nil, err
	}

	summary := md.Content
	if len(summary) > summaryLength {
		summary = summary[:summaryLength] + "..."
	}
	if err := s.mdRepo.UpdateSummary(ctx, mdID, summary); err != nil {
		return nil, err
	}

	md.Summary = summary
	return md, nil
}

// Export bundles all markdown files and their summaries of a knowledge base
// into a zip archive.
func (s *Service) Export(ctx context.Context, kbID uuid.UUID) ([]byte, error) {
	files, err := s.ListMarkdown(ctx, kbID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	archive := zip.NewWriter(&buf)

	var summaries strings.Builder
	for _, md := range files {
		entry, err := archive.Create("data/markdown/" + md.ID.String() + ".md")
		if err != nil {
			return nil, services.NewInternalError("failed to build export archive", err)
		}
		if _, err := entry.Write([]byte(md.Content)); err != nil {
			return nil, services.NewInternalError("failed to build export archive", err)
		}
		if md.Summary != "" {
			summaries.WriteString(md.ID.String())
			summaries.WriteString(": ")
			summaries.WriteString(md.Summary)
			summaries.WriteString("\n")
		}
	}

	entry, err := archive.Create("data/summary.txt")
	if err != nil {
		return nil, services.NewInternalError("failed to build export archive", err)
	}
	if _, err := entry.Write([]byte(summaries.String())); err != nil {
		return nil, services.NewInternalError("failed to build export archive", err)
	}

	if err := archive.Close(); err != nil {
		return nil, services.NewInternalError("failed to build export archive", err)
	}

	s.logger.Info("knowledge base exported",
		zap.String("kb_id", kbID.String()),
		zap.Int("markdown_files", len(files)))
	return buf.Bytes(), nil
}
