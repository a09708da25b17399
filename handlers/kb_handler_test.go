package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-gateway/models"
	"github.com/upb/llm-gateway/repositories"
	"github.com/upb/llm-gateway/services"
	"github.com/upb/llm-gateway/services/kb"
	"go.uber.org/zap"
)

// memoryStore is an in-memory implementation of all three repositories
type memoryStore struct {
	kbs  map[uuid.UUID]*models.KnowledgeBase
	docs map[uuid.UUID]*models.Document
	mds  map[uuid.UUID]*models.MarkdownFile
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		kbs:  map[uuid.UUID]*models.KnowledgeBase{},
		docs: map[uuid.UUID]*models.Document{},
		mds:  map[uuid.UUID]*models.MarkdownFile{},
	}
}

func (s *memoryStore) Create(ctx context.Context, kb *models.KnowledgeBase) error {
	s.kbs[kb.ID] = kb
	return nil
}

func (s *memoryStore) GetByID(ctx context.Context, id uuid.UUID) (*models.KnowledgeBase, error) {
	kb, ok := s.kbs[id]
	if !ok {
		return nil, services.NewNotFoundError("Knowledge base not found")
	}
	return kb, nil
}

func (s *memoryStore) List(ctx context.Context) ([]*models.KnowledgeBase, error) {
	var list []*models.KnowledgeBase
	for _, kb := range s.kbs {
		list = append(list, kb)
	}
	return list, nil
}

type memoryDocs struct{ store *memoryStore }

func (s memoryDocs) Create(ctx context.Context, doc *models.Document) error {
	s.store.docs[doc.ID] = doc
	return nil
}

func (s memoryDocs) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc, ok := s.store.docs[id]
	if !ok {
		return nil, services.NewNotFoundError("Document not found")
	}
	return doc, nil
}

func (s memoryDocs) ListByKB(ctx context.Context, kbID uuid.UUID) ([]*models.Document, error) {
	var list []*models.Document
	for _, doc := range s.store.docs {
		if doc.KBID == kbID {
			list = append(list, doc)
		}
	}
	return list, nil
}

type memoryMDs struct{ store *memoryStore }

func (s memoryMDs) Create(ctx context.Context, md *models.MarkdownFile) error {
	s.store.mds[md.ID] = md
	return nil
}

func (s memoryMDs) GetByID(ctx context.Context, id uuid.UUID) (*models.MarkdownFile, error) {
	md, ok := s.store.mds[id]
	if !ok {
		return nil, services.NewNotFoundError("Markdown file not found")
	}
	return md, nil
}

func (s memoryMDs) ListByDoc(ctx context.Context, docID uuid.UUID) ([]*models.MarkdownFile, error) {
	var list []*models.MarkdownFile
	for _, md := range s.store.mds {
		if md.DocID == docID {
			list = append(list, md)
		}
	}
	return list, nil
}

func (s memoryMDs) ListByDocs(ctx context.Context, docIDs []uuid.UUID) ([]*models.MarkdownFile, error) {
	var list []*models.MarkdownFile
	for _, docID := range docIDs {
		byDoc, _ := s.ListByDoc(ctx, docID)
		list = append(list, byDoc...)
	}
	return list, nil
}

func (s memoryMDs) UpdateSummary(ctx context.Context, id uuid.UUID, summary string) error {
	md, ok := s.store.mds[id]
	if !ok {
		return services.NewNotFoundError("Markdown file not found")
	}
	md.Summary = summary
	return nil
}

type staticConverter string

func (c staticConverter) Convert(ctx context.Context, filename string, content []byte) (string, error) {
	return string(c), nil
}

func newKBTestRouter(t *testing.T) (*chi.Mux, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	repos := &repositories.Repositories{
		KnowledgeBases: store,
		Documents:      memoryDocs{store},
		Markdown:       memoryMDs{store},
	}
	svc := kb.NewService(repos, staticConverter("# converted"), zap.NewNop())
	h := NewKBHandler(svc, zap.NewNop())

	r := chi.NewRouter()
	r.Post("/kb", h.HandleCreateKB)
	r.Get("/kb", h.HandleListKB)
	r.Route("/kb/{kbID}", func(r chi.Router) {
		r.Post("/docs", h.HandleUploadDocument)
		r.Get("/docs", h.HandleListDocuments)
		r.Get("/docs/{docID}", h.HandleDownloadDocument)
		r.Post("/docs/{docID}/to_markdown", h.HandleConvertDocument)
		r.Get("/markdown/{mdID}", h.HandleGetMarkdown)
	})
	return r, store
}

func TestHandleCreateKB(t *testing.T) {
	router, store := newKBTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/kb", strings.NewReader(`{"name":"papers","description":"research"}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	id, err := uuid.Parse(resp["kb_id"])
	require.NoError(t, err)
	assert.Contains(t, store.kbs, id)
}

func TestHandleCreateKBValidation(t *testing.T) {
	router, _ := newKBTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/kb", strings.NewReader(`{"description":"missing name"}`))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUploadAndDownloadDocument(t *testing.T) {
	router, store := newKBTestRouter(t)

	kbID := uuid.New()
	store.kbs[kbID] = &models.KnowledgeBase{ID: kbID, Name: "papers"}

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	part, err := writer.CreateFormFile("file", "report.pdf")
	require.NoError(t, err)
	part.Write([]byte("%PDF-1.4"))
	require.NoError(t, writer.Close())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/kb/"+kbID.String()+"/docs", &form)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	docID := resp["doc_id"]

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/kb/"+kbID.String()+"/docs/"+docID, nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.4", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "report.pdf")
}

func TestHandleDownloadDocumentWrongKB(t *testing.T) {
	router, store := newKBTestRouter(t)

	owner := uuid.New()
	intruder := uuid.New()
	docID := uuid.New()
	store.kbs[owner] = &models.KnowledgeBase{ID: owner}
	store.kbs[intruder] = &models.KnowledgeBase{ID: intruder}
	store.docs[docID] = &models.Document{ID: docID, KBID: owner, Filename: "report.pdf"}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/kb/"+intruder.String()+"/docs/"+docID.String(), nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleConvertDocument(t *testing.T) {
	router, store := newKBTestRouter(t)

	kbID := uuid.New()
	docID := uuid.New()
	store.kbs[kbID] = &models.KnowledgeBase{ID: kbID}
	store.docs[docID] = &models.Document{ID: docID, KBID: kbID, Filename: "report.pdf", Content: []byte("%PDF-1.4")}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/kb/"+kbID.String()+"/docs/"+docID.String()+"/to_markdown", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	mdID, err := uuid.Parse(resp["id"])
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/kb/"+kbID.String()+"/markdown/"+mdID.String(), nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var md map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &md))
	assert.Equal(t, "# converted", md["markdown"])
}

func TestHandleKBInvalidID(t *testing.T) {
	router, _ := newKBTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/kb/not-a-uuid/docs", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleKBMissingKB(t *testing.T) {
	router, _ := newKBTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/kb/"+uuid.NewString()+"/docs", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
