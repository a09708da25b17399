package kb

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-gateway/models"
	"github.com/upb/llm-gateway/repositories"
	"github.com/upb/llm-gateway/services"
	"go.uber.org/zap"
)

type mockKBRepo struct{ mock.Mock }

func (m *mockKBRepo) Create(ctx context.Context, kb *models.KnowledgeBase) error {
	return m.Called(ctx, kb).Error(0)
}

func (m *mockKBRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.KnowledgeBase, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.KnowledgeBase), args.Error(1)
}

func (m *mockKBRepo) List(ctx context.Context) ([]*models.KnowledgeBase, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.KnowledgeBase), args.Error(1)
}

type mockDocRepo struct{ mock.Mock }

func (m *mockDocRepo) Create(ctx context.Context, doc *models.Document) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *mockDocRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Document), args.Error(1)
}

func (m *mockDocRepo) ListByKB(ctx context.Context, kbID uuid.UUID) ([]*models.Document, error) {
	args := m.Called(ctx, kbID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Document), args.Error(1)
}

type mockMDRepo struct{ mock.Mock }

func (m *mockMDRepo) Create(ctx context.Context, md *models.MarkdownFile) error {
	return m.Called(ctx, md).Error(0)
}

func (m *mockMDRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.MarkdownFile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MarkdownFile), args.Error(1)
}

func (m *mockMDRepo) ListByDoc(ctx context.Context, docID uuid.UUID) ([]*models.MarkdownFile, error) {
	args := m.Called(ctx, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MarkdownFile), args.Error(1)
}

func (m *mockMDRepo) ListByDocs(ctx context.Context, docIDs []uuid.UUID) ([]*models.MarkdownFile, error) {
	args := m.Called(ctx, docIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MarkdownFile), args.Error(1)
}

func (m *mockMDRepo) UpdateSummary(ctx context.Context, id uuid.UUID, summary string) error {
	return m.Called(ctx, id, summary).Error(0)
}

// fakeConverter returns a fixed markdown result
type fakeConverter struct {
	markdown string
	err      error
	gotName  string
}

func (f *fakeConverter) Convert(ctx context.Context, filename string, content []byte) (string, error) {
	f.gotName = filename
	return f.markdown, f.err
}

type serviceMocks struct {
	kb   *mockKBRepo
	doc  *mockDocRepo
	md   *mockMDRepo
	conv *fakeConverter
}

func newTestService(t *testing.T) (*Service, *serviceMocks) {
	t.Helper()
	m := &serviceMocks{
		kb:   &mockKBRepo{},
		doc:  &mockDocRepo{},
		md:   &mockMDRepo{},
		conv: &fakeConverter{markdown: "# converted"},
	}
	repos := &repositories.Repositories{
		KnowledgeBases: m.kb,
		Documents:      m.doc,
		Markdown:       m.md,
	}
	return NewService(repos, m.conv, zap.NewNop()), m
}

func TestCreateKnowledgeBase(t *testing.T) {
	svc, m := newTestService(t)
	m.kb.On("Create", mock.Anything, mock.AnythingOfType("*models.KnowledgeBase")).Return(nil)

	kb, err := svc.CreateKnowledgeBase(context.Background(), "papers", "research papers")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, kb.ID)
	assert.Equal(t, "papers", kb.Name)
	assert.False(t, kb.CreatedAt.IsZero())
	m.kb.AssertExpectations(t)
}

func TestCreateKnowledgeBaseRejectsEmptyName(t *testing.T) {
	svc, m := newTestService(t)

	_, err := svc.CreateKnowledgeBase(context.Background(), "  ", "")
	assert.True(t, services.IsInvalidRequest(err))
	m.kb.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUploadDocument(t *testing.T) {
	svc, m := newTestService(t)
	kbID := uuid.New()
	m.kb.On("GetByID", mock.Anything, kbID).Return(&models.KnowledgeBase{ID: kbID}, nil)
	m.doc.On("Create", mock.Anything, mock.AnythingOfType("*models.Document")).Return(nil)

	doc, err := svc.UploadDocument(context.Background(), kbID, "report.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, kbID, doc.KBID)
	assert.Equal(t, "report.pdf", doc.Filename)
	assert.Equal(t, "pdf", doc.Suffix)
	m.doc.AssertExpectations(t)
}

func TestUploadDocumentMissingKB(t *testing.T) {
	svc, m := newTestService(t)
	kbID := uuid.New()
	m.kb.On("GetByID", mock.Anything, kbID).Return(nil, services.NewNotFoundError("Knowledge base not found"))

	_, err := svc.UploadDocument(context.Background(), kbID, "report.pdf", []byte("x"))
	assert.Equal(t, services.ErrorKindNotFound, services.KindOf(err))
	m.doc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGetDocumentOwnershipCheck(t *testing.T) {
	svc, m := newTestService(t)
	kbID := uuid.New()
	otherKB := uuid.New()
	docID := uuid.New()
	m.doc.On("GetByID", mock.Anything, docID).Return(&models.Document{ID: docID, KBID: otherKB}, nil)

	_, err := svc.GetDocument(context.Background(), kbID, docID)
	require.Error(t, err)
	assert.Equal(t, services.ErrorKindForbidden, services.KindOf(err))
}

func TestConvertDocument(t *testing.T) {
	svc, m := newTestService(t)
	kbID := uuid.New()
	docID := uuid.New()
	m.doc.On("GetByID", mock.Anything, docID).Return(&models.Document{
		ID: docID, KBID: kbID, Filename: "report.pdf", Content: []byte("%PDF-1.4"),
	}, nil)
	m.md.On("Create", mock.Anything, mock.AnythingOfType("*models.MarkdownFile")).Return(nil)

	md, err := svc.ConvertDocument(context.Background(), kbID, docID)
	require.NoError(t, err)
	assert.Equal(t, docID, md.DocID)
	assert.Equal(t, "# converted", md.Content)
	assert.Equal(t, "report.pdf", m.conv.gotName)
}

func TestConvertDocumentConverterFailure(t *testing.T) {
	svc, m := newTestService(t)
	kbID := uuid.New()
	docID := uuid.New()
	m.doc.On("GetByID", mock.Anything, docID).Return(&models.Document{ID: docID, KBID: kbID}, nil)
	m.conv.err = services.NewInternalError("converter unavailable", nil)

	_, err := svc.ConvertDocument(context.Background(), kbID, docID)
	assert.Equal(t, services.ErrorKindInternal, services.KindOf(err))
	m.md.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGenerateSummaryTruncatesLongContent(t *testing.T) {
	svc, m := newTestService(t)
	kbID := uuid.New()
	docID := uuid.New()
	mdID := uuid.New()

	long := bytes.Repeat([]byte("a"), 250)
	m.md.On("GetByID", mock.Anything, mdID).Return(&models.MarkdownFile{ID: mdID, DocID: docID, Content: string(long)}, nil)
	m.doc.On("GetByID", mock.Anything, docID).Return(&models.Document{ID: docID, KBID: kbID}, nil)
	m.md.On("UpdateSummary", mock.Anything, mdID, string(long[:100])+"...").Return(nil)

	md, err := svc.GenerateSummary(context.Background(), kbID, mdID)
	require.NoError(t, err)
	assert.Len(t, md.Summary, 103)
	m.md.AssertExpectations(t)
}

func TestGenerateSummaryShortContentUnchanged(t *testing.T) {
	svc, m := newTestService(t)
	kbID := uuid.New()
	docID := uuid.New()
	mdID := uuid.New()

	m.md.On("GetByID", mock.Anything, mdID).Return(&models.MarkdownFile{ID: mdID, DocID: docID, Content: "short"}, nil)
	m.doc.On("GetByID", mock.Anything, docID).Return(&models.Document{ID: docID, KBID: kbID}, nil)
	m.md.On("UpdateSummary", mock.Anything, mdID, "short").Return(nil)

	md, err := svc.GenerateSummary(context.Background(), kbID, mdID)
	require.NoError(t, err)
	assert.Equal(t, "short", md.Summary)
}

func TestExport(t *testing.T) {
	svc, m := newTestService(t)
	kbID := uuid.New()
	docID := uuid.New()
	mdID := uuid.New()

	m.kb.On("GetByID", mock.Anything, kbID).Return(&models.KnowledgeBase{ID: kbID}, nil)
	m.doc.On("ListByKB", mock.Anything, kbID).Return([]*models.Document{{ID: docID, KBID: kbID}}, nil)
	m.md.On("ListByDocs", mock.Anything, []uuid.UUID{docID}).Return([]*models.MarkdownFile{
		{ID: mdID, DocID: docID, Content: "# converted", Summary: "a summary"},
	}, nil)

	archive, err := svc.Export(context.Background(), kbID)
	require.NoError(t, err)

	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)

	contents := map[string]string{}
	for _, f := range reader.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		contents[f.Name] = string(data)
	}

	assert.Equal(t, "# converted", contents["data/markdown/"+mdID.String()+".md"])
	assert.Contains(t, contents["data/summary.txt"], "a summary")
}
