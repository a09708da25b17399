package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/llm-gateway/middleware"
	"github.com/upb/llm-gateway/models"
	"github.com/upb/llm-gateway/services/kb"
	"github.com/upb/llm-gateway/utils"
	"go.uber.org/zap"
)

const maxUploadSize = 32 << 20 // 32 MB

// KBHandler exposes knowledge base and document management endpoints
type KBHandler struct {
	service *kb.Service
	logger  *zap.Logger
}

// NewKBHandler creates a knowledge base handler
func NewKBHandler(service *kb.Service, logger *zap.Logger) *KBHandler {
	return &KBHandler{service: service, logger: logger}
}

type createKBRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=1000"`
}

// HandleCreateKB handles POST /kb
func (h *KBHandler) HandleCreateKB(w http.ResponseWriter, r *http.Request) {
	var req createKBRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		WriteValidationError(w, err, h.logger)
		return
	}

	created, err := h.service.CreateKnowledgeBase(r.Context(), req.Name, req.Description)
	if err != nil {
		h.logError(r, "create knowledge base failed", err)
		WriteServiceError(w, err, h.logger)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"kb_id": created.ID.String()})
}

// HandleListKB handles GET /kb
func (h *KBHandler) HandleListKB(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListKnowledgeBases(r.Context())
	if err != nil {
		h.logError(r, "list knowledge bases failed", err)
		WriteServiceError(w, err, h.logger)
		return
	}
	if list == nil {
		list = []*models.KnowledgeBase{}
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"kb_list": list})
}

// HandleUploadDocument handles POST /kb/{kbID}/docs
func (h *KBHandler) HandleUploadDocument(w http.ResponseWriter, r *http.Request) {
	kbID, ok := h.pathID(w, r, "kbID")
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid multipart form", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		_ = utils.WriteBadRequest(w, "Missing file field", nil)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		_ = utils.WriteBadRequest(w, "Failed to read uploaded file", nil)
		return
	}

	doc, err := h.service.UploadDocument(r.Context(), kbID, header.Filename, content)
	if err != nil {
		h.logError(r, "upload document failed", err)
		WriteServiceError(w, err, h.logger)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"doc_id": doc.ID.String()})
}

// HandleListDocuments handles GET /kb/{kbID}/docs
func (h *KBHandler) HandleListDocuments(w http.ResponseWriter, r *http.Request) {
	kbID, ok := h.pathID(w, r, "kbID")
	if !ok {
		return
	}

	docs, err := h.service.ListDocuments(r.Context(), kbID)
	if err != nil {
		h.logError(r, "list documents failed", err)
		WriteServiceError(w, err, h.logger)
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"doc_list": docs})
}

// HandleDownloadDocument handles GET /kb/{kbID}/docs/{docID}
func (h *KBHandler) HandleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	kbID, ok := h.pathID(w, r, "kbID")
	if !ok {
		return
	}
	docID, ok := h.pathID(w, r, "docID")
	if !ok {
		return
	}

	doc, err := h.service.GetDocument(r.Context(), kbID, docID)
	if err != nil {
		h.logError(r, "download document failed", err)
		WriteServiceError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Content)
}

// HandleConvertDocument handles POST /kb/{kbID}/docs/{docID}/to_markdown
func (h *KBHandler) HandleConvertDocument(w http.ResponseWriter, r *http.Request) {
	kbID, ok := h.pathID(w, r, "kbID")
	if !ok {
		return
	}
	docID, ok := h.pathID(w, r, "docID")
	if !ok {
		return
	}

	md, err := h.service.ConvertDocument(r.Context(), kbID, docID)
	if err != nil {
		h.logError(r, "convert document failed", err)
		WriteServiceError(w, err, h.logger)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"id": md.ID.String()})
}

// HandleListMarkdown handles GET /kb/{kbID}/markdown
func (h *KBHandler) HandleListMarkdown(w http.ResponseWriter, r *http.Request) {
	kbID, ok := h.pathID(w, r, "kbID")
	if !ok {
		return
	}

	files, err := h.service.ListMarkdown(r.Context(), kbID)
	if err != nil {
		h.logError(r, "list markdown failed", err)
		WriteServiceError(w, err, h.logger)
		return
	}
	if files == nil {
		files = []*models.MarkdownFile{}
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"md_list": files})
}

// HandleGetMarkdown handles GET /kb/{kbID}/markdown/{mdID}
func (h *KBHandler) HandleGetMarkdown(w http.ResponseWriter, r *http.Request) {
	kbID, ok := h.pathID(w, r, "kbID")
	if !ok {
		return
	}
	mdID, ok := h.pathID(w, r, "mdID")
	if !ok {
		return
	}

	md, err := h.service.GetMarkdown(r.Context(), kbID, mdID)
	if err != nil {
		h.logError(r, "get markdown failed", err)
		WriteServiceError(w, err, h.logger)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"markdown": md.Content})
}

// HandleSummarizeMarkdown handles POST /kb/{kbID}/markdown/{mdID}/summary
func (h *KBHandler) HandleSummarizeMarkdown(w http.ResponseWriter, r *http.Request) {
	kbID, ok := h.pathID(w, r, "kbID")
	if !ok {
		return
	}
	mdID, ok := h.pathID(w, r, "mdID")
	if !ok {
		return
	}

	md, err := h.service.GenerateSummary(r.Context(), kbID, mdID)
	if err != nil {
		h.logError(r, "summarize markdown failed", err)
		WriteServiceError(w, err, h.logger)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"summary": md.Summary})
}

// HandleExport handles GET /kb/{kbID}/export
func (h *KBHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	kbID, ok := h.pathID(w, r, "kbID")
	if !ok {
		return
	}

	archive, err := h.service.Export(r.Context(), kbID)
	if err != nil {
		h.logError(r, "export knowledge base failed", err)
		WriteServiceError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+kbID.String()+`.zip"`)
	w.WriteHeader(http.StatusOK)
	w.Write(archive)
}

func (h *KBHandler) pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid "+param, nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *KBHandler) logError(r *http.Request, msg string, err error) {
	h.logger.Error(msg,
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.Error(err))
}
