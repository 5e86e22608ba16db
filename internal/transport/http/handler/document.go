package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"demand-foresight/internal/app"
	"demand-foresight/internal/transport/http/response"
)

const (
	maxPDFSize       = 10 << 20 // 10 MB
	maxFilesPerBatch = 20
)

type DocumentHandler struct {
	documentService *app.DocumentService
}

type DeleteDocumentsRequest struct {
	DocumentIDs []string `json:"document_ids" binding:"required,min=1"`
}

func NewDocumentHandler(documentService *app.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

func (h *DocumentHandler) List(c *gin.Context) {
	st, ok := requireSession(c)
	if !ok {
		return
	}
	response.OK(c, h.documentService.List(c.Request.Context(), st))
}

// Upload accepts a multipart form with one or more "files" (PDF) and a "tag".
// Files rejected here are reported alongside the service's own failures.
func (h *DocumentHandler) Upload(c *gin.Context) {
	st, ok := requireSession(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "invalid multipart form")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		badRequest(c, "missing files")
		return
	}
	if len(headers) > maxFilesPerBatch {
		badRequest(c, fmt.Sprintf("at most %d files per upload", maxFilesPerBatch))
		return
	}

	var (
		files    []app.UploadFile
		rejected []app.UploadFailure
	)
	for _, fh := range headers {
		data, reason := readPDF(fh)
		if reason != "" {
			rejected = append(rejected, app.UploadFailure{Title: fh.Filename, Reason: reason})
			continue
		}
		files = append(files, app.UploadFile{Name: fh.Filename, Data: data})
	}

	report := &app.UploadReport{}
	if len(files) > 0 {
		report, err = h.documentService.Upload(c.Request.Context(), st, app.UploadInput{
			Tag:   c.PostForm("tag"),
			Files: files,
		})
		if err != nil {
			writeError(c, err, "upload failed")
			return
		}
	}
	report.Failed = append(report.Failed, rejected...)
	response.OK(c, report)
}

func readPDF(fh *multipart.FileHeader) ([]byte, string) {
	if strings.ToLower(filepath.Ext(fh.Filename)) != ".pdf" {
		return nil, "only PDF files are allowed"
	}
	if fh.Size > maxPDFSize {
		return nil, "file too large (max 10MB)"
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "failed to read file"
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxPDFSize+1))
	if err != nil {
		return nil, "failed to read file"
	}
	if len(data) > maxPDFSize {
		return nil, "file too large (max 10MB)"
	}
	return data, ""
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	st, ok := requireSession(c)
	if !ok {
		return
	}
	var req DeleteDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	if err := h.documentService.Delete(c.Request.Context(), st, req.DocumentIDs); err != nil {
		writeError(c, err, "delete documents failed")
		return
	}
	response.OK(c, gin.H{"deleted_document_ids": req.DocumentIDs})
}

func (h *DocumentHandler) RequestSummary(c *gin.Context) {
	st, ok := requireSession(c)
	if !ok {
		return
	}
	handle, err := h.documentService.RequestSummary(c.Request.Context(), st, c.Param("id"))
	if err != nil {
		writeError(c, err, "request summary failed")
		return
	}
	response.OK(c, gin.H{"task": handle})
}

func (h *DocumentHandler) Content(c *gin.Context) {
	st, ok := requireSession(c)
	if !ok {
		return
	}
	content, err := h.documentService.Content(c.Request.Context(), st, c.Param("id"))
	if err != nil {
		writeError(c, err, "load document content failed")
		return
	}
	response.OK(c, content)
}
