package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"demand-foresight/internal/ai"
	"demand-foresight/internal/metrics"
	"demand-foresight/internal/model"
	"demand-foresight/internal/pkg/pdfextract"
	"demand-foresight/internal/session"
	"demand-foresight/internal/task"
	"demand-foresight/internal/vectorindex"
)

const (
	embedBatchSize   = vectorindex.UpsertBatchSize
	embedParallelism = 4
	// summaryInputLimit caps the characters of document text sent for a summary.
	summaryInputLimit = 48000
)

type DocumentService struct {
	store   DocumentStore
	index   VectorIndex
	llm     LLM
	usage   *UsageService
	tasks   TaskRegistry
	extract PageExtractor
	metrics *metrics.Metrics
	logger  *zap.Logger

	embeddingModel string
	summaryModel   string
	now            func() time.Time
}

type DocumentServiceConfig struct {
	EmbeddingModel string
	SummaryModel   string
}

func NewDocumentService(
	store DocumentStore,
	index VectorIndex,
	llm LLM,
	usage *UsageService,
	tasks TaskRegistry,
	extract PageExtractor,
	m *metrics.Metrics,
	logger *zap.Logger,
	cfg DocumentServiceConfig,
) *DocumentService {
	if extract == nil {
		extract = pdfextract.ExtractPages
	}
	return &DocumentService{
		store:          store,
		index:          index,
		llm:            llm,
		usage:          usage,
		tasks:          tasks,
		extract:        extract,
		metrics:        m,
		logger:         logger,
		embeddingModel: cfg.EmbeddingModel,
		summaryModel:   cfg.SummaryModel,
		now:            time.Now,
	}
}

type UploadFile struct {
	Name string
	Data []byte
}

type UploadInput struct {
	Tag   string
	Files []UploadFile
}

type UploadFailure struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// UploadReport lists what was committed and what was not. A batch with
// failures is still a successful call.
type UploadReport struct {
	Uploaded []model.Document `json:"uploaded"`
	Failed   []UploadFailure  `json:"failed"`
}

type DocumentList struct {
	Owned    []model.Document `json:"owned"`
	Shared   []model.Document `json:"shared"`
	// Orphaned is only filled for admins.
	Orphaned []model.Document `json:"orphaned,omitempty"`
}

type DocumentContent struct {
	Document model.Document      `json:"document"`
	Pages    []vectorindex.Match `json:"pages"`
}

// List applies finished summaries, then returns the caller's partitions.
func (s *DocumentService) List(ctx context.Context, st *session.State) DocumentList {
	s.PollSummaries(ctx, st)
	list := DocumentList{Owned: st.Owned(), Shared: st.Shared()}
	if st.IsAdmin() {
		list.Orphaned = st.Orphaned()
	}
	return list
}

// Upload indexes and records each file independently. Titles are validated
// for the whole batch first; after that a failing file is reported and the
// rest continue.
func (s *DocumentService) Upload(ctx context.Context, st *session.State, input UploadInput) (*UploadReport, error) {
	tag := strings.TrimSpace(input.Tag)
	if tag == "" || len(input.Files) == 0 {
		return nil, ErrInvalidInput
	}
	if !st.HasTagName(tag) {
		return nil, fmt.Errorf("%w: %s", ErrTagNotFound, tag)
	}
	if err := checkTitles(st, input.Files); err != nil {
		return nil, err
	}

	report := &UploadReport{Uploaded: []model.Document{}, Failed: []UploadFailure{}}
	for _, f := range input.Files {
		title := fileTitle(f.Name)
		doc, owner, err := s.uploadOne(ctx, st.Username, tag, title, f.Data)
		if err != nil {
			s.logger.Warn("upload failed", zap.String("title", title), zap.String("username", st.Username), zap.Error(err))
			s.metrics.ObserveUpload("failed")
			report.Failed = append(report.Failed, UploadFailure{Title: title, Reason: err.Error()})
			continue
		}
		st.AddDocument(doc, owner)
		s.metrics.ObserveUpload("ok")
		report.Uploaded = append(report.Uploaded, doc)
	}
	return report, nil
}

func checkTitles(st *session.State, files []UploadFile) error {
	taken := make(map[string]struct{})
	for _, d := range st.Visible() {
		taken[d.Title] = struct{}{}
	}
	for _, f := range files {
		title := fileTitle(f.Name)
		if title == "" {
			return ErrInvalidInput
		}
		if _, dup := taken[title]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateTitle, title)
		}
		taken[title] = struct{}{}
	}
	return nil
}

func fileTitle(name string) string {
	return strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
}

// uploadOne runs chunk, embed, upsert, then the store write. When the store
// write fails the freshly upserted points are removed again.
func (s *DocumentService) uploadOne(ctx context.Context, username, tag, title string, data []byte) (model.Document, model.Grant, error) {
	pages, err := s.extract(data)
	if err != nil {
		return model.Document{}, model.Grant{}, err
	}
	if len(pages) == 0 {
		return model.Document{}, model.Grant{}, ErrNoText
	}

	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	vectors, err := s.embed(ctx, username, texts)
	if err != nil {
		return model.Document{}, model.Grant{}, err
	}

	documentID := uuid.NewString()
	points := make([]vectorindex.Point, len(pages))
	rows := make([]model.Vector, len(pages))
	pointIDs := make([]string, len(pages))
	for i, p := range pages {
		id := vectorindex.PointID(documentID, p.Number)
		pointIDs[i] = id
		points[i] = vectorindex.Point{
			ID:         id,
			Vector:     vectors[i],
			DocumentID: documentID,
			Name:       title,
			Tag:        tag,
			Page:       p.Number,
			Content:    p.Text,
		}
		rows[i] = model.Vector{DocumentID: documentID, VectorID: id}
	}
	if err := s.index.Upsert(ctx, points); err != nil {
		return model.Document{}, model.Grant{}, upstream("upsert vectors", err)
	}

	doc := model.Document{DocumentID: documentID, Title: title, Tag: tag, CreatedAt: s.now()}
	owner := model.Grant{
		ID:          uuid.NewString(),
		Username:    username,
		DocumentID:  documentID,
		AccessLevel: model.AccessWrite,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateDocument(ctx, &doc, &owner, rows); err != nil {
		if delErr := s.index.Delete(ctx, pointIDs); delErr != nil {
			s.logger.Warn("remove orphaned vectors failed", zap.String("title", title), zap.Error(delErr))
		}
		return model.Document{}, model.Grant{}, upstream("record document", err)
	}
	return doc, owner, nil
}

// embed computes embeddings in fixed-size batches, a few batches at a time,
// and charges the caller once for the whole file.
func (s *DocumentService) embed(ctx context.Context, username string, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	usages := make([]ai.Usage, (len(texts)+embedBatchSize-1)/embedBatchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedParallelism)
	for b := 0; b*embedBatchSize < len(texts); b++ {
		start := b * embedBatchSize
		end := min(start+embedBatchSize, len(texts))
		batch := b
		g.Go(func() error {
			out, usage, err := s.llm.Embed(gctx, s.embeddingModel, texts[start:end])
			if err != nil {
				return err
			}
			copy(vectors[start:end], out)
			usages[batch] = usage
			return nil
		})
	}
	err := g.Wait()

	var total ai.Usage
	for _, u := range usages {
		total = total.Add(u)
	}
	if _, chargeErr := s.usage.Charge(ctx, username, s.embeddingModel, total); chargeErr != nil {
		s.logger.Warn("charge embedding failed", zap.String("username", username), zap.Error(chargeErr))
	}
	if err != nil {
		return nil, upstream("embed pages", err)
	}
	return vectors, nil
}

// Delete removes index entries first and only then the store rows. If the
// index refuses, nothing in the store changes.
func (s *DocumentService) Delete(ctx context.Context, st *session.State, documentIDs []string) error {
	ids := dedupe(documentIDs)
	if len(ids) == 0 {
		return ErrInvalidInput
	}
	for _, id := range ids {
		if _, ok := st.Document(id); !ok {
			return fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
		}
		if !st.CanManage(id) {
			return ErrForbidden
		}
	}

	vectorIDs, err := s.store.ListVectorIDs(ctx, ids)
	if err != nil {
		return upstream("list vectors", err)
	}
	if err := s.index.Delete(ctx, vectorIDs); err != nil {
		return upstream("delete vectors", err)
	}
	if err := s.store.DeleteDocuments(ctx, ids); err != nil {
		return upstream("delete documents", err)
	}

	for _, id := range ids {
		if err := s.tasks.Forget(ctx, task.HandleFor(task.KindSummarize, id)); err != nil {
			s.logger.Debug("forget summary task failed", zap.String("document_id", id), zap.Error(err))
		}
	}
	st.RemoveDocuments(ids)
	s.metrics.ObserveDeleted(len(ids))
	return nil
}

// RequestSummary dispatches a summary job for an owned document, or for an
// orphaned one when the caller is an admin.
func (s *DocumentService) RequestSummary(ctx context.Context, st *session.State, documentID string) (task.Handle, error) {
	if _, ok := st.Document(documentID); !ok {
		return "", ErrDocumentNotFound
	}
	if !st.CanManage(documentID) {
		return "", ErrForbidden
	}
	handle, err := s.tasks.Submit(ctx, task.KindSummarize, documentID, st.Username)
	if err != nil {
		return "", upstream("submit summary", err)
	}
	s.metrics.ObserveSummary("submitted")
	return handle, nil
}

// PollSummaries applies every finished summary of the documents the caller
// manages, replacing any earlier summary. Failed and pending tasks leave the
// current summary in place.
func (s *DocumentService) PollSummaries(ctx context.Context, st *session.State) int {
	docs := st.Owned()
	if st.IsAdmin() {
		docs = append(docs, st.Orphaned()...)
	}
	applied := 0
	for _, doc := range docs {
		handle := task.HandleFor(task.KindSummarize, doc.DocumentID)
		res, err := s.tasks.Poll(ctx, handle)
		if err != nil {
			s.logger.Warn("poll summary failed", zap.String("document_id", doc.DocumentID), zap.Error(err))
			continue
		}
		switch res.Status {
		case task.StatusDone:
			if err := s.store.UpdateSummary(ctx, doc.DocumentID, res.Value); err != nil {
				s.logger.Warn("store summary failed", zap.String("document_id", doc.DocumentID), zap.Error(err))
				continue
			}
			st.SetSummary(doc.DocumentID, res.Value)
			_ = s.tasks.Forget(ctx, handle)
			s.metrics.ObserveSummary("applied")
			applied++
		case task.StatusFailed:
			s.logger.Info("summary task failed", zap.String("document_id", doc.DocumentID), zap.String("error", res.Error))
		}
	}
	return applied
}

// RunSummary is the background half of RequestSummary. It returns
// task.ErrSubjectGone when the document is deleted before or during the run.
func (s *DocumentService) RunSummary(ctx context.Context, job task.Job) (string, error) {
	if err := s.requireDocument(ctx, job.Subject); err != nil {
		return "", err
	}
	pages, err := s.pages(ctx, job.Subject)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, p := range pages {
		if b.Len() >= summaryInputLimit {
			break
		}
		b.WriteString(p.Content)
		b.WriteString("\n")
	}
	text := truncateUTF8(b.String(), summaryInputLimit)

	completion, err := s.llm.Complete(ctx, ai.CompletionRequest{
		Model: s.summaryModel,
		Messages: []ai.ChatMessage{
			{Role: ai.RoleSystem, Content: "Summarize the document in one short paragraph. Answer in the language of the document."},
			{Role: ai.RoleUser, Content: text},
		},
	})
	if err != nil {
		return "", upstream("summarize", err)
	}
	if _, err := s.usage.Charge(ctx, job.Submitter, s.summaryModel, completion.Usage); err != nil {
		s.logger.Warn("charge summary failed", zap.String("username", job.Submitter), zap.Error(err))
	}

	if err := s.requireDocument(ctx, job.Subject); err != nil {
		return "", err
	}

	summary := strings.TrimSpace(completion.Content)
	if summary == "" {
		return "", ErrNoContent
	}
	return summary, nil
}

func (s *DocumentService) requireDocument(ctx context.Context, documentID string) error {
	doc, err := s.store.GetByID(ctx, documentID)
	if err != nil {
		return upstream("load document", err)
	}
	if doc == nil {
		return fmt.Errorf("%w: document %s", task.ErrSubjectGone, documentID)
	}
	return nil
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	n := limit
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Content returns the indexed page text of a visible document.
func (s *DocumentService) Content(ctx context.Context, st *session.State, documentID string) (*DocumentContent, error) {
	doc, ok := st.Document(documentID)
	if !ok {
		return nil, ErrDocumentNotFound
	}
	if !st.CanRead(documentID) {
		return nil, ErrForbidden
	}
	pages, err := s.pages(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &DocumentContent{Document: doc, Pages: pages}, nil
}

func (s *DocumentService) pages(ctx context.Context, documentID string) ([]vectorindex.Match, error) {
	ids, err := s.store.ListVectorIDs(ctx, []string{documentID})
	if err != nil {
		return nil, upstream("list vectors", err)
	}
	if len(ids) == 0 {
		return nil, ErrNoContent
	}
	pages, err := s.index.Fetch(ctx, ids)
	if err != nil {
		return nil, upstream("fetch vectors", err)
	}
	if len(pages) == 0 {
		return nil, ErrNoContent
	}
	return pages, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
