package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"demand-foresight/internal/ai"
	"demand-foresight/internal/cost"
	"demand-foresight/internal/metrics"
	"demand-foresight/internal/model"
	"demand-foresight/internal/pkg/pdfextract"
	"demand-foresight/internal/session"
	"demand-foresight/internal/task"
	"demand-foresight/internal/vectorindex"
)

var errInjected = errors.New("injected failure")

// fakeStore is an in-memory document store shared by the document, grant
// and tag fakes so cascades can be observed.
type fakeStore struct {
	mu        sync.Mutex
	documents map[string]model.Document
	grants    map[string]model.Grant
	vectors   []model.Vector
	tags      map[string]model.Tag

	failCreate bool
	failDelete bool
	failRename bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		documents: map[string]model.Document{},
		grants:    map[string]model.Grant{},
		tags:      map[string]model.Tag{},
	}
}

func (f *fakeStore) ListDocuments(context.Context) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Document, 0, len(f.documents))
	for _, d := range f.documents {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out, nil
}

func (f *fakeStore) ListGrants(context.Context) ([]model.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Grant, 0, len(f.grants))
	for _, g := range f.grants {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListTags(context.Context) ([]model.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Tag, 0, len(f.tags))
	for _, t := range f.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out, nil
}

func (f *fakeStore) GetByID(_ context.Context, documentID string) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.documents[documentID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (f *fakeStore) CreateDocument(_ context.Context, doc *model.Document, owner *model.Grant, vectors []model.Vector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errInjected
	}
	f.documents[doc.DocumentID] = *doc
	f.grants[owner.ID] = *owner
	f.vectors = append(f.vectors, vectors...)
	return nil
}

func (f *fakeStore) ListVectorIDs(_ context.Context, documentIDs []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := toSet(documentIDs)
	var out []string
	for _, v := range f.vectors {
		if _, ok := want[v.DocumentID]; ok {
			out = append(out, v.VectorID)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteDocuments(_ context.Context, documentIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errInjected
	}
	drop := toSet(documentIDs)
	for id, g := range f.grants {
		if _, ok := drop[g.DocumentID]; ok {
			delete(f.grants, id)
		}
	}
	for id := range drop {
		delete(f.documents, id)
	}
	kept := f.vectors[:0]
	for _, v := range f.vectors {
		if _, ok := drop[v.DocumentID]; !ok {
			kept = append(kept, v)
		}
	}
	f.vectors = kept
	return nil
}

func (f *fakeStore) UpdateSummary(_ context.Context, documentID, summary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.documents[documentID]
	d.Summary = summary
	f.documents[documentID] = d
	return nil
}

func (f *fakeStore) ApplyChanges(_ context.Context, create []model.Grant, deleteIDs []string) ([]model.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range deleteIDs {
		delete(f.grants, id)
	}
	out := make([]model.Grant, len(create))
	for i, g := range create {
		g.ID = fmt.Sprintf("g-%s-%s", g.Username, g.DocumentID)
		f.grants[g.ID] = g
		out[i] = g
	}
	return out, nil
}

func (f *fakeStore) CreateTags(_ context.Context, tags []model.Tag) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tags {
		f.tags[t.TagID] = t
	}
	return nil
}

func (f *fakeStore) RenameTag(_ context.Context, tagID, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRename {
		return errInjected
	}
	t, ok := f.tags[tagID]
	if !ok {
		return errors.New("record not found")
	}
	old := t.Tag
	t.Tag = newName
	f.tags[tagID] = t
	for id, d := range f.documents {
		if d.Tag == old {
			d.Tag = newName
			f.documents[id] = d
		}
	}
	return nil
}

func (f *fakeStore) DeleteTag(_ context.Context, tagID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tags, tagID)
	return nil
}

func (f *fakeStore) addDocument(id, title, tag, owner string) {
	f.documents[id] = model.Document{DocumentID: id, Title: title, Tag: tag}
	f.grants["w-"+id] = model.Grant{ID: "w-" + id, Username: owner, DocumentID: id, AccessLevel: model.AccessWrite}
}

func (f *fakeStore) load(username string, role model.Role) *session.State {
	st, err := session.Load(context.Background(), f, username, role)
	if err != nil {
		panic(err)
	}
	return st
}

type fakeIndex struct {
	mu         sync.Mutex
	points     map[string]vectorindex.Point
	failDelete bool
	failUpsert bool
	queries    [][]string
	leak       *vectorindex.Match
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{points: map[string]vectorindex.Point{}}
}

func (f *fakeIndex) Upsert(_ context.Context, points []vectorindex.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsert {
		return errInjected
	}
	for _, p := range points {
		f.points[p.ID] = p
	}
	return nil
}

func (f *fakeIndex) Delete(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errInjected
	}
	for _, id := range ids {
		delete(f.points, id)
	}
	return nil
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, k int, documentIDs []string) ([]vectorindex.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(documentIDs) == 0 {
		return nil, vectorindex.ErrUnfilteredQuery
	}
	f.queries = append(f.queries, append([]string(nil), documentIDs...))
	allowed := toSet(documentIDs)
	var out []vectorindex.Match
	for _, p := range f.points {
		if _, ok := allowed[p.DocumentID]; ok {
			out = append(out, matchOfPoint(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.leak != nil {
		out = append(out, *f.leak)
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (f *fakeIndex) Fetch(_ context.Context, ids []string) ([]vectorindex.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []vectorindex.Match
	for _, id := range ids {
		if p, ok := f.points[id]; ok {
			out = append(out, matchOfPoint(p))
		}
	}
	vectorindex.SortByPage(out)
	return out, nil
}

func (f *fakeIndex) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points)
}

func matchOfPoint(p vectorindex.Point) vectorindex.Match {
	return vectorindex.Match{ID: p.ID, DocumentID: p.DocumentID, Name: p.Name, Tag: p.Tag, Page: p.Page, Content: p.Content}
}

// fakeLLM fails embedding for any text containing "boom".
type fakeLLM struct {
	mu          sync.Mutex
	embedCalls  int
	completions []ai.CompletionRequest
	streamed    []ai.CompletionRequest
	reply       string
	failStream  bool
	failTitle   bool
	// onComplete runs inside Complete, e.g. to delete a document mid-job.
	onComplete func()
}

func (f *fakeLLM) Embed(_ context.Context, _ string, texts []string) ([][]float32, ai.Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if strings.Contains(t, "boom") {
			return nil, ai.Usage{}, errInjected
		}
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, ai.Usage{PromptTokens: 10 * len(texts)}, nil
}

func (f *fakeLLM) Complete(_ context.Context, req ai.CompletionRequest) (ai.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions = append(f.completions, req)
	if f.onComplete != nil {
		f.onComplete()
	}
	if f.failTitle {
		return ai.Completion{}, errInjected
	}
	return ai.Completion{Content: "Generated", Usage: ai.Usage{PromptTokens: 20, CompletionTokens: 5}}, nil
}

func (f *fakeLLM) StreamComplete(_ context.Context, req ai.CompletionRequest, onChunk func(string) error) (ai.Completion, error) {
	f.mu.Lock()
	f.streamed = append(f.streamed, req)
	reply, fail := f.reply, f.failStream
	f.mu.Unlock()
	if fail {
		return ai.Completion{}, errInjected
	}
	if reply == "" {
		reply = "The forecast is up."
	}
	for _, part := range strings.SplitAfter(reply, " ") {
		if err := onChunk(part); err != nil {
			return ai.Completion{}, err
		}
	}
	return ai.Completion{Content: reply, Usage: ai.Usage{PromptTokens: 1000, CompletionTokens: 100}}, nil
}

type fakeCosts struct {
	mu      sync.Mutex
	records []model.CostRecord
}

func (f *fakeCosts) Append(_ context.Context, r *model.CostRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *r)
	return nil
}

func (f *fakeCosts) List(_ context.Context, username string) ([]model.CostRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CostRecord
	for _, r := range f.records {
		if username == "" || r.Username == username {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeCosts) total(username string) float64 {
	records, _ := f.List(context.Background(), username)
	var sum float64
	for _, r := range records {
		sum += r.Cost
	}
	return sum
}

type fakeTasks struct {
	results   map[task.Handle]task.Result
	submitted []task.Handle
	forgotten []task.Handle
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{results: map[task.Handle]task.Result{}}
}

func (f *fakeTasks) Submit(_ context.Context, kind, subject, _ string) (task.Handle, error) {
	h := task.HandleFor(kind, subject)
	f.results[h] = task.Result{Status: task.StatusPending}
	f.submitted = append(f.submitted, h)
	return h, nil
}

func (f *fakeTasks) Poll(_ context.Context, h task.Handle) (task.Result, error) {
	r, ok := f.results[h]
	if !ok {
		return task.Result{Status: task.StatusUnknown}, nil
	}
	return r, nil
}

func (f *fakeTasks) Forget(_ context.Context, h task.Handle) error {
	delete(f.results, h)
	f.forgotten = append(f.forgotten, h)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []model.ChatMessage
	fail     bool
}

func (f *fakePublisher) Publish(_ context.Context, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errInjected
	}
	f.messages = append(f.messages, payload.(model.ChatMessage))
	return nil
}

type fakeMessages struct {
	messages []model.ChatMessage
}

func (f *fakeMessages) ListByUsername(_ context.Context, username string) ([]model.ChatMessage, error) {
	var out []model.ChatMessage
	for _, m := range f.messages {
		if m.Username == username {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessages) ListByChat(_ context.Context, username, chatID string, _ int) ([]model.ChatMessage, error) {
	var out []model.ChatMessage
	for _, m := range f.messages {
		if m.Username == username && m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeUsers struct {
	users map[string]model.User
	next  uint
}

func newFakeUsers(names ...string) *fakeUsers {
	f := &fakeUsers{users: map[string]model.User{}}
	for _, n := range names {
		f.next++
		f.users[n] = model.User{ID: f.next, Username: n, Role: model.RoleMember}
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.next++
	u.ID = f.next
	f.users[u.Username] = *u
	return nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f *fakeUsers) List(context.Context) ([]model.User, error) {
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeUsers) CountByRole(_ context.Context, role model.Role) (int64, error) {
	var n int64
	for _, u := range f.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (f *fakeUsers) DeleteByUsername(_ context.Context, username string) error {
	delete(f.users, username)
	return nil
}

// textExtractor treats every form-feed separated part of the upload as one page.
func textExtractor(data []byte) ([]pdfextract.Page, error) {
	var pages []pdfextract.Page
	for i, part := range strings.Split(string(data), "\f") {
		if len(strings.TrimSpace(part)) < pdfextract.MinPageChars {
			continue
		}
		pages = append(pages, pdfextract.Page{Number: i + 1, Text: part})
	}
	return pages, nil
}

func newTestUsage(costs *fakeCosts) *UsageService {
	s := NewUsageService(costs, cost.DefaultPrices, metrics.New(), zap.NewNop())
	s.now = func() time.Time { return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC) }
	return s
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
