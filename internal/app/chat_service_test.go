package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"demand-foresight/internal/access"
	"demand-foresight/internal/metrics"
	"demand-foresight/internal/model"
	"demand-foresight/internal/vectorindex"
)

type chatFixture struct {
	store     *fakeStore
	index     *fakeIndex
	llm       *fakeLLM
	costs     *fakeCosts
	publisher *fakePublisher
	messages  *fakeMessages
	svc       *ChatService
}

func newChatFixture() *chatFixture {
	f := &chatFixture{
		store:     newFakeStore(),
		index:     newFakeIndex(),
		llm:       &fakeLLM{},
		costs:     &fakeCosts{},
		publisher: &fakePublisher{},
		messages:  &fakeMessages{},
	}
	f.store.addDocument("d1", "mine.pdf", "AI", "alice")
	f.store.addDocument("d2", "market.pdf", "Market", "alice")
	f.store.addDocument("d3", "secret.pdf", "AI", "carol")
	for _, p := range []vectorindex.Point{
		{ID: "p1", DocumentID: "d1", Name: "mine.pdf", Tag: "AI", Page: 1, Content: "AI demand rises"},
		{ID: "p2", DocumentID: "d2", Name: "market.pdf", Tag: "Market", Page: 2, Content: "market is flat"},
		{ID: "p3", DocumentID: "d3", Name: "secret.pdf", Tag: "AI", Page: 1, Content: "confidential"},
	} {
		f.index.points[p.ID] = p
	}
	f.svc = NewChatService(f.messages, nil, f.publisher, f.index, f.llm, newTestUsage(f.costs), metrics.New(), zap.NewNop(), ChatConfig{
		Models:         []string{"gpt-4o", "claude-3-5-sonnet-20241022"},
		TitleModel:     "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
		TopK:           8,
		MaxContext:     4,
	})
	return f
}

func collect(chunks *[]string) func(string) error {
	return func(c string) error {
		*chunks = append(*chunks, c)
		return nil
	}
}

func TestStreamMessageNewChat(t *testing.T) {
	f := newChatFixture()
	st := f.store.load("alice", model.RoleMember)

	var chunks []string
	res, err := f.svc.StreamMessage(context.Background(), st, StreamMessageInput{
		Content: "What is the AI demand?",
		Tag:     "AI",
	}, collect(&chunks))
	require.NoError(t, err)

	assert.NotEmpty(t, res.ChatID)
	assert.Equal(t, "Generated", res.Title)
	assert.Equal(t, "The forecast is up.", strings.Join(chunks, ""))
	assert.Equal(t, "The forecast is up.", res.Answer)
	assert.Equal(t, []Source{{Name: "mine.pdf", Page: 1}}, res.Sources)

	require.Len(t, f.index.queries, 1)
	assert.Equal(t, []string{"d1"}, f.index.queries[0])

	require.Len(t, f.publisher.messages, 2)
	assert.Equal(t, model.RoleUserMessage, f.publisher.messages[0].Role)
	assert.Equal(t, model.RoleAssistantMessage, f.publisher.messages[1].Role)
	for _, m := range f.publisher.messages {
		assert.Equal(t, res.ChatID, m.ChatID)
		assert.Equal(t, "Generated", m.Title)
		assert.Equal(t, "alice", m.Username)
	}

	require.Len(t, f.llm.streamed, 1)
	system := f.llm.streamed[0].Messages[0].Content
	assert.Contains(t, system, `<item name="mine.pdf" page="1">`)
	assert.NotContains(t, system, "confidential")
	assert.Equal(t, "gpt-4o", f.llm.streamed[0].Model)

	assert.InDelta(t, f.costs.total("alice"), res.Cost, 1e-12)
	assert.Greater(t, res.Cost, 0.0)
}

func TestStreamMessageNoMatchingDocumentsShortCircuits(t *testing.T) {
	f := newChatFixture()
	st := f.store.load("bob", model.RoleMember)

	_, err := f.svc.StreamMessage(context.Background(), st, StreamMessageInput{Content: "anything?"}, collect(new([]string)))
	require.ErrorIs(t, err, access.ErrNoMatchingDocuments)
	assert.Empty(t, f.index.queries)
	assert.Zero(t, f.llm.embedCalls)
	assert.Empty(t, f.llm.streamed)
	assert.Empty(t, f.publisher.messages)
}

func TestStreamMessageExplicitTitlesCannotEscapeVisibleSet(t *testing.T) {
	f := newChatFixture()
	st := f.store.load("alice", model.RoleMember)

	_, err := f.svc.StreamMessage(context.Background(), st, StreamMessageInput{
		Content: "tell me secrets",
		Titles:  []string{"secret.pdf", "market.pdf"},
	}, collect(new([]string)))
	require.NoError(t, err)
	require.Len(t, f.index.queries, 1)
	assert.Equal(t, []string{"d2"}, f.index.queries[0])

	_, err = f.svc.StreamMessage(context.Background(), st, StreamMessageInput{
		Content: "tell me secrets",
		Titles:  []string{"secret.pdf"},
	}, collect(new([]string)))
	assert.ErrorIs(t, err, access.ErrNoMatchingDocuments)
}

func TestStreamMessageDropsLeakedMatches(t *testing.T) {
	f := newChatFixture()
	f.index.leak = &vectorindex.Match{ID: "px", DocumentID: "d3", Name: "secret.pdf", Page: 9, Content: "confidential"}
	st := f.store.load("alice", model.RoleMember)

	res, err := f.svc.StreamMessage(context.Background(), st, StreamMessageInput{Content: "q", Tag: "AI"}, collect(new([]string)))
	require.NoError(t, err)
	for _, s := range res.Sources {
		assert.NotEqual(t, "secret.pdf", s.Name)
	}
	assert.NotContains(t, f.llm.streamed[0].Messages[0].Content, "confidential")
}

func TestStreamMessageSameTitleOtherOwnerStaysHidden(t *testing.T) {
	f := newChatFixture()
	f.store.addDocument("d4", "secret.pdf", "AI", "alice")
	f.index.points["p4"] = vectorindex.Point{ID: "p4", DocumentID: "d4", Name: "secret.pdf", Tag: "AI", Page: 1, Content: "alice notes"}
	st := f.store.load("alice", model.RoleMember)

	for _, in := range []StreamMessageInput{
		{Content: "what is in secret.pdf?", Titles: []string{"secret.pdf"}},
		{Content: "what is in secret.pdf?", Tag: "AI"},
	} {
		_, err := f.svc.StreamMessage(context.Background(), st, in, collect(new([]string)))
		require.NoError(t, err)
		assert.NotContains(t, f.index.queries[len(f.index.queries)-1], "d3")
		system := f.llm.streamed[len(f.llm.streamed)-1].Messages[0].Content
		assert.Contains(t, system, "alice notes")
		assert.NotContains(t, system, "confidential")
	}
	assert.Equal(t, []string{"d4"}, f.index.queries[0])
}

func TestStreamMessageExistingChatKeepsTitle(t *testing.T) {
	f := newChatFixture()
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, role := range []string{model.RoleUserMessage, model.RoleAssistantMessage} {
		f.messages.messages = append(f.messages.messages, model.ChatMessage{
			MessageID: string(rune('a' + i)), Username: "alice", ChatID: "c1", Title: "Q2 outlook",
			Role: role, Content: "earlier " + role, Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}
	st := f.store.load("alice", model.RoleMember)

	res, err := f.svc.StreamMessage(context.Background(), st, StreamMessageInput{
		ChatID: "c1", Content: "and next quarter?", Tag: access.AllTags,
	}, collect(new([]string)))
	require.NoError(t, err)
	assert.Equal(t, "Q2 outlook", res.Title)
	assert.Empty(t, f.llm.completions)

	prompt := f.llm.streamed[0].Messages
	require.Len(t, prompt, 4)
	assert.Equal(t, "earlier user", prompt[1].Content)
	assert.Equal(t, "earlier assistant", prompt[2].Content)
	assert.Equal(t, "and next quarter?", prompt[3].Content)

	_, err = f.svc.StreamMessage(context.Background(), st, StreamMessageInput{ChatID: "nope", Content: "x"}, collect(new([]string)))
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestStreamMessageValidation(t *testing.T) {
	f := newChatFixture()
	st := f.store.load("alice", model.RoleMember)

	_, err := f.svc.StreamMessage(context.Background(), st, StreamMessageInput{Content: "  "}, collect(new([]string)))
	assert.ErrorIs(t, err, ErrMessageEmpty)
	_, err = f.svc.StreamMessage(context.Background(), st, StreamMessageInput{Content: "q", Model: "gpt-3"}, collect(new([]string)))
	assert.ErrorIs(t, err, ErrModelNotOffered)
}

func TestStreamMessageTitleFallback(t *testing.T) {
	f := newChatFixture()
	f.llm.failTitle = true
	st := f.store.load("alice", model.RoleMember)

	question := "需求預測在下個季度會如何變化，請依據市場報告說明細節與風險，並提供採購建議"
	res, err := f.svc.StreamMessage(context.Background(), st, StreamMessageInput{Content: question}, collect(new([]string)))
	require.NoError(t, err)
	assert.Equal(t, string([]rune(question)[:titleFallback]), res.Title)
}

func TestStreamMessageEnqueueFailure(t *testing.T) {
	f := newChatFixture()
	f.publisher.fail = true
	st := f.store.load("alice", model.RoleMember)

	_, err := f.svc.StreamMessage(context.Background(), st, StreamMessageInput{Content: "q"}, collect(new([]string)))
	assert.ErrorIs(t, err, ErrMessageEnqueue)
	assert.Empty(t, f.llm.streamed)
}

func TestGroupChats(t *testing.T) {
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	msgs := []model.ChatMessage{
		{ChatID: "old", Title: "Old", Content: "2", Timestamp: base.Add(2 * time.Minute)},
		{ChatID: "new", Title: "New", Content: "1", Timestamp: base.Add(time.Hour)},
		{ChatID: "old", Title: "Old", Content: "1", Timestamp: base},
	}
	chats := GroupChats(msgs)
	require.Len(t, chats, 2)
	assert.Equal(t, "new", chats[0].ChatID)
	assert.Equal(t, "old", chats[1].ChatID)
	assert.Equal(t, "1", chats[1].Messages[0].Content)
	assert.Equal(t, "2", chats[1].Messages[1].Content)
}

func TestListAndGetChat(t *testing.T) {
	f := newChatFixture()
	f.messages.messages = []model.ChatMessage{
		{MessageID: "m1", Username: "alice", ChatID: "c1", Title: "T", Content: "hi"},
		{MessageID: "m2", Username: "bob", ChatID: "c2", Title: "B", Content: "yo"},
	}
	chats, err := f.svc.ListChats(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, chats, 1)

	chat, err := f.svc.GetChat(context.Background(), "alice", "c1")
	require.NoError(t, err)
	assert.Equal(t, "T", chat.Title)

	_, err = f.svc.GetChat(context.Background(), "alice", "c2")
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestFormatContext(t *testing.T) {
	out := FormatContext([]vectorindex.Match{{Name: "a.pdf", Page: 2, Content: "text"}})
	assert.Equal(t, "<item name=\"a.pdf\" page=\"2\">\n<page_content>\ntext\n</page_content>\n</item>", out)
}
