package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"demand-foresight/internal/access"
	"demand-foresight/internal/ai"
	"demand-foresight/internal/metrics"
	"demand-foresight/internal/model"
	"demand-foresight/internal/session"
	"demand-foresight/internal/vectorindex"
)

const (
	ragSystemPrompt = "You are a demand forecasting analyst. Answer using only the documents in <context>. " +
		"Cite the document name and page you relied on. If the documents do not contain the answer, say so."
	titlePrompt   = "Write a title of at most 10 words for the following message. Reply with the title only, in the language of the message.\n\n"
	titleFallback = 30
)

type ChatConfig struct {
	Models         []string
	TitleModel     string
	EmbeddingModel string
	Temperature    float32
	TopK           int
	MaxContext     int
}

type ChatService struct {
	messages  MessageStore
	cache     HistoryCache
	publisher AsyncPublisher
	index     VectorIndex
	llm       LLM
	usage     *UsageService
	metrics   *metrics.Metrics
	logger    *zap.Logger
	cfg       ChatConfig
	now       func() time.Time
}

func NewChatService(
	messages MessageStore,
	cache HistoryCache,
	publisher AsyncPublisher,
	index VectorIndex,
	llm LLM,
	usage *UsageService,
	m *metrics.Metrics,
	logger *zap.Logger,
	cfg ChatConfig,
) *ChatService {
	if cfg.TopK <= 0 {
		cfg.TopK = 8
	}
	if cfg.MaxContext <= 0 {
		cfg.MaxContext = 10
	}
	return &ChatService{
		messages:  messages,
		cache:     cache,
		publisher: publisher,
		index:     index,
		llm:       llm,
		usage:     usage,
		metrics:   m,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

type StreamMessageInput struct {
	ChatID      string
	Content     string
	Model       string
	Tag         string
	Titles      []string
	Temperature *float32
}

type Source struct {
	Name string `json:"name"`
	Page int    `json:"page"`
}

type StreamMessageResult struct {
	ChatID  string   `json:"chat_id"`
	Title   string   `json:"title"`
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Cost    float64  `json:"cost"`
}

// Models lists the chat models callers may pick, default first.
func (s *ChatService) Models() []string {
	return append([]string(nil), s.cfg.Models...)
}

// ListChats groups the user's messages into chats, most recent first.
func (s *ChatService) ListChats(ctx context.Context, username string) ([]model.Chat, error) {
	messages, err := s.messages.ListByUsername(ctx, username)
	if err != nil {
		return nil, upstream("list messages", err)
	}
	return GroupChats(messages), nil
}

// GroupChats builds chats from messages. Messages inside a chat are ordered
// by timestamp; chats by their latest message, newest first.
func GroupChats(messages []model.ChatMessage) []model.Chat {
	byID := make(map[string]*model.Chat)
	var order []string
	for _, m := range messages {
		c, ok := byID[m.ChatID]
		if !ok {
			c = &model.Chat{ChatID: m.ChatID, Title: m.Title}
			byID[m.ChatID] = c
			order = append(order, m.ChatID)
		}
		c.Messages = append(c.Messages, m)
	}

	chats := make([]model.Chat, 0, len(order))
	for _, id := range order {
		c := byID[id]
		sort.SliceStable(c.Messages, func(i, j int) bool {
			return c.Messages[i].Timestamp.Before(c.Messages[j].Timestamp)
		})
		chats = append(chats, *c)
	}
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].LastActivity().After(chats[j].LastActivity())
	})
	return chats
}

func (s *ChatService) GetChat(ctx context.Context, username, chatID string) (*model.Chat, error) {
	messages, err := s.history(ctx, username, chatID)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, ErrChatNotFound
	}
	chats := GroupChats(messages)
	return &chats[0], nil
}

// history reads a chat through the cache. A dirty chat bypasses the cache
// because queued writes may not have landed yet.
func (s *ChatService) history(ctx context.Context, username, chatID string) ([]model.ChatMessage, error) {
	dirty := false
	if s.cache != nil {
		var err error
		dirty, err = s.cache.IsDirty(ctx, username, chatID)
		if err != nil {
			s.logger.Warn("check history dirty marker failed", zap.Error(err))
			dirty = true
		}
		if !dirty {
			cached, ok, err := s.cache.GetHistory(ctx, username, chatID)
			if err != nil {
				s.logger.Warn("read history cache failed", zap.Error(err))
			} else if ok {
				return cached, nil
			}
		}
	}

	messages, err := s.messages.ListByChat(ctx, username, chatID, 0)
	if err != nil {
		return nil, upstream("list chat", err)
	}
	if s.cache != nil && !dirty && len(messages) > 0 {
		if err := s.cache.SetHistory(ctx, username, chatID, messages); err != nil {
			s.logger.Warn("write history cache failed", zap.Error(err))
		}
	}
	return messages, nil
}

// StreamMessage answers one question grounded in the documents the caller
// may see. An empty allow-list ends the call before anything is embedded
// or queried.
func (s *ChatService) StreamMessage(ctx context.Context, st *session.State, input StreamMessageInput, onChunk func(chunk string) error) (*StreamMessageResult, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}
	modelName, err := s.resolveModel(input.Model)
	if err != nil {
		return nil, err
	}
	temperature := s.cfg.Temperature
	if input.Temperature != nil {
		temperature = *input.Temperature
	}

	filter, err := access.BuildRetrievalFilter(access.FilterInput{
		Tag:     input.Tag,
		Titles:  input.Titles,
		Visible: st.Visible(),
	})
	if err != nil {
		if errors.Is(err, access.ErrNoMatchingDocuments) {
			s.metrics.ObserveRetrievalRefused()
		}
		return nil, err
	}

	result := &StreamMessageResult{ChatID: strings.TrimSpace(input.ChatID)}
	var history []model.ChatMessage
	if result.ChatID != "" {
		history, err = s.history(ctx, st.Username, result.ChatID)
		if err != nil {
			return nil, err
		}
		if len(history) == 0 {
			return nil, ErrChatNotFound
		}
		result.Title = history[0].Title
	} else {
		result.ChatID = uuid.NewString()
		title, charged := s.generateTitle(ctx, st.Username, content)
		result.Title = title
		result.Cost += charged
	}

	matches, charged, err := s.retrieve(ctx, st.Username, content, filter)
	result.Cost += charged
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		result.Sources = append(result.Sources, Source{Name: m.Name, Page: m.Page})
	}

	userMessage := s.newMessage(st.Username, result, model.RoleUserMessage, content)
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, st.Username, result.ChatID); err != nil {
			s.logger.Warn("invalidate history cache failed", zap.Error(err))
		}
	}
	if err := s.publisher.Publish(ctx, userMessage); err != nil {
		s.logger.Error("enqueue user message failed", zap.String("chat_id", result.ChatID), zap.Error(err))
		return nil, ErrMessageEnqueue
	}

	completion, err := s.llm.StreamComplete(ctx, ai.CompletionRequest{
		Model:       modelName,
		Messages:    s.buildPrompt(matches, history, content),
		Temperature: temperature,
	}, onChunk)
	if err != nil {
		return nil, upstream("chat completion", err)
	}
	amount, err := s.usage.Charge(ctx, st.Username, modelName, completion.Usage)
	if err != nil {
		s.logger.Warn("charge chat failed", zap.String("username", st.Username), zap.Error(err))
	}
	result.Cost += amount
	result.Answer = completion.Content

	assistantMessage := s.newMessage(st.Username, result, model.RoleAssistantMessage, completion.Content)
	if err := s.publisher.Publish(ctx, assistantMessage); err != nil {
		s.logger.Error("enqueue assistant message failed", zap.String("chat_id", result.ChatID), zap.Error(err))
		return result, ErrMessageEnqueue
	}
	return result, nil
}

func (s *ChatService) resolveModel(requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if len(s.cfg.Models) == 0 {
		return "", ErrModelNotOffered
	}
	if requested == "" {
		return s.cfg.Models[0], nil
	}
	for _, m := range s.cfg.Models {
		if m == requested {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrModelNotOffered, requested)
}

// generateTitle names a new chat once. Failure falls back to the start of
// the message instead of failing the turn.
func (s *ChatService) generateTitle(ctx context.Context, username, content string) (string, float64) {
	completion, err := s.llm.Complete(ctx, ai.CompletionRequest{
		Model: s.cfg.TitleModel,
		Messages: []ai.ChatMessage{
			{Role: ai.RoleSystem, Content: "You are a helpful assistant."},
			{Role: ai.RoleUser, Content: titlePrompt + content},
		},
	})
	if err != nil {
		s.logger.Warn("generate chat title failed", zap.Error(err))
		return truncateRunes(content, titleFallback), 0
	}
	amount, err := s.usage.Charge(ctx, username, s.cfg.TitleModel, completion.Usage)
	if err != nil {
		s.logger.Warn("charge title failed", zap.String("username", username), zap.Error(err))
	}
	title := strings.Trim(strings.TrimSpace(completion.Content), `"'`)
	if title == "" {
		title = truncateRunes(content, titleFallback)
	}
	return title, amount
}

// retrieve embeds the question and queries the index restricted to the
// filter. Matches outside the filter are dropped even if the index returns
// them.
func (s *ChatService) retrieve(ctx context.Context, username, question string, filter access.Filter) ([]vectorindex.Match, float64, error) {
	vectors, usage, err := s.llm.Embed(ctx, s.cfg.EmbeddingModel, []string{question})
	if err != nil {
		return nil, 0, upstream("embed question", err)
	}
	amount, chargeErr := s.usage.Charge(ctx, username, s.cfg.EmbeddingModel, usage)
	if chargeErr != nil {
		s.logger.Warn("charge embedding failed", zap.String("username", username), zap.Error(chargeErr))
	}
	if len(vectors) == 0 {
		return nil, amount, upstream("embed question", errors.New("no vector returned"))
	}

	raw, err := s.index.Query(ctx, vectors[0], s.cfg.TopK, filter.DocumentIDs)
	if err != nil {
		return nil, amount, upstream("query index", err)
	}
	matches := make([]vectorindex.Match, 0, len(raw))
	for _, m := range raw {
		if filter.Allows(m.DocumentID) {
			matches = append(matches, m)
		} else {
			s.logger.Error("index returned a document outside the filter",
				zap.String("document_id", m.DocumentID), zap.String("name", m.Name))
		}
	}
	s.metrics.ObserveRetrieval(len(matches))
	return matches, amount, nil
}

func (s *ChatService) buildPrompt(matches []vectorindex.Match, history []model.ChatMessage, question string) []ai.ChatMessage {
	out := make([]ai.ChatMessage, 0, len(history)+2)
	out = append(out, ai.ChatMessage{
		Role:    ai.RoleSystem,
		Content: ragSystemPrompt + "\n\n<context>\n" + FormatContext(matches) + "\n</context>",
	})

	if len(history) > s.cfg.MaxContext {
		history = history[len(history)-s.cfg.MaxContext:]
	}
	for _, m := range history {
		role := ai.RoleUser
		if m.Role == model.RoleAssistantMessage {
			role = ai.RoleAssistant
		}
		out = append(out, ai.ChatMessage{Role: role, Content: m.Content})
	}
	return append(out, ai.ChatMessage{Role: ai.RoleUser, Content: question})
}

// FormatContext renders retrieved pages as <item> blocks.
func FormatContext(matches []vectorindex.Match) string {
	items := make([]string, 0, len(matches))
	for _, m := range matches {
		items = append(items, fmt.Sprintf("<item name=%q page=\"%d\">\n<page_content>\n%s\n</page_content>\n</item>", m.Name, m.Page, m.Content))
	}
	return strings.Join(items, "\n")
}

func (s *ChatService) newMessage(username string, result *StreamMessageResult, role, content string) model.ChatMessage {
	return model.ChatMessage{
		MessageID: uuid.NewString(),
		Username:  username,
		ChatID:    result.ChatID,
		Title:     result.Title,
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
