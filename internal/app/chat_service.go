package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"docchat/internal/gateway"
	"docchat/internal/model"
)

const assistantRolePrefix = "assistant: "

type ChatState string

const (
	ChatIdle             ChatState = "idle"
	ChatAwaitingResponse ChatState = "awaiting_response"
)

// Querier answers a question against the indexed documents.
type Querier interface {
	Query(ctx context.Context, text string) (string, error)
}

// ChatService keeps the in-memory conversation log. Nothing is persisted.
type ChatService struct {
	querier Querier

	mu       sync.Mutex
	messages []model.Message
	inFlight int
}

func NewChatService(querier Querier) *ChatService {
	return &ChatService{
		querier: querier,
		messages: []model.Message{{
			Role:      model.RoleBot,
			Content:   model.GreetingMessage,
			CreatedAt: time.Now(),
		}},
	}
}

// Send appends the user message, queries the index and appends the bot reply.
// Query failures become bot messages, so the only error is blank input. A query
// once started is not cancelled by ctx.
func (s *ChatService) Send(ctx context.Context, content string) ([]model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrMessageEmpty
	}

	userMessage := model.Message{Role: model.RoleUser, Content: content, CreatedAt: time.Now()}
	s.mu.Lock()
	s.messages = append(s.messages, userMessage)
	s.inFlight++
	s.mu.Unlock()

	answer, err := s.querier.Query(context.WithoutCancel(ctx), content)
	reply := botReply(answer, err)
	if err != nil {
		log.Printf("chat query failed: %v", err)
	}

	botMessage := model.Message{Role: model.RoleBot, Content: reply, CreatedAt: time.Now()}
	s.mu.Lock()
	s.messages = append(s.messages, botMessage)
	s.inFlight--
	s.mu.Unlock()

	return []model.Message{userMessage, botMessage}, nil
}

func (s *ChatService) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *ChatService) State() ChatState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight > 0 {
		return ChatAwaitingResponse
	}
	return ChatIdle
}

func botReply(answer string, err error) string {
	switch {
	case errors.Is(err, gateway.ErrNotIndexed):
		return model.NotIndexedMessage
	case err != nil:
		return model.QueryFailedMessage
	}
	answer = strings.TrimSpace(answer)
	if len(answer) >= len(assistantRolePrefix) && strings.EqualFold(answer[:len(assistantRolePrefix)], assistantRolePrefix) {
		answer = strings.TrimSpace(answer[len(assistantRolePrefix):])
	}
	if answer == "" {
		return model.EmptyAnswerMessage
	}
	return answer
}
