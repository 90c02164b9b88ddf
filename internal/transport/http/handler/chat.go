package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat/internal/app"
	"docchat/internal/model"
	"docchat/internal/transport/http/response"
)

type ChatSender interface {
	Send(ctx context.Context, content string) ([]model.Message, error)
	Messages() []model.Message
	State() app.ChatState
}

type ChatHandler struct {
	chat ChatSender
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

func NewChatHandler(chat ChatSender) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	messages, err := h.chat.Send(c.Request.Context(), req.Content)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrMessageEmpty):
			response.Error(c, http.StatusBadRequest, response.CodeMessageEmpty, err.Error())
		default:
			response.ErrorWithCause(c, http.StatusInternalServerError, response.CodeInternalServer, "send message failed", err)
		}
		return
	}
	response.OK(c, gin.H{"messages": messages})
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	response.OK(c, gin.H{
		"state":    h.chat.State(),
		"messages": h.chat.Messages(),
	})
}
