package api

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/presence-service/internal/domain"
)

type MessageSender interface {
	Send(ctx context.Context, senderID, receiverID string, c domain.Content) (*domain.Message, error)
}

type ReadMarker interface {
	MarkRead(ctx context.Context, readerID, counterpartID string) error
}

type Conversations interface {
	List(ctx context.Context, userID string) ([]*domain.Summary, error)
	History(ctx context.Context, userID, counterpartID string) ([]*domain.Message, error)
}

type PresenceChecker interface {
	IsOnline(userID string) bool
}

type Handlers struct {
	messages MessageSender
	reads    ReadMarker
	convs    Conversations
	presence PresenceChecker
	log      *zap.Logger
}

func NewHandlers(messages MessageSender, reads ReadMarker, convs Conversations, presence PresenceChecker, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{messages: messages, reads: reads, convs: convs, presence: presence, log: log}
}

type sendRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

func counterpart(c *fiber.Ctx) (string, string, error) {
	uid := currentUser(c)
	if uid == "" {
		return "", "", domain.ErrUnauthorized
	}
	other := c.Params("id")
	if other == "" {
		return "", "", fmt.Errorf("%w: missing counterpart id", domain.ErrInvalidArgument)
	}
	if other == uid {
		return "", "", fmt.Errorf("%w: conversation with self", domain.ErrInvalidArgument)
	}
	return uid, other, nil
}

func (h *Handlers) listConversations(c *fiber.Ctx) error {
	uid := currentUser(c)
	if uid == "" {
		return writeError(c, domain.ErrUnauthorized)
	}
	list, err := h.convs.List(c.UserContext(), uid)
	if err != nil {
		h.log.Error("list conversations", zap.String("user_id", uid), zap.Error(err))
		return writeError(c, err)
	}
	return JSONSuccess(c, fiber.StatusOK, list)
}

func (h *Handlers) history(c *fiber.Ctx) error {
	uid, other, err := counterpart(c)
	if err != nil {
		return writeError(c, err)
	}
	msgs, err := h.convs.History(c.UserContext(), uid, other)
	if err != nil {
		h.log.Error("history", zap.String("user_id", uid), zap.String("counterpart_id", other), zap.Error(err))
		return writeError(c, err)
	}
	return JSONSuccess(c, fiber.StatusOK, msgs)
}

func (h *Handlers) sendMessage(c *fiber.Ctx) error {
	uid, other, err := counterpart(c)
	if err != nil {
		return writeError(c, err)
	}
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fmt.Errorf("%w: invalid body", domain.ErrInvalidArgument))
	}
	content := domain.Content{Text: req.Text, Image: req.Image}
	if content.Empty() {
		return writeError(c, fmt.Errorf("%w: text or image required", domain.ErrInvalidArgument))
	}
	m, err := h.messages.Send(c.UserContext(), uid, other, content)
	if err != nil {
		h.log.Error("send message", zap.String("user_id", uid), zap.String("receiver_id", other), zap.Error(err))
		return writeError(c, err)
	}
	return JSONSuccess(c, fiber.StatusCreated, m)
}

func (h *Handlers) markRead(c *fiber.Ctx) error {
	uid, other, err := counterpart(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.reads.MarkRead(c.UserContext(), uid, other); err != nil {
		h.log.Error("mark read", zap.String("user_id", uid), zap.String("counterpart_id", other), zap.Error(err))
		return writeError(c, err)
	}
	return JSONSuccess(c, fiber.StatusOK, fiber.Map{"success": true})
}

func (h *Handlers) presenceStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return writeError(c, fmt.Errorf("%w: missing user id", domain.ErrInvalidArgument))
	}
	return JSONSuccess(c, fiber.StatusOK, fiber.Map{"user_id": id, "online": h.presence.IsOnline(id)})
}
