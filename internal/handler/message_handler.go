package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/service"
	"github.com/ecorvi/schmng-api/pkg/response"
)

// MessageHandler exposes direct messages between two users.
type MessageHandler struct {
	service *service.MessageService
	streams *StreamRegistry
}

// NewMessageHandler constructs the handler.
func NewMessageHandler(svc *service.MessageService, streams *StreamRegistry) *MessageHandler {
	return &MessageHandler{service: svc, streams: streams}
}

// Conversation godoc
// @Summary Messages exchanged with a peer
// @Description Oldest first.
// @Tags Messages
// @Produce json
// @Param peer path string true "Peer user ID"
// @Param search query string false "Body search"
// @Success 200 {object} response.Envelope
// @Router /messages/{peer} [get]
func (h *MessageHandler) Conversation(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	messages, err := h.service.Conversation(c.Request.Context(), session, c.Param("peer"), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, map[string]interface{}{"count": len(messages)})
}

// Stream godoc
// @Summary Live conversation with a peer
// @Tags Messages
// @Produce text/event-stream
// @Param peer path string true "Peer user ID"
// @Router /messages/{peer}/stream [get]
func (h *MessageHandler) Stream(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	watch, err := h.service.Watch(c.Request.Context(), session, c.Param("peer"))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveStream(c, h.streams, session, watch)
}

// Send godoc
// @Summary Send a message to a peer
// @Tags Messages
// @Accept json
// @Produce json
// @Param peer path string true "Receiver user ID"
// @Param payload body models.MessageInput true "Message; receiver_id defaults to the path"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /messages/{peer} [post]
func (h *MessageHandler) Send(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var in models.MessageInput
	if !bindJSON(c, &in, "invalid message payload") {
		return
	}
	if strings.TrimSpace(in.ReceiverID) == "" {
		in.ReceiverID = c.Param("peer")
	}
	message, err := h.service.Send(c.Request.Context(), session, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, message)
}

// MarkRead godoc
// @Summary Mark a received message as read
// @Tags Messages
// @Param peer path string true "Sender user ID"
// @Param id path string true "Message ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /messages/{peer}/read/{id} [post]
func (h *MessageHandler) MarkRead(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), session, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
