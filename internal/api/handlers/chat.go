package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"polls-service/internal/models"
	"polls-service/internal/services"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chatService *services.ChatService
	render      *Renderer
}

func NewChatHandler(chatService *services.ChatService, render *Renderer) *ChatHandler {
	return &ChatHandler{chatService: chatService, render: render}
}

// Message godoc
// @Summary Ask the text-generation model
// @Description Forwards the message to the configured inference endpoint and relays the generated text
// @Tags chat
// @Accept json
// @Produce json
// @Param request body models.ChatRequest true "Question"
// @Success 200 {object} models.ChatReply
// @Failure 400 {object} models.ChatError "Missing question or malformed body"
// @Failure 401 {object} models.ErrorResponse "Not logged in"
// @Failure 500 {object} models.ChatError "Upstream or transport failure"
// @Router /chat/message [post]
func (h *ChatHandler) Message(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ChatError{Error: "Invalid request body."})
		return
	}

	reply, err := h.chatService.Ask(c.Request.Context(), req.Message)
	if err != nil {
		var upstream *services.UpstreamError
		switch {
		case errors.Is(err, services.ErrEmptyQuestion):
			c.JSON(http.StatusBadRequest, models.ChatError{Error: "Please provide a question."})
		case errors.As(err, &upstream):
			slog.Warn("Chat upstream rejected request", "status", upstream.StatusCode)
			c.JSON(http.StatusInternalServerError, gin.H{"error": upstream.Detail})
		default:
			slog.Error("Chat request failed", "error", err)
			c.JSON(http.StatusInternalServerError, models.ChatError{Error: "Server Error: " + err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, models.ChatReply{Reply: reply})
}

// MethodNotAllowed answers every non-POST request to the message endpoint.
func (h *ChatHandler) MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusBadRequest, models.ChatError{Error: "Invalid request method."})
}

func (h *ChatHandler) Page(c *gin.Context) {
	h.render.HTML(c, http.StatusOK, "chat.html", gin.H{"Title": "Chat"})
}
