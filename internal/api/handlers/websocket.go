package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"polls-service/internal/models"
	"polls-service/internal/services"
	"polls-service/internal/websocket"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
)

type WSHandler struct {
	hub         *websocket.Hub
	upgrader    gorillaws.Upgrader
	pollService *services.PollService
}

func NewWSHandler(hub *websocket.Hub, upgrader gorillaws.Upgrader, pollService *services.PollService) *WSHandler {
	return &WSHandler{hub: hub, upgrader: upgrader, pollService: pollService}
}

// PollResults godoc
// @Summary Live poll results
// @Description Upgrades to a WebSocket that receives a poll.results frame on connect and after every vote
// @Tags websocket
// @Param id path int true "Poll ID"
// @Success 101 "Switching Protocols"
// @Failure 404 {object} models.ErrorResponse "Poll not found"
// @Router /ws/polls/{id} [get]
func (h *WSHandler) PollResults(c *gin.Context) {
	pollID, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Code: http.StatusNotFound, Message: "Poll not found"})
		return
	}

	results, err := h.pollService.Results(c.Request.Context(), pollID)
	if err != nil {
		if errors.Is(err, services.ErrPollNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Code: http.StatusNotFound, Message: "Poll not found"})
			return
		}
		slog.Error("Failed to load results for viewer", "pollID", pollID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: http.StatusInternalServerError, Message: "Internal server error"})
		return
	}

	initial, err := json.Marshal(models.NewResultsMessage(results))
	if err != nil {
		initial = nil
	}

	websocket.ServeWS(h.hub, &h.upgrader, c.Writer, c.Request, pollID, initial)
}
