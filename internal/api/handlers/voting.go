package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"polls-service/internal/api/middleware"
	"polls-service/internal/models"
	"polls-service/internal/services"

	"github.com/gin-gonic/gin"
)

type VotingHandler struct {
	voteService *services.VoteService
	render      *Renderer
}

func NewVotingHandler(voteService *services.VoteService, render *Renderer) *VotingHandler {
	return &VotingHandler{voteService: voteService, render: render}
}

var voteRejections = map[error]string{
	services.ErrPollInactive:  "This poll has ended.",
	services.ErrAlreadyVoted:  "You have already voted!",
	services.ErrNoChoice:      "No choice selected!",
	services.ErrInvalidChoice: "Invalid choice selected!",
}

// Vote records the ballot in form field "choice" and renders the results. A
// rejected ballot flashes the reason and redirects to the poll.
func (h *VotingHandler) Vote(c *gin.Context) {
	pollID, ok := pathID(c, "id")
	if !ok {
		h.render.NotFound(c, "")
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	results, err := h.voteService.Cast(c.Request.Context(), userID, pollID, c.PostForm("choice"))
	if err != nil {
		for target, message := range voteRejections {
			if errors.Is(err, target) {
				h.render.Flash(c, models.FlashWarning, message)
				c.Redirect(http.StatusSeeOther, fmt.Sprintf("/polls/%d", pollID))
				return
			}
		}
		handleDomainError(c, h.render, err)
		return
	}

	h.render.HTML(c, http.StatusOK, "poll_result.html", gin.H{"Title": results.Poll.Text, "Results": results})
}
