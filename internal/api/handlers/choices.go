package handlers

import (
	"fmt"
	"net/http"

	"polls-service/internal/api/middleware"
	"polls-service/internal/models"
	"polls-service/internal/services"

	"github.com/gin-gonic/gin"
)

type ChoiceHandler struct {
	pollService   *services.PollService
	choiceService *services.ChoiceService
	render        *Renderer
}

func NewChoiceHandler(pollService *services.PollService, choiceService *services.ChoiceService, render *Renderer) *ChoiceHandler {
	return &ChoiceHandler{pollService: pollService, choiceService: choiceService, render: render}
}

func editPollURL(pollID uint) string {
	return fmt.Sprintf("/polls/%d/edit", pollID)
}

func (h *ChoiceHandler) AddPage(c *gin.Context) {
	poll, ok := h.ownedPoll(c)
	if !ok {
		return
	}
	h.render.HTML(c, http.StatusOK, "add_choice.html", gin.H{
		"Title": "Add choice",
		"Poll":  poll,
		"Form":  models.ChoiceAddForm{},
	})
}

func (h *ChoiceHandler) Add(c *gin.Context) {
	poll, ok := h.ownedPoll(c)
	if !ok {
		return
	}

	var form models.ChoiceAddForm
	if err := c.ShouldBind(&form); err != nil {
		h.render.Invalid(c, "add_choice.html", gin.H{"Title": "Add choice", "Poll": poll, "Form": form}, err)
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	if _, err := h.choiceService.Add(c.Request.Context(), poll.ID, userID, &form); err != nil {
		handleDomainError(c, h.render, err)
		return
	}

	h.render.Flash(c, models.FlashSuccess, "Choice added successfully!")
	c.Redirect(http.StatusSeeOther, editPollURL(poll.ID))
}

func (h *ChoiceHandler) EditPage(c *gin.Context) {
	choice, ok := h.ownedChoice(c)
	if !ok {
		return
	}
	h.render.HTML(c, http.StatusOK, "add_choice.html", gin.H{
		"Title":      "Edit choice",
		"EditChoice": true,
		"Choice":     choice,
		"Form":       models.ChoiceAddForm{ChoiceText: choice.ChoiceText},
	})
}

func (h *ChoiceHandler) Edit(c *gin.Context) {
	choice, ok := h.ownedChoice(c)
	if !ok {
		return
	}

	var form models.ChoiceAddForm
	if err := c.ShouldBind(&form); err != nil {
		h.render.Invalid(c, "add_choice.html", gin.H{
			"Title":      "Edit choice",
			"EditChoice": true,
			"Choice":     choice,
			"Form":       form,
		}, err)
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	if _, err := h.choiceService.Update(c.Request.Context(), choice.ID, userID, &form); err != nil {
		handleDomainError(c, h.render, err)
		return
	}

	h.render.Flash(c, models.FlashSuccess, "Choice updated successfully.")
	c.Redirect(http.StatusSeeOther, editPollURL(choice.PollID))
}

func (h *ChoiceHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.render.NotFound(c, "")
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	pollID, err := h.choiceService.Delete(c.Request.Context(), id, userID)
	if err != nil {
		handleDomainError(c, h.render, err)
		return
	}

	h.render.Flash(c, models.FlashSuccess, "Choice deleted successfully!")
	c.Redirect(http.StatusSeeOther, editPollURL(pollID))
}

func (h *ChoiceHandler) ownedPoll(c *gin.Context) (*models.Poll, bool) {
	id, ok := pathID(c, "id")
	if !ok {
		h.render.NotFound(c, "")
		return nil, false
	}
	userID, _ := middleware.CurrentUserID(c)
	poll, err := h.pollService.GetOwned(c.Request.Context(), id, userID)
	if err != nil {
		handleDomainError(c, h.render, err)
		return nil, false
	}
	return poll, true
}

func (h *ChoiceHandler) ownedChoice(c *gin.Context) (*models.Choice, bool) {
	id, ok := pathID(c, "id")
	if !ok {
		h.render.NotFound(c, "")
		return nil, false
	}
	userID, _ := middleware.CurrentUserID(c)
	choice, err := h.choiceService.GetOwned(c.Request.Context(), id, userID)
	if err != nil {
		handleDomainError(c, h.render, err)
		return nil, false
	}
	return choice, true
}
