package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"polls-service/internal/api/middleware"
	"polls-service/internal/models"
	"polls-service/internal/services"
	"polls-service/internal/utils"

	"github.com/gin-gonic/gin"
)

const noAddPermission = "You don't have permission to add a poll."

type PollHandler struct {
	pollService *services.PollService
	render      *Renderer
}

func NewPollHandler(pollService *services.PollService, render *Renderer) *PollHandler {
	return &PollHandler{pollService: pollService, render: render}
}

// List shows every poll. The presence of name, date or vote sorts the list;
// with several present vote beats date beats name.
func (h *PollHandler) List(c *gin.Context) {
	_, byName := c.GetQuery("name")
	_, byDate := c.GetQuery("date")
	_, byVote := c.GetQuery("vote")
	search := c.Query("search")

	page, err := h.pollService.List(c.Request.Context(), models.PollListQuery{
		SortByName: byName,
		SortByDate: byDate,
		SortByVote: byVote,
		Search:     search,
		Page:       utils.ParsePage(c.Query("page")),
		PerPage:    services.PollsPerPage,
	})
	if err != nil {
		h.render.ServerError(c, err)
		return
	}

	h.render.HTML(c, http.StatusOK, "polls_list.html", gin.H{
		"Title":      "Polls",
		"Polls":      page,
		"SearchTerm": search,
		"Path":       "/polls/",
		"Query":      listQuery(c.Request.URL.Query()),
	})
}

func (h *PollHandler) Mine(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	page, err := h.pollService.ListOwned(c.Request.Context(), userID, utils.ParsePage(c.Query("page")))
	if err != nil {
		h.render.ServerError(c, err)
		return
	}

	h.render.HTML(c, http.StatusOK, "polls_list.html", gin.H{
		"Title": "My polls",
		"Polls": page,
		"Mine":  true,
		"Path":  "/polls/mine",
		"Query": url.Values{},
	})
}

func (h *PollHandler) Dashboard(c *gin.Context) {
	entries, err := h.pollService.Dashboard(c.Request.Context())
	if err != nil {
		h.render.ServerError(c, err)
		return
	}
	h.render.HTML(c, http.StatusOK, "dashboard.html", gin.H{"Title": "Dashboard", "Entries": entries})
}

// AddPage and Add both require the polls.add_poll grant.
func (h *PollHandler) AddPage(c *gin.Context) {
	if !h.canAdd(c) {
		return
	}
	h.render.HTML(c, http.StatusOK, "add_poll.html", gin.H{"Title": "New poll", "Form": models.PollAddForm{}})
}

func (h *PollHandler) Add(c *gin.Context) {
	if !h.canAdd(c) {
		return
	}

	var form models.PollAddForm
	if err := c.ShouldBind(&form); err != nil {
		h.render.Invalid(c, "add_poll.html", gin.H{"Title": "New poll", "Form": form}, err)
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	if _, err := h.pollService.Create(c.Request.Context(), userID, &form); err != nil {
		if errors.Is(err, services.ErrPermissionDenied) {
			c.String(http.StatusForbidden, noAddPermission)
			return
		}
		h.render.ServerError(c, err)
		return
	}

	h.render.Flash(c, models.FlashSuccess, "Poll added successfully!")
	c.Redirect(http.StatusSeeOther, "/polls/")
}

func (h *PollHandler) canAdd(c *gin.Context) bool {
	userID, _ := middleware.CurrentUserID(c)
	ok, err := h.pollService.CanAdd(c.Request.Context(), userID)
	if err != nil {
		h.render.ServerError(c, err)
		return false
	}
	if !ok {
		c.String(http.StatusForbidden, noAddPermission)
		return false
	}
	return true
}

func (h *PollHandler) EditPage(c *gin.Context) {
	poll, ok := h.ownedPoll(c)
	if !ok {
		return
	}
	h.render.HTML(c, http.StatusOK, "poll_edit.html", gin.H{
		"Title": "Edit poll",
		"Poll":  poll,
		"Form":  models.EditPollForm{Text: poll.Text},
	})
}

func (h *PollHandler) Edit(c *gin.Context) {
	poll, ok := h.ownedPoll(c)
	if !ok {
		return
	}

	var form models.EditPollForm
	if err := c.ShouldBind(&form); err != nil {
		h.render.Invalid(c, "poll_edit.html", gin.H{"Title": "Edit poll", "Poll": poll, "Form": form}, err)
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	if err := h.pollService.Update(c.Request.Context(), poll.ID, userID, &form); err != nil {
		h.handlePollError(c, err)
		return
	}

	h.render.Flash(c, models.FlashSuccess, "Poll updated successfully!")
	c.Redirect(http.StatusSeeOther, "/polls/")
}

func (h *PollHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.render.NotFound(c, "")
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	if err := h.pollService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handlePollError(c, err)
		return
	}

	h.render.Flash(c, models.FlashSuccess, "Poll deleted successfully!")
	c.Redirect(http.StatusSeeOther, "/polls/")
}

// Detail shows the ballot of an active poll and the results of an ended one.
func (h *PollHandler) Detail(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.render.NotFound(c, "")
		return
	}

	poll, err := h.pollService.Get(c.Request.Context(), id)
	if err != nil {
		h.handlePollError(c, err)
		return
	}
	if !poll.Active {
		h.showResults(c, id)
		return
	}
	h.render.HTML(c, http.StatusOK, "poll_detail.html", gin.H{"Title": poll.Text, "Poll": poll})
}

func (h *PollHandler) Results(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.render.NotFound(c, "")
		return
	}
	h.showResults(c, id)
}

func (h *PollHandler) End(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.render.NotFound(c, "")
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	results, err := h.pollService.End(c.Request.Context(), id, userID)
	if err != nil {
		h.handlePollError(c, err)
		return
	}
	h.render.HTML(c, http.StatusOK, "poll_result.html", gin.H{"Title": results.Poll.Text, "Results": results})
}

func (h *PollHandler) showResults(c *gin.Context, id uint) {
	results, err := h.pollService.Results(c.Request.Context(), id)
	if err != nil {
		h.handlePollError(c, err)
		return
	}
	h.render.HTML(c, http.StatusOK, "poll_result.html", gin.H{"Title": results.Poll.Text, "Results": results})
}

// ownedPoll loads the :id poll for its owner. Any other outcome has already
// been answered when ok is false.
func (h *PollHandler) ownedPoll(c *gin.Context) (*models.Poll, bool) {
	id, ok := pathID(c, "id")
	if !ok {
		h.render.NotFound(c, "")
		return nil, false
	}

	userID, _ := middleware.CurrentUserID(c)
	poll, err := h.pollService.GetOwned(c.Request.Context(), id, userID)
	if err != nil {
		h.handlePollError(c, err)
		return nil, false
	}
	return poll, true
}

func (h *PollHandler) handlePollError(c *gin.Context, err error) {
	handleDomainError(c, h.render, err)
}

// handleDomainError maps service errors onto page responses.
func handleDomainError(c *gin.Context, render *Renderer, err error) {
	switch {
	case errors.Is(err, services.ErrNotOwner):
		RedirectToList(c)
	case errors.Is(err, services.ErrPollNotFound):
		render.NotFound(c, "No poll matches the given query.")
	case errors.Is(err, services.ErrChoiceNotFound):
		render.NotFound(c, "No choice matches the given query.")
	default:
		render.ServerError(c, err)
	}
}

// listQuery keeps the filters of the list page for pagination links.
func listQuery(q url.Values) url.Values {
	out := url.Values{}
	for _, key := range []string{"name", "date", "vote", "search"} {
		if v, ok := q[key]; ok {
			out[key] = v
		}
	}
	return out
}
