package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"lexpost/internal/domain"
	"lexpost/internal/models"
	"lexpost/internal/service"
)

type LetterHandler struct {
	letters *service.LetterService
}

func NewLetterHandler(letters *service.LetterService) *LetterHandler {
	return &LetterHandler{letters: letters}
}

type createLetterRequest struct {
	service.LetterInput
	Draft bool `json:"draft"`
}

// Create submits a letter, or saves it as a draft when "draft" is true.
func (h *LetterHandler) Create(c *gin.Context) {
	var req createLetterRequest
	if !bindJSON(c, &req) {
		return
	}
	save := h.letters.Submit
	if req.Draft {
		save = h.letters.SaveDraft
	}
	l, err := save(c.Request.Context(), actor(c), req.LetterInput)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"letter": l})
}

func (h *LetterHandler) List(c *gin.Context) {
	limit, offset := page(c)
	list, total, err := h.letters.List(c.Request.Context(), actor(c), domain.LetterStatus(c.Query("status")), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"letters": list, "total": total})
}

func (h *LetterHandler) Get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	l, err := h.letters.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"letter": l})
}

func (h *LetterHandler) History(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	entries, err := h.letters.History(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// HTML serves the sanitized rendering of the letter body.
func (h *LetterHandler) HTML(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	html, err := h.letters.RenderHTML(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// updateLetter resolves :id, runs fn as the caller and answers with the updated letter.
func updateLetter(c *gin.Context, fn func(ctx context.Context, a service.Actor, id uint) (*models.Letter, error)) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	l, err := fn(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"letter": l})
}

func (h *LetterHandler) SubmitDraft(c *gin.Context) {
	updateLetter(c, h.letters.SubmitDraft)
}

// Generate runs the full pipeline: review, generation and completion.
func (h *LetterHandler) Generate(c *gin.Context) {
	updateLetter(c, h.letters.Generate)
}

type noteRequest struct {
	Note string `json:"note"`
}

func (h *LetterHandler) Cancel(c *gin.Context) {
	var req noteRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	updateLetter(c, func(ctx context.Context, a service.Actor, id uint) (*models.Letter, error) {
		return h.letters.Cancel(ctx, a, id, req.Note)
	})
}

type transitionRequest struct {
	Status domain.LetterStatus `json:"status" binding:"required"`
	Note   string              `json:"note"`
}

func (h *LetterHandler) Transition(c *gin.Context) {
	var req transitionRequest
	if !bindJSON(c, &req) {
		return
	}
	updateLetter(c, func(ctx context.Context, a service.Actor, id uint) (*models.Letter, error) {
		return h.letters.Transition(ctx, a, id, req.Status, req.Note)
	})
}

type timelineRequest struct {
	TimelineStatus domain.TimelineStatus `json:"timeline_status" binding:"required"`
}

func (h *LetterHandler) UpdateTimeline(c *gin.Context) {
	var req timelineRequest
	if !bindJSON(c, &req) {
		return
	}
	updateLetter(c, func(ctx context.Context, a service.Actor, id uint) (*models.Letter, error) {
		return h.letters.UpdateTimeline(ctx, a, id, req.TimelineStatus)
	})
}

func (h *LetterHandler) Review(c *gin.Context) {
	var req service.ReviewInput
	if !bindJSON(c, &req) {
		return
	}
	updateLetter(c, func(ctx context.Context, a service.Actor, id uint) (*models.Letter, error) {
		return h.letters.Review(ctx, a, id, req)
	})
}

type sendEmailRequest struct {
	To string `json:"to" binding:"omitempty,email"`
}

func (h *LetterHandler) SendEmail(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req sendEmailRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	if err := h.letters.SendEmail(c.Request.Context(), actor(c), id, req.To); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// Delete is owner-only; staff and admins get 403.
func (h *LetterHandler) Delete(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.letters.Delete(c.Request.Context(), actor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
