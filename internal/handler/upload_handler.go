package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lexpost/internal/apperr"
	"lexpost/internal/service"
)

const maxAttachmentBytes = 10 << 20

// AttachmentHandler stores supporting documents for letters.
type AttachmentHandler struct {
	letters *service.LetterService
}

func NewAttachmentHandler(letters *service.LetterService) *AttachmentHandler {
	return &AttachmentHandler{letters: letters}
}

// Upload accepts a multipart "file" field and stores it against the letter.
func (h *AttachmentHandler) Upload(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAttachmentBytes+1<<20)
	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, apperr.Validation("file required"))
		return
	}
	if file.Size > maxAttachmentBytes {
		respondError(c, apperr.Validation("file exceeds %d MB", maxAttachmentBytes>>20))
		return
	}
	f, err := file.Open()
	if err != nil {
		respondError(c, apperr.Validation("could not read file"))
		return
	}
	defer f.Close()

	att, err := h.letters.AddAttachment(c.Request.Context(), actor(c), id, file.Filename, file.Size, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"attachment": att})
}

func (h *AttachmentHandler) List(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	list, err := h.letters.ListAttachments(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attachments": list})
}
