// internal/handlers/contact.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/retail-backend/internal/i18n"
	"github.com/javajoker/retail-backend/internal/services"
	"github.com/javajoker/retail-backend/internal/utils"
)

type ContactHandler struct {
	contactService *services.ContactService
}

func NewContactHandler(contactService *services.ContactService) *ContactHandler {
	return &ContactHandler{contactService: contactService}
}

func (h *ContactHandler) GetContact(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	contact, err := h.contactService.GetContact(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "contact", err)
		return
	}
	utils.SuccessResponse(c, contact)
}

// CreateContact answers 201 for a new contact and 200 when one already exists.
func (h *ContactHandler) CreateContact(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.ContactRequest
	if !bindAndValidate(c, &req) {
		return
	}

	contact, created, err := h.contactService.CreateContact(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, "contact", err)
		return
	}

	if created {
		utils.CreatedResponse(c, contact)
		return
	}
	utils.SuccessResponse(c, contact)
}

func (h *ContactHandler) UpdateContact(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.ContactRequest
	if !bindAndValidate(c, &req) {
		return
	}

	contact, err := h.contactService.UpdateContact(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, "contact", err)
		return
	}
	utils.SuccessResponse(c, contact)
}

func (h *ContactHandler) DeleteContact(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.contactService.DeleteContact(c.Request.Context(), userID); err != nil {
		respondError(c, "contact", err)
		return
	}

	lang := utils.GetLangFromContext(c)
	utils.SuccessResponse(c, gin.H{"message": i18n.T(lang, i18n.KeyContactDeleted)})
}
