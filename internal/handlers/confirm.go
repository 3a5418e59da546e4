// internal/handlers/confirm.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/retail-backend/internal/i18n"
	"github.com/javajoker/retail-backend/internal/services"
	"github.com/javajoker/retail-backend/internal/utils"
)

type ConfirmHandler struct {
	orderService *services.OrderService
}

func NewConfirmHandler(orderService *services.OrderService) *ConfirmHandler {
	return &ConfirmHandler{orderService: orderService}
}

// ConfirmOrder handles the emailed link. An unknown key is a normal negative
// answer, not an error.
func (h *ConfirmHandler) ConfirmOrder(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	confirmed, err := h.orderService.Confirm(c.Request.Context(), c.Query("key"))
	if err != nil {
		respondError(c, "order", err)
		return
	}

	message := i18n.T(lang, i18n.KeyOrderConfirmed)
	if !confirmed {
		message = i18n.T(lang, i18n.KeyOrderConfirmationInvalid)
	}
	utils.SuccessResponse(c, gin.H{
		"confirmed": confirmed,
		"message":   message,
	})
}
