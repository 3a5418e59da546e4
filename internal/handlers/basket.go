// internal/handlers/basket.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/retail-backend/internal/i18n"
	"github.com/javajoker/retail-backend/internal/services"
	"github.com/javajoker/retail-backend/internal/utils"
)

type BasketHandler struct {
	orderService *services.OrderService
}

func NewBasketHandler(orderService *services.OrderService) *BasketHandler {
	return &BasketHandler{orderService: orderService}
}

func (h *BasketHandler) GetBasket(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	basket, err := h.orderService.GetBasket(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "order", err)
		return
	}
	utils.SuccessResponse(c, basket)
}

// AddItems handles POST /v1/basket with {"items": [{"listing_id", "quantity"}]}.
func (h *BasketHandler) AddItems(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.BasketItemsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	basket, err := h.orderService.AddToBasket(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, "listing", err)
		return
	}
	utils.CreatedResponse(c, basket)
}

func (h *BasketHandler) UpdateItems(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.BasketItemsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	basket, err := h.orderService.UpdateBasket(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, "listing", err)
		return
	}
	utils.SuccessResponse(c, basket)
}

func (h *BasketHandler) RemoveItems(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.BasketRemoveRequest
	if !bindAndValidate(c, &req) {
		return
	}

	basket, removed, err := h.orderService.RemoveFromBasket(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, "order", err)
		return
	}

	lang := utils.GetLangFromContext(c)
	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyBasketLinesRemoved, removed),
		"removed": removed,
		"basket":  basket,
	})
}

// Submit moves the basket to "new" and queues the confirmation email.
func (h *BasketHandler) Submit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	result, err := h.orderService.Submit(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "order", err)
		return
	}

	lang := utils.GetLangFromContext(c)
	utils.SuccessResponse(c, gin.H{
		"message":             i18n.T(lang, i18n.KeyOrderSubmitted),
		"order":               result.Order,
		"confirmation_queued": result.ConfirmationQueued,
	})
}
