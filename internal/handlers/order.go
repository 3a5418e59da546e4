// internal/handlers/order.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/retail-backend/internal/services"
	"github.com/javajoker/retail-backend/internal/utils"
)

type OrderHandler struct {
	orderService *services.OrderService
}

func NewOrderHandler(orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	orders, err := h.orderService.ListBuyerOrders(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "order", err)
		return
	}
	utils.SuccessResponse(c, orders)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	orderID, ok := pathUUID(c, "id", "order")
	if !ok {
		return
	}

	order, err := h.orderService.GetBuyerOrder(c.Request.Context(), userID, orderID)
	if err != nil {
		respondError(c, "order", err)
		return
	}
	utils.SuccessResponse(c, order)
}
