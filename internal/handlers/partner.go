// internal/handlers/partner.go
package handlers

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/retail-backend/internal/i18n"
	"github.com/javajoker/retail-backend/internal/services"
	"github.com/javajoker/retail-backend/internal/utils"
)

// PartnerHandler serves shop operators: price-list upload, shop state and orders.
type PartnerHandler struct {
	importService *services.ImportService
	shopService   *services.ShopService
	orderService  *services.OrderService
	maxDocument   int64
}

func NewPartnerHandler(importService *services.ImportService, shopService *services.ShopService, orderService *services.OrderService, maxDocument int64) *PartnerHandler {
	return &PartnerHandler{
		importService: importService,
		shopService:   shopService,
		orderService:  orderService,
		maxDocument:   maxDocument,
	}
}

// UpdatePriceList accepts {"url": ...}, a multipart "file" (or "url" form
// field), or the document itself as the request body.
func (h *PartnerHandler) UpdatePriceList(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	lang := utils.GetLangFromContext(c)
	req, err := h.readImportRequest(c)
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "document"), err.Error())
		return
	}
	if req.URL == "" && len(req.Document) == 0 {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyPriceListNoSource), nil)
		return
	}

	report, err := h.importService.Import(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, "shop", err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPriceListImported),
		"report":  report,
	})
}

func (h *PartnerHandler) readImportRequest(c *gin.Context) (services.ImportRequest, error) {
	var req services.ImportRequest

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		req.URL = strings.TrimSpace(c.PostForm("url"))
		fileHeader, err := c.FormFile("file")
		if err != nil {
			// No file part: a url field alone is enough.
			return req, nil
		}
		file, err := fileHeader.Open()
		if err != nil {
			return req, err
		}
		defer file.Close()
		req.Document, err = h.readAll(file)
		return req, err
	}

	if c.Request.Body == nil {
		return req, nil
	}
	body, err := h.readAll(c.Request.Body)
	if err != nil {
		return req, err
	}

	if c.ContentType() == "application/json" {
		var source struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(body, &source); err == nil && source.URL != "" {
			req.URL = strings.TrimSpace(source.URL)
			return req, nil
		}
	}

	req.Document = body
	return req, nil
}

// readAll reads one byte past the cap so the import service reports the overflow.
func (h *PartnerHandler) readAll(r io.Reader) ([]byte, error) {
	if h.maxDocument <= 0 {
		return io.ReadAll(r)
	}
	return io.ReadAll(io.LimitReader(r, h.maxDocument+1))
}

func (h *PartnerHandler) GetState(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	shop, err := h.shopService.GetState(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "shop", err)
		return
	}
	utils.SuccessResponse(c, shop)
}

func (h *PartnerHandler) SetState(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.ShopStateRequest
	if !bindAndValidate(c, &req) {
		return
	}

	shop, err := h.shopService.SetState(c.Request.Context(), userID, *req.AcceptingOrders)
	if err != nil {
		respondError(c, "shop", err)
		return
	}

	lang := utils.GetLangFromContext(c)
	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyShopStateUpdated),
		"shop":    shop,
	})
}

func (h *PartnerHandler) ListOrders(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	orders, err := h.orderService.ListShopOrders(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "shop", err)
		return
	}
	utils.SuccessResponse(c, orders)
}

// AdvanceOrderState handles PUT /v1/partner/orders/:id/state.
func (h *PartnerHandler) AdvanceOrderState(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	orderID, ok := pathUUID(c, "id", "order")
	if !ok {
		return
	}

	var req services.AdvanceStateRequest
	if !bindAndValidate(c, &req) {
		return
	}

	order, err := h.orderService.AdvanceState(c.Request.Context(), userID, orderID, req.State)
	if err != nil {
		respondError(c, "order", err)
		return
	}
	utils.SuccessResponse(c, order)
}
