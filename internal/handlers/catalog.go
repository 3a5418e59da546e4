// internal/handlers/catalog.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/retail-backend/internal/i18n"
	"github.com/javajoker/retail-backend/internal/services"
	"github.com/javajoker/retail-backend/internal/utils"
)

type CatalogHandler struct {
	catalogService *services.CatalogService
}

func NewCatalogHandler(catalogService *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

func (h *CatalogHandler) ListCategories(c *gin.Context) {
	categories, err := h.catalogService.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, "", err)
		return
	}
	utils.SuccessResponse(c, categories)
}

func (h *CatalogHandler) ListShops(c *gin.Context) {
	shops, err := h.catalogService.ListShops(c.Request.Context())
	if err != nil {
		respondError(c, "shop", err)
		return
	}
	utils.SuccessResponse(c, shops)
}

// SearchListings handles GET /v1/listings?product_id&shop_id&category_id&external_id.
func (h *CatalogHandler) SearchListings(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	filter := services.ListingFilter{PaginationParams: utils.GetPaginationParams(c)}

	for param, target := range map[string]**uuid.UUID{
		"product_id":  &filter.ProductID,
		"shop_id":     &filter.ShopID,
		"category_id": &filter.CategoryID,
	} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, param), nil)
			return
		}
		*target = &id
	}

	if raw := c.Query("external_id"); raw != "" {
		externalID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "external_id"), nil)
			return
		}
		filter.ExternalID = &externalID
	}

	result, err := h.catalogService.SearchListings(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "listing", err)
		return
	}
	utils.PaginatedResponse(c, *result)
}

func (h *CatalogHandler) GetListing(c *gin.Context) {
	id, ok := pathUUID(c, "id", "listing")
	if !ok {
		return
	}

	listing, err := h.catalogService.GetListing(c.Request.Context(), id)
	if err != nil {
		respondError(c, "listing", err)
		return
	}
	utils.SuccessResponse(c, listing)
}
