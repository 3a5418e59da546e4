// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/retail-backend/internal/i18n"
	"github.com/javajoker/retail-backend/internal/services"
	"github.com/javajoker/retail-backend/internal/utils"
)

// respondError writes the envelope for a service error. resource names the
// i18n prefix used for not-found messages, e.g. "order".
func respondError(c *gin.Context, resource string, err error) {
	lang := utils.GetLangFromContext(c)

	var priceListErr *services.PriceListError
	var duplicateErr *services.DuplicateKeyError
	var validationErrs validator.ValidationErrors

	switch {
	case errors.As(err, &validationErrs):
		utils.ValidationErrorResponse(c, "", utils.GetValidationErrors(err))
	case errors.As(err, &priceListErr):
		utils.ValidationErrorResponse(c, "MALFORMED_PRICE_LIST", priceListErr.Fields)
	case errors.As(err, &duplicateErr):
		utils.ErrorResponse(c, http.StatusConflict, "DUPLICATE_LISTING_KEY",
			i18n.T(lang, i18n.KeyPriceListDuplicateKey),
			gin.H{"kind": duplicateErr.Kind, "keys": duplicateErr.Keys})
	case errors.Is(err, services.ErrDuplicateLineItem):
		utils.ConflictResponse(c, "DUPLICATE_LINE_ITEM", i18n.T(lang, i18n.KeyBasketDuplicateLine))
	case errors.Is(err, services.ErrDuplicateListingKey):
		utils.ConflictResponse(c, "DUPLICATE_LISTING_KEY", i18n.T(lang, i18n.KeyPriceListDuplicateKey))
	case errors.Is(err, services.ErrContactInUse):
		utils.ConflictResponse(c, "CONTACT_IN_USE", i18n.T(lang, i18n.KeyContactInUse))
	case errors.Is(err, services.ErrIntegrityConflict):
		utils.ConflictResponse(c, "INTEGRITY_CONFLICT", i18n.T(lang, i18n.KeyConflict))
	case errors.Is(err, services.ErrContactRequired):
		utils.ValidationErrorResponse(c, "CONTACT_REQUIRED", []utils.ValidationError{{
			Field:   "contact",
			Tag:     "required",
			Message: i18n.T(lang, i18n.KeyOrderContactRequired),
		}})
	case errors.Is(err, services.ErrEmptyBasket):
		utils.ErrorResponse(c, http.StatusBadRequest, "EMPTY_BASKET", i18n.T(lang, i18n.KeyBasketEmpty), nil)
	case errors.Is(err, services.ErrInsufficientQuantity):
		utils.ConflictResponse(c, "INSUFFICIENT_QUANTITY", i18n.T(lang, i18n.KeyBasketInsufficientStock))
	case errors.Is(err, services.ErrInvalidTransition):
		utils.ConflictResponse(c, "INVALID_TRANSITION", i18n.T(lang, i18n.KeyOrderInvalidTransition))
	case errors.Is(err, services.ErrNotFound):
		utils.NotFoundResponse(c, resource)
	case errors.Is(err, services.ErrUnauthorized):
		utils.UnauthorizedResponse(c, "")
	case errors.Is(err, services.ErrForbidden):
		utils.ForbiddenResponse(c, "")
	case errors.Is(err, services.ErrTransportFailure):
		utils.BadGatewayResponse(c, i18n.T(lang, i18n.KeyPriceListFetchFailed))
	default:
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
		utils.InternalErrorResponse(c, "")
	}
}

// currentUserID reads the authenticated user id, answering 401 when absent.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.UnauthorizedResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyAuthInvalidToken))
		return uuid.Nil, false
	}
	return userID, true
}

// bindAndValidate decodes a JSON body into req and runs struct validation.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}

	if err := utils.ValidateStruct(req); err != nil {
		utils.ValidationErrorResponse(c, "", utils.GetValidationErrors(err))
		return false
	}
	return true
}

func pathUUID(c *gin.Context, name, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.NotFoundResponse(c, resource)
		return uuid.Nil, false
	}
	return id, true
}
