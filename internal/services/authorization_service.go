// internal/services/authorization_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/retail-backend/internal/models"
)

type Capability string

const (
	CapManageBasket    Capability = "basket:manage"
	CapManageContact   Capability = "contact:manage"
	CapPlaceOrder      Capability = "order:place"
	CapViewOwnOrders   Capability = "order:view_own"
	CapIngestPriceList Capability = "shop:ingest"
	CapManageShopState Capability = "shop:state"
	CapViewShopOrders  Capability = "shop:orders"
	CapAdvanceOrders   Capability = "shop:advance_orders"
)

var defaultGrants = map[models.UserRole][]Capability{
	models.UserRoleBuyer: {
		CapManageBasket, CapManageContact, CapPlaceOrder, CapViewOwnOrders,
	},
	models.UserRoleShop: {
		CapIngestPriceList, CapManageShopState, CapViewShopOrders, CapAdvanceOrders,
	},
	models.UserRoleAdmin: {
		CapManageBasket, CapManageContact, CapPlaceOrder, CapViewOwnOrders,
		CapIngestPriceList, CapManageShopState, CapViewShopOrders, CapAdvanceOrders,
	},
}

// AuthorizationService maps roles to capabilities and resolves the acting user.
type AuthorizationService struct {
	db     *gorm.DB
	grants map[models.UserRole]map[Capability]bool
}

func NewAuthorizationService(db *gorm.DB) *AuthorizationService {
	grants := make(map[models.UserRole]map[Capability]bool, len(defaultGrants))
	for role, caps := range defaultGrants {
		grants[role] = make(map[Capability]bool, len(caps))
		for _, c := range caps {
			grants[role][c] = true
		}
	}
	return &AuthorizationService{db: db, grants: grants}
}

func (s *AuthorizationService) Can(role models.UserRole, capability Capability) bool {
	return s.grants[role][capability]
}

// Authorize loads an active user and checks the capability against the stored role.
func (s *AuthorizationService) Authorize(ctx context.Context, userID uuid.UUID, capability Capability) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !user.IsActive {
		return nil, fmt.Errorf("user %s is inactive: %w", userID, ErrUnauthorized)
	}

	if !s.Can(user.Role, capability) {
		return nil, fmt.Errorf("role %s lacks %s: %w", user.Role, capability, ErrForbidden)
	}

	return &user, nil
}

// OperatorShop returns the shop owned by the operator.
func (s *AuthorizationService) OperatorShop(ctx context.Context, userID uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&shop).Error; err != nil {
		return nil, notFound("shop", err)
	}
	return &shop, nil
}
