// internal/services/shop_service.go
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/retail-backend/internal/models"
)

type ShopService struct {
	db    *gorm.DB
	authz *AuthorizationService
}

type ShopStateRequest struct {
	AcceptingOrders *bool `json:"accepting_orders" validate:"required"`
}

func NewShopService(db *gorm.DB, authz *AuthorizationService) *ShopService {
	return &ShopService{db: db, authz: authz}
}

// GetState returns the operator's shop. A shop exists only after the first import.
func (s *ShopService) GetState(ctx context.Context, operatorID uuid.UUID) (*models.Shop, error) {
	if _, err := s.authz.Authorize(ctx, operatorID, CapManageShopState); err != nil {
		return nil, err
	}
	return s.authz.OperatorShop(ctx, operatorID)
}

// SetState toggles whether the shop's listings are visible and orderable.
// Orders already placed are unaffected.
func (s *ShopService) SetState(ctx context.Context, operatorID uuid.UUID, accepting bool) (*models.Shop, error) {
	if _, err := s.authz.Authorize(ctx, operatorID, CapManageShopState); err != nil {
		return nil, err
	}

	shop, err := s.authz.OperatorShop(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(shop).Update("accepting_orders", accepting).Error; err != nil {
		return nil, fmt.Errorf("failed to update shop state: %w", err)
	}
	shop.AcceptingOrders = accepting

	logrus.WithFields(logrus.Fields{
		"shop_id":          shop.ID,
		"accepting_orders": accepting,
	}).Info("Shop state updated")

	return shop, nil
}
