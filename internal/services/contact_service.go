// internal/services/contact_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/retail-backend/internal/database"
	"github.com/javajoker/retail-backend/internal/models"
	"github.com/javajoker/retail-backend/internal/utils"
)

var ErrContactInUse = fmt.Errorf("%w: contact is referenced by a placed order", ErrIntegrityConflict)

// ContactService manages the single delivery contact of a user. Saving a
// contact attaches it to the user's basket.
type ContactService struct {
	db     *gorm.DB
	authz  *AuthorizationService
	orders *OrderService
}

type ContactRequest struct {
	City      string `json:"city" validate:"required,max=50"`
	Street    string `json:"street" validate:"required,max=100"`
	House     string `json:"house" validate:"max=15"`
	Structure string `json:"structure" validate:"max=15"`
	Building  string `json:"building" validate:"max=15"`
	Apartment string `json:"apartment" validate:"max=15"`
	Phone     string `json:"phone" validate:"required,max=20,phone"`
}

func NewContactService(db *gorm.DB, authz *AuthorizationService, orders *OrderService) *ContactService {
	return &ContactService{db: db, authz: authz, orders: orders}
}

func (s *ContactService) GetContact(ctx context.Context, userID uuid.UUID) (*models.Contact, error) {
	if _, err := s.authz.Authorize(ctx, userID, CapManageContact); err != nil {
		return nil, err
	}

	var contact models.Contact
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&contact).Error; err != nil {
		return nil, notFound("contact", err)
	}
	return &contact, nil
}

// CreateContact returns the user's existing contact unchanged when there is
// one; created reports whether a new row was written.
func (s *ContactService) CreateContact(ctx context.Context, userID uuid.UUID, req *ContactRequest) (*models.Contact, bool, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, false, fmt.Errorf("validation failed: %w", err)
	}
	if _, err := s.authz.Authorize(ctx, userID, CapManageContact); err != nil {
		return nil, false, err
	}

	var (
		contact models.Contact
		created bool
	)
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		candidate := req.toModel(userID)
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&candidate)
		if result.Error != nil {
			return fmt.Errorf("failed to create contact: %w", result.Error)
		}
		created = result.RowsAffected == 1

		if err := tx.Where("user_id = ?", userID).First(&contact).Error; err != nil {
			return fmt.Errorf("failed to load contact: %w", err)
		}

		return s.orders.AttachContactToBasket(tx, userID, contact.ID)
	})
	if err != nil {
		return nil, false, err
	}

	return &contact, created, nil
}

func (s *ContactService) UpdateContact(ctx context.Context, userID uuid.UUID, req *ContactRequest) (*models.Contact, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if _, err := s.authz.Authorize(ctx, userID, CapManageContact); err != nil {
		return nil, err
	}

	var contact models.Contact
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&contact).Error; err != nil {
			return notFound("contact", err)
		}

		updates := map[string]interface{}{
			"city":      req.City,
			"street":    req.Street,
			"house":     req.House,
			"structure": req.Structure,
			"building":  req.Building,
			"apartment": req.Apartment,
			"phone":     req.Phone,
		}
		if err := tx.Model(&contact).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update contact: %w", err)
		}
		if err := tx.Where("id = ?", contact.ID).First(&contact).Error; err != nil {
			return fmt.Errorf("failed to reload contact: %w", err)
		}

		return s.orders.AttachContactToBasket(tx, userID, contact.ID)
	})
	if err != nil {
		return nil, err
	}

	return &contact, nil
}

// DeleteContact refuses while a placed order references the contact. A
// basket reference is cleared.
func (s *ContactService) DeleteContact(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.authz.Authorize(ctx, userID, CapManageContact); err != nil {
		return err
	}

	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		var contact models.Contact
		if err := tx.Where("user_id = ?", userID).First(&contact).Error; err != nil {
			return notFound("contact", err)
		}

		var placed int64
		if err := tx.Model(&models.Order{}).
			Where("contact_id = ? AND state <> ?", contact.ID, models.OrderStateBasket).
			Count(&placed).Error; err != nil {
			return fmt.Errorf("failed to check contact usage: %w", err)
		}
		if placed > 0 {
			return ErrContactInUse
		}

		if err := tx.Model(&models.Order{}).
			Where("contact_id = ?", contact.ID).
			Update("contact_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach contact: %w", err)
		}

		if err := tx.Delete(&contact).Error; err != nil {
			if errors.Is(err, gorm.ErrForeignKeyViolated) {
				return ErrContactInUse
			}
			return fmt.Errorf("failed to delete contact: %w", err)
		}
		return nil
	})
}

func (r *ContactRequest) toModel(userID uuid.UUID) models.Contact {
	return models.Contact{
		UserID:    userID,
		City:      r.City,
		Street:    r.Street,
		House:     r.House,
		Structure: r.Structure,
		Building:  r.Building,
		Apartment: r.Apartment,
		Phone:     r.Phone,
	}
}
