// internal/services/order_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/retail-backend/internal/database"
	"github.com/javajoker/retail-backend/internal/models"
	"github.com/javajoker/retail-backend/internal/utils"
)

// OrderEvent describes a committed order change.
type OrderEvent struct {
	OrderID         uuid.UUID
	UserID          uuid.UUID
	From            models.OrderState
	To              models.OrderState
	ConfirmationKey string
	OccurredAt      time.Time
}

// OrderObserver is told about order changes after they are committed.
// Returned errors are logged and never undo the change.
type OrderObserver interface {
	OrderSubmitted(ctx context.Context, event OrderEvent) error
	OrderConfirmed(ctx context.Context, event OrderEvent) error
	OrderStateChanged(ctx context.Context, event OrderEvent) error
}

type OrderService struct {
	db        *gorm.DB
	authz     *AuthorizationService
	observers []OrderObserver
}

type BasketItem struct {
	ListingID uuid.UUID `json:"listing_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

type BasketItemsRequest struct {
	Items []BasketItem `json:"items" validate:"required,min=1,dive"`
}

type BasketRemoveRequest struct {
	ListingIDs []uuid.UUID `json:"listing_ids" validate:"required,min=1"`
}

type AdvanceStateRequest struct {
	State models.OrderState `json:"state" validate:"required,oneof=new confirmed assembled sent delivered canceled"`
}

type SubmitResult struct {
	Order              *models.Order `json:"order"`
	ConfirmationQueued bool          `json:"confirmation_queued"`
}

func NewOrderService(db *gorm.DB, authz *AuthorizationService) *OrderService {
	return &OrderService{db: db, authz: authz}
}

// Subscribe registers an observer. Call before serving requests.
func (s *OrderService) Subscribe(observer OrderObserver) {
	s.observers = append(s.observers, observer)
}

// GetBasket returns the user's basket, or an empty unsaved one.
func (s *OrderService) GetBasket(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	if _, err := s.authz.Authorize(ctx, userID, CapManageBasket); err != nil {
		return nil, err
	}

	var basket models.Order
	err := preloadOrder(s.db.WithContext(ctx), nil).
		Where("user_id = ? AND state = ?", userID, models.OrderStateBasket).
		First(&basket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.Order{UserID: userID, State: models.OrderStateBasket, Lines: []models.OrderLine{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load basket: %w", err)
	}

	basket.ComputeTotal()
	return &basket, nil
}

// AddToBasket inserts new lines. A listing already in the basket is rejected
// with ErrDuplicateLineItem; use UpdateBasket to change its quantity.
func (s *OrderService) AddToBasket(ctx context.Context, userID uuid.UUID, req *BasketItemsRequest) (*models.Order, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if _, err := s.authz.Authorize(ctx, userID, CapManageBasket); err != nil {
		return nil, err
	}

	var basketID uuid.UUID
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		basket, created, err := getOrCreateBasket(tx, userID)
		if err != nil {
			return err
		}
		basketID = basket.ID

		if created {
			if err := attachExistingContact(tx, basket); err != nil {
				return err
			}
		}

		for _, item := range req.Items {
			if _, err := orderableListing(tx, item.ListingID, item.Quantity); err != nil {
				return err
			}

			line := models.OrderLine{OrderID: basket.ID, ListingID: item.ListingID, Quantity: item.Quantity}
			if err := tx.Create(&line).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("listing %s: %w", item.ListingID, ErrDuplicateLineItem)
				}
				return fmt.Errorf("failed to add line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.loadOrder(ctx, basketID, nil)
}

// UpdateBasket changes quantities of lines already in the basket.
func (s *OrderService) UpdateBasket(ctx context.Context, userID uuid.UUID, req *BasketItemsRequest) (*models.Order, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if _, err := s.authz.Authorize(ctx, userID, CapManageBasket); err != nil {
		return nil, err
	}

	var basketID uuid.UUID
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		basket, err := lockBasket(tx, userID)
		if err != nil {
			return err
		}
		basketID = basket.ID

		for _, item := range req.Items {
			if _, err := orderableListing(tx, item.ListingID, item.Quantity); err != nil {
				return err
			}

			result := tx.Model(&models.OrderLine{}).
				Where("order_id = ? AND listing_id = ?", basket.ID, item.ListingID).
				Update("quantity", item.Quantity)
			if result.Error != nil {
				return fmt.Errorf("failed to update line: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("basket line for listing %s: %w", item.ListingID, ErrNotFound)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.loadOrder(ctx, basketID, nil)
}

// RemoveFromBasket deletes lines by listing id and returns the remaining basket.
func (s *OrderService) RemoveFromBasket(ctx context.Context, userID uuid.UUID, req *BasketRemoveRequest) (*models.Order, int64, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, 0, fmt.Errorf("validation failed: %w", err)
	}
	if _, err := s.authz.Authorize(ctx, userID, CapManageBasket); err != nil {
		return nil, 0, err
	}

	var (
		basketID uuid.UUID
		removed  int64
	)
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		basket, err := lockBasket(tx, userID)
		if err != nil {
			return err
		}
		basketID = basket.ID

		result := tx.Where("order_id = ? AND listing_id IN ?", basket.ID, req.ListingIDs).Delete(&models.OrderLine{})
		if result.Error != nil {
			return fmt.Errorf("failed to remove lines: %w", result.Error)
		}
		removed = result.RowsAffected
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	order, err := s.loadOrder(ctx, basketID, nil)
	return order, removed, err
}

// Submit moves the basket to new and issues a confirmation token.
func (s *OrderService) Submit(ctx context.Context, userID uuid.UUID) (*SubmitResult, error) {
	if _, err := s.authz.Authorize(ctx, userID, CapPlaceOrder); err != nil {
		return nil, err
	}

	var (
		orderID uuid.UUID
		key     string
	)
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		basket, err := lockBasket(tx, userID)
		if errors.Is(err, ErrNotFound) {
			return ErrEmptyBasket
		}
		if err != nil {
			return err
		}
		orderID = basket.ID

		if err := checkContact(basket, models.OrderStateNew); err != nil {
			return err
		}

		var lines int64
		if err := tx.Model(&models.OrderLine{}).Where("order_id = ?", basket.ID).Count(&lines).Error; err != nil {
			return fmt.Errorf("failed to count lines: %w", err)
		}
		if lines == 0 {
			return ErrEmptyBasket
		}

		if err := tx.Model(basket).Update("state", models.OrderStateNew).Error; err != nil {
			return fmt.Errorf("failed to submit order: %w", err)
		}

		key, err = utils.GenerateConfirmationKey()
		if err != nil {
			return fmt.Errorf("failed to generate confirmation key: %w", err)
		}
		token := models.ConfirmationToken{OrderID: basket.ID, Key: key}
		if err := tx.Create(&token).Error; err != nil {
			return fmt.Errorf("failed to create confirmation token: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := OrderEvent{
		OrderID:         orderID,
		UserID:          userID,
		From:            models.OrderStateBasket,
		To:              models.OrderStateNew,
		ConfirmationKey: key,
		OccurredAt:      time.Now().UTC(),
	}
	queued := s.emit(ctx, event, OrderObserver.OrderSubmitted)

	order, err := s.loadOrder(ctx, orderID, nil)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Order: order, ConfirmationQueued: queued}, nil
}

// Confirm consumes a confirmation key. An unknown or used key yields false
// without error.
func (s *OrderService) Confirm(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}

	var order models.Order
	confirmed := false
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		var token models.ConfirmationToken
		if err := tx.Where("token_key = ?", key).First(&token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("failed to load confirmation token: %w", err)
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", token.OrderID).
			First(&order).Error; err != nil {
			return fmt.Errorf("failed to load order: %w", err)
		}

		// Deleting first makes the key single-use under concurrent confirms.
		result := tx.Where("id = ?", token.ID).Delete(&models.ConfirmationToken{})
		if result.Error != nil {
			return fmt.Errorf("failed to consume confirmation token: %w", result.Error)
		}
		if result.RowsAffected == 0 || order.State != models.OrderStateNew {
			return nil
		}

		if err := tx.Model(&order).Update("state", models.OrderStateConfirmed).Error; err != nil {
			return fmt.Errorf("failed to confirm order: %w", err)
		}
		confirmed = true
		return nil
	})
	if err != nil || !confirmed {
		return false, err
	}

	event := OrderEvent{
		OrderID:    order.ID,
		UserID:     order.UserID,
		From:       models.OrderStateNew,
		To:         models.OrderStateConfirmed,
		OccurredAt: time.Now().UTC(),
	}
	s.emit(ctx, event, OrderObserver.OrderStateChanged)
	s.emit(ctx, event, OrderObserver.OrderConfirmed)

	logrus.WithField("order_id", order.ID).Info("Order confirmed")
	return true, nil
}

// AdvanceState applies an operator transition to an order holding the
// operator's listings. Admins may advance any order.
func (s *OrderService) AdvanceState(ctx context.Context, operatorID, orderID uuid.UUID, to models.OrderState) (*models.Order, error) {
	user, err := s.authz.Authorize(ctx, operatorID, CapAdvanceOrders)
	if err != nil {
		return nil, err
	}

	var shopID *uuid.UUID
	if user.Role != models.UserRoleAdmin {
		shop, err := s.authz.OperatorShop(ctx, operatorID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("operator has no shop: %w", ErrForbidden)
			}
			return nil, err
		}
		shopID = &shop.ID
	}

	var event OrderEvent
	err = database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND state <> ?", orderID, models.OrderStateBasket).
			First(&order).Error; err != nil {
			return notFound("order", err)
		}

		if shopID != nil {
			var involved int64
			if err := tx.Model(&models.OrderLine{}).
				Joins("JOIN product_listings ON product_listings.id = order_lines.listing_id").
				Where("order_lines.order_id = ? AND product_listings.shop_id = ?", order.ID, *shopID).
				Count(&involved).Error; err != nil {
				return fmt.Errorf("failed to check order ownership: %w", err)
			}
			if involved == 0 {
				return fmt.Errorf("order %s has no lines of this shop: %w", order.ID, ErrForbidden)
			}
		}

		if err := validateOperatorTransition(&order, to); err != nil {
			return err
		}

		from := order.State
		if err := tx.Model(&order).Update("state", to).Error; err != nil {
			return fmt.Errorf("failed to update order state: %w", err)
		}

		// A canceled order can no longer be confirmed.
		if to == models.OrderStateCanceled {
			if err := tx.Where("order_id = ?", order.ID).Delete(&models.ConfirmationToken{}).Error; err != nil {
				return fmt.Errorf("failed to revoke confirmation token: %w", err)
			}
		}

		event = OrderEvent{
			OrderID:    order.ID,
			UserID:     order.UserID,
			From:       from,
			To:         to,
			OccurredAt: time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, event, OrderObserver.OrderStateChanged)

	logrus.WithFields(logrus.Fields{
		"order_id":    orderID,
		"operator_id": operatorID,
		"from":        event.From,
		"to":          event.To,
	}).Info("Order state advanced")

	return s.loadOrder(ctx, orderID, shopID)
}

// ListBuyerOrders returns the user's placed orders, newest first.
func (s *OrderService) ListBuyerOrders(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	if _, err := s.authz.Authorize(ctx, userID, CapViewOwnOrders); err != nil {
		return nil, err
	}

	var orders []models.Order
	if err := preloadOrder(s.db.WithContext(ctx), nil).
		Where("user_id = ? AND state <> ?", userID, models.OrderStateBasket).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch orders: %w", err)
	}

	for i := range orders {
		orders[i].ComputeTotal()
	}
	return orders, nil
}

func (s *OrderService) GetBuyerOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	if _, err := s.authz.Authorize(ctx, userID, CapViewOwnOrders); err != nil {
		return nil, err
	}

	var order models.Order
	if err := preloadOrder(s.db.WithContext(ctx), nil).
		Where("id = ? AND user_id = ? AND state <> ?", orderID, userID, models.OrderStateBasket).
		First(&order).Error; err != nil {
		return nil, notFound("order", err)
	}

	order.ComputeTotal()
	return &order, nil
}

// ListShopOrders returns placed orders holding the operator's listings. Each
// order carries only that shop's lines and the total over them.
func (s *OrderService) ListShopOrders(ctx context.Context, operatorID uuid.UUID) ([]models.Order, error) {
	if _, err := s.authz.Authorize(ctx, operatorID, CapViewShopOrders); err != nil {
		return nil, err
	}
	shop, err := s.authz.OperatorShop(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	orderIDs := db.Model(&models.OrderLine{}).
		Select("order_lines.order_id").
		Joins("JOIN product_listings ON product_listings.id = order_lines.listing_id").
		Where("product_listings.shop_id = ?", shop.ID)

	var orders []models.Order
	if err := preloadOrder(db, &shop.ID).
		Where("id IN (?) AND state <> ?", orderIDs, models.OrderStateBasket).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch shop orders: %w", err)
	}

	for i := range orders {
		orders[i].ComputeTotal()
	}
	return orders, nil
}

// AttachContactToBasket points the user's basket, if any, at the contact.
// It runs in the caller's transaction.
func (s *OrderService) AttachContactToBasket(tx *gorm.DB, userID, contactID uuid.UUID) error {
	if err := tx.Model(&models.Order{}).
		Where("user_id = ? AND state = ?", userID, models.OrderStateBasket).
		Update("contact_id", contactID).Error; err != nil {
		return fmt.Errorf("failed to attach contact to basket: %w", err)
	}
	return nil
}

func (s *OrderService) loadOrder(ctx context.Context, orderID uuid.UUID, shopID *uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := preloadOrder(s.db.WithContext(ctx), shopID).
		Where("id = ?", orderID).
		First(&order).Error; err != nil {
		return nil, notFound("order", err)
	}
	order.ComputeTotal()
	return &order, nil
}

// emit calls every observer and reports whether all of them succeeded.
func (s *OrderService) emit(ctx context.Context, event OrderEvent, notify func(OrderObserver, context.Context, OrderEvent) error) bool {
	ok := true
	for _, observer := range s.observers {
		if err := notify(observer, ctx, event); err != nil {
			ok = false
			logrus.WithError(err).WithFields(logrus.Fields{
				"order_id": event.OrderID,
				"to":       event.To,
			}).Error("Order observer failed")
		}
	}
	return ok
}

// getOrCreateBasket relies on the single-basket unique index: a concurrent
// insert for the same user becomes a no-op and both callers read one row.
func getOrCreateBasket(tx *gorm.DB, userID uuid.UUID) (*models.Order, bool, error) {
	candidate := models.Order{UserID: userID, State: models.OrderStateBasket}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to create basket: %w", result.Error)
	}

	basket, err := lockBasket(tx, userID)
	if err != nil {
		return nil, false, err
	}
	return basket, result.RowsAffected == 1 && basket.ID == candidate.ID, nil
}

func lockBasket(tx *gorm.DB, userID uuid.UUID) (*models.Order, error) {
	var basket models.Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND state = ?", userID, models.OrderStateBasket).
		First(&basket).Error; err != nil {
		return nil, notFound("basket", err)
	}
	return &basket, nil
}

func attachExistingContact(tx *gorm.DB, basket *models.Order) error {
	var contact models.Contact
	err := tx.Where("user_id = ?", basket.UserID).First(&contact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load contact: %w", err)
	}

	if err := tx.Model(basket).Update("contact_id", contact.ID).Error; err != nil {
		return fmt.Errorf("failed to attach contact: %w", err)
	}
	return nil
}

// orderableListing checks the listing is visible and has enough stock.
func orderableListing(tx *gorm.DB, listingID uuid.UUID, quantity int) (*models.ProductListing, error) {
	var listing models.ProductListing
	err := tx.Joins("JOIN shops ON shops.id = product_listings.shop_id").
		Where("product_listings.id = ? AND shops.accepting_orders = ?", listingID, true).
		First(&listing).Error
	if err != nil {
		return nil, notFound("listing", err)
	}
	if quantity > listing.Quantity {
		return nil, fmt.Errorf("listing %s has %d available, %d requested: %w",
			listingID, listing.Quantity, quantity, ErrInsufficientQuantity)
	}
	return &listing, nil
}

// preloadOrder loads contact and line detail. With shopID set only that
// shop's lines are loaded.
func preloadOrder(db *gorm.DB, shopID *uuid.UUID) *gorm.DB {
	lines := db.Preload("Contact")
	if shopID != nil {
		shopListings := db.Session(&gorm.Session{NewDB: true}).
			Model(&models.ProductListing{}).
			Select("id").
			Where("shop_id = ?", *shopID)
		lines = lines.Preload("Lines", "listing_id IN (?)", shopListings)
	} else {
		lines = lines.Preload("Lines")
	}
	return preloadListing(lines.Preload("Lines.Listing"), "Lines.Listing.")
}
