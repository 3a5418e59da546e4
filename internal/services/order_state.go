// internal/services/order_state.go
package services

import (
	"fmt"

	"github.com/javajoker/retail-backend/internal/models"
)

// operatorTransitions are the moves a shop operator may make. basket -> new
// happens only through Submit and new -> confirmed only through a token.
var operatorTransitions = map[models.OrderState][]models.OrderState{
	models.OrderStateNew:       {models.OrderStateCanceled},
	models.OrderStateConfirmed: {models.OrderStateAssembled, models.OrderStateCanceled},
	models.OrderStateAssembled: {models.OrderStateSent},
	models.OrderStateSent:      {models.OrderStateDelivered},
}

// buyerNotifiedStates trigger a status update email to the buyer.
var buyerNotifiedStates = map[models.OrderState]bool{
	models.OrderStateConfirmed: true,
	models.OrderStateAssembled: true,
	models.OrderStateSent:      true,
	models.OrderStateDelivered: true,
	models.OrderStateCanceled:  true,
}

func CanOperatorTransition(from, to models.OrderState) bool {
	for _, next := range operatorTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NotifiesBuyer reports whether entering state sends a status update.
func NotifiesBuyer(state models.OrderState) bool {
	return buyerNotifiedStates[state]
}

// checkContact applies on every path that moves an order to new.
func checkContact(order *models.Order, to models.OrderState) error {
	if to == models.OrderStateNew && order.ContactID == nil {
		return fmt.Errorf("order %s: %w", order.ID, ErrContactRequired)
	}
	return nil
}

func validateOperatorTransition(order *models.Order, to models.OrderState) error {
	if !to.Valid() {
		return fmt.Errorf("unknown state %q: %w", to, ErrInvalidTransition)
	}
	if err := checkContact(order, to); err != nil {
		return err
	}
	if order.State.Terminal() {
		return fmt.Errorf("order %s is already %s: %w", order.ID, order.State, ErrInvalidTransition)
	}
	if !CanOperatorTransition(order.State, to) {
		return fmt.Errorf("%s -> %s: %w", order.State, to, ErrInvalidTransition)
	}
	return nil
}
