// internal/services/errors.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/javajoker/retail-backend/internal/utils"
)

var (
	ErrMalformedPriceList   = errors.New("malformed price list")
	ErrIntegrityConflict    = errors.New("integrity conflict")
	ErrDuplicateLineItem    = fmt.Errorf("%w: listing already in order", ErrIntegrityConflict)
	ErrDuplicateListingKey  = fmt.Errorf("%w: duplicate listing key", ErrIntegrityConflict)
	ErrContactRequired      = errors.New("contact required")
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrTransportFailure     = errors.New("transport failure")
	ErrInvalidTransition    = errors.New("invalid state transition")
	ErrEmptyBasket          = errors.New("basket is empty")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
)

// PriceListError reports document problems with field-level detail.
type PriceListError struct {
	Fields []utils.ValidationError
}

func (e *PriceListError) Error() string {
	if len(e.Fields) == 0 {
		return ErrMalformedPriceList.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrMalformedPriceList, strings.Join(parts, "; "))
}

func (e *PriceListError) Unwrap() error {
	return ErrMalformedPriceList
}

// documentTooLarge is returned for any price list over the size cap, whether
// it was uploaded or fetched.
func documentTooLarge(limit int64) error {
	return &PriceListError{Fields: []utils.ValidationError{{
		Field: "document", Tag: "max", Message: fmt.Sprintf("document exceeds %d bytes", limit),
	}}}
}

// DuplicateKeyError names the keys repeated inside one price list.
type DuplicateKeyError struct {
	Kind string
	Keys []int64
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s: %s %v", ErrDuplicateListingKey, e.Kind, e.Keys)
}

func (e *DuplicateKeyError) Unwrap() error {
	return ErrDuplicateListingKey
}

func notFound(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}
