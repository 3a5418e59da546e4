// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired     = "auth.required"
	KeyAuthInvalidToken = "auth.invalid_token"
	KeyAuthTokenExpired = "auth.token_expired"
	KeyAccessDenied     = "auth.access_denied"
	KeyRateLimited      = "auth.rate_limited"
	KeyAuthRegistered   = "auth.registered"
	KeyAuthLoggedIn     = "auth.logged_in"
	KeyAuthBadLogin     = "auth.invalid_credentials"
	KeyAuthEmailTaken   = "auth.email_taken"

	KeyAuthActivationSent    = "auth.activation_sent"
	KeyAuthActivated         = "auth.activated"
	KeyAuthActivationInvalid = "auth.activation_invalid"

	// Catalog
	KeyListingNotFound  = "listing.not_found"
	KeyShopNotFound     = "shop.not_found"
	KeyShopStateUpdated = "shop.state_updated"

	// Price lists
	KeyPriceListMalformed    = "price_list.malformed"
	KeyPriceListDuplicateKey = "price_list.duplicate_key"
	KeyPriceListFetchFailed  = "price_list.fetch_failed"
	KeyPriceListImported     = "price_list.imported"
	KeyPriceListNoSource     = "price_list.no_source"

	// Basket and orders
	KeyBasketDuplicateLine      = "basket.duplicate_line"
	KeyBasketEmpty              = "basket.empty"
	KeyBasketInsufficientStock  = "basket.insufficient_quantity"
	KeyBasketLinesRemoved       = "basket.lines_removed"
	KeyOrderNotFound            = "order.not_found"
	KeyOrderContactRequired     = "order.contact_required"
	KeyOrderInvalidTransition   = "order.invalid_transition"
	KeyOrderSubmitted           = "order.submitted"
	KeyOrderConfirmed           = "order.confirmed"
	KeyOrderConfirmationInvalid = "order.confirmation_invalid"

	// Contact
	KeyContactNotFound = "contact.not_found"
	KeyContactInUse    = "contact.in_use"
	KeyContactDeleted  = "contact.deleted"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"
	KeyConflict           = "conflict"
)
