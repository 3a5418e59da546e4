// internal/services/auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/retail-backend/internal/config"
	"github.com/javajoker/retail-backend/internal/database"
	"github.com/javajoker/retail-backend/internal/models"
	"github.com/javajoker/retail-backend/internal/utils"
)

var (
	ErrEmailTaken         = fmt.Errorf("%w: email already registered", ErrIntegrityConflict)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
)

// maxShopName matches the shops.name column.
const maxShopName = 100

// AccountEvent describes a committed registration.
type AccountEvent struct {
	UserID        uuid.UUID
	Email         string
	ActivationKey string
	OccurredAt    time.Time
}

// AccountObserver is told about new accounts that still need activation.
// Returned errors are logged and never undo the registration.
type AccountObserver interface {
	AccountRegistered(ctx context.Context, event AccountEvent) error
}

type AuthService struct {
	db                *gorm.DB
	tokenTTL          time.Duration
	requireActivation bool
	observers         []AccountObserver
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest creates a buyer or shop account. Admins are provisioned out of band.
type RegisterRequest struct {
	Email     string          `json:"email" validate:"required,email,max=255"`
	Password  string          `json:"password" validate:"required,min=8,max=72"`
	FirstName string          `json:"first_name" validate:"max=100"`
	LastName  string          `json:"last_name" validate:"max=100"`
	Company   string          `json:"company" validate:"max=100"`
	Position  string          `json:"position" validate:"max=100"`
	Role      models.UserRole `json:"role" validate:"required,oneof=buyer shop"`
}

// AuthResponse carries no token while the account awaits activation.
type AuthResponse struct {
	User               *models.User `json:"user"`
	AccessToken        string       `json:"access_token,omitempty"`
	TokenType          string       `json:"token_type,omitempty"`
	ExpiresIn          int          `json:"expires_in,omitempty"` // in seconds
	ActivationRequired bool         `json:"activation_required"`
}

func NewAuthService(db *gorm.DB, jwtCfg config.JWTConfig, accountCfg config.AccountConfig) *AuthService {
	return &AuthService{
		db:                db,
		tokenTTL:          jwtCfg.AccessTokenTTL,
		requireActivation: accountCfg.RequireActivation,
	}
}

func (s *AuthService) Subscribe(observer AccountObserver) {
	s.observers = append(s.observers, observer)
}

// Register creates the account, and for shop operators their shop, in one
// transaction.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	user := &models.User{
		Email:     normalizeEmail(req.Email),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Company:   req.Company,
		Position:  req.Position,
		Role:      req.Role,
		IsActive:  true,
	}

	if err := user.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var activationKey string
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		if user.Role == models.UserRoleShop {
			shop := &models.Shop{
				Name:            defaultShopName(user),
				UserID:          user.ID,
				AcceptingOrders: true,
			}
			if err := tx.Create(shop).Error; err != nil {
				return fmt.Errorf("failed to create shop: %w", err)
			}
		}

		if !s.requireActivation {
			return nil
		}

		// is_active has a column default, so false must be written explicitly.
		if err := tx.Model(user).Update("is_active", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate user: %w", err)
		}
		user.IsActive = false

		key, err := utils.GenerateConfirmationKey()
		if err != nil {
			return fmt.Errorf("failed to generate activation key: %w", err)
		}
		if err := tx.Create(&models.ActivationToken{UserID: user.ID, Key: key}).Error; err != nil {
			return fmt.Errorf("failed to create activation token: %w", err)
		}
		activationKey = key
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":             user.ID,
		"role":                user.Role,
		"activation_required": s.requireActivation,
	}).Info("User registered")

	if activationKey != "" {
		s.emit(ctx, AccountEvent{
			UserID:        user.ID,
			Email:         user.Email,
			ActivationKey: activationKey,
			OccurredAt:    time.Now().UTC(),
		})
		return &AuthResponse{User: user, ActivationRequired: true}, nil
	}

	return s.issue(user)
}

// Activate consumes the key mailed to email. An unknown pair is a normal
// negative answer, not an error.
func (s *AuthService) Activate(ctx context.Context, email, key string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || key == "" {
		return false, nil
	}

	activated := false
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("email = ?", email).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("failed to load user: %w", err)
		}

		result := tx.Where("user_id = ? AND token_key = ?", user.ID, key).Delete(&models.ActivationToken{})
		if result.Error != nil {
			return fmt.Errorf("failed to consume activation token: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}

		if err := tx.Model(&user).Update("is_active", true).Error; err != nil {
			return fmt.Errorf("failed to activate user: %w", err)
		}
		activated = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if activated {
		logrus.WithField("email", email).Info("Account activated")
	}
	return activated, nil
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Where("email = ?", normalizeEmail(req.Email)).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !user.IsActive || user.CheckPassword(req.Password) != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(&user)
}

func (s *AuthService) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Contact").Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, notFound("user", err)
	}
	return &user, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResponse, error) {
	accessToken, err := utils.GenerateJWT(user.ID, user.Email, string(user.Role), s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &AuthResponse{
		User:        user,
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokenTTL.Seconds()),
	}, nil
}

func (s *AuthService) emit(ctx context.Context, event AccountEvent) {
	for _, observer := range s.observers {
		if err := observer.AccountRegistered(ctx, event); err != nil {
			logrus.WithError(err).WithField("user_id", event.UserID).Error("Account observer failed")
		}
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// defaultShopName is replaced by the name in the first imported price list.
func defaultShopName(user *models.User) string {
	name := strings.TrimSpace(user.Company)
	if name == "" {
		name = user.Email
	}
	if runes := []rune(name); len(runes) > maxShopName {
		name = string(runes[:maxShopName])
	}
	return name
}
