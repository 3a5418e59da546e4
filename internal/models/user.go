// internal/models/user.go
package models

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	BaseModel
	Email        string   `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string   `json:"-" gorm:"size:255"`
	FirstName    string   `json:"first_name" gorm:"size:100"`
	LastName     string   `json:"last_name" gorm:"size:100"`
	Company      string   `json:"company,omitempty" gorm:"size:100"`
	Position     string   `json:"position,omitempty" gorm:"size:100"`
	Role         UserRole `json:"role" gorm:"type:varchar(20);not null;default:'buyer'"`
	IsActive     bool     `json:"is_active" gorm:"default:true"`

	// Relationships
	Shop    *Shop    `json:"shop,omitempty" gorm:"foreignKey:UserID"`
	Contact *Contact `json:"contact,omitempty" gorm:"foreignKey:UserID"`
	Orders  []Order  `json:"orders,omitempty" gorm:"foreignKey:UserID"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Email
}

// ActivationToken is the single-use key mailed to a new account when
// activation is required.
type ActivationToken struct {
	BaseModel
	UserID uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex"`
	Key    string    `json:"-" gorm:"column:token_key;size:64;not null;uniqueIndex"`
}
