package model

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role is the access level of a user account.
type Role string

const (
	RoleUser       Role = "user"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleTechnician, RoleAdmin:
		return true
	}
	return false
}

// User is an operator account.
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:128;not null" json:"name"`
	Email         string    `gorm:"uniqueIndex;size:256;not null" json:"email"`
	Password      string    `gorm:"not null" json:"-"`
	Role          Role      `gorm:"size:16;not null;index" json:"role"`
	Department    string    `gorm:"size:128" json:"department,omitempty"`
	ContactNumber string    `gorm:"size:64" json:"contactNumber,omitempty"`
	IsActive      bool      `gorm:"not null" json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// SetPassword stores the bcrypt hash of password.
func (u *User) SetPassword(password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}
