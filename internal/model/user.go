package model

import (
	"time"
)

// GlobalRole is an optional platform-wide role
type GlobalRole string

const (
	GlobalRolePlatformAdmin GlobalRole = "PLATFORM_ADMIN"
)

// User represents the user model stored in the database
type User struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	Email      string     `json:"email" gorm:"type:varchar(100);uniqueIndex;not null"`
	Password   string     `json:"-" gorm:"type:varchar(255);not null"`
	FullName   string     `json:"full_name" gorm:"type:varchar(100);not null"`
	IsActive   bool       `json:"is_active" gorm:"default:true"`
	GlobalRole GlobalRole `json:"global_role,omitempty" gorm:"type:varchar(50)"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
