package model

import (
	"time"
)

// Consumer is an organization buying goods, owned one-to-one by a User
type Consumer struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	UserID           uint      `json:"user_id" gorm:"uniqueIndex;not null"`
	OrganizationName string    `json:"organization_name" gorm:"type:varchar(100);not null"`
	ContactEmail     string    `json:"contact_email" gorm:"type:varchar(100)"`
	ContactPhone     string    `json:"contact_phone" gorm:"type:varchar(20)"`
	Address          string    `json:"address" gorm:"type:text"`
	IsActive         bool      `json:"is_active" gorm:"default:true"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
