package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Room is an ordered sub-unit of a property.
type Room struct {
	ID         uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	PropertyID uuid.UUID   `gorm:"column:property_id;type:uuid;not null;index"`
	Name       string      `gorm:"column:name;not null"`
	OrderIndex int         `gorm:"column:order_index;not null;default:0"`
	Images     []RoomImage `gorm:"foreignKey:RoomID"`
	CreatedAt  time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

func (Room) TableName() string { return "rooms" }

func (r *Room) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
