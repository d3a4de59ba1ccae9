package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoomImage stores the metadata of one uploaded picture. StorageKey is the last
// segment of the blob path; the folder is derived from the owning room.
type RoomImage struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	RoomID     uuid.UUID `gorm:"column:room_id;type:uuid;not null;index"`
	URL        string    `gorm:"column:url;not null"`
	StorageKey string    `gorm:"column:storage_key;not null"`
	OrderIndex int       `gorm:"column:order_index;not null;default:0"`
	UploadedAt time.Time `gorm:"column:uploaded_at;not null"`
}

func (RoomImage) TableName() string { return "room_images" }

func (i *RoomImage) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.UploadedAt.IsZero() {
		i.UploadedAt = time.Now().UTC()
	}
	return nil
}
