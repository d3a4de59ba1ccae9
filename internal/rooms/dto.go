package rooms

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/rentchain-properties/pkg/db/models"
)

type CreateRoomInput struct {
	Name       string `json:"name" validate:"required,max=100"`
	OrderIndex *int   `json:"orderIndex,omitempty" validate:"omitempty,gte=0"`
}

type UpdateRoomInput struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	OrderIndex *int    `json:"orderIndex,omitempty" validate:"omitempty,gte=0"`
}

type ReorderImageInput struct {
	OrderIndex int `json:"orderIndex" validate:"gte=0"`
}

// UploadInput carries one image file from a multipart request.
type UploadInput struct {
	Filename   string
	Data       []byte
	OrderIndex *int
}

type RoomDTO struct {
	ID         uuid.UUID  `json:"id"`
	PropertyID uuid.UUID  `json:"propertyId"`
	Name       string     `json:"name"`
	OrderIndex int        `json:"orderIndex"`
	Images     []ImageDTO `json:"images,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type ImageDTO struct {
	ID         uuid.UUID `json:"id"`
	RoomID     uuid.UUID `json:"roomId"`
	URL        string    `json:"url"`
	StorageKey string    `json:"storageKey"`
	OrderIndex int       `json:"orderIndex"`
	UploadedAt time.Time `json:"uploadedAt"`
}

func roomFromModel(m *models.Room, images []models.RoomImage) RoomDTO {
	dto := RoomDTO{
		ID:         m.ID,
		PropertyID: m.PropertyID,
		Name:       m.Name,
		OrderIndex: m.OrderIndex,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	for i := range images {
		dto.Images = append(dto.Images, imageFromModel(&images[i]))
	}
	return dto
}

func imageFromModel(m *models.RoomImage) ImageDTO {
	return ImageDTO{
		ID:         m.ID,
		RoomID:     m.RoomID,
		URL:        m.URL,
		StorageKey: m.StorageKey,
		OrderIndex: m.OrderIndex,
		UploadedAt: m.UploadedAt,
	}
}
