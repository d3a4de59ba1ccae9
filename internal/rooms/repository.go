package rooms

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentchain-properties/pkg/db/models"
)

// Repository handles room and room image persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to room operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindProperty loads the parent property of a room.
func (r *Repository) FindProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	var p models.Property
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) CreateRoom(ctx context.Context, room *models.Room) error {
	if room == nil {
		return fmt.Errorf("room is required")
	}
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *Repository) FindRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// ListRooms returns the property's rooms in display order.
func (r *Repository) ListRooms(ctx context.Context, propertyID uuid.UUID) ([]models.Room, error) {
	var out []models.Room
	if err := r.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("order_index").Order("created_at").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) CountRooms(ctx context.Context, propertyID uuid.UUID) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Room{}).Where("property_id = ?", propertyID).Count(&n).Error
	return int(n), err
}

// UpdateRoom writes the room's name and order.
func (r *Repository) UpdateRoom(ctx context.Context, room *models.Room) error {
	return r.db.WithContext(ctx).
		Model(room).
		Select("name", "order_index", "updated_at").
		Updates(room).Error
}

// DeleteRoom removes the room and any image rows still pointing at it.
func (r *Repository) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", id).Delete(&models.RoomImage{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Room{}).Error
	})
}

func (r *Repository) CreateImage(ctx context.Context, img *models.RoomImage) error {
	if img == nil {
		return fmt.Errorf("image is required")
	}
	return r.db.WithContext(ctx).Create(img).Error
}

func (r *Repository) FindImage(ctx context.Context, id uuid.UUID) (*models.RoomImage, error) {
	var img models.RoomImage
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&img).Error; err != nil {
		return nil, err
	}
	return &img, nil
}

// ListImages returns the room's images in display order.
func (r *Repository) ListImages(ctx context.Context, roomID uuid.UUID) ([]models.RoomImage, error) {
	var out []models.RoomImage
	if err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("order_index").Order("uploaded_at").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) CountImages(ctx context.Context, roomID uuid.UUID) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.RoomImage{}).Where("room_id = ?", roomID).Count(&n).Error
	return int(n), err
}

func (r *Repository) UpdateImageOrder(ctx context.Context, id uuid.UUID, order int) error {
	res := r.db.WithContext(ctx).Model(&models.RoomImage{}).Where("id = ?", id).Update("order_index", order)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) DeleteImage(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.RoomImage{}).Error
}

// FindImageByObject locates the image stored under storageKey in one of the property's rooms.
func (r *Repository) FindImageByObject(ctx context.Context, propertyID uuid.UUID, storageKey string) (*models.RoomImage, *models.Room, error) {
	var img models.RoomImage
	if err := r.db.WithContext(ctx).
		Joins("JOIN rooms ON rooms.id = room_images.room_id").
		Where("rooms.property_id = ? AND room_images.storage_key = ?", propertyID, storageKey).
		First(&img).Error; err != nil {
		return nil, nil, err
	}
	room, err := r.FindRoom(ctx, img.RoomID)
	if err != nil {
		return nil, nil, err
	}
	return &img, room, nil
}
