package rooms

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/rentchain-properties/pkg/db"
	"github.com/angelmondragon/rentchain-properties/pkg/db/models"
	pkgerrors "github.com/angelmondragon/rentchain-properties/pkg/errors"
	"github.com/angelmondragon/rentchain-properties/pkg/logger"
)

type cascadeRepository interface {
	FindRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	ListRooms(ctx context.Context, propertyID uuid.UUID) ([]models.Room, error)
	ListImages(ctx context.Context, roomID uuid.UUID) ([]models.RoomImage, error)
	FindImage(ctx context.Context, id uuid.UUID) (*models.RoomImage, error)
	DeleteImage(ctx context.Context, id uuid.UUID) error
	DeleteRoom(ctx context.Context, id uuid.UUID) error
}

type blobDeleter interface {
	Delete(ctx context.Context, path string) error
}

// CascadeManager deletes rooms and images. Blob deletion is best effort: a failure is
// logged and the record is deleted anyway, so an orphaned blob is the worst outcome.
type CascadeManager struct {
	repo  cascadeRepository
	blobs blobDeleter
	logg  *logger.Logger
}

func NewCascadeManager(repo cascadeRepository, blobs blobDeleter, logg *logger.Logger) (*CascadeManager, error) {
	if repo == nil {
		return nil, fmt.Errorf("room repository required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &CascadeManager{repo: repo, blobs: blobs, logg: logg}, nil
}

// DeleteRoom removes every image of the room (blob first, then row) and then the room.
func (m *CascadeManager) DeleteRoom(ctx context.Context, roomID uuid.UUID) error {
	room, err := m.repo.FindRoom(ctx, roomID)
	if err != nil {
		return notFoundOr(err, "room")
	}
	return m.deleteRoom(ctx, room)
}

// DeleteImage removes one image blob (best effort) and its row.
func (m *CascadeManager) DeleteImage(ctx context.Context, imageID uuid.UUID) error {
	img, err := m.repo.FindImage(ctx, imageID)
	if err != nil {
		return notFoundOr(err, "image")
	}
	room, err := m.repo.FindRoom(ctx, img.RoomID)
	if err != nil {
		return notFoundOr(err, "room")
	}
	ctx = m.logg.WithRoomID(ctx, room.ID.String())
	return m.deleteImage(ctx, room, *img)
}

// DeletePropertyRooms removes all rooms of a property with their images.
func (m *CascadeManager) DeletePropertyRooms(ctx context.Context, propertyID uuid.UUID) error {
	rooms, err := m.repo.ListRooms(ctx, propertyID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list rooms")
	}
	for i := range rooms {
		if err := m.deleteRoom(ctx, &rooms[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *CascadeManager) deleteRoom(ctx context.Context, room *models.Room) error {
	ctx = m.logg.WithRoomID(ctx, room.ID.String())
	images, err := m.repo.ListImages(ctx, room.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list room images")
	}
	for _, img := range images {
		if err := m.deleteImage(ctx, room, img); err != nil {
			return err
		}
	}
	if err := m.repo.DeleteRoom(ctx, room.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete room")
	}
	m.logg.Info(m.logg.WithField(ctx, "images", len(images)), "room deleted")
	return nil
}

func (m *CascadeManager) deleteImage(ctx context.Context, room *models.Room, img models.RoomImage) error {
	object := BlobPath(room.PropertyID, room.Name, img.StorageKey)
	ctx = m.logg.WithField(ctx, "object", object)
	if err := m.blobs.Delete(ctx, object); err != nil {
		m.logg.WarnErr(ctx, "blob delete failed; removing image record anyway", err)
	}
	if err := m.repo.DeleteImage(ctx, img.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete room image")
	}
	return nil
}

func notFoundOr(err error, what string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, what+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}
