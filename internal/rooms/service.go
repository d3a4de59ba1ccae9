package rooms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/rentchain-properties/internal/properties"
	"github.com/angelmondragon/rentchain-properties/pkg/db/models"
	pkgerrors "github.com/angelmondragon/rentchain-properties/pkg/errors"
	"github.com/angelmondragon/rentchain-properties/pkg/logger"
)

const cleanupTimeout = 10 * time.Second

type roomRepository interface {
	FindProperty(ctx context.Context, id uuid.UUID) (*models.Property, error)
	CreateRoom(ctx context.Context, room *models.Room) error
	FindRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	ListRooms(ctx context.Context, propertyID uuid.UUID) ([]models.Room, error)
	CountRooms(ctx context.Context, propertyID uuid.UUID) (int, error)
	UpdateRoom(ctx context.Context, room *models.Room) error
	CreateImage(ctx context.Context, img *models.RoomImage) error
	FindImage(ctx context.Context, id uuid.UUID) (*models.RoomImage, error)
	ListImages(ctx context.Context, roomID uuid.UUID) ([]models.RoomImage, error)
	CountImages(ctx context.Context, roomID uuid.UUID) (int, error)
	UpdateImageOrder(ctx context.Context, id uuid.UUID, order int) error
}

type blobStore interface {
	Upload(ctx context.Context, path, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, path string) error
}

type cascader interface {
	DeleteRoom(ctx context.Context, roomID uuid.UUID) error
	DeleteImage(ctx context.Context, imageID uuid.UUID) error
}

// Service exposes room and image management. Mutations require the caller to own the
// parent property.
type Service interface {
	CreateRoom(ctx context.Context, propertyID uuid.UUID, input CreateRoomInput, callerAddress string) (*RoomDTO, error)
	ListRooms(ctx context.Context, propertyID uuid.UUID) ([]RoomDTO, error)
	GetRoom(ctx context.Context, roomID uuid.UUID) (*RoomDTO, error)
	UpdateRoom(ctx context.Context, roomID uuid.UUID, input UpdateRoomInput, callerAddress string) (*RoomDTO, error)
	DeleteRoom(ctx context.Context, roomID uuid.UUID, callerAddress string) error

	UploadImage(ctx context.Context, roomID uuid.UUID, input UploadInput, callerAddress string) (*ImageDTO, error)
	ListImages(ctx context.Context, roomID uuid.UUID) ([]ImageDTO, error)
	GetImage(ctx context.Context, imageID uuid.UUID) (*ImageDTO, error)
	ReorderImage(ctx context.Context, imageID uuid.UUID, order int, callerAddress string) (*ImageDTO, error)
	DeleteImage(ctx context.Context, imageID uuid.UUID, callerAddress string) error
}

type ServiceParams struct {
	Repository     roomRepository
	Blobs          blobStore
	Cascade        cascader
	MaxUploadBytes int64
	Logger         *logger.Logger
}

type service struct {
	repo     roomRepository
	blobs    blobStore
	cascade  cascader
	maxBytes int64
	logg     *logger.Logger
}

func NewService(p ServiceParams) (Service, error) {
	if p.Repository == nil {
		return nil, fmt.Errorf("room repository required")
	}
	if p.Blobs == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if p.Cascade == nil {
		return nil, fmt.Errorf("cascade manager required")
	}
	if p.MaxUploadBytes <= 0 {
		p.MaxUploadBytes = 10 << 20
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	return &service{
		repo:     p.Repository,
		blobs:    p.Blobs,
		cascade:  p.Cascade,
		maxBytes: p.MaxUploadBytes,
		logg:     p.Logger,
	}, nil
}

func (s *service) CreateRoom(ctx context.Context, propertyID uuid.UUID, input CreateRoomInput, callerAddress string) (*RoomDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "room name is required")
	}
	if input.OrderIndex != nil && *input.OrderIndex < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderIndex must not be negative")
	}
	if _, err := s.ownedProperty(ctx, propertyID, callerAddress); err != nil {
		return nil, err
	}

	order, err := s.nextOrder(input.OrderIndex, func() (int, error) { return s.repo.CountRooms(ctx, propertyID) })
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count rooms")
	}
	room := &models.Room{PropertyID: propertyID, Name: name, OrderIndex: order}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create room")
	}
	dto := roomFromModel(room, nil)
	return &dto, nil
}

func (s *service) ListRooms(ctx context.Context, propertyID uuid.UUID) ([]RoomDTO, error) {
	if _, err := s.repo.FindProperty(ctx, propertyID); err != nil {
		return nil, notFoundOr(err, "property")
	}
	rooms, err := s.repo.ListRooms(ctx, propertyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list rooms")
	}
	out := make([]RoomDTO, 0, len(rooms))
	for i := range rooms {
		out = append(out, roomFromModel(&rooms[i], nil))
	}
	return out, nil
}

// GetRoom returns the room with its images.
func (s *service) GetRoom(ctx context.Context, roomID uuid.UUID) (*RoomDTO, error) {
	room, err := s.repo.FindRoom(ctx, roomID)
	if err != nil {
		return nil, notFoundOr(err, "room")
	}
	images, err := s.repo.ListImages(ctx, roomID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list room images")
	}
	dto := roomFromModel(room, images)
	return &dto, nil
}

// UpdateRoom renames or reorders a room. Renaming a room that holds images is refused
// because the blob folder is derived from the name.
func (s *service) UpdateRoom(ctx context.Context, roomID uuid.UUID, input UpdateRoomInput, callerAddress string) (*RoomDTO, error) {
	room, err := s.ownedRoom(ctx, roomID, callerAddress)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "room name must not be empty")
		}
		if FolderName(name) != FolderName(room.Name) {
			n, err := s.repo.CountImages(ctx, room.ID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count room images")
			}
			if n > 0 {
				return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "room has images; delete them before renaming")
			}
		}
		room.Name = name
	}
	if input.OrderIndex != nil {
		if *input.OrderIndex < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderIndex must not be negative")
		}
		room.OrderIndex = *input.OrderIndex
	}
	room.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateRoom(ctx, room); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update room")
	}
	dto := roomFromModel(room, nil)
	return &dto, nil
}

func (s *service) DeleteRoom(ctx context.Context, roomID uuid.UUID, callerAddress string) error {
	if _, err := s.ownedRoom(ctx, roomID, callerAddress); err != nil {
		return err
	}
	return s.cascade.DeleteRoom(ctx, roomID)
}

// UploadImage stores the file under the room's folder and records it. The row is only
// written after the upload succeeded; if the insert fails the blob is removed again.
func (s *service) UploadImage(ctx context.Context, roomID uuid.UUID, input UploadInput, callerAddress string) (*ImageDTO, error) {
	room, err := s.ownedRoom(ctx, roomID, callerAddress)
	if err != nil {
		return nil, err
	}
	if input.OrderIndex != nil && *input.OrderIndex < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderIndex must not be negative")
	}
	if len(input.Data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is empty")
	}
	if int64(len(input.Data)) > s.maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}
	contentType, ok := sniffImageType(input.Data)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported image type "+contentType).
			WithDetails(map[string]any{"allowed": allowedImageDescription()})
	}

	order, err := s.nextOrder(input.OrderIndex, func() (int, error) { return s.repo.CountImages(ctx, room.ID) })
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count room images")
	}

	key := uuid.NewString() + "." + extensionFor(input.Filename)
	object := BlobPath(room.PropertyID, room.Name, key)
	ctx = s.logg.WithRoomID(ctx, room.ID.String())
	url, err := s.blobs.Upload(ctx, object, contentType, input.Data)
	if err != nil {
		return nil, err
	}

	img := &models.RoomImage{RoomID: room.ID, URL: url, StorageKey: key, OrderIndex: order}
	if err := s.repo.CreateImage(ctx, img); err != nil {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if delErr := s.blobs.Delete(cleanupCtx, object); delErr != nil {
			s.logg.WarnErr(s.logg.WithField(ctx, "object", object), "orphaned blob after failed image insert", delErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record room image")
	}
	dto := imageFromModel(img)
	return &dto, nil
}

func (s *service) ListImages(ctx context.Context, roomID uuid.UUID) ([]ImageDTO, error) {
	if _, err := s.repo.FindRoom(ctx, roomID); err != nil {
		return nil, notFoundOr(err, "room")
	}
	images, err := s.repo.ListImages(ctx, roomID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list room images")
	}
	out := make([]ImageDTO, 0, len(images))
	for i := range images {
		out = append(out, imageFromModel(&images[i]))
	}
	return out, nil
}

func (s *service) GetImage(ctx context.Context, imageID uuid.UUID) (*ImageDTO, error) {
	img, err := s.repo.FindImage(ctx, imageID)
	if err != nil {
		return nil, notFoundOr(err, "image")
	}
	dto := imageFromModel(img)
	return &dto, nil
}

func (s *service) ReorderImage(ctx context.Context, imageID uuid.UUID, order int, callerAddress string) (*ImageDTO, error) {
	if order < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderIndex must not be negative")
	}
	img, err := s.ownedImage(ctx, imageID, callerAddress)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateImageOrder(ctx, img.ID, order); err != nil {
		return nil, notFoundOr(err, "image")
	}
	img.OrderIndex = order
	dto := imageFromModel(img)
	return &dto, nil
}

func (s *service) DeleteImage(ctx context.Context, imageID uuid.UUID, callerAddress string) error {
	if _, err := s.ownedImage(ctx, imageID, callerAddress); err != nil {
		return err
	}
	return s.cascade.DeleteImage(ctx, imageID)
}

func (s *service) ownedProperty(ctx context.Context, propertyID uuid.UUID, callerAddress string) (*models.Property, error) {
	p, err := s.repo.FindProperty(ctx, propertyID)
	if err != nil {
		return nil, notFoundOr(err, "property")
	}
	if !properties.IsOwner(p, callerAddress) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "caller does not own this property")
	}
	return p, nil
}

func (s *service) ownedRoom(ctx context.Context, roomID uuid.UUID, callerAddress string) (*models.Room, error) {
	room, err := s.repo.FindRoom(ctx, roomID)
	if err != nil {
		return nil, notFoundOr(err, "room")
	}
	if _, err := s.ownedProperty(ctx, room.PropertyID, callerAddress); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *service) ownedImage(ctx context.Context, imageID uuid.UUID, callerAddress string) (*models.RoomImage, error) {
	img, err := s.repo.FindImage(ctx, imageID)
	if err != nil {
		return nil, notFoundOr(err, "image")
	}
	if _, err := s.ownedRoom(ctx, img.RoomID, callerAddress); err != nil {
		return nil, err
	}
	return img, nil
}

// nextOrder uses the requested index or appends after the existing items.
func (s *service) nextOrder(requested *int, count func() (int, error)) (int, error) {
	if requested != nil {
		return *requested, nil
	}
	return count()
}
