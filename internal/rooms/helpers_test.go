package rooms

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/angelmondragon/rentchain-properties/pkg/db/dbtest"
	"github.com/angelmondragon/rentchain-properties/pkg/db/models"
	"github.com/angelmondragon/rentchain-properties/pkg/enums"
)

const ownerAddress = "0x52908400098527886e0f7030069857d2e4169ee7"

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	jpegBytes = append([]byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, make([]byte, 64)...)
)

type stubBlobs struct {
	mu        sync.Mutex
	uploads   map[string][]byte
	deleted   []string
	uploadErr error
	deleteErr error
}

func newStubBlobs() *stubBlobs {
	return &stubBlobs{uploads: map[string][]byte{}}
}

func (s *stubBlobs) Upload(_ context.Context, path, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	s.uploads[path] = data
	return "https://storage.googleapis.com/rentchain-media/" + path, nil
}

func (s *stubBlobs) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, path)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.uploads, path)
	return nil
}

type fixture struct {
	db      *gorm.DB
	repo    *Repository
	blobs   *stubBlobs
	cascade *CascadeManager
	svc     Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	f := &fixture{db: conn, repo: NewRepository(conn), blobs: newStubBlobs()}
	cascade, err := NewCascadeManager(f.repo, f.blobs, nil)
	if err != nil {
		t.Fatalf("new cascade manager: %v", err)
	}
	f.cascade = cascade
	svc, err := NewService(ServiceParams{Repository: f.repo, Blobs: f.blobs, Cascade: cascade, MaxUploadBytes: 1024})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) seedProperty(t *testing.T) *models.Property {
	t.Helper()
	lid := int64(len(t.Name()))
	p := &models.Property{
		LedgerID:     &lid,
		Title:        "Townhouse",
		Country:      "Portugal",
		City:         "Porto",
		Address:      "Rua das Flores 12",
		Description:  "Three floors",
		RentalType:   enums.RentalTypeMonthly,
		RentAmount:   1500,
		OwnerID:      "user-9",
		OwnerAddress: ownerAddress,
		IsActive:     true,
		IsAvailable:  true,
		SyncState:    enums.SyncStateSynced,
		Version:      1,
	}
	if err := f.db.Create(p).Error; err != nil {
		t.Fatalf("seed property: %v", err)
	}
	return p
}

func (f *fixture) seedRoom(t *testing.T, p *models.Property, name string, images int) *models.Room {
	t.Helper()
	room := &models.Room{PropertyID: p.ID, Name: name}
	if err := f.db.Create(room).Error; err != nil {
		t.Fatalf("seed room: %v", err)
	}
	for i := 0; i < images; i++ {
		img, err := f.svc.UploadImage(context.Background(), room.ID, UploadInput{Filename: "photo.png", Data: pngBytes}, ownerAddress)
		if err != nil {
			t.Fatalf("seed image: %v", err)
		}
		if img.OrderIndex != i {
			t.Fatalf("expected appended order %d, got %d", i, img.OrderIndex)
		}
	}
	return room
}

func (f *fixture) countImages(t *testing.T, roomID any) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&models.RoomImage{}).Where("room_id = ?", roomID).Count(&n).Error; err != nil {
		t.Fatalf("count images: %v", err)
	}
	return n
}

var errBlobDown = errors.New("storage.googleapis.com: 503 backend unavailable")
