package properties

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentchain-properties/internal/events"
	"github.com/angelmondragon/rentchain-properties/pkg/auth"
	"github.com/angelmondragon/rentchain-properties/pkg/db/dbtest"
	"github.com/angelmondragon/rentchain-properties/pkg/db/models"
	"github.com/angelmondragon/rentchain-properties/pkg/enums"
	"github.com/angelmondragon/rentchain-properties/pkg/ledger"
	"github.com/angelmondragon/rentchain-properties/pkg/logger"
)

const ownerAddress = "0xab5801a7d398351b8be11c439e05c5b3259aec9b"

var owner = auth.Principal{OwnerID: "user-1", OwnerAddress: "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"}

type stubLedger struct {
	mu sync.Mutex

	listErr   error
	updateErr error
	delistErr error
	noEvent   bool
	nextID    int64

	calls       []string
	lastListing ledger.Listing
	lastID      int64
	lastAvail   bool
}

func (s *stubLedger) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *stubLedger) ListProperty(_ context.Context, l ledger.Listing) (*ledger.Receipt, error) {
	s.record("list")
	s.lastListing = l
	if s.listErr != nil {
		return nil, s.listErr
	}
	return &ledger.Receipt{}, nil
}

func (s *stubLedger) UpdateProperty(_ context.Context, id int64, l ledger.Listing, isAvailable bool) (*ledger.Receipt, error) {
	s.record("update")
	s.lastID, s.lastListing, s.lastAvail = id, l, isAvailable
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return &ledger.Receipt{}, nil
}

func (s *stubLedger) DelistProperty(_ context.Context, id int64) (*ledger.Receipt, error) {
	s.record("delist")
	s.lastID = id
	if s.delistErr != nil {
		return nil, s.delistErr
	}
	return &ledger.Receipt{}, nil
}

func (s *stubLedger) ListedPropertyID(*ledger.Receipt) (int64, error) {
	if s.noEvent {
		return 0, ledger.ErrNoListingEvent
	}
	if s.nextID == 0 {
		return 1, nil
	}
	return s.nextID, nil
}

func (s *stubLedger) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubCascader struct {
	deleted []uuid.UUID
	err     error
}

func (s *stubCascader) DeletePropertyRooms(_ context.Context, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	return s.err
}

type stubPublisher struct {
	events []events.PropertyEvent
	err    error
}

func (s *stubPublisher) Publish(_ context.Context, ev events.PropertyEvent) error {
	s.events = append(s.events, ev)
	return s.err
}

type fixture struct {
	db     *gorm.DB
	repo   *Repository
	ledger *stubLedger
	rooms  *stubCascader
	events *stubPublisher
	svc    Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	f := &fixture{
		db:     conn,
		repo:   NewRepository(conn),
		ledger: &stubLedger{nextID: 42},
		rooms:  &stubCascader{},
		events: &stubPublisher{},
	}
	svc, err := NewService(ServiceParams{
		Repository: f.repo,
		Ledger:     f.ledger,
		Rooms:      f.rooms,
		Events:     f.events,
		Logger:     logger.Nop(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	return f
}

func baseInput() PropertyInput {
	lat, lng := 48.8566, 2.3522
	area := 54
	pt := enums.PropertyTypeApartment
	return PropertyInput{
		Title:           "Loft near the Seine",
		Country:         "France",
		City:            "Paris",
		Address:         "4 Place de l'Hotel de Ville",
		Latitude:        &lat,
		Longitude:       &lng,
		Description:     "Two bedroom loft",
		AreaSqm:         &area,
		PropertyType:    &pt,
		RentalType:      enums.RentalTypeMonthly,
		RentAmount:      1800,
		SecurityDeposit: 3600,
	}
}

// seedSynced inserts a property already confirmed on the ledger.
func (f *fixture) seedSynced(t *testing.T, ledgerID *int64) *models.Property {
	t.Helper()
	p := &models.Property{
		LedgerID:     ledgerID,
		OwnerID:      owner.OwnerID,
		OwnerAddress: ownerAddress,
		IsActive:     true,
		SyncState:    enums.SyncStateSynced,
		Version:      1,
	}
	baseInput().apply(p)
	if ledgerID == nil {
		p.SyncState = enums.SyncStatePending
	}
	if err := f.db.Create(p).Error; err != nil {
		t.Fatalf("seed property: %v", err)
	}
	return p
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *models.Property {
	t.Helper()
	p, err := f.repo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload property: %v", err)
	}
	return p
}

func (f *fixture) countByTitleAndOwner(t *testing.T, title, address string) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&models.Property{}).Where("title = ? AND owner_address = ?", title, address).Count(&n).Error; err != nil {
		t.Fatalf("count properties: %v", err)
	}
	return n
}

func int64Ptr(v int64) *int64 { return &v }
