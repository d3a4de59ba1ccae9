package properties

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/rentchain-properties/internal/events"
	"github.com/angelmondragon/rentchain-properties/pkg/auth"
	"github.com/angelmondragon/rentchain-properties/pkg/db/models"
	"github.com/angelmondragon/rentchain-properties/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentchain-properties/pkg/errors"
	"github.com/angelmondragon/rentchain-properties/pkg/logger"
)

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	if _, err := NewService(ServiceParams{Ledger: &stubLedger{}, Rooms: &stubCascader{}}); err == nil {
		t.Fatal("expected error without repository")
	}
	if _, err := NewService(ServiceParams{Repository: &Repository{}, Rooms: &stubCascader{}}); err == nil {
		t.Fatal("expected error without ledger")
	}
	if _, err := NewService(ServiceParams{Repository: &Repository{}, Ledger: &stubLedger{}}); err == nil {
		t.Fatal("expected error without rooms")
	}
}

func TestCreateListsAndRecordsLedgerID(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	dto, err := f.svc.Create(context.Background(), owner, baseInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if dto.LedgerID == nil || *dto.LedgerID != 42 {
		t.Fatalf("expected ledger id 42, got %v", dto.LedgerID)
	}
	if dto.OwnerAddress != ownerAddress {
		t.Fatalf("expected lowercased owner, got %s", dto.OwnerAddress)
	}
	if f.ledger.lastListing.PropertyAddress != "France, Paris, 4 Place de l'Hotel de Ville" {
		t.Fatalf("unexpected ledger address %q", f.ledger.lastListing.PropertyAddress)
	}
	if f.ledger.lastListing.RentPerMonth != 1800 || f.ledger.lastListing.SecurityDeposit != 3600 {
		t.Fatalf("unexpected mirrored amounts %+v", f.ledger.lastListing)
	}

	stored := f.reload(t, dto.ID)
	if stored.LedgerID == nil || *stored.LedgerID != 42 {
		t.Fatalf("ledger id not persisted")
	}
	if stored.SyncState != enums.SyncStateSynced || !stored.IsActive || !stored.IsAvailable {
		t.Fatalf("unexpected stored state %+v", stored)
	}
	if stored.Geohash == nil || len(*stored.Geohash) != models.GeohashPrecision {
		t.Fatalf("expected geohash for Paris, got %v", stored.Geohash)
	}
	if len(f.events.events) != 1 || f.events.events[0].Type != events.PropertyListed {
		t.Fatalf("expected listed event, got %+v", f.events.events)
	}
}

func TestCreateLedgerFailureLeavesNoRow(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		listErr error
		noEvent bool
		code    pkgerrors.Code
	}{
		{name: "transport error", listErr: errors.New("dial tcp 10.0.0.5:8545: connection refused"), code: pkgerrors.CodeLedgerSync},
		{name: "no listing event", noEvent: true, code: pkgerrors.CodeLedgerSync},
		{name: "deadline", listErr: context.DeadlineExceeded, code: pkgerrors.CodeLedgerTimeout},
		{name: "reverted", listErr: pkgerrors.New(pkgerrors.CodeLedgerSync, "listProperty reverted"), code: pkgerrors.CodeLedgerSync},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.ledger.listErr = tc.listErr
			f.ledger.noEvent = tc.noEvent

			_, err := f.svc.Create(context.Background(), owner, baseInput())
			requireCode(t, err, tc.code)
			if tc.listErr != nil && !errors.Is(err, tc.listErr) && pkgerrors.As(tc.listErr) == nil {
				t.Fatalf("expected cause to be preserved, got %v", err)
			}
			if n := f.countByTitleAndOwner(t, baseInput().Title, ownerAddress); n != 0 {
				t.Fatalf("expected rollback to leave zero rows, found %d", n)
			}
			if len(f.events.events) != 0 {
				t.Fatalf("no event expected on failure")
			}
		})
	}
}

type failingDeleteRepo struct {
	*Repository
}

func (r failingDeleteRepo) Delete(context.Context, uuid.UUID) error {
	return errors.New("connection reset")
}

func TestCreateRollbackFailureKeepsLedgerError(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	buf := &bytes.Buffer{}
	ledgerErr := errors.New("nonce too low")
	f.ledger.listErr = ledgerErr

	svc, err := NewService(ServiceParams{
		Repository: failingDeleteRepo{f.repo},
		Ledger:     f.ledger,
		Rooms:      f.rooms,
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: buf, Format: "json"}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Create(context.Background(), owner, baseInput())
	requireCode(t, err, pkgerrors.CodeLedgerSync)
	if !errors.Is(err, ledgerErr) {
		t.Fatalf("rollback failure must not mask the ledger error, got %v", err)
	}
	if !strings.Contains(buf.String(), "create rollback failed") {
		t.Fatalf("expected rollback failure to be logged; log=%s", buf.String())
	}
}

func TestCreateValidatesInputAndIdentity(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	bad := baseInput()
	bad.RentalType = "weekly"
	_, err := f.svc.Create(context.Background(), owner, bad)
	requireCode(t, err, pkgerrors.CodeValidation)

	half := baseInput()
	half.Longitude = nil
	_, err = f.svc.Create(context.Background(), owner, half)
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.Create(context.Background(), auth.Principal{OwnerID: owner.OwnerID}, baseInput())
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	if f.ledger.callCount() != 0 {
		t.Fatalf("ledger must not be called for rejected input")
	}
}

func TestUpdateCallsLedgerBeforeWriting(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	seeded := f.seedSynced(t, int64Ptr(7))

	in := baseInput()
	in.RentAmount = 2100
	in.SecurityDeposit = 4200
	unavailable := false
	in.IsAvailable = &unavailable
	in.City = "Lyon"

	_, err := f.svc.Update(context.Background(), seeded.ID, in, ownerAddress[2:])
	requireCode(t, err, pkgerrors.CodeForbidden)

	// caller address differs only in case
	dto, err := f.svc.Update(context.Background(), seeded.ID, in, "0x"+strings.ToUpper(ownerAddress[2:]))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if f.ledger.lastID != 7 || f.ledger.lastListing.RentPerMonth != 2100 || f.ledger.lastAvail {
		t.Fatalf("unexpected ledger call id=%d listing=%+v avail=%v", f.ledger.lastID, f.ledger.lastListing, f.ledger.lastAvail)
	}
	if f.ledger.lastListing.PropertyAddress != "France, Lyon, 4 Place de l'Hotel de Ville" {
		t.Fatalf("expected new address on ledger, got %q", f.ledger.lastListing.PropertyAddress)
	}

	stored := f.reload(t, seeded.ID)
	if stored.RentAmount != 2100 || stored.SecurityDeposit != 4200 || stored.IsAvailable || stored.City != "Lyon" {
		t.Fatalf("row not updated: %+v", stored)
	}
	if stored.Version != seeded.Version+1 || dto.Version != stored.Version {
		t.Fatalf("expected version bump, got %d (dto %d)", stored.Version, dto.Version)
	}
}

func TestUpdateWithoutAvailabilityKeepsFlag(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	seeded := f.seedSynced(t, int64Ptr(11))
	if err := f.db.Model(&models.Property{}).Where("id = ?", seeded.ID).Update("is_available", false).Error; err != nil {
		t.Fatalf("mark unavailable: %v", err)
	}

	in := baseInput()
	in.RentAmount = 1900
	dto, err := f.svc.Update(context.Background(), seeded.ID, in, ownerAddress)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if f.ledger.lastAvail {
		t.Fatal("ledger was told the listing is available")
	}
	stored := f.reload(t, seeded.ID)
	if stored.IsAvailable || dto.IsAvailable {
		t.Fatalf("availability flipped: stored=%v dto=%v", stored.IsAvailable, dto.IsAvailable)
	}
	if stored.RentAmount != 1900 {
		t.Fatalf("rent not updated: %d", stored.RentAmount)
	}
}

func TestUpdateLedgerFailureLeavesRowUntouched(t *testing.T) {
	t.Parallel()
	for _, ledgerErr := range []error{errors.New("execution reverted"), context.DeadlineExceeded} {
		f := newFixture(t)
		seeded := f.seedSynced(t, int64Ptr(9))
		before := f.reload(t, seeded.ID)
		f.ledger.updateErr = ledgerErr

		in := baseInput()
		in.RentAmount = 1
		_, err := f.svc.Update(context.Background(), seeded.ID, in, ownerAddress)
		if err == nil {
			t.Fatal("expected ledger error")
		}
		code := pkgerrors.As(err).Code()
		if code != pkgerrors.CodeLedgerSync && code != pkgerrors.CodeLedgerTimeout {
			t.Fatalf("unexpected code %s", code)
		}

		after := f.reload(t, seeded.ID)
		if after.RentAmount != before.RentAmount || after.SecurityDeposit != before.SecurityDeposit ||
			after.IsAvailable != before.IsAvailable || after.Version != before.Version {
			t.Fatalf("row changed after ledger failure: before=%+v after=%+v", before, after)
		}
	}
}

func TestForeignCallerNeverMutates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	seeded := f.seedSynced(t, int64Ptr(3))
	intruder := "0x1111111111111111111111111111111111111111"

	_, err := f.svc.Update(context.Background(), seeded.ID, baseInput(), intruder)
	requireCode(t, err, pkgerrors.CodeForbidden)
	requireCode(t, f.svc.Delist(context.Background(), seeded.ID, intruder), pkgerrors.CodeForbidden)
	requireCode(t, f.svc.Delist(context.Background(), seeded.ID, ""), pkgerrors.CodeForbidden)

	if f.ledger.callCount() != 0 {
		t.Fatalf("ledger called for foreign caller: %v", f.ledger.calls)
	}
	if stored := f.reload(t, seeded.ID); stored.Version != seeded.Version || !stored.IsActive {
		t.Fatalf("row mutated by foreign caller: %+v", stored)
	}
}

func TestUpdatePreconditions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Update(context.Background(), uuid.New(), baseInput(), ownerAddress)
	requireCode(t, err, pkgerrors.CodeNotFound)

	unconfirmed := f.seedSynced(t, nil)
	_, err = f.svc.Update(context.Background(), unconfirmed.ID, baseInput(), ownerAddress)
	requireCode(t, err, pkgerrors.CodePrecondition)

	synced := f.seedSynced(t, int64Ptr(11))
	stale := baseInput()
	old := synced.Version - 1
	stale.Version = &old
	_, err = f.svc.Update(context.Background(), synced.ID, stale, ownerAddress)
	requireCode(t, err, pkgerrors.CodeConflict)

	if f.ledger.callCount() != 0 {
		t.Fatalf("ledger must not be called: %v", f.ledger.calls)
	}
}

type racingRepo struct {
	*Repository
	bump func() error
}

func (r racingRepo) Update(ctx context.Context, p *models.Property) error {
	if err := r.bump(); err != nil {
		return err
	}
	return r.Repository.Update(ctx, p)
}

func TestUpdateConcurrentWriteIsConflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	seeded := f.seedSynced(t, int64Ptr(5))

	// another request bumps the version while the ledger call is in flight
	svc, err := NewService(ServiceParams{
		Repository: racingRepo{Repository: f.repo, bump: func() error {
			return f.db.Model(&models.Property{}).Where("id = ?", seeded.ID).Update("version", seeded.Version+1).Error
		}},
		Ledger: f.ledger,
		Rooms:  f.rooms,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Update(context.Background(), seeded.ID, baseInput(), ownerAddress)
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestDelistSoftDeletesConfirmedListing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	seeded := f.seedSynced(t, int64Ptr(21))

	if err := f.svc.Delist(context.Background(), seeded.ID, ownerAddress); err != nil {
		t.Fatalf("delist: %v", err)
	}
	if f.ledger.lastID != 21 {
		t.Fatalf("expected delist of ledger id 21, got %d", f.ledger.lastID)
	}
	stored := f.reload(t, seeded.ID)
	if stored.IsActive || stored.IsAvailable {
		t.Fatalf("expected soft delete, got %+v", stored)
	}
	if len(f.rooms.deleted) != 0 {
		t.Fatalf("rooms must survive a soft delete")
	}
	if len(f.events.events) != 1 || f.events.events[0].Type != events.PropertyDelisted {
		t.Fatalf("expected delisted event, got %+v", f.events.events)
	}
}

func TestDelistUnconfirmedDeletesRowWithoutLedger(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	seeded := f.seedSynced(t, nil)

	if err := f.svc.Delist(context.Background(), seeded.ID, ownerAddress); err != nil {
		t.Fatalf("delist: %v", err)
	}
	if f.ledger.callCount() != 0 {
		t.Fatalf("no ledger call expected, got %v", f.ledger.calls)
	}
	if len(f.rooms.deleted) != 1 || f.rooms.deleted[0] != seeded.ID {
		t.Fatalf("expected rooms cascade for %s, got %v", seeded.ID, f.rooms.deleted)
	}
	if _, err := f.repo.FindByID(context.Background(), seeded.ID); err == nil {
		t.Fatal("expected row to be deleted")
	}
}

func TestDelistLedgerFailureKeepsRowActive(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	seeded := f.seedSynced(t, int64Ptr(8))
	f.ledger.delistErr = errors.New("insufficient funds for gas")

	requireCode(t, f.svc.Delist(context.Background(), seeded.ID, ownerAddress), pkgerrors.CodeLedgerSync)
	if stored := f.reload(t, seeded.ID); !stored.IsActive || !stored.IsAvailable {
		t.Fatalf("row must stay active, got %+v", stored)
	}
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.events.err = errors.New("topic not found")

	if _, err := f.svc.Create(context.Background(), owner, baseInput()); err != nil {
		t.Fatalf("create must succeed when the event cannot be published: %v", err)
	}
}

func TestGetAndListMineReportRooms(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	seeded := f.seedSynced(t, int64Ptr(4))
	other := f.seedSynced(t, int64Ptr(6))
	for i := 0; i < 2; i++ {
		if err := f.db.Create(&models.Room{PropertyID: seeded.ID, Name: "room", OrderIndex: i}).Error; err != nil {
			t.Fatalf("seed room: %v", err)
		}
	}

	dto, err := f.svc.Get(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if dto.TotalRooms != 2 {
		t.Fatalf("expected 2 rooms, got %d", dto.TotalRooms)
	}

	mine, err := f.svc.ListMine(context.Background(), strings.ToUpper(ownerAddress), 10, 0)
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 properties, got %d", len(mine))
	}
	for _, p := range mine {
		if p.ID == other.ID && p.TotalRooms != 0 {
			t.Fatalf("expected no rooms on %s", other.ID)
		}
	}

	_, err = f.svc.Get(context.Background(), uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}
