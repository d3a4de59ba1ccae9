package properties

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/rentchain-properties/pkg/db"
	"github.com/angelmondragon/rentchain-properties/pkg/db/models"
	"github.com/angelmondragon/rentchain-properties/pkg/enums"
)

func TestRepositoryUpdateIsVersionGuarded(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seedSynced(t, int64Ptr(1))

	first := f.reload(t, seeded.ID)
	second := f.reload(t, seeded.ID)

	first.RentAmount = 999
	if err := f.repo.Update(ctx, first); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if first.Version != 2 {
		t.Fatalf("expected version 2, got %d", first.Version)
	}

	second.RentAmount = 111
	if err := f.repo.Update(ctx, second); !errors.Is(err, ErrStaleVersion) {
		t.Fatalf("expected stale version, got %v", err)
	}
	if second.Version != 1 {
		t.Fatalf("failed update must not advance the in-memory version, got %d", second.Version)
	}
	if stored := f.reload(t, seeded.ID); stored.RentAmount != 999 {
		t.Fatalf("stale write overwrote row: rent=%d", stored.RentAmount)
	}
}

func TestRepositoryUpdateWritesFalseAndClearsCoordinates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.reload(t, f.seedSynced(t, int64Ptr(2)).ID)

	p.IsActive = false
	p.IsAvailable = false
	p.Latitude = nil
	p.Longitude = nil
	if err := f.repo.Update(context.Background(), p); err != nil {
		t.Fatalf("update: %v", err)
	}
	stored := f.reload(t, p.ID)
	if stored.IsActive || stored.IsAvailable {
		t.Fatalf("expected flags cleared, got %+v", stored)
	}
	if stored.Latitude != nil || stored.Geohash != nil {
		t.Fatalf("expected coordinates and geohash cleared, got %v %v", stored.Latitude, stored.Geohash)
	}
}

func TestRepositoryLedgerIDUnique(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seedSynced(t, int64Ptr(77))

	dup := &models.Property{LedgerID: int64Ptr(77), OwnerID: "o", OwnerAddress: ownerAddress, SyncState: enums.SyncStateSynced}
	baseInput().apply(dup)
	err := f.repo.Create(context.Background(), dup)
	if !db.IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestRepositoryReconcileQueries(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	a := f.seedSynced(t, int64Ptr(3))
	b := f.seedSynced(t, int64Ptr(5))
	stale := f.seedSynced(t, nil)
	fresh := f.seedSynced(t, nil)
	if err := f.db.Model(&models.Property{}).Where("id = ?", stale.ID).
		Update("created_at", time.Now().Add(-2*time.Hour)).Error; err != nil {
		t.Fatalf("age pending row: %v", err)
	}

	batch, err := f.repo.ListSynced(ctx, 0, 1)
	if err != nil {
		t.Fatalf("list synced: %v", err)
	}
	if len(batch) != 1 || batch[0].ID != a.ID {
		t.Fatalf("expected first batch to hold ledger id 3, got %+v", batch)
	}
	batch, err = f.repo.ListSynced(ctx, *batch[0].LedgerID, 10)
	if err != nil {
		t.Fatalf("list synced: %v", err)
	}
	if len(batch) != 1 || batch[0].ID != b.ID {
		t.Fatalf("expected second batch to hold ledger id 5, got %+v", batch)
	}

	if err := f.repo.MarkSyncFailed(ctx, b.ID); err != nil {
		t.Fatalf("mark sync failed: %v", err)
	}
	if got := f.reload(t, b.ID); got.SyncState != enums.SyncStateFailed || got.Version != b.Version+1 {
		t.Fatalf("unexpected state after drift: %+v", got)
	}

	purged, err := f.repo.DeleteStalePending(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("delete stale pending: %v", err)
	}
	if len(purged) != 1 || purged[0] != stale.ID {
		t.Fatalf("expected only the stale pending row purged, got %v", purged)
	}
	if _, err := f.repo.FindByID(ctx, fresh.ID); err != nil {
		t.Fatalf("fresh pending row must survive: %v", err)
	}
}
