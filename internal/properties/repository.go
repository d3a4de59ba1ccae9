package properties

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentchain-properties/pkg/db/models"
	"github.com/angelmondragon/rentchain-properties/pkg/enums"
)

// ErrStaleVersion is returned when a versioned write matched no row.
var ErrStaleVersion = errors.New("property was modified concurrently")

var updatableColumns = []string{
	"ledger_id", "title", "country", "city", "address", "latitude", "longitude", "geohash",
	"description", "area_sqm", "property_type", "rental_type", "rent_amount", "security_deposit",
	"is_active", "is_available", "sync_state", "version", "updated_at",
}

// Repository handles property persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to property operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new property row and fills in its identifier.
func (r *Repository) Create(ctx context.Context, p *models.Property) error {
	if p == nil {
		return fmt.Errorf("property is required")
	}
	return r.db.WithContext(ctx).Create(p).Error
}

// FindByID loads a property by its local identifier.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	var p models.Property
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Update writes every mutable column when the stored version still equals p.Version, then
// advances p.Version. A concurrent writer makes it fail with ErrStaleVersion.
func (r *Repository) Update(ctx context.Context, p *models.Property) error {
	if p == nil {
		return fmt.Errorf("property is required")
	}
	expected := p.Version
	p.Version = expected + 1
	p.UpdatedAt = time.Now().UTC()
	p.RefreshGeohash()

	res := r.db.WithContext(ctx).
		Model(&models.Property{}).
		Where("id = ? AND version = ?", p.ID, expected).
		Select(updatableColumns).
		Updates(p)
	if res.Error != nil {
		p.Version = expected
		return res.Error
	}
	if res.RowsAffected == 0 {
		p.Version = expected
		return ErrStaleVersion
	}
	return nil
}

// Delete hard-deletes the property row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Property{}).Error
}

// ListByOwner returns the caller's properties, newest first, including delisted ones.
func (r *Repository) ListByOwner(ctx context.Context, ownerAddress string, limit, offset int) ([]models.Property, error) {
	var out []models.Property
	q := r.db.WithContext(ctx).
		Where("owner_address = ?", strings.ToLower(ownerAddress)).
		Order("created_at DESC").Order("id")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CountRooms returns the number of rooms per property for the given ids.
func (r *Repository) CountRooms(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}
	var rows []struct {
		PropertyID uuid.UUID
		Total      int
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Room{}).
		Select("property_id, COUNT(*) AS total").
		Where("property_id IN ?", ids).
		Group("property_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.PropertyID] = row.Total
	}
	return counts, nil
}

// ListSynced pages through synced properties ordered by ledger id, starting after afterLedgerID.
func (r *Repository) ListSynced(ctx context.Context, afterLedgerID int64, limit int) ([]models.Property, error) {
	var out []models.Property
	if err := r.db.WithContext(ctx).
		Where("sync_state = ? AND ledger_id > ?", enums.SyncStateSynced, afterLedgerID).
		Order("ledger_id").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MarkSyncFailed flags a property whose ledger mirror has drifted. The version is bumped so
// in-flight updates based on the old row fail.
func (r *Repository) MarkSyncFailed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Property{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"sync_state": enums.SyncStateFailed,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		}).Error
}

// DeleteStalePending removes rows stuck in pending since before cutoff. They belong to
// creates that never reached the ledger-confirmation step.
func (r *Repository) DeleteStalePending(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Property{}).
		Where("sync_state = ? AND ledger_id IS NULL AND created_at < ?", enums.SyncStatePending, cutoff).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Property{}).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
