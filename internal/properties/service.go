package properties

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/rentchain-properties/internal/events"
	"github.com/angelmondragon/rentchain-properties/pkg/auth"
	"github.com/angelmondragon/rentchain-properties/pkg/db"
	"github.com/angelmondragon/rentchain-properties/pkg/db/models"
	"github.com/angelmondragon/rentchain-properties/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentchain-properties/pkg/errors"
	"github.com/angelmondragon/rentchain-properties/pkg/ledger"
	"github.com/angelmondragon/rentchain-properties/pkg/logger"
)

const rollbackTimeout = 10 * time.Second

type propertyRepository interface {
	Create(ctx context.Context, p *models.Property) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
	Update(ctx context.Context, p *models.Property) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByOwner(ctx context.Context, ownerAddress string, limit, offset int) ([]models.Property, error)
	CountRooms(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error)
}

type ledgerClient interface {
	ListProperty(ctx context.Context, l ledger.Listing) (*ledger.Receipt, error)
	UpdateProperty(ctx context.Context, propertyID int64, l ledger.Listing, isAvailable bool) (*ledger.Receipt, error)
	DelistProperty(ctx context.Context, propertyID int64) (*ledger.Receipt, error)
	ListedPropertyID(r *ledger.Receipt) (int64, error)
}

// roomCascader removes every room of a property together with its images and blobs.
type roomCascader interface {
	DeletePropertyRooms(ctx context.Context, propertyID uuid.UUID) error
}

type eventPublisher interface {
	Publish(ctx context.Context, ev events.PropertyEvent) error
}

// Service coordinates property writes between the relational store and the ledger.
type Service interface {
	Create(ctx context.Context, principal auth.Principal, input PropertyInput) (*PropertyDTO, error)
	Update(ctx context.Context, id uuid.UUID, input PropertyInput, callerAddress string) (*PropertyDTO, error)
	Delist(ctx context.Context, id uuid.UUID, callerAddress string) error
	Get(ctx context.Context, id uuid.UUID) (*PropertyDTO, error)
	ListMine(ctx context.Context, ownerAddress string, limit, offset int) ([]PropertyDTO, error)
	Describe(ctx context.Context, props []models.Property) ([]PropertyDTO, error)
}

// ServiceParams wires the coordinator's collaborators. Events may be nil.
type ServiceParams struct {
	Repository propertyRepository
	Ledger     ledgerClient
	Rooms      roomCascader
	Events     eventPublisher
	Logger     *logger.Logger
}

type service struct {
	repo   propertyRepository
	ledger ledgerClient
	rooms  roomCascader
	events eventPublisher
	logg   *logger.Logger
}

// NewService builds the property coordinator.
func NewService(p ServiceParams) (Service, error) {
	if p.Repository == nil {
		return nil, fmt.Errorf("property repository required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("ledger client required")
	}
	if p.Rooms == nil {
		return nil, fmt.Errorf("room cascader required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	return &service{
		repo:   p.Repository,
		ledger: p.Ledger,
		rooms:  p.Rooms,
		events: p.Events,
		logg:   p.Logger,
	}, nil
}

// Create persists the property, lists it on the ledger and records the assigned ledger id.
// Any ledger failure deletes the freshly inserted row before returning.
func (s *service) Create(ctx context.Context, principal auth.Principal, input PropertyInput) (*PropertyDTO, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	owner := strings.ToLower(strings.TrimSpace(principal.OwnerAddress))
	if owner == "" || strings.TrimSpace(principal.OwnerID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity is incomplete")
	}

	prop := &models.Property{
		OwnerID:      principal.OwnerID,
		OwnerAddress: owner,
		IsActive:     true,
		SyncState:    enums.SyncStatePending,
		Version:      1,
	}
	input.apply(prop)
	prop.IsAvailable = true

	if err := s.repo.Create(ctx, prop); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist property")
	}
	ctx = s.logg.WithPropertyID(ctx, prop.ID.String())
	ctx = s.logg.WithOwnerAddress(ctx, owner)

	receipt, err := s.ledger.ListProperty(ctx, listingFor(prop))
	if err != nil {
		return nil, s.rollbackCreate(ctx, prop.ID, ledger.Classify("listProperty", err))
	}
	ledgerID, err := s.ledger.ListedPropertyID(receipt)
	if err != nil {
		return nil, s.rollbackCreate(ctx, prop.ID, pkgerrors.Wrap(pkgerrors.CodeLedgerSync, err, "listing was not confirmed by a PropertyListed event"))
	}

	ctx = s.logg.WithLedgerID(ctx, ledgerID)
	prop.LedgerID = &ledgerID
	prop.SyncState = enums.SyncStateSynced
	if err := s.repo.Update(ctx, prop); err != nil {
		// The listing exists on the ledger; reconciliation has to pick this up.
		s.logg.Error(ctx, "recording ledger id failed after listing", err)
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "ledger id already recorded for another property")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ledger id")
	}

	s.logg.Info(ctx, "property listed")
	s.publish(ctx, events.PropertyListed, prop)
	return FromModel(prop, 0), nil
}

// rollbackCreate deletes the row inserted by Create. A failed delete is logged and the
// ledger error is still returned.
func (s *service) rollbackCreate(ctx context.Context, id uuid.UUID, cause error) error {
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if err := s.repo.Delete(rbCtx, id); err != nil {
		s.logg.Error(ctx, "create rollback failed; pending row left for reconciliation", err)
	} else {
		s.logg.Warn(ctx, "create rolled back after ledger failure")
	}
	return cause
}

// Update sends the new mirrored fields to the ledger first and only then writes the row.
func (s *service) Update(ctx context.Context, id uuid.UUID, input PropertyInput, callerAddress string) (*PropertyDTO, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	current, err := s.loadOwned(ctx, id, callerAddress)
	if err != nil {
		return nil, err
	}
	if input.Version != nil && *input.Version != current.Version {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "property version is stale").
			WithDetails(map[string]any{"currentVersion": current.Version})
	}
	if current.LedgerID == nil {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "property is not confirmed on the ledger yet")
	}
	ctx = s.logg.WithPropertyID(ctx, current.ID.String())
	ctx = s.logg.WithLedgerID(ctx, *current.LedgerID)

	next := *current
	input.apply(&next)
	if _, err := s.ledger.UpdateProperty(ctx, *current.LedgerID, listingFor(&next), next.IsAvailable); err != nil {
		return nil, ledger.Classify("updateProperty", err)
	}

	next.SyncState = enums.SyncStateSynced
	if err := s.repo.Update(ctx, &next); err != nil {
		return nil, s.writeAfterLedgerError(ctx, "update", err)
	}

	s.logg.Info(ctx, "property updated")
	s.publish(ctx, events.PropertyUpdated, &next)
	return s.withRoomCount(ctx, &next)
}

// Delist soft-deletes a confirmed listing after the ledger accepts it. A property that never
// reached the ledger is removed locally together with its rooms.
func (s *service) Delist(ctx context.Context, id uuid.UUID, callerAddress string) error {
	current, err := s.loadOwned(ctx, id, callerAddress)
	if err != nil {
		return err
	}
	ctx = s.logg.WithPropertyID(ctx, current.ID.String())

	if current.LedgerID == nil {
		if err := s.rooms.DeletePropertyRooms(ctx, current.ID); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, current.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete unconfirmed property")
		}
		s.logg.Info(ctx, "unconfirmed property deleted")
		return nil
	}

	ctx = s.logg.WithLedgerID(ctx, *current.LedgerID)
	if _, err := s.ledger.DelistProperty(ctx, *current.LedgerID); err != nil {
		return ledger.Classify("delistProperty", err)
	}

	current.IsActive = false
	current.IsAvailable = false
	if err := s.repo.Update(ctx, current); err != nil {
		return s.writeAfterLedgerError(ctx, "delist", err)
	}

	s.logg.Info(ctx, "property delisted")
	s.publish(ctx, events.PropertyDelisted, current)
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*PropertyDTO, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withRoomCount(ctx, p)
}

func (s *service) ListMine(ctx context.Context, ownerAddress string, limit, offset int) ([]PropertyDTO, error) {
	props, err := s.repo.ListByOwner(ctx, ownerAddress, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list properties")
	}
	return s.Describe(ctx, props)
}

// Describe converts rows loaded elsewhere (search results) into DTOs with room counts.
func (s *service) Describe(ctx context.Context, props []models.Property) ([]PropertyDTO, error) {
	ids := make([]uuid.UUID, 0, len(props))
	for _, p := range props {
		ids = append(ids, p.ID)
	}
	counts, err := s.repo.CountRooms(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count rooms")
	}
	out := make([]PropertyDTO, 0, len(props))
	for i := range props {
		out = append(out, *FromModel(&props[i], counts[props[i].ID]))
	}
	return out, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "property not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load property")
	}
	return p, nil
}

// loadOwned loads the property and rejects callers whose address differs from the owner's.
func (s *service) loadOwned(ctx context.Context, id uuid.UUID, callerAddress string) (*models.Property, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !IsOwner(p, callerAddress) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "caller does not own this property")
	}
	return p, nil
}

// IsOwner compares addresses case-insensitively.
func IsOwner(p *models.Property, callerAddress string) bool {
	caller := strings.TrimSpace(callerAddress)
	return p != nil && caller != "" && strings.EqualFold(p.OwnerAddress, caller)
}

// writeAfterLedgerError maps a failed local write that follows a successful ledger call. The
// ledger already holds the new values, so the drift is logged for reconciliation.
func (s *service) writeAfterLedgerError(ctx context.Context, op string, err error) error {
	s.logg.Error(ctx, op+" applied on ledger but local write failed", err)
	if errors.Is(err, ErrStaleVersion) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "property was modified concurrently")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op+" property")
}

func (s *service) withRoomCount(ctx context.Context, p *models.Property) (*PropertyDTO, error) {
	counts, err := s.repo.CountRooms(ctx, []uuid.UUID{p.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count rooms")
	}
	return FromModel(p, counts[p.ID]), nil
}

// publish sends a lifecycle event; failures are logged and never fail the request.
func (s *service) publish(ctx context.Context, typ events.Type, p *models.Property) {
	if s.events == nil {
		return
	}
	ev := events.PropertyEvent{
		Type:            typ,
		PropertyID:      p.ID,
		LedgerID:        p.LedgerID,
		OwnerAddress:    p.OwnerAddress,
		RentAmount:      p.RentAmount,
		SecurityDeposit: p.SecurityDeposit,
		IsAvailable:     p.IsAvailable,
		IsActive:        p.IsActive,
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logg.WarnErr(ctx, "property event not published", err)
	}
}
