package properties

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/rentchain-properties/pkg/db/models"
	"github.com/angelmondragon/rentchain-properties/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentchain-properties/pkg/errors"
	"github.com/angelmondragon/rentchain-properties/pkg/ledger"
)

// PropertyInput is the command accepted by Create and Update.
type PropertyInput struct {
	Title           string              `json:"title" validate:"required,max=200"`
	Country         string              `json:"country" validate:"required,max=100"`
	City            string              `json:"city" validate:"required,max=100"`
	Address         string              `json:"address" validate:"required,max=255"`
	Latitude        *float64            `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude       *float64            `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	Description     string              `json:"description" validate:"required,max=5000"`
	AreaSqm         *int                `json:"areaSqm,omitempty" validate:"omitempty,gt=0"`
	PropertyType    *enums.PropertyType `json:"propertyType,omitempty"`
	RentalType      enums.RentalType    `json:"rentalType" validate:"required"`
	RentAmount      int64               `json:"rentAmount" validate:"gte=0"`
	SecurityDeposit int64               `json:"securityDeposit" validate:"gte=0"`
	IsAvailable     *bool               `json:"isAvailable,omitempty"`
	// Version, when set on update, must match the stored row.
	Version *int `json:"version,omitempty"`
}

// Validate checks the rules struct tags cannot express.
func (in PropertyInput) Validate() error {
	details := map[string]string{}
	if !in.RentalType.IsValid() {
		details["rentalType"] = "is invalid"
	}
	if in.PropertyType != nil && !in.PropertyType.IsValid() {
		details["propertyType"] = "is invalid"
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		details["latitude"] = "latitude and longitude must be given together"
	}
	if in.RentAmount < 0 {
		details["rentAmount"] = "must not be negative"
	}
	if in.SecurityDeposit < 0 {
		details["securityDeposit"] = "must not be negative"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return nil
}

// apply overwrites the descriptive and commercial fields of p. Availability changes only
// when the input carries it.
func (in PropertyInput) apply(p *models.Property) {
	p.Title = strings.TrimSpace(in.Title)
	p.Country = strings.TrimSpace(in.Country)
	p.City = strings.TrimSpace(in.City)
	p.Address = strings.TrimSpace(in.Address)
	p.Latitude = in.Latitude
	p.Longitude = in.Longitude
	p.Description = in.Description
	p.AreaSqm = in.AreaSqm
	if in.PropertyType != nil {
		p.PropertyType = *in.PropertyType
	} else {
		p.PropertyType = ""
	}
	p.RentalType = in.RentalType
	p.RentAmount = in.RentAmount
	p.SecurityDeposit = in.SecurityDeposit
	if in.IsAvailable != nil {
		p.IsAvailable = *in.IsAvailable
	}
}

// listingFor is the mirrored subset sent to the ledger.
func listingFor(p *models.Property) ledger.Listing {
	return ledger.Listing{
		PropertyAddress: p.FullAddress(),
		Description:     p.Description,
		RentPerMonth:    p.RentAmount,
		SecurityDeposit: p.SecurityDeposit,
	}
}

// PropertyDTO exposes a property in API responses.
type PropertyDTO struct {
	ID              uuid.UUID           `json:"id"`
	LedgerID        *int64              `json:"ledgerId"`
	Title           string              `json:"title"`
	Country         string              `json:"country"`
	City            string              `json:"city"`
	Address         string              `json:"address"`
	FullAddress     string              `json:"fullAddress"`
	Latitude        *float64            `json:"latitude,omitempty"`
	Longitude       *float64            `json:"longitude,omitempty"`
	Description     string              `json:"description"`
	AreaSqm         *int                `json:"areaSqm,omitempty"`
	PropertyType    *enums.PropertyType `json:"propertyType,omitempty"`
	RentalType      enums.RentalType    `json:"rentalType"`
	RentAmount      int64               `json:"rentAmount"`
	SecurityDeposit int64               `json:"securityDeposit"`
	IsActive        bool                `json:"isActive"`
	IsAvailable     bool                `json:"isAvailable"`
	OwnerID         string              `json:"ownerId"`
	OwnerAddress    string              `json:"ownerAddress"`
	SyncState       enums.SyncState     `json:"syncState"`
	Version         int                 `json:"version"`
	TotalRooms      int                 `json:"totalRooms"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// FromModel maps the persisted property into a DTO.
func FromModel(m *models.Property, totalRooms int) *PropertyDTO {
	if m == nil {
		return nil
	}
	dto := &PropertyDTO{
		ID:              m.ID,
		LedgerID:        m.LedgerID,
		Title:           m.Title,
		Country:         m.Country,
		City:            m.City,
		Address:         m.Address,
		FullAddress:     m.FullAddress(),
		Latitude:        m.Latitude,
		Longitude:       m.Longitude,
		Description:     m.Description,
		AreaSqm:         m.AreaSqm,
		RentalType:      m.RentalType,
		RentAmount:      m.RentAmount,
		SecurityDeposit: m.SecurityDeposit,
		IsActive:        m.IsActive,
		IsAvailable:     m.IsAvailable,
		OwnerID:         m.OwnerID,
		OwnerAddress:    m.OwnerAddress,
		SyncState:       m.SyncState,
		Version:         m.Version,
		TotalRooms:      totalRooms,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.PropertyType != "" {
		pt := m.PropertyType
		dto.PropertyType = &pt
	}
	return dto
}
