package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mmcloughlin/geohash"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentchain-properties/pkg/enums"
)

// Property is the local record of a rental listing. Rent, deposit and availability are
// mirrored on the ledger once LedgerID is set.
type Property struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	LedgerID        *int64             `gorm:"column:ledger_id;uniqueIndex"`
	Title           string             `gorm:"column:title;not null"`
	Country         string             `gorm:"column:country;not null"`
	City            string             `gorm:"column:city;not null;index"`
	Address         string             `gorm:"column:address;not null"`
	Latitude        *float64           `gorm:"column:latitude"`
	Longitude       *float64           `gorm:"column:longitude"`
	Geohash         *string            `gorm:"column:geohash;type:varchar(12);index"`
	Description     string             `gorm:"column:description;not null"`
	AreaSqm         *int               `gorm:"column:area_sqm"`
	PropertyType    enums.PropertyType `gorm:"column:property_type;type:varchar(32)"`
	RentalType      enums.RentalType   `gorm:"column:rental_type;type:varchar(32);not null"`
	RentAmount      int64              `gorm:"column:rent_amount;not null"`
	SecurityDeposit int64              `gorm:"column:security_deposit;not null"`
	IsActive        bool               `gorm:"column:is_active;not null;default:true"`
	IsAvailable     bool               `gorm:"column:is_available;not null;default:true"`
	OwnerID         string             `gorm:"column:owner_id;not null;index"`
	OwnerAddress    string             `gorm:"column:owner_address;type:varchar(42);not null;index"`
	SyncState       enums.SyncState    `gorm:"column:sync_state;type:varchar(16);not null;default:pending"`
	Version         int                `gorm:"column:version;not null;default:1"`
	Rooms           []Room             `gorm:"foreignKey:PropertyID"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// GeohashPrecision is the length of the geohash persisted with each located property.
const GeohashPrecision = 9

func (Property) TableName() string { return "properties" }

// BeforeSave keeps the geohash column in step with the coordinates.
func (p *Property) BeforeSave(*gorm.DB) error {
	p.RefreshGeohash()
	return nil
}

// RefreshGeohash recomputes Geohash from Latitude/Longitude, clearing it when either is unset.
func (p *Property) RefreshGeohash() {
	if p.Latitude == nil || p.Longitude == nil {
		p.Geohash = nil
		return
	}
	h := geohash.EncodeWithPrecision(*p.Latitude, *p.Longitude, GeohashPrecision)
	p.Geohash = &h
}

// BeforeCreate assigns the local identifier when the caller did not.
func (p *Property) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// FullAddress is the address string mirrored on the ledger.
func (p *Property) FullAddress() string {
	return p.Country + ", " + p.City + ", " + p.Address
}
