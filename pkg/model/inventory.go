package model

import "time"

type ItemType string

const (
	ItemProduct  ItemType = "product"
	ItemMaterial ItemType = "material"
)

type Item struct {
	ID                  string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Type                ItemType  `gorm:"type:varchar(20);not null" json:"type"`
	BrandID             *uint     `json:"brand_id,omitempty"`
	Name                string    `gorm:"size:255;not null" json:"name"`
	DeliveredQuantity   int       `gorm:"not null;default:0" json:"delivered_quantity"`
	DamagedQuantity     int       `gorm:"not null;default:0" json:"damaged_quantity"`
	LostQuantity        int       `gorm:"not null;default:0" json:"lost_quantity"`
	AvailableQuantity   int       `gorm:"not null;default:0" json:"available_quantity"`
	WarehouseLocationID *uint     `json:"warehouse_location_id,omitempty"`
	Status              string    `gorm:"size:50" json:"status,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// ExpectedAvailable is the available quantity implied by the stock counters
// and the outstanding allocations against this item.
func (i *Item) ExpectedAvailable(outstanding int) int {
	return i.DeliveredQuantity - i.DamagedQuantity - i.LostQuantity - outstanding
}

type Location struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:255;not null" json:"name"`
	Address  string `gorm:"size:500" json:"address,omitempty"`
	IsActive bool   `gorm:"not null;default:true" json:"is_active"`
}
