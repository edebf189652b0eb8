package model

import (
	"time"
)

type ProjectStatus string

const (
	ProjectUpcoming  ProjectStatus = "upcoming"
	ProjectOngoing   ProjectStatus = "ongoing"
	ProjectCompleted ProjectStatus = "completed"
	ProjectCancelled ProjectStatus = "cancelled"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectUpcoming, ProjectOngoing, ProjectCompleted, ProjectCancelled:
		return true
	default:
		return false
	}
}

type Project struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	JONumber  string        `gorm:"column:jo_number;size:100;uniqueIndex;not null" json:"jo_number"`
	Name      string        `gorm:"size:255;not null" json:"name"`
	Status    ProjectStatus `gorm:"type:varchar(20);not null;default:'upcoming';index" json:"status"`
	CreatedBy *uint         `json:"created_by,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

const DateLayout = "2006-01-02"

type ProjectDay struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProjectID   uint      `gorm:"not null;uniqueIndex:idx_project_day_date" json:"project_id"`
	ProjectDate time.Time `gorm:"type:date;not null;uniqueIndex:idx_project_day_date" json:"project_date"`
	LocationID  *uint     `json:"location_id,omitempty"`
	Location    *Location `gorm:"foreignKey:LocationID" json:"location,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (d *ProjectDay) DateKey() string {
	return d.ProjectDate.Format(DateLayout)
}

type ProjectItemStatus string

const (
	ProjectItemAllocated ProjectItemStatus = "allocated"
	ProjectItemDeployed  ProjectItemStatus = "deployed"
	ProjectItemReturned  ProjectItemStatus = "returned"
)

func (s ProjectItemStatus) Valid() bool {
	switch s {
	case ProjectItemAllocated, ProjectItemDeployed, ProjectItemReturned:
		return true
	default:
		return false
	}
}

type ProjectItem struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	ProjectDayID      uint              `gorm:"not null;uniqueIndex:idx_project_item_day_item" json:"project_day_id"`
	ItemID            string            `gorm:"type:varchar(36);not null;index;uniqueIndex:idx_project_item_day_item" json:"item_id"`
	Item              *Item             `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	AllocatedQuantity int               `gorm:"not null;default:0" json:"allocated_quantity"`
	DamagedQuantity   int               `gorm:"not null;default:0" json:"damaged_quantity"`
	LostQuantity      int               `gorm:"not null;default:0" json:"lost_quantity"`
	ReturnedQuantity  int               `gorm:"not null;default:0" json:"returned_quantity"`
	Status            ProjectItemStatus `gorm:"type:varchar(20);not null;default:'allocated'" json:"status"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// MaxQuantity bounds every per-row quantity so that multi-day totals cannot
// overflow.
const MaxQuantity = 1_000_000

// Outstanding is the quantity still held against the item's inventory.
func (p *ProjectItem) Outstanding() int {
	return p.AllocatedQuantity - p.ReturnedQuantity
}
