package model

import "time"

type Permission uint64

const (
	PermViewProjects Permission = 1 << iota
	PermManageProjects
	PermManageAllocations
	PermManagePersonnel
)

const PermAll = PermViewProjects | PermManageProjects | PermManageAllocations | PermManagePersonnel

var permissionNames = map[Permission]string{
	PermViewProjects:      "view_projects",
	PermManageProjects:    "manage_projects",
	PermManageAllocations: "manage_allocations",
	PermManagePersonnel:   "manage_personnel",
}

func (p Permission) String() string {
	if name, ok := permissionNames[p]; ok {
		return name
	}
	return "unknown"
}

type Position struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"size:100;not null" json:"name"`
	Permissions Permission `gorm:"not null;default:0" json:"permissions"`
}

func (p *Position) Has(perm Permission) bool {
	return p != nil && p.Permissions&perm == perm
}

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:100;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	FullName     string    `gorm:"size:255" json:"full_name"`
	PositionID   *uint     `json:"position_id,omitempty"`
	Position     *Position `gorm:"foreignKey:PositionID" json:"position,omitempty"`
	Status       string    `gorm:"size:20;not null;default:'active'" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) Active() bool {
	return u.Status == "" || u.Status == "active"
}
