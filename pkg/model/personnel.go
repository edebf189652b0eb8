package model

import (
	"strings"
	"time"
)

type Personnel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FirstName string    `gorm:"size:100;not null" json:"first_name"`
	LastName  string    `gorm:"size:100" json:"last_name"`
	Status    string    `gorm:"size:20;not null;default:'active'" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Personnel) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type Role struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100;not null" json:"name"`
}

type ProjectPersonnelKey struct {
	ProjectDayID uint `json:"project_day_id"`
	PersonnelID  uint `json:"personnel_id"`
	RoleID       uint `json:"role_id"`
}

type ProjectPersonnel struct {
	ProjectDayID uint       `gorm:"primaryKey;autoIncrement:false" json:"project_day_id"`
	PersonnelID  uint       `gorm:"primaryKey;autoIncrement:false" json:"personnel_id"`
	RoleID       uint       `gorm:"primaryKey;autoIncrement:false" json:"role_id"`
	Personnel    *Personnel `gorm:"foreignKey:PersonnelID" json:"personnel,omitempty"`
	Role         *Role      `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (p *ProjectPersonnel) Key() ProjectPersonnelKey {
	return ProjectPersonnelKey{ProjectDayID: p.ProjectDayID, PersonnelID: p.PersonnelID, RoleID: p.RoleID}
}
