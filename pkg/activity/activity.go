// Package activity builds the structured project_log records written by
// every allocation mutation and renders them as human readable text.
package activity

import (
	"strconv"
	"time"

	"github.com/jobtrack/jobtrack/pkg/model"
)

const (
	EventProjectCreated   = "project.created"
	EventProjectStatus    = "project.status_changed"
	EventDayAdded         = "project_day.added"
	EventDayUpdated       = "project_day.updated"
	EventDayDeleted       = "project_day.deleted"
	EventItemsAdded       = "project_item.added"
	EventItemUpdated      = "project_item.updated"
	EventItemRemoved      = "project_item.removed"
	EventPersonnelAdded   = "project_personnel.added"
	EventPersonnelRemoved = "project_personnel.removed"
)

// DaySnapshot is the loggable state of a project day.
type DaySnapshot struct {
	Date         time.Time
	LocationID   *uint
	LocationName string
}

func (d DaySnapshot) toMap() model.JSONMap {
	m := model.JSONMap{"date": d.Date.Format(model.DateLayout)}
	if d.LocationID != nil {
		m["location_id"] = *d.LocationID
		m["location"] = d.LocationName
	}
	return m
}

// ItemSnapshot is the loggable state of a project item allocation.
type ItemSnapshot struct {
	ItemID    string
	Name      string
	Allocated int
	Damaged   int
	Lost      int
	Returned  int
	Status    string
}

func SnapshotItem(pi *model.ProjectItem, name string) ItemSnapshot {
	return ItemSnapshot{
		ItemID:    pi.ItemID,
		Name:      name,
		Allocated: pi.AllocatedQuantity,
		Damaged:   pi.DamagedQuantity,
		Lost:      pi.LostQuantity,
		Returned:  pi.ReturnedQuantity,
		Status:    string(pi.Status),
	}
}

func (s ItemSnapshot) toMap() model.JSONMap {
	return model.JSONMap{
		"item_id":   s.ItemID,
		"name":      s.Name,
		"allocated": s.Allocated,
		"damaged":   s.Damaged,
		"lost":      s.Lost,
		"returned":  s.Returned,
		"status":    s.Status,
	}
}

type ItemLine struct {
	ItemID   string
	Name     string
	Quantity int
}

type PersonnelLine struct {
	PersonnelID uint
	RoleID      uint
	Name        string
	Role        string
}

func (p PersonnelLine) toMap() model.JSONMap {
	return model.JSONMap{
		"personnel_id": p.PersonnelID,
		"role_id":      p.RoleID,
		"name":         p.Name,
		"role":         p.Role,
	}
}

func newLog(projectID uint, dayID *uint, logType model.LogType, event, entityID string, actor *uint) model.ProjectLog {
	return model.ProjectLog{
		ProjectID:    projectID,
		ProjectDayID: dayID,
		LogType:      logType,
		Event:        event,
		EntityID:     entityID,
		RecordedBy:   actor,
	}
}

func uintID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func ptr(id uint) *uint {
	return &id
}

func ProjectCreated(project *model.Project, actor *uint) model.ProjectLog {
	log := newLog(project.ID, nil, model.LogActivity, EventProjectCreated, project.JONumber, actor)
	log.AfterValue = model.JSONMap{
		"jo_number": project.JONumber,
		"name":      project.Name,
		"status":    string(project.Status),
	}
	return log
}

func StatusChanged(project *model.Project, from, to model.ProjectStatus, actor *uint) model.ProjectLog {
	log := newLog(project.ID, nil, model.LogStatusChange, EventProjectStatus, project.JONumber, actor)
	log.BeforeValue = model.JSONMap{"status": string(from)}
	log.AfterValue = model.JSONMap{"status": string(to)}
	return log
}

func DayAdded(day *model.ProjectDay, snapshot DaySnapshot, actor *uint) model.ProjectLog {
	log := newLog(day.ProjectID, ptr(day.ID), model.LogActivity, EventDayAdded, uintID(day.ID), actor)
	log.AfterValue = snapshot.toMap()
	return log
}

// DayUpdated reports false when neither the date nor the location changed,
// in which case nothing should be logged.
func DayUpdated(projectID, dayID uint, before, after DaySnapshot, actor *uint) (model.ProjectLog, bool) {
	dateChanged := before.Date.Format(model.DateLayout) != after.Date.Format(model.DateLayout)
	locationChanged := !sameID(before.LocationID, after.LocationID)
	if !dateChanged && !locationChanged {
		return model.ProjectLog{}, false
	}
	log := newLog(projectID, ptr(dayID), model.LogActivity, EventDayUpdated, uintID(dayID), actor)
	log.BeforeValue = before.toMap()
	log.AfterValue = after.toMap()
	return log, true
}

// DayDeleted carries no project_day_id since the row no longer exists.
func DayDeleted(projectID, dayID uint, snapshot DaySnapshot, actor *uint) model.ProjectLog {
	log := newLog(projectID, nil, model.LogActivity, EventDayDeleted, uintID(dayID), actor)
	log.BeforeValue = snapshot.toMap()
	return log
}

func ItemsAdded(projectID uint, dayDates []time.Time, lines []ItemLine, actor *uint) model.ProjectLog {
	items := make([]interface{}, 0, len(lines))
	for _, line := range lines {
		items = append(items, map[string]interface{}{
			"item_id":  line.ItemID,
			"name":     line.Name,
			"quantity": line.Quantity,
		})
	}
	log := newLog(projectID, nil, model.LogActivity, EventItemsAdded, "", actor)
	log.AfterValue = model.JSONMap{
		"days":  formatDates(dayDates),
		"items": items,
	}
	return log
}

func ItemUpdated(projectID, dayID, projectItemID uint, before, after ItemSnapshot, actor *uint) (model.ProjectLog, bool) {
	if before == after {
		return model.ProjectLog{}, false
	}
	log := newLog(projectID, ptr(dayID), model.LogActivity, EventItemUpdated, uintID(projectItemID), actor)
	log.BeforeValue = before.toMap()
	log.AfterValue = after.toMap()
	return log, true
}

func ItemRemoved(projectID, projectItemID uint, day DaySnapshot, snapshot ItemSnapshot, actor *uint) model.ProjectLog {
	log := newLog(projectID, nil, model.LogActivity, EventItemRemoved, uintID(projectItemID), actor)
	before := snapshot.toMap()
	before["date"] = day.Date.Format(model.DateLayout)
	log.BeforeValue = before
	return log
}

func PersonnelAdded(projectID uint, dayDates []time.Time, lines []PersonnelLine, actor *uint) model.ProjectLog {
	assignments := make([]interface{}, 0, len(lines))
	for _, line := range lines {
		assignments = append(assignments, map[string]interface{}(line.toMap()))
	}
	log := newLog(projectID, nil, model.LogActivity, EventPersonnelAdded, "", actor)
	log.AfterValue = model.JSONMap{
		"days":        formatDates(dayDates),
		"assignments": assignments,
	}
	return log
}

func PersonnelRemoved(projectID, dayID uint, day DaySnapshot, line PersonnelLine, actor *uint) model.ProjectLog {
	log := newLog(projectID, ptr(dayID), model.LogActivity, EventPersonnelRemoved, uintID(line.PersonnelID), actor)
	before := line.toMap()
	before["date"] = day.Date.Format(model.DateLayout)
	log.BeforeValue = before
	return log
}

func formatDates(dates []time.Time) []interface{} {
	out := make([]interface{}, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(model.DateLayout))
	}
	return out
}

func sameID(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
