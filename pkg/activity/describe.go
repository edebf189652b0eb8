package activity

import (
	"fmt"
	"strings"
	"time"

	"github.com/jobtrack/jobtrack/pkg/model"
)

const displayDateLayout = "Jan 2, 2006"

// Entry is a rendered log line as returned by the API.
type Entry struct {
	ID           uint64        `json:"id"`
	ProjectID    uint          `json:"project_id"`
	ProjectDayID *uint         `json:"project_day_id,omitempty"`
	LogType      model.LogType `json:"log_type"`
	Event        string        `json:"event"`
	EntityID     string        `json:"entity_id,omitempty"`
	Description  string        `json:"description"`
	Before       model.JSONMap `json:"before_value,omitempty"`
	After        model.JSONMap `json:"after_value,omitempty"`
	RecordedBy   *uint         `json:"recorded_by,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

func Render(logs []model.ProjectLog) []Entry {
	entries := make([]Entry, 0, len(logs))
	for _, log := range logs {
		entries = append(entries, Entry{
			ID:           log.ID,
			ProjectID:    log.ProjectID,
			ProjectDayID: log.ProjectDayID,
			LogType:      log.LogType,
			Event:        log.Event,
			EntityID:     log.EntityID,
			Description:  Describe(log),
			Before:       log.BeforeValue,
			After:        log.AfterValue,
			RecordedBy:   log.RecordedBy,
			CreatedAt:    log.CreatedAt,
		})
	}
	return entries
}

// Describe renders the human readable description of a log record.
func Describe(log model.ProjectLog) string {
	before, after := log.BeforeValue, log.AfterValue

	switch log.Event {
	case EventProjectCreated:
		return fmt.Sprintf("Created job order %s (%s)", after.String("jo_number"), after.String("name"))

	case EventProjectStatus:
		return fmt.Sprintf("Status changed from %s to %s", before.String("status"), after.String("status"))

	case EventDayAdded:
		return "Added project day for " + describeDay(after)

	case EventDayUpdated:
		var changes []string
		if before.String("date") != after.String("date") {
			changes = append(changes, fmt.Sprintf("date changed from %s to %s",
				formatDate(before.String("date")), formatDate(after.String("date"))))
		}
		if before.String("location_id") != after.String("location_id") {
			changes = append(changes, fmt.Sprintf("location changed from %s to %s",
				locationOrNone(before), locationOrNone(after)))
		}
		return "Updated project day: " + strings.Join(changes, ", ")

	case EventDayDeleted:
		return "Deleted project day for " + describeDay(before)

	case EventItemsAdded:
		var parts []string
		for _, raw := range list(after["items"]) {
			line := model.JSONMap(raw)
			qty, _ := line.Int("quantity")
			parts = append(parts, fmt.Sprintf("%s (%d)", line.String("name"), qty))
		}
		return fmt.Sprintf("Added items: %s to %s", strings.Join(parts, ", "), describeDates(after["days"]))

	case EventItemUpdated:
		var changes []string
		for _, field := range []string{"allocated", "damaged", "lost", "returned"} {
			from, _ := before.Int(field)
			to, _ := after.Int(field)
			if from != to {
				changes = append(changes, fmt.Sprintf("%s quantity changed from %d to %d", field, from, to))
			}
		}
		if before.String("status") != after.String("status") {
			changes = append(changes, fmt.Sprintf("status changed from %s to %s", before.String("status"), after.String("status")))
		}
		return fmt.Sprintf("Updated %s: %s", after.String("name"), strings.Join(changes, ", "))

	case EventItemRemoved:
		qty, _ := before.Int("allocated")
		return fmt.Sprintf("Removed %s (%d) from %s", before.String("name"), qty, formatDate(before.String("date")))

	case EventPersonnelAdded:
		var parts []string
		seen := map[string]bool{}
		for _, raw := range list(after["assignments"]) {
			line := model.JSONMap(raw)
			part := fmt.Sprintf("%s as %s", line.String("name"), line.String("role"))
			if seen[part] {
				continue
			}
			seen[part] = true
			parts = append(parts, part)
		}
		return fmt.Sprintf("Assigned personnel: %s to %s", strings.Join(parts, ", "), describeDates(after["days"]))

	case EventPersonnelRemoved:
		return fmt.Sprintf("Removed %s (%s) from %s",
			before.String("name"), before.String("role"), formatDate(before.String("date")))
	}

	return log.Event
}

func describeDay(m model.JSONMap) string {
	text := formatDate(m.String("date"))
	if location := m.String("location"); location != "" {
		text += " at " + location
	}
	return text
}

func locationOrNone(m model.JSONMap) string {
	if location := m.String("location"); location != "" {
		return location
	}
	return "none"
}

func describeDates(raw interface{}) string {
	var dates []string
	for _, v := range asSlice(raw) {
		if s, ok := v.(string); ok {
			dates = append(dates, formatDate(s))
		}
	}
	if len(dates) == 1 {
		return dates[0]
	}
	return fmt.Sprintf("%d days (%s)", len(dates), strings.Join(dates, ", "))
}

func formatDate(value string) string {
	t, err := time.Parse(model.DateLayout, value)
	if err != nil {
		return value
	}
	return t.Format(displayDateLayout)
}

// list accepts both the in-memory shape and the shape decoded from a JSON
// column.
func list(raw interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	for _, v := range asSlice(raw) {
		switch m := v.(type) {
		case map[string]interface{}:
			out = append(out, m)
		case model.JSONMap:
			out = append(out, m)
		}
	}
	return out
}

func asSlice(raw interface{}) []interface{} {
	switch v := raw.(type) {
	case []interface{}:
		return v
	case []string:
		out := make([]interface{}, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	}
	return nil
}
