package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/jobtrack/jobtrack/pkg/allocation"
	"github.com/jobtrack/jobtrack/pkg/model"
)

const (
	SheetSummary   = "Summary"
	SheetDays      = "Days"
	SheetItems     = "Items"
	SheetPersonnel = "Personnel"
	SheetActivity  = "Activity"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Filename is the attachment name used for a job order export.
func Filename(joNumber string) string {
	return fmt.Sprintf("project-%s.xlsx", joNumber)
}

// Build lays the project detail view out as one sheet per section.
// The caller owns the returned file and must close it.
func Build(detail *allocation.ProjectDetail) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(SheetSummary)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}

	sections := []struct {
		name   string
		header []interface{}
		rows   [][]interface{}
	}{
		{SheetSummary, []interface{}{"Field", "Value"}, summaryRows(detail)},
		{SheetDays, []interface{}{"Day ID", "Date", "Location", "Status", "Items", "Personnel"}, dayRows(detail)},
		{SheetItems, []interface{}{"Date", "Item ID", "Item", "Allocated", "Returned", "Damaged", "Lost", "Status"}, itemRows(detail)},
		{SheetPersonnel, []interface{}{"Date", "Personnel ID", "Name", "Role"}, personnelRows(detail)},
		{SheetActivity, []interface{}{"Time", "Type", "Event", "Description"}, activityRows(detail)},
	}

	for _, section := range sections {
		if section.name != SheetSummary {
			if _, err := f.NewSheet(section.name); err != nil {
				f.Close()
				return nil, fmt.Errorf("create %s sheet: %w", section.name, err)
			}
		}
		if err := writeRows(f, section.name, section.header, section.rows); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// Write streams the workbook for detail to w.
func Write(w io.Writer, detail *allocation.ProjectDetail) error {
	f, err := Build(detail)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func summaryRows(detail *allocation.ProjectDetail) [][]interface{} {
	p := detail.Project
	return [][]interface{}{
		{"Job order", p.JONumber},
		{"Name", p.Name},
		{"Status", string(p.Status)},
		{"Days", len(detail.ProjectDays)},
		{"Created", p.CreatedAt.Format(model.DateLayout)},
	}
}

func dayRows(detail *allocation.ProjectDetail) [][]interface{} {
	rows := make([][]interface{}, 0, len(detail.ProjectDays))
	for _, day := range detail.ProjectDays {
		rows = append(rows, []interface{}{
			day.ID,
			day.DateKey(),
			locationName(day.Location),
			string(day.DisplayStatus),
			len(day.Items),
			len(day.Personnel),
		})
	}
	return rows
}

func itemRows(detail *allocation.ProjectDetail) [][]interface{} {
	var rows [][]interface{}
	for _, day := range detail.ProjectDays {
		for _, item := range day.Items {
			name := item.ItemID
			if item.Item != nil {
				name = item.Item.Name
			}
			rows = append(rows, []interface{}{
				day.DateKey(),
				item.ItemID,
				name,
				item.AllocatedQuantity,
				item.ReturnedQuantity,
				item.DamagedQuantity,
				item.LostQuantity,
				string(item.Status),
			})
		}
	}
	return rows
}

func personnelRows(detail *allocation.ProjectDetail) [][]interface{} {
	var rows [][]interface{}
	for _, day := range detail.ProjectDays {
		for _, assignment := range day.Personnel {
			name, role := "", ""
			if assignment.Personnel != nil {
				name = assignment.Personnel.FullName()
			}
			if assignment.Role != nil {
				role = assignment.Role.Name
			}
			rows = append(rows, []interface{}{day.DateKey(), assignment.PersonnelID, name, role})
		}
	}
	return rows
}

func activityRows(detail *allocation.ProjectDetail) [][]interface{} {
	rows := make([][]interface{}, 0, len(detail.Logs))
	for _, entry := range detail.Logs {
		rows = append(rows, []interface{}{
			entry.CreatedAt.Format("2006-01-02 15:04:05"),
			string(entry.LogType),
			entry.Event,
			entry.Description,
		})
	}
	return rows
}

func locationName(location *model.Location) string {
	if location == nil {
		return ""
	}
	return location.Name
}
