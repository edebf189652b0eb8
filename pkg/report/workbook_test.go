package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jobtrack/jobtrack/pkg/activity"
	"github.com/jobtrack/jobtrack/pkg/allocation"
	"github.com/jobtrack/jobtrack/pkg/model"
)

func sampleDetail() *allocation.ProjectDetail {
	date := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	return &allocation.ProjectDetail{
		Project: &model.Project{ID: 1, JONumber: "JO-2024-001", Name: "Tower A", Status: model.ProjectOngoing, CreatedAt: date},
		ProjectDays: []allocation.DayDetail{{
			ProjectDay: model.ProjectDay{
				ID:          7,
				ProjectID:   1,
				ProjectDate: date,
				Location:    &model.Location{ID: 1, Name: "North Yard"},
			},
			DisplayStatus: allocation.DayOngoing,
			Items: []model.ProjectItem{{
				ID:                1,
				ProjectDayID:      7,
				ItemID:            "I-1",
				Item:              &model.Item{ID: "I-1", Name: "Cement"},
				AllocatedQuantity: 20,
				ReturnedQuantity:  5,
				Status:            model.ProjectItemDeployed,
			}},
			Personnel: []model.ProjectPersonnel{{
				ProjectDayID: 7,
				PersonnelID:  3,
				RoleID:       2,
				Personnel:    &model.Personnel{ID: 3, FirstName: "Ana", LastName: "Cruz"},
				Role:         &model.Role{ID: 2, Name: "Foreman"},
			}},
		}},
		Logs: []activity.Entry{{
			ID:          1,
			ProjectID:   1,
			LogType:     model.LogActivity,
			Event:       activity.EventItemsAdded,
			Description: "Added items: Cement (20) to Oct 1, 2024",
			CreatedAt:   date.Add(9 * time.Hour),
		}},
	}
}

func TestWriteProducesOneSheetPerSection(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleDetail()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetDays, SheetItems, SheetPersonnel, SheetActivity}, f.GetSheetList())

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Job order", "JO-2024-001"}, summary[1])

	days, err := f.GetRows(SheetDays)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, []string{"7", "2024-10-01", "North Yard", "ongoing", "1", "1"}, days[1])

	items, err := f.GetRows(SheetItems)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, []string{"2024-10-01", "I-1", "Cement", "20", "5", "0", "0", "deployed"}, items[1])

	personnel, err := f.GetRows(SheetPersonnel)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-10-01", "3", "Ana Cruz", "Foreman"}, personnel[1])

	logs, err := f.GetRows(SheetActivity)
	require.NoError(t, err)
	assert.Equal(t, "Added items: Cement (20) to Oct 1, 2024", logs[1][3])
}

func TestBuildWithEmptyProject(t *testing.T) {
	detail := sampleDetail()
	detail.ProjectDays = nil
	detail.Logs = nil

	f, err := Build(detail)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetItems)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
	assert.Equal(t, "project-JO-1.xlsx", Filename("JO-1"))
}
