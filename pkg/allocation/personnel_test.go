package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobtrack/jobtrack/pkg/activity"
	"github.com/jobtrack/jobtrack/pkg/apperr"
	"github.com/jobtrack/jobtrack/pkg/model"
)

func TestAddPersonnelIsIdempotentPerPair(t *testing.T) {
	f := newFixture(t)
	second := f.addDay("2024-10-02", nil)
	logsBefore := f.logCount()

	in := AddPersonnelInput{
		JONumber:      f.project.JONumber,
		ProjectDayIDs: []uint{f.day.ID, second.ID},
		Assignments: []PersonnelAssignment{
			{PersonnelID: 3, RoleID: 2},
			{PersonnelID: 4, RoleID: 1},
		},
	}

	results, err := f.svc.AddPersonnel(f.ctx, in, f.actor)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, r := range results {
		assert.Equal(t, ResultAdded, r.Status)
	}
	require.Equal(t, logsBefore+1, f.logCount())

	logs := f.store.Logs()
	assert.Equal(t,
		"Assigned personnel: Ana Cruz as Foreman, Ben Lim as Rigger to 2 days (Oct 1, 2024, Oct 2, 2024)",
		activity.Describe(logs[len(logs)-1]))

	results, err = f.svc.AddPersonnel(f.ctx, in, f.actor)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, ResultAlreadyExists, r.Status)
	}
	assert.Equal(t, logsBefore+1, f.logCount(), "nothing new was assigned")
}

func TestAddPersonnelReportsUnknownPeople(t *testing.T) {
	f := newFixture(t)

	results, err := f.svc.AddPersonnel(f.ctx, AddPersonnelInput{
		JONumber:      f.project.JONumber,
		ProjectDayIDs: []uint{f.day.ID},
		Assignments: []PersonnelAssignment{
			{PersonnelID: 99, RoleID: 2},
			{PersonnelID: 3, RoleID: 99},
			{PersonnelID: 3, RoleID: 2},
		},
	}, nil)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, ResultError, results[0].Status)
	assert.Equal(t, "Personnel not found", results[0].Message)
	assert.Equal(t, "Role not found", results[1].Message)
	assert.Equal(t, ResultAdded, results[2].Status)
}

func TestRemovePersonnel(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AddPersonnel(f.ctx, AddPersonnelInput{
		JONumber:      f.project.JONumber,
		ProjectDayIDs: []uint{f.day.ID},
		Assignments:   []PersonnelAssignment{{PersonnelID: 3, RoleID: 2}},
	}, nil)
	require.NoError(t, err)

	key := model.ProjectPersonnelKey{ProjectDayID: f.day.ID, PersonnelID: 3, RoleID: 2}
	require.NoError(t, f.svc.RemovePersonnel(f.ctx, f.project.JONumber, key, f.actor))

	exists, err := f.store.ProjectPersonnelExists(f.ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	logs := f.store.Logs()
	assert.Equal(t, "Removed Ana Cruz (Foreman) from Oct 1, 2024", activity.Describe(logs[len(logs)-1]))
}

func TestRemoveMissingPersonnelIsNotFound(t *testing.T) {
	f := newFixture(t)
	day7 := f.day.ID
	logsBefore := f.logCount()

	err := f.svc.RemovePersonnel(f.ctx, f.project.JONumber,
		model.ProjectPersonnelKey{ProjectDayID: day7, PersonnelID: 3, RoleID: 2}, nil)

	require.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, 404, apperr.StatusCode(err))
	assert.Equal(t, logsBefore, f.logCount())
}

func TestRemovePersonnelChecksDayOwnership(t *testing.T) {
	f := newFixture(t)

	err := f.svc.RemovePersonnel(f.ctx, f.project.JONumber,
		model.ProjectPersonnelKey{ProjectDayID: 999, PersonnelID: 3, RoleID: 2}, nil)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = f.svc.RemovePersonnel(f.ctx, "JO-404",
		model.ProjectPersonnelKey{ProjectDayID: f.day.ID, PersonnelID: 3, RoleID: 2}, nil)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
