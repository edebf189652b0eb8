package allocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jobtrack/jobtrack/pkg/activity"
	"github.com/jobtrack/jobtrack/pkg/apperr"
	"github.com/jobtrack/jobtrack/pkg/metrics"
	"github.com/jobtrack/jobtrack/pkg/model"
	"github.com/jobtrack/jobtrack/pkg/store"
)

type PersonnelAssignment struct {
	PersonnelID uint
	RoleID      uint
}

type AddPersonnelInput struct {
	JONumber      string
	ProjectDayIDs []uint
	Assignments   []PersonnelAssignment
}

type PersonnelResult struct {
	ProjectDayID uint   `json:"project_day_id,omitempty"`
	PersonnelID  uint   `json:"personnel_id"`
	RoleID       uint   `json:"role_id"`
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
}

// AddPersonnel assigns every (personnel, role) pair to every listed day.
// Pairs already assigned to a day are reported as already_exists.
func (s *Service) AddPersonnel(ctx context.Context, in AddPersonnelInput, actor *uint) ([]PersonnelResult, error) {
	if len(in.Assignments) == 0 {
		return nil, apperr.Validation("At least one personnel assignment is required")
	}
	for _, a := range in.Assignments {
		if a.PersonnelID == 0 || a.RoleID == 0 {
			return nil, apperr.Validation("personnel_id and role_id are required")
		}
	}

	var results []PersonnelResult
	var project *model.Project

	err := s.store.Transaction(ctx, func(tx store.Repository) error {
		results = results[:0]

		var err error
		project, err = s.resolveProject(ctx, tx, in.JONumber)
		if err != nil {
			return err
		}
		days, err := loadProjectDays(ctx, tx, project, in.ProjectDayIDs)
		if err != nil {
			return err
		}

		var lines []activity.PersonnelLine
		added := map[PersonnelAssignment]bool{}
		for _, assignment := range in.Assignments {
			line, err := resolvePersonnelLine(ctx, tx, assignment.PersonnelID, assignment.RoleID)
			if err != nil {
				var appErr *apperr.Error
				if errors.As(err, &appErr) {
					results = append(results, PersonnelResult{
						PersonnelID: assignment.PersonnelID,
						RoleID:      assignment.RoleID,
						Status:      ResultError,
						Message:     appErr.Message,
					})
					continue
				}
				return err
			}

			for _, day := range days {
				key := model.ProjectPersonnelKey{
					ProjectDayID: day.ID,
					PersonnelID:  assignment.PersonnelID,
					RoleID:       assignment.RoleID,
				}
				result := PersonnelResult{ProjectDayID: day.ID, PersonnelID: key.PersonnelID, RoleID: key.RoleID}

				exists, err := tx.ProjectPersonnelExists(ctx, key)
				if err != nil {
					return fmt.Errorf("check personnel assignment: %w", err)
				}
				if exists {
					result.Status = ResultAlreadyExists
					results = append(results, result)
					continue
				}

				assignmentRow := &model.ProjectPersonnel{
					ProjectDayID: key.ProjectDayID,
					PersonnelID:  key.PersonnelID,
					RoleID:       key.RoleID,
				}
				if err := tx.CreateProjectPersonnel(ctx, assignmentRow); err != nil {
					return fmt.Errorf("create personnel assignment: %w", err)
				}
				result.Status = ResultAdded
				results = append(results, result)

				if !added[assignment] {
					added[assignment] = true
					lines = append(lines, line)
				}
			}
		}

		if len(lines) == 0 {
			return nil
		}
		return s.writeLog(ctx, tx, activity.PersonnelAdded(project.ID, dayDates(days), lines, actor))
	})
	if err != nil {
		return nil, err
	}

	for _, result := range results {
		metrics.AllocationResults.WithLabelValues("personnel", result.Status).Inc()
	}
	s.notify(ctx, project, "personnel")
	return results, nil
}

// RemovePersonnel deletes one exact (day, personnel, role) assignment.
func (s *Service) RemovePersonnel(ctx context.Context, joNumber string, key model.ProjectPersonnelKey, actor *uint) error {
	var project *model.Project

	err := s.store.Transaction(ctx, func(tx store.Repository) error {
		var err error
		project, err = s.resolveProject(ctx, tx, joNumber)
		if err != nil {
			return err
		}

		day, err := tx.GetProjectDay(ctx, key.ProjectDayID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && day.ProjectID != project.ID) {
			return apperr.NotFound("Project day not found")
		}
		if err != nil {
			return fmt.Errorf("load project day %d: %w", key.ProjectDayID, err)
		}

		line := activity.PersonnelLine{PersonnelID: key.PersonnelID, RoleID: key.RoleID}
		if resolved, err := resolvePersonnelLine(ctx, tx, key.PersonnelID, key.RoleID); err == nil {
			line = resolved
		} else if apperr.KindOf(err) == apperr.KindInternal {
			return err
		} else {
			line.Name = fmt.Sprintf("personnel #%d", key.PersonnelID)
			line.Role = fmt.Sprintf("role #%d", key.RoleID)
		}

		removed, err := tx.DeleteProjectPersonnel(ctx, key)
		if err != nil {
			return fmt.Errorf("delete personnel assignment: %w", err)
		}
		if removed == 0 {
			return apperr.NotFound("Personnel assignment not found")
		}

		snap := activity.DaySnapshot{Date: day.ProjectDate, LocationID: day.LocationID}
		return s.writeLog(ctx, tx, activity.PersonnelRemoved(project.ID, day.ID, snap, line, actor))
	})
	if err != nil {
		return err
	}

	s.notify(ctx, project, "personnel")
	return nil
}

func resolvePersonnelLine(ctx context.Context, repo store.Repository, personnelID, roleID uint) (activity.PersonnelLine, error) {
	line := activity.PersonnelLine{PersonnelID: personnelID, RoleID: roleID}

	personnel, err := repo.GetPersonnel(ctx, personnelID)
	if errors.Is(err, store.ErrNotFound) {
		return line, apperr.NotFound("Personnel not found")
	}
	if err != nil {
		return line, fmt.Errorf("load personnel %d: %w", personnelID, err)
	}

	role, err := repo.GetRole(ctx, roleID)
	if errors.Is(err, store.ErrNotFound) {
		return line, apperr.NotFound("Role not found")
	}
	if err != nil {
		return line, fmt.Errorf("load role %d: %w", roleID, err)
	}

	line.Name = personnel.FullName()
	line.Role = role.Name
	return line, nil
}
