package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jobtrack/jobtrack/pkg/activity"
	"github.com/jobtrack/jobtrack/pkg/apperr"
	"github.com/jobtrack/jobtrack/pkg/model"
	"github.com/jobtrack/jobtrack/pkg/store"
)

type DayInput struct {
	Date       time.Time
	LocationID *uint
}

func (s *Service) AddProjectDay(ctx context.Context, projectID uint, in DayInput, actor *uint) (*model.ProjectDay, error) {
	var created *model.ProjectDay
	var project *model.Project

	err := s.store.Transaction(ctx, func(tx store.Repository) error {
		var err error
		project, err = tx.GetProject(ctx, projectID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Project not found")
		}
		if err != nil {
			return fmt.Errorf("load project %d: %w", projectID, err)
		}

		if _, err := tx.FindProjectDay(ctx, projectID, in.Date); err == nil {
			return apperr.Conflict("Project day already exists for this date")
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("check existing project day: %w", err)
		}

		if err := checkLocation(ctx, tx, in.LocationID); err != nil {
			return err
		}

		day := &model.ProjectDay{
			ProjectID:   projectID,
			ProjectDate: in.Date,
			LocationID:  in.LocationID,
		}
		if err := tx.CreateProjectDay(ctx, day); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Conflict("Project day already exists for this date")
			}
			return fmt.Errorf("create project day: %w", err)
		}

		created, err = tx.GetProjectDay(ctx, day.ID)
		if err != nil {
			return fmt.Errorf("reload project day %d: %w", day.ID, err)
		}

		snap, err := s.daySnapshot(ctx, tx, created)
		if err != nil {
			return err
		}
		return s.writeLog(ctx, tx, activity.DayAdded(created, snap, actor))
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, project, "days")
	return created, nil
}

func (s *Service) UpdateProjectDay(ctx context.Context, dayID uint, in DayInput, actor *uint) (*model.ProjectDay, error) {
	var updated *model.ProjectDay
	var project *model.Project

	err := s.store.Transaction(ctx, func(tx store.Repository) error {
		current, err := tx.GetProjectDay(ctx, dayID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Project day not found")
		}
		if err != nil {
			return fmt.Errorf("load project day %d: %w", dayID, err)
		}

		project, err = tx.GetProject(ctx, current.ProjectID)
		if err != nil {
			return fmt.Errorf("load project %d: %w", current.ProjectID, err)
		}

		if err := checkLocation(ctx, tx, in.LocationID); err != nil {
			return err
		}

		before, err := s.daySnapshot(ctx, tx, current)
		if err != nil {
			return err
		}

		next := *current
		next.ProjectDate = in.Date
		next.LocationID = in.LocationID
		next.Location = nil
		if err := tx.UpdateProjectDay(ctx, &next); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Conflict("Project day already exists for this date")
			}
			return fmt.Errorf("update project day %d: %w", dayID, err)
		}

		updated, err = tx.GetProjectDay(ctx, dayID)
		if err != nil {
			return fmt.Errorf("reload project day %d: %w", dayID, err)
		}

		after, err := s.daySnapshot(ctx, tx, updated)
		if err != nil {
			return err
		}
		if entry, changed := activity.DayUpdated(current.ProjectID, dayID, before, after, actor); changed {
			return s.writeLog(ctx, tx, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, project, "days")
	return updated, nil
}

func (s *Service) DeleteProjectDay(ctx context.Context, dayID uint, actor *uint) error {
	var project *model.Project

	err := s.store.Transaction(ctx, func(tx store.Repository) error {
		day, err := tx.GetProjectDay(ctx, dayID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Project day not found")
		}
		if err != nil {
			return fmt.Errorf("load project day %d: %w", dayID, err)
		}

		project, err = tx.GetProject(ctx, day.ProjectID)
		if err != nil {
			return fmt.Errorf("load project %d: %w", day.ProjectID, err)
		}

		items, personnel, err := tx.CountDayChildren(ctx, dayID)
		if err != nil {
			return fmt.Errorf("count project day children: %w", err)
		}
		if items > 0 || personnel > 0 {
			return apperr.Conflict("Cannot delete project day with associated items or personnel")
		}

		snap, err := s.daySnapshot(ctx, tx, day)
		if err != nil {
			return err
		}

		if err := tx.DeleteProjectDay(ctx, dayID); err != nil {
			return fmt.Errorf("delete project day %d: %w", dayID, err)
		}
		return s.writeLog(ctx, tx, activity.DayDeleted(day.ProjectID, dayID, snap, actor))
	})
	if err != nil {
		return err
	}

	s.notify(ctx, project, "days")
	return nil
}

func checkLocation(ctx context.Context, repo store.Repository, locationID *uint) error {
	if locationID == nil {
		return nil
	}
	_, err := repo.GetLocation(ctx, *locationID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.Validation("Location %d does not exist", *locationID)
	}
	if err != nil {
		return fmt.Errorf("load location %d: %w", *locationID, err)
	}
	return nil
}
