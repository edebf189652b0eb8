package allocation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jobtrack/jobtrack/pkg/activity"
	"github.com/jobtrack/jobtrack/pkg/apperr"
	"github.com/jobtrack/jobtrack/pkg/model"
	"github.com/jobtrack/jobtrack/pkg/store"
)

const detailLogLimit = 200

type ProjectInput struct {
	JONumber string
	Name     string
	Status   model.ProjectStatus
}

func (s *Service) CreateProject(ctx context.Context, in ProjectInput, actor *uint) (*model.Project, error) {
	in.JONumber = strings.TrimSpace(in.JONumber)
	in.Name = strings.TrimSpace(in.Name)
	if in.JONumber == "" || in.Name == "" {
		return nil, apperr.Validation("jo_number and name are required")
	}
	if in.Status == "" {
		in.Status = model.ProjectUpcoming
	}
	if !in.Status.Valid() || in.Status == model.ProjectCancelled {
		return nil, apperr.Validation("Invalid status %q", in.Status)
	}

	project := &model.Project{
		JONumber:  in.JONumber,
		Name:      in.Name,
		Status:    in.Status,
		CreatedBy: actor,
	}

	err := s.store.Transaction(ctx, func(tx store.Repository) error {
		if _, err := tx.GetProjectByJONumber(ctx, in.JONumber); err == nil {
			return apperr.Conflict("Job order %s already exists", in.JONumber)
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("check job order %s: %w", in.JONumber, err)
		}

		if err := tx.CreateProject(ctx, project); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Conflict("Job order %s already exists", in.JONumber)
			}
			return fmt.Errorf("create project: %w", err)
		}
		return s.writeLog(ctx, tx, activity.ProjectCreated(project, actor))
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *Service) GetProject(ctx context.Context, joNumber string) (*model.Project, error) {
	return s.resolveProject(ctx, s.store, joNumber)
}

func (s *Service) ListProjects(ctx context.Context, status model.ProjectStatus) ([]model.Project, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("Invalid status %q", status)
	}
	projects, err := s.store.ListProjects(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// CancelProject soft deletes a job order by flipping its status.
func (s *Service) CancelProject(ctx context.Context, joNumber string, actor *uint) (*model.Project, error) {
	var project *model.Project

	err := s.store.Transaction(ctx, func(tx store.Repository) error {
		var err error
		project, err = s.resolveProject(ctx, tx, joNumber)
		if err != nil {
			return err
		}
		if project.Status == model.ProjectCancelled {
			return apperr.Conflict("Project is already cancelled")
		}

		previous := project.Status
		if err := tx.UpdateProjectStatus(ctx, project.ID, model.ProjectCancelled); err != nil {
			return fmt.Errorf("cancel project %s: %w", joNumber, err)
		}
		project.Status = model.ProjectCancelled
		return s.writeLog(ctx, tx, activity.StatusChanged(project, previous, model.ProjectCancelled, actor))
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, project, "status")
	return project, nil
}

type DayDetail struct {
	model.ProjectDay
	DisplayStatus DayStatus                `json:"display_status"`
	Items         []model.ProjectItem      `json:"items"`
	Personnel     []model.ProjectPersonnel `json:"personnel"`
}

type ProjectDetail struct {
	Project     *model.Project   `json:"project"`
	ProjectDays []DayDetail      `json:"project_days"`
	Logs        []activity.Entry `json:"logs"`
}

// GetProjectDetail returns a job order with its days, the items and
// personnel allocated to each day, and the most recent activity first.
func (s *Service) GetProjectDetail(ctx context.Context, joNumber string) (*ProjectDetail, error) {
	project, err := s.resolveProject(ctx, s.store, joNumber)
	if err != nil {
		return nil, err
	}

	days, err := s.store.ListProjectDays(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("list project days: %w", err)
	}

	dayIDs := make([]uint, 0, len(days))
	for _, day := range days {
		dayIDs = append(dayIDs, day.ID)
	}

	items, err := s.store.ListProjectItems(ctx, dayIDs)
	if err != nil {
		return nil, fmt.Errorf("list project items: %w", err)
	}
	personnel, err := s.store.ListProjectPersonnel(ctx, dayIDs)
	if err != nil {
		return nil, fmt.Errorf("list project personnel: %w", err)
	}
	logs, err := s.store.ListProjectLogs(ctx, project.ID, detailLogLimit)
	if err != nil {
		return nil, fmt.Errorf("list project logs: %w", err)
	}

	itemsByDay := make(map[uint][]model.ProjectItem)
	for _, item := range items {
		itemsByDay[item.ProjectDayID] = append(itemsByDay[item.ProjectDayID], item)
	}
	personnelByDay := make(map[uint][]model.ProjectPersonnel)
	for _, assignment := range personnel {
		personnelByDay[assignment.ProjectDayID] = append(personnelByDay[assignment.ProjectDayID], assignment)
	}

	now := s.now()
	detail := &ProjectDetail{
		Project:     project,
		ProjectDays: make([]DayDetail, 0, len(days)),
		Logs:        activity.Render(logs),
	}
	for _, day := range days {
		dayItems := itemsByDay[day.ID]
		if dayItems == nil {
			dayItems = []model.ProjectItem{}
		}
		dayPersonnel := personnelByDay[day.ID]
		if dayPersonnel == nil {
			dayPersonnel = []model.ProjectPersonnel{}
		}
		detail.ProjectDays = append(detail.ProjectDays, DayDetail{
			ProjectDay:    day,
			DisplayStatus: DisplayStatus(day.ProjectDate, now, s.location),
			Items:         dayItems,
			Personnel:     dayPersonnel,
		})
	}
	return detail, nil
}

// ListAvailableItems lists items with stock left to allocate to the job order.
func (s *Service) ListAvailableItems(ctx context.Context, joNumber string) ([]model.Item, error) {
	if _, err := s.resolveProject(ctx, s.store, joNumber); err != nil {
		return nil, err
	}
	items, err := s.store.ListAvailableItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list available items: %w", err)
	}
	if items == nil {
		items = []model.Item{}
	}
	return items, nil
}

type PersonnelOptions struct {
	Personnel []model.Personnel `json:"personnel"`
	Roles     []model.Role      `json:"roles"`
}

func (s *Service) ListPersonnelAndRoles(ctx context.Context) (*PersonnelOptions, error) {
	personnel, err := s.store.ListActivePersonnel(ctx)
	if err != nil {
		return nil, fmt.Errorf("list personnel: %w", err)
	}
	roles, err := s.store.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	if personnel == nil {
		personnel = []model.Personnel{}
	}
	if roles == nil {
		roles = []model.Role{}
	}
	return &PersonnelOptions{Personnel: personnel, Roles: roles}, nil
}

func (s *Service) ListActiveLocations(ctx context.Context) ([]model.Location, error) {
	locations, err := s.store.ListActiveLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	if locations == nil {
		locations = []model.Location{}
	}
	return locations, nil
}
