// Package allocation implements project day scheduling and the allocation of
// inventory items and personnel to job order days. Every mutation runs in a
// single store transaction and item rows are locked before their available
// quantity is checked or adjusted.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jobtrack/jobtrack/pkg/activity"
	"github.com/jobtrack/jobtrack/pkg/apperr"
	"github.com/jobtrack/jobtrack/pkg/eventbus"
	"github.com/jobtrack/jobtrack/pkg/model"
	"github.com/jobtrack/jobtrack/pkg/store"
	redisclient "github.com/jobtrack/jobtrack/pkg/store/redis"
)

// Notifier receives a change notification after a mutation commits.
type Notifier interface {
	PublishProjectChanged(ctx context.Context, change eventbus.ProjectEvent) error
}

// Locker serializes work on one job order across API replicas.
type Locker interface {
	Obtain(ctx context.Context, key string) (func(), error)
}

// Service runs the allocation operations against a store.Store.
type Service struct {
	store    store.Store
	notifier Notifier
	locker   Locker
	logger   *zap.Logger
	now      func() time.Time
	location *time.Location
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier publishes a change event after each committed mutation.
func WithNotifier(notifier Notifier) Option {
	return func(s *Service) { s.notifier = notifier }
}

// WithLocker serializes batch item allocation per job order.
func WithLocker(locker Locker) Option {
	return func(s *Service) { s.locker = locker }
}

// WithClock replaces time.Now for log timestamps and display status.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the time zone used to decide which calendar day is today.
func WithLocation(location *time.Location) Option {
	return func(s *Service) { s.location = location }
}

// NewService returns a Service that logs to logger. The clock defaults to
// time.Now and the location to time.Local.
func NewService(st store.Store, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:    st,
		logger:   logger,
		now:      time.Now,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) resolveProject(ctx context.Context, repo store.Repository, joNumber string) (*model.Project, error) {
	project, err := repo.GetProjectByJONumber(ctx, joNumber)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", joNumber, err)
	}
	return project, nil
}

// loadProjectDays loads the requested days in request order. Repeated ids and
// days of another project are rejected.
func loadProjectDays(ctx context.Context, repo store.Repository, project *model.Project, dayIDs []uint) ([]model.ProjectDay, error) {
	if len(dayIDs) == 0 {
		return nil, apperr.Validation("At least one project day is required")
	}
	seen := make(map[uint]bool, len(dayIDs))
	days := make([]model.ProjectDay, 0, len(dayIDs))
	for _, id := range dayIDs {
		if seen[id] {
			return nil, apperr.Validation("Project day %d is listed more than once", id)
		}
		seen[id] = true

		day, err := repo.GetProjectDay(ctx, id)
		if errors.Is(err, store.ErrNotFound) || (err == nil && day.ProjectID != project.ID) {
			return nil, apperr.Validation("Project day %d does not belong to job order %s", id, project.JONumber)
		}
		if err != nil {
			return nil, fmt.Errorf("load project day %d: %w", id, err)
		}
		days = append(days, *day)
	}
	return days, nil
}

func (s *Service) writeLog(ctx context.Context, repo store.Repository, entry model.ProjectLog) error {
	entry.CreatedAt = s.now().UTC()
	if err := repo.CreateProjectLog(ctx, &entry); err != nil {
		return fmt.Errorf("write project log: %w", err)
	}
	return nil
}

// lock takes the per job order lock when a Locker is configured.
func (s *Service) lock(ctx context.Context, joNumber string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Obtain(ctx, "jo:"+joNumber)
	if errors.Is(err, redisclient.ErrLockNotObtained) {
		return nil, apperr.Conflict("Job order %s is being updated by another request, try again", joNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain job order lock: %w", err)
	}
	return release, nil
}

func (s *Service) notify(ctx context.Context, project *model.Project, change string) {
	if s.notifier == nil || project == nil {
		return
	}
	event := eventbus.ProjectEvent{ProjectID: project.ID, JONumber: project.JONumber, Change: change}
	if err := s.notifier.PublishProjectChanged(ctx, event); err != nil {
		s.logger.Warn("failed to publish project change",
			zap.Error(err),
			zap.String("jo_number", project.JONumber),
			zap.String("change", change),
		)
	}
}

func (s *Service) daySnapshot(ctx context.Context, repo store.Repository, day *model.ProjectDay) (activity.DaySnapshot, error) {
	snap := activity.DaySnapshot{Date: day.ProjectDate, LocationID: day.LocationID}
	if day.LocationID == nil {
		return snap, nil
	}
	if day.Location != nil && day.Location.ID == *day.LocationID {
		snap.LocationName = day.Location.Name
		return snap, nil
	}
	location, err := repo.GetLocation(ctx, *day.LocationID)
	if errors.Is(err, store.ErrNotFound) {
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("load location %d: %w", *day.LocationID, err)
	}
	snap.LocationName = location.Name
	return snap, nil
}
