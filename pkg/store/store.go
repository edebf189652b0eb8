package store

import (
	"context"
	"errors"
	"time"

	"github.com/jobtrack/jobtrack/pkg/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Store is the process-wide data access object. It is constructed once in
// main and injected into services.
type Store interface {
	Repository

	// Transaction runs fn against a transactional Repository. The transaction
	// commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(tx Repository) error) error
}

type Repository interface {
	ProjectRepository
	InventoryRepository
	PersonnelRepository
	LogRepository
	UserRepository
}

type ProjectRepository interface {
	CreateProject(ctx context.Context, project *model.Project) error
	GetProject(ctx context.Context, id uint) (*model.Project, error)
	GetProjectByJONumber(ctx context.Context, joNumber string) (*model.Project, error)
	ListProjects(ctx context.Context, status model.ProjectStatus) ([]model.Project, error)
	UpdateProjectStatus(ctx context.Context, id uint, status model.ProjectStatus) error

	CreateProjectDay(ctx context.Context, day *model.ProjectDay) error
	GetProjectDay(ctx context.Context, id uint) (*model.ProjectDay, error)
	FindProjectDay(ctx context.Context, projectID uint, date time.Time) (*model.ProjectDay, error)
	ListProjectDays(ctx context.Context, projectID uint) ([]model.ProjectDay, error)
	UpdateProjectDay(ctx context.Context, day *model.ProjectDay) error
	DeleteProjectDay(ctx context.Context, id uint) error
	CountDayChildren(ctx context.Context, dayID uint) (items int64, personnel int64, err error)

	GetLocation(ctx context.Context, id uint) (*model.Location, error)
	ListActiveLocations(ctx context.Context) ([]model.Location, error)
}

type InventoryRepository interface {
	GetItem(ctx context.Context, id string) (*model.Item, error)
	// LockItem reads the item row with SELECT ... FOR UPDATE. Outside a
	// transaction it behaves like GetItem.
	LockItem(ctx context.Context, id string) (*model.Item, error)
	ListItems(ctx context.Context) ([]model.Item, error)
	ListAvailableItems(ctx context.Context) ([]model.Item, error)
	AdjustAvailableQuantity(ctx context.Context, id string, delta int) error
	SetAvailableQuantity(ctx context.Context, id string, quantity int) error

	CreateProjectItem(ctx context.Context, projectItem *model.ProjectItem) error
	GetProjectItem(ctx context.Context, id uint) (*model.ProjectItem, error)
	// LockProjectItem reads the latest committed row with SELECT ... FOR
	// UPDATE. The Item association is not loaded.
	LockProjectItem(ctx context.Context, id uint) (*model.ProjectItem, error)
	// FindProjectItem is a locking read inside a transaction.
	FindProjectItem(ctx context.Context, dayID uint, itemID string) (*model.ProjectItem, error)
	ListProjectItems(ctx context.Context, dayIDs []uint) ([]model.ProjectItem, error)
	// UpdateProjectItem and DeleteProjectItem return ErrNotFound when no row
	// matched.
	UpdateProjectItem(ctx context.Context, projectItem *model.ProjectItem) error
	DeleteProjectItem(ctx context.Context, id uint) error
	// OutstandingByItem sums allocated minus returned quantities per item.
	OutstandingByItem(ctx context.Context) (map[string]int, error)
}

type PersonnelRepository interface {
	GetPersonnel(ctx context.Context, id uint) (*model.Personnel, error)
	ListActivePersonnel(ctx context.Context) ([]model.Personnel, error)
	GetRole(ctx context.Context, id uint) (*model.Role, error)
	ListRoles(ctx context.Context) ([]model.Role, error)

	CreateProjectPersonnel(ctx context.Context, assignment *model.ProjectPersonnel) error
	ProjectPersonnelExists(ctx context.Context, key model.ProjectPersonnelKey) (bool, error)
	ListProjectPersonnel(ctx context.Context, dayIDs []uint) ([]model.ProjectPersonnel, error)
	DeleteProjectPersonnel(ctx context.Context, key model.ProjectPersonnelKey) (int64, error)
}

type LogRepository interface {
	CreateProjectLog(ctx context.Context, entry *model.ProjectLog) error
	ListProjectLogs(ctx context.Context, projectID uint, limit int) ([]model.ProjectLog, error)
	ListPendingLogs(ctx context.Context, limit int) ([]model.ProjectLog, error)
	MarkLogPublished(ctx context.Context, id uint64, publishedAt time.Time) error
	MarkLogFailed(ctx context.Context, id uint64) error
}

type UserRepository interface {
	GetUser(ctx context.Context, id uint) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}
