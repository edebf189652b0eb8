package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jobtrack/jobtrack/pkg/model"
	"github.com/jobtrack/jobtrack/pkg/store"
)

func (s *state) CreateProject(_ context.Context, project *model.Project) error {
	defer s.guard()()
	for _, existing := range s.projects {
		if existing.JONumber == project.JONumber {
			return store.ErrDuplicate
		}
	}
	s.nextProjectID++
	project.ID = s.nextProjectID
	project.CreatedAt = s.timestamp()
	project.UpdatedAt = project.CreatedAt
	if project.Status == "" {
		project.Status = model.ProjectUpcoming
	}
	s.projects[project.ID] = *project
	return nil
}

func (s *state) GetProject(_ context.Context, id uint) (*model.Project, error) {
	defer s.guard()()
	project, ok := s.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &project, nil
}

func (s *state) GetProjectByJONumber(_ context.Context, joNumber string) (*model.Project, error) {
	defer s.guard()()
	for _, project := range s.projects {
		if project.JONumber == joNumber {
			p := project
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *state) ListProjects(_ context.Context, status model.ProjectStatus) ([]model.Project, error) {
	defer s.guard()()
	var projects []model.Project
	for _, project := range s.projects {
		if status != "" && project.Status != status {
			continue
		}
		projects = append(projects, project)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID > projects[j].ID })
	return projects, nil
}

func (s *state) UpdateProjectStatus(_ context.Context, id uint, status model.ProjectStatus) error {
	defer s.guard()()
	project, ok := s.projects[id]
	if !ok {
		return nil
	}
	project.Status = status
	project.UpdatedAt = s.timestamp()
	s.projects[id] = project
	return nil
}

func (s *state) CreateProjectDay(_ context.Context, day *model.ProjectDay) error {
	defer s.guard()()
	for _, existing := range s.days {
		if existing.ProjectID == day.ProjectID && existing.DateKey() == day.DateKey() {
			return store.ErrDuplicate
		}
	}
	s.nextDayID++
	day.ID = s.nextDayID
	day.CreatedAt = s.timestamp()
	day.UpdatedAt = day.CreatedAt
	stored := *day
	stored.Location = nil
	s.days[day.ID] = stored
	return nil
}

func (s *state) withLocation(day model.ProjectDay) model.ProjectDay {
	if day.LocationID != nil {
		if location, ok := s.locations[*day.LocationID]; ok {
			day.Location = &location
		}
	}
	return day
}

func (s *state) GetProjectDay(_ context.Context, id uint) (*model.ProjectDay, error) {
	defer s.guard()()
	day, ok := s.days[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	day = s.withLocation(day)
	return &day, nil
}

func (s *state) FindProjectDay(_ context.Context, projectID uint, date time.Time) (*model.ProjectDay, error) {
	defer s.guard()()
	key := date.Format(model.DateLayout)
	for _, day := range s.days {
		if day.ProjectID == projectID && day.DateKey() == key {
			d := day
			return &d, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *state) ListProjectDays(_ context.Context, projectID uint) ([]model.ProjectDay, error) {
	defer s.guard()()
	var days []model.ProjectDay
	for _, day := range s.days {
		if day.ProjectID == projectID {
			days = append(days, s.withLocation(day))
		}
	}
	sort.Slice(days, func(i, j int) bool {
		if !days[i].ProjectDate.Equal(days[j].ProjectDate) {
			return days[i].ProjectDate.Before(days[j].ProjectDate)
		}
		return days[i].ID < days[j].ID
	})
	return days, nil
}

func (s *state) UpdateProjectDay(_ context.Context, day *model.ProjectDay) error {
	defer s.guard()()
	stored, ok := s.days[day.ID]
	if !ok {
		return nil
	}
	for id, existing := range s.days {
		if id != day.ID && existing.ProjectID == stored.ProjectID && existing.DateKey() == day.DateKey() {
			return store.ErrDuplicate
		}
	}
	stored.ProjectDate = day.ProjectDate
	stored.LocationID = day.LocationID
	stored.UpdatedAt = s.timestamp()
	s.days[day.ID] = stored
	return nil
}

func (s *state) DeleteProjectDay(_ context.Context, id uint) error {
	defer s.guard()()
	delete(s.days, id)
	return nil
}

func (s *state) CountDayChildren(_ context.Context, dayID uint) (int64, int64, error) {
	defer s.guard()()
	var items, personnel int64
	for _, pi := range s.projectItems {
		if pi.ProjectDayID == dayID {
			items++
		}
	}
	for key := range s.projectPersonnel {
		if key.ProjectDayID == dayID {
			personnel++
		}
	}
	return items, personnel, nil
}

func (s *state) GetLocation(_ context.Context, id uint) (*model.Location, error) {
	defer s.guard()()
	location, ok := s.locations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &location, nil
}

func (s *state) ListActiveLocations(_ context.Context) ([]model.Location, error) {
	defer s.guard()()
	var locations []model.Location
	for _, location := range s.locations {
		if location.IsActive {
			locations = append(locations, location)
		}
	}
	sort.Slice(locations, func(i, j int) bool { return locations[i].Name < locations[j].Name })
	return locations, nil
}

func (s *state) GetItem(_ context.Context, id string) (*model.Item, error) {
	defer s.guard()()
	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *state) LockItem(ctx context.Context, id string) (*model.Item, error) {
	return s.GetItem(ctx, id)
}

func (s *state) ListItems(_ context.Context) ([]model.Item, error) {
	defer s.guard()()
	items := make([]model.Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (s *state) ListAvailableItems(_ context.Context) ([]model.Item, error) {
	defer s.guard()()
	var items []model.Item
	for _, item := range s.items {
		if item.AvailableQuantity <= 0 {
			continue
		}
		if item.Status != "" && item.Status != "active" {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (s *state) AdjustAvailableQuantity(_ context.Context, id string, delta int) error {
	defer s.guard()()
	item, ok := s.items[id]
	if !ok {
		return store.ErrNotFound
	}
	item.AvailableQuantity += delta
	item.UpdatedAt = s.timestamp()
	s.items[id] = item
	return nil
}

func (s *state) SetAvailableQuantity(_ context.Context, id string, quantity int) error {
	defer s.guard()()
	item, ok := s.items[id]
	if !ok {
		return store.ErrNotFound
	}
	item.AvailableQuantity = quantity
	item.UpdatedAt = s.timestamp()
	s.items[id] = item
	return nil
}

func (s *state) CreateProjectItem(_ context.Context, projectItem *model.ProjectItem) error {
	defer s.guard()()
	for _, pi := range s.projectItems {
		if pi.ProjectDayID == projectItem.ProjectDayID && pi.ItemID == projectItem.ItemID {
			return store.ErrDuplicate
		}
	}
	s.nextProjectItemID++
	projectItem.ID = s.nextProjectItemID
	projectItem.CreatedAt = s.timestamp()
	projectItem.UpdatedAt = projectItem.CreatedAt
	stored := *projectItem
	stored.Item = nil
	s.projectItems[projectItem.ID] = stored
	return nil
}

func (s *state) withItem(pi model.ProjectItem) model.ProjectItem {
	if item, ok := s.items[pi.ItemID]; ok {
		pi.Item = &item
	}
	return pi
}

func (s *state) GetProjectItem(_ context.Context, id uint) (*model.ProjectItem, error) {
	defer s.guard()()
	pi, ok := s.projectItems[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	pi = s.withItem(pi)
	return &pi, nil
}

func (s *state) LockProjectItem(_ context.Context, id uint) (*model.ProjectItem, error) {
	defer s.guard()()
	pi, ok := s.projectItems[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &pi, nil
}

func (s *state) FindProjectItem(_ context.Context, dayID uint, itemID string) (*model.ProjectItem, error) {
	defer s.guard()()
	for _, pi := range s.projectItems {
		if pi.ProjectDayID == dayID && pi.ItemID == itemID {
			found := pi
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *state) ListProjectItems(_ context.Context, dayIDs []uint) ([]model.ProjectItem, error) {
	defer s.guard()()
	wanted := make(map[uint]bool, len(dayIDs))
	for _, id := range dayIDs {
		wanted[id] = true
	}
	var result []model.ProjectItem
	for _, pi := range s.projectItems {
		if wanted[pi.ProjectDayID] {
			result = append(result, s.withItem(pi))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ProjectDayID != result[j].ProjectDayID {
			return result[i].ProjectDayID < result[j].ProjectDayID
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *state) UpdateProjectItem(_ context.Context, projectItem *model.ProjectItem) error {
	defer s.guard()()
	stored, ok := s.projectItems[projectItem.ID]
	if !ok {
		return store.ErrNotFound
	}
	stored.AllocatedQuantity = projectItem.AllocatedQuantity
	stored.DamagedQuantity = projectItem.DamagedQuantity
	stored.LostQuantity = projectItem.LostQuantity
	stored.ReturnedQuantity = projectItem.ReturnedQuantity
	stored.Status = projectItem.Status
	stored.UpdatedAt = s.timestamp()
	s.projectItems[projectItem.ID] = stored
	return nil
}

func (s *state) DeleteProjectItem(_ context.Context, id uint) error {
	defer s.guard()()
	if _, ok := s.projectItems[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.projectItems, id)
	return nil
}

func (s *state) OutstandingByItem(_ context.Context) (map[string]int, error) {
	defer s.guard()()
	result := map[string]int{}
	for _, pi := range s.projectItems {
		result[pi.ItemID] += pi.Outstanding()
	}
	return result, nil
}

func (s *state) GetPersonnel(_ context.Context, id uint) (*model.Personnel, error) {
	defer s.guard()()
	personnel, ok := s.personnel[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &personnel, nil
}

func (s *state) ListActivePersonnel(_ context.Context) ([]model.Personnel, error) {
	defer s.guard()()
	var result []model.Personnel
	for _, personnel := range s.personnel {
		if personnel.Status == "active" {
			result = append(result, personnel)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FullName() < result[j].FullName() })
	return result, nil
}

func (s *state) GetRole(_ context.Context, id uint) (*model.Role, error) {
	defer s.guard()()
	role, ok := s.roles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &role, nil
}

func (s *state) ListRoles(_ context.Context) ([]model.Role, error) {
	defer s.guard()()
	roles := make([]model.Role, 0, len(s.roles))
	for _, role := range s.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (s *state) CreateProjectPersonnel(_ context.Context, assignment *model.ProjectPersonnel) error {
	defer s.guard()()
	key := assignment.Key()
	if _, exists := s.projectPersonnel[key]; exists {
		return store.ErrDuplicate
	}
	assignment.CreatedAt = s.timestamp()
	stored := *assignment
	stored.Personnel = nil
	stored.Role = nil
	s.projectPersonnel[key] = stored
	return nil
}

func (s *state) ProjectPersonnelExists(_ context.Context, key model.ProjectPersonnelKey) (bool, error) {
	defer s.guard()()
	_, exists := s.projectPersonnel[key]
	return exists, nil
}

func (s *state) ListProjectPersonnel(_ context.Context, dayIDs []uint) ([]model.ProjectPersonnel, error) {
	defer s.guard()()
	wanted := make(map[uint]bool, len(dayIDs))
	for _, id := range dayIDs {
		wanted[id] = true
	}
	var result []model.ProjectPersonnel
	for key, assignment := range s.projectPersonnel {
		if !wanted[key.ProjectDayID] {
			continue
		}
		if personnel, ok := s.personnel[key.PersonnelID]; ok {
			assignment.Personnel = &personnel
		}
		if role, ok := s.roles[key.RoleID]; ok {
			assignment.Role = &role
		}
		result = append(result, assignment)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.ProjectDayID != b.ProjectDayID {
			return a.ProjectDayID < b.ProjectDayID
		}
		if a.PersonnelID != b.PersonnelID {
			return a.PersonnelID < b.PersonnelID
		}
		return a.RoleID < b.RoleID
	})
	return result, nil
}

func (s *state) DeleteProjectPersonnel(_ context.Context, key model.ProjectPersonnelKey) (int64, error) {
	defer s.guard()()
	if _, exists := s.projectPersonnel[key]; !exists {
		return 0, nil
	}
	delete(s.projectPersonnel, key)
	return 1, nil
}

func (s *state) CreateProjectLog(_ context.Context, entry *model.ProjectLog) error {
	defer s.guard()()
	s.nextLogID++
	entry.ID = s.nextLogID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.timestamp()
	}
	if entry.PublishStatus == "" {
		entry.PublishStatus = model.OutboxStatusPending
	}
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *state) ListProjectLogs(_ context.Context, projectID uint, limit int) ([]model.ProjectLog, error) {
	defer s.guard()()
	var result []model.ProjectLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].ProjectID != projectID {
			continue
		}
		result = append(result, s.logs[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *state) ListPendingLogs(_ context.Context, limit int) ([]model.ProjectLog, error) {
	defer s.guard()()
	if limit <= 0 {
		limit = 100
	}
	var result []model.ProjectLog
	for _, entry := range s.logs {
		if entry.PublishStatus != model.OutboxStatusPending {
			continue
		}
		result = append(result, entry)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *state) MarkLogPublished(_ context.Context, id uint64, publishedAt time.Time) error {
	defer s.guard()()
	for i := range s.logs {
		if s.logs[i].ID == id {
			at := publishedAt
			s.logs[i].PublishStatus = model.OutboxStatusPublished
			s.logs[i].PublishedAt = &at
		}
	}
	return nil
}

func (s *state) MarkLogFailed(_ context.Context, id uint64) error {
	defer s.guard()()
	for i := range s.logs {
		if s.logs[i].ID == id {
			s.logs[i].PublishStatus = model.OutboxStatusFailed
		}
	}
	return nil
}

func (s *state) GetUser(_ context.Context, id uint) (*model.User, error) {
	defer s.guard()()
	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.withPosition(user), nil
}

func (s *state) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	defer s.guard()()
	for _, user := range s.users {
		if user.Username == username {
			return s.withPosition(user), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *state) withPosition(user model.User) *model.User {
	if user.PositionID != nil {
		if position, ok := s.positions[*user.PositionID]; ok {
			user.Position = &position
		}
	}
	return &user
}
