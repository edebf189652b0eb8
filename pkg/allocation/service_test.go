package allocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobtrack/jobtrack/pkg/apperr"
	"github.com/jobtrack/jobtrack/pkg/eventbus"
	"github.com/jobtrack/jobtrack/pkg/model"
	"github.com/jobtrack/jobtrack/pkg/store"
	"github.com/jobtrack/jobtrack/pkg/store/memory"
	redisclient "github.com/jobtrack/jobtrack/pkg/store/redis"
)

var testNow = time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	events []eventbus.ProjectEvent
}

func (n *recordingNotifier) PublishProjectChanged(_ context.Context, change eventbus.ProjectEvent) error {
	n.events = append(n.events, change)
	return nil
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *memory.Store
	svc      *Service
	notifier *recordingNotifier
	project  *model.Project
	day      *model.ProjectDay
	actor    *uint
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	st := memory.New()
	st.SetClock(func() time.Time { return testNow })
	seedCatalog(st)

	notifier := &recordingNotifier{}
	opts = append([]Option{
		WithClock(func() time.Time { return testNow }),
		WithLocation(time.UTC),
		WithNotifier(notifier),
	}, opts...)

	actor := uint(1)
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		store:    st,
		svc:      NewService(st, zap.NewNop(), opts...),
		notifier: notifier,
		actor:    &actor,
	}

	project, err := f.svc.CreateProject(f.ctx, ProjectInput{JONumber: "JO-2024-001", Name: "Tower A"}, f.actor)
	require.NoError(t, err)
	f.project = project
	f.day = f.addDay("2024-10-01", nil)
	f.notifier.events = nil
	return f
}

func seedCatalog(st *memory.Store) {
	st.PutItem(model.Item{ID: "I-1", Type: model.ItemMaterial, Name: "Cement", DeliveredQuantity: 50, AvailableQuantity: 50})
	st.PutItem(model.Item{ID: "I-2", Type: model.ItemProduct, Name: "Rebar", DeliveredQuantity: 10, AvailableQuantity: 10})
	st.PutLocation(model.Location{ID: 1, Name: "North Yard", IsActive: true})
	st.PutLocation(model.Location{ID: 2, Name: "South Gate", IsActive: true})
	st.PutLocation(model.Location{ID: 3, Name: "Old Depot", IsActive: false})
	st.PutPersonnel(model.Personnel{ID: 3, FirstName: "Ana", LastName: "Cruz"})
	st.PutPersonnel(model.Personnel{ID: 4, FirstName: "Ben", LastName: "Lim"})
	st.PutPersonnel(model.Personnel{ID: 5, FirstName: "Carl", LastName: "Diaz", Status: "inactive"})
	st.PutRole(model.Role{ID: 1, Name: "Rigger"})
	st.PutRole(model.Role{ID: 2, Name: "Foreman"})
}

func (f *fixture) addDay(date string, locationID *uint) *model.ProjectDay {
	f.t.Helper()
	parsed, err := ParseDate(date)
	require.NoError(f.t, err)
	day, err := f.svc.AddProjectDay(f.ctx, f.project.ID, DayInput{Date: parsed, LocationID: locationID}, f.actor)
	require.NoError(f.t, err)
	return day
}

func (f *fixture) available(itemID string) int {
	f.t.Helper()
	item, err := f.store.GetItem(f.ctx, itemID)
	require.NoError(f.t, err)
	return item.AvailableQuantity
}

func (f *fixture) allocate(itemID string, qty int, dayIDs ...uint) []ItemResult {
	f.t.Helper()
	if len(dayIDs) == 0 {
		dayIDs = []uint{f.day.ID}
	}
	results, err := f.svc.AddProjectItems(f.ctx, AddItemsInput{
		JONumber:      f.project.JONumber,
		ProjectDayIDs: dayIDs,
		Assignments:   []ItemAssignment{{ItemID: itemID, AllocatedQuantity: qty}},
	}, f.actor)
	require.NoError(f.t, err)
	return results
}

func (f *fixture) projectItems() []model.ProjectItem {
	f.t.Helper()
	days, err := f.store.ListProjectDays(f.ctx, f.project.ID)
	require.NoError(f.t, err)
	ids := make([]uint, 0, len(days))
	for _, d := range days {
		ids = append(ids, d.ID)
	}
	items, err := f.store.ListProjectItems(f.ctx, ids)
	require.NoError(f.t, err)
	return items
}

func (f *fixture) logCount() int {
	return len(f.store.Logs())
}

func uintPtr(v uint) *uint { return &v }

func intPtr(v int) *int { return &v }

type failingLogStore struct {
	*memory.Store
}

func (s failingLogStore) Transaction(ctx context.Context, fn func(tx store.Repository) error) error {
	return s.Store.Transaction(ctx, func(tx store.Repository) error {
		return fn(failingLogRepo{tx})
	})
}

type failingLogRepo struct {
	store.Repository
}

func (failingLogRepo) CreateProjectLog(context.Context, *model.ProjectLog) error {
	return errors.New("disk full")
}

func TestMutationRollsBackWhenLogWriteFails(t *testing.T) {
	f := newFixture(t)
	svc := NewService(failingLogStore{f.store}, zap.NewNop(), WithClock(func() time.Time { return testNow }))

	_, err := svc.AddProjectItems(f.ctx, AddItemsInput{
		JONumber:      f.project.JONumber,
		ProjectDayIDs: []uint{f.day.ID},
		Assignments:   []ItemAssignment{{ItemID: "I-1", AllocatedQuantity: 20}},
	}, nil)

	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, 50, f.available("I-1"))
	assert.Empty(t, f.projectItems())
}

type stubLocker struct {
	err      error
	keys     []string
	released int
}

func (l *stubLocker) Obtain(_ context.Context, key string) (func(), error) {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return nil, l.err
	}
	return func() { l.released++ }, nil
}

func TestAddProjectItemsTakesJobOrderLock(t *testing.T) {
	locker := &stubLocker{}
	f := newFixture(t, WithLocker(locker))

	f.allocate("I-1", 5)

	assert.Equal(t, []string{"jo:JO-2024-001"}, locker.keys)
	assert.Equal(t, 1, locker.released)
}

func TestAddProjectItemsLockContention(t *testing.T) {
	locker := &stubLocker{err: redisclient.ErrLockNotObtained}
	f := newFixture(t, WithLocker(locker))

	_, err := f.svc.AddProjectItems(f.ctx, AddItemsInput{
		JONumber:      f.project.JONumber,
		ProjectDayIDs: []uint{f.day.ID},
		Assignments:   []ItemAssignment{{ItemID: "I-1", AllocatedQuantity: 5}},
	}, nil)

	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, 50, f.available("I-1"))
}

func TestMutationsNotifySubscribers(t *testing.T) {
	f := newFixture(t)

	f.allocate("I-1", 5)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, eventbus.ProjectEvent{ProjectID: f.project.ID, JONumber: "JO-2024-001", Change: "items"}, f.notifier.events[0])
}
