// Package memory provides an in-memory implementation of store.Store used by
// tests and local demos. Transactions run against a copy of the state that
// replaces the live state on commit, so a failed transaction leaves no trace.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jobtrack/jobtrack/pkg/model"
	"github.com/jobtrack/jobtrack/pkg/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	*state
	mu sync.Mutex
}

func New() *Store {
	s := &Store{}
	s.state = newState(&s.mu)
	return s
}

func (s *Store) Transaction(ctx context.Context, fn func(tx store.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.state.clone()
	if err := fn(working); err != nil {
		return err
	}

	working.mu = &s.mu
	*s.state = *working
	return nil
}

// SetClock overrides the timestamp source for created rows.
func (s *Store) SetClock(now func() time.Time) {
	defer s.guard()()
	s.now = now
}

type state struct {
	mu  *sync.Mutex
	now func() time.Time

	nextProjectID     uint
	nextDayID         uint
	nextProjectItemID uint
	nextLogID         uint64

	projects         map[uint]model.Project
	days             map[uint]model.ProjectDay
	locations        map[uint]model.Location
	items            map[string]model.Item
	projectItems     map[uint]model.ProjectItem
	personnel        map[uint]model.Personnel
	roles            map[uint]model.Role
	projectPersonnel map[model.ProjectPersonnelKey]model.ProjectPersonnel
	logs             []model.ProjectLog
	users            map[uint]model.User
	positions        map[uint]model.Position
}

func newState(mu *sync.Mutex) *state {
	return &state{
		mu:               mu,
		now:              time.Now,
		projects:         map[uint]model.Project{},
		days:             map[uint]model.ProjectDay{},
		locations:        map[uint]model.Location{},
		items:            map[string]model.Item{},
		projectItems:     map[uint]model.ProjectItem{},
		personnel:        map[uint]model.Personnel{},
		roles:            map[uint]model.Role{},
		projectPersonnel: map[model.ProjectPersonnelKey]model.ProjectPersonnel{},
		users:            map[uint]model.User{},
		positions:        map[uint]model.Position{},
	}
}

// guard locks the store mutex for states that are live. Working copies
// inside a transaction carry no mutex since the transaction already holds it.
func (s *state) guard() func() {
	if s.mu == nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *state) clone() *state {
	c := &state{
		now:               s.now,
		nextProjectID:     s.nextProjectID,
		nextDayID:         s.nextDayID,
		nextProjectItemID: s.nextProjectItemID,
		nextLogID:         s.nextLogID,
		projects:          cloneMap(s.projects),
		days:              cloneMap(s.days),
		locations:         cloneMap(s.locations),
		items:             cloneMap(s.items),
		projectItems:      cloneMap(s.projectItems),
		personnel:         cloneMap(s.personnel),
		roles:             cloneMap(s.roles),
		projectPersonnel:  cloneMap(s.projectPersonnel),
		logs:              append([]model.ProjectLog(nil), s.logs...),
		users:             cloneMap(s.users),
		positions:         cloneMap(s.positions),
	}
	return c
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *state) timestamp() time.Time {
	return s.now().UTC()
}

// Seeding helpers. They bypass validation and are meant for tests and demos.

func (s *Store) PutItem(item model.Item) {
	defer s.guard()()
	s.items[item.ID] = item
}

func (s *Store) PutLocation(location model.Location) {
	defer s.guard()()
	s.locations[location.ID] = location
}

func (s *Store) PutPersonnel(personnel model.Personnel) {
	defer s.guard()()
	if personnel.Status == "" {
		personnel.Status = "active"
	}
	s.personnel[personnel.ID] = personnel
}

func (s *Store) PutRole(role model.Role) {
	defer s.guard()()
	s.roles[role.ID] = role
}

func (s *Store) PutPosition(position model.Position) {
	defer s.guard()()
	s.positions[position.ID] = position
}

func (s *Store) PutUser(user model.User) {
	defer s.guard()()
	s.users[user.ID] = user
}

// Logs returns every log entry in insertion order.
func (s *Store) Logs() []model.ProjectLog {
	defer s.guard()()
	return append([]model.ProjectLog(nil), s.logs...)
}
