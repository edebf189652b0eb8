package allocation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/jobtrack/jobtrack/pkg/activity"
	"github.com/jobtrack/jobtrack/pkg/apperr"
	"github.com/jobtrack/jobtrack/pkg/metrics"
	"github.com/jobtrack/jobtrack/pkg/model"
	"github.com/jobtrack/jobtrack/pkg/store"
)

const (
	ResultAdded         = "added"
	ResultUpdated       = "updated"
	ResultAlreadyExists = "already_exists"
	ResultError         = "error"
)

type ItemAssignment struct {
	ItemID            string
	AllocatedQuantity int
	Status            model.ProjectItemStatus
}

type AddItemsInput struct {
	JONumber      string
	ProjectDayIDs []uint
	Assignments   []ItemAssignment
}

// ItemResult reports the outcome for one (day, item) pair. Rejected
// assignments produce a single result with no project day.
type ItemResult struct {
	ProjectDayID      uint   `json:"project_day_id,omitempty"`
	ItemID            string `json:"item_id"`
	ProjectItemID     uint   `json:"project_item_id,omitempty"`
	AllocatedQuantity int    `json:"allocated_quantity,omitempty"`
	Status            string `json:"status"`
	Message           string `json:"message,omitempty"`
}

// AddProjectItems allocates every assignment to every listed day. An
// assignment whose item is unknown or lacks stock for all days is reported as
// an error and skipped while the others are committed. Adding an item to a
// day that already has it increases the existing allocation.
func (s *Service) AddProjectItems(ctx context.Context, in AddItemsInput, actor *uint) ([]ItemResult, error) {
	if len(in.Assignments) == 0 {
		return nil, apperr.Validation("At least one item assignment is required")
	}
	for _, a := range in.Assignments {
		if a.ItemID == "" {
			return nil, apperr.Validation("item_id is required")
		}
		if a.AllocatedQuantity <= 0 {
			return nil, apperr.Validation("allocated_quantity for item %s must be greater than zero", a.ItemID)
		}
		if a.AllocatedQuantity > model.MaxQuantity {
			return nil, apperr.Validation("allocated_quantity for item %s cannot exceed %d", a.ItemID, model.MaxQuantity)
		}
		if a.Status != "" && !a.Status.Valid() {
			return nil, apperr.Validation("Invalid status %q for item %s", a.Status, a.ItemID)
		}
	}

	release, err := s.lock(ctx, in.JONumber)
	if err != nil {
		return nil, err
	}
	defer release()

	var results []ItemResult
	var project *model.Project
	var moved int

	err = s.store.Transaction(ctx, func(tx store.Repository) error {
		results = results[:0]
		moved = 0

		var err error
		project, err = s.resolveProject(ctx, tx, in.JONumber)
		if err != nil {
			return err
		}
		days, err := loadProjectDays(ctx, tx, project, in.ProjectDayIDs)
		if err != nil {
			return err
		}
		items, err := lockItems(ctx, tx, in.Assignments)
		if err != nil {
			return err
		}

		var lines []activity.ItemLine
		for _, assignment := range in.Assignments {
			item, ok := items[assignment.ItemID]
			if !ok {
				results = append(results, ItemResult{
					ItemID:  assignment.ItemID,
					Status:  ResultError,
					Message: "Item not found",
				})
				continue
			}

			totalNeeded, ok := multiplyQuantity(assignment.AllocatedQuantity, len(days))
			if !ok || item.AvailableQuantity < totalNeeded {
				results = append(results, ItemResult{
					ItemID:  assignment.ItemID,
					Status:  ResultError,
					Message: fmt.Sprintf("Insufficient quantity. Available: %d, Needed: %d", item.AvailableQuantity, totalNeeded),
				})
				continue
			}

			existing, err := findDayItems(ctx, tx, days, assignment.ItemID)
			if err != nil {
				return err
			}
			if day, over := exceedsMaxQuantity(days, existing, assignment.AllocatedQuantity); over {
				results = append(results, ItemResult{
					ProjectDayID: day.ID,
					ItemID:       assignment.ItemID,
					Status:       ResultError,
					Message:      fmt.Sprintf("Allocated quantity on %s cannot exceed %d", day.DateKey(), model.MaxQuantity),
				})
				continue
			}

			for _, day := range days {
				result, err := allocateToDay(ctx, tx, day.ID, existing[day.ID], assignment)
				if err != nil {
					return err
				}
				results = append(results, result)
			}

			if err := tx.AdjustAvailableQuantity(ctx, item.ID, -totalNeeded); err != nil {
				return fmt.Errorf("adjust available quantity of item %s: %w", item.ID, err)
			}
			item.AvailableQuantity -= totalNeeded
			moved += totalNeeded
			lines = append(lines, activity.ItemLine{
				ItemID:   item.ID,
				Name:     item.Name,
				Quantity: assignment.AllocatedQuantity,
			})
		}

		if len(lines) == 0 {
			return nil
		}
		return s.writeLog(ctx, tx, activity.ItemsAdded(project.ID, dayDates(days), lines, actor))
	})
	if err != nil {
		return nil, err
	}

	for _, result := range results {
		metrics.AllocationResults.WithLabelValues("item", result.Status).Inc()
	}
	metrics.RecordAdjustment(-moved)
	s.notify(ctx, project, "items")
	return results, nil
}

// lockItems locks every distinct item of the batch in id order, so that
// concurrent batches listing the same items cannot deadlock. Unknown items
// are absent from the result.
func lockItems(ctx context.Context, tx store.Repository, assignments []ItemAssignment) (map[string]*model.Item, error) {
	ids := make([]string, 0, len(assignments))
	seen := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		if !seen[a.ItemID] {
			seen[a.ItemID] = true
			ids = append(ids, a.ItemID)
		}
	}
	sort.Strings(ids)

	items := make(map[string]*model.Item, len(ids))
	for _, id := range ids {
		item, err := tx.LockItem(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lock item %s: %w", id, err)
		}
		items[id] = item
	}
	return items, nil
}

// multiplyQuantity returns qty*n, or false when the product overflows.
func multiplyQuantity(qty, n int) (int, bool) {
	if n > 0 && qty > math.MaxInt/n {
		return 0, false
	}
	return qty * n, true
}

func findDayItems(ctx context.Context, tx store.Repository, days []model.ProjectDay, itemID string) (map[uint]*model.ProjectItem, error) {
	existing := make(map[uint]*model.ProjectItem, len(days))
	for _, day := range days {
		pi, err := tx.FindProjectItem(ctx, day.ID, itemID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("find project item: %w", err)
		}
		existing[day.ID] = pi
	}
	return existing, nil
}

func exceedsMaxQuantity(days []model.ProjectDay, existing map[uint]*model.ProjectItem, qty int) (model.ProjectDay, bool) {
	for _, day := range days {
		if pi, ok := existing[day.ID]; ok && pi.AllocatedQuantity > model.MaxQuantity-qty {
			return day, true
		}
	}
	return model.ProjectDay{}, false
}

func allocateToDay(ctx context.Context, tx store.Repository, dayID uint, existing *model.ProjectItem, assignment ItemAssignment) (ItemResult, error) {
	if existing != nil {
		existing.AllocatedQuantity += assignment.AllocatedQuantity
		if err := tx.UpdateProjectItem(ctx, existing); err != nil {
			return ItemResult{}, fmt.Errorf("update project item %d: %w", existing.ID, err)
		}
		return ItemResult{
			ProjectDayID:      dayID,
			ItemID:            assignment.ItemID,
			ProjectItemID:     existing.ID,
			AllocatedQuantity: existing.AllocatedQuantity,
			Status:            ResultUpdated,
		}, nil
	}

	status := assignment.Status
	if status == "" {
		status = model.ProjectItemAllocated
	}
	projectItem := &model.ProjectItem{
		ProjectDayID:      dayID,
		ItemID:            assignment.ItemID,
		AllocatedQuantity: assignment.AllocatedQuantity,
		Status:            status,
	}
	err := tx.CreateProjectItem(ctx, projectItem)
	if errors.Is(err, store.ErrDuplicate) {
		return ItemResult{}, apperr.Conflict("Item %s was allocated to this day by another request, try again", assignment.ItemID)
	}
	if err != nil {
		return ItemResult{}, fmt.Errorf("create project item: %w", err)
	}
	return ItemResult{
		ProjectDayID:      dayID,
		ItemID:            assignment.ItemID,
		ProjectItemID:     projectItem.ID,
		AllocatedQuantity: projectItem.AllocatedQuantity,
		Status:            ResultAdded,
	}, nil
}

// ItemUpdate holds the fields of a project item to overwrite. Nil fields are
// left unchanged.
type ItemUpdate struct {
	AllocatedQuantity *int
	DamagedQuantity   *int
	LostQuantity      *int
	ReturnedQuantity  *int
	Status            *model.ProjectItemStatus
}

// UpdateProjectItem applies a partial update and moves the difference in
// outstanding quantity (allocated minus returned) in or out of inventory.
func (s *Service) UpdateProjectItem(ctx context.Context, id uint, in ItemUpdate, actor *uint) (*model.ProjectItem, error) {
	if in.Status != nil && !in.Status.Valid() {
		return nil, apperr.Validation("Invalid status %q", *in.Status)
	}

	var updated *model.ProjectItem
	var project *model.Project
	var delta int

	err := s.store.Transaction(ctx, func(tx store.Repository) error {
		current, item, err := lockProjectItem(ctx, tx, id)
		if err != nil {
			return err
		}

		day, err := tx.GetProjectDay(ctx, current.ProjectDayID)
		if err != nil {
			return fmt.Errorf("load project day %d: %w", current.ProjectDayID, err)
		}
		project, err = tx.GetProject(ctx, day.ProjectID)
		if err != nil {
			return fmt.Errorf("load project %d: %w", day.ProjectID, err)
		}

		next := *current
		next.Item = nil
		applyItemUpdate(&next, in)
		if err := validateQuantities(&next); err != nil {
			return err
		}

		delta = current.Outstanding() - next.Outstanding()
		if delta < 0 && item.AvailableQuantity < -delta {
			return apperr.Validation("Insufficient quantity. Available: %d, Needed: %d", item.AvailableQuantity, -delta)
		}

		if err := tx.UpdateProjectItem(ctx, &next); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.NotFound("Project item not found")
			}
			return fmt.Errorf("update project item %d: %w", id, err)
		}
		if delta != 0 {
			if err := tx.AdjustAvailableQuantity(ctx, item.ID, delta); err != nil {
				return fmt.Errorf("adjust available quantity of item %s: %w", item.ID, err)
			}
		}

		updated, err = tx.GetProjectItem(ctx, id)
		if err != nil {
			return fmt.Errorf("reload project item %d: %w", id, err)
		}

		before := activity.SnapshotItem(current, item.Name)
		after := activity.SnapshotItem(updated, item.Name)
		if entry, changed := activity.ItemUpdated(project.ID, day.ID, id, before, after, actor); changed {
			return s.writeLog(ctx, tx, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordAdjustment(delta)
	s.notify(ctx, project, "items")
	return updated, nil
}

// DeleteProjectItem removes an allocation and credits its outstanding
// quantity back to the item.
func (s *Service) DeleteProjectItem(ctx context.Context, id uint, actor *uint) error {
	var project *model.Project
	var restored int

	err := s.store.Transaction(ctx, func(tx store.Repository) error {
		current, item, err := lockProjectItem(ctx, tx, id)
		if err != nil {
			return err
		}

		day, err := tx.GetProjectDay(ctx, current.ProjectDayID)
		if err != nil {
			return fmt.Errorf("load project day %d: %w", current.ProjectDayID, err)
		}
		project, err = tx.GetProject(ctx, day.ProjectID)
		if err != nil {
			return fmt.Errorf("load project %d: %w", day.ProjectID, err)
		}

		restored = current.Outstanding()
		if restored != 0 {
			if err := tx.AdjustAvailableQuantity(ctx, item.ID, restored); err != nil {
				return fmt.Errorf("adjust available quantity of item %s: %w", item.ID, err)
			}
		}
		if err := tx.DeleteProjectItem(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.NotFound("Project item not found")
			}
			return fmt.Errorf("delete project item %d: %w", id, err)
		}

		snap := activity.DaySnapshot{Date: day.ProjectDate, LocationID: day.LocationID}
		return s.writeLog(ctx, tx, activity.ItemRemoved(project.ID, id, snap, activity.SnapshotItem(current, item.Name), actor))
	})
	if err != nil {
		return err
	}

	metrics.RecordAdjustment(restored)
	s.notify(ctx, project, "items")
	return nil
}

// lockProjectItem locks the item row and then re-reads the project item with
// a locking read, so the returned row cannot change or disappear before the
// transaction ends. Item rows are always locked before project item rows.
func lockProjectItem(ctx context.Context, tx store.Repository, id uint) (*model.ProjectItem, *model.Item, error) {
	peek, err := tx.GetProjectItem(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperr.NotFound("Project item not found")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load project item %d: %w", id, err)
	}

	item, err := tx.LockItem(ctx, peek.ItemID)
	if err != nil {
		return nil, nil, fmt.Errorf("lock item %s: %w", peek.ItemID, err)
	}

	current, err := tx.LockProjectItem(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperr.NotFound("Project item not found")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lock project item %d: %w", id, err)
	}
	return current, item, nil
}

func applyItemUpdate(pi *model.ProjectItem, in ItemUpdate) {
	if in.AllocatedQuantity != nil {
		pi.AllocatedQuantity = *in.AllocatedQuantity
	}
	if in.DamagedQuantity != nil {
		pi.DamagedQuantity = *in.DamagedQuantity
	}
	if in.LostQuantity != nil {
		pi.LostQuantity = *in.LostQuantity
	}
	if in.ReturnedQuantity != nil {
		pi.ReturnedQuantity = *in.ReturnedQuantity
	}
	if in.Status != nil {
		pi.Status = *in.Status
	}
}

func validateQuantities(pi *model.ProjectItem) error {
	if pi.AllocatedQuantity < 0 || pi.DamagedQuantity < 0 || pi.LostQuantity < 0 || pi.ReturnedQuantity < 0 {
		return apperr.Validation("Quantities cannot be negative")
	}
	if pi.AllocatedQuantity > model.MaxQuantity || pi.DamagedQuantity > model.MaxQuantity ||
		pi.LostQuantity > model.MaxQuantity || pi.ReturnedQuantity > model.MaxQuantity {
		return apperr.Validation("Quantities cannot exceed %d", model.MaxQuantity)
	}
	if pi.ReturnedQuantity > pi.AllocatedQuantity {
		return apperr.Validation("Returned quantity cannot exceed allocated quantity")
	}
	return nil
}
