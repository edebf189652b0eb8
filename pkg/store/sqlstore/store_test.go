package sqlstore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/jobtrack/jobtrack/pkg/model"
	"github.com/jobtrack/jobtrack/pkg/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      conn,
		SkipInitializeWithVersion: true,
	}), gormConfig("silent"))
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return New(db), mock
}

func q(sql string) string {
	return "^" + regexp.QuoteMeta(sql) + "$"
}

func TestLockItemInTransactionSelectsForUpdate(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT * FROM `item` WHERE id = ? ORDER BY `item`.`id` LIMIT 1 FOR UPDATE")).
		WithArgs("I-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "available_quantity"}).AddRow("I-1", "Cement", 50))
	mock.ExpectCommit()

	err := s.Transaction(ctx, func(tx store.Repository) error {
		item, err := tx.LockItem(ctx, "I-1")
		if err != nil {
			return err
		}
		assert.Equal(t, 50, item.AvailableQuantity)
		return nil
	})
	require.NoError(t, err)
}

func TestLockItemOutsideTransactionIsPlainRead(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(q("SELECT * FROM `item` WHERE id = ? ORDER BY `item`.`id` LIMIT 1")).
		WithArgs("I-404").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.LockItem(context.Background(), "I-404")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLockProjectItemSelectsForUpdate(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT * FROM `project_item` WHERE id = ? ORDER BY `project_item`.`id` LIMIT 1 FOR UPDATE")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_day_id", "item_id", "allocated_quantity", "returned_quantity"}).
			AddRow(7, 2, "I-1", 10, 4))
	mock.ExpectCommit()

	err := s.Transaction(ctx, func(tx store.Repository) error {
		pi, err := tx.LockProjectItem(ctx, 7)
		if err != nil {
			return err
		}
		assert.Equal(t, 6, pi.Outstanding())
		return nil
	})
	require.NoError(t, err)
}

func TestFindProjectItemLocksInTransaction(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT * FROM `project_item` WHERE project_day_id = ? AND item_id = ? ORDER BY `project_item`.`id` LIMIT 1 FOR UPDATE")).
		WithArgs(2, "I-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := s.Transaction(ctx, func(tx store.Repository) error {
		_, err := tx.FindProjectItem(ctx, 2, "I-1")
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteProjectItemWithoutRowIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM `project_item` WHERE `project_item`.`id` = ?")).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.Transaction(ctx, func(tx store.Repository) error {
		return tx.DeleteProjectItem(ctx, 7)
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteProjectItem(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM `project_item` WHERE `project_item`.`id` = ?")).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Transaction(ctx, func(tx store.Repository) error {
		return tx.DeleteProjectItem(ctx, 7)
	})
	assert.NoError(t, err)
}

func TestUpdateProjectItemWithoutRowIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("^UPDATE `project_item` SET .+ WHERE id = \\?$").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.Transaction(ctx, func(tx store.Repository) error {
		return tx.UpdateProjectItem(ctx, &model.ProjectItem{ID: 7, AllocatedQuantity: 3, Status: model.ProjectItemAllocated})
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateProjectItemDuplicateKey(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("^INSERT INTO `project_item`").
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry '2-I-1' for key 'idx_project_item_day_item'"})
	mock.ExpectRollback()

	err := s.Transaction(ctx, func(tx store.Repository) error {
		return tx.CreateProjectItem(ctx, &model.ProjectItem{ProjectDayID: 2, ItemID: "I-1", AllocatedQuantity: 5, Status: model.ProjectItemAllocated})
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestAdjustAvailableQuantityUsesRelativeUpdate(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE `item` SET `available_quantity`=available_quantity + ?,`updated_at`=? WHERE id = ?")).
		WithArgs(-5, sqlmock.AnyArg(), "I-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE `item` SET `available_quantity`=available_quantity + ?,`updated_at`=? WHERE id = ?")).
		WithArgs(5, sqlmock.AnyArg(), "I-404").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.Transaction(ctx, func(tx store.Repository) error {
		if err := tx.AdjustAvailableQuantity(ctx, "I-1", -5); err != nil {
			return err
		}
		return tx.AdjustAvailableQuantity(ctx, "I-404", 5)
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFindProjectDayComparesCalendarDate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(q("SELECT * FROM `project_day` WHERE project_id = ? AND project_date = ? ORDER BY `project_day`.`id` LIMIT 1")).
		WithArgs(3, "2024-10-01").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "project_date"}).
			AddRow(11, 3, time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)))

	day, err := s.FindProjectDay(context.Background(), 3, time.Date(2024, 10, 1, 23, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, uint(11), day.ID)
	assert.Equal(t, "2024-10-01", day.DateKey())
}

func TestOutstandingByItem(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("^SELECT item_id, COALESCE\\(SUM\\(allocated_quantity - returned_quantity\\), 0\\) AS outstanding FROM `project_item` GROUP BY `?item_id`?$").
		WillReturnRows(sqlmock.NewRows([]string{"item_id", "outstanding"}).
			AddRow("I-1", 20).
			AddRow("I-2", 3))

	outstanding, err := s.OutstandingByItem(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"I-1": 20, "I-2": 3}, outstanding)
}

func TestTranslate(t *testing.T) {
	assert.ErrorIs(t, translate(gorm.ErrRecordNotFound), store.ErrNotFound)
	assert.ErrorIs(t, translate(gorm.ErrDuplicatedKey), store.ErrDuplicate)

	other := errors.New("connection reset")
	assert.Equal(t, other, translate(other))
	assert.NoError(t, translate(nil))
}
