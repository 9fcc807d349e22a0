package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return db, mock
}

var packageColumns = []string{"id", "coach_id", "client_id", "count", "version"}

func TestWorkoutRepository_MarkConsumed(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("条件翻转成功", func(t *testing.T) {
		db, mock := newTestDB(t)
		repo := NewWorkoutRepository(db)

		// consumed 的翻转必须带 WHERE consumed = ? 条件
		mock.ExpectExec("UPDATE `workout` SET .+ WHERE id = \\? AND consumed = \\?").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.MarkConsumed(ctx, nil, 10, now)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("已核销返回ErrWorkoutConsumed", func(t *testing.T) {
		db, mock := newTestDB(t)
		repo := NewWorkoutRepository(db)

		mock.ExpectExec("UPDATE `workout` SET .+ WHERE id = \\? AND consumed = \\?").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT \\* FROM `workout` WHERE id = \\?").
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "workout_no", "coach_id", "client_id", "consumed"}).
				AddRow(10, "WKT1001", 1, 2, true))

		err := repo.MarkConsumed(ctx, nil, 10, now)
		assert.ErrorIs(t, err, ErrWorkoutConsumed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("训练不存在返回ErrWorkoutNotFound", func(t *testing.T) {
		db, mock := newTestDB(t)
		repo := NewWorkoutRepository(db)

		mock.ExpectExec("UPDATE `workout` SET .+ WHERE id = \\? AND consumed = \\?").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT \\* FROM `workout` WHERE id = \\?").
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		err := repo.MarkConsumed(ctx, nil, 10, now)
		assert.ErrorIs(t, err, ErrWorkoutNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPackageRepository_Deduct(t *testing.T) {
	ctx := context.Background()

	t.Run("允许负余额时不带下限条件", func(t *testing.T) {
		db, mock := newTestDB(t)
		repo := NewPackageRepository(db)

		mock.ExpectExec("UPDATE `client_package` SET .+ WHERE coach_id = \\? AND client_id = \\? AND version = \\?$").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Deduct(ctx, nil, 1, 2, 3, true)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("禁止负余额时课时不足", func(t *testing.T) {
		db, mock := newTestDB(t)
		repo := NewPackageRepository(db)

		mock.ExpectExec("UPDATE `client_package` SET .+ WHERE coach_id = \\? AND client_id = \\? AND version = \\? AND count >= 1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT \\* FROM `client_package` WHERE coach_id = \\? AND client_id = \\?").
			WithArgs(int64(1), int64(2)).
			WillReturnRows(sqlmock.NewRows(packageColumns).AddRow(5, 1, 2, 0, 3))

		err := repo.Deduct(ctx, nil, 1, 2, 3, false)
		assert.ErrorIs(t, err, ErrCreditNotEnough)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("版本冲突返回乐观锁错误", func(t *testing.T) {
		db, mock := newTestDB(t)
		repo := NewPackageRepository(db)

		mock.ExpectExec("UPDATE `client_package` SET .+ WHERE coach_id = \\? AND client_id = \\? AND version = \\?").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT \\* FROM `client_package` WHERE coach_id = \\? AND client_id = \\?").
			WithArgs(int64(1), int64(2)).
			WillReturnRows(sqlmock.NewRows(packageColumns).AddRow(5, 1, 2, 4, 9))

		err := repo.Deduct(ctx, nil, 1, 2, 3, true)
		assert.ErrorIs(t, err, ErrOptimisticLock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPackageRepository_AddDelta(t *testing.T) {
	ctx := context.Background()

	t.Run("课时包不存在", func(t *testing.T) {
		db, mock := newTestDB(t)
		repo := NewPackageRepository(db)

		mock.ExpectExec("UPDATE `client_package` SET .+ WHERE coach_id = \\? AND client_id = \\? AND version = \\?").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT \\* FROM `client_package` WHERE coach_id = \\? AND client_id = \\?").
			WithArgs(int64(1), int64(2)).
			WillReturnRows(sqlmock.NewRows(packageColumns))

		err := repo.AddDelta(ctx, nil, 1, 2, 5, 0)
		assert.ErrorIs(t, err, ErrPackageNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestHistoryRepository_SumDelta(t *testing.T) {
	ctx := context.Background()

	db, mock := newTestDB(t)
	repo := NewHistoryRepository(db)

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(delta\\), 0\\) FROM `package_history` WHERE coach_id = \\? AND client_id = \\?").
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(3))

	sum, err := repo.SumDelta(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}
