package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumeService_SweepDueWorkouts(t *testing.T) {
	ctx := context.Background()

	t.Run("只核销已到期的训练", func(t *testing.T) {
		// 一分钟前的训练要核销，一分钟后的训练原样保留
		db, mock := newTestDB(t)
		rdb, _ := redismock.NewClientMock()
		svc := NewConsumeService(db, rdb, newTestConfig())

		dueDate, dueTime := workoutClock(-minuteOffset)
		futureDate, futureTime := workoutClock(minuteOffset)

		rows := workoutRow(10, "WKT1001", 1, 2, dueDate, dueTime, false).
			AddRow(11, "WKT1002", "req-WKT1002", 1, 3, futureDate, futureTime, 60, false, nil)
		mock.ExpectQuery("SELECT \\* FROM `workout` WHERE coach_id = \\? AND consumed = \\?").
			WillReturnRows(rows)

		// 只有到期的那条走核销事务
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE `workout` SET .+ WHERE id = \\? AND consumed = \\?").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT \\* FROM `client_package` WHERE coach_id = \\? AND client_id = \\?").
			WithArgs(int64(1), int64(2)).
			WillReturnRows(packageRow(5, 1, 2, 2, 0))
		mock.ExpectExec("UPDATE `client_package` SET .+ WHERE coach_id = \\? AND client_id = \\? AND version = \\?").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO `package_history`").
			WithArgs(sqlmock.AnyArg(), int64(1), int64(2), "WKT1001", int64(-1), "CONSUME", int64(1), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO `outbox_message`").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		result, err := svc.SweepDueWorkouts(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Processed)
		assert.Equal(t, 0, result.Failed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("没有开始时间的训练按当天零点到期", func(t *testing.T) {
		db, mock := newTestDB(t)
		rdb, _ := redismock.NewClientMock()
		svc := NewConsumeService(db, rdb, newTestConfig())

		today, _ := workoutClock(0)
		mock.ExpectQuery("SELECT \\* FROM `workout` WHERE coach_id = \\? AND consumed = \\?").
			WillReturnRows(workoutRow(10, "WKT1001", 1, 2, today, "", false))

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE `workout` SET .+ WHERE id = \\? AND consumed = \\?").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT \\* FROM `client_package` WHERE coach_id = \\? AND client_id = \\?").
			WillReturnRows(packageRow(5, 1, 2, 1, 0))
		mock.ExpectExec("UPDATE `client_package` SET .+").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO `package_history`").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO `outbox_message`").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		result, err := svc.SweepDueWorkouts(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Processed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("单个训练失败不中断整批", func(t *testing.T) {
		db, mock := newTestDB(t)
		rdb, _ := redismock.NewClientMock()
		svc := NewConsumeService(db, rdb, newTestConfig())

		dueDate, dueTime := workoutClock(-minuteOffset)
		rows := workoutRow(10, "WKT1001", 1, 2, dueDate, dueTime, false).
			AddRow(11, "WKT1002", "req-WKT1002", 1, 3, dueDate, dueTime, 60, false, nil)
		mock.ExpectQuery("SELECT \\* FROM `workout` WHERE coach_id = \\? AND consumed = \\?").
			WillReturnRows(rows)

		// 第一条：条件更新报存储错误，事务回滚
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE `workout` SET .+ WHERE id = \\? AND consumed = \\?").
			WillReturnError(assert.AnError)
		mock.ExpectRollback()

		// 第二条：正常核销
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE `workout` SET .+ WHERE id = \\? AND consumed = \\?").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT \\* FROM `client_package` WHERE coach_id = \\? AND client_id = \\?").
			WithArgs(int64(1), int64(3)).
			WillReturnRows(packageRow(6, 1, 3, 2, 0))
		mock.ExpectExec("UPDATE `client_package` SET .+").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO `package_history`").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO `outbox_message`").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		result, err := svc.SweepDueWorkouts(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Processed)
		assert.Equal(t, 1, result.Failed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
