package service

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Ezhevenko/coachlog/internal/config"
)

// newTestDB 用 sqlmock 驱动 gorm，不依赖真实 MySQL
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

func newTestConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				CreditChanged:   "test.credit.changed",
				WorkoutConsumed: "test.workout.consumed",
			},
		},
		Business: config.BusinessConfig{
			SweepIntervalSeconds: 60,
			SweepBatchSize:       100,
			StrictMissingPackage: false,
			AllowNegativeBalance: true,
			MaxRetryCount:        3,
		},
	}
}

var workoutColumns = []string{
	"id", "workout_no", "request_id", "coach_id", "client_id",
	"date", "time_start", "duration_minutes", "consumed", "consumed_at",
}

func workoutRow(id int64, workoutNo string, coachID, clientID int64, date, timeStart string, consumed bool) *sqlmock.Rows {
	return sqlmock.NewRows(workoutColumns).
		AddRow(id, workoutNo, "req-"+workoutNo, coachID, clientID, date, timeStart, 60, consumed, nil)
}

var packageColumns = []string{"id", "coach_id", "client_id", "count", "version"}

func packageRow(id, coachID, clientID, count int64, version int) *sqlmock.Rows {
	return sqlmock.NewRows(packageColumns).
		AddRow(id, coachID, clientID, count, version)
}

const minuteOffset = time.Minute

// workoutClock 返回 now 偏移 offset 之后的日期和时间字符串
func workoutClock(offset time.Duration) (string, string) {
	at := time.Now().Add(offset)
	return at.Format("2006-01-02"), at.Format("15:04")
}
