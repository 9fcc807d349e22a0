package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkoutDueAt(t *testing.T) {
	t.Run("日期加开始时间", func(t *testing.T) {
		w := &Workout{Date: "2024-05-10", TimeStart: "14:30"}
		due, err := w.DueAt()
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 5, 10, 14, 30, 0, 0, time.Local), due)
	})

	t.Run("没有开始时间按当天零点", func(t *testing.T) {
		w := &Workout{Date: "2024-05-10"}
		due, err := w.DueAt()
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.Local), due)
	})

	t.Run("日期非法报错", func(t *testing.T) {
		w := &Workout{Date: "05/10/2024", TimeStart: "14:30"}
		_, err := w.DueAt()
		assert.Error(t, err)
	})
}

func TestWorkoutIsDue(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.Local)

	tests := []struct {
		name      string
		date      string
		timeStart string
		want      bool
	}{
		{"一分钟前已到期", "2024-05-10", "11:59", true},
		{"一分钟后未到期", "2024-05-10", "12:01", false},
		{"恰好当前时刻算到期", "2024-05-10", "12:00", true},
		{"当天无开始时间算到期", "2024-05-10", "", true},
		{"次日无开始时间未到期", "2024-05-11", "", false},
		{"前一天晚上已到期", "2024-05-09", "23:00", true},
		{"日期非法不到期", "bad-date", "10:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &Workout{Date: tt.date, TimeStart: tt.timeStart}
			assert.Equal(t, tt.want, w.IsDue(now))
		})
	}
}
