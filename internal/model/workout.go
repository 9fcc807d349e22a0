package model

import (
	"time"
)

const (
	// 日期与开始时间的存储格式，与前端约定一致
	WorkoutDateLayout = "2006-01-02"
	WorkoutTimeLayout = "15:04"

	workoutDueLayout = "2006-01-02 15:04"
)

// Workout 训练记录表
// 由排课模块创建，consumed 标志只允许由核销逻辑翻转
//
// 状态机：consumed 只能 false -> true，且最多翻转一次，
// 翻转必须通过条件更新（WHERE consumed = 0）完成，禁止先读后写
type Workout struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	WorkoutNo       string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"workout_no"` // 训练编号
	RequestID       string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_id"` // 幂等ID，排课方传入
	CoachID         int64      `gorm:"index;not null" json:"coach_id"`                          // 教练ID
	ClientID        int64      `gorm:"index;not null" json:"client_id"`                         // 学员ID
	Date            string     `gorm:"type:varchar(10);not null" json:"date"`                   // 日期 YYYY-MM-DD
	TimeStart       string     `gorm:"type:varchar(5)" json:"time_start"`                       // 开始时间 HH:MM，可为空
	DurationMinutes int        `gorm:"not null;default:60" json:"duration_minutes"`             // 时长（分钟）
	Consumed        bool       `gorm:"not null;default:false;index" json:"consumed"`            // 是否已核销课时
	ConsumedAt      *time.Time `json:"consumed_at"`                                             // 核销时间
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Workout) TableName() string {
	return "workout"
}

// DueAt 计算训练的到期时刻
// 没有开始时间的训练按当天 00:00 计算
func (w *Workout) DueAt() (time.Time, error) {
	start := w.TimeStart
	if start == "" {
		start = "00:00"
	}
	return time.ParseInLocation(workoutDueLayout, w.Date+" "+start, time.Local)
}

// IsDue 判断训练在 now 时刻是否已到期
// 日期无法解析时返回 false，由扫描任务跳过并记录日志
func (w *Workout) IsDue(now time.Time) bool {
	due, err := w.DueAt()
	if err != nil {
		return false
	}
	return !due.After(now)
}
