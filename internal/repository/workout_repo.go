package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Ezhevenko/coachlog/internal/model"

	"gorm.io/gorm"
)

var (
	ErrWorkoutNotFound = errors.New("训练不存在")
	ErrWorkoutConsumed = errors.New("训练已核销")
)

type WorkoutRepository struct {
	db *gorm.DB
}

func NewWorkoutRepository(db *gorm.DB) *WorkoutRepository {
	return &WorkoutRepository{db: db}
}

func (r *WorkoutRepository) Create(ctx context.Context, tx *gorm.DB, workout *model.Workout) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(workout).Error
}

func (r *WorkoutRepository) GetByID(ctx context.Context, id int64) (*model.Workout, error) {
	var workout model.Workout
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&workout).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}
	return &workout, nil
}

func (r *WorkoutRepository) GetByWorkoutNo(ctx context.Context, workoutNo string) (*model.Workout, error) {
	var workout model.Workout
	err := r.db.WithContext(ctx).Where("workout_no = ?", workoutNo).First(&workout).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}
	return &workout, nil
}

func (r *WorkoutRepository) GetByRequestID(ctx context.Context, requestID string) (*model.Workout, error) {
	var workout model.Workout
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&workout).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &workout, nil
}

// MarkConsumed 把训练标记为已核销
//
// 【关键点】consumed 的翻转必须是条件更新 + 受影响行数检查：
// WHERE id = ? AND consumed = 0 保证两个并发核销请求
// （手动完成训练 vs 定时扫描）只有一个能成功，败者拿到
// ErrWorkoutConsumed，整个事务回滚，不会重复扣课时
func (r *WorkoutRepository) MarkConsumed(ctx context.Context, tx *gorm.DB, id int64, consumedAt time.Time) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Workout{}).
		Where("id = ? AND consumed = ?", id, false).
		Updates(map[string]interface{}{
			"consumed":    true,
			"consumed_at": &consumedAt,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		var workout model.Workout
		err := tx.WithContext(ctx).Where("id = ?", id).First(&workout).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWorkoutNotFound
			}
			return err
		}
		return ErrWorkoutConsumed
	}

	return nil
}

// GetUnconsumed 查询某教练所有未核销的训练
// 是否到期由调用方按 date + time_start 判断（与存储格式解耦）
func (r *WorkoutRepository) GetUnconsumed(ctx context.Context, coachID int64, limit int) ([]*model.Workout, error) {
	var workouts []*model.Workout
	err := r.db.WithContext(ctx).
		Where("coach_id = ? AND consumed = ?", coachID, false).
		Order("date ASC, time_start ASC").
		Limit(limit).
		Find(&workouts).Error
	return workouts, err
}

// UnconsumedCoachIDs 查询存在未核销训练的教练ID列表，供定时扫描任务分批处理
func (r *WorkoutRepository) UnconsumedCoachIDs(ctx context.Context) ([]int64, error) {
	var coachIDs []int64
	err := r.db.WithContext(ctx).
		Model(&model.Workout{}).
		Where("consumed = ?", false).
		Distinct().
		Pluck("coach_id", &coachIDs).Error
	return coachIDs, err
}

func (r *WorkoutRepository) ListByCoachID(ctx context.Context, coachID int64, page, pageSize int) ([]*model.Workout, int64, error) {
	var workouts []*model.Workout
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Workout{}).Where("coach_id = ?", coachID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("date DESC, time_start DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&workouts).Error

	return workouts, total, err
}
