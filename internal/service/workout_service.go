package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ezhevenko/coachlog/internal/config"
	"github.com/Ezhevenko/coachlog/internal/model"
	"github.com/Ezhevenko/coachlog/internal/repository"
	"github.com/Ezhevenko/coachlog/pkg/idgen"

	"gorm.io/gorm"
)

// WorkoutService 排课侧接口
// 排课模块只负责创建和查询训练记录，consumed 标志的翻转归核销服务管
type WorkoutService struct {
	workoutRepo *repository.WorkoutRepository
	db          *gorm.DB
	cfg         *config.Config
}

func NewWorkoutService(db *gorm.DB, cfg *config.Config) *WorkoutService {
	return &WorkoutService{
		workoutRepo: repository.NewWorkoutRepository(db),
		db:          db,
		cfg:         cfg,
	}
}

type CreateWorkoutRequest struct {
	RequestID       string
	CoachID         int64
	ClientID        int64
	Date            string // YYYY-MM-DD
	TimeStart       string // HH:MM，可为空
	DurationMinutes int
}

// CreateWorkout 创建训练记录（按 request_id 幂等）
func (s *WorkoutService) CreateWorkout(ctx context.Context, req *CreateWorkoutRequest) (*model.Workout, error) {
	if _, err := time.ParseInLocation(model.WorkoutDateLayout, req.Date, time.Local); err != nil {
		return nil, errors.New("日期格式错误，应为 YYYY-MM-DD")
	}
	if req.TimeStart != "" {
		if _, err := time.ParseInLocation(model.WorkoutTimeLayout, req.TimeStart, time.Local); err != nil {
			return nil, errors.New("开始时间格式错误，应为 HH:MM")
		}
	}

	existing, err := s.workoutRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询训练失败: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	duration := req.DurationMinutes
	if duration <= 0 {
		duration = 60
	}

	workout := &model.Workout{
		WorkoutNo:       idgen.GenerateWorkoutNo(),
		RequestID:       req.RequestID,
		CoachID:         req.CoachID,
		ClientID:        req.ClientID,
		Date:            req.Date,
		TimeStart:       req.TimeStart,
		DurationMinutes: duration,
		Consumed:        false,
	}

	if err := s.workoutRepo.Create(ctx, nil, workout); err != nil {
		return nil, fmt.Errorf("创建训练失败: %w", err)
	}

	return workout, nil
}

func (s *WorkoutService) GetWorkout(ctx context.Context, workoutNo string) (*model.Workout, error) {
	return s.workoutRepo.GetByWorkoutNo(ctx, workoutNo)
}

func (s *WorkoutService) ListCoachWorkouts(ctx context.Context, coachID int64, page, pageSize int) ([]*model.Workout, int64, error) {
	return s.workoutRepo.ListByCoachID(ctx, coachID, page, pageSize)
}
