package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/Ezhevenko/coachlog/internal/config"
	"github.com/Ezhevenko/coachlog/internal/infrastructure/lock"
	"github.com/Ezhevenko/coachlog/internal/model"
	"github.com/Ezhevenko/coachlog/internal/repository"
	"github.com/Ezhevenko/coachlog/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

var ErrWorkoutForbidden = errors.New("无权操作该训练")

const (
	ConsumeStatusConsumed        = "CONSUMED"         // 本次核销成功
	ConsumeStatusAlreadyConsumed = "ALREADY_CONSUMED" // 之前已核销，幂等空操作
)

// ConsumeService 训练核销服务
//
// 手动完成训练和定时扫描是两个独立入口，但状态转移只有这一份实现。
// 核销 = 在一个数据库事务内完成三件事：
//  1. workout.consumed 条件翻转（false -> true，受影响行数必须为 1）
//  2. 课时包余额扣 1（课时包存在时）
//  3. 追加一条 delta = -1 的流水
//
// 对同一个训练重复调用，只有第一次产生账务变动
type ConsumeService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	workoutRepo *repository.WorkoutRepository
	packageRepo *repository.PackageRepository
	historyRepo *repository.HistoryRepository
	outboxRepo  *repository.OutboxRepository
}

func NewConsumeService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *ConsumeService {
	return &ConsumeService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		workoutRepo: repository.NewWorkoutRepository(db),
		packageRepo: repository.NewPackageRepository(db),
		historyRepo: repository.NewHistoryRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

type ConsumeResult struct {
	WorkoutNo string `json:"workout_no"`
	Status    string `json:"status"`
	Debited   bool   `json:"debited"` // 本次是否产生扣课时流水
	Count     int64  `json:"count"`   // 扣减后余额（Debited 为 true 时有效）
}

// Consume 手动完成训练并核销课时（教练端"完成训练"按钮）
//
// 错误约定：
//   - 训练不存在       -> repository.ErrWorkoutNotFound
//   - 不是自己的训练   -> ErrWorkoutForbidden（校验先于一切写操作）
//   - 已核销           -> 不是错误，返回 ALREADY_CONSUMED
func (s *ConsumeService) Consume(ctx context.Context, coachID, workoutID int64) (*ConsumeResult, error) {
	workout, err := s.workoutRepo.GetByID(ctx, workoutID)
	if err != nil {
		return nil, err
	}

	if workout.CoachID != coachID {
		return nil, ErrWorkoutForbidden
	}

	if workout.Consumed {
		return &ConsumeResult{
			WorkoutNo: workout.WorkoutNo,
			Status:    ConsumeStatusAlreadyConsumed,
		}, nil
	}

	// 获取分布式锁：让同一个训练的重复点击排队
	// 正确性不依赖这把锁，最终由 consumed 上的条件更新兜底
	finishLock := lock.NewFinishLock(s.redisClient, workout.ID, strconv.FormatInt(coachID, 10))
	if err := finishLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer finishLock.Unlock(ctx)

	return s.consume(ctx, workout)
}

// consume 幂等状态转移，手动完成和定时扫描共用
func (s *ConsumeService) consume(ctx context.Context, workout *model.Workout) (*ConsumeResult, error) {
	result := &ConsumeResult{
		WorkoutNo: workout.WorkoutNo,
		Status:    ConsumeStatusConsumed,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 条件翻转 consumed，并发败者在这里拿到 ErrWorkoutConsumed 并回滚
		if err := s.workoutRepo.MarkConsumed(ctx, tx, workout.ID, time.Now()); err != nil {
			return err
		}

		pkg, err := s.packageRepo.GetByPair(ctx, workout.CoachID, workout.ClientID)
		if err != nil {
			if errors.Is(err, repository.ErrPackageNotFound) {
				if s.cfg.Business.StrictMissingPackage {
					return repository.ErrPackageNotFound
				}
				// 宽松策略：没有课时包也标记训练已核销，不产生任何账务变动
				return nil
			}
			return fmt.Errorf("查询课时包失败: %w", err)
		}

		if err := s.packageRepo.Deduct(ctx, tx, workout.CoachID, workout.ClientID,
			pkg.Version, s.cfg.Business.AllowNegativeBalance); err != nil {
			if errors.Is(err, repository.ErrOptimisticLock) {
				return errors.New("系统繁忙，请重试")
			}
			return err
		}

		entry := &model.PackageHistory{
			EntryNo:      idgen.GenerateEntryNo(),
			CoachID:      workout.CoachID,
			ClientID:     workout.ClientID,
			WorkoutNo:    workout.WorkoutNo,
			Delta:        -1,
			Type:         model.HistoryTypeConsume,
			BalanceAfter: pkg.Count - 1,
			Remark:       fmt.Sprintf("训练核销-%s", workout.WorkoutNo),
		}
		if err := s.historyRepo.Create(ctx, tx, entry); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		msgPayload := map[string]interface{}{
			"workout_no":  workout.WorkoutNo,
			"coach_id":    workout.CoachID,
			"client_id":   workout.ClientID,
			"delta":       int64(-1),
			"count":       pkg.Count - 1,
			"consumed_at": time.Now().Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(msgPayload)

		outboxMsg := &model.OutboxMessage{
			MessageKey: workout.WorkoutNo,
			Topic:      s.cfg.Kafka.Topic.WorkoutConsumed,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		result.Debited = true
		result.Count = pkg.Count - 1
		return nil
	})

	if err != nil {
		// 并发败者：另一个入口已经完成核销，按幂等空操作返回
		if errors.Is(err, repository.ErrWorkoutConsumed) {
			return &ConsumeResult{
				WorkoutNo: workout.WorkoutNo,
				Status:    ConsumeStatusAlreadyConsumed,
			}, nil
		}
		return nil, err
	}

	log.Printf("训练核销成功: workoutNo=%s, coachID=%d, clientID=%d, debited=%v",
		workout.WorkoutNo, workout.CoachID, workout.ClientID, result.Debited)

	return result, nil
}

type SweepResult struct {
	Processed int `json:"processed"` // 本次完成状态转移的训练数
	Failed    int `json:"failed"`    // 本次处理失败的训练数
}

// SweepDueWorkouts 扫描并核销某教练所有已到期未核销的训练
//
// 单次批处理：跑一遍就返回，不循环不重试，由外部（定时任务或管理接口）触发。
// 单个训练失败只记日志并继续，不中断整批
func (s *ConsumeService) SweepDueWorkouts(ctx context.Context, coachID int64) (*SweepResult, error) {
	workouts, err := s.workoutRepo.GetUnconsumed(ctx, coachID, s.cfg.Business.SweepBatchSize)
	if err != nil {
		return nil, fmt.Errorf("查询未核销训练失败: %w", err)
	}

	result := &SweepResult{}
	now := time.Now()

	for _, workout := range workouts {
		if !workout.IsDue(now) {
			continue
		}

		consumeResult, err := s.consume(ctx, workout)
		if err != nil {
			result.Failed++
			log.Printf("[Sweep] 训练核销失败: workoutNo=%s, err=%v", workout.WorkoutNo, err)
			continue
		}

		if consumeResult.Status == ConsumeStatusConsumed {
			result.Processed++
		}
	}

	return result, nil
}
