package job

import (
	"context"
	"log"
	"time"

	"github.com/Ezhevenko/coachlog/internal/config"
	"github.com/Ezhevenko/coachlog/internal/repository"
	"github.com/Ezhevenko/coachlog/internal/service"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// PackageSweepJob 到期训练扫描任务
//
// 周期性地为每个有未核销训练的教练跑一遍 SweepDueWorkouts，
// 和管理端 /package/sweep 接口走同一份核销逻辑。
// consumed 上的条件更新保证了扫描和手动完成同时发生也不会重复扣课时
type PackageSweepJob struct {
	db             *gorm.DB
	workoutRepo    *repository.WorkoutRepository
	consumeService *service.ConsumeService
	cfg            *config.Config
	stopCh         chan struct{}
	interval       time.Duration
}

func NewPackageSweepJob(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *PackageSweepJob {
	interval := time.Duration(cfg.Business.SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	return &PackageSweepJob{
		db:             db,
		workoutRepo:    repository.NewWorkoutRepository(db),
		consumeService: service.NewConsumeService(db, redisClient, cfg),
		cfg:            cfg,
		stopCh:         make(chan struct{}),
		interval:       interval,
	}
}

func (j *PackageSweepJob) Start(ctx context.Context) {
	log.Println("[PackageSweepJob] 课时核销扫描任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[PackageSweepJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[PackageSweepJob] 任务停止")
			return
		case <-ticker.C:
			j.sweepAllCoaches(ctx)
		}
	}
}

func (j *PackageSweepJob) Stop() {
	close(j.stopCh)
}

func (j *PackageSweepJob) sweepAllCoaches(ctx context.Context) {
	coachIDs, err := j.workoutRepo.UnconsumedCoachIDs(ctx)
	if err != nil {
		log.Printf("[PackageSweepJob] 查询教练列表失败: %v", err)
		return
	}

	if len(coachIDs) == 0 {
		return
	}

	totalProcessed := 0
	totalFailed := 0
	for _, coachID := range coachIDs {
		result, err := j.consumeService.SweepDueWorkouts(ctx, coachID)
		if err != nil {
			log.Printf("[PackageSweepJob] 教练扫描失败: coachID=%d, err=%v", coachID, err)
			continue
		}
		totalProcessed += result.Processed
		totalFailed += result.Failed
	}

	if totalProcessed > 0 || totalFailed > 0 {
		log.Printf("[PackageSweepJob] 本次核销 %d 个到期训练，失败 %d 个", totalProcessed, totalFailed)
	}
}
