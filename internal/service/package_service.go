package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Ezhevenko/coachlog/internal/config"
	"github.com/Ezhevenko/coachlog/internal/infrastructure/lock"
	"github.com/Ezhevenko/coachlog/internal/model"
	"github.com/Ezhevenko/coachlog/internal/repository"
	"github.com/Ezhevenko/coachlog/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

var ErrInvalidDelta = errors.New("课时变动量必须是非零整数")

// PackageService 课时包服务
// 对外只暴露两个修改入口：AddCredits（加/调课时）和核销（见 ConsumeService），
// 其余模块不允许直接改 client_package 和 package_history
type PackageService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	packageRepo *repository.PackageRepository
	historyRepo *repository.HistoryRepository
	outboxRepo  *repository.OutboxRepository
}

func NewPackageService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *PackageService {
	return &PackageService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		packageRepo: repository.NewPackageRepository(db),
		historyRepo: repository.NewHistoryRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

type BalanceResponse struct {
	CoachID  int64                   `json:"coach_id"`
	ClientID int64                   `json:"client_id"`
	Count    int64                   `json:"count"`
	History  []*model.PackageHistory `json:"history"`
}

// GetBalance 查询课时余额和全部流水（按时间倒序）
// 没有课时包按余额 0 返回，不报错
func (s *PackageService) GetBalance(ctx context.Context, coachID, clientID int64) (*BalanceResponse, error) {
	var count int64
	pkg, err := s.packageRepo.GetByPair(ctx, coachID, clientID)
	if err != nil {
		if !errors.Is(err, repository.ErrPackageNotFound) {
			return nil, fmt.Errorf("查询课时包失败: %w", err)
		}
	} else {
		count = pkg.Count
	}

	history, err := s.historyRepo.ListByPair(ctx, coachID, clientID)
	if err != nil {
		return nil, fmt.Errorf("查询课时流水失败: %w", err)
	}

	return &BalanceResponse{
		CoachID:  coachID,
		ClientID: clientID,
		Count:    count,
		History:  history,
	}, nil
}

type AddCreditsRequest struct {
	CoachID  int64
	ClientID int64
	Delta    int64
	Remark   string
}

type AddCreditsResponse struct {
	ID    int64 `json:"id"`
	Count int64 `json:"count"`
}

// AddCredits 增减课时
//
// 【关键点】
// 1. delta 必须非零，正数购买课时，负数人工调减
// 2. 余额变动和流水追加必须同时成功或同时失败
// 3. 同一组教练-学员的并发变动通过分布式锁 + 乐观锁版本号串行化
func (s *PackageService) AddCredits(ctx context.Context, req *AddCreditsRequest) (*AddCreditsResponse, error) {
	if req.Delta == 0 {
		return nil, ErrInvalidDelta
	}

	// 获取分布式锁（按教练-学员组合）
	pairLock := lock.NewPackageLock(s.redisClient, req.CoachID, req.ClientID)
	if err := pairLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer pairLock.Unlock(ctx)

	// 课时包懒创建：第一次加课时时才建行
	pkg, err := s.packageRepo.GetOrCreate(ctx, req.CoachID, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("获取课时包失败: %w", err)
	}

	entryType := model.HistoryTypePurchase
	if req.Delta < 0 {
		entryType = model.HistoryTypeAdjust
	}
	newCount := pkg.Count + req.Delta

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.packageRepo.AddDelta(ctx, tx, req.CoachID, req.ClientID, req.Delta, pkg.Version); err != nil {
			if errors.Is(err, repository.ErrOptimisticLock) {
				return errors.New("系统繁忙，请重试")
			}
			return fmt.Errorf("调整课时失败: %w", err)
		}

		entry := &model.PackageHistory{
			EntryNo:      idgen.GenerateEntryNo(),
			CoachID:      req.CoachID,
			ClientID:     req.ClientID,
			Delta:        req.Delta,
			Type:         entryType,
			BalanceAfter: newCount,
			Remark:       req.Remark,
		}
		if err := s.historyRepo.Create(ctx, tx, entry); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		msgPayload := map[string]interface{}{
			"entry_no":   entry.EntryNo,
			"coach_id":   req.CoachID,
			"client_id":  req.ClientID,
			"delta":      req.Delta,
			"count":      newCount,
			"type":       entryType,
			"changed_at": time.Now().Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(msgPayload)

		outboxMsg := &model.OutboxMessage{
			MessageKey: entry.EntryNo,
			Topic:      s.cfg.Kafka.Topic.CreditChanged,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("课时变动成功: coachID=%d, clientID=%d, delta=%d, count=%d",
		req.CoachID, req.ClientID, req.Delta, newCount)

	return &AddCreditsResponse{
		ID:    pkg.ID,
		Count: newCount,
	}, nil
}
