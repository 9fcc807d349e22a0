package repository

import (
	"context"

	"github.com/Ezhevenko/coachlog/internal/model"

	"gorm.io/gorm"
)

type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Create 追加一条流水
// 流水只追加不修改，调用方必须保证与余额变动在同一个事务内
func (r *HistoryRepository) Create(ctx context.Context, tx *gorm.DB, entry *model.PackageHistory) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(entry).Error
}

// ListByPair 查询某组教练-学员的全部流水，按创建时间倒序
func (r *HistoryRepository) ListByPair(ctx context.Context, coachID, clientID int64) ([]*model.PackageHistory, error) {
	var entries []*model.PackageHistory
	err := r.db.WithContext(ctx).
		Where("coach_id = ? AND client_id = ?", coachID, clientID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

// SumDelta 汇总某组教练-学员的流水变动量
// 对账用：SUM(delta) 必须等于 client_package.count
func (r *HistoryRepository) SumDelta(ctx context.Context, coachID, clientID int64) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&model.PackageHistory{}).
		Where("coach_id = ? AND client_id = ?", coachID, clientID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&sum).Error
	return sum, err
}
