package repository

import (
	"context"
	"errors"

	"github.com/Ezhevenko/coachlog/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPackageNotFound = errors.New("课时包不存在")
	ErrCreditNotEnough = errors.New("剩余课时不足")
	ErrOptimisticLock  = errors.New("乐观锁冲突，请重试")
)

type PackageRepository struct {
	db *gorm.DB
}

func NewPackageRepository(db *gorm.DB) *PackageRepository {
	return &PackageRepository{db: db}
}

func (r *PackageRepository) GetByPair(ctx context.Context, coachID, clientID int64) (*model.ClientPackage, error) {
	var pkg model.ClientPackage
	err := r.db.WithContext(ctx).
		Where("coach_id = ? AND client_id = ?", coachID, clientID).
		First(&pkg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}
	return &pkg, nil
}

// GetOrCreate 获取课时包，不存在时懒创建（count = 0）
// 通过 ON CONFLICT DO NOTHING 兜底并发创建，唯一索引保证每组教练-学员最多一行
func (r *PackageRepository) GetOrCreate(ctx context.Context, coachID, clientID int64) (*model.ClientPackage, error) {
	pkg, err := r.GetByPair(ctx, coachID, clientID)
	if err == nil {
		return pkg, nil
	}

	if !errors.Is(err, ErrPackageNotFound) {
		return nil, err
	}

	newPkg := &model.ClientPackage{
		CoachID:  coachID,
		ClientID: clientID,
		Count:    0,
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "coach_id"}, {Name: "client_id"}},
			DoNothing: true,
		}).
		Create(newPkg).Error

	if err != nil {
		return nil, err
	}

	return r.GetByPair(ctx, coachID, clientID)
}

// AddDelta 按变动量调整课时数（正负均可）
// 带乐观锁版本号，余额变动与版本自增在同一条 UPDATE 内完成
func (r *PackageRepository) AddDelta(ctx context.Context, tx *gorm.DB, coachID, clientID, delta int64, version int) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.ClientPackage{}).
		Where("coach_id = ? AND client_id = ? AND version = ?", coachID, clientID, version).
		Updates(map[string]interface{}{
			"count":   gorm.Expr("count + ?", delta),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetByPair(ctx, coachID, clientID); err != nil {
			return err
		}
		return ErrOptimisticLock
	}

	return nil
}

// Deduct 核销扣减一个课时
// allowNegative=false 时附加余额下限条件，课时不足直接失败
func (r *PackageRepository) Deduct(ctx context.Context, tx *gorm.DB, coachID, clientID int64, version int, allowNegative bool) error {
	if tx == nil {
		tx = r.db
	}

	query := tx.WithContext(ctx).Model(&model.ClientPackage{})
	if allowNegative {
		query = query.Where("coach_id = ? AND client_id = ? AND version = ?", coachID, clientID, version)
	} else {
		query = query.Where("coach_id = ? AND client_id = ? AND version = ? AND count >= 1", coachID, clientID, version)
	}

	result := query.Updates(map[string]interface{}{
		"count":   gorm.Expr("count - 1"),
		"version": gorm.Expr("version + 1"),
	})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		pkg, err := r.GetByPair(ctx, coachID, clientID)
		if err != nil {
			return err
		}
		if !allowNegative && pkg.Count < 1 {
			return ErrCreditNotEnough
		}
		return ErrOptimisticLock
	}

	return nil
}
