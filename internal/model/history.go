package model

import (
	"time"
)

// ============================================================================
// 课时流水类型常量
// ============================================================================

const (
	HistoryTypePurchase = "PURCHASE" // 购买课时（delta > 0）
	HistoryTypeAdjust   = "ADJUST"   // 人工调整（delta < 0）
	HistoryTypeConsume  = "CONSUME"  // 训练核销（delta = -1）
)

// ============================================================================
// 课时流水实体
// ============================================================================

// PackageHistory 课时流水表
// 记录课时包的每一次变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 核销流水必须关联训练编号 —— 便于对账
// 3. 记录变动后余额 —— 便于校验余额一致性
//
// 对账不变量：任意 (coach_id, client_id) 下所有 delta 之和
// 必须等于 client_package.count 的当前值
type PackageHistory struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryNo      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"entry_no"` // 流水号（全局唯一）
	CoachID      int64     `gorm:"index:idx_history_pair;not null" json:"coach_id"`       // 教练ID
	ClientID     int64     `gorm:"index:idx_history_pair;not null" json:"client_id"`      // 学员ID
	WorkoutNo    string    `gorm:"type:varchar(64);index" json:"workout_no"`              // 关联训练编号（手动加课时为空）
	Delta        int64     `gorm:"not null" json:"delta"`                                 // 变动量（正数加课时，负数扣课时）
	Type         string    `gorm:"type:varchar(20);not null" json:"type"`                 // 流水类型
	BalanceAfter int64     `gorm:"not null" json:"balance_after"`                         // 变动后余额
	Remark       string    `gorm:"type:varchar(256)" json:"remark"`                       // 备注
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (PackageHistory) TableName() string {
	return "package_history"
}
