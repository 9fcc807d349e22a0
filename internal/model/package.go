package model

import (
	"time"
)

// ClientPackage 课时包表
// 记录教练与学员之间的剩余课时数，是整个核销系统的核心数据
// 每个 (coach_id, client_id) 组合最多只有一行
type ClientPackage struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CoachID   int64     `gorm:"uniqueIndex:uk_coach_client;not null" json:"coach_id"`  // 教练ID
	ClientID  int64     `gorm:"uniqueIndex:uk_coach_client;not null" json:"client_id"` // 学员ID
	Count     int64     `gorm:"not null;default:0" json:"count"`                       // 剩余课时数（允许为负，由配置控制）
	Version   int       `gorm:"not null;default:0" json:"version"`                     // 乐观锁版本号
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ClientPackage) TableName() string {
	return "client_package"
}
