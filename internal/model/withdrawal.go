package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 提现状态: 只允许沿枚举顺序前进, cancelled 仅能从 pending 进入
const (
	WithdrawalStatusPending    = "pending"
	WithdrawalStatusApproved   = "approved"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusSettled    = "settled"
	WithdrawalStatusFailed     = "failed"
	WithdrawalStatusCancelled  = "cancelled"
)

// WithdrawalOrder 提现订单表
// 由外部订单 API 创建 (创建时冻结用户余额)，提现引擎只负责推进状态
type WithdrawalOrder struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo       string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"order_no"`
	UserID        uint64          `gorm:"not null;index" json:"user_id"`
	AssetID       string          `gorm:"type:varchar(20);not null" json:"asset_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(40,0);not null" json:"amount"`        // 冻结总额
	Fee           decimal.Decimal `gorm:"type:decimal(40,0);not null" json:"fee"`           // 平台手续费
	ActualAmount  decimal.Decimal `gorm:"type:decimal(40,0);not null" json:"actual_amount"` // 实际出账 = Amount - Fee
	ToAddress     string          `gorm:"type:varchar(64);not null" json:"to_address"`
	Status        string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	TxHash        string          `gorm:"type:varchar(128)" json:"tx_hash"`
	FailureReason string          `gorm:"type:varchar(255)" json:"failure_reason"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (WithdrawalOrder) TableName() string {
	return "withdrawal_orders"
}
