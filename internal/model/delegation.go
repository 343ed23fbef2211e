package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 委托订单状态机: pending→success→reclaimed 或 pending→failed
// reclaim 只能从 success 发生
const (
	DelegationStatusPending   = "pending"
	DelegationStatusSuccess   = "success"
	DelegationStatusFailed    = "failed"
	DelegationStatusReclaimed = "reclaimed"
)

// DelegationOrder 能量委托订单
type DelegationOrder struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo         string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"order_no"`
	UserID          uint64          `gorm:"not null;index" json:"user_id"` // 0 表示平台自用 (归集/提现补能量)
	ReceiverAddress string          `gorm:"type:varchar(64);not null;index" json:"receiver_address"`
	EnergyAmount    int64           `gorm:"not null" json:"energy_amount"`
	TrxAmount       decimal.Decimal `gorm:"type:decimal(40,0);not null" json:"trx_amount"` // 等值质押量 (sun)
	Price           decimal.Decimal `gorm:"type:decimal(40,0);not null" json:"price"`      // 租金 (sun)
	DurationSeconds int64           `gorm:"not null" json:"duration_seconds"`
	Status          string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ExpireAt        *time.Time      `gorm:"index" json:"expire_at,omitempty"`
	TxHash          string          `gorm:"type:varchar(128)" json:"tx_hash"`
	ReclaimTxHash   string          `gorm:"type:varchar(128)" json:"reclaim_tx_hash"`
	FailReason      string          `gorm:"type:varchar(255)" json:"fail_reason"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (DelegationOrder) TableName() string {
	return "delegation_orders"
}
