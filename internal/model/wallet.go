package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 账本变动类型。(OrderID, MutationType) 唯一，是存储层的幂等护栏:
// 重复施加同一逻辑变动会触发唯一约束冲突，而不是被静默合并。
const (
	MutationDeposit          = "DEPOSIT"
	MutationWithdrawFreeze   = "WITHDRAW_FREEZE"
	MutationWithdraw         = "WITHDRAW"
	MutationWithdrawUnfreeze = "WITHDRAW_UNFREEZE"
	MutationEnergyRent       = "ENERGY_RENT"
)

// WalletBalance 用户资产余额表
// 不变式: Balance ≥ 0 且 FrozenBalance ≥ 0 在任意时刻成立，
// 由条件化原子 UPDATE 保证，而不是读-改-写。
type WalletBalance struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uint64          `gorm:"not null;uniqueIndex:idx_user_asset" json:"user_id"`
	AssetID       string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_user_asset" json:"asset_id"`
	Balance       decimal.Decimal `gorm:"type:decimal(40,0);not null;default:0" json:"balance"`
	FrozenBalance decimal.Decimal `gorm:"type:decimal(40,0);not null;default:0" json:"frozen_balance"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// WalletLedgerEntry 账本流水 (append-only)
// Amount 是可用余额的带符号变动量, FrozenAmount 是冻结余额的带符号变动量;
// 两列分别求和即可完全重建 WalletBalance。
type WalletLedgerEntry struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uint64          `gorm:"not null;index" json:"user_id"`
	AssetID       string          `gorm:"type:varchar(20);not null" json:"asset_id"`
	OrderID       string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_order_mutation" json:"order_id"`
	MutationType  string          `gorm:"type:varchar(32);not null;uniqueIndex:idx_order_mutation" json:"mutation_type"`
	Amount        decimal.Decimal `gorm:"type:decimal(40,0);not null" json:"amount"`
	FrozenAmount  decimal.Decimal `gorm:"type:decimal(40,0);not null;default:0" json:"frozen_amount"`
	BeforeBalance decimal.Decimal `gorm:"type:decimal(40,0);not null" json:"before_balance"`
	AfterBalance  decimal.Decimal `gorm:"type:decimal(40,0);not null" json:"after_balance"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (WalletBalance) TableName() string {
	return "wallet_balances"
}

func (WalletLedgerEntry) TableName() string {
	return "wallet_ledger_entries"
}
