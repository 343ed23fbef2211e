package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 充值状态
const (
	DepositStatusPending   = "pending"
	DepositStatusConfirmed = "confirmed"
	DepositStatusFailed    = "failed"
	DepositStatusCollected = "collected"
)

// DepositAddress 充值地址表
// SecretID 指向 Keystore 中封装后的私钥
type DepositAddress struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64    `gorm:"not null;index" json:"user_id"`
	Chain     string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_chain_address" json:"chain"`
	Address   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_chain_address" json:"address"`
	SecretID  string    `gorm:"type:varchar(128);not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// DepositTransaction 充值记录表
// Hash 全局唯一: 重复入账是静默 no-op，靠唯一索引兜底
type DepositTransaction struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint64          `gorm:"not null;index" json:"user_id"`
	Hash         string          `gorm:"type:varchar(128);not null;uniqueIndex:idx_deposit_hash" json:"hash"`
	FromAddress  string          `gorm:"type:varchar(64);not null" json:"from_address"`
	ToAddress    string          `gorm:"type:varchar(64);not null;index" json:"to_address"`
	AssetID      string          `gorm:"type:varchar(20);not null" json:"asset_id"`
	Contract     string          `gorm:"type:varchar(64)" json:"contract"` // 原生资产为空
	Amount       decimal.Decimal `gorm:"type:decimal(40,0);not null" json:"amount"`
	BlockNumber  int64           `gorm:"not null" json:"block_number"`
	Status       string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ConfirmBlock int64           `json:"confirm_block"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CollectionTransaction 资金归集记录
// DepositID 唯一: 每笔充值最多一次成功归集
type CollectionTransaction struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	DepositID   uint64          `gorm:"not null;uniqueIndex" json:"deposit_id"`
	TxHash      string          `gorm:"type:varchar(128);not null;uniqueIndex" json:"tx_hash"`
	FromAddress string          `gorm:"type:varchar(64);not null" json:"from_address"`
	ToAddress   string          `gorm:"type:varchar(64);not null" json:"to_address"`
	Amount      decimal.Decimal `gorm:"type:decimal(40,0);not null" json:"amount"`
	GasFee      decimal.Decimal `gorm:"type:decimal(40,0);not null" json:"gas_fee"`
	Status      string          `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (DepositAddress) TableName() string {
	return "deposit_addresses"
}

func (DepositTransaction) TableName() string {
	return "deposit_transactions"
}

func (CollectionTransaction) TableName() string {
	return "collection_transactions"
}
