package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tron-wallet-core/internal/model"
	"tron-wallet-core/pkg/errno"
)

// LedgerService 内部账本。所有余额变动都走这里:
// 一条条件化原子 UPDATE + 一条 append-only 流水，同一事务提交。
// 不变式检查下沉到 UPDATE 的 WHERE 子句（balance >= ?），
// 并发下不存在读-改-写窗口；(OrderID, MutationType) 唯一索引
// 保证同一逻辑变动重放时报错而不是翻倍。
type LedgerService struct {
	db *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// Add 入账：增加可用余额。钱包行不存在时自动建行。
func (s *LedgerService) Add(tx *gorm.DB, userID uint64, assetID string, amount decimal.Decimal, mutationType, orderID string) error {
	if !amount.IsPositive() {
		return errno.ErrInvalidAmount
	}
	if err := s.ensureWallet(tx, userID, assetID); err != nil {
		return err
	}
	res := tx.Model(&model.WalletBalance{}).
		Where("user_id = ? AND asset_id = ?", userID, assetID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errno.ErrWalletNotFound
	}
	return s.writeEntry(tx, userID, assetID, amount, decimal.Zero, mutationType, orderID)
}

// Sub 扣减可用余额。余额不足时整个事务失败。
func (s *LedgerService) Sub(tx *gorm.DB, userID uint64, assetID string, amount decimal.Decimal, mutationType, orderID string) error {
	if !amount.IsPositive() {
		return errno.ErrInvalidAmount
	}
	res := tx.Model(&model.WalletBalance{}).
		Where("user_id = ? AND asset_id = ? AND balance >= ?", userID, assetID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.explainMiss(tx, userID, assetID, errno.ErrInsufficientBalance)
	}
	return s.writeEntry(tx, userID, assetID, amount.Neg(), decimal.Zero, mutationType, orderID)
}

// Freeze 把可用余额挪进冻结余额（提现下单时占款）。
func (s *LedgerService) Freeze(tx *gorm.DB, userID uint64, assetID string, amount decimal.Decimal, mutationType, orderID string) error {
	if !amount.IsPositive() {
		return errno.ErrInvalidAmount
	}
	res := tx.Model(&model.WalletBalance{}).
		Where("user_id = ? AND asset_id = ? AND balance >= ?", userID, assetID, amount).
		Updates(map[string]interface{}{
			"balance":        gorm.Expr("balance - ?", amount),
			"frozen_balance": gorm.Expr("frozen_balance + ?", amount),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.explainMiss(tx, userID, assetID, errno.ErrInsufficientBalance)
	}
	return s.writeEntry(tx, userID, assetID, amount.Neg(), amount, mutationType, orderID)
}

// Unfreeze 把冻结余额退回可用余额（提现失败/取消）。
func (s *LedgerService) Unfreeze(tx *gorm.DB, userID uint64, assetID string, amount decimal.Decimal, mutationType, orderID string) error {
	if !amount.IsPositive() {
		return errno.ErrInvalidAmount
	}
	res := tx.Model(&model.WalletBalance{}).
		Where("user_id = ? AND asset_id = ? AND frozen_balance >= ?", userID, assetID, amount).
		Updates(map[string]interface{}{
			"balance":        gorm.Expr("balance + ?", amount),
			"frozen_balance": gorm.Expr("frozen_balance - ?", amount),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.explainMiss(tx, userID, assetID, errno.ErrInsufficientFrozen)
	}
	return s.writeEntry(tx, userID, assetID, amount, amount.Neg(), mutationType, orderID)
}

// SubFrozen 从冻结余额中永久扣除（提现链上成功后结算）。
func (s *LedgerService) SubFrozen(tx *gorm.DB, userID uint64, assetID string, amount decimal.Decimal, mutationType, orderID string) error {
	if !amount.IsPositive() {
		return errno.ErrInvalidAmount
	}
	res := tx.Model(&model.WalletBalance{}).
		Where("user_id = ? AND asset_id = ? AND frozen_balance >= ?", userID, assetID, amount).
		Update("frozen_balance", gorm.Expr("frozen_balance - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.explainMiss(tx, userID, assetID, errno.ErrInsufficientFrozen)
	}
	return s.writeEntry(tx, userID, assetID, decimal.Zero, amount.Neg(), mutationType, orderID)
}

// GetBalance 查询余额，行不存在视为零余额。
func (s *LedgerService) GetBalance(ctx context.Context, userID uint64, assetID string) (*model.WalletBalance, error) {
	var wallet model.WalletBalance
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND asset_id = ?", userID, assetID).
		First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.WalletBalance{UserID: userID, AssetID: assetID, Balance: decimal.Zero, FrozenBalance: decimal.Zero}, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// Reconcile 用流水重建余额并与余额表比对，返回差额 (balance, frozen)。
// 两者都为零说明账实相符。
func (s *LedgerService) Reconcile(ctx context.Context, userID uint64, assetID string) (decimal.Decimal, decimal.Decimal, error) {
	wallet, err := s.GetBalance(ctx, userID, assetID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	var entries []model.WalletLedgerEntry
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND asset_id = ?", userID, assetID).
		Find(&entries).Error; err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	sumBalance, sumFrozen := decimal.Zero, decimal.Zero
	for _, e := range entries {
		sumBalance = sumBalance.Add(e.Amount)
		sumFrozen = sumFrozen.Add(e.FrozenAmount)
	}
	return wallet.Balance.Sub(sumBalance), wallet.FrozenBalance.Sub(sumFrozen), nil
}

func (s *LedgerService) ensureWallet(tx *gorm.DB, userID uint64, assetID string) error {
	wallet := model.WalletBalance{
		UserID:        userID,
		AssetID:       assetID,
		Balance:       decimal.Zero,
		FrozenBalance: decimal.Zero,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "asset_id"}},
		DoNothing: true,
	}).Create(&wallet).Error
}

// explainMiss 区分"行不存在"和"余额不足"两种 0 行更新
func (s *LedgerService) explainMiss(tx *gorm.DB, userID uint64, assetID string, insufficient error) error {
	var count int64
	if err := tx.Model(&model.WalletBalance{}).
		Where("user_id = ? AND asset_id = ?", userID, assetID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errno.ErrWalletNotFound
	}
	return insufficient
}

func (s *LedgerService) writeEntry(tx *gorm.DB, userID uint64, assetID string, amount, frozenAmount decimal.Decimal, mutationType, orderID string) error {
	var wallet model.WalletBalance
	if err := tx.Where("user_id = ? AND asset_id = ?", userID, assetID).First(&wallet).Error; err != nil {
		return err
	}
	entry := model.WalletLedgerEntry{
		UserID:        userID,
		AssetID:       assetID,
		OrderID:       orderID,
		MutationType:  mutationType,
		Amount:        amount,
		FrozenAmount:  frozenAmount,
		BeforeBalance: wallet.Balance.Sub(amount),
		AfterBalance:  wallet.Balance,
	}
	if err := tx.Create(&entry).Error; err != nil {
		// 唯一索引冲突：同一 (OrderID, MutationType) 已经记过账
		return fmt.Errorf("%w: order=%s type=%s: %v", errno.ErrLedgerDuplicate, orderID, mutationType, err)
	}
	return nil
}
