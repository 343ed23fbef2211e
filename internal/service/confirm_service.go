package service

import (
	"context"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"tron-wallet-core/internal/chain"
	"tron-wallet-core/internal/model"
	"tron-wallet-core/pkg/config"
	"tron-wallet-core/pkg/logger"
	"tron-wallet-core/pkg/monitor"
)

const confirmBatchSize = 100

// TopicDepositCredited 充值入账事件
const TopicDepositCredited = "wallet.deposit.credited"

// ConfirmService 确认管道: 等待确认深度，核验链上执行结果，
// 然后把充值入账到内部账本。入账与状态翻转同一事务，
// 账本 (depositId, DEPOSIT) 唯一键是第二道幂等护栏。
type ConfirmService struct {
	db     *gorm.DB
	client chain.Client
	ledger *LedgerService
	keys   *KeyService
	chain  config.ChainConfig
	wallet config.WalletConfig

	latch runLatch
}

func NewConfirmService(db *gorm.DB, client chain.Client, ledger *LedgerService, keys *KeyService, chainCfg config.ChainConfig, walletCfg config.WalletConfig) *ConfirmService {
	return &ConfirmService{db: db, client: client, ledger: ledger, keys: keys, chain: chainCfg, wallet: walletCfg}
}

// ConfirmOnce 处理一批 pending 充值，最早创建的优先。
// 单笔失败只记日志，不影响批内其余条目。
func (s *ConfirmService) ConfirmOnce(ctx context.Context) error {
	if !s.latch.TryLock() {
		logger.Debug("上一轮确认尚未结束, 跳过")
		return nil
	}
	defer s.latch.Unlock()

	latest, err := s.client.LatestBlockHeight(ctx)
	if err != nil {
		return err
	}

	var deposits []model.DepositTransaction
	err = s.db.WithContext(ctx).
		Where("status = ?", model.DepositStatusPending).
		Order("created_at asc").Limit(confirmBatchSize).
		Find(&deposits).Error
	if err != nil {
		return err
	}

	for i := range deposits {
		d := &deposits[i]
		if latest-d.BlockNumber < s.chain.Confirmations {
			continue // 深度不足，下一轮再看
		}
		if err := s.confirmOne(ctx, d, latest); err != nil {
			logger.Error("确认充值失败", zap.String("tx", d.Hash), zap.Error(err))
		}
	}
	return nil
}

func (s *ConfirmService) confirmOne(ctx context.Context, d *model.DepositTransaction, latest int64) error {
	info, err := s.client.GetTransactionInfo(ctx, d.Hash)
	if err != nil {
		return err
	}
	if !info.Found {
		// 深度已够但链上查不到, 可能是节点滞后, 等下一轮
		return nil
	}
	if !info.Success {
		logger.Warn("充值交易链上执行失败", zap.String("tx", d.Hash))
		return s.db.WithContext(ctx).Model(d).
			Where("status = ?", model.DepositStatusPending).
			Update("status", model.DepositStatusFailed).Error
	}

	if err := s.credit(ctx, d, latest); err != nil {
		return err
	}

	// 首次收到 TRC20 的地址可能尚未激活, 激活失败不影响入账
	s.activateAddress(ctx, d.ToAddress)
	return nil
}

// credit 状态翻转 + 账本入账 + outbox 事件, 单个事务全有或全无。
func (s *ConfirmService) credit(ctx context.Context, d *model.DepositTransaction, latest int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.DepositTransaction{}).
			Where("id = ? AND status = ?", d.ID, model.DepositStatusPending).
			Updates(map[string]interface{}{
				"status":        model.DepositStatusConfirmed,
				"confirm_block": latest,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // 已被其他轮次处理
		}

		orderID := strconv.FormatUint(d.ID, 10)
		if err := s.ledger.Add(tx, d.UserID, d.AssetID, d.Amount, model.MutationDeposit, orderID); err != nil {
			return err
		}

		if err := model.CreateOutboxMessage(tx, TopicDepositCredited, map[string]interface{}{
			"deposit_id": d.ID,
			"user_id":    d.UserID,
			"asset_id":   d.AssetID,
			"amount":     d.Amount.String(),
			"tx_hash":    d.Hash,
		}); err != nil {
			return err
		}

		if monitor.Business != nil {
			monitor.Business.DepositConfirmedTotal.WithLabelValues(d.AssetID).Inc()
			amt, _ := d.Amount.Float64()
			monitor.Business.DepositAmountTotal.WithLabelValues(d.AssetID).Add(amt)
		}
		logger.Info("充值已入账",
			zap.String("tx", d.Hash),
			zap.Uint64("user_id", d.UserID),
			zap.String("asset", d.AssetID),
			zap.String("amount", d.Amount.String()))
		return nil
	})
}

// activateAddress 用手续费钱包给未激活的充值地址打一笔小额 TRX。
// 纯 best-effort: 出错只记日志。
func (s *ConfirmService) activateAddress(ctx context.Context, address string) {
	exists, err := s.client.AccountExists(ctx, address)
	if err != nil {
		logger.Warn("查询地址激活状态失败", zap.String("address", address), zap.Error(err))
		return
	}
	if exists {
		return
	}
	sign, err := s.keys.PlatformSigningContext(ctx, s.wallet.FeeAddress, "", 0)
	if err != nil {
		logger.Warn("获取手续费钱包签名失败", zap.Error(err))
		return
	}
	txID, err := s.client.TransferNative(ctx, sign, address, s.chain.ActivateAmount)
	if err != nil {
		logger.Warn("地址激活转账失败", zap.String("address", address), zap.Error(err))
		return
	}
	logger.Info("充值地址已激活", zap.String("address", address), zap.String("tx", txID))
}
