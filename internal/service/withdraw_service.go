package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tron-wallet-core/internal/chain"
	"tron-wallet-core/internal/chain/tron"
	"tron-wallet-core/internal/model"
	"tron-wallet-core/pkg/config"
	"tron-wallet-core/pkg/errno"
	"tron-wallet-core/pkg/logger"
	"tron-wallet-core/pkg/monitor"
)

const withdrawBatchSize = 100

// TopicWithdrawalSettled 提现结算事件
const TopicWithdrawalSettled = "wallet.withdrawal.settled"

// WithdrawService 提现引擎。
// 下单冻结、审批推进、出账广播、确认结算四段分离;
// 引擎只从 approved 向后推进状态，冻结资金的最终去向
// (SubFrozen 或 Unfreeze) 由链上结果决定。
type WithdrawService struct {
	db     *gorm.DB
	client chain.Client
	fee    *FeeService
	energy *EnergyService
	keys   *KeyService
	ledger *LedgerService
	chain  config.ChainConfig
	wallet config.WalletConfig

	assets map[string]config.AssetConfig // symbol → asset

	watchTimeout  time.Duration
	watchInterval time.Duration

	latch runLatch
}

func NewWithdrawService(db *gorm.DB, client chain.Client, fee *FeeService, energy *EnergyService, keys *KeyService, ledger *LedgerService, chainCfg config.ChainConfig, walletCfg config.WalletConfig, taskCfg config.TaskConfig) *WithdrawService {
	assets := make(map[string]config.AssetConfig, len(chainCfg.Assets)+1)
	assets[chainCfg.Code] = config.AssetConfig{Symbol: chainCfg.Code}
	for _, a := range chainCfg.Assets {
		assets[a.Symbol] = a
	}
	return &WithdrawService{
		db:            db,
		client:        client,
		fee:           fee,
		energy:        energy,
		keys:          keys,
		ledger:        ledger,
		chain:         chainCfg,
		wallet:        walletCfg,
		assets:        assets,
		watchTimeout:  time.Duration(taskCfg.WatchTimeoutSec) * time.Second,
		watchInterval: time.Duration(taskCfg.WatchIntervalSec) * time.Second,
	}
}

// CreateOrder 用户下提现单: 建单与冻结同一事务。
func (s *WithdrawService) CreateOrder(ctx context.Context, userID uint64, assetID string, amount, fee decimal.Decimal, toAddress string) (*model.WithdrawalOrder, error) {
	if _, ok := s.assets[assetID]; !ok {
		return nil, errno.ErrUnsupportedAsset
	}
	if !tron.ValidAddress(toAddress) {
		return nil, errno.ErrInvalidAddress
	}
	if !amount.IsPositive() || fee.IsNegative() || fee.GreaterThanOrEqual(amount) {
		return nil, errno.ErrInvalidAmount
	}

	order := &model.WithdrawalOrder{
		OrderNo:      newOrderNo("WD"),
		UserID:       userID,
		AssetID:      assetID,
		Amount:       amount,
		Fee:          fee,
		ActualAmount: amount.Sub(fee),
		ToAddress:    toAddress,
		Status:       model.WithdrawalStatusPending,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		return s.ledger.Freeze(tx, userID, assetID, amount, model.MutationWithdrawFreeze, order.OrderNo)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Approve 审批放行, 出账由下一轮 WithdrawOnce 执行。
func (s *WithdrawService) Approve(ctx context.Context, orderNo string) error {
	res := s.db.WithContext(ctx).Model(&model.WithdrawalOrder{}).
		Where("order_no = ? AND status = ?", orderNo, model.WithdrawalStatusPending).
		Update("status", model.WithdrawalStatusApproved)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errno.ErrOrderStateConflict
	}
	return nil
}

// Cancel 取消订单并解冻。只有 pending 可取消。
func (s *WithdrawService) Cancel(ctx context.Context, orderNo string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.WithdrawalOrder
		if err := tx.Where("order_no = ?", orderNo).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errno.ErrOrderNotFound
			}
			return err
		}
		res := tx.Model(&model.WithdrawalOrder{}).
			Where("id = ? AND status = ?", order.ID, model.WithdrawalStatusPending).
			Update("status", model.WithdrawalStatusCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errno.ErrOrderStateConflict
		}
		return s.ledger.Unfreeze(tx, order.UserID, order.AssetID, order.Amount, model.MutationWithdrawUnfreeze, order.OrderNo)
	})
}

// WithdrawOnce 处理一批 approved 订单。单笔失败只记日志,
// 订单留在 approved 等下一轮 (无退避, 无死信)。
func (s *WithdrawService) WithdrawOnce(ctx context.Context) error {
	if !s.latch.TryLock() {
		logger.Debug("上一轮提现尚未结束, 跳过")
		return nil
	}
	defer s.latch.Unlock()

	var orders []model.WithdrawalOrder
	err := s.db.WithContext(ctx).
		Where("status = ?", model.WithdrawalStatusApproved).
		Order("created_at asc").Limit(withdrawBatchSize).
		Find(&orders).Error
	if err != nil {
		return err
	}

	for i := range orders {
		err := s.payout(ctx, &orders[i])
		switch {
		case err == nil:
		case errno.IsValidation(err):
			// 校验类错误重试也不会变好, 升级日志等人工介入
			logger.Error("提现订单校验失败, 不会自动恢复",
				zap.String("order_no", orders[i].OrderNo), zap.Error(err))
		case errno.IsBusiness(err):
			// 余额/资源类缺口: 留在 approved 等下一轮
			logger.Warn("提现出账暂缓", zap.String("order_no", orders[i].OrderNo), zap.Error(err))
		default:
			logger.Error("提现出账失败", zap.String("order_no", orders[i].OrderNo), zap.Error(err))
		}
	}
	return nil
}

// payout 校验热钱包余额与资源后广播出账。
// 余额不够时订单原地不动: 绝不广播打不满额的交易。
func (s *WithdrawService) payout(ctx context.Context, order *model.WithdrawalOrder) error {
	asset, ok := s.assets[order.AssetID]
	if !ok {
		return errno.ErrUnsupportedAsset
	}
	hot := s.wallet.HotAddress

	var broadcast func(sign chain.SignContext) (string, error)
	if asset.Contract == "" {
		amountSun := order.ActualAmount.IntPart()
		hotBal, err := s.client.GetBalance(ctx, hot)
		if err != nil {
			return err
		}
		if hotBal < amountSun {
			logger.Warn("热钱包余额不足, 提现订单等待下一轮",
				zap.String("order_no", order.OrderNo),
				zap.Int64("need", amountSun), zap.Int64("have", hotBal))
			return errno.ErrHotWalletUnderfunded
		}
		bwShort, _, err := s.fee.Shortfall(ctx, hot, s.fee.EstimateNativeTransfer(), 0)
		if err != nil {
			return err
		}
		if bwShort > 0 {
			return errno.ErrInsufficientBandwidth
		}
		broadcast = func(sign chain.SignContext) (string, error) {
			return s.client.TransferNative(ctx, sign, order.ToAddress, amountSun)
		}
	} else {
		amount := order.ActualAmount.BigInt()
		hotBal, err := s.client.GetTokenBalance(ctx, hot, asset.Contract)
		if err != nil {
			return err
		}
		if hotBal.Cmp(amount) < 0 {
			logger.Warn("热钱包代币余额不足, 提现订单等待下一轮",
				zap.String("order_no", order.OrderNo), zap.String("asset", order.AssetID))
			return errno.ErrHotWalletUnderfunded
		}
		needEnergy, needBandwidth, err := s.fee.EstimateTokenTransfer(ctx, hot, asset.Contract, order.ToAddress, amount)
		if err != nil {
			return err
		}
		bwShort, enShort, err := s.fee.Shortfall(ctx, hot, needBandwidth, needEnergy)
		if err != nil {
			return err
		}
		if bwShort > 0 {
			return errno.ErrInsufficientBandwidth
		}
		if enShort > 0 {
			if err := s.energy.RentEnergyInternal(ctx, hot, enShort); err != nil {
				return err
			}
		}
		contract := asset.Contract
		broadcast = func(sign chain.SignContext) (string, error) {
			return s.client.TransferToken(ctx, sign, contract, order.ToAddress, amount, s.chain.TRC20FeeLimit)
		}
	}

	sign, err := s.keys.PlatformSigningContext(ctx, hot, "", 0)
	if err != nil {
		return err
	}
	txID, err := broadcast(sign)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&model.WithdrawalOrder{}).
		Where("id = ? AND status = ?", order.ID, model.WithdrawalStatusApproved).
		Updates(map[string]interface{}{
			"status":  model.WithdrawalStatusProcessing,
			"tx_hash": txID,
		})
	if res.Error != nil {
		return res.Error
	}
	logger.Info("提现已广播",
		zap.String("order_no", order.OrderNo),
		zap.String("to", order.ToAddress),
		zap.String("amount", order.ActualAmount.String()),
		zap.String("tx", txID))

	go s.watchWithdrawal(context.WithoutCancel(ctx), order.ID, txID)
	return nil
}

// watchWithdrawal 有界轮询出账交易并落定资金去向:
// 成功 → 冻结永久扣除 (settled); 失败 → 解冻退回 (failed)。
// 超时只停表, 订单停在 processing 等人工或对账介入。
func (s *WithdrawService) watchWithdrawal(ctx context.Context, orderID uint64, txID string) {
	info, err := watchTransaction(ctx, s.client, txID, s.watchTimeout, s.watchInterval)
	if err != nil {
		if errno.IsChain(err) {
			logger.Warn("提现交易确认超时", zap.String("tx", txID), zap.Error(err))
		} else {
			logger.Warn("提现交易监视中止", zap.String("tx", txID), zap.Error(err))
		}
		return
	}

	var order model.WithdrawalOrder
	if err := s.db.First(&order, orderID).Error; err != nil {
		logger.Error("读取提现订单失败", zap.Uint64("order_id", orderID), zap.Error(err))
		return
	}

	if info.Success {
		err = s.settle(ctx, &order)
	} else {
		err = s.fail(ctx, &order, "链上执行失败")
	}
	if err != nil {
		logger.Error("提现结算失败", zap.String("order_no", order.OrderNo), zap.Error(err))
	}
}

func (s *WithdrawService) settle(ctx context.Context, order *model.WithdrawalOrder) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.WithdrawalOrder{}).
			Where("id = ? AND status = ?", order.ID, model.WithdrawalStatusProcessing).
			Update("status", model.WithdrawalStatusSettled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // 已被处理
		}
		if err := s.ledger.SubFrozen(tx, order.UserID, order.AssetID, order.Amount, model.MutationWithdraw, order.OrderNo); err != nil {
			return err
		}
		if err := model.CreateOutboxMessage(tx, TopicWithdrawalSettled, map[string]interface{}{
			"order_no": order.OrderNo,
			"user_id":  order.UserID,
			"asset_id": order.AssetID,
			"amount":   order.Amount.String(),
			"tx_hash":  order.TxHash,
		}); err != nil {
			return err
		}
		if monitor.Business != nil {
			monitor.Business.WithdrawalSuccessTotal.WithLabelValues(order.AssetID).Inc()
		}
		logger.Info("提现已结算", zap.String("order_no", order.OrderNo))
		return nil
	})
}

func (s *WithdrawService) fail(ctx context.Context, order *model.WithdrawalOrder, reason string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.WithdrawalOrder{}).
			Where("id = ? AND status = ?", order.ID, model.WithdrawalStatusProcessing).
			Updates(map[string]interface{}{
				"status":         model.WithdrawalStatusFailed,
				"failure_reason": reason,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := s.ledger.Unfreeze(tx, order.UserID, order.AssetID, order.Amount, model.MutationWithdrawUnfreeze, order.OrderNo); err != nil {
			return err
		}
		if monitor.Business != nil {
			monitor.Business.WithdrawalFailedTotal.WithLabelValues(order.AssetID).Inc()
		}
		logger.Warn("提现失败, 冻结已退回", zap.String("order_no", order.OrderNo), zap.String("reason", reason))
		return nil
	})
}
