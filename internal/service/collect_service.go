package service

import (
	"context"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tron-wallet-core/internal/chain"
	"tron-wallet-core/internal/model"
	"tron-wallet-core/pkg/config"
	"tron-wallet-core/pkg/logger"
	"tron-wallet-core/pkg/monitor"
)

const collectBatchSize = 200

// CollectService 归集管道: 把已确认充值地址上的资产扫进热钱包。
// 每轮内按地址去重: 归集是整额清空，同地址的第二笔充值
// 留给下一轮，绝不与第一笔并发竞争。
type CollectService struct {
	db     *gorm.DB
	client chain.Client
	fee    *FeeService
	energy *EnergyService
	keys   *KeyService
	chain  config.ChainConfig
	wallet config.WalletConfig

	watchTimeout  time.Duration
	watchInterval time.Duration

	latch runLatch
}

func NewCollectService(db *gorm.DB, client chain.Client, fee *FeeService, energy *EnergyService, keys *KeyService, chainCfg config.ChainConfig, walletCfg config.WalletConfig, taskCfg config.TaskConfig) *CollectService {
	return &CollectService{
		db:            db,
		client:        client,
		fee:           fee,
		energy:        energy,
		keys:          keys,
		chain:         chainCfg,
		wallet:        walletCfg,
		watchTimeout:  time.Duration(taskCfg.WatchTimeoutSec) * time.Second,
		watchInterval: time.Duration(taskCfg.WatchIntervalSec) * time.Second,
	}
}

// CollectOnce 处理一批 confirmed 充值。单笔失败只记日志。
func (s *CollectService) CollectOnce(ctx context.Context) error {
	if !s.latch.TryLock() {
		logger.Debug("上一轮归集尚未结束, 跳过")
		return nil
	}
	defer s.latch.Unlock()

	start := time.Now()
	defer func() {
		if monitor.Business != nil {
			monitor.Business.CollectJobDuration.WithLabelValues(s.chain.Code).Observe(time.Since(start).Seconds())
		}
	}()

	var deposits []model.DepositTransaction
	err := s.db.WithContext(ctx).
		Where("status = ?", model.DepositStatusConfirmed).
		Order("created_at asc").Limit(collectBatchSize).
		Find(&deposits).Error
	if err != nil {
		return err
	}

	// 同一地址每轮只扫一次
	sweptAddr := make(map[string]struct{}, len(deposits))
	for i := range deposits {
		d := &deposits[i]
		if _, done := sweptAddr[d.ToAddress]; done {
			continue
		}
		sweptAddr[d.ToAddress] = struct{}{}
		if err := s.sweepOne(ctx, d); err != nil {
			logger.Error("归集失败", zap.String("address", d.ToAddress), zap.String("tx", d.Hash), zap.Error(err))
		}
	}
	return nil
}

func (s *CollectService) sweepOne(ctx context.Context, d *model.DepositTransaction) error {
	if d.Contract == "" {
		return s.sweepNative(ctx, d)
	}
	return s.sweepToken(ctx, d)
}

func (s *CollectService) sweepNative(ctx context.Context, d *model.DepositTransaction) error {
	balance, err := s.client.GetBalance(ctx, d.ToAddress)
	if err != nil {
		return err
	}
	if balance <= 0 {
		// 上一轮已经扫空, 只补状态
		return s.markCollected(ctx, d, nil, "")
	}

	// 原生归集只用地址自身带宽, 不足就等它回复, 从不垫资
	bwShort, _, err := s.fee.Shortfall(ctx, d.ToAddress, s.fee.EstimateNativeTransfer(), 0)
	if err != nil {
		return err
	}
	if bwShort > 0 {
		logger.Warn("带宽不足, 跳过原生归集",
			zap.String("address", d.ToAddress), zap.Int64("bandwidth_short", bwShort))
		return nil
	}

	sign, err := s.keys.SigningContext(ctx, d.ToAddress)
	if err != nil {
		return err
	}
	txID, err := s.client.TransferNative(ctx, sign, s.wallet.HotAddress, balance)
	if err != nil {
		return err
	}

	coll := &model.CollectionTransaction{
		DepositID:   d.ID,
		TxHash:      txID,
		FromAddress: d.ToAddress,
		ToAddress:   s.wallet.HotAddress,
		Amount:      decimal.NewFromInt(balance),
		GasFee:      decimal.Zero,
		Status:      model.DepositStatusPending,
	}
	if err := s.markCollected(ctx, d, coll, txID); err != nil {
		return err
	}
	go s.watchCollection(context.WithoutCancel(ctx), coll.ID, txID)
	return nil
}

func (s *CollectService) sweepToken(ctx context.Context, d *model.DepositTransaction) error {
	tokenBal, err := s.client.GetTokenBalance(ctx, d.ToAddress, d.Contract)
	if err != nil {
		return err
	}
	if tokenBal.Sign() <= 0 {
		return s.markCollected(ctx, d, nil, "")
	}

	needEnergy, needBandwidth, err := s.fee.EstimateTokenTransfer(ctx, d.ToAddress, d.Contract, s.wallet.HotAddress, tokenBal)
	if err != nil {
		return err
	}
	bwShort, enShort, err := s.fee.Shortfall(ctx, d.ToAddress, needBandwidth, needEnergy)
	if err != nil {
		return err
	}
	if bwShort > 0 {
		logger.Warn("带宽不足, 跳过代币归集",
			zap.String("address", d.ToAddress), zap.Int64("bandwidth_short", bwShort))
		return nil
	}
	if enShort > 0 {
		// 只差能量: 向自家市场租, 租到再继续
		if err := s.energy.RentEnergyInternal(ctx, d.ToAddress, enShort); err != nil {
			return err
		}
		logger.Info("已为归集地址自租能量",
			zap.String("address", d.ToAddress), zap.Int64("energy", enShort))
	}

	sign, err := s.keys.SigningContext(ctx, d.ToAddress)
	if err != nil {
		return err
	}
	txID, err := s.client.TransferToken(ctx, sign, d.Contract, s.wallet.HotAddress, tokenBal, s.chain.TRC20FeeLimit)
	if err != nil {
		return err
	}

	coll := &model.CollectionTransaction{
		DepositID:   d.ID,
		TxHash:      txID,
		FromAddress: d.ToAddress,
		ToAddress:   s.wallet.HotAddress,
		Amount:      decimal.NewFromBigInt(new(big.Int).Set(tokenBal), 0),
		GasFee:      decimal.Zero,
		Status:      model.DepositStatusPending,
	}
	if err := s.markCollected(ctx, d, coll, txID); err != nil {
		return err
	}
	go s.watchCollection(context.WithoutCancel(ctx), coll.ID, txID)
	return nil
}

// markCollected 归集记录与充值状态翻转同一事务:
// 不存在"已发送但没标记"或"标记了两次"的中间态。
// coll 为 nil 表示余额已为零的幂等补标。
func (s *CollectService) markCollected(ctx context.Context, d *model.DepositTransaction, coll *model.CollectionTransaction, txID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.DepositTransaction{}).
			Where("id = ? AND status = ?", d.ID, model.DepositStatusConfirmed).
			Update("status", model.DepositStatusCollected)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // 已被处理过
		}
		if coll == nil {
			logger.Info("地址余额为零, 直接补标已归集", zap.String("address", d.ToAddress))
			return nil
		}
		if err := tx.Create(coll).Error; err != nil {
			return err
		}
		logger.Info("归集交易已广播",
			zap.String("address", d.ToAddress),
			zap.String("amount", coll.Amount.String()),
			zap.String("tx", txID))
		return nil
	})
}

// watchCollection 有界轮询归集交易的最终状态并回写记录。
// 超时就停, 不重试。
func (s *CollectService) watchCollection(ctx context.Context, collectionID uint64, txID string) {
	info, err := watchTransaction(ctx, s.client, txID, s.watchTimeout, s.watchInterval)
	if err != nil {
		logger.Warn("归集交易确认超时", zap.String("tx", txID), zap.Error(err))
		return
	}

	status := model.DepositStatusConfirmed
	if !info.Success {
		status = model.DepositStatusFailed
	}
	err = s.db.Model(&model.CollectionTransaction{}).
		Where("id = ?", collectionID).
		Updates(map[string]interface{}{
			"status":  status,
			"gas_fee": decimal.NewFromInt(info.Fee),
		}).Error
	if err != nil {
		logger.Error("回写归集状态失败", zap.String("tx", txID), zap.Error(err))
		return
	}
	logger.Info("归集交易已确认", zap.String("tx", txID), zap.String("status", status))
}
