package service

import (
	"context"
	"fmt"
	"sort"
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
	"tron-wallet-core/pkg/safe_random"
)

const sunPerTrx = 1_000_000

// EnergyService 能量委托市场: 对外出租能量，对内为归集/提现补能量。
// 委托的 owner 是资源钱包，但签名由热钱包以多签权限位代签，
// 资源钱包主私钥永远不上线。
type EnergyService struct {
	db            *gorm.DB
	client        chain.Client
	fee           *FeeService
	ledger        *LedgerService
	keys          *KeyService
	nativeSymbol  string
	wallet        config.WalletConfig
	minRentAmount int64
	tiers         []config.EnergyTier

	reclaimLatch runLatch
}

func NewEnergyService(db *gorm.DB, client chain.Client, fee *FeeService, ledger *LedgerService, keys *KeyService, nativeSymbol string, walletCfg config.WalletConfig, energyCfg config.EnergyConfig) *EnergyService {
	tiers := make([]config.EnergyTier, len(energyCfg.Tiers))
	copy(tiers, energyCfg.Tiers)
	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].DurationMinutes < tiers[j].DurationMinutes
	})
	return &EnergyService{
		db:            db,
		client:        client,
		fee:           fee,
		ledger:        ledger,
		keys:          keys,
		nativeSymbol:  nativeSymbol,
		wallet:        walletCfg,
		minRentAmount: energyCfg.MinRentAmount,
		tiers:         tiers,
	}
}

// RentEnergy 用户租用能量。
// 计费按时长阶梯向上取整: 请求 30 分钟按 60 分钟档计费并按 60 分钟履约。
// 委托广播失败时订单记 Failed，已扣租金不退（回收同样不退，见订单语义）。
func (s *EnergyService) RentEnergy(ctx context.Context, userID uint64, receiver string, energyAmount, durationMinutes int64) (*model.DelegationOrder, error) {
	if !tron.ValidAddress(receiver) {
		return nil, errno.ErrInvalidAddress
	}
	if energyAmount <= 0 {
		return nil, errno.ErrInvalidAmount
	}
	if energyAmount < s.minRentAmount {
		return nil, errno.ErrRentBelowMinimum
	}
	tier, err := s.pickTier(durationMinutes)
	if err != nil {
		return nil, err
	}

	// 未激活地址收不到委托，提前拦截避免白白广播
	exists, err := s.client.AccountExists(ctx, receiver)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errno.ErrReceiverNotActivated
	}

	free, err := s.fee.PoolFreeEnergy(ctx)
	if err != nil {
		return nil, err
	}
	if free < energyAmount {
		return nil, errno.ErrInsufficientPlatformPower
	}

	stakeSun := s.stakeSunFor(ctx, energyAmount)
	price, err := s.tierPrice(tier, energyAmount)
	if err != nil {
		return nil, err
	}

	order := &model.DelegationOrder{
		OrderNo:         newOrderNo("EN"),
		UserID:          userID,
		ReceiverAddress: receiver,
		EnergyAmount:    energyAmount,
		TrxAmount:       decimal.NewFromInt(stakeSun),
		Price:           price,
		DurationSeconds: tier.DurationMinutes * 60,
		Status:          model.DelegationStatusPending,
	}

	// 下单与扣租金同一事务: 租金扣不动则订单不会存在
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		if userID == 0 {
			return nil // 平台自用，不走用户账本
		}
		return s.ledger.Sub(tx, userID, s.nativeSymbol, price, model.MutationEnergyRent, order.OrderNo)
	})
	if err != nil {
		return nil, err
	}

	if err := s.executeDelegation(ctx, order, stakeSun, tier.DurationMinutes); err != nil {
		return nil, err
	}
	return order, nil
}

// RentEnergyInternal 平台自租: 归集/提现发现能量缺口时补齐。
// 不计费 (UserID=0)，时长取最小档，能量至少补到市场最低量
// 以复用同一条委托路径。
func (s *EnergyService) RentEnergyInternal(ctx context.Context, receiver string, energyShort int64) error {
	if len(s.tiers) == 0 {
		return errno.ErrDurationUnsupported
	}
	amount := energyShort
	if amount < s.minRentAmount {
		amount = s.minRentAmount
	}

	free, err := s.fee.PoolFreeEnergy(ctx)
	if err != nil {
		return err
	}
	if free < amount {
		return errno.ErrInsufficientPlatformPower
	}

	stakeSun := s.stakeSunFor(ctx, amount)
	tier := s.tiers[0]
	order := &model.DelegationOrder{
		OrderNo:         newOrderNo("EI"),
		UserID:          0,
		ReceiverAddress: receiver,
		EnergyAmount:    amount,
		TrxAmount:       decimal.NewFromInt(stakeSun),
		Price:           decimal.Zero,
		DurationSeconds: tier.DurationMinutes * 60,
		Status:          model.DelegationStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return err
	}
	return s.executeDelegation(ctx, order, stakeSun, tier.DurationMinutes)
}

// ReclaimExpired 回收到期委托。逐单处理，单笔失败只记日志不影响其余。
func (s *EnergyService) ReclaimExpired(ctx context.Context) error {
	if !s.reclaimLatch.TryLock() {
		logger.Debug("上一轮能量回收尚未结束, 跳过")
		return nil
	}
	defer s.reclaimLatch.Unlock()

	var orders []model.DelegationOrder
	err := s.db.WithContext(ctx).
		Where("status = ? AND expire_at IS NOT NULL AND expire_at <= ?", model.DelegationStatusSuccess, time.Now()).
		Order("expire_at asc").Limit(100).
		Find(&orders).Error
	if err != nil {
		return err
	}

	for i := range orders {
		if err := s.reclaimOne(ctx, &orders[i]); err != nil {
			logger.Error("回收委托失败", zap.String("order_no", orders[i].OrderNo), zap.Error(err))
		}
	}
	return nil
}

func (s *EnergyService) reclaimOne(ctx context.Context, order *model.DelegationOrder) error {
	sign, err := s.delegationSignContext(ctx)
	if err != nil {
		return err
	}
	txID, err := s.client.UndelegateEnergy(ctx, sign, order.ReceiverAddress, order.TrxAmount.IntPart())
	if err != nil {
		return err
	}

	// 状态守卫: 只有仍处于 success 的订单才被标记, 重复回收是 no-op
	res := s.db.WithContext(ctx).Model(&model.DelegationOrder{}).
		Where("id = ? AND status = ?", order.ID, model.DelegationStatusSuccess).
		Updates(map[string]interface{}{
			"status":          model.DelegationStatusReclaimed,
			"reclaim_tx_hash": txID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		if monitor.Business != nil {
			monitor.Business.EnergyReclaimedTotal.Inc()
		}
		logger.Info("委托已回收",
			zap.String("order_no", order.OrderNo),
			zap.String("receiver", order.ReceiverAddress),
			zap.String("tx", txID))
	}
	return nil
}

func (s *EnergyService) executeDelegation(ctx context.Context, order *model.DelegationOrder, stakeSun, durationMinutes int64) error {
	// 计费已先于委托落库: 此后任何失败都必须把订单推进到 failed，
	// pending 没有任何管道会再来收尾
	sign, err := s.delegationSignContext(ctx)
	if err != nil {
		s.markDelegationFailed(order, err)
		return err
	}

	txID, err := s.client.DelegateEnergy(ctx, sign, order.ReceiverAddress, stakeSun)
	if err != nil {
		s.markDelegationFailed(order, err)
		return err
	}

	expireAt := time.Now().Add(time.Duration(durationMinutes) * time.Minute)
	err = s.db.Model(order).
		Where("status = ?", model.DelegationStatusPending).
		Updates(map[string]interface{}{
			"status":    model.DelegationStatusSuccess,
			"tx_hash":   txID,
			"expire_at": expireAt,
		}).Error
	if err != nil {
		return err
	}
	order.Status = model.DelegationStatusSuccess
	order.TxHash = txID
	order.ExpireAt = &expireAt

	if monitor.Business != nil {
		monitor.Business.EnergyRentedTotal.Add(float64(order.EnergyAmount))
	}
	logger.Info("能量委托成功",
		zap.String("order_no", order.OrderNo),
		zap.String("receiver", order.ReceiverAddress),
		zap.Int64("energy", order.EnergyAmount),
		zap.Int64("stake_sun", stakeSun),
		zap.String("tx", txID))
	return nil
}

// markDelegationFailed 租金不退: 失败原因留档，人工或对账介入
func (s *EnergyService) markDelegationFailed(order *model.DelegationOrder, cause error) {
	if dbErr := s.db.Model(order).
		Where("status = ?", model.DelegationStatusPending).
		Updates(map[string]interface{}{
			"status":      model.DelegationStatusFailed,
			"fail_reason": cause.Error(),
		}).Error; dbErr != nil {
		logger.Error("记录委托失败状态出错", zap.String("order_no", order.OrderNo), zap.Error(dbErr))
	}
	order.Status = model.DelegationStatusFailed
	order.FailReason = cause.Error()
}

// delegationSignContext 热钱包私钥 + 资源钱包身份 + 配置的权限位
func (s *EnergyService) delegationSignContext(ctx context.Context) (chain.SignContext, error) {
	return s.keys.PlatformSigningContext(ctx, s.wallet.HotAddress, s.wallet.ResourceAddress, s.wallet.PermissionID)
}

// stakeSunFor 能量量 → 需委托的质押量 (sun)。委托下限 1 TRX。
func (s *EnergyService) stakeSunFor(ctx context.Context, energyAmount int64) int64 {
	stakeSun := s.fee.EnergyToStake(ctx, energyAmount) * sunPerTrx
	if stakeSun < sunPerTrx {
		stakeSun = sunPerTrx
	}
	return stakeSun
}

// pickTier 取第一个时长不小于请求值的档位; 超过最大档直接拒绝
func (s *EnergyService) pickTier(durationMinutes int64) (config.EnergyTier, error) {
	if durationMinutes <= 0 {
		return config.EnergyTier{}, errno.ErrDurationUnsupported
	}
	for _, tier := range s.tiers {
		if tier.DurationMinutes >= durationMinutes {
			return tier, nil
		}
	}
	return config.EnergyTier{}, errno.ErrDurationUnsupported
}

func (s *EnergyService) tierPrice(tier config.EnergyTier, energyAmount int64) (decimal.Decimal, error) {
	unit, err := decimal.NewFromString(tier.PriceSun)
	if err != nil {
		return decimal.Zero, fmt.Errorf("价格档位配置非法 %q: %w", tier.PriceSun, err)
	}
	return unit.Mul(decimal.NewFromInt(energyAmount)).Floor(), nil
}

// newOrderNo 订单号: 前缀 + 纳秒时间戳 + 随机尾部
func newOrderNo(prefix string) string {
	suffix, err := safe_random.GenerateRandomHexString(4)
	if err != nil {
		suffix = "00000000"
	}
	return fmt.Sprintf("%s%d%s", prefix, time.Now().UnixNano(), suffix)
}
