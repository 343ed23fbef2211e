package service

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"tron-wallet-core/internal/chain"
	"tron-wallet-core/pkg/logger"
)

// 链上参数取不到时的保守回退值
const (
	fallbackEnergyFeeSun    = 420   // getEnergyFee: 每单位 energy 燃烧价 (sun)
	fallbackBandwidthFeeSun = 1000  // getTransactionFee: 每字节燃烧价 (sun)

	// 全网资源基准的回退值 (数量级与主网一致)
	fallbackTotalEnergyLimit  = 180_000_000_000
	fallbackTotalEnergyWeight = 90_000_000_000

	// 交易体字节数的静态估算
	nativeTransferBytes = 268
	tokenTransferBytes  = 345
)

// FeeService 资源与费用测算: 能量→质押换算、转账资源估算、缺口计算。
// 所有链上参数都带回退值，节点缺参数时管道降级而不是停摆。
type FeeService struct {
	client          chain.Client
	resourceAddress string
}

func NewFeeService(client chain.Client, resourceAddress string) *FeeService {
	return &FeeService{client: client, resourceAddress: resourceAddress}
}

// EnergyToStake 计算产生 energy 单位能量需要委托多少质押 (TRX)。
// 公式: stake = energy * TotalEnergyWeight / TotalEnergyLimit, 向下取整。
// 全网基准优先取实时值，拿不到时退回静态基准。
func (s *FeeService) EnergyToStake(ctx context.Context, energy int64) int64 {
	limit := int64(fallbackTotalEnergyLimit)
	weight := int64(fallbackTotalEnergyWeight)

	res, err := s.client.GetAccountResource(ctx, s.resourceAddress)
	if err != nil {
		logger.Warn("查询全网资源基准失败, 使用回退值", zap.Error(err))
	} else if res.TotalEnergyLimit > 0 && res.TotalEnergyWeight > 0 {
		limit = res.TotalEnergyLimit
		weight = res.TotalEnergyWeight
	}

	stake := new(big.Int).Mul(big.NewInt(energy), big.NewInt(weight))
	stake.Div(stake, big.NewInt(limit))
	return stake.Int64()
}

// EnergyFeeSun 每单位 energy 的燃烧价格
func (s *FeeService) EnergyFeeSun(ctx context.Context) int64 {
	return s.chainParam(ctx, "getEnergyFee", fallbackEnergyFeeSun)
}

// BandwidthFeeSun 每字节带宽的燃烧价格
func (s *FeeService) BandwidthFeeSun(ctx context.Context) int64 {
	return s.chainParam(ctx, "getTransactionFee", fallbackBandwidthFeeSun)
}

// EstimateNativeTransfer 原生转账的资源消耗 (bandwidth 字节, energy 恒为 0)
func (s *FeeService) EstimateNativeTransfer() (bandwidth int64) {
	return nativeTransferBytes
}

// EstimateTokenTransfer TRC20 转账的资源消耗: energy 走节点 dry-run,
// bandwidth 用静态字节数估算。
func (s *FeeService) EstimateTokenTransfer(ctx context.Context, from, contract, to string, amount *big.Int) (energy, bandwidth int64, err error) {
	energy, err = s.client.EstimateTransferEnergy(ctx, from, contract, to, amount)
	if err != nil {
		return 0, 0, err
	}
	return energy, tokenTransferBytes, nil
}

// Shortfall 计算某地址相对于给定资源需求的缺口，0 表示充足。
func (s *FeeService) Shortfall(ctx context.Context, address string, needBandwidth, needEnergy int64) (bandwidthShort, energyShort int64, err error) {
	res, err := s.client.GetAccountResource(ctx, address)
	if err != nil {
		return 0, 0, err
	}
	if short := needBandwidth - res.FreeBandwidth(); short > 0 {
		bandwidthShort = short
	}
	if short := needEnergy - res.FreeEnergy(); short > 0 {
		energyShort = short
	}
	return bandwidthShort, energyShort, nil
}

// PoolFreeEnergy 平台资源钱包当前可委托的能量余量
func (s *FeeService) PoolFreeEnergy(ctx context.Context) (int64, error) {
	res, err := s.client.GetAccountResource(ctx, s.resourceAddress)
	if err != nil {
		return 0, err
	}
	return res.FreeEnergy(), nil
}

func (s *FeeService) chainParam(ctx context.Context, key string, fallback int64) int64 {
	val, ok, err := s.client.GetChainParameter(ctx, key)
	if err != nil {
		logger.Warn("查询链参数失败, 使用回退值", zap.String("key", key), zap.Error(err))
		return fallback
	}
	if !ok || val <= 0 {
		return fallback
	}
	return val
}
