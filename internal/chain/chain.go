package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/shopspring/decimal"

	"tron-wallet-core/internal/model"
)

// TransferEvent 扫块阶段抽取出的一笔转账 (原生转账或 TRC20 合约调用)
type TransferEvent struct {
	TxHash      string
	From        string
	To          string
	AssetID     string
	Contract    string // base58, 原生资产为空
	Amount      decimal.Decimal
	BlockNumber int64
}

// AccountResource 地址当前的资源视图 + 全网资源总量
type AccountResource struct {
	FreeNetLimit      int64
	FreeNetUsed       int64
	NetLimit          int64
	NetUsed           int64
	EnergyLimit       int64
	EnergyUsed        int64
	TotalNetLimit     int64
	TotalNetWeight    int64
	TotalEnergyLimit  int64
	TotalEnergyWeight int64
}

// FreeBandwidth 当前可用带宽 (免费额度 + 质押额度)
func (r *AccountResource) FreeBandwidth() int64 {
	return (r.FreeNetLimit - r.FreeNetUsed) + (r.NetLimit - r.NetUsed)
}

// FreeEnergy 当前可用能量
func (r *AccountResource) FreeEnergy() int64 {
	return r.EnergyLimit - r.EnergyUsed
}

// TxInfo 链上交易最终执行状态
type TxInfo struct {
	ID          string
	Found       bool
	Success     bool
	BlockNumber int64
	Fee         int64
	EnergyUsed  int64
	NetUsed     int64
}

// SignContext 签名上下文: 构造交易时一次性给定签名私钥、
// 以谁的身份发起 (OwnerAddress)、以及使用哪个权限位。
// PermissionID = 0 表示 owner 权限自签; 非 0 表示运营钱包
// 代 OwnerAddress 行使多签授权。
type SignContext struct {
	PrivateKey   *ecdsa.PrivateKey
	OwnerAddress string // base58
	PermissionID int32
}

// Adapter 是管道的扫块面。每条受支持的链是一个实现，
// 通用的 Scan/Confirm/Collect/Withdraw 阶段只面向接口编写。
type Adapter interface {
	ChainCode() string
	LatestBlockHeight(ctx context.Context) (int64, error)
	// FetchBlockTransfers 抓取并解析一个区块内全部转账形状的操作
	FetchBlockTransfers(ctx context.Context, height int64) ([]TransferEvent, error)
	// BuildDeposit 把一条转账事件转换为充值实体
	BuildDeposit(ev TransferEvent, userID uint64) *model.DepositTransaction
}

// Client 是钱包操作面: 余额/资源查询、估算、构造+签名+广播。
type Client interface {
	Adapter

	// AccountExists 地址是否已在链上激活
	AccountExists(ctx context.Context, address string) (bool, error)
	// GetBalance 原生资产余额 (sun)
	GetBalance(ctx context.Context, address string) (int64, error)
	// GetTokenBalance TRC20 余额 (最小单位)
	GetTokenBalance(ctx context.Context, address, contract string) (*big.Int, error)
	GetAccountResource(ctx context.Context, address string) (*AccountResource, error)
	// GetChainParameter 链级手续费参数; 第二个返回值表示 key 是否存在
	GetChainParameter(ctx context.Context, key string) (int64, bool, error)
	// EstimateTransferEnergy 对 TRC20 转账做 dry-run，返回 energy 消耗
	EstimateTransferEnergy(ctx context.Context, from, contract, to string, amount *big.Int) (int64, error)

	TransferNative(ctx context.Context, sign SignContext, to string, amountSun int64) (string, error)
	TransferToken(ctx context.Context, sign SignContext, contract, to string, amount *big.Int, feeLimit int64) (string, error)
	DelegateEnergy(ctx context.Context, sign SignContext, receiver string, stakeSun int64) (string, error)
	UndelegateEnergy(ctx context.Context, sign SignContext, receiver string, stakeSun int64) (string, error)

	GetTransactionInfo(ctx context.Context, txID string) (*TxInfo, error)
}
