package service

import (
	"context"
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tron-wallet-core/internal/chain"
	"tron-wallet-core/internal/model"
	"tron-wallet-core/pkg/keystore"
)

// 测试用的合法 base58 地址 (主网上真实存在的格式)
const (
	testHotAddr      = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	testFeeAddr      = "TKkfzfCX6iutUsfSmGi8TZVvH4zF1hPXvL"
	testResourceAddr = "TLsV52sRDL79HXGGm9yzwKibb6BeruhUzy"
	testUserAddr     = "TNPeeaaFB7K9cmo4uQpcU32zGK8G1NYqeL"
	testContract     = "TXYZopYRdj2D9XRtbG411XZZ3kM5VkAeBf"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	// 每个测试一个独立连接池, 避免 shared cache 跨测试串库
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrator().DropTable(model.AllModels()...))
	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}

// newTestKeys 构造内存 keystore 并导入一把平台热钱包私钥
func newTestKeys(t *testing.T, db *gorm.DB) (*KeyService, string) {
	t.Helper()
	keys := NewKeyService(db, keystore.NewMemoryStore(), keystore.NewWrapper("test-secret"), "TRON")
	priv, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	hot, err := keys.ImportPlatformKey(context.Background(), ethcrypto.FromECDSA(priv))
	require.NoError(t, err)
	return keys, hot
}

// stubChain 可编程的链客户端替身。未设置的回调走保守默认值。
type stubChain struct {
	latestHeight int64
	transfers    map[int64][]chain.TransferEvent

	accountExists  func(address string) (bool, error)
	balance        func(address string) (int64, error)
	tokenBalance   func(address, contract string) (*big.Int, error)
	resource       func(address string) (*chain.AccountResource, error)
	chainParam     func(key string) (int64, bool, error)
	estimateEnergy func(from, contract, to string) (int64, error)
	txInfo         func(txID string) (*chain.TxInfo, error)

	transferNative func(sign chain.SignContext, to string, amountSun int64) (string, error)
	transferToken  func(sign chain.SignContext, contract, to string, amount *big.Int) (string, error)
	delegate       func(sign chain.SignContext, receiver string, stakeSun int64) (string, error)
	undelegate     func(sign chain.SignContext, receiver string, stakeSun int64) (string, error)

	delegateCalls   []int64
	undelegateCalls []string
	nativeSends     []int64
	tokenSends      []*big.Int
}

func (s *stubChain) ChainCode() string { return "TRON" }

func (s *stubChain) LatestBlockHeight(context.Context) (int64, error) { return s.latestHeight, nil }

func (s *stubChain) FetchBlockTransfers(_ context.Context, height int64) ([]chain.TransferEvent, error) {
	return s.transfers[height], nil
}

func (s *stubChain) BuildDeposit(ev chain.TransferEvent, userID uint64) *model.DepositTransaction {
	return &model.DepositTransaction{
		UserID:      userID,
		Hash:        ev.TxHash,
		FromAddress: ev.From,
		ToAddress:   ev.To,
		AssetID:     ev.AssetID,
		Contract:    ev.Contract,
		Amount:      ev.Amount,
		BlockNumber: ev.BlockNumber,
		Status:      model.DepositStatusPending,
	}
}

func (s *stubChain) AccountExists(_ context.Context, address string) (bool, error) {
	if s.accountExists != nil {
		return s.accountExists(address)
	}
	return true, nil
}

func (s *stubChain) GetBalance(_ context.Context, address string) (int64, error) {
	if s.balance != nil {
		return s.balance(address)
	}
	return 0, nil
}

func (s *stubChain) GetTokenBalance(_ context.Context, address, contract string) (*big.Int, error) {
	if s.tokenBalance != nil {
		return s.tokenBalance(address, contract)
	}
	return big.NewInt(0), nil
}

func (s *stubChain) GetAccountResource(_ context.Context, address string) (*chain.AccountResource, error) {
	if s.resource != nil {
		return s.resource(address)
	}
	return &chain.AccountResource{
		FreeNetLimit:      1500,
		NetLimit:          100_000,
		EnergyLimit:       10_000_000,
		TotalEnergyLimit:  180_000_000_000,
		TotalEnergyWeight: 90_000_000_000,
	}, nil
}

func (s *stubChain) GetChainParameter(_ context.Context, key string) (int64, bool, error) {
	if s.chainParam != nil {
		return s.chainParam(key)
	}
	return 0, false, nil
}

func (s *stubChain) EstimateTransferEnergy(_ context.Context, from, contract, to string, _ *big.Int) (int64, error) {
	if s.estimateEnergy != nil {
		return s.estimateEnergy(from, contract, to)
	}
	return 65_000, nil
}

func (s *stubChain) TransferNative(_ context.Context, sign chain.SignContext, to string, amountSun int64) (string, error) {
	s.nativeSends = append(s.nativeSends, amountSun)
	if s.transferNative != nil {
		return s.transferNative(sign, to, amountSun)
	}
	return "native-tx", nil
}

func (s *stubChain) TransferToken(_ context.Context, sign chain.SignContext, contract, to string, amount *big.Int, _ int64) (string, error) {
	s.tokenSends = append(s.tokenSends, amount)
	if s.transferToken != nil {
		return s.transferToken(sign, contract, to, amount)
	}
	return "token-tx", nil
}

func (s *stubChain) DelegateEnergy(_ context.Context, sign chain.SignContext, receiver string, stakeSun int64) (string, error) {
	s.delegateCalls = append(s.delegateCalls, stakeSun)
	if s.delegate != nil {
		return s.delegate(sign, receiver, stakeSun)
	}
	return "delegate-tx", nil
}

func (s *stubChain) UndelegateEnergy(_ context.Context, sign chain.SignContext, receiver string, stakeSun int64) (string, error) {
	s.undelegateCalls = append(s.undelegateCalls, receiver)
	if s.undelegate != nil {
		return s.undelegate(sign, receiver, stakeSun)
	}
	return "undelegate-tx", nil
}

func (s *stubChain) GetTransactionInfo(_ context.Context, txID string) (*chain.TxInfo, error) {
	if s.txInfo != nil {
		return s.txInfo(txID)
	}
	return &chain.TxInfo{ID: txID, Found: true, Success: true}, nil
}

var _ chain.Client = (*stubChain)(nil)
