package service

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tron-wallet-core/internal/chain"
	"tron-wallet-core/internal/model"
	"tron-wallet-core/pkg/config"
)

func newConfirmFixture(t *testing.T, stub *stubChain) (*ConfirmService, *gorm.DB, *LedgerService) {
	db := newTestDB(t)
	keys, fee := newTestKeys(t, db)
	ledger := NewLedgerService(db)
	chainCfg := config.ChainConfig{Code: "TRON", Confirmations: 19, ActivateAmount: 1_000_000}
	walletCfg := config.WalletConfig{FeeAddress: fee}
	svc := NewConfirmService(db, stub, ledger, keys, chainCfg, walletCfg)
	return svc, db, ledger
}

func seedPendingDeposit(t *testing.T, db *gorm.DB, hash string, userID uint64, amount int64, blockNumber int64) *model.DepositTransaction {
	t.Helper()
	dep := &model.DepositTransaction{
		UserID: userID, Hash: hash,
		FromAddress: testHotAddr, ToAddress: testUserAddr,
		AssetID: "TRX", Amount: d(amount),
		BlockNumber: blockNumber, Status: model.DepositStatusPending,
	}
	require.NoError(t, db.Create(dep).Error)
	return dep
}

func TestConfirmWaitsForDepth(t *testing.T) {
	stub := &stubChain{latestHeight: 110}
	svc, db, _ := newConfirmFixture(t, stub)
	dep := seedPendingDeposit(t, db, "tx-1", 1, 5_000_000, 100) // 深度 10 < 19

	require.NoError(t, svc.ConfirmOnce(context.Background()))

	require.NoError(t, db.First(dep, dep.ID).Error)
	assert.Equal(t, model.DepositStatusPending, dep.Status)
}

func TestConfirmCreditsExactlyOnce(t *testing.T) {
	stub := &stubChain{latestHeight: 120}
	svc, db, ledger := newConfirmFixture(t, stub)
	dep := seedPendingDeposit(t, db, "tx-1", 1, 5_000_000, 100) // 深度 20 ≥ 19

	require.NoError(t, svc.ConfirmOnce(context.Background()))
	// 第二轮确认不会重复入账
	require.NoError(t, svc.ConfirmOnce(context.Background()))

	require.NoError(t, db.First(dep, dep.ID).Error)
	assert.Equal(t, model.DepositStatusConfirmed, dep.Status)
	assert.EqualValues(t, 120, dep.ConfirmBlock)

	w, err := ledger.GetBalance(context.Background(), 1, "TRX")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d(5_000_000)), "balance = %s", w.Balance)

	// 恰好一条 DEPOSIT 流水
	var entries int64
	db.Model(&model.WalletLedgerEntry{}).
		Where("order_id = ? AND mutation_type = ?", strconv.FormatUint(dep.ID, 10), model.MutationDeposit).
		Count(&entries)
	assert.EqualValues(t, 1, entries)

	// 入账事件进了 outbox
	var outbox int64
	db.Model(&model.OutboxMessage{}).Where("topic = ?", TopicDepositCredited).Count(&outbox)
	assert.EqualValues(t, 1, outbox)
}

func TestConfirmMarksOnChainFailure(t *testing.T) {
	stub := &stubChain{
		latestHeight: 120,
		txInfo: func(txID string) (*chain.TxInfo, error) {
			return &chain.TxInfo{ID: txID, Found: true, Success: false}, nil
		},
	}
	svc, db, ledger := newConfirmFixture(t, stub)
	dep := seedPendingDeposit(t, db, "tx-bad", 1, 5_000_000, 100)

	require.NoError(t, svc.ConfirmOnce(context.Background()))

	require.NoError(t, db.First(dep, dep.ID).Error)
	assert.Equal(t, model.DepositStatusFailed, dep.Status)

	// 失败交易不入账
	w, _ := ledger.GetBalance(context.Background(), 1, "TRX")
	assert.True(t, w.Balance.IsZero())
}

func TestConfirmSkipsUnindexedTransaction(t *testing.T) {
	// 深度已够但节点查不到: 本轮跳过, 留给下一轮
	stub := &stubChain{
		latestHeight: 120,
		txInfo: func(txID string) (*chain.TxInfo, error) {
			return &chain.TxInfo{Found: false}, nil
		},
	}
	svc, db, _ := newConfirmFixture(t, stub)
	dep := seedPendingDeposit(t, db, "tx-lag", 1, 5_000_000, 100)

	require.NoError(t, svc.ConfirmOnce(context.Background()))

	require.NoError(t, db.First(dep, dep.ID).Error)
	assert.Equal(t, model.DepositStatusPending, dep.Status)
}

func TestConfirmOldestFirst(t *testing.T) {
	stub := &stubChain{latestHeight: 200}
	svc, db, _ := newConfirmFixture(t, stub)
	seedPendingDeposit(t, db, "tx-old", 1, 1_000_000, 100)
	seedPendingDeposit(t, db, "tx-new", 2, 2_000_000, 150)

	require.NoError(t, svc.ConfirmOnce(context.Background()))

	// 两笔都满足深度, 都被确认, 且流水按创建顺序生成
	var entries []model.WalletLedgerEntry
	require.NoError(t, db.Order("id asc").Find(&entries).Error)
	require.Len(t, entries, 2)
	assert.EqualValues(t, 1, entries[0].UserID)
	assert.EqualValues(t, 2, entries[1].UserID)
}
