package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tron-wallet-core/internal/chain"
	"tron-wallet-core/internal/model"
)

func newScannerFixture(t *testing.T, stub *stubChain) (*ScannerService, *gorm.DB, *MemoryCursorStore) {
	db := newTestDB(t)
	cursor := NewMemoryCursorStore()
	svc := NewScannerService(db, stub, cursor, 100_000, 0)
	return svc, db, cursor
}

func monitorAddress(t *testing.T, db *gorm.DB, userID uint64, address string) {
	t.Helper()
	require.NoError(t, db.Create(&model.DepositAddress{
		UserID: userID, Chain: "TRON", Address: address, SecretID: "addr:" + address,
	}).Error)
}

func transferTo(to, hash string, amountSun int64, height int64) chain.TransferEvent {
	return chain.TransferEvent{
		TxHash: hash, From: testHotAddr, To: to,
		AssetID: "TRX", Amount: d(amountSun), BlockNumber: height,
	}
}

func TestScanCreatesDepositsForMonitoredAddresses(t *testing.T) {
	stub := &stubChain{
		latestHeight: 102,
		transfers: map[int64][]chain.TransferEvent{
			101: {
				transferTo(testUserAddr, "tx-in", 5_000_000, 101),
				transferTo(testFeeAddr, "tx-other", 5_000_000, 101), // 非监控地址
			},
			102: {
				transferTo(testUserAddr, "tx-dust", 50_000, 102), // 低于粉尘阈值
			},
		},
	}
	svc, db, cursor := newScannerFixture(t, stub)
	monitorAddress(t, db, 7, testUserAddr)
	require.NoError(t, cursor.SetLastScannedBlock(context.Background(), "TRON", 100))

	require.NoError(t, svc.ScanOnce(context.Background()))

	var deposits []model.DepositTransaction
	require.NoError(t, db.Find(&deposits).Error)
	require.Len(t, deposits, 1)
	assert.Equal(t, "tx-in", deposits[0].Hash)
	assert.EqualValues(t, 7, deposits[0].UserID)
	assert.Equal(t, model.DepositStatusPending, deposits[0].Status)

	// 游标推进到最新高度
	h, err := cursor.GetLastScannedBlock(context.Background(), "TRON")
	require.NoError(t, err)
	assert.EqualValues(t, 102, h)
}

func TestScanDuplicateHashIsSilentNoop(t *testing.T) {
	stub := &stubChain{
		latestHeight: 101,
		transfers: map[int64][]chain.TransferEvent{
			101: {transferTo(testUserAddr, "tx-dup", 5_000_000, 101)},
		},
	}
	svc, db, cursor := newScannerFixture(t, stub)
	monitorAddress(t, db, 7, testUserAddr)
	require.NoError(t, cursor.SetLastScannedBlock(context.Background(), "TRON", 100))

	require.NoError(t, svc.ScanOnce(context.Background()))

	// 模拟崩溃后重扫同一区间
	require.NoError(t, cursor.SetLastScannedBlock(context.Background(), "TRON", 100))
	require.NoError(t, svc.ScanOnce(context.Background()))

	var count int64
	db.Model(&model.DepositTransaction{}).Where("hash = ?", "tx-dup").Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestScanUnsetCursorStartsOneBehindLatest(t *testing.T) {
	stub := &stubChain{
		latestHeight: 500,
		transfers: map[int64][]chain.TransferEvent{
			500: {transferTo(testUserAddr, "tx-500", 5_000_000, 500)},
			499: {transferTo(testUserAddr, "tx-499", 5_000_000, 499)},
		},
	}
	svc, db, cursor := newScannerFixture(t, stub)
	monitorAddress(t, db, 7, testUserAddr)

	require.NoError(t, svc.ScanOnce(context.Background()))

	// 首轮只扫最新块 (从 latest-1 起步)
	var hashes []string
	db.Model(&model.DepositTransaction{}).Pluck("hash", &hashes)
	assert.Equal(t, []string{"tx-500"}, hashes)

	h, _ := cursor.GetLastScannedBlock(context.Background(), "TRON")
	assert.EqualValues(t, 500, h)
}

func TestScanBlockDelayHonorsCancellation(t *testing.T) {
	stub := &stubChain{
		latestHeight: 102,
		transfers: map[int64][]chain.TransferEvent{
			101: {transferTo(testUserAddr, "tx-101", 5_000_000, 101)},
			102: {transferTo(testUserAddr, "tx-102", 5_000_000, 102)},
		},
	}
	db := newTestDB(t)
	cursor := NewMemoryCursorStore()
	// 块间延迟远超测试时限: 取消必须能打断等待, 不能睡满
	svc := NewScannerService(db, stub, cursor, 100_000, time.Hour)
	monitorAddress(t, db, 7, testUserAddr)
	require.NoError(t, cursor.SetLastScannedBlock(context.Background(), "TRON", 100))

	// 101 扫完进入块间等待后取消
	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(200*time.Millisecond, cancel)
	defer timer.Stop()
	defer cancel()

	require.NoError(t, svc.ScanOnce(ctx))

	// 101 已入账并计入游标, 102 因取消留给下一轮
	h, err := cursor.GetLastScannedBlock(context.Background(), "TRON")
	require.NoError(t, err)
	assert.EqualValues(t, 101, h)

	var count int64
	db.Model(&model.DepositTransaction{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestScanTokenDepositBypassesDustFilter(t *testing.T) {
	// 粉尘过滤只针对原生资产
	ev := chain.TransferEvent{
		TxHash: "tx-usdt", From: testHotAddr, To: testUserAddr,
		AssetID: "USDT", Contract: testContract, Amount: d(10), BlockNumber: 101,
	}
	stub := &stubChain{latestHeight: 101, transfers: map[int64][]chain.TransferEvent{101: {ev}}}
	svc, db, cursor := newScannerFixture(t, stub)
	monitorAddress(t, db, 7, testUserAddr)
	require.NoError(t, cursor.SetLastScannedBlock(context.Background(), "TRON", 100))

	require.NoError(t, svc.ScanOnce(context.Background()))

	var count int64
	db.Model(&model.DepositTransaction{}).Where("hash = ?", "tx-usdt").Count(&count)
	assert.EqualValues(t, 1, count)
}
