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
	"tron-wallet-core/pkg/config"
	"tron-wallet-core/pkg/errno"
)

func newEnergyFixture(t *testing.T) (*EnergyService, *stubChain, *gorm.DB, *LedgerService) {
	db := newTestDB(t)
	keys, hot := newTestKeys(t, db)
	stub := &stubChain{
		resource: func(string) (*chain.AccountResource, error) {
			return &chain.AccountResource{
				EnergyLimit:       1_000_000, // 资源池余量
				TotalEnergyLimit:  1_000_000,
				TotalEnergyWeight: 100,
			}, nil
		},
	}
	fee := NewFeeService(stub, testResourceAddr)
	ledger := NewLedgerService(db)
	walletCfg := config.WalletConfig{
		HotAddress:      hot,
		ResourceAddress: testResourceAddr,
		PermissionID:    2,
	}
	energyCfg := config.EnergyConfig{
		MinRentAmount: 32_000,
		Tiers: []config.EnergyTier{
			{DurationMinutes: 60, PriceSun: "2"},
			{DurationMinutes: 1440, PriceSun: "1.5"},
		},
	}
	svc := NewEnergyService(db, stub, fee, ledger, keys, "TRX", walletCfg, energyCfg)
	return svc, stub, db, ledger
}

func fund(t *testing.T, db *gorm.DB, ledger *LedgerService, userID uint64, amount int64) {
	t.Helper()
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return ledger.Add(tx, userID, "TRX", d(amount), model.MutationDeposit, "seed")
	}))
}

func TestRentEnergyBelowMinimumRejected(t *testing.T) {
	svc, stub, _, _ := newEnergyFixture(t)

	_, err := svc.RentEnergy(context.Background(), 1, testUserAddr, 10_000, 60)
	assert.ErrorIs(t, err, errno.ErrRentBelowMinimum)
	assert.Empty(t, stub.delegateCalls)
}

func TestRentEnergyProceedsAboveMinimum(t *testing.T) {
	svc, stub, db, ledger := newEnergyFixture(t)
	fund(t, db, ledger, 1, 1_000_000)

	order, err := svc.RentEnergy(context.Background(), 1, testUserAddr, 40_000, 60)
	require.NoError(t, err)
	assert.Equal(t, model.DelegationStatusSuccess, order.Status)
	assert.Len(t, stub.delegateCalls, 1)
	assert.NotNil(t, order.ExpireAt)

	// 租金 = 40,000 * 2 sun, 从账本扣除
	w, err := ledger.GetBalance(context.Background(), 1, "TRX")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d(1_000_000-80_000)), "balance = %s", w.Balance)
}

func TestRentEnergyRoundsUpToNextTier(t *testing.T) {
	svc, _, db, ledger := newEnergyFixture(t)
	fund(t, db, ledger, 1, 1_000_000)

	// 请求 30 分钟: 按 60 分钟档计费并按 60 分钟履约
	order, err := svc.RentEnergy(context.Background(), 1, testUserAddr, 40_000, 30)
	require.NoError(t, err)
	assert.EqualValues(t, 3600, order.DurationSeconds)
	assert.True(t, order.Price.Equal(d(80_000))) // 60 分钟档单价 2 sun

	// 超过最大档直接拒绝
	_, err = svc.RentEnergy(context.Background(), 1, testUserAddr, 40_000, 2000)
	assert.ErrorIs(t, err, errno.ErrDurationUnsupported)
}

func TestRentEnergyReceiverMustBeActivated(t *testing.T) {
	svc, stub, db, ledger := newEnergyFixture(t)
	fund(t, db, ledger, 1, 1_000_000)
	stub.accountExists = func(string) (bool, error) { return false, nil }

	_, err := svc.RentEnergy(context.Background(), 1, testUserAddr, 40_000, 60)
	assert.ErrorIs(t, err, errno.ErrReceiverNotActivated)
}

func TestRentEnergyPoolExhausted(t *testing.T) {
	svc, stub, db, ledger := newEnergyFixture(t)
	fund(t, db, ledger, 1, 1_000_000)
	stub.resource = func(string) (*chain.AccountResource, error) {
		return &chain.AccountResource{EnergyLimit: 10_000}, nil // 池里只剩 10,000
	}

	_, err := svc.RentEnergy(context.Background(), 1, testUserAddr, 40_000, 60)
	assert.ErrorIs(t, err, errno.ErrInsufficientPlatformPower)
}

func TestRentEnergyInsufficientBalanceNoOrder(t *testing.T) {
	svc, stub, db, _ := newEnergyFixture(t)
	// 用户没有余额: 建单事务整体回滚, 不碰链
	_, err := svc.RentEnergy(context.Background(), 1, testUserAddr, 40_000, 60)
	assert.ErrorIs(t, err, errno.ErrWalletNotFound)
	assert.Empty(t, stub.delegateCalls)

	var count int64
	db.Model(&model.DelegationOrder{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestRentEnergyDelegateFailureNoRefund(t *testing.T) {
	svc, stub, db, ledger := newEnergyFixture(t)
	fund(t, db, ledger, 1, 1_000_000)
	stub.delegate = func(chain.SignContext, string, int64) (string, error) {
		return "", errno.ErrBroadcast
	}

	_, err := svc.RentEnergy(context.Background(), 1, testUserAddr, 40_000, 60)
	require.Error(t, err)

	// 订单记 failed, 租金不退
	var order model.DelegationOrder
	require.NoError(t, db.First(&order).Error)
	assert.Equal(t, model.DelegationStatusFailed, order.Status)
	assert.NotEmpty(t, order.FailReason)

	w, _ := ledger.GetBalance(context.Background(), 1, "TRX")
	assert.True(t, w.Balance.Equal(d(920_000)))
}

func TestRentEnergySignContextFailureMarksFailed(t *testing.T) {
	svc, stub, db, ledger := newEnergyFixture(t)
	fund(t, db, ledger, 1, 1_000_000)
	// 热钱包私钥取不到 (如 keystore 暂不可用): 订单不能滞留在 pending
	svc.wallet.HotAddress = testFeeAddr

	_, err := svc.RentEnergy(context.Background(), 1, testUserAddr, 40_000, 60)
	require.Error(t, err)
	assert.Empty(t, stub.delegateCalls)

	var order model.DelegationOrder
	require.NoError(t, db.First(&order).Error)
	assert.Equal(t, model.DelegationStatusFailed, order.Status)
	assert.NotEmpty(t, order.FailReason)

	// 与广播失败同语义: 租金不退
	w, _ := ledger.GetBalance(context.Background(), 1, "TRX")
	assert.True(t, w.Balance.Equal(d(920_000)))
}

func TestReclaimExpiredIsIdempotent(t *testing.T) {
	svc, stub, db, _ := newEnergyFixture(t)
	ctx := context.Background()

	expired := time.Now().Add(-time.Minute)
	order := &model.DelegationOrder{
		OrderNo:         "EN-test-1",
		UserID:          1,
		ReceiverAddress: testUserAddr,
		EnergyAmount:    40_000,
		TrxAmount:       d(4_000_000),
		Price:           d(80_000),
		DurationSeconds: 3600,
		Status:          model.DelegationStatusSuccess,
		ExpireAt:        &expired,
	}
	require.NoError(t, db.Create(order).Error)

	require.NoError(t, svc.ReclaimExpired(ctx))
	require.NoError(t, db.First(order, order.ID).Error)
	assert.Equal(t, model.DelegationStatusReclaimed, order.Status)
	assert.Len(t, stub.undelegateCalls, 1)

	// 第二轮回收对已回收订单是 no-op
	require.NoError(t, svc.ReclaimExpired(ctx))
	assert.Len(t, stub.undelegateCalls, 1)
	require.NoError(t, db.First(order, order.ID).Error)
	assert.Equal(t, model.DelegationStatusReclaimed, order.Status)
}

func TestRentEnergyInternalSkipsBilling(t *testing.T) {
	svc, stub, db, _ := newEnergyFixture(t)

	// 平台自租: 不触账本, 能量至少补到市场最低量
	require.NoError(t, svc.RentEnergyInternal(context.Background(), testUserAddr, 5_000))
	assert.Len(t, stub.delegateCalls, 1)

	var order model.DelegationOrder
	require.NoError(t, db.First(&order).Error)
	assert.EqualValues(t, 0, order.UserID)
	assert.EqualValues(t, 32_000, order.EnergyAmount)
	assert.True(t, order.Price.IsZero())

	var entries int64
	db.Model(&model.WalletLedgerEntry{}).Count(&entries)
	assert.EqualValues(t, 0, entries)
}
