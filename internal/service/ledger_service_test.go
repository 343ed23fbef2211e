package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tron-wallet-core/internal/model"
	"tron-wallet-core/pkg/errno"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestLedgerAddAndSub(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Add(tx, 1, "TRX", d(1000), model.MutationDeposit, "dep-1")
	})
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		return ledger.Sub(tx, 1, "TRX", d(300), model.MutationEnergyRent, "en-1")
	})
	require.NoError(t, err)

	w, err := ledger.GetBalance(ctx, 1, "TRX")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d(700)), "balance = %s", w.Balance)
	assert.True(t, w.FrozenBalance.IsZero())
}

func TestLedgerSubInsufficientRollsBack(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	ctx := context.Background()

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return ledger.Add(tx, 1, "TRX", d(100), model.MutationDeposit, "dep-1")
	}))

	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Sub(tx, 1, "TRX", d(101), model.MutationEnergyRent, "en-1")
	})
	assert.ErrorIs(t, err, errno.ErrInsufficientBalance)

	// 失败的扣减不留任何痕迹: 余额不变, 无流水
	w, _ := ledger.GetBalance(ctx, 1, "TRX")
	assert.True(t, w.Balance.Equal(d(100)))
	var count int64
	db.Model(&model.WalletLedgerEntry{}).Where("order_id = ?", "en-1").Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestLedgerMissingWalletVsInsufficient(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)

	// 不存在的钱包
	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Sub(tx, 42, "TRX", d(1), model.MutationEnergyRent, "en-x")
	})
	assert.ErrorIs(t, err, errno.ErrWalletNotFound)

	// 存在但余额不足
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return ledger.Add(tx, 42, "TRX", d(5), model.MutationDeposit, "dep-x")
	}))
	err = db.Transaction(func(tx *gorm.DB) error {
		return ledger.Sub(tx, 42, "TRX", d(10), model.MutationEnergyRent, "en-y")
	})
	assert.ErrorIs(t, err, errno.ErrInsufficientBalance)
}

func TestLedgerFreezeLifecycle(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	ctx := context.Background()

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return ledger.Add(tx, 7, "USDT", d(1000), model.MutationDeposit, "dep-1")
	}))

	// 冻结 600
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return ledger.Freeze(tx, 7, "USDT", d(600), model.MutationWithdrawFreeze, "wd-1")
	}))
	w, _ := ledger.GetBalance(ctx, 7, "USDT")
	assert.True(t, w.Balance.Equal(d(400)))
	assert.True(t, w.FrozenBalance.Equal(d(600)))

	// 解冻超出冻结额被拒
	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Unfreeze(tx, 7, "USDT", d(601), model.MutationWithdrawUnfreeze, "wd-1")
	})
	assert.ErrorIs(t, err, errno.ErrInsufficientFrozen)

	// 冻结扣除 600 (提现结算)
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return ledger.SubFrozen(tx, 7, "USDT", d(600), model.MutationWithdraw, "wd-1")
	}))
	w, _ = ledger.GetBalance(ctx, 7, "USDT")
	assert.True(t, w.Balance.Equal(d(400)))
	assert.True(t, w.FrozenBalance.IsZero())
}

func TestLedgerDuplicateMutationRejected(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	ctx := context.Background()

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return ledger.Add(tx, 1, "TRX", d(500), model.MutationDeposit, "dep-1")
	}))

	// 同一 (orderID, mutationType) 重放: 报错而不是静默合并
	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Add(tx, 1, "TRX", d(500), model.MutationDeposit, "dep-1")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errno.ErrLedgerDuplicate)

	// 回滚后余额仍是一次入账的结果
	w, _ := ledger.GetBalance(ctx, 1, "TRX")
	assert.True(t, w.Balance.Equal(d(500)))

	// 同 orderID 不同 mutationType 是合法的
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return ledger.Freeze(tx, 1, "TRX", d(200), model.MutationWithdrawFreeze, "dep-1")
	}))
}

func TestLedgerReconcile(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	ctx := context.Background()

	steps := []func(tx *gorm.DB) error{
		func(tx *gorm.DB) error { return ledger.Add(tx, 9, "TRX", d(1000), model.MutationDeposit, "dep-1") },
		func(tx *gorm.DB) error { return ledger.Add(tx, 9, "TRX", d(250), model.MutationDeposit, "dep-2") },
		func(tx *gorm.DB) error {
			return ledger.Freeze(tx, 9, "TRX", d(400), model.MutationWithdrawFreeze, "wd-1")
		},
		func(tx *gorm.DB) error {
			return ledger.SubFrozen(tx, 9, "TRX", d(400), model.MutationWithdraw, "wd-1")
		},
		func(tx *gorm.DB) error { return ledger.Sub(tx, 9, "TRX", d(100), model.MutationEnergyRent, "en-1") },
	}
	for _, step := range steps {
		require.NoError(t, db.Transaction(step))
	}

	// 流水重建 == 余额表: 差额为零
	diffBalance, diffFrozen, err := ledger.Reconcile(ctx, 9, "TRX")
	require.NoError(t, err)
	assert.True(t, diffBalance.IsZero(), "balance diff = %s", diffBalance)
	assert.True(t, diffFrozen.IsZero(), "frozen diff = %s", diffFrozen)

	w, _ := ledger.GetBalance(ctx, 9, "TRX")
	assert.True(t, w.Balance.Equal(d(750)))

	// 每条流水都带 before/after 快照且自洽
	var entries []model.WalletLedgerEntry
	require.NoError(t, db.Where("user_id = ?", 9).Order("id asc").Find(&entries).Error)
	for _, e := range entries {
		assert.True(t, e.AfterBalance.Equal(e.BeforeBalance.Add(e.Amount)), "entry %d", e.ID)
	}
}
