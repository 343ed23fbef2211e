package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tron-wallet-core/internal/chain"
	"tron-wallet-core/pkg/errno"
	"tron-wallet-core/pkg/logger"
)

// watchTransaction 在墙钟超时内轮询一笔交易的最终执行状态。
// 超时返回 ErrWatcherTimeout 后就此停手: 既不取消链上交易
// (它之后仍可能确认)，也不自动复查。
func watchTransaction(ctx context.Context, client chain.Client, txID string, timeout, interval time.Duration) (*chain.TxInfo, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		info, err := client.GetTransactionInfo(ctx, txID)
		if err != nil {
			logger.Warn("查询交易状态失败", zap.String("tx", txID), zap.Error(err))
		} else if info.Found {
			return info, nil
		}

		if time.Now().After(deadline) {
			return nil, errno.ErrWatcherTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
