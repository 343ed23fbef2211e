package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tron-wallet-core/internal/chain"
	"tron-wallet-core/internal/model"
	"tron-wallet-core/pkg/logger"
	"tron-wallet-core/pkg/monitor"
)

// ScannerService 扫块管道。
// 游标语义: 内存游标逐块推进，但只有整段扫完才持久化。
// 中途崩溃后下一轮从上次持久化的游标重扫，安全性完全依赖
// 充值 hash 唯一索引的幂等入库，而不是游标精度。
type ScannerService struct {
	db            *gorm.DB
	adapter       chain.Adapter
	cursor        CursorStore
	dustThreshold decimal.Decimal
	blockDelay    time.Duration

	latch runLatch
}

func NewScannerService(db *gorm.DB, adapter chain.Adapter, cursor CursorStore, dustThresholdSun int64, blockDelay time.Duration) *ScannerService {
	return &ScannerService{
		db:            db,
		adapter:       adapter,
		cursor:        cursor,
		dustThreshold: decimal.NewFromInt(dustThresholdSun),
		blockDelay:    blockDelay,
	}
}

// ScanOnce 扫描 (游标, 最新高度] 区间。重叠触发直接跳过。
func (s *ScannerService) ScanOnce(ctx context.Context) error {
	if !s.latch.TryLock() {
		logger.Debug("上一轮扫块尚未结束, 跳过", zap.String("chain", s.adapter.ChainCode()))
		return nil
	}
	defer s.latch.Unlock()

	chainCode := s.adapter.ChainCode()
	latest, err := s.adapter.LatestBlockHeight(ctx)
	if err != nil {
		return err
	}
	cursor, err := s.cursor.GetLastScannedBlock(ctx, chainCode)
	if err != nil {
		return err
	}
	if cursor <= 0 {
		// 首次启动: 从最新块前一块起步，保证至少扫到最新块
		cursor = latest - 1
	}
	if cursor >= latest {
		return nil
	}

	scanned := cursor
	for height := cursor + 1; height <= latest; height++ {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := s.scanBlock(ctx, height); err != nil {
			// 出错的块不计入游标，下一轮从这里重扫
			logger.Error("扫块失败", zap.String("chain", chainCode), zap.Int64("height", height), zap.Error(err))
			break
		}
		scanned = height
		if s.blockDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.blockDelay):
			}
		}
	}

	if scanned > cursor {
		if err := s.cursor.SetLastScannedBlock(ctx, chainCode, scanned); err != nil {
			return err
		}
		if monitor.Business != nil {
			monitor.Business.ScanCursorHeight.WithLabelValues(chainCode).Set(float64(scanned))
		}
		logger.Debug("扫块游标推进",
			zap.String("chain", chainCode),
			zap.Int64("from", cursor),
			zap.Int64("to", scanned))
	}
	return nil
}

func (s *ScannerService) scanBlock(ctx context.Context, height int64) error {
	events, err := s.adapter.FetchBlockTransfers(ctx, height)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	// 批量解析本块涉及的受监控地址
	addrs := make([]string, 0, len(events))
	seen := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if _, ok := seen[ev.To]; ok {
			continue
		}
		seen[ev.To] = struct{}{}
		addrs = append(addrs, ev.To)
	}

	var monitored []model.DepositAddress
	err = s.db.WithContext(ctx).
		Where("chain = ? AND address IN ?", s.adapter.ChainCode(), addrs).
		Find(&monitored).Error
	if err != nil {
		return err
	}
	if len(monitored) == 0 {
		return nil
	}
	byAddr := make(map[string]*model.DepositAddress, len(monitored))
	for i := range monitored {
		byAddr[monitored[i].Address] = &monitored[i]
	}

	for _, ev := range events {
		holder, ok := byAddr[ev.To]
		if !ok {
			continue
		}
		// 原生资产粉尘过滤: 低于阈值不入账
		if ev.Contract == "" && ev.Amount.LessThan(s.dustThreshold) {
			logger.Debug("忽略粉尘充值", zap.String("tx", ev.TxHash), zap.String("amount", ev.Amount.String()))
			continue
		}
		deposit := s.adapter.BuildDeposit(ev, holder.UserID)
		// hash 唯一索引兜底: 重扫到同一笔是静默 no-op
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoNothing: true,
		}).Create(deposit).Error
		if err != nil {
			logger.Error("充值入库失败", zap.String("tx", ev.TxHash), zap.Error(err))
			continue
		}
		logger.Info("发现充值",
			zap.String("tx", ev.TxHash),
			zap.String("address", ev.To),
			zap.String("asset", ev.AssetID),
			zap.String("amount", ev.Amount.String()),
			zap.Int64("height", height))
	}
	return nil
}
