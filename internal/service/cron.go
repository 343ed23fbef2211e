package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"tron-wallet-core/pkg/logger"
	"tron-wallet-core/pkg/utils/lock"
)

// TaskRunner 调度器: 每个管道阶段 (扫块/确认/归集/提现/回收/中继)
// 是一个独立的秒级 cron 任务。阶段内部各自持有进程内 latch,
// 阶段之间并发跑在同一个库上。
// distLock 非 nil 时在调度层再套一把 Redis 锁, 供多实例部署使用。
type TaskRunner struct {
	cron     *cron.Cron
	distLock lock.DistributedLock
	lockTTL  time.Duration
}

func NewTaskRunner(distLock lock.DistributedLock) *TaskRunner {
	return &TaskRunner{
		cron:     cron.New(cron.WithSeconds()),
		distLock: distLock,
		lockTTL:  5 * time.Minute,
	}
}

// Register 注册一个阶段任务。fn 返回的错误只记日志:
// 管道阶段没有重试上限, 失败条目等下一个周期。
func (r *TaskRunner) Register(spec, name string, fn func(ctx context.Context) error) error {
	_, err := r.cron.AddFunc(spec, func() {
		ctx := context.Background()

		if r.distLock != nil {
			ok, err := r.distLock.Acquire(ctx, "task:"+name, r.lockTTL)
			if err != nil {
				logger.Error("获取任务锁失败", zap.String("task", name), zap.Error(err))
				return
			}
			if !ok {
				logger.Debug("任务锁被其他实例持有, 跳过", zap.String("task", name))
				return
			}
			defer func() {
				if err := r.distLock.Release(ctx, "task:"+name); err != nil {
					logger.Warn("释放任务锁失败", zap.String("task", name), zap.Error(err))
				}
			}()
		}

		if err := fn(ctx); err != nil {
			logger.Error("任务执行出错", zap.String("task", name), zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	logger.Info("任务已注册", zap.String("task", name), zap.String("spec", spec))
	return nil
}

func (r *TaskRunner) Start() {
	r.cron.Start()
}

// Stop 停止调度并等待在途任务结束
func (r *TaskRunner) Stop() {
	<-r.cron.Stop().Done()
}
