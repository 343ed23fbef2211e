package service

import "sync/atomic"

// runLatch 是非阻塞的进程内自重叠护栏:
// 同一个调度任务的重叠触发被直接跳过，而不是排队。
// 它只防本进程自重叠；多实例部署需要额外的分布式锁
// (见 cron 层的 task.distributed_lock)。
type runLatch struct {
	running atomic.Bool
}

func (l *runLatch) TryLock() bool {
	return l.running.CompareAndSwap(false, true)
}

func (l *runLatch) Unlock() {
	l.running.Store(false)
}
