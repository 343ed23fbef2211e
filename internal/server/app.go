package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tron-wallet-core/internal/service"
	"tron-wallet-core/pkg/logger"
)

// App 持有 HTTP 服务与调度器, 统一启动与优雅退出
type App struct {
	httpServer *http.Server
	tasks      *service.TaskRunner
}

func New(httpPort string, httpHandler *gin.Engine, tasks *service.TaskRunner) *App {
	return &App{
		httpServer: &http.Server{
			Addr:    ":" + httpPort,
			Handler: httpHandler,
		},
		tasks: tasks,
	}
}

// Run 启动服务并阻塞，直到收到关闭信号
func (a *App) Run() {
	go func() {
		logger.Info("Starting HTTP Server", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP Server failure", zap.Error(err))
		}
	}()

	a.tasks.Start()
	logger.Info("调度管道已启动")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// 先停调度, 等在途任务跑完, 再关 HTTP
	a.tasks.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited properly")
}
