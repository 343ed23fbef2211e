package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tron-wallet-core/internal/chain/tron"
	"tron-wallet-core/internal/handler"
	"tron-wallet-core/internal/model"
	"tron-wallet-core/internal/server"
	"tron-wallet-core/internal/service"
	"tron-wallet-core/internal/service/mq"
	"tron-wallet-core/pkg/config"
	"tron-wallet-core/pkg/database"
	"tron-wallet-core/pkg/keystore"
	"tron-wallet-core/pkg/logger"
	"tron-wallet-core/pkg/monitor"
	"tron-wallet-core/pkg/utils/lock"
)

func main() {
	// 0. 初始化 Config
	config.Init()
	cfg := config.Global

	// 1. 初始化 Logger
	logger.Init(cfg.App.Env)
	defer logger.Sync()

	// 2. 连接数据库
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=Asia/Shanghai",
		cfg.DB.Host, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.Port)
	db, err := database.ConnectPostgres(dsn)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 3. 连接 Redis
	rdb, err := database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Redis 连接失败", zap.Error(err))
	}

	// 4. 数据库迁移
	if cfg.App.Env == "development" {
		logger.Info("开发环境: 自动迁移 Schema (GORM AutoMigrate)...")
		if err := db.AutoMigrate(model.AllModels()...); err != nil {
			logger.Fatal("数据库自动迁移失败", zap.Error(err))
		}
	} else {
		logger.Info("生产环境: 跳过 AutoMigrate，请使用 migrate 工具管理 Schema")
	}

	// 5. 监控指标
	monitor.Init()

	// 6. 链客户端与密钥托管
	client := tron.NewClient(cfg.Chain)
	wrapper := keystore.NewWrapper(cfg.Wallet.SystemSecret)
	keys := service.NewKeyService(db, keystore.NewRedisStore(rdb), wrapper, cfg.Chain.Code)

	// 7. 业务引擎
	ledger := service.NewLedgerService(db)
	fee := service.NewFeeService(client, cfg.Wallet.ResourceAddress)
	energy := service.NewEnergyService(db, client, fee, ledger, keys, cfg.Chain.Code, cfg.Wallet, cfg.Energy)
	scanner := service.NewScannerService(db, client, service.NewRedisCursorStore(rdb),
		cfg.Chain.DustThreshold, time.Duration(cfg.Chain.BlockDelayMs)*time.Millisecond)
	confirm := service.NewConfirmService(db, client, ledger, keys, cfg.Chain, cfg.Wallet)
	collect := service.NewCollectService(db, client, fee, energy, keys, cfg.Chain, cfg.Wallet, cfg.Task)
	withdraw := service.NewWithdrawService(db, client, fee, energy, keys, ledger, cfg.Chain, cfg.Wallet, cfg.Task)

	// 8. 消息队列 + Outbox 中继
	var producer mq.Producer
	if cfg.Redis.MQType == "kafka" {
		logger.Info("使用 Kafka 作为消息队列...")
		producer = mq.NewKafkaProducer(cfg.Kafka.Brokers)
	} else {
		logger.Info("使用 Redis Streams 作为消息队列...")
		producer = mq.NewRedisProducer(rdb)
	}
	relay := service.NewRelayService(db, producer)

	// 9. 调度管道: 每个阶段独立节奏, 进程内 latch 防自重叠
	var distLock lock.DistributedLock
	if cfg.Task.DistributedLock {
		distLock = lock.NewRedisLock(rdb)
	}
	tasks := service.NewTaskRunner(distLock)
	mustRegister(tasks, cfg.Task.ScanSpec, "scan", scanner.ScanOnce)
	mustRegister(tasks, cfg.Task.ConfirmSpec, "confirm", confirm.ConfirmOnce)
	mustRegister(tasks, cfg.Task.CollectSpec, "collect", collect.CollectOnce)
	mustRegister(tasks, cfg.Task.WithdrawSpec, "withdraw", withdraw.WithdrawOnce)
	mustRegister(tasks, cfg.Task.ReclaimSpec, "reclaim", energy.ReclaimExpired)
	mustRegister(tasks, cfg.Task.RelaySpec, "relay", relay.RelayOnce)

	// 10. HTTP 路由
	router := server.NewHTTPRouter(server.Handlers{
		Wallet:   handler.NewWalletHandler(keys, ledger),
		Energy:   handler.NewEnergyHandler(energy),
		Withdraw: handler.NewWithdrawHandler(withdraw),
	})

	// 11. 运行 (阻塞到收到退出信号)
	app := server.New(cfg.App.HttpPort, router, tasks)
	app.Run()

	// 12. 资源清理
	logger.Info("正在关闭数据库连接...")
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	producer.Close()
	rdb.Close()
	logger.Info("系统已退出")
}

func mustRegister(tasks *service.TaskRunner, spec, name string, fn func(ctx context.Context) error) {
	if err := tasks.Register(spec, name, fn); err != nil {
		logger.Fatal("注册调度任务失败", zap.String("task", name), zap.Error(err))
	}
}
