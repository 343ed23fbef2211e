package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	DB     DBConfig     `mapstructure:"db"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Chain  ChainConfig  `mapstructure:"chain"`
	Wallet WalletConfig `mapstructure:"wallet"`
	Energy EnergyConfig `mapstructure:"energy"`
	Task   TaskConfig   `mapstructure:"task"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

// AssetConfig 描述一种受支持的资产。Contract 为空表示链原生资产 (TRX)。
type AssetConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Contract string `mapstructure:"contract"`
	Decimals int    `mapstructure:"decimals"`
}

type ChainConfig struct {
	Code            string        `mapstructure:"code"`
	NodeURL         string        `mapstructure:"node_url"`
	Confirmations   int64         `mapstructure:"confirmations"`     // 确认深度 (重组安全边界)
	DustThreshold   int64         `mapstructure:"dust_threshold"`    // 原生资产最小入账金额 (sun)
	BlockDelayMs    int           `mapstructure:"block_delay_ms"`    // 扫块之间的固定延迟
	ActivateAmount  int64         `mapstructure:"activate_amount"`   // 地址激活转账金额 (sun)
	TRC20FeeLimit   int64         `mapstructure:"trc20_fee_limit"`   // TRC20 转账 fee_limit (sun)
	Assets          []AssetConfig `mapstructure:"assets"`
}

type WalletConfig struct {
	HotAddress      string `mapstructure:"hot_address"`      // 热钱包 (归集目标 / 提现出账 / 运营签名)
	FeeAddress      string `mapstructure:"fee_address"`      // 手续费钱包 (地址激活出资)
	ResourceAddress string `mapstructure:"resource_address"` // 资源钱包 (质押持有方, 委托 owner)
	PermissionID    int32  `mapstructure:"permission_id"`    // 运营钱包代资源钱包签名所用的权限位
	SystemSecret    string `mapstructure:"system_secret"`    // 私钥封装 KDF 的系统侧输入 (环境变量 WALLET_SYSTEM_SECRET)
}

// EnergyTier 时长阶梯: 不足一档按上一档计费并按上一档时长履约
type EnergyTier struct {
	DurationMinutes int64  `mapstructure:"duration_minutes"`
	PriceSun        string `mapstructure:"price_sun"` // 每单位 energy 的价格 (sun, 十进制字符串)
}

type EnergyConfig struct {
	MinRentAmount int64        `mapstructure:"min_rent_amount"`
	Tiers         []EnergyTier `mapstructure:"tiers"`
}

type TaskConfig struct {
	ScanSpec     string `mapstructure:"scan_spec"`
	ConfirmSpec  string `mapstructure:"confirm_spec"`
	CollectSpec  string `mapstructure:"collect_spec"`
	WithdrawSpec string `mapstructure:"withdraw_spec"`
	ReclaimSpec  string `mapstructure:"reclaim_spec"`
	RelaySpec    string `mapstructure:"relay_spec"`

	WatchTimeoutSec  int  `mapstructure:"watch_timeout_sec"`  // 交易确认 watcher 的墙钟超时
	WatchIntervalSec int  `mapstructure:"watch_interval_sec"` // watcher 轮询间隔
	DistributedLock  bool `mapstructure:"distributed_lock"`   // 多实例部署时启用 Redis 锁 (默认关闭)
}

var Global Config

func Init() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// 环境变量设置
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "wallet_user")
	viper.SetDefault("db.password", "wallet_password")
	viper.SetDefault("db.name", "wallet_db")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})

	viper.SetDefault("chain.code", "TRON")
	viper.SetDefault("chain.node_url", "http://localhost:8090")
	viper.SetDefault("chain.confirmations", 19)
	viper.SetDefault("chain.dust_threshold", 100_000) // 0.1 TRX
	viper.SetDefault("chain.block_delay_ms", 200)
	viper.SetDefault("chain.activate_amount", 1_000_000) // 1 TRX
	viper.SetDefault("chain.trc20_fee_limit", 50_000_000)

	viper.SetDefault("wallet.permission_id", 2)

	viper.SetDefault("energy.min_rent_amount", 32_000)

	// 各管道节奏: 扫块 ~3s, 确认 ~15s, 归集 ~60s, 提现 ~30s, 回收 ~60s
	viper.SetDefault("task.scan_spec", "*/3 * * * * *")
	viper.SetDefault("task.confirm_spec", "*/15 * * * * *")
	viper.SetDefault("task.collect_spec", "0 * * * * *")
	viper.SetDefault("task.withdraw_spec", "*/30 * * * * *")
	viper.SetDefault("task.reclaim_spec", "30 * * * * *")
	viper.SetDefault("task.relay_spec", "*/2 * * * * *")
	viper.SetDefault("task.watch_timeout_sec", 120)
	viper.SetDefault("task.watch_interval_sec", 5)
	viper.SetDefault("task.distributed_lock", false)
}
