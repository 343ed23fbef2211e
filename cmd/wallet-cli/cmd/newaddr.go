package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tron-wallet-core/internal/service"
	"tron-wallet-core/pkg/config"
	"tron-wallet-core/pkg/database"
	"tron-wallet-core/pkg/keystore"
	"tron-wallet-core/pkg/logger"
)

var newaddrUserID uint64

// newaddrCmd 为用户生成一个充值地址
var newaddrCmd = &cobra.Command{
	Use:   "newaddr",
	Short: "为指定用户生成一个新的充值地址",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, cleanup, err := buildKeyService()
		if err != nil {
			return err
		}
		defer cleanup()

		record, err := keys.CreateDepositAddress(context.Background(), newaddrUserID)
		if err != nil {
			return fmt.Errorf("生成充值地址失败: %w", err)
		}

		fmt.Println("---------------------------------------------------")
		fmt.Printf("用户 ID:   %d\n", record.UserID)
		fmt.Printf("链:        %s\n", record.Chain)
		fmt.Printf("充值地址:  %s\n", record.Address)
		fmt.Println("---------------------------------------------------")
		fmt.Println("私钥已封装写入 keystore, 不会以明文形式出现。")
		return nil
	},
}

func init() {
	newaddrCmd.Flags().Uint64Var(&newaddrUserID, "user", 0, "用户 ID (必填)")
	_ = newaddrCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(newaddrCmd)
}

// buildKeyService 按配置连上数据库和 Redis keystore
func buildKeyService() (*service.KeyService, func(), error) {
	config.Init()
	cfg := config.Global
	logger.Init(cfg.App.Env)

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=Asia/Shanghai",
		cfg.DB.Host, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.Port)
	db, err := database.ConnectPostgres(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("数据库连接失败: %w", err)
	}
	rdb, err := database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	wrapper := keystore.NewWrapper(cfg.Wallet.SystemSecret)
	keys := service.NewKeyService(db, keystore.NewRedisStore(rdb), wrapper, cfg.Chain.Code)
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
		rdb.Close()
	}
	return keys, cleanup, nil
}
