package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// importKeyCmd 导入平台钱包私钥 (热钱包 / 手续费钱包)
// 私钥从终端免回显读取, 不走命令行参数以免进 shell history
var importKeyCmd = &cobra.Command{
	Use:   "import-key",
	Short: "导入平台钱包私钥到 keystore",
	Long: `把平台钱包 (热钱包/手续费钱包) 的私钥封装后写入 keystore。
私钥通过终端免回显输入, 十六进制格式 (64 个字符)。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Print("请输入私钥 (hex): ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("读取私钥失败: %w", err)
		}

		keyHex := strings.TrimSpace(strings.TrimPrefix(string(raw), "0x"))
		keyBytes, err := hex.DecodeString(keyHex)
		if err != nil || len(keyBytes) != 32 {
			return fmt.Errorf("私钥格式非法: 需要 64 个十六进制字符")
		}

		keys, cleanup, err := buildKeyService()
		if err != nil {
			return err
		}
		defer cleanup()

		address, err := keys.ImportPlatformKey(context.Background(), keyBytes)
		if err != nil {
			return fmt.Errorf("导入失败: %w", err)
		}

		fmt.Println("---------------------------------------------------")
		fmt.Printf("平台钱包已导入: %s\n", address)
		fmt.Println("请将该地址填入配置的 wallet 段 (hot_address / fee_address)。")
		fmt.Println("---------------------------------------------------")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importKeyCmd)
}
