package tron

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// TRON 地址是 21 字节: 0x41 前缀 + keccak256(pubkey) 后 20 字节,
// 外部表示为 base58check (T 开头)，节点接口使用 hex 表示。
const AddressPrefix = 0x41

// Base58ToHex 把 base58check 地址转为 41 前缀的 hex 表示
func Base58ToHex(addr string) (string, error) {
	payload, version, err := base58.CheckDecode(addr)
	if err != nil {
		return "", fmt.Errorf("地址解码失败: %w", err)
	}
	if version != AddressPrefix || len(payload) != 20 {
		return "", fmt.Errorf("不是合法的 TRON 地址: %s", addr)
	}
	return hex.EncodeToString(append([]byte{version}, payload...)), nil
}

// HexToBase58 把 41 前缀 hex 地址转回 base58check 表示
func HexToBase58(hexAddr string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(hexAddr, "0x"))
	if err != nil {
		return "", fmt.Errorf("地址解码失败: %w", err)
	}
	if len(raw) != 21 || raw[0] != AddressPrefix {
		return "", fmt.Errorf("不是合法的 TRON hex 地址: %s", hexAddr)
	}
	return base58.CheckEncode(raw[1:], AddressPrefix), nil
}

// AddressFromPubKey 由公钥派生 base58 地址
func AddressFromPubKey(pub *ecdsa.PublicKey) string {
	ethAddr := ethcrypto.PubkeyToAddress(*pub) // keccak256(pubkey)[12:]
	return base58.CheckEncode(ethAddr.Bytes(), AddressPrefix)
}

// ValidAddress 校验 base58 地址格式
func ValidAddress(addr string) bool {
	_, err := Base58ToHex(addr)
	return err == nil
}
