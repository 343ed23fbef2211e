package tron

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"tron-wallet-core/internal/chain"
)

// SignTransaction 对节点构造出的交易签名。
// txID = sha256(raw_data)，签名也是对同一哈希做 secp256k1 恢复式签名。
// 权限位 (Permission_id) 在构造请求时就已写入 raw_data，
// 这里不再改动已构造的交易对象。
func SignTransaction(tx *Transaction, sign chain.SignContext) error {
	if tx.RawDataHex == "" {
		return fmt.Errorf("交易缺少 raw_data_hex")
	}
	raw, err := hex.DecodeString(tx.RawDataHex)
	if err != nil {
		return fmt.Errorf("raw_data_hex 解码失败: %w", err)
	}

	hash := sha256.Sum256(raw)

	sig, err := ethcrypto.Sign(hash[:], sign.PrivateKey)
	if err != nil {
		return fmt.Errorf("签名失败: %w", err)
	}

	tx.TxID = hex.EncodeToString(hash[:])
	tx.Signature = append(tx.Signature, hex.EncodeToString(sig))
	return nil
}
