package tron

import (
	"fmt"
	"math/big"
	"strings"
)

// TRC20 方法选择器 (keccak256 前 4 字节)
const (
	SelectorTransfer     = "a9059cbb" // transfer(address,uint256)
	SelectorTransferFrom = "23b872dd" // transferFrom(address,address,uint256)
	SelectorApprove      = "095ea7b3" // approve(address,uint256)
	SelectorBalanceOf    = "70a08231" // balanceOf(address)
)

// encodeAddressParam 把 41 前缀 hex 地址编码为 32 字节 ABI 参数
func encodeAddressParam(hexAddr string) string {
	// 去掉 41 前缀，剩 20 字节，左补零到 32 字节
	body := strings.TrimPrefix(hexAddr, "41")
	return fmt.Sprintf("%064s", body)
}

// encodeUintParam 编码 uint256 参数
func encodeUintParam(v *big.Int) string {
	return fmt.Sprintf("%064s", v.Text(16))
}

// EncodeTransferParams 生成 transfer(address,uint256) 的参数段 (不含选择器)
func EncodeTransferParams(toHex string, amount *big.Int) string {
	return encodeAddressParam(toHex) + encodeUintParam(amount)
}

// EncodeBalanceOfParams 生成 balanceOf(address) 的参数段
func EncodeBalanceOfParams(addrHex string) string {
	return encodeAddressParam(addrHex)
}

// decodeWordAddress 把 data 中一个 32 字节字还原为 41 前缀 hex 地址
func decodeWordAddress(word string) string {
	if len(word) != 64 {
		return ""
	}
	return "41" + word[24:]
}

// parsedTransfer 是从 TriggerSmartContract.data 解出的一笔 token 转账
type parsedTransfer struct {
	From   string // 41 前缀 hex
	To     string
	Amount *big.Int
}

// parseTokenTransfer 按方法选择器解析合约调用数据。
// transfer / transferFrom 产生转账; approve 被识别但不构成转账;
// 其它选择器一律忽略。返回 (transfer, recognized)。
func parseTokenTransfer(ownerHex, data string) (*parsedTransfer, bool) {
	data = strings.TrimPrefix(data, "0x")
	if len(data) < 8 {
		return nil, false
	}
	selector := strings.ToLower(data[:8])
	args := data[8:]

	switch selector {
	case SelectorTransfer:
		if len(args) < 128 {
			return nil, true
		}
		amount, ok := new(big.Int).SetString(args[64:128], 16)
		if !ok {
			return nil, true
		}
		return &parsedTransfer{
			From:   ownerHex,
			To:     decodeWordAddress(args[:64]),
			Amount: amount,
		}, true

	case SelectorTransferFrom:
		if len(args) < 192 {
			return nil, true
		}
		amount, ok := new(big.Int).SetString(args[128:192], 16)
		if !ok {
			return nil, true
		}
		return &parsedTransfer{
			From:   decodeWordAddress(args[:64]),
			To:     decodeWordAddress(args[64:128]),
			Amount: amount,
		}, true

	case SelectorApprove:
		// 授权不是价值转移，识别后跳过
		return nil, true

	default:
		return nil, false
	}
}
