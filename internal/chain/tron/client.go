package tron

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tron-wallet-core/internal/chain"
	"tron-wallet-core/internal/model"
	"tron-wallet-core/pkg/config"
	"tron-wallet-core/pkg/errno"
	"tron-wallet-core/pkg/logger"
)

var _ chain.Client = (*Client)(nil)

// Client 是 chain.Client 的 TRON 实现，封装全节点 HTTP API。
// 金额一律使用链上最小单位 (sun / token 最小单位)。
type Client struct {
	chainCode string
	nodeURL   string
	http      *http.Client

	nativeSymbol string
	// 受监控的 TRC20 资产: contract(base58) -> symbol
	assets map[string]config.AssetConfig
}

func NewClient(cfg config.ChainConfig) *Client {
	assets := make(map[string]config.AssetConfig)
	native := "TRX"
	for _, a := range cfg.Assets {
		if a.Contract == "" {
			native = a.Symbol
			continue
		}
		assets[a.Contract] = a
	}

	return &Client{
		chainCode:    cfg.Code,
		nodeURL:      strings.TrimRight(cfg.NodeURL, "/"),
		http:         &http.Client{Timeout: 15 * time.Second},
		nativeSymbol: native,
		assets:       assets,
	}
}

// post 调用一个 /wallet/* 接口并解出响应
func (c *Client) post(ctx context.Context, path string, reqBody, respBody interface{}) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	} else {
		body = strings.NewReader("{}")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.nodeURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errno.ErrChainRPC, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errno.ErrChainRPC, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: http %d", errno.ErrChainRPC, path, resp.StatusCode)
	}

	if respBody == nil {
		return nil
	}
	if err := json.Unmarshal(data, respBody); err != nil {
		return fmt.Errorf("%w: %s: 响应解析失败: %v", errno.ErrChainRPC, path, err)
	}
	return nil
}

// ---------------------------------------------------------
// Adapter 面
// ---------------------------------------------------------

func (c *Client) ChainCode() string {
	return c.chainCode
}

func (c *Client) LatestBlockHeight(ctx context.Context) (int64, error) {
	var block apiBlock
	if err := c.post(ctx, "/wallet/getnowblock", nil, &block); err != nil {
		return 0, err
	}
	if block.Header.RawData.Number == 0 {
		return 0, fmt.Errorf("%w: getnowblock 返回空区块", errno.ErrChainRPC)
	}
	return block.Header.RawData.Number, nil
}

// FetchBlockTransfers 抓取一个区块并抽取全部转账形状的操作:
// 原生 TransferContract 和按方法选择器分发的 TRC20 调用。
func (c *Client) FetchBlockTransfers(ctx context.Context, height int64) ([]chain.TransferEvent, error) {
	var block apiBlock
	if err := c.post(ctx, "/wallet/getblockbynum", map[string]int64{"num": height}, &block); err != nil {
		return nil, err
	}

	var events []chain.TransferEvent
	for _, tx := range block.Transactions {
		// 执行失败的交易不构成充值候选
		if len(tx.Ret) > 0 && tx.Ret[0].ContractRet != "" && tx.Ret[0].ContractRet != "SUCCESS" {
			continue
		}
		if len(tx.RawData.Contract) == 0 {
			continue
		}
		contract := tx.RawData.Contract[0]

		switch contract.Type {
		case "TransferContract":
			var v transferValue
			if err := json.Unmarshal(contract.Parameter.Value, &v); err != nil {
				logger.Debug("TransferContract 参数解析失败", zap.String("tx", tx.TxID), zap.Error(err))
				continue
			}
			from, err1 := HexToBase58(v.OwnerAddress)
			to, err2 := HexToBase58(v.ToAddress)
			if err1 != nil || err2 != nil {
				continue
			}
			events = append(events, chain.TransferEvent{
				TxHash:      tx.TxID,
				From:        from,
				To:          to,
				AssetID:     c.nativeSymbol,
				Amount:      decimal.NewFromInt(v.Amount),
				BlockNumber: height,
			})

		case "TriggerSmartContract":
			var v triggerValue
			if err := json.Unmarshal(contract.Parameter.Value, &v); err != nil {
				continue
			}
			contractB58, err := HexToBase58(v.ContractAddress)
			if err != nil {
				continue
			}
			asset, monitored := c.assets[contractB58]
			if !monitored {
				continue
			}
			transfer, recognized := parseTokenTransfer(v.OwnerAddress, v.Data)
			if !recognized || transfer == nil {
				continue
			}
			from, err1 := HexToBase58(transfer.From)
			to, err2 := HexToBase58(transfer.To)
			if err1 != nil || err2 != nil {
				continue
			}
			events = append(events, chain.TransferEvent{
				TxHash:      tx.TxID,
				From:        from,
				To:          to,
				AssetID:     asset.Symbol,
				Contract:    contractB58,
				Amount:      decimal.NewFromBigInt(transfer.Amount, 0),
				BlockNumber: height,
			})
		}
	}
	return events, nil
}

func (c *Client) BuildDeposit(ev chain.TransferEvent, userID uint64) *model.DepositTransaction {
	return &model.DepositTransaction{
		UserID:      userID,
		Hash:        ev.TxHash,
		FromAddress: ev.From,
		ToAddress:   ev.To,
		AssetID:     ev.AssetID,
		Contract:    ev.Contract,
		Amount:      ev.Amount,
		BlockNumber: ev.BlockNumber,
		Status:      model.DepositStatusPending,
	}
}

// ---------------------------------------------------------
// 账户 / 资源查询
// ---------------------------------------------------------

func (c *Client) AccountExists(ctx context.Context, address string) (bool, error) {
	hexAddr, err := Base58ToHex(address)
	if err != nil {
		return false, errno.ErrInvalidAddress
	}
	var account apiAccount
	if err := c.post(ctx, "/wallet/getaccount", map[string]string{"address": hexAddr}, &account); err != nil {
		return false, err
	}
	// 未激活地址返回空对象
	return account.Address != "", nil
}

func (c *Client) GetBalance(ctx context.Context, address string) (int64, error) {
	hexAddr, err := Base58ToHex(address)
	if err != nil {
		return 0, errno.ErrInvalidAddress
	}
	var account apiAccount
	if err := c.post(ctx, "/wallet/getaccount", map[string]string{"address": hexAddr}, &account); err != nil {
		return 0, err
	}
	return account.Balance, nil
}

func (c *Client) GetTokenBalance(ctx context.Context, address, contract string) (*big.Int, error) {
	ownerHex, err := Base58ToHex(address)
	if err != nil {
		return nil, errno.ErrInvalidAddress
	}
	contractHex, err := Base58ToHex(contract)
	if err != nil {
		return nil, errno.ErrInvalidAddress
	}

	req := map[string]interface{}{
		"owner_address":     ownerHex,
		"contract_address":  contractHex,
		"function_selector": "balanceOf(address)",
		"parameter":         EncodeBalanceOfParams(ownerHex),
	}
	var resp triggerResponse
	if err := c.post(ctx, "/wallet/triggerconstantcontract", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.ConstantResult) == 0 {
		return nil, fmt.Errorf("%w: balanceOf 无返回", errno.ErrChainRPC)
	}
	balance, ok := new(big.Int).SetString(resp.ConstantResult[0], 16)
	if !ok {
		return nil, fmt.Errorf("%w: balanceOf 结果解析失败", errno.ErrChainRPC)
	}
	return balance, nil
}

func (c *Client) GetAccountResource(ctx context.Context, address string) (*chain.AccountResource, error) {
	hexAddr, err := Base58ToHex(address)
	if err != nil {
		return nil, errno.ErrInvalidAddress
	}
	var res apiAccountResource
	if err := c.post(ctx, "/wallet/getaccountresource", map[string]string{"address": hexAddr}, &res); err != nil {
		return nil, err
	}
	return &chain.AccountResource{
		FreeNetLimit:      res.FreeNetLimit,
		FreeNetUsed:       res.FreeNetUsed,
		NetLimit:          res.NetLimit,
		NetUsed:           res.NetUsed,
		EnergyLimit:       res.EnergyLimit,
		EnergyUsed:        res.EnergyUsed,
		TotalNetLimit:     res.TotalNetLimit,
		TotalNetWeight:    res.TotalNetWeight,
		TotalEnergyLimit:  res.TotalEnergyLimit,
		TotalEnergyWeight: res.TotalEnergyWeight,
	}, nil
}

func (c *Client) GetChainParameter(ctx context.Context, key string) (int64, bool, error) {
	var params apiChainParameters
	if err := c.post(ctx, "/wallet/getchainparameters", nil, &params); err != nil {
		return 0, false, err
	}
	for _, p := range params.ChainParameter {
		if p.Key == key {
			return p.Value, true, nil
		}
	}
	return 0, false, nil
}

// EstimateTransferEnergy 对 TRC20 transfer 做 dry-run
func (c *Client) EstimateTransferEnergy(ctx context.Context, from, contract, to string, amount *big.Int) (int64, error) {
	fromHex, err := Base58ToHex(from)
	if err != nil {
		return 0, errno.ErrInvalidAddress
	}
	contractHex, err := Base58ToHex(contract)
	if err != nil {
		return 0, errno.ErrInvalidAddress
	}
	toHex, err := Base58ToHex(to)
	if err != nil {
		return 0, errno.ErrInvalidAddress
	}

	req := map[string]interface{}{
		"owner_address":     fromHex,
		"contract_address":  contractHex,
		"function_selector": "transfer(address,uint256)",
		"parameter":         EncodeTransferParams(toHex, amount),
	}
	var resp triggerResponse
	if err := c.post(ctx, "/wallet/triggerconstantcontract", req, &resp); err != nil {
		return 0, err
	}
	if !resp.Result.Result {
		return 0, fmt.Errorf("%w: dry-run 失败: %s", errno.ErrChainRPC, decodeHexMessage(resp.Result.Message))
	}
	return resp.EnergyUsed, nil
}

// ---------------------------------------------------------
// 构造 + 签名 + 广播
// ---------------------------------------------------------

func (c *Client) TransferNative(ctx context.Context, sign chain.SignContext, to string, amountSun int64) (string, error) {
	ownerHex, err := Base58ToHex(sign.OwnerAddress)
	if err != nil {
		return "", errno.ErrInvalidAddress
	}
	toHex, err := Base58ToHex(to)
	if err != nil {
		return "", errno.ErrInvalidAddress
	}

	req := map[string]interface{}{
		"owner_address": ownerHex,
		"to_address":    toHex,
		"amount":        amountSun,
	}
	if sign.PermissionID != 0 {
		req["Permission_id"] = sign.PermissionID
	}

	var tx Transaction
	if err := c.post(ctx, "/wallet/createtransaction", req, &tx); err != nil {
		return "", err
	}
	if tx.Error != "" {
		return "", fmt.Errorf("%w: %s", errno.ErrChainRPC, tx.Error)
	}
	return c.signAndBroadcast(ctx, &tx, sign)
}

func (c *Client) TransferToken(ctx context.Context, sign chain.SignContext, contract, to string, amount *big.Int, feeLimit int64) (string, error) {
	ownerHex, err := Base58ToHex(sign.OwnerAddress)
	if err != nil {
		return "", errno.ErrInvalidAddress
	}
	contractHex, err := Base58ToHex(contract)
	if err != nil {
		return "", errno.ErrInvalidAddress
	}
	toHex, err := Base58ToHex(to)
	if err != nil {
		return "", errno.ErrInvalidAddress
	}

	req := map[string]interface{}{
		"owner_address":     ownerHex,
		"contract_address":  contractHex,
		"function_selector": "transfer(address,uint256)",
		"parameter":         EncodeTransferParams(toHex, amount),
		"fee_limit":         feeLimit,
		"call_value":        0,
	}
	if sign.PermissionID != 0 {
		req["Permission_id"] = sign.PermissionID
	}

	var resp triggerResponse
	if err := c.post(ctx, "/wallet/triggersmartcontract", req, &resp); err != nil {
		return "", err
	}
	if !resp.Result.Result || resp.Transaction == nil {
		return "", fmt.Errorf("%w: 构造交易失败: %s", errno.ErrChainRPC, decodeHexMessage(resp.Result.Message))
	}
	return c.signAndBroadcast(ctx, resp.Transaction, sign)
}

func (c *Client) DelegateEnergy(ctx context.Context, sign chain.SignContext, receiver string, stakeSun int64) (string, error) {
	return c.delegateCall(ctx, "/wallet/delegateresource", sign, receiver, stakeSun)
}

func (c *Client) UndelegateEnergy(ctx context.Context, sign chain.SignContext, receiver string, stakeSun int64) (string, error) {
	return c.delegateCall(ctx, "/wallet/undelegateresource", sign, receiver, stakeSun)
}

func (c *Client) delegateCall(ctx context.Context, path string, sign chain.SignContext, receiver string, stakeSun int64) (string, error) {
	ownerHex, err := Base58ToHex(sign.OwnerAddress)
	if err != nil {
		return "", errno.ErrInvalidAddress
	}
	receiverHex, err := Base58ToHex(receiver)
	if err != nil {
		return "", errno.ErrInvalidAddress
	}

	req := map[string]interface{}{
		"owner_address":    ownerHex,
		"receiver_address": receiverHex,
		"balance":          stakeSun,
		"resource":         "ENERGY",
	}
	if sign.PermissionID != 0 {
		req["Permission_id"] = sign.PermissionID
	}

	var tx Transaction
	if err := c.post(ctx, path, req, &tx); err != nil {
		return "", err
	}
	if tx.Error != "" {
		return "", fmt.Errorf("%w: %s", errno.ErrChainRPC, tx.Error)
	}
	return c.signAndBroadcast(ctx, &tx, sign)
}

func (c *Client) signAndBroadcast(ctx context.Context, tx *Transaction, sign chain.SignContext) (string, error) {
	if err := SignTransaction(tx, sign); err != nil {
		return "", err
	}

	var result apiResult
	if err := c.post(ctx, "/wallet/broadcasttransaction", tx, &result); err != nil {
		return "", err
	}
	if !result.Result {
		return "", fmt.Errorf("%w: %s %s", errno.ErrBroadcast, result.Code, decodeHexMessage(result.Message))
	}
	return tx.TxID, nil
}

func (c *Client) GetTransactionInfo(ctx context.Context, txID string) (*chain.TxInfo, error) {
	var info apiTransactionInfo
	if err := c.post(ctx, "/wallet/gettransactioninfobyid", map[string]string{"value": txID}, &info); err != nil {
		return nil, err
	}
	if info.ID == "" {
		return &chain.TxInfo{ID: txID, Found: false}, nil
	}

	// 原生转账没有 receipt.result; 合约调用以 receipt 为准
	success := info.Result != "FAILED" &&
		(info.Receipt.Result == "" || info.Receipt.Result == "SUCCESS")

	return &chain.TxInfo{
		ID:          info.ID,
		Found:       true,
		Success:     success,
		BlockNumber: info.BlockNumber,
		Fee:         info.Fee,
		EnergyUsed:  info.Receipt.EnergyUsageTotal,
		NetUsed:     info.Receipt.NetUsage,
	}, nil
}

// decodeHexMessage 节点把错误信息编码为 hex，尽力解码
func decodeHexMessage(msg string) string {
	if msg == "" {
		return ""
	}
	if decoded, err := hexDecodeString(msg); err == nil {
		return string(decoded)
	}
	return msg
}

func hexDecodeString(s string) ([]byte, error) {
	var out []byte
	_, err := fmt.Sscanf(s, "%x", &out)
	return out, err
}
