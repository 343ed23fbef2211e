package tron

import "encoding/json"

// 全节点 HTTP API 的报文结构 (非 visible 模式，地址均为 41 前缀 hex)

type blockHeaderRaw struct {
	Number    int64 `json:"number"`
	Timestamp int64 `json:"timestamp"`
}

type blockHeader struct {
	RawData blockHeaderRaw `json:"raw_data"`
}

type apiBlock struct {
	BlockID      string           `json:"blockID"`
	Header       blockHeader      `json:"block_header"`
	Transactions []apiTransaction `json:"transactions"`
}

type txContractParameter struct {
	Value   json.RawMessage `json:"value"`
	TypeURL string          `json:"type_url"`
}

type txContract struct {
	Type      string              `json:"type"`
	Parameter txContractParameter `json:"parameter"`
}

type txRawData struct {
	Contract []txContract `json:"contract"`
}

type txRet struct {
	ContractRet string `json:"contractRet"`
}

type apiTransaction struct {
	TxID    string    `json:"txID"`
	RawData txRawData `json:"raw_data"`
	Ret     []txRet   `json:"ret"`
}

// TransferContract 参数
type transferValue struct {
	OwnerAddress string `json:"owner_address"`
	ToAddress    string `json:"to_address"`
	Amount       int64  `json:"amount"`
}

// TriggerSmartContract 参数
type triggerValue struct {
	OwnerAddress    string `json:"owner_address"`
	ContractAddress string `json:"contract_address"`
	Data            string `json:"data"`
}

// Transaction 是节点构造出的待签交易。raw_data 原样透传，
// 签名对 raw_data_hex 的 sha256 进行。
type Transaction struct {
	TxID       string          `json:"txID"`
	RawData    json.RawMessage `json:"raw_data"`
	RawDataHex string          `json:"raw_data_hex"`
	Signature  []string        `json:"signature,omitempty"`
	Error      string          `json:"Error,omitempty"`
}

type apiResult struct {
	Result  bool   `json:"result"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// triggersmartcontract / triggerconstantcontract 响应
type triggerResponse struct {
	Result         apiResult    `json:"result"`
	Transaction    *Transaction `json:"transaction"`
	EnergyUsed     int64        `json:"energy_used"`
	ConstantResult []string     `json:"constant_result"`
}

type apiAccount struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

type apiAccountResource struct {
	FreeNetLimit      int64 `json:"freeNetLimit"`
	FreeNetUsed       int64 `json:"freeNetUsed"`
	NetLimit          int64 `json:"NetLimit"`
	NetUsed           int64 `json:"NetUsed"`
	EnergyLimit       int64 `json:"EnergyLimit"`
	EnergyUsed        int64 `json:"EnergyUsed"`
	TotalNetLimit     int64 `json:"TotalNetLimit"`
	TotalNetWeight    int64 `json:"TotalNetWeight"`
	TotalEnergyLimit  int64 `json:"TotalEnergyLimit"`
	TotalEnergyWeight int64 `json:"TotalEnergyWeight"`
}

type chainParameter struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

type apiChainParameters struct {
	ChainParameter []chainParameter `json:"chainParameter"`
}

type txReceipt struct {
	Result           string `json:"result"` // SUCCESS / REVERT / OUT_OF_ENERGY ...
	EnergyUsageTotal int64  `json:"energy_usage_total"`
	NetUsage         int64  `json:"net_usage"`
	NetFee           int64  `json:"net_fee"`
}

type apiTransactionInfo struct {
	ID          string    `json:"id"`
	BlockNumber int64     `json:"blockNumber"`
	Fee         int64     `json:"fee"`
	Result      string    `json:"result"` // 空 或 "FAILED"
	Receipt     txReceipt `json:"receipt"`
}
