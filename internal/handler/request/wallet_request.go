package request

// CreateAddressRequest 申请充值地址
type CreateAddressRequest struct {
	UserID uint64 `json:"user_id" binding:"required"`
}

// CreateWithdrawalRequest 提现下单
type CreateWithdrawalRequest struct {
	UserID    uint64 `json:"user_id" binding:"required"`
	AssetID   string `json:"asset_id" binding:"required"`
	Amount    string `json:"amount" binding:"required"` // 最小单位, 十进制字符串
	Fee       string `json:"fee"`
	ToAddress string `json:"to_address" binding:"required"`
}

// RentEnergyRequest 能量租用
type RentEnergyRequest struct {
	UserID          uint64 `json:"user_id" binding:"required"`
	ReceiverAddress string `json:"receiver_address" binding:"required"`
	EnergyAmount    int64  `json:"energy_amount" binding:"required"`
	DurationMinutes int64  `json:"duration_minutes" binding:"required"`
}
