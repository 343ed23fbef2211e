package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"tron-wallet-core/internal/handler/request"
	"tron-wallet-core/internal/handler/response"
	"tron-wallet-core/internal/service"
	"tron-wallet-core/pkg/errno"
)

// WalletHandler 充值地址与余额查询
type WalletHandler struct {
	keys   *service.KeyService
	ledger *service.LedgerService
}

func NewWalletHandler(keys *service.KeyService, ledger *service.LedgerService) *WalletHandler {
	return &WalletHandler{keys: keys, ledger: ledger}
}

// CreateDepositAddress POST /wallet/deposit_address
func (h *WalletHandler) CreateDepositAddress(c *gin.Context) {
	var req request.CreateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	record, err := h.keys.CreateDepositAddress(c.Request.Context(), req.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"address": record.Address,
		"chain":   record.Chain,
	})
}

// GetBalance GET /wallet/balance/:user_id/:asset_id
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	wallet, err := h.ledger.GetBalance(c.Request.Context(), userID, c.Param("asset_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"user_id":        wallet.UserID,
		"asset_id":       wallet.AssetID,
		"balance":        wallet.Balance.String(),
		"frozen_balance": wallet.FrozenBalance.String(),
	})
}
