package handler

import (
	"github.com/gin-gonic/gin"

	"tron-wallet-core/internal/handler/request"
	"tron-wallet-core/internal/handler/response"
	"tron-wallet-core/internal/service"
	"tron-wallet-core/pkg/errno"
)

// EnergyHandler 能量租用 API
type EnergyHandler struct {
	energy *service.EnergyService
}

func NewEnergyHandler(energy *service.EnergyService) *EnergyHandler {
	return &EnergyHandler{energy: energy}
}

// RentEnergy POST /energy/rent
func (h *EnergyHandler) RentEnergy(c *gin.Context) {
	var req request.RentEnergyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	order, err := h.energy.RentEnergy(c.Request.Context(), req.UserID, req.ReceiverAddress, req.EnergyAmount, req.DurationMinutes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"order_no":         order.OrderNo,
		"price":            order.Price.String(),
		"energy_amount":    order.EnergyAmount,
		"duration_seconds": order.DurationSeconds,
		"expire_at":        order.ExpireAt,
		"tx_hash":          order.TxHash,
	})
}
