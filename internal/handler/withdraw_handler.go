package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tron-wallet-core/internal/handler/request"
	"tron-wallet-core/internal/handler/response"
	"tron-wallet-core/internal/service"
	"tron-wallet-core/pkg/errno"
)

// WithdrawHandler 提现订单 API。
// 下单冻结余额; 放行与取消改变订单状态, 实际出账由调度管道执行。
type WithdrawHandler struct {
	withdraw *service.WithdrawService
}

func NewWithdrawHandler(withdraw *service.WithdrawService) *WithdrawHandler {
	return &WithdrawHandler{withdraw: withdraw}
}

// Create POST /withdrawal
func (h *WithdrawHandler) Create(c *gin.Context) {
	var req request.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.Error(c, errno.ErrInvalidAmount)
		return
	}
	fee := decimal.Zero
	if req.Fee != "" {
		if fee, err = decimal.NewFromString(req.Fee); err != nil {
			response.Error(c, errno.ErrInvalidAmount)
			return
		}
	}

	order, err := h.withdraw.CreateOrder(c.Request.Context(), req.UserID, req.AssetID, amount, fee, req.ToAddress)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"order_no":      order.OrderNo,
		"status":        order.Status,
		"actual_amount": order.ActualAmount.String(),
	})
}

// Approve POST /withdrawal/:order_no/approve
func (h *WithdrawHandler) Approve(c *gin.Context) {
	if err := h.withdraw.Approve(c.Request.Context(), c.Param("order_no")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Cancel POST /withdrawal/:order_no/cancel
func (h *WithdrawHandler) Cancel(c *gin.Context) {
	if err := h.withdraw.Cancel(c.Request.Context(), c.Param("order_no")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
