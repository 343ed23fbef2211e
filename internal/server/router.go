package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tron-wallet-core/internal/handler"
	"tron-wallet-core/internal/handler/response"
	"tron-wallet-core/pkg/monitor"
)

// Handlers 路由需要的全部业务 handler
type Handlers struct {
	Wallet   *handler.WalletHandler
	Energy   *handler.EnergyHandler
	Withdraw *handler.WithdrawHandler
}

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(h Handlers) *gin.Engine {
	r := gin.Default()
	r.Use(monitor.PrometheusMiddleware())

	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/ping", func(c *gin.Context) {
			response.Success(c, gin.H{"pong": true})
		})

		wallet := api.Group("/wallet")
		{
			wallet.POST("/deposit_address", h.Wallet.CreateDepositAddress)
			wallet.GET("/balance/:user_id/:asset_id", h.Wallet.GetBalance)
		}

		api.POST("/energy/rent", h.Energy.RentEnergy)

		withdrawal := api.Group("/withdrawal")
		{
			withdrawal.POST("", h.Withdraw.Create)
			withdrawal.POST("/:order_no/approve", h.Withdraw.Approve)
			withdrawal.POST("/:order_no/cancel", h.Withdraw.Cancel)
		}
	}

	return r
}
