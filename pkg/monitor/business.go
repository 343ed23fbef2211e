package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	DepositAmountTotal     *prometheus.CounterVec
	DepositConfirmedTotal  *prometheus.CounterVec
	CollectJobDuration     *prometheus.HistogramVec
	WithdrawalSuccessTotal *prometheus.CounterVec
	WithdrawalFailedTotal  *prometheus.CounterVec
	EnergyRentedTotal      prometheus.Counter
	EnergyReclaimedTotal   prometheus.Counter
	ScanCursorHeight       *prometheus.GaugeVec
}

// Global Metrics Instance
var Business *BusinessMetrics

// InitBusinessMetrics 初始化业务指标
func InitBusinessMetrics() {
	Business = &BusinessMetrics{
		DepositAmountTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_deposit_amount_total",
			Help: "The total amount of credited deposits (smallest unit)",
		}, []string{"asset"}),
		DepositConfirmedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_deposit_confirmed_total",
			Help: "Total number of confirmed deposits",
		}, []string{"asset"}),
		CollectJobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wallet_collect_job_duration_seconds",
			Help:    "Duration of collection (sweep) runs",
			Buckets: prometheus.DefBuckets,
		}, []string{"chain"}),
		WithdrawalSuccessTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_withdraw_success_total",
			Help: "Total number of settled withdrawals",
		}, []string{"asset"}),
		WithdrawalFailedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_withdraw_failed_total",
			Help: "Total number of failed withdrawals",
		}, []string{"asset"}),
		EnergyRentedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wallet_energy_rented_units_total",
			Help: "Total energy units delegated through the marketplace",
		}),
		EnergyReclaimedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wallet_energy_reclaimed_orders_total",
			Help: "Total delegation orders reclaimed after expiry",
		}),
		ScanCursorHeight: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wallet_scan_cursor_height",
			Help: "Last persisted scan cursor per chain",
		}, []string{"chain"}),
	}
}
