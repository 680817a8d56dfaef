package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 聚合业务指标。注册到调用方传入的 Registerer，而不是 prometheus 默认全局注册表。
type Metrics struct {
	UserRegistrations prometheus.Counter
	UserLogins        *prometheus.CounterVec
	CartAdditions     prometheus.Counter
	OrdersCreated     prometheus.Counter
	OrderValue        prometheus.Histogram
	OrderFailures     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UserRegistrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecommerce_user_registrations_total",
			Help: "Total number of user registrations.",
		}),
		UserLogins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecommerce_user_logins_total",
			Help: "Total number of login attempts.",
		}, []string{"status"}),
		CartAdditions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecommerce_cart_additions_total",
			Help: "Total number of products added to carts.",
		}),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecommerce_orders_total",
			Help: "Total number of orders created.",
		}),
		OrderValue: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecommerce_order_value_dollars",
			Help:    "Order value in dollars.",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000},
		}),
		OrderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecommerce_order_failures_total",
			Help: "Failed order attempts by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		m.UserRegistrations,
		m.UserLogins,
		m.CartAdditions,
		m.OrdersCreated,
		m.OrderValue,
		m.OrderFailures,
	)
	return m
}
