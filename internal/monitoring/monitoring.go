package monitoring

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PaymentsInitiated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skillcard_payments_initiated_total",
		Help: "STK push requests accepted by the gateway.",
	})

	PaymentsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skillcard_payments_completed_total",
		Help: "Payments confirmed successful via callback.",
	})

	PaymentsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skillcard_payments_failed_total",
		Help: "Payments reported failed via callback.",
	})

	CallbacksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillcard_mpesa_callbacks_total",
		Help: "M-Pesa result callbacks received, by outcome of matching.",
	}, []string{"matched"})

	CardsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skillcard_cards_created_total",
		Help: "Skill cards materialized after successful payment.",
	})
)

// MetricsHandler exposes the prometheus registry for scraping.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
