package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RelayDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_delivered_total",
		Help: "Количество доставленных анонимных сообщений",
	}, []string{"action"})

	RelayFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_failed_total",
		Help: "Ошибки доставки анонимных сообщений",
	})

	GateChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gate_checks_total",
		Help: "Количество проверок подписки по результату",
	}, []string{"result"})

	AdImpressions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ad_impressions_total",
		Help: "Количество показов рекламных постов",
	})

	ReferralClicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "referral_clicks_total",
		Help: "Количество засчитанных переходов по партнёрским кодам",
	})

	BotSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_send_errors_total",
		Help: "Ошибки отправки сообщений ботом",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		RelayDelivered,
		RelayFailed,
		GateChecks,
		AdImpressions,
		ReferralClicks,
		BotSendErrors,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}
