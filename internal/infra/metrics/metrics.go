package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 25, 30},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	RecommendationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendations_total",
		Help: "Результаты подбора фильма",
	}, []string{"result"})

	CatalogPageCursor = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_page_cursor",
		Help: "Текущая страница рейтингового списка",
	})

	CatalogPageMoves = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_page_moves_total",
		Help: "Переходы курсора страниц каталога",
	}, []string{"reason"})

	DeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deliveries_total",
		Help: "Отправки рекомендаций получателям",
	}, []string{"kind", "status"})

	ActiveSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "active_subscriptions",
		Help: "Количество активных подписок",
	})

	RecencySaveErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recency_save_errors_total",
		Help: "Ошибки сохранения истории рекомендаций",
	})

	CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Состояние предохранителя (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		NetworkRequestDuration,
		NetworkRequestTotal,
		RecommendationsTotal,
		CatalogPageCursor,
		CatalogPageMoves,
		DeliveriesTotal,
		ActiveSubscriptions,
		RecencySaveErrors,
		CircuitBreakerState,
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

// ObserveRecommendation учитывает результат подбора.
func ObserveRecommendation(result string) {
	RecommendationsTotal.WithLabelValues(result).Inc()
}

// SetPageCursor обновляет значение курсора страниц.
func SetPageCursor(page int) {
	CatalogPageCursor.Set(float64(page))
}

// IncPageMove учитывает сдвиг или сброс курсора.
func IncPageMove(reason string) {
	CatalogPageMoves.WithLabelValues(reason).Inc()
}

// ObserveDelivery учитывает отправку сообщения получателю.
func ObserveDelivery(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DeliveriesTotal.WithLabelValues(kind, status).Inc()
}
