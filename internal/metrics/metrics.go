package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 注册中心的Prometheus指标集合
type Metrics struct {
	registry *prometheus.Registry

	// RegistrationsTotal 按结果统计的注册请求数
	RegistrationsTotal *prometheus.CounterVec
	// DeregistrationsTotal 注销请求数
	DeregistrationsTotal prometheus.Counter
	// HeartbeatsTotal 心跳请求数
	HeartbeatsTotal prometheus.Counter
	// HealthChecksTotal 按探测结果统计的健康检查次数
	HealthChecksTotal *prometheus.CounterVec
	// HealthCheckDuration 单次健康探测耗时分布
	HealthCheckDuration prometheus.Histogram
	// RegisteredServices 当前已注册服务数
	RegisteredServices prometheus.Gauge
}

// NewMetrics 创建指标集合，每个实例使用独立的registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		RegistrationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_registrations_total",
				Help: "Total number of service registration requests",
			},
			[]string{"outcome"},
		),
		DeregistrationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "registry_deregistrations_total",
				Help: "Total number of service deregistration requests",
			},
		),
		HeartbeatsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "registry_heartbeats_total",
				Help: "Total number of service heartbeat requests",
			},
		),
		HealthChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_health_checks_total",
				Help: "Total number of health probes by resulting status",
			},
			[]string{"status"},
		),
		HealthCheckDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "registry_health_check_duration_seconds",
				Help:    "Health probe duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		RegisteredServices: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "registry_services",
				Help: "Number of currently registered services",
			},
		),
	}
}

// Handler 返回指标暴露端点的HTTP处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRegistration 记录一次注册请求
func (m *Metrics) RecordRegistration(outcome string) {
	m.RegistrationsTotal.WithLabelValues(outcome).Inc()
}

// RecordDeregistration 记录一次注销请求
func (m *Metrics) RecordDeregistration() {
	m.DeregistrationsTotal.Inc()
}

// RecordHeartbeat 记录一次心跳请求
func (m *Metrics) RecordHeartbeat() {
	m.HeartbeatsTotal.Inc()
}

// RecordHealthCheck 记录一次健康探测及其耗时
func (m *Metrics) RecordHealthCheck(status string, duration time.Duration) {
	m.HealthChecksTotal.WithLabelValues(status).Inc()
	m.HealthCheckDuration.Observe(duration.Seconds())
}

// SetRegisteredServices 更新当前注册服务数
func (m *Metrics) SetRegisteredServices(count int) {
	m.RegisteredServices.Set(float64(count))
}
