// Package metrics expone las métricas Prometheus del libro y del servidor HTTP.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/pcp-stock-ledger/internal/application/inventory"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
)

var _ inventory.Metrics = (*Collector)(nil)

// Collector registro propio (no el global) para que las pruebas puedan crear varios.
type Collector struct {
	registry *prometheus.Registry

	admitted        *prometheus.CounterVec
	admitLatency    *prometheus.HistogramVec
	rejected        *prometheus.CounterVec
	retries         prometheus.Counter
	integrityAlarms prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// NewCollector registra todas las métricas.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		admitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stock_ledger",
			Name:      "movements_admitted_total",
			Help:      "Movimientos admitidos en el libro, por tipo.",
		}, []string{"type"}),
		admitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stock_ledger",
			Name:      "admission_duration_seconds",
			Help:      "Duración de la admisión de un movimiento, incluidos reintentos.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stock_ledger",
			Name:      "movements_rejected_total",
			Help:      "Movimientos rechazados, por motivo.",
		}, []string{"reason"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stock_ledger",
			Name:      "admission_retries_total",
			Help:      "Reintentos por conflicto de serialización.",
		}),
		integrityAlarms: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stock_ledger",
			Name:      "integrity_alarms_total",
			Help:      "Saldos congelados por violación de integridad.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stock_ledger",
			Name:      "http_requests_total",
			Help:      "Peticiones HTTP por método, ruta y estado.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stock_ledger",
			Name:      "http_request_duration_seconds",
			Help:      "Latencia de peticiones HTTP.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	c.registry.MustRegister(
		c.admitted, c.admitLatency, c.rejected, c.retries, c.integrityAlarms,
		c.httpRequests, c.httpLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry acceso para pruebas.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) MovementAdmitted(t entity.MovementType, elapsed time.Duration) {
	c.admitted.WithLabelValues(string(t)).Inc()
	c.admitLatency.WithLabelValues(string(t)).Observe(elapsed.Seconds())
}

func (c *Collector) MovementRejected(reason string) {
	c.rejected.WithLabelValues(reason).Inc()
}

func (c *Collector) AdmissionRetried() { c.retries.Inc() }

func (c *Collector) IntegrityAlarm() { c.integrityAlarms.Inc() }

// Middleware mide cada petición usando la ruta registrada (no la URL) para acotar cardinalidad.
func (c *Collector) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()
		err := ctx.Next()
		status := ctx.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := ctx.Route().Path
		method := ctx.Method()
		c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		c.httpLatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler expone /metrics.
func (c *Collector) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
}
