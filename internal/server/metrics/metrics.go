// Package metrics exposes pool activity as Prometheus collectors.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophpool/internal/pool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const namespace = "gophpool"

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	Registry *prometheus.Registry

	entries      prometheus.Counter
	contributed  prometheus.Counter
	settlements  prometheus.Counter
	payoutUnits  *prometheus.CounterVec
	airdropUnits prometheus.Counter
	rejected     *prometheus.CounterVec
	rpcDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		entries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "entries_total",
			Help:      "Total number of accepted entries.",
		}),
		contributed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "contributed_units_total",
			Help:      "Total units contributed by accepted entries.",
		}),
		settlements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "settlements_total",
			Help:      "Total number of settlements.",
		}),
		payoutUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "payout_units_total",
			Help:      "Units paid out by settlements, per share.",
		}, []string{"share"}),
		airdropUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "airdrop_units_total",
			Help:      "Units credited by airdrops.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "rejected_total",
			Help:      "Rejected operations by operation and reason.",
		}, []string{"op", "reason"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "grpc",
			Name:      "request_duration_seconds",
			Help:      "Duration of gRPC requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}, []string{"method", "code"}),
	}

	m.Registry.MustRegister(
		m.entries,
		m.contributed,
		m.settlements,
		m.payoutUnits,
		m.airdropUnits,
		m.rejected,
		m.rpcDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) EntryCreated(contribution uint64) {
	m.entries.Inc()
	m.contributed.Add(float64(contribution))
}

func (m *Metrics) Settled(p pool.Payout) {
	m.settlements.Inc()
	m.payoutUnits.WithLabelValues("winner").Add(float64(p.WinnerShare))
	m.payoutUnits.WithLabelValues("creator").Add(float64(p.CreatorShare))
}

func (m *Metrics) Airdropped(amount uint64) {
	m.airdropUnits.Add(float64(amount))
}

func (m *Metrics) Rejected(op string, err error) {
	reason := pool.KindOf(err)
	if reason == "" {
		reason = "INTERNAL"
	}
	m.rejected.WithLabelValues(op, reason).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// UnaryServerInterceptor records the duration and status code of every call.
func (m *Metrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		m.rpcDuration.WithLabelValues(info.FullMethod, status.Code(err).String()).Observe(time.Since(start).Seconds())
		return resp, err
	}
}
