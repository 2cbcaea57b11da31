// SPDX-License-Identifier: MPL-2.0

// Package metrics exposes supervision and acquisition events as Prometheus
// metrics. It is observability only; nothing reads these values back.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gamekeeper/gamekeeper/internal/acquire"
	"github.com/gamekeeper/gamekeeper/internal/supervisor"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "gamekeeper"

const shutdownTimeout = 5 * time.Second

// Collector implements supervisor.Metrics with Prometheus metrics on its own registry.
type Collector struct {
	state        *prometheus.GaugeVec
	launches     *prometheus.CounterVec
	exits        *prometheus.CounterVec
	oomKills     *prometheus.CounterVec
	fastCrashes  *prometheus.GaugeVec
	crashes      *prometheus.GaugeVec
	updates      *prometheus.CounterVec
	attempts     *prometheus.CounterVec
	attemptTimes *prometheus.HistogramVec

	registry *prometheus.Registry
}

var _ supervisor.Metrics = (*Collector)(nil)

// NewCollector creates a collector. An empty namespace uses DefaultNamespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.state = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "supervisor_state",
			Help:      "Current supervisor state; 1 for the active state, 0 otherwise",
		},
		[]string{"game", "state"},
	)

	c.launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launches_total",
			Help:      "Total number of successful child launches",
		},
		[]string{"game"},
	)

	c.exits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exits_total",
			Help:      "Total number of child exits by classification",
		},
		[]string{"game", "kind", "fast"},
	)

	c.oomKills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oom_kills_total",
			Help:      "Total number of exits that look like out-of-memory kills",
		},
		[]string{"game"},
	)

	c.fastCrashes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_fast_crashes",
			Help:      "Current consecutive fast crash count",
		},
		[]string{"game"},
	)

	c.crashes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_crashes",
			Help:      "Current consecutive non-zero exit count",
		},
		[]string{"game"},
	)

	c.updates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Total number of restart-time update attempts",
		},
		[]string{"game", "status"},
	)

	c.attempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acquire_attempts_total",
			Help:      "Total number of artifact download attempts by source",
		},
		[]string{"artifact", "source", "status"},
	)

	c.attemptTimes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "acquire_attempt_duration_seconds",
			Help:      "Duration of artifact download attempts",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"artifact", "status"},
	)

	c.registry.MustRegister(
		c.state,
		c.launches,
		c.exits,
		c.oomKills,
		c.fastCrashes,
		c.crashes,
		c.updates,
		c.attempts,
		c.attemptTimes,
	)

	return c
}

// StateChanged implements supervisor.Metrics.
func (c *Collector) StateChanged(game string, s supervisor.State) {
	for st := supervisor.StateIdle; st <= supervisor.StateStopped; st++ {
		v := 0.0
		if st == s {
			v = 1
		}
		c.state.WithLabelValues(game, st.String()).Set(v)
	}
}

// Launched implements supervisor.Metrics.
func (c *Collector) Launched(game string) {
	c.launches.WithLabelValues(game).Inc()
}

// Exited implements supervisor.Metrics.
func (c *Collector) Exited(game string, v supervisor.Verdict) {
	c.exits.WithLabelValues(game, v.Kind.String(), strconv.FormatBool(v.Fast)).Inc()
	if v.LikelyOOM {
		c.oomKills.WithLabelValues(game).Inc()
	}
	c.fastCrashes.WithLabelValues(game).Set(float64(v.Counters.FastCrashes))
	c.crashes.WithLabelValues(game).Set(float64(v.Counters.Crashes))
}

// Updated implements supervisor.Metrics.
func (c *Collector) Updated(game string, err error) {
	c.updates.WithLabelValues(game, status(err)).Inc()
}

// Attempt records one acquisition attempt. It matches acquire.AttemptHook.
func (c *Collector) Attempt(a acquire.Attempt) {
	st := status(a.Err)
	c.attempts.WithLabelValues(a.Target, a.Candidate, st).Inc()
	c.attemptTimes.WithLabelValues(a.Target, st).Observe(a.Duration.Seconds())
}

// Registry returns the Prometheus registry for HTTP handler setup.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Listen binds addr and serves /metrics until ctx is done. It returns once
// the listener is bound so that bind errors surface at startup; serve errors
// after that are logged.
func (c *Collector) Listen(ctx context.Context, addr string, logger *log.Logger) (net.Addr, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics listener stopped", "err", err)
		}
	}()

	logger.Info("serving metrics", "addr", ln.Addr().String())
	return ln.Addr(), nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
