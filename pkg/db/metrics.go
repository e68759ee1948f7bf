package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStatsCollector exposes pgxpool statistics as Prometheus metrics.
// Stats are read from the pool on every scrape.
type PoolStatsCollector struct {
	pool *pgxpool.Pool

	totalConns        *prometheus.Desc
	idleConns         *prometheus.Desc
	acquiredConns     *prometheus.Desc
	maxConns          *prometheus.Desc
	acquireTotal      *prometheus.Desc
	emptyAcquireTotal *prometheus.Desc
	acquireSeconds    *prometheus.Desc
}

// NewPoolStatsCollector creates a new collector for the given connection pool.
// The serviceName is attached as a constant "service" label.
func NewPoolStatsCollector(pool *pgxpool.Pool, namespace, serviceName string) *PoolStatsCollector {
	constLabels := prometheus.Labels{"service": serviceName}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "db_pool", name), help, nil, constLabels)
	}

	return &PoolStatsCollector{
		pool:              pool,
		totalConns:        desc("total_conns", "Total number of connections currently open in the pool"),
		idleConns:         desc("idle_conns", "Number of idle connections in the pool"),
		acquiredConns:     desc("acquired_conns", "Number of connections currently acquired from the pool"),
		maxConns:          desc("max_conns", "Maximum number of connections allowed in the pool"),
		acquireTotal:      desc("acquires_total", "Cumulative count of successful connection acquires"),
		emptyAcquireTotal: desc("empty_acquires_total", "Cumulative count of acquires that had to wait for a connection"),
		acquireSeconds:    desc("acquire_seconds_total", "Cumulative time spent acquiring connections"),
	}
}

// Describe sends all metric descriptors to the channel.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalConns
	ch <- c.idleConns
	ch <- c.acquiredConns
	ch <- c.maxConns
	ch <- c.acquireTotal
	ch <- c.emptyAcquireTotal
	ch <- c.acquireSeconds
}

// Collect gathers current pool statistics and sends them as metrics.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pool == nil {
		return
	}

	stats := c.pool.Stat()

	ch <- prometheus.MustNewConstMetric(c.totalConns, prometheus.GaugeValue, float64(stats.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(stats.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.acquiredConns, prometheus.GaugeValue, float64(stats.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(stats.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.acquireTotal, prometheus.CounterValue, float64(stats.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.emptyAcquireTotal, prometheus.CounterValue, float64(stats.EmptyAcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.acquireSeconds, prometheus.CounterValue, stats.AcquireDuration().Seconds())
}

// RegisterPoolStatsCollector creates a pool stats collector and registers it
// with reg. Registering the same collector twice is not an error.
func RegisterPoolStatsCollector(pool *pgxpool.Pool, namespace, serviceName string, reg prometheus.Registerer) (*PoolStatsCollector, error) {
	collector := NewPoolStatsCollector(pool, namespace, serviceName)
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
	}
	return collector, nil
}
