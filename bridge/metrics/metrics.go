// Package metrics decorates a ComponentBridge with Prometheus exchange
// counters and latency histograms.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/TheLegendszs/v4l4j"
)

// Bridge records every exchange of the wrapped bridge.
type Bridge struct {
	next      v4l4j.ComponentBridge
	exchanges *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	bytes     *prometheus.CounterVec
}

var _ v4l4j.ComponentBridge = (*Bridge)(nil)

// New wraps next and registers its collectors with reg under the given
// namespace. Each bridge needs its own namespace or registry.
func New(next v4l4j.ComponentBridge, reg prometheus.Registerer, namespace string) (*Bridge, error) {
	b := &Bridge{
		next: next,
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "exchanges_total",
			Help:      "Total number of exchanges by query, operation and result",
		}, []string{"query", "op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "exchange_duration_seconds",
			Help:      "Exchange round trip latency by query",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 10),
		}, []string{"query"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "bytes_total",
			Help:      "Record bytes moved by query and direction",
		}, []string{"query", "direction"}),
	}
	for _, c := range []prometheus.Collector{b.exchanges, b.duration, b.bytes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func op(doRead, doWrite bool) string {
	switch {
	case doRead && doWrite:
		return "write_read"
	case doWrite:
		return "write"
	case doRead:
		return "read"
	default:
		return "none"
	}
}

// Exchange forwards to the wrapped bridge and records the outcome.
func (b *Bridge) Exchange(ctx context.Context, id int32, buf []byte, doRead, doWrite bool) ([]byte, error) {
	query := strconv.Itoa(int(id))
	start := time.Now()
	out, err := b.next.Exchange(ctx, id, buf, doRead, doWrite)
	b.duration.WithLabelValues(query).Observe(time.Since(start).Seconds())

	if err != nil {
		b.exchanges.WithLabelValues(query, op(doRead, doWrite), "error").Inc()
		return nil, err
	}
	b.exchanges.WithLabelValues(query, op(doRead, doWrite), "ok").Inc()
	if doWrite {
		b.bytes.WithLabelValues(query, "out").Add(float64(len(buf)))
	}
	b.bytes.WithLabelValues(query, "in").Add(float64(len(out)))
	return out, nil
}
