// Package metrics tracks how long the filesystem spends waiting on the
// remote services. The process is a FUSE daemon with no scrape surface,
// so counters are gathered and logged once at teardown.
package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

var (
	backendWaitSeconds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swhfs_backend_wait_seconds_total",
		Help: "Cumulated time spent waiting for a backend service.",
	}, []string{"backend"})

	backendCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swhfs_backend_calls_total",
		Help: "Number of calls issued to a backend service.",
	}, []string{"backend", "call"})
)

func init() {
	prometheus.MustRegister(backendWaitSeconds, backendCalls)
}

// Timed records one backend call and, through the returned func, the time
// spent waiting on it.
//
//	defer metrics.Timed("graph", "get_metadata")()
func Timed(backend, call string) func() {
	backendCalls.WithLabelValues(backend, call).Inc()
	start := time.Now()
	return func() {
		backendWaitSeconds.WithLabelValues(backend).Add(time.Since(start).Seconds())
	}
}

// Report logs the accumulated counters, one line per series.
func Report() {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		log.Errorf("cannot gather metrics: %v", err)
		return
	}
	for _, fam := range families {
		if !strings.HasPrefix(fam.GetName(), "swhfs_") {
			continue
		}
		for _, m := range fam.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%s", l.GetName(), l.GetValue()))
			}
			log.Infof("%s{%s} %g", fam.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
		}
	}
}
