package ol

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var recordedOps = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "crdt",
	Subsystem: "oplog",
	Name:      "recorded_total",
	Help:      "Local operations queued for export.",
})

var remoteOps = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "crdt",
	Subsystem: "oplog",
	Name:      "remote_total",
	Help:      "Remote operations received, by dedup result.",
}, []string{"result"})

var exportedOps = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "crdt",
	Subsystem: "oplog",
	Name:      "exported_total",
	Help:      "Operations drained from the unsent buffer.",
})

// RegisterMetrics registers the operation log counters. Registering twice
// with the same registerer is not an error.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{recordedOps, remoteOps, exportedOps} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}
