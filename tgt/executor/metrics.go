// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package executor

import (
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess    = "success"
	outcomeFailure    = "failure"
	outcomeSpawnError = "spawn_error"
)

var (
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tgt_manager",
			Name:      "commands_total",
			Help:      "Control plane commands executed, by program and outcome.",
		},
		[]string{"program", "outcome"},
	)

	commandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tgt_manager",
			Name:      "command_duration_seconds",
			Help:      "Wall clock time of control plane commands.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"program"},
	)
)

func observe(program, outcome string, elapsed time.Duration) {
	program = filepath.Base(program)
	commandsTotal.WithLabelValues(program, outcome).Inc()
	commandDuration.WithLabelValues(program).Observe(elapsed.Seconds())
}
