// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsTotal counts engine calls by operation and outcome.
	PacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schc_packets_total",
			Help: "Total number of packets handled by the engine",
		},
		[]string{"op", "direction", "outcome"},
	)

	// RuleMatchesTotal counts matches per rule id.
	RuleMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schc_rule_matches_total",
			Help: "Total number of rule matches by rule id",
		},
		[]string{"rule"},
	)

	// HeaderBitsTotal accumulates header sizes before and after compression.
	HeaderBitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schc_header_bits_total",
			Help: "Cumulative header bits by stage (original or compressed)",
		},
		[]string{"stage"},
	)
)

// Outcome label values.
const (
	OutcomeOK         = "ok"
	OutcomeNoMatch    = "no_match"
	OutcomeParseError = "parse_error"
	OutcomeError      = "error"
)
