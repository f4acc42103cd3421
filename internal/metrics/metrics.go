// Package metrics exposes prometheus counters for replicas.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace is the namespace every epidemic metric is defined under.
const Namespace = "epidemic"

const subsystem = "replica"

// NewCounter creates a Counter under the global namespace.
func NewCounter(name, subsystem, help string, labels []string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help}, labels)
}

// NewGauge creates a Gauge under the global namespace.
func NewGauge(name, subsystem, help string, labels []string) *prometheus.GaugeVec {
	return promauto.NewGaugeVec(prometheus.GaugeOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help}, labels)
}

var (
	messagesSent = NewCounter(
		"messages_sent_total", subsystem,
		"Messages handed to the network, by kind",
		[]string{"node", "kind"},
	)
	messagesReceived = NewCounter(
		"messages_received_total", subsystem,
		"Messages accepted from peers, by kind",
		[]string{"node", "kind"},
	)
	protocolViolations = NewCounter(
		"protocol_violations_total", subsystem,
		"Inbound messages rejected as protocol violations",
		[]string{"node"},
	)
	merges = NewCounter(
		"merges_total", subsystem,
		"Three-way merges performed while incorporating acknowledged changes",
		[]string{"node"},
	)
	conflicts = NewCounter(
		"conflicts_total", subsystem,
		"Cells handed to the conflict resolver",
		[]string{"node"},
	)
	pruned = NewCounter(
		"pruned_records_total", subsystem,
		"Log records dropped from the index by pruning",
		[]string{"node"},
	)
	localSequence = NewGauge(
		"local_sequence", subsystem,
		"Last sequence number allocated in the local log",
		[]string{"node"},
	)
)

// Recorder records metrics for one node. A nil Recorder records nothing.
type Recorder struct {
	node string
}

// ForNode returns a Recorder labelling every observation with node.
func ForNode(node string) *Recorder { return &Recorder{node: node} }

func (r *Recorder) MessageSent(kind string) {
	if r != nil {
		messagesSent.WithLabelValues(r.node, kind).Inc()
	}
}

func (r *Recorder) MessageReceived(kind string) {
	if r != nil {
		messagesReceived.WithLabelValues(r.node, kind).Inc()
	}
}

func (r *Recorder) ProtocolViolation() {
	if r != nil {
		protocolViolations.WithLabelValues(r.node).Inc()
	}
}

func (r *Recorder) Merge() {
	if r != nil {
		merges.WithLabelValues(r.node).Inc()
	}
}

func (r *Recorder) Conflict() {
	if r != nil {
		conflicts.WithLabelValues(r.node).Inc()
	}
}

func (r *Recorder) Pruned(n int) {
	if r != nil && n > 0 {
		pruned.WithLabelValues(r.node).Add(float64(n))
	}
}

func (r *Recorder) LocalSequence(seq uint64) {
	if r != nil {
		localSequence.WithLabelValues(r.node).Set(float64(seq))
	}
}
