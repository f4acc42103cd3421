package metrics_test

import (
	"github.com/arya-analytics/epidemic/internal/metrics"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ = Describe("Recorder", func() {
	It("Should count observations per node", func() {
		r := metrics.ForNode("metrics-test")
		r.MessageSent("diff")
		r.MessageSent("diff")
		r.Pruned(3)
		r.Pruned(0)
		n, err := testutil.GatherAndCount(prometheus.DefaultGatherer,
			"epidemic_replica_messages_sent_total",
			"epidemic_replica_pruned_records_total",
		)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(BeNumerically(">=", 2))
	})
	It("Should ignore observations on a nil recorder", func() {
		var r *metrics.Recorder
		Expect(func() {
			r.MessageReceived("ack")
			r.ProtocolViolation()
			r.Merge()
			r.Conflict()
			r.LocalSequence(4)
		}).ToNot(Panic())
	})
})
