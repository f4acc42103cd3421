package replica

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/arya-analytics/epidemic/internal/causal"
	"github.com/arya-analytics/epidemic/internal/node"
	"go.uber.org/zap"
)

// Prune drops every log record that no acknowledgment, no connection, and no
// log head refers to at or before, so that walks backward stop at the oldest
// record still in use. It returns the number of records dropped.
func (r *Replica) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	floor := make(map[node.Key]uint64, len(r.order))
	for _, s := range r.order {
		floor[s.key] = s.head().Seq
	}
	lower := func(refs map[node.Key]*causal.Record) {
		for origin, rec := range refs {
			if f, ok := floor[origin]; ok && rec.Seq < f {
				floor[origin] = rec.Seq
			}
		}
	}
	for _, s := range r.order {
		lower(s.acknowledged)
	}
	for _, s := range r.connected {
		if s.conn != nil {
			lower(s.conn.lastSent)
		}
	}
	n := 0
	for _, s := range r.order {
		n += s.log.Prune(floor[s.key])
	}
	r.Metrics.Pruned(n)
	r.Logger.Debug("pruned", zap.Stringer("key", r.key), zap.Int("records", n))
	return n
}

// Dump writes every known node's acknowledgments, and every connection's
// last sent records, in key order.
func (r *Replica) Dump(w io.Writer) error {
	r.mu.Lock()
	var sb strings.Builder
	states := append([]*nodeState(nil), r.order...)
	for _, s := range r.connected {
		if s.key.IsPlaceholder() {
			states = append(states, s)
		}
	}
	sort.Slice(states, func(i, j int) bool { return states[i].key.Compare(states[j].key) < 0 })
	fmt.Fprintf(&sb, "%s: local seq %d\n", r.key, r.seq-1)
	for _, s := range states {
		fmt.Fprintf(&sb, "%s head %d\n", s.key, s.head().Seq)
		fmt.Fprintf(&sb, "  acknowledged\n")
		dumpRecords(&sb, s.acknowledged)
		if s.conn != nil {
			fmt.Fprintf(&sb, "  last sent\n")
			dumpRecords(&sb, s.conn.lastSent)
		}
	}
	r.mu.Unlock()
	_, err := io.WriteString(w, sb.String())
	return err
}

func dumpRecords(sb *strings.Builder, refs map[node.Key]*causal.Record) {
	keys := make([]node.Key, 0, len(refs))
	for k := range refs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
	for _, k := range keys {
		fmt.Fprintf(sb, "    %s: %d\n", k, refs[k].Seq)
	}
}
