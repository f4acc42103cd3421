package causal_test

import (
	"github.com/arya-analytics/epidemic/internal/causal"
	"github.com/arya-analytics/epidemic/internal/node"
	"github.com/arya-analytics/epidemic/revision"
	"github.com/arya-analytics/epidemic/revision/memrev"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func rev(v string) revision.Revision {
	r, err := memrev.Set(memrev.Empty(), v, revision.Table("t"), 1, revision.Column("c"))
	Expect(err).ToNot(HaveOccurred())
	return r
}

func seqs(l *causal.Log) (out []uint64) {
	for r := l.Tail(); r != nil; r = r.Next() {
		out = append(out, r.Seq)
	}
	return out
}

var _ = Describe("Log", func() {
	var (
		key node.Key
		l   *causal.Log
	)
	BeforeEach(func() {
		key = node.Key{ID: "n1", Instance: node.NewInstance()}
		l = causal.NewLog(key, memrev.Empty())
	})

	Describe("NewLog", func() {
		It("Should start at sequence 0 with the empty revision", func() {
			h := l.Head()
			Expect(h.Seq).To(Equal(uint64(0)))
			Expect(h.Revision).To(BeIdenticalTo(memrev.Empty()))
			Expect(h.Origin).To(Equal(key))
			Expect(l.Tail()).To(BeIdenticalTo(h))
		})
	})

	Describe("Insert", func() {
		It("Should append and advance the head", func() {
			r, advanced, err := l.Insert(3, rev("a"), nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(advanced).To(BeTrue())
			Expect(l.Head()).To(BeIdenticalTo(r))
			prev, ok := r.Previous()
			Expect(ok).To(BeTrue())
			Expect(prev.Seq).To(Equal(uint64(0)))
		})
		It("Should splice a record between existing neighbours", func() {
			_, _, err := l.Insert(5, rev("a"), nil)
			Expect(err).ToNot(HaveOccurred())
			mid, advanced, err := l.Insert(2, rev("b"), nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(advanced).To(BeFalse())
			Expect(mid.Next().Seq).To(Equal(uint64(5)))
			Expect(seqs(l)).To(Equal([]uint64{0, 2, 5}))
			head := l.Head()
			prev, ok := head.Previous()
			Expect(ok).To(BeTrue())
			Expect(prev).To(BeIdenticalTo(mid))
		})
		It("Should return the existing record for a duplicate sequence number", func() {
			first, _, err := l.Insert(1, rev("a"), nil)
			Expect(err).ToNot(HaveOccurred())
			second, advanced, err := l.Insert(1, rev("b"), nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(advanced).To(BeFalse())
			Expect(second).To(BeIdenticalTo(first))
			Expect(seqs(l)).To(Equal([]uint64{0, 1}))
		})
		It("Should fail to insert behind a pruned record", func() {
			for i := uint64(1); i <= 4; i++ {
				_, _, err := l.Insert(i*2, rev("a"), nil)
				Expect(err).ToNot(HaveOccurred())
			}
			Expect(l.Prune(6)).To(Equal(3))
			_, _, err := l.Insert(3, rev("b"), nil)
			Expect(err).To(MatchError(ContainSubstring("no longer reachable")))
		})
	})

	Describe("Find", func() {
		It("Should locate a record by sequence number", func() {
			_, _, _ = l.Insert(1, rev("a"), nil)
			_, _, _ = l.Insert(4, rev("b"), nil)
			r, ok := l.Find(1)
			Expect(ok).To(BeTrue())
			Expect(r.Seq).To(Equal(uint64(1)))
			_, ok = l.Find(2)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Tail", func() {
		It("Should synthesize an empty sequence 0 record after pruning", func() {
			_, _, _ = l.Insert(1, rev("a"), nil)
			r2, _, _ := l.Insert(2, rev("b"), nil)
			Expect(l.Prune(2)).To(Equal(2))
			t := l.Tail()
			Expect(t.Seq).To(Equal(uint64(0)))
			Expect(t.Revision).To(BeIdenticalTo(memrev.Empty()))
			Expect(t.Next()).To(BeIdenticalTo(r2))
			Expect(t.IsPlaceholder()).To(BeTrue())
			Expect(l.Tail()).To(BeIdenticalTo(t))
		})
		It("Should return the real sequence 0 record while it is indexed", func() {
			_, _, _ = l.Insert(1, rev("a"), nil)
			t := l.Tail()
			Expect(t.Seq).To(Equal(uint64(0)))
			Expect(t.IsPlaceholder()).To(BeFalse())
		})
		It("Should follow a self merge marker back to its source", func() {
			r1, _, _ := l.Insert(1, rev("a"), nil)
			_, _, _ = l.Insert(2, rev("a"), r1)
			Expect(l.Prune(2)).To(Equal(2))
			t := l.Tail()
			Expect(t.Seq).To(Equal(uint64(0)))
			Expect(t.Next()).To(BeIdenticalTo(r1))
		})
	})

	Describe("Remove", func() {
		It("Should unlink a record spliced between two others", func() {
			_, _, _ = l.Insert(1, rev("a"), nil)
			_, _, _ = l.Insert(3, rev("c"), nil)
			_, advanced, err := l.Insert(2, rev("b"), nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(advanced).To(BeFalse())
			l.Remove(2)
			Expect(seqs(l)).To(Equal([]uint64{0, 1, 3}))
			r3, ok := l.Find(3)
			Expect(ok).To(BeTrue())
			p, ok := r3.Previous()
			Expect(ok).To(BeTrue())
			Expect(p.Seq).To(Equal(uint64(1)))
		})
		It("Should move the head back when the head is removed", func() {
			r1, _, _ := l.Insert(1, rev("a"), nil)
			_, _, _ = l.Insert(2, rev("b"), nil)
			l.Remove(2)
			Expect(l.Head()).To(BeIdenticalTo(r1))
			_, advanced, err := l.Insert(2, rev("c"), nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(advanced).To(BeTrue())
		})
		It("Should ignore a sequence number that is not indexed", func() {
			_, _, _ = l.Insert(1, rev("a"), nil)
			l.Remove(5)
			Expect(seqs(l)).To(Equal([]uint64{0, 1}))
		})
	})

	Describe("Prune", func() {
		It("Should never drop the head", func() {
			_, _, _ = l.Insert(1, rev("a"), nil)
			Expect(l.Prune(10)).To(Equal(1))
			_, ok := l.Find(0)
			Expect(ok).To(BeFalse())
			Expect(l.Head().Seq).To(Equal(uint64(1)))
		})
	})
})
