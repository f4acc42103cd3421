package replica

import (
	"github.com/arya-analytics/epidemic/internal/message"
	"github.com/arya-analytics/epidemic/internal/node"
	"github.com/arya-analytics/epidemic/internal/wire"
	"github.com/arya-analytics/epidemic/revision"
	"github.com/arya-analytics/epidemic/revision/memrev"
	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type discardNetwork struct{}

func (discardNetwork) Send(node.ID, node.ID, message.Message) {}

func set(v string) revision.Revision {
	rev, err := memrev.Set(memrev.Empty(), v, revision.Table("t"), 1, revision.Column("c"))
	Expect(err).ToNot(HaveOccurred())
	return rev
}

var _ = Describe("fold", func() {
	It("Should skip merge markers", func() {
		var calls int
		r, err := New(Config{
			ID:      "n1",
			Network: discardNetwork{},
			Resolver: NodeConflictResolverFunc(func(
				_, _ node.ID, _ revision.Table, _ revision.Column, _ []any, _, l, _ any,
			) (any, error) {
				calls++
				return l, nil
			}),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Merge(memrev.Empty(), set("x"))).To(Succeed())
		Expect(calls).To(BeZero())

		s := r.state(node.Key{ID: "n2", Instance: node.NewInstance()})
		_, _, err = s.log.Insert(1, set("a"), nil)
		Expect(err).ToNot(HaveOccurred())
		_, _, err = s.log.Insert(2, set("b"), r.local.head())
		Expect(err).ToNot(HaveOccurred())
		target, _, err := s.log.Insert(3, set("c"), nil)
		Expect(err).ToNot(HaveOccurred())

		merged, err := r.fold(s.log.Tail(), r.local.head(), target, r.key, s.key)
		Expect(err).ToNot(HaveOccurred())
		Expect(calls).To(Equal(2))
		v, _ := merged.(*memrev.Revision).Get(revision.Table("t"), 1, revision.Column("c"))
		Expect(v).To(Equal("x"))
	})

	It("Should merge a marker that directly follows a placeholder", func() {
		r, err := New(Config{ID: "n1", Network: discardNetwork{}})
		Expect(err).ToNot(HaveOccurred())
		s := r.state(node.Key{ID: "n2", Instance: node.NewInstance()})
		_, _, err = s.log.Insert(1, set("a"), nil)
		Expect(err).ToNot(HaveOccurred())
		_, _, err = s.log.Insert(2, set("b"), r.local.head())
		Expect(err).ToNot(HaveOccurred())
		target, _, err := s.log.Insert(3, set("b"), nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(s.log.Prune(2)).To(Equal(2))
		tail := s.log.Tail()
		Expect(tail.IsPlaceholder()).To(BeTrue())

		merged, err := r.fold(tail, r.local.head(), target, r.key, s.key)
		Expect(err).ToNot(HaveOccurred())
		v, _ := merged.(*memrev.Revision).Get(revision.Table("t"), 1, revision.Column("c"))
		Expect(v).To(Equal("b"))
	})
})

var _ = Describe("atomically", func() {
	It("Should revert the records of a failed merge", func() {
		r, err := New(Config{
			ID:      "n1",
			Network: discardNetwork{},
			Resolver: NodeConflictResolverFunc(func(
				node.ID, node.ID, revision.Table, revision.Column, []any, any, any, any,
			) (any, error) {
				return nil, errors.New("refuse")
			}),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Merge(memrev.Empty(), set("x"))).To(Succeed())
		seq, head := r.seq, r.local.head()

		peer := node.Key{ID: "n2", Instance: node.NewInstance()}
		r.UpdateView([]node.ID{"n2"})
		Expect(r.Accept("n2", message.Hello{Instance: peer.Instance})).To(Succeed())
		d, err := wire.EncodeDelta(memrev.Empty(), set("y"))
		Expect(err).ToNot(HaveOccurred())
		err = r.Accept("n2", message.Diff{Origin: peer, Start: 0, End: 1, Delta: d})
		Expect(err).To(MatchError(ContainSubstring("refuse")))

		_, ok := r.states[peer].log.Find(1)
		Expect(ok).To(BeFalse())
		Expect(r.states[peer].log.Head().Seq).To(BeZero())
		Expect(r.seq).To(Equal(seq))
		Expect(r.local.head()).To(BeIdenticalTo(head))
		Expect(r.local.acknowledged[peer].Seq).To(BeZero())
		Expect(r.undo).To(BeEmpty())
	})
})
