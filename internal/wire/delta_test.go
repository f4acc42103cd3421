package wire_test

import (
	"github.com/arya-analytics/epidemic/internal/wire"
	"github.com/arya-analytics/epidemic/revision"
	"github.com/arya-analytics/epidemic/revision/memrev"
	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const users = revision.Table("users")

func set(base revision.Revision, pk any, col string, v any) revision.Revision {
	r, err := memrev.Set(base, v, users, pk, revision.Column(col))
	Expect(err).ToNot(HaveOccurred())
	return r
}

var _ = Describe("Delta", func() {
	var base, fork revision.Revision
	BeforeEach(func() {
		base = set(memrev.Empty(), 1, "name", "one")
		base = set(base, 2, "name", "two")
		base = set(base, 3, "name", "three")
		fork = set(base, 1, "name", "uno")
		fork = set(fork, 4, "name", "four")
		var err error
		fork, err = memrev.Remove(fork, users, 2)
		Expect(err).ToNot(HaveOccurred())
	})

	Describe("EncodeDelta", func() {
		It("Should encode an unchanged revision as a single end opcode", func() {
			d, err := wire.EncodeDelta(base, base)
			Expect(err).ToNot(HaveOccurred())
			Expect(d.Bytes()).To(Equal([]byte{byte(wire.End)}))
		})
		It("Should apply in-process without replaying the body", func() {
			d, err := wire.EncodeDelta(base, fork)
			Expect(err).ToNot(HaveOccurred())
			r, err := d.Apply(base)
			Expect(err).ToNot(HaveOccurred())
			Expect(r).To(BeIdenticalTo(fork))
		})
	})

	Describe("ParseDelta", func() {
		It("Should reproduce the fork when applied to the base", func() {
			d, err := wire.EncodeDelta(base, fork)
			Expect(err).ToNot(HaveOccurred())
			parsed, err := wire.ParseDelta(append([]byte(nil), d.Bytes()...))
			Expect(err).ToNot(HaveOccurred())
			r, err := parsed.Apply(base)
			Expect(err).ToNot(HaveOccurred())
			Expect(revision.Equal(r, fork)).To(BeTrue())
			v, ok := r.(*memrev.Revision).Get(users, 1, revision.Column("name"))
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("uno"))
			_, ok = r.(*memrev.Revision).Get(users, 2, revision.Column("name"))
			Expect(ok).To(BeFalse())
		})
		It("Should remove a whole table", func() {
			d, err := wire.EncodeDelta(base, memrev.Empty())
			Expect(err).ToNot(HaveOccurred())
			parsed, err := wire.ParseDelta(d.Bytes())
			Expect(err).ToNot(HaveOccurred())
			r, err := parsed.Apply(base)
			Expect(err).ToNot(HaveOccurred())
			Expect(r.(*memrev.Revision).Len()).To(BeZero())
		})
		It("Should reject an undefined opcode as a protocol violation", func() {
			_, err := wire.ParseDelta([]byte{9})
			Expect(errors.Is(err, wire.ErrUnexpectedOpcode)).To(BeTrue())
			Expect(errors.Is(err, wire.ErrProtocol)).To(BeTrue())
		})
		It("Should reject a delta without an end opcode", func() {
			_, err := wire.ParseDelta([]byte{byte(wire.Descend)})
			Expect(err).To(MatchError(wire.ErrMalformed))
		})
		It("Should insert an empty subtree for a key directly before the end", func() {
			leaf, err := memrev.Set(memrev.Empty(), "x", "flag")
			Expect(err).ToNot(HaveOccurred())
			b, err := wire.AppendToken([]byte{byte(wire.Key)}, "flag")
			Expect(err).ToNot(HaveOccurred())
			parsed, err := wire.ParseDelta(append(b, byte(wire.End)))
			Expect(err).ToNot(HaveOccurred())
			r, err := parsed.Apply(leaf)
			Expect(err).ToNot(HaveOccurred())
			_, ok := r.(*memrev.Revision).Get("flag")
			Expect(ok).To(BeFalse())
			Expect(r.(*memrev.Revision).Len()).To(BeZero())
		})
		It("Should reject trailing bytes", func() {
			_, err := wire.ParseDelta([]byte{byte(wire.End), 0})
			Expect(err).To(MatchError(wire.ErrMalformed))
		})
		It("Should reject an ascend above the root", func() {
			_, err := wire.ParseDelta([]byte{byte(wire.Ascend), byte(wire.End)})
			Expect(err).To(MatchError(wire.ErrMalformed))
		})
	})

	Describe("String", func() {
		It("Should render inserts and deletes", func() {
			d, err := wire.EncodeDelta(base, fork)
			Expect(err).ToNot(HaveOccurred())
			s := d.String()
			Expect(s).To(ContainSubstring("insert[users 1 name uno]"))
			Expect(s).To(ContainSubstring("insert[users 4 name four]"))
			Expect(s).To(ContainSubstring("delete[users 2]"))
			Expect(s).ToNot(ContainSubstring("three"))
		})
	})
})
