package store_test

import (
	"github.com/arya-analytics/epidemic/internal/store"
	"github.com/arya-analytics/epidemic/revision"
	"github.com/arya-analytics/epidemic/revision/memrev"
	"github.com/cockroachdb/pebble/vfs"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Store", func() {
	var (
		fs vfs.FS
		s  *store.Store
	)
	BeforeEach(func() {
		fs = vfs.NewMem()
		var err error
		s, err = store.Open(store.Config{FS: fs})
		Expect(err).ToNot(HaveOccurred())
	})
	AfterEach(func() {
		if s != nil {
			Expect(s.Close()).To(Succeed())
		}
	})

	It("Should return the empty revision before anything is saved", func() {
		rev, ok, err := s.Load()
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(rev).To(BeIdenticalTo(memrev.Empty()))
	})

	It("Should survive a reopen", func() {
		head, err := memrev.Set(memrev.Empty(), "one", revision.Table("numbers"), 1, revision.Column("name"))
		Expect(err).ToNot(HaveOccurred())
		head, err = memrev.Set(head, []byte{0x1, 0x2}, revision.Table("numbers"), 2, revision.Column("blob"))
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Save(head)).To(Succeed())
		Expect(s.Close()).To(Succeed())

		s, err = store.Open(store.Config{FS: fs})
		Expect(err).ToNot(HaveOccurred())
		rev, ok, err := s.Load()
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(revision.Equal(rev, head)).To(BeTrue())
	})

	It("Should keep only the latest snapshot", func() {
		first, err := memrev.Set(memrev.Empty(), "one", revision.Table("numbers"), 1, revision.Column("name"))
		Expect(err).ToNot(HaveOccurred())
		second, err := memrev.Remove(first, revision.Table("numbers"), 1)
		Expect(err).ToNot(HaveOccurred())
		second, err = memrev.Set(second, "two", revision.Table("numbers"), 2, revision.Column("name"))
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Save(first)).To(Succeed())
		Expect(s.Save(second)).To(Succeed())
		rev, _, err := s.Load()
		Expect(err).ToNot(HaveOccurred())
		Expect(revision.Equal(rev, second)).To(BeTrue())
	})

	It("Should require a key", func() {
		Expect(store.Config{FS: fs, Empty: memrev.Empty()}.Validate()).To(MatchError(ContainSubstring("key required")))
	})
})
