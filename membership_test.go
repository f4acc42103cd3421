package epidemic_test

import (
	"github.com/arya-analytics/epidemic"
	"github.com/arya-analytics/epidemic/mock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Membership", func() {

	Describe("Joining", func() {
		It("Should bring a late joiner up to date", func() {
			builder := mock.NewMemBuilder()
			defer func() { Expect(builder.Close()).To(Succeed()) }()

			By("Opening two connected nodes")
			n1, err := builder.New("n1")
			Expect(err).ToNot(HaveOccurred())
			_, err = builder.New("n2")
			Expect(err).ToNot(HaveOccurred())
			builder.Connect("n1", "n2")
			write(n1, 1, "alice")
			Expect(builder.Net.Flush()).To(Succeed())

			By("Joining a third node through the second")
			n3, err := builder.New("n3")
			Expect(err).ToNot(HaveOccurred())
			synced := false
			n3.RegisterSyncListener("n2", func() { synced = true })
			builder.Connect("n2", "n3")
			Expect(builder.Net.Flush()).To(Succeed())

			By("Replicating the existing data to the new node")
			Expect(synced).To(BeTrue())
			Expect(read(n3, 1)).To(Equal("alice"))
		})
	})

	Describe("Leaving", func() {
		It("Should hold back changes until the node reconnects", func() {
			builder := mock.NewMemBuilder()
			defer func() { Expect(builder.Close()).To(Succeed()) }()
			n1, err := builder.New("n1")
			Expect(err).ToNot(HaveOccurred())
			n2, err := builder.New("n2")
			Expect(err).ToNot(HaveOccurred())
			builder.Connect("n1", "n2")
			Expect(builder.Net.Flush()).To(Succeed())

			By("Disconnecting the nodes")
			n1.UpdateView(nil)
			n2.UpdateView(nil)
			write(n1, 1, "alice")
			Expect(builder.Net.Flush()).To(Succeed())
			Expect(read(n2, 1)).To(BeNil())

			By("Reconnecting the nodes")
			builder.Connect("n1", "n2")
			Expect(builder.Net.Flush()).To(Succeed())
			Expect(read(n2, 1)).To(Equal("alice"))
		})
	})

	Describe("Dying and Rejoining", func() {
		Context("Persisted storage", func() {
			It("Should restore the head under a new instance", func() {
				builder := mock.NewPebbleBuilder()
				defer func() { Expect(builder.Close()).To(Succeed()) }()

				By("Writing to a node and closing it")
				n1, err := builder.New("n1")
				Expect(err).ToNot(HaveOccurred())
				write(n1, 1, "alice")
				first := n1.Key()

				By("Opening the node again")
				n1, err = builder.New("n1")
				Expect(err).ToNot(HaveOccurred())
				Expect(n1.Key().ID).To(Equal(first.ID))
				Expect(n1.Key().Instance).ToNot(Equal(first.Instance))
				Expect(read(n1, 1)).To(Equal("alice"))

				By("Spreading the restored data to a new peer")
				n2, err := builder.New("n2")
				Expect(err).ToNot(HaveOccurred())
				builder.Connect("n1", "n2")
				Expect(builder.Net.Flush()).To(Succeed())
				Expect(read(n2, 1)).To(Equal("alice"))
			})
		})

		Context("Memory storage", func() {
			It("Should receive its lost data from its peers", func() {
				builder := mock.NewMemBuilder()
				defer func() { Expect(builder.Close()).To(Succeed()) }()
				n1, err := builder.New("n1")
				Expect(err).ToNot(HaveOccurred())
				_, err = builder.New("n2")
				Expect(err).ToNot(HaveOccurred())
				builder.Connect("n1", "n2")
				write(n1, 1, "alice")
				Expect(builder.Net.Flush()).To(Succeed())

				By("Restarting the second node with no state")
				builder.Nodes["n1"].UpdateView(nil)
				n2, err := builder.New("n2")
				Expect(err).ToNot(HaveOccurred())
				Expect(read(n2, 1)).To(BeNil())

				By("Reconnecting it")
				builder.Connect("n1", "n2")
				Expect(builder.Net.Flush()).To(Succeed())
				Expect(read(n2, 1)).To(Equal("alice"))
				Expect(n1.Connected()).To(Equal([]epidemic.NodeKey{n2.Key()}))
			})
		})
	})
})
