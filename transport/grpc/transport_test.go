package grpc_test

import (
	"context"
	"time"

	"github.com/arya-analytics/epidemic"
	"github.com/arya-analytics/epidemic/internal/message"
	"github.com/arya-analytics/epidemic/internal/node"
	"github.com/arya-analytics/epidemic/revision"
	"github.com/arya-analytics/epidemic/revision/memrev"
	grpct "github.com/arya-analytics/epidemic/transport/grpc"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type delivery struct {
	source node.ID
	msg    message.Message
}

func open(id node.ID, handle epidemic.Handler) *grpct.Transport {
	t, err := grpct.New(grpct.Config{RetryInterval: 10 * time.Millisecond})
	Expect(err).ToNot(HaveOccurred())
	Expect(t.Configure(context.Background(), id, handle)).To(Succeed())
	return t
}

func collect(ch chan delivery) epidemic.Handler {
	return func(source node.ID, msg message.Message) error {
		ch <- delivery{source: source, msg: msg}
		return nil
	}
}

var _ = Describe("Transport", func() {
	var (
		received chan delivery
		t1, t2   *grpct.Transport
	)
	BeforeEach(func() {
		received = make(chan delivery, 100)
		t1 = open("n1", collect(make(chan delivery, 100)))
		t2 = open("n2", collect(received))
		t1.SetAddress("n2", t2.Addr().String())
	})
	AfterEach(func() {
		Expect(t1.Close()).To(Succeed())
		Expect(t2.Close()).To(Succeed())
	})

	It("Should deliver a message with its source", func() {
		inst := node.NewInstance()
		t1.Send("n1", "n2", message.Hello{Instance: inst})
		var d delivery
		Eventually(received).Should(Receive(&d))
		Expect(d.source).To(Equal(node.ID("n1")))
		Expect(d.msg).To(Equal(message.Hello{Instance: inst}))
	})

	It("Should deliver messages to a peer in the order they were sent", func() {
		k := node.Key{ID: "n1", Instance: node.NewInstance()}
		for i := uint64(1); i <= 50; i++ {
			t1.Send("n1", "n2", message.Ack{Acknowledger: k, AckSeq: i + 1, Origin: k, Seq: i})
		}
		for i := uint64(1); i <= 50; i++ {
			var d delivery
			Eventually(received).Should(Receive(&d))
			Expect(d.msg.(message.Ack).Seq).To(Equal(i))
		}
	})

	It("Should hold messages until the peer's address is known", func() {
		received3 := make(chan delivery, 10)
		t3 := open("n3", collect(received3))
		defer func() { Expect(t3.Close()).To(Succeed()) }()
		t1.Send("n1", "n3", message.Sync{Instance: node.NewInstance()})
		Consistently(received3, 50*time.Millisecond).ShouldNot(Receive())
		t1.SetAddress("n3", t3.Addr().String())
		Eventually(received3).Should(Receive())
	})

	It("Should reject a malformed envelope", func() {
		_, err := t2.Deliver(context.Background(), wrapperspb.Bytes([]byte{0xff}))
		Expect(status.Code(err)).To(Equal(codes.InvalidArgument))
	})

	It("Should swallow protocol errors returned by the handler", func() {
		t3, err := grpct.New(grpct.Config{})
		Expect(err).ToNot(HaveOccurred())
		Expect(t3.Configure(context.Background(), "n3", func(node.ID, message.Message) error {
			return epidemic.ErrMissedDiff
		})).To(Succeed())
		defer func() { Expect(t3.Close()).To(Succeed()) }()
		t1.SetAddress("n3", t3.Addr().String())
		t1.Send("n1", "n3", message.Hello{Instance: node.NewInstance()})
		t1.Send("n1", "n2", message.Hello{Instance: node.NewInstance()})
		Eventually(received).Should(Receive())
	})

	It("Should require an address", func() {
		Expect(grpct.Config{}.Validate()).To(MatchError(ContainSubstring("address required")))
	})
})

var _ = Describe("Replication over gRPC", func() {
	It("Should converge two nodes", func() {
		t1, err := grpct.New(grpct.Config{RetryInterval: 10 * time.Millisecond})
		Expect(err).ToNot(HaveOccurred())
		t2, err := grpct.New(grpct.Config{RetryInterval: 10 * time.Millisecond})
		Expect(err).ToNot(HaveOccurred())
		ctx := context.Background()
		n1, err := epidemic.Open(ctx, "n1", epidemic.MemBacked(), epidemic.WithTransport(t1))
		Expect(err).ToNot(HaveOccurred())
		n2, err := epidemic.Open(ctx, "n2", epidemic.MemBacked(), epidemic.WithTransport(t2))
		Expect(err).ToNot(HaveOccurred())
		defer func() {
			Expect(n1.Close()).To(Succeed())
			Expect(n2.Close()).To(Succeed())
		}()
		t1.SetAddress("n2", t2.Addr().String())
		t2.SetAddress("n1", t1.Addr().String())

		head := n1.Head()
		fork, err := memrev.Set(head, "alice", revision.Table("users"), 1, revision.Column("name"))
		Expect(err).ToNot(HaveOccurred())
		Expect(n1.Merge(head, fork)).To(Succeed())

		synced := make(chan struct{})
		n2.RegisterSyncListener("n1", func() { close(synced) })
		n1.UpdateView([]node.ID{"n2"})
		n2.UpdateView([]node.ID{"n1"})
		Eventually(synced, 5*time.Second).Should(BeClosed())
		Eventually(func() any {
			v, _ := n2.Head().(*memrev.Revision).Get(revision.Table("users"), 1, revision.Column("name"))
			return v
		}, 5*time.Second).Should(Equal("alice"))
	})
})
