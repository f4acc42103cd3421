// Package message defines the four messages replicas exchange and their byte
// encoding.
package message

import (
	"fmt"

	"github.com/arya-analytics/epidemic/internal/node"
	"github.com/arya-analytics/epidemic/internal/wire"
)

// Kind identifies the variant of a Message on the wire.
type Kind uint8

const (
	KindHello Kind = iota
	KindSync
	KindDiff
	KindAck
)

func (k Kind) String() string {
	switch k {
	case KindHello:
		return "hello"
	case KindSync:
		return "sync"
	case KindDiff:
		return "diff"
	case KindAck:
		return "ack"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Message is one of Hello, Sync, Diff or Ack.
type Message interface {
	fmt.Stringer
	Kind() Kind
	message()
}

// Hello opens the exchange with a directly connected peer and announces the
// sender's incarnation.
type Hello struct {
	Instance node.Instance
}

// Kind implements Message.
func (Hello) Kind() Kind { return KindHello }

func (Hello) message() {}

func (h Hello) String() string { return "hello " + h.Instance.String() }

// Sync tells a peer that the sender has nothing further to send it.
type Sync struct {
	Instance node.Instance
}

// Kind implements Message.
func (Sync) Kind() Kind { return KindSync }

func (Sync) message() {}

func (s Sync) String() string { return "sync " + s.Instance.String() }

// Diff carries the change to Origin's log between sequence numbers Start and
// End.
type Diff struct {
	Origin node.Key
	Start  uint64
	End    uint64
	Delta  wire.Delta
}

// Kind implements Message.
func (Diff) Kind() Kind { return KindDiff }

func (Diff) message() {}

func (d Diff) String() string {
	return fmt.Sprintf("diff %s %d..%d", d.Origin.Short(), d.Start, d.End)
}

// Ack states that Acknowledger has, at its own sequence number AckSeq,
// incorporated Origin's log up to Seq.
type Ack struct {
	Acknowledger node.Key
	AckSeq       uint64
	Origin       node.Key
	Seq          uint64
}

// Kind implements Message.
func (Ack) Kind() Kind { return KindAck }

func (Ack) message() {}

func (a Ack) String() string {
	return fmt.Sprintf("ack %s@%d of %s@%d", a.Acknowledger.Short(), a.AckSeq, a.Origin.Short(), a.Seq)
}
