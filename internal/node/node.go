package node

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// ID is the stable address of a network endpoint. It survives restarts.
type ID string

func (id ID) String() string { return string(id) }

// Instance distinguishes incarnations of the same ID. A node picks a fresh
// Instance every time it starts.
type Instance = uuid.UUID

// DefaultInstance stands in for the real Instance of a directly connected
// peer until that peer's Hello arrives.
var DefaultInstance = uuid.MustParse("1c8f9a38-aad4-0d8c-8d62-b52500a8dfa1")

// NewInstance returns a random Instance.
func NewInstance() Instance { return uuid.New() }

// Key identifies one incarnation of a node, and therefore one causal log.
type Key struct {
	ID       ID
	Instance Instance
}

// Placeholder returns the key used for id before its real Instance is known.
func Placeholder(id ID) Key { return Key{ID: id, Instance: DefaultInstance} }

// IsPlaceholder returns true if the key was built with DefaultInstance.
func (k Key) IsPlaceholder() bool { return k.Instance == DefaultInstance }

// Compare orders keys by ID, then by Instance.
func (k Key) Compare(o Key) int {
	if c := strings.Compare(string(k.ID), string(o.ID)); c != 0 {
		return c
	}
	for i := range k.Instance {
		if k.Instance[i] != o.Instance[i] {
			if k.Instance[i] < o.Instance[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// String renders the key in its wire form, "instance:id".
func (k Key) String() string { return k.Instance.String() + ":" + string(k.ID) }

// Short is a compact form for logs.
func (k Key) Short() string { return string(k.ID) + "/" + k.Instance.String()[:8] }

// ParseKey parses the "instance:id" form produced by Key.String. The id may
// itself contain colons.
func ParseKey(s string) (Key, error) {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return Key{}, errors.Newf("malformed node key %q", s)
	}
	inst, err := uuid.Parse(s[:i])
	if err != nil {
		return Key{}, errors.Wrapf(err, "malformed node key %q", s)
	}
	return Key{ID: ID(s[i+1:]), Instance: inst}, nil
}
