package grpc

import (
	"sync"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// pool keeps one client connection per address.
type pool struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

func newPool() *pool { return &pool{conns: make(map[string]*grpc.ClientConn)} }

func (p *pool) acquire(addr string) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.conns[addr]; ok {
		return c, nil
	}
	c, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	p.conns[addr] = c
	return c, nil
}

func (p *pool) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	for addr, c := range p.conns {
		err = errors.CombineErrors(err, c.Close())
		delete(p.conns, addr)
	}
	return err
}
