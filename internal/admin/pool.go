package admin

import (
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PoolConfig configures a SocketPool's per-destination limits and timeouts.
type PoolConfig struct {
	MaxPerDestination int
	ConnectTimeout    time.Duration
	CheckoutTimeout   time.Duration
	Logger            *zap.Logger
}

func (c *PoolConfig) setDefaults() {
	if c.MaxPerDestination <= 0 {
		c.MaxPerDestination = 8
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.CheckoutTimeout <= 0 {
		c.CheckoutTimeout = 3 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// destPool is a free-list of live connections to one admin-port address,
// grounded on workerpool.WorkerPool's buffered-channel free-list idiom
// (here a channel of connections rather than tasks).
type destPool struct {
	addr  string
	free  chan net.Conn
	limit int

	mu       sync.Mutex
	outstanding int
}

// SocketPool is a shared, per-destination pool of admin-protocol
// connections, grounded on storage-node/internal/client/coordinator_client.go's
// per-destination client caching and workerpool.WorkerPool's channel-based
// resource accounting. Its checkout-blocks-then-PoolTimeout contract is
// spec.md §5's; the real SocketPool a production deployment would use is
// named out-of-scope in spec.md §1, so only this interface is implemented.
type SocketPool struct {
	cfg PoolConfig

	mu    sync.Mutex
	dests map[string]*destPool
}

// NewSocketPool builds an empty pool; destinations are created lazily on
// first Checkout.
func NewSocketPool(cfg PoolConfig) *SocketPool {
	cfg.setDefaults()
	return &SocketPool{cfg: cfg, dests: make(map[string]*destPool)}
}

func (p *SocketPool) destFor(addr string) *destPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.dests[addr]
	if !ok {
		d = &destPool{addr: addr, free: make(chan net.Conn, p.cfg.MaxPerDestination), limit: p.cfg.MaxPerDestination}
		p.dests[addr] = d
	}
	return d
}

// Checkout returns a live connection to addr, reusing one from the free
// list if available, dialing a fresh one if the destination hasn't reached
// its per-destination limit, and otherwise blocking up to
// cfg.CheckoutTimeout before failing with ErrPoolTimeout.
func (p *SocketPool) Checkout(addr string) (net.Conn, error) {
	d := p.destFor(addr)

	select {
	case conn := <-d.free:
		return conn, nil
	default:
	}

	d.mu.Lock()
	if d.outstanding < d.limit {
		d.outstanding++
		d.mu.Unlock()
		conn, err := net.DialTimeout("tcp", addr, p.cfg.ConnectTimeout)
		if err != nil {
			d.mu.Lock()
			d.outstanding--
			d.mu.Unlock()
			return nil, fmt.Errorf("admin: dial %s: %w", addr, err)
		}
		return conn, nil
	}
	d.mu.Unlock()

	timer := time.NewTimer(p.cfg.CheckoutTimeout)
	defer timer.Stop()
	select {
	case conn := <-d.free:
		return conn, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: destination %s", ErrPoolTimeout, addr)
	}
}

// Checkin returns a healthy connection to the pool for reuse.
func (p *SocketPool) Checkin(addr string, conn net.Conn) {
	d := p.destFor(addr)
	select {
	case d.free <- conn:
	default:
		p.cfg.Logger.Debug("socket pool free list full, closing connection", zap.String("addr", addr))
		conn.Close()
		d.mu.Lock()
		d.outstanding--
		d.mu.Unlock()
	}
}

// Discard closes conn instead of returning it to the pool, used after any
// I/O failure so a broken connection is never handed to the next caller.
func (p *SocketPool) Discard(addr string, conn net.Conn) {
	conn.Close()
	d := p.destFor(addr)
	d.mu.Lock()
	if d.outstanding > 0 {
		d.outstanding--
	}
	d.mu.Unlock()
}

// Close drains and closes every pooled connection across every destination.
func (p *SocketPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range p.dests {
		close(d.free)
		for conn := range d.free {
			conn.Close()
		}
	}
	return nil
}
