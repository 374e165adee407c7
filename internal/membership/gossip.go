// Package membership tracks node liveness via gossip (C11), flipping
// cluster.Node.Status between AVAILABLE and UNAVAILABLE as memberlist
// reports joins and leaves. Grounded on
// storage-node/internal/service/gossip_service.go's
// memberlist.Delegate/EventDelegate wiring, repurposed from health-metric
// broadcast to node-availability tracking. The routing strategy and the
// admin client do not read Node.Status.
package membership

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/memberlist"
	"go.uber.org/zap"

	"github.com/pairdb/ring/internal/cluster"
)

// Config configures the local gossip agent.
type Config struct {
	NodeName      string
	BindPort      int
	SeedNodes     []string
	GossipInterval time.Duration
	ProbeTimeout  time.Duration
	ProbeInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.GossipInterval <= 0 {
		c.GossipInterval = 200 * time.Millisecond
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 500 * time.Millisecond
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = time.Second
	}
}

// Tracker maintains a live view of node availability, keyed by memberlist
// node name (which this package expects to be the string form of the
// cluster node ID).
type Tracker struct {
	cfg Config

	mu        sync.RWMutex
	available map[string]bool

	ml     *memberlist.Memberlist
	logger *zap.Logger
}

// NewTracker creates the memberlist agent and joins cfg.SeedNodes. Every
// node not yet heard from is assumed unavailable until a join event (or
// the node's own bootstrap) marks it available.
func NewTracker(cfg Config, logger *zap.Logger) (*Tracker, error) {
	cfg.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Tracker{cfg: cfg, available: make(map[string]bool), logger: logger}

	mlConfig := memberlist.DefaultLocalConfig()
	mlConfig.Name = cfg.NodeName
	mlConfig.BindPort = cfg.BindPort
	mlConfig.GossipInterval = cfg.GossipInterval
	mlConfig.ProbeTimeout = cfg.ProbeTimeout
	mlConfig.ProbeInterval = cfg.ProbeInterval
	mlConfig.Events = &eventDelegate{tracker: t}

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("membership: create memberlist: %w", err)
	}
	t.ml = ml
	t.setAvailable(cfg.NodeName, true)

	if len(cfg.SeedNodes) > 0 {
		if _, err := ml.Join(cfg.SeedNodes); err != nil {
			logger.Warn("membership: failed to join some seed nodes", zap.Error(err))
		}
	}
	return t, nil
}

func (t *Tracker) setAvailable(name string, up bool) {
	t.mu.Lock()
	t.available[name] = up
	t.mu.Unlock()
}

// IsAvailable reports the last-known liveness of a node by memberlist name.
func (t *Tracker) IsAvailable(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.available[name]
}

// ApplyTo returns a copy of c with every node's Status set from the
// tracker's current view. cmd/node applies it before building each store's
// routing strategy; ConsistentStrategy ignores Status, so routing does not
// change with it.
func (t *Tracker) ApplyTo(c cluster.Cluster) cluster.Cluster {
	t.mu.RLock()
	defer t.mu.RUnlock()

	nodes := make([]cluster.Node, len(c.Nodes))
	for i, n := range c.Nodes {
		nodes[i] = n.Clone()
		name := fmt.Sprintf("%d", n.ID)
		if t.available[name] {
			nodes[i].Status = cluster.Available
		} else {
			nodes[i].Status = cluster.Unavailable
		}
	}
	return cluster.Cluster{Name: c.Name, Nodes: nodes}
}

// Shutdown leaves the gossip ring.
func (t *Tracker) Shutdown() error {
	return t.ml.Shutdown()
}

type eventDelegate struct {
	tracker *Tracker
}

func (d *eventDelegate) NotifyJoin(n *memberlist.Node) {
	d.tracker.setAvailable(n.Name, true)
	d.tracker.logger.Info("membership: node joined", zap.String("node", n.Name), zap.String("addr", n.Addr.String()))
}

func (d *eventDelegate) NotifyLeave(n *memberlist.Node) {
	d.tracker.setAvailable(n.Name, false)
	d.tracker.logger.Info("membership: node left", zap.String("node", n.Name))
}

func (d *eventDelegate) NotifyUpdate(n *memberlist.Node) {
	d.tracker.logger.Debug("membership: node updated", zap.String("node", n.Name))
}
