// Command node runs one storage node: the local store engines, the
// metadata store, the slop-detecting routing layer, the admin protocol
// server (on both the admin and socket ports), membership gossip, and the
// Prometheus metrics endpoint. Wiring order follows
// coordinator/cmd/coordinator/main.go.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pairdb/ring/internal/admin"
	"github.com/pairdb/ring/internal/config"
	"github.com/pairdb/ring/internal/membership"
	"github.com/pairdb/ring/internal/metadata"
	"github.com/pairdb/ring/internal/metrics"
	"github.com/pairdb/ring/internal/routing"
	"github.com/pairdb/ring/internal/slop"
	"github.com/pairdb/ring/internal/store"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("starting ring storage node")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	logger.Info("configuration loaded",
		zap.Uint16("node_id", cfg.Server.NodeID),
		zap.Int("socket_port", cfg.Server.SocketPort),
		zap.Int("admin_port", cfg.Server.AdminPort))

	m := metrics.NewMetrics()

	var inner metadata.InnerStore
	switch cfg.Metadata.Backend {
	case "postgres":
		inner, err = metadata.NewPostgresInnerStore(context.Background(), cfg.Metadata.DSN)
	default:
		inner = metadata.NewMemoryInnerStore()
	}
	if err != nil {
		logger.Fatal("failed to initialize metadata inner store", zap.Error(err))
	}
	metadataStore := metadata.New(inner)
	logger.Info("metadata store initialized", zap.String("backend", cfg.Metadata.Backend))

	currentCluster, err := metadataStore.GetCluster()
	if err != nil {
		logger.Warn("no cluster.xml present yet; routing and slop detection are inert until the admin client seeds one", zap.Error(err))
	}
	currentNode, _ := currentCluster.NodeByID(cfg.Server.NodeID)
	currentNode.ID = cfg.Server.NodeID
	currentNode.Host = cfg.Server.Host
	currentNode.SocketPort = uint16(cfg.Server.SocketPort)
	currentNode.AdminPort = uint16(cfg.Server.AdminPort)

	var tracker *membership.Tracker
	if cfg.Membership.BindPort > 0 {
		tracker, err = membership.NewTracker(membership.Config{
			NodeName:       fmt.Sprintf("%d", cfg.Server.NodeID),
			BindPort:       cfg.Membership.BindPort,
			SeedNodes:      cfg.Membership.SeedNodes,
			GossipInterval: cfg.Membership.GossipInterval,
			ProbeTimeout:   cfg.Membership.ProbeTimeout,
			ProbeInterval:  cfg.Membership.ProbeInterval,
		}, logger)
		if err != nil {
			logger.Fatal("failed to start membership gossip", zap.Error(err))
		}
		logger.Info("membership gossip started", zap.Int("bind_port", cfg.Membership.BindPort))
	}

	storeDefs, err := metadataStore.GetStores()
	if err != nil {
		logger.Warn("no stores.xml present yet; no stores are routable", zap.Error(err))
	}

	routed := make(map[string]admin.RoutedStore, len(storeDefs))
	slopStore := store.NewMemoryStore(slop.StoreName)
	for _, def := range storeDefs {
		effectiveCluster := currentCluster
		if tracker != nil {
			effectiveCluster = tracker.ApplyTo(currentCluster)
		}
		strategy := routing.NewConsistentStrategy(effectiveCluster, int(def.ReplicationFactor))
		inner := store.NewMemoryStore(def.Name)
		detecting := slop.New(inner, slopStore, int(def.ReplicationFactor), currentNode, strategy, slop.EncodeSlop)
		routed[def.Name] = admin.RoutedStore{Inner: inner, Detecting: detecting, Strategy: strategy}
		logger.Info("store routed", zap.String("store", def.Name), zap.Uint8("replication_factor", def.ReplicationFactor))
	}

	onRestart := func() error {
		logger.Info("restart requested; nothing to reload beyond metadata, which is read fresh on every dispatch")
		return nil
	}

	adminServer := admin.NewServer(cfg.Server.NodeID, metadataStore, routed, slopStore, slop.EncodeSlop, onRestart, logger).WithRecorder(m)

	adminAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.AdminPort)
	adminListener, err := net.Listen("tcp", adminAddr)
	if err != nil {
		logger.Fatal("failed to listen on admin port", zap.Error(err))
	}
	go func() {
		logger.Info("admin server listening", zap.String("address", adminAddr))
		if err := adminServer.Serve(adminListener); err != nil {
			logger.Error("admin server stopped", zap.Error(err))
		}
	}()

	socketAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.SocketPort)
	socketListener, err := net.Listen("tcp", socketAddr)
	if err != nil {
		logger.Fatal("failed to listen on socket port", zap.Error(err))
	}
	go func() {
		logger.Info("client front end listening", zap.String("address", socketAddr))
		if err := adminServer.Serve(socketListener); err != nil {
			logger.Error("client front end stopped", zap.Error(err))
		}
	}()

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Path, metrics.Handler())
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			logger.Info("metrics endpoint listening", zap.String("address", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics endpoint failed", zap.Error(err))
			}
		}()
		go sampleSlopQueueDepth(slopStore, m, logger)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	adminServer.Close()
	if tracker != nil {
		if err := tracker.Shutdown(); err != nil {
			logger.Warn("membership shutdown failed", zap.Error(err))
		}
	}
	if err := metadataStore.Close(); err != nil {
		logger.Warn("metadata store close failed", zap.Error(err))
	}
	logger.Info("ring storage node stopped")
}

// sampleSlopQueueDepth periodically reports the slop store's entry count,
// a cheap poll since MemoryStore.Entries holds no lock across iteration.
func sampleSlopQueueDepth(slopStore store.Store, m *metrics.Metrics, logger *zap.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		it, err := slopStore.Entries()
		if err != nil {
			logger.Debug("slop queue depth sample failed", zap.Error(err))
			continue
		}
		depth := 0
		for {
			_, ok := it.Next()
			if !ok {
				break
			}
			depth++
		}
		it.Close()
		m.SetSlopQueueDepth(slop.StoreName, depth)
	}
}
