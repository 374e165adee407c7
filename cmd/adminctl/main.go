// Command adminctl is an operator CLI over the admin protocol (C6/C7):
// flip a node's server.state and run the two rebalance choreographies. It
// is thin scaffolding around
// internal/admin.Client and internal/rebalance.Choreographer, not a
// replacement for the XML-mapped CLI test driver spec.md §1 puts out of
// scope.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/pairdb/ring/internal/admin"
	"github.com/pairdb/ring/internal/cluster"
	"github.com/pairdb/ring/internal/config"
	"github.com/pairdb/ring/internal/metadata"
	"github.com/pairdb/ring/internal/rebalance"
	"github.com/pairdb/ring/internal/versioning"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	switch cmd {
	case "steal-partitions":
		runSteal(args, logger)
	case "return-partitions":
		runReturn(args, logger)
	case "set-state":
		runSetState(args, logger)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: adminctl <steal-partitions|return-partitions|set-state> [flags]")
}

func commonFlags(fs *flag.FlagSet) (nodeID *uint, host *string, adminPort *uint, storeName *string, clusterXML *string, configPath *string) {
	nodeID = fs.Uint("node-id", 0, "current node id")
	host = fs.String("admin-host", "127.0.0.1", "this node's admin host, used to build its own admin address")
	adminPort = fs.Uint("admin-port", 6667, "this node's admin port")
	storeName = fs.String("store", "", "store name to rebalance")
	clusterXML = fs.String("cluster-xml", "", "path to the current cluster.xml")
	configPath = fs.String("config", "", "path to config.yaml; supplies redis.* for the transfer dedupe cache (C13) when set")
	return
}

// redisConfig loads redis.* out of configPath, the same config.yaml a live
// node runs with, so a retried steal/return against the same cluster dedupes
// against the transfer cache the original run recorded into. A blank
// configPath (or a blank redis.addr inside it) disables the cache, same as
// cmd/node.
func redisConfig(configPath string, logger *zap.Logger) config.RedisConfig {
	if configPath == "" {
		return config.RedisConfig{}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	return cfg.Redis
}

// buildChoreographer seeds a throwaway metadata store with the operator's
// on-disk cluster.xml (the choreography reads currentCluster from its own
// metadata store, mirroring how it runs embedded in a live node process)
// and wires an admin client against it. redisCfg.Addr being set wires a
// *admin.TransferCache (C13) into the choreographer; left blank, the
// choreographer always re-streams, same as a node with no redis configured.
func buildChoreographer(nodeID uint16, host string, adminPort uint16, clusterXMLPath string, redisCfg config.RedisConfig, logger *zap.Logger) *rebalance.Choreographer {
	inner := metadata.NewMemoryInnerStore()
	metadataStore := metadata.New(inner)

	doc, err := os.ReadFile(clusterXMLPath)
	if err != nil {
		logger.Fatal("failed to read cluster.xml", zap.Error(err))
	}
	if err := metadataStore.Put(metadata.ClusterKey, versioning.NewVersioned(string(doc), versioning.New().Increment(nodeID))); err != nil {
		logger.Fatal("failed to seed cluster.xml", zap.Error(err))
	}

	currentNode := cluster.Node{ID: nodeID, Host: host, AdminPort: adminPort}
	pool := admin.NewSocketPool(admin.PoolConfig{Logger: logger})
	client := admin.NewClient(currentNode, metadataStore, pool, logger)

	var transfers *admin.TransferCache
	if redisCfg.Addr != "" {
		transfers, err = admin.NewTransferCache(redisCfg.Addr, redisCfg.Password, redisCfg.DB, redisCfg.TTL)
		if err != nil {
			logger.Fatal("failed to connect to transfer cache", zap.Error(err))
		}
	}
	return rebalance.New(currentNode, metadataStore, client, transfers, logger)
}

func runSteal(args []string, logger *zap.Logger) {
	fs := flag.NewFlagSet("steal-partitions", flag.ExitOnError)
	nodeID, host, adminPort, storeName, clusterXML, configPath := commonFlags(fs)
	fs.Parse(args)
	if *storeName == "" || *clusterXML == "" {
		fmt.Fprintln(os.Stderr, "-store and -cluster-xml are required")
		os.Exit(2)
	}

	choreographer := buildChoreographer(uint16(*nodeID), *host, uint16(*adminPort), *clusterXML, redisConfig(*configPath, logger), logger)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := choreographer.StealPartitionsFromCluster(ctx, *storeName); err != nil {
		logger.Fatal("steal-partitions failed", zap.Error(err))
	}
	logger.Info("steal-partitions completed")
}

func runReturn(args []string, logger *zap.Logger) {
	fs := flag.NewFlagSet("return-partitions", flag.ExitOnError)
	nodeID, host, adminPort, storeName, clusterXML, configPath := commonFlags(fs)
	fs.Parse(args)
	if *storeName == "" || *clusterXML == "" {
		fmt.Fprintln(os.Stderr, "-store and -cluster-xml are required")
		os.Exit(2)
	}

	choreographer := buildChoreographer(uint16(*nodeID), *host, uint16(*adminPort), *clusterXML, redisConfig(*configPath, logger), logger)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := choreographer.ReturnPartitionsToCluster(ctx, *storeName); err != nil {
		logger.Fatal("return-partitions failed", zap.Error(err))
	}
	logger.Info("return-partitions completed")
}

func runSetState(args []string, logger *zap.Logger) {
	fs := flag.NewFlagSet("set-state", flag.ExitOnError)
	nodeID := fs.Uint("node-id", 0, "target node id")
	host := fs.String("host", "127.0.0.1", "target node's admin host")
	adminPort := fs.Uint("admin-port", 6667, "target node's admin port")
	state := fs.String("state", "", "normal or rebalancing")
	fs.Parse(args)

	inner := metadata.NewMemoryInnerStore()
	metadataStore := metadata.New(inner)
	currentNode := cluster.Node{ID: uint16(*nodeID), Host: *host, AdminPort: uint16(*adminPort)}
	// The client resolves the target's address through cluster.xml, so seed
	// a one-node cluster holding just the target.
	target := cluster.Cluster{Nodes: []cluster.Node{currentNode}}
	if err := metadataStore.Put(metadata.ClusterKey, versioning.NewVersioned(cluster.ClusterMapper{}.WriteCluster(target), versioning.New().Increment(currentNode.ID))); err != nil {
		logger.Fatal("failed to seed cluster.xml", zap.Error(err))
	}
	pool := admin.NewSocketPool(admin.PoolConfig{Logger: logger})
	client := admin.NewClient(currentNode, metadataStore, pool, logger)

	var err error
	switch *state {
	case "normal":
		err = client.SetNormalStateAndRestart(uint16(*nodeID))
	case "rebalancing":
		err = client.SetRebalancingStateAndRestart(uint16(*nodeID))
	default:
		fmt.Fprintln(os.Stderr, "-state must be normal or rebalancing")
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("set-state failed", zap.Error(err))
	}
	logger.Info("set-state completed", zap.String("state", *state))
}
