package cluster

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// xmlCluster/xmlServer/xmlStores/xmlStore mirror spec.md §6's schemas
// exactly; they exist only as the encoding/xml wire shape, never exposed
// outside this file.

type xmlCluster struct {
	XMLName xml.Name    `xml:"cluster"`
	Name    string      `xml:"name"`
	Servers []xmlServer `xml:"server"`
}

type xmlServer struct {
	ID         uint16 `xml:"id"`
	Host       string `xml:"host"`
	HTTPPort   uint16 `xml:"http-port"`
	SocketPort uint16 `xml:"socket-port"`
	AdminPort  uint16 `xml:"admin-port"`
	Partitions string `xml:"partitions"`
}

// ClusterMapper parses and serializes cluster.xml, grounded on spec.md §6
// and on the round-trip-stability requirement it states explicitly.
type ClusterMapper struct{}

// ReadCluster parses a cluster.xml document.
func (ClusterMapper) ReadCluster(doc string) (Cluster, error) {
	var xc xmlCluster
	if err := xml.Unmarshal([]byte(doc), &xc); err != nil {
		return Cluster{}, fmt.Errorf("cluster: parse: %w", err)
	}
	nodes := make([]Node, 0, len(xc.Servers))
	for _, s := range xc.Servers {
		parts, err := parseCSVInts(s.Partitions)
		if err != nil {
			return Cluster{}, fmt.Errorf("cluster: node %d: %w", s.ID, err)
		}
		nodes = append(nodes, Node{
			ID:           s.ID,
			Host:         s.Host,
			HTTPPort:     s.HTTPPort,
			SocketPort:   s.SocketPort,
			AdminPort:    s.AdminPort,
			PartitionIDs: parts,
			Status:       Available,
		})
	}
	return Cluster{Name: xc.Name, Nodes: nodes}, nil
}

// WriteCluster serializes c back to cluster.xml. Parsing the output of
// WriteCluster with ReadCluster yields a Cluster equal to the input,
// modulo node Status (which cluster.xml does not carry).
func (ClusterMapper) WriteCluster(c Cluster) string {
	var b strings.Builder
	b.WriteString("<cluster>\n")
	fmt.Fprintf(&b, "  <name>%s</name>\n", c.Name)
	for _, n := range c.Nodes {
		b.WriteString("  <server>\n")
		fmt.Fprintf(&b, "    <id>%d</id>\n", n.ID)
		fmt.Fprintf(&b, "    <host>%s</host>\n", n.Host)
		fmt.Fprintf(&b, "    <http-port>%d</http-port>\n", n.HTTPPort)
		fmt.Fprintf(&b, "    <socket-port>%d</socket-port>\n", n.SocketPort)
		fmt.Fprintf(&b, "    <admin-port>%d</admin-port>\n", n.AdminPort)
		fmt.Fprintf(&b, "    <partitions>%s</partitions>\n", csvInts(n.PartitionIDs))
		b.WriteString("  </server>\n")
	}
	b.WriteString("</cluster>\n")
	return b.String()
}

type xmlStores struct {
	XMLName xml.Name   `xml:"stores"`
	Stores  []xmlStore `xml:"store"`
}

type xmlStore struct {
	Name              string `xml:"name"`
	Persistence       string `xml:"persistence"`
	Routing           string `xml:"routing"`
	ReplicationFactor uint8  `xml:"replication-factor"`
	RequiredReads     uint8  `xml:"required-reads"`
	PreferredReads    uint8  `xml:"preferred-reads"`
	RequiredWrites    uint8  `xml:"required-writes"`
	PreferredWrites   uint8  `xml:"preferred-writes"`
	KeySerializer     string `xml:"key-serializer"`
	ValueSerializer   string `xml:"value-serializer"`
}

// StoreDefinitionsMapper parses and serializes stores.xml.
type StoreDefinitionsMapper struct{}

func (StoreDefinitionsMapper) ReadStoreList(doc string) ([]StoreDefinition, error) {
	var xs xmlStores
	if err := xml.Unmarshal([]byte(doc), &xs); err != nil {
		return nil, fmt.Errorf("stores: parse: %w", err)
	}
	out := make([]StoreDefinition, 0, len(xs.Stores))
	for _, s := range xs.Stores {
		out = append(out, StoreDefinition{
			Name:              s.Name,
			Type:              s.Persistence,
			Routing:           StoreRoutingPolicy(s.Routing),
			ReplicationFactor: s.ReplicationFactor,
			RequiredReads:     s.RequiredReads,
			PreferredReads:    s.PreferredReads,
			RequiredWrites:    s.RequiredWrites,
			PreferredWrites:   s.PreferredWrites,
			KeySerializer:     s.KeySerializer,
			ValueSerializer:   s.ValueSerializer,
		})
	}
	return out, nil
}

func (StoreDefinitionsMapper) WriteStoreList(defs []StoreDefinition) string {
	var b strings.Builder
	b.WriteString("<stores>\n")
	for _, d := range defs {
		b.WriteString("  <store>\n")
		fmt.Fprintf(&b, "    <name>%s</name>\n", d.Name)
		fmt.Fprintf(&b, "    <persistence>%s</persistence>\n", d.Type)
		fmt.Fprintf(&b, "    <routing>%s</routing>\n", d.Routing)
		fmt.Fprintf(&b, "    <replication-factor>%d</replication-factor>\n", d.ReplicationFactor)
		fmt.Fprintf(&b, "    <required-reads>%d</required-reads>\n", d.RequiredReads)
		fmt.Fprintf(&b, "    <preferred-reads>%d</preferred-reads>\n", d.PreferredReads)
		fmt.Fprintf(&b, "    <required-writes>%d</required-writes>\n", d.RequiredWrites)
		fmt.Fprintf(&b, "    <preferred-writes>%d</preferred-writes>\n", d.PreferredWrites)
		fmt.Fprintf(&b, "    <key-serializer>%s</key-serializer>\n", d.KeySerializer)
		fmt.Fprintf(&b, "    <value-serializer>%s</value-serializer>\n", d.ValueSerializer)
		b.WriteString("  </store>\n")
	}
	b.WriteString("</stores>\n")
	return b.String()
}

func parseCSVInts(csv string) ([]int, error) {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid partition id %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func csvInts(ints []int) string {
	parts := make([]string, len(ints))
	for i, v := range ints {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
