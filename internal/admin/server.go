package admin

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pairdb/ring/internal/metadata"
	"github.com/pairdb/ring/internal/routing"
	"github.com/pairdb/ring/internal/slop"
	"github.com/pairdb/ring/internal/store"
	"github.com/pairdb/ring/internal/versioning"
	"go.uber.org/zap"
)

// Recorder receives per-request admin metrics (C10). internal/metrics.Metrics
// implements it; nil disables recording.
type Recorder interface {
	RecordAdminRequest(opcode, result string, durationSeconds float64)
}

// RoutedStore bundles the pieces the server needs per named store: the raw
// C3 engine the bulk stream opcodes (C8) read and write directly, the
// slop-detecting wrapper (C5) client opcodes go through, and the routing
// strategy (C2) used to filter a partition's keys out of the raw engine.
type RoutedStore struct {
	Inner     store.Store
	Detecting *slop.DetectingStore
	Strategy  routing.Strategy
}

// Server is the admin TCP server (C6/C7/C8's peer side): it accepts framed
// connections, dispatches by opcode, and gates regular client ops on
// server.state. Grounded on AdminClient.java's wire shapes (the opcodes it
// writes are exactly what this type reads) with the dispatch loop written
// in the teacher's net.Listener/goroutine-per-connection idiom.
type Server struct {
	localNodeID uint16
	metadata    *metadata.Store
	routed      map[string]RoutedStore
	slopStore   store.Store
	encodeSlop  func(slop.Slop) []byte
	onRestart   func() error
	logger      *zap.Logger
	recorder    Recorder

	mu        sync.Mutex
	listeners []net.Listener
}

// WithRecorder attaches a metrics Recorder, returning s for chaining.
func (s *Server) WithRecorder(r Recorder) *Server {
	s.recorder = r
	return s
}

// NewServer builds a Server. onRestart is invoked by RESTART_SERVICES only,
// to let the caller reload whatever depends on the current cluster/stores
// metadata; the state-transition opcodes change server.state without
// calling it, and the admin client follows them with a separate
// RESTART_SERVICES request.
func NewServer(localNodeID uint16, metadataStore *metadata.Store, routed map[string]RoutedStore, slopStore store.Store, encodeSlop func(slop.Slop) []byte, onRestart func() error, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onRestart == nil {
		onRestart = func() error { return nil }
	}
	return &Server{
		localNodeID: localNodeID,
		metadata:    metadataStore,
		routed:      routed,
		slopStore:   slopStore,
		encodeSlop:  encodeSlop,
		onRestart:   onRestart,
		logger:      logger,
	}
}

// Serve accepts connections on ln until it is closed, handling each on its
// own goroutine. A Server may serve several listeners concurrently (the
// admin port and the client socket port both dispatch through the same
// opcode table), so each call tracks its own listener rather than sharing
// one field.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections on every listener Serve was given.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, ln := range s.listeners {
		if err := ln.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	for {
		opcodeByte, err := r.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("admin connection read failed", zap.Error(err))
			}
			return
		}
		op := Opcode(opcodeByte)
		start := time.Now()
		err = s.dispatch(conn, r, op)
		if s.recorder != nil {
			result := "ok"
			if err != nil {
				result = "error"
			}
			s.recorder.RecordAdminRequest(opcodeName(op), result, time.Since(start).Seconds())
		}
		if err != nil {
			s.logger.Debug("admin request failed", zap.Uint8("opcode", opcodeByte), zap.Error(err))
			return
		}
	}
}

func opcodeName(op Opcode) string {
	switch op {
	case OpUpdateClusterMetadata:
		return "update_cluster_metadata"
	case OpUpdateStoresMetadata:
		return "update_stores_metadata"
	case OpRebalancingServerMode:
		return "rebalancing_server_mode"
	case OpNormalServerMode:
		return "normal_server_mode"
	case OpRestartServices:
		return "restart_services"
	case OpRedirectGet:
		return "redirect_get"
	case OpGetPartitionAsStream:
		return "get_partition_as_stream"
	case OpPutPartitionAsStream:
		return "put_partition_as_stream"
	case OpClientGet:
		return "client_get"
	case OpClientPut:
		return "client_put"
	case OpClientDelete:
		return "client_delete"
	default:
		return "unknown"
	}
}

// dispatch routes one framed request to its handler, validating against
// server.state per spec.md §4.6: GET/PUT_PARTITION_AS_STREAM, REDIRECT_GET,
// UPDATE_*, and the state-transition opcodes are permitted in both states;
// client ops (GET/PUT/DELETE) are bounced with InvalidRequest outside
// NORMAL_STATE.
func (s *Server) dispatch(w io.Writer, r *bufio.Reader, op Opcode) error {
	switch op {
	case OpUpdateClusterMetadata:
		return s.handleUpdateClusterMetadata(w, r)
	case OpUpdateStoresMetadata:
		return s.handleUpdateStoresMetadata(w, r)
	case OpRebalancingServerMode:
		return s.handleSetState(w, metadata.RebalancingState)
	case OpNormalServerMode:
		return s.handleSetState(w, metadata.NormalState)
	case OpRestartServices:
		return s.handleRestartServices(w)
	case OpRedirectGet:
		return s.handleRedirectGet(w, r)
	case OpGetPartitionAsStream:
		return s.handleGetPartitionAsStream(w, r)
	case OpPutPartitionAsStream:
		return s.handlePutPartitionAsStream(w, r)
	case OpClientGet:
		return s.handleClientGet(w, r)
	case OpClientPut:
		return s.handleClientPut(w, r)
	case OpClientDelete:
		return s.handleClientDelete(w, r)
	default:
		return WritePrelude(w, ErrInvalidRequest)
	}
}

func (s *Server) handleUpdateClusterMetadata(w io.Writer, r *bufio.Reader) error {
	key, err := ReadUTF(r)
	if err != nil {
		return err
	}
	doc, err := ReadUTF(r)
	if err != nil {
		return err
	}
	if !metadata.IsKnownKey(key) {
		return WritePrelude(w, metadata.ErrUnknownMetadataKey)
	}
	putErr := s.metadata.Put(key, versioning.NewVersioned(doc, s.nextVersion(key)))
	return WritePrelude(w, putErr)
}

func (s *Server) handleUpdateStoresMetadata(w io.Writer, r *bufio.Reader) error {
	doc, err := ReadUTF(r)
	if err != nil {
		return err
	}
	putErr := s.metadata.Put(metadata.StoresKey, versioning.NewVersioned(doc, s.nextVersion(metadata.StoresKey)))
	return WritePrelude(w, putErr)
}

func (s *Server) handleSetState(w io.Writer, state metadata.ServerState) error {
	err := s.metadata.SetServerState(state, s.nextVersion(metadata.ServerStateKey))
	return WritePrelude(w, err)
}

// nextVersion returns a clock that dominates every version stored under key,
// so each admin update of a key supersedes the previous one.
func (s *Server) nextVersion(key string) versioning.VectorClock {
	clock := versioning.New()
	if current, err := s.metadata.Get(key); err == nil {
		for _, v := range current {
			clock = clock.Merge(v.Version)
		}
	}
	return clock.Increment(s.localNodeID)
}

func (s *Server) handleRestartServices(w io.Writer) error {
	err := s.onRestart()
	return WritePrelude(w, err)
}

func (s *Server) handleRedirectGet(w io.Writer, r *bufio.Reader) error {
	storeName, err := ReadUTF(r)
	if err != nil {
		return err
	}
	key, err := ReadBytes(r)
	if err != nil {
		return err
	}
	routed, ok := s.routed[storeName]
	if !ok {
		return WritePrelude(w, metadata.ErrStoreNotFound)
	}
	versions, getErr := routed.Inner.Get(key)
	if getErr != nil {
		return WritePrelude(w, getErr)
	}
	if err := WritePrelude(w, nil); err != nil {
		return err
	}
	if err := WriteInt32(w, int32(len(versions))); err != nil {
		return err
	}
	for _, v := range versions {
		blob := append(v.Version.ToBytes(), v.Value...)
		if err := WriteInt32(w, int32(len(blob))); err != nil {
			return err
		}
		if _, err := w.Write(blob); err != nil {
			return err
		}
	}
	return nil
}

// handleGetPartitionAsStream streams every (key, valueWithClock) entry of
// storeName whose partition list starts within nParts, terminated by the
// i32 -1 sentinel (spec.md §4.6, C8).
func (s *Server) handleGetPartitionAsStream(w io.Writer, r *bufio.Reader) error {
	storeName, err := ReadUTF(r)
	if err != nil {
		return err
	}
	n, err := ReadInt32(r)
	if err != nil {
		return err
	}
	wanted := make(map[int]struct{}, n)
	for i := int32(0); i < n; i++ {
		p, err := ReadInt32(r)
		if err != nil {
			return err
		}
		wanted[int(p)] = struct{}{}
	}

	routed, ok := s.routed[storeName]
	if !ok {
		return WritePrelude(w, metadata.ErrStoreNotFound)
	}
	it, err := routed.Inner.Entries()
	if err != nil {
		return WritePrelude(w, err)
	}
	defer it.Close()

	if err := WritePrelude(w, nil); err != nil {
		return err
	}

	for {
		entry, ok := it.Next()
		if !ok {
			break
		}
		parts := routed.Strategy.PartitionList(entry.Key)
		if len(parts) == 0 {
			continue
		}
		if _, want := wanted[parts[0]]; !want {
			continue
		}
		blob := append(entry.Value.Version.ToBytes(), entry.Value.Value...)
		if err := WriteStreamEntry(w, KeyValueEntry{Key: entry.Key, ValueWithClock: blob}); err != nil {
			return err
		}
	}
	return WriteStreamEnd(w)
}

// handlePutPartitionAsStream reads (key, valueWithClock) entries until the
// end sentinel and puts each into storeName's raw engine. ObsoleteVersion
// failures on individual entries are swallowed (spec.md §8 scenario 5
// requires re-running a transfer to be a no-op, not a caller-visible
// failure) but any other error aborts the stream.
func (s *Server) handlePutPartitionAsStream(w io.Writer, r *bufio.Reader) error {
	storeName, err := ReadUTF(r)
	if err != nil {
		return err
	}
	routed, ok := s.routed[storeName]
	if !ok {
		return WritePrelude(w, metadata.ErrStoreNotFound)
	}

	for {
		entry, ok, err := ReadStreamEntry(r)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		clockLen := clockSizeIn(entry.ValueWithClock)
		clock, err := versioning.FromBytes(entry.ValueWithClock[:clockLen])
		if err != nil {
			return WritePrelude(w, err)
		}
		value := entry.ValueWithClock[clockLen:]
		if putErr := routed.Inner.Put(entry.Key, versioning.NewVersioned(append([]byte(nil), value...), clock)); putErr != nil &&
			!errors.Is(putErr, store.ErrObsoleteVersion) {
			return WritePrelude(w, putErr)
		}
	}
	return WritePrelude(w, nil)
}

func (s *Server) clientOpAllowed() bool {
	state, err := s.metadata.GetServerState()
	return err == nil && state == metadata.NormalState
}

func (s *Server) handleClientGet(w io.Writer, r *bufio.Reader) error {
	storeName, err := ReadUTF(r)
	if err != nil {
		return err
	}
	key, err := ReadBytes(r)
	if err != nil {
		return err
	}
	if !s.clientOpAllowed() {
		return WritePrelude(w, ErrInvalidRequest)
	}
	routed, ok := s.routed[storeName]
	if !ok {
		return WritePrelude(w, metadata.ErrStoreNotFound)
	}
	versions, getErr := routed.Detecting.Get(key)
	if getErr != nil {
		return WritePrelude(w, getErr)
	}
	if err := WritePrelude(w, nil); err != nil {
		return err
	}
	if err := WriteInt32(w, int32(len(versions))); err != nil {
		return err
	}
	for _, v := range versions {
		blob := append(v.Version.ToBytes(), v.Value...)
		if err := WriteInt32(w, int32(len(blob))); err != nil {
			return err
		}
		if _, err := w.Write(blob); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleClientPut(w io.Writer, r *bufio.Reader) error {
	storeName, err := ReadUTF(r)
	if err != nil {
		return err
	}
	key, err := ReadBytes(r)
	if err != nil {
		return err
	}
	clockBytes, err := ReadBytes(r)
	if err != nil {
		return err
	}
	value, err := ReadBytes(r)
	if err != nil {
		return err
	}
	if !s.clientOpAllowed() {
		return WritePrelude(w, ErrInvalidRequest)
	}
	routed, ok := s.routed[storeName]
	if !ok {
		return WritePrelude(w, metadata.ErrStoreNotFound)
	}
	clock, err := versioning.FromBytes(clockBytes)
	if err != nil {
		return WritePrelude(w, err)
	}
	putErr := routed.Detecting.Put(key, versioning.NewVersioned(value, clock))
	return WritePrelude(w, putErr)
}

func (s *Server) handleClientDelete(w io.Writer, r *bufio.Reader) error {
	storeName, err := ReadUTF(r)
	if err != nil {
		return err
	}
	key, err := ReadBytes(r)
	if err != nil {
		return err
	}
	clockBytes, err := ReadBytes(r)
	if err != nil {
		return err
	}
	if !s.clientOpAllowed() {
		return WritePrelude(w, ErrInvalidRequest)
	}
	routed, ok := s.routed[storeName]
	if !ok {
		return WritePrelude(w, metadata.ErrStoreNotFound)
	}
	clock, err := versioning.FromBytes(clockBytes)
	if err != nil {
		return WritePrelude(w, err)
	}
	removed, delErr := routed.Detecting.Delete(key, clock)
	if delErr != nil {
		return WritePrelude(w, delErr)
	}
	if err := WritePrelude(w, nil); err != nil {
		return err
	}
	var flag byte
	if removed {
		flag = 1
	}
	_, err = w.Write([]byte{flag})
	return err
}
