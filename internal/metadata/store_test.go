package metadata

import (
	"testing"

	"github.com/pairdb/ring/internal/versioning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_StoresXML_ObsoleteVersionRejected(t *testing.T) {
	s := New(NewMemoryInnerStore())
	clock := versioning.New().Increment(0)

	require.NoError(t, s.Put(StoresKey, versioning.NewVersioned("<stores/>", clock)))

	err := s.Put(StoresKey, versioning.NewVersioned("<stores/>", clock))
	assert.ErrorIs(t, err, ErrObsoleteVersion)

	err = s.Put(StoresKey, versioning.NewVersioned("<stores/>", clock.Increment(0)))
	assert.NoError(t, err)
}

func TestStore_Delete_AlwaysPermissionDenied(t *testing.T) {
	s := New(NewMemoryInnerStore())
	_, err := s.Delete(StoresKey, versioning.New())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestStore_Entries_NotSupported(t *testing.T) {
	s := New(NewMemoryInnerStore())
	assert.ErrorIs(t, s.Entries(), ErrNotSupported)
}

func TestStore_GetServerState_DefaultsToNormal(t *testing.T) {
	s := New(NewMemoryInnerStore())
	state, err := s.GetServerState()
	require.NoError(t, err)
	assert.Equal(t, NormalState, state)
}

func TestStore_ServerStateCycle(t *testing.T) {
	s := New(NewMemoryInnerStore())
	clock := versioning.New().Increment(0)

	require.NoError(t, s.SetServerState(RebalancingState, clock))
	state, err := s.GetServerState()
	require.NoError(t, err)
	assert.Equal(t, RebalancingState, state)

	clock = clock.Increment(0)
	require.NoError(t, s.SetServerState(NormalState, clock))
	state, err = s.GetServerState()
	require.NoError(t, err)
	assert.Equal(t, NormalState, state)
}

func TestStore_GetStore_NotFound(t *testing.T) {
	s := New(NewMemoryInnerStore())
	require.NoError(t, s.Put(StoresKey, versioning.NewVersioned(
		`<stores></stores>`, versioning.New().Increment(0))))

	_, err := s.GetStore("missing")
	assert.ErrorIs(t, err, ErrStoreNotFound)
}

func TestIsKnownKey(t *testing.T) {
	assert.True(t, IsKnownKey(ClusterKey))
	assert.True(t, IsKnownKey(ServerStateKey))
	assert.False(t, IsKnownKey("random.key"))
}
