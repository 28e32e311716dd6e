package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aegisops/rosterd/pkg/bus"
	"github.com/aegisops/rosterd/pkg/db"
)

// syncMock implements DirectorySyncStore with in-memory version gating,
// mirroring the store's last-higher-version-wins behavior.
type syncMock struct {
	guards    map[string]*db.GuardEntry
	managers  map[string]*db.ManagerEntry
	absences  map[string]*db.Absence
	contracts map[string]int64
}

func newSyncMock() *syncMock {
	return &syncMock{
		guards:    map[string]*db.GuardEntry{},
		managers:  map[string]*db.ManagerEntry{},
		absences:  map[string]*db.Absence{},
		contracts: map[string]int64{},
	}
}

func (m *syncMock) UpsertGuard(ctx context.Context, entry *db.GuardEntry) (bool, error) {
	if cur, ok := m.guards[entry.Code]; ok && entry.Version <= cur.Version {
		return false, nil
	}
	m.guards[entry.Code] = entry
	return true, nil
}

func (m *syncMock) DeleteGuard(ctx context.Context, code string, version int64) (bool, error) {
	cur, ok := m.guards[code]
	if !ok || version <= cur.Version {
		return false, nil
	}
	now := time.Now()
	cur.DeletedAt = &now
	cur.Version = version
	return true, nil
}

func (m *syncMock) SetGuardAvailability(ctx context.Context, code string, available bool, version int64) (bool, error) {
	cur, ok := m.guards[code]
	if !ok || version <= cur.Version {
		return false, nil
	}
	cur.Available = available
	cur.Version = version
	return true, nil
}

func (m *syncMock) UpsertManager(ctx context.Context, entry *db.ManagerEntry) (bool, error) {
	if cur, ok := m.managers[entry.Code]; ok && entry.Version <= cur.Version {
		return false, nil
	}
	m.managers[entry.Code] = entry
	return true, nil
}

func (m *syncMock) DeleteManager(ctx context.Context, code string, version int64) (bool, error) {
	cur, ok := m.managers[code]
	if !ok || version <= cur.Version {
		return false, nil
	}
	now := time.Now()
	cur.DeletedAt = &now
	cur.Version = version
	return true, nil
}

func (m *syncMock) UpsertAbsence(ctx context.Context, absence *db.Absence) (bool, error) {
	if cur, ok := m.absences[absence.ID]; ok && absence.Version <= cur.Version {
		return false, nil
	}
	m.absences[absence.ID] = absence
	return true, nil
}

func (m *syncMock) RevokeAbsence(ctx context.Context, id string, version int64) (bool, error) {
	cur, ok := m.absences[id]
	if !ok || version <= cur.Version {
		return false, nil
	}
	cur.Approved = false
	cur.Version = version
	return true, nil
}

func (m *syncMock) UpsertContractRef(ctx context.Context, contractID string, version int64) (bool, error) {
	if cur, ok := m.contracts[contractID]; ok && version <= cur {
		return false, nil
	}
	m.contracts[contractID] = version
	return true, nil
}

func guardEventPayload(t *testing.T, ev bus.UserEvent) []byte {
	t.Helper()
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	return raw
}

func TestDirectorySync_UpsertsGuardAndManagerByRole(t *testing.T) {
	store := newSyncMock()
	sync := NewDirectorySync(store, zap.NewNop())
	ctx := context.Background()

	err := sync.HandleUserUpserted(ctx, guardEventPayload(t, bus.UserEvent{
		Code: "G1", Role: "guard", Name: "Asha", Email: "asha@example.com", Available: true, Version: 1,
	}))
	require.NoError(t, err)

	err = sync.HandleUserUpserted(ctx, guardEventPayload(t, bus.UserEvent{
		Code: "M1", Role: "manager", Name: "Mira", Version: 1,
	}))
	require.NoError(t, err)

	require.Contains(t, store.guards, "G1")
	assert.Equal(t, "Asha", store.guards["G1"].Name)
	require.Contains(t, store.managers, "M1")
	assert.Equal(t, "Mira", store.managers["M1"].Name)
}

func TestDirectorySync_StaleVersionIsNoOp(t *testing.T) {
	store := newSyncMock()
	sync := NewDirectorySync(store, zap.NewNop())
	ctx := context.Background()

	// Version 2 arrives first (out-of-order delivery)
	err := sync.HandleUserUpserted(ctx, guardEventPayload(t, bus.UserEvent{
		Code: "G1", Role: "guard", Name: "Asha v2", Version: 2,
	}))
	require.NoError(t, err)

	// The older version 1 must leave the entry unchanged
	err = sync.HandleUserUpserted(ctx, guardEventPayload(t, bus.UserEvent{
		Code: "G1", Role: "guard", Name: "Asha v1", Version: 1,
	}))
	require.NoError(t, err)

	assert.Equal(t, "Asha v2", store.guards["G1"].Name)
	assert.Equal(t, int64(2), store.guards["G1"].Version)

	// A duplicate of version 2 is equally a no-op
	err = sync.HandleUserUpserted(ctx, guardEventPayload(t, bus.UserEvent{
		Code: "G1", Role: "guard", Name: "Asha dup", Version: 2,
	}))
	require.NoError(t, err)
	assert.Equal(t, "Asha v2", store.guards["G1"].Name)
}

func TestDirectorySync_DeleteIsVersionGated(t *testing.T) {
	store := newSyncMock()
	sync := NewDirectorySync(store, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, sync.HandleUserUpserted(ctx, guardEventPayload(t, bus.UserEvent{
		Code: "G1", Role: "guard", Version: 3,
	})))

	// Stale delete does nothing
	require.NoError(t, sync.HandleUserDeleted(ctx, guardEventPayload(t, bus.UserEvent{
		Code: "G1", Role: "guard", Version: 2,
	})))
	assert.Nil(t, store.guards["G1"].DeletedAt)

	// Newer delete applies
	require.NoError(t, sync.HandleUserDeleted(ctx, guardEventPayload(t, bus.UserEvent{
		Code: "G1", Role: "guard", Version: 4,
	})))
	assert.NotNil(t, store.guards["G1"].DeletedAt)
}

func TestDirectorySync_GuardDeactivation(t *testing.T) {
	store := newSyncMock()
	sync := NewDirectorySync(store, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, sync.HandleUserUpserted(ctx, guardEventPayload(t, bus.UserEvent{
		Code: "G1", Role: "guard", Available: true, Version: 1,
	})))

	raw, err := json.Marshal(bus.GuardDeactivatedEvent{Code: "G1", Version: 2})
	require.NoError(t, err)
	require.NoError(t, sync.HandleGuardDeactivated(ctx, raw))

	assert.False(t, store.guards["G1"].Available)
}

func TestDirectorySync_MalformedPayloadReturnsError(t *testing.T) {
	sync := NewDirectorySync(newSyncMock(), zap.NewNop())
	ctx := context.Background()

	assert.Error(t, sync.HandleUserUpserted(ctx, []byte(`{not json`)))
	assert.Error(t, sync.HandleUserUpserted(ctx, []byte(`{"role":"guard"}`)))
	assert.Error(t, sync.HandleUserUpserted(ctx, []byte(`{"code":"G1","role":"alien"}`)))
}

func TestDirectorySync_AbsenceLifecycle(t *testing.T) {
	store := newSyncMock()
	sync := NewDirectorySync(store, zap.NewNop())
	ctx := context.Background()

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	approve := bus.AbsenceEvent{AbsenceID: "A1", GuardCode: "G1", FromDate: from, ToDate: from.AddDate(0, 0, 5), Version: 1}
	raw, err := json.Marshal(approve)
	require.NoError(t, err)
	require.NoError(t, sync.HandleAbsenceApproved(ctx, raw))

	require.Contains(t, store.absences, "A1")
	assert.True(t, store.absences["A1"].Approved)

	revoke := bus.AbsenceEvent{AbsenceID: "A1", Version: 2}
	raw, err = json.Marshal(revoke)
	require.NoError(t, err)
	require.NoError(t, sync.HandleAbsenceRevoked(ctx, raw))
	assert.False(t, store.absences["A1"].Approved)
}

func TestDirectorySync_ContractActivationRecorded(t *testing.T) {
	store := newSyncMock()
	sync := NewDirectorySync(store, zap.NewNop())

	raw, err := json.Marshal(bus.ContractActivatedEvent{ContractID: "C1", Version: 1})
	require.NoError(t, err)
	require.NoError(t, sync.HandleContractActivated(context.Background(), raw))

	assert.Contains(t, store.contracts, "C1")
}

func TestDirectorySync_InfoUpdateEventsSetRole(t *testing.T) {
	store := newSyncMock()
	sync := NewDirectorySync(store, zap.NewNop())
	ctx := context.Background()

	// Guard/manager info events carry no role field of their own
	require.NoError(t, sync.HandleGuardInfoUpdated(ctx, []byte(`{"code":"G9","name":"New Name","version":1}`)))
	require.NoError(t, sync.HandleManagerInfoUpdated(ctx, []byte(`{"code":"M9","name":"New Name","version":1}`)))

	assert.Contains(t, store.guards, "G9")
	assert.Contains(t, store.managers, "M9")
}
