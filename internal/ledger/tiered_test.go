package ledger_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"attendly/internal/ledger"
	"attendly/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore wraps a real store and fails every call with
// ErrStorageUnavailable while down.
type flakyStore struct {
	inner ledger.Store
	down  bool
}

func (f *flakyStore) InsertIfAbsent(ctx context.Context, rec ledger.Record) error {
	if f.down {
		return ledger.ErrStorageUnavailable
	}
	return f.inner.InsertIfAbsent(ctx, rec)
}

func (f *flakyStore) GetByDate(ctx context.Context, studentID, date string) (ledger.Record, error) {
	if f.down {
		return ledger.Record{}, ledger.ErrStorageUnavailable
	}
	return f.inner.GetByDate(ctx, studentID, date)
}

func (f *flakyStore) ListByStudent(ctx context.Context, studentID string) ([]ledger.Record, error) {
	if f.down {
		return nil, ledger.ErrStorageUnavailable
	}
	return f.inner.ListByStudent(ctx, studentID)
}

func (f *flakyStore) Delete(ctx context.Context, id string) error {
	if f.down {
		return ledger.ErrStorageUnavailable
	}
	return f.inner.Delete(ctx, id)
}

func (f *flakyStore) CountByStatus(ctx context.Context, studentID string) (ledger.Stats, error) {
	if f.down {
		return ledger.Stats{}, ledger.ErrStorageUnavailable
	}
	return f.inner.CountByStatus(ctx, studentID)
}

func record(id, studentID, date string, status ledger.Status) ledger.Record {
	return ledger.Record{
		ID:        id,
		StudentID: studentID,
		Date:      date,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
}

func TestTiered_HealthyWritesLandInBothTiers(t *testing.T) {
	primary := ledger.NewMemoryStore()
	mirror := ledger.NewMemoryStore()
	tiered := ledger.NewTiered(primary, mirror, nil, nil)
	ctx := context.Background()

	require.NoError(t, tiered.InsertIfAbsent(ctx, record("r1", "stu-1", "2025-03-10", ledger.StatusPresent)))
	assert.False(t, tiered.Degraded())

	_, err := primary.GetByDate(ctx, "stu-1", "2025-03-10")
	assert.NoError(t, err)
	_, err = mirror.GetByDate(ctx, "stu-1", "2025-03-10")
	assert.NoError(t, err)
}

func TestTiered_OutageFallsBackToMirrorAndQueuesReplay(t *testing.T) {
	primary := &flakyStore{inner: ledger.NewMemoryStore(), down: true}
	mirror := ledger.NewMemoryStore()
	replay := queue.NewInMemory(8)
	tiered := ledger.NewTiered(primary, mirror, replay, nil)
	ctx := context.Background()

	rec := record("r1", "stu-1", "2025-03-10", ledger.StatusLate)
	require.NoError(t, tiered.InsertIfAbsent(ctx, rec))
	assert.True(t, tiered.Degraded())

	// Record is visible through the tiered store.
	got, err := tiered.GetByDate(ctx, "stu-1", "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)

	// Replay message carries the full record.
	msgs, err := replay.Consume(ctx)
	require.NoError(t, err)
	msg := <-msgs
	assert.Equal(t, queue.KindReplay, msg.Kind)
	var replayed ledger.Record
	require.NoError(t, json.Unmarshal(msg.Body, &replayed))
	assert.Equal(t, rec.ID, replayed.ID)
	assert.Equal(t, rec.Date, replayed.Date)
}

func TestTiered_AdmissionRuleHoldsWhileDegraded(t *testing.T) {
	primary := &flakyStore{inner: ledger.NewMemoryStore(), down: true}
	mirror := ledger.NewMemoryStore()
	tiered := ledger.NewTiered(primary, mirror, nil, nil)
	ctx := context.Background()

	require.NoError(t, tiered.InsertIfAbsent(ctx, record("r1", "stu-1", "2025-03-10", ledger.StatusPresent)))

	err := tiered.InsertIfAbsent(ctx, record("r2", "stu-1", "2025-03-10", ledger.StatusLate))
	assert.ErrorIs(t, err, ledger.ErrDuplicateCheckIn)
}

func TestTiered_PendingRecordVetoesPrimaryAfterRecovery(t *testing.T) {
	primary := &flakyStore{inner: ledger.NewMemoryStore(), down: true}
	mirror := ledger.NewMemoryStore()
	tiered := ledger.NewTiered(primary, mirror, nil, nil)
	ctx := context.Background()

	// Accepted during the outage, present only in the mirror.
	require.NoError(t, tiered.InsertIfAbsent(ctx, record("r1", "stu-1", "2025-03-10", ledger.StatusPresent)))

	// Primary comes back before the worker replays; the pending mirror
	// record must still veto a duplicate for the same day.
	primary.down = false
	err := tiered.InsertIfAbsent(ctx, record("r2", "stu-1", "2025-03-10", ledger.StatusLate))
	assert.ErrorIs(t, err, ledger.ErrDuplicateCheckIn)
}

func TestTiered_DuplicateVetoSurvivesRecoveryByAnotherStudent(t *testing.T) {
	primary := &flakyStore{inner: ledger.NewMemoryStore(), down: true}
	mirror := ledger.NewMemoryStore()
	tiered := ledger.NewTiered(primary, mirror, nil, nil)
	ctx := context.Background()

	// Accepted during the outage, not yet in the primary.
	require.NoError(t, tiered.InsertIfAbsent(ctx, record("r1", "stu-1", "2025-03-10", ledger.StatusPresent)))
	require.True(t, tiered.Degraded())

	// Primary recovers and an unrelated student checks in, which clears
	// the degraded flag.
	primary.down = false
	require.NoError(t, tiered.InsertIfAbsent(ctx, record("r2", "stu-2", "2025-03-10", ledger.StatusPresent)))
	require.False(t, tiered.Degraded())

	// The first student's day is still taken even though the flag flipped.
	err := tiered.InsertIfAbsent(ctx, record("r3", "stu-1", "2025-03-10", ledger.StatusLate))
	assert.ErrorIs(t, err, ledger.ErrDuplicateCheckIn)

	// The outage-time record won, not the late duplicate.
	got, err := tiered.GetByDate(ctx, "stu-1", "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, ledger.StatusPresent, got.Status)
}

func TestTiered_ReadDrainsPendingBacklogIntoPrimary(t *testing.T) {
	primary := &flakyStore{inner: ledger.NewMemoryStore(), down: true}
	mirror := ledger.NewMemoryStore()
	tiered := ledger.NewTiered(primary, mirror, nil, nil)
	ctx := context.Background()

	require.NoError(t, tiered.InsertIfAbsent(ctx, record("r1", "stu-1", "2025-03-10", ledger.StatusPresent)))

	// Any call against a reachable primary re-applies the backlog without
	// waiting for the worker.
	primary.down = false
	got, err := tiered.GetByDate(ctx, "stu-1", "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
	assert.False(t, tiered.Degraded())

	_, err = primary.inner.GetByDate(ctx, "stu-1", "2025-03-10")
	assert.NoError(t, err)
}

func TestTiered_ReadOnlyRecoveryClearsDegradedFlag(t *testing.T) {
	primary := &flakyStore{inner: ledger.NewMemoryStore(), down: false}
	mirror := ledger.NewMemoryStore()
	tiered := ledger.NewTiered(primary, mirror, nil, nil)
	ctx := context.Background()

	require.NoError(t, tiered.InsertIfAbsent(ctx, record("r1", "stu-1", "2025-03-10", ledger.StatusPresent)))

	primary.down = true
	_, err := tiered.ListByStudent(ctx, "stu-1")
	require.NoError(t, err)
	require.True(t, tiered.Degraded())

	// Nothing was written during the outage, so a successful read is
	// enough to leave degraded mode.
	primary.down = false
	_, err = tiered.GetByDate(ctx, "stu-1", "2025-03-10")
	require.NoError(t, err)
	assert.False(t, tiered.Degraded())
}

func TestTiered_DeleteDuringOutageQueuesTombstone(t *testing.T) {
	primary := &flakyStore{inner: ledger.NewMemoryStore(), down: false}
	mirror := ledger.NewMemoryStore()
	replay := queue.NewInMemory(8)
	tiered := ledger.NewTiered(primary, mirror, replay, nil)
	ctx := context.Background()

	require.NoError(t, tiered.InsertIfAbsent(ctx, record("r1", "stu-1", "2025-03-10", ledger.StatusPresent)))

	primary.down = true
	require.NoError(t, tiered.Delete(ctx, "r1"))

	msgs, err := replay.Consume(ctx)
	require.NoError(t, err)
	msg := <-msgs
	assert.Equal(t, queue.KindTombstone, msg.Kind)
	var ts struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(msg.Body, &ts))
	assert.Equal(t, "r1", ts.ID)

	// Gone from the serving tier immediately.
	_, err = tiered.GetByDate(ctx, "stu-1", "2025-03-10")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestTiered_ListMergesPendingMirrorRecords(t *testing.T) {
	primary := &flakyStore{inner: ledger.NewMemoryStore(), down: false}
	mirror := ledger.NewMemoryStore()
	tiered := ledger.NewTiered(primary, mirror, nil, nil)
	ctx := context.Background()

	// One record while healthy, in both tiers.
	require.NoError(t, tiered.InsertIfAbsent(ctx, record("r1", "stu-1", "2025-03-10", ledger.StatusPresent)))

	// One record during an outage, mirror only.
	primary.down = true
	require.NoError(t, tiered.InsertIfAbsent(ctx, record("r2", "stu-1", "2025-03-11", ledger.StatusLate)))

	// Primary is back for reads but the pending record has not replayed.
	primary.down = false
	recs, err := tiered.ListByStudent(ctx, "stu-1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "2025-03-11", recs[0].Date)
	assert.Equal(t, "2025-03-10", recs[1].Date)
}

func TestTiered_ReadsFallBackToMirror(t *testing.T) {
	primary := &flakyStore{inner: ledger.NewMemoryStore(), down: false}
	mirror := ledger.NewMemoryStore()
	tiered := ledger.NewTiered(primary, mirror, nil, nil)
	ctx := context.Background()

	require.NoError(t, tiered.InsertIfAbsent(ctx, record("r1", "stu-1", "2025-03-10", ledger.StatusPresent)))
	primary.down = true

	recs, err := tiered.ListByStudent(ctx, "stu-1")
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	stats, err := tiered.CountByStatus(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Present)
	assert.True(t, tiered.Degraded())
}

func TestTiered_DeleteSucceedsWhenEitherTierHeldTheRecord(t *testing.T) {
	primary := &flakyStore{inner: ledger.NewMemoryStore(), down: true}
	mirror := ledger.NewMemoryStore()
	tiered := ledger.NewTiered(primary, mirror, nil, nil)
	ctx := context.Background()

	require.NoError(t, tiered.InsertIfAbsent(ctx, record("r1", "stu-1", "2025-03-10", ledger.StatusPresent)))

	primary.down = false
	assert.NoError(t, tiered.Delete(ctx, "r1"))
	assert.ErrorIs(t, tiered.Delete(ctx, "r1"), ledger.ErrNotFound)
}
