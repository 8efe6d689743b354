package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"attendly/internal/queue"
)

// Tiered is a Store layered over a primary store and a local mirror. Writes go
// to the primary and are shadowed into the mirror; when the primary is
// unreachable the write lands in the mirror only, the store flips to degraded
// mode, and a replay message is queued for the worker to re-apply later.
//
// Records accepted during an outage are also tracked in an in-process pending
// backlog. The backlog, not the degraded flag, carries the admission rule
// across the recovery window: a pending (student, date) key vetoes duplicates
// until the record has been confirmed in the primary, regardless of how the
// flag has flipped in the meantime. Every call against a reachable primary
// first tries to drain the backlog, so the API process heals itself without
// waiting for the worker.
type Tiered struct {
	primary  Store
	mirror   Store
	replay   queue.Queue
	degraded atomic.Bool
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]Record // (student|date) -> record awaiting primary confirmation
}

type tombstone struct {
	ID string `json:"id"`
}

// NewTiered wires the two tiers. replay may be nil, in which case writes
// accepted while degraded are kept in the mirror and the in-process backlog
// but survive neither a restart nor this process losing the race to recover.
func NewTiered(primary, mirror Store, replay queue.Queue, logger *slog.Logger) *Tiered {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tiered{
		primary: primary,
		mirror:  mirror,
		replay:  replay,
		logger:  logger,
		pending: make(map[string]Record),
	}
}

// Degraded reports whether the mirror is currently serving. The flag clears
// only once the primary answers again and the pending backlog has drained.
func (t *Tiered) Degraded() bool {
	return t.degraded.Load()
}

// InsertIfAbsent applies the conditional insert to the primary, falling back
// to the mirror when the primary is unavailable.
func (t *Tiered) InsertIfAbsent(ctx context.Context, rec Record) error {
	// A record accepted during an outage may not have reached the primary
	// yet; the primary alone cannot veto the duplicate.
	if _, ok := t.pendingRecord(rec.StudentID, rec.Date); ok {
		return ErrDuplicateCheckIn
	}
	if t.degraded.Load() {
		if _, err := t.mirror.GetByDate(ctx, rec.StudentID, rec.Date); err == nil {
			return ErrDuplicateCheckIn
		}
	}

	t.drainPending(ctx)
	err := t.primary.InsertIfAbsent(ctx, rec)
	switch {
	case err == nil:
		t.observeHealthy()
		if merr := t.mirror.InsertIfAbsent(ctx, rec); merr != nil && !errors.Is(merr, ErrDuplicateCheckIn) {
			t.logger.WarnContext(ctx, "mirror write failed", "record_id", rec.ID, "error", merr)
		}
		return nil
	case errors.Is(err, ErrStorageUnavailable):
		// The mirror insert is the admission gate while the primary is
		// down; it serializes concurrent check-ins for the same key.
		if merr := t.mirror.InsertIfAbsent(ctx, rec); merr != nil {
			return merr
		}
		t.addPending(rec)
		t.markDegraded(ctx, err)
		t.enqueueReplay(ctx, rec)
		return nil
	default:
		return err
	}
}

// GetByDate reads from the primary and falls back to the mirror. A primary
// miss still consults the pending backlog so records awaiting replay stay
// visible to the admission check.
func (t *Tiered) GetByDate(ctx context.Context, studentID, date string) (Record, error) {
	t.drainPending(ctx)
	rec, err := t.primary.GetByDate(ctx, studentID, date)
	switch {
	case err == nil:
		t.observeHealthy()
		return rec, nil
	case errors.Is(err, ErrStorageUnavailable):
		t.markDegraded(ctx, err)
		return t.mirror.GetByDate(ctx, studentID, date)
	case errors.Is(err, ErrNotFound):
		t.observeHealthy()
		if pending, ok := t.pendingRecord(studentID, date); ok {
			return pending, nil
		}
		return Record{}, err
	default:
		return Record{}, err
	}
}

// ListByStudent prefers the primary, with records still awaiting replay
// merged in so history stays complete.
func (t *Tiered) ListByStudent(ctx context.Context, studentID string) ([]Record, error) {
	t.drainPending(ctx)
	recs, err := t.primary.ListByStudent(ctx, studentID)
	if errors.Is(err, ErrStorageUnavailable) {
		t.markDegraded(ctx, err)
		return t.mirror.ListByStudent(ctx, studentID)
	}
	if err != nil {
		return nil, err
	}
	t.observeHealthy()
	if pend := t.pendingFor(studentID); len(pend) > 0 {
		recs = mergeByDate(recs, pend)
	}
	return recs, nil
}

// Delete removes the record from both tiers; it succeeds when either tier
// held the record. A delete that cannot reach the primary queues a tombstone
// so the worker removes the primary's row once it is back.
func (t *Tiered) Delete(ctx context.Context, id string) error {
	t.drainPending(ctx)
	perr := t.primary.Delete(ctx, id)
	merr := t.mirror.Delete(ctx, id)
	if merr == nil {
		t.removePendingByID(id)
	}
	switch {
	case perr == nil:
		t.observeHealthy()
		return nil
	case errors.Is(perr, ErrStorageUnavailable):
		t.markDegraded(ctx, perr)
		if merr == nil {
			t.enqueueTombstone(ctx, id)
			return nil
		}
		return perr
	case errors.Is(perr, ErrNotFound):
		t.observeHealthy()
		if merr == nil {
			return nil
		}
		return ErrNotFound
	default:
		return perr
	}
}

// CountByStatus aggregates from the primary, adding records still awaiting
// replay, and falls back to the mirror.
func (t *Tiered) CountByStatus(ctx context.Context, studentID string) (Stats, error) {
	t.drainPending(ctx)
	st, err := t.primary.CountByStatus(ctx, studentID)
	if errors.Is(err, ErrStorageUnavailable) {
		t.markDegraded(ctx, err)
		return t.mirror.CountByStatus(ctx, studentID)
	}
	if err != nil {
		return Stats{}, err
	}
	t.observeHealthy()
	for _, rec := range t.pendingFor(studentID) {
		st.Total++
		switch rec.Status {
		case StatusPresent:
			st.Present++
		case StatusLate:
			st.Late++
		}
	}
	return st, nil
}

func (t *Tiered) markDegraded(ctx context.Context, cause error) {
	if t.degraded.CompareAndSwap(false, true) {
		t.logger.WarnContext(ctx, "primary store unavailable, serving from mirror", "error", cause)
	}
}

// observeHealthy flips the degraded flag back once the primary answered and
// no record is left waiting for it.
func (t *Tiered) observeHealthy() {
	t.mu.Lock()
	drained := len(t.pending) == 0
	t.mu.Unlock()
	if drained && t.degraded.CompareAndSwap(true, false) {
		t.logger.Info("primary store recovered, pending backlog drained")
	}
}

// drainPending re-applies backlogged records to the primary. InsertIfAbsent
// makes the drain idempotent: a record the worker already replayed comes back
// as a duplicate and is simply forgotten. Stops at the first sign the primary
// is still down.
func (t *Tiered) drainPending(ctx context.Context) {
	if !t.degraded.Load() {
		return
	}
	for _, rec := range t.pendingSnapshot() {
		err := t.primary.InsertIfAbsent(ctx, rec)
		if err == nil || errors.Is(err, ErrDuplicateCheckIn) {
			t.removePending(rec.StudentID, rec.Date)
			continue
		}
		return
	}
}

func (t *Tiered) addPending(rec Record) {
	t.mu.Lock()
	t.pending[dateKey(rec.StudentID, rec.Date)] = rec
	t.mu.Unlock()
}

func (t *Tiered) pendingRecord(studentID, date string) (Record, bool) {
	t.mu.Lock()
	rec, ok := t.pending[dateKey(studentID, date)]
	t.mu.Unlock()
	return rec, ok
}

func (t *Tiered) pendingFor(studentID string) []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Record
	for _, rec := range t.pending {
		if rec.StudentID == studentID {
			out = append(out, rec)
		}
	}
	return out
}

func (t *Tiered) pendingSnapshot() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, 0, len(t.pending))
	for _, rec := range t.pending {
		out = append(out, rec)
	}
	return out
}

func (t *Tiered) removePending(studentID, date string) {
	t.mu.Lock()
	delete(t.pending, dateKey(studentID, date))
	t.mu.Unlock()
}

func (t *Tiered) removePendingByID(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, rec := range t.pending {
		if rec.ID == id {
			delete(t.pending, key)
			return
		}
	}
}

func (t *Tiered) enqueueReplay(ctx context.Context, rec Record) {
	if t.replay == nil {
		return
	}
	body, err := json.Marshal(rec)
	if err != nil {
		t.logger.ErrorContext(ctx, "encode replay record", "record_id", rec.ID, "error", err)
		return
	}
	if err := t.replay.Publish(ctx, queue.Message{Kind: queue.KindReplay, Body: body}); err != nil {
		t.logger.ErrorContext(ctx, "queue replay record", "record_id", rec.ID, "error", err)
	}
}

func (t *Tiered) enqueueTombstone(ctx context.Context, id string) {
	if t.replay == nil {
		return
	}
	body, err := json.Marshal(tombstone{ID: id})
	if err != nil {
		t.logger.ErrorContext(ctx, "encode tombstone", "record_id", id, "error", err)
		return
	}
	if err := t.replay.Publish(ctx, queue.Message{Kind: queue.KindTombstone, Body: body}); err != nil {
		t.logger.ErrorContext(ctx, "queue tombstone", "record_id", id, "error", err)
	}
}

// mergeByDate unions two record lists keyed by calendar date, preferring the
// first list's copy, sorted newest date first.
func mergeByDate(primary, pending []Record) []Record {
	seen := make(map[string]struct{}, len(primary))
	out := make([]Record, 0, len(primary)+len(pending))
	for _, rec := range primary {
		seen[rec.Date] = struct{}{}
		out = append(out, rec)
	}
	for _, rec := range pending {
		if _, ok := seen[rec.Date]; !ok {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}
