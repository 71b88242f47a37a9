// Package cloudsync pushes summary snapshots to the remote store in the
// background.
//
// The ledger core never owns a timer. It hands every new snapshot to a
// Scheduler; the Debouncer coalesces rapid edits per user and writes only
// the latest snapshot once the user has been quiet for the configured delay.
// Writes for one user run one at a time and never go backwards: a snapshot
// older than the last one written is dropped. A failed write is reported
// through the sync status and retried only by the next scheduled change.
package cloudsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/atmx/daybook/internal/metrics"
	"github.com/atmx/daybook/internal/model"
	"github.com/atmx/daybook/internal/store"
	"github.com/atmx/daybook/internal/summary"
)

// DefaultDelay is the quiet period before a scheduled write fires.
const DefaultDelay = 700 * time.Millisecond

// writeTimeout bounds a single remote write.
const writeTimeout = 10 * time.Second

// Scheduler accepts snapshots for background persistence.
type Scheduler interface {
	Schedule(userID string, snap summary.Store)
}

// Notifier is told about every sync status change.
type Notifier interface {
	SyncStatusChanged(userID string, status model.SyncStatus)
}

type pending struct {
	snap  summary.Store
	gen   uint64
	timer *time.Timer
}

// lane serialises one user's writes.
type lane struct {
	mu      sync.Mutex
	written uint64 // gen of the newest snapshot sent to the store
}

// Debouncer is a Scheduler backed by a store.Store.
type Debouncer struct {
	store  store.Store
	delay  time.Duration
	notify Notifier // optional

	mu      sync.Mutex
	pending map[string]*pending
	lanes   map[string]*lane
	status  map[string]model.SyncStatus
	gen     uint64
	wg      sync.WaitGroup
}

// NewDebouncer creates a debouncer writing to st. A delay <= 0 uses
// DefaultDelay. Pass nil for n if status fan-out is not needed.
func NewDebouncer(st store.Store, delay time.Duration, n Notifier) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{
		store:   st,
		delay:   delay,
		notify:  n,
		pending: make(map[string]*pending),
		lanes:   make(map[string]*lane),
		status:  make(map[string]model.SyncStatus),
	}
}

// Schedule queues snap as the user's next write, dropping any write still
// waiting for that user.
func (d *Debouncer) Schedule(userID string, snap summary.Store) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	gen := d.gen
	if p, ok := d.pending[userID]; ok {
		if p.timer.Stop() {
			metrics.SyncCoalesced.Inc()
		}
	}
	d.pending[userID] = &pending{
		snap:  snap,
		gen:   gen,
		timer: time.AfterFunc(d.delay, func() { d.fire(userID, gen) }),
	}
}

// fire writes the pending snapshot if it is still the latest one.
func (d *Debouncer) fire(userID string, gen uint64) {
	d.mu.Lock()
	p, ok := d.pending[userID]
	if !ok || p.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.pending, userID)
	d.wg.Add(1)
	d.mu.Unlock()

	defer d.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	d.commit(ctx, userID, gen, p.snap)
}

func (d *Debouncer) lane(userID string) *lane {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.lanes[userID]
	if !ok {
		l = &lane{}
		d.lanes[userID] = l
	}
	return l
}

// commit writes snap unless a newer snapshot already reached the store.
func (d *Debouncer) commit(ctx context.Context, userID string, gen uint64, snap summary.Store) {
	l := d.lane(userID)
	l.mu.Lock()
	defer l.mu.Unlock()

	if gen <= l.written {
		metrics.SyncCoalesced.Inc()
		slog.Debug("stale snapshot dropped", "user", userID, "gen", gen, "written", l.written)
		return
	}
	l.written = gen
	d.write(ctx, userID, snap)
}

func (d *Debouncer) write(ctx context.Context, userID string, snap summary.Store) {
	d.setStatus(userID, model.SyncSaving)

	start := time.Now()
	err := d.store.SaveSummaries(ctx, userID, snap)
	metrics.SyncLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SyncWrites.WithLabelValues("error").Inc()
		slog.Error("summary sync failed", "user", userID, "days", snap.Len(), "err", err)
		d.setStatus(userID, model.SyncError)
		return
	}
	metrics.SyncWrites.WithLabelValues("ok").Inc()
	slog.Debug("summaries synced", "user", userID, "days", snap.Len())
	d.setStatus(userID, model.SyncSaved)
}

// Flush writes every pending snapshot now and waits for in-flight writes.
// Used on shutdown.
func (d *Debouncer) Flush(ctx context.Context) {
	d.mu.Lock()
	due := make(map[string]*pending, len(d.pending))
	for uid, p := range d.pending {
		p.timer.Stop()
		due[uid] = p
	}
	d.pending = make(map[string]*pending)
	d.mu.Unlock()

	for uid, p := range due {
		d.commit(ctx, uid, p.gen, p.snap)
	}
	d.wg.Wait()
}

// Load fetches the user's remote snapshot, reporting loading and then saved
// or error. The second result is false when nothing is stored remotely.
func (d *Debouncer) Load(ctx context.Context, userID string) (summary.Store, bool, error) {
	d.setStatus(userID, model.SyncLoading)

	snap, err := d.store.LoadSummaries(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		d.setStatus(userID, model.SyncSaved)
		return summary.Store{}, false, nil
	}
	if err != nil {
		d.setStatus(userID, model.SyncError)
		return summary.Store{}, false, err
	}
	d.setStatus(userID, model.SyncSaved)
	return snap, true, nil
}

// Status returns the user's current sync status; idle before any activity.
func (d *Debouncer) Status(userID string) model.SyncStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.status[userID]; ok {
		return s
	}
	return model.SyncIdle
}

func (d *Debouncer) setStatus(userID string, s model.SyncStatus) {
	d.mu.Lock()
	d.status[userID] = s
	d.mu.Unlock()

	if d.notify != nil {
		d.notify.SyncStatusChanged(userID, s)
	}
}
