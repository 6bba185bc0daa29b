// Package orchestrator drives the sync cycle: when to pull, merge, save and
// push, and how outcomes surface as status.
//
// The orchestrator:
// 1. Pulls and replaces the local snapshot once on startup
// 2. Periodically pulls and merges the remote snapshot (best effort)
// 3. Pushes after local edits with debouncing, and optionally on a timer
// 4. Pushes once on shutdown
//
// Cycles never overlap: every trigger funnels through a non-reentrant guard
// and an already-running cycle causes the new trigger to be skipped.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lytodo/lytodo/internal/client"
	"github.com/lytodo/lytodo/internal/merge"
	"github.com/lytodo/lytodo/internal/snapshot"
)

// State is the orchestrator's position in the sync cycle.
type State int

const (
	StateIdle State = iota
	StatePulling
	StateMerging
	StateSaving
	StatePushing
	// StateDisabled means sync is off or the transport is unavailable.
	// No timers run and all sync entry points are no-ops.
	StateDisabled
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePulling:
		return "pulling"
	case StateMerging:
		return "merging"
	case StateSaving:
		return "saving"
	case StatePushing:
		return "pushing"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Status is the user-visible outcome of the latest sync attempt.
type Status struct {
	Message string
	OK      bool
	At      time.Time
}

// Config holds orchestrator configuration.
type Config struct {
	// PullInterval is how often the background pull-merge runs.
	PullInterval time.Duration

	// PushInterval is how often the background push runs, when the
	// sync_timer_enabled preference is set.
	PushInterval time.Duration

	// PushDebounce is the quiet period after a local edit before the
	// edit-triggered push fires.
	PushDebounce time.Duration

	// StatusThrottle bounds how often debounced-push success is surfaced,
	// to avoid status flicker during rapid edits.
	StatusThrottle time.Duration

	// Notifier receives sync events; nil disables notification.
	Notifier Notifier

	// Logger for orchestrator activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PullInterval:   8 * time.Second,
		PushInterval:   60 * time.Second,
		PushDebounce:   3 * time.Second,
		StatusThrottle: 8 * time.Second,
		Logger:         log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
}

// Orchestrator owns the in-memory snapshot and the sync schedule.
type Orchestrator struct {
	storagePath string
	config      *Config

	mu        sync.Mutex // guards snap, transport, state, status, ignoreUntil
	snap      snapshot.Snapshot
	transport *client.Client
	state     State
	status    Status

	// ignoreUntil suppresses watcher events caused by our own writes.
	ignoreUntil time.Time

	// cycleMu is the non-reentrancy guard: TryLock failing means a cycle
	// is in flight and the trigger is skipped.
	cycleMu sync.Mutex

	debounce       *time.Timer
	debounceMu     sync.Mutex
	lastAutoStatus time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an orchestrator for the snapshot file at storagePath. The
// snapshot is loaded (or seeded) immediately; sync configuration comes from
// its settings.
func New(storagePath string, config *Config) (*Orchestrator, error) {
	if storagePath == "" {
		return nil, fmt.Errorf("storagePath cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}

	snap, err := snapshot.Load(storagePath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	o := &Orchestrator{
		storagePath: storagePath,
		config:      config,
		snap:        snap,
		state:       StateIdle,
		ctx:         ctx,
		cancel:      cancel,
	}
	o.transport = o.newClient(snap.Settings)
	return o, nil
}

func (o *Orchestrator) newClient(s snapshot.Settings) *client.Client {
	return client.New(s.SyncBaseURL, s.SyncToken, s.SyncUser)
}

func (o *Orchestrator) enabledLocked(s snapshot.Settings) bool {
	return s.SyncEnabled && o.transport.Available()
}

// Enabled reports whether sync is configured and the transport is available.
func (o *Orchestrator) Enabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.enabledLocked(o.snap.Settings)
}

// State returns the current cycle state. Whenever sync is off or the
// transport is unavailable this is StateDisabled, regardless of history.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.enabledLocked(o.snap.Settings) {
		return StateDisabled
	}
	return o.state
}

// Status returns the outcome of the latest sync attempt.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Snapshot returns a copy of the in-memory snapshot.
func (o *Orchestrator) Snapshot() snapshot.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snap.Clone()
}

// Update applies a local edit to the in-memory snapshot, persists it, and
// arms the debounced push. This is the funnel for every local mutation.
func (o *Orchestrator) Update(edit func(*snapshot.Snapshot)) error {
	o.mu.Lock()
	edit(&o.snap)
	err := o.saveLocked()
	o.mu.Unlock()
	if err != nil {
		return err
	}
	o.MarkDirty()
	return nil
}

// saveLocked persists the in-memory snapshot. Callers hold o.mu.
func (o *Orchestrator) saveLocked() error {
	o.ignoreUntil = time.Now().Add(2 * time.Second)
	return snapshot.Save(o.storagePath, o.snap)
}

// Start runs the sync schedule until ctx is cancelled, then performs the
// shutdown push. When sync is disabled it idles without timers.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.Enabled() {
		o.setStatus("sync not enabled", false)
		o.config.Logger.Println("Sync disabled; orchestrator idle")
		select {
		case <-ctx.Done():
		case <-o.ctx.Done():
		}
		return nil
	}

	o.config.Logger.Println("Starting sync orchestrator")

	// Startup pull: replace local state with the server's copy once.
	o.StartupPull(ctx)

	if err := o.startWatcher(); err != nil {
		o.config.Logger.Printf("Snapshot watcher unavailable: %v", err)
	}

	o.wg.Add(2)
	go o.pullLoop()
	go o.pushLoop()

	select {
	case <-ctx.Done():
		o.config.Logger.Println("Shutdown signal received")
		return o.Stop()
	case <-o.ctx.Done():
		return nil
	}
}

// Stop shuts the orchestrator down: timers stop, then one best-effort push
// preserves the final local state. The process is exiting regardless, so a
// push failure is logged and swallowed.
func (o *Orchestrator) Stop() error {
	o.config.Logger.Println("Stopping sync orchestrator")

	o.cancel()
	o.stopDebounce()
	o.wg.Wait()

	if o.Enabled() {
		// A debounce callback that fired just before cancellation may still
		// be mid-cycle; Timer.Stop does not wait for it. Taking the guard
		// here keeps the shutdown push serialized behind it.
		o.cycleMu.Lock()
		ctx, cancel := context.WithTimeout(context.Background(), client.Timeout)
		err := o.saveAndPush(ctx)
		cancel()
		o.cycleMu.Unlock()
		if err != nil {
			o.config.Logger.Printf("Shutdown push failed: %v", err)
		}
	}

	o.config.Logger.Println("Sync orchestrator stopped")
	return nil
}

// pullLoop runs the periodic background pull-merge.
func (o *Orchestrator) pullLoop() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.config.PullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			o.PeriodicPull()
		}
	}
}

// pushLoop runs the periodic background push, gated on the
// sync_timer_enabled preference at each tick.
func (o *Orchestrator) pushLoop() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.config.PushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			o.PeriodicPush()
		}
	}
}

// StartupPull replaces the local snapshot with the server's copy and
// reloads it. Unlike the periodic pull this is replace, not merge: at
// launch the server is the source of truth.
func (o *Orchestrator) StartupPull(ctx context.Context) {
	if !o.Enabled() {
		return
	}
	if !o.cycleMu.TryLock() {
		return
	}
	defer o.cycleMu.Unlock()

	o.setState(StatePulling)
	defer o.setState(StateIdle)

	o.mu.Lock()
	o.ignoreUntil = time.Now().Add(2 * time.Second)
	transport := o.transport
	o.mu.Unlock()

	changed, err := transport.PullToFile(ctx, o.storagePath)
	if err != nil {
		o.setStatus("startup pull failed", false)
		o.config.Logger.Printf("Startup pull failed: %v", err)
		return
	}
	if changed {
		snap, err := snapshot.Load(o.storagePath)
		if err != nil {
			o.config.Logger.Printf("Failed to reload pulled snapshot: %v", err)
			o.setStatus("startup pull failed", false)
			return
		}
		o.mu.Lock()
		o.snap = snap
		o.transport = o.newClient(snap.Settings)
		o.mu.Unlock()
	}
	o.setStatus("pulled from server", true)
	o.notify(Event{Type: EventPullComplete, Message: "startup pull", OK: true})
}

// PeriodicPull pulls the remote snapshot into a temporary file, merges it
// into the in-memory snapshot and persists the result. Failures are logged
// and swallowed: this is a best-effort consistency refresh, never fatal.
func (o *Orchestrator) PeriodicPull() {
	if !o.Enabled() {
		return
	}
	if !o.cycleMu.TryLock() {
		return // a cycle is in flight; skip, never overlap
	}
	defer o.cycleMu.Unlock()

	ctx, cancel := context.WithTimeout(o.ctx, client.Timeout)
	defer cancel()

	if err := o.pullMerge(ctx); err != nil {
		o.config.Logger.Printf("Background pull failed: %v", err)
	}
}

// PeriodicPush saves and pushes on the background timer. Failures are
// reported through status but never stop the timer.
func (o *Orchestrator) PeriodicPush() {
	o.mu.Lock()
	timerEnabled := o.snap.Settings.SyncTimerEnabled
	o.mu.Unlock()
	if !timerEnabled || !o.Enabled() {
		return
	}
	if !o.cycleMu.TryLock() {
		return
	}
	defer o.cycleMu.Unlock()

	ctx, cancel := context.WithTimeout(o.ctx, client.Timeout)
	defer cancel()

	if err := o.saveAndPush(ctx); err != nil {
		o.setStatus("sync failed", false)
		o.config.Logger.Printf("Background push failed: %v", err)
		return
	}
	o.setStatus("synced", true)
}

// ManualSync performs pull-merge-save-push synchronously and reports a
// distinct outcome for each way it can decline or fail.
func (o *Orchestrator) ManualSync(ctx context.Context) Status {
	o.mu.Lock()
	enabled := o.snap.Settings.SyncEnabled
	available := o.transport.Available()
	o.mu.Unlock()

	switch {
	case !enabled:
		return o.setStatus("sync not enabled", false)
	case !available:
		return o.setStatus("sync unavailable", false)
	}

	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	if err := o.pullMerge(ctx); err != nil {
		o.config.Logger.Printf("Manual sync pull failed: %v", err)
		return o.setStatus(fmt.Sprintf("sync failed: %v", err), false)
	}
	if err := o.saveAndPush(ctx); err != nil {
		o.config.Logger.Printf("Manual sync push failed: %v", err)
		return o.setStatus(fmt.Sprintf("push failed: %v", err), false)
	}
	return o.setStatus("sync complete", true)
}

// MarkDirty records that the snapshot changed locally and restarts the
// debounce timer. When the timer fires with no further edits, one push
// happens. Only active when the edit-triggered push preference is set.
func (o *Orchestrator) MarkDirty() {
	o.mu.Lock()
	strategyB := o.snap.Settings.SyncStrategyB
	o.mu.Unlock()
	if !strategyB || !o.Enabled() {
		return
	}

	o.debounceMu.Lock()
	defer o.debounceMu.Unlock()
	if o.debounce == nil {
		o.debounce = time.AfterFunc(o.config.PushDebounce, o.DebouncedPush)
		return
	}
	o.debounce.Reset(o.config.PushDebounce)
}

func (o *Orchestrator) stopDebounce() {
	o.debounceMu.Lock()
	defer o.debounceMu.Unlock()
	if o.debounce != nil {
		o.debounce.Stop()
	}
}

// DebouncedPush is the edit-triggered push. Success status is throttled so
// rapid edit bursts don't cause indicator flicker.
func (o *Orchestrator) DebouncedPush() {
	if !o.Enabled() {
		return
	}
	if !o.cycleMu.TryLock() {
		return
	}
	defer o.cycleMu.Unlock()

	ctx, cancel := context.WithTimeout(o.ctx, client.Timeout)
	defer cancel()

	if err := o.saveAndPush(ctx); err != nil {
		o.setStatus("sync failed", false)
		o.config.Logger.Printf("Debounced push failed: %v", err)
		return
	}

	o.mu.Lock()
	throttled := time.Since(o.lastAutoStatus) < o.config.StatusThrottle
	if !throttled {
		o.lastAutoStatus = time.Now()
	}
	o.mu.Unlock()
	if !throttled {
		o.setStatus("auto-synced", true)
	}
}

// pullMerge pulls the remote snapshot into a temp file and merges it into
// the in-memory snapshot. Callers hold cycleMu.
func (o *Orchestrator) pullMerge(ctx context.Context) error {
	o.setState(StatePulling)
	defer o.setState(StateIdle)

	o.mu.Lock()
	transport := o.transport
	o.mu.Unlock()

	tmp := filepath.Join(os.TempDir(), "lytodo_remote_snapshot.json")
	changed, err := transport.PullToFile(ctx, tmp)
	if err != nil {
		return err
	}
	if !changed {
		return nil // remote unchanged since last pull
	}

	remote, err := snapshot.Load(tmp)
	if err != nil {
		return fmt.Errorf("failed to load remote snapshot: %w", err)
	}

	o.setState(StateMerging)

	o.mu.Lock()
	merged, stats := merge.Merge(o.snap, remote)
	o.snap = merged
	err = o.saveLocked()
	o.mu.Unlock()
	if err != nil {
		return err
	}

	o.notify(Event{
		Type:    EventMergeStats,
		Message: fmt.Sprintf("merged: %d tasks adopted, %d kept", stats.TasksAdopted, stats.TasksKept),
		OK:      true,
		Stats:   stats,
	})
	return nil
}

// saveAndPush persists the in-memory snapshot and pushes the file.
// Callers hold cycleMu.
func (o *Orchestrator) saveAndPush(ctx context.Context) error {
	o.setState(StateSaving)
	defer o.setState(StateIdle)

	o.mu.Lock()
	err := o.saveLocked()
	transport := o.transport
	o.mu.Unlock()
	if err != nil {
		return err
	}

	o.setState(StatePushing)
	if err := transport.PushFromFile(ctx, o.storagePath); err != nil {
		return err
	}
	o.notify(Event{Type: EventPushComplete, Message: "pushed", OK: true})
	return nil
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) setStatus(msg string, ok bool) Status {
	st := Status{Message: msg, OK: ok, At: time.Now()}
	o.mu.Lock()
	o.status = st
	o.mu.Unlock()
	o.notify(Event{Type: EventStatus, Message: msg, OK: ok})
	return st
}
