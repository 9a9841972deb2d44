package progress

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/studysync/internal/beacon"
	"github.com/JakeFAU/studysync/internal/cache"
	"github.com/JakeFAU/studysync/internal/catalog"
	"github.com/JakeFAU/studysync/internal/clock"
	"github.com/JakeFAU/studysync/internal/clock/system"
	"github.com/JakeFAU/studysync/internal/notify"
	"github.com/JakeFAU/studysync/internal/policy/backoff"
	"github.com/JakeFAU/studysync/internal/store"
)

var (
	// ErrNoUser is returned when an operation needs a resolved user id.
	ErrNoUser = errors.New("progress: user not identified")
	// ErrFlushInProgress is returned by Flush while another flush is running.
	ErrFlushInProgress = errors.New("progress: flush already in flight")
	// ErrClosed is returned once the Syncer has been closed.
	ErrClosed = errors.New("progress: syncer closed")
	// ErrInvalidGoal is returned by Toggle for malformed coordinates.
	ErrInvalidGoal = errors.New("progress: invalid goal")
)

// State is the hydration lifecycle of a Syncer.
type State int

// Lifecycle states.
const (
	StateUninitialized State = iota
	StateHydrating
	StateReady
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateHydrating:
		return "hydrating"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// RetryPolicy decides whether and when a failed flush is retried.
type RetryPolicy interface {
	// Allow reports whether another try may follow failures consecutive failures.
	Allow(failures int) bool
	// Backoff returns the wait before the next try.
	Backoff(attempt int) time.Duration
}

// Config wires a Syncer.
//   - Store: remote progress store (required).
//   - Identity: resolves the session user for Identify.
//   - Catalog: declared goal counts (defaults to an empty catalog).
//   - Debounce: quiet period before a batch flush (default 3s).
//   - FlushTimeout: bound on every batch request (default 10s).
//   - ProgressTTL / StatsTTL: cache lifetimes (defaults 60s / 30s).
//   - Clock, Notifier, Observer, Beacon, Retry, Logger: optional collaborators.
type Config struct {
	Store    store.ProgressStore
	Identity store.Identity
	Catalog  *catalog.Catalog

	Debounce     time.Duration
	FlushTimeout time.Duration
	ProgressTTL  time.Duration
	StatsTTL     time.Duration

	Clock    clock.Clock
	Notifier notify.Notifier
	Observer Observer
	Beacon   *beacon.Dispatcher
	Retry    RetryPolicy
	Logger   *zap.Logger
}

const (
	defaultDebounce     = 3000 * time.Millisecond
	defaultFlushTimeout = 10 * time.Second
	defaultProgressTTL  = 60 * time.Second
	defaultStatsTTL     = 30 * time.Second
)

type pendingEntry struct {
	update store.Update
	rev    uint64
}

// Syncer owns one user session's progress tree, pending updates and caches.
// It is safe for concurrent use; Toggle never blocks on I/O.
type Syncer struct {
	cfg    Config
	logger *zap.Logger
	group  singleflight.Group

	progressCache *cache.TTL[Tree]
	statsCache    *cache.TTL[store.StatsSummary]

	mu         sync.Mutex
	catalog    *catalog.Catalog
	user       store.User
	state      State
	tree       Tree
	pending    map[string]pendingEntry
	rev        uint64
	persistGen uint64
	inFlight   bool
	failures   int
	timer      clock.Timer
	timerSeq   uint64
	closed     bool
	callbacks  sync.WaitGroup
}

// New validates cfg and returns an idle Syncer in StateUninitialized.
func New(cfg Config) (*Syncer, error) {
	if cfg.Store == nil {
		return nil, errors.New("progress: store is required")
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Empty()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = defaultFlushTimeout
	}
	if cfg.ProgressTTL <= 0 {
		cfg.ProgressTTL = defaultProgressTTL
	}
	if cfg.StatsTTL <= 0 {
		cfg.StatsTTL = defaultStatsTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = system.New()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop{}
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.Retry == nil {
		cfg.Retry = backoff.New(backoff.Config{})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Beacon == nil {
		cfg.Beacon = beacon.New(cfg.FlushTimeout, logger)
	}
	return &Syncer{
		cfg:           cfg,
		logger:        logger.Named("progress"),
		progressCache: cache.New[Tree](cfg.ProgressTTL),
		statsCache:    cache.New[store.StatsSummary](cfg.StatsTTL),
		catalog:       cfg.Catalog,
		tree:          make(Tree),
		pending:       make(map[string]pendingEntry),
	}, nil
}

// Identify resolves the session user through the configured Identity.
func (s *Syncer) Identify(ctx context.Context) (store.User, error) {
	if s.cfg.Identity == nil {
		return store.User{}, fmt.Errorf("identify: %w", ErrNoUser)
	}
	user, err := s.cfg.Identity.CurrentUser(ctx)
	if err != nil {
		s.cfg.Notifier.Notify(notify.FromError(notify.OpIdentify, err))
		return store.User{}, fmt.Errorf("identify: %w", err)
	}
	s.SetUser(user)
	return user, nil
}

// SetUser binds the session to user. Switching to a different user id
// discards the tree, pending set and caches of the previous one.
func (s *Syncer) SetUser(user store.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user.ID != "" && s.user.ID != user.ID {
		s.tree = make(Tree)
		s.pending = make(map[string]pendingEntry)
		s.state = StateUninitialized
		s.failures = 0
		s.stopTimerLocked()
		s.progressCache.Invalidate()
		s.statsCache.Invalidate()
		s.cfg.Observer.PendingChanged(0)
	}
	s.user = user
}

// User returns the bound user; the zero User before identification.
func (s *Syncer) User() store.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Hydrate returns the progress tree, from cache while it is fresh unless
// forceRefresh is set. Concurrent fetches share one request. Updates still
// pending are overlaid on fetched data so local changes survive a refetch.
func (s *Syncer) Hydrate(ctx context.Context, forceRefresh bool) (Tree, error) {
	s.mu.Lock()
	userID := s.user.ID
	if userID == "" {
		s.mu.Unlock()
		return nil, fmt.Errorf("hydrate progress: %w", ErrNoUser)
	}
	if !forceRefresh {
		if tree, ok := s.progressCache.Get(s.cfg.Clock.Now()); ok {
			out := tree.Clone()
			s.mu.Unlock()
			s.cfg.Observer.Hydrated(SourceCache, ResultOK)
			return out, nil
		}
	}
	s.mu.Unlock()

	// The shared fetch must not inherit one caller's cancellation; each
	// caller stops waiting on its own ctx instead.
	ch := s.group.DoChan(string(userID), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FlushTimeout)
		defer cancel()
		return s.fetchTree(fetchCtx, userID)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("hydrate progress: %w", ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	tree, ok := res.Val.(Tree)
	if !ok {
		return nil, fmt.Errorf("hydrate progress: unexpected result %T", res.Val)
	}
	return tree.Clone(), nil
}

func (s *Syncer) fetchTree(ctx context.Context, userID store.UserID) (Tree, error) {
	s.mu.Lock()
	if s.state == StateUninitialized {
		s.state = StateHydrating
	}
	gen := s.persistGen
	cat := s.catalog
	s.mu.Unlock()

	records, err := s.cfg.Store.FetchProgress(ctx, userID)
	if err != nil {
		s.mu.Lock()
		if s.state == StateHydrating {
			s.state = StateUninitialized
		}
		s.mu.Unlock()
		s.cfg.Observer.Hydrated(SourceRemote, ResultError)
		s.cfg.Notifier.Notify(notify.FromError(notify.OpLoad, err))
		s.logger.Warn("hydrate failed", zap.String("user_id", string(userID)), zap.Error(err))
		return nil, fmt.Errorf("hydrate progress: %w", err)
	}

	tree, skipped := transform(records, cat)
	if skipped > 0 {
		s.logger.Warn("skipped malformed progress records",
			zap.String("user_id", string(userID)),
			zap.Int("skipped", skipped),
		)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user.ID != userID {
		return nil, fmt.Errorf("hydrate progress: %w", ErrNoUser)
	}
	for _, entry := range s.pending {
		u := entry.update
		tree.set(u.Identifier, u.Level, u.GoalIndex, u.Completed, s.catalog.GoalCount(u.Identifier, u.Level))
	}
	s.tree = tree
	// A batch persisted while the fetch was running may be missing from the
	// snapshot; keep the tree but let the next read refetch.
	if gen == s.persistGen {
		s.progressCache.Set(s.cfg.Clock.Now(), tree)
	}
	s.state = StateReady
	s.cfg.Observer.Hydrated(SourceRemote, ResultOK)
	s.logger.Debug("hydrated progress",
		zap.String("user_id", string(userID)),
		zap.Int("records", len(records)),
		zap.Int("identifiers", len(tree)),
	)
	return tree.Clone(), nil
}

// SetCatalog swaps the declared goal counts. Existing sequences grow to the
// new counts but never shrink.
func (s *Syncer) SetCatalog(cat *catalog.Catalog) {
	if cat == nil {
		cat = catalog.Empty()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = cat
	for id, levels := range s.tree {
		for level, goals := range levels {
			levels[level] = extend(goals, capLength(cat.GoalCount(id, level)))
		}
	}
}

// Toggle records a goal change. It updates the tree immediately, queues the
// update under its dedup key and re-arms the debounced flush.
func (s *Syncer) Toggle(identifier string, level store.Level, goalIndex int, completed bool) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return fmt.Errorf("%w: empty identifier", ErrInvalidGoal)
	}
	if !level.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidGoal, store.ErrInvalidLevel, level)
	}
	if !validGoalIndex(goalIndex) {
		return fmt.Errorf("%w: goal index %d outside [0, %d]", ErrInvalidGoal, goalIndex, MaxGoalIndex)
	}

	n, err := s.applyToggle(store.Update{Identifier: identifier, Level: level, GoalIndex: goalIndex, Completed: completed})
	if err != nil {
		return err
	}

	s.cfg.Observer.PendingChanged(n)
	s.cfg.Notifier.Notify(notify.GoalToggled(completed))
	return nil
}

func (s *Syncer) applyToggle(u store.Update) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	s.tree.set(u.Identifier, u.Level, u.GoalIndex, u.Completed, s.catalog.GoalCount(u.Identifier, u.Level))
	s.rev++
	s.pending[u.Key()] = pendingEntry{update: u, rev: s.rev}
	s.armLocked(s.cfg.Debounce)
	return len(s.pending), nil
}

// armLocked replaces the shared flush timer with one firing after d. Callers
// hold s.mu.
func (s *Syncer) armLocked(d time.Duration) {
	if s.closed {
		return
	}
	s.stopTimerLocked()
	s.timerSeq++
	seq := s.timerSeq
	s.timer = s.cfg.Clock.AfterFunc(d, func() { s.onTimer(seq) })
}

func (s *Syncer) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerSeq++
}

func (s *Syncer) onTimer(seq uint64) {
	s.mu.Lock()
	if s.closed || seq != s.timerSeq {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.callbacks.Add(1)
	s.mu.Unlock()
	defer s.callbacks.Done()

	if err := s.Flush(context.Background()); err != nil && !errors.Is(err, ErrFlushInProgress) {
		s.logger.Debug("scheduled flush failed", zap.Error(err))
	}
}

// Flush persists a snapshot of the pending set in one batch request. It is a
// no-op when nothing is pending and returns ErrFlushInProgress while another
// flush runs. On success only entries unchanged since the snapshot are
// dropped and both caches are invalidated; on failure everything stays
// queued. Transient failures schedule a retry.
func (s *Syncer) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return ErrFlushInProgress
	}
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return nil
	}
	userID := s.user.ID
	if userID == "" {
		s.mu.Unlock()
		return fmt.Errorf("flush progress: %w", ErrNoUser)
	}
	snapshot := s.snapshotLocked()
	s.inFlight = true
	// The snapshot covers everything queued so far; the debounce or retry
	// timer is re-armed by later toggles or by the outcome below.
	s.stopTimerLocked()
	s.mu.Unlock()

	updates := make([]store.Update, len(snapshot))
	for i, entry := range snapshot {
		updates[i] = entry.update
	}

	start := s.cfg.Clock.Now()
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.FlushTimeout)
	err := s.cfg.Store.BatchUpdate(reqCtx, userID, updates)
	timedOut := errors.Is(reqCtx.Err(), context.DeadlineExceeded)
	cancel()
	dur := s.cfg.Clock.Now().Sub(start)

	if err == nil {
		s.mu.Lock()
		s.inFlight = false
		for _, entry := range snapshot {
			key := entry.update.Key()
			if cur, ok := s.pending[key]; ok && cur.rev == entry.rev {
				delete(s.pending, key)
			}
		}
		s.progressCache.Invalidate()
		s.statsCache.Invalidate()
		s.persistGen++
		s.failures = 0
		remaining := len(s.pending)
		if remaining > 0 {
			s.armLocked(s.cfg.Debounce)
		}
		s.mu.Unlock()

		s.cfg.Observer.Flushed(len(updates), ResultOK, dur)
		s.cfg.Observer.PendingChanged(remaining)
		s.logger.Debug("flushed progress batch",
			zap.Int("updates", len(updates)),
			zap.Int("remaining", remaining),
			zap.Duration("dur", dur),
		)
		return nil
	}

	result := ResultError
	if timedOut {
		result = ResultTimeout
		err = fmt.Errorf("%w: %w", store.ErrNetwork, err)
	}

	s.mu.Lock()
	s.inFlight = false
	s.failures++
	failures := s.failures
	var delay time.Duration
	retry := store.Retryable(err) && s.cfg.Retry.Allow(failures)
	if retry {
		delay = s.cfg.Retry.Backoff(failures - 1)
		s.armLocked(delay)
	}
	s.mu.Unlock()

	s.cfg.Observer.Flushed(len(updates), result, dur)
	if retry {
		s.cfg.Observer.RetryScheduled(failures, delay)
	}
	s.cfg.Notifier.Notify(notify.FromError(notify.OpSave, err))
	s.logger.Warn("flush failed",
		zap.Int("updates", len(updates)),
		zap.Int("failures", failures),
		zap.Bool("retry", retry),
		zap.Duration("retry_in", delay),
		zap.Error(err),
	)
	return fmt.Errorf("flush progress: %w", err)
}

// snapshotLocked copies the pending set in key order.
func (s *Syncer) snapshotLocked() []pendingEntry {
	out := make([]pendingEntry, 0, len(s.pending))
	for _, entry := range s.pending {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].update.Key() < out[j].update.Key() })
	return out
}

// ForceFlush hands the current pending set to the beacon transport and
// returns at once. Nothing is reported back and the pending set is kept.
func (s *Syncer) ForceFlush() {
	s.mu.Lock()
	userID := s.user.ID
	if userID == "" || len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	updates := make([]store.Update, len(snapshot))
	for i, entry := range snapshot {
		updates[i] = entry.update
	}
	st := s.cfg.Store
	s.cfg.Beacon.Send("batch-update", func(ctx context.Context) error {
		return st.BatchUpdate(ctx, userID, updates)
	})
}

// Pending returns the queued updates in key order.
func (s *Syncer) Pending() []store.Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.snapshotLocked()
	out := make([]store.Update, len(snapshot))
	for i, entry := range snapshot {
		out[i] = entry.update
	}
	return out
}

// State reports the hydration lifecycle state.
func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TimerArmed reports whether a flush is scheduled.
func (s *Syncer) TimerArmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// FlushInFlight reports whether a batch request is running.
func (s *Syncer) FlushInFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Tree returns a copy of the in-memory tree without touching the network.
func (s *Syncer) Tree() Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Clone()
}

// Reset drops identifier from the in-memory tree. Nothing is persisted;
// queued updates for it are still sent.
func (s *Syncer) Reset(identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tree, identifier)
}

// Close stops the flush timer, hands pending updates to the beacon and waits
// up to ctx for in-flight work to finish. Further toggles fail with ErrClosed.
func (s *Syncer) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopTimerLocked()
	s.mu.Unlock()

	s.ForceFlush()

	done := make(chan struct{})
	go func() {
		s.callbacks.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("progress close wait: %w", ctx.Err())
	}
	if err := s.cfg.Beacon.Wait(ctx); err != nil {
		return fmt.Errorf("progress close: %w", err)
	}
	return nil
}
