// Package tracker mirrors ZooKeeper child sets into versioned in-memory snapshots.
//
// A Tracker owns one background goroutine that subscribes to a watch path,
// reconciles each delivered child list against its store, and leaves the
// current (version, values) pair readable without blocking.
package tracker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/OliveiraNt/kviz/internal/domain"
	"github.com/OliveiraNt/kviz/internal/snapshot"
	"github.com/OliveiraNt/kviz/internal/utils"
	"github.com/pkg/errors"
)

const (
	notStarted int32 = iota
	starting
	running
	failed
)

const (
	defaultParentWait    = 10 * time.Second
	defaultPartitionWait = 5 * time.Second
	resubscribeDelay     = time.Second
	notificationBuffer   = 16
)

// Options tune tracker waits.
type Options struct {
	ParentWait    time.Duration
	PartitionWait time.Duration
}

// Option mutates Options.
type Option func(*Options)

// WithParentWait bounds how long Start waits for the parent path.
func WithParentWait(d time.Duration) Option {
	return func(o *Options) { o.ParentWait = d }
}

// WithPartitionWait bounds how long the topic tracker waits for a topic's partitions node.
func WithPartitionWait(d time.Duration) Option {
	return func(o *Options) { o.PartitionWait = d }
}

func buildOptions(opts []Option) Options {
	o := Options{ParentWait: defaultParentWait, PartitionWait: defaultPartitionWait}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Tracker serves versioned snapshots of one entity kind.
type Tracker[V any] struct {
	kind       string
	coord      domain.Coordinator
	parentPath string
	watchPath  string
	parentWait time.Duration
	store      *snapshot.Store[V]
	reconciler *Reconciler[V]

	state  atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newTracker[V any](kind string, coord domain.Coordinator, parentPath, watchPath string, parentWait time.Duration, skip func(string) bool, fetch Fetcher[V]) *Tracker[V] {
	store := snapshot.New[V]()
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker[V]{
		kind:       kind,
		coord:      coord,
		parentPath: parentPath,
		watchPath:  watchPath,
		parentWait: parentWait,
		store:      store,
		reconciler: NewReconciler(kind, watchPath, skip, fetch, store),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Start waits for the parent path and launches the background worker.
// It can be called once; later calls return ErrAlreadyStarted. A parent path
// that does not appear in time is fatal and returned as an error.
func (t *Tracker[V]) Start() error {
	if !t.state.CompareAndSwap(notStarted, starting) {
		return ErrAlreadyStarted
	}
	if err := t.coord.WaitUntilExists(t.ctx, t.parentPath, t.parentWait); err != nil {
		t.state.Store(failed)
		close(t.done)
		return errors.Wrapf(err, "%s tracker: waiting for %s", t.kind, t.parentPath)
	}
	t.state.Store(running)
	utils.Logger.Info("tracker started", "kind", t.kind, "path", t.watchPath)
	go t.run()
	return nil
}

// Started reports whether Start has been called, whatever its outcome.
func (t *Tracker[V]) Started() bool {
	return t.state.Load() != notStarted
}

// Running reports whether Start succeeded and the worker is serving.
func (t *Tracker[V]) Running() bool {
	return t.state.Load() == running
}

// GetSnapshot returns the current snapshot, or false when sinceVersion is
// non-zero and not older than the current version.
func (t *Tracker[V]) GetSnapshot(sinceVersion uint64) (domain.Snapshot[V], bool) {
	return t.store.Since(sinceVersion)
}

// Changed returns a channel closed on the next snapshot change.
func (t *Tracker[V]) Changed() <-chan struct{} {
	return t.store.Changed()
}

// Close stops the worker and its subscription. Work in flight is abandoned.
func (t *Tracker[V]) Close() {
	t.cancel()
	if t.state.Load() != notStarted {
		<-t.done
	}
}

func (t *Tracker[V]) run() {
	defer close(t.done)
	ctx := t.ctx

	notifications := make(chan []string, notificationBuffer)
	listener := func(_ string, children []string) {
		select {
		case notifications <- children:
		case <-ctx.Done():
		}
	}
	for {
		err := t.coord.SubscribeChildChanges(ctx, t.watchPath, listener)
		if err == nil {
			break
		}
		utils.Logger.Error("subscribe failed", "kind", t.kind, "path", t.watchPath, "err", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeDelay):
		}
	}

	children, err := t.coord.Children(t.watchPath)
	if err != nil {
		utils.Logger.Warn("initial listing failed", "kind", t.kind, "path", t.watchPath, "err", err)
	} else {
		t.reconciler.Reconcile(ctx, children)
	}

	for {
		select {
		case <-ctx.Done():
			utils.Logger.Info("tracker stopped", "kind", t.kind)
			return
		case children := <-notifications:
			t.reconciler.Reconcile(ctx, children)
		}
	}
}
