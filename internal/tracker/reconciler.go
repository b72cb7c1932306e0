package tracker

import (
	"context"
	"sort"

	"github.com/OliveiraNt/kviz/internal/snapshot"
	"github.com/OliveiraNt/kviz/internal/utils"
	"github.com/pkg/errors"
)

// Fetcher loads the record for a newly observed key.
type Fetcher[V any] func(ctx context.Context, key string) (V, error)

// Reconciler keeps a store's key set equal to the children of one watched path.
// Reconcile is not safe for concurrent use; the owning tracker calls it from a
// single goroutine.
type Reconciler[V any] struct {
	kind      string
	watchPath string
	skip      func(key string) bool
	fetch     Fetcher[V]
	store     *snapshot.Store[V]
}

// NewReconciler creates a reconciler applying changes under watchPath to store.
// skip may be nil.
func NewReconciler[V any](kind, watchPath string, skip func(string) bool, fetch Fetcher[V], store *snapshot.Store[V]) *Reconciler[V] {
	return &Reconciler[V]{
		kind:      kind,
		watchPath: watchPath,
		skip:      skip,
		fetch:     fetch,
		store:     store,
	}
}

// Reconcile applies the difference between children and the stored keys.
// Removals are applied first, then each addition is fetched and inserted.
// A key whose fetch fails is logged and left out; it is retried on the next
// call that still lists it.
func (r *Reconciler[V]) Reconcile(ctx context.Context, children []string) {
	notified := make(map[string]struct{}, len(children))
	for _, c := range children {
		notified[c] = struct{}{}
	}
	current := r.store.Keys()

	var toRemove, toAdd []string
	for k := range current {
		if _, ok := notified[k]; !ok {
			toRemove = append(toRemove, k)
		}
	}
	for k := range notified {
		if _, ok := current[k]; ok {
			continue
		}
		if r.skip != nil && r.skip(k) {
			continue
		}
		toAdd = append(toAdd, k)
	}
	if len(toRemove) == 0 && len(toAdd) == 0 {
		utils.Logger.Debug("reconcile no change", "kind", r.kind, "path", r.watchPath, "children", len(children))
		return
	}
	sort.Strings(toRemove)
	sort.Strings(toAdd)

	for _, key := range toRemove {
		if r.store.Remove(key) {
			utils.Logger.Info(r.kind+" deleted", "key", key, "version", r.store.Version())
		}
	}

	for _, key := range toAdd {
		if ctx.Err() != nil {
			utils.Logger.Debug("reconcile abandoned", "kind", r.kind, "pending", key)
			return
		}
		v, err := r.fetchOne(ctx, key)
		if err != nil {
			utils.Logger.Error("fetch "+r.kind+" failed", "key", key, "err", err)
			continue
		}
		r.store.Put(key, v)
		utils.Logger.Info(r.kind+" added", "key", key, "version", r.store.Version())
	}
}

func (r *Reconciler[V]) fetchOne(ctx context.Context, key string) (v V, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("panic fetching %s %s: %v", r.kind, key, p)
		}
	}()
	return r.fetch(ctx, key)
}
