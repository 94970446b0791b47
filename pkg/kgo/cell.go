package kgo

import "sync/atomic"

// StateCell is the single-writer serialized mutator over ClusterState
// (spec §4.D). Writers are serialized by writeMu, which also gives us the
// thundering-herd coalescing property: concurrent callers that all detect
// the same fault enqueue behind one writer, and by the time each of their
// closures runs, an earlier one in the queue may have already refreshed
// the state they needed (spec §4.D "short-circuit rule", §5).
type StateCell struct {
	writeMu chan struct{} // 1-buffered mutex-as-channel, see Update
	val     atomic.Pointer[ClusterState]
}

// NewStateCell constructs a cell already holding initial.
func NewStateCell(initial *ClusterState) *StateCell {
	c := &StateCell{writeMu: make(chan struct{}, 1)}
	c.writeMu <- struct{}{}
	c.val.Store(initial)
	return c
}

// Peek is a non-blocking, lock-free read of the last committed state
// (spec §4.D).
func (c *StateCell) Peek() *ClusterState {
	return c.val.Load()
}

// Update enqueues f, applies it to the currently-committed state, and
// commits the result (spec §4.D). No two updaters run concurrently.
func (c *StateCell) Update(f func(*ClusterState) *ClusterState) *ClusterState {
	<-c.writeMu
	defer func() { c.writeMu <- struct{}{} }()

	next := f(c.Peek())
	c.val.Store(next)
	return next
}

// UpdateWithResult is like Update but also threads a result back to the
// caller that submitted f (spec §4.D). It is a free function, not a
// method, because Go methods cannot carry their own type parameters.
func UpdateWithResult[R any](c *StateCell, f func(*ClusterState) (*ClusterState, R)) R {
	<-c.writeMu
	defer func() { c.writeMu <- struct{}{} }()

	next, r := f(c.Peek())
	c.val.Store(next)
	return r
}

// UpdateAsyncState is the common case of UpdateAsync where the result
// callers want back is simply the committed state itself.
func (c *StateCell) UpdateAsyncState(f func(*ClusterState) (*ClusterState, error)) (*ClusterState, error) {
	return UpdateAsync(c, func(cur *ClusterState) (*ClusterState, *ClusterState, error) {
		next, err := f(cur)
		if err != nil {
			return cur, cur, err
		}
		return next, next, nil
	})
}

// UpdateAsync holds the writer slot for the duration of f, so other
// updaters queue behind it (spec §4.D updateAsync). f may perform I/O
// (channel opens, metadata fetches); any state mutation f wants committed
// must be returned, not applied to a snapshot taken before acquiring the
// slot is stale once held exclusively here.
func UpdateAsync[R any](c *StateCell, f func(*ClusterState) (*ClusterState, R, error)) (R, error) {
	<-c.writeMu
	defer func() { c.writeMu <- struct{}{} }()

	next, r, err := f(c.Peek())
	if err != nil {
		var zero R
		return zero, err
	}
	c.val.Store(next)
	return r, nil
}
