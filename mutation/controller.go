/*
Package mutation implements the optimistic mutation protocol.

PURPOSE:
  Every create/update/delete on a financial or ancillary record follows
  the same six-step transaction against the reconciliation store:

    1. Begin:    deep snapshot of the target collection
    2. Apply:    synchronous optimistic patch (the view reflects the
                 change before the network round-trip completes)
    3. Dispatch: remote call carrying the entity's identity and payload
    4. Success:  merge server-assigned fields, discard the snapshot
    5. Failure:  restore the snapshot (full rollback, never a
                 hand-rolled inverse), leaving entities whose own
                 mutation is still in flight at their current state,
                 and surface a taxonomy error
    6. Settle:   clear the in-flight marker so retry is possible

INVARIANTS:
  - At most one in-flight mutation per entity id: a second request on
    the same id either queues behind settlement or is rejected, never
    interleaved. Interleaved optimistic patches on one entity can
    produce an unrecoverable rollback (snapshot B overwriting A).
  - Rollback restores the pre-mutation snapshot, which stays correct
    even when the optimistic patch and its true inverse diverge.
  - A dispatch that never resolves is bounded by a timeout; expiry
    behaves exactly like a transport failure (rollback + retryable
    error), never a stuck in-flight marker.

SEE ALSO:
  - remote.go: The remote system-of-record interface
  - billing/store: Snapshot/restore semantics
*/
package mutation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/billing/store"
)

// =============================================================================
// REQUESTS
// =============================================================================

type Kind int

const (
	KindCreate Kind = iota
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	}
	return "unknown"
}

// Request describes a single mutation M targeting entity id E.
type Request struct {
	Kind       Kind
	Collection billing.Collection

	// Entity is the optimistic post-mutation shape for creates and
	// updates. Unused for deletes.
	Entity billing.Entity

	// ID is the target entity id for updates and deletes.
	ID string
}

// Result is the settled outcome of a successful mutation.
type Result struct {
	// Entity is the local entity after merging server fields.
	// Nil for deletes.
	Entity billing.Entity
}

// =============================================================================
// CONTROLLER
// =============================================================================

// QueuePolicy decides what happens to a second mutation on an entity
// whose first has not settled.
type QueuePolicy int

const (
	// QueueWait serializes the second mutation behind the first's
	// settlement. Final state equals applying them strictly in order.
	QueueWait QueuePolicy = iota

	// QueueReject fails the second mutation with ErrMutationInFlight.
	QueueReject
)

// Config tunes a Controller. The zero value is usable.
type Config struct {
	// Timeout bounds each remote dispatch. Zero means DefaultTimeout.
	Timeout time.Duration

	// Policy for overlapping mutations on one entity id.
	Policy QueuePolicy

	Logger zerolog.Logger
}

const DefaultTimeout = 10 * time.Second

// Controller applies optimistic mutations to the reconciliation store
// and reconciles them against the remote system of record.
type Controller struct {
	store  *store.Memory
	remote Remote
	cfg    Config
	gates  *gateSet
}

func New(st *store.Memory, remote Remote, cfg Config) *Controller {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Controller{
		store:  st,
		remote: remote,
		cfg:    cfg,
		gates:  newGateSet(),
	}
}

// Store exposes the underlying reconciliation store for read-only
// projections. Views must not mutate it directly.
func (c *Controller) Store() *store.Memory { return c.store }

// Do runs one mutation through the full protocol. Validation errors
// return before any local or remote effect; remote failures return
// after a full rollback. Either way the entity is retryable afterwards.
func (c *Controller) Do(ctx context.Context, req Request) (*Result, error) {
	if err := c.validate(&req); err != nil {
		return nil, err
	}

	// Placeholder identity for optimistic creates; replaced by the
	// server-assigned id on success.
	placeholder := ""
	gateID := req.ID
	if req.Kind == KindCreate {
		if req.Entity.EntityID() == "" {
			placeholder = "optimistic-" + uuid.NewString()
			req.Entity = withID(req.Entity, placeholder)
		} else {
			placeholder = req.Entity.EntityID()
		}
		gateID = placeholder
	}

	key := gateKey{collection: req.Collection, id: gateID}
	if err := c.gates.acquire(ctx, key, c.cfg.Policy); err != nil {
		return nil, err
	}
	defer c.gates.release(key)

	// Begin: snapshot the slice of the store containing E.
	snap := c.store.Snapshot(req.Collection)

	// Apply locally.
	if err := c.applyOptimistic(req); err != nil {
		return nil, err
	}

	// Dispatch.
	rctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	fields, err := c.dispatch(rctx, req)
	if err != nil {
		// Roll back, but leave entities whose own mutation is still in
		// flight alone: restoring their snapshot state would undo (or
		// resurrect) a sibling's optimistic patch.
		c.store.RestoreExcept(snap, func(id string) bool {
			if id == gateID {
				return false
			}
			return c.gates.active(gateKey{collection: req.Collection, id: id})
		})
		err = classify(err, req.Kind.String()+" "+string(req.Collection))
		c.cfg.Logger.Warn().
			Str("op", req.Kind.String()).
			Str("collection", string(req.Collection)).
			Str("entity_id", gateID).
			Err(err).
			Msg("mutation rolled back")
		return nil, err
	}

	// Merge server fields and discard the snapshot.
	res := &Result{}
	switch req.Kind {
	case KindCreate:
		merged := req.Entity.MergeServer(fields)
		if merged.EntityID() != placeholder {
			if rerr := c.store.Rekey(req.Collection, placeholder, merged); rerr != nil {
				// Entity vanished between apply and merge; settle with
				// the server's view.
				c.store.Upsert(merged)
			}
		} else {
			c.store.Upsert(merged)
		}
		res.Entity = merged
	case KindUpdate:
		merged := req.Entity.MergeServer(fields)
		c.store.Upsert(merged)
		res.Entity = merged
	case KindDelete:
		// Already removed optimistically; nothing to merge.
	}

	c.cfg.Logger.Debug().
		Str("op", req.Kind.String()).
		Str("collection", string(req.Collection)).
		Str("entity_id", gateID).
		Msg("mutation committed")
	return res, nil
}

func (c *Controller) validate(req *Request) error {
	switch req.Kind {
	case KindCreate:
		if req.Entity == nil {
			return &billing.ValidationError{Field: "entity", Message: "create requires a payload"}
		}
		if req.Collection == "" {
			req.Collection = req.Entity.EntityCollection()
		}
	case KindUpdate:
		if req.Collection == billing.CollectionPayments {
			return billing.ErrImmutablePayment
		}
		if req.Entity == nil {
			return &billing.ValidationError{Field: "entity", Message: "update requires a payload"}
		}
		if req.ID == "" {
			req.ID = req.Entity.EntityID()
		}
		if req.ID == "" {
			return &billing.ValidationError{Field: "id", Message: "update requires a target id"}
		}
		if req.Collection == "" {
			req.Collection = req.Entity.EntityCollection()
		}
	case KindDelete:
		if req.ID == "" {
			return &billing.ValidationError{Field: "id", Message: "delete requires a target id"}
		}
		if req.Collection == "" {
			return &billing.ValidationError{Field: "collection", Message: "delete requires a collection"}
		}
	default:
		return &billing.ValidationError{Field: "kind", Message: "unknown mutation kind"}
	}
	return nil
}

func (c *Controller) applyOptimistic(req Request) error {
	switch req.Kind {
	case KindCreate:
		c.store.Upsert(req.Entity)
	case KindUpdate:
		if _, ok := c.store.Get(req.Collection, req.ID); !ok {
			return billing.ErrEntityNotFound
		}
		c.store.Upsert(withID(req.Entity, req.ID))
	case KindDelete:
		if !c.store.Remove(req.Collection, req.ID) {
			return billing.ErrEntityNotFound
		}
	}
	return nil
}

func (c *Controller) dispatch(ctx context.Context, req Request) (billing.ServerFields, error) {
	switch req.Kind {
	case KindCreate:
		return c.remote.Create(ctx, req.Collection, req.Entity)
	case KindUpdate:
		return c.remote.Update(ctx, req.Collection, req.ID, req.Entity)
	default:
		return c.remote.Delete(ctx, req.Collection, req.ID)
	}
}

// classify maps dispatch failures onto the error taxonomy. Anything
// that is not already a remote rejection - context expiry included -
// is a transport failure and therefore retryable.
func classify(err error, op string) error {
	var remoteErr *billing.RemoteError
	if errors.As(err, &remoteErr) {
		return err
	}
	var transportErr *billing.TransportError
	if errors.As(err, &transportErr) {
		return err
	}
	return &billing.TransportError{Op: op, Err: err}
}

// withID returns a clone of e carrying the given id. Entities merge ids
// through the same path server fields use, so this cannot alias state.
func withID(e billing.Entity, id string) billing.Entity {
	if e.EntityID() == id {
		return e
	}
	return e.MergeServer(billing.ServerFields{"id": id})
}

// =============================================================================
// LIST REFRESH
// =============================================================================

// Refresh refetches a collection from the remote and merges it into
// the store. Entities with an in-flight mutation keep their local
// optimistic version: an invalidation is deferred, never allowed to
// clobber a patch whose own mutation has not settled.
func (c *Controller) Refresh(ctx context.Context, col billing.Collection) error {
	rctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	entities, err := c.remote.List(rctx, col)
	if err != nil {
		return classify(err, "refresh "+string(col))
	}

	c.store.ReplaceAll(col, entities, func(id string) bool {
		return c.gates.active(gateKey{collection: col, id: id})
	})
	return nil
}

// =============================================================================
// PER-ENTITY GATES
// =============================================================================

type gateKey struct {
	collection billing.Collection
	id         string
}

// gateSet serializes mutations per entity id with a one-token channel
// per key. Acquire under QueueWait blocks until settlement or context
// cancellation; under QueueReject it fails fast. Gates are refcounted
// by holders plus waiters and dropped from the map when idle, so the
// set does not grow with every entity id ever mutated.
type gateSet struct {
	mu    sync.Mutex
	gates map[gateKey]*gate
}

type gate struct {
	ch   chan struct{}
	refs int
}

func newGateSet() *gateSet {
	return &gateSet{gates: make(map[gateKey]*gate)}
}

func (g *gateSet) ref(key gateKey) *gate {
	g.mu.Lock()
	defer g.mu.Unlock()
	gt, ok := g.gates[key]
	if !ok {
		gt = &gate{ch: make(chan struct{}, 1)}
		g.gates[key] = gt
	}
	gt.refs++
	return gt
}

func (g *gateSet) unref(key gateKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	gt := g.gates[key]
	gt.refs--
	if gt.refs == 0 {
		delete(g.gates, key)
	}
}

func (g *gateSet) acquire(ctx context.Context, key gateKey, policy QueuePolicy) error {
	gt := g.ref(key)
	if policy == QueueReject {
		select {
		case gt.ch <- struct{}{}:
			return nil
		default:
			g.unref(key)
			return billing.ErrMutationInFlight
		}
	}
	select {
	case gt.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		g.unref(key)
		return &billing.TransportError{Op: "acquire " + string(key.collection), Err: ctx.Err()}
	}
}

func (g *gateSet) release(key gateKey) {
	g.mu.Lock()
	gt := g.gates[key]
	g.mu.Unlock()
	<-gt.ch
	g.unref(key)
}

func (g *gateSet) active(key gateKey) bool {
	g.mu.Lock()
	gt, ok := g.gates[key]
	g.mu.Unlock()
	return ok && len(gt.ch) == 1
}
