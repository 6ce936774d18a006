package mutation

import (
	"context"

	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// REMOTE - Protocol-level interface to the system of record
// =============================================================================

// Remote is the transport-agnostic shape of the remote system of record.
// A non-2xx response or a status:false payload surfaces as a
// *billing.RemoteError; no usable response at all surfaces as a
// *billing.TransportError. Implementations carry the bearer credential
// themselves; the controller never sees it.
type Remote interface {
	// Create persists a new entity and returns the server-assigned
	// fields (authoritative id, document number, storage URL, ...).
	Create(ctx context.Context, c billing.Collection, payload billing.Entity) (billing.ServerFields, error)

	// Update replaces an existing entity's payload.
	Update(ctx context.Context, c billing.Collection, id string, payload billing.Entity) (billing.ServerFields, error)

	// Delete removes an entity.
	Delete(ctx context.Context, c billing.Collection, id string) (billing.ServerFields, error)

	// List fetches the collection's current server-side state. Used by
	// list-level refresh, never by the mutation path itself.
	List(ctx context.Context, c billing.Collection) ([]billing.Entity, error)
}
