package relauth

import "github.com/google/uuid"

// RequestContext carries the per-request tenant identity every manager
// method is scoped by, plus opaque observability fields threaded through
// for logging. It is built once per inbound call by the collaborator layer
// and is not a replacement for context.Context: callers still pass a
// context.Context alongside it for cancellation and deadlines.
type RequestContext struct {
	// NetworkID is the tenant ("nid") every query, write and delete is
	// scoped by. No operation may observe or mutate a row under a
	// different NetworkID.
	NetworkID uuid.UUID

	// RequestID and TraceID are opaque to this package; it only carries
	// them into structured log fields.
	RequestID string
	TraceID   string
}
