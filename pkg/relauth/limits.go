package relauth

// Limits holds the per-call resource bounds: chunk sizes for batched
// writes/deletes/UUID-mapping inserts, the traversal round size, and the
// default read page size. Constructors normalize a zero-value field back to
// its built-in default, so callers only need to set the bounds they want to
// override.
type Limits struct {
	WriteChunkSize             int
	DeleteChunkSize            int
	UUIDMappingInsertChunkSize int
	TraversalQueryLimit        int
	DefaultPageSize            int
}

// DefaultLimits returns the core's built-in bounds.
func DefaultLimits() Limits {
	return Limits{
		WriteChunkSize:             3000,
		DeleteChunkSize:            100,
		UUIDMappingInsertChunkSize: 15000,
		TraversalQueryLimit:        1000,
		DefaultPageSize:            100,
	}
}

func (l Limits) normalize() Limits {
	d := DefaultLimits()
	if l.WriteChunkSize <= 0 {
		l.WriteChunkSize = d.WriteChunkSize
	}
	if l.DeleteChunkSize <= 0 {
		l.DeleteChunkSize = d.DeleteChunkSize
	}
	if l.UUIDMappingInsertChunkSize <= 0 {
		l.UUIDMappingInsertChunkSize = d.UUIDMappingInsertChunkSize
	}
	if l.TraversalQueryLimit <= 0 {
		l.TraversalQueryLimit = d.TraversalQueryLimit
	}
	if l.DefaultPageSize <= 0 {
		l.DefaultPageSize = d.DefaultPageSize
	}
	return l
}
