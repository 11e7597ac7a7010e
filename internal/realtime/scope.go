package realtime

// Scope describes one logical topic for entities of type M: which changes
// to listen to, how to decode them, and which decoded entities belong to it.
type Scope[M any] struct {
	Name   string
	Filter ChangeFilter

	Decode func(Record) (M, error)
	// InScope drops entities outside the topic. Nil accepts everything.
	InScope func(M) bool
	// Identity is the dedupe identity of an entity version; it is combined
	// with the operation, so an update of a created entity is not a duplicate.
	Identity func(M) string
	// EntityID is reported in Created/Updated/Deleted events.
	EntityID func(M) string
}
