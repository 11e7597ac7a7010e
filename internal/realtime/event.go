package realtime

import (
	"fmt"
	"strings"
	"time"
)

// Operation is the kind of row change carried by a RawChangeEvent.
type Operation int

const (
	OpUnknown Operation = iota
	OpInsert
	OpUpdate
	OpDelete
)

// ParseOperation maps INSERT/UPDATE/DELETE (any case) to an Operation.
func ParseOperation(s string) Operation {
	switch strings.ToUpper(s) {
	case "INSERT":
		return OpInsert
	case "UPDATE":
		return OpUpdate
	case "DELETE":
		return OpDelete
	default:
		return OpUnknown
	}
}

func (o Operation) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Record is an undecoded row as delivered by the transport.
type Record map[string]any

// RawChangeEvent is one row change as delivered by the transport.
type RawChangeEvent struct {
	Operation       Operation
	Schema          string
	Table           string
	NewRecord       Record
	OldRecord       Record
	CommitTimestamp time.Time
}

// ChangeFilter selects the row changes a channel receives. Filter uses the
// postgres_changes syntax, e.g. "room_id=eq.<uuid>".
type ChangeFilter struct {
	Schema string
	Table  string
	Filter string
}

// EventKind discriminates Event.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventCreated
	EventUpdated
	EventDeleted
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventUpdated:
		return "updated"
	case EventDeleted:
		return "deleted"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a domain change for entity type M.
//
//	Created, Updated: Entity and ID are set
//	Deleted:          only ID is set
//	Error:            only Err is set
type Event[M any] struct {
	Kind   EventKind
	Entity M
	ID     string
	Err    error
}

func (e Event[M]) String() string {
	switch e.Kind {
	case EventError:
		return fmt.Sprintf("error(%v)", e.Err)
	case EventUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("%s(%s)", e.Kind, e.ID)
	}
}
