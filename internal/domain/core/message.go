package core

// Type is the message-type tag (PTYPE_*) from §GLOSSARY: a small code
// distinguishing wire semantics. Reserved codes 8-11 are left for
// higher-level scripting layers outside the core.
type Type uint8

const (
	TypeText      Type = iota // PTYPE_TEXT
	TypeResponse              // PTYPE_RESPONSE
	TypeMulticast             // PTYPE_MULTICAST
	TypeClient                // PTYPE_CLIENT
	TypeSystem                // PTYPE_SYSTEM
	TypeHarbor                // PTYPE_HARBOR
	TypeSocket                // PTYPE_SOCKET
	TypeError                 // PTYPE_ERROR
)

// Message is one entry in a mailbox. Data is owned by the sender until the
// receiving dispatcher frees it after the handler returns, unless the
// handler's return value signals it has taken ownership (§3 Message).
type Message struct {
	Source  Handle
	Session int32
	Type    Type
	Data    []byte
}

// HandlerFunc is the service handler contract (§6). A return of 0 lets the
// dispatcher free Data; a non-zero return means the handler keeps Data.
type HandlerFunc func(ctx DispatchContext, typ Type, session int32, source Handle, data []byte) int

// DispatchContext is the minimal view of a service context a handler needs.
// It is implemented by registry.Context; kept as an interface here so this
// package has no dependency on the registry package.
type DispatchContext interface {
	Handle() Handle
	NextSession() int32
}

// Mailbox is the per-service FIFO the scheduler drains. Implemented by
// mailbox.Mailbox; declared here so core can describe GlobalQueue without
// importing the mailbox package.
type Mailbox interface {
	Handle() Handle
	Push(msg Message)
	Pop() (Message, bool)
	Len() int
	// Overload returns the last recorded overload length, or 0 if the
	// mailbox has not exceeded its threshold since its last drain-to-empty
	// (§3 Mailbox "overload counter").
	Overload() int
	// FinishBatch is called once after a worker's drain batch ends without
	// Pop itself observing an empty mailbox. It clears in_global when the
	// mailbox has nothing left, and reports whether the caller must
	// requeue it (§4.3 step 6).
	FinishBatch() (hasMore bool)
	MarkRelease()
	Released() bool
	// queue linkage, used only by the global queue implementation
	Next() Mailbox
	SetNext(m Mailbox)
}
