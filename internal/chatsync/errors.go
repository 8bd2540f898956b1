package chatsync

import "errors"

var (
	// ErrHistoryUnavailable means the storage collaborator could not serve a
	// conversation's history. The conversation continues live-only.
	ErrHistoryUnavailable = errors.New("history unavailable")

	// ErrTransportDisconnected means the persistent connection dropped. The
	// connection manager reconnects on its own.
	ErrTransportDisconnected = errors.New("transport disconnected")

	// ErrUnparseableTimestamp is returned by ParseTimestamp. The merge treats such
	// messages as newest instead of failing.
	ErrUnparseableTimestamp = errors.New("unparseable timestamp")

	ErrSessionClosed = errors.New("session closed")
)
