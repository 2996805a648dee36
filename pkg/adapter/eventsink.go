package adapter

import (
	"sync"

	"github.com/ComposableFi/emulated-light-client-sub001/pkg/ghash"
	"github.com/ComposableFi/emulated-light-client-sub001/pkg/log"
)

// EventKind identifies which of the three block-lifecycle events a
// manager operation produced.
type EventKind int

const (
	// BlockGenerated fires when Manager.GenerateNext stages a new pending
	// block.
	BlockGenerated EventKind = iota
	// BlockSigned fires every time Manager.AddSignature accepts a new
	// signature on the pending block.
	BlockSigned
	// BlockFinalised fires when a pending block crosses quorum stake and
	// becomes the chain's head block.
	BlockFinalised
)

// String renders the event kind the way it is named in spec.md: as one of
// the three capitalised event names, never a numeric value.
func (k EventKind) String() string {
	switch k {
	case BlockGenerated:
		return "BlockGenerated"
	case BlockSigned:
		return "BlockSigned"
	case BlockFinalised:
		return "BlockFinalised"
	default:
		return "Unknown"
	}
}

// Event is the payload handed to an EventSink. BlockHash identifies the
// block the event concerns; HostHeight and HostTimestamp record the host
// state the manager observed when the event was produced.
type Event struct {
	Kind            EventKind
	BlockHash       ghash.Hash
	BlockHeight     uint64
	HostHeight      uint64
	HostTimestampNS uint64
}

// EventSink receives block lifecycle notifications from pkg/chain.Manager.
// Notify must not block the manager for long -- a sink that needs to do
// slow work (network I/O, disk writes) should hand the event off itself,
// as ChanSink does.
type EventSink interface {
	Notify(ev Event)
}

// LogSink is the default EventSink: it logs every event via pkg/log and
// otherwise does nothing. It has no internal state, so it needs no
// synchronization of its own -- pkg/chain.Manager is single-threaded per
// spec.md §5, and the underlying logger is safe for concurrent use on its
// own terms regardless.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink returns a LogSink logging through the given logger's "events"
// module, or the package default logger if logger is nil.
func NewLogSink(logger *log.Logger) LogSink {
	if logger == nil {
		logger = log.Default()
	}
	return LogSink{logger: logger.Module("events")}
}

// Notify implements EventSink.
func (s LogSink) Notify(ev Event) {
	s.logger.Info(ev.Kind.String(),
		"block_hash", ev.BlockHash.Hex(),
		"block_height", ev.BlockHeight,
		"host_height", ev.HostHeight,
		"host_timestamp_ns", ev.HostTimestampNS,
	)
}

// ChanSink buffers events onto a channel so a host can drain them from a
// separate consumer goroutine. This is the one place in the adapter/chain
// stack that needs a mutex (see spec.md §5's concurrency model): Notify
// may be called from the manager's goroutine while Drain or Close runs on
// a consumer goroutine.
type ChanSink struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

// NewChanSink returns a ChanSink whose channel has the given buffer
// capacity. A full channel causes Notify to drop the event rather than
// block the manager -- callers that need lossless delivery should size
// capacity generously or drain promptly.
func NewChanSink(capacity int) *ChanSink {
	return &ChanSink{ch: make(chan Event, capacity)}
}

// Notify implements EventSink. It is a non-blocking send: if the channel
// is full or the sink has been closed, the event is silently dropped.
func (s *ChanSink) Notify(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default:
	}
}

// Events returns the channel events are delivered on.
func (s *ChanSink) Events() <-chan Event { return s.ch }

// Close marks the sink closed and closes the underlying channel. Calling
// Notify after Close is safe and a no-op. Calling Close again after the
// first call is also a no-op.
func (s *ChanSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
