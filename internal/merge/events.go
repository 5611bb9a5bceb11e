package merge

import "github.com/samcharles93/ggufmerge/internal/logger"

type EventKind int

const (
	EventStateChanged EventKind = iota
	EventPartRead
	EventSplitCountMismatch
	EventPlaceholderReserved
	EventTensorWritten
	EventPartStreamed
	EventFinalized
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state_changed"
	case EventPartRead:
		return "part_read"
	case EventSplitCountMismatch:
		return "split_count_mismatch"
	case EventPlaceholderReserved:
		return "placeholder_reserved"
	case EventTensorWritten:
		return "tensor_written"
	case EventPartStreamed:
		return "part_streamed"
	case EventFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Event is a diagnostic emitted while a merge runs. Only the fields that
// make sense for Kind are set.
type Event struct {
	Kind  EventKind
	RunID string
	State State

	Part    int
	Path    string
	Tensors int

	Tensor string
	Offset uint64
	Size   uint64

	// Declared and Actual carry the split count mismatch.
	Declared uint64
	Actual   int
}

// Warning reports whether the event flags a non-fatal problem.
func (e Event) Warning() bool {
	return e.Kind == EventSplitCountMismatch
}

// Sink receives merge events. Handle is called synchronously from the
// goroutine running Merge, in pipeline order.
type Sink interface {
	Handle(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Handle(e Event) { f(e) }

type nopSink struct{}

func (nopSink) Handle(Event) {}

// LogSink reports events through log. Split count mismatches are logged at
// warn level, per-tensor events at debug.
func LogSink(log logger.Logger) Sink {
	return SinkFunc(func(e Event) {
		l := log.With("run", e.RunID)
		switch e.Kind {
		case EventStateChanged:
			l.Debug("merge state", "state", e.State.String())
		case EventPartRead:
			l.Info("read part metadata", "part", e.Part, "path", e.Path, "tensors", e.Tensors)
		case EventSplitCountMismatch:
			l.Warn("split count does not match number of parts", "path", e.Path, "declared", e.Declared, "parts", e.Actual)
		case EventPlaceholderReserved:
			l.Debug("reserved metadata region", "path", e.Path, "bytes", e.Size)
		case EventTensorWritten:
			l.Debug("wrote tensor", "part", e.Part, "tensor", e.Tensor, "offset", e.Offset, "bytes", e.Size)
		case EventPartStreamed:
			l.Info("wrote part tensors", "part", e.Part, "path", e.Path, "tensors", e.Tensors)
		case EventFinalized:
			l.Info("merged", "path", e.Path, "tensors", e.Tensors, "meta_bytes", e.Size)
		}
	})
}
