package merge

import "fmt"

// State is the position of a merge in its pipeline.
type State int

const (
	StateInit State = iota
	StatePartsRead
	StateMetaMerged
	StatePlaceholderReserved
	StateDataStreamed
	StateMetaFinalized
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StatePartsRead:
		return "parts_read"
	case StateMetaMerged:
		return "meta_merged"
	case StatePlaceholderReserved:
		return "placeholder_reserved"
	case StateDataStreamed:
		return "data_streamed"
	case StateMetaFinalized:
		return "meta_finalized"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
