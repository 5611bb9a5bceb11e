// Package merge reassembles a GGUF model split across several files into
// one self-contained file.
//
// A merge runs in three passes over the output. The metadata of every part
// is read and merged first, and its encoded size is reserved as zeros at
// the start of the output. Tensor payloads are then streamed from each part
// in order, each padded to the alignment unit. Finally the merged metadata
// is written over the reserved region. Until that last step the output
// starts with zeros, so a failed or cancelled merge never leaves a file
// that parses as GGUF.
package merge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
)

// Placement records where a tensor landed in the output data region.
type Placement struct {
	Name    string `json:"name"`
	Part    int    `json:"part"`
	Offset  uint64 `json:"offset"`
	Size    uint64 `json:"size"`
	Padding uint64 `json:"padding"`
}

// Result summarises a merge. It is returned alongside errors too, with
// State set to StateFailed and the fields filled up to the failing step.
type Result struct {
	RunID     string      `json:"run_id"`
	Output    string      `json:"output"`
	Parts     []string    `json:"parts"`
	Alignment uint64      `json:"alignment"`
	MetaSize  uint64      `json:"meta_size"`
	DataSize  uint64      `json:"data_size"`
	State     State       `json:"state"`
	Tensors   []Placement `json:"tensors"`
}

// Merge merges parts, in order, into a new file at output.
//
// The output must not exist. Part 0 must declare split.count; its key-value
// table is copied with split.count set to 0, and the tensors of all parts
// follow in part order. A split.count that differs from len(parts) only
// produces an EventSplitCountMismatch warning.
//
// Tensor payloads are padded to DefaultAlignment (16 bytes) or the unit
// given by WithAlignment. When part 0 declares general.alignment, that
// declared unit is used instead, so every output offset is a multiple of
// it rather than of 16.
//
// If the merge fails after the output was created, the file is left in
// place unless WithRemovePartial(true) was given; it is never a valid GGUF
// file and must be discarded. Cancelling ctx always removes it.
func Merge(ctx context.Context, parts []string, output string, opts ...Option) (*Result, error) {
	o := newOptions(opts)

	res := &Result{
		RunID:  o.runID,
		Output: output,
		Parts:  slices.Clone(parts),
		State:  StateInit,
	}
	emit := func(e Event) {
		e.RunID = o.runID
		o.sink.Handle(e)
	}
	setState := func(s State) {
		res.State = s
		emit(Event{Kind: EventStateChanged, State: s})
	}
	fail := func(err error) (*Result, error) {
		setState(StateFailed)
		return res, err
	}

	if err := checkPreconditions(parts, output, o.alignment); err != nil {
		return fail(err)
	}

	inputs, err := readParts(ctx, parts, o.readConcurrency)
	if err != nil {
		return fail(err)
	}
	defer closeParts(inputs)
	for i, p := range inputs {
		emit(Event{Kind: EventPartRead, Part: i, Path: p.Path, Tensors: len(p.Tensors)})
	}
	setState(StatePartsRead)

	pl, err := buildPlan(inputs, o.alignment, emit)
	if err != nil {
		return fail(err)
	}
	res.Alignment = pl.alignment
	res.MetaSize = pl.metaSize
	res.DataSize = pl.dataSize
	setState(StateMetaMerged)

	w, err := createOutput(output)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fail(&Error{Kind: ErrPrecondition, Path: output, Err: errors.New("output already exists")})
		}
		return fail(ioError(output, err))
	}
	abort := func(err error) (*Result, error) {
		remove := o.removePartial || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		w.abort(remove)
		return fail(err)
	}

	if err := w.reserve(pl.metaSize); err != nil {
		return abort(ioError(output, err))
	}
	emit(Event{Kind: EventPlaceholderReserved, Path: output, Size: pl.metaSize})
	setState(StatePlaceholderReserved)

	s := &streamer{w: w, emit: emit}
	res.Tensors, err = s.stream(ctx, inputs, pl)
	if err != nil {
		return abort(err)
	}
	setState(StateDataStreamed)

	if err := finalize(w, pl); err != nil {
		return abort(err)
	}
	if err := w.finish(); err != nil {
		if o.removePartial {
			_ = os.Remove(output)
		}
		return fail(ioError(output, err))
	}
	setState(StateMetaFinalized)

	emit(Event{Kind: EventFinalized, Path: output, Tensors: len(res.Tensors), Size: pl.metaSize})
	setState(StateDone)
	return res, nil
}

func checkPreconditions(parts []string, output string, alignment uint64) error {
	if len(parts) == 0 {
		return &Error{Kind: ErrPrecondition, Err: errors.New("no input parts")}
	}
	if output == "" {
		return &Error{Kind: ErrPrecondition, Err: errors.New("no output path")}
	}
	if alignment == 0 || alignment&(alignment-1) != 0 {
		return &Error{Kind: ErrPrecondition, Err: fmt.Errorf("alignment %d is not a power of two", alignment)}
	}
	if _, err := os.Lstat(output); err == nil {
		return &Error{Kind: ErrPrecondition, Path: output, Err: errors.New("output already exists")}
	} else if !errors.Is(err, os.ErrNotExist) {
		return ioError(output, err)
	}
	return nil
}
