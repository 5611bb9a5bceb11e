package merge

import "github.com/google/uuid"

// DefaultAlignment is the alignment unit tensor payloads are padded to when
// part 0 declares no general.alignment.
const DefaultAlignment = 16

type options struct {
	sink            Sink
	alignment       uint64
	readConcurrency int
	removePartial   bool
	runID           string
}

type Option func(*options)

// WithSink routes diagnostic events to s.
func WithSink(s Sink) Option {
	return func(o *options) {
		if s != nil {
			o.sink = s
		}
	}
}

// WithAlignment overrides the default alignment unit. n must be a power of two.
func WithAlignment(n uint64) Option {
	return func(o *options) { o.alignment = n }
}

// WithReadConcurrency bounds how many part headers are parsed at once.
// Values below one mean sequential reading.
func WithReadConcurrency(n int) Option {
	return func(o *options) { o.readConcurrency = n }
}

// WithRemovePartial removes the output file when a merge fails after the
// output was created. By default a failed output is left in place; it never
// carries a valid header and must be discarded by the caller.
func WithRemovePartial(remove bool) Option {
	return func(o *options) { o.removePartial = remove }
}

// WithRunID sets the identifier attached to events and the Result.
func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}

func newOptions(opts []Option) options {
	o := options{
		sink:            nopSink{},
		alignment:       DefaultAlignment,
		readConcurrency: 1,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.readConcurrency < 1 {
		o.readConcurrency = 1
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	return o
}
