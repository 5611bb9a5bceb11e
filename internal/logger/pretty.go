package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// PrettyHandler is a slog.Handler for terminal output:
//
//	[15:04:05] INFO  wrote part tensors part=1 tensors=291 bytes=4.7GiB
//
// Colors are only emitted when the writer is a terminal and NO_COLOR is
// unset. Integer attributes whose key ends in "bytes" are printed as
// binary sizes.
type PrettyHandler struct {
	opts  slog.HandlerOptions
	w     io.Writer
	mu    *sync.Mutex
	color bool

	// prefix is the dotted group path applied to attributes added later.
	prefix string
	// attrs holds attributes from WithAttrs, already formatted.
	attrs []byte
}

// NewPrettyHandler creates a new PrettyHandler.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &PrettyHandler{
		opts:  *opts,
		w:     w,
		mu:    &sync.Mutex{},
		color: colorEnabled(w),
	}
}

func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	st, err := f.Stat()
	if err != nil {
		return false
	}
	return st.Mode()&os.ModeCharDevice != 0
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle formats and writes a log record.
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)

	buf = h.paint(buf, colorGray, func(b []byte) []byte {
		b = append(b, '[')
		b = r.Time.AppendFormat(b, time.TimeOnly)
		return append(b, ']')
	})
	buf = append(buf, ' ')

	buf = h.paint(buf, levelColor(r.Level)+colorBold, func(b []byte) []byte {
		return append(b, fmt.Sprintf("%-5s", r.Level.String())...)
	})
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)

	var attrs []byte
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = appendAttr(attrs, a, h.prefix)
		return true
	})
	if len(attrs) > 0 {
		buf = h.paint(buf, colorCyan, func(b []byte) []byte { return append(b, attrs...) })
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *PrettyHandler) paint(buf []byte, color string, fn func([]byte) []byte) []byte {
	if !h.color {
		return fn(buf)
	}
	buf = append(buf, color...)
	buf = fn(buf)
	return append(buf, colorReset...)
}

// WithAttrs returns a new handler with additional attributes.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = append([]byte(nil), h.attrs...)
	for _, a := range attrs {
		h2.attrs = appendAttr(h2.attrs, a, h.prefix)
	}
	return &h2
}

// WithGroup returns a new handler with a group name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		return colorBlue
	default:
		return colorGray
	}
}

// appendAttr appends " key=value" to buf.
func appendAttr(buf []byte, attr slog.Attr, prefix string) []byte {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return buf
	}
	if attr.Value.Kind() == slog.KindGroup {
		p := prefix
		if attr.Key != "" {
			p += attr.Key + "."
		}
		for _, a := range attr.Value.Group() {
			buf = appendAttr(buf, a, p)
		}
		return buf
	}

	buf = append(buf, ' ')
	buf = append(buf, prefix...)
	buf = append(buf, attr.Key...)
	buf = append(buf, '=')

	switch attr.Value.Kind() {
	case slog.KindString:
		s := attr.Value.String()
		if needsQuoting(s) {
			buf = strconv.AppendQuote(buf, s)
		} else {
			buf = append(buf, s...)
		}
	case slog.KindTime:
		buf = attr.Value.Time().AppendFormat(buf, time.RFC3339)
	case slog.KindUint64:
		if isSizeKey(attr.Key) {
			buf = appendBytes(buf, attr.Value.Uint64())
		} else {
			buf = strconv.AppendUint(buf, attr.Value.Uint64(), 10)
		}
	case slog.KindInt64:
		if v := attr.Value.Int64(); v >= 0 && isSizeKey(attr.Key) {
			buf = appendBytes(buf, uint64(v))
		} else {
			buf = strconv.AppendInt(buf, v, 10)
		}
	default:
		buf = append(buf, fmt.Sprint(attr.Value.Any())...)
	}
	return buf
}

func isSizeKey(key string) bool {
	return key == "bytes" || strings.HasSuffix(key, "_bytes")
}

// appendBytes formats n with a binary unit, keeping exact values below 1KiB.
func appendBytes(buf []byte, n uint64) []byte {
	const unit = 1024
	if n < unit {
		buf = strconv.AppendUint(buf, n, 10)
		return append(buf, 'B')
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit && exp < 5; m /= unit {
		div *= unit
		exp++
	}
	buf = strconv.AppendFloat(buf, float64(n)/float64(div), 'f', 1, 64)
	buf = append(buf, "KMGTPE"[exp])
	return append(buf, "iB"...)
}

func needsQuoting(s string) bool {
	return strings.ContainsAny(s, " \t\n\"=")
}
