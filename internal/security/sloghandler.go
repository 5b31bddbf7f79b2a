package security

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the process logger. Every string the handler writes,
// message included, is scrubbed by redactor first.
func NewLogger(w io.Writer, level slog.Level, format string, redactor *Redactor) *slog.Logger {
	return slog.New(NewRedactingHandler(w, level, format, redactor))
}

// NewRedactingHandler returns a text or JSON handler whose ReplaceAttr
// hook runs redactor over each attribute. A nil redactor writes as is.
func NewRedactingHandler(w io.Writer, level slog.Leveler, format string, redactor *Redactor) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if redactor != nil {
		opts.ReplaceAttr = func(_ []string, a slog.Attr) slog.Attr {
			return redactor.scrubAttr(a)
		}
	}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel maps debug, info, warn and error to slog levels. Unknown
// values fall back to info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// scrubAttr redacts a leaf attribute. The handler calls ReplaceAttr for
// each member of a group separately, so groups need no recursion here.
func (r *Redactor) scrubAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(r.Redact(v.String()))
	case slog.KindAny:
		s := v.String()
		if scrubbed := r.Redact(s); scrubbed != s {
			a.Value = slog.StringValue(scrubbed)
		}
	}
	return a
}
