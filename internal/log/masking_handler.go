package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// identityKeys are attribute keys whose values identify a classifier.
var identityKeys = map[string]bool{
	"user_name": true,
	"username":  true,
	"user_ip":   true,
	"identity":  true,
	"user":      true,
	"ip":        true,
}

// annotationIDKey is masked partially, keeping the timestamp and subject.
const annotationIDKey = "annotation_id"

// hashPattern matches hashed IP addresses as they appear in exports.
var hashPattern = regexp.MustCompile(`^[0-9a-fA-F]{32,}$`)

// embeddedIDPattern matches annotation ids and IP hashes inside free text.
var embeddedIDPattern = regexp.MustCompile(`[^\s:"',]+(:[0-9]+-)|\b[0-9a-fA-F]{32,}\b`)

// MaskValue is the string used to replace identities.
const MaskValue = "***"

// Options configures a logger built by NewLogger.
type Options struct {
	// Level is the minimum level written. Nil means slog.LevelInfo.
	Level slog.Leveler

	// JSON selects the JSON handler instead of the text handler.
	JSON bool

	// ShowIdentities disables masking.
	ShowIdentities bool
}

// MaskingHandler wraps an slog.Handler and masks classifier identities.
type MaskingHandler struct {
	handler slog.Handler
	reveal  bool
}

// NewMaskingHandler creates a MaskingHandler wrapping handler.
// If handler is nil, slog.Default().Handler() is used.
func NewMaskingHandler(handler slog.Handler, reveal bool) *MaskingHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &MaskingHandler{handler: handler, reveal: reveal}
}

// Enabled reports whether the underlying handler handles records at level.
func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's attributes and passes it on.
func (h *MaskingHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.reveal {
		return h.handler.Handle(ctx, r)
	}
	masked := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(maskAttr(a))
		return true
	})
	return h.handler.Handle(ctx, masked)
}

// WithAttrs returns a new handler with the given attributes, masked.
func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if h.reveal {
		return &MaskingHandler{handler: h.handler.WithAttrs(attrs), reveal: true}
	}
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = maskAttr(a)
	}
	return &MaskingHandler{handler: h.handler.WithAttrs(masked)}
}

// WithGroup returns a new handler with the given group name.
func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{handler: h.handler.WithGroup(name), reveal: h.reveal}
}

// maskAttr masks a single attribute, resolving LogValuers and descending into groups.
func maskAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		masked := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			masked[i] = maskAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(masked...)}
	}

	key := strings.ToLower(a.Key)
	if identityKeys[key] {
		if a.Value.Kind() == slog.KindString && a.Value.String() == "" {
			return a
		}
		return slog.String(a.Key, MaskValue)
	}
	if a.Value.Kind() == slog.KindAny {
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, MaskText(err.Error()))
		}
	}
	if a.Value.Kind() != slog.KindString {
		return a
	}

	value := a.Value.String()
	if key == annotationIDKey {
		return slog.String(a.Key, MaskAnnotationID(value))
	}
	if hashPattern.MatchString(value) {
		return slog.String(a.Key, MaskValue)
	}
	return a
}

// MaskAnnotationID replaces the identity part of "<identity>:<ts>-<subject>".
func MaskAnnotationID(id string) string {
	i := strings.LastIndex(id, ":")
	if i < 0 {
		return MaskValue
	}
	return MaskValue + id[i:]
}

// MaskText masks the identities of annotation ids and IP hashes embedded in s.
func MaskText(s string) string {
	return embeddedIDPattern.ReplaceAllStringFunc(s, func(m string) string {
		if i := strings.LastIndex(m, ":"); i >= 0 {
			return MaskValue + m[i:]
		}
		return MaskValue
	})
}

// NewHandler creates a masking text or JSON handler writing to w.
func NewHandler(w io.Writer, opts Options) slog.Handler {
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	ho := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	if opts.JSON {
		base = slog.NewJSONHandler(w, ho)
	} else {
		base = slog.NewTextHandler(w, ho)
	}
	return NewMaskingHandler(base, opts.ShowIdentities)
}

// NewLogger creates a logger writing masked records to w.
func NewLogger(w io.Writer, opts Options) *slog.Logger {
	return slog.New(NewHandler(w, opts))
}

// Level returns slog.LevelDebug when verbose and base otherwise.
func Level(verbose bool, base slog.Level) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return base
}
