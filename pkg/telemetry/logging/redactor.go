package logging

import (
	"context"
	"log/slog"
	"regexp"
)

// Redactor masks credential material in log output. The gateway handles
// rotating session secrets and client API keys; neither may ever land in a
// log line in full.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and its replacement.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor creates a Redactor with the built-in credential patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*redactPattern{
			{
				name:        "sso_cookie",
				regex:       regexp.MustCompile(`sso=[A-Za-z0-9._-]+`),
				replacement: "sso=***",
			},
			{
				name:        "bearer_token",
				regex:       regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._-]+`),
				replacement: "Bearer ***",
			},
			{
				name:        "api_key",
				regex:       regexp.MustCompile(`sk-[A-Za-z0-9]+`),
				replacement: "sk-***",
			},
			{
				name:        "jwt",
				regex:       regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9._-]+`),
				replacement: "***.jwt",
			},
		},
	}
}

// Redact applies all patterns to the given string.
func (r *Redactor) Redact(s string) string {
	for _, p := range r.patterns {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}

// RedactHandler is a slog.Handler that redacts string attribute values and
// the message text before delegating to the wrapped handler.
type RedactHandler struct {
	inner    slog.Handler
	redactor *Redactor
}

// NewRedactHandler wraps a handler with credential redaction.
func NewRedactHandler(inner slog.Handler, redactor *Redactor) *RedactHandler {
	return &RedactHandler{inner: inner, redactor: redactor}
}

// Enabled reports whether the wrapped handler handles the given level.
func (h *RedactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle redacts the record and passes it on.
func (h *RedactHandler) Handle(ctx context.Context, rec slog.Record) error {
	clean := slog.NewRecord(rec.Time, rec.Level, h.redactor.Redact(rec.Message), rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, clean)
}

// WithAttrs returns a new handler with the given redacted attributes added.
func (h *RedactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		clean = append(clean, h.redactAttr(a))
	}
	return &RedactHandler{inner: h.inner.WithAttrs(clean), redactor: h.redactor}
}

// WithGroup returns a new handler with the given group name.
func (h *RedactHandler) WithGroup(name string) slog.Handler {
	return &RedactHandler{inner: h.inner.WithGroup(name), redactor: h.redactor}
}

func (h *RedactHandler) redactAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(h.redactor.Redact(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		clean := make([]slog.Attr, 0, len(group))
		for _, g := range group {
			clean = append(clean, h.redactAttr(g))
		}
		a.Value = slog.GroupValue(clean...)
	}
	return a
}
