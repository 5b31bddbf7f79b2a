package security

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

const tmdbKey = "tmdb-0123456789abcdef"

// capture returns a debug-level text logger that redacts tmdbKey, plus
// the buffer it writes to.
func capture() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	r := NewRedactor()
	r.AddLiteral(tmdbKey)
	return slog.New(NewRedactingHandler(&buf, slog.LevelDebug, "text", r)), &buf
}

func TestRedactingHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		log  func(l *slog.Logger)
		keep string
	}{
		{
			name: "message",
			log:  func(l *slog.Logger) { l.Info("calling tmdb with " + tmdbKey) },
			keep: "calling tmdb with",
		},
		{
			name: "pattern_in_message",
			log:  func(l *slog.Logger) { l.Info("concentrate key sk-abcdefghijklmnopqrstuvwxyz") },
			keep: "concentrate key",
		},
		{
			name: "string_attr",
			log:  func(l *slog.Logger) { l.Info("request", "url", "/3/movie/603?api_key="+tmdbKey, "tool", "get_movie_details") },
			keep: "tool=get_movie_details",
		},
		{
			name: "with_attrs",
			log:  func(l *slog.Logger) { l.With("api_key", tmdbKey).Info("provisioned") },
			keep: "provisioned",
		},
		{
			name: "with_group",
			log:  func(l *slog.Logger) { l.WithGroup("tmdb").Info("auth", "key", tmdbKey) },
			keep: "tmdb.key=",
		},
		{
			name: "group_attr",
			log: func(l *slog.Logger) {
				l.Info("call", slog.Group("request", slog.String("key", tmdbKey), slog.String("path", "/search/movie")))
			},
			keep: "/search/movie",
		},
		{
			name: "error_value",
			log:  func(l *slog.Logger) { l.Error("tmdb failed", "error", errors.New("401 for key "+tmdbKey)) },
			keep: "tmdb failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			logger, buf := capture()
			tt.log(logger)

			out := buf.String()
			if strings.Contains(out, tmdbKey) || strings.Contains(out, "sk-abcdefghijklmnopqrstuvwxyz") {
				t.Errorf("secret leaked: %s", out)
			}
			if !strings.Contains(out, RedactPlaceholder) {
				t.Errorf("placeholder missing: %s", out)
			}
			if !strings.Contains(out, tt.keep) {
				t.Errorf("expected %q to survive: %s", tt.keep, out)
			}
		})
	}
}

func TestRedactingHandler_LeavesCleanRecords(t *testing.T) {
	t.Parallel()
	logger, buf := capture()

	logger.Info("session created", "session_id", "8b1f")

	if out := buf.String(); strings.Contains(out, RedactPlaceholder) || !strings.Contains(out, "session_id=8b1f") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestRedactingHandler_Enabled(t *testing.T) {
	t.Parallel()
	h := NewRedactingHandler(&bytes.Buffer{}, slog.LevelWarn, "text", NewRedactor())

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"json", "JSON", "text", ""} {
		var buf bytes.Buffer
		r := NewRedactor()
		r.AddLiteral(tmdbKey)
		NewLogger(&buf, ParseLevel("debug"), format, r).Debug("tmdb request", "key", tmdbKey)

		out := buf.String()
		if isJSON := strings.HasPrefix(out, "{"); isJSON != strings.EqualFold(format, "json") {
			t.Errorf("format %q produced %s", format, out)
		}
		if strings.Contains(out, tmdbKey) {
			t.Errorf("format %q leaked the key: %s", format, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
