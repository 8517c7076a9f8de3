package obs

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// NewLogger writes colored text in dev and local environments and JSON
// everywhere else. level overrides the environment default when it names
// a slog level.
func NewLogger(env, level string) *slog.Logger {
	return newLogger(env, level, os.Stdout)
}

func newLogger(env, level string, w io.Writer) *slog.Logger {
	dev := env == "dev" || env == "local"
	lvl := parseLevel(level, dev)
	if dev {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl, AddSource: true})).
		With("env", env)
}

func parseLevel(raw string, dev bool) slog.Level {
	var lvl slog.Level
	if raw != "" && lvl.UnmarshalText([]byte(raw)) == nil {
		return lvl
	}
	if dev {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
