// Package logging configures the zerolog logger shared by the CLI and the
// HTTP server. Output is JSON on stderr unless pretty printing is requested.
package logging

import (
	"context"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options selects the log level and output format.
type Options struct {
	Debug  bool
	Pretty bool
	Out    io.Writer
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "time"
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		function := ""
		if fn := runtime.FuncForPC(pc); fn != nil {
			name := fn.Name()
			if slash := strings.LastIndex(name, "/"); slash > 0 {
				name = name[slash+1:]
			}
			function = " " + name + "()"
		}
		return file + ":" + strconv.Itoa(line) + function
	}
}

// FromEnv fills the unset fields of o from DATALENS_DEBUG and DATALENS_PRETTY.
func FromEnv(o Options) Options {
	if os.Getenv("DATALENS_DEBUG") == "1" {
		o.Debug = true
	}
	if os.Getenv("DATALENS_PRETTY") == "1" {
		o.Pretty = true
	}
	return o
}

// New builds a logger and installs it as zerolog's context default, so
// zerolog.Ctx on a bare context still logs somewhere useful.
func New(o Options) zerolog.Logger {
	out := o.Out
	if out == nil {
		out = os.Stderr
	}
	if o.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	level := zerolog.InfoLevel
	if o.Debug {
		level = zerolog.DebugLevel
	}
	l := zerolog.New(out).Level(level).With().Timestamp().Logger()
	if o.Debug {
		l = l.With().Caller().Logger()
	}
	zerolog.DefaultContextLogger = &l
	return l
}

// WithSession returns a child context whose logger carries a fresh session id.
func WithSession(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	l := zerolog.Ctx(ctx).With().Str("session", id).Logger()
	return l.WithContext(ctx), id
}
