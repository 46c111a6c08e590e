package auth

import (
	"sync/atomic"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
)

// Logger is the structured logger used across the service. Arguments
// after the message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var _ Logger = glog.Logger(nil)

var rootLogger atomic.Pointer[glog.BaseLogger]

func init() {
	rootLogger.Store(NewRootLogger(glog.Info))
}

// NewRootLogger returns a console logger at the given level. go-errors
// values logged under "error" are expanded into their category, code
// and metadata.
func NewRootLogger(level string, opts ...glog.Option) *glog.BaseLogger {
	base := []glog.Option{
		glog.WithLoggerTypeConsole(),
		glog.WithLevel(glog.NormalizeLevel(level)),
		glog.WithName("go-tasks"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	}
	return glog.NewLogger(append(base, opts...)...)
}

// SetRootLogger replaces the logger NewLogger derives component
// loggers from. Loggers handed out earlier keep writing to the old root.
func SetRootLogger(root *glog.BaseLogger) {
	if root != nil {
		rootLogger.Store(root)
	}
}

// NewLogger returns the named component logger of the root logger
func NewLogger(component string) Logger {
	return rootLogger.Load().GetLogger(component)
}

func normalizeLogger(l Logger, component string) Logger {
	if l == nil {
		return NewLogger(component)
	}
	return l
}
