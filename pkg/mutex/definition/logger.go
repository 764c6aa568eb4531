// Package definition holds the small set of interfaces the rest of the
// module depends on but does not own the implementation of — today,
// only logging.
package definition

// Logger is the logging contract every component talks to. Shaped after
// the teacher's own Logger interface so that swapping the backing
// implementation (stdlib log vs. logrus) never touches call sites.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})

	Warn(v ...interface{})
	Warnf(format string, v ...interface{})

	Error(v ...interface{})
	Errorf(format string, v ...interface{})

	Debug(v ...interface{})
	Debugf(format string, v ...interface{})

	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})

	Panic(v ...interface{})
	Panicf(format string, v ...interface{})

	// ToggleDebug enables or disables Debug/Debugf output, returning the
	// new value.
	ToggleDebug(value bool) bool

	// With returns a Logger that always attaches the given structured
	// fields, e.g. the peer id and partition.
	With(fields Fields) Logger
}

// Fields is a set of structured key/value pairs attached to a log line.
type Fields map[string]interface{}
