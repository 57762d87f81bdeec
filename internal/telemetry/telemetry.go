// Package telemetry centralizes the engine's logging seam. It mirrors
// the teacher package's GLog/Debug/SetLogger convention: one shared
// *logs.BeeLogger that every core package logs through, swappable by
// the embedder and silenceable without recompiling.
package telemetry

import "github.com/astaxie/beego/logs"

var (
	debugEnabled bool
	log          *logs.BeeLogger
)

func init() {
	log = logs.NewLogger(10000)
	log.SetLogger("console", `{"level":7}`)
	log.EnableFuncCallDepth(true)
	log.SetLogFuncCallDepth(3)
}

// Log returns the shared logger.
func Log() *logs.BeeLogger {
	return log
}

// SetLogger replaces the shared logger, e.g. to redirect engine
// diagnostics into a host application's own logging pipeline.
func SetLogger(l *logs.BeeLogger) {
	if l != nil {
		log = l
	}
}

// Debug toggles verbose trace-level logging across the engine.
func Debug(enable bool) {
	debugEnabled = enable
}

// DebugEnabled reports whether verbose tracing is on.
func DebugEnabled() bool {
	return debugEnabled
}

// TraceInfo logs at info level, but only while Debug(true) is active,
// matching the teacher's TraceInfo convention.
func TraceInfo(format string, args ...interface{}) {
	if debugEnabled {
		log.Info(format, args...)
	}
}

// TraceError always logs at error level regardless of the debug toggle.
func TraceError(format string, args ...interface{}) {
	log.Error(format, args...)
}
